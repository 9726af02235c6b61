package notify

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kaelstream/rtmp-hub/internal/config"
)

func TestStartApprovesOn200AndCarriesStreamID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := r.Header.Get("rtmp-event")
		if tok == "" {
			t.Fatalf("expected rtmp-event header to carry a signed token")
		}
		parsed, err := jwt.Parse(tok, func(*jwt.Token) (interface{}, error) { return []byte("sekret"), nil })
		if err != nil || !parsed.Valid {
			t.Fatalf("expected a validly signed token: %v", err)
		}
		claims := parsed.Claims.(jwt.MapClaims)
		if claims["event"] != "start" || claims["channel"] != "live" {
			t.Fatalf("unexpected claims: %+v", claims)
		}
		w.Header().Set("stream-id", "abc123")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(&config.Config{CallbackURL: srv.URL, JWTSecret: "sekret", JWTExpirySeconds: 120})
	approved, streamID, err := n.Start("live", "key", "1.2.3.4", "rtmp.example.com", 1935)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !approved {
		t.Fatalf("expected approval on 200 response")
	}
	if streamID != "abc123" {
		t.Fatalf("expected stream-id header to be returned, got %q", streamID)
	}
}

func TestStartRejectsOnNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	n := New(&config.Config{CallbackURL: srv.URL, JWTSecret: "sekret"})
	approved, _, err := n.Start("live", "key", "1.2.3.4", "rtmp.example.com", 1935)
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	if approved {
		t.Fatalf("expected rejection on non-200 response")
	}
}

func TestNoCallbackURLAlwaysApproves(t *testing.T) {
	n := New(&config.Config{})
	approved, _, err := n.Start("live", "key", "1.2.3.4", "rtmp.example.com", 1935)
	if err != nil || !approved {
		t.Fatalf("expected automatic approval with no callback configured, got approved=%v err=%v", approved, err)
	}
}
