// Package notify sends the start/stop publish webhooks that let an
// external control plane approve or reject a stream before it goes
// live, grounded on the teacher's rtmp_callback.go (SendStartCallback/
// SendStopCallback), generalized from two copy-pasted functions with
// hardcoded os.Getenv calls into one reusable client configured by
// config.Config and parameterized over event kind.
package notify

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kaelstream/rtmp-hub/internal/config"
	"github.com/kaelstream/rtmp-hub/internal/logger"
)

// Event names the publish lifecycle moment being reported.
type Event string

const (
	EventStart Event = "start"
	EventStop  Event = "stop"
)

// Notifier posts signed start/stop events to an external callback URL
// and reports whether the publish should be allowed to proceed (the
// start callback's response gates HandlePublish exactly like the
// teacher's SendStartCallback return value).
type Notifier struct {
	callbackURL   string
	jwtSecret     string
	subject       string
	expirySeconds int64
	client        *http.Client
}

// New builds a Notifier from server configuration. If cfg.CallbackURL is
// empty, every call is a no-op success, matching "no callback configured
// means publish is always approved".
func New(cfg *config.Config) *Notifier {
	subject := cfg.CustomJWTSubject
	if subject == "" {
		subject = "rtmp_event"
	}
	return &Notifier{
		callbackURL:   cfg.CallbackURL,
		jwtSecret:     cfg.JWTSecret,
		subject:       subject,
		expirySeconds: cfg.JWTExpirySeconds,
		client:        &http.Client{Timeout: 5 * time.Second},
	}
}

// Start reports a publish attempt and returns (approved, externalStreamID, err).
// err is non-nil only for a transport-level failure; a non-200 response or a
// rejection is reported via approved=false with a nil err, matching the
// teacher's boolean-return style.
func (n *Notifier) Start(channel, key, clientIP, rtmpHost string, rtmpPort int) (approved bool, externalStreamID string, err error) {
	if n.callbackURL == "" {
		return true, "", nil
	}

	claims := jwt.MapClaims{
		"sub":       n.subject,
		"event":     string(EventStart),
		"channel":   channel,
		"key":       key,
		"client_ip": clientIP,
		"rtmp_host": rtmpHost,
		"rtmp_port": rtmpPort,
		"exp":       time.Now().Unix() + n.expirySeconds,
	}
	res, err := n.post(claims)
	if err != nil {
		return false, "", err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		logger.Debug("callback request ended with status code: " + fmt.Sprint(res.StatusCode))
		return false, "", nil
	}
	return true, res.Header.Get("stream-id"), nil
}

// Stop reports the end of a publish. The return value mirrors
// SendStopCallback: false only signals the remote end rejected/failed
// the notification, which callers typically just log.
func (n *Notifier) Stop(channel, key, externalStreamID, clientIP string) (bool, error) {
	if n.callbackURL == "" {
		return true, nil
	}

	claims := jwt.MapClaims{
		"sub":       n.subject,
		"event":     string(EventStop),
		"channel":   channel,
		"key":       key,
		"stream_id": externalStreamID,
		"client_ip": clientIP,
		"exp":       time.Now().Unix() + n.expirySeconds,
	}
	res, err := n.post(claims)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		logger.Debug("callback request ended with status code: " + fmt.Sprint(res.StatusCode))
		return false, nil
	}
	return true, nil
}

func (n *Notifier) post(claims jwt.MapClaims) (*http.Response, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(n.jwtSecret))
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, n.callbackURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("rtmp-event", signed)

	return n.client.Do(req)
}
