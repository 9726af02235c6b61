package handshake

import (
	"io"
	"testing"
)

// pipeConn lets ServerHandshake and ClientHandshake talk to each other
// in-process over a real blocking pipe (io.Pipe), since a non-blocking
// buffer would let a goroutine race ahead and observe an empty read as
// EOF instead of waiting for its peer's write.
type pipeConn struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (p *pipeConn) Read(buf []byte) (int, error)  { return p.r.Read(buf) }
func (p *pipeConn) Write(buf []byte) (int, error) { return p.w.Write(buf) }

func newPipePair() (client, server *pipeConn) {
	clientToServerR, clientToServerW := io.Pipe()
	serverToClientR, serverToClientW := io.Pipe()
	client = &pipeConn{r: serverToClientR, w: clientToServerW}
	server = &pipeConn{r: clientToServerR, w: serverToClientW}
	return
}

func TestDigestHandshakeRoundTrip(t *testing.T) {
	client, server := newPipePair()

	done := make(chan error, 1)
	go func() {
		done <- ServerHandshake(server)
	}()

	if err := ClientHandshake(client, true); err != nil {
		t.Fatalf("ClientHandshake: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("ServerHandshake: %v", err)
	}
}

func TestSimpleHandshakeRoundTrip(t *testing.T) {
	client, server := newPipePair()

	done := make(chan error, 1)
	go func() {
		done <- ServerHandshake(server)
	}()

	if err := ClientHandshake(client, false); err != nil {
		t.Fatalf("ClientHandshake: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("ServerHandshake: %v", err)
	}
}

func TestDetectSchemaSchema1(t *testing.T) {
	sig := buildS1(Schema1)
	if got := DetectSchema(sig); got != Schema1 {
		t.Fatalf("DetectSchema = %d, want Schema1", got)
	}
}

func TestDetectSchemaSchema0(t *testing.T) {
	sig := buildS1(Schema0)
	if got := DetectSchema(sig); got != Schema0 {
		t.Fatalf("DetectSchema = %d, want Schema0", got)
	}
}

func TestDetectSchemaSimple(t *testing.T) {
	sig := buildS1(SchemaSimple)
	if got := DetectSchema(sig); got != SchemaSimple {
		t.Fatalf("DetectSchema = %d, want SchemaSimple", got)
	}
}

// TestTamperedDigestFailsValidation covers spec.md §8 scenario 3: a
// digest handshake whose signature bytes are corrupted after generation
// must no longer validate against either schema's key, under both
// schema 0 and schema 1 layouts.
func TestTamperedDigestFailsValidation(t *testing.T) {
	for _, schema := range []Schema{Schema0, Schema1} {
		sig := buildS1(schema)
		tampered := append([]byte{}, sig...)
		tampered[100] ^= 0xFF // flip a bit inside the message-without-digest region

		offset := digestOffsetForSchema(sig, schema)
		msg := messageWithoutDigest(tampered, offset)
		want := hmacSHA256(msg, genuineFMSConst)
		got := tampered[offset : offset+digestLen]
		if hmacEqual(got, want) {
			t.Fatalf("schema %d: tampered signature unexpectedly validated", schema)
		}
	}
}

func hmacEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCompareConstantTime(t *testing.T) {
	if !CompareConstantTime([]byte("xiu"), []byte("xiu")) {
		t.Fatalf("expected equal keys to compare equal")
	}
	if CompareConstantTime([]byte("xiu"), []byte("other")) {
		t.Fatalf("expected different keys to compare unequal")
	}
}
