package stream

import "testing"

func TestIdentifierKeyScopesPerProtocol(t *testing.T) {
	rtmpID := RTMP("live", "test")
	rtspID := RTSP("live/test")
	if rtmpID.Key() == rtspID.Key() {
		t.Fatalf("RTMP and RTSP identifiers for the same nominal stream must not collide")
	}
}

func TestIdentifierKeyStableForSameInputs(t *testing.T) {
	a := RTMP("live", "test")
	b := RTMP("live", "test")
	if a.Key() != b.Key() {
		t.Fatalf("identical identifiers must produce identical keys")
	}
}

func TestIdentifierString(t *testing.T) {
	id := RTMP("live", "test")
	want := "RTMP - app_name: live, stream_name: test"
	if got := id.String(); got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestNewUUIDLength(t *testing.T) {
	u := NewUUID(4)
	if len(u) != 14 {
		t.Fatalf("expected 10 + 4 = 14 characters, got %d (%q)", len(u), u)
	}
}

func TestNewUUIDClampsRandomDigits(t *testing.T) {
	u := NewUUID(20)
	if len(u) != 16 {
		t.Fatalf("expected random digits clamped to 6 (16 total), got %d", len(u))
	}
}

func TestIsKeyFrameAndSequenceHeaders(t *testing.T) {
	keyFrameSeqHeader := []byte{0x17, 0x00, 0x00, 0x00, 0x00}
	if !IsKeyFrame(keyFrameSeqHeader) {
		t.Fatalf("expected key frame classification")
	}
	if !IsVideoSequenceHeader(keyFrameSeqHeader) {
		t.Fatalf("expected sequence header classification")
	}

	interFrame := []byte{0x27, 0x01, 0x00, 0x00, 0x00}
	if IsKeyFrame(interFrame) {
		t.Fatalf("inter frame should not classify as key frame")
	}

	audioSeqHeader := []byte{0xAF, 0x00, 0x12, 0x10}
	if !IsAudioSequenceHeader(audioSeqHeader) {
		t.Fatalf("expected AAC sequence header classification")
	}
}
