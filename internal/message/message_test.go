package message

import "testing"

func TestIsControlClassification(t *testing.T) {
	for _, typeID := range []uint8{TypeSetChunkSize, TypeAbort, TypeAcknowledgement, TypeWindowAckSize, TypeSetPeerBandwidth} {
		if !IsControl(typeID) {
			t.Fatalf("typeID %d should be classified as control", typeID)
		}
	}
	if IsControl(TypeAudio) {
		t.Fatalf("audio should not be classified as control")
	}
}

func TestIsMediaAndIsCommand(t *testing.T) {
	if !IsMedia(TypeAudio) || !IsMedia(TypeVideo) {
		t.Fatalf("audio/video should be classified as media")
	}
	if IsMedia(TypeCommandAMF0) {
		t.Fatalf("command should not be classified as media")
	}
	if !IsCommand(TypeCommandAMF0) || !IsCommand(TypeCommandAMF3) {
		t.Fatalf("AMF0/AMF3 command types should be classified as commands")
	}
}

func TestSetChunkSizeEncodesBigEndian(t *testing.T) {
	m := SetChunkSize(4096)
	if len(m.Payload) != 4 {
		t.Fatalf("expected 4-byte payload, got %d", len(m.Payload))
	}
	want := []byte{0x00, 0x00, 0x10, 0x00}
	for i := range want {
		if m.Payload[i] != want[i] {
			t.Fatalf("payload = % x, want % x", m.Payload, want)
		}
	}
	if m.CSID != CSIDProtocol || m.TypeID != TypeSetChunkSize {
		t.Fatalf("unexpected csid/typeID: %+v", m)
	}
}

func TestStreamBeginEvent(t *testing.T) {
	m := StreamBegin(7)
	if m.TypeID != TypeUserControl {
		t.Fatalf("expected UserControl type")
	}
	if m.Payload[0] != 0 || m.Payload[1] != 0 {
		t.Fatalf("expected event code 0 (Stream Begin)")
	}
	if m.Payload[5] != 7 {
		t.Fatalf("expected stream id 7 in low byte, got % x", m.Payload)
	}
}
