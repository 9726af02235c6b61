package message

import (
	"testing"

	"github.com/kaelstream/rtmp-hub/internal/amf0"
)

func TestEncodeDecodeCommandRoundTrip(t *testing.T) {
	obj := amf0.NewOrderedMap()
	obj.Set("app", amf0.String("live"))
	cmd := &Command{
		Name:          "connect",
		TransactionID: 1,
		CommandObject: amf0.Object(obj),
		Arguments:     []*amf0.Value{amf0.String("extra")},
	}
	payload, err := EncodeCommand(cmd)
	if err != nil {
		t.Fatalf("EncodeCommand: %v", err)
	}
	got, err := DecodeCommand(payload)
	if err != nil {
		t.Fatalf("DecodeCommand: %v", err)
	}
	if got.Name != "connect" || got.TransactionID != 1 {
		t.Fatalf("unexpected command: %+v", got)
	}
	if got.CommandObject.Property("app").GetString() != "live" {
		t.Fatalf("expected command object to round-trip, got %+v", got.CommandObject)
	}
	if len(got.Arguments) != 1 || got.Arguments[0].GetString() != "extra" {
		t.Fatalf("expected trailing argument to round-trip, got %+v", got.Arguments)
	}
}

func TestDecodeCommandRejectsTooFewValues(t *testing.T) {
	payload, err := amf0.EncodeAll([]*amf0.Value{amf0.String("onlyname")})
	if err != nil {
		t.Fatalf("EncodeAll: %v", err)
	}
	if _, err := DecodeCommand(payload); err == nil {
		t.Fatalf("expected error decoding a command with no transaction id")
	}
}

func TestCommandArgOutOfRangeReturnsUndefined(t *testing.T) {
	cmd := &Command{Name: "play", TransactionID: 0}
	if !cmd.Arg(0).IsUndefined() {
		t.Fatalf("expected Arg on empty Arguments to return Undefined")
	}
}

func TestStatusMessageEncodesOnStatusCommand(t *testing.T) {
	msg, err := StatusMessage(1, "status", "NetStream.Publish.Start", "publishing")
	if err != nil {
		t.Fatalf("StatusMessage: %v", err)
	}
	if msg.TypeID != TypeCommandAMF0 || msg.CSID != CSIDInvoke || msg.StreamID != 1 {
		t.Fatalf("unexpected message envelope: %+v", msg)
	}
	cmd, err := DecodeCommand(msg.Payload)
	if err != nil {
		t.Fatalf("DecodeCommand: %v", err)
	}
	if cmd.Name != "onStatus" {
		t.Fatalf("expected onStatus command, got %q", cmd.Name)
	}
	info := cmd.Arg(0)
	if info.Property("level").GetString() != "status" {
		t.Fatalf("expected level=status, got %+v", info)
	}
	if info.Property("code").GetString() != "NetStream.Publish.Start" {
		t.Fatalf("expected code to round-trip, got %+v", info)
	}
	if info.Property("description").GetString() != "publishing" {
		t.Fatalf("expected description to round-trip, got %+v", info)
	}
}

func TestStatusMessageOmitsEmptyDescription(t *testing.T) {
	msg, err := StatusMessage(0, "error", "NetStream.Publish.BadName", "")
	if err != nil {
		t.Fatalf("StatusMessage: %v", err)
	}
	cmd, err := DecodeCommand(msg.Payload)
	if err != nil {
		t.Fatalf("DecodeCommand: %v", err)
	}
	info := cmd.Arg(0)
	if !info.Property("description").IsUndefined() && !info.Property("description").IsNull() {
		t.Fatalf("expected no description key, got %+v", info.Property("description"))
	}
}
