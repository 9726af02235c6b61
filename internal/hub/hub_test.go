package hub

import (
	"testing"
	"time"

	"github.com/kaelstream/rtmp-hub/internal/rtmperrors"
	"github.com/kaelstream/rtmp-hub/internal/stream"
)

func newTestHub() *Hub {
	h := New(1)
	go h.Run()
	return h
}

func TestPublisherUniquenessPerIdentifier(t *testing.T) {
	h := newTestHub()
	id := stream.RTMP("live", "test")
	frames := make(chan stream.Frame)

	if err := h.Publish(Publication{Identifier: id, Info: Info{ID: "pub1"}, Frames: frames}); err != nil {
		t.Fatalf("first publish should succeed: %v", err)
	}

	frames2 := make(chan stream.Frame)
	err := h.Publish(Publication{Identifier: id, Info: Info{ID: "pub2"}, Frames: frames2})
	if err == nil {
		t.Fatalf("second publish to the same identifier should be rejected")
	}
	if !rtmperrors.IsKind(err, rtmperrors.KindExists) {
		t.Fatalf("expected KindExists, got %v", err)
	}
}

func TestSubscribeWithoutPublisherFails(t *testing.T) {
	h := newTestHub()
	id := stream.RTMP("live", "nobody")
	out := make(chan stream.Frame, 4)

	err := h.Subscribe(Subscription{Identifier: id, Info: Info{ID: "sub1"}, Frames: out})
	if err == nil || !rtmperrors.IsKind(err, rtmperrors.KindNotFound) {
		t.Fatalf("expected KindNotFound, got %v", err)
	}
}

func TestFanOutDeliversLiveFrames(t *testing.T) {
	h := newTestHub()
	id := stream.RTMP("live", "test")
	frames := make(chan stream.Frame)

	if err := h.Publish(Publication{Identifier: id, Info: Info{ID: "pub1"}, Frames: frames}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	out := make(chan stream.Frame, 4)
	if err := h.Subscribe(Subscription{Identifier: id, Info: Info{ID: "sub1"}, Frames: out}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	frames <- stream.Video(10, []byte{0x27, 0x01})

	select {
	case f := <-out:
		if f.Timestamp != 10 {
			t.Fatalf("unexpected frame: %+v", f)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for fanned-out frame")
	}
}

func TestNewSubscriberReceivesCachedGOPBeforeLiveFrames(t *testing.T) {
	h := newTestHub()
	id := stream.RTMP("live", "test")
	frames := make(chan stream.Frame)

	if err := h.Publish(Publication{Identifier: id, Info: Info{ID: "pub1"}, Frames: frames}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	frames <- stream.Metadata(0, []byte("meta"))
	frames <- stream.Video(0, []byte{0x17, 0x00, 0x01}) // seq header
	frames <- stream.Video(5, []byte{0x17, 0x01})       // keyframe, opens the GOP
	time.Sleep(50 * time.Millisecond)                   // let the transmitter cache them

	out := make(chan stream.Frame, 8)
	if err := h.Subscribe(Subscription{Identifier: id, Info: Info{ID: "sub1"}, Frames: out}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	var got []stream.Frame
	for len(got) < 3 {
		select {
		case f := <-out:
			got = append(got, f)
		case <-time.After(time.Second):
			t.Fatalf("timed out, got %d of 3 replayed frames", len(got))
		}
	}
	if got[0].Kind != stream.KindMetadata {
		t.Fatalf("expected metadata first, got %v", got[0].Kind)
	}

	frames <- stream.Video(10, []byte{0x27, 0x01}) // live inter frame
	select {
	case f := <-out:
		if f.Timestamp != 10 {
			t.Fatalf("expected the live frame after the replayed GOP, got %+v", f)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for the live frame")
	}
}

func TestKickClientClosesSubscriberChannel(t *testing.T) {
	h := newTestHub()
	id := stream.RTMP("live", "test")
	frames := make(chan stream.Frame)

	if err := h.Publish(Publication{Identifier: id, Info: Info{ID: "pub1"}, Frames: frames}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	out := make(chan stream.Frame, 4)
	if err := h.Subscribe(Subscription{Identifier: id, Info: Info{ID: "sub1"}, Frames: out}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := h.KickClient("sub1"); err != nil {
		t.Fatalf("KickClient: %v", err)
	}

	select {
	case _, ok := <-out:
		if ok {
			t.Fatalf("expected channel to be closed after kick")
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for channel close")
	}
}

func TestKickClientOnPublisherIDSelfTerminatesTransmitter(t *testing.T) {
	h := newTestHub()
	id := stream.RTMP("live", "test")
	frames := make(chan stream.Frame)
	killed := make(chan struct{}, 1)

	if err := h.Publish(Publication{
		Identifier: id,
		Info:       Info{ID: "pub1"},
		Frames:     frames,
		Kill:       func() { killed <- struct{}{} },
	}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	out := make(chan stream.Frame, 4)
	if err := h.Subscribe(Subscription{Identifier: id, Info: Info{ID: "sub1"}, Frames: out}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := h.KickClient("pub1"); err != nil {
		t.Fatalf("KickClient: %v", err)
	}

	select {
	case <-killed:
	case <-time.After(time.Second):
		t.Fatalf("expected Kill callback to fire for a publisher-targeted kick")
	}

	select {
	case _, ok := <-out:
		if ok {
			t.Fatalf("expected subscriber channel to close once the publisher's transmitter self-terminated")
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for subscriber channel close")
	}

	if len(h.Statistics()) != 0 {
		t.Fatalf("expected stream to be gone from statistics after publisher kick")
	}
}

func TestUnpublishStopsTransmitterAndAllowsRepublish(t *testing.T) {
	h := newTestHub()
	id := stream.RTMP("live", "test")
	frames := make(chan stream.Frame)

	if err := h.Publish(Publication{Identifier: id, Info: Info{ID: "pub1"}, Frames: frames}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	h.Unpublish(id)

	frames2 := make(chan stream.Frame)
	if err := h.Publish(Publication{Identifier: id, Info: Info{ID: "pub2"}, Frames: frames2}); err != nil {
		t.Fatalf("expected republish to succeed after unpublish: %v", err)
	}
}

func TestKillPublisherInvokesKillCallback(t *testing.T) {
	h := newTestHub()
	id := stream.RTMP("live", "kill-test")
	frames := make(chan stream.Frame)
	killed := make(chan struct{}, 1)

	if err := h.Publish(Publication{
		Identifier: id,
		Info:       Info{ID: "pub1"},
		Frames:     frames,
		Kill:       func() { killed <- struct{}{} },
	}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if err := h.KillPublisher(id); err != nil {
		t.Fatalf("KillPublisher: %v", err)
	}

	select {
	case <-killed:
	case <-time.After(time.Second):
		t.Fatalf("expected Kill callback to be invoked")
	}
}

func TestKillPublisherUnknownStreamReturnsNotFound(t *testing.T) {
	h := newTestHub()
	err := h.KillPublisher(stream.RTMP("live", "no-such-stream"))
	if err == nil || !rtmperrors.IsKind(err, rtmperrors.KindNotFound) {
		t.Fatalf("expected KindNotFound, got %v", err)
	}
}

func TestStatisticsReportsLiveStreams(t *testing.T) {
	h := newTestHub()
	id := stream.RTMP("live", "stats-test")
	frames := make(chan stream.Frame)
	if err := h.Publish(Publication{Identifier: id, Info: Info{ID: "pub1"}, Frames: frames}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	stats := h.Statistics()
	found := false
	for _, s := range stats {
		if s.Identifier.Key() == id.Key() {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected statistics to include the live stream, got %+v", stats)
	}
}
