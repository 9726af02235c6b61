package hub

import (
	"github.com/kaelstream/rtmp-hub/internal/cache"
	"github.com/kaelstream/rtmp-hub/internal/logger"
	"github.com/kaelstream/rtmp-hub/internal/stream"
)

// transmitterCommand is the small control surface the hub goroutine uses
// to mutate a transmitter's subscriber table without touching its frame
// loop directly — the Go equivalent of TransmitterEvent, delivered over
// its own channel so subscribe/unsubscribe never contends with frame
// delivery.
type transmitterCommand struct {
	kind   txCmdKind
	id     stream.UUID
	frames chan<- stream.Frame
	reply  chan int
}

type txCmdKind int

const (
	txCmdAdd txCmdKind = iota
	txCmdRemove
	txCmdKick
	txCmdCount
)

// transmitter owns the fan-out for one live stream: it reads Frames from
// the publisher's channel, maintains the GOP cache, and pushes each
// frame to every subscriber's channel without blocking on a slow one
// (spec.md §4.7's transmitter algorithm), grounded on the teacher's
// GetPlayers-then-SendCachePacket loop in HandleAudioPacket/
// HandleVideoPacket, translated from shared-memory iteration under a
// mutex into one goroutine that owns its subscriber table outright.
type transmitter struct {
	identifier stream.Identifier
	commands   chan transmitterCommand
	cache      *cache.Cache
}

func newTransmitter(id stream.Identifier, gopCacheRingLen int) *transmitter {
	return &transmitter{
		identifier: id,
		commands:   make(chan transmitterCommand),
		cache:      cache.New(gopCacheRingLen),
	}
}

// run is the transmitter's goroutine body: it multiplexes between
// incoming publisher frames and subscriber-table commands until frames
// closes (publisher gone) or stop() is called.
func (t *transmitter) run(frames <-chan stream.Frame) {
	subscribers := make(map[stream.UUID]chan<- stream.Frame)

	for {
		select {
		case f, ok := <-frames:
			if !ok {
				t.closeAll(subscribers)
				return
			}
			t.cacheFrame(f)
			t.fanOut(subscribers, f)

		case cmd, ok := <-t.commands:
			if !ok {
				t.closeAll(subscribers)
				return
			}
			switch cmd.kind {
			case txCmdAdd:
				subscribers[cmd.id] = cmd.frames
				for _, rf := range t.cache.Replay() {
					nonBlockingSend(cmd.frames, rf)
				}
			case txCmdRemove, txCmdKick:
				if ch, ok := subscribers[cmd.id]; ok {
					close(ch)
					delete(subscribers, cmd.id)
				}
			case txCmdCount:
				cmd.reply <- len(subscribers)
			}
		}
	}
}

func (t *transmitter) cacheFrame(f stream.Frame) {
	switch f.Kind {
	case stream.KindMetadata:
		t.cache.SaveMetadata(f)
	case stream.KindVideo:
		t.cache.SaveVideo(f)
	case stream.KindAudio:
		t.cache.SaveAudio(f)
	}
}

// fanOut pushes f to every subscriber channel using a non-blocking send;
// a subscriber whose channel is full is pruned on the spot, matching
// spec.md §4.7's "prune-on-error" rule — a stalled player must never
// slow down the publisher or its siblings.
func (t *transmitter) fanOut(subscribers map[stream.UUID]chan<- stream.Frame, f stream.Frame) {
	for id, ch := range subscribers {
		if !nonBlockingSend(ch, f) {
			logger.Warning("hub: pruning slow subscriber " + string(id) + " from " + t.identifier.String())
			close(ch)
			delete(subscribers, id)
		}
	}
}

func nonBlockingSend(ch chan<- stream.Frame, f stream.Frame) bool {
	select {
	case ch <- f:
		return true
	default:
		return false
	}
}

func (t *transmitter) closeAll(subscribers map[stream.UUID]chan<- stream.Frame) {
	for id, ch := range subscribers {
		close(ch)
		delete(subscribers, id)
	}
}

func (t *transmitter) addSubscriber(id stream.UUID, frames chan<- stream.Frame) {
	t.commands <- transmitterCommand{kind: txCmdAdd, id: id, frames: frames}
}

func (t *transmitter) removeSubscriber(id stream.UUID) {
	t.commands <- transmitterCommand{kind: txCmdRemove, id: id}
}

func (t *transmitter) kickSubscriber(id stream.UUID) {
	t.commands <- transmitterCommand{kind: txCmdKick, id: id}
}

func (t *transmitter) subscriberCount() int {
	reply := make(chan int, 1)
	t.commands <- transmitterCommand{kind: txCmdCount, reply: reply}
	return <-reply
}

func (t *transmitter) stop() {
	close(t.commands)
}
