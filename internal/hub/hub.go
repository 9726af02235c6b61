// Package hub implements the stream hub: a single-goroutine actor owning
// the registry of live publishers and subscribers, and the per-stream
// transmitter fan-out (spec.md §4.7/§5), grounded on
// original_source/library/streamhub/src/define.rs's StreamHubEvent/
// TransmitterEvent taxonomy and original_source/library/streamhub/src/
// stream_hub.rs's event loop, re-expressed with the teacher's
// goroutine-per-connection and channel idioms in place of Rust's tokio
// mpsc/broadcast channels. The teacher's RTMPServer instead guards a
// `map[string]*RTMPSession` registry behind a sync.Mutex (AddPlayer/
// SetPublisher/RemovePlayer in rtmp_server.go); this package keeps that
// registry shape but makes it owned exclusively by one goroutine message
// loop instead of shared-memory locking, per spec.md's explicit
// actor-model requirement.
package hub

import (
	"github.com/kaelstream/rtmp-hub/internal/logger"
	"github.com/kaelstream/rtmp-hub/internal/rtmperrors"
	"github.com/kaelstream/rtmp-hub/internal/stream"
)

// subscriberChanSize is a reference capacity for subscriber channels. The
// hub does not allocate those channels itself and does not use this
// constant: each subscriber passes its own channel, and the transmitter
// drops a subscriber as soon as that channel is full, mirroring the
// teacher's non-blocking SendCachePacket discipline (a stalled player must
// never block the publisher).
const subscriberChanSize = 1024

// Info describes a publisher or subscriber for statistics and
// notifications, the Go shape of PublisherInfo/SubscriberInfo.
type Info struct {
	ID       stream.UUID
	Protocol stream.Protocol
	RemoteIP string
}

// Publication is what a publishing session hands the hub: a channel the
// session will push Frames onto, and an optional Kill callback the hub
// invokes if the control plane forces the publisher to stop (the
// STREAM-KILL / ApiKickClient path) — the session is expected to close
// its connection and call Unpublish in response, mirroring the teacher's
// RTMPPublisher.Kill.
type Publication struct {
	Identifier stream.Identifier
	Info       Info
	Frames     <-chan stream.Frame
	Kill       func()
}

// Subscription is what a subscribing session hands the hub: the channel
// it wants Frames delivered on.
type Subscription struct {
	Identifier stream.Identifier
	Info       Info
	Frames     chan<- stream.Frame
}

// event is the hub's internal message type — the Go equivalent of
// StreamHubEvent, carried over one unbuffered command channel so the
// hub goroutine processes exactly one registry mutation at a time.
type event struct {
	kind         eventKind
	publish      *Publication
	subscribe    *Subscription
	identifier   stream.Identifier
	subscriberID stream.UUID
	kickID       stream.UUID
	statsReply   chan []StreamStat
	done         chan error
}

type eventKind int

const (
	eventPublish eventKind = iota
	eventUnpublish
	eventSubscribe
	eventUnsubscribe
	eventStatistics
	eventKickClient
	eventKillPublisher
)

// StreamStat is one row of the hub's statistics snapshot (spec.md §6's
// Statistics API).
type StreamStat struct {
	Identifier      stream.Identifier
	PublisherID     stream.UUID
	SubscriberCount int
}

// Hub is the stream registry actor. Construct with New and call Run in
// its own goroutine; every other method sends an event over the command
// channel and is safe to call from any goroutine.
type Hub struct {
	commands        chan event
	gopCacheRingLen int
}

// New creates a Hub whose per-stream GOP cache ring holds up to
// gopCacheRingLen Gops (config.Config.GopCacheRingLen, spec.md §3).
// Callers must start Run before using any method.
func New(gopCacheRingLen int) *Hub {
	return &Hub{commands: make(chan event), gopCacheRingLen: gopCacheRingLen}
}

// registeredStream is the hub's per-stream bookkeeping: the active
// transmitter (if a publisher is live) and its control channel.
type registeredStream struct {
	publisherID stream.UUID
	transmitter *transmitter
	kill        func()
}

// Run is the hub's message loop; it owns streams exclusively and must
// run in one dedicated goroutine for the hub's lifetime.
func (h *Hub) Run() {
	streams := make(map[string]*registeredStream)
	// clientsByID lets ApiKickClient find a subscriber's owning stream
	// without a linear scan of every registeredStream's transmitter.
	clientsByID := make(map[stream.UUID]string)

	for ev := range h.commands {
		switch ev.kind {
		case eventPublish:
			h.handlePublish(streams, clientsByID, ev)
		case eventUnpublish:
			h.handleUnpublish(streams, clientsByID, ev)
		case eventSubscribe:
			h.handleSubscribe(streams, clientsByID, ev)
		case eventUnsubscribe:
			h.handleUnsubscribe(streams, clientsByID, ev)
		case eventStatistics:
			h.handleStatistics(streams, ev)
		case eventKickClient:
			h.handleKickClient(streams, clientsByID, ev)
		case eventKillPublisher:
			h.handleKillPublisher(streams, ev)
		}
	}
}

func (h *Hub) handlePublish(streams map[string]*registeredStream, clientsByID map[stream.UUID]string, ev event) {
	key := ev.publish.Identifier.Key()
	if existing, ok := streams[key]; ok && existing.transmitter != nil {
		logger.Info("hub: rejecting duplicate publisher for " + ev.publish.Identifier.String())
		ev.done <- rtmperrors.New(rtmperrors.KindExists, "hub.Publish: stream already has a publisher")
		return
	}

	tx := newTransmitter(ev.publish.Identifier, h.gopCacheRingLen)
	streams[key] = &registeredStream{publisherID: ev.publish.Info.ID, transmitter: tx, kill: ev.publish.Kill}
	// Registering the publisher's own ID in clientsByID lets ApiKickClient
	// (spec.md §4.7) address a publisher the same way it addresses a
	// subscriber, instead of requiring the separate identifier-keyed
	// KillPublisher API.
	clientsByID[ev.publish.Info.ID] = key
	go tx.run(ev.publish.Frames)
	logger.Info("hub: publish started for " + ev.publish.Identifier.String())
	ev.done <- nil
}

func (h *Hub) handleUnpublish(streams map[string]*registeredStream, clientsByID map[stream.UUID]string, ev event) {
	key := ev.identifier.Key()
	rs, ok := streams[key]
	if !ok {
		ev.done <- nil
		return
	}
	rs.transmitter.stop()
	delete(streams, key)
	for id, k := range clientsByID {
		if k == key {
			delete(clientsByID, id)
		}
	}
	logger.Info("hub: publish ended for " + ev.identifier.String())
	ev.done <- nil
}

func (h *Hub) handleSubscribe(streams map[string]*registeredStream, clientsByID map[stream.UUID]string, ev event) {
	key := ev.subscribe.Identifier.Key()
	rs, ok := streams[key]
	if !ok || rs.transmitter == nil {
		ev.done <- rtmperrors.New(rtmperrors.KindNotFound, "hub.Subscribe: no live publisher for stream")
		return
	}
	rs.transmitter.addSubscriber(ev.subscribe.Info.ID, ev.subscribe.Frames)
	clientsByID[ev.subscribe.Info.ID] = key
	ev.done <- nil
}

func (h *Hub) handleUnsubscribe(streams map[string]*registeredStream, clientsByID map[stream.UUID]string, ev event) {
	key, ok := clientsByID[ev.subscriberID]
	if !ok {
		ev.done <- nil
		return
	}
	delete(clientsByID, ev.subscriberID)
	if rs, ok := streams[key]; ok && rs.transmitter != nil {
		rs.transmitter.removeSubscriber(ev.subscriberID)
	}
	ev.done <- nil
}

func (h *Hub) handleStatistics(streams map[string]*registeredStream, ev event) {
	out := make([]StreamStat, 0, len(streams))
	for _, rs := range streams {
		if rs.transmitter == nil {
			continue
		}
		out = append(out, StreamStat{
			Identifier:      rs.transmitter.identifier,
			PublisherID:     rs.publisherID,
			SubscriberCount: rs.transmitter.subscriberCount(),
		})
	}
	ev.statsReply <- out
}

// handleKickClient implements ApiKickClient (spec.md §4.7): broadcast to
// all transmitters, each removes the matching subscriber or publisher;
// if the removed role was the publisher, the transmitter
// self-terminates.
func (h *Hub) handleKickClient(streams map[string]*registeredStream, clientsByID map[stream.UUID]string, ev event) {
	key, ok := clientsByID[ev.kickID]
	if !ok {
		ev.done <- rtmperrors.New(rtmperrors.KindNotFound, "hub.KickClient: unknown client id")
		return
	}
	rs, ok := streams[key]
	if !ok {
		delete(clientsByID, ev.kickID)
		ev.done <- nil
		return
	}

	if rs.publisherID == ev.kickID {
		if rs.kill != nil {
			rs.kill()
		}
		rs.transmitter.stop()
		delete(streams, key)
		for id, k := range clientsByID {
			if k == key {
				delete(clientsByID, id)
			}
		}
		logger.Info("hub: kicked publisher, transmitter for " + key + " self-terminated")
		ev.done <- nil
		return
	}

	rs.transmitter.kickSubscriber(ev.kickID)
	delete(clientsByID, ev.kickID)
	ev.done <- nil
}

func (h *Hub) handleKillPublisher(streams map[string]*registeredStream, ev event) {
	key := ev.identifier.Key()
	rs, ok := streams[key]
	if !ok {
		ev.done <- rtmperrors.New(rtmperrors.KindNotFound, "hub.KillPublisher: no live publisher for stream")
		return
	}
	if rs.kill != nil {
		rs.kill()
	}
	ev.done <- nil
}

// Publish registers a new publisher and starts its transmitter. It
// returns an error (KindExists) if the stream already has a live
// publisher, per spec.md §4.7's publisher-uniqueness invariant.
func (h *Hub) Publish(p Publication) error {
	done := make(chan error, 1)
	h.commands <- event{kind: eventPublish, publish: &p, done: done}
	return <-done
}

// Unpublish removes a publisher and tears down its transmitter, pruning
// every subscriber (which observes its channel close).
func (h *Hub) Unpublish(id stream.Identifier) {
	done := make(chan error, 1)
	h.commands <- event{kind: eventUnpublish, identifier: id, done: done}
	<-done
}

// Subscribe registers a new subscriber against a live stream. Returns
// KindNotFound if no publisher is currently live for identifier.
func (h *Hub) Subscribe(s Subscription) error {
	done := make(chan error, 1)
	h.commands <- event{kind: eventSubscribe, subscribe: &s, done: done}
	return <-done
}

// Unsubscribe removes a subscriber by ID.
func (h *Hub) Unsubscribe(subscriberID stream.UUID) {
	done := make(chan error, 1)
	h.commands <- event{kind: eventUnsubscribe, subscriberID: subscriberID, done: done}
	<-done
}

// Statistics returns a snapshot of every live stream (spec.md §6's
// Statistics API, the ApiStatistic event).
func (h *Hub) Statistics() []StreamStat {
	reply := make(chan []StreamStat, 1)
	h.commands <- event{kind: eventStatistics, statsReply: reply}
	return <-reply
}

// KickClient forcibly disconnects a subscriber or publisher by ID
// (ApiKickClient, spec.md §4.7). Kicking a publisher tears down its
// transmitter, which in turn closes every subscriber's channel.
func (h *Hub) KickClient(id stream.UUID) error {
	done := make(chan error, 1)
	h.commands <- event{kind: eventKickClient, kickID: id, done: done}
	return <-done
}

// KillPublisher forcibly disconnects the live publisher of identifier, if
// any, by invoking the Kill callback it registered with Publish — the
// control plane's STREAM-KILL path. Returns KindNotFound if no publisher
// is currently live for identifier.
func (h *Hub) KillPublisher(id stream.Identifier) error {
	done := make(chan error, 1)
	h.commands <- event{kind: eventKillPublisher, identifier: id, done: done}
	return <-done
}
