// Package relay implements outbound RTMP client roles that bridge the
// hub to a remote RTMP endpoint (spec.md §4.8's relay clients): a push
// relay republishes a locally live stream to a remote server, and a
// pull relay ingests a remote stream into the local hub as if it had
// been published here directly.
//
// The teacher has no outbound-dialing code at all (its RTMPSession/
// RTMPServer only ever accept connections), so this package is built
// from the same building blocks a server-side session uses —
// internal/handshake's ClientHandshake, internal/chunk's Packer/
// Unpacker, internal/message's command/media builders — driven in the
// client direction instead of the server direction, reusing the
// teacher's connect/createStream/publish/play command shapes from
// rtmp_session.go's server-side handlers mirrored onto the wire.
package relay

import (
	"context"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/kaelstream/rtmp-hub/internal/amf0"
	"github.com/kaelstream/rtmp-hub/internal/bytesio"
	"github.com/kaelstream/rtmp-hub/internal/chunk"
	"github.com/kaelstream/rtmp-hub/internal/handshake"
	"github.com/kaelstream/rtmp-hub/internal/hub"
	"github.com/kaelstream/rtmp-hub/internal/logger"
	"github.com/kaelstream/rtmp-hub/internal/message"
	"github.com/kaelstream/rtmp-hub/internal/rtmperrors"
	"github.com/kaelstream/rtmp-hub/internal/stream"
)

const (
	dialTimeout    = 10 * time.Second
	reconnectDelay = 5 * time.Second
	readTimeout    = 10 * time.Second
	frameChanSize  = 256
)

// target is a parsed "rtmp://host[:port]/app/streamName" relay address.
type target struct {
	addr       string
	app        string
	streamName string
}

// parseTarget parses a relay URL, grounded on the wire shape
// rtmpsession.splitStreamPath already assumes for local publish/play
// keys (app/name), generalized to include the host.
func parseTarget(raw string) (target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return target{}, rtmperrors.Wrap(rtmperrors.KindParse, "relay.parseTarget", err)
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "1935"
	}
	path := strings.TrimPrefix(u.Path, "/")
	app, name, ok := strings.Cut(path, "/")
	if !ok {
		return target{}, rtmperrors.New(rtmperrors.KindParse, "relay.parseTarget: expected rtmp://host/app/stream")
	}
	return target{addr: net.JoinHostPort(host, port), app: app, streamName: name}, nil
}

// Mapping is one parsed entry of a config.Config.RelayPushTargets or
// RelayPullSources list: a local stream paired with a remote RTMP URL.
type Mapping struct {
	LocalApp    string
	LocalStream string
	RemoteURL   string
}

// ParseMappings parses a comma-separated
// "localApp/localStream>rtmp://host/app/stream" list, as carried by
// config.Config.RelayPushTargets and RelayPullSources. Malformed
// entries are skipped with a logged warning rather than aborting the
// whole list, since one bad entry in an operator-supplied env var
// shouldn't take down every other relay.
func ParseMappings(raw string) []Mapping {
	var out []Mapping
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		local, remote, ok := strings.Cut(entry, ">")
		if !ok {
			logger.Warning("relay: malformed mapping entry, expected local/path>rtmp://... : " + entry)
			continue
		}
		app, name, ok := strings.Cut(strings.TrimPrefix(local, "/"), "/")
		if !ok {
			logger.Warning("relay: malformed local stream path in mapping entry: " + entry)
			continue
		}
		out = append(out, Mapping{LocalApp: app, LocalStream: name, RemoteURL: remote})
	}
	return out
}

// clientConn is one outbound RTMP connection's chunk-engine plumbing,
// shared by the push and pull relay roles.
type clientConn struct {
	conn     *bytesio.Conn
	unpacker *chunk.Unpacker
	packer   *chunk.Packer
	streamID uint32
}

func dial(addr string) (*clientConn, error) {
	raw, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, rtmperrors.Wrap(rtmperrors.KindIO, "relay.dial", err)
	}
	c := bytesio.NewConn(raw, readTimeout)
	if err := handshake.ClientHandshake(c, true); err != nil {
		raw.Close()
		return nil, err
	}
	return &clientConn{conn: c, unpacker: chunk.NewUnpacker(), packer: chunk.NewPacker(128)}, nil
}

func (c *clientConn) close() { c.conn.Close() }

func (c *clientConn) sendCommand(streamID uint32, cmd *message.Command) error {
	payload, err := message.EncodeCommand(cmd)
	if err != nil {
		return err
	}
	return c.send(message.CommandMessage(streamID, payload))
}

func (c *clientConn) send(msg *chunk.Message) error {
	_, err := c.conn.Write(c.packer.Pack(msg))
	if err != nil {
		return rtmperrors.Wrap(rtmperrors.KindIO, "relay.send", err)
	}
	return nil
}

// awaitCommand reads messages until one carrying an AMF0/AMF3 command
// with the given name, or any onStatus command, arrives, skipping
// everything else (protocol control messages, media that may arrive on
// the connection's other streams). Used to wait for a _result reply; an
// onStatus received first is returned in its place.
func (c *clientConn) awaitCommand(name string) (*message.Command, error) {
	for {
		msg, err := c.unpacker.ReadMessage(c.conn)
		if err != nil {
			return nil, err
		}
		if !message.IsCommand(msg.TypeID) {
			continue
		}
		payload := msg.Payload
		if msg.TypeID == message.TypeCommandAMF3 && len(payload) > 1 {
			payload = payload[1:]
		}
		cmd, err := message.DecodeCommand(payload)
		if err != nil {
			continue
		}
		if cmd.Name == name || cmd.Name == "onStatus" {
			return cmd, nil
		}
	}
}

func (c *clientConn) connect(app string) error {
	obj := amf0.NewOrderedMap()
	obj.Set("app", amf0.String(app))
	obj.Set("type", amf0.String("nonprivate"))
	if err := c.sendCommand(0, &message.Command{Name: "connect", TransactionID: 1, CommandObject: amf0.Object(obj)}); err != nil {
		return err
	}
	_, err := c.awaitCommand("_result")
	return err
}

func (c *clientConn) createStream() (uint32, error) {
	if err := c.sendCommand(0, &message.Command{Name: "createStream", TransactionID: 2, CommandObject: amf0.Null()}); err != nil {
		return 0, err
	}
	result, err := c.awaitCommand("_result")
	if err != nil {
		return 0, err
	}
	return uint32(result.Arg(0).GetNumber()), nil
}

// PushRelay subscribes to a locally live stream and republishes it to a
// remote RTMP endpoint.
type PushRelay struct {
	hub        *hub.Hub
	identifier stream.Identifier
	target     target
}

// NewPush builds a push relay for identifier that republishes to destURL
// ("rtmp://host[:port]/app/streamName"). Each attempt dials and publishes
// remotely before subscribing locally; while the local stream is not
// live the attempt fails and is retried after reconnectDelay.
func NewPush(h *hub.Hub, identifier stream.Identifier, destURL string) (*PushRelay, error) {
	t, err := parseTarget(destURL)
	if err != nil {
		return nil, err
	}
	return &PushRelay{hub: h, identifier: identifier, target: t}, nil
}

// Run subscribes to the hub and relays until ctx is cancelled,
// reconnecting with a fixed backoff whenever the outbound connection or
// the local subscription drops.
func (p *PushRelay) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := p.runOnce(ctx); err != nil {
			logger.Warning("relay: push to " + p.target.addr + " failed: " + err.Error())
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (p *PushRelay) runOnce(ctx context.Context) error {
	cc, err := dial(p.target.addr)
	if err != nil {
		return err
	}
	defer cc.close()

	if err := cc.connect(p.target.app); err != nil {
		return err
	}
	streamID, err := cc.createStream()
	if err != nil {
		return err
	}
	cc.streamID = streamID

	obj := amf0.String(p.target.streamName)
	if err := cc.sendCommand(streamID, &message.Command{
		Name: "publish", TransactionID: 0, CommandObject: amf0.Null(),
		Arguments: []*amf0.Value{obj, amf0.String("live")},
	}); err != nil {
		return err
	}

	frames := make(chan stream.Frame, frameChanSize)
	subscriberID := stream.NewUUID(6)
	if err := p.hub.Subscribe(hub.Subscription{
		Identifier: p.identifier,
		Info:       hub.Info{ID: subscriberID, Protocol: p.identifier.Protocol},
		Frames:     frames,
	}); err != nil {
		return err
	}
	defer p.hub.Unsubscribe(subscriberID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case f, ok := <-frames:
			if !ok {
				return nil
			}
			if err := cc.send(frameMessage(streamID, f)); err != nil {
				return err
			}
		}
	}
}

func frameMessage(streamID uint32, f stream.Frame) *chunk.Message {
	switch f.Kind {
	case stream.KindAudio:
		return message.Audio(streamID, f.Timestamp, f.Data)
	case stream.KindVideo:
		return message.Video(streamID, f.Timestamp, f.Data)
	default:
		return message.Data(streamID, f.Data)
	}
}

// PullRelay dials a remote RTMP endpoint, plays its stream, and
// publishes the received frames into the local hub under identifier.
type PullRelay struct {
	hub        *hub.Hub
	identifier stream.Identifier
	target     target
}

// NewPull builds a pull relay publishing srcURL's stream locally as
// identifier.
func NewPull(h *hub.Hub, identifier stream.Identifier, srcURL string) (*PullRelay, error) {
	t, err := parseTarget(srcURL)
	if err != nil {
		return nil, err
	}
	return &PullRelay{hub: h, identifier: identifier, target: t}, nil
}

// Run dials, plays, and republishes into the hub until ctx is
// cancelled, reconnecting with a fixed backoff on any failure.
func (p *PullRelay) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := p.runOnce(ctx); err != nil {
			logger.Warning("relay: pull from " + p.target.addr + " failed: " + err.Error())
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (p *PullRelay) runOnce(ctx context.Context) error {
	cc, err := dial(p.target.addr)
	if err != nil {
		return err
	}
	defer cc.close()

	if err := cc.connect(p.target.app); err != nil {
		return err
	}
	streamID, err := cc.createStream()
	if err != nil {
		return err
	}
	cc.streamID = streamID

	if err := cc.sendCommand(streamID, &message.Command{
		Name: "play", TransactionID: 0, CommandObject: amf0.Null(),
		Arguments: []*amf0.Value{amf0.String(p.target.streamName)},
	}); err != nil {
		return err
	}

	frames := make(chan stream.Frame, frameChanSize)
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(done)
		cc.close()
	}()

	if err := p.hub.Publish(hub.Publication{
		Identifier: p.identifier,
		Info:       hub.Info{ID: stream.NewUUID(6), Protocol: p.identifier.Protocol},
		Frames:     frames,
		Kill:       func() { cc.close() },
	}); err != nil {
		close(frames)
		return err
	}
	defer p.hub.Unpublish(p.identifier)
	defer close(frames)

	for {
		msg, err := cc.unpacker.ReadMessage(cc.conn)
		if err != nil {
			return err
		}
		switch msg.TypeID {
		case message.TypeAudio:
			nonBlockingSend(frames, stream.Audio(msg.Timestamp, msg.Payload))
		case message.TypeVideo:
			nonBlockingSend(frames, stream.Video(msg.Timestamp, msg.Payload))
		case message.TypeDataAMF0:
			nonBlockingSend(frames, stream.Metadata(msg.Timestamp, msg.Payload))
		}
	}
}

func nonBlockingSend(ch chan<- stream.Frame, f stream.Frame) {
	select {
	case ch <- f:
	default:
		logger.Debug("relay: dropping frame, subscriber channel full")
	}
}
