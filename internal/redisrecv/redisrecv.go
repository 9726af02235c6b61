// Package redisrecv subscribes to a Redis pub/sub channel carrying
// out-of-band admin commands (kill-session, close-stream), grounded on
// the teacher's redis_cmds.go (setupRedisCommandReceiver/
// parseRedisCommand), generalized from the teacher's "channel"
// addressing into an RTMP stream.Identifier built from an
// "app/streamName" path. Only RTMP publishers can be addressed; RTSP and
// WebRTC publishers are not reachable through these commands.
package redisrecv

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kaelstream/rtmp-hub/internal/config"
	"github.com/kaelstream/rtmp-hub/internal/hub"
	"github.com/kaelstream/rtmp-hub/internal/logger"
	"github.com/kaelstream/rtmp-hub/internal/stream"
)

const reconnectDelay = 10 * time.Second

// Receiver listens for admin commands on a Redis channel and applies
// them against the hub.
type Receiver struct {
	hub     *hub.Hub
	client  *redis.Client
	channel string
	enabled bool
}

// New builds a Receiver from configuration. Run is a no-op if
// cfg.RedisUse is false, matching the teacher's "not using redis" early
// return.
func New(cfg *config.Config, h *hub.Hub) *Receiver {
	if !cfg.RedisUse {
		return &Receiver{enabled: false}
	}

	opts := &redis.Options{
		Addr:     cfg.RedisHost + ":" + cfg.RedisPort,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{}
	}

	return &Receiver{
		hub:     h,
		client:  redis.NewClient(opts),
		channel: cfg.RedisChannel,
		enabled: true,
	}
}

// Run subscribes and processes messages until ctx is cancelled,
// reconnecting with a fixed backoff on any receive error, matching the
// teacher's retry-forever loop around subscriber.ReceiveMessage.
func (r *Receiver) Run(ctx context.Context) {
	if !r.enabled {
		return
	}

	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	logger.Info("redis: listening for commands on channel '" + r.channel + "'")

	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warning("redis: receive error: " + err.Error())
			time.Sleep(reconnectDelay)
			continue
		}
		r.parse(msg.Payload)
	}
}

// parse handles one command in the "name>arg1|arg2" wire shape the
// teacher's parseRedisCommand defines. The teacher addresses a publisher
// by "channel" alone (one live publisher per RTMP app); this hub allows
// several streams per app, so the first argument is instead the full
// "app/streamName" path identifying one specific stream.
func (r *Receiver) parse(cmd string) {
	parts := strings.SplitN(cmd, ">", 2)
	if len(parts) != 2 {
		logger.Warning("redis: invalid message: " + cmd)
		return
	}

	name := parts[0]
	args := strings.Split(parts[1], "|")

	switch name {
	case "kill-session":
		if len(args) < 1 {
			logger.Warning("redis: invalid kill-session message: " + cmd)
			return
		}
		r.killPath(args[0])
	case "close-stream":
		if len(args) < 1 {
			logger.Warning("redis: invalid close-stream message: " + cmd)
			return
		}
		r.killPath(args[0])
	default:
		logger.Warning("redis: unknown command: " + name)
	}
}

// killPath kills the live RTMP publisher addressed by an "app/streamName"
// path.
func (r *Receiver) killPath(path string) {
	app, name, ok := strings.Cut(path, "/")
	if !ok {
		logger.Warning("redis: expected \"app/streamName\", got: " + path)
		return
	}
	if err := r.hub.KillPublisher(stream.RTMP(app, name)); err != nil {
		logger.DebugSession(0, "", "redis: no live publisher for "+path)
	}
}
