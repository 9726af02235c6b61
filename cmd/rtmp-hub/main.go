// Command rtmp-hub is the server entry point: it loads configuration,
// starts the stream hub actor, opens the RTMP/RTMPS listeners, and wires
// in the optional Redis command receiver and coordinator control
// connection, grounded on the teacher's main.go/rtmp_server.go
// (CreateRTMPServer + server.Start()), generalized into explicit
// goroutines per concern instead of one monolithic RTMPServer.Start
// WaitGroup, and extended with a clean-shutdown path on SIGINT/SIGTERM
// that the teacher's version never implements.
package main

import (
	"context"
	"crypto/tls"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/kaelstream/rtmp-hub/internal/auth"
	"github.com/kaelstream/rtmp-hub/internal/config"
	"github.com/kaelstream/rtmp-hub/internal/control"
	"github.com/kaelstream/rtmp-hub/internal/hub"
	"github.com/kaelstream/rtmp-hub/internal/logger"
	"github.com/kaelstream/rtmp-hub/internal/notify"
	"github.com/kaelstream/rtmp-hub/internal/redisrecv"
	"github.com/kaelstream/rtmp-hub/internal/relay"
	"github.com/kaelstream/rtmp-hub/internal/rtmpserver"
	"github.com/kaelstream/rtmp-hub/internal/rtmpsession"
	"github.com/kaelstream/rtmp-hub/internal/stream"
	"github.com/kaelstream/rtmp-hub/internal/tlscert"
)

func main() {
	logger.Info("RTMP hub starting")

	cfg := config.Load()

	h := hub.New(cfg.GopCacheRingLen)
	go h.Run()

	deps := rtmpsession.Deps{
		Hub:      h,
		Auth:     auth.New(cfg),
		Notifier: notify.New(cfg),
		Config:   cfg,
	}

	srv := rtmpserver.New(deps, cfg.MaxIPConcurrentConnections, cfg.ConcurrentLimitWhitelist)

	listener, err := net.Listen("tcp", cfg.BindAddress+":"+strconv.Itoa(cfg.RTMPPort))
	if err != nil {
		logger.Error(err)
		os.Exit(1)
	}
	logger.Info("RTMP listening on " + cfg.BindAddress + ":" + strconv.Itoa(cfg.RTMPPort))
	go srv.Serve(listener)

	if cfg.SSLCert != "" && cfg.SSLKey != "" {
		loader, err := tlscert.New(cfg.SSLCert, cfg.SSLKey, 60)
		if err != nil {
			logger.Error(err)
		} else {
			sslListener, err := net.Listen("tcp", cfg.BindAddress+":"+strconv.Itoa(cfg.SSLPort))
			if err != nil {
				logger.Error(err)
			} else {
				tlsListener := tls.NewListener(sslListener, loader.TLSConfig())
				logger.Info("RTMPS listening on " + cfg.BindAddress + ":" + strconv.Itoa(cfg.SSLPort))
				go srv.Serve(tlsListener)
			}
		}
	}

	ctrl := control.New(cfg, h)
	go ctrl.Run()

	ctx, cancel := context.WithCancel(context.Background())
	recv := redisrecv.New(cfg, h)
	go recv.Run(ctx)

	startRelays(ctx, h, cfg)

	waitForShutdown()
	cancel()
	logger.Info("RTMP hub shutting down")
}

// startRelays launches one goroutine per RELAY_PUSH_TARGETS/
// RELAY_PULL_SOURCES entry. A malformed destination or source URL is
// logged and skipped rather than aborting startup.
func startRelays(ctx context.Context, h *hub.Hub, cfg *config.Config) {
	for _, m := range relay.ParseMappings(cfg.RelayPushTargets) {
		id := stream.RTMP(m.LocalApp, m.LocalStream)
		r, err := relay.NewPush(h, id, m.RemoteURL)
		if err != nil {
			logger.Error(err)
			continue
		}
		logger.Info("relay: pushing " + id.Key() + " to " + m.RemoteURL)
		go r.Run(ctx)
	}
	for _, m := range relay.ParseMappings(cfg.RelayPullSources) {
		id := stream.RTMP(m.LocalApp, m.LocalStream)
		r, err := relay.NewPull(h, id, m.RemoteURL)
		if err != nil {
			logger.Error(err)
			continue
		}
		logger.Info("relay: pulling " + m.RemoteURL + " as " + id.Key())
		go r.Run(ctx)
	}
}

func waitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}
