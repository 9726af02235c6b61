// Package rtmpserver owns the TCP/TLS accept loops that turn incoming
// connections into rtmpsession.Session instances, grounded on the
// teacher's rtmp_server.go (CreateRTMPServer/AcceptConnections/AddIP/
// isIPExempted/NextSessionID), generalized so the session-ID counter and
// per-IP concurrency limiter are reusable independent of how the
// listener itself was constructed (plain TCP vs the tlscert-backed TLS
// listener).
package rtmpserver

import (
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/netdata/go.d.plugin/pkg/iprange"

	"github.com/kaelstream/rtmp-hub/internal/logger"
	"github.com/kaelstream/rtmp-hub/internal/rtmpsession"
)

// ipLimiter enforces config.Config.MaxIPConcurrentConnections,
// mirroring the teacher's AddIP/RemoveIP/isIPExempted trio.
type ipLimiter struct {
	mu        sync.Mutex
	counts    map[string]uint32
	limit     uint32
	whitelist string
}

func newIPLimiter(limit uint32, whitelist string) *ipLimiter {
	return &ipLimiter{counts: make(map[string]uint32), limit: limit, whitelist: whitelist}
}

func (l *ipLimiter) acquire(ip string) bool {
	if l.limit == 0 || l.exempted(ip) {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts[ip] >= l.limit {
		return false
	}
	l.counts[ip]++
	return true
}

func (l *ipLimiter) release(ip string) {
	if l.limit == 0 || l.exempted(ip) {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts[ip] <= 1 {
		delete(l.counts, ip)
	} else {
		l.counts[ip]--
	}
}

func (l *ipLimiter) exempted(ipStr string) bool {
	if l.whitelist == "" {
		return false
	}
	if l.whitelist == "*" {
		return true
	}
	ip := net.ParseIP(ipStr)
	for _, part := range strings.Split(l.whitelist, ",") {
		rang, err := iprange.ParseRange(part)
		if err != nil {
			logger.Error(err)
			continue
		}
		if rang.Contains(ip) {
			return true
		}
	}
	return false
}

// Server accepts connections on one or more net.Listeners and spawns an
// rtmpsession.Session for each.
type Server struct {
	deps    rtmpsession.Deps
	limiter *ipLimiter
	nextID  uint64
}

// New builds a Server. maxIPConns of 0 disables the per-IP concurrency
// limit.
func New(deps rtmpsession.Deps, maxIPConns uint32, ipWhitelist string) *Server {
	return &Server{deps: deps, limiter: newIPLimiter(maxIPConns, ipWhitelist)}
}

// Serve accepts connections on listener until it errors or is closed,
// running until the caller closes listener. Intended to be called in its
// own goroutine, once per listener (plain TCP and TLS).
func (s *Server) Serve(listener net.Listener) {
	defer listener.Close()
	for {
		conn, err := listener.Accept()
		if err != nil {
			logger.Error(err)
			return
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	id := atomic.AddUint64(&s.nextID, 1)
	ip := remoteIP(conn)

	if !s.limiter.acquire(ip) {
		logger.Session(id, ip, "connection rejected: too many concurrent connections")
		conn.Close()
		return
	}
	defer s.limiter.release(ip)

	logger.DebugSession(id, ip, "connection accepted")
	session := rtmpsession.New(s.deps, id, ip, conn)
	if err := session.Run(); err != nil {
		logger.DebugSession(id, ip, "connection closed: "+err.Error())
	}
}

func remoteIP(conn net.Conn) string {
	if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		return addr.IP.String()
	}
	return conn.RemoteAddr().String()
}
