// Package control maintains the outbound websocket connection to an
// external coordinator server, grounded on the teacher's
// control_connection.go ControlServerConnection: it authenticates with a
// JWT carried in a request header (the teacher's
// MakeWebsocketAuthenticationToken / control_auth.go, generalized onto
// config.Config.ControlSecret), reconnects with a fixed backoff, and
// exchanges messages framed with AgustinSRG/go-simple-rpc-message.
//
// The teacher's coordinator protocol covers one thing: gating whether a
// publish is allowed (PUBLISH-REQUEST/-ACCEPT/-DENY) and telling the
// server to drop a stream (STREAM-KILL). This package keeps both and
// adds two RPCs the coordinator can issue against the hub directly —
// STATS-REQUEST (read-only) and KICK-CLIENT (disconnects a client) — so
// a coordinator can query
// and moderate the hub without a separate HTTP admin surface.
package control

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	messages "github.com/AgustinSRG/go-simple-rpc-message"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/kaelstream/rtmp-hub/internal/config"
	"github.com/kaelstream/rtmp-hub/internal/hub"
	"github.com/kaelstream/rtmp-hub/internal/logger"
	"github.com/kaelstream/rtmp-hub/internal/stream"
)

const (
	reconnectDelay  = 10 * time.Second
	heartbeatPeriod = 20 * time.Second
	requestTimeout  = 20 * time.Second
	readDeadline    = 60 * time.Second
)

// pendingRequest tracks an in-flight PUBLISH-REQUEST awaiting the
// coordinator's accept/deny reply.
type pendingRequest struct {
	waiter chan publishResponse
}

type publishResponse struct {
	accepted bool
	streamID string
}

// Connection is the outbound link to the coordinator. Construct with New
// and call Run in its own goroutine; it reconnects on its own for the
// lifetime of the process.
type Connection struct {
	hub *hub.Hub

	url    string
	secret string

	mu       sync.Mutex
	conn     *websocket.Conn
	nextID   uint64
	requests map[string]*pendingRequest

	enabled bool
}

// New builds a Connection from configuration. If cfg.ControlBaseURL is
// empty, Run returns immediately and the server operates stand-alone,
// matching the teacher's "CONTROL_BASE_URL not provided" fallback.
func New(cfg *config.Config, h *hub.Hub) *Connection {
	c := &Connection{hub: h, requests: make(map[string]*pendingRequest), secret: cfg.ControlSecret}

	if cfg.ControlBaseURL == "" {
		return c
	}
	base, err := url.Parse(cfg.ControlBaseURL)
	if err != nil {
		logger.Error(err)
		return c
	}
	path, _ := url.Parse("/ws/control/rtmp")
	c.url = base.ResolveReference(path).String()
	c.enabled = true
	return c
}

// Run connects to the coordinator and blocks, reconnecting forever on
// failure, until the process exits. It is a no-op if no coordinator was
// configured.
func (c *Connection) Run() {
	if !c.enabled {
		logger.Info("control: no coordinator configured, running stand-alone")
		return
	}
	go c.heartbeatLoop()
	c.connectLoop()
}

func (c *Connection) connectLoop() {
	for {
		if err := c.connect(); err != nil {
			logger.Warning("control: connection error: " + err.Error())
		}
		time.Sleep(reconnectDelay)
	}
}

func (c *Connection) connect() error {
	headers := http.Header{}
	if token := c.authToken(); token != "" {
		headers.Set("x-control-auth-token", token)
	}

	logger.Info("control: connecting to " + c.url)
	conn, _, err := websocket.DefaultDialer.Dial(c.url, headers)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.readLoop(conn)
	return nil
}

// authToken signs a short-lived JWT the coordinator uses to authenticate
// this connection, mirroring MakeWebsocketAuthenticationToken.
func (c *Connection) authToken() string {
	if c.secret == "" {
		return ""
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "rtmp-control"})
	signed, err := token.SignedString([]byte(c.secret))
	if err != nil {
		logger.Error(err)
		return ""
	}
	return signed
}

func (c *Connection) readLoop(conn *websocket.Conn) {
	for {
		if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
			c.onDisconnect(conn, err)
			return
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.onDisconnect(conn, err)
			return
		}
		msg := messages.ParseRPCMessage(string(data))
		c.dispatch(&msg)
	}
}

func (c *Connection) onDisconnect(conn *websocket.Conn, err error) {
	conn.Close()
	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()
	logger.Info("control: disconnected: " + err.Error())
}

func (c *Connection) dispatch(msg *messages.RPCMessage) {
	switch msg.Method {
	case "ERROR":
		logger.Warning("control: remote error " + msg.GetParam("Error-Code") + ": " + msg.GetParam("Error-Message"))
	case "PUBLISH-ACCEPT":
		c.resolveRequest(msg.GetParam("Request-Id"), publishResponse{accepted: true, streamID: msg.GetParam("Stream-Id")})
	case "PUBLISH-DENY":
		c.resolveRequest(msg.GetParam("Request-Id"), publishResponse{accepted: false})
	case "STREAM-KILL":
		c.onStreamKill(msg.GetParam("Stream-Channel"), msg.GetParam("Stream-Id"))
	case "STATS-REQUEST":
		c.onStatsRequest(msg.GetParam("Request-Id"))
	case "KICK-CLIENT":
		c.onKickClient(msg.GetParam("Request-Id"), msg.GetParam("Client-Id"))
	}
}

func (c *Connection) resolveRequest(requestID string, res publishResponse) {
	c.mu.Lock()
	req := c.requests[requestID]
	c.mu.Unlock()
	if req == nil {
		return
	}
	req.waiter <- res
}

func (c *Connection) onStreamKill(channel, streamID string) {
	if channel == "" {
		return
	}
	if err := c.hub.KillPublisher(stream.RTMP(channel, streamID)); err != nil {
		logger.DebugSession(0, "", "control: STREAM-KILL had no matching publisher for "+channel+"/"+streamID)
	}
}

func (c *Connection) onStatsRequest(requestID string) {
	stats := c.hub.Statistics()
	params := map[string]string{
		"Request-Id":  requestID,
		"Stream-Count": strconv.Itoa(len(stats)),
	}
	for i, s := range stats {
		prefix := "Stream-" + strconv.Itoa(i) + "-"
		params[prefix+"Id"] = s.Identifier.String()
		params[prefix+"Subscribers"] = strconv.Itoa(s.SubscriberCount)
	}
	c.send(messages.RPCMessage{Method: "STATS-RESPONSE", Params: params})
}

func (c *Connection) onKickClient(requestID, clientID string) {
	err := c.hub.KickClient(stream.UUID(clientID))
	result := "OK"
	if err != nil {
		result = "NOT-FOUND"
	}
	c.send(messages.RPCMessage{Method: "KICK-CLIENT-RESULT", Params: map[string]string{
		"Request-Id": requestID,
		"Result":     result,
	}})
}

// send writes msg to the coordinator connection. Returns false if not
// currently connected.
func (c *Connection) send(msg messages.RPCMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return false
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(msg.Serialize())) == nil
}

func (c *Connection) nextRequestID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	return fmt.Sprint(id)
}

// RequestPublish asks the coordinator to approve a publish attempt,
// blocking until it replies or requestTimeout elapses. If no coordinator
// is configured the publish is always approved, matching the teacher's
// stand-alone fallback.
func (c *Connection) RequestPublish(channel, key, userIP string) (approved bool, externalStreamID string) {
	if !c.enabled {
		return true, ""
	}

	requestID := c.nextRequestID()
	req := &pendingRequest{waiter: make(chan publishResponse, 1)}

	c.mu.Lock()
	c.requests[requestID] = req
	c.mu.Unlock()

	ok := c.send(messages.RPCMessage{Method: "PUBLISH-REQUEST", Params: map[string]string{
		"Request-ID":    requestID,
		"Stream-Channel": channel,
		"Stream-Key":    key,
		"User-IP":       userIP,
	}})
	if !ok {
		c.mu.Lock()
		delete(c.requests, requestID)
		c.mu.Unlock()
		return false, ""
	}

	timer := time.AfterFunc(requestTimeout, func() {
		select {
		case req.waiter <- publishResponse{accepted: false}:
		default:
		}
	})
	defer timer.Stop()

	res := <-req.waiter

	c.mu.Lock()
	delete(c.requests, requestID)
	c.mu.Unlock()

	return res.accepted, res.streamID
}

// PublishEnd tells the coordinator a publish has ended.
func (c *Connection) PublishEnd(channel, streamID string) {
	c.send(messages.RPCMessage{Method: "PUBLISH-END", Params: map[string]string{
		"Stream-Channel": channel,
		"Stream-ID":      streamID,
	}})
}

func (c *Connection) heartbeatLoop() {
	for {
		time.Sleep(heartbeatPeriod)
		c.send(messages.RPCMessage{Method: "HEARTBEAT"})
	}
}
