// Package config consolidates the environment-variable knobs that the
// original rtmp-server read ad hoc throughout rtmp_server.go,
// rtmp_session_utils.go, rtmp_callback.go and redis_cmds.go into one typed
// struct, loaded through a .env file via joho/godotenv the same way the
// teacher's go.mod already depends on it.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AuthMode selects the token-verification algorithm (spec.md §6 Auth).
type AuthMode string

const (
	AuthModeNone   AuthMode = "none"
	AuthModeSimple AuthMode = "simple"
	AuthModeMD5    AuthMode = "md5"
)

// AuthDirection selects which side(s) of a stream require a token.
type AuthDirection string

const (
	AuthNone AuthDirection = "none"
	AuthPull AuthDirection = "pull"
	AuthPush AuthDirection = "push"
	AuthBoth AuthDirection = "both"
)

// Config is the full set of server knobs, loaded once at startup.
type Config struct {
	BindAddress string
	RTMPPort    int
	SSLPort     int
	SSLCert     string
	SSLKey      string

	ChunkSize       uint32
	WindowAckSize   uint32
	PeerBandwidth   uint32
	GopCacheRingLen int // spec.md §3: "N configurable, default 1"

	MaxIPConcurrentConnections uint32
	ConcurrentLimitWhitelist   string
	PlayWhitelist              string

	PingIntervalMs time.Duration
	PingTimeoutMs  time.Duration

	AuthMode      AuthMode
	AuthDirection AuthDirection
	AuthKey       string

	CallbackURL       string
	JWTSecret         string
	CustomJWTSubject  string
	JWTExpirySeconds  int64

	RedisUse      bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisChannel  string
	RedisTLS      bool

	ControlBaseURL string
	ControlSecret  string

	PendingSubscriberRetries int
	PendingSubscriberDelay   time.Duration

	// RelayPushTargets and RelayPullSources are comma-separated lists of
	// "localApp/localStream>rtmp://host[:port]/remoteApp/remoteStream"
	// entries (spec.md §4.15 relay clients). Push republishes a locally
	// live stream to the remote endpoint; pull ingests the remote stream
	// as if it had been published locally under localApp/localStream.
	RelayPushTargets string
	RelayPullSources string
}

// Load reads a .env file if present (ignoring a missing file, same as the
// teacher's deployments that run purely off real environment variables)
// and then builds a Config from the environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		BindAddress: os.Getenv("BIND_ADDRESS"),
		RTMPPort:    envInt("RTMP_PORT", 1935),
		SSLPort:     envInt("SSL_PORT", 443),
		SSLCert:     os.Getenv("SSL_CERT"),
		SSLKey:      os.Getenv("SSL_KEY"),

		ChunkSize:       uint32(envInt("RTMP_CHUNK_SIZE", 128)),
		WindowAckSize:   uint32(envInt("RTMP_WINDOW_ACK_SIZE", 2_500_000)),
		PeerBandwidth:   uint32(envInt("RTMP_PEER_BANDWIDTH", 2_500_000)),
		GopCacheRingLen: envInt("GOP_CACHE_RING_LEN", 1),

		MaxIPConcurrentConnections: uint32(envInt("MAX_IP_CONCURRENT_CONNECTIONS", 4)),
		ConcurrentLimitWhitelist:   os.Getenv("CONCURRENT_LIMIT_WHITELIST"),
		PlayWhitelist:              os.Getenv("RTMP_PLAY_WHITELIST"),

		PingIntervalMs: time.Duration(envInt("RTMP_PING_TIME_MS", 60000)) * time.Millisecond,
		PingTimeoutMs:  time.Duration(envInt("RTMP_PING_TIMEOUT_MS", 30000)) * time.Millisecond,

		AuthMode:      AuthMode(envDefault("AUTH_MODE", "none")),
		AuthDirection: AuthDirection(envDefault("AUTH_DIRECTION", "none")),
		AuthKey:       os.Getenv("AUTH_KEY"),

		CallbackURL:      os.Getenv("CALLBACK_URL"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		CustomJWTSubject: envDefault("CUSTOM_JWT_SUBJECT", "rtmp_event"),
		JWTExpirySeconds: int64(envInt("JWT_EXPIRATION_TIME_SECONDS", 120)),

		RedisUse:      os.Getenv("REDIS_USE") == "YES",
		RedisHost:     envDefault("REDIS_HOST", "localhost"),
		RedisPort:     envDefault("REDIS_PORT", "6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisChannel:  envDefault("REDIS_CHANNEL", "rtmp_commands"),
		RedisTLS:      os.Getenv("REDIS_TLS") == "YES",

		ControlBaseURL: os.Getenv("CONTROL_BASE_URL"),
		ControlSecret:  os.Getenv("CONTROL_SECRET"),

		PendingSubscriberRetries: envInt("PENDING_SUBSCRIBER_RETRIES", 10),
		PendingSubscriberDelay:   time.Duration(envInt("PENDING_SUBSCRIBER_DELAY_MS", 500)) * time.Millisecond,

		RelayPushTargets: os.Getenv("RELAY_PUSH_TARGETS"),
		RelayPullSources: os.Getenv("RELAY_PULL_SOURCES"),
	}
}

func envInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func envDefault(name, def string) string {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	return v
}
