// Package config loads Live777 configuration from the environment, with an
// optional .env file, the same getEnv/getEnvInt/splitTrim idiom the rest of
// this codebase's ancestry used for database/Redis/JWT configuration.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	WebRTC    WebRTCConfig
	Auth      AuthConfig
	Timers    TimerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Recording RecordingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string

	AutoCreateWhip   bool
	AutoCreateWhep   bool
	ReforwardCloseSub bool
}

// WebRTCConfig holds STUN/TURN ICE server URLs and the UDP mux port.
type WebRTCConfig struct {
	ICEUrls   []string
	UDPMuxPort int

	// TURNSecret, when set, enables Coturn-style per-session TURN credential
	// minting (pkg/turnauth); the minted TURN server is added alongside ICEUrls.
	TURNSecret string
	TURNRealm  string
	TURNTTL    time.Duration
}

// AuthConfig holds the uniform WHIP/WHEP/admin auth settings.
type AuthConfig struct {
	StaticTokens []string // bearer allowlist
	JWTSecret    string   // HMAC secret for stream-scoped claim JWTs
}

// TimerConfig holds every duration knob the Core's timer-driven behavior
// is tuned by: idle reaping, keyframe/NACK cadence, ICE/SDP deadlines.
type TimerConfig struct {
	StreamIdleTTL           time.Duration
	CascadeIdleTTL          time.Duration
	KeyframeRequestInterval time.Duration
	NackUpstreamInterval    time.Duration
	ICEConnectTimeout       time.Duration
	SDPExchangeTimeout      time.Duration
}

// DatabaseConfig holds the optional PostgreSQL audit-log sink settings.
// Empty DSN disables the sink entirely (see internal/webrtcsfu/audit.go).
type DatabaseConfig struct {
	DSN string
}

// RedisConfig holds the optional cross-node stream-presence hint settings.
// Empty Addr disables it (see internal/webrtcsfu/presence.go).
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RecordingConfig holds in-app recording (publisher tap) settings.
type RecordingConfig struct {
	OutputDir string
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()
	_ = godotenv.Load("env")

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "7777"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			AutoCreateWhip:     getEnvBool("AUTO_CREATE_WHIP", true),
			AutoCreateWhep:     getEnvBool("AUTO_CREATE_WHEP", false),
			ReforwardCloseSub:  getEnvBool("REFORWARD_CLOSE_SUB", false),
		},
		WebRTC: WebRTCConfig{
			ICEUrls:    splitTrim(getEnv("WEBRTC_ICE_URLS", "stun:stun.l.google.com:19302"), ","),
			UDPMuxPort: getEnvInt("WEBRTC_UDP_MUX_PORT", 8443),
			TURNSecret: getEnv("TURN_SECRET", ""),
			TURNRealm:  getEnv("TURN_REALM", "live777"),
			TURNTTL:    getEnvDuration("TURN_CREDENTIAL_TTL", 24*time.Hour),
		},
		Auth: AuthConfig{
			StaticTokens: splitTrim(getEnv("AUTH_TOKENS", ""), ","),
			JWTSecret:    getEnv("AUTH_SECRET", ""),
		},
		Timers: TimerConfig{
			StreamIdleTTL:           getEnvDuration("STREAM_IDLE_TTL", 10*time.Second),
			CascadeIdleTTL:          getEnvDuration("CASCADE_IDLE_TTL", 30*time.Second),
			KeyframeRequestInterval: getEnvDuration("KEYFRAME_REQUEST_INTERVAL", time.Second),
			NackUpstreamInterval:    getEnvDuration("NACK_UPSTREAM_INTERVAL", 20*time.Millisecond),
			ICEConnectTimeout:       getEnvDuration("ICE_CONNECT_TIMEOUT", 10*time.Second),
			SDPExchangeTimeout:      getEnvDuration("SDP_EXCHANGE_TIMEOUT", 5*time.Second),
		},
		Database: DatabaseConfig{
			DSN: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Recording: RecordingConfig{
			OutputDir: getEnv("RECORDING_OUTPUT_DIR", ""),
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
