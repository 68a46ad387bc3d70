package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearLive777Env(t *testing.T) {
	t.Helper()
	keys := []string{
		"PORT", "READ_TIMEOUT_SEC", "WRITE_TIMEOUT_SEC", "CORS_ALLOWED_ORIGINS",
		"AUTO_CREATE_WHIP", "AUTO_CREATE_WHEP", "REFORWARD_CLOSE_SUB",
		"WEBRTC_ICE_URLS", "WEBRTC_UDP_MUX_PORT", "TURN_SECRET", "TURN_REALM", "TURN_CREDENTIAL_TTL",
		"AUTH_TOKENS", "AUTH_SECRET",
		"STREAM_IDLE_TTL", "CASCADE_IDLE_TTL", "KEYFRAME_REQUEST_INTERVAL", "NACK_UPSTREAM_INTERVAL",
		"ICE_CONNECT_TIMEOUT", "SDP_EXCHANGE_TIMEOUT",
		"DATABASE_URL", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "RECORDING_OUTPUT_DIR",
	}
	for _, k := range keys {
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearLive777Env(t)
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "7777", cfg.Server.Port)
	assert.True(t, cfg.Server.AutoCreateWhip)
	assert.False(t, cfg.Server.AutoCreateWhep)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.WebRTC.ICEUrls)
	assert.Equal(t, 8443, cfg.WebRTC.UDPMuxPort)
	assert.Equal(t, 10*time.Second, cfg.Timers.StreamIdleTTL)
	assert.Equal(t, "", cfg.Database.DSN)
}

func TestLoadReadsOverridesFromEnv(t *testing.T) {
	clearLive777Env(t)
	os.Setenv("PORT", "9000")
	os.Setenv("AUTO_CREATE_WHEP", "true")
	os.Setenv("WEBRTC_ICE_URLS", "stun:a.example.com,stun:b.example.com")
	os.Setenv("NACK_UPSTREAM_INTERVAL", "5ms")
	defer clearLive777Env(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.True(t, cfg.Server.AutoCreateWhep)
	assert.Equal(t, []string{"stun:a.example.com", "stun:b.example.com"}, cfg.WebRTC.ICEUrls)
	assert.Equal(t, 5*time.Millisecond, cfg.Timers.NackUpstreamInterval)
}

func TestSplitTrimDropsEmptyEntries(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitTrim(" a , , b ,", ","))
	assert.Nil(t, splitTrim("", ","))
}
