package turnauth

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMinterDisabledWithoutSecret(t *testing.T) {
	m := NewMinter("", "live777", time.Hour)
	assert.False(t, m.Enabled())
}

func TestNewMinterEnabledWithSecret(t *testing.T) {
	m := NewMinter("sekret", "live777", time.Hour)
	assert.True(t, m.Enabled())
	assert.Equal(t, "live777", m.Realm())
}

func TestNewMinterDefaultsTTL(t *testing.T) {
	m := NewMinter("sekret", "live777", 0)
	cred := m.Mint("client-1")
	assert.Equal(t, int64(24*time.Hour/time.Second), cred.TTL)
}

func TestMintProducesVerifiableCredential(t *testing.T) {
	m := NewMinter("sekret", "live777", time.Hour)
	cred := m.Mint("client-42")

	mac := hmac.New(sha1.New, []byte("sekret"))
	mac.Write([]byte(cred.Username))
	wantPassword := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	assert.Equal(t, wantPassword, cred.Password)
	assert.Contains(t, cred.Username, "client-42")
	assert.WithinDuration(t, time.Now().Add(time.Hour), cred.ExpireAt, 2*time.Second)
}

func TestMintUsernameEncodesExpiry(t *testing.T) {
	m := NewMinter("sekret", "live777", time.Hour)
	cred := m.Mint("client-1")

	parts := splitOnce(cred.Username, ':')
	require.Len(t, parts, 2)
	assert.Equal(t, "client-1", parts[1])
}

func splitOnce(s string, sep byte) []string {
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			return []string{s[:i], s[i+1:]}
		}
	}
	return []string{s}
}
