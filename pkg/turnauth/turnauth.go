// Package turnauth mints short-lived, Coturn-compatible TURN credentials
// using the long-term "REST API" HMAC scheme (username = expiry-timestamp
// ":" client-id, password = base64(HMAC-SHA1(secret, username))). Grounded
// on JWTService's shared-secret signing idiom, adapted to the TURN
// credential algorithm from pion/turn/v4's server-side auth examples
// referenced in the pack.
package turnauth

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"time"
)

// Credential is a minted TURN username/password pair with its expiry.
type Credential struct {
	Username string    `json:"username"`
	Password string    `json:"password"`
	TTL      int64     `json:"ttl"`
	ExpireAt time.Time `json:"expire_at"`
}

// Minter mints TURN credentials under a shared long-term secret and realm.
type Minter struct {
	secret []byte
	realm  string
	ttl    time.Duration
}

// NewMinter creates a Minter. An empty secret means TURN credential minting
// is disabled; callers should fall back to static ICE server configuration.
func NewMinter(secret, realm string, ttl time.Duration) *Minter {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Minter{secret: []byte(secret), realm: realm, ttl: ttl}
}

// Enabled reports whether credential minting is configured.
func (m *Minter) Enabled() bool { return len(m.secret) > 0 }

// Mint produces a time-limited TURN credential scoped to clientID, following
// the long-term credential REST API convention: username is
// "<unix-expiry>:<clientID>", password is base64(HMAC-SHA1(secret, username)).
func (m *Minter) Mint(clientID string) Credential {
	expireAt := time.Now().Add(m.ttl)
	username := fmt.Sprintf("%d:%s", expireAt.Unix(), clientID)

	mac := hmac.New(sha1.New, m.secret)
	mac.Write([]byte(username))
	password := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return Credential{
		Username: username,
		Password: password,
		TTL:      int64(m.ttl.Seconds()),
		ExpireAt: expireAt,
	}
}

// Realm returns the configured TURN realm, for inclusion in ICE server URLs.
func (m *Minter) Realm() string { return m.realm }
