package authn

import "time"

// DefaultTokenTTL is used when minting stream-scoped tokens via the admin API.
const DefaultTokenTTL = 24 * time.Hour

// MintPublishToken issues a JWT granting publish (and implicitly nothing
// else) on a single stream. Used by the admin surface to hand a publisher
// a scoped credential instead of the static bearer allowlist.
func (s *JWTService) MintPublishToken(streamID string) (string, error) {
	return s.Generate(streamID, []Claim{ClaimPublish}, DefaultTokenTTL)
}

// MintSubscribeToken issues a JWT granting subscribe on a single stream.
func (s *JWTService) MintSubscribeToken(streamID string) (string, error) {
	return s.Generate(streamID, []Claim{ClaimSubscribe}, DefaultTokenTTL)
}

// MintAdminToken issues a JWT granting admin (publish+subscribe+admin ops)
// on a single stream.
func (s *JWTService) MintAdminToken(streamID string) (string, error) {
	return s.Generate(streamID, []Claim{ClaimAdmin}, DefaultTokenTTL)
}
