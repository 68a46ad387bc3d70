package authn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTServiceDisabledWithoutSecret(t *testing.T) {
	svc := NewJWTService("")
	assert.False(t, svc.Enabled())
	_, err := svc.Validate("anything")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGenerateAndValidateRoundTrip(t *testing.T) {
	svc := NewJWTService("super-secret")
	token, err := svc.Generate("stream-1", []Claim{ClaimPublish, ClaimSubscribe}, time.Hour)
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "stream-1", claims.StreamID)
	assert.True(t, claims.Grants("stream-1", ClaimPublish))
	assert.True(t, claims.Grants("stream-1", ClaimSubscribe))
	assert.False(t, claims.Grants("stream-1", ClaimAdmin))
}

func TestGrantsRejectsWrongStream(t *testing.T) {
	claims := &StreamClaims{StreamID: "stream-1", Claims: []Claim{ClaimPublish}}
	assert.False(t, claims.Grants("stream-2", ClaimPublish))
}

func TestGrantsAdminWildcardImpliesEverything(t *testing.T) {
	claims := &StreamClaims{StreamID: "stream-1", Claims: []Claim{ClaimAdmin}}
	assert.True(t, claims.Grants("stream-1", ClaimPublish))
	assert.True(t, claims.Grants("stream-1", ClaimSubscribe))
	assert.True(t, claims.Grants("stream-1", ClaimAdmin))
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	svc := NewJWTService("super-secret")
	token, err := svc.Generate("stream-1", []Claim{ClaimPublish}, -time.Minute)
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.Error(t, err)
}

func TestValidateRejectsTokenFromDifferentSecret(t *testing.T) {
	svc := NewJWTService("secret-a")
	token, err := svc.Generate("stream-1", []Claim{ClaimPublish}, time.Hour)
	require.NoError(t, err)

	other := NewJWTService("secret-b")
	_, err = other.Validate(token)
	assert.Error(t, err)
}

func TestMintHelpersGrantExpectedSingleClaim(t *testing.T) {
	svc := NewJWTService("super-secret")

	pubToken, err := svc.MintPublishToken("stream-1")
	require.NoError(t, err)
	pubClaims, err := svc.Validate(pubToken)
	require.NoError(t, err)
	assert.True(t, pubClaims.Grants("stream-1", ClaimPublish))
	assert.False(t, pubClaims.Grants("stream-1", ClaimSubscribe))

	subToken, err := svc.MintSubscribeToken("stream-1")
	require.NoError(t, err)
	subClaims, err := svc.Validate(subToken)
	require.NoError(t, err)
	assert.True(t, subClaims.Grants("stream-1", ClaimSubscribe))
	assert.False(t, subClaims.Grants("stream-1", ClaimPublish))

	adminToken, err := svc.MintAdminToken("stream-1")
	require.NoError(t, err)
	adminClaims, err := svc.Validate(adminToken)
	require.NoError(t, err)
	assert.True(t, adminClaims.Grants("stream-1", ClaimPublish))
}
