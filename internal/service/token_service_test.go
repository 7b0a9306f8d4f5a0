package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTTokenService_GenerateAndValidate(t *testing.T) {
	svc := NewJWTTokenService("test-secret-key", time.Hour, "merchant-payout-platform")

	merchantID := uuid.New()
	token, expiry, err := svc.Generate(merchantID, "ops@merchant.example")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiry, 5*time.Second)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, merchantID, claims.MerchantID)
	assert.Equal(t, "ops@merchant.example", claims.Email)
}

func TestJWTTokenService_Validate_WrongSecret(t *testing.T) {
	svc := NewJWTTokenService("correct-secret", time.Hour, "test")
	other := NewJWTTokenService("wrong-secret", time.Hour, "test")

	token, _, err := svc.Generate(uuid.New(), "a@b.c")
	require.NoError(t, err)

	_, err = other.Validate(token)
	assert.Error(t, err)
}

func TestJWTTokenService_Validate_Expired(t *testing.T) {
	svc := NewJWTTokenService("secret", -time.Minute, "test")

	token, _, err := svc.Generate(uuid.New(), "a@b.c")
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.Error(t, err)
}

func TestJWTTokenService_Validate_Garbage(t *testing.T) {
	svc := NewJWTTokenService("secret", time.Hour, "test")

	_, err := svc.Validate("not-a-jwt")
	assert.Error(t, err)
}
