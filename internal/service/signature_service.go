package service

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"merchant-payout-platform/pkg/apperror"
)

// MD5SignatureService implements ports.SignatureService using the SilkPay
// wire format: ordered fields concatenated without separators, secret
// appended last, MD5, lowercase hex.
type MD5SignatureService struct{}

// NewMD5SignatureService creates a new SilkPay signature service.
func NewMD5SignatureService() *MD5SignatureService {
	return &MD5SignatureService{}
}

// Sign computes the digest for the ordered fields. An empty field means the
// caller forgot a required parameter, so it fails instead of silently
// signing a shorter string.
func (s *MD5SignatureService) Sign(secret string, fields ...string) (string, error) {
	if secret == "" {
		return "", apperror.Validation("signing secret is required")
	}
	var sb strings.Builder
	for i, f := range fields {
		if f == "" {
			return "", apperror.Validation(fmt.Sprintf("signature field %d is empty", i))
		}
		sb.WriteString(f)
	}
	sb.WriteString(secret)

	sum := md5.Sum([]byte(sb.String()))
	return hex.EncodeToString(sum[:]), nil
}

// Verify recomputes the digest and compares it to provided. The comparison
// is case-insensitive (gateways have sent both casings) and constant-time.
func (s *MD5SignatureService) Verify(secret string, provided string, fields ...string) (bool, error) {
	if provided == "" {
		return false, nil
	}
	expected, err := s.Sign(secret, fields...)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(provided))) == 1, nil
}
