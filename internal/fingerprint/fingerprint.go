// Package fingerprint validates and computes the SHA-256 fingerprints that
// identify notarized assets.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"strings"

	"webmarcas-backend/internal/apperr"
)

var sha256Pattern = regexp.MustCompile(`^[a-fA-F0-9]{64}$`)

// IsValidSHA256 reports whether s is a 64 character hex string, in any case.
func IsValidSHA256(s string) bool {
	return sha256Pattern.MatchString(s)
}

// Normalize trims and lowercases a hash, rejecting anything that is not a
// SHA-256 hex digest.
func Normalize(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", apperr.Validation("hash is required")
	}
	if !IsValidSHA256(s) {
		return "", apperr.Validation("hash must be a 64 character hexadecimal SHA-256 digest")
	}
	return strings.ToLower(s), nil
}

// Compute streams r and returns its lowercase hex SHA-256 digest.
func Compute(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to hash content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Digest decodes a normalized hash into its 32 raw bytes.
func Digest(hash string) ([]byte, error) {
	normalized, err := Normalize(hash)
	if err != nil {
		return nil, err
	}
	return hex.DecodeString(normalized)
}
