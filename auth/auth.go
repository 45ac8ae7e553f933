// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidAdminKey = errors.New("invalid admin key")
	ErrMissingIdentity = errors.New("missing participant identity")
	ErrInvalidIdentity = errors.New("invalid participant identity")
)

const maxParticipantIDLen = 128

// GenerateID creates a random hex ID of the specified byte length
func GenerateID(byteLen int) (string, error) {
	b := make([]byte, byteLen)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate random ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateAdminKey creates an HMAC-based admin key for a participant.
// Deterministic, so an operator can hand it out once from the CLI.
func GenerateAdminKey(participantID, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte("admin:"))
	h.Write([]byte(participantID))
	sum := h.Sum(nil)
	// URL-safe base64 without padding
	return strings.TrimRight(base64.URLEncoding.EncodeToString(sum), "=")
}

// ValidateAdminKey checks the admin key presented by a participant
func ValidateAdminKey(participantID, adminKey, salt string) error {
	if participantID == "" || adminKey == "" {
		return ErrInvalidAdminKey
	}
	expected := GenerateAdminKey(participantID, salt)
	if !hmac.Equal([]byte(adminKey), []byte(expected)) {
		return ErrInvalidAdminKey
	}
	return nil
}

// NormalizeParticipantID trims and checks a participant identifier taken
// from a request header.
func NormalizeParticipantID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", ErrMissingIdentity
	}
	if len(id) > maxParticipantIDLen {
		return "", ErrInvalidIdentity
	}
	for _, r := range id {
		if r < 0x20 || r == 0x7f {
			return "", ErrInvalidIdentity
		}
	}
	return id, nil
}
