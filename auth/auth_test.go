// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"strings"
	"testing"
)

func TestGenerateID(t *testing.T) {
	tests := []struct {
		name    string
		byteLen int
		wantLen int // hex encoded length = byteLen * 2
	}{
		{"8 bytes", 8, 16},
		{"16 bytes", 16, 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := GenerateID(tt.byteLen)
			if err != nil {
				t.Fatalf("GenerateID() error = %v", err)
			}
			if len(id) != tt.wantLen {
				t.Errorf("GenerateID() length = %d, want %d", len(id), tt.wantLen)
			}
			for _, c := range id {
				if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
					t.Errorf("GenerateID() contains invalid hex char: %c", c)
				}
			}
		})
	}

	id1, _ := GenerateID(16)
	id2, _ := GenerateID(16)
	if id1 == id2 {
		t.Error("GenerateID() produced duplicate IDs (extremely unlikely)")
	}
}

func TestGenerateAdminKey(t *testing.T) {
	key := GenerateAdminKey("alice", "secret-salt")
	if key == "" {
		t.Fatal("GenerateAdminKey() returned empty string")
	}
	if key != GenerateAdminKey("alice", "secret-salt") {
		t.Error("GenerateAdminKey() is not deterministic")
	}
	if key == GenerateAdminKey("bob", "secret-salt") {
		t.Error("GenerateAdminKey() produced same key for different participants")
	}
	if key == GenerateAdminKey("alice", "other-salt") {
		t.Error("GenerateAdminKey() produced same key for different salts")
	}
	if strings.ContainsAny(key, "+/=") {
		t.Errorf("GenerateAdminKey() is not URL-safe: %s", key)
	}
}

func TestValidateAdminKey(t *testing.T) {
	salt := "test-salt"
	valid := GenerateAdminKey("alice", salt)

	tests := []struct {
		name          string
		participantID string
		key           string
		wantErr       bool
	}{
		{"valid key", "alice", valid, false},
		{"wrong participant", "bob", valid, true},
		{"tampered key", "alice", valid + "x", true},
		{"empty key", "alice", "", true},
		{"empty participant", "", valid, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAdminKey(tt.participantID, tt.key, salt)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAdminKey() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && err != ErrInvalidAdminKey {
				t.Errorf("ValidateAdminKey() error = %v, want ErrInvalidAdminKey", err)
			}
		})
	}
}

func TestNormalizeParticipantID(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr error
	}{
		{"plain", "alice", "alice", nil},
		{"trimmed", "  1234567890  ", "1234567890", nil},
		{"empty", "", "", ErrMissingIdentity},
		{"blank", "   ", "", ErrMissingIdentity},
		{"control char", "ali\x00ce", "", ErrInvalidIdentity},
		{"too long", strings.Repeat("a", 129), "", ErrInvalidIdentity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeParticipantID(tt.raw)
			if err != tt.wantErr {
				t.Fatalf("NormalizeParticipantID() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizeParticipantID() = %q, want %q", got, tt.want)
			}
		})
	}
}
