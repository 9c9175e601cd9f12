package util

import (
	"strings"
	"testing"
	"time"
)

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue bool
		expected     bool
	}{
		{"true value", "true", false, true},
		{"numeric true", "1", false, true},
		{"yes value", "YES", false, true},
		{"on value", "on", false, true},
		{"false value", "false", true, false},
		{"numeric false", "0", true, false},
		{"off value", "Off", true, false},
		{"empty uses default", "", true, true},
		{"invalid uses default", "maybe", true, true},
		{"whitespace trimmed", "  true  ", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LEADCHAT_TEST_BOOL", tt.value)
			got := ParseBoolEnv("LEADCHAT_TEST_BOOL", tt.defaultValue)
			if got != tt.expected {
				t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.defaultValue, got, tt.expected)
			}
		})
	}
}

func TestParseDurationEnv(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue time.Duration
		expected     time.Duration
	}{
		{"seconds", "90s", time.Minute, 90 * time.Second},
		{"minutes", "2m", time.Minute, 2 * time.Minute},
		{"empty uses default", "", time.Minute, time.Minute},
		{"invalid uses default", "soon", time.Minute, time.Minute},
		{"bare number uses default", "60", time.Minute, time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LEADCHAT_TEST_DURATION", tt.value)
			got := ParseDurationEnv("LEADCHAT_TEST_DURATION", tt.defaultValue)
			if got != tt.expected {
				t.Errorf("ParseDurationEnv(%q, %v) = %v, want %v", tt.value, tt.defaultValue, got, tt.expected)
			}
		})
	}
}

func TestGenerateID(t *testing.T) {
	id := GenerateID("msg-", 8)
	if !strings.HasPrefix(id, "msg-") {
		t.Errorf("expected msg- prefix, got %q", id)
	}
	if len(id) != len("msg-")+8 {
		t.Errorf("expected 8 hex characters after prefix, got %q", id)
	}

	// IDs should not collide in practice.
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateID("msg-", 8)
		if seen[id] {
			t.Fatalf("duplicate ID %q", id)
		}
		seen[id] = true
	}
}

func TestGenerateHex(t *testing.T) {
	hex := GenerateHex(16)
	if len(hex) != 16 {
		t.Errorf("expected 16 characters, got %d", len(hex))
	}
	for _, c := range hex {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Errorf("unexpected character %q in hex string", c)
		}
	}

	if GenerateHex(0) != "" {
		t.Error("expected empty string for zero length")
	}
	if GenerateHex(-1) != "" {
		t.Error("expected empty string for negative length")
	}
}
