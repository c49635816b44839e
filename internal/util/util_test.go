package util

import (
	"strings"
	"testing"
	"time"
)

func TestParseBoolEnv(t *testing.T) {
	cases := []struct {
		value string
		def   bool
		want  bool
	}{
		{"", true, true},
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"off", true, false},
		{"0", true, false},
		{"banana", true, true},
	}
	for _, c := range cases {
		t.Setenv("TEST_BOOL", c.value)
		if got := ParseBoolEnv("TEST_BOOL", c.def); got != c.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", c.value, c.def, got, c.want)
		}
	}
}

func TestParseIntEnv(t *testing.T) {
	t.Setenv("TEST_INT", "5")
	if got := ParseIntEnv("TEST_INT", 3); got != 5 {
		t.Errorf("ParseIntEnv = %d, want 5", got)
	}
	t.Setenv("TEST_INT", "not a number")
	if got := ParseIntEnv("TEST_INT", 3); got != 3 {
		t.Errorf("ParseIntEnv with invalid value = %d, want default 3", got)
	}
}

func TestParseDurationEnv(t *testing.T) {
	t.Setenv("TEST_DUR", "30s")
	if got := ParseDurationEnv("TEST_DUR", time.Second); got != 30*time.Second {
		t.Errorf("ParseDurationEnv = %v, want 30s", got)
	}
	t.Setenv("TEST_DUR", "soon")
	if got := ParseDurationEnv("TEST_DUR", time.Second); got != time.Second {
		t.Errorf("ParseDurationEnv with invalid value = %v, want default 1s", got)
	}
}

func TestGenerateRandomHex(t *testing.T) {
	hex := GenerateRandomHex(32)
	if len(hex) != 32 {
		t.Errorf("expected length 32, got %d", len(hex))
	}
	for _, r := range hex {
		if !strings.ContainsRune("0123456789abcdef", r) {
			t.Errorf("unexpected character %q in hex string", r)
		}
	}
	if GenerateRandomHex(0) != "" {
		t.Error("expected empty string for zero length")
	}
}

func TestGenerateRelayID(t *testing.T) {
	id := GenerateRelayID()
	if !strings.HasPrefix(id, "rl_") {
		t.Errorf("relay ID %q missing rl_ prefix", id)
	}
	if len(id) != len("rl_")+16 {
		t.Errorf("unexpected relay ID length: %q", id)
	}
	if GenerateRelayID() == id {
		t.Error("consecutive relay IDs should differ")
	}
}
