package util

import (
	"strings"
	"testing"
)

func TestGenerateRandomID(t *testing.T) {
	tests := []struct {
		name       string
		prefix     string
		hexLength  int
		wantPrefix string
		wantLength int // expected total length: prefix + hexLength
	}{
		{
			name:       "request ID format",
			prefix:     "req_",
			hexLength:  16,
			wantPrefix: "req_",
			wantLength: 20, // 4 + 16
		},
		{
			name:       "custom prefix",
			prefix:     "test_",
			hexLength:  8,
			wantPrefix: "test_",
			wantLength: 13, // 5 + 8
		},
		{
			name:       "zero length",
			prefix:     "x_",
			hexLength:  0,
			wantPrefix: "x_",
			wantLength: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := GenerateRandomID(tt.prefix, tt.hexLength)
			if !strings.HasPrefix(id, tt.wantPrefix) {
				t.Errorf("expected prefix %q, got %q", tt.wantPrefix, id)
			}
			if len(id) != tt.wantLength {
				t.Errorf("expected length %d, got %d (%q)", tt.wantLength, len(id), id)
			}
		})
	}
}

func TestGenerateRandomHexCharset(t *testing.T) {
	hex := GenerateRandomHex(64)
	if len(hex) != 64 {
		t.Fatalf("expected 64 characters, got %d", len(hex))
	}
	for _, c := range hex {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Errorf("non-hex character %q in output", c)
		}
	}
	if GenerateRandomHex(-1) != "" {
		t.Error("negative length must return empty string")
	}
}

func TestGenerateRequestIDUniqueness(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := GenerateRequestID()
		if !strings.HasPrefix(id, "req_") {
			t.Fatalf("unexpected prefix: %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate request ID generated: %q", id)
		}
		seen[id] = true
	}
}
