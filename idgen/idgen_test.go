package idgen

import (
	"strings"
	"testing"
)

func TestUUIDv7_Unique(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]bool)
	for range 100 {
		id := gen()
		if seen[id] {
			t.Fatalf("duplicate id: %s", id)
		}
		seen[id] = true
	}
}

func TestPrefixed(t *testing.T) {
	gen := Prefixed("seg_", UUIDv7())
	id := gen()
	if !strings.HasPrefix(id, "seg_") {
		t.Fatalf("expected seg_ prefix, got %s", id)
	}
	if _, err := Parse(strings.TrimPrefix(id, "seg_")); err != nil {
		t.Fatalf("suffix is not a UUID: %v", err)
	}
}
