package jobs

import (
	"strings"
	"testing"
)

func TestGenerateID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateID("gen-")
		if !strings.HasPrefix(id, "gen-") {
			t.Fatalf("id %q missing prefix", id)
		}
		if len(id) != len("gen-")+32 {
			t.Fatalf("id %q has length %d", id, len(id))
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
