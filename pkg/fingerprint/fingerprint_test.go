package fingerprint

import (
	"fmt"
	"strings"
	"testing"
)

func TestSum_Deterministic(t *testing.T) {
	a := Sum([]byte("ALPHA"))
	b := Sum([]byte("ALPHA"))

	if a != b {
		t.Fatalf("identical bytes produced different fingerprints: %s vs %s", a, b)
	}
}

func TestSum_Format(t *testing.T) {
	fp := Sum([]byte("ALPHA"))

	if len(fp) != Size {
		t.Fatalf("expected %d characters, got %d", Size, len(fp))
	}
	if fp != strings.ToLower(fp) {
		t.Errorf("fingerprint is not lowercase: %s", fp)
	}
	for _, r := range fp {
		if !strings.ContainsRune("0123456789abcdef", r) {
			t.Fatalf("non-hex character %q in fingerprint %s", r, fp)
		}
	}
}

func TestSum_DistinctInputs(t *testing.T) {
	seen := make(map[string]string)
	for i := 0; i < 1000; i++ {
		input := fmt.Sprintf("document-%d", i)
		fp := Sum([]byte(input))
		if prev, ok := seen[fp]; ok {
			t.Fatalf("collision between %q and %q", prev, input)
		}
		seen[fp] = input
	}
}

func TestSum_EmptyAndNil(t *testing.T) {
	if Sum(nil) != Sum([]byte{}) {
		t.Fatal("nil and empty slice should hash identically")
	}
}
