package registry

import (
	"math/rand"
	"regexp"
	"strings"
	"testing"
)

var codeRe = regexp.MustCompile(`^[a-z]{2,4}-[a-z]{2,4}$`)

func TestGenerateCodeFormat(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		code := generateCode(rng)
		if !codeRe.MatchString(code) {
			t.Fatalf("code %q does not match format", code)
		}
		parts := strings.SplitN(code, "-", 2)
		if parts[0] == parts[1] {
			t.Fatalf("code %q repeats its word", code)
		}
	}
}

func TestCodeWordsArePoolShaped(t *testing.T) {
	seen := map[string]bool{}
	for _, w := range codeWords {
		if len(w) < 2 || len(w) > 4 {
			t.Fatalf("word %q out of length range", w)
		}
		if w != strings.ToLower(w) {
			t.Fatalf("word %q is not lowercase", w)
		}
		if seen[w] {
			t.Fatalf("word %q duplicated in pool", w)
		}
		seen[w] = true
	}
}
