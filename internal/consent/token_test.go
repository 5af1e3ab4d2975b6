package consent

import (
	"strings"
	"testing"
)

func TestNewTokenShape(t *testing.T) {
	seen := make(map[string]struct{}, 256)
	for i := 0; i < 256; i++ {
		tok, err := NewToken()
		if err != nil {
			t.Fatalf("new token: %v", err)
		}
		if len(tok) != TokenLength {
			t.Fatalf("expected %d chars, got %d", TokenLength, len(tok))
		}
		if !WellFormedToken(tok) {
			t.Fatalf("token not well formed: %s", tok)
		}
		if _, ok := seen[tok]; ok {
			t.Fatalf("duplicate token %s", tok)
		}
		seen[tok] = struct{}{}
	}
}

func TestWellFormedToken(t *testing.T) {
	good := strings.Repeat("ab01", 16)
	cases := []struct {
		in   string
		want bool
	}{
		{good, true},
		{strings.ToUpper(good), false},
		{good[:63], false},
		{good + "0", false},
		{strings.Repeat("g", 64), false},
		{"", false},
		{good[:60] + "'--;", false},
	}
	for _, tc := range cases {
		if got := WellFormedToken(tc.in); got != tc.want {
			t.Fatalf("WellFormedToken(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestTokensEqual(t *testing.T) {
	a := strings.Repeat("a", 64)
	if !tokensEqual(a, a) {
		t.Fatalf("expected equal")
	}
	if tokensEqual(a, strings.Repeat("a", 63)+"b") {
		t.Fatalf("expected different")
	}
}
