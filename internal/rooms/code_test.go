package rooms

import (
	"strings"
	"testing"
)

func TestGenerateCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		code := GenerateCode()
		if len(code) != CodeLength {
			t.Fatalf("code %q has length %d, want %d", code, len(code), CodeLength)
		}
		for _, r := range code {
			if !strings.ContainsRune(codeAlphabet, r) {
				t.Fatalf("code %q contains %q, outside the alphabet", code, r)
			}
		}
		seen[code] = true
	}
	if len(seen) < 90 {
		t.Errorf("only %d distinct codes out of 100 draws", len(seen))
	}
}

func TestShareLinkRoundTrip(t *testing.T) {
	link := ShareLink("https://quiz.example.com/play", "AB12CD")
	if got := CodeFromURL(link); got != "AB12CD" {
		t.Fatalf("CodeFromURL(%q) = %q, want AB12CD", link, got)
	}
}

func TestCodeFromURL(t *testing.T) {
	cases := []struct {
		raw, want string
	}{
		{"https://quiz.example.com/?room=XYZ123", "XYZ123"},
		{"https://quiz.example.com/?other=XYZ123", ""},
		{"https://quiz.example.com/", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := CodeFromURL(c.raw); got != c.want {
			t.Errorf("CodeFromURL(%q) = %q, want %q", c.raw, got, c.want)
		}
	}
}
