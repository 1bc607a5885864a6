package contract

import (
	"strings"
	"testing"
)

// FuzzParseKeyValues fuzzes ParseKeyValues with random comma-separated pairs.
func FuzzParseKeyValues(f *testing.F) {
	seeds := []string{
		"filename=notes.txt",
		"tag=a,tag=b,tag=c",
		"=missing",
		"novalue",
		"",
		"content={\"message\": \"jsondata\"}",
	}
	for _, seed := range seeds {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, raw string) {
		pairs := []string{}
		for p := range strings.SplitSeq(raw, ",") {
			if p != "" {
				pairs = append(pairs, p)
			}
		}
		out, err := ParseKeyValues(pairs)
		if err != nil {
			return
		}
		if len(out) > len(pairs) {
			t.Fatalf("more keys (%d) than pairs (%d)", len(out), len(pairs))
		}
	})
}

// FuzzTruncateText ensures truncation never exceeds the requested width.
func FuzzTruncateText(f *testing.F) {
	f.Add("getFile (HTTP 404): filename property is required in response", 20)
	f.Add("", 0)
	f.Add("日本語のメッセージ", 5)

	f.Fuzz(func(t *testing.T, text string, width int) {
		got := TruncateText(text, width)
		if width > 3 && len([]rune(got)) > width {
			t.Fatalf("TruncateText(%q, %d) = %q exceeds width", text, width, got)
		}
	})
}
