package effectors

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitMessageShort(t *testing.T) {
	chunks := splitMessage("hello", 2000)
	if len(chunks) != 1 || chunks[0] != "hello" {
		t.Fatalf("unexpected chunks: %v", chunks)
	}
}

func TestSplitMessagePrefersNewlines(t *testing.T) {
	text := strings.Repeat("line one\n", 5) + "tail"
	chunks := splitMessage(text, 20)

	for i, c := range chunks {
		if len(c) > 20 {
			t.Errorf("chunk %d over limit: %d bytes", i, len(c))
		}
		if strings.Contains(c, "line one\nline one\nline") {
			t.Errorf("chunk %d split mid-line: %q", i, c)
		}
	}
	if joined := strings.Join(chunks, "\n"); !strings.HasSuffix(joined, "tail") {
		t.Errorf("content lost: %q", joined)
	}
}

func TestSplitMessageKeepsRunesIntact(t *testing.T) {
	// 3-byte runes, no newlines; a byte-offset cut at the limit would land
	// mid-rune.
	text := strings.Repeat("日", 20)
	chunks := splitMessage(text, 10)

	var total int
	for i, c := range chunks {
		if !utf8.ValidString(c) {
			t.Errorf("chunk %d is not valid UTF-8: %q", i, c)
		}
		if len(c) > 10 {
			t.Errorf("chunk %d over limit: %d bytes", i, len(c))
		}
		total += len(c)
	}
	if total != len(text) {
		t.Errorf("content lost: %d of %d bytes", total, len(text))
	}
}

func TestSplitMessageNoNewline(t *testing.T) {
	text := strings.Repeat("x", 45)
	chunks := splitMessage(text, 20)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	if total != 45 {
		t.Errorf("content lost: %d of 45 bytes", total)
	}
}
