package gateway

import (
	"strings"
	"testing"
)

func TestShortTextIsSinglePart(t *testing.T) {
	parts := splitMessage("hello", 4000)
	if len(parts) != 1 || parts[0] != "hello" {
		t.Fatalf("parts = %q", parts)
	}
}

func TestHardSplitWithoutBoundaries(t *testing.T) {
	text := strings.Repeat("a", 6000)
	parts := splitMessage(text, 4000)
	if len(parts) != 2 {
		t.Fatalf("got %d parts, want 2", len(parts))
	}
	if len(parts[0]) != 4000 || len(parts[1]) != 2000 {
		t.Fatalf("part lengths = %d, %d", len(parts[0]), len(parts[1]))
	}
	if parts[0]+parts[1] != text {
		t.Fatal("concatenation must reproduce the original")
	}
}

func TestPrefersParagraphBoundary(t *testing.T) {
	first := strings.Repeat("a", 50)
	second := strings.Repeat("b", 50)
	text := first + "\n\n" + second
	parts := splitMessage(text, 60)
	if len(parts) != 2 {
		t.Fatalf("got %d parts, want 2", len(parts))
	}
	if parts[0] != first {
		t.Fatalf("first part = %q", parts[0])
	}
	if parts[1] != second {
		t.Fatalf("continuation should have leading newlines trimmed, got %q", parts[1])
	}
}

func TestFallsBackToLineBoundary(t *testing.T) {
	first := strings.Repeat("a", 50)
	second := strings.Repeat("b", 50)
	text := first + "\n" + second
	parts := splitMessage(text, 60)
	if len(parts) != 2 {
		t.Fatalf("got %d parts, want 2", len(parts))
	}
	if parts[0] != first || parts[1] != second {
		t.Fatalf("parts = %q", parts)
	}
}

func TestPartsNeverExceedMaxAndNeverEmpty(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  int
	}{
		{"plain long", strings.Repeat("x", 10050), 4000},
		{"many short lines", strings.Repeat("line\n", 3000), 100},
		{"paragraphs", strings.Repeat("para one\n\npara two\n\n", 500), 333},
		{"leading newlines", "\n\n" + strings.Repeat("y", 300), 100},
		{"exact fit", strings.Repeat("z", 100), 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts := splitMessage(tt.text, tt.max)
			if len(parts) == 0 {
				t.Fatal("split must return at least one part")
			}
			for i, p := range parts {
				if len(p) > tt.max {
					t.Fatalf("part %d has %d bytes, max %d", i, len(p), tt.max)
				}
				if p == "" {
					t.Fatalf("part %d is empty", i)
				}
			}
			// Only separator newlines are dropped at split points; the
			// payload itself must survive in order.
			joined := strings.Join(parts, "\n")
			if stripNewlines(joined) != stripNewlines(tt.text) {
				t.Fatal("split lost or reordered content")
			}
		})
	}
}

func stripNewlines(s string) string {
	return strings.ReplaceAll(s, "\n", "")
}
