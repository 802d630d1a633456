package enhance

import (
	"strings"
	"testing"
)

func TestTruncateTitleBoundary(t *testing.T) {
	exact := strings.Repeat("a", 30)
	if got := TruncateTitle(exact); got != exact {
		t.Errorf("30-char title should pass unchanged, got %q", got)
	}

	long := strings.Repeat("a", 31)
	got := TruncateTitle(long)
	if got != strings.Repeat("a", 27)+"..." {
		t.Errorf("TruncateTitle(31 chars) = %q, want 27 chars + ellipsis", got)
	}
	if len([]rune(got)) != 30 {
		t.Errorf("truncated length = %d runes, want 30", len([]rune(got)))
	}
}

func TestTruncateTitleCJK(t *testing.T) {
	// 31 CJK characters must be measured as characters, not bytes.
	long := strings.Repeat("会", 31)
	got := TruncateTitle(long)
	if got != strings.Repeat("会", 27)+"..." {
		t.Errorf("TruncateTitle(CJK) = %q, want 27 chars + ellipsis", got)
	}
}

func TestBasicTitle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short", "quick note", "quick note"},
		{"eight words kept", "one two three four five six seven eight nine ten", "one two three four five six..."},
		{"no whitespace cjk", "今天开会讨论了项目进度", "今天开会讨论了项目进度"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BasicTitle(tt.in); got != tt.want {
				t.Errorf("BasicTitle(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBasicTitleBounded(t *testing.T) {
	in := "supercalifragilistic expialidocious antidisestablishmentarianism words"
	got := BasicTitle(in)
	if len([]rune(got)) > TitleMaxChars {
		t.Errorf("BasicTitle length = %d, want <= %d", len([]rune(got)), TitleMaxChars)
	}
}

func TestTruncateSummaryBoundary(t *testing.T) {
	exact := strings.Repeat("x", 200)
	if got := TruncateSummary(exact); got != exact {
		t.Error("exactly 200 chars must not truncate")
	}

	over := strings.Repeat("x", 201)
	got := TruncateSummary(over)
	if got != strings.Repeat("x", 200)+"..." {
		t.Errorf("TruncateSummary(201) = %d chars, want 200 + ellipsis", len(got))
	}
}

func TestTruncateSummaryShortUnchanged(t *testing.T) {
	if got := TruncateSummary("short text"); got != "short text" {
		t.Errorf("TruncateSummary(short) = %q, want unchanged", got)
	}
}
