package enhance

import "strings"

// Local text derivation constants
const (
	// Title bounds: titles longer than TitleMaxChars are cut to
	// TitleKeepChars plus the ellipsis marker.
	TitleMaxChars  = 30
	TitleKeepChars = 27

	// BasicTitleWords is how many leading tokens a locally derived title keeps.
	BasicTitleWords = 8

	// SummaryMaxChars is the truncation boundary for fallback summaries.
	SummaryMaxChars = 200

	Ellipsis = "..."
)

// TruncateTitle enforces the title length bound. A title of exactly
// TitleMaxChars characters passes unchanged; anything longer is cut to
// TitleKeepChars plus the marker. Counts are rune-based so CJK text is
// measured in characters, not bytes.
func TruncateTitle(s string) string {
	r := []rune(s)
	if len(r) <= TitleMaxChars {
		return s
	}
	return string(r[:TitleKeepChars]) + Ellipsis
}

// BasicTitle derives a title locally from the first BasicTitleWords
// whitespace-separated tokens, bounded by TruncateTitle. Pure function,
// no network access: it is the deterministic fallback for every tier.
func BasicTitle(s string) string {
	fields := strings.Fields(s)
	if len(fields) > BasicTitleWords {
		fields = fields[:BasicTitleWords]
	}
	return TruncateTitle(strings.Join(fields, " "))
}

// TruncateSummary cuts text at SummaryMaxChars characters and appends the
// marker. Text at or under the boundary passes unchanged.
func TruncateSummary(s string) string {
	r := []rune(s)
	if len(r) <= SummaryMaxChars {
		return s
	}
	return string(r[:SummaryMaxChars]) + Ellipsis
}
