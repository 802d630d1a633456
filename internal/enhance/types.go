// Package enhance runs raw captured text through AI enrichment with a
// three-tier degradation ladder: full enhancement, basic enhancement, raw
// passthrough. Higher tiers are preferred; enrichment failure is absorbed
// here, never surfaced to the caller as an error.
package enhance

import "context"

// Tier reports how far up the degradation ladder a result landed.
type Tier int

const (
	// TierRaw means all enrichment failed or was disabled; content passes
	// through untouched.
	TierRaw Tier = iota
	// TierBasic means only the solo rewrite pass succeeded.
	TierBasic
	// TierFull means all enrichment tasks succeeded.
	TierFull
)

func (t Tier) String() string {
	return [...]string{"raw", "basic", "full"}[t]
}

// StructuredTags groups extracted entities by category. Order within a
// category is insignificant; empty categories are valid.
type StructuredTags struct {
	People    []string `json:"people" yaml:"people"`
	Events    []string `json:"events" yaml:"events"`
	Topics    []string `json:"topics" yaml:"topics"`
	Times     []string `json:"times" yaml:"times"`
	Locations []string `json:"locations" yaml:"locations"`
}

// EmptyStructuredTags returns the all-empty value used by every fallback path.
func EmptyStructuredTags() StructuredTags {
	return StructuredTags{
		People:    []string{},
		Events:    []string{},
		Topics:    []string{},
		Times:     []string{},
		Locations: []string{},
	}
}

// IsEmpty reports whether every category is empty.
func (s StructuredTags) IsEmpty() bool {
	return len(s.People) == 0 && len(s.Events) == 0 && len(s.Topics) == 0 &&
		len(s.Times) == 0 && len(s.Locations) == 0
}

// EnhancedResult is the single structured output of one enhancement run.
// Produced once per capture, never mutated afterward.
//
// Invariant: IsProcessed == false implies ProcessedText == OriginalText,
// Tags empty, StructuredTags empty, Summary equal to OriginalText (or a
// truncation of it), and SmartTitle derived locally without network calls.
type EnhancedResult struct {
	OriginalText   string
	ProcessedText  string
	Tags           []string
	StructuredTags StructuredTags
	Summary        string
	SmartTitle     string
	IsProcessed    bool
	Tier           Tier
}

// MultimodalResult extends EnhancedResult with provenance: which text came
// from speech and which from the captured image. Provenance fields are
// always populated verbatim, regardless of enrichment outcome.
type MultimodalResult struct {
	EnhancedResult
	AudioText    string
	OCRText      string
	CombinedText string
	AudioOnly    bool
	ImageOnly    bool
	Multimodal   bool
	// Elapsed is the wall-clock duration of the whole operation, reported
	// for observability only.
	Elapsed string
}

// RewriteResult is the output of the combined rewrite-and-tag task.
type RewriteResult struct {
	ProcessedText string
	Tags          []string
}

// Client is the enrichment collaborator: four independent network
// operations against a remote text-completion model.
type Client interface {
	RewriteAndTag(ctx context.Context, text, model string) (RewriteResult, error)
	ExtractStructuredTags(ctx context.Context, text, model string) (StructuredTags, error)
	Summarize(ctx context.Context, text, model string) (string, error)
	TitleOf(ctx context.Context, text, model string) (string, error)
}
