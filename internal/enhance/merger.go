package enhance

import (
	"context"
	"strings"
	"time"

	"github.com/scribeflow/platform/internal/errors"
)

// Combined-prompt labels. Speech first, reference material second, always
// in that order: the speaker's words are the subject, the captured image is
// context.
const (
	speechLabel    = "Speech:"
	referenceLabel = "Reference material:"

	// multimodalInstruction frames the combined prompt for the rewrite
	// task. The priority ordering here is deliberate, not incidental.
	multimodalInstruction = "The text below contains a spoken note and reference material " +
		"the speaker was reading. The speech is the primary subject; use the reference " +
		"material only as supporting context to interpret the speaker's intent.\n\n"
)

// Merger decides whether captured input is audio-only, image-only, or
// combined, and routes it through the enhancement ladder with provenance
// attached.
type Merger struct {
	orch *Orchestrator
}

// NewMerger creates a merger over the same settings snapshot as orch.
func NewMerger(orch *Orchestrator) *Merger {
	return &Merger{orch: orch}
}

// CombineTexts builds the labeled combined block: speech section if
// present, then reference section if present, blank-line separated.
func CombineTexts(audioText, ocrText string) string {
	var parts []string
	if audioText != "" {
		parts = append(parts, speechLabel+"\n"+audioText)
	}
	if ocrText != "" {
		parts = append(parts, referenceLabel+"\n"+ocrText)
	}
	return strings.Join(parts, "\n\n")
}

// EnhanceMultimodal classifies the input, runs the appropriate enhancement
// path, and attaches provenance. Rejects only when both inputs are empty;
// enrichment failure degrades exactly as in the single-content path, over
// the combined text.
func (m *Merger) EnhanceMultimodal(ctx context.Context, audioText, ocrText string) (MultimodalResult, error) {
	start := time.Now()

	audioText = strings.TrimSpace(audioText)
	ocrText = strings.TrimSpace(ocrText)
	if audioText == "" && ocrText == "" {
		return MultimodalResult{}, errors.New(errors.CodeValidation, "no audio text and no image text")
	}

	res := MultimodalResult{
		AudioText:    audioText,
		OCRText:      ocrText,
		CombinedText: CombineTexts(audioText, ocrText),
		AudioOnly:    audioText != "" && ocrText == "",
		ImageOnly:    audioText == "" && ocrText != "",
		Multimodal:   audioText != "" && ocrText != "",
	}

	switch {
	case !m.orch.opts.Enabled:
		// Zero network calls: combined text passes straight through.
		res.EnhancedResult = m.orch.rawResult(res.CombinedText)
	case res.Multimodal:
		// Composite prompt for the rewrite task; the remaining tasks and
		// every fallback operate on the combined text itself.
		prompt := multimodalInstruction + res.CombinedText
		res.EnhancedResult = m.orch.run(ctx, res.CombinedText, prompt)
	case res.AudioOnly:
		res.EnhancedResult = m.orch.run(ctx, audioText, audioText)
	default:
		res.EnhancedResult = m.orch.run(ctx, ocrText, ocrText)
	}

	res.Elapsed = time.Since(start).Round(time.Millisecond).String()
	return res, nil
}
