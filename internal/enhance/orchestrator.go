package enhance

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/scribeflow/platform/internal/errors"
	"github.com/scribeflow/platform/internal/resilience"
)

// Options is the read-only configuration snapshot for one enhancement run.
// Captured once at construction so a settings change mid-flight cannot
// produce a torn read across the parallel tasks.
type Options struct {
	// Enabled toggles enrichment. Disabled runs return raw results with
	// zero network calls.
	Enabled bool
	// Model is the text-completion model identifier.
	Model string
	// Retry bounds each enrichment task.
	Retry resilience.Policy
}

// Orchestrator runs the enrichment tasks for a single piece of content and
// reconciles failures into one consistent result.
type Orchestrator struct {
	client Client
	opts   Options
}

// NewOrchestrator creates an orchestrator over a snapshot of settings.
func NewOrchestrator(client Client, opts Options) *Orchestrator {
	return &Orchestrator{client: client, opts: opts}
}

// Enhance runs the full ladder for plain text. The only error it returns
// is validation of the input itself; enrichment failure degrades instead.
func (o *Orchestrator) Enhance(ctx context.Context, rawText string) (EnhancedResult, error) {
	if strings.TrimSpace(rawText) == "" {
		return EnhancedResult{}, errors.New(errors.CodeValidation, "empty input text")
	}
	if !o.opts.Enabled {
		return o.rawResult(rawText), nil
	}
	return o.run(ctx, rawText, rawText), nil
}

// run executes the ladder. rewriteInput is what the rewrite task sees; the
// multimodal merger passes a composite prompt there while the other tasks
// and all fallbacks operate on rawText.
func (o *Orchestrator) run(ctx context.Context, rawText, rewriteInput string) EnhancedResult {
	if full, ok := o.runParallelBatch(ctx, rawText, rewriteInput); ok {
		return full
	}

	// Degraded pass: solo rewrite-and-tag, alone, once more through the
	// retry controller.
	rw, err := resilience.DoValue(ctx, o.opts.Retry, func(ctx context.Context) (RewriteResult, error) {
		return o.client.RewriteAndTag(ctx, rewriteInput, o.opts.Model)
	})
	if err != nil {
		slog.Warn("enrichment fully degraded to raw passthrough", "error", err)
		return o.rawResult(rawText)
	}

	slog.Info("enrichment degraded to basic", "model", o.opts.Model)
	return EnhancedResult{
		OriginalText:   rawText,
		ProcessedText:  rw.ProcessedText,
		Tags:           rw.Tags,
		StructuredTags: EmptyStructuredTags(),
		Summary:        TruncateSummary(rawText),
		SmartTitle:     BasicTitle(rawText),
		IsProcessed:    true,
		Tier:           TierBasic,
	}
}

// runParallelBatch fires the four enrichment tasks concurrently, each
// independently wrapped in the retry policy, and joins them. Each task owns
// its input and its result slot; nothing is shared while in flight. The
// batch succeeds only as a unit: any exhausted task discards the others'
// results and fails the batch.
func (o *Orchestrator) runParallelBatch(ctx context.Context, rawText, rewriteInput string) (EnhancedResult, bool) {
	var (
		rw     RewriteResult
		tags   StructuredTags
		sum    string
		title  string
		errs   [4]error
		wg     sync.WaitGroup
		policy = o.opts.Retry
		model  = o.opts.Model
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		rw, errs[0] = resilience.DoValue(ctx, policy, func(ctx context.Context) (RewriteResult, error) {
			return o.client.RewriteAndTag(ctx, rewriteInput, model)
		})
	}()
	go func() {
		defer wg.Done()
		tags, errs[1] = resilience.DoValue(ctx, policy, func(ctx context.Context) (StructuredTags, error) {
			return o.client.ExtractStructuredTags(ctx, rawText, model)
		})
	}()
	go func() {
		defer wg.Done()
		sum, errs[2] = resilience.DoValue(ctx, policy, func(ctx context.Context) (string, error) {
			return o.client.Summarize(ctx, rawText, model)
		})
	}()
	go func() {
		defer wg.Done()
		title, errs[3] = resilience.DoValue(ctx, policy, func(ctx context.Context) (string, error) {
			return o.client.TitleOf(ctx, rawText, model)
		})
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			slog.Warn("enrichment batch failed", "error", err)
			return EnhancedResult{}, false
		}
	}

	return EnhancedResult{
		OriginalText:   rawText,
		ProcessedText:  rw.ProcessedText,
		Tags:           rw.Tags,
		StructuredTags: tags,
		Summary:        sum,
		SmartTitle:     TruncateTitle(title),
		IsProcessed:    true,
		Tier:           TierFull,
	}, true
}

// rawResult builds the bottom-tier passthrough satisfying the
// IsProcessed=false invariant. Title derivation is purely local.
func (o *Orchestrator) rawResult(rawText string) EnhancedResult {
	return EnhancedResult{
		OriginalText:   rawText,
		ProcessedText:  rawText,
		Tags:           []string{},
		StructuredTags: EmptyStructuredTags(),
		Summary:        rawText,
		SmartTitle:     BasicTitle(rawText),
		IsProcessed:    false,
		Tier:           TierRaw,
	}
}
