// Package capture drives one note capture end to end: save, transcribe or
// recognize, enhance, persist. Cancellation is cooperative, checked at the
// stage boundaries, never mid-call.
package capture

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scribeflow/platform/internal/config"
	"github.com/scribeflow/platform/internal/enhance"
	"github.com/scribeflow/platform/internal/errors"
	"github.com/scribeflow/platform/internal/note"
	"github.com/scribeflow/platform/internal/syncx"
	"github.com/scribeflow/platform/internal/trace"
)

// ErrBusy is returned when a capture is requested while another is in
// flight. One pipeline at a time per session.
var ErrBusy = stderrors.New("a capture is already in flight")

// Transcriber converts audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType, model string) (string, error)
}

// Recognizer extracts text from images.
type Recognizer interface {
	RecognizeText(ctx context.Context, image []byte, mimeType, model string) (string, error)
}

// Event reports pipeline progress for streaming to the desktop app.
type Event struct {
	Type      string `json:"type"` // "stage", "done", "error"
	CaptureID string `json:"capture_id"`
	Stage     string `json:"stage,omitempty"`
	Tier      string `json:"tier,omitempty"`
	Path      string `json:"path,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Outcome is the result of one completed capture.
type Outcome struct {
	CaptureID string
	Path      string
	Result    enhance.EnhancedResult
	Multi     *enhance.MultimodalResult
	Elapsed   string
}

// Pipeline coordinates the capture stages.
type Pipeline struct {
	transcriber Transcriber
	recognizer  Recognizer
	enricher    enhance.Client
	renderer    note.Renderer
	cfg         *config.Config
	gate        syncx.Gate
	dedup       ImageDeduper
	events      chan Event
}

// New creates a pipeline over the given collaborators.
func New(transcriber Transcriber, recognizer Recognizer, enricher enhance.Client, renderer note.Renderer, cfg *config.Config) *Pipeline {
	return &Pipeline{
		transcriber: transcriber,
		recognizer:  recognizer,
		enricher:    enricher,
		renderer:    renderer,
		cfg:         cfg,
		events:      make(chan Event, EventBuffer),
	}
}

// Events returns the progress event stream.
func (p *Pipeline) Events() <-chan Event { return p.events }

// Busy reports whether a capture is currently in flight.
func (p *Pipeline) Busy() bool { return p.gate.Held() }

// CaptureAudio runs the audio-only path: save, transcribe, enhance, persist.
func (p *Pipeline) CaptureAudio(ctx context.Context, audio []byte, mimeType string) (*Outcome, error) {
	return p.runCapture(ctx, "capture_audio", func(ctx context.Context, run *run) error {
		audioFile, err := p.saveClip(run, audio, mimeType)
		if err != nil {
			return err
		}
		run.meta.AudioFile = audioFile
		run.meta.AudioBytes = len(audio)
		if err := p.checkpoint(ctx, run, "saved"); err != nil {
			return err
		}

		text, err := p.transcriber.Transcribe(ctx, audio, mimeType, run.settings.ASRModel)
		if err != nil {
			return errors.Wrap(err, errors.CodeOf(err), "transcription failed")
		}
		if err := p.checkpoint(ctx, run, "transcribed"); err != nil {
			return err
		}

		res, err := p.orchestrator(run).Enhance(ctx, text)
		if err != nil {
			return err
		}
		run.result = res
		return nil
	})
}

// CaptureImage runs the image-only path: recognize (skipping the provider
// for a near-duplicate of the previous capture), enhance, persist.
func (p *Pipeline) CaptureImage(ctx context.Context, image []byte, mimeType string) (*Outcome, error) {
	return p.runCapture(ctx, "capture_image", func(ctx context.Context, run *run) error {
		run.meta.ImageBytes = len(image)

		text, err := p.recognize(ctx, run, image, mimeType)
		if err != nil {
			return err
		}
		if err := p.checkpoint(ctx, run, "recognized"); err != nil {
			return err
		}

		res, err := p.orchestrator(run).Enhance(ctx, text)
		if err != nil {
			return err
		}
		run.result = res
		return nil
	})
}

// CaptureMultimodal runs both gateways and merges the texts. With the
// combine toggle off, enhancement sees only the speech; the recognized
// text still reaches the note as reference material.
func (p *Pipeline) CaptureMultimodal(ctx context.Context, audio []byte, audioMime string, image []byte, imageMime string) (*Outcome, error) {
	return p.runCapture(ctx, "capture_multimodal", func(ctx context.Context, run *run) error {
		audioFile, err := p.saveClip(run, audio, audioMime)
		if err != nil {
			return err
		}
		run.meta.AudioFile = audioFile
		run.meta.AudioBytes = len(audio)
		run.meta.ImageBytes = len(image)
		if err := p.checkpoint(ctx, run, "saved"); err != nil {
			return err
		}

		audioText, err := p.transcriber.Transcribe(ctx, audio, audioMime, run.settings.ASRModel)
		if err != nil {
			return errors.Wrap(err, errors.CodeOf(err), "transcription failed")
		}
		ocrText, err := p.recognize(ctx, run, image, imageMime)
		if err != nil {
			return err
		}
		if err := p.checkpoint(ctx, run, "transcribed"); err != nil {
			return err
		}

		enhanceOCR := ocrText
		if !run.settings.CombineAudioOCR && strings.TrimSpace(audioText) != "" {
			enhanceOCR = ""
		}
		multi, err := enhance.NewMerger(p.orchestrator(run)).EnhanceMultimodal(ctx, audioText, enhanceOCR)
		if err != nil {
			return err
		}
		// Provenance keeps the recognized text even when it was excluded
		// from enhancement.
		multi.OCRText = ocrText
		run.result = multi.EnhancedResult
		run.multi = &multi
		return nil
	})
}

// run holds the per-invocation state: settings snapshot, metadata, results.
type run struct {
	id       string
	settings config.Settings
	meta     note.Metadata
	result   enhance.EnhancedResult
	multi    *enhance.MultimodalResult
}

type stageFunc func(ctx context.Context, run *run) error

func (p *Pipeline) runCapture(ctx context.Context, name string, stages stageFunc) (*Outcome, error) {
	if !p.gate.TryAcquire() {
		return nil, ErrBusy
	}
	defer p.gate.Release()

	ctx, span := trace.StartSpan(ctx, name)
	defer span.End()

	start := time.Now()
	run := &run{
		id: uuid.NewString(),
		// Snapshot once: a settings change mid-flight cannot tear this run.
		settings: p.cfg.Snapshot(),
	}
	run.meta = note.Metadata{
		CaptureID: run.id,
		CreatedAt: start,
		ASRModel:  run.settings.ASRModel,
		OCRModel:  run.settings.OCRModel,
		TextModel: run.settings.TextModel,
	}
	span.SetAttr("capture_id", run.id)
	log := trace.Logger(ctx)

	if err := stages(ctx, run); err != nil {
		log.Warn("capture abandoned", "capture_id", run.id, "error", err)
		p.emit(Event{Type: "error", CaptureID: run.id, Error: err.Error()})
		return nil, err
	}

	// Last checkpoint before persistence.
	if err := p.checkpoint(ctx, run, "enhanced"); err != nil {
		return nil, err
	}

	run.meta.Elapsed = time.Since(start).Round(time.Millisecond).String()
	path, err := p.renderer.Render(ctx, note.Note{
		Result:     run.result,
		Multi:      run.multi,
		IncludeOCR: run.settings.IncludeOCRInNote,
		Meta:       run.meta,
	})
	if err != nil {
		log.Error("note persistence failed", "capture_id", run.id, "error", err)
		p.emit(Event{Type: "error", CaptureID: run.id, Error: err.Error()})
		return nil, err
	}

	log.Info("capture complete", "capture_id", run.id, "tier", run.result.Tier.String(), "path", path)
	p.emit(Event{Type: "done", CaptureID: run.id, Tier: run.result.Tier.String(), Path: path})

	return &Outcome{
		CaptureID: run.id,
		Path:      path,
		Result:    run.result,
		Multi:     run.multi,
		Elapsed:   run.meta.Elapsed,
	}, nil
}

// checkpoint is a cooperative cancellation point between stages. On
// cancellation the pipeline abandons further work and writes nothing;
// results of calls already issued are simply discarded.
func (p *Pipeline) checkpoint(ctx context.Context, run *run, stage string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.emit(Event{Type: "stage", CaptureID: run.id, Stage: stage})
	return nil
}

func (p *Pipeline) orchestrator(run *run) *enhance.Orchestrator {
	return enhance.NewOrchestrator(p.enricher, enhance.Options{
		Enabled: run.settings.EnrichEnabled,
		Model:   run.settings.TextModel,
		Retry:   run.settings.Retry,
	})
}

// recognize consults the deduper before spending a provider call.
func (p *Pipeline) recognize(ctx context.Context, run *run, image []byte, mimeType string) (string, error) {
	if text, ok := p.dedup.Lookup(image); ok {
		trace.Logger(ctx).Debug("image is a near-duplicate, reusing recognized text", "capture_id", run.id)
		return text, nil
	}

	text, err := p.recognizer.RecognizeText(ctx, image, mimeType, run.settings.OCRModel)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeOf(err), "text recognition failed")
	}
	p.dedup.Store(image, text)
	return text, nil
}

// saveClip persists the original audio under the vault when configured.
func (p *Pipeline) saveClip(run *run, audio []byte, mimeType string) (string, error) {
	if !run.settings.KeepOriginalAudio || len(audio) == 0 {
		return "", nil
	}

	dir := filepath.Join(p.cfg.VaultDir, "media")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, errors.CodeStorage, "create media directory")
	}

	path := filepath.Join(dir, fmt.Sprintf("%s%s", run.id, extensionFor(mimeType)))
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return "", errors.Wrap(err, errors.CodeStorage, "save audio clip")
	}
	return path, nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/mpeg":
		return ".mp3"
	case "audio/webm":
		return ".webm"
	case "audio/ogg":
		return ".ogg"
	default:
		return ".bin"
	}
}

func (p *Pipeline) emit(evt Event) {
	select {
	case p.events <- evt:
	default:
		// Nobody draining: progress events are advisory, drop rather than block.
	}
}

// EventBuffer bounds the progress event channel.
const EventBuffer = 64
