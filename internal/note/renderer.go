// Package note renders enhancement results into persisted markdown
// documents with YAML frontmatter.
package note

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/scribeflow/platform/internal/enhance"
	"github.com/scribeflow/platform/internal/errors"
)

// Metadata carries capture facts stamped into the frontmatter.
type Metadata struct {
	CaptureID  string
	CreatedAt  time.Time
	ASRModel   string
	OCRModel   string
	TextModel  string
	AudioBytes int
	ImageBytes int
	// AudioFile references the saved original clip, empty when discarded.
	AudioFile string
	Elapsed   string
}

// Note is one renderable capture result.
type Note struct {
	Result enhance.EnhancedResult
	// Multi is set for multimodal captures; provenance comes from here.
	Multi *enhance.MultimodalResult
	// IncludeOCR controls whether recognized image text gets its own
	// section in the body.
	IncludeOCR bool
	Meta       Metadata
}

// Renderer persists a note and returns a handle to the stored document.
type Renderer interface {
	Render(ctx context.Context, n Note) (string, error)
}

// MarkdownRenderer writes notes into a vault directory on disk.
type MarkdownRenderer struct {
	VaultDir string
}

// NewMarkdownRenderer creates a renderer rooted at vaultDir.
func NewMarkdownRenderer(vaultDir string) *MarkdownRenderer {
	return &MarkdownRenderer{VaultDir: vaultDir}
}

type frontmatter struct {
	Title      string                 `yaml:"title"`
	CaptureID  string                 `yaml:"capture_id"`
	Created    string                 `yaml:"created"`
	Tier       string                 `yaml:"tier"`
	Processed  bool                   `yaml:"processed"`
	Tags       []string               `yaml:"tags"`
	Entities   enhance.StructuredTags `yaml:"entities"`
	ASRModel   string                 `yaml:"asr_model,omitempty"`
	OCRModel   string                 `yaml:"ocr_model,omitempty"`
	TextModel  string                 `yaml:"text_model,omitempty"`
	AudioBytes int                    `yaml:"audio_bytes,omitempty"`
	ImageBytes int                    `yaml:"image_bytes,omitempty"`
	AudioFile  string                 `yaml:"audio_file,omitempty"`
	Elapsed    string                 `yaml:"elapsed,omitempty"`
	Source     string                 `yaml:"source,omitempty"`
}

// Render writes the note as markdown and returns its path. Failures are
// storage errors: reported to the caller, never retried here, and they do
// not roll back the already-computed enhancement.
func (r *MarkdownRenderer) Render(ctx context.Context, n Note) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(r.VaultDir, 0o755); err != nil {
		return "", errors.Wrap(err, errors.CodeStorage, "create vault directory")
	}

	doc, err := r.compose(n)
	if err != nil {
		return "", err
	}

	path := filepath.Join(r.VaultDir, r.filename(n))
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return "", errors.Wrap(err, errors.CodeStorage, "write note")
	}
	return path, nil
}

func (r *MarkdownRenderer) compose(n Note) (string, error) {
	fm := frontmatter{
		Title:      n.Result.SmartTitle,
		CaptureID:  n.Meta.CaptureID,
		Created:    n.Meta.CreatedAt.Format(time.RFC3339),
		Tier:       n.Result.Tier.String(),
		Processed:  n.Result.IsProcessed,
		Tags:       n.Result.Tags,
		Entities:   n.Result.StructuredTags,
		ASRModel:   n.Meta.ASRModel,
		OCRModel:   n.Meta.OCRModel,
		TextModel:  n.Meta.TextModel,
		AudioBytes: n.Meta.AudioBytes,
		ImageBytes: n.Meta.ImageBytes,
		AudioFile:  n.Meta.AudioFile,
		Elapsed:    n.Meta.Elapsed,
	}
	if n.Multi != nil {
		fm.Source = sourceOf(n.Multi)
	}

	head, err := yaml.Marshal(fm)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeStorage, "encode frontmatter")
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(head)
	b.WriteString("---\n\n")

	b.WriteString("# " + n.Result.SmartTitle + "\n\n")
	b.WriteString(n.Result.ProcessedText + "\n")

	if n.Result.IsProcessed && n.Result.Summary != "" {
		b.WriteString("\n## Summary\n\n" + n.Result.Summary + "\n")
	}

	if n.Result.IsProcessed && n.Result.ProcessedText != n.Result.OriginalText {
		b.WriteString("\n## Original\n\n" + n.Result.OriginalText + "\n")
	}

	if n.IncludeOCR && n.Multi != nil && n.Multi.OCRText != "" && !n.Multi.ImageOnly {
		b.WriteString("\n## Reference material\n\n" + n.Multi.OCRText + "\n")
	}

	return b.String(), nil
}

func (r *MarkdownRenderer) filename(n Note) string {
	stamp := n.Meta.CreatedAt.Format("2006-01-02-150405")
	slug := slugify(n.Result.SmartTitle)
	if slug == "" {
		slug = "note"
	}
	return fmt.Sprintf("%s-%s.md", stamp, slug)
}

func sourceOf(m *enhance.MultimodalResult) string {
	switch {
	case m.Multimodal:
		return "audio+image"
	case m.ImageOnly:
		return "image"
	default:
		return "audio"
	}
}

// slugify keeps letters and digits, folding everything else into hyphens.
func slugify(s string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r > 127:
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
