package restclient

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/scribeflow/platform/internal/enhance"
	"github.com/scribeflow/platform/internal/errors"
)

// Enrichment instructions. Each operation is one independent completion
// call; the model identifier comes from the caller's settings snapshot.
const (
	rewritePrompt = "Rewrite the following note into clear, well-punctuated prose without " +
		"changing its meaning, and extract a few short topical tags. Respond with a JSON " +
		`object of the form {"text": "...", "tags": ["..."]} and nothing else.`

	structuredTagsPrompt = "Extract entities from the following note. Respond with a JSON " +
		`object of the form {"people": [], "events": [], "topics": [], "times": [], ` +
		`"locations": []} and nothing else.`

	summaryPrompt = "Summarize the following note in one or two sentences, in its own language."

	titlePrompt = "Write a very short title (at most a few words) for the following note, " +
		"in its own language. Respond with the title only."
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// complete issues one chat completion and returns the trimmed content.
func (c *Client) complete(ctx context.Context, instruction, text, model string) (string, error) {
	req := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: instruction},
			{Role: "user", Content: text},
		},
		Temperature: enrichTemperature,
	}

	var resp chatResponse
	if err := c.postJSON(ctx, c.cfg.LLMURL, c.llmBreaker, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New(errors.CodeFormat, "completion has no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

type rewritePayload struct {
	Text string   `json:"text"`
	Tags []string `json:"tags"`
}

// RewriteAndTag rewrites the note and extracts flat tags in a single call.
func (c *Client) RewriteAndTag(ctx context.Context, text, model string) (enhance.RewriteResult, error) {
	content, err := c.complete(ctx, rewritePrompt, text, model)
	if err != nil {
		return enhance.RewriteResult{}, err
	}

	var payload rewritePayload
	if err := json.Unmarshal(extractJSON(content), &payload); err != nil {
		return enhance.RewriteResult{}, errors.Wrap(err, errors.CodeFormat, "rewrite response is not the expected JSON")
	}
	if payload.Text == "" {
		return enhance.RewriteResult{}, errors.New(errors.CodeFormat, "rewrite response has empty text")
	}
	if payload.Tags == nil {
		payload.Tags = []string{}
	}
	return enhance.RewriteResult{ProcessedText: payload.Text, Tags: payload.Tags}, nil
}

// ExtractStructuredTags extracts categorized entities. A malformed JSON
// body is recovered locally as all-empty sets; that is not an error and
// must not trigger the caller's retry path.
func (c *Client) ExtractStructuredTags(ctx context.Context, text, model string) (enhance.StructuredTags, error) {
	content, err := c.complete(ctx, structuredTagsPrompt, text, model)
	if err != nil {
		return enhance.StructuredTags{}, err
	}

	var tags enhance.StructuredTags
	if err := json.Unmarshal(extractJSON(content), &tags); err != nil {
		slog.Debug("structured tag parse failed, recovering with empty sets", "error", err)
		return enhance.EmptyStructuredTags(), nil
	}
	return normalizeTags(tags), nil
}

// Summarize produces a short abstract of the note.
func (c *Client) Summarize(ctx context.Context, text, model string) (string, error) {
	summary, err := c.complete(ctx, summaryPrompt, text, model)
	if err != nil {
		return "", err
	}
	if summary == "" {
		return "", errors.New(errors.CodeFormat, "empty summary")
	}
	return summary, nil
}

// TitleOf produces a short title, truncated at the length boundary. An
// empty remote title falls back to local derivation from the note itself.
func (c *Client) TitleOf(ctx context.Context, text, model string) (string, error) {
	title, err := c.complete(ctx, titlePrompt, text, model)
	if err != nil {
		return "", err
	}
	title = strings.Trim(title, `"`)
	if title == "" {
		return enhance.BasicTitle(text), nil
	}
	return enhance.TruncateTitle(title), nil
}

// extractJSON strips markdown fences and surrounding prose, keeping the
// outermost JSON object. Models wrap JSON in ```json fences often enough
// that decoding the raw content directly is not reliable.
func extractJSON(content string) []byte {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end <= start {
		return []byte(content)
	}
	return []byte(content[start : end+1])
}

func normalizeTags(tags enhance.StructuredTags) enhance.StructuredTags {
	if tags.People == nil {
		tags.People = []string{}
	}
	if tags.Events == nil {
		tags.Events = []string{}
	}
	if tags.Topics == nil {
		tags.Topics = []string{}
	}
	if tags.Times == nil {
		tags.Times = []string{}
	}
	if tags.Locations == nil {
		tags.Locations = []string{}
	}
	return tags
}
