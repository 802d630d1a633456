package restclient

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"

	"github.com/scribeflow/platform/internal/errors"
)

type transcribeRequest struct {
	Model    string `json:"model"`
	Audio    string `json:"audio"` // base64-encoded clip
	MimeType string `json:"mime_type"`
}

type transcribeResponse struct {
	Text string `json:"text"`
}

// Transcribe converts a captured audio clip into plain text via the cloud
// ASR endpoint.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType, model string) (string, error) {
	if len(audio) == 0 {
		return "", errors.New(errors.CodeValidation, "empty audio clip")
	}

	req := transcribeRequest{
		Model:    model,
		Audio:    base64.StdEncoding.EncodeToString(audio),
		MimeType: mimeType,
	}
	var resp transcribeResponse
	if err := c.postJSON(ctx, c.cfg.ASRURL, c.asrBreaker, req, &resp); err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.Text)
	slog.Debug("transcribed audio", "bytes", len(audio), "chars", len(text))
	return text, nil
}
