package restclient

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"

	"github.com/scribeflow/platform/internal/errors"
)

type recognizeRequest struct {
	Model    string `json:"model"`
	Image    string `json:"image"` // base64-encoded image
	MimeType string `json:"mime_type"`
}

type recognizeResponse struct {
	Text string `json:"text"`
}

// RecognizeText extracts readable text from a captured image via the cloud
// vision endpoint.
func (c *Client) RecognizeText(ctx context.Context, image []byte, mimeType, model string) (string, error) {
	if len(image) == 0 {
		return "", errors.New(errors.CodeValidation, "empty image")
	}

	req := recognizeRequest{
		Model:    model,
		Image:    base64.StdEncoding.EncodeToString(image),
		MimeType: mimeType,
	}
	var resp recognizeResponse
	if err := c.postJSON(ctx, c.cfg.OCRURL, c.ocrBreaker, req, &resp); err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.Text)
	slog.Debug("recognized image text", "bytes", len(image), "chars", len(text))
	return text, nil
}
