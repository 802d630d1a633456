package restclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/scribeflow/platform/internal/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		ASRURL: srv.URL + "/asr",
		OCRURL: srv.URL + "/ocr",
		LLMURL: srv.URL + "/chat",
		APIKey: "test-key",
	})
}

func chatHandler(t *testing.T, content string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want bearer credential", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		})
	}
}

func TestTranscribe(t *testing.T) {
	var gotReq transcribeRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "  hello world  "})
	})

	text, err := c.Transcribe(context.Background(), []byte("audio-bytes"), "audio/wav", "asr-1")
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "hello world" {
		t.Errorf("text = %q, want trimmed transcript", text)
	}
	if gotReq.Model != "asr-1" || gotReq.MimeType != "audio/wav" {
		t.Errorf("request = %+v", gotReq)
	}
	if decoded, _ := base64.StdEncoding.DecodeString(gotReq.Audio); string(decoded) != "audio-bytes" {
		t.Error("audio should be base64-encoded in the request")
	}
}

func TestTranscribeEmptyAudio(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be issued for empty audio")
	})

	_, err := c.Transcribe(context.Background(), nil, "audio/wav", "asr-1")
	if !errors.IsCode(err, errors.CodeValidation) {
		t.Errorf("error = %v, want validation error", err)
	}
}

func TestRecognizeText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "printed page"})
	})

	text, err := c.RecognizeText(context.Background(), []byte{0xFF, 0xD8}, "image/jpeg", "ocr-1")
	if err != nil {
		t.Fatalf("RecognizeText() error = %v", err)
	}
	if text != "printed page" {
		t.Errorf("text = %q", text)
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   errors.Code
	}{
		{http.StatusUnauthorized, errors.CodeAuth},
		{http.StatusTooManyRequests, errors.CodeRateLimit},
		{http.StatusInternalServerError, errors.CodeTransport},
	}

	for _, tt := range tests {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		})
		_, err := c.Transcribe(context.Background(), []byte("a"), "audio/wav", "m")
		if !errors.IsCode(err, tt.want) {
			t.Errorf("status %d: error = %v, want code %v", tt.status, err, tt.want)
		}
	}
}

func TestUnreachableProviderIsTransport(t *testing.T) {
	c := New(Config{ASRURL: "http://127.0.0.1:1/asr"})
	_, err := c.Transcribe(context.Background(), []byte("a"), "audio/wav", "m")
	if !errors.IsCode(err, errors.CodeTransport) {
		t.Errorf("error = %v, want transport error", err)
	}
}

func TestUndecodableBodyIsFormat(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	})
	_, err := c.Transcribe(context.Background(), []byte("a"), "audio/wav", "m")
	if !errors.IsCode(err, errors.CodeFormat) {
		t.Errorf("error = %v, want format error", err)
	}
}

func TestRewriteAndTag(t *testing.T) {
	c := newTestClient(t, chatHandler(t, `{"text": "Cleaned up note.", "tags": ["work", "meeting"]}`))

	res, err := c.RewriteAndTag(context.Background(), "messy note", "llm-1")
	if err != nil {
		t.Fatalf("RewriteAndTag() error = %v", err)
	}
	if res.ProcessedText != "Cleaned up note." {
		t.Errorf("ProcessedText = %q", res.ProcessedText)
	}
	if len(res.Tags) != 2 || res.Tags[0] != "work" {
		t.Errorf("Tags = %v", res.Tags)
	}
}

func TestRewriteAndTagFencedJSON(t *testing.T) {
	fenced := "```json\n{\"text\": \"Cleaned.\", \"tags\": []}\n```"
	c := newTestClient(t, chatHandler(t, fenced))

	res, err := c.RewriteAndTag(context.Background(), "messy", "llm-1")
	if err != nil {
		t.Fatalf("RewriteAndTag() error = %v", err)
	}
	if res.ProcessedText != "Cleaned." {
		t.Errorf("ProcessedText = %q, want fenced JSON parsed", res.ProcessedText)
	}
}

func TestRewriteAndTagMalformedIsFormat(t *testing.T) {
	c := newTestClient(t, chatHandler(t, "Sure! Here is the rewritten note."))

	_, err := c.RewriteAndTag(context.Background(), "messy", "llm-1")
	if !errors.IsCode(err, errors.CodeFormat) {
		t.Errorf("error = %v, want format error for prose response", err)
	}
}

func TestExtractStructuredTags(t *testing.T) {
	c := newTestClient(t, chatHandler(t, `{"people": ["Ana"], "events": ["standup"], "topics": [], "times": ["9am"], "locations": []}`))

	tags, err := c.ExtractStructuredTags(context.Background(), "note", "llm-1")
	if err != nil {
		t.Fatalf("ExtractStructuredTags() error = %v", err)
	}
	if len(tags.People) != 1 || tags.People[0] != "Ana" {
		t.Errorf("People = %v", tags.People)
	}
	if tags.Topics == nil || tags.Locations == nil {
		t.Error("absent categories should be normalized to empty, not nil")
	}
}

func TestExtractStructuredTagsParseRecovery(t *testing.T) {
	// Malformed JSON is a local recovery, not an error: the caller's
	// retry path must not trigger.
	c := newTestClient(t, chatHandler(t, "I could not find any entities."))

	tags, err := c.ExtractStructuredTags(context.Background(), "note", "llm-1")
	if err != nil {
		t.Fatalf("parse failure must be recovered locally, got error %v", err)
	}
	if !tags.IsEmpty() {
		t.Errorf("tags = %+v, want all empty", tags)
	}
}

func TestSummarize(t *testing.T) {
	c := newTestClient(t, chatHandler(t, "A short summary."))

	summary, err := c.Summarize(context.Background(), "long note", "llm-1")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if summary != "A short summary." {
		t.Errorf("summary = %q", summary)
	}
}

func TestTitleOfTruncates(t *testing.T) {
	long := strings.Repeat("t", 40)
	c := newTestClient(t, chatHandler(t, long))

	title, err := c.TitleOf(context.Background(), "note", "llm-1")
	if err != nil {
		t.Fatalf("TitleOf() error = %v", err)
	}
	if title != strings.Repeat("t", 27)+"..." {
		t.Errorf("title = %q, want 27 chars + ellipsis", title)
	}
}

func TestTitleOfEmptyFallsBackLocally(t *testing.T) {
	c := newTestClient(t, chatHandler(t, ""))

	title, err := c.TitleOf(context.Background(), "first second third note words", "llm-1")
	if err != nil {
		t.Fatalf("TitleOf() error = %v", err)
	}
	if title != "first second third note words" {
		t.Errorf("title = %q, want local 8-word derivation", title)
	}
}

func TestCompleteNoChoicesIsFormat(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	_, err := c.Summarize(context.Background(), "note", "llm-1")
	if !errors.IsCode(err, errors.CodeFormat) {
		t.Errorf("error = %v, want format error", err)
	}
}
