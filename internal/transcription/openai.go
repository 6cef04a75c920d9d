package transcription

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Transcriber turns one audio file into text. Implementations make a single
// attempt per call; retrying is the caller's business.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// ProviderConfig describes how to reach an OpenAI-compatible transcription
// endpoint.
type ProviderConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
	Timeout  time.Duration
}

const (
	DefaultModel    = openai.Whisper1
	DefaultLanguage = "es"
)

// OpenAIClient calls /v1/audio/transcriptions. It holds no mutable state and
// is safe for concurrent use.
type OpenAIClient struct {
	client   *openai.Client
	model    string
	language string
}

// NewOpenAIClient builds a client from cfg. An API key is required unless a
// custom base URL points at a server that does not check one.
func NewOpenAIClient(cfg ProviderConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, errors.New("openai: API key is required")
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	lang := cfg.Language
	if lang == "" {
		lang = DefaultLanguage
	}

	return &OpenAIClient{
		client:   openai.NewClientWithConfig(oc),
		model:    model,
		language: lang,
	}, nil
}

// Transcribe uploads path and returns the provider's text verbatim.
func (c *OpenAIClient) Transcribe(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("transcribe %s: %w", path, err)
	}

	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.model,
		FilePath: path,
		Language: c.language,
	})
	if err != nil {
		return "", classify(err)
	}
	return resp.Text, nil
}

// classify maps a go-openai error onto a ProviderError. Anything that is not
// an API or request error never got an HTTP answer and counts as network.
func classify(err error) *ProviderError {
	pe := &ProviderError{Kind: KindNetwork, Segment: -1, Err: err}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		pe.StatusCode = apiErr.HTTPStatusCode
		pe.Kind = kindForStatus(apiErr.HTTPStatusCode)
		if code, _ := apiErr.Code.(string); code == "insufficient_quota" || apiErr.Type == "insufficient_quota" {
			pe.Kind = KindQuota
		}
	case errors.As(err, &reqErr):
		pe.StatusCode = reqErr.HTTPStatusCode
		if reqErr.HTTPStatusCode != 0 {
			pe.Kind = kindForStatus(reqErr.HTTPStatusCode)
		}
	}
	return pe
}

func kindForStatus(code int) Kind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuth
	case code == http.StatusTooManyRequests:
		return KindQuota
	case code == 0:
		return KindNetwork
	default:
		return KindRejected
	}
}
