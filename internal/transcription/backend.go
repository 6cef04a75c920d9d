package transcription

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/audio"
)

// NewBackend builds the Transcriber named by backend: "openai", "whisper" or
// "whisper+openai" (local model first, hosted provider on failure).
func NewBackend(backend string, runner audio.Runner, provider ProviderConfig, whisper WhisperConfig, log zerolog.Logger) (Transcriber, error) {
	switch backend {
	case "", "openai":
		return NewOpenAIClient(provider)
	case "whisper":
		return NewWhisperCLI(runner, whisper), nil
	case "whisper+openai":
		remote, err := NewOpenAIClient(provider)
		if err != nil {
			return nil, err
		}
		return &Fallback{
			Primary:   NewWhisperCLI(runner, whisper),
			Secondary: remote,
			Log:       log.With().Str("component", "fallback").Logger(),
		}, nil
	default:
		return nil, fmt.Errorf("unknown transcription backend %q", backend)
	}
}
