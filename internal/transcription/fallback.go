package transcription

import (
	"context"

	"github.com/rs/zerolog"
)

// Fallback tries Primary and, if it fails, Secondary. This is how a local
// model is paired with a hosted provider.
type Fallback struct {
	Primary   Transcriber
	Secondary Transcriber
	Log       zerolog.Logger
}

func (f *Fallback) Transcribe(ctx context.Context, path string) (string, error) {
	text, err := f.Primary.Transcribe(ctx, path)
	if err == nil {
		return text, nil
	}
	if ctx.Err() != nil {
		return "", err
	}
	f.Log.Warn().Err(err).Str("path", path).Msg("primary transcriber failed, trying fallback")
	return f.Secondary.Transcribe(ctx, path)
}
