package main

import (
	"github.com/alecthomas/kong"
)

// CLI is the transcribe command line.
type CLI struct {
	File      FileCmd      `cmd:"" default:"withargs" help:"Transcribe a local audio file"`
	DriveAuth DriveAuthCmd `cmd:"" name:"drive-auth" help:"Authorize Google Drive access and store the token"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("transcribe"),
		kong.Description("Transcribe audio files of any size with OpenAI-compatible speech-to-text."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run())
}
