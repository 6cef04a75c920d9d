package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/audio"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/config"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/logging"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/storage"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/transcription"
)

type FileCmd struct {
	Path string `arg:"" type:"existingfile" help:"Audio file to transcribe"`

	Config      string `short:"c" type:"path" help:"YAML config file"`
	Env         string `default:".env" type:"path" help:".env file with provider credentials"`
	Output      string `short:"o" type:"path" help:"Write the transcript here instead of stdout"`
	JSON        bool   `help:"Print the full result as JSON"`
	Language    string `short:"l" help:"Language hint for the provider"`
	Concurrency int    `short:"j" help:"Segments transcribed in parallel"`
	NoProgress  bool   `help:"Disable the progress bar"`
}

func (f *FileCmd) Run() error {
	cfg, err := config.Load(f.Config, f.Env)
	if err != nil {
		return err
	}
	if f.Language != "" {
		cfg.Provider.Language = f.Language
	}
	if f.Concurrency > 0 {
		cfg.Pipeline.Concurrency = f.Concurrency
	}

	// Logs go to stderr so the transcript can be piped.
	cfg.Log.Format = "console"
	log := logging.New(cfg.Log).Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: cfg.Log.NoColor})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.Storage.TempDir, 0755); err != nil {
		return fmt.Errorf("create temp directory: %w", err)
	}

	runner := audio.ExecRunner{}
	transcriber, err := transcription.NewBackend(cfg.Provider.Backend, runner,
		cfg.TranscriptionProvider(), cfg.TranscriptionWhisper(), log)
	if err != nil {
		return err
	}

	proberOpts := []audio.ProberOption{audio.WithProbeLogger(log)}
	if cfg.Probe.WAVHeader {
		proberOpts = append(proberOpts, audio.WithWAVHeader())
	}
	opts := []transcription.Option{transcription.WithLogger(log)}
	if !f.NoProgress {
		bar := progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("transcribing segments"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Close()
		opts = append(opts, transcription.WithProgress(func(done, total int) {
			bar.ChangeMax(total)
			if err := bar.Set(done); err != nil {
				log.Debug().Err(err).Msg("progress bar update")
			}
		}))
	}

	pipeline := transcription.NewPipeline(
		audio.NewProber(runner, cfg.Probe.FFprobe, proberOpts...),
		audio.NewExtractor(runner, cfg.Probe.FFmpeg),
		transcriber,
		cfg.TranscriptionPipeline(),
		opts...,
	)

	res, err := pipeline.TranscribeLargeAudio(ctx, f.Path)
	if err != nil {
		return err
	}

	if f.Output == "" {
		return writeResult(os.Stdout, res, f.JSON)
	}
	file, err := os.Create(f.Output)
	if err != nil {
		return err
	}
	return writeAndClose(file, res, f.JSON)
}

// writeAndClose writes the result and reports a failed Close, which is where
// a short write to a file often shows up.
func writeAndClose(wc io.WriteCloser, res *transcription.Result, asJSON bool) error {
	werr := writeResult(wc, res, asJSON)
	if cerr := wc.Close(); cerr != nil && werr == nil {
		return fmt.Errorf("close output: %w", cerr)
	}
	return werr
}

func writeResult(w io.Writer, res *transcription.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	_, err := fmt.Fprintln(w, res.Text)
	return err
}

type DriveAuthCmd struct {
	Credentials string `default:"credentials.json" type:"path" help:"OAuth client credentials downloaded from Google Cloud"`
	Token       string `default:"token.json" type:"path" help:"Where to store the authorized token"`
}

func (d *DriveAuthCmd) Run() error {
	oauthCfg, err := storage.OAuthConfig(d.Credentials)
	if err != nil {
		return err
	}
	return storage.AuthorizeDrive(context.Background(), oauthCfg, d.Token, os.Stdin, os.Stdout)
}
