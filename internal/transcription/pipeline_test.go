package transcription_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/audio"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/transcription"
)

// segmentText derives the fake transcript from the seg-<index> file name.
func segmentText(path string) (string, error) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return "T" + strings.TrimPrefix(base, "seg-"), nil
}

var _ = Describe("Pipeline", func() {
	var (
		srcDir string
		tmpDir string
		ext    *fakeExtractor
		tr     *fakeTranscriber
		cfg    transcription.Config
		ctx    context.Context
	)

	leftover := func() []os.DirEntry {
		entries, err := os.ReadDir(tmpDir)
		Expect(err).ToNot(HaveOccurred())
		return entries
	}

	BeforeEach(func() {
		srcDir = GinkgoT().TempDir()
		tmpDir = GinkgoT().TempDir()
		ext = &fakeExtractor{failOn: -1}
		tr = &fakeTranscriber{answer: segmentText}
		cfg = transcription.DefaultConfig()
		cfg.TempDir = tmpDir
		ctx = context.Background()
	})

	Context("small file", func() {
		It("transcribes the original file in one call", func() {
			src := sparseFile(srcDir, "meeting.mp3", 10*audio.MiB)
			tr.answer = func(string) (string, error) { return "hola", nil }
			p := transcription.NewPipeline(fixedProber(600), ext, tr, cfg)

			res, err := p.TranscribeLargeAudio(ctx, src)
			Expect(err).ToNot(HaveOccurred())
			Expect(res.Text).To(Equal("hola"))
			Expect(res.SingleShot).To(BeTrue())
			Expect(res.Segments).To(BeEmpty())
			Expect(tr.Calls()).To(Equal([]string{src}))
			Expect(ext.Written()).To(BeEmpty())
			Expect(leftover()).To(BeEmpty())
		})

		It("returns the provider error and stores nothing when the whole-file call is refused", func() {
			src := sparseFile(srcDir, "meeting.mp3", 10*audio.MiB)
			tr.answer = func(string) (string, error) {
				return "", &transcription.ProviderError{Kind: transcription.KindAuth, Segment: -1, StatusCode: 401,
					Err: errors.New("invalid api key")}
			}
			p := transcription.NewPipeline(fixedProber(600), ext, tr, cfg)

			res, err := p.TranscribeLargeAudio(ctx, src)
			Expect(res).To(BeNil())
			Expect(transcription.KindOf(err)).To(Equal(transcription.KindAuth))
			var perr *transcription.ProviderError
			Expect(errors.As(err, &perr)).To(BeTrue())
			Expect(perr.StatusCode).To(Equal(401))

			Expect(tr.Calls()).To(Equal([]string{src}))
			Expect(ext.Written()).To(BeEmpty())
			Expect(leftover()).To(BeEmpty())
			Expect(src).To(BeAnExistingFile())
		})

		It("surfaces a 401 from the OpenAI endpoint as an auth failure", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`))
			}))
			DeferCleanup(server.Close)
			client, err := transcription.NewOpenAIClient(transcription.ProviderConfig{APIKey: "sk-bad", BaseURL: server.URL + "/v1"})
			Expect(err).ToNot(HaveOccurred())

			src := sparseFile(srcDir, "meeting.mp3", 10*audio.MiB)
			p := transcription.NewPipeline(fixedProber(600), ext, client, cfg)

			res, err := p.TranscribeLargeAudio(ctx, src)
			Expect(res).To(BeNil())
			Expect(transcription.KindOf(err)).To(Equal(transcription.KindAuth))
			Expect(ext.Written()).To(BeEmpty())
			Expect(leftover()).To(BeEmpty())
		})

		It("treats a file exactly at the threshold as small", func() {
			src := sparseFile(srcDir, "edge.mp3", transcription.DefaultSingleShotThreshold)
			p := transcription.NewPipeline(fixedProber(600), ext, tr, cfg)

			res, err := p.TranscribeLargeAudio(ctx, src)
			Expect(err).ToNot(HaveOccurred())
			Expect(res.SingleShot).To(BeTrue())
		})
	})

	Context("large file", func() {
		It("splits, transcribes in order and joins with blank lines", func() {
			src := sparseFile(srcDir, "meeting.mp3", 60*audio.MiB)
			var progress []int
			p := transcription.NewPipeline(fixedProber(300), ext, tr, cfg,
				transcription.WithProgress(func(done, total int) {
					Expect(total).To(Equal(3))
					progress = append(progress, done)
				}))

			res, err := p.TranscribeLargeAudio(ctx, src)
			Expect(err).ToNot(HaveOccurred())
			Expect(res.Text).To(Equal("T0\n\nT1\n\nT2"))
			Expect(res.SingleShot).To(BeFalse())
			Expect(res.Duration).To(BeNumerically("==", 300))
			Expect(res.Segments).To(HaveLen(3))
			for i, s := range res.Segments {
				Expect(s.Start).To(BeNumerically("==", float64(i)*100))
				Expect(s.Length).To(BeNumerically("==", 100))
			}
			Expect(progress).To(Equal([]int{1, 2, 3}))

			Expect(ext.Written()).To(HaveLen(3))
			for _, f := range ext.Written() {
				Expect(f).ToNot(BeAnExistingFile())
			}
			Expect(leftover()).To(BeEmpty())
			Expect(src).To(BeAnExistingFile())
		})

		It("falls back to the size estimate when the duration cannot be probed", func() {
			src := sparseFile(srcDir, "broken.mp3", 30*audio.MiB)
			runner := &fakeRunner{handler: func(string, []string) ([]byte, []byte, error) {
				return nil, []byte("moov atom not found"), errors.New("exit status 1")
			}}
			var fallbacks []string
			prober := audio.NewProber(runner, "", audio.WithFallbackHook(func(s string) {
				fallbacks = append(fallbacks, s)
			}))
			p := transcription.NewPipeline(prober, ext, tr, cfg)

			res, err := p.TranscribeLargeAudio(ctx, src)
			Expect(err).ToNot(HaveOccurred())
			Expect(fallbacks).To(Equal([]string{"format", "stream"}))
			Expect(res.Duration).To(BeNumerically("==", 1800))
			Expect(res.Segments).To(HaveLen(2))
			Expect(res.Segments[1].Start).To(BeNumerically("==", 900))
			Expect(res.Text).To(Equal("T0\n\nT1"))
		})

		It("stops at the first provider failure and cleans up", func() {
			src := sparseFile(srcDir, "meeting.mp3", 60*audio.MiB)
			tr.answer = func(path string) (string, error) {
				if strings.Contains(path, "seg-1") {
					return "", &transcription.ProviderError{Kind: transcription.KindQuota, Segment: -1, StatusCode: 429, Err: errors.New("quota exceeded")}
				}
				return segmentText(path)
			}
			p := transcription.NewPipeline(fixedProber(300), ext, tr, cfg)

			res, err := p.TranscribeLargeAudio(ctx, src)
			Expect(res).To(BeNil())
			Expect(transcription.KindOf(err)).To(Equal(transcription.KindQuota))
			var pe *transcription.ProviderError
			Expect(errors.As(err, &pe)).To(BeTrue())
			Expect(pe.Segment).To(Equal(1))

			Expect(tr.Calls()).To(HaveLen(2))
			for _, f := range ext.Written() {
				Expect(f).ToNot(BeAnExistingFile())
			}
			Expect(leftover()).To(BeEmpty())
		})

		It("surfaces extraction failures with the tool output", func() {
			src := sparseFile(srcDir, "meeting.mp3", 60*audio.MiB)
			ext.failOn = 2
			p := transcription.NewPipeline(fixedProber(300), ext, tr, cfg)

			_, err := p.TranscribeLargeAudio(ctx, src)
			var xe *audio.ExtractionError
			Expect(errors.As(err, &xe)).To(BeTrue())
			Expect(xe.Index).To(Equal(2))
			Expect(err.Error()).To(ContainSubstring("Invalid data"))
			Expect(leftover()).To(BeEmpty())
		})

		It("keeps index order when segments finish out of order", func() {
			src := sparseFile(srcDir, "long.mp3", 200*audio.MiB)
			cfg.Concurrency = 4
			var mu sync.Mutex
			live, peak := 0, 0
			tr.answer = func(path string) (string, error) {
				mu.Lock()
				live++
				if live > peak {
					peak = live
				}
				mu.Unlock()
				time.Sleep(time.Duration(rand.Intn(20)) * time.Millisecond)
				mu.Lock()
				live--
				mu.Unlock()
				return segmentText(path)
			}
			p := transcription.NewPipeline(fixedProber(3600), ext, tr, cfg)

			res, err := p.TranscribeLargeAudio(ctx, src)
			Expect(err).ToNot(HaveOccurred())
			want := make([]string, 10)
			for i := range want {
				want[i] = fmt.Sprintf("T%d", i)
			}
			Expect(res.Text).To(Equal(strings.Join(want, "\n\n")))
			Expect(peak).To(BeNumerically("<=", 4))
			Expect(leftover()).To(BeEmpty())
		})

		It("cleans up when a concurrent segment fails", func() {
			src := sparseFile(srcDir, "long.mp3", 200*audio.MiB)
			cfg.Concurrency = 3
			tr.answer = func(path string) (string, error) {
				if strings.Contains(path, "seg-4") {
					return "", &transcription.ProviderError{Kind: transcription.KindNetwork, Segment: -1, Err: errors.New("connection reset")}
				}
				return segmentText(path)
			}
			p := transcription.NewPipeline(fixedProber(3600), ext, tr, cfg)

			_, err := p.TranscribeLargeAudio(ctx, src)
			Expect(transcription.KindOf(err)).To(Equal(transcription.KindNetwork))
			for _, f := range ext.Written() {
				Expect(f).ToNot(BeAnExistingFile())
			}
			Expect(leftover()).To(BeEmpty())
		})

		It("cleans up when a transcriber panics", func() {
			src := sparseFile(srcDir, "meeting.mp3", 60*audio.MiB)
			tr.answer = func(string) (string, error) { panic("provider sdk bug") }
			p := transcription.NewPipeline(fixedProber(300), ext, tr, cfg)

			Expect(func() { _, _ = p.TranscribeLargeAudio(ctx, src) }).To(PanicWith("provider sdk bug"))
			Expect(ext.Written()).To(HaveLen(1))
			Expect(ext.Written()[0]).ToNot(BeAnExistingFile())
			Expect(leftover()).To(BeEmpty())
		})

		It("honours cancellation between segments", func() {
			src := sparseFile(srcDir, "meeting.mp3", 60*audio.MiB)
			cctx, cancel := context.WithCancel(ctx)
			tr.answer = func(path string) (string, error) {
				cancel()
				return segmentText(path)
			}
			p := transcription.NewPipeline(fixedProber(300), ext, tr, cfg)

			_, err := p.TranscribeLargeAudio(cctx, src)
			Expect(err).To(MatchError(context.Canceled))
			Expect(tr.Calls()).To(HaveLen(1))
			Expect(leftover()).To(BeEmpty())
		})
	})

	It("rejects a missing file before doing any work", func() {
		p := transcription.NewPipeline(fixedProber(300), ext, tr, cfg)
		_, err := p.TranscribeLargeAudio(ctx, filepath.Join(srcDir, "nope.mp3"))
		var ie *audio.InvalidInputError
		Expect(errors.As(err, &ie)).To(BeTrue())
		Expect(ie.Field).To(Equal("path"))
		Expect(tr.Calls()).To(BeEmpty())
	})

	It("fills zero config values with defaults", func() {
		p := transcription.NewPipeline(fixedProber(1), ext, tr, transcription.Config{})
		Expect(p.Config().SingleShotThreshold).To(BeNumerically("==", 25*audio.MiB))
		Expect(p.Config().MaxSegmentBytes).To(BeNumerically("==", 20*audio.MiB))
		Expect(p.Config().Separator).To(Equal("\n\n"))
		Expect(p.Config().Concurrency).To(Equal(1))
	})
})
