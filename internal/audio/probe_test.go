package audio_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/audio"
)

type panickyStrategy struct{}

func (panickyStrategy) Name() string { return "panicky" }
func (panickyStrategy) Duration(context.Context, string) (float64, bool) {
	panic("boom")
}

type fixedStrategy float64

func (fixedStrategy) Name() string { return "fixed" }
func (f fixedStrategy) Duration(context.Context, string) (float64, bool) {
	return float64(f), f > 0
}

func sparseFile(dir, name string, size int64) string {
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	Expect(err).ToNot(HaveOccurred())
	Expect(f.Truncate(size)).To(Succeed())
	Expect(f.Close()).To(Succeed())
	return p
}

var _ = Describe("Prober", func() {
	var (
		dir    string
		runner *fakeRunner
		failed []string
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		runner = &fakeRunner{}
		failed = nil
	})

	hook := audio.WithFallbackHook(func(s string) { failed = append(failed, s) })

	It("uses the container duration when ffprobe reports it", func() {
		runner.handler = func(_ string, args []string) ([]byte, []byte, error) {
			return []byte(`{"format":{"duration":"300.500000"}}`), nil, nil
		}
		p := audio.NewProber(runner, "", hook)

		Expect(p.ProbeDuration(context.Background(), "/x/meeting.mp3")).To(Equal(300.5))
		Expect(failed).To(BeEmpty())

		calls := runner.Calls()
		Expect(calls).To(HaveLen(1))
		Expect(calls[0][0]).To(Equal("ffprobe"))
		Expect(contains(calls[0], "format=duration")).To(BeTrue())
		Expect(calls[0][len(calls[0])-1]).To(Equal("/x/meeting.mp3"))
	})

	It("falls back to the stream duration when the container value is unusable", func() {
		runner.handler = func(_ string, args []string) ([]byte, []byte, error) {
			if contains(args, "format=duration") {
				return []byte(`{"format":{"duration":"N/A"}}`), nil, nil
			}
			return []byte(`{"streams":[{"duration":"120.25"}]}`), nil, nil
		}
		p := audio.NewProber(runner, "ffprobe", hook)

		Expect(p.ProbeDuration(context.Background(), "/x/a.aac")).To(Equal(120.25))
		Expect(failed).To(Equal([]string{"format"}))
	})

	It("treats zero and malformed output as failure", func() {
		runner.handler = func(_ string, args []string) ([]byte, []byte, error) {
			if contains(args, "format=duration") {
				return []byte(`{"format":{"duration":"0"}}`), nil, nil
			}
			return []byte(`not json`), nil, nil
		}
		path := sparseFile(dir, "a.mp3", 2*audio.MiB)
		p := audio.NewProber(runner, "", hook)

		Expect(p.ProbeDuration(context.Background(), path)).To(BeNumerically("==", 120))
		Expect(failed).To(Equal([]string{"format", "stream"}))
	})

	It("estimates 60 seconds per MiB when ffprobe is unavailable", func() {
		runner.handler = func(string, []string) ([]byte, []byte, error) {
			return nil, []byte("ffprobe: not found"), errors.New("exec: not found")
		}
		p := audio.NewProber(runner, "")

		path := sparseFile(dir, "big.mp3", 3*audio.MiB)
		Expect(p.ProbeDuration(context.Background(), path)).To(BeNumerically("==", 180))

		half := sparseFile(dir, "half.mp3", audio.MiB+audio.MiB/2)
		Expect(p.ProbeDuration(context.Background(), half)).To(BeNumerically("==", 90))
	})

	It("returns zero for a file that cannot be stat'ed", func() {
		p := audio.NewProber(runner, "", audio.WithStrategies())
		Expect(p.ProbeDuration(context.Background(), filepath.Join(dir, "missing.mp3"))).To(BeZero())
	})

	It("survives a panicking strategy", func() {
		p := audio.NewProber(runner, "", audio.WithStrategies(panickyStrategy{}, fixedStrategy(42)), hook)
		Expect(p.ProbeDuration(context.Background(), "/x/a.mp3")).To(Equal(42.0))
		Expect(failed).To(Equal([]string{"panicky"}))
	})

	It("reads WAV headers when enabled", func() {
		runner.handler = func(string, []string) ([]byte, []byte, error) {
			return nil, nil, errors.New("no ffprobe")
		}
		path := filepath.Join(dir, "tone.wav")
		writeWAV(path, 16000, 2*16000)

		info, err := os.Stat(path)
		Expect(err).ToNot(HaveOccurred())
		without := audio.NewProber(runner, "")
		Expect(without.ProbeDuration(context.Background(), path)).To(Equal(audio.EstimateFromSize(info.Size())))

		with := audio.NewProber(runner, "", audio.WithWAVHeader(), hook)
		Expect(with.ProbeDuration(context.Background(), path)).To(BeNumerically("~", 2.0, 0.01))
		Expect(failed).To(Equal([]string{"format", "stream"}))
	})
})

var _ = Describe("EstimateFromSize", func() {
	It("is size in MiB times a minute", func() {
		Expect(audio.EstimateFromSize(audio.MiB)).To(BeNumerically("==", 60))
		Expect(audio.EstimateFromSize(0)).To(BeZero())
		Expect(audio.EstimateFromSize(-1)).To(BeZero())
	})
})

func writeWAV(path string, sampleRate, samples int) {
	f, err := os.Create(path)
	Expect(err).ToNot(HaveOccurred())
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           make([]int, samples),
		SourceBitDepth: 16,
	}
	Expect(enc.Write(buf)).To(Succeed())
	Expect(enc.Close()).To(Succeed())
}
