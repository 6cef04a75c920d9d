package audio_test

import (
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/audio"
)

var _ = Describe("Plan", func() {
	It("splits a 60 MiB / 300s file into three 100s segments", func() {
		segs, err := audio.Plan(60*audio.MiB, 300, 20*audio.MiB)
		Expect(err).ToNot(HaveOccurred())
		Expect(segs).To(HaveLen(3))
		for i, s := range segs {
			Expect(s.Index).To(Equal(i))
			Expect(s.Length).To(BeNumerically("==", 100))
			Expect(s.Start).To(BeNumerically("==", float64(i)*100))
		}
	})

	It("returns a single segment when the file fits", func() {
		segs, err := audio.Plan(10*audio.MiB, 42.5, 20*audio.MiB)
		Expect(err).ToNot(HaveOccurred())
		Expect(segs).To(Equal([]audio.Segment{{Index: 0, Start: 0, Length: 42.5}}))
	})

	DescribeTable("count is ceil(size / max) and segments partition [0, duration)",
		func(size int64, duration float64, max int64, wantCount int) {
			segs, err := audio.Plan(size, duration, max)
			Expect(err).ToNot(HaveOccurred())
			Expect(segs).To(HaveLen(wantCount))
			Expect(len(segs)).To(BeNumerically(">=", 1))

			Expect(segs[0].Start).To(BeNumerically("==", 0))
			for i := 1; i < len(segs); i++ {
				Expect(segs[i].Start).To(BeNumerically("~", segs[i-1].End(), 1e-9), "gap or overlap before segment %d", i)
			}
			Expect(segs[len(segs)-1].End()).To(BeNumerically("~", duration, 1e-9))
		},
		Entry("exact multiple", int64(40*audio.MiB), 1200.0, int64(20*audio.MiB), 2),
		Entry("one byte over", int64(20*audio.MiB+1), 600.0, int64(20*audio.MiB), 2),
		Entry("exactly at max", int64(20*audio.MiB), 600.0, int64(20*audio.MiB), 1),
		Entry("odd duration", int64(95*audio.MiB), 3601.7, int64(20*audio.MiB), 5),
		Entry("tiny max", int64(1000), 10.0, int64(3), 334),
	)

	It("is deterministic", func() {
		a, errA := audio.Plan(123456789, 7777.7, 20*audio.MiB)
		b, errB := audio.Plan(123456789, 7777.7, 20*audio.MiB)
		Expect(errA).ToNot(HaveOccurred())
		Expect(errB).ToNot(HaveOccurred())
		Expect(a).To(Equal(b))
	})

	DescribeTable("rejects unusable input",
		func(size int64, duration float64, max int64, field string) {
			segs, err := audio.Plan(size, duration, max)
			Expect(segs).To(BeNil())
			var invalid *audio.InvalidInputError
			Expect(errors.As(err, &invalid)).To(BeTrue())
			Expect(invalid.Field).To(Equal(field))
		},
		Entry("zero size", int64(0), 10.0, int64(audio.MiB), "file_size"),
		Entry("negative size", int64(-5), 10.0, int64(audio.MiB), "file_size"),
		Entry("zero duration", int64(audio.MiB), 0.0, int64(audio.MiB), "duration"),
		Entry("negative duration", int64(audio.MiB), -1.0, int64(audio.MiB), "duration"),
		Entry("NaN duration", int64(audio.MiB), math.NaN(), int64(audio.MiB), "duration"),
		Entry("zero max", int64(audio.MiB), 10.0, int64(0), "max_segment_bytes"),
	)
})

var _ = Describe("SegmentCount", func() {
	It("never drops below one", func() {
		Expect(audio.SegmentCount(0, audio.MiB)).To(Equal(1))
		Expect(audio.SegmentCount(audio.MiB, 0)).To(Equal(1))
		Expect(audio.SegmentCount(1, audio.MiB)).To(Equal(1))
	})
})
