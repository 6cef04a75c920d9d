package transcription_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/transcription"
)

var _ = Describe("Assemble", func() {
	It("joins in order with the separator", func() {
		Expect(transcription.Assemble([]string{"a", "b", "c"}, transcription.DefaultSeparator)).To(Equal("a\n\nb\n\nc"))
	})

	It("returns the empty string for no transcripts", func() {
		Expect(transcription.Assemble(nil, "\n\n")).To(Equal(""))
		Expect(transcription.Assemble([]string{}, " ")).To(Equal(""))
	})

	It("keeps empty and untrimmed transcripts", func() {
		Expect(transcription.Assemble([]string{" a ", "", "c"}, "|")).To(Equal(" a ||c"))
	})

	It("honours a custom separator", func() {
		Expect(transcription.Assemble([]string{"hola", "mundo"}, " ")).To(Equal("hola mundo"))
	})
})
