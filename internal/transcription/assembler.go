package transcription

import "strings"

// DefaultSeparator goes between consecutive segment transcripts.
const DefaultSeparator = "\n\n"

// Assemble joins segment transcripts in the order given. Nothing is trimmed
// or dropped, so empty transcripts still contribute a separator.
func Assemble(texts []string, sep string) string {
	return strings.Join(texts, sep)
}
