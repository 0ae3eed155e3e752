package files

import (
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
)

const (
	DefaultMaxRunes  = 16000
	DefaultChunkSize = 2000
)

// Limits bound how much of each attachment reaches a prompt. Both values
// count runes.
type Limits struct {
	MaxRunes  int `koanf:"max_chars"`
	ChunkSize int `koanf:"chunk_size"`
}

func DefaultLimits() Limits {
	return Limits{MaxRunes: DefaultMaxRunes, ChunkSize: DefaultChunkSize}
}

func (l Limits) withDefaults() Limits {
	if l.MaxRunes <= 0 {
		l.MaxRunes = DefaultMaxRunes
	}
	if l.ChunkSize <= 0 {
		l.ChunkSize = DefaultChunkSize
	}
	l.ChunkSize = min(l.ChunkSize, l.MaxRunes)
	return l
}

// Excerpt keeps text whole when it fits in l.MaxRunes. Longer text is split
// into chunks on paragraph, line and word boundaries and the leading chunks
// that fit are kept. The result never splits a rune.
func Excerpt(text string, l Limits) (string, bool, error) {
	l = l.withDefaults()
	if utf8.RuneCountInString(text) <= l.MaxRunes {
		return text, false, nil
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(l.ChunkSize),
		textsplitter.WithChunkOverlap(0),
	)
	chunks, err := splitter.SplitText(text)
	if err != nil {
		return "", false, err
	}

	var b strings.Builder
	used := 0
	for _, c := range chunks {
		n := utf8.RuneCountInString(c)
		if used > 0 {
			n++ // joining newline
		}
		if used+n > l.MaxRunes {
			break
		}
		if used > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(c)
		used += n
	}
	if used == 0 {
		return truncateRunes(text, l.MaxRunes), true, nil
	}
	return b.String(), true, nil
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
