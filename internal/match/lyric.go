package match

import (
	"strings"
	"unicode/utf8"

	"github.com/loqalabs/loqa-karaoke/internal/index"
	"github.com/loqalabs/loqa-karaoke/internal/textnorm"
)

// Step is the outcome of a single-word lyric decision.
type Step int

const (
	// Hold keeps the cursor on the expected word.
	Hold Step = iota
	// Matched advances because the spoken text matched.
	Matched
	// Short advances over a word too short to recognize reliably.
	Short
	// Forced advances over an unmatched word so the display cannot stall.
	Forced
)

func (s Step) String() string {
	switch s {
	case Matched:
		return "matched"
	case Short:
		return "short"
	case Forced:
		return "forced"
	default:
		return "hold"
	}
}

// Advances reports whether the step moves the cursor.
func (s Step) Advances() bool { return s != Hold }

// LyricMatcher follows a singer through lyric lines.
type LyricMatcher struct {
	idx *index.Index
}

// NewLyricMatcher returns a matcher over idx.
func NewLyricMatcher(idx *index.Index) *LyricMatcher {
	return &LyricMatcher{idx: idx}
}

// WordsMatch reports whether spoken is an acceptable rendition of expected:
// equal after normalization, overlapping one of the indexed variants of
// expected, or sharing its first two letters.
func (m *LyricMatcher) WordsMatch(spoken, expected string) bool {
	s := textnorm.Normalize(spoken)
	e := textnorm.Normalize(expected)
	if s == e {
		return true
	}
	if s == "" || e == "" {
		return false
	}
	if variants, ok := m.idx.LyricVariants(e); ok {
		for _, v := range variants {
			if strings.Contains(s, v) || strings.Contains(v, s) {
				return true
			}
		}
	}
	if utf8.RuneCountInString(s) >= 2 && utf8.RuneCountInString(e) >= 3 {
		return strings.HasPrefix(s, firstRunes(e, 2)) || strings.HasPrefix(e, firstRunes(s, 2))
	}
	return false
}

// MatchSequential pairs the utterance's tokens with words[pos:] left to right
// and returns how many lyric words were consumed before the first miss.
func (m *LyricMatcher) MatchSequential(words []string, pos int, utterance string) int {
	if pos < 0 {
		pos = 0
	}
	matched := 0
	for _, tok := range textnorm.Tokenize(utterance) {
		i := pos + matched
		if i >= len(words) {
			break
		}
		expected := textnorm.Normalize(words[i])
		if utf8.RuneCountInString(expected) <= 2 || m.WordsMatch(tok, expected) {
			matched++
			continue
		}
		break
	}
	return matched
}

// MatchOne decides whether the whole utterance moves the cursor past
// words[pos]. Final transcripts and utterances sharing no leading letter with
// the expected word force the cursor on.
func (m *LyricMatcher) MatchOne(words []string, pos int, utterance string, final bool) Step {
	if pos < 0 || pos >= len(words) {
		return Hold
	}
	expected := textnorm.Normalize(words[pos])
	if utf8.RuneCountInString(expected) <= 2 {
		return Short
	}
	if m.WordsMatch(utterance, expected) {
		return Matched
	}
	if final {
		return Forced
	}
	spoken := textnorm.Normalize(utterance)
	if spoken == "" {
		return Hold
	}
	if !strings.Contains(spoken, firstRunes(expected, 1)) && !strings.Contains(expected, firstRunes(spoken, 1)) {
		return Forced
	}
	return Hold
}

func firstRunes(s string, n int) string {
	i := 0
	for j := range s {
		if i == n {
			return s[:j]
		}
		i++
	}
	return s
}
