// Package index precomputes the lookup tables the matchers consult on every
// utterance. An Index is built once from a corpus and never mutated, so a
// single *Index is shared by all sessions without locking.
package index

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/loqalabs/loqa-karaoke/internal/corpus"
	"github.com/loqalabs/loqa-karaoke/internal/textnorm"
)

// maxKeyPrefix caps the prefixes registered in the title word index.
const maxKeyPrefix = 20

// Index is the read-only view over a corpus used by the matchers.
type Index struct {
	corpus *corpus.Corpus

	lyricWordVariants map[string][]string
	titleWordSet      map[string]struct{}
	titleWords        []string
	titlePartials     map[string]struct{}
	titleWordIndex    map[string][]*corpus.Song
	fullTitles        map[string]*corpus.Song
	normalizedTitles  map[*corpus.Song]string
	categories        []string
}

// Stats summarizes index sizes.
type Stats struct {
	Songs         int
	LyricWords    int
	TitleWords    int
	TitlePartials int
	IndexKeys     int
	Categories    int
}

// Build derives every table from c. A nil or empty corpus yields an empty,
// usable index.
func Build(c *corpus.Corpus) *Index {
	if c == nil {
		c = &corpus.Corpus{}
	}
	idx := &Index{
		corpus:            c,
		lyricWordVariants: make(map[string][]string),
		titleWordSet:      make(map[string]struct{}),
		titlePartials:     make(map[string]struct{}),
		titleWordIndex:    make(map[string][]*corpus.Song),
		fullTitles:        make(map[string]*corpus.Song),
		normalizedTitles:  make(map[*corpus.Song]string, len(c.Songs)),
		categories:        c.Categories(),
	}
	for _, song := range c.Songs {
		idx.addLyrics(song)
		idx.addTitle(song)
	}
	idx.titleWords = make([]string, 0, len(idx.titleWordSet))
	for w := range idx.titleWordSet {
		idx.titleWords = append(idx.titleWords, w)
	}
	sort.Strings(idx.titleWords)
	return idx
}

func (idx *Index) addLyrics(song *corpus.Song) {
	for _, line := range song.Lyrics {
		for _, word := range textnorm.Tokenize(line) {
			if utf8.RuneCountInString(word) <= 2 {
				continue
			}
			if _, ok := idx.lyricWordVariants[word]; ok {
				continue
			}
			variants := []string{word}
			if utf8.RuneCountInString(word) > 3 {
				variants = append(variants, prefixes(word, 3, 4)...)
			}
			idx.lyricWordVariants[word] = variants
		}
	}
}

func (idx *Index) addTitle(song *corpus.Song) {
	title := textnorm.Normalize(song.Title)
	idx.normalizedTitles[song] = title
	if title == "" {
		return
	}
	if _, dup := idx.fullTitles[title]; !dup {
		idx.fullTitles[title] = song
	}
	idx.titlePartials[title] = struct{}{}
	for _, p := range prefixes(title, 3, -1) {
		idx.titlePartials[p] = struct{}{}
	}
	for _, p := range prefixes(title, 2, maxKeyPrefix) {
		idx.link(p, song)
	}

	for _, word := range strings.Fields(title) {
		for _, p := range prefixes(word, 2, -1) {
			idx.titlePartials[p] = struct{}{}
		}
		if utf8.RuneCountInString(word) <= 1 {
			continue
		}
		idx.titleWordSet[word] = struct{}{}
		idx.link(word, song)
		for _, p := range prefixes(word, 2, maxKeyPrefix) {
			idx.link(p, song)
		}
	}
}

// prefixes returns the prefixes of s holding between minRunes and maxRunes
// runes, shortest first. A negative maxRunes means no upper bound.
func prefixes(s string, minRunes, maxRunes int) []string {
	var out []string
	n := 0
	for i := range s {
		if n >= minRunes && (maxRunes < 0 || n <= maxRunes) && i > 0 {
			out = append(out, s[:i])
		}
		n++
	}
	if n >= minRunes && (maxRunes < 0 || n <= maxRunes) && n > 0 {
		out = append(out, s)
	}
	return out
}

func (idx *Index) link(key string, song *corpus.Song) {
	songs := idx.titleWordIndex[key]
	for _, s := range songs {
		if s == song {
			return
		}
	}
	idx.titleWordIndex[key] = append(songs, song)
}

// Corpus returns the corpus the index was built from.
func (idx *Index) Corpus() *corpus.Corpus { return idx.corpus }

// Songs returns the songs in corpus order.
func (idx *Index) Songs() []*corpus.Song { return idx.corpus.Songs }

// Categories returns the sorted distinct categories.
func (idx *Index) Categories() []string { return idx.categories }

// NormalizedTitle returns the normalized title of a corpus song.
func (idx *Index) NormalizedTitle(song *corpus.Song) string {
	if t, ok := idx.normalizedTitles[song]; ok {
		return t
	}
	return textnorm.Normalize(song.Title)
}

// LyricVariants returns the matchable variants of a normalized lyric word.
func (idx *Index) LyricVariants(word string) ([]string, bool) {
	v, ok := idx.lyricWordVariants[word]
	return v, ok
}

// IsTitleWord reports whether word appears verbatim in some title.
func (idx *Index) IsTitleWord(word string) bool {
	_, ok := idx.titleWordSet[word]
	return ok
}

// IsTitlePartial reports whether text is a registered title or title word prefix.
func (idx *Index) IsTitlePartial(text string) bool {
	_, ok := idx.titlePartials[text]
	return ok
}

// ResemblesTitleWord reports whether token is a title word, a prefix of one,
// or has one as a prefix.
func (idx *Index) ResemblesTitleWord(token string) bool {
	if token == "" {
		return false
	}
	if idx.IsTitleWord(token) {
		return true
	}
	for _, w := range idx.titleWords {
		if strings.HasPrefix(w, token) || strings.HasPrefix(token, w) {
			return true
		}
	}
	return false
}

// SongsFor returns the songs indexed under a title word or prefix.
func (idx *Index) SongsFor(key string) []*corpus.Song {
	return append([]*corpus.Song(nil), idx.titleWordIndex[key]...)
}

// SongByTitle looks up a song by its normalized title.
func (idx *Index) SongByTitle(normalized string) (*corpus.Song, bool) {
	s, ok := idx.fullTitles[normalized]
	return s, ok
}

// Stats reports table sizes.
func (idx *Index) Stats() Stats {
	return Stats{
		Songs:         idx.corpus.Len(),
		LyricWords:    len(idx.lyricWordVariants),
		TitleWords:    len(idx.titleWordSet),
		TitlePartials: len(idx.titlePartials),
		IndexKeys:     len(idx.titleWordIndex),
		Categories:    len(idx.categories),
	}
}
