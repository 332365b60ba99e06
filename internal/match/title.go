// Package match turns noisy transcript text into karaoke decisions: which
// song was named, which number was spoken, and whether the singer reached the
// next lyric word. Every function is total; "no match" is a nil or false
// result, never an error.
package match

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/loqalabs/loqa-karaoke/internal/corpus"
	"github.com/loqalabs/loqa-karaoke/internal/index"
	"github.com/loqalabs/loqa-karaoke/internal/textnorm"
)

const (
	// DefaultTitleWordRatio is the share of utterance tokens that must be title words.
	DefaultTitleWordRatio = 0.7
	// DefaultPrefixRatio scales a title word's length into the prefix it requires.
	DefaultPrefixRatio = 0.6
	// DefaultProgressSample is how many titles IsProgressing scans.
	DefaultProgressSample = 100

	// prefixCap is the longest prefix a title match ever requires.
	prefixCap = 5
)

// Option configures a Detector.
type Option func(*Detector)

// WithTitleWordRatio sets the share of tokens that must resemble title words
// for an utterance to count as title-like.
func WithTitleWordRatio(r float64) Option {
	return func(d *Detector) {
		if r > 0 {
			d.titleWordRatio = r
		}
	}
}

// WithPrefixRatio sets the share of a title a prefix must cover to select it.
func WithPrefixRatio(r float64) Option {
	return func(d *Detector) {
		if r > 0 {
			d.prefixRatio = r
		}
	}
}

// WithProgressSample bounds how many titles IsProgressing scans.
func WithProgressSample(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.progressSample = n
		}
	}
}

// WithPriority places the named titles first in every displayed list.
func WithPriority(titles []string) Option {
	return func(d *Detector) {
		d.priority = append([]string(nil), titles...)
	}
}

// Detector resolves utterances to songs and categories. It is read-only
// after construction and safe for concurrent use.
type Detector struct {
	idx            *index.Index
	priority       []string
	titleWordRatio float64
	prefixRatio    float64
	progressSample int

	ordered map[string][]*corpus.Song
}

// NewDetector returns a Detector over idx.
func NewDetector(idx *index.Index, opts ...Option) *Detector {
	d := &Detector{
		idx:            idx,
		titleWordRatio: DefaultTitleWordRatio,
		prefixRatio:    DefaultPrefixRatio,
		progressSample: DefaultProgressSample,
	}
	for _, o := range opts {
		o(d)
	}
	d.ordered = make(map[string][]*corpus.Song, len(idx.Categories())+1)
	d.ordered[""] = d.prioritize(idx.Corpus().ByCategory(""))
	for _, cat := range idx.Categories() {
		d.ordered[cat] = d.prioritize(idx.Corpus().ByCategory(cat))
	}
	return d
}

// Index returns the index the detector reads.
func (d *Detector) Index() *index.Index { return d.idx }

// Prioritized returns the songs of category (all songs when empty) with the
// priority titles first, in their configured order, followed by the rest in
// corpus order. The returned slice must not be modified.
func (d *Detector) Prioritized(category string) []*corpus.Song {
	return d.ordered[category]
}

func (d *Detector) prioritize(songs []*corpus.Song) []*corpus.Song {
	out := make([]*corpus.Song, 0, len(songs))
	taken := make(map[*corpus.Song]bool, len(d.priority))
	for _, title := range d.priority {
		want := strings.ToLower(strings.TrimSpace(title))
		for _, s := range songs {
			if !taken[s] && strings.ToLower(strings.TrimSpace(s.Title)) == want {
				out = append(out, s)
				taken[s] = true
				break
			}
		}
	}
	for _, s := range songs {
		if !taken[s] {
			out = append(out, s)
		}
	}
	return out
}

// IsTitleLike reports whether text plausibly comes from song titles.
func (d *Detector) IsTitleLike(text string) bool {
	clean := textnorm.Normalize(text)
	if clean == "" || hasForeignScript(clean) {
		return false
	}
	if d.idx.IsTitlePartial(clean) {
		return true
	}
	tokens := strings.Fields(clean)
	hits := 0
	for _, tok := range tokens {
		if d.idx.ResemblesTitleWord(tok) {
			hits++
		}
	}
	return float64(hits)/float64(len(tokens)) >= d.titleWordRatio
}

// Validate returns the cleaned title candidate for text, or "" when text is
// not title-like.
func (d *Detector) Validate(text string) string {
	if !d.IsTitleLike(text) {
		return ""
	}
	clean := textnorm.Normalize(text)
	if d.idx.IsTitlePartial(clean) {
		return clean
	}
	var kept []string
	for _, tok := range strings.Fields(clean) {
		if d.idx.ResemblesTitleWord(tok) {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " ")
}

// DetectSong resolves text to a song within category (all songs when empty).
// Exact titles win over prefixes, prefixes over word-aligned matches; within
// a stage the priority order decides.
func (d *Detector) DetectSong(text, category string) *corpus.Song {
	cand := d.Validate(text)
	if utf8.RuneCountInString(cand) < 2 {
		return nil
	}
	songs := d.Prioritized(category)

	for _, s := range songs {
		if d.idx.NormalizedTitle(s) == cand {
			return s
		}
	}

	candLen := float64(utf8.RuneCountInString(cand))
	for _, s := range songs {
		title := d.idx.NormalizedTitle(s)
		need := math.Min(float64(utf8.RuneCountInString(title))*d.prefixRatio, prefixCap)
		if strings.HasPrefix(title, cand) && candLen >= need {
			return s
		}
	}

	tokens := strings.Fields(cand)
	if len(tokens) < 2 {
		return nil
	}
	for _, s := range songs {
		titleTokens := strings.Fields(d.idx.NormalizedTitle(s))
		aligned := 0
		for i := 0; i < min(len(tokens), len(titleTokens)); i++ {
			if twoWayPrefix(tokens[i], titleTokens[i]) {
				aligned++
			}
		}
		if aligned >= min(len(tokens), 3) && float64(aligned) >= float64(len(titleTokens))*0.5 {
			return s
		}
	}
	return nil
}

// IsProgressing reports whether text looks like the start of a title that
// more speech could complete.
func (d *Detector) IsProgressing(text string) bool {
	cand := d.Validate(text)
	if utf8.RuneCountInString(cand) < 2 {
		return false
	}
	songs := d.idx.Songs()
	if len(songs) > d.progressSample {
		songs = songs[:d.progressSample]
	}
	for _, s := range songs {
		title := d.idx.NormalizedTitle(s)
		if strings.HasPrefix(title, cand) && len(cand) < len(title) {
			return true
		}
	}
	for _, tok := range strings.Fields(cand) {
		if utf8.RuneCountInString(tok) > 2 && d.idx.IsTitleWord(tok) {
			return true
		}
	}
	return false
}

// FindCategoryByName returns the first category named verbatim in text.
func (d *Detector) FindCategoryByName(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, cat := range d.idx.Categories() {
		if strings.Contains(lower, strings.ToLower(cat)) {
			return cat, true
		}
	}
	return "", false
}

// FindCategory resolves text to a category by name or by its 1-based
// position in the sorted category list.
func (d *Detector) FindCategory(text string) (string, bool) {
	if cat, ok := d.FindCategoryByName(text); ok {
		return cat, true
	}
	n, ok := ParseOrdinal(text)
	cats := d.idx.Categories()
	if !ok || n < 1 || n > len(cats) {
		return "", false
	}
	return cats[n-1], true
}

func twoWayPrefix(a, b string) bool {
	return strings.HasPrefix(a, b) || strings.HasPrefix(b, a)
}

// hasForeignScript reports runes outside Basic Latin and Latin-1/Extended-A.
func hasForeignScript(s string) bool {
	for _, r := range s {
		if r > 0x7F && (r < 0xC0 || r > 0x17F) {
			return true
		}
	}
	return false
}
