// Package corpus holds the static song collection the karaoke engine serves.
// A corpus is loaded once at startup, from the embedded songs.yaml or from a
// file named in configuration, and is read-only afterwards.
package corpus

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/loqalabs/loqa-karaoke/internal/textnorm"
	"gopkg.in/yaml.v3"
)

//go:embed songs.yaml
var builtin []byte

// Song is a single karaoke entry.
type Song struct {
	Title       string   `yaml:"title"`
	Artist      string   `yaml:"artist,omitempty"`
	Language    string   `yaml:"language,omitempty"`
	Category    string   `yaml:"category,omitempty"`
	SearchTerms []string `yaml:"search_terms,omitempty"`
	Lyrics      []string `yaml:"lyrics"`
}

// Words splits lyric line i into display words. Out of range lines have no words.
func (s *Song) Words(i int) []string {
	if i < 0 || i >= len(s.Lyrics) {
		return nil
	}
	return strings.Fields(s.Lyrics[i])
}

// Corpus is an ordered song collection. Corpus order is the order of the file.
type Corpus struct {
	Songs []*Song
}

type file struct {
	Songs []*Song `yaml:"songs"`
}

// Builtin returns the corpus compiled into the binary.
func Builtin() (*Corpus, error) {
	c, err := Decode(bytes.NewReader(builtin))
	if err != nil {
		return nil, fmt.Errorf("corpus: decode builtin: %w", err)
	}
	return c, nil
}

// Load reads a corpus file. An empty path selects the builtin corpus.
func Load(path string) (*Corpus, error) {
	if path == "" {
		return Builtin()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("corpus: open %q: %w", path, err)
	}
	defer f.Close()

	c, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("corpus: parse %q: %w", path, err)
	}
	return c, nil
}

// Decode parses corpus YAML from r. Nil entries are dropped.
func Decode(r io.Reader) (*Corpus, error) {
	var f file
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	songs := make([]*Song, 0, len(f.Songs))
	for _, s := range f.Songs {
		if s != nil {
			songs = append(songs, s)
		}
	}
	return &Corpus{Songs: songs}, nil
}

// Validate reports every structural problem in the corpus. A nil return
// means each song has a usable title and lyrics and titles are unique once
// normalized.
func Validate(c *Corpus) error {
	if c == nil || len(c.Songs) == 0 {
		return errors.New("corpus has no songs")
	}
	var errs []error
	seen := make(map[string]int, len(c.Songs))
	for i, s := range c.Songs {
		key := textnorm.Normalize(s.Title)
		if key == "" {
			errs = append(errs, fmt.Errorf("songs[%d]: title is empty after normalization", i))
			continue
		}
		if prev, dup := seen[key]; dup {
			errs = append(errs, fmt.Errorf("songs[%d]: title %q duplicates songs[%d]", i, s.Title, prev))
		} else {
			seen[key] = i
		}
		if len(s.Lyrics) == 0 {
			errs = append(errs, fmt.Errorf("songs[%d] %q: lyrics are empty", i, s.Title))
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of songs.
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Songs)
}

// Categories returns the sorted distinct non-empty categories.
func (c *Corpus) Categories() []string {
	return c.distinct(func(s *Song) string { return s.Category })
}

// Languages returns the sorted distinct non-empty languages.
func (c *Corpus) Languages() []string {
	return c.distinct(func(s *Song) string { return s.Language })
}

func (c *Corpus) distinct(field func(*Song) string) []string {
	if c == nil {
		return nil
	}
	set := make(map[string]struct{})
	for _, s := range c.Songs {
		if v := field(s); v != "" {
			set[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// ByCategory returns the songs of category in corpus order. An empty
// category selects every song.
func (c *Corpus) ByCategory(category string) []*Song {
	if c == nil {
		return nil
	}
	if category == "" {
		return append([]*Song(nil), c.Songs...)
	}
	var out []*Song
	for _, s := range c.Songs {
		if s.Category == category {
			out = append(out, s)
		}
	}
	return out
}

// Search returns songs whose title, search terms or any lyric line contain
// query, compared case-insensitively, in corpus order.
func (c *Corpus) Search(query string) []*Song {
	q := strings.ToLower(strings.TrimSpace(query))
	if c == nil || q == "" {
		return nil
	}
	var out []*Song
	for _, s := range c.Songs {
		if songContains(s, q) {
			out = append(out, s)
		}
	}
	return out
}

func songContains(s *Song, q string) bool {
	if strings.Contains(strings.ToLower(s.Title), q) {
		return true
	}
	for _, term := range s.SearchTerms {
		if strings.Contains(strings.ToLower(term), q) {
			return true
		}
	}
	for _, line := range s.Lyrics {
		if strings.Contains(strings.ToLower(line), q) {
			return true
		}
	}
	return false
}
