package karaoke

import (
	"strings"
	"testing"

	"github.com/loqalabs/loqa-karaoke/internal/corpus"
)

func TestRankSearchPutsIndexedTitleFirst(t *testing.T) {
	det := newDetector(t)
	results := rankSearch(det.Index(), "gajiyo")
	if len(results) == 0 || results[0].Title != "Gajiyo Mujho Jor" {
		t.Fatalf("expected Gajiyo Mujho Jor first, got %v", titles(results))
	}
	if got := rankSearch(det.Index(), "zzzz"); len(got) != 0 {
		t.Fatalf("expected no results, got %v", titles(got))
	}
}

func TestRankSearchLyricHitsFollowTitleHits(t *testing.T) {
	det := newDetector(t)
	results := rankSearch(det.Index(), "mathura")
	if len(results) < 2 {
		t.Fatalf("expected several mathura songs, got %v", titles(results))
	}
	for _, s := range results[:2] {
		if !strings.Contains(strings.ToLower(s.Title), "mathura") {
			t.Fatalf("expected title hits first, got %v", titles(results))
		}
	}
}

func TestSearchTerm(t *testing.T) {
	cases := map[string]string{
		"search gajiyo":        "gajiyo",
		"Search, Dakor Thakor!": "dakor thakor",
		"search":               "",
		"research gajiyo":      "research gajiyo",
	}
	for in, want := range cases {
		if got := searchTerm(in); got != want {
			t.Fatalf("searchTerm(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRenderers(t *testing.T) {
	song := &corpus.Song{Title: "Tali Pado", Lyrics: []string{"Tali pado re"}}
	if got := lyricLine(song, song.Words(0), 1); got != "🎵 Tali Pado\n\ntali 🔸PADO🔸 re" {
		t.Fatalf("unexpected lyric line %q", got)
	}
	songs := []*corpus.Song{{Title: "A"}, {Title: "B"}, {Title: "C"}}
	page := menuPage(songs, 2, 5)
	if !strings.HasPrefix(page, "3. C\n\n🔢 Say 1-3 •") {
		t.Fatalf("unexpected page %q", page)
	}
	menu := staticMenu(songs, 2)
	if !strings.Contains(menu, "1. A\n2. B\n...and 1 more songs\n") {
		t.Fatalf("unexpected static menu %q", menu)
	}
	res := searchResults("x", songs[:2], 3)
	if !strings.HasPrefix(res, "🔍 Search results for \"x\":\n\n1. A\n2. B\n...and 1 more songs\n\n🔢 Say 1-2 • \"menu\" to return\n") {
		t.Fatalf("unexpected search render %q", res)
	}
}

func titles(songs []*corpus.Song) []string {
	out := make([]string, len(songs))
	for i, s := range songs {
		out[i] = s.Title
	}
	return out
}
