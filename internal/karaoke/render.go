package karaoke

import (
	"fmt"
	"strings"

	"github.com/loqalabs/loqa-karaoke/internal/corpus"
)

const (
	fallbackRender    = "Display error occurred"
	processingError   = "⚠️ Processing error. Say \"menu\" to restart."
	emptyCategory     = "No songs available in this category."
	liveCaptionsOn    = "🎙️ Live captions enabled\nStart singing!"
	menuFooter        = "\n🔢 Say 1-%d • \"live\" for captions • \"categories\" for filter\n• \"search [term]\" to find songs • \"scroll\" to scroll • \"menu\" to return\n"
	categoryFooter    = "\n🔢 Say 1-%d or category name • \"all\" for all songs • \"menu\" for main\n"
	searchFooter      = "\n🔢 Say 1-%d • \"menu\" to return\n"
	moreSongsTemplate = "...and %d more songs\n"
)

// menuPage renders songs[start:start+size] numbered by their position in the
// whole list, so spoken numbers line up with what is on screen.
func menuPage(songs []*corpus.Song, start, size int) string {
	var b strings.Builder
	end := min(start+size, len(songs))
	for i := start; i < end; i++ {
		fmt.Fprintf(&b, "%d. %s\n", i+1, songs[i].Title)
	}
	fmt.Fprintf(&b, menuFooter, len(songs))
	return b.String()
}

// staticMenu is the first page with a count of what is not shown.
func staticMenu(songs []*corpus.Song, size int) string {
	var b strings.Builder
	for i, s := range songs[:min(size, len(songs))] {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s.Title)
	}
	if len(songs) > size {
		fmt.Fprintf(&b, moreSongsTemplate, len(songs)-size)
	}
	fmt.Fprintf(&b, menuFooter, len(songs))
	return b.String()
}

type categoryCount struct {
	name  string
	songs int
}

func categoryMenu(cats []categoryCount) string {
	var b strings.Builder
	b.WriteString("📂 SONG CATEGORIES\n\n")
	for i, c := range cats {
		fmt.Fprintf(&b, "%d. %s (%d songs)\n", i+1, c.name, c.songs)
	}
	fmt.Fprintf(&b, categoryFooter, len(cats))
	return b.String()
}

// searchResults renders the top results; total counts every match.
func searchResults(term string, top []*corpus.Song, total int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔍 Search results for \"%s\":\n\n", term)
	for i, s := range top {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s.Title)
	}
	if total > len(top) {
		fmt.Fprintf(&b, moreSongsTemplate, total-len(top))
	}
	fmt.Fprintf(&b, searchFooter, len(top))
	return b.String()
}

func noSearchResults(term, menu string) string {
	return fmt.Sprintf("No songs found for \"%s\"\n\n%s", term, menu)
}

func lyricHeader(s *corpus.Song) string {
	var b strings.Builder
	b.WriteString("🎵 ")
	b.WriteString(s.Title)
	if s.Category != "" {
		fmt.Fprintf(&b, " [%s]", s.Category)
	}
	if s.Language != "" {
		fmt.Fprintf(&b, " (%s)", s.Language)
	}
	return b.String()
}

// lyricLine renders one line with the active word upper-cased between
// markers and every other word lower-cased.
func lyricLine(s *corpus.Song, words []string, active int) string {
	out := make([]string, len(words))
	for i, w := range words {
		if i == active {
			out[i] = "🔸" + strings.ToUpper(w) + "🔸"
		} else {
			out[i] = strings.ToLower(w)
		}
	}
	return lyricHeader(s) + "\n\n" + strings.Join(out, " ")
}

func getReady(s *corpus.Song) string {
	return "🎵 " + s.Title + "\n\n🚀 Get ready..."
}

func songFinished(s *corpus.Song) string {
	return fmt.Sprintf("🎉 \"%s\" finished!\n\nSay \"menu\" to return or a number for another song!", s.Title)
}

func liveCaption(text string) string {
	return "🎤 " + text
}
