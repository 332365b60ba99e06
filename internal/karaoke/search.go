package karaoke

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/loqalabs/loqa-karaoke/internal/corpus"
	"github.com/loqalabs/loqa-karaoke/internal/index"
	"github.com/loqalabs/loqa-karaoke/internal/textnorm"
)

// rankSearch orders corpus search hits: songs indexed under the term (or any
// of its words) first, then by Jaro-Winkler similarity of term and title.
// Ties keep corpus order.
func rankSearch(idx *index.Index, term string) []*corpus.Song {
	hits := idx.Corpus().Search(term)
	if len(hits) < 2 {
		return hits
	}
	norm := textnorm.Normalize(term)
	indexed := make(map[*corpus.Song]bool)
	keys := append([]string{norm}, strings.Fields(norm)...)
	for _, key := range keys {
		for _, s := range idx.SongsFor(key) {
			indexed[s] = true
		}
	}
	scores := make(map[*corpus.Song]float64, len(hits))
	for _, s := range hits {
		scores[s] = matchr.JaroWinkler(norm, idx.NormalizedTitle(s), false)
	}
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if indexed[a] != indexed[b] {
			return indexed[a]
		}
		return scores[a] > scores[b]
	})
	return hits
}

// searchTerm strips the "search" keyword from an utterance.
func searchTerm(text string) string {
	var kept []string
	for _, tok := range textnorm.Tokenize(text) {
		if tok != "search" {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " ")
}
