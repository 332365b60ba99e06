package match

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/loqalabs/loqa-karaoke/internal/corpus"
	"github.com/loqalabs/loqa-karaoke/internal/textnorm"
)

var digitRun = regexp.MustCompile(`\b(\d+)\b`)

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14, "fifteen": 15,
	"sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19, "twenty": 20,
}

// substringOrder checks the teens before the units so "seventeen" is not
// read as "seven".
var substringOrder = []string{
	"eleven", "twelve", "thirteen", "fourteen", "fifteen",
	"sixteen", "seventeen", "eighteen", "nineteen", "twenty",
	"one", "two", "three", "four", "five",
	"six", "seven", "eight", "nine", "ten",
}

// ParseOrdinal extracts the first number spoken in text: a digit run, else a
// number word standing alone, else a number word embedded in a longer token.
func ParseOrdinal(text string) (int, bool) {
	lower := strings.ToLower(text)
	if m := digitRun.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n, true
		}
	}
	for _, tok := range textnorm.Tokenize(lower) {
		if n, ok := numberWords[tok]; ok {
			return n, true
		}
	}
	for _, w := range substringOrder {
		if strings.Contains(lower, w) {
			return numberWords[w], true
		}
	}
	return 0, false
}

// SelectByNumber returns the song at the spoken 1-based position of shown,
// the list currently on screen.
func SelectByNumber(text string, shown []*corpus.Song) *corpus.Song {
	n, ok := ParseOrdinal(text)
	if !ok || n < 1 || n > len(shown) {
		return nil
	}
	return shown[n-1]
}
