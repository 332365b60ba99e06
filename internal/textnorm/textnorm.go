// Package textnorm reduces transcripts, titles and lyrics to a comparable form.
// Every matcher in the service compares strings only after they went through
// Normalize, so the rules here define what "the same word" means.
package textnorm

import "strings"

// Punctuation lists the characters stripped by Normalize.
const Punctuation = `.,!?;()-"'`

var stripper = strings.NewReplacer(
	".", "", ",", "", "!", "", "?", "", ";", "",
	"(", "", ")", "", "-", "", `"`, "", "'", "",
)

// Normalize lowercases text, removes Punctuation and collapses runs of
// whitespace into single spaces. It is idempotent.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	cleaned := stripper.Replace(strings.ToLower(text))
	return strings.Join(strings.Fields(cleaned), " ")
}

// Tokenize returns the whitespace separated words of the normalized text.
func Tokenize(text string) []string {
	return strings.Fields(Normalize(text))
}
