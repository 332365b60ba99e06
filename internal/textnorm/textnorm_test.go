package textnorm

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"Gajiyo Mujho Jor", "gajiyo mujho jor"},
		{"Kanji Kado (Mathura Mathura)", "kanji kado mathura mathura"},
		{"  AY! Daacheno na deshmo,  komaroo deshmo ", "ay daacheno na deshmo komaroo deshmo"},
		{`"Search" it's-here?`, "search itshere"},
		{"tab\tand\nnewline", "tab and newline"},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"", "Menu!", "  Hu  Ru Ru ", "I Am Very Sorry Kana", "(((", "Ämbi-Tiöz's", "one, two; three.",
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Fatalf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestTokenize(t *testing.T) {
	if got := Tokenize(""); len(got) != 0 {
		t.Fatalf("expected no tokens, got %v", got)
	}
	want := []string{"search", "gajiyo"}
	if got := Tokenize("  Search,  GAJIYO! "); !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokenize = %v, want %v", got, want)
	}
	if got := Tokenize("- ! ?"); len(got) != 0 {
		t.Fatalf("punctuation-only input should yield no tokens, got %v", got)
	}
}
