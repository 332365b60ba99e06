package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/loqalabs/loqa-karaoke/internal/corpus"
	"github.com/loqalabs/loqa-karaoke/internal/index"
)

var version = "0.1.0-dev"

func main() {
	var corpusPath string
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	validateCmd.StringVar(&corpusPath, "file", "", "Path to song corpus (default: builtin corpus)")
	statsCmd := flag.NewFlagSet("stats", flag.ExitOnError)
	statsCmd.StringVar(&corpusPath, "file", "", "Path to song corpus (default: builtin corpus)")

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "expected 'validate', 'stats' or 'version'")
		os.Exit(2)
	}

	switch os.Args[1] {
	case "validate":
		validateCmd.Parse(os.Args[2:])
		c, err := runValidate(corpusPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("corpus valid (%d songs)\n", c.Len())
	case "stats":
		statsCmd.Parse(os.Args[2:])
		if err := runStats(os.Stdout, corpusPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		os.Exit(2)
	}
}

func runValidate(path string) (*corpus.Corpus, error) {
	c, err := corpus.Load(path)
	if err != nil {
		return nil, err
	}
	return c, corpus.Validate(c)
}

func runStats(w io.Writer, path string) error {
	c, err := runValidate(path)
	if err != nil {
		return err
	}
	st := index.Build(c).Stats()
	fmt.Fprintf(w, "songs:          %d\n", c.Len())
	fmt.Fprintf(w, "languages:      %d\n", len(c.Languages()))
	fmt.Fprintf(w, "categories:     %d\n", len(c.Categories()))
	for _, cat := range c.Categories() {
		fmt.Fprintf(w, "  %-14s%d\n", cat, len(c.ByCategory(cat)))
	}
	fmt.Fprintf(w, "lyric words:    %d\n", st.LyricWords)
	fmt.Fprintf(w, "title words:    %d\n", st.TitleWords)
	fmt.Fprintf(w, "title partials: %d\n", st.TitlePartials)
	fmt.Fprintf(w, "index keys:     %d\n", st.IndexKeys)
	return nil
}
