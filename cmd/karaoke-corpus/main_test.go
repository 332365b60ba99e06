package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunValidateBuiltin(t *testing.T) {
	c, err := runValidate("")
	if err != nil {
		t.Fatalf("builtin corpus invalid: %v", err)
	}
	if c.Len() == 0 {
		t.Fatal("expected songs in builtin corpus")
	}
}

func TestRunValidateRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "songs.yaml")
	data := "songs:\n  - title: Gajiyo\n    lyrics: [\"a b\"]\n  - title: \"GAJIYO!\"\n    lyrics: [\"c d\"]\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write corpus: %v", err)
	}
	_, err := runValidate(path)
	if err == nil || !strings.Contains(err.Error(), "duplicates") {
		t.Fatalf("expected duplicate title error, got %v", err)
	}
}

func TestRunStats(t *testing.T) {
	var buf bytes.Buffer
	if err := runStats(&buf, ""); err != nil {
		t.Fatalf("stats: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"songs:", "categories:     11", "Devotional", "title words:"} {
		if !strings.Contains(out, want) {
			t.Fatalf("stats output missing %q:\n%s", want, out)
		}
	}
}
