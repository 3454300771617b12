package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/champion-search/pkg/config"
)

func TestRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "documents.txt")
	corpus := strings.Join([]string{
		"pop love song",
		"chinese american city",
		"city city lights",
		"a love song for the city",
	}, "\n")
	if err := os.WriteFile(path, []byte(corpus), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Corpus.Path = path
	cfg.Index.ChampionThreshold = 1

	var out bytes.Buffer
	if err := run(context.Background(), &out, cfg, []string{"city"}, 10); err != nil {
		t.Fatalf("run: %v", err)
	}
	blocks := strings.Split(strings.TrimLeft(out.String(), "\n"), "\n\n\n")
	if len(blocks) != 2 {
		t.Fatalf("output blocks = %q", out.String())
	}
	full := strings.Split(strings.TrimSpace(blocks[0]), "\n")
	champ := strings.Split(strings.TrimSpace(blocks[1]), "\n")
	if full[0] != "QUERY=city" || champ[0] != "QUERY=city Using Champion List" {
		t.Fatalf("headers = %q, %q", full[0], champ[0])
	}
	if len(full) != 4 || len(champ) != 2 {
		t.Fatalf("full has %d lines, champion has %d", len(full)-1, len(champ)-1)
	}
	if !strings.HasPrefix(full[1], "2\t") || !strings.Contains(full[1], "e-") {
		t.Fatalf("first full result %q, want doc 2 in %%e notation", full[1])
	}
}

func TestRunMissingCorpus(t *testing.T) {
	cfg := config.Default()
	cfg.Corpus.Path = filepath.Join(t.TempDir(), "missing.txt.gz")
	if err := run(context.Background(), &bytes.Buffer{}, cfg, defaultQueries, 10); err == nil {
		t.Fatal("expected an error for a missing corpus")
	}
}
