package config

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/champion-search/pkg/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Index.ChampionThreshold != 10 {
		t.Errorf("champion threshold = %d, want 10", cfg.Index.ChampionThreshold)
	}
	if cfg.Corpus.Source != SourceFile {
		t.Errorf("corpus source = %q, want %q", cfg.Corpus.Source, SourceFile)
	}
	if cfg.Search.DefaultLimit != 10 {
		t.Errorf("default limit = %d, want 10", cfg.Search.DefaultLimit)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
corpus:
  path: /data/documents.txt.gz
index:
  championThreshold: 25
  stem: true
  rebuildTimeout: 30s
redis:
  cacheTTL: 2m
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Corpus.Path != "/data/documents.txt.gz" {
		t.Errorf("corpus path = %q", cfg.Corpus.Path)
	}
	if cfg.Index.ChampionThreshold != 25 || !cfg.Index.Stem {
		t.Errorf("index = %+v", cfg.Index)
	}
	if cfg.Index.RebuildTimeout != 30*time.Second {
		t.Errorf("rebuild timeout = %v", cfg.Index.RebuildTimeout)
	}
	if cfg.Redis.CacheTTL != 2*time.Minute {
		t.Errorf("cache ttl = %v", cfg.Redis.CacheTTL)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("unset fields should keep defaults, redis addr = %q", cfg.Redis.Addr)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SP_INDEX_CHAMPION_THRESHOLD", "3")
	t.Setenv("SP_CORPUS_PATH", "/tmp/corpus.gz")
	t.Setenv("SP_KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("SP_KAFKA_ENABLED", "true")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Index.ChampionThreshold != 3 {
		t.Errorf("champion threshold = %d, want 3", cfg.Index.ChampionThreshold)
	}
	if cfg.Corpus.Path != "/tmp/corpus.gz" {
		t.Errorf("corpus path = %q", cfg.Corpus.Path)
	}
	if len(cfg.Kafka.Brokers) != 2 || !cfg.Kafka.Enabled {
		t.Errorf("kafka = %+v", cfg.Kafka)
	}
}

func TestLoadRejectsNonPositiveThreshold(t *testing.T) {
	for _, body := range []string{"index:\n  championThreshold: 0\n", "index:\n  championThreshold: -1\n"} {
		_, err := Load(writeConfig(t, body))
		if !errors.Is(err, apperrors.ErrInvalidConfig) {
			t.Fatalf("err = %v, want ErrInvalidConfig", err)
		}
		if apperrors.HTTPStatusCode(err) != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", apperrors.HTTPStatusCode(err))
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"unknown source", func(c *Config) { c.Corpus.Source = "s3" }, false},
		{"file without path", func(c *Config) { c.Corpus.Path = "" }, false},
		{"postgres", func(c *Config) { c.Corpus.Source = SourcePostgres }, true},
		{"postgres without table", func(c *Config) {
			c.Corpus.Source = SourcePostgres
			c.Corpus.Table = ""
		}, false},
		{"limit above max", func(c *Config) { c.Search.DefaultLimit = 500 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err == nil) != tt.ok {
				t.Fatalf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestPostgresDSN(t *testing.T) {
	dsn := Default().Postgres.DSN()
	want := "host=localhost port=5432 user=championsearch password=localdev dbname=championsearch sslmode=disable"
	if dsn != want {
		t.Fatalf("DSN = %q, want %q", dsn, want)
	}
}

func TestDevelopmentConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "development.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Kafka.Topics.CorpusReload == "" || cfg.Index.RebuildTimeout != 5*time.Minute {
		t.Fatalf("unexpected development config %+v", cfg)
	}
}
