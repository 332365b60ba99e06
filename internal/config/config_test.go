package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Bus.Servers[0] != "nats://localhost:4222" {
		t.Fatalf("expected default server, got %v", cfg.Bus.Servers)
	}
	if cfg.Karaoke.PageSize != 5 || cfg.Karaoke.CoalesceMS != 100 || cfg.Karaoke.ScrollIntervalMS != 5000 {
		t.Fatalf("unexpected karaoke defaults: %+v", cfg.Karaoke)
	}
	if len(cfg.Karaoke.PriorityTitles) != len(DefaultPriorityTitles) {
		t.Fatalf("expected %d priority titles, got %d", len(DefaultPriorityTitles), len(cfg.Karaoke.PriorityTitles))
	}
	if cfg.Karaoke.CorpusPath != "" {
		t.Fatalf("expected embedded corpus by default, got %q", cfg.Karaoke.CorpusPath)
	}
}

func TestDefaultPriorityTitlesNotShared(t *testing.T) {
	cfg := Default()
	cfg.Karaoke.PriorityTitles[0] = "changed"
	if DefaultPriorityTitles[0] == "changed" {
		t.Fatal("default priority list was mutated through a config copy")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LOQA_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("LOQA_BUS_USERNAME", "alice")
	t.Setenv("LOQA_BUS_PASSWORD", "secret")
	t.Setenv("LOQA_BUS_TLS_INSECURE", "true")
	t.Setenv("LOQA_BUS_CONNECT_TIMEOUT_MS", "5000")
	t.Setenv("LOQA_EVENT_STORE_PATH", "./tmp.db")
	t.Setenv("LOQA_EVENT_STORE_RETENTION_MODE", "persistent")
	t.Setenv("LOQA_EVENT_STORE_RETENTION_DAYS", "7")
	t.Setenv("LOQA_EVENT_STORE_MAX_SESSIONS", "123")
	t.Setenv("LOQA_EVENT_STORE_VACUUM_ON_START", "true")
	t.Setenv("LOQA_TELEMETRY_SENTRY_DSN", "https://key@example.invalid/1")
	t.Setenv("LOQA_TELEMETRY_TRACE_EXPORTER", "none")
	t.Setenv("LOQA_TELEMETRY_TRACE_SAMPLE_RATIO", "0.25")
	t.Setenv("LOQA_KARAOKE_PAGE_SIZE", "8")
	t.Setenv("LOQA_KARAOKE_TITLE_WORD_RATIO", "0.5")
	t.Setenv("LOQA_KARAOKE_PRIORITY_TITLES", "Gajiyo, Dakor Na Thakor")
	t.Setenv("LOQA_GATEWAY_ENABLED", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Bus.Username != "alice" || cfg.Bus.Password != "secret" {
		t.Fatalf("expected credentials override")
	}
	if !cfg.Bus.TLSInsecure {
		t.Fatal("expected tls insecure override true")
	}
	if cfg.Bus.ConnectTimeout != 5000 {
		t.Fatalf("expected timeout 5000, got %d", cfg.Bus.ConnectTimeout)
	}
	if cfg.EventStore.Path != "./tmp.db" {
		t.Fatalf("expected event store path override")
	}
	if cfg.EventStore.RetentionMode != "persistent" {
		t.Fatalf("expected event store retention mode override")
	}
	if cfg.EventStore.RetentionDays != 7 {
		t.Fatalf("expected event store retention days override")
	}
	if cfg.EventStore.MaxSessions != 123 {
		t.Fatalf("expected event store max sessions override")
	}
	if !cfg.EventStore.VacuumOnStart {
		t.Fatalf("expected event store vacuum flag override")
	}
	if cfg.Telemetry.SentryDSN == "" {
		t.Fatal("expected sentry dsn override")
	}
	if cfg.Telemetry.TraceExporter != "none" || cfg.Telemetry.TraceSampleRatio != 0.25 {
		t.Fatalf("unexpected trace settings: %+v", cfg.Telemetry)
	}
	if cfg.Karaoke.PageSize != 8 {
		t.Fatalf("expected page size 8, got %d", cfg.Karaoke.PageSize)
	}
	if cfg.Karaoke.TitleWordRatio != 0.5 {
		t.Fatalf("expected title word ratio 0.5, got %v", cfg.Karaoke.TitleWordRatio)
	}
	if len(cfg.Karaoke.PriorityTitles) != 2 || cfg.Karaoke.PriorityTitles[1] != "Dakor Na Thakor" {
		t.Fatalf("unexpected priority titles: %v", cfg.Karaoke.PriorityTitles)
	}
	if cfg.Gateway.Enabled {
		t.Fatal("expected gateway disabled")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "karaoke.yaml")
	data := []byte(`
runtime_name: test-karaoke
karaoke:
  corpus_path: ./songs.yaml
  scroll_interval_ms: 3000
  priority_titles: ["Gajiyo"]
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RuntimeName != "test-karaoke" {
		t.Fatalf("unexpected runtime name %q", cfg.RuntimeName)
	}
	if cfg.Karaoke.CorpusPath != "./songs.yaml" || cfg.Karaoke.ScrollIntervalMS != 3000 {
		t.Fatalf("unexpected karaoke section: %+v", cfg.Karaoke)
	}
	if cfg.Karaoke.PageSize != 5 {
		t.Fatalf("expected unset keys to keep defaults, got page size %d", cfg.Karaoke.PageSize)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateRejectsBadKaraokeValues(t *testing.T) {
	cases := map[string]func(*Config){
		"zero page size":   func(c *Config) { c.Karaoke.PageSize = 0 },
		"ratio above one":  func(c *Config) { c.Karaoke.TitleWordRatio = 1.5 },
		"negative window":  func(c *Config) { c.Karaoke.DuplicateWindowMS = -1 },
		"zero scroll":      func(c *Config) { c.Karaoke.ScrollIntervalMS = 0 },
		"bad gateway path": func(c *Config) { c.Gateway.Path = "ws" },
		"bad retention":    func(c *Config) { c.EventStore.RetentionMode = "forever" },
		"bad exporter":     func(c *Config) { c.Telemetry.TraceExporter = "jaeger" },
		"otlp no endpoint": func(c *Config) { c.Telemetry.TraceExporter = "otlp" },
		"sample above one": func(c *Config) { c.Telemetry.TraceSampleRatio = 2 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			if err := validate(cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
