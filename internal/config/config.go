package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel         string  `yaml:"log_level"`
	OTLPEndpoint     string  `yaml:"otlp_endpoint"`
	OTLPInsecure     bool    `yaml:"otlp_insecure"`
	TraceExporter    string  `yaml:"trace_exporter"` // auto, otlp, stdout or none
	TraceSampleRatio float64 `yaml:"trace_sample_ratio"`
	PrometheusBind   string  `yaml:"prometheus_bind"`
	SentryDSN        string  `yaml:"sentry_dsn"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName string           `yaml:"runtime_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	EventStore  EventStoreConfig `yaml:"event_store"`
	Karaoke     KaraokeConfig    `yaml:"karaoke"`
	Gateway     GatewayConfig    `yaml:"gateway"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type EventStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

// KaraokeConfig holds the corpus location and the matching/timing tunables.
type KaraokeConfig struct {
	CorpusPath        string   `yaml:"corpus_path"` // empty uses the embedded corpus
	PriorityTitles    []string `yaml:"priority_titles"`
	TitleWordRatio    float64  `yaml:"title_word_ratio"`
	PrefixRatio       float64  `yaml:"prefix_ratio"`
	ProgressSample    int      `yaml:"progress_sample"`
	DuplicateWindowMS int      `yaml:"duplicate_window_ms"`
	CoalesceMS        int      `yaml:"coalesce_ms"`
	SearchDelayMS     int      `yaml:"search_delay_ms"`
	ScrollIntervalMS  int      `yaml:"scroll_interval_ms"`
	PageSize          int      `yaml:"page_size"`
	TemporaryMS       int      `yaml:"temporary_ms"`
}

type GatewayConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Path         string `yaml:"path"`
	WriteTimeout int    `yaml:"write_timeout_ms"`
}

// DefaultPriorityTitles is the curated order the menu opens with.
var DefaultPriorityTitles = []string{
	"Gujju Bhuriya",
	"Amu kaka bapa na",
	"Dwarika no nath",
	"Vala aato valap",
	"Gori Tame",
	"Kanji Kado Morli Vado Gayo No Goval (Mathura Mathura Mathura Aeeyy)",
	"Fararar eto Fararar",
	"Mathura Ma Vagi Morli",
	"Ranchhod Rangila",
	"Chalde Aai Rulaai",
	"Gajiyo",
	"Har Har Shambu Shiv Mahadev",
	"Kanaiya Morli Vala Re",
	"I am very very sorry kana tane bhuli gai",
	"Moti Veraana",
	"Rasiyo Rupalo",
	"Dakor Na Thakor",
	"Nav Lakhlobaiyu",
	"Khel Khel Re Bhavani Maa",
	"Kalo Bhammariyado",
}

func Default() Config {
	return Config{
		RuntimeName: "loqa-karaoke",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:         "info",
			OTLPEndpoint:     "",
			OTLPInsecure:     true,
			TraceExporter:    "auto",
			TraceSampleRatio: 1,
			PrometheusBind:   ":9091",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		EventStore: EventStoreConfig{
			Path:          "./data/karaoke-events.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
		Karaoke: KaraokeConfig{
			PriorityTitles:    append([]string(nil), DefaultPriorityTitles...),
			TitleWordRatio:    0.7,
			PrefixRatio:       0.6,
			ProgressSample:    100,
			DuplicateWindowMS: 50,
			CoalesceMS:        100,
			SearchDelayMS:     2000,
			ScrollIntervalMS:  5000,
			PageSize:          5,
			TemporaryMS:       1000,
		},
		Gateway: GatewayConfig{
			Enabled:      true,
			Path:         "/ws",
			WriteTimeout: 2000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "LOQA_RUNTIME_NAME")
	overrideString(&cfg.Environment, "LOQA_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "LOQA_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "LOQA_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "LOQA_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "LOQA_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "LOQA_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.TraceExporter, "LOQA_TELEMETRY_TRACE_EXPORTER")
	overrideFloat(&cfg.Telemetry.TraceSampleRatio, "LOQA_TELEMETRY_TRACE_SAMPLE_RATIO")
	overrideString(&cfg.Telemetry.PrometheusBind, "LOQA_TELEMETRY_PROMETHEUS_BIND")
	overrideString(&cfg.Telemetry.SentryDSN, "LOQA_TELEMETRY_SENTRY_DSN")
	overrideBool(&cfg.Bus.Embedded, "LOQA_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "LOQA_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "LOQA_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "LOQA_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "LOQA_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "LOQA_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "LOQA_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "LOQA_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.EventStore.Path, "LOQA_EVENT_STORE_PATH")
	overrideString(&cfg.EventStore.RetentionMode, "LOQA_EVENT_STORE_RETENTION_MODE")
	overrideInt(&cfg.EventStore.RetentionDays, "LOQA_EVENT_STORE_RETENTION_DAYS")
	overrideInt(&cfg.EventStore.MaxSessions, "LOQA_EVENT_STORE_MAX_SESSIONS")
	overrideBool(&cfg.EventStore.VacuumOnStart, "LOQA_EVENT_STORE_VACUUM_ON_START")
	overrideString(&cfg.Karaoke.CorpusPath, "LOQA_KARAOKE_CORPUS_PATH")
	overrideStringSlice(&cfg.Karaoke.PriorityTitles, "LOQA_KARAOKE_PRIORITY_TITLES")
	overrideFloat(&cfg.Karaoke.TitleWordRatio, "LOQA_KARAOKE_TITLE_WORD_RATIO")
	overrideFloat(&cfg.Karaoke.PrefixRatio, "LOQA_KARAOKE_PREFIX_RATIO")
	overrideInt(&cfg.Karaoke.ProgressSample, "LOQA_KARAOKE_PROGRESS_SAMPLE")
	overrideInt(&cfg.Karaoke.DuplicateWindowMS, "LOQA_KARAOKE_DUPLICATE_WINDOW_MS")
	overrideInt(&cfg.Karaoke.CoalesceMS, "LOQA_KARAOKE_COALESCE_MS")
	overrideInt(&cfg.Karaoke.SearchDelayMS, "LOQA_KARAOKE_SEARCH_DELAY_MS")
	overrideInt(&cfg.Karaoke.ScrollIntervalMS, "LOQA_KARAOKE_SCROLL_INTERVAL_MS")
	overrideInt(&cfg.Karaoke.PageSize, "LOQA_KARAOKE_PAGE_SIZE")
	overrideInt(&cfg.Karaoke.TemporaryMS, "LOQA_KARAOKE_TEMPORARY_MS")
	overrideBool(&cfg.Gateway.Enabled, "LOQA_GATEWAY_ENABLED")
	overrideString(&cfg.Gateway.Path, "LOQA_GATEWAY_PATH")
	overrideInt(&cfg.Gateway.WriteTimeout, "LOQA_GATEWAY_WRITE_TIMEOUT_MS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.EventStore.Path == "" && cfg.EventStore.RetentionMode != "ephemeral" {
		return errors.New("event_store.path must not be empty")
	}
	switch cfg.EventStore.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("event_store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.EventStore.RetentionDays < 0 {
		return errors.New("event_store.retention_days must be >= 0")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	switch cfg.Telemetry.TraceExporter {
	case "auto", "otlp", "stdout", "none":
	default:
		return errors.New("telemetry.trace_exporter must be one of auto|otlp|stdout|none")
	}
	if cfg.Telemetry.TraceExporter == "otlp" && strings.TrimSpace(cfg.Telemetry.OTLPEndpoint) == "" {
		return errors.New("telemetry.otlp_endpoint must be set when trace_exporter is otlp")
	}
	if cfg.Telemetry.TraceSampleRatio < 0 || cfg.Telemetry.TraceSampleRatio > 1 {
		return errors.New("telemetry.trace_sample_ratio must be in [0, 1]")
	}
	if err := validateKaraoke(cfg.Karaoke); err != nil {
		return err
	}
	if cfg.Gateway.Enabled {
		if !strings.HasPrefix(cfg.Gateway.Path, "/") {
			return errors.New("gateway.path must start with /")
		}
		if cfg.Gateway.WriteTimeout <= 0 {
			return errors.New("gateway.write_timeout_ms must be positive")
		}
	}
	return nil
}

func validateKaraoke(k KaraokeConfig) error {
	if k.TitleWordRatio <= 0 || k.TitleWordRatio > 1 {
		return errors.New("karaoke.title_word_ratio must be in (0, 1]")
	}
	if k.PrefixRatio <= 0 || k.PrefixRatio > 1 {
		return errors.New("karaoke.prefix_ratio must be in (0, 1]")
	}
	if k.ProgressSample <= 0 {
		return errors.New("karaoke.progress_sample must be positive")
	}
	if k.PageSize <= 0 {
		return errors.New("karaoke.page_size must be positive")
	}
	if k.ScrollIntervalMS <= 0 {
		return errors.New("karaoke.scroll_interval_ms must be positive")
	}
	if k.DuplicateWindowMS < 0 || k.CoalesceMS < 0 || k.SearchDelayMS < 0 || k.TemporaryMS < 0 {
		return errors.New("karaoke timing values must be >= 0")
	}
	return nil
}
