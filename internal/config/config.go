package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Defaults  DefaultsConfig  `yaml:"defaults"`
	AI        AIConfig        `yaml:"ai"`
	Chat      ChatConfig      `yaml:"chat"`
	Report    ReportConfig    `yaml:"report"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// MaxUploadBytes caps CSV uploads.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

type StoreConfig struct {
	// DBPath selects the SQLite store and takes precedence over Backend.
	DBPath string `yaml:"db_path"`
	// Backend is "memory" or "persistent" when DBPath is empty.
	Backend   string `yaml:"backend"`
	StateFile string `yaml:"state_file"`
}

type DefaultsConfig struct {
	TAFilter     string `yaml:"ta_filter"`
	LookbackDays int    `yaml:"lookback_days"`
	HorizonDays  int    `yaml:"horizon_days"`
	Company      string `yaml:"company"`
	Product      string `yaml:"product"`
}

type AIConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Model     string `yaml:"model"`
	MaxTokens int64  `yaml:"max_tokens"`
	APIKey    string `yaml:"-"`
}

type ChatConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
}

type ReportConfig struct {
	ChromePath   string `yaml:"chrome_path"`
	MaxProviders int    `yaml:"max_providers"`
}

type TelemetryConfig struct {
	ServiceName  string `yaml:"service_name"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		Server:   ServerConfig{Addr: ":8080", MaxUploadBytes: 32 << 20},
		Store:    StoreConfig{Backend: "memory", StateFile: "./data/datasets.json"},
		Defaults: DefaultsConfig{LookbackDays: 30, HorizonDays: 21},
		AI:       AIConfig{Enabled: true, MaxTokens: 1024},
		Report:   ReportConfig{MaxProviders: 25},
		Telemetry: TelemetryConfig{
			ServiceName: "hcp-insights",
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables on cfg.
func (c *Config) ApplyEnv() {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		c.Server.Addr = ":" + port
	}
	if v := strings.TrimSpace(os.Getenv("DB_PATH")); v != "" {
		c.Store.DBPath = v
	}
	if v := strings.TrimSpace(os.Getenv("STORE_BACKEND")); v != "" {
		c.Store.Backend = v
	}
	if v := strings.TrimSpace(os.Getenv("STATE_FILE")); v != "" {
		c.Store.StateFile = v
	}
	c.AI.APIKey = strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_MODEL")); v != "" {
		c.AI.Model = v
	}
	if envEnabled("HCP_INSIGHTS_NO_LLM") {
		c.AI.Enabled = false
	}
	if v := strings.TrimSpace(os.Getenv("CHAT_ENDPOINT")); v != "" {
		c.Chat.Endpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("CHAT_API_KEY")); v != "" {
		c.Chat.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("CHROME_PATH")); v != "" {
		c.Report.ChromePath = v
	}
	if v := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); v != "" {
		c.Telemetry.OTLPEndpoint = v
	}
	if v, err := strconv.Atoi(os.Getenv("LOOKBACK_DAYS")); err == nil {
		c.Defaults.LookbackDays = v
	}
	if v, err := strconv.Atoi(os.Getenv("HORIZON_DAYS")); err == nil {
		c.Defaults.HorizonDays = v
	}
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Defaults.LookbackDays < 0 {
		errs = append(errs, errors.New("defaults.lookback_days must be >= 0"))
	}
	if c.Defaults.HorizonDays < 0 {
		errs = append(errs, errors.New("defaults.horizon_days must be >= 0"))
	}
	switch c.Store.Backend {
	case "memory", "persistent":
	default:
		errs = append(errs, fmt.Errorf("store.backend %q must be memory or persistent", c.Store.Backend))
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("server.max_upload_bytes must be > 0"))
	}
	return errors.Join(errs...)
}

func envEnabled(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
