package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the telemetry engine.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Storage  StorageConfig  `yaml:"storage"`
	Sink     SinkConfig     `yaml:"sink"`
	Classify ClassifyConfig `yaml:"classify"`
	Anomaly  AnomalyConfig  `yaml:"anomaly"`
	Trend    TrendConfig    `yaml:"trend"`
	Patterns PatternsConfig `yaml:"patterns"`
}

// ServerConfig controls the HTTP listeners.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// StorageConfig controls the Valkey-backed event store.
type StorageConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	KeyPrefix    string        `yaml:"keyPrefix"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
}

// SinkConfig controls the external crash-reporting sink.
type SinkConfig struct {
	Enabled    bool          `yaml:"enabled"`
	BaseURL    string        `yaml:"baseURL"`
	APIKey     string        `yaml:"apiKey"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"maxRetries"`
	SampleRate float64       `yaml:"sampleRate"`
}

// ClassifyConfig controls rule-pack loading for the classifier.
type ClassifyConfig struct {
	Enabled             bool    `yaml:"enabled"`
	RulesPath           string  `yaml:"rulesPath"`
	ConfidenceThreshold float64 `yaml:"confidenceThreshold"`
}

// AnomalyConfig tunes the rolling baseline detector.
type AnomalyConfig struct {
	Enabled     bool    `yaml:"enabled"`
	WindowSize  int     `yaml:"windowSize"`
	Sensitivity float64 `yaml:"sensitivity"`
}

// TrendConfig controls the periodic regression sweep.
type TrendConfig struct {
	SweepInterval time.Duration `yaml:"sweepInterval"`
	Metrics       []string      `yaml:"metrics"`
}

// PatternsConfig controls the periodic pattern sweep.
type PatternsConfig struct {
	SweepInterval  time.Duration `yaml:"sweepInterval"`
	IdleEviction   time.Duration `yaml:"idleEviction"`
	AlertFrequency float64       `yaml:"alertFrequency"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("VIGIL_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Storage: StorageConfig{
			Enabled:      false,
			KeyPrefix:    "vigil",
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
		},
		Sink: SinkConfig{
			Enabled:    false,
			Timeout:    5 * time.Second,
			MaxRetries: 3,
			SampleRate: 1,
		},
		Classify: ClassifyConfig{Enabled: true},
		Anomaly: AnomalyConfig{
			Enabled:     true,
			WindowSize:  100,
			Sensitivity: 0,
		},
		Trend: TrendConfig{SweepInterval: 10 * time.Minute},
		Patterns: PatternsConfig{
			SweepInterval:  5 * time.Minute,
			IdleEviction:   24 * time.Hour,
			AlertFrequency: 10,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VIGIL_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("VIGIL_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("VIGIL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("VIGIL_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("VIGIL_STORAGE_ENABLED"); v != "" {
		cfg.Storage.Enabled = isTruthy(v)
	}
	if v := os.Getenv("VIGIL_STORAGE_ADDR"); v != "" {
		cfg.Storage.Addr = v
	}
	if v := os.Getenv("VIGIL_STORAGE_USERNAME"); v != "" {
		cfg.Storage.Username = v
	}
	if v := os.Getenv("VIGIL_STORAGE_PASSWORD"); v != "" {
		cfg.Storage.Password = v
	}
	if v := os.Getenv("VIGIL_STORAGE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Storage.DB = db
		}
	}
	if v := os.Getenv("VIGIL_STORAGE_KEY_PREFIX"); v != "" {
		cfg.Storage.KeyPrefix = v
	}
	if v := os.Getenv("VIGIL_STORAGE_TLS"); isTruthy(v) {
		cfg.Storage.TLS = true
	}
	if v := os.Getenv("VIGIL_SINK_ENABLED"); v != "" {
		cfg.Sink.Enabled = isTruthy(v)
	}
	if v := os.Getenv("VIGIL_SINK_BASE_URL"); v != "" {
		cfg.Sink.BaseURL = v
	}
	if v := os.Getenv("VIGIL_SINK_API_KEY"); v != "" {
		cfg.Sink.APIKey = v
	}
	if v := os.Getenv("VIGIL_SINK_SAMPLE_RATE"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Sink.SampleRate = rate
		}
	}
	if v := os.Getenv("VIGIL_CLASSIFY_RULES_PATH"); v != "" {
		cfg.Classify.RulesPath = v
	}
	if v := os.Getenv("VIGIL_CLASSIFY_CONFIDENCE_THRESHOLD"); v != "" {
		if threshold, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Classify.ConfidenceThreshold = threshold
		}
	}
	if v := os.Getenv("VIGIL_ANOMALY_ENABLED"); v != "" {
		cfg.Anomaly.Enabled = isTruthy(v)
	}
	if v := os.Getenv("VIGIL_ANOMALY_WINDOW_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			cfg.Anomaly.WindowSize = size
		}
	}
	if v := os.Getenv("VIGIL_ANOMALY_SENSITIVITY"); v != "" {
		if sensitivity, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Anomaly.Sensitivity = sensitivity
		}
	}
	if v := os.Getenv("VIGIL_TREND_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Trend.SweepInterval = d
		}
	}
	if v := os.Getenv("VIGIL_TREND_METRICS"); v != "" {
		cfg.Trend.Metrics = splitList(v)
	}
	if v := os.Getenv("VIGIL_PATTERNS_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Patterns.SweepInterval = d
		}
	}
	if v := os.Getenv("VIGIL_PATTERNS_IDLE_EVICTION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Patterns.IdleEviction = d
		}
	}
	if v := os.Getenv("VIGIL_PATTERNS_ALERT_FREQUENCY"); v != "" {
		if frequency, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Patterns.AlertFrequency = frequency
		}
	}
}

func isTruthy(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
