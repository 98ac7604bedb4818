package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Symbols []string `yaml:"symbols"`
	Source  struct {
		Timeframe string `yaml:"timeframe"`
	} `yaml:"source"`
	Pipeline struct {
		Method       string         `yaml:"method"`    // asof or exact
		Tolerance    string         `yaml:"tolerance"` // 500ms, 30s, 1m, 1h, 1d
		Direction    string         `yaml:"direction"` // backward or forward
		Anchor       string         `yaml:"anchor"`
		Strict       bool           `yaml:"strict"`
		VolWindows   []string       `yaml:"vol_windows"`
		BetaWindow   string         `yaml:"beta_window"`
		ZScoreWindow string         `yaml:"zscore_window"`
		Destination  string         `yaml:"destination"`
		Preset       string         `yaml:"preset"` // default, strict, loose
		Validation   map[string]any `yaml:"validation"`
	} `yaml:"pipeline"`
	Registry struct {
		Dir string `yaml:"dir"`
	} `yaml:"registry"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Host     string        `yaml:"host"`
		Port     int           `yaml:"port"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		TTL      time.Duration `yaml:"ttl"`
	} `yaml:"redis"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Redis.Host = host
		if ok {
			fmt.Sscanf(port, "%d", &c.Redis.Port)
		}
	}
	if v := os.Getenv("REGISTRY_DIR"); v != "" {
		c.Registry.Dir = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Pipeline.Method == "" {
		c.Pipeline.Method = "asof"
	}
	// The loose preset leaves tolerance empty so the aligner can pick its
	// own wider default.
	if c.Pipeline.Tolerance == "" && c.Pipeline.Preset != "loose" {
		c.Pipeline.Tolerance = "1m"
	}
	if c.Pipeline.Direction == "" {
		c.Pipeline.Direction = "backward"
	}
	if len(c.Pipeline.VolWindows) == 0 {
		c.Pipeline.VolWindows = []string{"1h"}
	}
	if c.Pipeline.BetaWindow == "" {
		c.Pipeline.BetaWindow = "1h"
	}
	if c.Pipeline.ZScoreWindow == "" {
		c.Pipeline.ZScoreWindow = "1d"
	}
	if c.Pipeline.Preset == "" {
		c.Pipeline.Preset = "default"
	}
	if c.Pipeline.Destination == "" {
		c.Pipeline.Destination = "features"
	}
	if c.Registry.Dir == "" {
		c.Registry.Dir = "data/registry"
	}
	if c.Source.Timeframe == "" {
		c.Source.Timeframe = "1m"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Symbols) < 2 {
		return fmt.Errorf("symbols requires at least two entries for pair features")
	}
	if c.Pipeline.Method != "asof" && c.Pipeline.Method != "exact" {
		return fmt.Errorf("pipeline.method must be 'asof' or 'exact', got '%s'", c.Pipeline.Method)
	}
	if c.Pipeline.Direction != "backward" && c.Pipeline.Direction != "forward" {
		return fmt.Errorf("pipeline.direction must be 'backward' or 'forward', got '%s'", c.Pipeline.Direction)
	}
	switch c.Pipeline.Preset {
	case "default", "strict", "loose":
	default:
		return fmt.Errorf("pipeline.preset must be 'default', 'strict' or 'loose', got '%s'", c.Pipeline.Preset)
	}
	if c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}
