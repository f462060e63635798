package graphground

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the file configuration of the graphground command and server.
//
//	dir: ./data
//	listen: :7474
//	log_level: info
//	log_format: text
//	options:
//	  cache_size: 10000
//	  max_groundings: 100000
//	  default_query_timeout: 30s
type Config struct {
	Dir       string  `yaml:"dir"`
	Listen    string  `yaml:"listen"`
	LogLevel  string  `yaml:"log_level"`
	LogFormat string  `yaml:"log_format"`
	Options   Options `yaml:"options"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Dir:       "./data",
		Listen:    ":7474",
		LogLevel:  "info",
		LogFormat: "text",
		Options:   DefaultOptions(),
	}
}

// LoadConfig reads a YAML config file on top of DefaultConfig. An empty
// path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("graphground: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("graphground: parse config %s: %w", path, err)
	}
	return cfg, nil
}

// NewLogger builds the slog logger described by the config.
func (c Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("graphground: log level %q: %w", c.LogLevel, err)
	}
	hopts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(c.LogFormat) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, hopts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	default:
		return nil, fmt.Errorf("graphground: unknown log format %q", c.LogFormat)
	}
}
