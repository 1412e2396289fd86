package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/atominnolab/opensift/internal/adapter"
)

// Config is the full service configuration loaded from YAML at startup.
// Secrets are referenced from the YAML with {{.VAR}} template syntax and
// filled from the environment during loading.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	AI            AIConfig            `yaml:"ai"`
	Search        SearchConfig        `yaml:"search"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	RequestTimeout string   `yaml:"request_timeout"`
	CORSOrigins    []string `yaml:"cors_origins"`

	// Workers is accepted for deployment-config compatibility and ignored:
	// the HTTP server runs one goroutine per connection and has no worker
	// pool to size.
	Workers int `yaml:"workers"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Timeout parses the request timeout, defaulting to 60s.
func (s ServerConfig) Timeout() time.Duration {
	d, err := time.ParseDuration(s.RequestTimeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// AIConfig configures the OpenAI-compatible endpoint shared by the planner
// and verifier.
type AIConfig struct {
	APIKey        string  `yaml:"api_key"`
	BaseURL       string  `yaml:"base_url"`
	ModelPlanner  string  `yaml:"model_planner"`
	ModelVerifier string  `yaml:"model_verifier"`
	MaxTokens     int     `yaml:"max_tokens"`
	Temperature   float32 `yaml:"temperature"`
	MaxRetries    int     `yaml:"max_retries"`
}

// SearchConfig selects and configures the search backends.
type SearchConfig struct {
	DefaultAdapter       string                     `yaml:"default_adapter"`
	MaxConcurrentQueries int64                      `yaml:"max_concurrent_queries"`
	Adapters             map[string]AdapterSettings `yaml:"adapters"`
}

// AdapterSettings is the YAML shape of one adapter block.
type AdapterSettings struct {
	Enabled      bool              `yaml:"enabled"`
	Hosts        []string          `yaml:"hosts"`
	IndexPattern string            `yaml:"index_pattern"`
	Username     string            `yaml:"username"`
	Password     string            `yaml:"password"`
	APIKey       string            `yaml:"api_key"`
	Extra        map[string]string `yaml:"extra"`
}

// ToAdapter converts the YAML block into the runtime settings type.
func (s AdapterSettings) ToAdapter() adapter.Settings {
	return adapter.Settings{
		Enabled:      s.Enabled,
		Hosts:        s.Hosts,
		IndexPattern: s.IndexPattern,
		Username:     s.Username,
		Password:     s.Password,
		APIKey:       s.APIKey,
		Extra:        s.Extra,
	}
}

// ObservabilityConfig controls logging.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads the YAML file at path, expands {{.VAR}} references from the
// environment, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse builds a Config from raw YAML bytes.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(ExpandEnv(data), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.RequestTimeout == "" {
		c.Server.RequestTimeout = "60s"
	}
	if c.AI.BaseURL == "" {
		c.AI.BaseURL = "https://api.openai.com/v1"
	}
	if c.AI.ModelPlanner == "" {
		c.AI.ModelPlanner = "gpt-4o-mini"
	}
	if c.AI.ModelVerifier == "" {
		c.AI.ModelVerifier = c.AI.ModelPlanner
	}
	if c.AI.MaxTokens == 0 {
		c.AI.MaxTokens = 4096
	}
	if c.AI.MaxRetries == 0 {
		c.AI.MaxRetries = 2
	}
	if c.Search.MaxConcurrentQueries == 0 {
		c.Search.MaxConcurrentQueries = 10
	}
	if c.Observability.LogLevel == "" {
		c.Observability.LogLevel = "info"
	}
	if c.Observability.LogFormat == "" {
		c.Observability.LogFormat = "console"
	}
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Search.DefaultAdapter != "" {
		s, ok := c.Search.Adapters[c.Search.DefaultAdapter]
		if !ok {
			return fmt.Errorf("search.default_adapter %q has no adapter block", c.Search.DefaultAdapter)
		}
		if !s.Enabled {
			return fmt.Errorf("search.default_adapter %q is disabled", c.Search.DefaultAdapter)
		}
	}
	switch strings.ToLower(c.Observability.LogFormat) {
	case "console", "json":
	default:
		return fmt.Errorf("observability.log_format %q (want console or json)", c.Observability.LogFormat)
	}
	return nil
}

// EnabledAdapters returns the names of enabled adapter blocks in a stable
// order: the default adapter first, then the rest sorted by name.
func (c *Config) EnabledAdapters() []string {
	names := make([]string, 0, len(c.Search.Adapters))
	for name, s := range c.Search.Adapters {
		if s.Enabled && name != c.Search.DefaultAdapter {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if d := c.Search.DefaultAdapter; d != "" {
		if s, ok := c.Search.Adapters[d]; ok && s.Enabled {
			names = append([]string{d}, names...)
		}
	}
	return names
}
