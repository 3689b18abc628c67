// Package config loads the kinship YAML configuration and the credentials
// it names from the environment.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/kinship/internal/llm"
	"github.com/cognicore/kinship/pkg/kinship/internalerr"
	"github.com/cognicore/kinship/pkg/kinship/kb"
)

// Config is the top-level configuration file.
type Config struct {
	// FactFile pins the fact file; empty means the default lookup.
	FactFile string  `yaml:"fact_file"`
	Journal  Journal `yaml:"journal"`
	LLM      LLM     `yaml:"llm"`
	Engine   Engine  `yaml:"engine"`
	Server   Server  `yaml:"server"`
	Intent   Intent  `yaml:"intent"`
}

// Journal selects where interactions are recorded.
type Journal struct {
	Driver string `yaml:"driver"` // sqlite or memory
	Path   string `yaml:"path"`
}

// LLM configures the language-model provider.
type LLM struct {
	Provider  string        `yaml:"provider"`
	Model     string        `yaml:"model"`
	BaseURL   string        `yaml:"base_url"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Engine configures the reasoning engine.
type Engine struct {
	Timeout time.Duration `yaml:"timeout"`
	// Rules is an optional Prolog file consulted after the built-in rules.
	Rules string `yaml:"rules"`
}

// Server configures the HTTP API.
type Server struct {
	Addr          string `yaml:"addr"`
	MaxConns      int    `yaml:"max_conns"`
	AsksPerMinute int    `yaml:"asks_per_minute"`
}

// Intent configures extraction.
type Intent struct {
	CacheSize int `yaml:"cache_size"`
}

const (
	JournalSQLite = "sqlite"
	JournalMemory = "memory"
)

// Default returns the configuration used when no file is given. Keys
// missing from a file keep these values.
func Default() Config {
	return Config{
		Journal: Journal{Driver: JournalSQLite, Path: "kinship.db"},
		LLM: LLM{
			Provider:  llm.ProviderGemini,
			Model:     llm.DefaultGeminiModel,
			APIKeyEnv: "GEMINI_API_KEY",
			Timeout:   30 * time.Second,
		},
		Engine: Engine{Timeout: 10 * time.Second},
		Server: Server{Addr: ":8080", MaxConns: 64},
		Intent: Intent{CacheSize: 256},
	}
}

// Load reads path over the defaults. An empty path returns Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Mark(errors.Wrapf(err, "parse config %s", path), internalerr.ErrInvalidConfig)
	}
	return cfg, nil
}

// LoadEnv loads .env style files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "load %s", f)
		}
	}
	return nil
}

// APIKey returns the credential named by llm.api_key_env.
func (c Config) APIKey() string {
	if c.LLM.APIKeyEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(c.LLM.APIKeyEnv))
}

// Candidates returns the fact file lookup order.
func (c Config) Candidates() []string {
	if c.FactFile != "" {
		return []string{c.FactFile}
	}
	return kb.DefaultCandidates()
}

// ExtraRules reads engine.rules, or returns "" when unset.
func (c Config) ExtraRules() (string, error) {
	if c.Engine.Rules == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.Engine.Rules)
	if err != nil {
		return "", errors.Wrapf(err, "read rules %s", c.Engine.Rules)
	}
	return string(data), nil
}

// Validate checks the values that do not depend on the environment.
func (c Config) Validate() error {
	switch c.LLM.Provider {
	case llm.ProviderGemini:
	case llm.ProviderOpenAI:
		if c.LLM.BaseURL == "" || c.LLM.Model == "" {
			return invalid("llm.base_url and llm.model are required for the openai provider", "")
		}
	default:
		return invalid("unknown llm.provider %q", "use gemini or openai", c.LLM.Provider)
	}
	if c.LLM.Timeout <= 0 {
		return invalid("llm.timeout must be positive, got %s", "", c.LLM.Timeout)
	}
	if c.Engine.Timeout <= 0 {
		return invalid("engine.timeout must be positive, got %s", "", c.Engine.Timeout)
	}
	switch c.Journal.Driver {
	case JournalMemory:
	case JournalSQLite:
		if c.Journal.Path == "" {
			return invalid("journal.path is required for the sqlite journal", "")
		}
	default:
		return invalid("unknown journal.driver %q", "use sqlite or memory", c.Journal.Driver)
	}
	if c.Intent.CacheSize < 0 {
		return invalid("intent.cache_size must not be negative", "")
	}
	if c.Server.MaxConns < 0 {
		return invalid("server.max_conns must not be negative", "")
	}
	if c.Server.AsksPerMinute < 0 {
		return invalid("server.asks_per_minute must not be negative", "use 0 for no limit")
	}
	return nil
}

// RequireCredentials fails when the provider needs a key that is not set.
func (c Config) RequireCredentials() error {
	if c.LLM.Provider == llm.ProviderGemini && c.APIKey() == "" {
		return invalid("%s not found", "set "+c.LLM.APIKeyEnv+" in the environment or in .env", c.LLM.APIKeyEnv)
	}
	return nil
}

func invalid(format, hint string, args ...interface{}) error {
	err := errors.Wrapf(internalerr.ErrInvalidConfig, format, args...)
	if hint != "" {
		err = errors.WithHint(err, hint)
	}
	return err
}
