// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package config

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the top-level Aegis configuration.
type Config struct {
	Server    ServerConfig              `mapstructure:"server"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Models    ModelsConfig              `mapstructure:"models"`
	Storage   StorageConfig             `mapstructure:"storage"`
	Ingest    IngestConfig              `mapstructure:"ingest"`
	Agent     AgentConfig               `mapstructure:"agent"`
	Tools     ToolsConfig               `mapstructure:"tools"`
	Security  SecurityConfig            `mapstructure:"security"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Listen         string          `mapstructure:"listen"`
	CORSOrigins    []string        `mapstructure:"cors_origins"`
	ReadTimeout    time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration   `mapstructure:"write_timeout"`
	MaxUploadBytes int64           `mapstructure:"max_upload_bytes"`
	TrustedProxies []string        `mapstructure:"trusted_proxies"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig configures per-IP request limiting. RPS of zero disables it.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// ProviderConfig holds credentials and endpoint for an LLM provider.
type ProviderConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

// ModelsConfig selects generation and embedding models.
type ModelsConfig struct {
	Default       string   `mapstructure:"default"`
	Failover      []string `mapstructure:"failover"`
	Embedding     string   `mapstructure:"embedding"`
	EmbeddingDims int      `mapstructure:"embedding_dims"`
	Temperature   float64  `mapstructure:"temperature"`
}

// StorageConfig selects the storage backend and its data directory.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	DataDir string `mapstructure:"data_dir"`
}

// ChunkProfile is a chunk size and overlap in characters.
type ChunkProfile struct {
	Size    int `mapstructure:"size"`
	Overlap int `mapstructure:"overlap"`
}

// IngestConfig controls document ingestion.
type IngestConfig struct {
	Documents       ChunkProfile `mapstructure:"documents"`
	Policies        ChunkProfile `mapstructure:"policies"`
	DuplicatePolicy string       `mapstructure:"duplicate_policy"`
	WatchDir        string       `mapstructure:"watch_dir"`
	TempDir         string       `mapstructure:"temp_dir"`
	EmbedBatchSize  int          `mapstructure:"embed_batch_size"`
}

// AgentConfig controls the orchestrator loop.
type AgentConfig struct {
	MaxIterations int           `mapstructure:"max_iterations"`
	MemoryWindow  int           `mapstructure:"memory_window"`
	TurnTimeout   time.Duration `mapstructure:"turn_timeout"`
}

// RetrievalToolConfig controls one retrieval-backed specialist.
type RetrievalToolConfig struct {
	K int `mapstructure:"k"`
}

// ToolsConfig configures the specialist tools.
type ToolsConfig struct {
	TalentScout RetrievalToolConfig `mapstructure:"talent_scout"`
	PolicyBot   RetrievalToolConfig `mapstructure:"policy_bot"`
}

// SecurityConfig selects sanitization and input scanning behavior.
type SecurityConfig struct {
	SanitizeMode string `mapstructure:"sanitize_mode"`
	InputMode    string `mapstructure:"input_mode"`
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", "127.0.0.1:8000")
	v.SetDefault("server.cors_origins", []string{"http://localhost:8501"})
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 180*time.Second)
	v.SetDefault("server.max_upload_bytes", int64(10<<20))
	v.SetDefault("server.rate_limit.rps", 0)
	v.SetDefault("server.rate_limit.burst", 10)

	v.SetDefault("models.default", "google/gemini-2.5-flash")
	v.SetDefault("models.embedding", "google/text-embedding-004")
	v.SetDefault("models.embedding_dims", 768)
	v.SetDefault("models.temperature", 0.3)

	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.data_dir", "aegis_data")

	v.SetDefault("ingest.documents.size", 1000)
	v.SetDefault("ingest.documents.overlap", 200)
	v.SetDefault("ingest.policies.size", 500)
	v.SetDefault("ingest.policies.overlap", 100)
	v.SetDefault("ingest.duplicate_policy", "replace")
	v.SetDefault("ingest.watch_dir", "")
	v.SetDefault("ingest.temp_dir", "")
	v.SetDefault("ingest.embed_batch_size", 32)

	v.SetDefault("agent.max_iterations", 5)
	v.SetDefault("agent.memory_window", 5)
	v.SetDefault("agent.turn_timeout", 120*time.Second)

	v.SetDefault("tools.talent_scout.k", 15)
	v.SetDefault("tools.policy_bot.k", 15)

	v.SetDefault("security.sanitize_mode", "hybrid")
	v.SetDefault("security.input_mode", "flag")
}

// SetupEnv enables AEGIS_-prefixed environment overrides, with dots in keys
// mapped to underscores (AEGIS_AGENT_MAX_ITERATIONS).
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("AEGIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, aegiserr.Errorf(aegiserr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, aegiserr.Errorf(aegiserr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, aegiserr.Errorf(aegiserr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found, collecting all issues
// rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateModels()...)
	errs = append(errs, c.validateIngest()...)
	errs = append(errs, c.validateAgent()...)
	errs = append(errs, c.validateSecurity()...)

	return errs
}

func invalid(format string, args ...any) error {
	return aegiserr.Errorf(aegiserr.CodeConfigValidateInvalidValue, "config: "+format, args...)
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, invalid("server.listen must not be empty"))
	} else {
		_, portStr, err := net.SplitHostPort(c.Server.Listen)
		if err != nil {
			errs = append(errs, invalid("server.listen must be a valid host:port address, got %q: %w", c.Server.Listen, err))
		} else if port, err := strconv.Atoi(portStr); err != nil {
			errs = append(errs, invalid("server.listen port must be a number, got %q", portStr))
		} else if port < 1 || port > 65535 {
			errs = append(errs, invalid("server.listen port must be between 1 and 65535, got %d", port))
		}
	}

	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, invalid("server.max_upload_bytes must be greater than 0, got %d", c.Server.MaxUploadBytes))
	}

	if c.Server.RateLimit.RPS < 0 {
		errs = append(errs, invalid("server.rate_limit.rps must not be negative, got %g", c.Server.RateLimit.RPS))
	}
	if c.Server.RateLimit.RPS > 0 && c.Server.RateLimit.Burst <= 0 {
		errs = append(errs, invalid("server.rate_limit.burst must be positive when rps is set, got %d", c.Server.RateLimit.Burst))
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	validBackends := map[string]bool{"sqlite": true}
	if !validBackends[c.Storage.Backend] {
		errs = append(errs, invalid("storage.backend must be one of [sqlite], got %q", c.Storage.Backend))
	}
	if c.Storage.DataDir == "" {
		errs = append(errs, invalid("storage.data_dir must not be empty"))
	}

	return errs
}

func (c *Config) validateModels() []error {
	var errs []error

	checkRef := func(key, ref string) {
		if !strings.Contains(ref, "/") {
			errs = append(errs, invalid("%s must be in \"provider/model\" format, got %q", key, ref))
			return
		}
		// A nil providers map means no providers section was configured,
		// which is valid for a fresh install running on defaults.
		if c.Providers == nil {
			return
		}
		name := ProviderFromModel(ref)
		if _, ok := c.Providers[name]; !ok {
			errs = append(errs, invalid("%s %q references provider %q which is not configured", key, ref, name))
		}
	}

	if c.Models.Default == "" {
		errs = append(errs, invalid("models.default must not be empty"))
	} else {
		checkRef("models.default", c.Models.Default)
	}

	for i, model := range c.Models.Failover {
		checkRef("models.failover["+strconv.Itoa(i)+"]", model)
	}

	if c.Models.Embedding == "" {
		errs = append(errs, invalid("models.embedding must not be empty"))
	} else {
		checkRef("models.embedding", c.Models.Embedding)
	}

	if c.Models.EmbeddingDims <= 0 {
		errs = append(errs, invalid("models.embedding_dims must be greater than 0, got %d", c.Models.EmbeddingDims))
	}
	if c.Models.Temperature < 0 || c.Models.Temperature > 2 {
		errs = append(errs, invalid("models.temperature must be between 0 and 2, got %g", c.Models.Temperature))
	}

	return errs
}

func (c *Config) validateIngest() []error {
	var errs []error

	for name, p := range map[string]ChunkProfile{
		"documents": c.Ingest.Documents,
		"policies":  c.Ingest.Policies,
	} {
		if p.Size <= 0 {
			errs = append(errs, invalid("ingest.%s.size must be greater than 0, got %d", name, p.Size))
		}
		if p.Overlap < 0 || (p.Size > 0 && p.Overlap >= p.Size) {
			errs = append(errs, invalid("ingest.%s.overlap must be in [0, size), got %d", name, p.Overlap))
		}
	}

	validPolicies := map[string]bool{"replace": true, "append": true, "reject": true}
	if !validPolicies[c.Ingest.DuplicatePolicy] {
		errs = append(errs, invalid("ingest.duplicate_policy must be one of [replace, append, reject], got %q", c.Ingest.DuplicatePolicy))
	}

	if c.Ingest.EmbedBatchSize <= 0 {
		errs = append(errs, invalid("ingest.embed_batch_size must be greater than 0, got %d", c.Ingest.EmbedBatchSize))
	}

	return errs
}

func (c *Config) validateAgent() []error {
	var errs []error

	if c.Agent.MaxIterations <= 0 {
		errs = append(errs, invalid("agent.max_iterations must be greater than 0, got %d", c.Agent.MaxIterations))
	}
	if c.Agent.MemoryWindow <= 0 {
		errs = append(errs, invalid("agent.memory_window must be greater than 0, got %d", c.Agent.MemoryWindow))
	}
	if c.Agent.TurnTimeout <= 0 {
		errs = append(errs, invalid("agent.turn_timeout must be positive, got %s", c.Agent.TurnTimeout))
	}
	if c.Tools.TalentScout.K <= 0 {
		errs = append(errs, invalid("tools.talent_scout.k must be greater than 0, got %d", c.Tools.TalentScout.K))
	}
	if c.Tools.PolicyBot.K <= 0 {
		errs = append(errs, invalid("tools.policy_bot.k must be greater than 0, got %d", c.Tools.PolicyBot.K))
	}

	return errs
}

func (c *Config) validateSecurity() []error {
	var errs []error

	validSanitize := map[string]bool{"hybrid": true, "classifier": true, "rules": true}
	if !validSanitize[c.Security.SanitizeMode] {
		errs = append(errs, invalid("security.sanitize_mode must be one of [hybrid, classifier, rules], got %q", c.Security.SanitizeMode))
	}

	validInput := map[string]bool{"flag": true, "block": true, "redact": true, "off": true}
	if !validInput[c.Security.InputMode] {
		errs = append(errs, invalid("security.input_mode must be one of [flag, block, redact, off], got %q", c.Security.InputMode))
	}

	return errs
}

// ProviderFromModel extracts the provider prefix from a "provider/model" string.
func ProviderFromModel(model string) string {
	if idx := strings.Index(model, "/"); idx > 0 {
		return model[:idx]
	}
	return model
}
