package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for excelquery.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (JWT secret, provider API keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8000"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Storage configuration
	Storage StorageConfig `yaml:"storage"`

	// Authentication configuration
	Auth AuthConfig `yaml:"auth"`

	// Results cache configuration
	Results ResultsConfig `yaml:"results"`

	// Per-provider LLM defaults; request overrides are merged on top.
	LLM LLMConfig `yaml:"llm"`
}

// StorageConfig holds file storage locations.
type StorageConfig struct {
	// UploadDir is where original uploaded spreadsheets are kept.
	UploadDir string `yaml:"upload_dir" env:"UPLOAD_DIR" env-default:"data/uploaded_original_files"`
	// MaxUploadBytes caps a single multipart upload request.
	MaxUploadBytes int64 `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES" env-default:"52428800"`
}

// AuthConfig holds JWT authentication settings.
type AuthConfig struct {
	// Secret signs HS256 access tokens. Secret - not in YAML.
	Secret string `yaml:"-" env:"SECRET_KEY" env-default:"default_secret_key"`
	// TokenTTLMinutes is the access token lifetime.
	TokenTTLMinutes int `yaml:"token_ttl_minutes" env:"ACCESS_TOKEN_EXPIRE_MINUTES" env-default:"30"`
	// AdminUser / AdminPassword seed the in-memory user store at startup.
	AdminUser     string `yaml:"admin_user" env:"ADMIN_USER" env-default:"admin"`
	AdminPassword string `yaml:"-" env:"ADMIN_PASSWORD" env-default:"admin"`
}

// ResultsConfig holds temporary query-result cache settings.
type ResultsConfig struct {
	// TTLSeconds is how long a cached result stays downloadable.
	TTLSeconds int `yaml:"ttl_seconds" env:"RESULTS_TTL_SECONDS" env-default:"3600"`
	// SweepIntervalSeconds is how often expired results are purged.
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds" env:"RESULTS_SWEEP_INTERVAL_SECONDS" env-default:"300"`
}

// LLMConfig holds server-level defaults for each supported provider.
type LLMConfig struct {
	// APIType selects the default provider when a request does not name one.
	APIType string `yaml:"api_type" env:"LLM_API_TYPE" env-default:"siliconflow"`

	SiliconFlow ProviderDefaults `yaml:"siliconflow"`
	Ollama      ProviderDefaults `yaml:"ollama"`
	Anthropic   ProviderDefaults `yaml:"anthropic"`
}

// ProviderDefaults are the built-in settings for one provider backend.
type ProviderDefaults struct {
	APIKey      string  `yaml:"-"` // Secret - from env, see applyProviderEnv
	APIURL      string  `yaml:"api_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TopP        float64 `yaml:"top_p"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	cfg.applyProviderEnv()
	cfg.applyProviderDefaults()

	if err := os.MkdirAll(cfg.Storage.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", cfg.Storage.UploadDir, err)
	}

	return cfg, nil
}

// applyProviderEnv pulls provider secrets from the environment. cleanenv's
// env tags cannot express per-provider prefixes on a shared struct, so the
// two key-bearing providers are read explicitly here.
func (c *Config) applyProviderEnv() {
	if v := os.Getenv("SILICONFLOW_API_KEY"); v != "" {
		c.LLM.SiliconFlow.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.LLM.Anthropic.APIKey = v
	}
}

// applyProviderDefaults fills in built-in provider settings for fields the
// YAML file leaves empty.
func (c *Config) applyProviderDefaults() {
	sf := &c.LLM.SiliconFlow
	if sf.APIURL == "" {
		sf.APIURL = "https://api.siliconflow.cn/v1"
	}
	if sf.Model == "" {
		sf.Model = "Qwen/Qwen3-8B"
	}
	if sf.Temperature == 0 {
		sf.Temperature = 0.2
	}
	if sf.MaxTokens == 0 {
		sf.MaxTokens = 1500
	}

	ol := &c.LLM.Ollama
	if ol.APIURL == "" {
		ol.APIURL = "http://localhost:11434/api/chat"
	}
	if ol.Model == "" {
		ol.Model = "llama3"
	}
	if ol.Temperature == 0 {
		ol.Temperature = 0.2
	}
	if ol.TopP == 0 {
		ol.TopP = 0.9
	}

	an := &c.LLM.Anthropic
	if an.Model == "" {
		an.Model = "claude-3-5-haiku-latest"
	}
	if an.Temperature == 0 {
		an.Temperature = 0.2
	}
	if an.MaxTokens == 0 {
		an.MaxTokens = 1500
	}
}

// UploadPath returns the absolute path for a stored file name inside the
// upload directory.
func (c *StorageConfig) UploadPath(storedName string) string {
	return filepath.Join(c.UploadDir, storedName)
}
