package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
// Credential precedence order:
// 1. Per-request credential (CLI flag / HTTP request body) - Highest priority
// 2. Vault (if configured)
// 3. Config file values
// 4. Environment variables (TAILORPRESS_AI_APIKEY) - Lowest priority
type Config struct {
	AI            AIConfig            `mapstructure:"ai"`
	Compiler      CompilerConfig      `mapstructure:"compiler"`
	Server        ServerConfig        `mapstructure:"server"`
	App           AppConfig           `mapstructure:"app"`
	Vault         VaultConfig         `mapstructure:"vault"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// AIConfig holds LLM provider and stage configuration
type AIConfig struct {
	// Global/fallback configuration
	APIKey           string        `mapstructure:"apiKey"`
	Provider         string        `mapstructure:"provider"` // optional hint: openai, gemini, groq
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxRetries       int           `mapstructure:"maxRetries"`
	Temperature      float32       `mapstructure:"temperature"`
	UseSystemPrompts bool          `mapstructure:"useSystemPrompts"`
	CustomPrompts    PromptConfig  `mapstructure:"customPrompts"`

	// Per-provider model and endpoint overrides
	Models    ModelConfig    `mapstructure:"models"`
	Endpoints EndpointConfig `mapstructure:"endpoints"`

	// Stage-specific configurations
	Transform StageAIConfig `mapstructure:"transform"`
	Format    StageAIConfig `mapstructure:"format"`
}

// ModelConfig names the model used per provider
type ModelConfig struct {
	OpenAI string `mapstructure:"openai"`
	Gemini string `mapstructure:"gemini"`
	Groq   string `mapstructure:"groq"`
}

// EndpointConfig holds base URLs for the OpenAI-compatible backends.
// Gemini is reached through its SDK and carries no endpoint here.
type EndpointConfig struct {
	OpenAI string `mapstructure:"openai"`
	Groq   string `mapstructure:"groq"`
}

// StageAIConfig holds AI configuration for a specific pipeline stage
type StageAIConfig struct {
	Temperature    *float32             `mapstructure:"temperature"`
	Timeout        *time.Duration       `mapstructure:"timeout"`
	MaxRetries     *int                 `mapstructure:"maxRetries"`
	MaxTokens      int                  `mapstructure:"maxTokens"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuitBreaker"`
}

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxRequests      uint32        `mapstructure:"maxRequests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MinRequests      uint32        `mapstructure:"minRequests"`
	FailureThreshold float64       `mapstructure:"failureThreshold"`
}

// PromptConfig holds configuration for customizable prompts
type PromptConfig struct {
	SystemPrompts SystemPrompts `mapstructure:"systemPrompts"`
	UserPrompts   UserPrompts   `mapstructure:"userPrompts"`
}

// SystemPrompts contains system-level instructions
type SystemPrompts struct {
	TransformResume     string `mapstructure:"transformResume"`
	TransformResumeFile string `mapstructure:"transformResumeFile"`
	FormatDocument      string `mapstructure:"formatDocument"`
	FormatDocumentFile  string `mapstructure:"formatDocumentFile"`
}

// UserPrompts contains user-level prompt templates
type UserPrompts struct {
	TransformResume     string `mapstructure:"transformResume"`
	TransformResumeFile string `mapstructure:"transformResumeFile"`
	FormatDocument      string `mapstructure:"formatDocument"`
	FormatDocumentFile  string `mapstructure:"formatDocumentFile"`
}

// CompilerConfig holds document compiler configuration
type CompilerConfig struct {
	Command      string        `mapstructure:"command"`
	Passes       int           `mapstructure:"passes"`
	Timeout      time.Duration `mapstructure:"timeout"`
	LogTailLines int           `mapstructure:"logTailLines"`
	TemplatePath string        `mapstructure:"templatePath"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"readTimeout"`
	WriteTimeout   time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout    time.Duration `mapstructure:"idleTimeout"`
	MaxRequestSize int64         `mapstructure:"maxRequestSize"`
	SessionTTL     time.Duration `mapstructure:"sessionTTL"`
	APIKeys        []string      `mapstructure:"apiKeys"`
	RateLimit      RateLimitConfig `mapstructure:"rateLimit"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	RequestsPerMin int  `mapstructure:"requestsPerMin"`
	BurstCapacity  int  `mapstructure:"burstCapacity"`
}

// AppConfig holds general application configuration
type AppConfig struct {
	LogLevel         string   `mapstructure:"logLevel"`
	DefaultFormat    string   `mapstructure:"defaultFormat"`
	SupportedFormats []string `mapstructure:"supportedFormats"`
	MaxFileSize      int64    `mapstructure:"maxFileSize"`
}

// VaultConfig holds credential sourcing configuration
type VaultConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Address         string `mapstructure:"address"`
	Token           string `mapstructure:"token"`
	TokenFile       string `mapstructure:"tokenFile"`
	Namespace       string `mapstructure:"namespace"`
	Mount           string `mapstructure:"mount"`
	CredentialPath  string `mapstructure:"credentialPath"`
	CredentialField string `mapstructure:"credentialField"`
}

// ObservabilityConfig holds observability configuration
type ObservabilityConfig struct {
	Enabled         bool             `mapstructure:"enabled"`
	ServiceName     string           `mapstructure:"serviceName"`
	ServiceVersion  string           `mapstructure:"serviceVersion"`
	ServiceInstance string           `mapstructure:"serviceInstance"`
	ConsoleOutput   bool             `mapstructure:"consoleOutput"`
	Tracing         TracingConfig    `mapstructure:"tracing"`
	Metrics         MetricsConfig    `mapstructure:"metrics"`
	Prometheus      PrometheusConfig `mapstructure:"prometheus"`
	OTLP            OTLPConfig       `mapstructure:"otlp"`
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	SampleRate float64 `mapstructure:"sampleRate"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	CollectionInterval time.Duration `mapstructure:"collectionInterval"`
}

// PrometheusConfig holds Prometheus configuration
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Port     string `mapstructure:"port"`
}

// OTLPConfig holds OTLP exporter configuration
type OTLPConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	Endpoint string            `mapstructure:"endpoint"`
	Insecure bool              `mapstructure:"insecure"`
	Headers  map[string]string `mapstructure:"headers"`
}

// LoadConfig loads configuration from environment variables and a config file
func LoadConfig() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("TAILORPRESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/tailorpress/")
	v.AddConfigPath("$HOME/.tailorpress")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyFallbacks()

	if err := config.validatePromptFiles(); err != nil {
		return nil, fmt.Errorf("prompt file validation failed: %w", err)
	}

	if err := config.LoadPromptsFromFiles(); err != nil {
		return nil, fmt.Errorf("failed to load custom prompts from files: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// AI Configuration - global defaults
	v.SetDefault("ai.apiKey", "")
	v.SetDefault("ai.provider", "")
	v.SetDefault("ai.timeout", 90*time.Second)
	v.SetDefault("ai.maxRetries", 2)
	v.SetDefault("ai.temperature", 0.6)
	v.SetDefault("ai.useSystemPrompts", true)

	// Per-provider models (the formatting stage shares them)
	v.SetDefault("ai.models.openai", "gpt-4.1")
	v.SetDefault("ai.models.gemini", "gemini-2.5-pro")
	v.SetDefault("ai.models.groq", "llama-3.1-8b-instant")
	v.SetDefault("ai.endpoints.openai", "https://api.openai.com/v1")
	v.SetDefault("ai.endpoints.groq", "https://api.groq.com/openai/v1")

	// Transform stage: higher temperature, larger budget for full rewrites
	v.SetDefault("ai.transform.temperature", 0.6)
	v.SetDefault("ai.transform.timeout", 120*time.Second)
	v.SetDefault("ai.transform.maxRetries", 2)
	v.SetDefault("ai.transform.maxTokens", 8000)
	v.SetDefault("ai.transform.circuitBreaker.enabled", true)
	v.SetDefault("ai.transform.circuitBreaker.maxRequests", 3)
	v.SetDefault("ai.transform.circuitBreaker.interval", 60*time.Second)
	v.SetDefault("ai.transform.circuitBreaker.timeout", 60*time.Second)
	v.SetDefault("ai.transform.circuitBreaker.minRequests", 3)
	v.SetDefault("ai.transform.circuitBreaker.failureThreshold", 0.6)

	// Format stage: low temperature for deterministic markup
	v.SetDefault("ai.format.temperature", 0.3)
	v.SetDefault("ai.format.timeout", 120*time.Second)
	v.SetDefault("ai.format.maxRetries", 2)
	v.SetDefault("ai.format.maxTokens", 8000)
	v.SetDefault("ai.format.circuitBreaker.enabled", true)
	v.SetDefault("ai.format.circuitBreaker.maxRequests", 3)
	v.SetDefault("ai.format.circuitBreaker.interval", 60*time.Second)
	v.SetDefault("ai.format.circuitBreaker.timeout", 60*time.Second)
	v.SetDefault("ai.format.circuitBreaker.minRequests", 3)
	v.SetDefault("ai.format.circuitBreaker.failureThreshold", 0.6)

	// Compiler Configuration
	v.SetDefault("compiler.command", "pdflatex")
	v.SetDefault("compiler.passes", 2)
	v.SetDefault("compiler.timeout", 60*time.Second)
	v.SetDefault("compiler.logTailLines", 20)
	v.SetDefault("compiler.templatePath", "")

	// Server Configuration
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 300*time.Second)
	v.SetDefault("server.idleTimeout", 120*time.Second)
	v.SetDefault("server.maxRequestSize", 2*1024*1024)
	v.SetDefault("server.sessionTTL", 30*time.Minute)
	v.SetDefault("server.apiKeys", []string{})
	v.SetDefault("server.rateLimit.enabled", false)
	v.SetDefault("server.rateLimit.requestsPerMin", 30)
	v.SetDefault("server.rateLimit.burstCapacity", 5)

	// App Configuration
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.defaultFormat", "text")
	v.SetDefault("app.supportedFormats", []string{"json", "text", "markdown", "latex"})
	v.SetDefault("app.maxFileSize", 4*1024*1024)

	// Vault Configuration
	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.tokenFile", "")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.mount", "secret")
	v.SetDefault("vault.credentialPath", "")
	v.SetDefault("vault.credentialField", "apiKey")

	// Observability Configuration
	v.SetDefault("observability.enabled", true)
	v.SetDefault("observability.serviceName", "tailorpress")
	v.SetDefault("observability.serviceVersion", "")
	v.SetDefault("observability.serviceInstance", "")
	v.SetDefault("observability.consoleOutput", false)
	v.SetDefault("observability.tracing.enabled", true)
	v.SetDefault("observability.tracing.sampleRate", 1.0)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.collectionInterval", 15*time.Second)
	v.SetDefault("observability.prometheus.enabled", true)
	v.SetDefault("observability.prometheus.endpoint", "/metrics")
	v.SetDefault("observability.prometheus.port", "9090")
	v.SetDefault("observability.otlp.enabled", false)
	v.SetDefault("observability.otlp.endpoint", "http://localhost:4318")
	v.SetDefault("observability.otlp.insecure", true)
	v.SetDefault("observability.otlp.headers", map[string]string{})
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.AI.Timeout <= 0 {
		return fmt.Errorf("AI timeout must be positive")
	}

	switch c.AI.Provider {
	case "", "openai", "gemini", "groq":
	default:
		return fmt.Errorf("invalid AI provider hint: %s (must be 'openai', 'gemini', or 'groq')", c.AI.Provider)
	}

	if c.Compiler.Command == "" {
		return fmt.Errorf("compiler command is required")
	}
	if c.Compiler.Passes < 1 {
		return fmt.Errorf("compiler passes must be at least 1")
	}

	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	validFormats := make(map[string]bool)
	for _, format := range c.App.SupportedFormats {
		validFormats[format] = true
	}
	if !validFormats[c.App.DefaultFormat] {
		return fmt.Errorf("invalid default format: %s", c.App.DefaultFormat)
	}

	if c.Vault.Enabled {
		if c.Vault.Address == "" {
			return fmt.Errorf("vault address is required when vault is enabled")
		}
		if c.Vault.CredentialPath == "" {
			return fmt.Errorf("vault credentialPath is required when vault is enabled")
		}
	}

	return nil
}

// applyStageDefaults applies global defaults to stage-specific configuration
func (c *Config) applyStageDefaults(stageCfg *StageAIConfig) {
	if stageCfg.Temperature == nil {
		stageCfg.Temperature = &c.AI.Temperature
	}
	if stageCfg.Timeout == nil {
		stageCfg.Timeout = &c.AI.Timeout
	}
	if stageCfg.MaxRetries == nil {
		stageCfg.MaxRetries = &c.AI.MaxRetries
	}
}

// GetTransformConfig returns the stage configuration for content
// transformation with fallback to global AI config.
func (c *Config) GetTransformConfig() StageAIConfig {
	config := c.AI.Transform
	c.applyStageDefaults(&config)
	return config
}

// GetFormatConfig returns the stage configuration for document formatting
// with fallback to global AI config.
func (c *Config) GetFormatConfig() StageAIConfig {
	config := c.AI.Format
	c.applyStageDefaults(&config)
	return config
}

// applyFallbacks applies environment variable fallbacks
func (c *Config) applyFallbacks() {
	// Legacy environment variables accepted by the original tooling
	if c.AI.APIKey == "" {
		for _, envVar := range []string{"OPENAI_API_KEY", "GOOGLE_API_KEY", "GROQ_API_KEY"} {
			if key := os.Getenv(envVar); key != "" {
				c.AI.APIKey = key
				break
			}
		}
	}

	if c.Observability.ServiceInstance == "" {
		if hostname, err := os.Hostname(); err == nil {
			c.Observability.ServiceInstance = fmt.Sprintf("%s-%s", c.Observability.ServiceName, hostname)
		} else {
			c.Observability.ServiceInstance = fmt.Sprintf("%s-1", c.Observability.ServiceName)
		}
	}

	if c.App.LogLevel == "debug" && !c.Observability.ConsoleOutput {
		c.Observability.ConsoleOutput = true
	}
}
