package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Network() NetworkConfig
	Profile() ProfileConfig
	Resolver() ResolverConfig
	LLM() LLMConfig
	Audit() AuditConfig
	Runner() RunnerConfig

	// Runner setters, populated from CLI flags.
	SetRunnerAutoProceed(bool)
	SetRunnerDryRun(bool)

	// Browser setters
	SetBrowserDevToolsURL(string)
}

// Config holds the entire application configuration. Access goes through
// the Interface's getters so callers can be handed a mock in tests.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	BrowserCfg  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	NetworkCfg  NetworkConfig  `mapstructure:"network" yaml:"network"`
	ProfileCfg  ProfileConfig  `mapstructure:"profile" yaml:"profile"`
	ResolverCfg ResolverConfig `mapstructure:"resolver" yaml:"resolver"`
	LLMCfg      LLMConfig      `mapstructure:"llm" yaml:"llm"`
	AuditCfg    AuditConfig    `mapstructure:"audit" yaml:"audit"`
	// RunnerCfg gets its marching orders from CLI flags as well as the file.
	RunnerCfg RunnerConfig `mapstructure:"runner" yaml:"runner"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig   { return c.BrowserCfg }
func (c *Config) Network() NetworkConfig   { return c.NetworkCfg }
func (c *Config) Profile() ProfileConfig   { return c.ProfileCfg }
func (c *Config) Resolver() ResolverConfig { return c.ResolverCfg }
func (c *Config) LLM() LLMConfig           { return c.LLMCfg }
func (c *Config) Audit() AuditConfig       { return c.AuditCfg }
func (c *Config) Runner() RunnerConfig     { return c.RunnerCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetRunnerAutoProceed(b bool)    { c.RunnerCfg.AutoProceed = b }
func (c *Config) SetRunnerDryRun(b bool)         { c.RunnerCfg.DryRun = b }
func (c *Config) SetBrowserDevToolsURL(u string) { c.BrowserCfg.DevToolsURL = u }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for attaching to the user's Chrome instance.
// The tool never launches its own browser; it connects over DevTools.
type BrowserConfig struct {
	DevToolsURL  string `mapstructure:"devtools_url" yaml:"devtools_url"`
	DisableCache bool   `mapstructure:"disable_cache" yaml:"disable_cache"`
	Debug        bool   `mapstructure:"debug" yaml:"debug"`
}

// NetworkConfig tunes page load behavior.
type NetworkConfig struct {
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
}

// ProfileConfig locates the applicant's data files.
type ProfileConfig struct {
	Path              string `mapstructure:"path" yaml:"path"`
	CustomAnswersPath string `mapstructure:"custom_answers_path" yaml:"custom_answers_path"`
	PendingPath       string `mapstructure:"pending_path" yaml:"pending_path"`
	ResumePath        string `mapstructure:"resume_path" yaml:"resume_path"`
}

// ResolverConfig tunes the deterministic answer tiers.
type ResolverConfig struct {
	// MatchThreshold is the minimum custom answer score to accept a match.
	MatchThreshold int `mapstructure:"match_threshold" yaml:"match_threshold"`
	// DeclineEEOC enables the voluntary non-disclosure tier.
	DeclineEEOC bool `mapstructure:"decline_eeoc" yaml:"decline_eeoc"`
}

// LLMConfig configures the model fallback tier.
type LLMConfig struct {
	Enabled    bool          `mapstructure:"enabled" yaml:"enabled"`
	Model      string        `mapstructure:"model" yaml:"model"`
	APIKey     string        `mapstructure:"api_key" yaml:"-"`
	Endpoint   string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	MaxTokens  int           `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// AuditConfig controls the session audit trail on disk.
type AuditConfig struct {
	Dir         string `mapstructure:"dir" yaml:"dir"`
	MaxSessions int    `mapstructure:"max_sessions" yaml:"max_sessions"`
	Screenshots bool   `mapstructure:"screenshots" yaml:"screenshots"`
}

// RunnerConfig controls how the job queue is worked.
type RunnerConfig struct {
	JobDelay     time.Duration `mapstructure:"job_delay" yaml:"job_delay"`
	CompanyDelay time.Duration `mapstructure:"company_delay" yaml:"company_delay"`
	AutoProceed  bool          `mapstructure:"auto_proceed" yaml:"auto_proceed"`
	DryRun       bool          `mapstructure:"dry_run" yaml:"dry_run"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "formpilot")
	v.SetDefault("logger.log_file", "formpilot.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.devtools_url", "http://localhost:9222")
	v.SetDefault("browser.disable_cache", true)
	v.SetDefault("browser.debug", false)

	// -- Network --
	v.SetDefault("network.navigation_timeout", "60s")
	v.SetDefault("network.post_load_wait", "2s")
	v.SetDefault("network.action_timeout", "15s")

	// -- Profile --
	v.SetDefault("profile.path", "profile.yaml")
	v.SetDefault("profile.custom_answers_path", "custom_answers.yaml")
	v.SetDefault("profile.pending_path", "pending_questions.yaml")

	// -- Resolver --
	v.SetDefault("resolver.match_threshold", 30)
	v.SetDefault("resolver.decline_eeoc", true)

	// -- LLM --
	v.SetDefault("llm.enabled", true)
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.endpoint", "https://generativelanguage.googleapis.com/v1beta/models")
	v.SetDefault("llm.api_timeout", "30s")
	v.SetDefault("llm.max_tokens", 1024)

	// -- Audit --
	v.SetDefault("audit.dir", "sessions")
	v.SetDefault("audit.max_sessions", 10)
	v.SetDefault("audit.screenshots", true)

	// -- Runner --
	v.SetDefault("runner.job_delay", "20s")
	v.SetDefault("runner.company_delay", "45s")
	v.SetDefault("runner.auto_proceed", false)
	v.SetDefault("runner.dry_run", false)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data.
	v.BindEnv("llm.api_key", "GEMINI_API_KEY")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Manually load the key if Unmarshal didn't pick it up.
	if cfg.LLMCfg.Enabled && cfg.LLMCfg.APIKey == "" {
		cfg.LLMCfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.BrowserCfg.DevToolsURL == "" {
		return fmt.Errorf("browser.devtools_url is a required configuration field")
	}
	if c.NetworkCfg.NavigationTimeout <= 0 {
		return fmt.Errorf("network.navigation_timeout must be a positive duration")
	}
	if c.AuditCfg.MaxSessions <= 0 {
		return fmt.Errorf("audit.max_sessions must be a positive integer")
	}
	if c.ResolverCfg.MatchThreshold < 0 {
		return fmt.Errorf("resolver.match_threshold must not be negative")
	}
	if err := c.RunnerCfg.Validate(); err != nil {
		return fmt.Errorf("runner configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the RunnerConfig settings.
func (r *RunnerConfig) Validate() error {
	if r.JobDelay < 0 || r.CompanyDelay < 0 {
		return fmt.Errorf("runner delays must not be negative")
	}
	return nil
}
