// Package config loads and validates application configuration from file,
// environment, and CLI flags through viper.
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
	Matcher() MatcherConfig
	Classifier() ClassifierConfig
	Cache() CacheConfig
	Profiles() ProfilesConfig
	Fill() FillConfig

	// Browser setters
	SetBrowserHeadless(bool)
	SetBrowserDebug(bool)

	// Classifier setters
	SetClassifierEnabled(bool)

	// Profile setters
	SetProfilesDefault(string)
}

// Config holds the entire application configuration. It uses private fields
// to enforce access through the Interface's getter methods.
type Config struct {
	logger     LoggerConfig
	browser    BrowserConfig
	matcher    MatcherConfig
	classifier ClassifierConfig
	cache      CacheConfig
	profiles   ProfilesConfig
	fill       FillConfig
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig         { return c.logger }
func (c *Config) Browser() BrowserConfig       { return c.browser }
func (c *Config) Matcher() MatcherConfig       { return c.matcher }
func (c *Config) Classifier() ClassifierConfig { return c.classifier }
func (c *Config) Cache() CacheConfig           { return c.cache }
func (c *Config) Profiles() ProfilesConfig     { return c.profiles }
func (c *Config) Fill() FillConfig             { return c.fill }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool)   { c.browser.Headless = b }
func (c *Config) SetBrowserDebug(b bool)      { c.browser.Debug = b }
func (c *Config) SetClassifierEnabled(b bool) { c.classifier.Enabled = b }
func (c *Config) SetProfilesDefault(n string) { c.profiles.Default = n }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig holds settings for the headless browser instance.
type BrowserConfig struct {
	Headless          bool           `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors   bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Debug             bool           `mapstructure:"debug" yaml:"debug"`
	Args              []string       `mapstructure:"args" yaml:"args"`
	Viewport          map[string]int `mapstructure:"viewport" yaml:"viewport"`
	NavigationTimeout time.Duration  `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration  `mapstructure:"post_load_wait" yaml:"post_load_wait"`
}

// MatcherConfig tunes the keyword recognizer. MinScore is the acceptance
// floor for a candidate; ScoreCeiling normalizes raw scores into the [0,1]
// confidence range.
type MatcherConfig struct {
	MinScore     float64 `mapstructure:"min_score" yaml:"min_score"`
	ScoreCeiling float64 `mapstructure:"score_ceiling" yaml:"score_ceiling"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
	ProviderOpenAI LLMProvider = "openai"
)

// ClassifierConfig defines the optional LLM fallback recognizer.
type ClassifierConfig struct {
	Enabled         bool          `mapstructure:"enabled" yaml:"enabled"`
	Provider        LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model           string        `mapstructure:"model" yaml:"model"`
	APIKey          string        `mapstructure:"api_key" yaml:"-"`
	Endpoint        string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout      time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	Temperature     float32       `mapstructure:"temperature" yaml:"temperature"`
	TopP            float32       `mapstructure:"top_p" yaml:"top_p"`
	TopK            int           `mapstructure:"top_k" yaml:"top_k"`
	MaxTokens       int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	MaxExcerptBytes int           `mapstructure:"max_excerpt_bytes" yaml:"max_excerpt_bytes"`
}

// CacheConfig controls the persisted field mapping cache.
type CacheConfig struct {
	Dir        string `mapstructure:"dir" yaml:"dir"`
	MaxEntries int    `mapstructure:"max_entries" yaml:"max_entries"`
}

// ProfilesConfig locates the stored site value records.
type ProfilesConfig struct {
	Dir     string `mapstructure:"dir" yaml:"dir"`
	Default string `mapstructure:"default" yaml:"default"`
}

// FillConfig tunes fill execution pacing. FieldsPerSecond caps the rate of
// field starts; the waits isolate synthetic event bursts from each other.
type FillConfig struct {
	FieldsPerSecond   float64       `mapstructure:"fields_per_second" yaml:"fields_per_second"`
	SettleDelay       time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	DropdownOpenWait  time.Duration `mapstructure:"dropdown_open_wait" yaml:"dropdown_open_wait"`
	DropdownCloseWait time.Duration `mapstructure:"dropdown_close_wait" yaml:"dropdown_close_wait"`
}

// fileConfig mirrors Config with exported fields so viper can unmarshal it.
type fileConfig struct {
	Logger     LoggerConfig     `mapstructure:"logger"`
	Browser    BrowserConfig    `mapstructure:"browser"`
	Matcher    MatcherConfig    `mapstructure:"matcher"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Profiles   ProfilesConfig   `mapstructure:"profiles"`
	Fill       FillConfig       `mapstructure:"fill"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	cfg, err := NewConfigFromViper(v)
	if err != nil {
		// Defaults always validate; anything else is a programming error.
		panic(fmt.Sprintf("failed to build default config: %v", err))
	}
	return cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "formscout")
	v.SetDefault("logger.log_file", "formscout.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.debug", false)
	v.SetDefault("browser.navigation_timeout", "90s")
	v.SetDefault("browser.post_load_wait", "2s")

	// -- Matcher --
	v.SetDefault("matcher.min_score", 0.9)
	v.SetDefault("matcher.score_ceiling", 3.0)

	// -- Classifier --
	v.SetDefault("classifier.enabled", false)
	v.SetDefault("classifier.provider", "gemini")
	v.SetDefault("classifier.model", "gemini-2.5-flash")
	v.SetDefault("classifier.api_timeout", "30s")
	v.SetDefault("classifier.request_timeout", "45s")
	v.SetDefault("classifier.temperature", 0.1)
	v.SetDefault("classifier.max_tokens", 2048)
	v.SetDefault("classifier.max_excerpt_bytes", 16384)

	// -- Cache --
	v.SetDefault("cache.dir", defaultDataDir("mappings"))
	v.SetDefault("cache.max_entries", 256)

	// -- Profiles --
	v.SetDefault("profiles.dir", defaultDataDir("profiles"))
	v.SetDefault("profiles.default", "default")

	// -- Fill --
	v.SetDefault("fill.fields_per_second", 4.0)
	v.SetDefault("fill.settle_delay", "120ms")
	v.SetDefault("fill.dropdown_open_wait", "250ms")
	v.SetDefault("fill.dropdown_close_wait", "150ms")
}

func defaultDataDir(sub string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".formscout/" + sub
	}
	return home + "/.formscout/" + sub
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Bind environment variables for sensitive data.
	v.BindEnv("classifier.api_key", "FORMSCOUT_API_KEY", "GEMINI_API_KEY")

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg := &Config{
		logger:     fc.Logger,
		browser:    fc.Browser,
		matcher:    fc.Matcher,
		classifier: fc.Classifier,
		cache:      fc.Cache,
		profiles:   fc.Profiles,
		fill:       fc.Fill,
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.matcher.MinScore < 0 {
		return fmt.Errorf("matcher.min_score must not be negative")
	}
	if c.matcher.ScoreCeiling != 0 && c.matcher.ScoreCeiling < c.matcher.MinScore {
		return fmt.Errorf("matcher.score_ceiling must be at least matcher.min_score")
	}
	if c.fill.FieldsPerSecond <= 0 {
		return fmt.Errorf("fill.fields_per_second must be a positive number")
	}
	if c.cache.MaxEntries <= 0 {
		return fmt.Errorf("cache.max_entries must be a positive integer")
	}
	if err := c.classifier.Validate(); err != nil {
		return fmt.Errorf("classifier configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the classifier configuration.
func (c *ClassifierConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unsupported provider %q, supported: [%s, %s]", c.Provider, ProviderGemini, ProviderOpenAI)
	}
	if c.APIKey == "" {
		return fmt.Errorf("API key is required but not found. Ensure FORMSCOUT_API_KEY is set")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be a positive duration")
	}
	return nil
}
