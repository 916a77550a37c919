package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/pallet-allocator/internal/dispatch"
	"github.com/eugenenazirov/pallet-allocator/internal/domain"
	"github.com/eugenenazirov/pallet-allocator/internal/placement"
	"github.com/eugenenazirov/pallet-allocator/internal/planner"
)

const (
	defaultPort           = "8080"
	defaultRateLimitRPS   = 25.0
	defaultRateLimitBurst = 50
	defaultRunLimitRPS    = 2.0
	defaultRunLimitBurst  = 4
	defaultLogLevel       = "info"
	defaultAlphaChannel   = "ADP"
	defaultEnvFile        = ".env"
)

// Channel is the configured behaviour of one shipping channel.
type Channel struct {
	Category string `yaml:"category"`
	Policy   string `yaml:"policy"`
}

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	Port                 string
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	RateLimitRPS         float64
	RateLimitBurst       int
	// RunRateLimitRPS and RunRateLimitBurst bound allocation runs separately
	// from reference reads and updates.
	RunRateLimitRPS   float64
	RunRateLimitBurst int
	LogLevel          string

	// DatabasePath selects SQLite storage; empty keeps everything in memory.
	DatabasePath string

	AlphaChannel  string
	MixedVariety  string
	PolandUserMax int
	Channels      map[string]Channel

	CarrierTypes  map[domain.CarrierKey]domain.CarrierType
	CapacityRules map[domain.Category]map[domain.CarrierKey]domain.CapacityRule
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Port                 string                                                        `yaml:"port"`
	ShutdownGracePeriod  string                                                        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string                                                        `yaml:"read_header_timeout"`
	WriteTimeout         string                                                        `yaml:"write_timeout"`
	IdleTimeout          string                                                        `yaml:"idle_timeout"`
	EnableRequestLogging *bool                                                         `yaml:"enable_request_logging"`
	RateLimit            yamlRateLimit                                                 `yaml:"rate_limit"`
	LogLevel             string                                                        `yaml:"log_level"`
	DatabasePath         string                                                        `yaml:"database_path"`
	Allocation           yamlAllocation                                                `yaml:"allocation"`
	CarrierTypes         map[domain.CarrierKey]domain.CarrierType                      `yaml:"carrier_types"`
	CapacityRules        map[domain.Category]map[domain.CarrierKey]domain.CapacityRule `yaml:"capacity_rules"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS       *float64 `yaml:"rps"`
	Burst     *int     `yaml:"burst"`
	RunsRPS   *float64 `yaml:"runs_rps"`
	RunsBurst *int     `yaml:"runs_burst"`
}

type yamlAllocation struct {
	AlphaChannel  string             `yaml:"alpha_channel"`
	MixedVariety  string             `yaml:"mixed_variety"`
	PolandUserMax int                `yaml:"poland_user_max"`
	Channels      map[string]Channel `yaml:"channels"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	EnvFile        string
	Port           *string
	DatabasePath   *string
	LogLevel       *string
	RateLimitRPS   *float64
	RateLimitBurst *int
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	envFile := defaultEnvFile
	if overrides != nil && overrides.EnvFile != "" {
		envFile = overrides.EnvFile
	}
	// variables already set in the process win over the file
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file %q: %w", envFile, err)
	}

	// Apply environment variables
	applyEnvConfig(&cfg)

	// Load from YAML file if specified (overrides env)
	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, fmt.Errorf("apply YAML config: %w", err)
		}
	}

	// Apply CLI overrides (highest precedence)
	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	// Validate final configuration
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	rules := planner.DefaultRules()
	return Config{
		Port:                 defaultPort,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
		RunRateLimitRPS:      defaultRunLimitRPS,
		RunRateLimitBurst:    defaultRunLimitBurst,
		LogLevel:             defaultLogLevel,
		AlphaChannel:         defaultAlphaChannel,
		MixedVariety:         placement.DefaultMixedVariety,
		Channels:             map[string]Channel{},
		CarrierTypes:         rules.Types,
		CapacityRules:        rules.Capacity,
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) error {
	if yamlCfg.Port != "" {
		cfg.Port = yamlCfg.Port
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"shutdown_grace_period", yamlCfg.ShutdownGracePeriod, &cfg.ShutdownGracePeriod},
		{"read_header_timeout", yamlCfg.ReadHeaderTimeout, &cfg.ReadHeaderTimeout},
		{"write_timeout", yamlCfg.WriteTimeout, &cfg.WriteTimeout},
		{"idle_timeout", yamlCfg.IdleTimeout, &cfg.IdleTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		value, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = value
	}

	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}
	if yamlCfg.RateLimit.RPS != nil {
		cfg.RateLimitRPS = *yamlCfg.RateLimit.RPS
	}
	if yamlCfg.RateLimit.Burst != nil {
		cfg.RateLimitBurst = *yamlCfg.RateLimit.Burst
	}
	if yamlCfg.RateLimit.RunsRPS != nil {
		cfg.RunRateLimitRPS = *yamlCfg.RateLimit.RunsRPS
	}
	if yamlCfg.RateLimit.RunsBurst != nil {
		cfg.RunRateLimitBurst = *yamlCfg.RateLimit.RunsBurst
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.DatabasePath != "" {
		cfg.DatabasePath = yamlCfg.DatabasePath
	}

	alloc := yamlCfg.Allocation
	if alloc.AlphaChannel != "" {
		cfg.AlphaChannel = alloc.AlphaChannel
	}
	if alloc.MixedVariety != "" {
		cfg.MixedVariety = alloc.MixedVariety
	}
	if alloc.PolandUserMax > 0 {
		cfg.PolandUserMax = alloc.PolandUserMax
	}
	for code, ch := range alloc.Channels {
		cfg.Channels[strings.TrimSpace(code)] = ch
	}

	for key, t := range yamlCfg.CarrierTypes {
		t.Key = key
		cfg.CarrierTypes[key] = t
	}
	for category, rules := range yamlCfg.CapacityRules {
		if cfg.CapacityRules[category] == nil {
			cfg.CapacityRules[category] = make(map[domain.CarrierKey]domain.CapacityRule)
		}
		for key, rule := range rules {
			cfg.CapacityRules[category][key] = rule
		}
	}
	return nil
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.Port = port
	}

	if rps := strings.TrimSpace(os.Getenv("RATE_LIMIT_RPS")); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}

	if burst := strings.TrimSpace(os.Getenv("RATE_LIMIT_BURST")); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}

	if rps := strings.TrimSpace(os.Getenv("RUN_RATE_LIMIT_RPS")); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RunRateLimitRPS = value
		}
	}

	if burst := strings.TrimSpace(os.Getenv("RUN_RATE_LIMIT_BURST")); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RunRateLimitBurst = value
		}
	}

	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}

	if path := strings.TrimSpace(os.Getenv("DB_PATH")); path != "" {
		cfg.DatabasePath = path
	}

	if alpha := strings.TrimSpace(os.Getenv("ALPHA_CHANNEL")); alpha != "" {
		cfg.AlphaChannel = alpha
	}

	if userMax := strings.TrimSpace(os.Getenv("POLAND_USER_MAX")); userMax != "" {
		if value, err := strconv.Atoi(userMax); err == nil && value > 0 {
			cfg.PolandUserMax = value
		}
	}
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}

	if overrides.DatabasePath != nil && *overrides.DatabasePath != "" {
		cfg.DatabasePath = *overrides.DatabasePath
	}

	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	if cfg.RunRateLimitRPS < 0 || cfg.RunRateLimitBurst < 0 {
		return fmt.Errorf("run rate limit must be >= 0")
	}
	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if cfg.PolandUserMax < 0 {
		return fmt.Errorf("poland user max must be >= 0")
	}
	if _, err := cfg.ChannelRules(); err != nil {
		return err
	}
	if err := cfg.Rules().Validate(); err != nil {
		return fmt.Errorf("capacity rules: %w", err)
	}
	return nil
}

// Rules returns the planner rules described by the configuration.
func (c Config) Rules() planner.Rules {
	types := make(map[domain.CarrierKey]domain.CarrierType, len(c.CarrierTypes))
	for key, t := range c.CarrierTypes {
		t.Key = key
		types[key] = t
	}
	capacity := make(map[domain.Category]map[domain.CarrierKey]domain.CapacityRule, len(c.CapacityRules))
	for category, rules := range c.CapacityRules {
		capacity[category] = make(map[domain.CarrierKey]domain.CapacityRule, len(rules))
		for key, rule := range rules {
			capacity[category][key] = rule
		}
	}
	return planner.Rules{Types: types, Capacity: capacity}
}

// ChannelRules converts the channel table into runner rules.
func (c Config) ChannelRules() (map[string]dispatch.ChannelRule, error) {
	out := make(map[string]dispatch.ChannelRule, len(c.Channels))
	for code, ch := range c.Channels {
		category := domain.Category(strings.ToLower(strings.TrimSpace(ch.Category)))
		if category == "" {
			category = domain.CategoryDefault
		}
		if !category.Valid() {
			return nil, fmt.Errorf("channel %s: unknown category %q", code, ch.Category)
		}
		policy, err := placement.ParsePolicy(ch.Policy)
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", code, err)
		}
		out[code] = dispatch.ChannelRule{Category: category, Policy: policy}
	}
	return out, nil
}
