package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/portalmesh/relmeta/pkg/logger"
)

// Config holds all application configuration
type Config struct {
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Output   OutputConfig   `mapstructure:"output"`
	Rules    RulesConfig    `mapstructure:"rules"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// UpstreamConfig identifies the upstream repositories and the retrieval
// policy against the hosting-service API.
type UpstreamConfig struct {
	APIBase           string  `mapstructure:"api_base"`
	CoreRepo          string  `mapstructure:"core_repo"`
	RulesRepo         string  `mapstructure:"rules_repo"`
	RulesBranch       string  `mapstructure:"rules_branch"`
	AssetPrefix       string  `mapstructure:"asset_prefix"`
	BinaryName        string  `mapstructure:"binary_name"`
	MaxAttempts       int     `mapstructure:"max_attempts"`
	RetryDelay        string  `mapstructure:"retry_delay"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// RetryDelayDuration parses the configured delay, falling back to the
// default on malformed input.
func (u UpstreamConfig) RetryDelayDuration() time.Duration {
	d, err := time.ParseDuration(u.RetryDelay)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// OutputConfig holds where manifests and repackaged archives land and
// how canonical download URLs are formed.
type OutputConfig struct {
	Dir         string `mapstructure:"dir"`
	DistDir     string `mapstructure:"dist_dir"`
	Host        string `mapstructure:"host"`
	ChannelRepo string `mapstructure:"channel_repo"`
}

// RulesConfig lists the indexing scopes.
type RulesConfig struct {
	Scopes []ScopeConfig `mapstructure:"scopes"`
}

// ScopeConfig is one rule-indexing root producing its own index file.
type ScopeConfig struct {
	Name   string `mapstructure:"name"`
	Prefix string `mapstructure:"prefix"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// LoadConfig loads configuration from file
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.relmeta")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("RELMETA")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if len(config.Rules.Scopes) == 0 {
		config.Rules.Scopes = DefaultScopes()
	}

	if err := initLogger(&config.Logging); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("upstream.api_base", "https://api.github.com")
	v.SetDefault("upstream.core_repo", "SagerNet/sing-box")
	v.SetDefault("upstream.rules_repo", "portalmesh/rule-sets")
	v.SetDefault("upstream.rules_branch", "main")
	v.SetDefault("upstream.asset_prefix", "sing-box-")
	v.SetDefault("upstream.binary_name", "sing-box")
	v.SetDefault("upstream.max_attempts", 4)
	v.SetDefault("upstream.retry_delay", "2s")
	v.SetDefault("upstream.requests_per_second", 5)

	v.SetDefault("output.dir", "manifests")
	v.SetDefault("output.dist_dir", "dist")
	v.SetDefault("output.host", "https://github.com")
	v.SetDefault("output.channel_repo", "portalmesh/core-dist")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// DefaultScopes returns the two standard indexing roots: the
// lightweight subset and the full set.
func DefaultScopes() []ScopeConfig {
	return []ScopeConfig{
		{Name: "lite", Prefix: "rule-set-lite/"},
		{Name: "full", Prefix: "rule-set/"},
	}
}

// initLogger initializes the logger with the provided configuration
func initLogger(cfg *LoggingConfig) error {
	return logger.Init(logger.Config{
		Level:  cfg.Level,
		Format: cfg.Format,
		File:   cfg.File,
		Module: "main",
	})
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Upstream: UpstreamConfig{
			APIBase:           "https://api.github.com",
			CoreRepo:          "SagerNet/sing-box",
			RulesRepo:         "portalmesh/rule-sets",
			RulesBranch:       "main",
			AssetPrefix:       "sing-box-",
			BinaryName:        "sing-box",
			MaxAttempts:       4,
			RetryDelay:        "2s",
			RequestsPerSecond: 5,
		},
		Output: OutputConfig{
			Dir:         "manifests",
			DistDir:     "dist",
			Host:        "https://github.com",
			ChannelRepo: "portalmesh/core-dist",
		},
		Rules: RulesConfig{
			Scopes: DefaultScopes(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
