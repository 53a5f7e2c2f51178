// Package config loads and validates monitor configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"dealwatch/internal/monitor"
)

// Config captures everything read from the rule-source file plus
// environment overrides. Keywords stays untyped here; rule entries may
// be bare strings or objects and are normalized by monitor.Compile.
type Config struct {
	Keywords         []any          `mapstructure:"keywords"`
	GlobalDefaults   map[string]any `mapstructure:"globalDefaults"`
	TelegramBotToken string         `mapstructure:"telegramBotToken"`
	TelegramChatID   string         `mapstructure:"telegramChatId"`
	TickTime         int            `mapstructure:"tickTime"`
	SatisfyNum       int            `mapstructure:"satisfyNum"`

	Search  SearchConfig  `mapstructure:"search"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`

	// Path is the absolute rule-file location the config was read from.
	Path string `mapstructure:"-"`
}

// SearchConfig controls the upstream search endpoint client.
type SearchConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// ServerConfig controls the ops HTTP listener.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load reads the rule-source file at path. A read or parse failure here
// is the fatal-startup case; reload callers treat it as non-fatal and
// keep the previous rule set.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DEALWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal rule file: %w", err)
	}
	cfg.Path = path

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tickTime", 300)
	v.SetDefault("satisfyNum", 3)
	v.SetDefault("search.base_url", "https://search.smzdm.com/api/sou")
	v.SetDefault("search.user_agent", "dealwatch/1.0")
	v.SetDefault("search.timeout_seconds", 8)
	v.SetDefault("server.port", 9090)
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c *Config) Validate() error {
	if c.TickTime <= 0 {
		return fmt.Errorf("tickTime must be > 0")
	}
	if c.SatisfyNum < 0 {
		return fmt.Errorf("satisfyNum must be >= 0")
	}
	if c.Search.TimeoutSeconds <= 0 {
		return fmt.Errorf("search.timeout_seconds must be > 0")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.TelegramBotToken != "" && c.TelegramChatID == "" {
		return fmt.Errorf("telegramChatId must be set when telegramBotToken is set")
	}
	return nil
}

// RawRules exposes the untyped rule source for compilation.
func (c *Config) RawRules() monitor.RawConfig {
	return monitor.RawConfig{
		Entries:    c.Keywords,
		Defaults:   c.GlobalDefaults,
		SatisfyNum: c.SatisfyNum,
	}
}

// Interval returns the pause between the end of one cycle and the
// start of the next.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.TickTime) * time.Second
}

// SearchTimeout returns the per-call search budget.
func (c *Config) SearchTimeout() time.Duration {
	return time.Duration(c.Search.TimeoutSeconds) * time.Second
}
