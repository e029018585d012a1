package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Detection DetectionConfig `mapstructure:"detection"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Platforms PlatformsConfig `mapstructure:"platforms"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TLS      bool   `mapstructure:"tls"`
}

// ScorerConfig describes one remote classifier endpoint.
type ScorerConfig struct {
	Name     string        `mapstructure:"name"`
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type DetectionConfig struct {
	Primary   ScorerConfig `mapstructure:"primary"`
	Secondary ScorerConfig `mapstructure:"secondary"`

	// DecisionThreshold is the positive-probability cutoff for the
	// bullying label, independent of the models' own argmax.
	DecisionThreshold float64 `mapstructure:"decision_threshold"`

	// DeleteConfidenceThreshold separates flag from delete for a
	// bullying verdict.
	DeleteConfidenceThreshold float64 `mapstructure:"delete_confidence_threshold"`

	// FlagThreshold and DeleteThreshold bucket the 1..5 severity scale
	// for non-binary displays only.
	FlagThreshold   int `mapstructure:"flag_threshold"`
	DeleteThreshold int `mapstructure:"delete_threshold"`

	// MaxInputRunes bounds the text sent to scorer endpoints; longer
	// content is truncated silently.
	MaxInputRunes int `mapstructure:"max_input_runes"`
}

type GeminiConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`

	// MinConfidence triggers escalation below this ensemble confidence.
	MinConfidence float64 `mapstructure:"min_confidence"`
	// MaxGap triggers escalation above this inter-provider probability gap.
	MaxGap float64 `mapstructure:"max_gap"`
	// BorderlineMargin triggers escalation when either probability lies
	// this close to the decision threshold.
	BorderlineMargin float64 `mapstructure:"borderline_margin"`
	// AcceptConfidence is the minimum oracle confidence required before
	// its opinion is merged into the verdict.
	AcceptConfidence float64 `mapstructure:"accept_confidence"`
}

type PollerConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchLimit   int           `mapstructure:"batch_limit"`
}

type PlatformsConfig struct {
	Twitter PollerConfig `mapstructure:"twitter"`
	Discord PollerConfig `mapstructure:"discord"`
	Reddit  PollerConfig `mapstructure:"reddit"`

	// SeenCapacity bounds the per-poller deduplication set.
	SeenCapacity int `mapstructure:"seen_capacity"`
}

type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    string `mapstructure:"port"`
	Topic   string `mapstructure:"topic"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

var globalConfig Config

func Load(configPath string) error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// fall through: environment variables only
	}

	if err := viper.Unmarshal(&globalConfig); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	setDefaultValues(&globalConfig)

	return nil
}

func setDefaultValues(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 9090
	}
	if cfg.Detection.DecisionThreshold == 0 {
		cfg.Detection.DecisionThreshold = 0.5
	}
	if cfg.Detection.DeleteConfidenceThreshold == 0 {
		cfg.Detection.DeleteConfidenceThreshold = 0.8
	}
	if cfg.Detection.FlagThreshold == 0 {
		cfg.Detection.FlagThreshold = 3
	}
	if cfg.Detection.DeleteThreshold == 0 {
		cfg.Detection.DeleteThreshold = 4
	}
	if cfg.Detection.MaxInputRunes == 0 {
		cfg.Detection.MaxInputRunes = 512
	}
	if cfg.Detection.Primary.Name == "" {
		cfg.Detection.Primary.Name = "muril"
	}
	if cfg.Detection.Secondary.Name == "" {
		cfg.Detection.Secondary.Name = "toxic-bert"
	}
	if cfg.Detection.Primary.Timeout == 0 {
		cfg.Detection.Primary.Timeout = 10 * time.Second
	}
	if cfg.Detection.Secondary.Timeout == 0 {
		cfg.Detection.Secondary.Timeout = 10 * time.Second
	}
	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = "gemini-2.5-flash"
	}
	if cfg.Gemini.Timeout == 0 {
		cfg.Gemini.Timeout = 15 * time.Second
	}
	if cfg.Gemini.MinConfidence == 0 {
		cfg.Gemini.MinConfidence = 0.7
	}
	if cfg.Gemini.MaxGap == 0 {
		cfg.Gemini.MaxGap = 0.3
	}
	if cfg.Gemini.BorderlineMargin == 0 {
		cfg.Gemini.BorderlineMargin = 0.15
	}
	if cfg.Gemini.AcceptConfidence == 0 {
		cfg.Gemini.AcceptConfidence = 0.75
	}
	if cfg.Platforms.Twitter.PollInterval == 0 {
		cfg.Platforms.Twitter.PollInterval = 25 * time.Second
	}
	if cfg.Platforms.Discord.PollInterval == 0 {
		cfg.Platforms.Discord.PollInterval = 120 * time.Second
	}
	if cfg.Platforms.Reddit.PollInterval == 0 {
		cfg.Platforms.Reddit.PollInterval = 120 * time.Second
	}
	if cfg.Platforms.Twitter.BatchLimit == 0 {
		cfg.Platforms.Twitter.BatchLimit = 10
	}
	if cfg.Platforms.Discord.BatchLimit == 0 {
		cfg.Platforms.Discord.BatchLimit = 50
	}
	if cfg.Platforms.Reddit.BatchLimit == 0 {
		cfg.Platforms.Reddit.BatchLimit = 50
	}
	if cfg.Platforms.SeenCapacity == 0 {
		cfg.Platforms.SeenCapacity = 10000
	}
}

func GetConfig() *Config {
	return &globalConfig
}
