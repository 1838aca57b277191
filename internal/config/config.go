package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const envPrefix = "OWS"

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	SendBuffer int           `mapstructure:"send_buffer"`
	LogLevel   string        `mapstructure:"log_level"`

	Rate RateConfig `mapstructure:"rate"`
	Game GameConfig `mapstructure:"game"`
	Word WordConfig `mapstructure:"word"`
}

// RateConfig bounds inbound websocket messages per connection.
type RateConfig struct {
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int     `mapstructure:"burst"`
}

type GameConfig struct {
	TurnTimeoutSeconds     int  `mapstructure:"turn_timeout_seconds"`
	MaxSkipsBeforeRemoval  int  `mapstructure:"max_skips_before_removal"`
	ReconnectGraceSeconds  int  `mapstructure:"reconnect_grace_seconds"`
	IdleRoomTimeoutSeconds int  `mapstructure:"idle_room_timeout_seconds"`
	MinParticipantsToStart int  `mapstructure:"min_participants_to_start"`
	MaxParticipants        int  `mapstructure:"max_participants"`
	MaxWords               int  `mapstructure:"max_words"`
	AutoCreateRooms        bool `mapstructure:"auto_create_rooms"`
}

func (g GameConfig) TurnTimeout() time.Duration {
	return time.Duration(g.TurnTimeoutSeconds) * time.Second
}

func (g GameConfig) ReconnectGrace() time.Duration {
	return time.Duration(g.ReconnectGraceSeconds) * time.Second
}

func (g GameConfig) IdleRoomTimeout() time.Duration {
	return time.Duration(g.IdleRoomTimeoutSeconds) * time.Second
}

type WordConfig struct {
	MaxLength                int      `mapstructure:"max_length"`
	AllowHyphen              bool     `mapstructure:"allow_hyphen"`
	AllowApostrophe          bool     `mapstructure:"allow_apostrophe"`
	AllowTrailingPunctuation bool     `mapstructure:"allow_trailing_punctuation"`
	Banned                   []string `mapstructure:"banned"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 4096)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "dev-secret")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("log_level", "info")

	v.SetDefault("rate.per_second", 5)
	v.SetDefault("rate.burst", 10)

	v.SetDefault("game.turn_timeout_seconds", 30)
	v.SetDefault("game.max_skips_before_removal", 3)
	v.SetDefault("game.reconnect_grace_seconds", 30)
	v.SetDefault("game.idle_room_timeout_seconds", 600)
	v.SetDefault("game.min_participants_to_start", 2)
	v.SetDefault("game.max_participants", 16)
	v.SetDefault("game.max_words", 10000)
	v.SetDefault("game.auto_create_rooms", true)

	v.SetDefault("word.max_length", 32)
	v.SetDefault("word.allow_hyphen", true)
	v.SetDefault("word.allow_apostrophe", true)
	v.SetDefault("word.allow_trailing_punctuation", true)
	v.SetDefault("word.banned", []string{})
}

// Load reads config/config.<CONFIG_ENV>.yaml (dev by default). Environment
// variables prefixed with OWS_ override it, e.g. OWS_GAME_TURN_TIMEOUT_SECONDS.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Err(err).Msg("config file not loaded, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("static", cfg.StaticPath).
		Dur("turn_timeout", cfg.Game.TurnTimeout()).
		Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.PingPeriod <= 0 {
		errs = append(errs, errors.New("ping_period must be positive"))
	}
	if c.ReadLimit <= 0 {
		errs = append(errs, errors.New("read_limit must be positive"))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, errors.New("send_buffer must be positive"))
	}
	if c.Game.TurnTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("game.turn_timeout_seconds must be positive"))
	}
	if c.Game.ReconnectGraceSeconds <= 0 {
		errs = append(errs, errors.New("game.reconnect_grace_seconds must be positive"))
	}
	if c.Game.IdleRoomTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("game.idle_room_timeout_seconds must be positive"))
	}
	if c.Game.MinParticipantsToStart < 2 {
		errs = append(errs, errors.New("game.min_participants_to_start must be at least 2"))
	}
	if c.Game.MaxParticipants > 0 && c.Game.MaxParticipants < c.Game.MinParticipantsToStart {
		errs = append(errs, errors.New("game.max_participants is below the start minimum"))
	}
	if c.Game.MaxSkipsBeforeRemoval < 0 || c.Game.MaxWords < 0 {
		errs = append(errs, errors.New("game limits must not be negative"))
	}
	if c.Word.MaxLength <= 0 {
		errs = append(errs, errors.New("word.max_length must be positive"))
	}
	return errors.Join(errs...)
}
