package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`

	DBPath        string `mapstructure:"db_path"`
	AdminToken    string `mapstructure:"admin_token"`
	DefaultAvatar string `mapstructure:"default_avatar"`

	SendBuffer   int           `mapstructure:"send_buffer"`
	RateLimit    int           `mapstructure:"rate_limit"`
	RateInterval time.Duration `mapstructure:"rate_interval"`
	SlowConsumer string        `mapstructure:"slow_consumer"`
	EnforceBans  bool          `mapstructure:"enforce_bans"`
}

// FileName is the config file for the CONFIG_ENV environment, dev by default.
func FileName() string {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return fmt.Sprintf("config/config.%s.yaml", env)
}

// Load reads file (FileName() when empty) and CHAT_* environment overrides
// on top of the defaults. A missing file is not an error.
func Load(file string) (*Config, error) {
	if file == "" {
		file = FileName()
	}
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(file)

	v.SetEnvPrefix("CHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "")
	v.SetDefault("db_path", "./chat.db")
	v.SetDefault("admin_token", "")
	v.SetDefault("default_avatar", "/images/default-avatar.png")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("rate_limit", 20)
	v.SetDefault("rate_interval", "5s")
	v.SetDefault("slow_consumer", "drop")
	v.SetDefault("enforce_bans", true)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", file).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", file).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("static", cfg.StaticPath).Msg("config ready")
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.SlowConsumer {
	case "", "drop", "disconnect":
	default:
		return fmt.Errorf("slow_consumer: unknown policy %q", c.SlowConsumer)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.Secret == "" {
		if c.Mode == "release" {
			return errors.New("secret is required in release mode")
		}
		key := securecookie.GenerateRandomKey(32)
		if key == nil {
			return errors.New("secret: failed to generate session key")
		}
		c.Secret = hex.EncodeToString(key)
		log.Warn().Str("module", "config").Str("mode", c.Mode).Msg("secret is empty, using a random session key; sessions will not survive a restart")
	}
	return nil
}
