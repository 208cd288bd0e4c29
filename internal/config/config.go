// Package config loads bot configuration from an optional YAML file plus
// OSUBOT_-prefixed environment variables.
package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

type IRC struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
}

type HTTP struct {
	Addr   string `mapstructure:"addr"`
	Secret string `mapstructure:"secret"`
}

type OsuAPI struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

type Config struct {
	IRC    IRC    `mapstructure:"irc"`
	HTTP   HTTP   `mapstructure:"http"`
	OsuAPI OsuAPI `mapstructure:"osu_api"`
}

// Load reads config.yaml from the working directory when present, then lets
// environment variables override (e.g. OSUBOT_IRC_PASSWORD). IRC credentials
// are mandatory; everything else has a usable default.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("irc.username", "")
	v.SetDefault("irc.password", "")
	v.SetDefault("irc.host", "irc.ppy.sh")
	v.SetDefault("irc.port", 6667)
	v.SetDefault("http.addr", ":8000")
	v.SetDefault("http.secret", "")
	v.SetDefault("osu_api.client_id", "")
	v.SetDefault("osu_api.client_secret", "")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("OSUBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.IRC.Username == "" || cfg.IRC.Password == "" {
		return nil, errors.New("irc username and password are required")
	}
	if cfg.HTTP.Secret == "" {
		// The admin API signs session tokens with this; fall back to the IRC
		// password rather than an empty key.
		cfg.HTTP.Secret = cfg.IRC.Password
	}

	return &cfg, nil
}
