package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "FLOWLOGS"
	FileName  = ".flowlogs"
)

// Settings are the tool defaults. Command-line flags take precedence.
type Settings struct {
	Location    string `mapstructure:"location"`
	Tenant      string `mapstructure:"tenant"`
	Parallelism int    `mapstructure:"parallelism"`
	Profile     string `mapstructure:"profile"`
	LogLevel    string `mapstructure:"log_level"`
	HistoryDB   string `mapstructure:"history_db"`
}

// Load reads settings from path, or from ~/.flowlogs.yaml when path is
// empty. A missing default file is not an error; environment variables
// prefixed with FLOWLOGS_ override the file.
func Load(path string) (*Settings, error) {
	v := viper.New()
	v.SetDefault("location", "")
	v.SetDefault("tenant", "")
	v.SetDefault("parallelism", 0)
	v.SetDefault("profile", "default")
	v.SetDefault("log_level", "info")
	v.SetDefault("history_db", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := readDefault(v); err != nil {
		return nil, err
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if s.Parallelism < 0 {
		return nil, fmt.Errorf("parallelism must not be negative, got %d", s.Parallelism)
	}
	s.Location = strings.ToLower(s.Location)
	return &s, nil
}

func readDefault(v *viper.Viper) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	v.AddConfigPath(home)
	v.SetConfigName(FileName)
	v.SetConfigType("yaml")

	err = v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// Level parses LogLevel, falling back to info when it is empty.
func (s *Settings) Level() (zerolog.Level, error) {
	if s.LogLevel == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(s.LogLevel))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", s.LogLevel, err)
	}
	return level, nil
}
