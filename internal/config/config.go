package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv and EnvCredentials.
const (
	EnvBaseURL   = "JEWELCHAT_BASE_URL"
	EnvSocketURL = "JEWELCHAT_SOCKET_URL"
	EnvLogLevel  = "JEWELCHAT_LOG_LEVEL"
	EnvToken     = "JEWELCHAT_TOKEN"
	EnvUserID    = "JEWELCHAT_USER_ID"
)

var validate = validator.New()

// Config represents the global ~/.jewelchat/config.toml.
type Config struct {
	DefaultProfile string `toml:"default_profile" validate:"omitempty,max=64"`
	LogLevel       string `toml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	Server         Server `toml:"server"`
	Chat           Chat   `toml:"chat"`
}

// Server holds the marketplace backend endpoints.
type Server struct {
	BaseURL   string `toml:"base_url" validate:"omitempty,url,startswith=http"`
	SocketURL string `toml:"socket_url" validate:"omitempty,url,startswith=ws"`
}

// Chat tunes message reconciliation and reconnects.
type Chat struct {
	MatchWindowMS    int `toml:"match_window_ms" validate:"gte=0,lte=600000"`
	ReconnectDelayMS int `toml:"reconnect_delay_ms" validate:"gte=0,lte=600000"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Server: Server{
			BaseURL:   "http://localhost:3000",
			SocketURL: "ws://localhost:3000/ws",
		},
		Chat: Chat{
			MatchWindowMS:    10000,
			ReconnectDelayMS: 1000,
		},
	}
}

// Load reads config from the given path. Returns nil config and error if file missing.
// Keys absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields Default().
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s fails %q", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// MatchWindow returns the optimistic match window as a duration.
func (c *Config) MatchWindow() time.Duration {
	return time.Duration(c.Chat.MatchWindowMS) * time.Millisecond
}

// ReconnectDelay returns the initial reconnect delay as a duration.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Chat.ReconnectDelayMS) * time.Millisecond
}

// ApplyEnv loads envFile (if it exists) into the process environment and
// overlays the JEWELCHAT_* endpoint and log level variables onto c.
// Variables already set in the environment win over the file.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvBaseURL)); v != "" {
		c.Server.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvSocketURL)); v != "" {
		c.Server.SocketURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	return c.Validate()
}

// EnvCredentials returns the token and user id set in the environment.
// Either may be empty.
func EnvCredentials() (token, userID string) {
	return strings.TrimSpace(os.Getenv(EnvToken)), strings.TrimSpace(os.Getenv(EnvUserID))
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
