package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.DefaultProfile = "work"
	cfg.Server.BaseURL = "https://chat.example.com"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultProfile != "work" {
		t.Errorf("DefaultProfile = %q, want %q", loaded.DefaultProfile, "work")
	}
	if loaded.Server.BaseURL != "https://chat.example.com" {
		t.Errorf("BaseURL = %q", loaded.Server.BaseURL)
	}
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("default_profile = \"shop\"\n\n[chat]\nmatch_window_ms = 5000\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MatchWindow() != 5*time.Second {
		t.Errorf("MatchWindow() = %v, want 5s", cfg.MatchWindow())
	}
	if cfg.ReconnectDelay() != time.Second {
		t.Errorf("ReconnectDelay() = %v, want default 1s", cfg.ReconnectDelay())
	}
	if cfg.Server.SocketURL != Default().Server.SocketURL {
		t.Errorf("SocketURL = %q, want default", cfg.Server.SocketURL)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}

	cfg, err := LoadOrDefault("/nonexistent/config.toml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"socket url not ws", func(c *Config) { c.Server.SocketURL = "http://x" }, true},
		{"base url not http", func(c *Config) { c.Server.BaseURL = "ftp://x" }, true},
		{"negative window", func(c *Config) { c.Chat.MatchWindowMS = -1 }, true},
		{"wss ok", func(c *Config) { c.Server.SocketURL = "wss://chat.example.com/ws" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	content := "JEWELCHAT_SOCKET_URL=wss://file.example.com/ws\nJEWELCHAT_TOKEN=file-token\n"
	if err := os.WriteFile(envFile, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvSocketURL, "")
	t.Setenv(EnvToken, "")
	t.Setenv(EnvUserID, "u-1")
	t.Setenv(EnvLogLevel, "DEBUG")
	// godotenv never overrides variables that are already set; unset the
	// ones the file provides so they come from it.
	os.Unsetenv(EnvSocketURL)
	os.Unsetenv(EnvToken)

	cfg := Default()
	if err := cfg.ApplyEnv(envFile); err != nil {
		t.Fatal(err)
	}
	if cfg.Server.SocketURL != "wss://file.example.com/ws" {
		t.Errorf("SocketURL = %q, want value from .env", cfg.Server.SocketURL)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	token, user := EnvCredentials()
	if token != "file-token" || user != "u-1" {
		t.Errorf("EnvCredentials() = %q, %q", token, user)
	}
}

func TestApplyEnvMissingFile(t *testing.T) {
	cfg := Default()
	if err := cfg.ApplyEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("ApplyEnv() error = %v, want nil for missing file", err)
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, &Config{DefaultProfile: "main"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
