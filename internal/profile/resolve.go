package profile

import "github.com/matheus3301/jewelchat/internal/config"

const DefaultName = "main"

// Resolve determines the active profile name using precedence:
// 1. flagOverride (--profile flag)
// 2. config.toml default_profile, when it is a valid name
// 3. "main"
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	cfg, err := config.Load(ConfigPath())
	if err == nil && cfg.DefaultProfile != "" && ValidateName(cfg.DefaultProfile) == nil {
		return cfg.DefaultProfile
	}
	return DefaultName
}
