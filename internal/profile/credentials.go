package profile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/matheus3301/jewelchat/internal/config"
)

// Credentials is the identity stored in a profile's credentials.toml.
type Credentials struct {
	Token  string `toml:"token"`
	UserID string `toml:"user_id"`
}

// LoadCredentials reads the stored credentials of a profile and overlays
// JEWELCHAT_TOKEN / JEWELCHAT_USER_ID from the environment. A missing file
// is not an error.
func LoadCredentials(name string) (Credentials, error) {
	var creds Credentials
	if _, err := toml.DecodeFile(CredentialsPath(name), &creds); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Credentials{}, fmt.Errorf("read credentials: %w", err)
	}
	token, userID := config.EnvCredentials()
	if token != "" {
		creds.Token = token
	}
	if userID != "" {
		creds.UserID = userID
	}
	return creds, nil
}

// SaveCredentials writes creds to the profile with 0600 permissions.
func SaveCredentials(name string, creds Credentials) error {
	path := CredentialsPath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(creds)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
