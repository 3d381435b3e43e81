package profile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matheus3301/jewelchat/internal/config"
)

func TestDir(t *testing.T) {
	t.Setenv(EnvHome, "")
	home, _ := os.UserHomeDir()
	got := Dir("main")
	want := filepath.Join(home, ".jewelchat", "profiles", "main")
	if got != want {
		t.Errorf("Dir(main) = %q, want %q", got, want)
	}
}

func TestPaths(t *testing.T) {
	base := t.TempDir()
	t.Setenv(EnvHome, base)

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"socket", SocketPath("test"), filepath.Join("profiles", "test", "daemon.sock")},
		{"lock", LockPath("test"), filepath.Join("profiles", "test", "LOCK")},
		{"db", DBPath("test"), filepath.Join("profiles", "test", "chat.db")},
		{"credentials", CredentialsPath("test"), filepath.Join("profiles", "test", "credentials.toml")},
		{"log", LogPath("test"), filepath.Join("profiles", "test", "logs", "chatd.log")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.HasPrefix(tt.got, base) || !strings.HasSuffix(tt.got, tt.want) {
				t.Errorf("got %q, want %s/.../%s", tt.got, base, tt.want)
			}
		})
	}
}

func TestEnsureDir(t *testing.T) {
	t.Setenv(EnvHome, t.TempDir())

	if err := EnsureDir("test"); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(LogDir("test"))
	if err != nil {
		t.Fatalf("log dir not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("log dir is not a directory")
	}
	if perm := info.Mode().Perm(); perm != 0700 {
		t.Errorf("log dir permission = %o, want 0700", perm)
	}
}

func TestResolve(t *testing.T) {
	t.Setenv(EnvHome, t.TempDir())

	if got := Resolve(""); got != DefaultName {
		t.Errorf("Resolve() without config = %q, want %q", got, DefaultName)
	}
	if err := config.Save(ConfigPath(), &config.Config{DefaultProfile: "shop"}); err != nil {
		t.Fatal(err)
	}
	if got := Resolve(""); got != "shop" {
		t.Errorf("Resolve() = %q, want shop from config", got)
	}
	if got := Resolve("flag"); got != "flag" {
		t.Errorf("Resolve(flag) = %q, want flag", got)
	}
}

func TestCredentialsRoundTrip(t *testing.T) {
	t.Setenv(EnvHome, t.TempDir())
	t.Setenv(config.EnvToken, "")
	t.Setenv(config.EnvUserID, "")

	creds, err := LoadCredentials("main")
	if err != nil {
		t.Fatalf("LoadCredentials() on missing file: %v", err)
	}
	if creds != (Credentials{}) {
		t.Errorf("creds = %+v, want empty", creds)
	}

	if err := SaveCredentials("main", Credentials{Token: "tok", UserID: "u-1"}); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(CredentialsPath("main"))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("credentials permission = %o, want 0600", perm)
	}

	t.Setenv(config.EnvToken, "env-token")
	creds, err = LoadCredentials("main")
	if err != nil {
		t.Fatal(err)
	}
	if creds.Token != "env-token" || creds.UserID != "u-1" {
		t.Errorf("creds = %+v, want env token over stored user id", creds)
	}
}

func TestList(t *testing.T) {
	t.Setenv(EnvHome, t.TempDir())

	names, err := List()
	if err != nil || len(names) != 0 {
		t.Fatalf("List() on empty home = %v, %v", names, err)
	}
	for _, n := range []string{"shop", "main"} {
		if err := EnsureDir(n); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(BaseDir(), "profiles", "Bad Name"), 0700); err != nil {
		t.Fatal(err)
	}

	names, err = List()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "main" || names[1] != "shop" {
		t.Errorf("List() = %v, want [main shop]", names)
	}
}
