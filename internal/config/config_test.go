package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.DefaultInstance = "work"
	cfg.Store.Driver = "postgres"
	cfg.Store.DSN = "postgres://relay@localhost/relay"
	cfg.Directory.Timeout = 750 * time.Millisecond
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultInstance != "work" {
		t.Errorf("DefaultInstance = %q, want %q", loaded.DefaultInstance, "work")
	}
	if loaded.Store.Driver != "postgres" || loaded.Store.DSN != cfg.Store.DSN {
		t.Errorf("Store = %+v", loaded.Store)
	}
	if loaded.Directory.Timeout != 750*time.Millisecond {
		t.Errorf("Directory.Timeout = %v", loaded.Directory.Timeout)
	}
}

func TestLoadMissingUsesDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/config.toml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Operator.ID != "admin" || cfg.HTTP.Addr != ":3000" || cfg.Directory.Workers != 8 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := "[http]\naddr = \":8080\"\n\n[directory]\nurl = \"http://profiles\"\ntimeout = \"1s\"\n"
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.HTTP.SendBuffer != 64 {
		t.Errorf("HTTP = %+v", cfg.HTTP)
	}
	if cfg.Directory.URL != "http://profiles" || cfg.Directory.Timeout != time.Second || cfg.Directory.Workers != 8 {
		t.Errorf("Directory = %+v", cfg.Directory)
	}
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("not = [valid"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for malformed file")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := Save(path, &Config{Store: Store{Driver: "sqlite"}, HTTP: HTTP{Addr: ":1"}}); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RELAY_STORE_DRIVER", "memory")
	t.Setenv("RELAY_DIRECTORY_URL", "http://dir.local")
	t.Setenv("RELAY_PUSH_NATS_URL", "nats://localhost:4222")
	t.Setenv("RELAY_OPERATOR_ALIASES", "-1,root")

	cfg, err := LoadWithEnv(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("Store.Driver = %q, want memory", cfg.Store.Driver)
	}
	if cfg.HTTP.Addr != ":1" {
		t.Errorf("HTTP.Addr = %q, file value lost", cfg.HTTP.Addr)
	}
	if cfg.Directory.URL != "http://dir.local" || cfg.Push.NATSURL != "nats://localhost:4222" {
		t.Errorf("overrides not applied: %+v %+v", cfg.Directory, cfg.Push)
	}
	if len(cfg.Operator.Aliases) != 2 || cfg.Operator.Aliases[1] != "root" {
		t.Errorf("Operator.Aliases = %v", cfg.Operator.Aliases)
	}
}

func TestSavePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	if err := Save(path, &Config{DefaultInstance: "main"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
