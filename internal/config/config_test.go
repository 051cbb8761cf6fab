package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.Backend != BackendSandbox {
		t.Errorf("expected backend sandbox, got %s", cfg.Backend)
	}
	if cfg.Sandbox.Storage != StorageMemory {
		t.Errorf("expected memory storage, got %s", cfg.Sandbox.Storage)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = "cloud"
	if err := cfg.Validate(); err == nil {
		t.Error("expected unknown backend to be rejected")
	}

	cfg = DefaultConfig()
	cfg.Host.Transport = "grpc"
	if err := cfg.Validate(); err == nil {
		t.Error("expected unknown transport to be rejected")
	}

	cfg = DefaultConfig()
	cfg.Backend = BackendHost
	cfg.Host.Root = "home/me/proj"
	if err := cfg.Validate(); err == nil {
		t.Error("expected relative host root to be rejected")
	}

	cfg.Host.Root = "/home/me/proj/"
	if err := cfg.Validate(); err != nil {
		t.Errorf("absolute host root should be valid: %v", err)
	}

	cfg = DefaultConfig()
	cfg.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected port 0 to be rejected")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("EZWS_BACKEND", "host")
	t.Setenv("EZWS_HOST_URL", "http://files.local:9000")
	t.Setenv("EZWS_SANDBOX_DB_DRIVER", "postgres")

	cfgFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgFile, []byte("port: 9100\nhost:\n  root: /srv/work\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(cfgFile)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Backend != BackendHost {
		t.Errorf("expected env backend host, got %s", cfg.Backend)
	}
	if cfg.Host.URL != "http://files.local:9000" {
		t.Errorf("expected env host url, got %s", cfg.Host.URL)
	}
	if cfg.Sandbox.DBDriver != "postgres" {
		t.Errorf("expected env db driver postgres, got %s", cfg.Sandbox.DBDriver)
	}
	// Values without an env override come from the file, then the defaults
	if cfg.Port != 9100 {
		t.Errorf("expected file port 9100, got %d", cfg.Port)
	}
	if cfg.Host.Root != "/srv/work" {
		t.Errorf("expected file root /srv/work, got %s", cfg.Host.Root)
	}
	if cfg.Host.Transport != TransportHTTP {
		t.Errorf("expected default transport http, got %s", cfg.Host.Transport)
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Error("expected an explicit missing config file to fail")
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.configPath = tmpFile
	cfg.Port = 9999
	cfg.Backend = BackendHost
	cfg.Host.Transport = TransportWS

	err := cfg.Save()
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Manual load to verify
	cfg2 := &Config{}
	err = cfg2.loadFromFile(tmpFile)
	if err != nil {
		t.Fatalf("loadFromFile failed: %v", err)
	}

	if cfg2.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg2.Port)
	}
	if cfg2.Backend != BackendHost || cfg2.Host.Transport != TransportWS {
		t.Errorf("backend loading failed: %+v", cfg2)
	}
}
