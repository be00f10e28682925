package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Users.Admin != "admin" {
		t.Errorf("expected admin user admin, got %s", cfg.Users.Admin)
	}
	if cfg.Index.Backend != "json" {
		t.Errorf("expected json backend, got %s", cfg.Index.Backend)
	}
	if cfg.Index.SnapshotPath != "filesystem.json" {
		t.Errorf("expected snapshot filesystem.json, got %s", cfg.Index.SnapshotPath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	configContent := `
storage:
  root: "/srv/files"
index:
  snapshot_path: "/srv/index.json"
  backend: "badger"
  strict: true
users:
  admin: "root"
  default: "guest"
server:
  grpc_addr: ":9191"
  shutdown_timeout: "30s"
logging:
  level: "debug"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Storage.Root != "/srv/files" {
		t.Errorf("expected root /srv/files, got %s", cfg.Storage.Root)
	}
	if cfg.Index.Backend != "badger" {
		t.Errorf("expected badger backend, got %s", cfg.Index.Backend)
	}
	if !cfg.Index.Strict {
		t.Error("expected strict index")
	}
	if cfg.Users.Admin != "root" {
		t.Errorf("expected admin root, got %s", cfg.Users.Admin)
	}
	if cfg.Users.Default != "guest" {
		t.Errorf("expected default user guest, got %s", cfg.Users.Default)
	}
	if cfg.Server.GRPCAddr != ":9191" {
		t.Errorf("expected grpc addr :9191, got %s", cfg.Server.GRPCAddr)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
	// Unset keys keep defaults
	if cfg.Logging.Format != "text" {
		t.Errorf("expected default format text, got %s", cfg.Logging.Format)
	}
}

func TestLoadConfigTOML(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.toml")

	configContent := `
[storage]
root = "/data"

[users]
admin = "boss"
default = "boss"

[logging]
format = "json"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Storage.Root != "/data" {
		t.Errorf("expected root /data, got %s", cfg.Storage.Root)
	}
	if cfg.Users.Admin != "boss" {
		t.Errorf("expected admin boss, got %s", cfg.Users.Admin)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("expected json format, got %s", cfg.Logging.Format)
	}
	if cfg.Index.Backend != "json" {
		t.Errorf("expected default backend json, got %s", cfg.Index.Backend)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tempDir := t.TempDir()

	tests := map[string]string{
		"unknown backend": "index:\n  backend: \"sqlite\"\n",
		"empty admin":     "users:\n  admin: \"\"\n",
		"bad format":      "logging:\n  format: \"xml\"\n",
		"malformed yaml":  "storage: [",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			configPath := filepath.Join(tempDir, "bad.yaml")
			if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
				t.Fatalf("failed to write config file: %v", err)
			}
			if _, err := Load(configPath); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault("/nonexistent/path.yaml")
	if err != nil {
		t.Fatalf("LoadOrDefault should not error for non-existent file: %v", err)
	}
	if cfg.Users.Admin != "admin" {
		t.Errorf("expected default admin, got %s", cfg.Users.Admin)
	}

	cfg, err = LoadOrDefault("")
	if err != nil {
		t.Fatalf("LoadOrDefault should not error for empty path: %v", err)
	}
	if cfg.Server.GRPCAddr != ":9090" {
		t.Errorf("expected default grpc addr :9090, got %s", cfg.Server.GRPCAddr)
	}
}

func TestNormalizePaths(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.NormalizePaths(); err != nil {
		t.Fatalf("NormalizePaths failed: %v", err)
	}
	if !filepath.IsAbs(cfg.Storage.Root) {
		t.Errorf("expected absolute root, got %s", cfg.Storage.Root)
	}
	if !filepath.IsAbs(cfg.Index.SnapshotPath) {
		t.Errorf("expected absolute snapshot path, got %s", cfg.Index.SnapshotPath)
	}
}

func TestServerConfigDurations(t *testing.T) {
	cfg := &ServerConfig{ShutdownTimeout: "45s"}
	if cfg.GetShutdownTimeout() != 45*time.Second {
		t.Errorf("expected 45s, got %v", cfg.GetShutdownTimeout())
	}

	cfg.ShutdownTimeout = "invalid"
	if cfg.GetShutdownTimeout() != 10*time.Second {
		t.Errorf("expected fallback 10s, got %v", cfg.GetShutdownTimeout())
	}
}
