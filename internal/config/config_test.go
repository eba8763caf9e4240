package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Follower != FollowerFile {
		t.Errorf("expected Follower=file, got %s", cfg.Follower)
	}
	if cfg.StatusIntervalMillis != 1000 {
		t.Errorf("expected StatusIntervalMillis=1000, got %d", cfg.StatusIntervalMillis)
	}
	if cfg.AbsentThreshold != 1 {
		t.Errorf("expected AbsentThreshold=1, got %d", cfg.AbsentThreshold)
	}
	if cfg.ShowStatus {
		t.Error("expected ShowStatus=false by default")
	}
	if cfg.LogPanelLimit != 0 {
		t.Errorf("expected the log panel to keep only what fits by default, got limit %d", cfg.LogPanelLimit)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "qslurm.json")

	configJSON := `{
		"log_directory": "out",
		"status_interval_ms": 2000,
		"absent_threshold": 3,
		"log_level": "debug"
	}`

	if err := os.WriteFile(configPath, []byte(configJSON), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.LogDirectory != "out" {
		t.Errorf("expected LogDirectory=out, got %s", cfg.LogDirectory)
	}
	if cfg.StatusInterval() != 2*time.Second {
		t.Errorf("expected StatusInterval=2s, got %v", cfg.StatusInterval())
	}
	if cfg.AbsentThreshold != 3 {
		t.Errorf("expected AbsentThreshold=3, got %d", cfg.AbsentThreshold)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected LogLevel=debug, got %s", cfg.LogLevel)
	}

	// Check defaults applied for unspecified fields
	if cfg.SqueueCommand != "squeue" {
		t.Errorf("expected default SqueueCommand=squeue, got %s", cfg.SqueueCommand)
	}
	if cfg.Template.Partition != "v6_384" {
		t.Errorf("expected default partition, got %s", cfg.Template.Partition)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "qslurm.yaml")

	configYAML := `log_directory: logs
follower: tail
show_status: true
template:
  partition: gpu
  cpus: 8
`
	if err := os.WriteFile(configPath, []byte(configYAML), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Follower != FollowerTail {
		t.Errorf("expected Follower=tail, got %s", cfg.Follower)
	}
	if !cfg.ShowStatus {
		t.Error("expected ShowStatus=true")
	}
	if cfg.Template.Partition != "gpu" || cfg.Template.CPUs != 8 {
		t.Errorf("unexpected template %+v", cfg.Template)
	}
	if cfg.Template.Tasks != 1 {
		t.Errorf("expected default Tasks=1, got %d", cfg.Template.Tasks)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/qslurm.json")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}

	if cfg.LogDirectory != "log" {
		t.Errorf("expected default LogDirectory=log, got %s", cfg.LogDirectory)
	}
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "qslurm.json")

	if err := os.WriteFile(configPath, []byte("{invalid json}"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("expected error for invalid JSON, got nil")
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "unknown follower",
			modify:  func(c *Config) { c.Follower = "inotify" },
			wantErr: true,
		},
		{
			name:    "status interval too small",
			modify:  func(c *Config) { c.StatusIntervalMillis = 5 },
			wantErr: true,
		},
		{
			name:    "zero absent threshold",
			modify:  func(c *Config) { c.AbsentThreshold = 0 },
			wantErr: true,
		},
		{
			name:    "invalid log level",
			modify:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: true,
		},
		{
			name:    "empty log directory",
			modify:  func(c *Config) { c.LogDirectory = "" },
			wantErr: true,
		},
		{
			name:    "negative log panel limit",
			modify:  func(c *Config) { c.LogPanelLimit = -1 },
			wantErr: true,
		},
		{
			name:    "log panel limit above screen height",
			modify:  func(c *Config) { c.LogPanelLimit = 500 },
			wantErr: false,
		},
		{
			name:    "debounced absence",
			modify:  func(c *Config) { c.AbsentThreshold = 3 },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()

			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestSaveConfig(t *testing.T) {
	tmpDir := t.TempDir()

	for _, name := range []string{"qslurm.json", "qslurm.yml"} {
		configPath := filepath.Join(tmpDir, name)

		cfg := DefaultConfig()
		cfg.AbsentThreshold = 2
		cfg.LogLevel = "debug"

		if err := cfg.Save(configPath); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := Load(configPath)
		if err != nil {
			t.Fatalf("failed to reload config: %v", err)
		}

		if loaded.AbsentThreshold != 2 {
			t.Errorf("%s: expected AbsentThreshold=2, got %d", name, loaded.AbsentThreshold)
		}
		if loaded.LogLevel != "debug" {
			t.Errorf("%s: expected LogLevel=debug, got %s", name, loaded.LogLevel)
		}
	}
}

func TestJobPaths(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.JobLogPath("12345"); got != filepath.Join("log", "12345.log") {
		t.Errorf("unexpected log path %s", got)
	}
	if got := cfg.JobErrPath("12345"); got != filepath.Join("log", "12345.err") {
		t.Errorf("unexpected err path %s", got)
	}
}
