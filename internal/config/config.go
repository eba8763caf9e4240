// Package config handles loading and validation of qslurm configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Follower names accepted by the follower setting.
const (
	FollowerFile = "file"
	FollowerTail = "tail"
)

// Config represents the qslurm configuration.
type Config struct {
	// LogDirectory is where sbatch writes <jobid>.log / <jobid>.err and where
	// qslurm keeps its own log file.
	LogDirectory string `json:"log_directory" yaml:"log_directory"`

	// LogLevel sets the logging verbosity (debug, info, warn, error).
	LogLevel string `json:"log_level" yaml:"log_level"`

	// StateFile is the path to the job records JSON file.
	StateFile string `json:"state_file" yaml:"state_file"`

	// Follower selects how job logs are followed: "file" or "tail".
	Follower string `json:"follower" yaml:"follower"`

	// WaitPollMillis is the fallback poll interval while waiting for a log file.
	WaitPollMillis int `json:"wait_poll_ms" yaml:"wait_poll_ms"`

	// StatusIntervalMillis is the squeue polling interval.
	StatusIntervalMillis int `json:"status_interval_ms" yaml:"status_interval_ms"`

	// AbsentThreshold is how many consecutive absent status results end a session.
	AbsentThreshold int `json:"absent_threshold" yaml:"absent_threshold"`

	// PullWaitMillis bounds how long the multiplexer blocks on empty queues.
	PullWaitMillis int `json:"pull_wait_ms" yaml:"pull_wait_ms"`

	// RefreshIntervalMillis is the dashboard redraw cadence.
	RefreshIntervalMillis int `json:"refresh_interval_ms" yaml:"refresh_interval_ms"`

	// LogPanelLimit raises the number of lines the log panel retains above
	// its visible height. 0 keeps exactly what fits on screen.
	LogPanelLimit int `json:"log_panel_limit" yaml:"log_panel_limit"`

	// ShowStatus enables the live status panel by default.
	ShowStatus bool `json:"show_status" yaml:"show_status"`

	// Scheduler commands.
	SqueueCommand  string `json:"squeue_command" yaml:"squeue_command"`
	SbatchCommand  string `json:"sbatch_command" yaml:"sbatch_command"`
	ScancelCommand string `json:"scancel_command" yaml:"scancel_command"`

	// Template holds the defaults for generated sbatch scripts.
	Template TemplateConfig `json:"template" yaml:"template"`
}

// TemplateConfig holds the #SBATCH defaults used by the template command.
type TemplateConfig struct {
	Partition string `json:"partition" yaml:"partition"`
	Tasks     int    `json:"tasks" yaml:"tasks"`
	CPUs      int    `json:"cpus" yaml:"cpus"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogDirectory:          "log",
		LogLevel:              "info",
		StateFile:             ".qslurm/jobs.json",
		Follower:              FollowerFile,
		WaitPollMillis:        1000,
		StatusIntervalMillis:  1000,
		AbsentThreshold:       1,
		PullWaitMillis:        200,
		RefreshIntervalMillis: 1000,
		LogPanelLimit:         0,
		ShowStatus:            false,
		SqueueCommand:         "squeue",
		SbatchCommand:         "sbatch",
		ScancelCommand:        "scancel",
		Template: TemplateConfig{
			Partition: "v6_384",
			Tasks:     1,
			CPUs:      1,
		},
	}
}

// Load reads configuration from a JSON or YAML file.
// If the file doesn't exist, it returns DefaultConfig.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply defaults for zero values
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// applyDefaults fills in default values for any fields that are zero/empty.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.LogDirectory == "" {
		c.LogDirectory = defaults.LogDirectory
	}
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
	if c.StateFile == "" {
		c.StateFile = defaults.StateFile
	}
	if c.Follower == "" {
		c.Follower = defaults.Follower
	}
	if c.WaitPollMillis <= 0 {
		c.WaitPollMillis = defaults.WaitPollMillis
	}
	if c.StatusIntervalMillis <= 0 {
		c.StatusIntervalMillis = defaults.StatusIntervalMillis
	}
	if c.AbsentThreshold <= 0 {
		c.AbsentThreshold = defaults.AbsentThreshold
	}
	if c.PullWaitMillis <= 0 {
		c.PullWaitMillis = defaults.PullWaitMillis
	}
	if c.RefreshIntervalMillis <= 0 {
		c.RefreshIntervalMillis = defaults.RefreshIntervalMillis
	}
	if c.SqueueCommand == "" {
		c.SqueueCommand = defaults.SqueueCommand
	}
	if c.SbatchCommand == "" {
		c.SbatchCommand = defaults.SbatchCommand
	}
	if c.ScancelCommand == "" {
		c.ScancelCommand = defaults.ScancelCommand
	}
	if c.Template.Partition == "" {
		c.Template.Partition = defaults.Template.Partition
	}
	if c.Template.Tasks <= 0 {
		c.Template.Tasks = defaults.Template.Tasks
	}
	if c.Template.CPUs <= 0 {
		c.Template.CPUs = defaults.Template.CPUs
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.LogDirectory == "" {
		return fmt.Errorf("log_directory cannot be empty")
	}
	if c.WaitPollMillis < 10 {
		return fmt.Errorf("wait_poll_ms must be at least 10, got %d", c.WaitPollMillis)
	}
	if c.StatusIntervalMillis < 100 {
		return fmt.Errorf("status_interval_ms must be at least 100, got %d", c.StatusIntervalMillis)
	}
	if c.AbsentThreshold < 1 {
		return fmt.Errorf("absent_threshold must be at least 1, got %d", c.AbsentThreshold)
	}
	if c.AbsentThreshold > 60 {
		return fmt.Errorf("absent_threshold should not exceed 60, got %d", c.AbsentThreshold)
	}
	if c.PullWaitMillis < 1 {
		return fmt.Errorf("pull_wait_ms must be at least 1, got %d", c.PullWaitMillis)
	}
	if c.RefreshIntervalMillis < 50 {
		return fmt.Errorf("refresh_interval_ms must be at least 50, got %d", c.RefreshIntervalMillis)
	}
	if c.LogPanelLimit < 0 {
		return fmt.Errorf("log_panel_limit cannot be negative, got %d", c.LogPanelLimit)
	}

	switch c.Follower {
	case FollowerFile, FollowerTail:
		// Valid
	default:
		return fmt.Errorf("invalid follower: %s (must be file or tail)", c.Follower)
	}

	// Validate log level
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
		// Valid
	default:
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// Save writes the configuration to a JSON or YAML file, chosen by extension.
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// WaitPoll returns the log-file wait poll interval.
func (c *Config) WaitPoll() time.Duration {
	return time.Duration(c.WaitPollMillis) * time.Millisecond
}

// StatusInterval returns the squeue polling interval.
func (c *Config) StatusInterval() time.Duration {
	return time.Duration(c.StatusIntervalMillis) * time.Millisecond
}

// PullWait returns the multiplexer's bounded wait.
func (c *Config) PullWait() time.Duration {
	return time.Duration(c.PullWaitMillis) * time.Millisecond
}

// RefreshInterval returns the dashboard redraw cadence.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMillis) * time.Millisecond
}

// JobLogPath returns the stdout log path sbatch writes for a job.
func (c *Config) JobLogPath(jobID string) string {
	return filepath.Join(c.LogDirectory, jobID+".log")
}

// JobErrPath returns the stderr log path sbatch writes for a job.
func (c *Config) JobErrPath(jobID string) string {
	return filepath.Join(c.LogDirectory, jobID+".err")
}
