// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Switchyard.
//
// Configuration is loaded from a single YAML file specified by:
//   - SWITCHYARD_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. Environment variables
// never override file values; the file is the single auditable source
// of truth. The only expansion performed is ${HOME} and similar path
// variables for portability.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "500ms" or "2m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var text string
	if err := node.Decode(&text); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard-library form.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the master configuration for the Switchyard daemon.
type Config struct {
	// Paths configures on-disk locations.
	Paths PathsConfig `yaml:"paths"`

	// Agent configures the sandbox runtime.
	Agent AgentConfig `yaml:"agent"`

	// Channels configures the chat surfaces.
	Channels ChannelsConfig `yaml:"channels"`

	// Router configures the delivery loops.
	Router RouterConfig `yaml:"router"`
}

// PathsConfig configures directory and file locations.
type PathsConfig struct {
	// Data is the base directory for Switchyard state. Other paths
	// default to locations under it.
	Data string `yaml:"data"`

	// Database is the registry SQLite file.
	// Default: <data>/registry.db
	Database string `yaml:"database"`

	// Groups is the root of per-group agent workspaces.
	// Default: <data>/groups
	Groups string `yaml:"groups"`

	// IPC is the root of the command-bus mailbox tree.
	// Default: <data>/ipc
	IPC string `yaml:"ipc"`

	// Lock is the single-instance lock file.
	// Default: <data>/switchyard.lock
	Lock string `yaml:"lock"`

	// CredentialBundle is the age-encrypted channel credential file.
	CredentialBundle string `yaml:"credential_bundle"`

	// IdentityKey is the age identity used to decrypt the bundle.
	IdentityKey string `yaml:"identity_key"`
}

// AgentConfig configures the sandbox runtime.
type AgentConfig struct {
	// Binary is the sandbox executable. Required; startup fails if
	// it is missing or not executable.
	Binary string `yaml:"binary"`

	// Args are extra arguments passed to every invocation.
	Args []string `yaml:"args"`

	// Timeout bounds one invocation. Zero uses the agent package
	// default.
	Timeout Duration `yaml:"timeout"`
}

// ChannelsConfig configures the chat surfaces. Empty sections disable
// a channel.
type ChannelsConfig struct {
	// Socket is the persistent-connection messaging socket URL.
	Socket string `yaml:"socket"`

	// Gateway is the gateway-based chat service base URL (a Matrix
	// homeserver).
	Gateway string `yaml:"gateway"`

	// EmailIMAP and EmailSMTP are the polled-mailbox endpoints.
	EmailIMAP string `yaml:"email_imap"`
	EmailSMTP string `yaml:"email_smtp"`
}

// RouterConfig configures the delivery loops.
type RouterConfig struct {
	// PrivilegedFolder is the group folder with cross-group
	// administrative authority. Required.
	PrivilegedFolder string `yaml:"privileged_folder"`

	// PollInterval is the message delivery cycle period.
	PollInterval Duration `yaml:"poll_interval"`

	// IPCInterval is the command-bus scan period.
	IPCInterval Duration `yaml:"ipc_interval"`

	// ApprovalInterval is the plan-file scan period.
	ApprovalInterval Duration `yaml:"approval_interval"`

	// SchedulerInterval is the due-task check period.
	SchedulerInterval Duration `yaml:"scheduler_interval"`

	// EmailInterval is the mailbox poll period.
	EmailInterval Duration `yaml:"email_interval"`

	// BatchSize bounds one delivery cycle's message fetch.
	BatchSize int `yaml:"batch_size"`

	// ChunkSize is the outbound message split limit in bytes.
	ChunkSize int `yaml:"chunk_size"`

	// QuarantineRetention is the age after which quarantined IPC
	// payloads are compressed in place.
	QuarantineRetention Duration `yaml:"quarantine_retention"`
}

// Default returns the configuration defaults applied before the file
// is read.
func Default() *Config {
	return &Config{
		Router: RouterConfig{
			PollInterval:        Duration(2 * time.Second),
			IPCInterval:         Duration(2 * time.Second),
			ApprovalInterval:    Duration(5 * time.Second),
			SchedulerInterval:   Duration(15 * time.Second),
			EmailInterval:       Duration(time.Minute),
			BatchSize:           50,
			ChunkSize:           4000,
			QuarantineRetention: Duration(7 * 24 * time.Hour),
		},
	}
}

// Load loads configuration from the SWITCHYARD_CONFIG environment
// variable. There are no fallbacks: if it is not set, this fails.
func Load() (*Config, error) {
	path := os.Getenv("SWITCHYARD_CONFIG")
	if path == "" {
		return nil, fmt.Errorf("SWITCHYARD_CONFIG environment variable not set; " +
			"set it to the path of your switchyard.yaml config file, or use --config")
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.expandVariables()
	cfg.applyPathDefaults()
	return cfg, nil
}

var variablePattern = regexp.MustCompile(`\$\{(\w+)\}`)

// expandVariables expands ${HOME} and similar environment references
// in path fields only.
func (c *Config) expandVariables() {
	expand := func(s string) string {
		return variablePattern.ReplaceAllStringFunc(s, func(match string) string {
			name := variablePattern.FindStringSubmatch(match)[1]
			if value, ok := os.LookupEnv(name); ok {
				return value
			}
			return match
		})
	}
	c.Paths.Data = expand(c.Paths.Data)
	c.Paths.Database = expand(c.Paths.Database)
	c.Paths.Groups = expand(c.Paths.Groups)
	c.Paths.IPC = expand(c.Paths.IPC)
	c.Paths.Lock = expand(c.Paths.Lock)
	c.Paths.CredentialBundle = expand(c.Paths.CredentialBundle)
	c.Paths.IdentityKey = expand(c.Paths.IdentityKey)
	c.Agent.Binary = expand(c.Agent.Binary)
}

// applyPathDefaults fills unset paths relative to the data directory.
func (c *Config) applyPathDefaults() {
	if c.Paths.Data == "" {
		return
	}
	if c.Paths.Database == "" {
		c.Paths.Database = filepath.Join(c.Paths.Data, "registry.db")
	}
	if c.Paths.Groups == "" {
		c.Paths.Groups = filepath.Join(c.Paths.Data, "groups")
	}
	if c.Paths.IPC == "" {
		c.Paths.IPC = filepath.Join(c.Paths.Data, "ipc")
	}
	if c.Paths.Lock == "" {
		c.Paths.Lock = filepath.Join(c.Paths.Data, "switchyard.lock")
	}
}

// Validate checks the configuration for errors, reporting all of them
// at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.Data == "" {
		errs = append(errs, fmt.Errorf("paths.data is required"))
	}
	if c.Agent.Binary == "" {
		errs = append(errs, fmt.Errorf("agent.binary is required"))
	}
	if c.Router.PrivilegedFolder == "" {
		errs = append(errs, fmt.Errorf("router.privileged_folder is required"))
	}
	if c.Router.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("router.batch_size must be positive"))
	}
	if c.Router.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("router.chunk_size must be positive"))
	}
	if c.Router.QuarantineRetention <= 0 {
		errs = append(errs, fmt.Errorf("router.quarantine_retention must be positive"))
	}
	for name, interval := range map[string]Duration{
		"router.poll_interval":      c.Router.PollInterval,
		"router.ipc_interval":       c.Router.IPCInterval,
		"router.approval_interval":  c.Router.ApprovalInterval,
		"router.scheduler_interval": c.Router.SchedulerInterval,
		"router.email_interval":     c.Router.EmailInterval,
	} {
		if interval <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates the data, groups, and IPC directories.
func (c *Config) EnsurePaths() error {
	for _, dir := range []string{c.Paths.Data, c.Paths.Groups, c.Paths.IPC} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: creating %s: %w", dir, err)
		}
	}
	return nil
}
