// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package config loads the handler's ambient configuration: the work
// directory path and permissions, the shell-wrapper binary path, the
// sentinel poll interval, and the audit database path. Spec.md §3/§4.2
// documents these as fixed defaults "overridable at build time"; this
// package makes them overridable at config-load time instead, following
// the shape of the teacher project's pkg/config (NewConfig([]string) with
// mandatory-key validation and a clamped numeric setting).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml"
)

const (
	ConfigFilename = "fus-update.toml"

	ShellPathKey    = "updater.shell_path"
	WorkDirKey      = "workdir.path"
	PollIntervalKey = "workdir.poll_interval_ms"
	AuditDBPathKey  = "audit.db_path"
	StampModeKey    = "workdir.stamp_mode"

	WorkDirDefault      = "/tmp/adu/.work"
	PollIntervalDefault = 100
	MinPollIntervalMs   = 10
	MaxPollIntervalMs   = 5000
	AuditDBPathDefault  = "/var/lib/fus-update/audit.db"
	StampModeDefault    = "0644"
)

// Config is the handler's loaded, read-only configuration.
type Config struct {
	tree         *toml.Tree
	pollInterval int
}

// NewConfig loads fus-update.toml from the first of configDirs that
// contains it, mirroring the teacher's multi-path TOML loader. At least one
// readable config directory is mandatory; ShellPath is the one mandatory
// key, since without it the Updater Gateway cannot launch anything.
func NewConfig(configDirs []string) (*Config, error) {
	if len(configDirs) == 0 {
		return nil, fmt.Errorf("config: no TOML directories provided")
	}

	var tree *toml.Tree
	var loadedFrom string
	for _, dir := range configDirs {
		path := filepath.Join(dir, ConfigFilename)
		b, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("config: failed to read %q: %w", path, err)
		}
		t, err := toml.LoadBytes(b)
		if err != nil {
			return nil, fmt.Errorf("config: failed to parse %q: %w", path, err)
		}
		tree = t
		loadedFrom = path
		break
	}
	if tree == nil {
		return nil, fmt.Errorf("config: no %q found in %s", ConfigFilename, strings.Join(configDirs, ", "))
	}
	slog.Debug("loaded configuration", "path", loadedFrom)

	cfg := &Config{tree: tree}
	if !cfg.tree.Has(ShellPathKey) {
		return nil, fmt.Errorf("no %q is found in the TOML config; it defines the updater shell-wrapper path", ShellPathKey)
	}

	cfg.pollInterval = PollIntervalDefault
	if raw, ok := cfg.tree.Get(PollIntervalKey).(int64); ok {
		v := int(raw)
		if v < MinPollIntervalMs || v > MaxPollIntervalMs {
			slog.Warn("poll interval out of range; using default", "value", v, "default", PollIntervalDefault)
		} else {
			cfg.pollInterval = v
		}
	} else if cfg.tree.Has(PollIntervalKey) {
		slog.Warn("invalid poll interval value; using default", "default", PollIntervalDefault)
	}

	return cfg, nil
}

// ShellPath returns the path to the adu-shell-style wrapper binary.
func (c *Config) ShellPath() string {
	if v, ok := c.tree.Get(ShellPathKey).(string); ok {
		return v
	}
	return ""
}

// WorkDir returns the configured work-directory path.
func (c *Config) WorkDir() string {
	if v, ok := c.tree.Get(WorkDirKey).(string); ok && v != "" {
		return v
	}
	return WorkDirDefault
}

// AuditDBPath returns the configured SQLite audit-database path.
func (c *Config) AuditDBPath() string {
	if v, ok := c.tree.Get(AuditDBPathKey).(string); ok && v != "" {
		return v
	}
	return AuditDBPathDefault
}

// PollIntervalMs returns the validated, clamped sentinel poll interval.
func (c *Config) PollIntervalMs() int {
	return c.pollInterval
}

// StampMode returns the configured stamp file permission mode, parsed as
// an octal string (e.g. "0644"), falling back to the default on any
// parse failure.
func (c *Config) StampMode() os.FileMode {
	raw := StampModeDefault
	if v, ok := c.tree.Get(StampModeKey).(string); ok && v != "" {
		raw = v
	}
	mode, err := strconv.ParseUint(raw, 8, 32)
	if err != nil {
		slog.Warn("invalid stamp mode value; using default", "value", raw, "default", StampModeDefault)
		mode, _ = strconv.ParseUint(StampModeDefault, 8, 32)
	}
	return os.FileMode(mode)
}
