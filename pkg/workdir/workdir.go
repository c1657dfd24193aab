// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package workdir implements the Work-Dir Rendezvous: the sentinel-and-stamp
// directory the handler and an out-of-band controller use to synchronize
// with each other, per spec.md §4.2.
package workdir

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/FSEmbedded/fus-device-update-azure/pkg/interpreter"
)

// Well-known stamp and sentinel names, per spec.md §3.
const (
	StampUpdateVersion  = "update_version"
	StampUpdateType     = "update_type"
	StampUpdateSize     = "update_size"
	StampUpdateLocation = "update_location"
	StampErrorState     = "errorState"

	SentinelDownload = "downloadUpdate"
	SentinelInstall  = "installUpdate"
	SentinelApply    = "applyUpdate"
)

// DefaultMode is the permission mask applied to stamp files: world-readable,
// owner-writable, per spec.md §3.
const DefaultMode fs.FileMode = 0o644

// DefaultPollInterval is the upper bound on rendezvous latency the host
// tolerates, per spec.md §4.2/§5.
const DefaultPollInterval = 100 * time.Millisecond

// Dir is the Work-Dir Rendezvous. It is not safe for concurrent use by
// multiple goroutines against the same workflow, matching the single
// in-flight phase guarantee of spec.md §5.
type Dir struct {
	Root         string
	Mode         fs.FileMode
	PollInterval time.Duration
}

// New constructs a Dir rooted at root, applying the documented defaults for
// any zero-valued field.
func New(root string) *Dir {
	return &Dir{Root: root, Mode: DefaultMode, PollInterval: DefaultPollInterval}
}

func (d *Dir) mode() fs.FileMode {
	if d.Mode == 0 {
		return DefaultMode
	}
	return d.Mode
}

func (d *Dir) pollInterval() time.Duration {
	if d.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return d.PollInterval
}

// Reset removes the work directory recursively if it exists and recreates
// it, per invariant I3. A filesystem error here is logged but not returned:
// per spec.md §4.2, "any filesystem error during recreation is reported but
// non-fatal for the ensuing stamp writes — the next stamp write will
// surface the failure."
func (d *Dir) Reset() {
	if err := os.RemoveAll(d.Root); err != nil {
		log.Warn().Err(err).Str("dir", d.Root).Msg("failed to remove work directory")
	}
	if err := os.MkdirAll(d.Root, 0o755); err != nil {
		log.Warn().Err(err).Str("dir", d.Root).Msg("failed to recreate work directory")
	}
}

// WriteStamp atomically creates (or truncates) the named stamp with content
// and sets its mode, per invariant I4/I5 and P5: the stamp is written to a
// temp file in the same directory and renamed into place, so no partial
// write is ever visible to a reader racing the writer.
func (d *Dir) WriteStamp(name string, content []byte) error {
	target := filepath.Join(d.Root, name)
	tmp, err := os.CreateTemp(d.Root, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("workdir: create temp file for stamp %q: %w", name, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once the rename below succeeds

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("workdir: write stamp %q: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("workdir: close stamp %q: %w", name, err)
	}
	if err := os.Chmod(tmpName, d.mode()); err != nil {
		return fmt.Errorf("workdir: chmod stamp %q: %w", name, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("workdir: rename stamp %q into place: %w", name, err)
	}
	return nil
}

// WriteErrorState appends the final outcome's result and extended codes to
// the errorState stamp for post-mortem inspection by the controller, per
// spec.md §4.2. Unlike the other stamps this one is append-friendly content
// (result_code, extended_code pair rendered as text) rather than a single
// field, but it is still written atomically via WriteStamp.
func (d *Dir) WriteErrorState(outcome interpreter.Outcome) error {
	content := fmt.Sprintf("%d,%d,%d", outcome.Result, outcome.Extended, outcome.ChildExitCode)
	return d.WriteStamp(StampErrorState, []byte(content))
}

// RemoveSentinel deletes the named sentinel so the controller can re-arm
// it, used after a failed Install per spec.md §4.5.
func (d *Dir) RemoveSentinel(name string) error {
	err := os.Remove(filepath.Join(d.Root, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("workdir: remove sentinel %q: %w", name, err)
	}
	return nil
}

// ArmSentinel is the controller-side half of the rendezvous: it creates a
// zero-byte sentinel file. It lives here (rather than in a separate
// "controller" package) because the sentinel/stamp vocabulary is shared;
// the CLI's controller subcommands call this directly.
func (d *Dir) ArmSentinel(name string) error {
	f, err := os.OpenFile(filepath.Join(d.Root, name), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, d.mode())
	if err != nil {
		return fmt.Errorf("workdir: arm sentinel %q: %w", name, err)
	}
	return f.Close()
}

// ReadStamp reads a stamp's raw content, for the controller side of the
// rendezvous to consume version/size/location stamps.
func (d *Dir) ReadStamp(name string) ([]byte, error) {
	b, err := os.ReadFile(filepath.Join(d.Root, name))
	if err != nil {
		return nil, fmt.Errorf("workdir: read stamp %q: %w", name, err)
	}
	return b, nil
}

// WaitSentinel blocks until the named sentinel exists, or ctx is canceled.
// This is the cancellable redesign of the original's uninterruptible
// busy-wait (spec.md §4.2/§9): it watches the directory with fsnotify and
// also arms a poll-interval ticker as a defensive fallback, in case the
// sentinel is created before the watch is established, or the filesystem
// does not support inotify-style notification.
func (d *Dir) WaitSentinel(ctx context.Context, name string) error {
	target := filepath.Join(d.Root, name)
	if exists(target) {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return d.pollSentinel(ctx, target)
	}
	defer watcher.Close()

	if err := watcher.Add(d.Root); err != nil {
		return d.pollSentinel(ctx, target)
	}

	ticker := time.NewTicker(d.pollInterval())
	defer ticker.Stop()

	for {
		if exists(target) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return d.pollSentinel(ctx, target)
			}
			if ev.Name == target && exists(target) {
				return nil
			}
		case <-watcher.Errors:
			// fall through to poll tick
		case <-ticker.C:
		}
	}
}

func (d *Dir) pollSentinel(ctx context.Context, target string) error {
	ticker := time.NewTicker(d.pollInterval())
	defer ticker.Stop()
	for {
		if exists(target) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
