// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package updater

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Action is the shell-wrapper action verb vocabulary of spec.md §6.
type Action string

const (
	ActionInstall Action = "install"
	ActionApply   Action = "apply"
	ActionCancel  Action = "cancel"
	ActionExecute Action = "execute"
	ActionReboot  Action = "reboot"
)

// Update-type tokens the shell wrapper recognizes (spec.md §4.3/§6).
const (
	TokenFirmware   = "fus/firmware:1"
	TokenApplication = "fus/application:1"
	TokenUpdate      = "fus/update:1"
)

// Target options forwarded verbatim for Action Execute (spec.md §4.3/§6).
const (
	TargetOptionRebootState        = "update_reboot_state"
	TargetOptionFirmwareVersion    = "firmware_version"
	TargetOptionApplicationVersion = "application_version"
	TargetOptionCommitUpdate       = "commit_update"
	TargetOptionRollbackUpdate     = "rollback_update"
)

// ErrEmptyOutput is returned by GetVersion when the child process exits
// zero but writes nothing to stdout.
var ErrEmptyOutput = errors.New("updater: empty version output")

// Gateway builds argument vectors for, and launches, the setuid shell
// wrapper that fronts the privileged external updater binary. It performs
// no interpretation of exit codes beyond decoding them into an int — that
// is package interpreter's job.
type Gateway struct {
	// ShellPath is the path to the adu-shell-style wrapper binary.
	ShellPath string
}

// NewGateway constructs a Gateway that invokes the wrapper at shellPath.
func NewGateway(shellPath string) *Gateway {
	return &Gateway{ShellPath: shellPath}
}

func (g *Gateway) buildArgs(updateTypeToken string, action Action, targetOptions, targetData string) []string {
	args := []string{"--update-type", updateTypeToken, "--update-action", string(action)}
	if targetOptions != "" {
		args = append(args, "--target-options", targetOptions)
	}
	if targetData != "" {
		args = append(args, "--target-data", targetData)
	}
	return args
}

// RunShell launches the shell wrapper synchronously and returns its exit
// code together with fully-drained stdout (spec.md §5: "stdout is fully
// drained before interpreting the exit code"). A non-nil error here means
// the child process could not be launched or its exit status could not be
// determined at all — a fault distinct from a documented nonzero exit code,
// which is returned as ordinary data for the caller (package interpreter)
// to classify. The original C++ implementation conflates the two into a
// single int; keeping them distinct is a deliberate redesign, see
// DESIGN.md.
func (g *Gateway) RunShell(ctx context.Context, updateTypeToken string, action Action, targetOptions, targetData string) (exitCode int, stdout string, err error) {
	args := g.buildArgs(updateTypeToken, action, targetOptions, targetData)
	log.Debug().Str("shell", g.ShellPath).Strs("args", args).Msg("launching updater shell wrapper")

	cmd := exec.CommandContext(ctx, g.ShellPath, args...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	runErr := cmd.Run()

	stdout = outBuf.String()
	if runErr == nil {
		return 0, stdout, nil
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		log.Debug().Int("exit_code", exitErr.ExitCode()).Str("stderr", errBuf.String()).Msg("updater shell wrapper exited non-zero")
		return exitErr.ExitCode(), stdout, nil
	}

	return 0, stdout, fmt.Errorf("failed to launch %s: %w", g.ShellPath, runErr)
}

// GetVersion runs Action Execute with the firmware/application version
// target option and extracts the version string from stdout, per spec.md
// §4.3: the first whitespace-delimited token, stripped of NUL/CR/LF/TAB and
// surrounding spaces.
func (g *Gateway) GetVersion(ctx context.Context, kind Kind) (string, error) {
	opt := TargetOptionFirmwareVersion
	if kind == KindApplication || kind == KindCommonApplication {
		opt = TargetOptionApplicationVersion
	}

	exitCode, stdout, err := g.RunShell(ctx, TokenUpdate, ActionExecute, opt, "")
	if err != nil {
		return "", err
	}
	if exitCode != 0 {
		return "", fmt.Errorf("updater: get version failed with exit code %d", exitCode)
	}
	version := extractVersion(stdout)
	if version == "" {
		return "", ErrEmptyOutput
	}
	return version, nil
}

// extractVersion mirrors the original's stripping of "\x00\r\n\t" and
// surrounding spaces before taking the first whitespace-delimited token
// following the option name, per spec.md §4.3.
func extractVersion(output string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '\x00', '\r', '\n', '\t':
			return -1
		default:
			return r
		}
	}, output)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return ""
	}
	fields := strings.Fields(cleaned)
	return fields[len(fields)-1]
}

// ParseRebootState decodes an updater exit code as a RebootState. Any value
// outside the documented enum decodes to RebootUnknown rather than an
// arbitrary cast, so the State Interpreter's "any other" branches are
// reachable by construction.
func ParseRebootState(exitCode int) RebootState {
	if exitCode < int(RebootNoUpdateRebootPending) || exitCode > int(RebootRollbackAppRebootPending) {
		return RebootUnknown
	}
	return RebootState(exitCode)
}

// ParseCommitState decodes an updater exit code as a CommitState.
func ParseCommitState(exitCode int) (CommitState, bool) {
	if exitCode < int(CommitSuccessful) || exitCode > int(CommitUpdateCommitSuccessful) {
		return 0, false
	}
	return CommitState(exitCode), true
}

// ParseRollbackState decodes an updater exit code as a RollbackState.
func ParseRollbackState(exitCode int) (RollbackState, bool) {
	if exitCode < int(RollbackUpdateFailed) || exitCode > int(RollbackUpdateRollbackSuccessful) {
		return 0, false
	}
	return RollbackState(exitCode), true
}

// FormatSize renders an update size for the update_size stamp: a decimal
// integer with no framing, per spec.md §6.
func FormatSize(size int64) string {
	return strconv.FormatInt(size, 10)
}
