// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package interpreter

import "github.com/FSEmbedded/fus-device-update-azure/pkg/updater"

// Install implements the Install-phase mapping of spec.md §4.4: exit_code,
// interpreted against kind's disjoint state space, to an Outcome. This is
// property P1/P2: deterministic and dependent only on Update Kind for the
// failure branch.
func Install(kind updater.Kind, exitCode int) Outcome {
	if updater.IsInstallSuccess(kind, exitCode) {
		return Outcome{Result: InstallSuccess}
	}
	switch kind {
	case updater.KindFirmware, updater.KindCommonFirmware:
		return failureWithExit(ErcInstallFailureFirmwareUpdate, exitCode)
	case updater.KindApplication, updater.KindCommonApplication:
		return failureWithExit(ErcInstallFailureApplicationUpdate, exitCode)
	default: // KindCommonBoth or KindUnknown
		return failureWithExit(ErcInstallBadFileEntity, exitCode)
	}
}

// InstallCommitFailed refines a non-success Firmware/Application install
// outcome with the commit-retry behavior of the original per-type handlers
// (fsupdate_firmware_handler.cpp, fsupdate_application_handler.cpp): after
// an install failure they issue a Commit before reporting; base is kept only
// if that commit itself reports CommitSuccessful, otherwise the failure is
// reclassified as a commit failure.
func InstallCommitFailed(base Outcome, commitExitCode int) Outcome {
	if commit, ok := updater.ParseCommitState(commitExitCode); ok && commit == updater.CommitSuccessful {
		return base
	}
	return failureWithExit(ErcInstallFailureCommitUpdate, commitExitCode)
}

// ApplyWait reports whether the Apply-phase branch for reboot requires the
// Orchestrator to wait on the applyUpdate sentinel before returning the
// Outcome. Waiting is driven by the Orchestrator (package handler), since
// it is the only layer holding a context.Context and a workdir.Dir; this
// function tells it whether to, and whether a reboot request must follow.
// ProbeCommit tells the Orchestrator to issue a separate commit_update
// round trip and resolve the Outcome via ApplyAfterCommitProbe — reboot
// alone did not resolve the phase.
type ApplyDecision struct {
	Outcome       Outcome
	WaitApply     bool
	RequestReboot bool
	ProbeCommit   bool
}

// Apply implements the Apply-phase mapping of spec.md §4.4. RebootState and
// CommitState are reported by distinct updater CLI targets
// (update_reboot_state vs. commit_update) and must not be read from a
// single exit code: both enumerations are dense over 0..N, so any exit
// code the reboot read produces would also decode as a seemingly valid,
// but meaningless, CommitState. When reboot does not itself resolve the
// phase, ProbeCommit signals the Orchestrator to issue the separate
// commit_update read that spec.md's CommitState::UpdateNotNeeded row
// depends on.
func Apply(reboot updater.RebootState) ApplyDecision {
	switch reboot {
	case updater.RebootUpdateRebootPending:
		return ApplyDecision{
			Outcome:       Outcome{Result: ApplyRequiredImmediateReboot},
			WaitApply:     true,
			RequestReboot: true,
		}
	case updater.RebootIncompleteFwUpdate:
		// Open Question (preserved, not "fixed" — see DESIGN.md): this
		// branch waits for applyUpdate but, unlike IncompleteAppUpdate
		// and IncompleteAppFwUpdate, never requests a reboot; it returns
		// whatever Outcome was already in flight. Modeled here as
		// "proceed with no outcome of its own" by returning a zero
		// Outcome and leaving WaitApply set — the Orchestrator carries
		// forward its own default commit-flow Outcome in this case.
		return ApplyDecision{WaitApply: true}
	case updater.RebootIncompleteAppUpdate, updater.RebootIncompleteAppFwUpdate:
		return ApplyDecision{WaitApply: true}
	case updater.RebootNoUpdateRebootPending:
		return ApplyDecision{Outcome: Outcome{Result: ApplySuccess}}
	}

	return ApplyDecision{ProbeCommit: true}
}

// ApplyAfterCommitProbe resolves the Apply phase once reboot has fallen
// through to the commit_update round trip ApplyDecision.ProbeCommit asked
// for. ok false means the probe's exit code didn't decode as a CommitState
// at all, which is itself ERC_APPLY_UNKNOWN.
func ApplyAfterCommitProbe(commit updater.CommitState, ok bool) Outcome {
	if ok && commit == updater.CommitUpdateNotNeeded {
		return Outcome{Result: ApplySuccess}
	}
	return failure(ErcApplyUnknownError)
}

// CancelAfterIncompleteApp implements the sub-table spec.md §4.4 describes
// for the IncompleteAppUpdate branch of Cancel, after the rollback action
// has been issued and RebootState re-read.
func CancelAfterIncompleteApp(rollbackExitCode int, rebootAfterRollback updater.RebootState) Outcome {
	rollback, ok := updater.ParseRollbackState(rollbackExitCode)
	if !ok || rollback != updater.RollbackUpdateRollbackSuccessful {
		return failureWithExit(ErcCancelRollbackFirmwareError, rollbackExitCode)
	}
	switch rebootAfterRollback {
	case updater.RebootRollbackFwRebootPending:
		return Outcome{Result: CancelRequiredImmediateReboot}
	case updater.RebootNoUpdateRebootPending:
		return Outcome{Result: CancelSuccess}
	default:
		return failure(ErcCancelNotAllowedStateError)
	}
}

// CancelAfterRollbackPending implements the RollbackFwRebootPending branch
// of Cancel: a Commit (Apply action) is issued, and the resulting
// RebootState decides between a clean Cancel_Success and a Cancel_Success
// that still carries the not-allowed-state extended code, per spec.md §4.4
// (itself preserving the original's `result = { Cancel_Success,
// ERC_CANCEL_NOT_ALLOWED_STATE_ERROR }` combination — a success result code
// with a non-zero extended code).
func CancelAfterRollbackPending(rebootAfterCommit updater.RebootState) Outcome {
	if rebootAfterCommit == updater.RebootNoUpdateRebootPending {
		return Outcome{Result: CancelSuccess}
	}
	return Outcome{Result: CancelSuccess, Extended: ErcCancelNotAllowedStateError}
}

// Cancel implements the top-level Cancel-phase mapping of spec.md §4.4 for
// the two single-step branches (NoUpdateRebootPending and "other"); the
// IncompleteAppUpdate and RollbackFwRebootPending branches require
// additional child-process round trips and are implemented by
// CancelAfterIncompleteApp/CancelAfterRollbackPending above, driven by
// package handler.
func Cancel(reboot updater.RebootState) Outcome {
	switch reboot {
	case updater.RebootNoUpdateRebootPending:
		return Cancelled
	default:
		return failure(ErcCancelNotAllowedStateError)
	}
}

// IsInstalledVersionEqual implements the version_equal=true half of the
// IsInstalled-phase mapping of spec.md §4.4.
func IsInstalledVersionEqual(reboot updater.RebootState) Outcome {
	switch reboot {
	case updater.RebootIncompleteAppFwUpdate, updater.RebootIncompleteAppUpdate, updater.RebootIncompleteFwUpdate:
		return Outcome{Result: IsInstalledMissingCommit}
	case updater.RebootNoUpdateRebootPending:
		return Outcome{Result: IsInstalledInstalled}
	default:
		return failure(ErcIsInstalledUnknownState)
	}
}

// IsInstalledVersionDiffers implements the version_equal=false half of the
// IsInstalled-phase mapping of spec.md §4.4. commitExitCode/haveCommit are
// populated by the Orchestrator only when reboot is FailedAppUpdate or
// FailedFwUpdate, since only those branches issue a Commit round trip.
func IsInstalledVersionDiffers(reboot updater.RebootState, commitExitCode int, haveCommit bool) Outcome {
	switch reboot {
	case updater.RebootFailedAppUpdate, updater.RebootFailedFwUpdate:
		if !haveCommit {
			return failure(ErcIsInstalledCommitPreviousFailedUpdate)
		}
		commit, ok := updater.ParseCommitState(commitExitCode)
		if ok && commit == updater.CommitUpdateCommitSuccessful {
			return Outcome{Result: IsInstalledInstalled}
		}
		return failureWithExit(ErcIsInstalledCommitPreviousFailedUpdate, commitExitCode)
	case updater.RebootFwUpdateRebootFailed:
		return Outcome{Result: IsInstalledInstalled}
	default:
		return Outcome{Result: IsInstalledNotInstalled}
	}
}
