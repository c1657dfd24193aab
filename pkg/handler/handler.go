// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package handler is the Lifecycle Orchestrator: it composes the Workflow
// Adapter, Work-Dir Rendezvous, Updater Gateway, and State Interpreter into
// the five lifecycle operations plus Backup/Restore, per spec.md §4.5.
package handler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/FSEmbedded/fus-device-update-azure/pkg/audit"
	"github.com/FSEmbedded/fus-device-update-azure/pkg/interpreter"
	"github.com/FSEmbedded/fus-device-update-azure/pkg/updater"
	"github.com/FSEmbedded/fus-device-update-azure/pkg/workdir"
	"github.com/FSEmbedded/fus-device-update-azure/pkg/workflow"
)

// Downloader is the content-download subsystem the Orchestrator borrows,
// per spec.md §1's "out of scope" collaborators.
type Downloader interface {
	Download(ctx context.Context, p workflow.Provider, workFolder string) error
}

// Host is the subset of the host agent the Orchestrator may call back into:
// an immediate-reboot request, per spec.md §4.1 ("the only write-side call
// it may make is request_immediate_reboot").
type Host interface {
	RequestImmediateReboot(p workflow.Provider)
}

// Handler is the Lifecycle Orchestrator. It is not safe for concurrent use
// by multiple goroutines against the same workflow, matching spec.md §5's
// serial-phase-dispatch guarantee. Per spec.md §9 "Global state", it carries
// only the work-directory path/permission mask (via WorkDir) and a cached
// Update Kind per workflow ID as instance state; everything else is
// per-call.
type Handler struct {
	WorkDir    *workdir.Dir
	Gateway    *updater.Gateway
	Downloader Downloader
	Host       Host
	Audit      *audit.Log // optional; nil disables the audit trail

	cachedKind map[string]updater.Kind
}

// NewHandler constructs a Handler. audit may be nil to disable the
// supplementary audit trail.
func NewHandler(wd *workdir.Dir, gw *updater.Gateway, dl Downloader, host Host, al *audit.Log) *Handler {
	return &Handler{
		WorkDir:    wd,
		Gateway:    gw,
		Downloader: dl,
		Host:       host,
		Audit:      al,
		cachedKind: make(map[string]updater.Kind),
	}
}

func (h *Handler) recordOutcome(workflowID, phase string, kind updater.Kind, outcome interpreter.Outcome) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.RecordOutcome(workflowID, phase, kind, outcome); err != nil {
		log.Warn().Err(err).Str("workflow_id", workflowID).Str("phase", phase).Msg("failed to record audit outcome")
	}
}

// rememberKind caches kind for workflowID, both in memory and (if
// configured) in the audit database, per spec.md §9.
func (h *Handler) rememberKind(workflowID string, kind updater.Kind) {
	h.cachedKind[workflowID] = kind
	if h.Audit == nil {
		return
	}
	if err := h.Audit.SaveKind(workflowID, kind); err != nil {
		log.Warn().Err(err).Str("workflow_id", workflowID).Msg("failed to persist cached update kind")
	}
}

// resolveKind derives the Update Kind for workflowID from updateType,
// falling back to the cached value from a prior IsInstalled call on the
// same workflow when updateType is empty, per spec.md §9.
func (h *Handler) resolveKind(workflowID, updateType string) (updater.Kind, bool) {
	if updateType != "" {
		kind := updater.ParseKind(updateType)
		if kind != updater.KindUnknown {
			return kind, true
		}
		return updater.KindUnknown, false
	}
	if kind, ok := h.cachedKind[workflowID]; ok {
		return kind, true
	}
	if h.Audit != nil {
		if kind, ok, err := h.Audit.LoadKind(workflowID); err == nil && ok {
			return kind, true
		}
	}
	return updater.KindUnknown, false
}

func (h *Handler) writeErrorState(outcome interpreter.Outcome) {
	if err := h.WorkDir.WriteErrorState(outcome); err != nil {
		log.Warn().Err(err).Msg("failed to write errorState stamp")
	}
}

// artifactPath computes <work_folder>/<target_filename>, per invariant I5.
func artifactPath(p workflow.Provider, file workflow.FileEntity) string {
	return filepath.Join(p.WorkFolder(), file.TargetFilename)
}

// Download implements spec.md §4.5 Download.
func (h *Handler) Download(ctx context.Context, p workflow.Provider) interpreter.Outcome {
	token, err := workflow.ParseToken(p.UpdateTypeToken())
	if err != nil {
		log.Error().Err(err).Str("workflow_id", p.ID()).Msg("update-type token did not parse")
		outcome := interpreter.Outcome{Result: interpreter.Failure, Extended: interpreter.ErcDownloadUnknownUpdateVersion}
		h.recordOutcome(p.ID(), "Download", updater.KindUnknown, outcome)
		return outcome
	}
	if token.Major != 1 {
		outcome := interpreter.Outcome{Result: interpreter.Failure, Extended: interpreter.ErcDownloadWrongUpdateVersion}
		h.recordOutcome(p.ID(), "Download", updater.KindUnknown, outcome)
		return outcome
	}

	file, err := workflow.SingleFile(p)
	if err != nil {
		outcome := interpreter.Outcome{Result: interpreter.Failure, Extended: interpreter.ErcDownloadWrongFilecount}
		h.recordOutcome(p.ID(), "Download", updater.KindUnknown, outcome)
		return outcome
	}
	if file.TargetFilename == "" {
		outcome := interpreter.Outcome{Result: interpreter.Failure, Extended: interpreter.ErcDownloadBadFileEntity}
		h.recordOutcome(p.ID(), "Download", updater.KindUnknown, outcome)
		return outcome
	}

	kind := updater.ParseKind(p.HandlerUpdateType())

	h.WorkDir.Reset()

	if err := h.WorkDir.WriteStamp(workdir.StampUpdateVersion, []byte(p.InstalledCriteria())); err != nil {
		return h.downloadFailed(p, kind, interpreter.ErcDownloadCreateFailedUpdateVersion, err)
	}
	if err := h.WorkDir.WriteStamp(workdir.StampUpdateType, []byte(kind.String())); err != nil {
		return h.downloadFailed(p, kind, interpreter.ErcDownloadCreateFailedUpdateType, err)
	}
	if err := h.WorkDir.WriteStamp(workdir.StampUpdateSize, []byte(updater.FormatSize(p.UpdateSize()))); err != nil {
		return h.downloadFailed(p, kind, interpreter.ErcDownloadCreateFailedUpdateSize, err)
	}

	if err := h.WorkDir.WaitSentinel(ctx, workdir.SentinelDownload); err != nil {
		outcome := interpreter.Cancelled
		h.writeErrorState(outcome)
		h.recordOutcome(p.ID(), "Download", kind, outcome)
		return outcome
	}

	path := artifactPath(p, file)
	if err := h.WorkDir.WriteStamp(workdir.StampUpdateLocation, []byte(path)); err != nil {
		return h.downloadFailed(p, kind, interpreter.ErcDownloadCreateFailedUpdateLocation, err)
	}

	if err := h.Downloader.Download(ctx, p, p.WorkFolder()); err != nil {
		// The taxonomy's DOWNLOAD codes all name input-validation failures
		// (§7); a failure of the content-download subsystem itself has no
		// dedicated code, so it is reported as a plain Failure and the
		// subsystem's own error is preserved in the log line above.
		log.Error().Err(err).Str("workflow_id", p.ID()).Msg("content download failed")
		outcome := interpreter.Outcome{Result: interpreter.Failure}
		h.writeErrorState(outcome)
		h.recordOutcome(p.ID(), "Download", kind, outcome)
		return outcome
	}

	outcome := interpreter.Outcome{Result: interpreter.DownloadSuccess}
	h.recordOutcome(p.ID(), "Download", kind, outcome)
	return outcome
}

func (h *Handler) downloadFailed(p workflow.Provider, kind updater.Kind, code interpreter.ExtendedCode, err error) interpreter.Outcome {
	log.Error().Err(err).Str("workflow_id", p.ID()).Msg("failed to write download stamp")
	outcome := interpreter.Outcome{Result: interpreter.Failure, Extended: code}
	h.recordOutcome(p.ID(), "Download", kind, outcome)
	return outcome
}

// workFolderAccessible reports whether path can be opened as a directory,
// the Go equivalent of the original's opendir(workFolder) accessibility
// check at the start of Install.
func workFolderAccessible(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Install implements spec.md §4.5 Install.
func (h *Handler) Install(ctx context.Context, p workflow.Provider) interpreter.Outcome {
	kind, ok := h.resolveKind(p.ID(), p.HandlerUpdateType())
	if !ok {
		outcome := interpreter.Outcome{Result: interpreter.Failure, Extended: interpreter.ErcMissingUpdateTypeProperty}
		h.recordOutcome(p.ID(), "Install", updater.KindUnknown, outcome)
		return outcome
	}
	h.rememberKind(p.ID(), kind)

	if !workFolderAccessible(p.WorkFolder()) {
		log.Error().Str("workflow_id", p.ID()).Str("work_folder", p.WorkFolder()).Msg("work folder is not accessible")
		outcome := interpreter.Outcome{Result: interpreter.Failure, Extended: interpreter.ErcInstallCannotOpenWorkfolder}
		h.writeErrorState(outcome)
		h.recordOutcome(p.ID(), "Install", kind, outcome)
		return outcome
	}

	file, err := workflow.SingleFile(p)
	if err != nil {
		outcome := interpreter.Outcome{Result: interpreter.Failure, Extended: interpreter.ErcInstallBadFileEntity}
		h.writeErrorState(outcome)
		h.recordOutcome(p.ID(), "Install", kind, outcome)
		return outcome
	}
	path := artifactPath(p, file)

	targetOptions := ""
	switch kind {
	case updater.KindFirmware, updater.KindCommonFirmware:
		targetOptions = "fw"
	case updater.KindApplication, updater.KindCommonApplication:
		targetOptions = "app"
	}

	if err := h.WorkDir.WaitSentinel(ctx, workdir.SentinelInstall); err != nil {
		outcome := interpreter.Cancelled
		h.writeErrorState(outcome)
		h.recordOutcome(p.ID(), "Install", kind, outcome)
		return outcome
	}

	exitCode, _, err := h.Gateway.RunShell(ctx, updater.TokenUpdate, updater.ActionInstall, targetOptions, path)
	if err != nil {
		log.Error().Err(err).Str("workflow_id", p.ID()).Msg("failed to launch updater for install")
		outcome := interpreter.Outcome{Result: interpreter.Failure, Extended: interpreter.ErcInstallLaunchFailure}
		if remErr := h.WorkDir.RemoveSentinel(workdir.SentinelInstall); remErr != nil {
			log.Warn().Err(remErr).Msg("failed to remove installUpdate sentinel after failed install")
		}
		h.writeErrorState(outcome)
		h.recordOutcome(p.ID(), "Install", kind, outcome)
		return outcome
	}

	outcome := interpreter.Install(kind, exitCode)
	if !outcome.Success() {
		outcome = h.retryCommitOnInstallFailure(ctx, p, kind, outcome)
		if remErr := h.WorkDir.RemoveSentinel(workdir.SentinelInstall); remErr != nil {
			log.Warn().Err(remErr).Msg("failed to remove installUpdate sentinel after failed install")
		}
	}
	h.writeErrorState(outcome)
	h.recordOutcome(p.ID(), "Install", kind, outcome)
	return outcome
}

// retryCommitOnInstallFailure mirrors fsupdate_firmware_handler.cpp/
// fsupdate_application_handler.cpp: on a Firmware/Application install
// failure, a Commit is issued before reporting, and the failure is
// reclassified to ErcInstallFailureCommitUpdate unless that commit itself
// reports success.
func (h *Handler) retryCommitOnInstallFailure(ctx context.Context, p workflow.Provider, kind updater.Kind, base interpreter.Outcome) interpreter.Outcome {
	switch kind {
	case updater.KindFirmware, updater.KindCommonFirmware, updater.KindApplication, updater.KindCommonApplication:
	default:
		return base
	}

	commitExit, _, err := h.Gateway.RunShell(ctx, updater.TokenUpdate, updater.ActionApply, updater.TargetOptionCommitUpdate, "")
	if err != nil {
		log.Error().Err(err).Str("workflow_id", p.ID()).Msg("failed to commit failed install")
		return base
	}
	return interpreter.InstallCommitFailed(base, commitExit)
}

// Apply implements spec.md §4.5 Apply.
func (h *Handler) Apply(ctx context.Context, p workflow.Provider) interpreter.Outcome {
	kind, _ := h.resolveKind(p.ID(), p.HandlerUpdateType())

	exitCode, _, err := h.Gateway.RunShell(ctx, updater.TokenUpdate, updater.ActionExecute, updater.TargetOptionRebootState, "")
	if err != nil {
		log.Error().Err(err).Str("workflow_id", p.ID()).Msg("failed to read reboot state for apply")
		outcome := interpreter.Outcome{Result: interpreter.Failure, Extended: interpreter.ErcApplyUpdateSystemError}
		h.writeErrorState(outcome)
		h.recordOutcome(p.ID(), "Apply", kind, outcome)
		return outcome
	}
	reboot := updater.ParseRebootState(exitCode)
	decision := interpreter.Apply(reboot)

	if decision.ProbeCommit {
		commitExit, _, err := h.Gateway.RunShell(ctx, updater.TokenUpdate, updater.ActionApply, updater.TargetOptionCommitUpdate, "")
		if err != nil {
			log.Error().Err(err).Str("workflow_id", p.ID()).Msg("failed to read commit state for apply")
			outcome := interpreter.Outcome{Result: interpreter.Failure, Extended: interpreter.ErcApplyUpdateSystemError}
			h.writeErrorState(outcome)
			h.recordOutcome(p.ID(), "Apply", kind, outcome)
			return outcome
		}
		commit, ok := updater.ParseCommitState(commitExit)
		decision.Outcome = interpreter.ApplyAfterCommitProbe(commit, ok)
	}

	if decision.WaitApply {
		if waitErr := h.WorkDir.WaitSentinel(ctx, workdir.SentinelApply); waitErr != nil {
			outcome := interpreter.Cancelled
			h.writeErrorState(outcome)
			h.recordOutcome(p.ID(), "Apply", kind, outcome)
			return outcome
		}
	}
	if decision.RequestReboot {
		h.Host.RequestImmediateReboot(p)
	}

	outcome := decision.Outcome
	h.writeErrorState(outcome)
	h.recordOutcome(p.ID(), "Apply", kind, outcome)
	return outcome
}

// Cancel implements spec.md §4.5/§4.4 Cancel.
func (h *Handler) Cancel(ctx context.Context, p workflow.Provider) interpreter.Outcome {
	kind, _ := h.resolveKind(p.ID(), p.HandlerUpdateType())

	exitCode, _, err := h.Gateway.RunShell(ctx, updater.TokenUpdate, updater.ActionExecute, updater.TargetOptionRebootState, "")
	if err != nil {
		log.Error().Err(err).Str("workflow_id", p.ID()).Msg("failed to read reboot state for cancel")
		outcome := interpreter.Outcome{Result: interpreter.Failure, Extended: interpreter.ErcCancelNotAllowedStateError}
		h.writeErrorState(outcome)
		h.recordOutcome(p.ID(), "Cancel", kind, outcome)
		return outcome
	}
	reboot := updater.ParseRebootState(exitCode)

	var outcome interpreter.Outcome
	switch reboot {
	case updater.RebootIncompleteAppUpdate:
		outcome = h.cancelIncompleteApp(ctx, p)
	case updater.RebootRollbackFwRebootPending:
		outcome = h.cancelRollbackPending(ctx, p, kind)
	default:
		outcome = interpreter.Cancel(reboot)
	}

	if outcome.Result == interpreter.CancelRequiredImmediateReboot {
		h.Host.RequestImmediateReboot(p)
	}
	h.writeErrorState(outcome)
	h.recordOutcome(p.ID(), "Cancel", kind, outcome)
	return outcome
}

func (h *Handler) cancelIncompleteApp(ctx context.Context, p workflow.Provider) interpreter.Outcome {
	rollbackExit, _, err := h.Gateway.RunShell(ctx, updater.TokenUpdate, updater.ActionCancel, "", "")
	if err != nil {
		log.Error().Err(err).Str("workflow_id", p.ID()).Msg("failed to launch updater for rollback")
		return interpreter.Outcome{Result: interpreter.Failure, Extended: interpreter.ErcCancelRollbackFirmwareError}
	}

	rebootExit, _, err := h.Gateway.RunShell(ctx, updater.TokenUpdate, updater.ActionExecute, updater.TargetOptionRebootState, "")
	if err != nil {
		log.Error().Err(err).Str("workflow_id", p.ID()).Msg("failed to re-read reboot state after rollback")
		return interpreter.Outcome{Result: interpreter.Failure, Extended: interpreter.ErcCancelNotAllowedStateError}
	}
	return interpreter.CancelAfterIncompleteApp(rollbackExit, updater.ParseRebootState(rebootExit))
}

func (h *Handler) cancelRollbackPending(ctx context.Context, p workflow.Provider, kind updater.Kind) interpreter.Outcome {
	_, _, err := h.Gateway.RunShell(ctx, updater.TokenUpdate, updater.ActionApply, updater.TargetOptionCommitUpdate, "")
	if err != nil {
		log.Error().Err(err).Str("workflow_id", p.ID()).Msg("failed to commit during cancel rollback-pending branch")
		return interpreter.Outcome{Result: interpreter.Failure, Extended: interpreter.ErcCancelNotAllowedStateError}
	}

	rebootExit, _, err := h.Gateway.RunShell(ctx, updater.TokenUpdate, updater.ActionExecute, updater.TargetOptionRebootState, "")
	if err != nil {
		log.Error().Err(err).Str("workflow_id", p.ID()).Msg("failed to read reboot state after commit")
		return interpreter.Outcome{Result: interpreter.Failure, Extended: interpreter.ErcCancelNotAllowedStateError}
	}
	_ = kind
	return interpreter.CancelAfterRollbackPending(updater.ParseRebootState(rebootExit))
}

// IsInstalled implements spec.md §4.5/§4.4 IsInstalled.
func (h *Handler) IsInstalled(ctx context.Context, p workflow.Provider) interpreter.Outcome {
	kind, ok := h.resolveKind(p.ID(), p.HandlerUpdateType())
	if !ok {
		outcome := interpreter.Outcome{Result: interpreter.Failure, Extended: interpreter.ErcMissingUpdateTypeProperty}
		h.recordOutcome(p.ID(), "IsInstalled", updater.KindUnknown, outcome)
		return outcome
	}
	h.rememberKind(p.ID(), kind)

	rebootExit, _, err := h.Gateway.RunShell(ctx, updater.TokenUpdate, updater.ActionExecute, updater.TargetOptionRebootState, "")
	if err != nil {
		log.Error().Err(err).Str("workflow_id", p.ID()).Msg("failed to read reboot state for isinstalled")
		outcome := interpreter.Outcome{Result: interpreter.Failure, Extended: interpreter.ErcIsInstalledUnknownState}
		h.recordOutcome(p.ID(), "IsInstalled", kind, outcome)
		return outcome
	}
	reboot := updater.ParseRebootState(rebootExit)

	checkKind := kind
	if kind == updater.KindCommonBoth {
		checkKind = updater.KindCommonFirmware
	}
	outcome, err := h.checkVersion(ctx, checkKind, p.InstalledCriteria(), reboot)
	if err != nil {
		log.Error().Err(err).Str("workflow_id", p.ID()).Msg("failed to read version for isinstalled")
		outcome = interpreter.Outcome{Result: interpreter.Failure, Extended: interpreter.ErcIsInstalledUnknownState}
	} else if kind == updater.KindCommonBoth && outcome.Result == interpreter.IsInstalledInstalled {
		// Per spec.md §4.4: when the firmware check of a CommonBoth update
		// reports Installed, the application version is checked with the
		// same table before the final result is returned.
		outcome, err = h.checkVersion(ctx, updater.KindCommonApplication, p.InstalledCriteria(), reboot)
		if err != nil {
			log.Error().Err(err).Str("workflow_id", p.ID()).Msg("failed to read application version for isinstalled")
			outcome = interpreter.Outcome{Result: interpreter.Failure, Extended: interpreter.ErcIsInstalledUnknownState}
		}
	}

	h.recordOutcome(p.ID(), "IsInstalled", kind, outcome)
	return outcome
}

// checkVersion implements one pass of the IsInstalled version_equal/
// RebootState table of spec.md §4.4, including the Commit round trip for
// FailedAppUpdate/FailedFwUpdate.
func (h *Handler) checkVersion(ctx context.Context, checkKind updater.Kind, installedCriteria string, reboot updater.RebootState) (interpreter.Outcome, error) {
	version, err := h.Gateway.GetVersion(ctx, checkKind)
	if err != nil {
		return interpreter.Outcome{}, fmt.Errorf("handler: get version for %v: %w", checkKind, err)
	}

	if version == installedCriteria {
		return interpreter.IsInstalledVersionEqual(reboot), nil
	}

	switch reboot {
	case updater.RebootFailedAppUpdate, updater.RebootFailedFwUpdate:
		commitExit, _, err := h.Gateway.RunShell(ctx, updater.TokenUpdate, updater.ActionApply, updater.TargetOptionCommitUpdate, "")
		if err != nil {
			return interpreter.Outcome{}, fmt.Errorf("handler: commit after version mismatch: %w", err)
		}
		return interpreter.IsInstalledVersionDiffers(reboot, commitExit, true), nil
	default:
		return interpreter.IsInstalledVersionDiffers(reboot, 0, false), nil
	}
}

// Backup implements spec.md §4.5 Backup: a no-op.
func (h *Handler) Backup(_ context.Context, p workflow.Provider) interpreter.Outcome {
	outcome := interpreter.Outcome{Result: interpreter.BackupSuccess}
	h.recordOutcome(p.ID(), "Backup", updater.KindUnknown, outcome)
	return outcome
}

// Restore implements spec.md §4.5 Restore: a no-op, unsupported.
func (h *Handler) Restore(_ context.Context, p workflow.Provider) interpreter.Outcome {
	outcome := interpreter.Outcome{Result: interpreter.RestoreSuccessUnsupported}
	h.recordOutcome(p.ID(), "Restore", updater.KindUnknown, outcome)
	return outcome
}
