// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package interpreter implements the State Interpreter: a pure decision
// function mapping (lifecycle phase, update kind, updater state, version
// comparison) to an Outcome, per spec.md §4.4. It performs no I/O.
package interpreter

import "fmt"

// ResultCode is the outcome vocabulary the host agent recognizes, per
// spec.md §3.
type ResultCode int

const (
	Failure ResultCode = iota
	DownloadSuccess
	InstallSuccess
	InstallRequiredImmediateReboot
	ApplySuccess
	ApplyRequiredImmediateReboot
	CancelSuccess
	CancelRequiredImmediateReboot
	FailureCancelled
	IsInstalledInstalled
	IsInstalledNotInstalled
	IsInstalledMissingCommit
	BackupSuccess
	RestoreSuccessUnsupported
)

func (r ResultCode) String() string {
	switch r {
	case DownloadSuccess:
		return "Download_Success"
	case InstallSuccess:
		return "Install_Success"
	case InstallRequiredImmediateReboot:
		return "Install_RequiredImmediateReboot"
	case ApplySuccess:
		return "Apply_Success"
	case ApplyRequiredImmediateReboot:
		return "Apply_RequiredImmediateReboot"
	case CancelSuccess:
		return "Cancel_Success"
	case CancelRequiredImmediateReboot:
		return "Cancel_RequiredImmediateReboot"
	case FailureCancelled:
		return "Failure_Cancelled"
	case IsInstalledInstalled:
		return "IsInstalled_Installed"
	case IsInstalledNotInstalled:
		return "IsInstalled_NotInstalled"
	case IsInstalledMissingCommit:
		return "IsInstalled_MissingCommit"
	case BackupSuccess:
		return "Backup_Success"
	case RestoreSuccessUnsupported:
		return "Restore_Success_Unsupported"
	default:
		return "Failure"
	}
}

// ExtendedCode is the flat ERC_FSUPDATE_* taxonomy of spec.md §7. Zero means
// "no extended code" (success, or a failure whose only detail is the
// preserved child exit code carried separately).
type ExtendedCode int

const (
	ErcNone ExtendedCode = iota

	ErcDownloadWrongFilecount
	ErcDownloadBadFileEntity
	ErcDownloadCreateFailedUpdateVersion
	ErcDownloadCreateFailedUpdateType
	ErcDownloadCreateFailedUpdateSize
	ErcDownloadCreateFailedUpdateLocation
	ErcDownloadWrongUpdateVersion
	ErcDownloadUnknownUpdateVersion

	ErcInstallCannotOpenWorkfolder
	ErcInstallBadFileEntity
	ErcInstallFailureFirmwareUpdate
	ErcInstallFailureApplicationUpdate
	ErcInstallFailureCommitUpdate
	ErcInstallLaunchFailure

	ErcApplyUnknownError
	ErcApplyUpdateSystemError

	ErcCancelRollbackFirmwareError
	ErcCancelNotAllowedStateError

	ErcIsInstalledUnknownState
	ErcIsInstalledCommitPreviousFailedUpdate

	ErcMissingUpdateTypeProperty
)

func (e ExtendedCode) String() string {
	names := map[ExtendedCode]string{
		ErcNone:                                  "",
		ErcDownloadWrongFilecount:                "ERC_FSUPDATE_DOWNLOAD_WRONG_FILECOUNT",
		ErcDownloadBadFileEntity:                 "ERC_FSUPDATE_DOWNLOAD_BAD_FILE_ENTITY",
		ErcDownloadCreateFailedUpdateVersion:     "ERC_FSUPDATE_DOWNLOAD_CREATE_FAILED_UPDATE_VERSION",
		ErcDownloadCreateFailedUpdateType:        "ERC_FSUPDATE_DOWNLOAD_CREATE_FAILED_UPDATE_TYPE",
		ErcDownloadCreateFailedUpdateSize:        "ERC_FSUPDATE_DOWNLOAD_CREATE_FAILED_UPDATE_SIZE",
		ErcDownloadCreateFailedUpdateLocation:    "ERC_FSUPDATE_DOWNLOAD_CREATE_FAILED_UPDATE_LOCATION",
		ErcDownloadWrongUpdateVersion:            "ERC_FSUPDATE_DOWNLOAD_WRONG_UPDATE_VERSION",
		ErcDownloadUnknownUpdateVersion:          "ERC_FSUPDATE_DOWNLOAD_UNKNOWN_UPDATE_VERSION",
		ErcInstallCannotOpenWorkfolder:           "ERC_FSUPDATE_INSTALL_CANNOT_OPEN_WORKFOLDER",
		ErcInstallBadFileEntity:                  "ERC_FSUPDATE_INSTALL_BAD_FILE_ENTITY",
		ErcInstallFailureFirmwareUpdate:          "ERC_FSUPDATE_INSTALL_FIRMWARE_UPDATE",
		ErcInstallFailureApplicationUpdate:       "ERC_FSUPDATE_INSTALL_APPLICATION_UPDATE",
		ErcInstallFailureCommitUpdate:            "ERC_FSUPDATE_INSTALL_COMMIT_UPDATE",
		ErcInstallLaunchFailure:                  "ERC_FSUPDATE_INSTALL_LAUNCH_FAILURE",
		ErcApplyUnknownError:                     "ERC_FSUPDATE_APPLY_UNKNOWN_ERROR",
		ErcApplyUpdateSystemError:                "ERC_FSUPDATE_APPLY_UPDATE_SYSTEM_ERROR",
		ErcCancelRollbackFirmwareError:           "ERC_FSUPDATE_CANCEL_ROLLBACK_FIRMWARE_ERROR",
		ErcCancelNotAllowedStateError:            "ERC_FSUPDATE_CANCEL_NOT_ALLOWED_STATE_ERROR",
		ErcIsInstalledUnknownState:               "ERC_FSUPDATE_ISINSTALLED_UNKNOWN_STATE",
		ErcIsInstalledCommitPreviousFailedUpdate: "ERC_FSUPDATE_ISINSTALLED_COMMIT_PREVIOUS_FAILED_UPDATE",
		ErcMissingUpdateTypeProperty:             "ERC_FSUPDATE_MISSING_UPDATE_TYPE_PROPERTY",
	}
	if s, ok := names[e]; ok {
		return s
	}
	return fmt.Sprintf("ERC_FSUPDATE_UNKNOWN(%d)", int(e))
}

// Outcome is the (result_code, extended_code) pair returned to the host
// agent, per spec.md §3. A child-process exit code that has no more
// specific mapping is preserved in ChildExitCode for post-mortem analysis,
// per spec.md §7.
type Outcome struct {
	Result        ResultCode
	Extended      ExtendedCode
	ChildExitCode int
}

// Success reports whether this Outcome represents a recognized success
// variant. Note: per spec.md §3/§7, a Failure Outcome is business data
// returned to the host agent, not a Go error — callers branch on
// Outcome.Result, not on an `err != nil` check.
func (o Outcome) Success() bool {
	switch o.Result {
	case DownloadSuccess, InstallSuccess, InstallRequiredImmediateReboot,
		ApplySuccess, ApplyRequiredImmediateReboot,
		CancelSuccess, CancelRequiredImmediateReboot,
		IsInstalledInstalled, IsInstalledNotInstalled, IsInstalledMissingCommit,
		BackupSuccess, RestoreSuccessUnsupported:
		return true
	default:
		return false
	}
}

func (o Outcome) String() string {
	if o.Extended == ErcNone && o.ChildExitCode == 0 {
		return o.Result.String()
	}
	if o.Extended == ErcNone {
		return fmt.Sprintf("%s(child_exit=%d)", o.Result, o.ChildExitCode)
	}
	return fmt.Sprintf("%s(%s, child_exit=%d)", o.Result, o.Extended, o.ChildExitCode)
}

// Cancelled is the fixed Outcome every blocking wait's cancellation
// produces, per P6.
var Cancelled = Outcome{Result: FailureCancelled}

func failure(code ExtendedCode) Outcome {
	return Outcome{Result: Failure, Extended: code}
}

func failureWithExit(code ExtendedCode, exitCode int) Outcome {
	return Outcome{Result: Failure, Extended: code, ChildExitCode: exitCode}
}
