// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package updater

// Kind is the internal Update Kind enum of spec.md §3.
type Kind int

const (
	KindUnknown Kind = iota
	KindFirmware
	KindApplication
	KindCommonFirmware
	KindCommonApplication
	KindCommonBoth
)

func (k Kind) String() string {
	switch k {
	case KindFirmware:
		return "firmware"
	case KindApplication:
		return "application"
	case KindCommonFirmware:
		return "common-firmware"
	case KindCommonApplication:
		return "common-application"
	case KindCommonBoth:
		return "common-both"
	default:
		return "unknown"
	}
}

// ParseKind maps the handler_properties.updateType string (spec.md §3/§6)
// to a Kind. An unrecognized or empty value yields KindUnknown; callers
// treat that as the fatal-input-error case documented by invariant I2.
func ParseKind(updateType string) Kind {
	switch updateType {
	case "firmware":
		return KindFirmware
	case "application":
		return KindApplication
	case "common-firmware":
		return KindCommonFirmware
	case "common-application":
		return KindCommonApplication
	case "common-both":
		return KindCommonBoth
	default:
		return KindUnknown
	}
}

// The following exit-code enumerations are disjoint per spec.md §3: the
// updater process reports exactly one of these depending on which command
// was run. Their numeric values are not supplied by the retrieval pack (the
// updater's own fs_updater_error.h header is not part of it) and are
// assigned densely in declaration order; see DESIGN.md. What is normative
// is the mapping from symbol to Outcome in package interpreter, not the
// bit pattern.

// ApplicationState is reported by "--update_file --update_type app".
type ApplicationState int

const (
	ApplicationUpdateSuccessful ApplicationState = iota
	ApplicationRollbackSuccessful
	ApplicationUpdateFailed
	ApplicationInternalError
)

// FirmwareState is reported by "--update_file --update_type fw".
type FirmwareState int

const (
	FirmwareUpdateSuccessful FirmwareState = iota
	FirmwareRollbackSuccessful
	FirmwareUpdateFailed
	FirmwareInternalError
)

// CombinedState is reported by "--update_file" with no --update_type, used
// for CommonBoth installs that flash both slots in one invocation.
type CombinedState int

const (
	CombinedUpdateSuccessful CombinedState = iota
	CombinedInternalError
	CombinedUpdateFailed
)

// CommitState is reported by "--commit_update".
type CommitState int

const (
	CommitSuccessful CommitState = iota
	CommitUpdateNotNeeded
	CommitUpdateSystemError
	CommitUpdateCommitSuccessful
)

// RollbackState is reported by "--rollback_update".
type RollbackState int

const (
	RollbackUpdateFailed RollbackState = iota
	RollbackUpdateRollbackSuccessful
)

// RebootState is the cross-cutting, persistent reboot-state enum reported
// by "--update_reboot_state". It is the primary driver of the state
// machine summarized in spec.md §4.5.
type RebootState int

const (
	RebootNoUpdateRebootPending RebootState = iota
	RebootUpdateRebootPending
	RebootIncompleteFwUpdate
	RebootIncompleteAppUpdate
	RebootIncompleteAppFwUpdate
	RebootFailedAppUpdate
	RebootFailedFwUpdate
	RebootFwUpdateRebootFailed
	RebootRollbackFwRebootPending
	RebootRollbackAppRebootPending
	RebootUnknown
)

// IsInstallSuccess reports whether exitCode, interpreted against kind's
// disjoint state space, denotes a successful install. See spec.md §4.4.
func IsInstallSuccess(kind Kind, exitCode int) bool {
	switch kind {
	case KindFirmware, KindCommonFirmware:
		return FirmwareState(exitCode) == FirmwareUpdateSuccessful
	case KindApplication, KindCommonApplication:
		return ApplicationState(exitCode) == ApplicationUpdateSuccessful
	case KindCommonBoth:
		return CombinedState(exitCode) == CombinedUpdateSuccessful
	default:
		// Unknown kind: the original handler still tests all three state
		// spaces since it cannot know which the updater used; preserved
		// here for parity (see the unified Install-phase mapping, which
		// only checks UpdateSuccessful across all three enumerations
		// regardless of kind before falling back to the by-kind failure
		// branches).
		return FirmwareState(exitCode) == FirmwareUpdateSuccessful ||
			ApplicationState(exitCode) == ApplicationUpdateSuccessful ||
			CombinedState(exitCode) == CombinedUpdateSuccessful
	}
}
