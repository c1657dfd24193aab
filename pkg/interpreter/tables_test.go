package interpreter

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/FSEmbedded/fus-device-update-azure/pkg/updater"
)

func TestInstall_SuccessAcrossAllKinds(t *testing.T) {
	cases := []struct {
		kind     updater.Kind
		exitCode int
	}{
		{updater.KindFirmware, int(updater.FirmwareUpdateSuccessful)},
		{updater.KindCommonFirmware, int(updater.FirmwareUpdateSuccessful)},
		{updater.KindApplication, int(updater.ApplicationUpdateSuccessful)},
		{updater.KindCommonApplication, int(updater.ApplicationUpdateSuccessful)},
		{updater.KindCommonBoth, int(updater.CombinedUpdateSuccessful)},
	}
	for _, c := range cases {
		got := Install(c.kind, c.exitCode)
		if got.Result != InstallSuccess {
			t.Errorf("Install(%v, %d) = %v, want InstallSuccess", c.kind, c.exitCode, got)
		}
	}
}

func TestInstall_FailureDependsOnlyOnKind(t *testing.T) {
	// P2: for every non-success exit code, the extended code depends only
	// on Update Kind, not on the exact exit code value.
	cases := []struct {
		kind     updater.Kind
		wantCode ExtendedCode
	}{
		{updater.KindFirmware, ErcInstallFailureFirmwareUpdate},
		{updater.KindCommonFirmware, ErcInstallFailureFirmwareUpdate},
		{updater.KindApplication, ErcInstallFailureApplicationUpdate},
		{updater.KindCommonApplication, ErcInstallFailureApplicationUpdate},
		{updater.KindCommonBoth, ErcInstallBadFileEntity},
		{updater.KindUnknown, ErcInstallBadFileEntity},
	}
	for _, c := range cases {
		for _, exitCode := range []int{999, 1000, 1001} {
			got := Install(c.kind, exitCode)
			if got.Result != Failure {
				t.Fatalf("Install(%v, %d) = %v, want Failure", c.kind, exitCode, got)
			}
			if got.Extended != c.wantCode {
				t.Errorf("Install(%v, %d).Extended = %v, want %v", c.kind, exitCode, got.Extended, c.wantCode)
			}
			if got.ChildExitCode != exitCode {
				t.Errorf("Install(%v, %d).ChildExitCode = %d, want %d", c.kind, exitCode, got.ChildExitCode, exitCode)
			}
		}
	}
}

func TestInstallCommitFailed_CommitSuccessKeepsBase(t *testing.T) {
	base := failureWithExit(ErcInstallFailureFirmwareUpdate, int(updater.FirmwareUpdateFailed))
	got := InstallCommitFailed(base, int(updater.CommitSuccessful))
	if got != base {
		t.Errorf("got %v, want base outcome %v unchanged", got, base)
	}
}

func TestInstallCommitFailed_CommitFailureReclassifies(t *testing.T) {
	base := failureWithExit(ErcInstallFailureApplicationUpdate, int(updater.ApplicationUpdateFailed))
	got := InstallCommitFailed(base, int(updater.CommitUpdateSystemError))
	if got.Result != Failure || got.Extended != ErcInstallFailureCommitUpdate {
		t.Errorf("got %v, want Failure(ErcInstallFailureCommitUpdate)", got)
	}
	if got.ChildExitCode != int(updater.CommitUpdateSystemError) {
		t.Errorf("got ChildExitCode %d, want %d", got.ChildExitCode, int(updater.CommitUpdateSystemError))
	}
}

func TestApply_RebootPendingWaitsAndRequestsReboot(t *testing.T) {
	got := Apply(updater.RebootUpdateRebootPending)
	want := ApplyDecision{
		Outcome:       Outcome{Result: ApplyRequiredImmediateReboot},
		WaitApply:     true,
		RequestReboot: true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Apply(RebootUpdateRebootPending) mismatch (-want +got):\n%s", diff)
	}
}

func TestApply_IncompleteFwUpdate_WaitsButNeverRequestsReboot(t *testing.T) {
	// Preserves the documented Open Question: IncompleteFwUpdate waits on
	// applyUpdate but never issues a reboot request (spec.md §9).
	got := Apply(updater.RebootIncompleteFwUpdate)
	if !got.WaitApply {
		t.Fatal("expected WaitApply = true")
	}
	if got.RequestReboot {
		t.Fatal("expected RequestReboot = false for IncompleteFwUpdate, preserving the documented source quirk")
	}
}

func TestApply_IncompleteUpdates_Wait(t *testing.T) {
	for _, rs := range []updater.RebootState{updater.RebootIncompleteAppUpdate, updater.RebootIncompleteAppFwUpdate} {
		got := Apply(rs)
		if !got.WaitApply {
			t.Errorf("Apply(%v).WaitApply = false, want true", rs)
		}
	}
}

func TestApply_NoUpdateRebootPending(t *testing.T) {
	got := Apply(updater.RebootNoUpdateRebootPending)
	if got.Outcome.Result != ApplySuccess {
		t.Errorf("got %v, want ApplySuccess", got.Outcome)
	}
}

func TestApply_OtherRebootStatesAskForCommitProbe(t *testing.T) {
	// Every RebootState not handled directly asks the Orchestrator to
	// read commit_update separately rather than reusing the reboot exit
	// code (RebootState and CommitState are dense over overlapping
	// ranges and must not share a channel).
	states := []updater.RebootState{
		updater.RebootFailedAppUpdate, updater.RebootFailedFwUpdate,
		updater.RebootFwUpdateRebootFailed, updater.RebootRollbackFwRebootPending,
		updater.RebootRollbackAppRebootPending, updater.RebootUnknown,
	}
	for _, rs := range states {
		got := Apply(rs)
		if !got.ProbeCommit {
			t.Errorf("Apply(%v).ProbeCommit = false, want true", rs)
		}
		if got.WaitApply || got.RequestReboot || got.Outcome != (Outcome{}) {
			t.Errorf("Apply(%v) = %+v, want only ProbeCommit set", rs, got)
		}
	}
}

func TestApplyAfterCommitProbe_UpdateNotNeeded(t *testing.T) {
	got := ApplyAfterCommitProbe(updater.CommitUpdateNotNeeded, true)
	if got.Result != ApplySuccess {
		t.Errorf("got %v, want ApplySuccess", got)
	}
}

func TestApplyAfterCommitProbe_OtherCommitStateIsFailure(t *testing.T) {
	got := ApplyAfterCommitProbe(updater.CommitUpdateSystemError, true)
	if got.Result != Failure || got.Extended != ErcApplyUnknownError {
		t.Errorf("got %v, want Failure(ErcApplyUnknownError)", got)
	}
}

func TestApplyAfterCommitProbe_UnparseableExitCodeIsFailure(t *testing.T) {
	got := ApplyAfterCommitProbe(0, false)
	if got.Result != Failure || got.Extended != ErcApplyUnknownError {
		t.Errorf("got %v, want Failure(ErcApplyUnknownError)", got)
	}
}

func TestCancelAfterIncompleteApp(t *testing.T) {
	cases := []struct {
		name        string
		rollbackRC  int
		rebootAfter updater.RebootState
		want        Outcome
	}{
		{
			name:        "rollback then firmware reboot pending",
			rollbackRC:  int(updater.RollbackUpdateRollbackSuccessful),
			rebootAfter: updater.RebootRollbackFwRebootPending,
			want:        Outcome{Result: CancelRequiredImmediateReboot},
		},
		{
			name:        "rollback then nothing pending",
			rollbackRC:  int(updater.RollbackUpdateRollbackSuccessful),
			rebootAfter: updater.RebootNoUpdateRebootPending,
			want:        Outcome{Result: CancelSuccess},
		},
		{
			name:        "rollback then unexpected state",
			rollbackRC:  int(updater.RollbackUpdateRollbackSuccessful),
			rebootAfter: updater.RebootIncompleteFwUpdate,
			want:        failure(ErcCancelNotAllowedStateError),
		},
		{
			name:        "rollback action itself failed",
			rollbackRC:  int(updater.RollbackUpdateFailed),
			rebootAfter: updater.RebootNoUpdateRebootPending,
			want:        failureWithExit(ErcCancelRollbackFirmwareError, int(updater.RollbackUpdateFailed)),
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := CancelAfterIncompleteApp(c.rollbackRC, c.rebootAfter)
			if got != c.want {
				t.Errorf("got %v, want %v", got, c.want)
			}
		})
	}
}

func TestCancelAfterRollbackPending(t *testing.T) {
	if got := CancelAfterRollbackPending(updater.RebootNoUpdateRebootPending); got.Result != CancelSuccess {
		t.Errorf("got %v, want CancelSuccess", got)
	}
	got := CancelAfterRollbackPending(updater.RebootIncompleteFwUpdate)
	if got.Result != CancelSuccess || got.Extended != ErcCancelNotAllowedStateError {
		t.Errorf("got %v, want CancelSuccess carrying ErcCancelNotAllowedStateError", got)
	}
}

func TestCancel_NoUpdateRebootPendingIsFailureCancelled(t *testing.T) {
	if got := Cancel(updater.RebootNoUpdateRebootPending); got != Cancelled {
		t.Errorf("got %v, want Cancelled", got)
	}
}

func TestCancel_OtherIsNotAllowed(t *testing.T) {
	got := Cancel(updater.RebootIncompleteFwUpdate)
	if got.Result != Failure || got.Extended != ErcCancelNotAllowedStateError {
		t.Errorf("got %v, want Failure(ErcCancelNotAllowedStateError)", got)
	}
}

// S3 — IsInstalled with matching version but incomplete firmware update.
func TestIsInstalledVersionEqual_IncompleteFw(t *testing.T) {
	got := IsInstalledVersionEqual(updater.RebootIncompleteFwUpdate)
	if got.Result != IsInstalledMissingCommit {
		t.Errorf("got %v, want IsInstalledMissingCommit", got)
	}
}

// P3
func TestIsInstalledVersionEqual_NoUpdateRebootPendingIsInstalled(t *testing.T) {
	got := IsInstalledVersionEqual(updater.RebootNoUpdateRebootPending)
	if got.Result != IsInstalledInstalled {
		t.Errorf("got %v, want IsInstalledInstalled", got)
	}
}

func TestIsInstalledVersionEqual_OtherIsUnknownState(t *testing.T) {
	got := IsInstalledVersionEqual(updater.RebootFailedAppUpdate)
	if got.Result != Failure || got.Extended != ErcIsInstalledUnknownState {
		t.Errorf("got %v, want Failure(ErcIsInstalledUnknownState)", got)
	}
}

func TestIsInstalledVersionDiffers_FailedAppCommitSucceeds(t *testing.T) {
	got := IsInstalledVersionDiffers(updater.RebootFailedAppUpdate, int(updater.CommitUpdateCommitSuccessful), true)
	if got.Result != IsInstalledInstalled {
		t.Errorf("got %v, want IsInstalledInstalled", got)
	}
}

func TestIsInstalledVersionDiffers_FailedAppCommitFails(t *testing.T) {
	got := IsInstalledVersionDiffers(updater.RebootFailedAppUpdate, int(updater.CommitUpdateSystemError), true)
	if got.Result != Failure || got.Extended != ErcIsInstalledCommitPreviousFailedUpdate {
		t.Errorf("got %v, want Failure(ErcIsInstalledCommitPreviousFailedUpdate)", got)
	}
}

func TestIsInstalledVersionDiffers_FwUpdateRebootFailedIsInstalled(t *testing.T) {
	got := IsInstalledVersionDiffers(updater.RebootFwUpdateRebootFailed, 0, false)
	if got.Result != IsInstalledInstalled {
		t.Errorf("got %v, want IsInstalledInstalled", got)
	}
}

func TestIsInstalledVersionDiffers_OtherIsNotInstalled(t *testing.T) {
	got := IsInstalledVersionDiffers(updater.RebootNoUpdateRebootPending, 0, false)
	if got.Result != IsInstalledNotInstalled {
		t.Errorf("got %v, want IsInstalledNotInstalled", got)
	}
}

// P1: exhaustive determinism smoke test across the full RebootState space
// for each phase table — calling twice with the same input must agree.
func TestDeterminism(t *testing.T) {
	states := []updater.RebootState{
		updater.RebootNoUpdateRebootPending, updater.RebootUpdateRebootPending,
		updater.RebootIncompleteFwUpdate, updater.RebootIncompleteAppUpdate,
		updater.RebootIncompleteAppFwUpdate, updater.RebootFailedAppUpdate,
		updater.RebootFailedFwUpdate, updater.RebootFwUpdateRebootFailed,
		updater.RebootRollbackFwRebootPending, updater.RebootRollbackAppRebootPending,
		updater.RebootUnknown,
	}
	for _, rs := range states {
		a1 := Apply(rs)
		a2 := Apply(rs)
		if a1 != a2 {
			t.Errorf("Apply(%v) not deterministic: %v vs %v", rs, a1, a2)
		}
		c1 := Cancel(rs)
		c2 := Cancel(rs)
		if c1 != c2 {
			t.Errorf("Cancel(%v) not deterministic: %v vs %v", rs, c1, c2)
		}
		e1 := IsInstalledVersionEqual(rs)
		e2 := IsInstalledVersionEqual(rs)
		if e1 != e2 {
			t.Errorf("IsInstalledVersionEqual(%v) not deterministic: %v vs %v", rs, e1, e2)
		}
	}
}
