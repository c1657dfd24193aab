package audit

import (
	"path/filepath"
	"testing"

	"github.com/FSEmbedded/fus-device-update-azure/pkg/interpreter"
	"github.com/FSEmbedded/fus-device-update-azure/pkg/updater"
)

func checkErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func openTestLog(t *testing.T) *Log {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "audit.db")
	l, err := Open(dbPath)
	checkErr(t, err)
	return l
}

func TestOpenIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "audit.db")
	_, err := Open(dbPath)
	checkErr(t, err)
	_, err = Open(dbPath)
	checkErr(t, err)
}

func TestRecordOutcomeAndRecentRecords(t *testing.T) {
	l := openTestLog(t)

	outcome := interpreter.Outcome{Result: interpreter.InstallSuccess}
	checkErr(t, l.RecordOutcome("wf-1", "Install", updater.KindFirmware, outcome))

	failure := interpreter.Outcome{Result: interpreter.Failure, Extended: interpreter.ErcApplyUnknownError, ChildExitCode: 7}
	checkErr(t, l.RecordOutcome("wf-1", "Apply", updater.KindFirmware, failure))

	records, err := l.RecentRecords("wf-1", 10)
	checkErr(t, err)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	// Most recent first.
	if records[0].Phase != "Apply" {
		t.Fatalf("expected most recent record to be Apply, got %s", records[0].Phase)
	}
	if records[0].ExtendedCode != interpreter.ErcApplyUnknownError {
		t.Fatalf("expected extended code %v, got %v", interpreter.ErcApplyUnknownError, records[0].ExtendedCode)
	}
	if records[0].ChildExitCode != 7 {
		t.Fatalf("expected child exit code 7, got %d", records[0].ChildExitCode)
	}
	if records[0].ID == "" || records[0].CorrelationID == "" {
		t.Fatal("expected non-empty ID and CorrelationID")
	}
}

func TestRecentRecords_UnknownWorkflowIsEmpty(t *testing.T) {
	l := openTestLog(t)
	records, err := l.RecentRecords("nonexistent", 10)
	checkErr(t, err)
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}

func TestSaveAndLoadKind(t *testing.T) {
	l := openTestLog(t)

	_, ok, err := l.LoadKind("wf-2")
	checkErr(t, err)
	if ok {
		t.Fatal("expected no cached kind before SaveKind")
	}

	checkErr(t, l.SaveKind("wf-2", updater.KindCommonBoth))
	kind, ok, err := l.LoadKind("wf-2")
	checkErr(t, err)
	if !ok {
		t.Fatal("expected cached kind after SaveKind")
	}
	if kind != updater.KindCommonBoth {
		t.Fatalf("expected KindCommonBoth, got %v", kind)
	}

	// SaveKind overwrites the previous value for the same workflow.
	checkErr(t, l.SaveKind("wf-2", updater.KindApplication))
	kind, ok, err = l.LoadKind("wf-2")
	checkErr(t, err)
	if !ok || kind != updater.KindApplication {
		t.Fatalf("expected updated kind KindApplication, got %v (ok=%v)", kind, ok)
	}
}
