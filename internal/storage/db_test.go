package storage

import (
	"path/filepath"
	"testing"

	"github.com/cptspacemanspiff/battwhy/internal/cpuusage"
	"github.com/cptspacemanspiff/battwhy/internal/diagnosis"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
	})

	return db
}

func TestRunRoundTrip(t *testing.T) {
	db := openTestDB(t)

	power := 18.25
	capacity := 61
	r := Run{
		Timestamp:   100,
		DurationMS:  2000,
		Status:      "discharging",
		CapacityPct: &capacity,
		PowerWatts:  &power,
		OverallCPU:  12.5,
		Severity:    diagnosis.SeverityMedium,
		IssueCount:  1,
		TopProcesses: []cpuusage.ProcessUsage{
			{PID: 42, Name: "firefox", Percent: 8.5},
			{PID: 7, Name: "Xwayland", Percent: 2.0},
		},
	}
	id, err := db.InsertRun(r)
	if err != nil {
		t.Fatalf("InsertRun() error = %v", err)
	}
	if id <= 0 {
		t.Fatalf("InsertRun() id = %d, want > 0", id)
	}

	runs, err := db.RecentRuns(5)
	if err != nil {
		t.Fatalf("RecentRuns() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("RecentRuns() = %#v, want one run", runs)
	}
	got := runs[0]
	if got.ID != id || got.Timestamp != 100 || got.DurationMS != 2000 || got.Status != "discharging" {
		t.Fatalf("RecentRuns()[0] = %#v", got)
	}
	if got.PowerWatts == nil || *got.PowerWatts != 18.25 {
		t.Fatalf("PowerWatts = %v, want 18.25", got.PowerWatts)
	}
	if got.CapacityPct == nil || *got.CapacityPct != 61 {
		t.Fatalf("CapacityPct = %v, want 61", got.CapacityPct)
	}
	if got.Severity != diagnosis.SeverityMedium || got.IssueCount != 1 {
		t.Fatalf("Severity = %v IssueCount = %d, want medium/1", got.Severity, got.IssueCount)
	}
	if len(got.TopProcesses) != 2 || got.TopProcesses[0].Name != "firefox" || got.TopProcesses[1].PID != 7 {
		t.Fatalf("TopProcesses = %#v", got.TopProcesses)
	}
}

func TestRunWithoutOptionalFields(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.InsertRun(Run{Timestamp: 5, Status: "unknown", Severity: diagnosis.SeverityLow}); err != nil {
		t.Fatalf("InsertRun() error = %v", err)
	}
	runs, err := db.RecentRuns(1)
	if err != nil {
		t.Fatalf("RecentRuns() error = %v", err)
	}
	if len(runs) != 1 || runs[0].PowerWatts != nil || runs[0].CapacityPct != nil || len(runs[0].TopProcesses) != 0 {
		t.Fatalf("RecentRuns() = %#v, want nil optional fields", runs)
	}
}

func TestRecentRunsOrderAndLimit(t *testing.T) {
	db := openTestDB(t)

	for _, ts := range []int64{30, 10, 20} {
		if _, err := db.InsertRun(Run{Timestamp: ts, Status: "discharging", Severity: diagnosis.SeverityLow}); err != nil {
			t.Fatalf("InsertRun(ts=%d) error = %v", ts, err)
		}
	}

	runs, err := db.RecentRuns(2)
	if err != nil {
		t.Fatalf("RecentRuns() error = %v", err)
	}
	if len(runs) != 2 || runs[0].Timestamp != 30 || runs[1].Timestamp != 20 {
		t.Fatalf("RecentRuns(2) = %#v, want ts 30 then 20", runs)
	}

	none, err := db.RecentRuns(0)
	if err != nil || len(none) != 0 {
		t.Fatalf("RecentRuns(0) = %#v, %v", none, err)
	}
}
