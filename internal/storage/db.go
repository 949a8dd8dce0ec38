package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cptspacemanspiff/battwhy/internal/cpuusage"
	"github.com/cptspacemanspiff/battwhy/internal/diagnosis"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	battery_status TEXT NOT NULL,
	capacity_pct INTEGER,
	power_mw INTEGER,
	overall_cpu REAL NOT NULL,
	severity TEXT NOT NULL,
	issue_count INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_ts ON runs(timestamp);

CREATE TABLE IF NOT EXISTS run_processes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id INTEGER NOT NULL,
	timestamp INTEGER NOT NULL,
	rank INTEGER NOT NULL,
	pid INTEGER NOT NULL,
	name TEXT NOT NULL,
	cpu_percent REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_run_processes_run ON run_processes(run_id);
CREATE INDEX IF NOT EXISTS idx_run_processes_ts ON run_processes(timestamp);
`

// Run is one recorded diagnosis run.
type Run struct {
	ID           int64
	Timestamp    int64
	DurationMS   int64
	Status       string
	CapacityPct  *int
	PowerWatts   *float64
	OverallCPU   float64
	Severity     diagnosis.Severity
	IssueCount   int
	TopProcesses []cpuusage.ProcessUsage
}

// DB wraps a SQLite database of past runs.
type DB struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at the given path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// InsertRun stores a run and its top processes in a single transaction and
// returns the new run ID.
func (d *DB) InsertRun(r Run) (int64, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}

	var powerMW sql.NullInt64
	if r.PowerWatts != nil {
		powerMW = sql.NullInt64{Int64: int64(*r.PowerWatts*1000 + 0.5), Valid: true}
	}
	var capacity sql.NullInt64
	if r.CapacityPct != nil {
		capacity = sql.NullInt64{Int64: int64(*r.CapacityPct), Valid: true}
	}

	res, err := tx.Exec(
		"INSERT INTO runs (timestamp, duration_ms, battery_status, capacity_pct, power_mw, overall_cpu, severity, issue_count) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		r.Timestamp, r.DurationMS, r.Status, capacity, powerMW, r.OverallCPU, r.Severity.String(), r.IssueCount,
	)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("run id: %w", err)
	}

	if len(r.TopProcesses) > 0 {
		stmt, err := tx.Prepare("INSERT INTO run_processes (run_id, timestamp, rank, pid, name, cpu_percent) VALUES (?, ?, ?, ?, ?, ?)")
		if err != nil {
			tx.Rollback()
			return 0, err
		}
		defer stmt.Close()
		for i, p := range r.TopProcesses {
			if _, err := stmt.Exec(id, r.Timestamp, i, p.PID, p.Name, p.Percent); err != nil {
				tx.Rollback()
				return 0, fmt.Errorf("insert process %d: %w", p.PID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// RecentRuns returns up to limit runs, newest first, with their processes.
func (d *DB) RecentRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := d.db.Query(
		"SELECT id, timestamp, duration_ms, battery_status, capacity_pct, power_mw, overall_cpu, severity, issue_count FROM runs ORDER BY timestamp DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			capacity sql.NullInt64
			powerMW  sql.NullInt64
			severity string
		)
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.DurationMS, &r.Status, &capacity, &powerMW, &r.OverallCPU, &severity, &r.IssueCount); err != nil {
			return nil, err
		}
		if capacity.Valid {
			c := int(capacity.Int64)
			r.CapacityPct = &c
		}
		if powerMW.Valid {
			w := float64(powerMW.Int64) / 1000
			r.PowerWatts = &w
		}
		if r.Severity, err = diagnosis.ParseSeverity(severity); err != nil {
			return nil, fmt.Errorf("run %d: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range runs {
		procs, err := d.runProcesses(runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].TopProcesses = procs
	}
	return runs, nil
}

func (d *DB) runProcesses(runID int64) ([]cpuusage.ProcessUsage, error) {
	rows, err := d.db.Query(
		"SELECT pid, name, cpu_percent FROM run_processes WHERE run_id = ? ORDER BY rank",
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var procs []cpuusage.ProcessUsage
	for rows.Next() {
		var p cpuusage.ProcessUsage
		if err := rows.Scan(&p.PID, &p.Name, &p.Percent); err != nil {
			return nil, err
		}
		procs = append(procs, p)
	}
	return procs, rows.Err()
}
