package main

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ScanStore provides SQLite storage for scan history
type ScanStore struct {
	db *sql.DB
}

// Scan trigger outcomes recorded in the history store.
const (
	outcomeTriggered = "triggered"
	outcomeTimeout   = "timeout"
	outcomeError     = "error"
	outcomeDryRun    = "dry-run"
)

// ScanEventRecord represents one scan trigger in the history store
type ScanEventRecord struct {
	ID      int
	Folder  string
	FiredAt time.Time
	DryRun  bool
	Outcome string
	Detail  string
}

// StatusCheckRecord represents one folder status observation
type StatusCheckRecord struct {
	ID          int
	Folder      string
	State       string
	NeedBytes   int64
	InSyncBytes int64
	CheckedAt   time.Time
}

// FolderSummary aggregates history for one folder
type FolderSummary struct {
	Folder      string
	ScanCount   int
	LastScan    time.Time
	LastOutcome string
	LastState   string
	NeedBytes   int64
	LastCheck   time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS scan_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  folder TEXT NOT NULL,
  fired_at DATETIME NOT NULL,
  dry_run BOOLEAN NOT NULL DEFAULT 0,
  outcome TEXT NOT NULL,
  detail TEXT
);

CREATE INDEX IF NOT EXISTS idx_scan_events_folder_fired
  ON scan_events(folder, fired_at);

CREATE TABLE IF NOT EXISTS status_checks (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  folder TEXT NOT NULL,
  state TEXT NOT NULL,
  need_bytes INTEGER NOT NULL DEFAULT 0,
  in_sync_bytes INTEGER NOT NULL DEFAULT 0,
  checked_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_status_checks_folder_checked
  ON status_checks(folder, checked_at);
`

// openScanStore opens (creating if needed) the history database
func openScanStore(dbPath string) (*ScanStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &ScanStore{db: db}, nil
}

// Close closes the database connection
func (s *ScanStore) Close() error {
	return s.db.Close()
}

// InsertScanEvent records a scan trigger
func (s *ScanStore) InsertScanEvent(e *ScanEventRecord) error {
	query := `
		INSERT INTO scan_events (folder, fired_at, dry_run, outcome, detail)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query, e.Folder, e.FiredAt, e.DryRun, e.Outcome, e.Detail)
	return err
}

// InsertStatusCheck records a folder status observation
func (s *ScanStore) InsertStatusCheck(c *StatusCheckRecord) error {
	query := `
		INSERT INTO status_checks (folder, state, need_bytes, in_sync_bytes, checked_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query, c.Folder, c.State, c.NeedBytes, c.InSyncBytes, c.CheckedAt)
	return err
}

// Summary returns per-folder history aggregates, ordered by folder
func (s *ScanStore) Summary() ([]FolderSummary, error) {
	query := `
		SELECT
			e.folder,
			COUNT(e.id) AS scan_count,
			MAX(e.fired_at) AS last_scan,
			(SELECT outcome FROM scan_events
			   WHERE folder = e.folder ORDER BY fired_at DESC, id DESC LIMIT 1)
		FROM scan_events e
		GROUP BY e.folder
		ORDER BY e.folder
	`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []FolderSummary
	for rows.Next() {
		var fs FolderSummary
		var lastScan sql.NullTime
		var lastOutcome sql.NullString

		if err := rows.Scan(&fs.Folder, &fs.ScanCount, &lastScan, &lastOutcome); err != nil {
			return nil, err
		}
		if lastScan.Valid {
			fs.LastScan = lastScan.Time
		}
		if lastOutcome.Valid {
			fs.LastOutcome = lastOutcome.String
		}

		summaries = append(summaries, fs)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Attach the latest status observation per folder, if any.
	for i := range summaries {
		check, err := s.latestStatusCheck(summaries[i].Folder)
		if err != nil {
			if err == sql.ErrNoRows {
				continue
			}
			return nil, err
		}
		summaries[i].LastState = check.State
		summaries[i].NeedBytes = check.NeedBytes
		summaries[i].LastCheck = check.CheckedAt
	}

	return summaries, nil
}

func (s *ScanStore) latestStatusCheck(folder string) (*StatusCheckRecord, error) {
	query := `
		SELECT id, folder, state, need_bytes, in_sync_bytes, checked_at
		FROM status_checks
		WHERE folder = ?
		ORDER BY checked_at DESC, id DESC
		LIMIT 1
	`
	var c StatusCheckRecord
	err := s.db.QueryRow(query, folder).Scan(
		&c.ID, &c.Folder, &c.State, &c.NeedBytes, &c.InSyncBytes, &c.CheckedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// RecentEvents returns the most recent scan triggers, newest first
func (s *ScanStore) RecentEvents(limit int) ([]ScanEventRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, folder, fired_at, dry_run, outcome, COALESCE(detail, '')
		FROM scan_events
		ORDER BY fired_at DESC, id DESC
		LIMIT ?
	`
	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []ScanEventRecord
	for rows.Next() {
		var e ScanEventRecord
		if err := rows.Scan(&e.ID, &e.Folder, &e.FiredAt, &e.DryRun, &e.Outcome, &e.Detail); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	return events, rows.Err()
}
