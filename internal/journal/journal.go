// Package journal keeps an agent-local record of every incident the
// coordinator raised, so reports survive connectivity loss and can be
// reviewed from the CLI.
package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Entry statuses.
const (
	StatusReported  = "reported"  // create submitted (or attempted)
	StatusDismissed = "dismissed" // driver confirmed false alarm
	StatusLogged    = "logged"    // dialog closed without confirmation
)

// Entry is one journaled incident snapshot.
type Entry struct {
	ID         int64
	Reference  string // agent-generated uuid
	RemoteID   string // server-assigned id, empty if create failed
	Latitude   float64
	Longitude  float64
	SpeedKmh   float64
	IsDrowsy   bool
	IsOversped bool
	Status     string
	CreatedAt  time.Time
}

// Journal wraps the SQLite store.
type Journal struct {
	conn *sql.DB
}

// Open creates (or opens) the journal database at path.
func Open(path string) (*Journal, error) {
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL", path)
	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("journal: failed to open database: %w", err)
	}

	// Single writer keeps SQLite happy
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	j := &Journal{conn: conn}
	if err := j.initialize(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal: failed to initialize: %w", err)
	}
	return j, nil
}

func (j *Journal) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS incidents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		reference TEXT UNIQUE NOT NULL,
		remote_id TEXT,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		speed_kmh REAL NOT NULL,
		is_drowsy INTEGER NOT NULL,
		is_oversped INTEGER NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_incidents_status ON incidents(status);
	CREATE INDEX IF NOT EXISTS idx_incidents_created_at ON incidents(created_at);
	`
	_, err := j.conn.Exec(schema)
	return err
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.conn.Close()
}

// Record inserts a new incident entry and returns its local id.
func (j *Journal) Record(e *Entry) error {
	query := `
		INSERT INTO incidents
		(reference, remote_id, latitude, longitude, speed_kmh, is_drowsy, is_oversped, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := j.conn.Exec(query,
		e.Reference, e.RemoteID, e.Latitude, e.Longitude, e.SpeedKmh,
		e.IsDrowsy, e.IsOversped, e.Status,
	)
	if err != nil {
		return err
	}
	id, _ := result.LastInsertId()
	e.ID = id
	return nil
}

// SetStatus transitions an entry identified by its reference.
func (j *Journal) SetStatus(reference, status string) error {
	_, err := j.conn.Exec(`UPDATE incidents SET status = ? WHERE reference = ?`, status, reference)
	return err
}

// SetRemoteID stores the server-assigned id once the create call succeeds.
func (j *Journal) SetRemoteID(reference, remoteID string) error {
	_, err := j.conn.Exec(`UPDATE incidents SET remote_id = ? WHERE reference = ?`, remoteID, reference)
	return err
}

// Get fetches one entry by reference.
func (j *Journal) Get(reference string) (*Entry, error) {
	row := j.conn.QueryRow(`
		SELECT id, reference, remote_id, latitude, longitude, speed_kmh,
		       is_drowsy, is_oversped, status, created_at
		FROM incidents WHERE reference = ?`, reference)
	return scanEntry(row)
}

// List returns the most recent entries, newest first.
func (j *Journal) List(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.conn.Query(`
		SELECT id, reference, remote_id, latitude, longitude, speed_kmh,
		       is_drowsy, is_oversped, status, created_at
		FROM incidents ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var remoteID sql.NullString
		if err := rows.Scan(&e.ID, &e.Reference, &remoteID, &e.Latitude, &e.Longitude,
			&e.SpeedKmh, &e.IsDrowsy, &e.IsOversped, &e.Status, &e.CreatedAt); err != nil {
			return nil, err
		}
		if remoteID.Valid {
			e.RemoteID = remoteID.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var e Entry
	var remoteID sql.NullString
	err := row.Scan(&e.ID, &e.Reference, &remoteID, &e.Latitude, &e.Longitude,
		&e.SpeedKmh, &e.IsDrowsy, &e.IsOversped, &e.Status, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if remoteID.Valid {
		e.RemoteID = remoteID.String
	}
	return &e, nil
}
