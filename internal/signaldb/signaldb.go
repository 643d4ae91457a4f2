// Package signaldb persists detected signals to a local SQLite database so
// classifications and sighting history survive process restarts.
package signaldb

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS signals (
	id TEXT PRIMARY KEY,
	center_freq REAL NOT NULL,
	peak_freq REAL NOT NULL,
	bandwidth REAL NOT NULL,
	peak_power REAL NOT NULL,
	avg_power REAL NOT NULL,
	classification TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	first_seen INTEGER NOT NULL,
	last_seen INTEGER NOT NULL,
	hit_count INTEGER NOT NULL DEFAULT 1,
	active INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_signals_active ON signals(active);
CREATE INDEX IF NOT EXISTS idx_signals_center_freq ON signals(center_freq);
`

// Record is a persisted signal row. When passed to UpsertSignal, HitCount
// is a delta to apply (the row's stored hit_count increases by this much,
// or starts at it for a newly inserted row); when returned by GetSignal or
// GetSignals, HitCount is the row's absolute stored count.
type Record struct {
	ID             string
	CenterFreq     float64
	PeakFreq       float64
	Bandwidth      float64
	PeakPower      float64
	AvgPower       float64
	Classification string
	Notes          string
	FirstSeen      time.Time
	LastSeen       time.Time
	HitCount       int
	Active         bool
}

// Stats summarizes the store's contents.
type Stats struct {
	TotalSignals  int
	ActiveSignals int
	Classified    int
}

// Store wraps a SQLite-backed signal table.
type Store struct {
	db               *sql.DB
	matchBandwidthHz float64
}

// Open opens (creating if necessary) the SQLite database at path, applies
// the schema, and sets WAL journaling with NORMAL synchronous durability —
// favoring write throughput for a high-frequency detector feed over the
// stricter FULL guarantee. matchBandwidthHz is the frequency window
// UpsertSignal and MarkLost use to treat two sightings as the same signal.
func Open(path string, matchBandwidthHz float64) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("signaldb: opening database: %w", err)
	}
	db.SetMaxOpenConns(1) // mattn/go-sqlite3 serializes writers anyway

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("signaldb: applying %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("signaldb: applying schema: %w", err)
	}
	return &Store{db: db, matchBandwidthHz: matchBandwidthHz}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertSignal matches r against the active row (if any) whose center_freq
// falls within matchBandwidthHz of r.CenterFreq, closest first. A match
// updates that row in place — geometry overwritten, peak_power taking the
// max of the stored and new values, hit_count incremented by r.HitCount —
// so a signal that drifts off track and reacquires under a new caller ID
// still accumulates onto the same history row. Classification and Notes
// are left untouched on update. No match inserts r as a new row with
// hit_count set to r.HitCount.
func (s *Store) UpsertSignal(r Record) error {
	var existingID string
	err := s.db.QueryRow(`
		SELECT id FROM signals
		WHERE active = 1 AND ABS(center_freq - ?) < ?
		ORDER BY ABS(center_freq - ?) ASC
		LIMIT 1`,
		r.CenterFreq, s.matchBandwidthHz, r.CenterFreq,
	).Scan(&existingID)

	switch {
	case err == sql.ErrNoRows:
		_, err = s.db.Exec(`
			INSERT INTO signals (id, center_freq, peak_freq, bandwidth, peak_power, avg_power,
				classification, notes, first_seen, last_seen, hit_count, active)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
			r.ID, r.CenterFreq, r.PeakFreq, r.Bandwidth, r.PeakPower, r.AvgPower,
			r.Classification, r.Notes, r.FirstSeen.Unix(), r.LastSeen.Unix(), r.HitCount,
		)
		if err != nil {
			return fmt.Errorf("signaldb: inserting signal %s: %w", r.ID, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("signaldb: matching signal %s: %w", r.ID, err)
	}

	_, err = s.db.Exec(`
		UPDATE signals SET
			center_freq = ?,
			peak_freq = ?,
			bandwidth = ?,
			peak_power = MAX(peak_power, ?),
			avg_power = ?,
			last_seen = ?,
			hit_count = hit_count + ?,
			active = 1
		WHERE id = ?`,
		r.CenterFreq, r.PeakFreq, r.Bandwidth, r.PeakPower, r.AvgPower,
		r.LastSeen.Unix(), r.HitCount, existingID,
	)
	if err != nil {
		return fmt.Errorf("signaldb: upserting signal %s: %w", r.ID, err)
	}
	return nil
}

// MarkLost flags every active signal within matchBandwidthHz of centerFreq
// as no longer actively tracked, retaining its row for history.
func (s *Store) MarkLost(centerFreq float64, lastSeen time.Time) error {
	_, err := s.db.Exec(`
		UPDATE signals SET active = 0, last_seen = ?
		WHERE active = 1 AND ABS(center_freq - ?) < ?`,
		lastSeen.Unix(), centerFreq, s.matchBandwidthHz,
	)
	if err != nil {
		return fmt.Errorf("signaldb: marking signal near %.0fHz lost: %w", centerFreq, err)
	}
	return nil
}

// ClassifySignal sets the classification and notes for a signal.
func (s *Store) ClassifySignal(id, classification, notes string) error {
	res, err := s.db.Exec(`UPDATE signals SET classification = ?, notes = ? WHERE id = ?`, classification, notes, id)
	if err != nil {
		return fmt.Errorf("signaldb: classifying signal %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("signaldb: checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("signaldb: signal %s not found", id)
	}
	return nil
}

// DeleteSignal removes a signal row entirely.
func (s *Store) DeleteSignal(id string) error {
	_, err := s.db.Exec(`DELETE FROM signals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("signaldb: deleting signal %s: %w", id, err)
	}
	return nil
}

// GetSignal fetches a single signal by ID.
func (s *Store) GetSignal(id string) (Record, error) {
	row := s.db.QueryRow(`
		SELECT id, center_freq, peak_freq, bandwidth, peak_power, avg_power,
			classification, notes, first_seen, last_seen, hit_count, active
		FROM signals WHERE id = ?`, id)
	return scanRecord(row)
}

// GetSignals returns signals, optionally filtered to only those currently
// active, ordered by most recently seen first.
func (s *Store) GetSignals(activeOnly bool) ([]Record, error) {
	query := `SELECT id, center_freq, peak_freq, bandwidth, peak_power, avg_power,
		classification, notes, first_seen, last_seen, hit_count, active FROM signals`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY last_seen DESC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("signaldb: querying signals: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetStats summarizes the store.
func (s *Store) GetStats() (Stats, error) {
	var st Stats
	row := s.db.QueryRow(`SELECT COUNT(*), SUM(active), SUM(CASE WHEN classification != '' THEN 1 ELSE 0 END) FROM signals`)
	var active, classified sql.NullInt64
	if err := row.Scan(&st.TotalSignals, &active, &classified); err != nil {
		return st, fmt.Errorf("signaldb: computing stats: %w", err)
	}
	st.ActiveSignals = int(active.Int64)
	st.Classified = int(classified.Int64)
	return st, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var r Record
	var firstSeen, lastSeen int64
	var active int
	err := row.Scan(&r.ID, &r.CenterFreq, &r.PeakFreq, &r.Bandwidth, &r.PeakPower, &r.AvgPower,
		&r.Classification, &r.Notes, &firstSeen, &lastSeen, &r.HitCount, &active)
	if err != nil {
		return r, fmt.Errorf("signaldb: scanning row: %w", err)
	}
	r.FirstSeen = time.Unix(firstSeen, 0).UTC()
	r.LastSeen = time.Unix(lastSeen, 0).UTC()
	r.Active = active != 0
	return r, nil
}
