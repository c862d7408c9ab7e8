package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Alignment is a persisted per-pair alignment result. LagTime and Slope
// are nil when the pipeline could not produce them (degenerate traces or
// a stage that does not fit a drift model).
type Alignment struct {
	AlignmentID string   `json:"alignment_id"`
	RunID       string   `json:"run_id"`
	Reference   string   `json:"reference"`
	Target      string   `json:"target"`
	LagTime     *float64 `json:"lag_time,omitempty"`
	Slope       *float64 `json:"slope,omitempty"`
	SampleRate  float64  `json:"sample_rate"`
	Good        bool     `json:"good"`
	RecordPath  string   `json:"record_path,omitempty"`
	CreatedAt   int64    `json:"created_at"`
}

// AlignmentStore provides persistence for alignment results.
type AlignmentStore struct {
	db *sql.DB
}

// NewAlignmentStore creates a new AlignmentStore.
func NewAlignmentStore(db *sql.DB) *AlignmentStore {
	return &AlignmentStore{db: db}
}

// Insert persists a new alignment. If AlignmentID is empty, a UUID is
// generated; if CreatedAt is zero, the current time is used.
func (s *AlignmentStore) Insert(a *Alignment) error {
	if a.AlignmentID == "" {
		a.AlignmentID = uuid.New().String()
	}
	if a.CreatedAt == 0 {
		a.CreatedAt = time.Now().UnixNano()
	}

	err := retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO alignments (
				alignment_id, run_id, reference, target,
				lag_time, slope, sample_rate, good, record_path, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.AlignmentID, a.RunID, a.Reference, a.Target,
			a.LagTime, a.Slope, a.SampleRate, a.Good, nullStr(a.RecordPath), a.CreatedAt,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("inserting alignment %s: %w", a.AlignmentID, err)
	}
	return nil
}

// ListByRun returns all alignments recorded under a run, ordered by
// creation time ascending so they read in pipeline order.
func (s *AlignmentStore) ListByRun(runID string) ([]*Alignment, error) {
	rows, err := s.db.Query(`
		SELECT alignment_id, run_id, reference, target,
		       lag_time, slope, sample_rate, good, record_path, created_at
		FROM alignments
		WHERE run_id = ?
		ORDER BY created_at ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query alignments: %w", err)
	}
	defer rows.Close()
	return scanAlignments(rows)
}

// ListRecent returns the most recent alignments across all runs.
func (s *AlignmentStore) ListRecent(limit int) ([]*Alignment, error) {
	rows, err := s.db.Query(`
		SELECT alignment_id, run_id, reference, target,
		       lag_time, slope, sample_rate, good, record_path, created_at
		FROM alignments
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent alignments: %w", err)
	}
	defer rows.Close()
	return scanAlignments(rows)
}

// Get returns a single alignment by ID.
func (s *AlignmentStore) Get(alignmentID string) (*Alignment, error) {
	row := s.db.QueryRow(`
		SELECT alignment_id, run_id, reference, target,
		       lag_time, slope, sample_rate, good, record_path, created_at
		FROM alignments
		WHERE alignment_id = ?`, alignmentID)

	a, err := scanAlignment(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("alignment %s not found", alignmentID)
		}
		return nil, fmt.Errorf("scan alignment: %w", err)
	}
	return a, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAlignment(row rowScanner) (*Alignment, error) {
	var a Alignment
	var lag, slope sql.NullFloat64
	var recordPath sql.NullString
	err := row.Scan(
		&a.AlignmentID, &a.RunID, &a.Reference, &a.Target,
		&lag, &slope, &a.SampleRate, &a.Good, &recordPath, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lag.Valid {
		a.LagTime = &lag.Float64
	}
	if slope.Valid {
		a.Slope = &slope.Float64
	}
	if recordPath.Valid {
		a.RecordPath = recordPath.String
	}
	return &a, nil
}

func scanAlignments(rows *sql.Rows) ([]*Alignment, error) {
	var out []*Alignment
	for rows.Next() {
		a, err := scanAlignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func nullStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
