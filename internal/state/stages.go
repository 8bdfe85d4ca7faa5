package state

import (
	"database/sql"
	"fmt"
	"time"
)

// StageStatus is the lifecycle status of one pipeline stage within a run.
type StageStatus string

const (
	StageStatusPending StageStatus = "pending"
	StageStatusRunning StageStatus = "running"
	StageStatusSuccess StageStatus = "success"
	StageStatusFailed  StageStatus = "failed"
	StageStatusSkipped StageStatus = "skipped"
)

// StageRun is the recorded execution of one stage within a run.
type StageRun struct {
	ID          string
	RunID       string
	Stage       string
	Position    int
	Status      StageStatus
	RowsIn      int
	RowsOut     int
	StartedAt   *time.Time
	CompletedAt *time.Time
	Error       string
}

// Exclusion is a per-stage count of records dropped for one reason.
type Exclusion struct {
	RunID  string
	Stage  string
	Reason string
	Count  int
}

// CreateStageRun records a pending stage for a run. Position fixes the
// display order.
func (s *Store) CreateStageRun(runID, stage string, position int) (*StageRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	sr := &StageRun{
		ID:       generateID(),
		RunID:    runID,
		Stage:    stage,
		Position: position,
		Status:   StageStatusPending,
	}

	_, err := s.db.Exec(
		`INSERT INTO stage_runs (id, run_id, stage, position, status) VALUES (?, ?, ?, ?, ?)`,
		sr.ID, sr.RunID, sr.Stage, sr.Position, sr.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stage run: %w", err)
	}
	return sr, nil
}

// StartStageRun marks a stage as running.
func (s *Store) StartStageRun(id string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	result, err := s.db.Exec(
		`UPDATE stage_runs SET status = ?, started_at = ? WHERE id = ?`,
		StageStatusRunning, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to start stage run: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("stage run not found: %s", id)
	}
	return nil
}

// FinishStageRun records a stage's outcome and row counts.
func (s *Store) FinishStageRun(id string, status StageStatus, rowsIn, rowsOut int, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	var errorPtr *string
	if errMsg != "" {
		errorPtr = &errMsg
	}

	result, err := s.db.Exec(
		`UPDATE stage_runs SET status = ?, rows_in = ?, rows_out = ?, completed_at = ?, error = ? WHERE id = ?`,
		status, rowsIn, rowsOut, time.Now().UTC(), errorPtr, id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish stage run: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("stage run not found: %s", id)
	}
	return nil
}

// SkipPendingStageRuns marks every still-pending stage of a run as skipped.
// Called after a stage failure so downstream stages are accounted for.
func (s *Store) SkipPendingStageRuns(runID string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	_, err := s.db.Exec(
		`UPDATE stage_runs SET status = ?, completed_at = ? WHERE run_id = ? AND status = ?`,
		StageStatusSkipped, time.Now().UTC(), runID, StageStatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to skip pending stage runs: %w", err)
	}
	return nil
}

// ListStageRuns retrieves a run's stages in pipeline order.
func (s *Store) ListStageRuns(runID string) ([]*StageRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT id, run_id, stage, position, status, rows_in, rows_out, started_at, completed_at, error
		 FROM stage_runs WHERE run_id = ? ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage runs: %w", err)
	}
	defer rows.Close()

	var stages []*StageRun
	for rows.Next() {
		sr := &StageRun{}
		var startedAt, completedAt sql.NullTime
		var errMsg sql.NullString

		err := rows.Scan(
			&sr.ID, &sr.RunID, &sr.Stage, &sr.Position, &sr.Status,
			&sr.RowsIn, &sr.RowsOut, &startedAt, &completedAt, &errMsg,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stage run: %w", err)
		}
		if startedAt.Valid {
			sr.StartedAt = &startedAt.Time
		}
		if completedAt.Valid {
			sr.CompletedAt = &completedAt.Time
		}
		if errMsg.Valid {
			sr.Error = errMsg.String
		}
		stages = append(stages, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list stage runs: %w", err)
	}
	return stages, nil
}

// RecordExclusion stores one dropped-record count for a stage. A zero count
// is stored too so the report distinguishes "none excluded" from "not
// checked".
func (s *Store) RecordExclusion(runID, stage, reason string, count int) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	_, err := s.db.Exec(
		`INSERT INTO exclusions (run_id, stage, reason, count) VALUES (?, ?, ?, ?)`,
		runID, stage, reason, count,
	)
	if err != nil {
		return fmt.Errorf("failed to record exclusion: %w", err)
	}
	return nil
}

// ListExclusions retrieves a run's exclusion counts in recorded order.
func (s *Store) ListExclusions(runID string) ([]Exclusion, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT run_id, stage, reason, count FROM exclusions WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list exclusions: %w", err)
	}
	defer rows.Close()

	var exclusions []Exclusion
	for rows.Next() {
		var e Exclusion
		if err := rows.Scan(&e.RunID, &e.Stage, &e.Reason, &e.Count); err != nil {
			return nil, fmt.Errorf("failed to scan exclusion: %w", err)
		}
		exclusions = append(exclusions, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list exclusions: %w", err)
	}
	return exclusions, nil
}
