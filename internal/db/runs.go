package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run is one stored metric computation.
type Run struct {
	ID                  string        `json:"id"`
	Reference           string        `json:"reference"`
	Test                string        `json:"test"`
	SearchSize          int           `json:"search_size"`
	ReferencePoints     int           `json:"reference_points"`
	TestPoints          int           `json:"test_points"`
	DegenerateReference int           `json:"degenerate_reference"`
	DegenerateTest      int           `json:"degenerate_test"`
	Duration            time.Duration `json:"duration"`
	CreatedAt           time.Time     `json:"created_at"`
}

// Predictor is one stored vector channel.
type Predictor struct {
	Index int     `json:"index"`
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// RecordRun stores run and its predictor vector in one transaction and
// returns the run ID. An empty run.ID is replaced with a new UUID and a zero
// CreatedAt with the current time.
func (db *DB) RecordRun(run Run, names []string, values []float64) (string, error) {
	if len(names) != len(values) {
		return "", fmt.Errorf("%d predictor names but %d values", len(names), len(values))
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	tx, err := db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (
			id, reference, test, search_size, reference_points, test_points,
			degenerate_reference, degenerate_test, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Reference, run.Test, run.SearchSize, run.ReferencePoints, run.TestPoints,
		run.DegenerateReference, run.DegenerateTest, run.Duration.Milliseconds(), run.CreatedAt.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO run_predictors (run_id, idx, name, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()
	for i, name := range names {
		if _, err := stmt.Exec(run.ID, i, name, values[i]); err != nil {
			return "", fmt.Errorf("insert predictor %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return run.ID, nil
}

// Runs returns stored runs, newest first. A limit of zero or less returns
// every run.
func (db *DB) Runs(limit int) ([]Run, error) {
	query := `SELECT id, reference, test, search_size, reference_points, test_points,
			degenerate_reference, degenerate_test, duration_ms, created_at
		FROM runs ORDER BY created_at DESC, id`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = db.Query(query+` LIMIT ?`, limit)
	} else {
		rows, err = db.Query(query)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var durationMs, created int64
		if err := rows.Scan(&r.ID, &r.Reference, &r.Test, &r.SearchSize, &r.ReferencePoints, &r.TestPoints,
			&r.DegenerateReference, &r.DegenerateTest, &durationMs, &created); err != nil {
			return nil, err
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		r.CreatedAt = time.Unix(0, created)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunPredictors returns the stored vector of run id in channel order.
func (db *DB) RunPredictors(id string) ([]Predictor, error) {
	rows, err := db.Query(`SELECT idx, name, value FROM run_predictors WHERE run_id = ? ORDER BY idx`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Predictor
	for rows.Next() {
		var p Predictor
		if err := rows.Scan(&p.Index, &p.Name, &p.Value); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and, through the foreign key, its predictors.
func (db *DB) DeleteRun(id string) error {
	res, err := db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}
