package store

import (
	"context"
	"fmt"

	"github.com/Tuee22/parapet/internal/driver"
	"github.com/Tuee22/parapet/internal/effect"
)

// ReadRun returns all dispatches recorded for a run, ordered by seq.
//
// Returns an empty slice (not nil) if no records exist for the run.
func (s *Store) ReadRun(ctx context.Context, runID string) ([]driver.Step, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, kind, payload, outcome_case, outcome_value, diag
		FROM dispatches
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query dispatches: %w", err)
	}
	defer rows.Close()

	var steps []driver.Step
	for rows.Next() {
		var (
			seq             int64
			kind            string
			payloadJSON     string
			outcomeCase     string
			valueJSON, diag string
		)
		if err := rows.Scan(&seq, &kind, &payloadJSON, &outcomeCase, &valueJSON, &diag); err != nil {
			return nil, fmt.Errorf("scan dispatch: %w", err)
		}

		payload, err := unmarshalObject(payloadJSON)
		if err != nil {
			return nil, fmt.Errorf("dispatch seq %d: payload: %w", seq, err)
		}
		value, err := unmarshalObject(valueJSON)
		if err != nil {
			return nil, fmt.Errorf("dispatch seq %d: outcome value: %w", seq, err)
		}

		steps = append(steps, driver.Step{
			Seq:    seq,
			Effect: effect.Effect{Kind: effect.Kind(kind), Payload: payload},
			Outcome: effect.Outcome{
				Case:  outcomeCase,
				Value: value,
				Diag:  diag,
			},
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dispatches: %w", err)
	}

	if steps == nil {
		steps = []driver.Step{}
	}

	return steps, nil
}

// ListRuns returns all distinct run IDs in the journal.
// Results ordered alphabetically by run ID.
func (s *Store) ListRuns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT run_id FROM dispatches
		ORDER BY run_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run id: %w", err)
		}
		runs = append(runs, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	if runs == nil {
		runs = []string{}
	}

	return runs, nil
}

// LastSeq returns the highest seq recorded for a run, or 0 when the
// run has no dispatches. Used to resume a driver's logical clock.
func (s *Store) LastSeq(ctx context.Context, runID string) (int64, error) {
	var maxSeq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM dispatches WHERE run_id = ?
	`, runID).Scan(&maxSeq)
	if err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return maxSeq, nil
}

// unmarshalObject decodes a stored canonical-JSON column into an Object.
func unmarshalObject(data string) (effect.Object, error) {
	v, err := effect.UnmarshalValue([]byte(data))
	if err != nil {
		return nil, err
	}
	obj, ok := v.(effect.Object)
	if !ok {
		return nil, fmt.Errorf("expected JSON object, got %T", v)
	}
	return obj, nil
}
