package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Tuee22/parapet/internal/driver"
	"github.com/Tuee22/parapet/internal/effect"
)

// WriteDispatch inserts one dispatch record into the journal.
// Uses ON CONFLICT(run_id, seq) DO NOTHING for idempotency - a driver
// that retries a journal write after a crash never duplicates rows.
// Other constraint violations (e.g., NOT NULL) will still return errors.
//
// The effect payload and outcome value are serialized to canonical JSON
// per RFC 8785 so recorded bytes are stable across writes.
func (s *Store) WriteDispatch(ctx context.Context, runID string, step driver.Step) error {
	effectID, err := step.Effect.ID()
	if err != nil {
		return fmt.Errorf("write dispatch: %w", err)
	}

	payloadJSON, err := effect.MarshalCanonical(step.Effect.Payload)
	if err != nil {
		return fmt.Errorf("write dispatch: marshal payload: %w", err)
	}

	value := step.Outcome.Value
	if value == nil {
		value = effect.Object{}
	}
	valueJSON, err := effect.MarshalCanonical(value)
	if err != nil {
		return fmt.Errorf("write dispatch: marshal outcome value: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dispatches
		(run_id, seq, effect_id, kind, payload, outcome_case, outcome_value, diag, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		runID,
		step.Seq,
		effectID,
		string(step.Effect.Kind),
		string(payloadJSON),
		step.Outcome.Case,
		string(valueJSON),
		step.Outcome.Diag,
		time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("write dispatch: %w", err)
	}

	return nil
}

// Record implements driver.Journal, so a Store can be handed straight
// to driver.WithJournal.
func (s *Store) Record(ctx context.Context, runID string, step driver.Step) error {
	return s.WriteDispatch(ctx, runID, step)
}

var _ driver.Journal = (*Store)(nil)
