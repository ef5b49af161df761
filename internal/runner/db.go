package runner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Tuee22/parapet/internal/effect"
)

// NewDB builds the db.query runner over an already opened database
// handle. The handle is injected once and owned for the runner's
// lifetime; database/sql pools are safe for concurrent use, which is
// what makes concurrent Run calls safe here.
func NewDB(db *sql.DB, timeout time.Duration) Runner {
	r := &dbRunner{db: db}
	return newGuarded(effect.KindDBQuery, timeout, r.run)
}

type dbRunner struct {
	db *sql.DB
}

func (r *dbRunner) run(ctx context.Context, payload effect.Object) effect.Outcome {
	sqlText, ok := payload.Str("sql")
	if !ok || sqlText == "" {
		return effect.Fail(effect.CaseInvalid, "db.query payload missing sql text")
	}
	modeStr, ok := payload.Str("mode")
	mode := effect.QueryMode(modeStr)
	if !ok || !effect.ValidQueryModes[mode] {
		return effect.Failf(effect.CaseInvalid, "db.query payload has invalid mode %q", modeStr)
	}
	params, ok := payload.Arr("params")
	if !ok {
		return effect.Fail(effect.CaseInvalid, "db.query payload missing params array")
	}

	args := make([]any, len(params))
	for i, p := range params {
		args[i] = valueToGo(p)
	}

	switch mode {
	case effect.QueryExec:
		res, err := r.db.ExecContext(ctx, sqlText, args...)
		if err != nil {
			return classifyDBError(err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return effect.Failf(effect.CaseUnknown, "rows affected: %v", err)
		}
		return effect.Ok(effect.Object{"rows_affected": effect.Int(affected)})

	case effect.QueryOne:
		rows, err := r.queryRows(ctx, sqlText, args, 2)
		if err != nil {
			return classifyDBError(err)
		}
		switch len(rows) {
		case 0:
			return effect.Fail(effect.CaseNoRows, "query in one-row mode matched no rows")
		case 1:
			return effect.Ok(effect.Object{"row": rows[0]})
		default:
			return effect.Fail(effect.CaseMultipleRows,
				"query in one-row mode matched more than one row")
		}

	default: // effect.QueryMany
		rows, err := r.queryRows(ctx, sqlText, args, -1)
		if err != nil {
			return classifyDBError(err)
		}
		arr := make(effect.Array, len(rows))
		for i, row := range rows {
			arr[i] = row
		}
		return effect.Ok(effect.Object{
			"rows":  arr,
			"count": effect.Int(int64(len(rows))),
		})
	}
}

// queryRows collects up to limit rows (limit < 0 means all). One-row
// mode only needs to know whether a second row exists, so it passes 2.
func (r *dbRunner) queryRows(ctx context.Context, sqlText string, args []any, limit int) ([]effect.Object, error) {
	rows, err := r.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []effect.Object
	for rows.Next() {
		if limit >= 0 && len(out) >= limit {
			break
		}
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(effect.Object, len(cols))
		for i, col := range cols {
			v, err := sqlValueToEffect(vals[i])
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", col, err)
			}
			if v != nil {
				row[col] = v
			}
			// NULL columns are excluded from the row object: absence
			// is modeled by the field not being present.
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// sqlValueToEffect converts a scanned column to a payload value.
// Returns (nil, nil) for SQL NULL.
func sqlValueToEffect(v any) (effect.Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case int64:
		return effect.Int(val), nil
	case string:
		return effect.String(val), nil
	case []byte:
		return effect.String(string(val)), nil
	case bool:
		return effect.Bool(val), nil
	case float64:
		if val == float64(int64(val)) {
			return effect.Int(int64(val)), nil
		}
		return nil, fmt.Errorf("non-integral float %v cannot enter an effect payload", val)
	case time.Time:
		return effect.Int(val.UnixMilli()), nil
	default:
		return nil, fmt.Errorf("unsupported column type %T", v)
	}
}

// valueToGo converts a payload value to its database/sql argument form.
func valueToGo(v effect.Value) any {
	switch val := v.(type) {
	case effect.String:
		return string(val)
	case effect.Int:
		return int64(val)
	case effect.Bool:
		return bool(val)
	default:
		// Arrays and objects bind as their canonical JSON text.
		b, err := effect.MarshalCanonical(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// classifyDBError maps a driver error into the db.query variant set by
// semantic meaning. Anything unrecognized maps to unknown with the
// original text preserved.
func classifyDBError(err error) effect.Outcome {
	msg := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return effect.Failf(effect.CaseTimeout, "query deadline exceeded: %v", err)
	case errors.Is(err, sql.ErrNoRows):
		return effect.Fail(effect.CaseNoRows, msg)
	case strings.Contains(msg, "UNIQUE constraint failed"),
		strings.Contains(msg, "constraint failed"):
		return effect.Fail(effect.CaseConflict, msg)
	case strings.Contains(msg, "syntax error"),
		strings.Contains(msg, "no such table"),
		strings.Contains(msg, "no such column"),
		strings.Contains(msg, "incomplete input"):
		return effect.Fail(effect.CaseInvalid, msg)
	case strings.Contains(msg, "unable to open database"),
		strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "bad connection"):
		return effect.Fail(effect.CaseConnection, msg)
	default:
		return effect.Fail(effect.CaseUnknown, msg)
	}
}
