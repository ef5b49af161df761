package conformance

import (
	"crypto/rand"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Tuee22/parapet/internal/effect"
	"github.com/Tuee22/parapet/internal/registry"
	"github.com/Tuee22/parapet/internal/runner"
)

// BuildRegistry constructs the registry a suite describes. The
// returned cleanup releases backing resources (database handles) and
// must be called after replay, pass or fail.
func BuildRegistry(s *Suite, logger *slog.Logger) (*registry.Registry, func() error, error) {
	timeout := time.Duration(s.Runners.TimeoutMS) * time.Millisecond

	now := time.Now
	if s.Runners.Clock != nil && s.Runners.Clock.FixedMillis != nil {
		at := time.UnixMilli(*s.Runners.Clock.FixedMillis)
		now = func() time.Time { return at }
	}

	var runners []runner.Runner
	cleanup := func() error { return nil }

	if s.Runners.KV != nil {
		store, err := runner.NewKVStore(now)
		if err != nil {
			return nil, nil, fmt.Errorf("building kv store: %w", err)
		}
		for _, entry := range s.Runners.KV.Preload {
			value, err := effect.FromGo(entry.Value)
			if err != nil {
				return nil, nil, fmt.Errorf("kv preload %q: %w", entry.Key, err)
			}
			if err := store.Preload(entry.Key, value, entry.TTLMS); err != nil {
				return nil, nil, fmt.Errorf("kv preload %q: %w", entry.Key, err)
			}
		}
		store.Wait()
		runners = append(runners, store.Runners(timeout)...)
	}

	if s.Runners.DB != nil {
		db, err := sql.Open("sqlite3", s.Runners.DB.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening suite database: %w", err)
		}
		// SQLite serializes writers; one connection avoids lock errors
		// from concurrent replay dispatches.
		db.SetMaxOpenConns(1)
		for i, stmt := range s.Runners.DB.Setup {
			if _, err := db.Exec(stmt); err != nil {
				db.Close()
				return nil, nil, fmt.Errorf("db setup[%d]: %w", i, err)
			}
		}
		cleanup = db.Close
		runners = append(runners, runner.NewDB(db, timeout))
	}

	if s.Runners.Clock != nil {
		runners = append(runners, runner.NewClock(now, timeout))
	}

	if s.Runners.Rand != nil {
		maxCount := s.Runners.Rand.MaxCount
		if maxCount <= 0 {
			maxCount = runner.DefaultMaxRandBytes
		}
		runners = append(runners, runner.NewRand(rand.Reader, maxCount, timeout))
	}

	if s.Runners.Log != nil {
		logDest := logger
		if s.Runners.Log.Discard || logDest == nil {
			logDest = slog.New(slog.NewTextHandler(io.Discard, nil))
		}
		runners = append(runners, runner.NewLog(logDest, timeout))
	}

	if s.Runners.HTTP != nil && s.Runners.HTTP.Enabled {
		runners = append(runners, runner.NewHTTP(http.DefaultClient, timeout))
	}

	reg, err := registry.New(runners...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return reg, cleanup, nil
}
