// Package driver executes programs: pure logic that describes side
// effects as values and yields them one at a time. The driver is the
// cooperative loop between a program and the registry — it suspends the
// program at each yield, dispatches the effect, and resumes the program
// with the outcome. Pure logic between yields never blocks and never
// touches I/O.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Tuee22/parapet/internal/effect"
	"github.com/Tuee22/parapet/internal/registry"
)

// Status is the driver's position in its state machine.
type Status int32

const (
	// StatusIdle means Run has not been called yet.
	StatusIdle Status = iota
	// StatusRunning means the program is executing pure logic.
	StatusRunning
	// StatusSuspended means one effect is outstanding at the registry.
	StatusSuspended
	// StatusCompleted is terminal: the program returned a final value.
	StatusCompleted
	// StatusFailed is terminal: a typed error escaped the program.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusSuspended:
		return "suspended"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// Yielder is handed to a program; Perform is its only doorway to the
// outside world. Calling Perform yields exactly one effect and blocks
// until its outcome is available.
type Yielder interface {
	Perform(eff effect.Effect) effect.Outcome
}

// Program is a pure description of work. Run receives a Yielder and
// must route every side effect through it. Returning a *effect.VariantError
// (typically from Outcome.Err) marks the run as Failed with the typed
// error preserved; any other error is wrapped but never flattened.
type Program interface {
	Name() string
	Run(ctx context.Context, y Yielder) (effect.Value, error)
}

// Func adapts a plain function into a Program.
type Func struct {
	ProgramName string
	Body        func(ctx context.Context, y Yielder) (effect.Value, error)
}

func (f Func) Name() string { return f.ProgramName }

func (f Func) Run(ctx context.Context, y Yielder) (effect.Value, error) {
	return f.Body(ctx, y)
}

// Step is one recorded yield: the effect, its outcome, and the logical
// sequence number stamped at dispatch.
type Step struct {
	Seq     int64          `json:"seq"`
	Effect  effect.Effect  `json:"effect"`
	Outcome effect.Outcome `json:"outcome"`
}

// Journal persists dispatched steps. The store package provides the
// SQLite implementation; tests use in-memory fakes.
type Journal interface {
	Record(ctx context.Context, runID string, step Step) error
}

// Driver runs exactly one program instance to a terminal state.
// Multiple program instances run concurrently as independent drivers;
// a single driver is strictly single-threaded and cooperative — one
// outstanding effect at a time, dispatched in the exact order yielded.
type Driver struct {
	reg     *registry.Registry
	clock   *Clock
	tokens  TokenGenerator
	journal Journal
	logger  *slog.Logger

	runID  string
	status atomic.Int32
	used   atomic.Bool

	mu    sync.Mutex
	trace []Step
}

// Option configures a driver.
type Option func(*Driver)

// WithTokenGenerator overrides the run-token source.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(d *Driver) { d.tokens = g }
}

// WithJournal records every dispatched step to the given journal.
func WithJournal(j Journal) Option {
	return func(d *Driver) { d.journal = j }
}

// WithLogger overrides the driver's own diagnostics logger. This logger
// is driver plumbing; program-level logging goes through log.write
// effects like everything else.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithClock overrides the sequence clock. Replay uses NewClockAt to
// resume from a recorded position.
func WithClock(c *Clock) Option {
	return func(d *Driver) { d.clock = c }
}

// New creates a single-use driver over the given registry.
func New(reg *registry.Registry, opts ...Option) *Driver {
	d := &Driver{
		reg:    reg,
		clock:  NewClock(),
		tokens: UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run executes the program to a terminal state and returns its final
// value. Drivers are single-use: a second Run is an error.
//
// Error contract: a typed failure that escapes the program surfaces
// here as a *effect.VariantError and the driver lands in StatusFailed;
// the original kind, case, and diagnostic are preserved, never
// converted into an opaque generic failure.
func (d *Driver) Run(ctx context.Context, prog Program) (effect.Value, error) {
	if d.used.Swap(true) {
		return nil, fmt.Errorf("driver: Run called twice on a single-use driver")
	}
	d.runID = d.tokens.Generate()
	d.status.Store(int32(StatusRunning))

	d.logger.Debug("program starting", "program", prog.Name(), "run_id", d.runID)

	y := &yielder{ctx: ctx, d: d}
	value, err := prog.Run(ctx, y)
	if err != nil {
		d.status.Store(int32(StatusFailed))
		var verr *effect.VariantError
		if errors.As(err, &verr) {
			d.logger.Info("program failed",
				"program", prog.Name(),
				"run_id", d.runID,
				"kind", verr.Kind,
				"case", verr.Case,
			)
			return nil, err
		}
		d.logger.Info("program failed", "program", prog.Name(), "run_id", d.runID, "error", err)
		return nil, fmt.Errorf("program %s: %w", prog.Name(), err)
	}

	d.status.Store(int32(StatusCompleted))
	d.logger.Debug("program completed",
		"program", prog.Name(),
		"run_id", d.runID,
		"steps", len(d.Trace()),
	)
	return value, nil
}

// Status returns the driver's current state.
func (d *Driver) Status() Status {
	return Status(d.status.Load())
}

// RunID returns the run token, empty before Run.
func (d *Driver) RunID() string {
	return d.runID
}

// Trace returns a copy of the recorded steps in dispatch order.
func (d *Driver) Trace() []Step {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Step, len(d.trace))
	copy(out, d.trace)
	return out
}

// yielder enforces the strict alternation contract: produce one effect,
// wait for one outcome.
type yielder struct {
	ctx         context.Context
	d           *Driver
	outstanding atomic.Bool
}

// Perform dispatches one effect through the registry and returns its
// outcome. A second Perform while one is outstanding means the program
// leaked the yielder across goroutines; that breaks the cooperative
// contract and fails fast.
func (y *yielder) Perform(eff effect.Effect) effect.Outcome {
	if y.outstanding.Swap(true) {
		panic("driver: concurrent Perform on one program instance")
	}
	defer y.outstanding.Store(false)

	d := y.d
	d.status.Store(int32(StatusSuspended))
	seq := d.clock.Next()

	out := d.reg.Dispatch(y.ctx, eff)

	step := Step{Seq: seq, Effect: eff, Outcome: out}
	d.mu.Lock()
	d.trace = append(d.trace, step)
	d.mu.Unlock()

	if d.journal != nil {
		if err := d.journal.Record(y.ctx, d.runID, step); err != nil {
			// Journal trouble must not alter program semantics; the
			// outcome still flows back unchanged.
			d.logger.Error("journal write failed",
				"run_id", d.runID,
				"seq", seq,
				"kind", eff.Kind,
				"error", err,
			)
		}
	}

	d.status.Store(int32(StatusRunning))
	return out
}
