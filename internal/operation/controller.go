// Package operation tracks the single active long-running task: its type,
// step label, progress counters, and cooperative cancellation state.
package operation

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Type identifies what kind of long-running work an operation represents.
type Type string

const (
	TypeLoadProject          Type = "load-project"
	TypeSaveProject          Type = "save-project"
	TypeProcessCurrentPage   Type = "process-current-page"
	TypeProcessAllPages      Type = "process-all-pages"
	TypeLoadTranslationModel Type = "load-translation-model"
)

// ErrOperationActive is returned by Start while another operation is
// running. The controller enforces singularity itself rather than relying
// on callers checking first.
var ErrOperationActive = errors.New("an operation is already active")

// Operation is a snapshot of the active long-running task.
type Operation struct {
	ID              uuid.UUID `json:"id"`
	Type            Type      `json:"type"`
	Step            string    `json:"step"`
	Current         int       `json:"current"`
	Total           int       `json:"total"`
	Cancellable     bool      `json:"cancellable"`
	CancelRequested bool      `json:"cancelRequested"`
	StartedAt       time.Time `json:"startedAt"`
}

// Update carries partial mutations for the active operation. Nil fields are
// left untouched.
type Update struct {
	Step    *string
	Current *int
	Total   *int
}

// Listener observes operation snapshots on start, update, and finish. On
// finish the second argument is false.
type Listener func(op Operation, active bool)

// CancelNotifier forwards a best-effort cancellation signal to whichever
// external service may be mid-call. Failures are ignored.
type CancelNotifier func(op Operation)

// Controller is the process-wide state machine for the single active
// operation. Exactly one operation may exist at a time; it is owned by the
// composition root and passed explicitly to everything that needs it.
type Controller struct {
	mu       sync.Mutex
	active   *Operation
	logger   zerolog.Logger
	listener Listener
	notifier CancelNotifier
}

// NewController creates an idle controller.
func NewController(logger zerolog.Logger) *Controller {
	return &Controller{logger: logger}
}

// SetListener registers an observer for progress snapshots.
func (c *Controller) SetListener(l Listener) {
	c.mu.Lock()
	c.listener = l
	c.mu.Unlock()
}

// SetCancelNotifier registers the fire-and-forget external cancellation
// side-channel.
func (c *Controller) SetCancelNotifier(n CancelNotifier) {
	c.mu.Lock()
	c.notifier = n
	c.mu.Unlock()
}

// Start transitions Idle -> Running. CancelRequested is forced false
// regardless of caller input. Returns ErrOperationActive while another
// operation is running.
func (c *Controller) Start(t Type, cancellable bool, total int) (uuid.UUID, error) {
	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		return uuid.Nil, ErrOperationActive
	}
	op := Operation{
		ID:          uuid.New(),
		Type:        t,
		Total:       total,
		Cancellable: cancellable,
		StartedAt:   time.Now(),
	}
	c.active = &op
	listener := c.listener
	c.mu.Unlock()

	c.logger.Info().
		Str("operation", string(t)).
		Bool("cancellable", cancellable).
		Int("total", total).
		Msg("Operation started")

	if listener != nil {
		listener(op, true)
	}
	return op.ID, nil
}

// Update mutates the active operation's progress fields. No-op while idle.
func (c *Controller) Update(u Update) {
	c.mu.Lock()
	if c.active == nil {
		c.mu.Unlock()
		return
	}
	if u.Step != nil {
		c.active.Step = *u.Step
	}
	if u.Current != nil {
		c.active.Current = *u.Current
	}
	if u.Total != nil {
		c.active.Total = *u.Total
	}
	op := *c.active
	listener := c.listener
	c.mu.Unlock()

	if listener != nil {
		listener(op, true)
	}
}

// Finish transitions to Idle unconditionally, clearing even a cancelled
// operation. Idempotent: calling it while already idle does nothing.
func (c *Controller) Finish() {
	c.mu.Lock()
	if c.active == nil {
		c.mu.Unlock()
		return
	}
	op := *c.active
	c.active = nil
	listener := c.listener
	c.mu.Unlock()

	c.logger.Info().
		Str("operation", string(op.Type)).
		Bool("cancelRequested", op.CancelRequested).
		Msg("Operation finished")

	if listener != nil {
		listener(op, false)
	}
}

// Cancel requests cooperative cancellation of the active operation. It does
// not interrupt in-flight work: the running stage polls CancelRequested
// between steps. A best-effort signal is also forwarded to the external
// cancellation side-channel. Returns true when the request was recorded.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	if c.active == nil || !c.active.Cancellable {
		c.mu.Unlock()
		return false
	}
	c.active.CancelRequested = true
	op := *c.active
	notifier := c.notifier
	c.mu.Unlock()

	c.logger.Info().Str("operation", string(op.Type)).Msg("Cancellation requested")

	if notifier != nil {
		notifier(op)
	}
	return true
}

// CancelRequested reports whether cancellation has been requested for the
// active operation. False while idle.
func (c *Controller) CancelRequested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil && c.active.CancelRequested
}

// Snapshot returns a copy of the active operation. The second return value
// is false while idle.
func (c *Controller) Snapshot() (Operation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return Operation{}, false
	}
	return *c.active, true
}

// String helpers for Update fields.

// StepLabel returns a pointer for Update.Step.
func StepLabel(s string) *string { return &s }

// Progress returns a pointer for Update.Current / Update.Total.
func Progress(n int) *int { return &n }
