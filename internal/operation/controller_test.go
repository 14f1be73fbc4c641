package operation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mangaforge/mangaforge/internal/observability"
)

func newTestController() *Controller {
	return NewController(observability.NopLogger())
}

func TestStartEnforcesSingularity(t *testing.T) {
	c := newTestController()

	id, err := c.Start(TypeProcessAllPages, true, 8)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	_, err = c.Start(TypeLoadProject, false, 1)
	assert.ErrorIs(t, err, ErrOperationActive)

	c.Finish()
	_, err = c.Start(TypeLoadProject, false, 1)
	assert.NoError(t, err)
}

func TestStartForcesCancelRequestedFalse(t *testing.T) {
	c := newTestController()

	_, err := c.Start(TypeProcessCurrentPage, true, 4)
	require.NoError(t, err)
	require.True(t, c.Cancel())
	c.Finish()

	_, err = c.Start(TypeProcessCurrentPage, true, 4)
	require.NoError(t, err)
	assert.False(t, c.CancelRequested(), "cancellation must not leak into the next operation")
}

func TestUpdateWhileIdleIsNoOp(t *testing.T) {
	c := newTestController()

	c.Update(Update{Step: StepLabel("ghost"), Current: Progress(3)})

	_, active := c.Snapshot()
	assert.False(t, active)
}

func TestUpdateMutatesOnlyGivenFields(t *testing.T) {
	c := newTestController()
	_, err := c.Start(TypeProcessAllPages, true, 10)
	require.NoError(t, err)

	c.Update(Update{Step: StepLabel("detect (page 1/2)"), Current: Progress(1)})
	c.Update(Update{Current: Progress(2)})

	op, active := c.Snapshot()
	require.True(t, active)
	assert.Equal(t, "detect (page 1/2)", op.Step)
	assert.Equal(t, 2, op.Current)
	assert.Equal(t, 10, op.Total)
}

func TestFinishIsIdempotent(t *testing.T) {
	c := newTestController()
	_, err := c.Start(TypeSaveProject, false, 1)
	require.NoError(t, err)

	c.Finish()
	c.Finish()

	_, active := c.Snapshot()
	assert.False(t, active)
}

func TestFinishClearsCancelledOperation(t *testing.T) {
	c := newTestController()
	_, err := c.Start(TypeProcessAllPages, true, 4)
	require.NoError(t, err)
	require.True(t, c.Cancel())

	c.Finish()

	_, active := c.Snapshot()
	assert.False(t, active)
	assert.False(t, c.CancelRequested())
}

func TestCancelRules(t *testing.T) {
	c := newTestController()

	assert.False(t, c.Cancel(), "cancel while idle is rejected")

	_, err := c.Start(TypeSaveProject, false, 1)
	require.NoError(t, err)
	assert.False(t, c.Cancel(), "cancel of a non-cancellable operation is rejected")
	c.Finish()

	_, err = c.Start(TypeProcessAllPages, true, 4)
	require.NoError(t, err)
	assert.True(t, c.Cancel())
	assert.True(t, c.CancelRequested())

	op, active := c.Snapshot()
	require.True(t, active, "cancel does not finish the operation")
	assert.True(t, op.CancelRequested)
}

func TestCancelFiresNotifier(t *testing.T) {
	c := newTestController()

	var notified []Operation
	c.SetCancelNotifier(func(op Operation) {
		notified = append(notified, op)
	})

	_, err := c.Start(TypeProcessCurrentPage, true, 4)
	require.NoError(t, err)
	require.True(t, c.Cancel())

	require.Len(t, notified, 1)
	assert.Equal(t, TypeProcessCurrentPage, notified[0].Type)
	assert.True(t, notified[0].CancelRequested)

	// Rejected cancels do not notify.
	require.True(t, c.CancelRequested())
	c.Finish()
	c.Cancel()
	assert.Len(t, notified, 1)
}

func TestListenerObservesLifecycle(t *testing.T) {
	c := newTestController()

	type event struct {
		step   string
		active bool
	}
	var events []event
	c.SetListener(func(op Operation, active bool) {
		events = append(events, event{step: op.Step, active: active})
	})

	_, err := c.Start(TypeProcessCurrentPage, true, 4)
	require.NoError(t, err)
	c.Update(Update{Step: StepLabel("ocr (page 1/1)")})
	c.Finish()

	require.Len(t, events, 3)
	assert.True(t, events[0].active)
	assert.Equal(t, "ocr (page 1/1)", events[1].step)
	assert.False(t, events[2].active)
}
