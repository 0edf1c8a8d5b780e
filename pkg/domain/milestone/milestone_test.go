package milestone_test

import (
	"testing"
	"time"

	"github.com/buildrail/escrow/pkg/domain/milestone"
	"github.com/buildrail/escrow/pkg/money"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMilestone(t *testing.T) *milestone.Milestone {
	t.Helper()
	m, err := milestone.New().
		WithProjectID(uuid.New()).
		WithTitle("design phase").
		WithAmount(money.Must(500, money.USD)).
		WithDueDate(time.Now().AddDate(0, 1, 0)).
		Build()
	require.NoError(t, err)
	return m
}

func TestBuild_Validation(t *testing.T) {
	_, err := milestone.New().WithAmount(money.Must(1, money.USD)).Build()
	require.Error(t, err, "missing project")

	_, err = milestone.New().WithProjectID(uuid.New()).Build()
	require.Error(t, err, "zero amount")

	_, err = milestone.New().
		WithProjectID(uuid.New()).
		WithAmount(money.Must(1, money.USD)).
		WithStatus("bogus").
		Build()
	require.Error(t, err)
}

func TestFullLifecycle(t *testing.T) {
	m := newMilestone(t)
	require.NoError(t, m.Submit())
	require.NoError(t, m.Approve())
	require.NoError(t, m.RequestRelease())
	require.NoError(t, m.MarkPaid())
	assert.Equal(t, milestone.StatusPaid, m.Status)
}

func TestRejectAndResubmit(t *testing.T) {
	m := newMilestone(t)
	require.NoError(t, m.Submit())
	require.NoError(t, m.Reject())
	assert.Equal(t, milestone.StatusRejected, m.Status)

	require.NoError(t, m.Submit())
	assert.Equal(t, milestone.StatusSubmitted, m.Status)
}

func TestPaidIsTerminal(t *testing.T) {
	m := newMilestone(t)
	require.NoError(t, m.Submit())
	require.NoError(t, m.Approve())
	require.NoError(t, m.RequestRelease())
	require.NoError(t, m.MarkPaid())

	require.ErrorIs(t, m.Cancel(), milestone.ErrInvalidTransition)
	require.ErrorIs(t, m.Submit(), milestone.ErrInvalidTransition)
}

func TestMarkPaidOnlyFromReleaseRequested(t *testing.T) {
	m := newMilestone(t)
	require.ErrorIs(t, m.MarkPaid(), milestone.ErrNotReleasable)

	require.NoError(t, m.Submit())
	require.NoError(t, m.Approve())
	require.ErrorIs(t, m.MarkPaid(), milestone.ErrNotReleasable)
}

func TestCancelFromAnyNonTerminalState(t *testing.T) {
	for _, from := range []milestone.Status{
		milestone.StatusPending,
		milestone.StatusSubmitted,
		milestone.StatusApproved,
		milestone.StatusReleaseRequested,
		milestone.StatusRejected,
	} {
		m := newMilestone(t)
		m.Status = from
		require.NoError(t, m.Cancel(), "from %s", from)
	}

	m := newMilestone(t)
	m.Status = milestone.StatusCancelled
	require.ErrorIs(t, m.Cancel(), milestone.ErrInvalidTransition)
}

func TestIllegalEdges(t *testing.T) {
	m := newMilestone(t)
	require.ErrorIs(t, m.Approve(), milestone.ErrInvalidTransition)
	require.ErrorIs(t, m.RequestRelease(), milestone.ErrInvalidTransition)
	require.ErrorIs(t, m.Reject(), milestone.ErrInvalidTransition)
}
