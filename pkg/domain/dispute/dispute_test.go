package dispute_test

import (
	"testing"

	"github.com/buildrail/escrow/pkg/domain/dispute"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	d, err := dispute.Open(uuid.New(), uuid.New(), "work not delivered")
	require.NoError(t, err)
	assert.Equal(t, dispute.StatusOpen, d.Status)
	assert.True(t, d.Status.Blocking())
	assert.Nil(t, d.ResolvedAt)
}

func TestOpen_Validation(t *testing.T) {
	_, err := dispute.Open(uuid.Nil, uuid.New(), "r")
	require.Error(t, err)

	_, err = dispute.Open(uuid.New(), uuid.Nil, "r")
	require.Error(t, err)
}

func TestStartReview(t *testing.T) {
	d, err := dispute.Open(uuid.New(), uuid.New(), "r")
	require.NoError(t, err)

	require.NoError(t, d.StartReview())
	assert.Equal(t, dispute.StatusUnderReview, d.Status)
	assert.True(t, d.Status.Blocking(), "review keeps the gate closed")

	require.ErrorIs(t, d.StartReview(), dispute.ErrDisputeClosed)
}

func TestResolve(t *testing.T) {
	for _, outcome := range []dispute.Status{dispute.StatusResolved, dispute.StatusDismissed} {
		d, err := dispute.Open(uuid.New(), uuid.New(), "r")
		require.NoError(t, err)

		require.NoError(t, d.Resolve(outcome))
		assert.Equal(t, outcome, d.Status)
		assert.False(t, d.Status.Blocking())
		require.NotNil(t, d.ResolvedAt)
	}
}

func TestResolve_FromUnderReview(t *testing.T) {
	d, err := dispute.Open(uuid.New(), uuid.New(), "r")
	require.NoError(t, err)
	require.NoError(t, d.StartReview())
	require.NoError(t, d.Resolve(dispute.StatusResolved))
}

func TestResolve_RejectsBadOutcome(t *testing.T) {
	d, err := dispute.Open(uuid.New(), uuid.New(), "r")
	require.NoError(t, err)
	require.ErrorIs(t, d.Resolve(dispute.StatusOpen), dispute.ErrInvalidOutcome)
}

func TestResolve_ClosedIsFinal(t *testing.T) {
	d, err := dispute.Open(uuid.New(), uuid.New(), "r")
	require.NoError(t, err)
	require.NoError(t, d.Resolve(dispute.StatusDismissed))
	require.ErrorIs(t, d.Resolve(dispute.StatusResolved), dispute.ErrDisputeClosed)
}
