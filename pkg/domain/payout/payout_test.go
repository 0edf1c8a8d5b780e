package payout_test

import (
	"testing"
	"time"

	"github.com/buildrail/escrow/pkg/domain/payout"
	"github.com/buildrail/escrow/pkg/money"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPayout(t *testing.T) *payout.Payout {
	t.Helper()
	p, err := payout.New(uuid.New(), nil, money.Must(100, money.USD), "acct_123")
	require.NoError(t, err)
	return p
}

func TestNew(t *testing.T) {
	releaseTx := uuid.New()
	p, err := payout.New(uuid.New(), &releaseTx, money.Must(50, money.USD), "acct_1")
	require.NoError(t, err)
	assert.Equal(t, payout.StatusPending, p.Status)
	assert.Equal(t, &releaseTx, p.ReleaseTransactionID)
	assert.Zero(t, p.Attempts)
	assert.Nil(t, p.ProcessedAt)
}

func TestNew_Validation(t *testing.T) {
	_, err := payout.New(uuid.Nil, nil, money.Must(1, money.USD), "acct")
	require.Error(t, err)

	_, err = payout.New(uuid.New(), nil, money.Zero(money.USD), "acct")
	require.Error(t, err)
}

func TestHappyPath(t *testing.T) {
	p := newPayout(t)
	require.NoError(t, p.Approve())
	require.NoError(t, p.StartProcessing())
	assert.Equal(t, 1, p.Attempts)

	at := time.Now()
	require.NoError(t, p.Complete(at))
	assert.Equal(t, payout.StatusCompleted, p.Status)
	require.NotNil(t, p.ProcessedAt)
	assert.Equal(t, at, *p.ProcessedAt)
}

func TestCompletedIsTerminal(t *testing.T) {
	p := newPayout(t)
	require.NoError(t, p.Approve())
	require.NoError(t, p.StartProcessing())
	require.NoError(t, p.Complete(time.Now()))

	require.ErrorIs(t, p.Hold("nope"), payout.ErrInvalidTransition)
	require.ErrorIs(t, p.Fail("nope"), payout.ErrInvalidTransition)
	require.ErrorIs(t, p.Complete(time.Now()), payout.ErrInvalidTransition)
}

func TestProcessedAtWrittenOnce(t *testing.T) {
	p := newPayout(t)
	require.NoError(t, p.Approve())
	require.NoError(t, p.StartProcessing())
	first := time.Now()
	require.NoError(t, p.Complete(first))

	err := p.Complete(time.Now().Add(time.Hour))
	require.ErrorIs(t, err, payout.ErrInvalidTransition)
	assert.Equal(t, first, *p.ProcessedAt)
}

func TestFailAndRetry(t *testing.T) {
	p := newPayout(t)
	require.NoError(t, p.Approve())
	require.NoError(t, p.StartProcessing())
	require.NoError(t, p.Fail("gateway timeout"))
	assert.Equal(t, payout.StatusFailed, p.Status)
	assert.Equal(t, "gateway timeout", p.LastError)

	require.NoError(t, p.Retry(3))
	assert.Equal(t, payout.StatusPending, p.Status)
}

func TestRetryExhaustedParksHeld(t *testing.T) {
	p := newPayout(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Approve())
		require.NoError(t, p.StartProcessing())
		require.NoError(t, p.Fail("declined"))
		if i < 2 {
			require.NoError(t, p.Retry(3))
		}
	}
	assert.Equal(t, 3, p.Attempts)

	err := p.Retry(3)
	require.ErrorIs(t, err, payout.ErrRetryExhausted)
	assert.Equal(t, payout.StatusHeld, p.Status)
}

func TestRetryOnlyFromFailed(t *testing.T) {
	p := newPayout(t)
	require.ErrorIs(t, p.Retry(3), payout.ErrInvalidTransition)
}

func TestHoldAndReleaseHold(t *testing.T) {
	p := newPayout(t)
	require.NoError(t, p.Hold("compliance check"))
	assert.Equal(t, payout.StatusHeld, p.Status)
	assert.Equal(t, "compliance check", p.LastError)

	require.NoError(t, p.ReleaseHold())
	assert.Equal(t, payout.StatusPending, p.Status)

	require.ErrorIs(t, p.ReleaseHold(), payout.ErrInvalidTransition)
}

func TestIllegalEdges(t *testing.T) {
	p := newPayout(t)
	require.ErrorIs(t, p.StartProcessing(), payout.ErrInvalidTransition)
	require.ErrorIs(t, p.Complete(time.Now()), payout.ErrInvalidTransition)
	require.ErrorIs(t, p.Fail("x"), payout.ErrInvalidTransition)
}

func TestStatusValid(t *testing.T) {
	assert.True(t, payout.StatusPending.Valid())
	assert.True(t, payout.StatusCompleted.Valid())
	assert.False(t, payout.Status("bogus").Valid())
}
