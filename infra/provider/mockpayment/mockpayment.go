// Package mockpayment simulates the payment gateway for tests and local
// development. Payouts settle asynchronously after a short delay so the
// dispatch flow exercises the same pending-then-poll path a real rail has.
package mockpayment

import (
	"context"
	"sync"
	"time"

	"github.com/buildrail/escrow/pkg/provider/payment"
)

// MockPaymentGateway is an in-memory payment.Gateway. Not for production.
type MockPaymentGateway struct {
	mu      sync.Mutex
	payouts map[string]payment.Status

	// SettleDelay is how long a payout stays pending before completing.
	// Zero means payouts complete on the initiate call.
	SettleDelay time.Duration

	// Decline forces every payout to be declined. For failure-path tests.
	Decline bool

	// Unavailable makes every call fail with ErrGatewayUnavailable.
	Unavailable bool
}

// New creates a gateway that settles payouts immediately.
func New() *MockPaymentGateway {
	return &MockPaymentGateway{payouts: make(map[string]payment.Status)}
}

// InitiatePayout records the payout and schedules its settlement. The
// idempotency key doubles as the provider reference, so re-sending the same
// payout lands on the same gateway-side record.
func (m *MockPaymentGateway) InitiatePayout(
	ctx context.Context,
	params *payment.InitiatePayoutParams,
) (*payment.InitiatePayoutResponse, error) {
	if m.Unavailable {
		return nil, payment.ErrGatewayUnavailable
	}
	if m.Decline {
		return &payment.InitiatePayoutResponse{
			ProviderRef: "mock_" + params.IdempotencyKey,
			Status:      payment.StatusDeclined,
		}, nil
	}

	ref := "mock_" + params.IdempotencyKey
	m.mu.Lock()
	if status, ok := m.payouts[ref]; ok {
		m.mu.Unlock()
		return &payment.InitiatePayoutResponse{ProviderRef: ref, Status: status}, nil
	}
	if m.SettleDelay == 0 {
		m.payouts[ref] = payment.StatusCompleted
		m.mu.Unlock()
		return &payment.InitiatePayoutResponse{ProviderRef: ref, Status: payment.StatusCompleted}, nil
	}
	m.payouts[ref] = payment.StatusPending
	m.mu.Unlock()

	go func() {
		time.Sleep(m.SettleDelay)
		m.mu.Lock()
		m.payouts[ref] = payment.StatusCompleted
		m.mu.Unlock()
	}()
	return &payment.InitiatePayoutResponse{ProviderRef: ref, Status: payment.StatusPending}, nil
}

// GetPayoutStatus reports the gateway-side state of a payout.
func (m *MockPaymentGateway) GetPayoutStatus(ctx context.Context, providerRef string) (payment.Status, error) {
	if m.Unavailable {
		return payment.StatusUnknown, payment.ErrGatewayUnavailable
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	status, ok := m.payouts[providerRef]
	if !ok {
		return payment.StatusUnknown, nil
	}
	return status, nil
}

var _ payment.Gateway = (*MockPaymentGateway)(nil)
