// Package domain aggregates the error taxonomy across the domain packages.
package domain

import (
	"errors"

	"github.com/buildrail/escrow/pkg/domain/common"
	"github.com/buildrail/escrow/pkg/domain/dispute"
	"github.com/buildrail/escrow/pkg/domain/escrow"
	"github.com/buildrail/escrow/pkg/domain/milestone"
	"github.com/buildrail/escrow/pkg/domain/payout"
	"github.com/buildrail/escrow/pkg/domain/project"
	"github.com/buildrail/escrow/pkg/money"
	"github.com/buildrail/escrow/pkg/provider/payment"
)

// KindOf classifies a domain error into the taxonomy the HTTP layer and
// callers react to. Wrapped errors are matched with errors.Is, so services
// are free to annotate.
func KindOf(err error) common.Kind {
	switch {
	case err == nil:
		return common.KindUnknown
	case errors.Is(err, escrow.ErrLedgerCorruption):
		return common.KindIntegrity
	case errors.Is(err, common.ErrInvalidAmount),
		errors.Is(err, common.ErrMissingIdempotencyKey),
		errors.Is(err, money.ErrInvalidCurrency),
		errors.Is(err, money.ErrMismatchedCurrencies),
		errors.Is(err, money.ErrAmountExceedsMaxSafeInt):
		return common.KindValidation
	case errors.Is(err, common.ErrDuplicateOperation),
		errors.Is(err, escrow.ErrAlreadyReleased),
		errors.Is(err, milestone.ErrInvalidTransition),
		errors.Is(err, milestone.ErrNotReleasable),
		errors.Is(err, payout.ErrInvalidTransition),
		errors.Is(err, payout.ErrRetryExhausted),
		errors.Is(err, project.ErrInvalidTransition),
		errors.Is(err, dispute.ErrProjectGated),
		errors.Is(err, dispute.ErrDisputeClosed),
		errors.Is(err, dispute.ErrInvalidOutcome):
		return common.KindStateConflict
	case errors.Is(err, escrow.ErrInsufficientFunds),
		errors.Is(err, escrow.ErrAccountClosed),
		errors.Is(err, escrow.ErrAccountFrozen),
		errors.Is(err, project.ErrNoContractor):
		return common.KindResource
	case errors.Is(err, payment.ErrGatewayUnavailable),
		errors.Is(err, payment.ErrPayoutDeclined):
		return common.KindExternal
	default:
		return common.KindUnknown
	}
}

// IsNotFound reports whether the error is any of the per-entity not-found
// sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound) ||
		errors.Is(err, escrow.ErrAccountNotFound) ||
		errors.Is(err, milestone.ErrMilestoneNotFound) ||
		errors.Is(err, dispute.ErrDisputeNotFound) ||
		errors.Is(err, payout.ErrPayoutNotFound) ||
		errors.Is(err, project.ErrProjectNotFound)
}
