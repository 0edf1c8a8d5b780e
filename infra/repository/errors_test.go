package repository

import (
	"errors"
	"testing"

	"github.com/buildrail/escrow/pkg/domain/common"
	"github.com/buildrail/escrow/pkg/domain/escrow"
	payoutdomain "github.com/buildrail/escrow/pkg/domain/payout"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{
		Code:           pgerrcode.UniqueViolation,
		ConstraintName: constraint,
	}
}

func TestMapError(t *testing.T) {
	passthrough := errors.New("connection reset")

	tests := []struct {
		name     string
		in       error
		notFound error
		want     error
	}{
		{"nil stays nil", nil, common.ErrNotFound, nil},
		{"record not found becomes sentinel", gorm.ErrRecordNotFound, payoutdomain.ErrPayoutNotFound, payoutdomain.ErrPayoutNotFound},
		{"release key violation", uniqueViolation("idx_transactions_release_key"), common.ErrNotFound, escrow.ErrAlreadyReleased},
		{"idempotency key violation", uniqueViolation("idx_transactions_idempotency_key"), common.ErrNotFound, common.ErrDuplicateOperation},
		{"release transaction violation", uniqueViolation("idx_payouts_release_transaction_id"), payoutdomain.ErrPayoutNotFound, common.ErrDuplicateOperation},
		{"translated duplicate key", gorm.ErrDuplicatedKey, common.ErrNotFound, common.ErrDuplicateOperation},
		{"unknown errors pass through", passthrough, common.ErrNotFound, passthrough},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.in, tt.notFound)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}
