// Package repository implements the data-access interfaces over GORM and
// Postgres. Store-level failures are translated to domain errors here so
// services never see a driver error.
package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/buildrail/escrow/pkg/domain/common"
	"github.com/buildrail/escrow/pkg/domain/escrow"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// mapError translates a GORM or Postgres error into the domain vocabulary.
// notFound is the entity's own not-found sentinel.
//
// Unique violations are attributed by constraint name: the release key
// means a concurrent release already won, everything else with a unique
// index is a duplicated operation.
func mapError(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		if strings.Contains(pgErr.ConstraintName, "release_key") {
			return fmt.Errorf("%w: %s", escrow.ErrAlreadyReleased, pgErr.ConstraintName)
		}
		return fmt.Errorf("%w: %s", common.ErrDuplicateOperation, pgErr.ConstraintName)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return common.ErrDuplicateOperation
	}
	return err
}
