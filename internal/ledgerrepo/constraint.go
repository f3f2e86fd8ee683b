package ledgerrepo

import (
	"github.com/go-petr/minutes-ledger/internal/domain"
	"github.com/go-petr/minutes-ledger/pkg/dbpkg"
	"github.com/go-petr/minutes-ledger/pkg/errorspkg"
)

// constraintErr maps a violated constraint to its domain error.
// PostgreSQL and SQLite names are both listed.
func constraintErr(err error) error {
	name, ok := dbpkg.ConstraintViolation(err)
	if !ok {
		return errorspkg.ErrInternal
	}

	switch name {
	case "accounts_owner_key", "accounts.owner":
		return domain.ErrAccountAlreadyExists
	case "accounts_owner_fkey", "FOREIGN KEY":
		return domain.ErrOwnerNotFound
	case "accounts_balance_check":
		return domain.ErrInsufficientBalance
	case "entries_account_id_fkey":
		return domain.ErrAccountNotFound
	case "entries_amount_check", "entries_kind_check":
		return domain.ErrInvalidAmount
	}

	return errorspkg.ErrInternal
}
