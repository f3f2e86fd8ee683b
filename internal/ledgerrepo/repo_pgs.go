// Package ledgerrepo manages repository layer of credit accounts and their entries.
package ledgerrepo

import (
	"context"
	"database/sql"

	"github.com/go-petr/minutes-ledger/internal/domain"
	"github.com/go-petr/minutes-ledger/pkg/dbpkg"
	"github.com/go-petr/minutes-ledger/pkg/errorspkg"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// RepoPGS facilitates ledger repository layer logic on PostgreSQL.
type RepoPGS struct {
	db   dbpkg.SQLInterface
	conn *sql.DB
}

// NewTxRepoPGS returns RepoPGS bound to an already started transaction.
func NewTxRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db: db,
	}
}

// NewRepoPGS returns RepoPGS with connection to start transactions.
func NewRepoPGS(db *sql.DB) *RepoPGS {
	return &RepoPGS{
		db:   db,
		conn: db,
	}
}

const accountColumns = `id, owner, balance, created_at, updated_at`

const entryColumns = `id, account_id, amount, kind, description, created_at`

func scanAccount(row interface{ Scan(...any) error }) (domain.Account, error) {
	var a domain.Account

	err := row.Scan(
		&a.ID,
		&a.Owner,
		&a.Balance,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

func scanEntry(row interface{ Scan(...any) error }) (domain.Entry, error) {
	var e domain.Entry

	err := row.Scan(
		&e.ID,
		&e.AccountID,
		&e.Amount,
		&e.Kind,
		&e.Description,
		&e.CreatedAt,
	)

	return e, err
}

func rollback(l *zerolog.Logger, tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		l.Error().Err(errors.WithStack(err)).Send()
	}
}

const createAccountQuery = `
INSERT INTO accounts (owner, balance)
VALUES ($1, $2)
RETURNING ` + accountColumns

// Create opens the account of owner with the initial balance.
//
// A positive initial balance is recorded as a welcome credit entry within the same transaction.
func (r *RepoPGS) Create(ctx context.Context, owner string, initialBalance decimal.Decimal) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		l.Error().Err(errors.WithStack(err)).Send()
		return domain.Account{}, errorspkg.ErrInternal
	}

	defer rollback(l, tx)

	a, err := scanAccount(tx.QueryRowContext(ctx, createAccountQuery, owner, initialBalance))
	if err != nil {
		l.Error().Err(errors.WithStack(err)).Msgf("Create(ctx, %q, %s)", owner, initialBalance)
		return domain.Account{}, constraintErr(err)
	}

	if initialBalance.IsPositive() {
		_, err = NewTxRepoPGS(tx).createEntry(ctx, domain.ApplyEntryParams{
			AccountID:   a.ID,
			Amount:      initialBalance,
			Kind:        domain.KindCredit,
			Description: domain.WelcomeCreditsDescription,
		})
		if err != nil {
			return domain.Account{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		l.Error().Err(errors.WithStack(err)).Send()
		return domain.Account{}, errorspkg.ErrInternal
	}

	return a, nil
}

const getQuery = `
SELECT ` + accountColumns + `
FROM accounts
WHERE id = $1
`

// Get returns the account with the given id.
func (r *RepoPGS) Get(ctx context.Context, id int64) (domain.Account, error) {
	return r.getAccount(ctx, getQuery, id)
}

const getByOwnerQuery = `
SELECT ` + accountColumns + `
FROM accounts
WHERE owner = $1
`

// GetByOwner returns the account of the given owner.
func (r *RepoPGS) GetByOwner(ctx context.Context, owner string) (domain.Account, error) {
	return r.getAccount(ctx, getByOwnerQuery, owner)
}

const getForUpdateQuery = `
SELECT ` + accountColumns + `
FROM accounts
WHERE id = $1
FOR NO KEY UPDATE
`

func (r *RepoPGS) getAccount(ctx context.Context, query string, arg any) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			l.Info().Err(err).Msgf("account %v", arg)
			return a, domain.ErrAccountNotFound
		}

		l.Error().Err(errors.WithStack(err)).Send()

		return a, errorspkg.ErrInternal
	}

	return a, nil
}

const addBalanceQuery = `
UPDATE accounts
SET balance = balance + $1, updated_at = now()
WHERE id = $2
RETURNING ` + accountColumns

func (r *RepoPGS) addBalance(ctx context.Context, id int64, amount decimal.Decimal) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	a, err := scanAccount(r.db.QueryRowContext(ctx, addBalanceQuery, amount, id))
	if err != nil {
		l.Error().Err(errors.WithStack(err)).Msgf("addBalance(ctx, %d, %s)", id, amount)

		if errors.Is(err, sql.ErrNoRows) {
			return a, domain.ErrAccountNotFound
		}

		return a, constraintErr(err)
	}

	return a, nil
}

const createEntryQuery = `
INSERT INTO entries (account_id, amount, kind, description)
VALUES ($1, $2, $3, $4)
RETURNING ` + entryColumns

func (r *RepoPGS) createEntry(ctx context.Context, arg domain.ApplyEntryParams) (domain.Entry, error) {
	l := zerolog.Ctx(ctx)

	e, err := scanEntry(r.db.QueryRowContext(ctx, createEntryQuery,
		arg.AccountID,
		arg.Amount,
		string(arg.Kind),
		arg.Description,
	))
	if err != nil {
		l.Error().Err(errors.WithStack(err)).Msgf("createEntry(ctx, %+v)", arg)
		return e, constraintErr(err)
	}

	return e, nil
}

// Apply changes the account balance by arg.Amount and records the entry.
//
// The account row is locked for the duration of the transaction, so the sufficiency check
// and the update see the same balance. Either both the balance change and the entry are
// committed or neither is.
func (r *RepoPGS) Apply(ctx context.Context, arg domain.ApplyEntryParams) (domain.LedgerTxResult, error) {
	l := zerolog.Ctx(ctx)

	var result domain.LedgerTxResult

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		l.Error().Err(errors.WithStack(err)).Send()
		return result, errorspkg.ErrInternal
	}

	defer rollback(l, tx)

	txRepo := NewTxRepoPGS(tx)

	current, err := txRepo.getAccount(ctx, getForUpdateQuery, arg.AccountID)
	if err != nil {
		return result, err
	}

	if current.Balance.Add(arg.Amount).IsNegative() {
		return result, &domain.InsufficientBalanceError{
			Available: current.Balance,
			Required:  arg.Amount.Neg(),
		}
	}

	result.Account, err = txRepo.addBalance(ctx, arg.AccountID, arg.Amount)
	if err != nil {
		return domain.LedgerTxResult{}, err
	}

	result.Entry, err = txRepo.createEntry(ctx, arg)
	if err != nil {
		return domain.LedgerTxResult{}, err
	}

	if err := tx.Commit(); err != nil {
		l.Error().Err(errors.WithStack(err)).Send()
		return domain.LedgerTxResult{}, errorspkg.ErrInternal
	}

	return result, nil
}

const listEntriesQuery = `
SELECT ` + entryColumns + `
FROM entries
WHERE account_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`

// ListEntries returns up to limit entries of the account, newest first.
func (r *RepoPGS) ListEntries(ctx context.Context, accountID int64, limit int32) ([]domain.Entry, error) {
	return listEntries(ctx, r.db, listEntriesQuery, accountID, limit)
}

func listEntries(ctx context.Context, db dbpkg.SQLInterface, query string, accountID int64, limit int32) ([]domain.Entry, error) {
	l := zerolog.Ctx(ctx)

	rows, err := db.QueryContext(ctx, query, accountID, limit)
	if err != nil {
		l.Error().Err(errors.WithStack(err)).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.Entry{}

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			l.Error().Err(errors.WithStack(err)).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, e)
	}

	if err := rows.Close(); err != nil {
		l.Error().Err(errors.WithStack(err)).Send()
		return nil, errorspkg.ErrInternal
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(errors.WithStack(err)).Send()
		return nil, errorspkg.ErrInternal
	}

	return items, nil
}
