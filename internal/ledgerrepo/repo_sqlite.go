package ledgerrepo

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-petr/minutes-ledger/internal/domain"
	"github.com/go-petr/minutes-ledger/pkg/dbpkg"
	"github.com/go-petr/minutes-ledger/pkg/errorspkg"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// RepoSQLite facilitates ledger repository layer logic on SQLite.
//
// Balances are stored as decimal text and computed in Go. The connection must be opened
// with dbpkg.SetupSQLite so that every transaction starts with BEGIN IMMEDIATE.
type RepoSQLite struct {
	db   dbpkg.SQLInterface
	conn *sql.DB
}

// NewRepoSQLite returns RepoSQLite with connection to start transactions.
func NewRepoSQLite(db *sql.DB) *RepoSQLite {
	return &RepoSQLite{
		db:   db,
		conn: db,
	}
}

func newTxRepoSQLite(tx *sql.Tx) *RepoSQLite {
	return &RepoSQLite{db: tx}
}

const sqliteCreateAccountQuery = `
INSERT INTO accounts (owner, balance, created_at, updated_at)
VALUES (?, ?, ?, ?)
`

// Create opens the account of owner with the initial balance.
func (r *RepoSQLite) Create(ctx context.Context, owner string, initialBalance decimal.Decimal) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		l.Error().Err(errors.WithStack(err)).Send()
		return domain.Account{}, errorspkg.ErrInternal
	}

	defer rollback(l, tx)

	now := time.Now().UTC()

	res, err := tx.ExecContext(ctx, sqliteCreateAccountQuery, owner, initialBalance.String(), now, now)
	if err != nil {
		l.Error().Err(errors.WithStack(err)).Msgf("Create(ctx, %q, %s)", owner, initialBalance)
		return domain.Account{}, constraintErr(err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		l.Error().Err(errors.WithStack(err)).Send()
		return domain.Account{}, errorspkg.ErrInternal
	}

	txRepo := newTxRepoSQLite(tx)

	if initialBalance.IsPositive() {
		_, err = txRepo.createEntry(ctx, domain.ApplyEntryParams{
			AccountID:   id,
			Amount:      initialBalance,
			Kind:        domain.KindCredit,
			Description: domain.WelcomeCreditsDescription,
		}, now)
		if err != nil {
			return domain.Account{}, err
		}
	}

	a, err := txRepo.Get(ctx, id)
	if err != nil {
		return domain.Account{}, err
	}

	if err := tx.Commit(); err != nil {
		l.Error().Err(errors.WithStack(err)).Send()
		return domain.Account{}, errorspkg.ErrInternal
	}

	return a, nil
}

const sqliteGetQuery = `
SELECT ` + accountColumns + `
FROM accounts
WHERE id = ?
`

// Get returns the account with the given id.
func (r *RepoSQLite) Get(ctx context.Context, id int64) (domain.Account, error) {
	return r.getAccount(ctx, sqliteGetQuery, id)
}

const sqliteGetByOwnerQuery = `
SELECT ` + accountColumns + `
FROM accounts
WHERE owner = ?
`

// GetByOwner returns the account of the given owner.
func (r *RepoSQLite) GetByOwner(ctx context.Context, owner string) (domain.Account, error) {
	return r.getAccount(ctx, sqliteGetByOwnerQuery, owner)
}

func (r *RepoSQLite) getAccount(ctx context.Context, query string, arg any) (domain.Account, error) {
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

const sqliteSetBalanceQuery = `
UPDATE accounts
SET balance = ?, updated_at = ?
WHERE id = ?
`

func (r *RepoSQLite) setBalance(ctx context.Context, id int64, balance decimal.Decimal, now time.Time) error {
	l := zerolog.Ctx(ctx)

	res, err := r.db.ExecContext(ctx, sqliteSetBalanceQuery, balance.String(), now, id)
	if err != nil {
		l.Error().Err(errors.WithStack(err)).Msgf("setBalance(ctx, %d, %s)", id, balance)
		return constraintErr(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		l.Error().Err(errors.WithStack(err)).Send()
		return errorspkg.ErrInternal
	}

	if n == 0 {
		return domain.ErrAccountNotFound
	}

	return nil
}

const sqliteCreateEntryQuery = `
INSERT INTO entries (account_id, amount, kind, description, created_at)
VALUES (?, ?, ?, ?, ?)
`

func (r *RepoSQLite) createEntry(ctx context.Context, arg domain.ApplyEntryParams, now time.Time) (domain.Entry, error) {
	l := zerolog.Ctx(ctx)

	res, err := r.db.ExecContext(ctx, sqliteCreateEntryQuery,
		arg.AccountID,
		arg.Amount.String(),
		string(arg.Kind),
		arg.Description,
		now,
	)
	if err != nil {
		l.Error().Err(errors.WithStack(err)).Msgf("createEntry(ctx, %+v)", arg)
		return domain.Entry{}, constraintErr(err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		l.Error().Err(errors.WithStack(err)).Send()
		return domain.Entry{}, errorspkg.ErrInternal
	}

	e := domain.Entry{
		ID:          id,
		AccountID:   arg.AccountID,
		Amount:      arg.Amount,
		Kind:        arg.Kind,
		Description: arg.Description,
		CreatedAt:   now,
	}

	return e, nil
}

// Apply changes the account balance by arg.Amount and records the entry.
//
// The transaction holds the database write lock from its first statement, so concurrent
// writers, even in other processes, cannot observe the balance between check and update.
func (r *RepoSQLite) Apply(ctx context.Context, arg domain.ApplyEntryParams) (domain.LedgerTxResult, error) {
	l := zerolog.Ctx(ctx)

	var result domain.LedgerTxResult

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		l.Error().Err(errors.WithStack(err)).Send()
		return result, errorspkg.ErrInternal
	}

	defer rollback(l, tx)

	txRepo := newTxRepoSQLite(tx)

	current, err := txRepo.Get(ctx, arg.AccountID)
	if err != nil {
		return result, err
	}

	next := current.Balance.Add(arg.Amount)
	if next.IsNegative() {
		return result, &domain.InsufficientBalanceError{
			Available: current.Balance,
			Required:  arg.Amount.Neg(),
		}
	}

	now := time.Now().UTC()

	if err := txRepo.setBalance(ctx, arg.AccountID, next, now); err != nil {
		return result, err
	}

	entry, err := txRepo.createEntry(ctx, arg, now)
	if err != nil {
		return result, err
	}

	if err := tx.Commit(); err != nil {
		l.Error().Err(errors.WithStack(err)).Send()
		return result, errorspkg.ErrInternal
	}

	current.Balance = next
	current.UpdatedAt = now

	result.Account = current
	result.Entry = entry

	return result, nil
}

const sqliteListEntriesQuery = `
SELECT ` + entryColumns + `
FROM entries
WHERE account_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?
`

// ListEntries returns up to limit entries of the account, newest first.
func (r *RepoSQLite) ListEntries(ctx context.Context, accountID int64, limit int32) ([]domain.Entry, error) {
	return listEntries(ctx, r.db, sqliteListEntriesQuery, accountID, limit)
}
