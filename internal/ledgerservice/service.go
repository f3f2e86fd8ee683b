// Package ledgerservice manages business logic layer of the minutes ledger.
package ledgerservice

import (
	"context"
	"fmt"

	"github.com/go-petr/minutes-ledger/internal/domain"
	"github.com/go-petr/minutes-ledger/pkg/minutespkg"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Repo provides data access layer interface needed by ledger service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package ledgerservice
type Repo interface {
	Create(ctx context.Context, owner string, initialBalance decimal.Decimal) (domain.Account, error)
	Get(ctx context.Context, id int64) (domain.Account, error)
	GetByOwner(ctx context.Context, owner string) (domain.Account, error)
	Apply(ctx context.Context, arg domain.ApplyEntryParams) (domain.LedgerTxResult, error)
	ListEntries(ctx context.Context, accountID int64, limit int32) ([]domain.Entry, error)
}

// Publisher announces committed ledger entries.
type Publisher interface {
	Publish(ctx context.Context, event domain.LedgerEvent) error
}

// Service facilitates ledger service layer logic.
type Service struct {
	repo      Repo
	publisher Publisher
	locks     *accountLocks
}

// New return ledger service struct to manage ledger bussines logic.
func New(lr Repo, p Publisher) *Service {
	return &Service{
		repo:      lr,
		publisher: p,
		locks:     newAccountLocks(),
	}
}

func validAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && minutespkg.HasValidScale(amount)
}

// CreateAccount opens the account of owner with the given initial balance.
func (s *Service) CreateAccount(ctx context.Context, owner string, initialBalance decimal.Decimal) (domain.Account, error) {
	if initialBalance.IsNegative() || !minutespkg.HasValidScale(initialBalance) {
		return domain.Account{}, domain.ErrInvalidAmount
	}

	return s.repo.Create(ctx, owner, initialBalance)
}

// Get returns the account with the given id.
func (s *Service) Get(ctx context.Context, id int64) (domain.Account, error) {
	return s.repo.Get(ctx, id)
}

// GetByOwner returns the account of the given owner.
func (s *Service) GetByOwner(ctx context.Context, owner string) (domain.Account, error) {
	return s.repo.GetByOwner(ctx, owner)
}

// Balance returns the current balance of the account.
func (s *Service) Balance(ctx context.Context, id int64) (decimal.Decimal, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}

	return a.Balance, nil
}

// Debit removes amount minutes from the account.
//
// It fails with *domain.InsufficientBalanceError when the balance is lower than amount,
// leaving the account untouched.
func (s *Service) Debit(ctx context.Context, id int64, amount decimal.Decimal, description string) (domain.LedgerTxResult, error) {
	if !validAmount(amount) {
		zerolog.Ctx(ctx).Info().Msgf("debit of %s rejected", amount)
		return domain.LedgerTxResult{}, domain.ErrInvalidAmount
	}

	if description == "" {
		description = fmt.Sprintf("Used %s minute(s)", amount)
	}

	return s.apply(ctx, domain.ApplyEntryParams{
		AccountID:   id,
		Amount:      amount.Neg(),
		Kind:        domain.KindDebit,
		Description: description,
	})
}

// Credit adds amount minutes to the account.
func (s *Service) Credit(ctx context.Context, id int64, amount decimal.Decimal, description string) (domain.LedgerTxResult, error) {
	if !validAmount(amount) {
		zerolog.Ctx(ctx).Info().Msgf("credit of %s rejected", amount)
		return domain.LedgerTxResult{}, domain.ErrInvalidAmount
	}

	if description == "" {
		description = fmt.Sprintf("Added %s minute(s)", amount)
	}

	return s.apply(ctx, domain.ApplyEntryParams{
		AccountID:   id,
		Amount:      amount,
		Kind:        domain.KindCredit,
		Description: description,
	})
}

func (s *Service) apply(ctx context.Context, arg domain.ApplyEntryParams) (domain.LedgerTxResult, error) {
	l := zerolog.Ctx(ctx)

	unlock, err := s.locks.lock(ctx, arg.AccountID)
	if err != nil {
		l.Warn().Err(err).Int64("account_id", arg.AccountID).Msg("gave up waiting for account lock")
		return domain.LedgerTxResult{}, err
	}
	defer unlock()

	res, err := s.repo.Apply(ctx, arg)
	if err != nil {
		return domain.LedgerTxResult{}, err
	}

	// Published under the lock to keep per-account event order.
	if err := s.publisher.Publish(ctx, domain.NewLedgerEvent(res)); err != nil {
		l.Warn().Err(err).Int64("entry_id", res.Entry.ID).Msg("ledger event not published")
	}

	return res, nil
}

// History returns up to limit latest entries of the account, newest first.
func (s *Service) History(ctx context.Context, id int64, limit int32) ([]domain.Entry, error) {
	if limit <= 0 {
		return nil, domain.ErrInvalidLimit
	}

	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}

	return s.repo.ListEntries(ctx, id, limit)
}
