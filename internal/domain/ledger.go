package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount indicates a non-positive amount or one with too many decimals.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInsufficientBalance indicates that the account does not have sufficient balance.
	ErrInsufficientBalance = errors.New("insufficient credits")
	// ErrInvalidLimit indicates a non-positive history limit.
	ErrInvalidLimit = errors.New("invalid limit")
)

// InsufficientBalanceError reports a rejected debit together with the numbers involved.
type InsufficientBalanceError struct {
	Available decimal.Decimal
	Required  decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("%v: available %s, required %s", ErrInsufficientBalance, e.Available, e.Required)
}

// Unwrap makes errors.Is(err, ErrInsufficientBalance) hold.
func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// ApplyEntryParams is the input data for the ledger transaction.
type ApplyEntryParams struct {
	AccountID   int64
	Amount      decimal.Decimal // signed
	Kind        EntryKind
	Description string
}

// LedgerTxResult is the result of the ledger transaction.
type LedgerTxResult struct {
	Account Account `json:"account"`
	Entry   Entry   `json:"entry"`
}

// LedgerEvent is published after an entry has been committed.
type LedgerEvent struct {
	EntryID     int64           `json:"entry_id"`
	AccountID   int64           `json:"account_id"`
	Owner       string          `json:"owner"`
	Kind        EntryKind       `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Balance     decimal.Decimal `json:"balance"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}

// NewLedgerEvent builds the event describing a committed ledger transaction.
func NewLedgerEvent(res LedgerTxResult) LedgerEvent {
	return LedgerEvent{
		EntryID:     res.Entry.ID,
		AccountID:   res.Account.ID,
		Owner:       res.Account.Owner,
		Kind:        res.Entry.Kind,
		Amount:      res.Entry.Amount,
		Balance:     res.Account.Balance,
		Description: res.Entry.Description,
		CreatedAt:   res.Entry.CreatedAt,
	}
}

// WelcomeCreditsDescription describes the entry granting the initial balance.
const WelcomeCreditsDescription = "Free trial welcome credits"
