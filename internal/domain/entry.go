package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryKind tells whether an entry added or removed minutes.
type EntryKind string

// Entry kinds.
const (
	KindCredit EntryKind = "credit"
	KindDebit  EntryKind = "debit"
)

// Entry is an immutable record of one balance change.
type Entry struct {
	ID          int64           `json:"id"`
	AccountID   int64           `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"` // positive for credits, negative for debits
	Kind        EntryKind       `json:"type"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}
