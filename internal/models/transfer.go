package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferStatus is the confirmation state of a transfer.
type TransferStatus string

const (
	StatusPending TransferStatus = "pending"
	StatusReached TransferStatus = "reached"
)

// Valid reports whether s is one of the defined statuses.
func (s TransferStatus) Valid() bool {
	return s == StatusPending || s == StatusReached
}

// Toggled returns the opposite status. There is no terminal state.
func (s TransferStatus) Toggled() TransferStatus {
	if s == StatusReached {
		return StatusPending
	}
	return StatusReached
}

// Transfer is a money-transfer request recorded by a submitter.
type Transfer struct {
	ID           string          `json:"id"`
	CustomerName string          `json:"customerName"`
	BankAccount  string          `json:"bankAccount"`
	Amount       decimal.Decimal `json:"amount"`
	CreatedAt    time.Time       `json:"createdAt"`
	// CreatedBy is a weak reference to User.ID; CreatorName keeps the
	// display name as it was at creation time.
	CreatedBy   string         `json:"createdBy"`
	CreatorName string         `json:"creatorName"`
	Status      TransferStatus `json:"status"`
	UpdatedAt   *time.Time     `json:"updatedAt,omitempty"`
	// Version is incremented on every status change and used for
	// conditional updates.
	Version int64 `json:"version"`
}

// Clone returns a copy of t that shares no pointers with it.
func (t Transfer) Clone() Transfer {
	if t.UpdatedAt != nil {
		u := *t.UpdatedAt
		t.UpdatedAt = &u
	}
	return t
}
