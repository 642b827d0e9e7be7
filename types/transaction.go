package types

import "time"

// Transaction types. No other value is ever stored.
const (
	TypeIncome   = "INCOME"
	TypeExpenses = "EXPENSES"
)

// Transaction represents a single money movement owned by a user.
type Transaction struct {
	// ID is the unique identifier of the transaction.
	ID string `json:"id" db:"id"`

	// Title is a short human-readable label, at most 50 characters.
	Title string `json:"title" db:"title"`

	// Amount is the transaction value. It is always positive; the
	// direction relative to the balance is carried by Type.
	Amount float64 `json:"amount" db:"amount"`

	// Type is either "INCOME" or "EXPENSES".
	Type string `json:"type" db:"type"`

	// Date is the logical date of the transaction. It defaults to the
	// creation time when the client does not supply one.
	Date time.Time `json:"date" db:"date"`

	// Created is the creation timestamp in epoch milliseconds. Listings
	// are ordered by this field, most recent first.
	Created int64 `json:"created" db:"created"`

	// LastUpdated is set on every mutation.
	LastUpdated time.Time `json:"lastUpdated" db:"last_updated"`

	// UserID references the owning user. It is fixed at creation.
	UserID int `json:"userId" db:"user_id"`
}

// Summary aggregates a user's full transaction set.
type Summary struct {
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
	Balance  float64 `json:"balance"`
}
