package domain

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Account is a customer's wallet. Balance is stored in minor units (cents)
// and never goes below zero at a committed state.
type Account struct {
	ID            int64     `json:"id"`
	AccountNumber string    `json:"account_number"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	Balance       int64     `json:"balance"`
	Currency      Currency  `json:"currency"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

var titleCaser = cases.Title(language.Und)

// DisplayName is the name shown to counterparties.
func (a Account) DisplayName() string {
	full := strings.Join(strings.Fields(a.FirstName+" "+a.LastName), " ")
	return titleCaser.String(full)
}

type EntryStatus string

const (
	EntrySuccess EntryStatus = "Success"
	EntryFailed  EntryStatus = "Failed"
)

// LedgerEntry records one completed movement of money. Entries are
// append-only. A balance top-up has SenderAccountID == ReceiverAccountID.
type LedgerEntry struct {
	ID                int64       `json:"id"`
	SenderAccountID   int64       `json:"sender_account_id"`
	ReceiverAccountID int64       `json:"receiver_account_id"`
	Amount            int64       `json:"amount"`
	Description       string      `json:"description,omitempty"`
	Status            EntryStatus `json:"status"`
	CreatedAt         time.Time   `json:"created_at"`
}

// IsTopUp reports whether the entry credits an account from outside.
func (e LedgerEntry) IsTopUp() bool {
	return e.SenderAccountID == e.ReceiverAccountID
}

// Notification is an in-app message for an account holder.
type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdDate"`
}

// PaymentEvent remembers a processor event that has already been applied.
type PaymentEvent struct {
	EventID     string    `json:"event_id"`
	AccountID   int64     `json:"account_id"`
	Amount      int64     `json:"amount"`
	ProcessedAt time.Time `json:"processed_at"`
}

// TransferOutcome is everything a caller needs after a successful transfer,
// enough to render a receipt and build push payloads without another read.
type TransferOutcome struct {
	EntryID            int64    `json:"entry_id"`
	SenderID           int64    `json:"sender_id"`
	SenderName         string   `json:"sender_name"`
	SenderNewBalance   int64    `json:"sender_new_balance"`
	ReceiverID         int64    `json:"receiver_id"`
	ReceiverName       string   `json:"receiver_name"`
	ReceiverNewBalance int64    `json:"receiver_new_balance"`
	Amount             int64    `json:"amount"`
	Currency           Currency `json:"currency"`
	Message            string   `json:"message"`
}

type PushType string

const (
	PushSent     PushType = "sent"
	PushReceived PushType = "received"
	PushTopUp    PushType = "topup"
)

// PushEvent is the "balance changed" message handed to the dispatcher after
// commit.
type PushEvent struct {
	ID               string    `json:"id"`
	Type             PushType  `json:"type"`
	UserID           int64     `json:"userId"`
	CounterpartyName string    `json:"counterpartyName"`
	Amount           string    `json:"amount"`
	NewBalance       string    `json:"newBalance"`
	Timestamp        time.Time `json:"timestamp"`
}
