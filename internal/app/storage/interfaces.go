// Package storage declares the persistence interfaces implemented by the
// memory and postgres backends.
package storage

import (
	"context"
	"errors"

	"github.com/yorktechapps/pixelplace/internal/app/domain/canvas"
	"github.com/yorktechapps/pixelplace/internal/app/domain/participant"
	"github.com/yorktechapps/pixelplace/internal/app/domain/purchase"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// EventStore is the append-only log of pixel placements. There is no update
// or delete: the canvas state is a projection over this log.
type EventStore interface {
	// AppendPixelEvent durably appends one placement and assigns ID, Seq
	// and PlacedAt. Seq strictly increases with insertion order.
	AppendPixelEvent(ctx context.Context, ev canvas.PixelEvent) (canvas.PixelEvent, error)
	// ListPixelEvents returns every placement ordered by (PlacedAt, Seq).
	// The result is finite and replayable any number of times.
	ListPixelEvents(ctx context.Context) ([]canvas.PixelEvent, error)
}

// ParticipantStore persists participants and owns all balance mutation.
type ParticipantStore interface {
	// UpsertParticipant creates the participant on first login or refreshes
	// the display name on subsequent logins, keyed by ExternalID.
	UpsertParticipant(ctx context.Context, p participant.Participant) (participant.Participant, error)
	GetParticipant(ctx context.Context, id string) (participant.Participant, error)

	// DebitPixelBalance decrements the balance by exactly one as a single
	// conditional mutation: it applies only while the balance is positive.
	// Concurrent debits must never drive the balance below zero.
	DebitPixelBalance(ctx context.Context, id string) (applied bool, newBalance int, err error)

	// CreditPixelBalance adds amount (> 0) to the balance.
	CreditPixelBalance(ctx context.Context, id string, amount int) (newBalance int, err error)

	// CreditPixelsWithTransaction credits the balance and records the audit
	// transaction as one atomic unit: either both apply or neither does.
	CreditPixelsWithTransaction(ctx context.Context, id string, amount int, tx purchase.Transaction) (newBalance int, created purchase.Transaction, err error)
}

// TransactionStore persists purchase audit records.
type TransactionStore interface {
	// CreatePurchaseTransaction records an attempt that did not credit the
	// balance (a timeout parked for reconciliation). Completed purchases go
	// through CreditPixelsWithTransaction instead.
	CreatePurchaseTransaction(ctx context.Context, tx purchase.Transaction) (purchase.Transaction, error)
	ListPurchaseTransactions(ctx context.Context, participantID string) ([]purchase.Transaction, error)
}
