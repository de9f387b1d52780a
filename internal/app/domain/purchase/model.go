// Package purchase defines pixel pack pricing and the purchase audit record.
package purchase

import "time"

// Transaction statuses.
const (
	StatusCompleted = "completed"
	// StatusPendingReconcile marks a purchase whose external transfer timed
	// out: the digipogs may have moved even though no confirmation arrived.
	// The balance is not credited until an operator reconciles the attempt
	// against the Formbar side using the idempotency key.
	StatusPendingReconcile = "pending_reconcile"
)

// Pack describes a purchasable pixel bundle.
type Pack struct {
	Size            int
	PricePerPixel   float64
	TotalPrice      int
	DiscountPercent int
}

// Packs is the fixed pricing table, keyed by pack size.
var Packs = map[int]Pack{
	10:  {Size: 10, PricePerPixel: 2.0, TotalPrice: 20, DiscountPercent: 0},
	25:  {Size: 25, PricePerPixel: 1.8, TotalPrice: 45, DiscountPercent: 10},
	50:  {Size: 50, PricePerPixel: 1.7, TotalPrice: 85, DiscountPercent: 15},
	100: {Size: 100, PricePerPixel: 1.6, TotalPrice: 160, DiscountPercent: 20},
}

// PriceFor returns the pricing for a pack size.
func PriceFor(size int) (Pack, bool) {
	pack, ok := Packs[size]
	return pack, ok
}

// Transaction is the immutable audit record of one purchase attempt that
// reached the external transfer stage. Completed transactions are paired
// atomically with the balance credit they account for.
type Transaction struct {
	ID              string
	ParticipantID   string
	PackSize        int
	PixelsGranted   int
	DigipogsSpent   int
	DiscountPercent int
	Status          string
	// IdempotencyKey identifies the transfer attempt towards the external
	// service. One key is generated per attempt and never reused.
	IdempotencyKey string
	CreatedAt      time.Time
}
