// Package participant defines the participant (user) domain model.
package participant

import "time"

// Participant is a person placing pixels. Identity comes from the external
// Formbar account; the pixel balance is owned by the ledger service and is
// never allowed to go negative.
type Participant struct {
	ID           string
	ExternalID   int64 // Formbar account ID
	DisplayName  string
	PixelBalance int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
