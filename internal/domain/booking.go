package domain

import (
	"encoding/json"
	"time"
)

type Booking struct {
	ID            int64
	OrderID       string
	UserID        string
	Status        string
	TotalAmount   string
	TotalCurrency string
	Metadata      json.RawMessage
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AllowsChanges reports whether the booking is still in a state where the
// airline accepts modifications.
func (b *Booking) AllowsChanges() bool {
	switch b.Status {
	case "confirmed", "ticketed":
		return true
	default:
		return false
	}
}
