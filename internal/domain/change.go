package domain

import (
	"encoding/json"
	"time"
)

type ChangeStatus string

const (
	ChangeStatusPending   ChangeStatus = "PENDING"
	ChangeStatusConfirmed ChangeStatus = "CONFIRMED"
	ChangeStatusExpired   ChangeStatus = "EXPIRED"
	ChangeStatusFailed    ChangeStatus = "FAILED"
)

type ChangeType string

const (
	ChangeTypeDate      ChangeType = "date"
	ChangeTypeTime      ChangeType = "time"
	ChangeTypePassenger ChangeType = "passenger"
	ChangeTypeRoute     ChangeType = "route"
)

func ValidChangeType(t ChangeType) bool {
	switch t {
	case ChangeTypeDate, ChangeTypeTime, ChangeTypePassenger, ChangeTypeRoute:
		return true
	}
	return false
}

type ChangeRequest struct {
	ID               int64
	ExternalID       string
	UserID           string
	OrderID          string
	ChangeType       ChangeType
	Status           ChangeStatus
	RequestedChanges json.RawMessage
	Reason           string
	BookingSnapshot  json.RawMessage
	SelectedOfferID  string
	Confirmation     json.RawMessage
	OffersExpireAt   time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ConfirmedAt      *time.Time
}
