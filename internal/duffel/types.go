package duffel

import (
	"encoding/json"
	"time"
)

type Money struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type ChangeCondition struct {
	Allowed         bool       `json:"allowed"`
	PenaltyAmount   string     `json:"penalty_amount"`
	PenaltyCurrency string     `json:"penalty_currency"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	Restrictions    []string   `json:"restrictions,omitempty"`
}

type OrderConditions struct {
	ChangeBeforeDeparture *ChangeCondition `json:"change_before_departure"`
}

type Order struct {
	ID               string          `json:"id"`
	BookingReference string          `json:"booking_reference"`
	Status           string          `json:"status"`
	TotalAmount      string          `json:"total_amount"`
	TotalCurrency    string          `json:"total_currency"`
	Conditions       OrderConditions `json:"conditions"`
	Slices           json.RawMessage `json:"slices,omitempty"`
}

type SliceAdd struct {
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureDate string `json:"departure_date"`
	CabinClass    string `json:"cabin_class,omitempty"`
}

type SliceChanges struct {
	Add    []SliceAdd `json:"add"`
	Remove []string   `json:"remove"`
}

type PassengerChanges struct {
	Add    []json.RawMessage `json:"add"`
	Remove []string          `json:"remove"`
}

type RequestedChanges struct {
	Slices     SliceChanges     `json:"slices"`
	Passengers PassengerChanges `json:"passengers"`
}

type CreateChangeRequestInput struct {
	OrderID string           `json:"order_id"`
	Changes RequestedChanges `json:"changes"`
}

type ChangeOffer struct {
	ID                  string    `json:"id"`
	ChangeTotalAmount   string    `json:"change_total_amount"`
	ChangeTotalCurrency string    `json:"change_total_currency"`
	NewTotalAmount      string    `json:"new_total_amount"`
	NewTotalCurrency    string    `json:"new_total_currency"`
	Penalty             *Money    `json:"penalty"`
	Refund              *Money    `json:"refund"`
	ExpiresAt           time.Time `json:"expires_at"`
}

type ChangeRequest struct {
	ID        string        `json:"id"`
	OrderID   string        `json:"order_id"`
	Offers    []ChangeOffer `json:"order_change_offers"`
	CreatedAt time.Time     `json:"created_at"`
}

type Payment struct {
	Type     string `json:"type"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type ConfirmedChange struct {
	ID                  string     `json:"id"`
	OrderID             string     `json:"order_id"`
	Status              string     `json:"status"`
	ChangeTotalAmount   string     `json:"change_total_amount"`
	ChangeTotalCurrency string     `json:"change_total_currency"`
	NewTotalAmount      string     `json:"new_total_amount"`
	NewTotalCurrency    string     `json:"new_total_currency"`
	Penalty             *Money     `json:"penalty"`
	Refund              *Money     `json:"refund"`
	ConfirmedAt         *time.Time `json:"confirmed_at"`
	Order               *Order     `json:"order,omitempty"`
}
