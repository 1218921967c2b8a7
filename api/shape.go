package api

import (
	"encoding/json"

	"github.com/suitpax/orderchanges/internal/domain"
	"github.com/suitpax/orderchanges/internal/duffel"
	"github.com/suitpax/orderchanges/internal/service/changes"
)

// View types decouple the API contract from upstream and domain shapes.
// Optional monetary sub-fields are normalized here so the contract holds
// regardless of what the third party omitted.

type moneyView struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type offerView struct {
	ID          string     `json:"id"`
	ChangeTotal moneyView  `json:"change_total"`
	NewTotal    moneyView  `json:"new_total"`
	Penalty     moneyView  `json:"penalty"`
	Refund      *moneyView `json:"refund"`
	ExpiresAt   string     `json:"expires_at"`
}

type changeRequestView struct {
	ID               string          `json:"id"`
	OrderID          string          `json:"order_id"`
	ChangeType       string          `json:"change_type"`
	Status           string          `json:"status"`
	RequestedChanges json.RawMessage `json:"requested_changes,omitempty"`
	Reason           string          `json:"reason,omitempty"`
	SelectedOfferID  string          `json:"selected_offer_id,omitempty"`
	CreatedAt        string          `json:"created_at,omitempty"`
	ConfirmedAt      *string         `json:"confirmed_at,omitempty"`
}

type bookingView struct {
	OrderID       string `json:"order_id"`
	Status        string `json:"status"`
	TotalAmount   string `json:"total_amount"`
	TotalCurrency string `json:"total_currency"`
	AllowsChanges bool   `json:"allows_changes"`
}

type historyView struct {
	ID         string `json:"id"`
	ChangeType string `json:"change_type"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
}

type confirmedChangeView struct {
	ID          string     `json:"id"`
	OrderID     string     `json:"order_id"`
	Status      string     `json:"status"`
	ChangeTotal moneyView  `json:"change_total"`
	NewTotal    moneyView  `json:"new_total"`
	Penalty     moneyView  `json:"penalty"`
	Refund      *moneyView `json:"refund"`
	ConfirmedAt *string    `json:"confirmed_at,omitempty"`
}

func toOfferViews(offers []duffel.ChangeOffer) []offerView {
	views := make([]offerView, 0, len(offers))
	for _, offer := range offers {
		views = append(views, offerView{
			ID:          offer.ID,
			ChangeTotal: moneyView{Amount: offer.ChangeTotalAmount, Currency: offer.ChangeTotalCurrency},
			NewTotal:    moneyView{Amount: offer.NewTotalAmount, Currency: offer.NewTotalCurrency},
			Penalty:     toPenaltyView(offer.Penalty),
			Refund:      toMoneyView(offer.Refund),
			ExpiresAt:   formatTime(offer.ExpiresAt),
		})
	}
	return views
}

func toPenaltyView(m *duffel.Money) moneyView {
	view := moneyView{Amount: "0", Currency: "USD"}
	if m == nil {
		return view
	}
	if m.Amount != "" {
		view.Amount = m.Amount
	}
	if m.Currency != "" {
		view.Currency = m.Currency
	}
	return view
}

func toMoneyView(m *duffel.Money) *moneyView {
	if m == nil {
		return nil
	}
	return &moneyView{Amount: m.Amount, Currency: m.Currency}
}

func toChangeRequestView(cr *domain.ChangeRequest) changeRequestView {
	if cr == nil {
		return changeRequestView{}
	}
	view := changeRequestView{
		ID:               cr.ExternalID,
		OrderID:          cr.OrderID,
		ChangeType:       string(cr.ChangeType),
		Status:           string(cr.Status),
		RequestedChanges: cr.RequestedChanges,
		Reason:           cr.Reason,
		SelectedOfferID:  cr.SelectedOfferID,
	}
	if !cr.CreatedAt.IsZero() {
		view.CreatedAt = formatTime(cr.CreatedAt)
	}
	if cr.ConfirmedAt != nil {
		confirmed := formatTime(*cr.ConfirmedAt)
		view.ConfirmedAt = &confirmed
	}
	return view
}

func toBookingView(eligibility *changes.OrderEligibility) bookingView {
	b := eligibility.Booking
	return bookingView{
		OrderID:       b.OrderID,
		Status:        b.Status,
		TotalAmount:   b.TotalAmount,
		TotalCurrency: b.TotalCurrency,
		AllowsChanges: eligibility.Policy.Allowed && b.AllowsChanges(),
	}
}

func toHistoryViews(history []domain.ChangeRequest) []historyView {
	views := make([]historyView, 0, len(history))
	for _, cr := range history {
		views = append(views, historyView{
			ID:         cr.ExternalID,
			ChangeType: string(cr.ChangeType),
			Status:     string(cr.Status),
			CreatedAt:  formatTime(cr.CreatedAt),
		})
	}
	return views
}

func toConfirmedChangeView(change *duffel.ConfirmedChange) confirmedChangeView {
	if change == nil {
		return confirmedChangeView{}
	}
	view := confirmedChangeView{
		ID:          change.ID,
		OrderID:     change.OrderID,
		Status:      change.Status,
		ChangeTotal: moneyView{Amount: change.ChangeTotalAmount, Currency: change.ChangeTotalCurrency},
		NewTotal:    moneyView{Amount: change.NewTotalAmount, Currency: change.NewTotalCurrency},
		Penalty:     toPenaltyView(change.Penalty),
		Refund:      toMoneyView(change.Refund),
	}
	if change.ConfirmedAt != nil {
		confirmed := formatTime(*change.ConfirmedAt)
		view.ConfirmedAt = &confirmed
	}
	return view
}
