package duffel

import (
	"encoding/json"
	"fmt"
	"net/http"
)

type ErrorKind string

const (
	KindNotAllowed     ErrorKind = "not_allowed"
	KindDeadlinePassed ErrorKind = "deadline_passed"
	KindOfferExpired   ErrorKind = "offer_expired"
	KindPaymentFailed  ErrorKind = "payment_failed"
	KindNotFound       ErrorKind = "not_found"
	KindUnknown        ErrorKind = "unknown"
)

// Error is the structured failure the gateway reports. Callers branch on
// Kind instead of matching substrings of upstream messages.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("duffel: %s: %s", e.Kind, e.Message)
}

type apiError struct {
	Errors []struct {
		Code    string `json:"code"`
		Title   string `json:"title"`
		Message string `json:"message"`
	} `json:"errors"`
}

var kindByCode = map[string]ErrorKind{
	"order_change_not_allowed":      KindNotAllowed,
	"change_deadline_passed":        KindDeadlinePassed,
	"offer_no_longer_available":     KindOfferExpired,
	"order_change_offer_expired":    KindOfferExpired,
	"payment_required":              KindPaymentFailed,
	"insufficient_payment":          KindPaymentFailed,
	"payment_intent_payment_failed": KindPaymentFailed,
	"not_found":                     KindNotFound,
	"resource_not_found":            KindNotFound,
}

func classifyError(status int, body []byte) *Error {
	var payload apiError
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Errors) > 0 {
		first := payload.Errors[0]
		msg := first.Message
		if msg == "" {
			msg = first.Title
		}
		if kind, ok := kindByCode[first.Code]; ok {
			return &Error{Kind: kind, Message: msg}
		}
		if status == http.StatusNotFound {
			return &Error{Kind: KindNotFound, Message: msg}
		}
		return &Error{Kind: KindUnknown, Message: msg}
	}

	if status == http.StatusNotFound {
		return &Error{Kind: KindNotFound, Message: "resource not found"}
	}
	return &Error{Kind: KindUnknown, Message: fmt.Sprintf("unexpected status %d", status)}
}
