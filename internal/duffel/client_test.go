package duffel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/suitpax/orderchanges/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(config.DuffelConfig{BaseURL: server.URL, APIKey: "test_key", TimeoutSeconds: 5})
}

func TestClient_GetOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/air/orders/ord_1", r.URL.Path)
		assert.Equal(t, "Bearer test_key", r.Header.Get("Authorization"))
		assert.Equal(t, apiVersion, r.Header.Get("Duffel-Version"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"id":             "ord_1",
				"status":         "confirmed",
				"total_amount":   "450.00",
				"total_currency": "USD",
				"conditions": map[string]interface{}{
					"change_before_departure": map[string]interface{}{
						"allowed":          true,
						"penalty_amount":   "75.00",
						"penalty_currency": "USD",
					},
				},
			},
		})
	})

	order, err := client.GetOrder(context.Background(), "ord_1")

	assert.NoError(t, err)
	assert.Equal(t, "ord_1", order.ID)
	assert.NotNil(t, order.Conditions.ChangeBeforeDeparture)
	assert.True(t, order.Conditions.ChangeBeforeDeparture.Allowed)
}

func TestClient_CreateChangeRequest_NormalizesOffers(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/air/order_change_requests", r.URL.Path)

		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		data := body["data"].(map[string]interface{})
		assert.Equal(t, "ord_1", data["order_id"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"id":       "ocr_1",
				"order_id": "ord_1",
				"order_change_offers": []map[string]interface{}{
					{"id": "oco_1", "change_total_amount": "120.00", "change_total_currency": "USD"},
				},
			},
		})
	})

	cr, err := client.CreateChangeRequest(context.Background(), CreateChangeRequestInput{OrderID: "ord_1"})

	assert.NoError(t, err)
	assert.Equal(t, "ocr_1", cr.ID)
	assert.Len(t, cr.Offers, 1)
	// absent penalty comes back zero-valued, refund stays nil
	assert.NotNil(t, cr.Offers[0].Penalty)
	assert.Equal(t, "0", cr.Offers[0].Penalty.Amount)
	assert.Equal(t, "USD", cr.Offers[0].Penalty.Currency)
	assert.Nil(t, cr.Offers[0].Refund)
}

func TestClient_ConfirmChangeOffer_TwoStep(t *testing.T) {
	var paths []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/air/order_changes":
			var body map[string]map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "oco_1", body["data"]["selected_order_change_offer"])
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]interface{}{"id": "och_1", "order_id": "ord_1", "status": "pending"},
			})
		case "/air/order_changes/och_1/actions/confirm":
			var body map[string]map[string]Payment
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "balance", body["data"]["payment"].Type)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]interface{}{
					"id":               "och_1",
					"order_id":         "ord_1",
					"status":           "confirmed",
					"new_total_amount": "570.00",
				},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	payment := &Payment{Type: "balance", Amount: "120.00", Currency: "USD"}
	confirmed, err := client.ConfirmChangeOffer(context.Background(), "oco_1", payment)

	assert.NoError(t, err)
	assert.Equal(t, "confirmed", confirmed.Status)
	assert.Equal(t, "570.00", confirmed.NewTotalAmount)
	assert.Equal(t, []string{"/air/order_changes", "/air/order_changes/och_1/actions/confirm"}, paths)
}

func TestClient_ErrorClassification(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		code     string
		wantKind ErrorKind
	}{
		{"not allowed", http.StatusUnprocessableEntity, "order_change_not_allowed", KindNotAllowed},
		{"deadline passed", http.StatusUnprocessableEntity, "change_deadline_passed", KindDeadlinePassed},
		{"offer expired", http.StatusUnprocessableEntity, "order_change_offer_expired", KindOfferExpired},
		{"payment failed", http.StatusPaymentRequired, "insufficient_payment", KindPaymentFailed},
		{"not found", http.StatusNotFound, "not_found", KindNotFound},
		{"unrecognized code", http.StatusInternalServerError, "mystery_failure", KindUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"errors": []map[string]string{
						{"code": tc.code, "message": "upstream says no"},
					},
				})
			})

			_, err := client.GetOrder(context.Background(), "ord_1")

			var gwErr *Error
			assert.ErrorAs(t, err, &gwErr)
			assert.Equal(t, tc.wantKind, gwErr.Kind)
			assert.Equal(t, "upstream says no", gwErr.Message)
		})
	}
}

func TestClient_NotFoundWithoutBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.GetChangeRequest(context.Background(), "ocr_missing")

	var gwErr *Error
	assert.ErrorAs(t, err, &gwErr)
	assert.Equal(t, KindNotFound, gwErr.Kind)
}
