package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/suitpax/orderchanges/internal/domain"
	"github.com/suitpax/orderchanges/internal/duffel"
	"github.com/suitpax/orderchanges/internal/service/changes"
)

// MockChangeUseCase is a mock implementation of changes.ChangeUseCase
type MockChangeUseCase struct {
	mock.Mock
}

func (m *MockChangeUseCase) OrderEligibility(ctx context.Context, userID, orderID string) (*changes.OrderEligibility, error) {
	args := m.Called(ctx, userID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*changes.OrderEligibility), args.Error(1)
}

func (m *MockChangeUseCase) ChangeRequestDetail(ctx context.Context, userID, changeRequestID string) (*changes.ChangeDetail, error) {
	args := m.Called(ctx, userID, changeRequestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*changes.ChangeDetail), args.Error(1)
}

func (m *MockChangeUseCase) CreateChangeRequest(ctx context.Context, userID string, input changes.CreateChangeInput) (*changes.CreateChangeResult, error) {
	args := m.Called(ctx, userID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*changes.CreateChangeResult), args.Error(1)
}

func (m *MockChangeUseCase) ConfirmChange(ctx context.Context, userID string, input changes.ConfirmChangeInput) (*changes.ConfirmChangeResult, error) {
	args := m.Called(ctx, userID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*changes.ConfirmChangeResult), args.Error(1)
}

func (m *MockChangeUseCase) ExpirePendingChanges(ctx context.Context) ([]domain.ChangeRequest, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.ChangeRequest), args.Error(1)
}

func newTestContext(t *testing.T, method, target string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		assert.NoError(t, err)
		reader = bytes.NewReader(payload)
		c.Request = httptest.NewRequest(method, target, reader)
		c.Request.Header.Set("Content-Type", "application/json")
	} else {
		c.Request = httptest.NewRequest(method, target, nil)
	}
	c.Set("user_id", "user_1")
	return c, w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

func TestChangeHandler_get_missingParams(t *testing.T) {
	mockService := &MockChangeUseCase{}
	handler := NewChangeHandler(mockService)

	c, w := newTestContext(t, "GET", "/api/duffel/order-changes", nil)
	handler.get(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, false, response["success"])
	assert.Equal(t, "MISSING_PARAMETER", response["error_code"])
	mockService.AssertNotCalled(t, "OrderEligibility")
	mockService.AssertNotCalled(t, "ChangeRequestDetail")
}

func TestChangeHandler_get_eligibilityNotAllowed(t *testing.T) {
	mockService := &MockChangeUseCase{}
	handler := NewChangeHandler(mockService)

	c, w := newTestContext(t, "GET", "/api/duffel/order-changes?orderId=ord_1", nil)

	eligibility := &changes.OrderEligibility{
		Booking: &domain.Booking{
			OrderID:       "ord_1",
			Status:        "confirmed",
			TotalAmount:   "450.00",
			TotalCurrency: "USD",
		},
		Policy:  changes.ChangePolicy{Allowed: false, PenaltyAmount: "0", PenaltyCurrency: "USD"},
		History: []domain.ChangeRequest{},
	}
	mockService.On("OrderEligibility", c.Request.Context(), "user_1", "ord_1").Return(eligibility, nil)

	handler.get(c)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, true, response["success"])

	policies := response["change_policies"].(map[string]interface{})
	assert.Equal(t, false, policies["allowed"])
	booking := response["booking"].(map[string]interface{})
	assert.Equal(t, false, booking["allows_changes"])

	mockService.AssertExpectations(t)
}

func TestChangeHandler_get_bookingNotFound(t *testing.T) {
	mockService := &MockChangeUseCase{}
	handler := NewChangeHandler(mockService)

	c, w := newTestContext(t, "GET", "/api/duffel/order-changes?orderId=ord_other", nil)
	mockService.On("OrderEligibility", c.Request.Context(), "user_1", "ord_other").Return(nil, changes.ErrBookingNotFound)

	handler.get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, "Booking not found", response["error"])
	assert.Equal(t, "NOT_FOUND", response["error_code"])
}

func TestChangeHandler_get_changeRequestDetail(t *testing.T) {
	mockService := &MockChangeUseCase{}
	handler := NewChangeHandler(mockService)

	c, w := newTestContext(t, "GET", "/api/duffel/order-changes?changeRequestId=ocr_1", nil)

	detail := &changes.ChangeDetail{
		Request: &domain.ChangeRequest{
			ExternalID: "ocr_1",
			OrderID:    "ord_1",
			ChangeType: domain.ChangeTypeDate,
			Status:     domain.ChangeStatusPending,
			CreatedAt:  time.Now(),
		},
		Offers: []duffel.ChangeOffer{
			{ID: "oco_1", ChangeTotalAmount: "120.00", ChangeTotalCurrency: "USD", Penalty: &duffel.Money{Amount: "50.00", Currency: "USD"}},
		},
	}
	mockService.On("ChangeRequestDetail", c.Request.Context(), "user_1", "ocr_1").Return(detail, nil)

	handler.get(c)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(t, w)
	request := response["change_request"].(map[string]interface{})
	assert.Equal(t, "ocr_1", request["id"])
	assert.Equal(t, "PENDING", request["status"])
	offers := response["available_offers"].([]interface{})
	assert.Len(t, offers, 1)
}

func TestChangeHandler_create_missingFields(t *testing.T) {
	mockService := &MockChangeUseCase{}
	handler := NewChangeHandler(mockService)

	cases := []map[string]interface{}{
		{"changeType": "date", "changes": map[string]interface{}{}},
		{"orderId": "ord_1", "changes": map[string]interface{}{}},
		{"orderId": "ord_1", "changeType": "date"},
	}

	for _, body := range cases {
		c, w := newTestContext(t, "POST", "/api/duffel/order-changes", body)
		handler.create(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		response := decodeBody(t, w)
		assert.Equal(t, "MISSING_FIELDS", response["error_code"])
	}

	mockService.AssertNotCalled(t, "CreateChangeRequest")
}

func TestChangeHandler_create_success(t *testing.T) {
	mockService := &MockChangeUseCase{}
	handler := NewChangeHandler(mockService)

	body := map[string]interface{}{
		"orderId":    "ord_1",
		"changeType": "date",
		"changes": map[string]interface{}{
			"slices": map[string]interface{}{
				"add": []map[string]interface{}{
					{"origin": "JFK", "destination": "LHR", "departure_date": "2025-06-01"},
				},
			},
		},
	}
	c, w := newTestContext(t, "POST", "/api/duffel/order-changes", body)

	expires := time.Now().Add(30 * time.Minute)
	result := &changes.CreateChangeResult{
		Request: &domain.ChangeRequest{
			ExternalID: "ocr_1",
			OrderID:    "ord_1",
			ChangeType: domain.ChangeTypeDate,
			Status:     domain.ChangeStatusPending,
			CreatedAt:  time.Now(),
		},
		Offers: []duffel.ChangeOffer{
			{ID: "oco_1", ChangeTotalAmount: "120.00", ChangeTotalCurrency: "USD", Penalty: &duffel.Money{Amount: "0", Currency: "USD"}, ExpiresAt: expires},
		},
	}
	mockService.On("CreateChangeRequest", c.Request.Context(), "user_1", mock.AnythingOfType("changes.CreateChangeInput")).Return(result, nil)

	handler.create(c)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, true, response["success"])

	request := response["change_request"].(map[string]interface{})
	assert.Equal(t, "PENDING", request["status"])
	offers := response["available_offers"].([]interface{})
	assert.Len(t, offers, 1)
	assert.Equal(t, true, response["requires_confirmation"])
	assert.NotNil(t, response["next_steps"])
	assert.NotContains(t, response, "warning")

	mockService.AssertExpectations(t)
}

func TestChangeHandler_create_noOffers(t *testing.T) {
	mockService := &MockChangeUseCase{}
	handler := NewChangeHandler(mockService)

	body := map[string]interface{}{
		"orderId":    "ord_1",
		"changeType": "route",
		"changes":    map[string]interface{}{},
	}
	c, w := newTestContext(t, "POST", "/api/duffel/order-changes", body)

	result := &changes.CreateChangeResult{
		Request: &domain.ChangeRequest{ExternalID: "ocr_2", OrderID: "ord_1", ChangeType: domain.ChangeTypeRoute, Status: domain.ChangeStatusPending},
		Offers:  nil,
	}
	mockService.On("CreateChangeRequest", c.Request.Context(), "user_1", mock.AnythingOfType("changes.CreateChangeInput")).Return(result, nil)

	handler.create(c)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, false, response["requires_confirmation"])
	offers := response["available_offers"].([]interface{})
	assert.Len(t, offers, 0)
}

// Offers with absent monetary sub-fields must come back with zero-valued
// penalty defaults and a null refund.
func TestChangeHandler_create_offerNormalization(t *testing.T) {
	mockService := &MockChangeUseCase{}
	handler := NewChangeHandler(mockService)

	body := map[string]interface{}{
		"orderId":    "ord_1",
		"changeType": "date",
		"changes":    map[string]interface{}{},
	}
	c, w := newTestContext(t, "POST", "/api/duffel/order-changes", body)

	result := &changes.CreateChangeResult{
		Request: &domain.ChangeRequest{ExternalID: "ocr_3", OrderID: "ord_1", ChangeType: domain.ChangeTypeDate, Status: domain.ChangeStatusPending},
		Offers:  []duffel.ChangeOffer{{ID: "oco_9", ChangeTotalAmount: "75.00", ChangeTotalCurrency: "USD"}},
	}
	mockService.On("CreateChangeRequest", c.Request.Context(), "user_1", mock.AnythingOfType("changes.CreateChangeInput")).Return(result, nil)

	handler.create(c)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(t, w)
	offers := response["available_offers"].([]interface{})
	assert.Len(t, offers, 1)

	offer := offers[0].(map[string]interface{})
	penalty := offer["penalty"].(map[string]interface{})
	assert.Equal(t, "0", penalty["amount"])
	assert.Equal(t, "USD", penalty["currency"])
	assert.Contains(t, offer, "refund")
	assert.Nil(t, offer["refund"])
}

func TestChangeHandler_create_persistenceWarning(t *testing.T) {
	mockService := &MockChangeUseCase{}
	handler := NewChangeHandler(mockService)

	body := map[string]interface{}{
		"orderId":    "ord_1",
		"changeType": "date",
		"changes":    map[string]interface{}{},
	}
	c, w := newTestContext(t, "POST", "/api/duffel/order-changes", body)

	result := &changes.CreateChangeResult{
		Request: &domain.ChangeRequest{ExternalID: "ocr_4", OrderID: "ord_1", ChangeType: domain.ChangeTypeDate, Status: domain.ChangeStatusPending},
		Offers:  []duffel.ChangeOffer{{ID: "oco_1"}},
		Warning: "change request was created but could not be recorded locally",
	}
	mockService.On("CreateChangeRequest", c.Request.Context(), "user_1", mock.AnythingOfType("changes.CreateChangeInput")).Return(result, nil)

	handler.create(c)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, true, response["success"])
	assert.NotEmpty(t, response["warning"])
}

func TestChangeHandler_create_gatewayRejections(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not allowed", &duffel.Error{Kind: duffel.KindNotAllowed, Message: "order change not allowed"}, http.StatusBadRequest, "CHANGES_NOT_ALLOWED"},
		{"deadline passed", &duffel.Error{Kind: duffel.KindDeadlinePassed, Message: "change deadline passed"}, http.StatusBadRequest, "DEADLINE_PASSED"},
		{"unknown upstream", &duffel.Error{Kind: duffel.KindUnknown, Message: "upstream unavailable"}, http.StatusInternalServerError, "CHANGE_REQUEST_FAILED"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mockService := &MockChangeUseCase{}
			handler := NewChangeHandler(mockService)

			body := map[string]interface{}{
				"orderId":    "ord_1",
				"changeType": "date",
				"changes":    map[string]interface{}{},
			}
			c, w := newTestContext(t, "POST", "/api/duffel/order-changes", body)
			mockService.On("CreateChangeRequest", c.Request.Context(), "user_1", mock.AnythingOfType("changes.CreateChangeInput")).Return(nil, tc.err)

			handler.create(c)

			assert.Equal(t, tc.wantStatus, w.Code)
			response := decodeBody(t, w)
			assert.Equal(t, false, response["success"])
			assert.Equal(t, tc.wantCode, response["error_code"])
		})
	}
}

func TestChangeHandler_confirm_notFound(t *testing.T) {
	mockService := &MockChangeUseCase{}
	handler := NewChangeHandler(mockService)

	body := map[string]interface{}{
		"changeRequestId": "ocr_missing",
		"selectedOfferId": "oco_1",
	}
	c, w := newTestContext(t, "PUT", "/api/duffel/order-changes", body)
	mockService.On("ConfirmChange", c.Request.Context(), "user_1", mock.AnythingOfType("changes.ConfirmChangeInput")).Return(nil, changes.ErrChangeRequestNotFound)

	handler.confirm(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, "Change request not found", response["error"])
}

func TestChangeHandler_confirm_offerExpired(t *testing.T) {
	mockService := &MockChangeUseCase{}
	handler := NewChangeHandler(mockService)

	body := map[string]interface{}{
		"changeRequestId": "ocr_1",
		"selectedOfferId": "oco_stale",
	}
	c, w := newTestContext(t, "PUT", "/api/duffel/order-changes", body)
	mockService.On("ConfirmChange", c.Request.Context(), "user_1", mock.AnythingOfType("changes.ConfirmChangeInput")).
		Return(nil, &duffel.Error{Kind: duffel.KindOfferExpired, Message: "offer expired"})

	handler.confirm(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, "OFFER_EXPIRED", response["error_code"])
}

func TestChangeHandler_confirm_paymentFailed(t *testing.T) {
	mockService := &MockChangeUseCase{}
	handler := NewChangeHandler(mockService)

	body := map[string]interface{}{
		"changeRequestId": "ocr_1",
		"selectedOfferId": "oco_1",
		"paymentData":     map[string]interface{}{"type": "balance", "amount": "120.00", "currency": "USD"},
	}
	c, w := newTestContext(t, "PUT", "/api/duffel/order-changes", body)
	mockService.On("ConfirmChange", c.Request.Context(), "user_1", mock.AnythingOfType("changes.ConfirmChangeInput")).
		Return(nil, &duffel.Error{Kind: duffel.KindPaymentFailed, Message: "card declined"})

	handler.confirm(c)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, "PAYMENT_FAILED", response["error_code"])
}

func TestChangeHandler_confirm_success(t *testing.T) {
	mockService := &MockChangeUseCase{}
	handler := NewChangeHandler(mockService)

	body := map[string]interface{}{
		"changeRequestId": "ocr_1",
		"selectedOfferId": "oco_1",
	}
	c, w := newTestContext(t, "PUT", "/api/duffel/order-changes", body)

	now := time.Now()
	result := &changes.ConfirmChangeResult{
		Request: &domain.ChangeRequest{
			ExternalID:      "ocr_1",
			OrderID:         "ord_1",
			ChangeType:      domain.ChangeTypeDate,
			Status:          domain.ChangeStatusConfirmed,
			SelectedOfferID: "oco_1",
			ConfirmedAt:     &now,
		},
		Change: &duffel.ConfirmedChange{
			ID:                  "och_1",
			OrderID:             "ord_1",
			Status:              "confirmed",
			ChangeTotalAmount:   "120.00",
			ChangeTotalCurrency: "USD",
			NewTotalAmount:      "570.00",
			NewTotalCurrency:    "USD",
		},
	}
	mockService.On("ConfirmChange", c.Request.Context(), "user_1", changes.ConfirmChangeInput{
		ChangeRequestID: "ocr_1",
		SelectedOfferID: "oco_1",
	}).Return(result, nil)

	handler.confirm(c)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, true, response["success"])
	request := response["change_request"].(map[string]interface{})
	assert.Equal(t, "CONFIRMED", request["status"])
	change := response["change"].(map[string]interface{})
	assert.Equal(t, "570.00", change["new_total"].(map[string]interface{})["amount"])

	mockService.AssertExpectations(t)
}

func TestChangeHandler_confirm_missingFields(t *testing.T) {
	mockService := &MockChangeUseCase{}
	handler := NewChangeHandler(mockService)

	c, w := newTestContext(t, "PUT", "/api/duffel/order-changes", map[string]interface{}{"changeRequestId": "ocr_1"})
	handler.confirm(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "ConfirmChange")
}
