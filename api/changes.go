package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/suitpax/orderchanges/internal/auth"
	"github.com/suitpax/orderchanges/internal/domain"
	"github.com/suitpax/orderchanges/internal/duffel"
	"github.com/suitpax/orderchanges/internal/service/changes"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderchanges_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "orderchanges_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method"})
)

type ChangeHandler struct {
	service changes.ChangeUseCase
}

func NewChangeHandler(service changes.ChangeUseCase) *ChangeHandler {
	return &ChangeHandler{service: service}
}

func (h *ChangeHandler) Register(router *gin.RouterGroup) {
	router.GET("", h.get)
	router.POST("", h.create)
	router.PUT("", h.confirm)
}

type createChangeRequest struct {
	OrderID    string                   `json:"orderId"`
	ChangeType string                   `json:"changeType"`
	Changes    *duffel.RequestedChanges `json:"changes"`
	Reason     string                   `json:"reason"`
}

type confirmChangeRequest struct {
	ChangeRequestID string          `json:"changeRequestId"`
	SelectedOfferID string          `json:"selectedOfferId"`
	PaymentData     *duffel.Payment `json:"paymentData"`
}

func (h *ChangeHandler) get(c *gin.Context) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues(http.MethodGet))
	defer timer.ObserveDuration()

	orderID := c.Query("orderId")
	changeRequestID := c.Query("changeRequestId")
	if orderID == "" && changeRequestID == "" {
		respondError(c, http.StatusBadRequest, "Either orderId or changeRequestId is required", "MISSING_PARAMETER")
		return
	}

	userID := auth.UserID(c)

	if changeRequestID != "" {
		detail, err := h.service.ChangeRequestDetail(c.Request.Context(), userID, changeRequestID)
		if err != nil {
			respondFailure(c, err, "FETCH_FAILED")
			return
		}
		respondJSON(c, http.StatusOK, gin.H{
			"success":          true,
			"change_request":   toChangeRequestView(detail.Request),
			"available_offers": toOfferViews(detail.Offers),
		})
		return
	}

	eligibility, err := h.service.OrderEligibility(c.Request.Context(), userID, orderID)
	if err != nil {
		respondFailure(c, err, "FETCH_FAILED")
		return
	}
	respondJSON(c, http.StatusOK, gin.H{
		"success":         true,
		"booking":         toBookingView(eligibility),
		"change_policies": eligibility.Policy,
		"change_history":  toHistoryViews(eligibility.History),
	})
}

func (h *ChangeHandler) create(c *gin.Context) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues(http.MethodPost))
	defer timer.ObserveDuration()

	var req createChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", "INVALID_BODY")
		return
	}
	if req.OrderID == "" || req.ChangeType == "" || req.Changes == nil {
		respondError(c, http.StatusBadRequest, "orderId, changeType and changes are required", "MISSING_FIELDS")
		return
	}

	result, err := h.service.CreateChangeRequest(c.Request.Context(), auth.UserID(c), changes.CreateChangeInput{
		OrderID:    req.OrderID,
		ChangeType: domain.ChangeType(req.ChangeType),
		Changes:    *req.Changes,
		Reason:     req.Reason,
	})
	if err != nil {
		respondFailure(c, err, "CHANGE_REQUEST_FAILED")
		return
	}

	offers := toOfferViews(result.Offers)
	payload := gin.H{
		"success":               true,
		"change_request":        toChangeRequestView(result.Request),
		"available_offers":      offers,
		"requires_confirmation": len(offers) > 0,
		"next_steps": gin.H{
			"action":          "confirm",
			"method":          http.MethodPut,
			"description":     "Select an offer and confirm it before it expires",
			"required_fields": []string{"changeRequestId", "selectedOfferId"},
		},
	}
	if result.Warning != "" {
		payload["warning"] = result.Warning
	}
	respondJSON(c, http.StatusOK, payload)
}

func (h *ChangeHandler) confirm(c *gin.Context) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues(http.MethodPut))
	defer timer.ObserveDuration()

	var req confirmChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", "INVALID_BODY")
		return
	}
	if req.ChangeRequestID == "" || req.SelectedOfferID == "" {
		respondError(c, http.StatusBadRequest, "changeRequestId and selectedOfferId are required", "MISSING_FIELDS")
		return
	}

	result, err := h.service.ConfirmChange(c.Request.Context(), auth.UserID(c), changes.ConfirmChangeInput{
		ChangeRequestID: req.ChangeRequestID,
		SelectedOfferID: req.SelectedOfferID,
		Payment:         req.PaymentData,
	})
	if err != nil {
		respondFailure(c, err, "CONFIRMATION_FAILED")
		return
	}

	payload := gin.H{
		"success":        true,
		"change_request": toChangeRequestView(result.Request),
		"change":         toConfirmedChangeView(result.Change),
	}
	if result.Warning != "" {
		payload["warning"] = result.Warning
	}
	respondJSON(c, http.StatusOK, payload)
}

func respondFailure(c *gin.Context, err error, fallbackCode string) {
	switch {
	case errors.Is(err, changes.ErrBookingNotFound):
		respondError(c, http.StatusNotFound, "Booking not found", "NOT_FOUND")
		return
	case errors.Is(err, changes.ErrChangeRequestNotFound):
		respondError(c, http.StatusNotFound, "Change request not found", "NOT_FOUND")
		return
	case errors.Is(err, changes.ErrNotPending):
		respondError(c, http.StatusBadRequest, "Change request is not pending", "CHANGE_NOT_PENDING")
		return
	case errors.Is(err, changes.ErrConfirmInProgress):
		respondError(c, http.StatusBadRequest, "Confirmation already in progress", "CONFIRMATION_IN_PROGRESS")
		return
	case errors.Is(err, changes.ErrInvalidChangeType):
		respondError(c, http.StatusBadRequest, "Invalid change type", "INVALID_CHANGE_TYPE")
		return
	}

	var gwErr *duffel.Error
	if errors.As(err, &gwErr) {
		switch gwErr.Kind {
		case duffel.KindNotAllowed:
			respondError(c, http.StatusBadRequest, "Changes are not allowed for this order", "CHANGES_NOT_ALLOWED")
		case duffel.KindDeadlinePassed:
			respondError(c, http.StatusBadRequest, "The change deadline for this order has passed", "DEADLINE_PASSED")
		case duffel.KindOfferExpired:
			respondError(c, http.StatusBadRequest, "The selected offer has expired", "OFFER_EXPIRED")
		case duffel.KindPaymentFailed:
			respondError(c, http.StatusPaymentRequired, "Payment for the change failed", "PAYMENT_FAILED")
		case duffel.KindNotFound:
			respondError(c, http.StatusNotFound, "Resource not found", "NOT_FOUND")
		default:
			respondError(c, http.StatusInternalServerError, gwErr.Message, fallbackCode)
		}
		return
	}

	respondError(c, http.StatusInternalServerError, "Internal server error", fallbackCode)
}

func respondJSON(c *gin.Context, status int, payload gin.H) {
	httpRequestsTotal.WithLabelValues(c.Request.Method, strconv.Itoa(status)).Inc()
	c.JSON(status, payload)
}

func respondError(c *gin.Context, status int, message, code string) {
	httpRequestsTotal.WithLabelValues(c.Request.Method, strconv.Itoa(status)).Inc()
	c.JSON(status, gin.H{"success": false, "error": message, "error_code": code})
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
