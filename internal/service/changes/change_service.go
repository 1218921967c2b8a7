package changes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/suitpax/orderchanges/internal/domain"
	"github.com/suitpax/orderchanges/internal/duffel"
	"github.com/suitpax/orderchanges/internal/kafka"
	"github.com/suitpax/orderchanges/internal/repository"
)

var (
	ErrBookingNotFound       = errors.New("booking not found")
	ErrChangeRequestNotFound = errors.New("change request not found")
	ErrNotPending            = errors.New("change request is not pending")
	ErrConfirmInProgress     = errors.New("confirmation already in progress")
	ErrInvalidChangeType     = errors.New("invalid change type")
)

type ChangeUseCase interface {
	OrderEligibility(ctx context.Context, userID, orderID string) (*OrderEligibility, error)
	ChangeRequestDetail(ctx context.Context, userID, changeRequestID string) (*ChangeDetail, error)
	CreateChangeRequest(ctx context.Context, userID string, input CreateChangeInput) (*CreateChangeResult, error)
	ConfirmChange(ctx context.Context, userID string, input ConfirmChangeInput) (*ConfirmChangeResult, error)
	ExpirePendingChanges(ctx context.Context) ([]domain.ChangeRequest, error)
}

type Gateway interface {
	GetOrder(ctx context.Context, orderID string) (*duffel.Order, error)
	CreateChangeRequest(ctx context.Context, input duffel.CreateChangeRequestInput) (*duffel.ChangeRequest, error)
	GetChangeRequest(ctx context.Context, changeRequestID string) (*duffel.ChangeRequest, error)
	ConfirmChangeOffer(ctx context.Context, offerID string, payment *duffel.Payment) (*duffel.ConfirmedChange, error)
}

type Cache interface {
	GetEligibility(ctx context.Context, orderID string, out interface{}) (bool, error)
	SetEligibility(ctx context.Context, orderID string, value interface{}) error
	AcquireConfirmLock(ctx context.Context, changeRequestID string, ttl time.Duration) (bool, error)
	ReleaseConfirmLock(ctx context.Context, changeRequestID string) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type ChangeService struct {
	bookings           repository.BookingRepository
	changes            repository.ChangeRequestRepository
	gateway            Gateway
	cache              Cache
	producer           Producer
	changesTopic       string
	notificationsTopic string
	confirmLockTTL     time.Duration
}

type ChangeServiceOption func(*ChangeService)

func WithNotificationsTopic(topic string) ChangeServiceOption {
	return func(s *ChangeService) {
		s.notificationsTopic = topic
	}
}

func NewChangeService(
	bookings repository.BookingRepository,
	changes repository.ChangeRequestRepository,
	gateway Gateway,
	cache Cache,
	producer Producer,
	changesTopic string,
	confirmLockTTL time.Duration,
	opts ...ChangeServiceOption,
) *ChangeService {
	service := &ChangeService{
		bookings:       bookings,
		changes:        changes,
		gateway:        gateway,
		cache:          cache,
		producer:       producer,
		changesTopic:   changesTopic,
		confirmLockTTL: confirmLockTTL,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

type ChangePolicy struct {
	Allowed         bool       `json:"allowed"`
	PenaltyAmount   string     `json:"penalty_amount"`
	PenaltyCurrency string     `json:"penalty_currency"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	Restrictions    []string   `json:"restrictions,omitempty"`
}

type OrderEligibility struct {
	Booking *domain.Booking
	Policy  ChangePolicy
	History []domain.ChangeRequest
}

type ChangeDetail struct {
	Request *domain.ChangeRequest
	Offers  []duffel.ChangeOffer
}

type CreateChangeInput struct {
	OrderID    string
	ChangeType domain.ChangeType
	Changes    duffel.RequestedChanges
	Reason     string
}

type CreateChangeResult struct {
	Request *domain.ChangeRequest
	Offers  []duffel.ChangeOffer
	Warning string
}

type ConfirmChangeInput struct {
	ChangeRequestID string
	SelectedOfferID string
	Payment         *duffel.Payment
}

type ConfirmChangeResult struct {
	Request *domain.ChangeRequest
	Change  *duffel.ConfirmedChange
	Warning string
}

func (s *ChangeService) OrderEligibility(ctx context.Context, userID, orderID string) (*OrderEligibility, error) {
	booking, err := s.bookings.GetByOrderID(ctx, userID, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	policy, err := s.changePolicy(ctx, booking.OrderID)
	if err != nil {
		return nil, err
	}

	history, err := s.changes.ListByOrderID(ctx, userID, booking.OrderID)
	if err != nil {
		return nil, err
	}

	return &OrderEligibility{Booking: booking, Policy: *policy, History: history}, nil
}

func (s *ChangeService) changePolicy(ctx context.Context, orderID string) (*ChangePolicy, error) {
	if s.cache != nil {
		var cached ChangePolicy
		if hit, err := s.cache.GetEligibility(ctx, orderID, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	order, err := s.gateway.GetOrder(ctx, orderID)
	if err != nil {
		var gwErr *duffel.Error
		if errors.As(err, &gwErr) && gwErr.Kind == duffel.KindNotFound {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	policy := &ChangePolicy{}
	if cond := order.Conditions.ChangeBeforeDeparture; cond != nil {
		policy.Allowed = cond.Allowed
		policy.PenaltyAmount = cond.PenaltyAmount
		policy.PenaltyCurrency = cond.PenaltyCurrency
		policy.Deadline = cond.Deadline
		policy.Restrictions = cond.Restrictions
	}

	if s.cache != nil {
		_ = s.cache.SetEligibility(ctx, orderID, policy)
	}
	return policy, nil
}

func (s *ChangeService) ChangeRequestDetail(ctx context.Context, userID, changeRequestID string) (*ChangeDetail, error) {
	cr, err := s.changes.GetByExternalID(ctx, userID, changeRequestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrChangeRequestNotFound
		}
		return nil, err
	}

	remote, err := s.gateway.GetChangeRequest(ctx, cr.ExternalID)
	if err != nil {
		var gwErr *duffel.Error
		if errors.As(err, &gwErr) && gwErr.Kind == duffel.KindNotFound {
			return nil, ErrChangeRequestNotFound
		}
		return nil, err
	}

	return &ChangeDetail{Request: cr, Offers: remote.Offers}, nil
}

func (s *ChangeService) CreateChangeRequest(ctx context.Context, userID string, input CreateChangeInput) (*CreateChangeResult, error) {
	if input.OrderID == "" {
		return nil, errors.New("order id is required")
	}
	if !domain.ValidChangeType(input.ChangeType) {
		return nil, ErrInvalidChangeType
	}

	booking, err := s.bookings.GetByOrderID(ctx, userID, input.OrderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	changes := input.Changes
	normalizeChanges(&changes)

	remote, err := s.gateway.CreateChangeRequest(ctx, duffel.CreateChangeRequestInput{
		OrderID: booking.OrderID,
		Changes: changes,
	})
	if err != nil {
		return nil, err
	}

	requested, err := json.Marshal(changes)
	if err != nil {
		return nil, fmt.Errorf("marshal requested changes: %w", err)
	}

	cr := &domain.ChangeRequest{
		ExternalID:       remote.ID,
		UserID:           userID,
		OrderID:          booking.OrderID,
		ChangeType:       input.ChangeType,
		RequestedChanges: requested,
		Reason:           input.Reason,
		BookingSnapshot:  bookingSnapshot(booking),
		OffersExpireAt:   offersExpireAt(remote.Offers),
	}

	result := &CreateChangeResult{Request: cr, Offers: remote.Offers}

	// The external change request already exists at this point, so a local
	// insert failure must not fail the call. The caller gets a warning.
	if err := s.changes.Create(ctx, cr); err != nil {
		log.Printf("WARNING: change request %s created externally but not recorded locally: %v", remote.ID, err)
		cr.Status = domain.ChangeStatusPending
		result.Warning = "change request was created but could not be recorded locally"
	}

	s.publish(ctx, "change_requested", cr)
	return result, nil
}

func (s *ChangeService) ConfirmChange(ctx context.Context, userID string, input ConfirmChangeInput) (*ConfirmChangeResult, error) {
	if input.ChangeRequestID == "" || input.SelectedOfferID == "" {
		return nil, errors.New("change request id and selected offer id are required")
	}

	cr, err := s.changes.GetByExternalID(ctx, userID, input.ChangeRequestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrChangeRequestNotFound
		}
		return nil, err
	}
	if cr.Status != domain.ChangeStatusPending {
		return nil, ErrNotPending
	}

	if s.cache != nil {
		ok, err := s.cache.AcquireConfirmLock(ctx, cr.ExternalID, s.confirmLockTTL)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrConfirmInProgress
		}
		defer func() {
			_ = s.cache.ReleaseConfirmLock(ctx, cr.ExternalID)
		}()
	}

	confirmed, err := s.gateway.ConfirmChangeOffer(ctx, input.SelectedOfferID, input.Payment)
	if err != nil {
		s.recordConfirmFailure(ctx, cr, err)
		return nil, err
	}

	confirmation, err := json.Marshal(confirmed)
	if err != nil {
		return nil, fmt.Errorf("marshal confirmation: %w", err)
	}

	result := &ConfirmChangeResult{Change: confirmed}

	updated, err := s.changes.Confirm(ctx, userID, cr.ExternalID, input.SelectedOfferID, confirmation)
	if err != nil {
		log.Printf("WARNING: change %s confirmed externally but local update failed: %v", cr.ExternalID, err)
		result.Warning = "change was confirmed but could not be recorded locally"
		now := time.Now()
		cr.Status = domain.ChangeStatusConfirmed
		cr.SelectedOfferID = input.SelectedOfferID
		cr.Confirmation = confirmation
		cr.ConfirmedAt = &now
		updated = cr
	}
	result.Request = updated

	if confirmed.Order != nil {
		if err := s.applyOrderUpdate(ctx, updated, confirmed); err != nil {
			log.Printf("WARNING: booking update after confirmed change %s failed: %v", cr.ExternalID, err)
			if result.Warning == "" {
				result.Warning = "change was confirmed but the booking record could not be updated"
			}
		}
	}

	s.publish(ctx, "change_confirmed", updated)
	return result, nil
}

func (s *ChangeService) recordConfirmFailure(ctx context.Context, cr *domain.ChangeRequest, cause error) {
	var gwErr *duffel.Error
	if !errors.As(cause, &gwErr) {
		return
	}
	switch gwErr.Kind {
	case duffel.KindOfferExpired:
		if err := s.changes.MarkStatus(ctx, cr.ExternalID, domain.ChangeStatusExpired); err != nil {
			log.Printf("WARNING: mark change request %s expired: %v", cr.ExternalID, err)
		}
		cr.Status = domain.ChangeStatusExpired
		s.publish(ctx, "change_expired", cr)
	case duffel.KindPaymentFailed:
		if err := s.changes.MarkStatus(ctx, cr.ExternalID, domain.ChangeStatusFailed); err != nil {
			log.Printf("WARNING: mark change request %s failed: %v", cr.ExternalID, err)
		}
		cr.Status = domain.ChangeStatusFailed
		s.publish(ctx, "change_failed", cr)
	}
}

func (s *ChangeService) applyOrderUpdate(ctx context.Context, cr *domain.ChangeRequest, confirmed *duffel.ConfirmedChange) error {
	order := confirmed.Order
	breadcrumb, err := json.Marshal(map[string]interface{}{
		"last_change": map[string]interface{}{
			"change_request_id": cr.ExternalID,
			"offer_id":          cr.SelectedOfferID,
			"change_type":       cr.ChangeType,
			"changed_at":        time.Now().UTC().Format(time.RFC3339),
			"change_total":      confirmed.ChangeTotalAmount,
		},
	})
	if err != nil {
		return err
	}
	return s.bookings.ApplyChange(ctx, cr.UserID, cr.OrderID, order.Status, order.TotalAmount, order.TotalCurrency, breadcrumb)
}

func (s *ChangeService) ExpirePendingChanges(ctx context.Context) ([]domain.ChangeRequest, error) {
	expired, err := s.changes.ExpirePendingBefore(ctx, time.Now())
	if err != nil {
		return nil, err
	}
	for i := range expired {
		s.publish(ctx, "change_expired", &expired[i])
	}
	return expired, nil
}

func (s *ChangeService) publish(ctx context.Context, eventType string, cr *domain.ChangeRequest) {
	if s.producer == nil || s.changesTopic == "" {
		return
	}
	event := kafka.ChangeEvent{
		ID:              uuid.NewString(),
		Type:            eventType,
		ChangeRequestID: cr.ExternalID,
		OrderID:         cr.OrderID,
		UserID:          cr.UserID,
		ChangeType:      string(cr.ChangeType),
		Status:          string(cr.Status),
		SelectedOfferID: cr.SelectedOfferID,
		OccurredAt:      time.Now().UTC(),
	}
	if err := s.producer.Publish(ctx, s.changesTopic, cr.ExternalID, event); err != nil {
		log.Printf("WARNING: failed to publish %s event for change request %s: %v", eventType, cr.ExternalID, err)
		return
	}
	if s.notificationsTopic != "" {
		if err := s.producer.Publish(ctx, s.notificationsTopic, cr.ExternalID, event); err != nil {
			log.Printf("WARNING: failed to publish notification for change request %s: %v", cr.ExternalID, err)
		}
	}
}

func normalizeChanges(changes *duffel.RequestedChanges) {
	if changes.Slices.Add == nil {
		changes.Slices.Add = []duffel.SliceAdd{}
	}
	if changes.Slices.Remove == nil {
		changes.Slices.Remove = []string{}
	}
	if changes.Passengers.Add == nil {
		changes.Passengers.Add = []json.RawMessage{}
	}
	if changes.Passengers.Remove == nil {
		changes.Passengers.Remove = []string{}
	}
}

func bookingSnapshot(b *domain.Booking) json.RawMessage {
	snapshot, err := json.Marshal(map[string]interface{}{
		"order_id":       b.OrderID,
		"status":         b.Status,
		"total_amount":   b.TotalAmount,
		"total_currency": b.TotalCurrency,
		"metadata":       b.Metadata,
	})
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return snapshot
}

// offersExpireAt returns the latest offer expiry. A request with no
// offers expires immediately: there is nothing to confirm, so the next
// sweep moves it to EXPIRED.
func offersExpireAt(offers []duffel.ChangeOffer) time.Time {
	latest := time.Now()
	for _, offer := range offers {
		if offer.ExpiresAt.After(latest) {
			latest = offer.ExpiresAt
		}
	}
	return latest
}

var _ ChangeUseCase = (*ChangeService)(nil)
