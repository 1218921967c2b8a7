package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/suitpax/orderchanges/internal/domain"
)

type ChangeRequestRepository interface {
	Create(ctx context.Context, cr *domain.ChangeRequest) error
	GetByExternalID(ctx context.Context, userID, externalID string) (*domain.ChangeRequest, error)
	ListByOrderID(ctx context.Context, userID, orderID string) ([]domain.ChangeRequest, error)
	Confirm(ctx context.Context, userID, externalID, selectedOfferID string, confirmation json.RawMessage) (*domain.ChangeRequest, error)
	MarkStatus(ctx context.Context, externalID string, status domain.ChangeStatus) error
	ExpirePendingBefore(ctx context.Context, deadline time.Time) ([]domain.ChangeRequest, error)
}

type PGChangeRequestRepository struct {
	db *pgxpool.Pool
}

func NewChangeRequestRepository(db *pgxpool.Pool) ChangeRequestRepository {
	return &PGChangeRequestRepository{db: db}
}

const changeRequestColumns = `id, external_id, user_id, order_id, change_type, status, requested_changes, reason, booking_snapshot, selected_offer_id, confirmation, offers_expire_at, created_at, updated_at, confirmed_at`

func (r *PGChangeRequestRepository) Create(ctx context.Context, cr *domain.ChangeRequest) error {
	cr.Status = domain.ChangeStatusPending
	return r.db.QueryRow(ctx, `INSERT INTO change_requests (external_id, user_id, order_id, change_type, status, requested_changes, reason, booking_snapshot, offers_expire_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		cr.ExternalID, cr.UserID, cr.OrderID, cr.ChangeType, cr.Status, cr.RequestedChanges, cr.Reason, cr.BookingSnapshot, cr.OffersExpireAt).
		Scan(&cr.ID, &cr.CreatedAt, &cr.UpdatedAt)
}

func (r *PGChangeRequestRepository) GetByExternalID(ctx context.Context, userID, externalID string) (*domain.ChangeRequest, error) {
	row := r.db.QueryRow(ctx, `SELECT `+changeRequestColumns+` FROM change_requests WHERE external_id=$1 AND user_id=$2`, externalID, userID)
	return scanChangeRequest(row)
}

func (r *PGChangeRequestRepository) ListByOrderID(ctx context.Context, userID, orderID string) ([]domain.ChangeRequest, error) {
	rows, err := r.db.Query(ctx, `SELECT `+changeRequestColumns+` FROM change_requests WHERE order_id=$1 AND user_id=$2 ORDER BY created_at DESC`, orderID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := make([]domain.ChangeRequest, 0)
	for rows.Next() {
		cr, err := scanChangeRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *cr)
	}
	return requests, rows.Err()
}

// Confirm moves a PENDING row to CONFIRMED. The status guard in the WHERE
// clause makes the transition happen at most once even under racing calls.
func (r *PGChangeRequestRepository) Confirm(ctx context.Context, userID, externalID, selectedOfferID string, confirmation json.RawMessage) (*domain.ChangeRequest, error) {
	row := r.db.QueryRow(ctx, `UPDATE change_requests
		SET status=$1, selected_offer_id=$2, confirmation=$3, confirmed_at=now(), updated_at=now()
		WHERE external_id=$4 AND user_id=$5 AND status=$6
		RETURNING `+changeRequestColumns,
		domain.ChangeStatusConfirmed, selectedOfferID, confirmation, externalID, userID, domain.ChangeStatusPending)
	return scanChangeRequest(row)
}

func (r *PGChangeRequestRepository) MarkStatus(ctx context.Context, externalID string, status domain.ChangeStatus) error {
	cmd, err := r.db.Exec(ctx, `UPDATE change_requests SET status=$1, updated_at=now() WHERE external_id=$2`, status, externalID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGChangeRequestRepository) ExpirePendingBefore(ctx context.Context, deadline time.Time) ([]domain.ChangeRequest, error) {
	rows, err := r.db.Query(ctx, `UPDATE change_requests SET status=$1, updated_at=now() WHERE status=$2 AND offers_expire_at <= $3 RETURNING `+changeRequestColumns,
		domain.ChangeStatusExpired, domain.ChangeStatusPending, deadline)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []domain.ChangeRequest
	for rows.Next() {
		cr, err := scanChangeRequest(rows)
		if err != nil {
			return nil, err
		}
		expired = append(expired, *cr)
	}
	return expired, rows.Err()
}

func scanChangeRequest(row pgx.Row) (*domain.ChangeRequest, error) {
	var cr domain.ChangeRequest
	if err := row.Scan(&cr.ID, &cr.ExternalID, &cr.UserID, &cr.OrderID, &cr.ChangeType, &cr.Status, &cr.RequestedChanges, &cr.Reason, &cr.BookingSnapshot, &cr.SelectedOfferID, &cr.Confirmation, &cr.OffersExpireAt, &cr.CreatedAt, &cr.UpdatedAt, &cr.ConfirmedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &cr, nil
}

var _ ChangeRequestRepository = (*PGChangeRequestRepository)(nil)
