package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/suitpax/orderchanges/internal/domain"
)

var ErrNotFound = errors.New("not found")

type BookingRepository interface {
	GetByOrderID(ctx context.Context, userID, orderID string) (*domain.Booking, error)
	ApplyChange(ctx context.Context, userID, orderID, status, totalAmount, totalCurrency string, metadata json.RawMessage) error
}

type PGBookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) BookingRepository {
	return &PGBookingRepository{db: db}
}

func (r *PGBookingRepository) GetByOrderID(ctx context.Context, userID, orderID string) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT id, order_id, user_id, status, total_amount, total_currency, metadata, created_at, updated_at FROM bookings WHERE order_id=$1 AND user_id=$2`, orderID, userID)
	var b domain.Booking
	if err := row.Scan(&b.ID, &b.OrderID, &b.UserID, &b.Status, &b.TotalAmount, &b.TotalCurrency, &b.Metadata, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// ApplyChange records the outcome of a confirmed order change: new status,
// new totals, and a metadata merge that appends the last_change breadcrumb.
func (r *PGBookingRepository) ApplyChange(ctx context.Context, userID, orderID, status, totalAmount, totalCurrency string, metadata json.RawMessage) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE bookings
		SET status=$1,
		    total_amount=$2,
		    total_currency=$3,
		    metadata = COALESCE(metadata, '{}'::jsonb) || $4::jsonb,
		    updated_at = now()
		WHERE order_id=$5 AND user_id=$6
	`, status, totalAmount, totalCurrency, metadata, orderID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var _ BookingRepository = (*PGBookingRepository)(nil)
