package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hardik18-hk19/urbi-fix-sub000/internal/domain"
)

// BookingUpdate carries the optional field changes applied together with a
// status transition. Nil fields are left untouched.
type BookingUpdate struct {
	NegotiatedAmountCents *int64
	ScheduledDate         *time.Time
	ScheduledTime         *string
	Notes                 *string
}

type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	// UpdateStatus applies the transition with optimistic concurrency: the
	// write succeeds only while the stored status still equals expected.
	// A stale expected status yields domain.ErrConflict.
	UpdateStatus(ctx context.Context, id uuid.UUID, expected, target domain.BookingStatus, update *BookingUpdate) (*domain.Booking, error)
	ListByParticipant(ctx context.Context, userID uuid.UUID) ([]domain.Booking, error)
}

type PGBookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) BookingRepository {
	return &PGBookingRepository{db: db}
}

const bookingColumns = `id, consumer_id, provider_id, service_id, status, original_amount_cents, negotiated_amount_cents, scheduled_date, scheduled_time, notes, payment_status, created_at, updated_at`

func (r *PGBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	if booking.Status == "" {
		booking.Status = domain.BookingStatusPending
	}
	if booking.PaymentStatus == "" {
		booking.PaymentStatus = domain.PaymentStatusPending
	}
	return r.db.QueryRow(ctx, `INSERT INTO bookings (id, consumer_id, provider_id, service_id, status, original_amount_cents, negotiated_amount_cents, scheduled_date, scheduled_time, notes, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET updated_at = bookings.updated_at
		RETURNING created_at, updated_at`,
		booking.ID, booking.ConsumerID, booking.ProviderID, booking.ServiceID, booking.Status,
		booking.OriginalAmountCents, booking.NegotiatedAmountCents, booking.ScheduledDate,
		booking.ScheduledTime, booking.Notes, booking.PaymentStatus).
		Scan(&booking.CreatedAt, &booking.UpdatedAt)
}

func (r *PGBookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("booking %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	return b, nil
}

func (r *PGBookingRepository) UpdateStatus(ctx context.Context, id uuid.UUID, expected, target domain.BookingStatus, update *BookingUpdate) (*domain.Booking, error) {
	if update == nil {
		update = &BookingUpdate{}
	}
	row := r.db.QueryRow(ctx, `UPDATE bookings SET
			status = $1,
			negotiated_amount_cents = COALESCE($2, negotiated_amount_cents),
			scheduled_date = COALESCE($3, scheduled_date),
			scheduled_time = COALESCE($4, scheduled_time),
			notes = COALESCE($5, notes),
			updated_at = now()
		WHERE id = $6 AND status = $7
		RETURNING `+bookingColumns,
		target, update.NegotiatedAmountCents, update.ScheduledDate, update.ScheduledTime, update.Notes, id, expected)
	b, err := scanBooking(row)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// Zero rows: either the booking is gone or another writer already moved
	// the status. Re-read to tell the two apart.
	var current domain.BookingStatus
	if err := r.db.QueryRow(ctx, `SELECT status FROM bookings WHERE id=$1`, id).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("booking %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	return nil, fmt.Errorf("booking status is %s, expected %s: %w", current, expected, domain.ErrConflict)
}

func (r *PGBookingRepository) ListByParticipant(ctx context.Context, userID uuid.UUID) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE consumer_id=$1 OR provider_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	if err := row.Scan(&b.ID, &b.ConsumerID, &b.ProviderID, &b.ServiceID, &b.Status,
		&b.OriginalAmountCents, &b.NegotiatedAmountCents, &b.ScheduledDate, &b.ScheduledTime,
		&b.Notes, &b.PaymentStatus, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

var _ BookingRepository = (*PGBookingRepository)(nil)
