package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hardik18-hk19/urbi-fix-sub000/internal/domain"
)

type ChatRepository interface {
	// CreateRoom is idempotent per booking: concurrent calls converge on the
	// single room row.
	CreateRoom(ctx context.Context, room *domain.ChatRoom) (*domain.ChatRoom, error)
	GetRoomByID(ctx context.Context, id uuid.UUID) (*domain.ChatRoom, error)
	GetRoomByBooking(ctx context.Context, bookingID uuid.UUID) (*domain.ChatRoom, error)
	ListRoomsByParticipant(ctx context.Context, userID uuid.UUID) ([]domain.ChatRoom, error)
	// AppendMessage assigns the room's next monotonic sequence number and
	// inserts the message. Sequencing is serialized on the room row.
	AppendMessage(ctx context.Context, message *domain.Message) error
	ListMessages(ctx context.Context, roomID uuid.UUID, page, pageSize int) ([]domain.Message, error)
	GetMessage(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	// ResolvePriceOffer moves a pending price offer to a terminal status
	// exactly once; an already-resolved offer yields domain.ErrConflict.
	ResolvePriceOffer(ctx context.Context, messageID uuid.UUID, status domain.OfferStatus) (*domain.Message, error)
	ExpirePriceOffersBefore(ctx context.Context, deadline time.Time) ([]domain.Message, error)
}

type PGChatRepository struct {
	db *pgxpool.Pool
}

func NewChatRepository(db *pgxpool.Pool) ChatRepository {
	return &PGChatRepository{db: db}
}

const roomColumns = `id, booking_id, consumer_id, provider_id, created_at`
const messageColumns = `id, room_id, sender_id, seq, type, content, reply_to, offer_status, offer_valid_until, created_at`

func (r *PGChatRepository) CreateRoom(ctx context.Context, room *domain.ChatRoom) (*domain.ChatRoom, error) {
	_, err := r.db.Exec(ctx, `INSERT INTO chat_rooms (id, booking_id, consumer_id, provider_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (booking_id) DO NOTHING`,
		room.ID, room.BookingID, room.ConsumerID, room.ProviderID)
	if err != nil {
		return nil, err
	}
	return r.GetRoomByBooking(ctx, room.BookingID)
}

func (r *PGChatRepository) GetRoomByID(ctx context.Context, id uuid.UUID) (*domain.ChatRoom, error) {
	row := r.db.QueryRow(ctx, `SELECT `+roomColumns+` FROM chat_rooms WHERE id=$1`, id)
	room, err := scanRoom(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("chat room %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	return room, nil
}

func (r *PGChatRepository) GetRoomByBooking(ctx context.Context, bookingID uuid.UUID) (*domain.ChatRoom, error) {
	row := r.db.QueryRow(ctx, `SELECT `+roomColumns+` FROM chat_rooms WHERE booking_id=$1`, bookingID)
	room, err := scanRoom(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("chat room for booking %s: %w", bookingID, domain.ErrNotFound)
		}
		return nil, err
	}
	return room, nil
}

func (r *PGChatRepository) ListRoomsByParticipant(ctx context.Context, userID uuid.UUID) ([]domain.ChatRoom, error) {
	rows, err := r.db.Query(ctx, `SELECT `+roomColumns+` FROM chat_rooms WHERE consumer_id=$1 OR provider_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []domain.ChatRoom
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, *room)
	}
	return rooms, rows.Err()
}

func (r *PGChatRepository) AppendMessage(ctx context.Context, message *domain.Message) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// The room row lock serializes sequence assignment per room; concurrent
	// senders never collide on seq.
	var seq int64
	if err := tx.QueryRow(ctx, `UPDATE chat_rooms SET next_seq = next_seq + 1 WHERE id=$1 RETURNING next_seq`, message.RoomID).Scan(&seq); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("chat room %s: %w", message.RoomID, domain.ErrNotFound)
		}
		return err
	}
	message.Seq = seq

	content, offerStatus, offerValidUntil, err := encodeContent(message)
	if err != nil {
		return err
	}

	if err := tx.QueryRow(ctx, `INSERT INTO messages (id, room_id, sender_id, seq, type, content, reply_to, offer_status, offer_valid_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`,
		message.ID, message.RoomID, message.SenderID, message.Seq, message.Type,
		content, message.ReplyTo, offerStatus, offerValidUntil).
		Scan(&message.CreatedAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PGChatRepository) ListMessages(ctx context.Context, roomID uuid.UUID, page, pageSize int) ([]domain.Message, error) {
	if page < 1 {
		page = 1
	}
	rows, err := r.db.Query(ctx, `SELECT `+messageColumns+` FROM messages WHERE room_id=$1 ORDER BY seq ASC LIMIT $2 OFFSET $3`,
		roomID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

func (r *PGChatRepository) GetMessage(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	row := r.db.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, id)
	m, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("message %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	return m, nil
}

func (r *PGChatRepository) ResolvePriceOffer(ctx context.Context, messageID uuid.UUID, status domain.OfferStatus) (*domain.Message, error) {
	row := r.db.QueryRow(ctx, `UPDATE messages SET offer_status=$1
		WHERE id=$2 AND type=$3 AND offer_status=$4
		RETURNING `+messageColumns,
		status, messageID, domain.MessageTypePriceOffer, domain.OfferStatusPending)
	m, err := scanMessage(row)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	current, err := r.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if current.Type != domain.MessageTypePriceOffer || current.Content.PriceOffer == nil {
		return nil, fmt.Errorf("message %s is not a price offer: %w", messageID, domain.ErrNotFound)
	}
	return nil, fmt.Errorf("price offer is %s: %w", current.Content.PriceOffer.Status, domain.ErrConflict)
}

func (r *PGChatRepository) ExpirePriceOffersBefore(ctx context.Context, deadline time.Time) ([]domain.Message, error) {
	rows, err := r.db.Query(ctx, `UPDATE messages SET offer_status=$1
		WHERE type=$2 AND offer_status=$3 AND offer_valid_until <= $4
		RETURNING `+messageColumns,
		domain.OfferStatusExpired, domain.MessageTypePriceOffer, domain.OfferStatusPending, deadline)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

// encodeContent splits the price-offer lifecycle fields into dedicated
// columns so accept-once writes can guard on them.
func encodeContent(message *domain.Message) ([]byte, *domain.OfferStatus, *time.Time, error) {
	content, err := json.Marshal(message.Content)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal message content: %w", err)
	}
	if message.Type != domain.MessageTypePriceOffer || message.Content.PriceOffer == nil {
		return content, nil, nil, nil
	}
	status := message.Content.PriceOffer.Status
	validUntil := message.Content.PriceOffer.ValidUntil
	return content, &status, &validUntil, nil
}

func collectMessages(rows pgx.Rows) ([]domain.Message, error) {
	var messages []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *m)
	}
	return messages, rows.Err()
}

func scanRoom(row pgx.Row) (*domain.ChatRoom, error) {
	var r domain.ChatRoom
	if err := row.Scan(&r.ID, &r.BookingID, &r.ConsumerID, &r.ProviderID, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var m domain.Message
	var content []byte
	var offerStatus *domain.OfferStatus
	var offerValidUntil *time.Time
	if err := row.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Seq, &m.Type, &content,
		&m.ReplyTo, &offerStatus, &offerValidUntil, &m.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(content, &m.Content); err != nil {
		return nil, fmt.Errorf("unmarshal message content: %w", err)
	}
	// The lifecycle columns are authoritative for price offers.
	if m.Content.PriceOffer != nil {
		if offerStatus != nil {
			m.Content.PriceOffer.Status = *offerStatus
		}
		if offerValidUntil != nil {
			m.Content.PriceOffer.ValidUntil = *offerValidUntil
		}
	}
	return &m, nil
}

var _ ChatRepository = (*PGChatRepository)(nil)
