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

// ProposalFilter narrows ListByUser results.
type ProposalFilter struct {
	// Direction is "sent", "received" or "" for both.
	Direction string
	Status    *domain.ProposalStatus
}

type ProposalRepository interface {
	Create(ctx context.Context, proposal *domain.Proposal) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Proposal, error)
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]domain.Proposal, error)
	ListByUser(ctx context.Context, userID uuid.UUID, filter ProposalFilter) ([]domain.Proposal, error)
	// Resolve moves a pending proposal to a terminal status exactly once.
	// A proposal that is no longer pending yields domain.ErrConflict.
	Resolve(ctx context.Context, id uuid.UUID, status domain.ProposalStatus, responseMessage string) (*domain.Proposal, error)
	// ExpirePendingBefore marks pending proposals past their deadline as
	// expired and returns them, for the sweep worker.
	ExpirePendingBefore(ctx context.Context, deadline time.Time) ([]domain.Proposal, error)
}

type PGProposalRepository struct {
	db *pgxpool.Pool
}

func NewProposalRepository(db *pgxpool.Pool) ProposalRepository {
	return &PGProposalRepository{db: db}
}

const proposalColumns = `id, booking_id, proposed_by, proposed_to, kind, changes, justification, status, response_message, expires_at, created_at, updated_at`

func (r *PGProposalRepository) Create(ctx context.Context, proposal *domain.Proposal) error {
	changes, err := json.Marshal(proposal.Changes)
	if err != nil {
		return fmt.Errorf("marshal proposed changes: %w", err)
	}
	proposal.Status = domain.ProposalStatusPending
	return r.db.QueryRow(ctx, `INSERT INTO proposals (id, booking_id, proposed_by, proposed_to, kind, changes, justification, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		proposal.ID, proposal.BookingID, proposal.ProposedBy, proposal.ProposedTo, proposal.Kind,
		changes, proposal.Justification, proposal.Status, proposal.ExpiresAt).
		Scan(&proposal.CreatedAt, &proposal.UpdatedAt)
}

func (r *PGProposalRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Proposal, error) {
	row := r.db.QueryRow(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id=$1`, id)
	p, err := scanProposal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("proposal %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	return p, nil
}

func (r *PGProposalRepository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]domain.Proposal, error) {
	rows, err := r.db.Query(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE booking_id=$1 ORDER BY created_at DESC`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProposals(rows)
}

func (r *PGProposalRepository) ListByUser(ctx context.Context, userID uuid.UUID, filter ProposalFilter) ([]domain.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE `
	args := []any{userID}
	switch filter.Direction {
	case "sent":
		query += `proposed_by=$1`
	case "received":
		query += `proposed_to=$1`
	default:
		query += `(proposed_by=$1 OR proposed_to=$1)`
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(` AND status=$%d`, len(args))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProposals(rows)
}

func (r *PGProposalRepository) Resolve(ctx context.Context, id uuid.UUID, status domain.ProposalStatus, responseMessage string) (*domain.Proposal, error) {
	row := r.db.QueryRow(ctx, `UPDATE proposals SET status=$1, response_message=$2, updated_at=now()
		WHERE id=$3 AND status=$4
		RETURNING `+proposalColumns,
		status, responseMessage, id, domain.ProposalStatusPending)
	p, err := scanProposal(row)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// The pending guard did not match: not found, or already resolved.
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("proposal is %s: %w", current.Status, domain.ErrConflict)
}

func (r *PGProposalRepository) ExpirePendingBefore(ctx context.Context, deadline time.Time) ([]domain.Proposal, error) {
	rows, err := r.db.Query(ctx, `UPDATE proposals SET status=$1, updated_at=now()
		WHERE status=$2 AND expires_at <= $3
		RETURNING `+proposalColumns,
		domain.ProposalStatusExpired, domain.ProposalStatusPending, deadline)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProposals(rows)
}

func collectProposals(rows pgx.Rows) ([]domain.Proposal, error) {
	var proposals []domain.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, *p)
	}
	return proposals, rows.Err()
}

func scanProposal(row pgx.Row) (*domain.Proposal, error) {
	var p domain.Proposal
	var changes []byte
	if err := row.Scan(&p.ID, &p.BookingID, &p.ProposedBy, &p.ProposedTo, &p.Kind, &changes,
		&p.Justification, &p.Status, &p.ResponseMessage, &p.ExpiresAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(changes, &p.Changes); err != nil {
		return nil, fmt.Errorf("unmarshal proposed changes: %w", err)
	}
	return &p, nil
}

var _ ProposalRepository = (*PGProposalRepository)(nil)
