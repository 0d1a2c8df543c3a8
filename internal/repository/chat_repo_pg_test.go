package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRow feeds fixed values into a scanner the way a pgx row would.
type stubRow struct {
	values []any
}

func (r stubRow) Scan(dest ...any) error {
	if len(dest) != len(r.values) {
		return fmt.Errorf("expected %d destinations, got %d", len(r.values), len(dest))
	}
	for i, src := range r.values {
		switch d := dest[i].(type) {
		case *uuid.UUID:
			*d = src.(uuid.UUID)
		case *time.Time:
			*d = src.(time.Time)
		default:
			return fmt.Errorf("unsupported destination %T", dest[i])
		}
	}
	return nil
}

func TestScanRoom_MapsColumns(t *testing.T) {
	id := uuid.New()
	bookingID := uuid.New()
	consumerID := uuid.New()
	providerID := uuid.New()
	createdAt := time.Now().UTC()

	room, err := scanRoom(stubRow{values: []any{id, bookingID, consumerID, providerID, createdAt}})

	require.NoError(t, err)
	assert.Equal(t, id, room.ID)
	assert.Equal(t, bookingID, room.BookingID)
	assert.Equal(t, consumerID, room.ConsumerID)
	assert.Equal(t, providerID, room.ProviderID)
	assert.True(t, room.CreatedAt.Equal(createdAt))
}

func TestScanRoom_PropagatesScanError(t *testing.T) {
	_, err := scanRoom(stubRow{values: []any{uuid.New()}})
	assert.Error(t, err)
}
