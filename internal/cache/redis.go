package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hardik18-hk19/urbi-fix-sub000/config"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/domain"
)

// RedisCache keeps hot negotiation reads off postgres: booking snapshots
// (invalidated on every transition) and the booking -> room id mapping,
// which never changes once created.
type RedisCache struct {
	client     *redis.Client
	bookingTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, bookingTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:     redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		bookingTTL: bookingTTL,
	}
}

func (c *RedisCache) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	data, err := c.client.Get(ctx, bookingKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var booking domain.Booking
	if err := json.Unmarshal(data, &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

func (c *RedisCache) SetBooking(ctx context.Context, booking *domain.Booking) error {
	payload, err := json.Marshal(booking)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, bookingKey(booking.ID), payload, c.bookingTTL).Err()
}

func (c *RedisCache) InvalidateBooking(ctx context.Context, id uuid.UUID) error {
	return c.client.Del(ctx, bookingKey(id)).Err()
}

func (c *RedisCache) GetRoomID(ctx context.Context, bookingID uuid.UUID) (uuid.UUID, error) {
	val, err := c.client.Get(ctx, roomKey(bookingID)).Result()
	if err != nil {
		if err == redis.Nil {
			return uuid.Nil, nil
		}
		return uuid.Nil, err
	}
	return uuid.Parse(val)
}

func (c *RedisCache) SetRoomID(ctx context.Context, bookingID, roomID uuid.UUID) error {
	return c.client.Set(ctx, roomKey(bookingID), roomID.String(), 0).Err()
}

func bookingKey(id uuid.UUID) string {
	return fmt.Sprintf("cache:booking:%s", id)
}

func roomKey(bookingID uuid.UUID) string {
	return fmt.Sprintf("cache:room:booking:%s", bookingID)
}
