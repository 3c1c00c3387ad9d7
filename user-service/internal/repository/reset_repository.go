package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const resetTokenKeyPrefix = "reset:token:"

var ErrResetTokenNotFound = errors.New("reset token not found or expired")

// ResetTokenRepository keeps password reset tokens in Redis until they expire
// or are consumed.
type ResetTokenRepository struct {
	redis *goredis.Client
}

func NewResetTokenRepository(redisClient *goredis.Client) *ResetTokenRepository {
	return &ResetTokenRepository{redis: redisClient}
}

func (r *ResetTokenRepository) Store(ctx context.Context, token, userID string, ttl time.Duration) error {
	if err := r.redis.Set(ctx, resetTokenKeyPrefix+token, userID, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}
	return nil
}

// Consume returns the user ID for token and deletes it.
func (r *ResetTokenRepository) Consume(ctx context.Context, token string) (string, error) {
	userID, err := r.redis.GetDel(ctx, resetTokenKeyPrefix+token).Result()
	if err == goredis.Nil {
		return "", ErrResetTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read reset token: %w", err)
	}
	return userID, nil
}
