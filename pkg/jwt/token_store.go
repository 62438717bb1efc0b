package jwt

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mbeoliero/huddle/pkg/constant"
)

// Token status constants
const (
	TokenStatusNormal = 1 // Token is valid
	TokenStatusKicked = 2 // Token was kicked by new login
	TokenStatusLogout = 4 // Token was logged out
)

// TokenStore tracks issued tokens per user and platform in Redis so a login
// can kick older sessions and a logout can revoke one before it expires.
type TokenStore struct {
	rdb          *redis.Client
	accessExpire time.Duration
}

// NewTokenStore creates a new TokenStore
func NewTokenStore(rdb *redis.Client, expireHours int) *TokenStore {
	return &TokenStore{
		rdb:          rdb,
		accessExpire: time.Duration(expireHours) * time.Hour,
	}
}

// tokenKey is {prefix}token:{userId}:{platformId}, a hash of token -> status
func tokenKey(userId string, platformId int) string {
	return fmt.Sprintf("%s%s:%d", constant.RedisKeyToken(), userId, platformId)
}

// StoreToken records token as valid and refreshes the hash expiry
func (s *TokenStore) StoreToken(ctx context.Context, userId string, platformId int, token string) error {
	key := tokenKey(userId, platformId)

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, token, TokenStatusNormal)
	pipe.Expire(ctx, key, s.accessExpire)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// IsTokenValid reports whether token is known and still in normal status
func (s *TokenStore) IsTokenValid(ctx context.Context, userId string, platformId int, token string) (bool, error) {
	statusStr, err := s.rdb.HGet(ctx, tokenKey(userId, platformId), token).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get token status: %w", err)
	}

	status, err := strconv.Atoi(statusStr)
	if err != nil {
		return false, fmt.Errorf("invalid token status value: %w", err)
	}
	return status == TokenStatusNormal, nil
}

// InvalidateToken marks a known token as logged out
func (s *TokenStore) InvalidateToken(ctx context.Context, userId string, platformId int, token string) error {
	key := tokenKey(userId, platformId)

	exists, err := s.rdb.HExists(ctx, key, token).Result()
	if err != nil {
		return fmt.Errorf("failed to check token existence: %w", err)
	}
	if !exists {
		return nil
	}

	if err := s.rdb.HSet(ctx, key, token, TokenStatusLogout).Err(); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}
	return nil
}

// KickOtherTokens marks every other valid token of userId on platformId as
// kicked and returns them
func (s *TokenStore) KickOtherTokens(ctx context.Context, userId string, platformId int, currentToken string) ([]string, error) {
	key := tokenKey(userId, platformId)

	tokens, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get tokens: %w", err)
	}

	var kicked []string
	for token, statusStr := range tokens {
		if token == currentToken {
			continue
		}
		if status, _ := strconv.Atoi(statusStr); status == TokenStatusNormal {
			kicked = append(kicked, token)
		}
	}
	if len(kicked) == 0 {
		return nil, nil
	}

	pipe := s.rdb.TxPipeline()
	for _, token := range kicked {
		pipe.HSet(ctx, key, token, TokenStatusKicked)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to kick tokens: %w", err)
	}
	return kicked, nil
}
