package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const typingTTL = 5 * time.Second

// TypingIndicator tracks who is typing in a room
type TypingIndicator interface {
	SetTyping(ctx context.Context, roomID, userID string, typing bool) error
	Typing(ctx context.Context, roomID string, userIDs []string) ([]string, error)
}

// RedisTyping keeps one short lived key per typing member
type RedisTyping struct {
	rdb *redis.Client
}

// NewRedisTyping creates a typing indicator on rdb
func NewRedisTyping(rdb *redis.Client) *RedisTyping {
	return &RedisTyping{rdb: rdb}
}

func typingKey(roomID, userID string) string {
	return fmt.Sprintf("typing:%s:%s", roomID, userID)
}

// SetTyping marks userID as typing for a few seconds, or clears the mark
func (t *RedisTyping) SetTyping(ctx context.Context, roomID, userID string, typing bool) error {
	key := typingKey(roomID, userID)
	if !typing {
		return t.rdb.Del(ctx, key).Err()
	}
	return t.rdb.Set(ctx, key, "1", typingTTL).Err()
}

// Typing returns the members of userIDs that are currently typing
func (t *RedisTyping) Typing(ctx context.Context, roomID string, userIDs []string) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = typingKey(roomID, id)
	}
	values, err := t.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	var typing []string
	for i, v := range values {
		if v != nil {
			typing = append(typing, userIDs[i])
		}
	}
	return typing, nil
}

// RedisTokens is a TokenRegistry of single use refresh tokens
type RedisTokens struct {
	rdb *redis.Client
}

// NewRedisTokens creates a refresh token registry on rdb
func NewRedisTokens(rdb *redis.Client) *RedisTokens {
	return &RedisTokens{rdb: rdb}
}

func refreshKey(tokenID string) string {
	return "refresh:" + tokenID
}

// Save remembers tokenID for ttl
func (r *RedisTokens) Save(ctx context.Context, tokenID, userID string, ttl time.Duration) error {
	return r.rdb.Set(ctx, refreshKey(tokenID), userID, ttl).Err()
}

// Consume returns the owner of tokenID and forgets it
func (r *RedisTokens) Consume(ctx context.Context, tokenID string) (string, error) {
	userID, err := r.rdb.Get(ctx, refreshKey(tokenID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTokenRevoked
	}
	if err != nil {
		return "", err
	}
	if err := r.rdb.Del(ctx, refreshKey(tokenID)).Err(); err != nil {
		return "", err
	}
	return userID, nil
}
