package uploadsession

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redisv9 "github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a token is unknown or its TTL elapsed.
var ErrNotFound = errors.New("upload session not found or expired")

// Session is a server-issued staging area for uploads made before an app
// is deployed. Tokens are minted here; client-generated correlation ids
// are never accepted.
type Session struct {
	Token     string    `json:"token"`
	TeamID    uint      `json:"team_id"`
	UserID    uint      `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store issues and resolves upload sessions.
type Store interface {
	Issue(ctx context.Context, teamID, userID uint) (*Session, error)
	Get(ctx context.Context, token string) (*Session, error)
	Touch(ctx context.Context, token string) error
	Delete(ctx context.Context, token string) error
}

type RedisStore struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewRedisStore(client *redisv9.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Issue(ctx context.Context, teamID, userID uint) (*Session, error) {
	now := time.Now()
	session := &Session{
		Token:     uuid.NewString(),
		TeamID:    teamID,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("marshal upload session failed: %w", err)
	}
	if err := s.client.Set(ctx, s.key(session.Token), payload, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("redis set upload session failed: %w", err)
	}
	return session, nil
}

func (s *RedisStore) Get(ctx context.Context, token string) (*Session, error) {
	raw, err := s.client.Get(ctx, s.key(token)).Result()
	if err == redisv9.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get upload session failed: %w", err)
	}
	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("unmarshal upload session failed: %w", err)
	}
	return &session, nil
}

// Touch extends the TTL so an active upload flow does not expire mid-way.
func (s *RedisStore) Touch(ctx context.Context, token string) error {
	ok, err := s.client.Expire(ctx, s.key(token), s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis touch upload session failed: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("redis delete upload session failed: %w", err)
	}
	return nil
}

func (s *RedisStore) key(token string) string {
	return "upload:session:" + token
}
