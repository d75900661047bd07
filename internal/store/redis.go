// redis.go -- go-redis backend for pending handshakes and tickets.
//
// Lets the HTTP callback and the conversation runtime live in different
// processes. Values are JSON with a TTL; Take uses GETDEL so a code can only
// be consumed once.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements the handshake store on Redis.
type RedisStore struct {
	rdb        *redis.Client
	pendingTTL time.Duration
}

// NewRedisClient parses redisURL, connects and pings.
// Call once at startup from main.go...returned client is safe for concurrent use.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}

// NewRedisStore wraps an existing client. Pending handshakes expire after pendingTTL.
func NewRedisStore(rdb *redis.Client, pendingTTL time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, pendingTTL: pendingTTL}
}

// Close shuts down the Redis client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func redisPendingKey(conversationID string) string {
	return fmt.Sprintf("botauth:pending:%s", conversationID)
}

func redisTicketKey(id string) string {
	return fmt.Sprintf("botauth:ticket:%s", id)
}

// Pending returns the conversation's handshake, or ErrNotFound.
func (s *RedisStore) Pending(ctx context.Context, conversationID string) (*PendingHandshake, error) {
	raw, err := s.rdb.Get(ctx, redisPendingKey(conversationID)).Bytes()
	if err != nil {
		return nil, redisErr("fetching pending handshake", err)
	}
	return decodePending(raw)
}

// Issue writes p with the pending TTL, replacing any earlier record.
// Token and code land in the same SET.
func (s *RedisStore) Issue(ctx context.Context, p PendingHandshake) error {
	if p.ConversationID == "" {
		return errNoKey
	}
	out, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling pending handshake: %w", err)
	}
	if err := s.rdb.Set(ctx, redisPendingKey(p.ConversationID), out, s.pendingTTL).Err(); err != nil {
		return fmt.Errorf("storing pending handshake: %w", err)
	}
	return nil
}

// Take reads and deletes the conversation's handshake atomically, or returns ErrNotFound.
func (s *RedisStore) Take(ctx context.Context, conversationID string) (*PendingHandshake, error) {
	raw, err := s.rdb.GetDel(ctx, redisPendingKey(conversationID)).Bytes()
	if err != nil {
		return nil, redisErr("taking pending handshake", err)
	}
	return decodePending(raw)
}

// Clear deletes the conversation's handshake.
func (s *RedisStore) Clear(ctx context.Context, conversationID string) error {
	if err := s.rdb.Del(ctx, redisPendingKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("clearing pending handshake: %w", err)
	}
	return nil
}

// SaveTicket stores or updates t.
func (s *RedisStore) SaveTicket(ctx context.Context, t Ticket) error {
	if t.ID == "" {
		return errNoKey
	}
	out, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshaling ticket: %w", err)
	}
	if err := s.rdb.Set(ctx, redisTicketKey(t.ID), out, ticketRetention).Err(); err != nil {
		return fmt.Errorf("storing ticket: %w", err)
	}
	return nil
}

// Ticket returns the ticket with id, ErrNotFound, or ErrTicketExpired.
func (s *RedisStore) Ticket(ctx context.Context, id string) (*Ticket, error) {
	raw, err := s.rdb.Get(ctx, redisTicketKey(id)).Bytes()
	if err != nil {
		return nil, redisErr("fetching ticket", err)
	}
	var t Ticket
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("parsing ticket: %w", err)
	}
	if t.Expired(time.Now()) {
		return nil, ErrTicketExpired
	}
	return &t, nil
}

// CheckHealth pings Redis.
func (s *RedisStore) CheckHealth(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func decodePending(raw []byte) (*PendingHandshake, error) {
	var p PendingHandshake
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parsing pending handshake: %w", err)
	}
	return &p, nil
}

// redisErr maps redis.Nil to ErrNotFound and wraps anything else.
func redisErr(op string, err error) error {
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
