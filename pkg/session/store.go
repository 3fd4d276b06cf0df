// Package session provides the redis-backed session store: the signed-in
// claims recorded by the sign-in flow and the per-session alert queue
// drained on render.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/turner-mzeller/GitHubPortal/pkg/usercontext"
)

// CookieName carries the session id on the wire.
const CookieName = "sid"

// Alert is one ephemeral, session-scoped notification. Contexts follow
// the severity names the views understand: success, info, warning,
// danger.
type Alert struct {
	Message string `json:"message"`
	Title   string `json:"title"`
	Context string `json:"context"`
	Link    string `json:"link,omitempty"`
	Caption string `json:"caption,omitempty"`
	// Number is assigned when the queue is drained, 1-based in queue
	// order.
	Number int `json:"number,omitempty"`
}

// Store keeps sessions in redis under the configured prefix with a
// shared TTL.
type Store struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
}

// NewStore creates a session store.
func NewStore(redisClient *redis.Client, prefix string, ttl time.Duration) *Store {
	return &Store{redis: redisClient, prefix: prefix, ttl: ttl}
}

func (s *Store) userKey(sessionID string) string {
	return s.prefix + ".session:" + sessionID + ":user"
}

func (s *Store) alertsKey(sessionID string) string {
	return s.prefix + ".session:" + sessionID + ":alerts"
}

// SaveUser records the session's signed-in claims.
func (s *Store) SaveUser(ctx context.Context, sessionID string, user *usercontext.RequestUser) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode session user: %w", err)
	}
	if err := s.redis.Set(ctx, s.userKey(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session user: %w", err)
	}
	return nil
}

// User returns the session's signed-in claims, or nil for an anonymous
// session.
func (s *Store) User(ctx context.Context, sessionID string) (*usercontext.RequestUser, error) {
	data, err := s.redis.Get(ctx, s.userKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session user: %w", err)
	}
	var user usercontext.RequestUser
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to decode session user: %w", err)
	}
	return &user, nil
}

// ClearUser signs the session out.
func (s *Store) ClearUser(ctx context.Context, sessionID string) error {
	return s.redis.Del(ctx, s.userKey(sessionID)).Err()
}

// SaveAlert appends an alert to the session's ordered queue. Empty
// title and context take the usual defaults.
func (s *Store) SaveAlert(ctx context.Context, sessionID string, alert Alert) error {
	if alert.Title == "" {
		alert.Title = "FYI"
	}
	if alert.Context == "" {
		alert.Context = "success"
	}
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}
	key := s.alertsKey(sessionID)
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save alert: %w", err)
	}
	return nil
}

// DrainAlerts removes and returns every queued alert in order, numbering
// them 1..n. Alerts are drained exactly once; a second drain returns an
// empty list.
func (s *Store) DrainAlerts(ctx context.Context, sessionID string) ([]Alert, error) {
	key := s.alertsKey(sessionID)
	pipe := s.redis.TxPipeline()
	entries := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to drain alerts: %w", err)
	}
	raw, err := entries.Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read alerts: %w", err)
	}
	alerts := make([]Alert, 0, len(raw))
	for i, entry := range raw {
		var alert Alert
		if err := json.Unmarshal([]byte(entry), &alert); err != nil {
			return nil, fmt.Errorf("failed to decode alert: %w", err)
		}
		alert.Number = i + 1
		alerts = append(alerts, alert)
	}
	return alerts, nil
}
