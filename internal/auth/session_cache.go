package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charlesng35/awards/internal/cache"
	"github.com/charlesng35/awards/internal/models"
)

const sessionCacheKeyPrefix = "auth:sessions:"

var errSessionCacheMiss = errors.New("session cache miss")

// SessionCache stores validated sessions, user included, keyed by token hash.
type SessionCache interface {
	Get(ctx context.Context, tokenHash string) (*models.Session, error)
	Set(ctx context.Context, tokenHash string, session *models.Session, ttl time.Duration) error
	Delete(ctx context.Context, tokenHash string) error
}

// NewSessionCache wraps a cache.Store (Redis or database) as a SessionCache.
func NewSessionCache(store cache.Store) SessionCache {
	if store == nil {
		return nil
	}
	return &sessionStoreCache{store: store}
}

type sessionStoreCache struct {
	store cache.Store
}

// cachedSession stores the user next to the session. Password hashes are not serialised.
type cachedSession struct {
	Session models.Session `json:"session"`
	User    models.User    `json:"user"`
}

func (c *sessionStoreCache) Get(ctx context.Context, tokenHash string) (*models.Session, error) {
	data, found, err := c.store.Get(ctx, sessionCacheKeyPrefix+tokenHash)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errSessionCacheMiss
	}

	var entry cachedSession
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("session cache: decode: %w", err)
	}
	session := entry.Session
	session.TokenHash = tokenHash
	user := entry.User
	session.User = &user
	return &session, nil
}

func (c *sessionStoreCache) Set(ctx context.Context, tokenHash string, session *models.Session, ttl time.Duration) error {
	if session == nil || session.User == nil {
		return errors.New("session cache: session with user is required")
	}
	if ttl <= 0 {
		return nil
	}

	entry := cachedSession{Session: *session, User: *session.User}
	entry.Session.User = nil
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("session cache: marshal: %w", err)
	}
	return c.store.Set(ctx, sessionCacheKeyPrefix+tokenHash, payload, ttl)
}

func (c *sessionStoreCache) Delete(ctx context.Context, tokenHash string) error {
	if tokenHash == "" {
		return nil
	}
	return c.store.Delete(ctx, sessionCacheKeyPrefix+tokenHash)
}
