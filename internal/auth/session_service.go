package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/awards/internal/models"
	"github.com/charlesng35/awards/pkg/crypto"
	"github.com/charlesng35/awards/pkg/metrics"
)

const (
	// DefaultSessionTTL is the fallback session lifetime.
	DefaultSessionTTL = 7 * 24 * time.Hour
	// DefaultTokenLength is the number of random bytes in a session token.
	DefaultTokenLength = 48
)

// SessionConfig describes tunable behaviour for the SessionService.
type SessionConfig struct {
	TTL         time.Duration
	TokenLength int
	// CacheTTL bounds how long a validated session stays cached.
	CacheTTL time.Duration
	Clock    func() time.Time
	Cache    SessionCache
}

// SessionMetadata captures contextual information about the client.
type SessionMetadata struct {
	IPAddress string
	UserAgent string
}

// IssuedSession is returned once at creation; the raw token is never stored.
type IssuedSession struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

var (
	// ErrUnauthenticated covers unknown, expired and revoked tokens alike.
	ErrUnauthenticated = errors.New("session: unauthenticated")
	ErrUserRequired    = errors.New("session: user id is required")
)

// SessionService issues, validates and revokes opaque session tokens.
type SessionService struct {
	db       *gorm.DB
	ttl      time.Duration
	tokenLen int
	cacheTTL time.Duration
	now      func() time.Time
	cache    SessionCache
}

func NewSessionService(db *gorm.DB, cfg SessionConfig) (*SessionService, error) {
	if db == nil {
		return nil, errors.New("session service: db is required")
	}

	svc := &SessionService{
		db:       db,
		ttl:      cfg.TTL,
		tokenLen: cfg.TokenLength,
		cacheTTL: cfg.CacheTTL,
		now:      time.Now,
		cache:    cfg.Cache,
	}
	if svc.ttl <= 0 {
		svc.ttl = DefaultSessionTTL
	}
	if svc.tokenLen <= 0 {
		svc.tokenLen = DefaultTokenLength
	}
	if svc.cacheTTL <= 0 {
		svc.cacheTTL = 5 * time.Minute
	}
	if cfg.Clock != nil {
		svc.now = cfg.Clock
	}
	return svc, nil
}

// TTL reports the configured session lifetime.
func (s *SessionService) TTL() time.Duration { return s.ttl }

// CreateSession persists a new session for userID and returns its token.
func (s *SessionService) CreateSession(ctx context.Context, userID string, meta SessionMetadata) (IssuedSession, *models.Session, error) {
	if strings.TrimSpace(userID) == "" {
		return IssuedSession{}, nil, ErrUserRequired
	}

	token, err := crypto.GenerateToken(s.tokenLen)
	if err != nil {
		return IssuedSession{}, nil, fmt.Errorf("session service: generate token: %w", err)
	}

	session := &models.Session{
		UserID:    userID,
		TokenHash: hashToken(token),
		IPAddress: strings.TrimSpace(meta.IPAddress),
		UserAgent: strings.TrimSpace(meta.UserAgent),
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return IssuedSession{}, nil, fmt.Errorf("session service: create session: %w", err)
	}

	metrics.ActiveSessions.Inc()
	return IssuedSession{Token: token, ExpiresAt: session.ExpiresAt}, session, nil
}

// Validate resolves token to its user. Unknown tokens and sessions whose
// expiry is at or before now yield ErrUnauthenticated.
func (s *SessionService) Validate(ctx context.Context, token string) (*models.User, error) {
	user, _, err := s.Resolve(ctx, token)
	return user, err
}

// Resolve is Validate that also returns the session row.
func (s *SessionService) Resolve(ctx context.Context, token string) (*models.User, *models.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil, ErrUnauthenticated
	}
	hash := hashToken(token)
	now := s.now()

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, hash); err == nil && cached != nil && cached.User != nil {
			if cached.ActiveAt(now) {
				return cached.User, cached, nil
			}
			_ = s.cache.Delete(ctx, hash)
			return nil, nil, ErrUnauthenticated
		}
	}

	var session models.Session
	err := s.db.WithContext(ctx).Preload("User").Take(&session, "token_hash = ?", hash).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, nil, fmt.Errorf("session service: find session: %w", err)
	}
	if !session.ActiveAt(now) || session.User == nil {
		return nil, nil, ErrUnauthenticated
	}

	if s.cache != nil {
		ttl := s.cacheTTL
		if remaining := session.ExpiresAt.Sub(now); remaining < ttl {
			ttl = remaining
		}
		_ = s.cache.Set(ctx, hash, &session, ttl)
	}
	return session.User, &session, nil
}

// Revoke deletes the session for token. Unknown tokens are not an error.
func (s *SessionService) Revoke(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	hash := hashToken(token)

	result := s.db.WithContext(ctx).Where("token_hash = ?", hash).Delete(&models.Session{})
	if result.Error != nil {
		return fmt.Errorf("session service: revoke session: %w", result.Error)
	}
	if s.cache != nil {
		_ = s.cache.Delete(ctx, hash)
	}
	if result.RowsAffected > 0 {
		metrics.ActiveSessions.Sub(float64(result.RowsAffected))
	}
	return nil
}

// RevokeUserSessions deletes every session of userID, e.g. after a role change.
func (s *SessionService) RevokeUserSessions(ctx context.Context, userID string) (int64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, ErrUserRequired
	}

	var hashes []string
	if s.cache != nil {
		_ = s.db.WithContext(ctx).Model(&models.Session{}).
			Where("user_id = ?", userID).
			Pluck("token_hash", &hashes).Error
	}

	result := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("session service: revoke user sessions: %w", result.Error)
	}
	for _, hash := range hashes {
		_ = s.cache.Delete(ctx, hash)
	}
	if result.RowsAffected > 0 {
		metrics.ActiveSessions.Sub(float64(result.RowsAffected))
	}
	return result.RowsAffected, nil
}

// ForgetUserSessions drops the cached copies of userID's sessions so the next
// Resolve reloads the user row. The sessions themselves stay valid.
func (s *SessionService) ForgetUserSessions(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUserRequired
	}
	if s.cache == nil {
		return nil
	}

	var hashes []string
	if err := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("user_id = ?", userID).
		Pluck("token_hash", &hashes).Error; err != nil {
		return fmt.Errorf("session service: list user sessions: %w", err)
	}
	for _, hash := range hashes {
		if err := s.cache.Delete(ctx, hash); err != nil {
			return fmt.Errorf("session service: forget cached session: %w", err)
		}
	}
	return nil
}

// CleanupExpired removes sessions whose expiry has passed.
func (s *SessionService) CleanupExpired(ctx context.Context) (int64, error) {
	now := s.now()

	var hashes []string
	if s.cache != nil {
		_ = s.db.WithContext(ctx).Model(&models.Session{}).
			Where("expires_at <= ?", now).
			Pluck("token_hash", &hashes).Error
	}

	result := s.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("session service: cleanup expired sessions: %w", result.Error)
	}
	for _, hash := range hashes {
		_ = s.cache.Delete(ctx, hash)
	}
	if result.RowsAffected > 0 {
		metrics.ActiveSessions.Sub(float64(result.RowsAffected))
	}
	return result.RowsAffected, nil
}

func hashToken(token string) string {
	return crypto.HashToken(token)
}
