package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/awards/internal/models"
	"github.com/charlesng35/awards/pkg/crypto"
	"github.com/charlesng35/awards/pkg/logger"
	"github.com/charlesng35/awards/pkg/mail"
	"github.com/charlesng35/awards/pkg/metrics"
)

const (
	defaultCodeTTL             = 10 * time.Minute
	defaultCodeLength          = 6
	defaultVerificationSubject = "Your awards verification code"
)

// Enqueuer hands a message to the asynchronous mail queue.
type Enqueuer interface {
	Enqueue(msg mail.Message) error
}

// IssuedCode is returned to the caller after RequestCode. Code is only meant
// to leave the process by email unless exposure is enabled for development.
type IssuedCode struct {
	Code      string
	ExpiresAt time.Time
}

// SessionForgetter drops cached sessions so user changes become visible.
// auth.SessionService satisfies it.
type SessionForgetter interface {
	ForgetUserSessions(ctx context.Context, userID string) error
}

// VerificationOption customises the VerificationService.
type VerificationOption func(*VerificationService)

// WithCodeTTL overrides how long an issued code stays valid.
func WithCodeTTL(d time.Duration) VerificationOption {
	return func(s *VerificationService) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithCodeLength sets the number of digits in generated codes.
func WithCodeLength(n int) VerificationOption {
	return func(s *VerificationService) {
		if n > 0 {
			s.codeLength = n
		}
	}
}

func WithVerificationSubject(subject string) VerificationOption {
	return func(s *VerificationService) {
		if subject = strings.TrimSpace(subject); subject != "" {
			s.subject = subject
		}
	}
}

func WithVerificationSender(from string) VerificationOption {
	return func(s *VerificationService) {
		s.from = strings.TrimSpace(from)
	}
}

// WithVerificationClock injects a custom time source.
func WithVerificationClock(clock func() time.Time) VerificationOption {
	return func(s *VerificationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithCodeGenerator replaces the random code source.
func WithCodeGenerator(generate func(digits int) (string, error)) VerificationOption {
	return func(s *VerificationService) {
		if generate != nil {
			s.generate = generate
		}
	}
}

// WithSessionForgetter refreshes cached sessions once a user verifies.
func WithSessionForgetter(sessions SessionForgetter) VerificationOption {
	return func(s *VerificationService) {
		s.sessions = sessions
	}
}

func WithVerificationLogger(log *zap.Logger) VerificationOption {
	return func(s *VerificationService) {
		if log != nil {
			s.log = log
		}
	}
}

// VerificationService issues and checks single-use email verification codes.
// A user holds at most one code at a time; requesting a new one supersedes it.
type VerificationService struct {
	db         *gorm.DB
	identity   *IdentityService
	outbox     Enqueuer
	ttl        time.Duration
	codeLength int
	subject    string
	from       string
	now        func() time.Time
	generate   func(digits int) (string, error)
	sessions   SessionForgetter
	log        *zap.Logger
}

func NewVerificationService(db *gorm.DB, identity *IdentityService, outbox Enqueuer, opts ...VerificationOption) (*VerificationService, error) {
	if db == nil {
		return nil, errors.New("verification service: db is required")
	}
	if identity == nil {
		return nil, errors.New("verification service: identity service is required")
	}

	svc := &VerificationService{
		db:         db,
		identity:   identity,
		outbox:     outbox,
		ttl:        defaultCodeTTL,
		codeLength: defaultCodeLength,
		subject:    defaultVerificationSubject,
		now:        time.Now,
		generate:   crypto.GenerateNumericCode,
		log:        logger.WithModule("verification"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// RequestCode issues a fresh code for userID and queues it for delivery to
// email, which must be the account's address.
func (s *VerificationService) RequestCode(ctx context.Context, userID, email string) (IssuedCode, error) {
	ctx = ensureContext(ctx)

	user, err := s.identity.FindByID(ctx, userID)
	if err != nil {
		return IssuedCode{}, err
	}
	email = normalizeEmail(email)
	if email == "" || email != user.Email {
		return IssuedCode{}, ErrVerificationEmailMismatch
	}

	code, err := s.generate(s.codeLength)
	if err != nil {
		return IssuedCode{}, fmt.Errorf("verification service: generate code: %w", err)
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)
	row := models.EmailVerification{
		UserID:    user.ID,
		Email:     email,
		CodeHash:  codeHash(user.ID, code),
		ExpiresAt: expiresAt,
	}

	// One statement replaces any outstanding code for the user.
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"email":       row.Email,
			"code_hash":   row.CodeHash,
			"expires_at":  row.ExpiresAt,
			"consumed_at": nil,
			"updated_at":  now,
		}),
	}).Create(&row).Error
	if err != nil {
		return IssuedCode{}, fmt.Errorf("verification service: store code: %w", err)
	}

	metrics.Verifications.WithLabelValues("requested").Inc()
	s.send(user, code)

	return IssuedCode{Code: code, ExpiresAt: expiresAt}, nil
}

func (s *VerificationService) send(user *models.User, code string) {
	if s.outbox == nil {
		return
	}
	msg := mail.Message{
		From:    s.from,
		To:      []string{user.Email},
		Subject: s.subject,
		Body:    s.body(user.Name, code),
	}
	if err := s.outbox.Enqueue(msg); err != nil {
		s.log.Warn("verification email not queued",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
	}
}

func (s *VerificationService) body(name, code string) string {
	greeting := "Hello"
	if name = strings.TrimSpace(name); name != "" {
		greeting = "Hello " + name
	}
	return fmt.Sprintf("%s,\n\nYour verification code is %s\n\nThis code expires in %s.\nIf you did not request it, you can ignore this message.\n",
		greeting, code, s.ttl.Round(time.Minute))
}

// VerifyCode consumes the user's outstanding code. Expiry is checked before
// the code itself, so an expired code reports ErrCodeExpired even when wrong.
func (s *VerificationService) VerifyCode(ctx context.Context, userID, code string) (*models.EmailVerification, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	code = strings.TrimSpace(code)

	var verification models.EmailVerification
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Take(&verification, "user_id = ?", userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidCode
		}
		if err != nil {
			return fmt.Errorf("verification service: load code: %w", err)
		}
		if verification.ConsumedAt != nil {
			return ErrInvalidCode
		}

		now := s.now().UTC()
		if now.After(verification.ExpiresAt) {
			return ErrCodeExpired
		}
		if code == "" || !crypto.EqualHashes(verification.CodeHash, codeHash(userID, code)) {
			return ErrInvalidCode
		}

		// Only one caller can flip consumed_at; a replay or a superseding
		// request in between leaves zero rows affected.
		result := tx.Model(&models.EmailVerification{}).
			Where("id = ? AND code_hash = ? AND consumed_at IS NULL", verification.ID, verification.CodeHash).
			Updates(map[string]any{"consumed_at": now, "updated_at": now})
		if result.Error != nil {
			return fmt.Errorf("verification service: consume code: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrInvalidCode
		}
		verification.ConsumedAt = &now

		if err := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Updates(map[string]any{"email_verified": true, "email_verified_at": now}).Error; err != nil {
			return fmt.Errorf("verification service: mark user verified: %w", err)
		}
		return nil
	})

	switch {
	case err == nil:
		metrics.Verifications.WithLabelValues("verified").Inc()
	case errors.Is(err, ErrCodeExpired):
		metrics.Verifications.WithLabelValues("expired").Inc()
	case errors.Is(err, ErrInvalidCode):
		metrics.Verifications.WithLabelValues("invalid").Inc()
	}
	if err != nil {
		return nil, err
	}
	if s.sessions != nil {
		if err := s.sessions.ForgetUserSessions(ctx, userID); err != nil {
			s.log.Warn("failed to refresh cached sessions", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return &verification, nil
}

// CleanupExpired deletes codes that expired before the cutoff or were already consumed.
func (s *VerificationService) CleanupExpired(ctx context.Context) (int64, error) {
	now := s.now().UTC()
	result := s.db.WithContext(ensureContext(ctx)).
		Where("expires_at < ? OR consumed_at IS NOT NULL", now).
		Delete(&models.EmailVerification{})
	if result.Error != nil {
		return 0, fmt.Errorf("verification service: cleanup: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func codeHash(userID, code string) string {
	return crypto.HashToken("email-verification", userID, code)
}
