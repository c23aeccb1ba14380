package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/awards/internal/models"
	"github.com/charlesng35/awards/pkg/crypto"
	apperrors "github.com/charlesng35/awards/pkg/errors"
	"github.com/charlesng35/awards/pkg/logger"
	"github.com/charlesng35/awards/pkg/metrics"
)

// NewUser describes the fields accepted when registering an account.
type NewUser struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// SessionRevoker drops every session a user holds. auth.SessionService satisfies it.
type SessionRevoker interface {
	RevokeUserSessions(ctx context.Context, userID string) (int64, error)
}

// IdentityOption customises the IdentityService.
type IdentityOption func(*IdentityService)

// WithSessionRevoker revokes a user's sessions after their role changes.
func WithSessionRevoker(revoker SessionRevoker) IdentityOption {
	return func(s *IdentityService) {
		s.revoker = revoker
	}
}

func WithIdentityClock(clock func() time.Time) IdentityOption {
	return func(s *IdentityService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// IdentityService owns user accounts: lookup, registration, login and role changes.
type IdentityService struct {
	db      *gorm.DB
	audit   *AuditService
	revoker SessionRevoker
	now     func() time.Time
	log     *zap.Logger
}

// NewIdentityService constructs an IdentityService instance.
func NewIdentityService(db *gorm.DB, audit *AuditService, opts ...IdentityOption) (*IdentityService, error) {
	if db == nil {
		return nil, errors.New("identity service: db is required")
	}
	if audit == nil {
		return nil, errors.New("identity service: audit service is required")
	}
	svc := &IdentityService{
		db:    db,
		audit: audit,
		now:   time.Now,
		log:   logger.WithModule("identity"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

func (s *IdentityService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findBy(ensureContext(ctx), s.db, "email = ?", normalizeEmail(email))
}

func (s *IdentityService) FindByID(ctx context.Context, id string) (*models.User, error) {
	return s.findBy(ensureContext(ctx), s.db, "id = ?", strings.TrimSpace(id))
}

func (s *IdentityService) findBy(ctx context.Context, db *gorm.DB, query string, arg string) (*models.User, error) {
	if arg == "" {
		return nil, ErrUserNotFound
	}
	var user models.User
	err := db.WithContext(ctx).Take(&user, query, arg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("identity service: find user: %w", err)
	}
	return &user, nil
}

// Create registers a user. Emails are unique case-insensitively.
func (s *IdentityService) Create(ctx context.Context, input NewUser) (*models.User, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	email := normalizeEmail(input.Email)
	if name == "" {
		return nil, apperrors.NewBadRequest("name is required")
	}
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}

	role := strings.TrimSpace(input.Role)
	if role == "" {
		role = models.RoleVoter
	}
	if !models.ValidRole(role) {
		return nil, apperrors.NewBadRequest("unknown role")
	}

	user := &models.User{Name: name, Email: email, Role: role}
	if input.Password != "" {
		hashed, err := crypto.HashPassword(input.Password)
		if err != nil {
			return nil, fmt.Errorf("identity service: hash password: %w", err)
		}
		user.PasswordHash = hashed
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("identity service: create user: %w", err)
	}
	return user, nil
}

// Authenticate checks an email/password pair. Legacy bcrypt hashes are
// upgraded to argon2id after a successful login.
func (s *IdentityService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			metrics.AuthAttempts.WithLabelValues("failure").Inc()
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}
	if user.PasswordHash == "" || !crypto.VerifyPassword(user.PasswordHash, password) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	now := s.now().UTC()
	updates := map[string]any{"last_login_at": now}
	if crypto.NeedsRehash(user.PasswordHash) {
		if hashed, err := crypto.HashPassword(password); err == nil {
			updates["password_hash"] = hashed
			user.PasswordHash = hashed
		} else {
			s.log.Warn("password rehash failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("identity service: record login: %w", err)
	}
	user.LastLoginAt = &now

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return user, nil
}

// SetRole changes a user's role. Only a SUPER_ADMIN may call it and the change
// is audited in the same transaction.
func (s *IdentityService) SetRole(ctx context.Context, adminID, userID, role string) (*models.User, error) {
	ctx = ensureContext(ctx)
	role = strings.TrimSpace(role)
	if !models.ValidRole(role) {
		return nil, apperrors.NewBadRequest("unknown role")
	}

	var (
		updated *models.User
		changed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireSuperAdmin(tx, adminID); err != nil {
			return err
		}
		user, err := s.findBy(ctx, tx, "id = ?", strings.TrimSpace(userID))
		if err != nil {
			return err
		}
		if user.Role == role {
			updated = user
			return nil
		}
		if user.ID == adminID && role != models.RoleSuperAdmin {
			return apperrors.NewBadRequest("administrators cannot demote themselves")
		}

		previous := user.Role
		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Update("role", role).Error; err != nil {
			return fmt.Errorf("identity service: update role: %w", err)
		}
		user.Role = role

		if _, err := s.audit.Record(ctx, tx, AuditEntry{
			UserID:    adminID,
			Action:    ActionRoleChange,
			Entity:    EntityUser,
			EntityID:  user.ID,
			OldValues: map[string]any{"role": previous},
			NewValues: map[string]any{"role": role},
		}); err != nil {
			return err
		}
		updated = user
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed && s.revoker != nil {
		if _, err := s.revoker.RevokeUserSessions(ctx, updated.ID); err != nil {
			s.log.Warn("revoke sessions after role change", zap.String("user_id", updated.ID), zap.Error(err))
		}
	}
	return updated, nil
}

// EnsureSuperAdmin creates the bootstrap administrator when no account with
// email exists yet. It reports whether a user was created.
func (s *IdentityService) EnsureSuperAdmin(ctx context.Context, name, email, password string) (*models.User, bool, error) {
	ctx = ensureContext(ctx)
	existing, err := s.FindByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}
	if strings.TrimSpace(password) == "" {
		return nil, false, apperrors.NewBadRequest("bootstrap admin password is required")
	}
	if strings.TrimSpace(name) == "" {
		name = "Administrator"
	}

	user, err := s.Create(ctx, NewUser{Name: name, Email: email, Password: password, Role: models.RoleSuperAdmin})
	if err != nil {
		return nil, false, err
	}
	if _, err := s.audit.Record(ctx, nil, AuditEntry{
		UserID:    user.ID,
		Action:    ActionBootstrapAdmin,
		Entity:    EntityUser,
		EntityID:  user.ID,
		NewValues: map[string]any{"email": user.Email, "role": user.Role},
	}); err != nil {
		return nil, false, err
	}
	return user, true, nil
}

// ListUsers returns users ordered by creation time.
func (s *IdentityService) ListUsers(ctx context.Context, page, perPage int) ([]models.User, int64, error) {
	ctx = ensureContext(ctx)
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}

	var (
		users []models.User
		total int64
	)
	query := s.db.WithContext(ctx).Model(&models.User{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("identity service: count users: %w", err)
	}
	if err := query.Order("created_at ASC").Offset((page - 1) * perPage).Limit(perPage).Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("identity service: list users: %w", err)
	}
	return users, total, nil
}
