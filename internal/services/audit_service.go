package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/awards/internal/auditctx"
	"github.com/charlesng35/awards/internal/models"
)

// Audited actions.
const (
	ActionVoteRevoke       = "vote.revoke"
	ActionRoleChange       = "user.role_change"
	ActionVotingToggle     = "settings.voting"
	ActionDevicePolicy     = "settings.device_policy"
	ActionCategoryCreate   = "category.create"
	ActionCandidateCreate  = "candidate.create"
	ActionCandidateRename  = "candidate.rename"
	ActionLeadershipReveal = "category.reveal_leadership"
	ActionBootstrapAdmin   = "user.bootstrap_admin"
)

// Audited entity kinds.
const (
	EntityVote      = "vote"
	EntityUser      = "user"
	EntitySetting   = "app_setting"
	EntityCategory  = "category"
	EntityCandidate = "candidate"
)

// AuditEntry captures a single administrative mutation.
type AuditEntry struct {
	UserID    string
	Action    string
	Entity    string
	EntityID  string
	OldValues any
	NewValues any
	IPAddress string
	UserAgent string
}

// AuditFilters encapsulates optional filters when querying admin logs.
type AuditFilters struct {
	UserID   string
	Action   string
	Entity   string
	EntityID string
	Since    *time.Time
	Until    *time.Time
}

// AuditListOptions controls pagination and filtering for audit queries.
type AuditListOptions struct {
	Page     int
	PageSize int
	Filters  AuditFilters
}

// AuditService writes and reads the append-only admin log. It exposes no way
// to modify or remove entries.
type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) (*AuditService, error) {
	if db == nil {
		return nil, errors.New("audit service: db is required")
	}
	return &AuditService{db: db}, nil
}

// Record appends entry using tx when non-nil so the log row commits or rolls
// back with the mutation it describes. Client IP and user agent default to the
// request actor carried by ctx.
func (s *AuditService) Record(ctx context.Context, tx *gorm.DB, entry AuditEntry) (*models.AdminLog, error) {
	ctx = ensureContext(ctx)
	if tx == nil {
		tx = s.db
	}

	if strings.TrimSpace(entry.UserID) == "" {
		return nil, errors.New("audit service: user id is required")
	}
	if strings.TrimSpace(entry.Action) == "" || strings.TrimSpace(entry.Entity) == "" {
		return nil, errors.New("audit service: action and entity are required")
	}

	if actor, ok := auditctx.FromContext(ctx); ok {
		if entry.IPAddress == "" {
			entry.IPAddress = actor.IPAddress
		}
		if entry.UserAgent == "" {
			entry.UserAgent = actor.UserAgent
		}
	}

	log := &models.AdminLog{
		UserID:    strings.TrimSpace(entry.UserID),
		Action:    strings.TrimSpace(entry.Action),
		Entity:    strings.TrimSpace(entry.Entity),
		OldValues: toJSON(entry.OldValues),
		NewValues: toJSON(entry.NewValues),
		IPAddress: strings.TrimSpace(entry.IPAddress),
		UserAgent: strings.TrimSpace(entry.UserAgent),
	}
	if id := strings.TrimSpace(entry.EntityID); id != "" {
		log.EntityID = &id
	}

	if err := tx.WithContext(ctx).Create(log).Error; err != nil {
		return nil, fmt.Errorf("audit service: record: %w", err)
	}
	return log, nil
}

// List returns admin logs newest first.
func (s *AuditService) List(ctx context.Context, opts AuditListOptions) ([]models.AdminLog, int64, error) {
	ctx = ensureContext(ctx)

	page := opts.Page
	if page <= 0 {
		page = 1
	}
	perPage := opts.PageSize
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}

	var (
		results []models.AdminLog
		total   int64
	)

	query := applyAuditFilters(s.db.WithContext(ctx).Model(&models.AdminLog{}), opts.Filters)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("audit service: count logs: %w", err)
	}

	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&results).Error; err != nil {
		return nil, 0, fmt.Errorf("audit service: list logs: %w", err)
	}
	return results, total, nil
}

func applyAuditFilters(query *gorm.DB, filters AuditFilters) *gorm.DB {
	if filters.UserID != "" {
		query = query.Where("user_id = ?", filters.UserID)
	}
	if filters.Action != "" {
		query = query.Where("action = ?", filters.Action)
	}
	if filters.Entity != "" {
		query = query.Where("entity = ?", filters.Entity)
	}
	if filters.EntityID != "" {
		query = query.Where("entity_id = ?", filters.EntityID)
	}
	if filters.Since != nil {
		query = query.Where("created_at >= ?", *filters.Since)
	}
	if filters.Until != nil {
		query = query.Where("created_at <= ?", *filters.Until)
	}
	return query
}
