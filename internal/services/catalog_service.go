package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/awards/internal/models"
	apperrors "github.com/charlesng35/awards/pkg/errors"
)

// CategoryInput describes a new award category.
type CategoryInput struct {
	Name                   string
	Subtitle               string
	Special                bool
	IsLeadershipPrize      bool
	PreAssignedWinner      string
	PreAssignedWinnerBio   string
	PreAssignedWinnerImage string
}

// CandidateInput describes a nominee within a category.
type CandidateInput struct {
	Name         string
	Bio          string
	ImageURL     string
	Achievements []string
	SongTitle    string
	SongURL      string
}

// CatalogService manages categories and candidates. Every mutation is audited.
type CatalogService struct {
	db    *gorm.DB
	audit *AuditService
}

func NewCatalogService(db *gorm.DB, audit *AuditService) (*CatalogService, error) {
	if db == nil {
		return nil, errors.New("catalog service: db is required")
	}
	if audit == nil {
		return nil, errors.New("catalog service: audit service is required")
	}
	return &CatalogService{db: db, audit: audit}, nil
}

func (s *CatalogService) CreateCategory(ctx context.Context, adminID string, input CategoryInput) (*models.Category, error) {
	ctx = ensureContext(ctx)
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("category name is required")
	}
	if input.IsLeadershipPrize && strings.TrimSpace(input.PreAssignedWinner) == "" {
		return nil, apperrors.NewBadRequest("leadership prizes need a pre-assigned winner")
	}

	category := &models.Category{
		Name:                   name,
		Subtitle:               strings.TrimSpace(input.Subtitle),
		Special:                input.Special,
		IsLeadershipPrize:      input.IsLeadershipPrize,
		PreAssignedWinner:      strings.TrimSpace(input.PreAssignedWinner),
		PreAssignedWinnerBio:   strings.TrimSpace(input.PreAssignedWinnerBio),
		PreAssignedWinnerImage: strings.TrimSpace(input.PreAssignedWinnerImage),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireSuperAdmin(tx, adminID); err != nil {
			return err
		}
		if err := tx.Create(category).Error; err != nil {
			if isUniqueConstraintError(err) {
				return apperrors.ErrConflict.WithMessage("a category with this name already exists")
			}
			return fmt.Errorf("catalog service: create category: %w", err)
		}
		_, err := s.audit.Record(ctx, tx, AuditEntry{
			UserID:    adminID,
			Action:    ActionCategoryCreate,
			Entity:    EntityCategory,
			EntityID:  category.ID,
			NewValues: category,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return category, nil
}

func (s *CatalogService) CreateCandidate(ctx context.Context, adminID, categoryID string, input CandidateInput) (*models.Candidate, error) {
	ctx = ensureContext(ctx)
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("candidate name is required")
	}

	candidate := &models.Candidate{
		CategoryID: strings.TrimSpace(categoryID),
		Name:       name,
		Bio:        strings.TrimSpace(input.Bio),
		ImageURL:   strings.TrimSpace(input.ImageURL),
		SongTitle:  strings.TrimSpace(input.SongTitle),
		SongURL:    strings.TrimSpace(input.SongURL),
	}
	if len(input.Achievements) > 0 {
		candidate.Achievements = toJSON(input.Achievements)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireSuperAdmin(tx, adminID); err != nil {
			return err
		}
		category, err := loadCategory(tx, candidate.CategoryID)
		if err != nil {
			return err
		}
		if category.IsLeadershipPrize {
			return ErrLeadershipCategory
		}
		if err := tx.Create(candidate).Error; err != nil {
			return fmt.Errorf("catalog service: create candidate: %w", err)
		}
		_, err = s.audit.Record(ctx, tx, AuditEntry{
			UserID:    adminID,
			Action:    ActionCandidateCreate,
			Entity:    EntityCandidate,
			EntityID:  candidate.ID,
			NewValues: candidate,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return candidate, nil
}

// RenameCandidate changes a candidate's display name. Votes already cast keep
// the name snapshot taken when they were recorded.
func (s *CatalogService) RenameCandidate(ctx context.Context, adminID, candidateID, name string) (*models.Candidate, error) {
	ctx = ensureContext(ctx)
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewBadRequest("candidate name is required")
	}

	var candidate models.Candidate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireSuperAdmin(tx, adminID); err != nil {
			return err
		}
		err := tx.Take(&candidate, "id = ?", strings.TrimSpace(candidateID)).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCandidateNotFound
		}
		if err != nil {
			return fmt.Errorf("catalog service: load candidate: %w", err)
		}

		previous := candidate.Name
		if err := tx.Model(&candidate).Update("name", name).Error; err != nil {
			return fmt.Errorf("catalog service: rename candidate: %w", err)
		}
		candidate.Name = name

		_, err = s.audit.Record(ctx, tx, AuditEntry{
			UserID:    adminID,
			Action:    ActionCandidateRename,
			Entity:    EntityCandidate,
			EntityID:  candidate.ID,
			OldValues: map[string]any{"name": previous},
			NewValues: map[string]any{"name": name},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &candidate, nil
}

// RevealLeadership publishes the pre-assigned winner of a leadership prize.
func (s *CatalogService) RevealLeadership(ctx context.Context, adminID, categoryID string) (*models.Category, error) {
	ctx = ensureContext(ctx)

	var category *models.Category
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireSuperAdmin(tx, adminID); err != nil {
			return err
		}
		loaded, err := loadCategory(tx, categoryID)
		if err != nil {
			return err
		}
		if !loaded.IsLeadershipPrize {
			return apperrors.NewBadRequest("category is not a leadership prize")
		}
		category = loaded
		if loaded.LeadershipRevealed {
			return nil
		}
		if err := tx.Model(loaded).Update("leadership_revealed", true).Error; err != nil {
			return fmt.Errorf("catalog service: reveal leadership: %w", err)
		}
		loaded.LeadershipRevealed = true

		_, err = s.audit.Record(ctx, tx, AuditEntry{
			UserID:    adminID,
			Action:    ActionLeadershipReveal,
			Entity:    EntityCategory,
			EntityID:  loaded.ID,
			OldValues: map[string]any{"leadership_revealed": false},
			NewValues: map[string]any{"leadership_revealed": true, "winner": loaded.PreAssignedWinner},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return category, nil
}

// ListCategories returns every category with its candidates. Unless
// includeHidden is set, unrevealed leadership winners are blanked out.
func (s *CatalogService) ListCategories(ctx context.Context, includeHidden bool) ([]models.Category, error) {
	ctx = ensureContext(ctx)

	var categories []models.Category
	err := s.db.WithContext(ctx).
		Preload("Candidates", func(db *gorm.DB) *gorm.DB { return db.Order("name ASC") }).
		Order("created_at ASC").
		Order("name ASC").
		Find(&categories).Error
	if err != nil {
		return nil, fmt.Errorf("catalog service: list categories: %w", err)
	}

	if !includeHidden {
		for i := range categories {
			hideUnrevealedWinner(&categories[i])
		}
	}
	return categories, nil
}

func (s *CatalogService) GetCategory(ctx context.Context, categoryID string, includeHidden bool) (*models.Category, error) {
	ctx = ensureContext(ctx)
	category, err := loadCategory(s.db.WithContext(ctx).Preload("Candidates"), categoryID)
	if err != nil {
		return nil, err
	}
	if !includeHidden {
		hideUnrevealedWinner(category)
	}
	return category, nil
}

func hideUnrevealedWinner(category *models.Category) {
	if !category.IsLeadershipPrize || category.LeadershipRevealed {
		return
	}
	category.PreAssignedWinner = ""
	category.PreAssignedWinnerBio = ""
	category.PreAssignedWinnerImage = ""
}

func loadCategory(db *gorm.DB, categoryID string) (*models.Category, error) {
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return nil, ErrCategoryNotFound
	}
	var category models.Category
	err := db.Take(&category, "id = ?", categoryID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load category: %w", err)
	}
	return &category, nil
}
