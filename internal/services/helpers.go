package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/awards/internal/models"
)

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// requireSuperAdmin loads userID through db (usually the caller's
// transaction) and fails with ErrForbidden unless it holds SUPER_ADMIN.
func requireSuperAdmin(db *gorm.DB, userID string) (*models.User, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrForbidden
	}
	var user models.User
	err := db.Take(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrForbidden
	}
	if err != nil {
		return nil, fmt.Errorf("load acting user: %w", err)
	}
	if !user.IsSuperAdmin() {
		return nil, ErrForbidden
	}
	return &user, nil
}

func toJSON(value any) datatypes.JSON {
	if value == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}
