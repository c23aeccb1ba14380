package services

import (
	"context"
	"fmt"

	"github.com/charlesng35/awards/internal/models"
)

// CategorySummary is the ballot count of a single category.
type CategorySummary struct {
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
	Votes      int64  `json:"votes"`
}

// Summary aggregates participation figures for administrators.
type Summary struct {
	Users         int64             `json:"users"`
	VerifiedUsers int64             `json:"verified_users"`
	Votes         int64             `json:"votes"`
	FlaggedVotes  int64             `json:"flagged_votes"`
	SharedDevices int64             `json:"shared_devices"`
	Categories    []CategorySummary `json:"categories"`
}

func (l *VoteLedger) Summary(ctx context.Context) (Summary, error) {
	db := l.db.WithContext(ensureContext(ctx))
	var summary Summary

	counts := []struct {
		dest  *int64
		model any
		flag  string
	}{
		{&summary.Users, &models.User{}, ""},
		{&summary.VerifiedUsers, &models.User{}, "email_verified"},
		{&summary.Votes, &models.Vote{}, ""},
		{&summary.FlaggedVotes, &models.Vote{}, "flagged"},
	}
	for _, c := range counts {
		query := db.Model(c.model)
		if c.flag != "" {
			query = query.Where(c.flag+" = ?", true)
		}
		if err := query.Count(c.dest).Error; err != nil {
			return Summary{}, fmt.Errorf("vote ledger: summary: %w", err)
		}
	}

	shared := db.Model(&models.DeviceRegistration{}).
		Select("fingerprint").
		Group("fingerprint").
		Having("COUNT(DISTINCT user_id) > 1")
	if err := db.Table("(?) AS shared", shared).Count(&summary.SharedDevices).Error; err != nil {
		return Summary{}, fmt.Errorf("vote ledger: shared devices: %w", err)
	}

	if err := db.Model(&models.Category{}).
		Select("categories.id AS category_id, categories.name AS name, COUNT(votes.id) AS votes").
		Joins("LEFT JOIN votes ON votes.category_id = categories.id").
		Group("categories.id, categories.name").
		Order("categories.name ASC").
		Scan(&summary.Categories).Error; err != nil {
		return Summary{}, fmt.Errorf("vote ledger: category summary: %w", err)
	}
	return summary, nil
}
