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
	"github.com/charlesng35/awards/pkg/logger"
	"github.com/charlesng35/awards/pkg/metrics"
)

type LedgerOption func(*VoteLedger)

// WithDeviceSignal enables the shared-device policy for ballots.
func WithDeviceSignal(signal DeviceSignal) LedgerOption {
	return func(l *VoteLedger) {
		l.devices = signal
	}
}

func WithLedgerClock(clock func() time.Time) LedgerOption {
	return func(l *VoteLedger) {
		if clock != nil {
			l.now = clock
		}
	}
}

// VoteLedger records ballots and computes tallies. The (user_id, category_id)
// unique index is what guarantees one ballot per category; CastVote never
// looks for an existing vote first.
type VoteLedger struct {
	db      *gorm.DB
	gate    VotingGate
	audit   *AuditService
	devices DeviceSignal
	now     func() time.Time
	log     *zap.Logger
}

func NewVoteLedger(db *gorm.DB, gate VotingGate, audit *AuditService, opts ...LedgerOption) (*VoteLedger, error) {
	if db == nil {
		return nil, errors.New("vote ledger: db is required")
	}
	if gate == nil {
		return nil, errors.New("vote ledger: voting gate is required")
	}
	if audit == nil {
		return nil, errors.New("vote ledger: audit service is required")
	}
	l := &VoteLedger{
		db:    db,
		gate:  gate,
		audit: audit,
		now:   time.Now,
		log:   logger.WithModule("votes"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// CastVote stores a ballot for candidateID in categoryID. The voting gate,
// candidate membership and device policy are all evaluated inside the write
// transaction.
func (l *VoteLedger) CastVote(ctx context.Context, userID, categoryID, candidateID string) (*models.Vote, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	categoryID = strings.TrimSpace(categoryID)
	candidateID = strings.TrimSpace(candidateID)

	var vote *models.Vote
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		policy, err := l.gate.VotingPolicy(ctx, tx)
		if err != nil {
			return err
		}
		if !policy.Open {
			return ErrVotingClosed.WithMessage(policy.BlockMessage)
		}

		var candidate models.Candidate
		err = tx.Take(&candidate, "id = ? AND category_id = ?", candidateID, categoryID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidCandidate
		}
		if err != nil {
			return fmt.Errorf("vote ledger: load candidate: %w", err)
		}

		flagged := false
		if l.devices != nil && policy.Device.Mode != DeviceModeOff {
			usage, err := l.devices.AccountUsage(ctx, tx, userID)
			if err != nil {
				return err
			}
			if policy.Device.Exceeded(usage) {
				if policy.Device.Mode == DeviceModeBlock {
					return ErrDeviceLimitExceeded
				}
				flagged = true
			}
		}

		timestamp, err := l.nextTimestamp(tx)
		if err != nil {
			return err
		}

		vote = &models.Vote{
			UserID:        userID,
			CategoryID:    categoryID,
			CandidateID:   candidate.ID,
			CandidateName: candidate.Name,
			Timestamp:     timestamp,
			Flagged:       flagged,
		}
		if err := tx.Create(vote).Error; err != nil {
			if isUniqueConstraintError(err) {
				return ErrAlreadyVoted
			}
			return fmt.Errorf("vote ledger: insert vote: %w", err)
		}
		return nil
	})

	metrics.VotesCast.WithLabelValues(castResult(vote, err)).Inc()
	if err != nil {
		return nil, err
	}

	l.log.Info("vote recorded",
		zap.String("vote_id", vote.ID),
		zap.String("user_id", userID),
		zap.String("category_id", categoryID),
		zap.Bool("flagged", vote.Flagged),
	)
	return vote, nil
}

// nextTimestamp returns epoch milliseconds that are greater than any stored
// ballot timestamp. Concurrent transactions on databases without serialized
// writers may still produce equal values.
func (l *VoteLedger) nextTimestamp(tx *gorm.DB) (int64, error) {
	now := l.now().UnixMilli()
	var latest int64
	if err := tx.Model(&models.Vote{}).Select("COALESCE(MAX(timestamp), 0)").Scan(&latest).Error; err != nil {
		return 0, fmt.Errorf("vote ledger: latest timestamp: %w", err)
	}
	if latest >= now {
		return latest + 1, nil
	}
	return now, nil
}

func castResult(vote *models.Vote, err error) string {
	switch {
	case err == nil && vote != nil && vote.Flagged:
		return "flagged"
	case err == nil:
		return "accepted"
	case errors.Is(err, ErrAlreadyVoted):
		return "already_voted"
	case errors.Is(err, ErrVotingClosed):
		return "closed"
	case errors.Is(err, ErrInvalidCandidate):
		return "invalid_candidate"
	case errors.Is(err, ErrDeviceLimitExceeded):
		return "device_limit"
	default:
		return "error"
	}
}

// Tally counts ballots per candidate. Every candidate of the category appears
// in the result, with zero when nobody voted for it.
func (l *VoteLedger) Tally(ctx context.Context, categoryID string) (map[string]int64, error) {
	ctx = ensureContext(ctx)
	db := l.db.WithContext(ctx)

	if _, err := loadCategory(db, categoryID); err != nil {
		return nil, err
	}

	var candidateIDs []string
	if err := db.Model(&models.Candidate{}).Where("category_id = ?", categoryID).Pluck("id", &candidateIDs).Error; err != nil {
		return nil, fmt.Errorf("vote ledger: list candidates: %w", err)
	}

	var rows []struct {
		CandidateID string
		Total       int64
	}
	if err := db.Model(&models.Vote{}).
		Select("candidate_id, COUNT(*) AS total").
		Where("category_id = ?", categoryID).
		Group("candidate_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("vote ledger: tally: %w", err)
	}

	tally := make(map[string]int64, len(candidateIDs))
	for _, id := range candidateIDs {
		tally[id] = 0
	}
	for _, row := range rows {
		tally[row.CandidateID] = row.Total
	}
	return tally, nil
}

// RevokeVote deletes a ballot on behalf of a SUPER_ADMIN. The deletion and its
// audit entry commit together.
func (l *VoteLedger) RevokeVote(ctx context.Context, adminID, voteID string) error {
	ctx = ensureContext(ctx)

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireSuperAdmin(tx, adminID); err != nil {
			return err
		}

		var vote models.Vote
		err := tx.Take(&vote, "id = ?", strings.TrimSpace(voteID)).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrVoteNotFound
		}
		if err != nil {
			return fmt.Errorf("vote ledger: load vote: %w", err)
		}

		if err := tx.Delete(&models.Vote{}, "id = ?", vote.ID).Error; err != nil {
			return fmt.Errorf("vote ledger: delete vote: %w", err)
		}

		_, err = l.audit.Record(ctx, tx, AuditEntry{
			UserID:    adminID,
			Action:    ActionVoteRevoke,
			Entity:    EntityVote,
			EntityID:  vote.ID,
			OldValues: vote,
		})
		return err
	})
	if err != nil {
		return err
	}

	metrics.VotesRevoked.Inc()
	l.log.Info("vote revoked", zap.String("vote_id", voteID), zap.String("admin_id", adminID))
	return nil
}

// ListUserVotes returns the caller's ballots in the order they were cast.
func (l *VoteLedger) ListUserVotes(ctx context.Context, userID string) ([]models.Vote, error) {
	var votes []models.Vote
	err := l.db.WithContext(ensureContext(ctx)).
		Where("user_id = ?", userID).
		Order("timestamp ASC").
		Find(&votes).Error
	if err != nil {
		return nil, fmt.Errorf("vote ledger: list votes: %w", err)
	}
	return votes, nil
}
