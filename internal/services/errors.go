package services

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/charlesng35/awards/pkg/errors"
)

var (
	// ErrForbidden is returned when the acting user lacks SUPER_ADMIN.
	ErrForbidden = apperrors.ErrForbidden
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	// ErrEmailTaken is returned when registering an email that already has an account.
	ErrEmailTaken = apperrors.New("EMAIL_TAKEN", "An account with this email already exists", http.StatusConflict)

	ErrAlreadyVoted        = apperrors.ErrAlreadyVoted
	ErrVotingClosed        = apperrors.ErrVotingClosed
	ErrInvalidCandidate    = apperrors.ErrInvalidCandidate
	ErrDeviceLimitExceeded = apperrors.ErrDeviceLimit
	ErrVoteNotFound        = apperrors.New("VOTE_NOT_FOUND", "Vote not found", http.StatusNotFound)
	ErrCategoryNotFound    = apperrors.New("CATEGORY_NOT_FOUND", "Category not found", http.StatusNotFound)
	ErrCandidateNotFound   = apperrors.New("CANDIDATE_NOT_FOUND", "Candidate not found", http.StatusNotFound)
	// ErrLeadershipCategory rejects ballots for prizes that have a pre-assigned winner.
	ErrLeadershipCategory = apperrors.New("LEADERSHIP_PRIZE", "This prize is not open for voting", http.StatusUnprocessableEntity)

	ErrCodeExpired               = apperrors.ErrCodeExpired
	ErrInvalidCode               = apperrors.ErrInvalidCode
	ErrVerificationEmailMismatch = apperrors.New("EMAIL_MISMATCH", "Email does not match the signed-in account", http.StatusBadRequest)
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	// Foreign key failures also mention "constraint" so only unique wording counts.
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique constraint") ||
		strings.Contains(lower, "duplicate key") ||
		strings.Contains(lower, "duplicate entry")
}
