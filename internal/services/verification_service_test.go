package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/awards/internal/models"
)

func newVerificationService(t *testing.T, f *fixture, outbox Enqueuer, opts ...VerificationOption) *VerificationService {
	t.Helper()
	opts = append([]VerificationOption{WithVerificationClock(f.clock.Now)}, opts...)
	svc, err := NewVerificationService(f.db, f.identity, outbox, opts...)
	require.NoError(t, err)
	return svc
}

func fixedCodes(codes ...string) func(int) (string, error) {
	return func(int) (string, error) {
		if len(codes) == 0 {
			return "", errors.New("no more codes")
		}
		code := codes[0]
		codes = codes[1:]
		return code, nil
	}
}

func TestVerifyCodeSingleUse(t *testing.T) {
	f := newFixture(t)
	outbox := &recordingOutbox{}
	svc := newVerificationService(t, f, outbox, WithCodeGenerator(fixedCodes("482913")))
	ctx := context.Background()
	user := f.voter(t, "kadi")

	issued, err := svc.RequestCode(ctx, user.ID, "KADI@awards.test ")
	require.NoError(t, err)
	require.Equal(t, "482913", issued.Code)
	require.Equal(t, f.clock.Now().Add(10*time.Minute), issued.ExpiresAt)

	messages := outbox.Messages()
	require.Len(t, messages, 1)
	require.Equal(t, []string{user.Email}, messages[0].To)
	require.Contains(t, messages[0].Body, "482913")

	verification, err := svc.VerifyCode(ctx, user.ID, "482913")
	require.NoError(t, err)
	require.NotNil(t, verification.ConsumedAt)

	_, err = svc.VerifyCode(ctx, user.ID, "482913")
	require.ErrorIs(t, err, ErrInvalidCode)

	reloaded, err := f.identity.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, reloaded.EmailVerified)
	require.NotNil(t, reloaded.EmailVerifiedAt)
}

func TestVerifyCodeExpiryTakesPrecedence(t *testing.T) {
	f := newFixture(t)
	svc := newVerificationService(t, f, nil,
		WithCodeTTL(5*time.Minute),
		WithCodeGenerator(fixedCodes("111111")),
	)
	ctx := context.Background()
	user := f.voter(t, "expired")

	_, err := svc.RequestCode(ctx, user.ID, user.Email)
	require.NoError(t, err)

	f.clock.Advance(5 * time.Minute)
	f.clock.Advance(time.Millisecond)

	_, err = svc.VerifyCode(ctx, user.ID, "111111")
	require.ErrorIs(t, err, ErrCodeExpired)
	_, err = svc.VerifyCode(ctx, user.ID, "999999")
	require.ErrorIs(t, err, ErrCodeExpired)
}

func TestVerifyCodeAcceptedAtExactExpiry(t *testing.T) {
	f := newFixture(t)
	svc := newVerificationService(t, f, nil, WithCodeGenerator(fixedCodes("222222")))
	ctx := context.Background()
	user := f.voter(t, "boundary")

	issued, err := svc.RequestCode(ctx, user.ID, user.Email)
	require.NoError(t, err)
	f.clock.Advance(issued.ExpiresAt.Sub(f.clock.Now()))

	_, err = svc.VerifyCode(ctx, user.ID, "222222")
	require.NoError(t, err)
}

func TestRequestCodeSupersedesPrevious(t *testing.T) {
	f := newFixture(t)
	svc := newVerificationService(t, f, nil, WithCodeGenerator(fixedCodes("333333", "444444")))
	ctx := context.Background()
	user := f.voter(t, "twice")

	_, err := svc.RequestCode(ctx, user.ID, user.Email)
	require.NoError(t, err)
	_, err = svc.RequestCode(ctx, user.ID, user.Email)
	require.NoError(t, err)

	var rows int64
	require.NoError(t, f.db.Model(&models.EmailVerification{}).Where("user_id = ?", user.ID).Count(&rows).Error)
	require.Equal(t, int64(1), rows)

	_, err = svc.VerifyCode(ctx, user.ID, "333333")
	require.ErrorIs(t, err, ErrInvalidCode)
	_, err = svc.VerifyCode(ctx, user.ID, "444444")
	require.NoError(t, err)
}

func TestRequestCodeAfterConsumeIssuesActiveCode(t *testing.T) {
	f := newFixture(t)
	svc := newVerificationService(t, f, nil, WithCodeGenerator(fixedCodes("555555", "666666")))
	ctx := context.Background()
	user := f.voter(t, "again")

	_, err := svc.RequestCode(ctx, user.ID, user.Email)
	require.NoError(t, err)
	_, err = svc.VerifyCode(ctx, user.ID, "555555")
	require.NoError(t, err)

	_, err = svc.RequestCode(ctx, user.ID, user.Email)
	require.NoError(t, err)
	_, err = svc.VerifyCode(ctx, user.ID, "666666")
	require.NoError(t, err)
}

func TestRequestCodeRejectsForeignEmail(t *testing.T) {
	f := newFixture(t)
	svc := newVerificationService(t, f, nil)
	user := f.voter(t, "owner")
	f.voter(t, "other")

	_, err := svc.RequestCode(context.Background(), user.ID, "other@awards.test")
	require.ErrorIs(t, err, ErrVerificationEmailMismatch)
}

func TestVerifyCodeWithoutRequest(t *testing.T) {
	f := newFixture(t)
	svc := newVerificationService(t, f, nil)
	user := f.voter(t, "nobody")

	_, err := svc.VerifyCode(context.Background(), user.ID, "123456")
	require.ErrorIs(t, err, ErrInvalidCode)
}

func TestRequestCodeSurvivesQueueFailure(t *testing.T) {
	f := newFixture(t)
	outbox := &recordingOutbox{err: errors.New("queue full")}
	svc := newVerificationService(t, f, outbox)
	user := f.voter(t, "queued")

	issued, err := svc.RequestCode(context.Background(), user.ID, user.Email)
	require.NoError(t, err)
	require.Len(t, issued.Code, 6)
}

func TestVerificationCleanupExpired(t *testing.T) {
	f := newFixture(t)
	svc := newVerificationService(t, f, nil, WithCodeGenerator(fixedCodes("777777", "888888")))
	ctx := context.Background()

	consumed := f.voter(t, "consumed")
	pending := f.voter(t, "pending")
	_, err := svc.RequestCode(ctx, consumed.ID, consumed.Email)
	require.NoError(t, err)
	_, err = svc.VerifyCode(ctx, consumed.ID, "777777")
	require.NoError(t, err)
	_, err = svc.RequestCode(ctx, pending.ID, pending.Email)
	require.NoError(t, err)

	removed, err := svc.CleanupExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	f.clock.Advance(time.Hour)
	removed, err = svc.CleanupExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)
}

type recordingForgetter struct {
	users []string
	err   error
}

func (r *recordingForgetter) ForgetUserSessions(_ context.Context, userID string) error {
	r.users = append(r.users, userID)
	return r.err
}

func TestVerifyCodeForgetsCachedSessions(t *testing.T) {
	f := newFixture(t)
	forgetter := &recordingForgetter{}
	svc := newVerificationService(t, f, nil, WithCodeGenerator(fixedCodes("111111")), WithSessionForgetter(forgetter))
	ctx := context.Background()
	user := f.voter(t, "cached")

	_, err := svc.RequestCode(ctx, user.ID, user.Email)
	require.NoError(t, err)

	_, err = svc.VerifyCode(ctx, user.ID, "999999")
	require.ErrorIs(t, err, ErrInvalidCode)
	require.Empty(t, forgetter.users)

	forgetter.err = errors.New("cache unavailable")
	_, err = svc.VerifyCode(ctx, user.ID, "111111")
	require.NoError(t, err)
	require.Equal(t, []string{user.ID}, forgetter.users)
}
