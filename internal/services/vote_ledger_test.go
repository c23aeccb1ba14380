package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/awards/internal/database"
	"github.com/charlesng35/awards/internal/models"
)

func TestCastVoteSecondBallotInCategoryRejected(t *testing.T) {
	f := newFixture(t)
	f.openVoting(t)
	ctx := context.Background()

	voter := f.voter(t, "awa")
	category, candidates := f.category(t, "Best Artist", "C1", "C2")

	vote, err := f.ledger.CastVote(ctx, voter.ID, category.ID, candidates[0].ID)
	require.NoError(t, err)
	require.Equal(t, "C1", vote.CandidateName)
	require.False(t, vote.Flagged)

	_, err = f.ledger.CastVote(ctx, voter.ID, category.ID, candidates[1].ID)
	require.ErrorIs(t, err, ErrAlreadyVoted)

	tally, err := f.ledger.Tally(ctx, category.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), tally[candidates[0].ID])
	require.Equal(t, int64(0), tally[candidates[1].ID])
}

func TestCastVoteConcurrentBallotsStoreExactlyOne(t *testing.T) {
	f := newFixture(t)
	f.openVoting(t)
	ctx := context.Background()

	voter := f.voter(t, "moussa")
	category, candidates := f.category(t, "Best Song", "A", "B")

	const attempts = 12
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		successes  int
		duplicates int
		others     []error
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.ledger.CastVote(ctx, voter.ID, category.ID, candidates[i%2].ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrAlreadyVoted):
				duplicates++
			default:
				others = append(others, err)
			}
		}(i)
	}
	wg.Wait()

	require.Empty(t, others)
	require.Equal(t, 1, successes)
	require.Equal(t, attempts-1, duplicates)

	var stored int64
	require.NoError(t, f.db.Model(&models.Vote{}).Where("user_id = ? AND category_id = ?", voter.ID, category.ID).Count(&stored).Error)
	require.Equal(t, int64(1), stored)
}

func TestCastVoteClosedCarriesBlockMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	voter := f.voter(t, "fanta")
	category, candidates := f.category(t, "Best Dancer", "D1")

	_, err := f.ledger.CastVote(ctx, voter.ID, category.ID, candidates[0].ID)
	require.ErrorIs(t, err, ErrVotingClosed)

	_, err = f.settings.SetVotingOpen(ctx, f.admin.ID, false, "Voting opens Friday")
	require.NoError(t, err)

	_, err = f.ledger.CastVote(ctx, voter.ID, category.ID, candidates[0].ID)
	require.ErrorIs(t, err, ErrVotingClosed)
	require.Contains(t, err.Error(), "Voting opens Friday")

	var count int64
	require.NoError(t, f.db.Model(&models.Vote{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestCastVoteRejectsCandidateFromAnotherCategory(t *testing.T) {
	f := newFixture(t)
	f.openVoting(t)
	ctx := context.Background()
	voter := f.voter(t, "issa")

	artist, _ := f.category(t, "Best Artist", "C1")
	_, songs := f.category(t, "Best Song", "S1")

	_, err := f.ledger.CastVote(ctx, voter.ID, artist.ID, songs[0].ID)
	require.ErrorIs(t, err, ErrInvalidCandidate)

	_, err = f.ledger.CastVote(ctx, voter.ID, "missing-category", songs[0].ID)
	require.ErrorIs(t, err, ErrInvalidCandidate)
}

func TestCastVoteTimestampsStrictlyIncrease(t *testing.T) {
	f := newFixture(t)
	f.openVoting(t)
	ctx := context.Background()
	category, candidates := f.category(t, "Best Comedian", "K1")

	var last int64
	for _, name := range []string{"a1", "a2", "a3"} {
		vote, err := f.ledger.CastVote(ctx, f.voter(t, name).ID, category.ID, candidates[0].ID)
		require.NoError(t, err)
		require.Greater(t, vote.Timestamp, last)
		last = vote.Timestamp
	}
	require.Equal(t, f.clock.Now().UnixMilli()+2, last)
}

func TestCastVoteDevicePolicy(t *testing.T) {
	f := newFixture(t)
	f.openVoting(t)
	ctx := context.Background()
	category, candidates := f.category(t, "Best Producer", "P1")

	first := f.voter(t, "first")
	second := f.voter(t, "second")
	f.devices.RegisterDevice(ctx, first.ID, "fp-shared-0001", DeviceMetadata{})
	f.devices.RegisterDevice(ctx, second.ID, "fp-shared-0001", DeviceMetadata{})

	vote, err := f.ledger.CastVote(ctx, first.ID, category.ID, candidates[0].ID)
	require.NoError(t, err)
	require.True(t, vote.Flagged)

	_, err = f.settings.SetDevicePolicy(ctx, f.admin.ID, DevicePolicy{Mode: DeviceModeBlock, MaxAccounts: 1})
	require.NoError(t, err)
	_, err = f.ledger.CastVote(ctx, second.ID, category.ID, candidates[0].ID)
	require.ErrorIs(t, err, ErrDeviceLimitExceeded)

	_, err = f.settings.SetDevicePolicy(ctx, f.admin.ID, DevicePolicy{Mode: DeviceModeOff, MaxAccounts: 1})
	require.NoError(t, err)
	vote, err = f.ledger.CastVote(ctx, second.ID, category.ID, candidates[0].ID)
	require.NoError(t, err)
	require.False(t, vote.Flagged)
}

func TestCastVoteAddressLimit(t *testing.T) {
	f := newFixture(t)
	f.openVoting(t)
	ctx := context.Background()
	category, candidates := f.category(t, "Best Newcomer", "N1")
	_, err := f.settings.SetDevicePolicy(ctx, f.admin.ID, DevicePolicy{Mode: DeviceModeBlock, MaxAccounts: 1, MaxAccountsPerIP: 3})
	require.NoError(t, err)

	var voters []*models.User
	for i := 0; i < 4; i++ {
		voter := f.voter(t, fmt.Sprintf("flatmate%d", i))
		voters = append(voters, voter)
		f.devices.RegisterDevice(ctx, voter.ID, fmt.Sprintf("fp-flatmate-%d", i), DeviceMetadata{IPAddress: "203.0.113.20"})
		if i == 2 {
			// Three accounts on one address are still within the limit.
			_, err := f.ledger.CastVote(ctx, voters[0].ID, category.ID, candidates[0].ID)
			require.NoError(t, err)
		}
	}

	_, err = f.ledger.CastVote(ctx, voters[1].ID, category.ID, candidates[0].ID)
	require.ErrorIs(t, err, ErrDeviceLimitExceeded)
}

func TestRevokeVoteUpdatesTallyAndAudits(t *testing.T) {
	f := newFixture(t)
	f.openVoting(t)
	ctx := context.Background()
	voter := f.voter(t, "revoked")
	category, candidates := f.category(t, "Best Newcomer", "N1", "N2")

	vote, err := f.ledger.CastVote(ctx, voter.ID, category.ID, candidates[1].ID)
	require.NoError(t, err)

	require.ErrorIs(t, f.ledger.RevokeVote(ctx, voter.ID, vote.ID), ErrForbidden)
	require.NoError(t, f.ledger.RevokeVote(ctx, f.admin.ID, vote.ID))
	require.ErrorIs(t, f.ledger.RevokeVote(ctx, f.admin.ID, vote.ID), ErrVoteNotFound)

	tally, err := f.ledger.Tally(ctx, category.ID)
	require.NoError(t, err)
	require.Equal(t, map[string]int64{candidates[0].ID: 0, candidates[1].ID: 0}, tally)

	logs, total, err := f.audit.List(ctx, AuditListOptions{Filters: AuditFilters{Action: ActionVoteRevoke}})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, f.admin.ID, logs[0].UserID)
	require.NotNil(t, logs[0].EntityID)
	require.Equal(t, vote.ID, *logs[0].EntityID)
	require.Contains(t, string(logs[0].OldValues), candidates[1].ID)

	// The voter may now cast a fresh ballot in that category.
	_, err = f.ledger.CastVote(ctx, voter.ID, category.ID, candidates[0].ID)
	require.NoError(t, err)
}

func TestTallyUnknownCategory(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.Tally(context.Background(), "does-not-exist")
	require.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestListUserVotesAndSummary(t *testing.T) {
	f := newFixture(t)
	f.openVoting(t)
	ctx := context.Background()
	voter := f.voter(t, "summary")
	artist, artists := f.category(t, "Best Artist", "C1")
	song, songs := f.category(t, "Best Song", "S1")

	_, err := f.ledger.CastVote(ctx, voter.ID, song.ID, songs[0].ID)
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	_, err = f.ledger.CastVote(ctx, voter.ID, artist.ID, artists[0].ID)
	require.NoError(t, err)

	votes, err := f.ledger.ListUserVotes(ctx, voter.ID)
	require.NoError(t, err)
	require.Len(t, votes, 2)
	require.Equal(t, song.ID, votes[0].CategoryID)

	summary, err := f.ledger.Summary(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), summary.Users)
	require.Equal(t, int64(2), summary.Votes)
	require.Len(t, summary.Categories, 2)
	for _, c := range summary.Categories {
		require.Equal(t, int64(1), c.Votes)
	}
}

func TestVotingPolicyDefaultsClosedWithoutSetting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.Where("setting_key = ?", models.SettingVotingOpen).Delete(&models.AppSetting{}).Error)

	policy, err := f.settings.VotingPolicy(ctx, nil)
	require.NoError(t, err)
	require.False(t, policy.Open)
	require.Equal(t, DevicePolicy{Mode: DeviceModeFlag, MaxAccounts: 1, MaxAccountsPerIP: DefaultMaxAccountsPerIP}, policy.Device)

	require.NoError(t, database.UpsertSetting(ctx, f.db, models.SettingVotingOpen, true))
	policy, err = f.settings.VotingPolicy(ctx, nil)
	require.NoError(t, err)
	require.True(t, policy.Open)
}
