package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/awards/internal/handlers/testutil"
	"github.com/charlesng35/awards/internal/models"
)

type categoryPayload struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Candidates []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"candidates"`
}

// seedCategory creates a category with candidates through the admin API.
func seedCategory(t *testing.T, env *testutil.Env, adminToken, name string, candidates ...string) (string, []string) {
	t.Helper()

	resp := env.Request(http.MethodPost, "/api/admin/categories", map[string]any{"name": name}, adminToken)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var category categoryPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &category)

	ids := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		resp := env.Request(http.MethodPost, "/api/admin/categories/"+category.ID+"/candidates", map[string]any{"name": candidate}, adminToken)
		require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
		var created struct {
			ID string `json:"id"`
		}
		testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &created)
		ids = append(ids, created.ID)
	}
	return category.ID, ids
}

func setVoting(t *testing.T, env *testutil.Env, adminToken string, open bool, message string) {
	t.Helper()
	resp := env.Request(http.MethodPut, "/api/admin/settings/voting", map[string]any{"open": open, "block_message": message}, adminToken)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
}

func TestVoteFlow(t *testing.T) {
	env := testutil.NewEnv(t)
	_, adminToken := env.Admin()
	_, voterToken := env.Voter()

	categoryID, candidates := seedCategory(t, env, adminToken, "Best Artist", "C1", "C2")
	ballot := map[string]string{"category_id": categoryID, "candidate_id": candidates[0]}

	closed := env.Request(http.MethodPost, "/api/votes", ballot, voterToken)
	require.Equal(t, http.StatusForbidden, closed.Code)
	require.Equal(t, "VOTING_CLOSED", testutil.ErrorCode(t, closed))

	setVoting(t, env, adminToken, true, "")

	first := env.Request(http.MethodPost, "/api/votes", ballot, voterToken)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	var vote models.Vote
	testutil.DecodeInto(t, testutil.DecodeResponse(t, first).Data, &vote)
	require.Equal(t, "C1", vote.CandidateName)

	second := env.Request(http.MethodPost, "/api/votes", map[string]string{
		"category_id":  categoryID,
		"candidate_id": candidates[1],
	}, voterToken)
	require.Equal(t, http.StatusConflict, second.Code)
	require.Equal(t, "ALREADY_VOTED", testutil.ErrorCode(t, second))

	tally := env.Request(http.MethodGet, "/api/categories/"+categoryID+"/tally", nil, adminToken)
	require.Equal(t, http.StatusOK, tally.Code, tally.Body.String())
	var counts map[string]int64
	testutil.DecodeInto(t, testutil.DecodeResponse(t, tally).Data, &counts)
	require.Equal(t, map[string]int64{candidates[0]: 1, candidates[1]: 0}, counts)

	mine := env.Request(http.MethodGet, "/api/votes/me", nil, voterToken)
	require.Equal(t, http.StatusOK, mine.Code)
	var votes []models.Vote
	testutil.DecodeInto(t, testutil.DecodeResponse(t, mine).Data, &votes)
	require.Len(t, votes, 1)
}

func TestVoteRejectsCandidateFromOtherCategory(t *testing.T) {
	env := testutil.NewEnv(t)
	_, adminToken := env.Admin()
	_, voterToken := env.Voter()

	artistID, _ := seedCategory(t, env, adminToken, "Best Artist", "C1")
	_, songs := seedCategory(t, env, adminToken, "Best Song", "S1")
	setVoting(t, env, adminToken, true, "")

	resp := env.Request(http.MethodPost, "/api/votes", map[string]string{
		"category_id":  artistID,
		"candidate_id": songs[0],
	}, voterToken)
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	require.Equal(t, "INVALID_CANDIDATE", testutil.ErrorCode(t, resp))

	resp = env.Request(http.MethodPost, "/api/votes", map[string]string{"category_id": artistID}, voterToken)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestClosedVotingCarriesBlockMessage(t *testing.T) {
	env := testutil.NewEnv(t)
	_, adminToken := env.Admin()
	_, voterToken := env.Voter()

	categoryID, candidates := seedCategory(t, env, adminToken, "Best Artist", "C1")
	setVoting(t, env, adminToken, false, "Les votes ouvrent vendredi")

	resp := env.Request(http.MethodPost, "/api/votes", map[string]string{
		"category_id":  categoryID,
		"candidate_id": candidates[0],
	}, voterToken)
	require.Equal(t, http.StatusForbidden, resp.Code)
	payload := testutil.DecodeResponse(t, resp)
	require.Equal(t, "Les votes ouvrent vendredi", payload.Error.Message)
}

func TestTallyAndAdminRoutesRequireSuperAdmin(t *testing.T) {
	env := testutil.NewEnv(t)
	_, adminToken := env.Admin()
	_, voterToken := env.Voter()
	categoryID, _ := seedCategory(t, env, adminToken, "Best Artist", "C1")

	resp := env.Request(http.MethodGet, "/api/categories/"+categoryID+"/tally", nil, voterToken)
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = env.Request(http.MethodPost, "/api/admin/categories", map[string]any{"name": "Sneaky"}, voterToken)
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = env.Request(http.MethodGet, "/api/categories/does-not-exist/tally", nil, adminToken)
	require.Equal(t, http.StatusNotFound, resp.Code)

	list := env.Request(http.MethodGet, "/api/categories", nil, voterToken)
	require.Equal(t, http.StatusOK, list.Code)
	var categories []categoryPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, list).Data, &categories)
	require.Len(t, categories, 1)
	require.Len(t, categories[0].Candidates, 1)
}
