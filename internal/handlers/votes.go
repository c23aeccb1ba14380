package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/awards/internal/services"
	"github.com/charlesng35/awards/pkg/response"
)

type VoteHandler struct {
	ledger *services.VoteLedger
}

func NewVoteHandler(ledger *services.VoteLedger) *VoteHandler {
	return &VoteHandler{ledger: ledger}
}

type castVoteRequest struct {
	CategoryID  string `json:"category_id" validate:"required,max=64"`
	CandidateID string `json:"candidate_id" validate:"required,max=64"`
}

// POST /api/votes
func (h *VoteHandler) Cast(c *gin.Context) {
	var req castVoteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	vote, err := h.ledger.CastVote(requestContext(c), currentUserID(c), req.CategoryID, req.CandidateID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, vote)
}

// GET /api/votes/me
func (h *VoteHandler) Mine(c *gin.Context) {
	votes, err := h.ledger.ListUserVotes(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, votes)
}
