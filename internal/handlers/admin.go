package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/awards/internal/services"
	"github.com/charlesng35/awards/pkg/errors"
	"github.com/charlesng35/awards/pkg/response"
)

// AdminHandler serves the SUPER_ADMIN surface. Every mutation is audited by
// the service it delegates to.
type AdminHandler struct {
	identity *services.IdentityService
	ledger   *services.VoteLedger
	settings *services.SettingsService
	catalog  *services.CatalogService
	audit    *services.AuditService
}

func NewAdminHandler(svc AdminServices) *AdminHandler {
	return &AdminHandler{
		identity: svc.Identity,
		ledger:   svc.Ledger,
		settings: svc.Settings,
		catalog:  svc.Catalog,
		audit:    svc.Audit,
	}
}

// AdminServices lists the services the admin surface depends on.
type AdminServices struct {
	Identity *services.IdentityService
	Ledger   *services.VoteLedger
	Settings *services.SettingsService
	Catalog  *services.CatalogService
	Audit    *services.AuditService
}

// DELETE /api/admin/votes/:id
func (h *AdminHandler) RevokeVote(c *gin.Context) {
	if err := h.ledger.RevokeVote(requestContext(c), currentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}

type setRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=VOTER SUPER_ADMIN"`
}

// PUT /api/admin/users/:id/role
func (h *AdminHandler) SetRole(c *gin.Context) {
	var req setRoleRequest
	if !bindAndValidate(c, &req) {
		return
	}
	user, err := h.identity.SetRole(requestContext(c), currentUserID(c), c.Param("id"), req.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// GET /api/admin/users
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, perPage := pagination(c)

	users, total, err := h.identity.ListUsers(requestContext(c), page, perPage)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, users, response.NewMeta(page, perPage, total))
}

type votingSettingsRequest struct {
	Open         *bool  `json:"open" validate:"required"`
	BlockMessage string `json:"block_message" validate:"max=500"`
}

// PUT /api/admin/settings/voting
func (h *AdminHandler) SetVoting(c *gin.Context) {
	var req votingSettingsRequest
	if !bindAndValidate(c, &req) {
		return
	}
	policy, err := h.settings.SetVotingOpen(requestContext(c), currentUserID(c), *req.Open, req.BlockMessage)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, policy)
}

// GET /api/admin/settings/voting
func (h *AdminHandler) GetVoting(c *gin.Context) {
	policy, err := h.settings.VotingPolicy(requestContext(c), nil)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, policy)
}

type devicePolicyRequest struct {
	Mode             string `json:"mode" validate:"required,oneof=off flag block"`
	MaxAccounts      int    `json:"max_accounts" validate:"min=0,max=1000"`
	MaxAccountsPerIP int    `json:"max_accounts_per_ip" validate:"min=0,max=1000"`
}

// PUT /api/admin/settings/device-policy
func (h *AdminHandler) SetDevicePolicy(c *gin.Context) {
	var req devicePolicyRequest
	if !bindAndValidate(c, &req) {
		return
	}
	policy, err := h.settings.SetDevicePolicy(requestContext(c), currentUserID(c), services.DevicePolicy{
		Mode:             req.Mode,
		MaxAccounts:      req.MaxAccounts,
		MaxAccountsPerIP: req.MaxAccountsPerIP,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, policy)
}

type createCategoryRequest struct {
	Name                   string `json:"name" validate:"required,max=200"`
	Subtitle               string `json:"subtitle" validate:"max=500"`
	Special                bool   `json:"special"`
	IsLeadershipPrize      bool   `json:"is_leadership_prize"`
	PreAssignedWinner      string `json:"pre_assigned_winner" validate:"max=200"`
	PreAssignedWinnerBio   string `json:"pre_assigned_winner_bio"`
	PreAssignedWinnerImage string `json:"pre_assigned_winner_image" validate:"omitempty,url"`
}

// POST /api/admin/categories
func (h *AdminHandler) CreateCategory(c *gin.Context) {
	var req createCategoryRequest
	if !bindAndValidate(c, &req) {
		return
	}
	category, err := h.catalog.CreateCategory(requestContext(c), currentUserID(c), services.CategoryInput{
		Name:                   req.Name,
		Subtitle:               req.Subtitle,
		Special:                req.Special,
		IsLeadershipPrize:      req.IsLeadershipPrize,
		PreAssignedWinner:      req.PreAssignedWinner,
		PreAssignedWinnerBio:   req.PreAssignedWinnerBio,
		PreAssignedWinnerImage: req.PreAssignedWinnerImage,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, category)
}

type candidateRequest struct {
	Name         string   `json:"name" validate:"required,max=200"`
	Bio          string   `json:"bio"`
	ImageURL     string   `json:"image_url" validate:"omitempty,url"`
	Achievements []string `json:"achievements" validate:"max=20,dive,max=200"`
	SongTitle    string   `json:"song_title" validate:"max=200"`
	SongURL      string   `json:"song_url" validate:"omitempty,url"`
}

// POST /api/admin/categories/:id/candidates
func (h *AdminHandler) CreateCandidate(c *gin.Context) {
	var req candidateRequest
	if !bindAndValidate(c, &req) {
		return
	}
	candidate, err := h.catalog.CreateCandidate(requestContext(c), currentUserID(c), c.Param("id"), services.CandidateInput{
		Name:         req.Name,
		Bio:          req.Bio,
		ImageURL:     req.ImageURL,
		Achievements: req.Achievements,
		SongTitle:    req.SongTitle,
		SongURL:      req.SongURL,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, candidate)
}

type renameCandidateRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

// PATCH /api/admin/candidates/:id
func (h *AdminHandler) RenameCandidate(c *gin.Context) {
	var req renameCandidateRequest
	if !bindAndValidate(c, &req) {
		return
	}
	candidate, err := h.catalog.RenameCandidate(requestContext(c), currentUserID(c), c.Param("id"), req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, candidate)
}

// POST /api/admin/categories/:id/reveal
func (h *AdminHandler) RevealLeadership(c *gin.Context) {
	category, err := h.catalog.RevealLeadership(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, category)
}

// GET /api/admin/audit
func (h *AdminHandler) ListAudit(c *gin.Context) {
	page, perPage := pagination(c)

	filters := services.AuditFilters{
		UserID:   strings.TrimSpace(c.Query("user_id")),
		Action:   strings.TrimSpace(c.Query("action")),
		Entity:   strings.TrimSpace(c.Query("entity")),
		EntityID: strings.TrimSpace(c.Query("entity_id")),
	}
	var ok bool
	if filters.Since, ok = parseTimeQuery(c, "since"); !ok {
		return
	}
	if filters.Until, ok = parseTimeQuery(c, "until"); !ok {
		return
	}

	logs, total, err := h.audit.List(requestContext(c), services.AuditListOptions{
		Page:     page,
		PageSize: perPage,
		Filters:  filters,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, logs, response.NewMeta(page, perPage, total))
}

// GET /api/admin/summary
func (h *AdminHandler) Summary(c *gin.Context) {
	summary, err := h.ledger.Summary(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, summary)
}

// parseTimeQuery reads an RFC 3339 query value. On a malformed value it
// writes a 400 and reports false.
func parseTimeQuery(c *gin.Context, key string) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, true
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		response.Error(c, errors.NewBadRequest(key+" must be an RFC 3339 timestamp"))
		return nil, false
	}
	return &parsed, true
}

func pagination(c *gin.Context) (page, perPage int) {
	page = parseIntQuery(c, "page", 1)
	if page < 1 {
		page = 1
	}
	perPage = parseIntQuery(c, "per_page", 50)
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}
	return page, perPage
}
