package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/awards/internal/auth"
	"github.com/charlesng35/awards/internal/middleware"
	"github.com/charlesng35/awards/internal/models"
	"github.com/charlesng35/awards/internal/services"
	"github.com/charlesng35/awards/pkg/errors"
	"github.com/charlesng35/awards/pkg/response"
)

// AuthHandler manages account registration and session lifecycle.
type AuthHandler struct {
	identity   *services.IdentityService
	sessions   *iauth.SessionService
	cookieName string
	secure     bool
}

func NewAuthHandler(identity *services.IdentityService, sessions *iauth.SessionService, cookieName string, secureCookie bool) *AuthHandler {
	return &AuthHandler{identity: identity, sessions: sessions, cookieName: cookieName, secure: secureCookie}
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email,max=320"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.identity.Create(requestContext(c), services.NewUser{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	h.issue(c, http.StatusCreated, user)
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.identity.Authenticate(requestContext(c), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.issue(c, http.StatusOK, user)
}

func (h *AuthHandler) issue(c *gin.Context, status int, user *models.User) {
	issued, _, err := h.sessions.CreateSession(requestContext(c), user.ID, iauth.SessionMetadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}

	if h.cookieName != "" {
		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(h.cookieName, issued.Token, int(time.Until(issued.ExpiresAt).Seconds()), "/", "", h.secure, true)
	}
	response.Success(c, status, sessionResponse{Token: issued.Token, ExpiresAt: issued.ExpiresAt, User: user})
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	token := c.GetString(middleware.CtxTokenKey)
	if token == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	if err := h.sessions.Revoke(requestContext(c), token); err != nil {
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}
	if h.cookieName != "" {
		c.SetCookie(h.cookieName, "", -1, "/", "", h.secure, true)
	}
	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		response.Error(c, errors.ErrUnauthorized)
		return
	}
	response.Success(c, http.StatusOK, user)
}
