package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/awards/internal/services"
	"github.com/charlesng35/awards/pkg/response"
)

type VerificationHandler struct {
	service    *services.VerificationService
	exposeCode bool
}

// NewVerificationHandler builds the handler. exposeCode echoes the issued
// code in the response and must stay off outside development.
func NewVerificationHandler(service *services.VerificationService, exposeCode bool) *VerificationHandler {
	return &VerificationHandler{service: service, exposeCode: exposeCode}
}

type requestCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type requestCodeResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
	Code      string    `json:"code,omitempty"`
}

type confirmCodeRequest struct {
	Code string `json:"code" validate:"required,max=32"`
}

// POST /api/verification/request
func (h *VerificationHandler) Request(c *gin.Context) {
	var req requestCodeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	issued, err := h.service.RequestCode(requestContext(c), currentUserID(c), req.Email)
	if err != nil {
		response.Error(c, err)
		return
	}

	payload := requestCodeResponse{ExpiresAt: issued.ExpiresAt}
	if h.exposeCode {
		payload.Code = issued.Code
	}
	response.Success(c, http.StatusOK, payload)
}

// POST /api/verification/confirm
func (h *VerificationHandler) Confirm(c *gin.Context) {
	var req confirmCodeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if _, err := h.service.VerifyCode(requestContext(c), currentUserID(c), req.Code); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"verified": true})
}
