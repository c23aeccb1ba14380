package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/awards/pkg/errors"
)

// Response is the envelope every API endpoint writes.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
	Meta    *Meta      `json:"meta,omitempty"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Meta describes pagination metadata.
type Meta struct {
	Page       int `json:"page,omitempty"`
	PerPage    int `json:"per_page,omitempty"`
	Total      int `json:"total,omitempty"`
	TotalPages int `json:"total_pages,omitempty"`
}

// NewMeta computes page counts for a listing.
func NewMeta(page, perPage int, total int64) *Meta {
	meta := &Meta{Page: page, PerPage: perPage, Total: int(total)}
	if perPage > 0 {
		meta.TotalPages = int((total + int64(perPage) - 1) / int64(perPage))
	}
	return meta
}

func Success(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, Response{Success: true, Data: data})
}

func SuccessWithMeta(c *gin.Context, statusCode int, data any, meta *Meta) {
	c.JSON(statusCode, Response{Success: true, Data: data, Meta: meta})
}

// Error writes a JSON error response derived from an AppError. Errors that are
// not AppErrors are rendered as a generic internal error.
func Error(c *gin.Context, err error) {
	if err == nil {
		err = appErrors.ErrInternalServer
	}

	appErr := appErrors.FromError(err)
	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if appErr.Internal != nil {
		_ = c.Error(appErr.Internal)
	}

	c.AbortWithStatusJSON(status, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    appErr.Code,
			Message: appErr.Message,
		},
	})
}
