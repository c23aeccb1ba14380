package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/awards/pkg/errors"
	"github.com/charlesng35/awards/pkg/logger"
	"github.com/charlesng35/awards/pkg/response"
)

// Recovery turns a panicking handler into a generic 500. The panic value and
// stack are logged with the request id, never returned to the client.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logger.WithModule("http").Error("handler panic",
				zap.String("request_id", c.GetString(CtxRequestIDKey)),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Any("panic", rec),
				zap.Stack("stack"),
			)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			response.Error(c, errors.ErrInternalServer)
		}()
		c.Next()
	}
}

// NotFoundHandler returns a JSON 404 response for unknown routes.
func NotFoundHandler(c *gin.Context) {
	response.Error(c, errors.ErrNotFound.WithMessage(fmt.Sprintf("no route for %s %s", c.Request.Method, c.Request.URL.Path)))
}
