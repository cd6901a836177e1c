package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// errTimeout marks requests cut by Timeout.
var errTimeout = errors.New("request timed out")

// Timeout bounds the request context to d. Handlers and stores that honour
// ctx stop at the deadline; if nothing was written by then the request is
// answered with 503. d <= 0 disables the timeout.
func Timeout(d time.Duration) gin.HandlerFunc {
	if d <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			AbortWithError(c, http.StatusServiceUnavailable, "Request timed out", errTimeout)
		}
	}
}
