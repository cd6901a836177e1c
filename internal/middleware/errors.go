package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/maxrawlins/transaction-summary-api/internal/domain/dto"
	"github.com/maxrawlins/transaction-summary-api/internal/logger"
)

// ErrorHandler renders errors attached with c.Error() that no handler turned
// into a response. They are logged with their cause and answered with a
// generic 500; nothing of the cause reaches the client.
func ErrorHandler(c *gin.Context) {
	c.Next()

	if len(c.Errors) == 0 || c.Writer.Written() {
		return
	}

	log := logger.With("http")
	log.Error().
		Str("request_id", requestID(c)).
		Str("errors", c.Errors.String()).
		Msg("unhandled request error")

	c.AbortWithStatusJSON(http.StatusInternalServerError, dto.NewErrorResponse("Internal server error", nil))
}

// AbortWithError stops the chain with status and a dto.ErrorResponse.
//
// err is recorded on the context for the request log. Its text is echoed to
// the client only for 4xx statuses.
func AbortWithError(c *gin.Context, status int, message string, err error) {
	if err != nil {
		_ = c.Error(err)
	}

	var detail error
	if status < http.StatusInternalServerError {
		detail = err
	}
	c.AbortWithStatusJSON(status, dto.NewErrorResponse(message, detail))
}
