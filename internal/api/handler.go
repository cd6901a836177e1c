package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/maxrawlins/transaction-summary-api/internal/apperror"
	"github.com/maxrawlins/transaction-summary-api/internal/domain/dto"
	"github.com/maxrawlins/transaction-summary-api/internal/ingestion"
	"github.com/maxrawlins/transaction-summary-api/internal/middleware"
	"github.com/maxrawlins/transaction-summary-api/internal/service"
)

const (
	uploadField = "file"
	dateLayout  = "2006-01-02"
)

// Handler provides HTTP handlers for CSV upload and per-user summaries.
//
// Responsibilities:
//   - Validate path, query and multipart input
//   - Delegate to the ingestion and summary services
//   - Map apperror kinds onto HTTP status codes and response DTOs
type Handler struct {
	ingest    ingestion.Service
	summary   service.SummaryService
	maxUpload int64
}

// NewHandler constructs a Handler. maxUpload caps the request body of
// POST /upload in bytes; values <= 0 disable the cap.
func NewHandler(ingest ingestion.Service, summary service.SummaryService, maxUpload int64) *Handler {
	return &Handler{ingest: ingest, summary: summary, maxUpload: maxUpload}
}

// Upload handles POST /upload.
//
// The "file" part is streamed straight into the ingestion service; the body
// is never buffered to disk. The whole file is rejected on the first
// invalid row.
//
// Upload godoc
// @Summary      Upload transactions CSV
// @Description  Appends every row of a CSV with columns transaction_id, user_id, product_id, timestamp, transaction_amount. Any invalid row rejects the whole file.
// @Tags         transactions
// @Accept       multipart/form-data
// @Produce      json
// @Param        file  formData  file  true  "CSV file"
// @Success      200   {object}  dto.UploadResponse  "Success"
// @Failure      400   {object}  dto.ErrorResponse   "Bad Request"
// @Failure      413   {object}  dto.ErrorResponse   "Payload Too Large"
// @Failure      500   {object}  dto.ErrorResponse   "Internal Error"
// @Router       /upload [post]
func (h *Handler) Upload(c *gin.Context) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}

	mr, err := c.Request.MultipartReader()
	if err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, "Expected a multipart/form-data body with a 'file' field.", err)
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			middleware.AbortWithError(c, http.StatusBadRequest, "Missing 'file' field.", nil)
			return
		}
		if err != nil {
			h.fail(c, apperror.InvalidInput("Malformed multipart body", err))
			return
		}
		if part.FormName() != uploadField {
			_ = part.Close()
			continue
		}

		if !strings.HasSuffix(strings.ToLower(part.FileName()), ".csv") {
			_ = part.Close()
			middleware.AbortWithError(c, http.StatusBadRequest, "Only CSV files are accepted.", nil)
			return
		}

		res, err := h.ingest.Ingest(c.Request.Context(), part)
		_ = part.Close()
		if err != nil {
			h.fail(c, err)
			return
		}

		c.JSON(http.StatusOK, dto.NewUploadResponse(res))
		return
	}
}

// GetSummary handles GET /summary/:user_id.
//
// Query Parameters:
//   - start (string, optional): first calendar date, YYYY-MM-DD, inclusive.
//   - end (string, optional): last calendar date, YYYY-MM-DD, inclusive.
//
// GetSummary godoc
// @Summary      Get a user's transaction summary
// @Description  Returns count, min, max and mean of the user's transaction amounts, optionally restricted to a date range
// @Tags         transactions
// @Produce      json
// @Param        user_id  path      int     true   "User id" example(42)
// @Param        start    query     string  false  "Start date in YYYY-MM-DD" example(2024-01-01)
// @Param        end      query     string  false  "End date in YYYY-MM-DD" example(2024-06-30)
// @Success      200      {object}  dto.SummaryResponse  "Success"
// @Failure      400      {object}  dto.ErrorResponse    "Bad Request"
// @Failure      404      {object}  dto.ErrorResponse    "Not Found"
// @Failure      500      {object}  dto.ErrorResponse    "Internal Error"
// @Router       /summary/{user_id} [get]
func (h *Handler) GetSummary(c *gin.Context) {
	userID, err := strconv.ParseInt(strings.TrimSpace(c.Param("user_id")), 10, 64)
	if err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, "Invalid user_id, expected an integer", err)
		return
	}

	start, err := parseDateParam(c, "start")
	if err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, "Invalid start date, expected YYYY-MM-DD", err)
		return
	}
	end, err := parseDateParam(c, "end")
	if err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, "Invalid end date, expected YYYY-MM-DD", err)
		return
	}

	summary, err := h.summary.Summarize(c.Request.Context(), userID, start, end)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSummaryResponse(summary))
}

func parseDateParam(c *gin.Context, name string) (*time.Time, error) {
	s := strings.TrimSpace(c.Query(name))
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// fail renders a service error. Oversized bodies become 413 whatever layer
// noticed them; everything else follows the apperror kind.
func (h *Handler) fail(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		middleware.AbortWithError(c, http.StatusRequestEntityTooLarge, "Upload exceeds the maximum allowed size.", err)
		return
	}

	kind := apperror.KindOf(err)
	msg := apperror.MessageOf(err, "Internal server error")

	cause := err
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		cause = appErr.Err
	}
	middleware.AbortWithError(c, kind.HTTPStatus(), msg, cause)
}
