package api

import (
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/maxrawlins/transaction-summary-api/config"
	"github.com/maxrawlins/transaction-summary-api/internal/metrics"
	"github.com/maxrawlins/transaction-summary-api/internal/middleware"
)

// rateWindow is the window SERVER_RATE_LIMIT is counted over.
const rateWindow = time.Minute

// NewRouter creates a Gin engine with routes configured.
// It receives a Handler instance with all business logic already injected.
//
// Responsibilities:
//   - Registers global middlewares (RequestID, Logger, Recovery, ErrorHandler,
//     RateLimiter, Metrics, Timeout), in that order.
//   - Mounts Swagger docs (/swagger/*any) and Prometheus metrics (/metrics).
//   - Configures the transaction routes (/upload, /summary/:user_id).
//
// Note:
//   - Health and readiness endpoints (/healthz, /readyz) are registered in app.InitializeApp().
func NewRouter(handler *Handler, cfg config.ServerConfig) *gin.Engine {
	router := gin.New()

	// ─── Middlewares ───────────────────────────────
	router.Use(
		middleware.RequestID(),
		middleware.RequestLogger(),
		middleware.RecoveryMiddleware(),
		middleware.ErrorHandler,
		middleware.RateLimiter(cfg.RateLimit, rateWindow),
		metrics.Middleware(),
		middleware.Timeout(cfg.RequestTimeout),
	)

	// ─── Docs & metrics ───────────────────────────
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// ─── Transactions ─────────────────────────────
	router.POST("/upload", handler.Upload)
	router.GET("/summary/:user_id", handler.GetSummary)

	return router
}
