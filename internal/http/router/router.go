package router

import (
	"github.com/gin-gonic/gin"

	"github.com/workbridge/marketplace-backend/internal/config"
	"github.com/workbridge/marketplace-backend/internal/http/handlers"
	"github.com/workbridge/marketplace-backend/internal/http/middleware"
	"github.com/workbridge/marketplace-backend/internal/models"
	"github.com/workbridge/marketplace-backend/internal/service"
)

// SetupRouter собирает все маршруты приложения.
func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	projectHandler *handlers.ProjectHandler,
	bidHandler *handlers.BidHandler,
	escrowHandler *handlers.EscrowHandler,
	notificationHandler *handlers.NotificationHandler,
	disputeHandler *handlers.DisputeHandler,
	reviewHandler *handlers.ReviewHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
	}

	// Публичные маршруты
	api.GET("/projects", projectHandler.List)
	api.GET("/projects/:id", projectHandler.Get)
	api.GET("/projects/:id/reviews", reviewHandler.ListByProject)
	api.GET("/users/:id/reviews", reviewHandler.ListByUser)
	api.GET("/users/:id/rating", reviewHandler.GetUserRating)
	api.GET("/ws", wsHandler.Handle)

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.POST("/projects", projectHandler.Create)
		protected.GET("/projects/my", projectHandler.ListMine)
		protected.PUT("/projects/:id", projectHandler.Update)
		protected.DELETE("/projects/:id", projectHandler.Delete)
		protected.POST("/projects/:id/cancel", projectHandler.Cancel)
		protected.POST("/projects/:id/reopen", projectHandler.Reopen)
		protected.POST("/projects/:id/complete", projectHandler.Complete)
		protected.POST("/projects/:id/return-to-work", projectHandler.ReturnToWork)
		protected.POST("/projects/:id/request-payment", projectHandler.RequestPayment)
		protected.POST("/projects/:id/accept-payment", projectHandler.AcceptPayment)

		protected.POST("/projects/:id/bids", bidHandler.Create)
		protected.GET("/projects/:id/bids", bidHandler.ListByProject)
		protected.GET("/bids/my", bidHandler.ListMine)
		protected.PUT("/bids/:id", bidHandler.Update)
		protected.POST("/bids/:id/accept", bidHandler.Accept)
		protected.DELETE("/bids/:id", bidHandler.Cancel)

		protected.POST("/projects/:id/escrow", escrowHandler.Fund)
		protected.GET("/projects/:id/escrow", escrowHandler.GetByProject)
		protected.GET("/escrows/my", escrowHandler.ListMine)
		protected.GET("/escrows/:id", escrowHandler.Get)
		protected.POST("/escrows/:id/start", escrowHandler.StartWork)
		protected.POST("/escrows/:id/approve", escrowHandler.Approve)
		protected.POST("/escrows/:id/cancel", escrowHandler.Cancel)

		protected.POST("/projects/:id/disputes", disputeHandler.Raise)
		protected.GET("/disputes/my", disputeHandler.ListMine)
		protected.GET("/disputes/:id", disputeHandler.Get)

		protected.POST("/projects/:id/reviews", reviewHandler.Create)

		protected.GET("/notifications", notificationHandler.List)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllAsRead)
		protected.PUT("/notifications/:id/read", notificationHandler.MarkAsRead)
		protected.GET("/notifications/unread/count", notificationHandler.CountUnread)
	}

	// Админские маршруты
	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(tokenManager), middleware.RequireRole(models.RoleAdmin))
	{
		admin.GET("/escrows", escrowHandler.ListAll)
		admin.POST("/escrows/:id/release", escrowHandler.Release)

		admin.GET("/disputes", disputeHandler.ListAll)
		admin.POST("/disputes/:id/close", disputeHandler.Close)
		admin.PUT("/disputes/:id/read", disputeHandler.MarkRead)
		admin.GET("/disputes/unread/count", disputeHandler.CountPendingUnread)
	}

	return r
}
