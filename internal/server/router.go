package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/voltaprotect/groupbuy-backend/internal/handlers"
	"github.com/voltaprotect/groupbuy-backend/internal/middleware"
	"github.com/voltaprotect/groupbuy-backend/internal/platform/envutil"
)

type RouterConfig struct {
	AuthHandler     *handlers.AuthHandler
	AuthMiddleware  *middleware.AuthMiddleware
	ProductHandler  *handlers.ProductHandler
	GroupHandler    *handlers.GroupHandler
	ChatHandler     *handlers.ChatHandler
	RealtimeHandler *handlers.RealtimeHandler
	AdminHandler    *handlers.AdminHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(otelgin.Middleware("groupbuy-backend"))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Chat-Token"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")

	// Public
	api.POST("/auth/login", cfg.AuthHandler.Login)
	api.POST("/auth/refresh", cfg.AuthHandler.Refresh)

	api.GET("/products", cfg.ProductHandler.List)
	api.GET("/products/:id", cfg.ProductHandler.Get)

	api.GET("/groups", cfg.GroupHandler.List)
	api.POST("/groups", cfg.GroupHandler.Create)
	api.GET("/groups/:id", cfg.GroupHandler.Get)
	api.POST("/groups/:id/join", cfg.GroupHandler.Join)
	api.POST("/groups/propose", cfg.GroupHandler.Propose)
	api.GET("/groups/:id/payment-links", cfg.GroupHandler.PaymentLinks)

	// Chat and streams accept either an admin session or a participant
	// capability token; OptionalAuth only attaches identity.
	chat := api.Group("/")
	chat.Use(cfg.AuthMiddleware.OptionalAuth())
	chat.POST("/groups/:id/messages", cfg.ChatHandler.Post)
	chat.GET("/groups/:id/messages", cfg.ChatHandler.List)
	chat.GET("/groups/:id/stream", cfg.RealtimeHandler.GroupStream)
	chat.GET("/groups/:id/chat/stream", cfg.RealtimeHandler.ChatStream)

	// Admin
	admin := api.Group("/admin")
	admin.Use(cfg.AuthMiddleware.RequireAuth())
	admin.POST("/auth/logout", cfg.AuthHandler.Logout)
	admin.POST("/products", cfg.ProductHandler.Create)
	admin.PUT("/products/:id", cfg.ProductHandler.Update)
	admin.GET("/proposals", cfg.AdminHandler.ListPendingProposals)
	admin.POST("/groups/:id/review", cfg.AdminHandler.ReviewProposal)
	admin.POST("/groups/:id/advance", cfg.AdminHandler.Advance)
	admin.POST("/groups/:id/cancel", cfg.AdminHandler.Cancel)
	admin.PUT("/groups/:id/participants/:participantId/payment", cfg.AdminHandler.UpdatePayment)

	return router
}

func allowedOrigins() []string {
	raw := envutil.Str("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}
