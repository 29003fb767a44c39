package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/voltaprotect/groupbuy-backend/internal/db"
	"github.com/voltaprotect/groupbuy-backend/internal/handlers"
	"github.com/voltaprotect/groupbuy-backend/internal/middleware"
	"github.com/voltaprotect/groupbuy-backend/internal/observability"
	"github.com/voltaprotect/groupbuy-backend/internal/platform/envutil"
	"github.com/voltaprotect/groupbuy-backend/internal/platform/logger"
	"github.com/voltaprotect/groupbuy-backend/internal/platform/sendgrid"
	"github.com/voltaprotect/groupbuy-backend/internal/realtime"
	"github.com/voltaprotect/groupbuy-backend/internal/realtime/bus"
	"github.com/voltaprotect/groupbuy-backend/internal/repos"
	"github.com/voltaprotect/groupbuy-backend/internal/server"
	"github.com/voltaprotect/groupbuy-backend/internal/services"
)

func main() {
	// Logger
	log, err := logger.New(envutil.Str("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	// Tracing
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "groupbuy-backend",
		Environment: envutil.Str("APP_ENV", "development"),
		Version:     envutil.Str("APP_VERSION", "dev"),
	})
	if otelShutdown != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos...")
	adminUserRepo := repos.NewAdminUserRepo(thePG, log)
	adminTokenRepo := repos.NewAdminTokenRepo(thePG, log)
	productRepo := repos.NewProductRepo(thePG, log)
	groupOrderRepo := repos.NewGroupOrderRepo(thePG, log)
	participantRepo := repos.NewParticipantRepo(thePG, log)
	chatMessageRepo := repos.NewChatMessageRepo(thePG, log)

	// Realtime: hub for local connections, bus for cross-process fanout.
	log.Info("Setting up realtime hub and bus...")
	sseHub := realtime.NewSSEHub(log)
	eventBus, err := bus.NewRedisBus(log)
	if err != nil {
		log.Warn("Redis bus unavailable, using in-process bus", "error", err)
		eventBus = bus.NewMemoryBus(log)
	}
	defer eventBus.Close()
	if err := eventBus.StartForwarder(ctx, sseHub.Broadcast); err != nil {
		log.Error("Failed to start bus forwarder", "error", err)
		os.Exit(1)
	}

	// Notifications
	var notifier services.Notifier
	if mailClient, mErr := sendgrid.NewFromEnv(log); mErr == nil {
		if emailNotifier, nErr := services.NewEmailNotifier(log, mailClient, envutil.Str("NOTIFY_ADMIN_EMAILS", "")); nErr == nil {
			notifier = emailNotifier
		} else {
			log.Warn("Email notifier unavailable, falling back to log notifier", "error", nErr)
		}
	} else {
		log.Warn("SendGrid unavailable, falling back to log notifier", "error", mErr)
	}
	if notifier == nil {
		notifier = services.NewLogNotifier(log)
	}
	groupEvents := services.NewGroupNotifier(services.NewBusEmitter(log, eventBus))

	// Services
	log.Info("Setting up services...")
	authService := services.NewAuthService(thePG, log, adminUserRepo, adminTokenRepo)
	if err := authService.SeedAdmin(ctx); err != nil {
		log.Warn("Admin seeding failed", "error", err)
	}
	catalogService := services.NewCatalogService(thePG, log, productRepo)
	participantService := services.NewParticipantService(thePG, log, groupOrderRepo, participantRepo, notifier, groupEvents)
	groupOrderService := services.NewGroupOrderService(thePG, log, catalogService, groupOrderRepo, participantService, notifier, groupEvents)
	proposalService := services.NewProposalService(thePG, log, catalogService, groupOrderRepo, participantService, notifier, groupEvents, envutil.Duration("PROPOSAL_OPEN_WINDOW", 7*24*time.Hour))
	chatService := services.NewChatService(thePG, log, groupOrderRepo, participantRepo, chatMessageRepo, groupEvents)

	paymentProviders, err := services.LoadPaymentProviders(envutil.Str("PAYMENT_PROVIDERS_FILE", ""))
	if err != nil {
		log.Warn("Payment provider catalog failed to load", "error", err)
	}
	paymentService := services.NewPaymentService(thePG, log, groupOrderRepo, participantRepo, paymentProviders, notifier, groupEvents)

	// Handlers
	log.Info("Setting up handlers...")
	authHandler := handlers.NewAuthHandler(authService)
	productHandler := handlers.NewProductHandler(catalogService)
	groupHandler := handlers.NewGroupHandler(groupOrderService, participantService, proposalService, paymentService)
	chatHandler := handlers.NewChatHandler(chatService)
	realtimeHandler := handlers.NewRealtimeHandler(log, sseHub, chatService)
	adminHandler := handlers.NewAdminHandler(groupOrderService, proposalService, paymentService)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	router := server.NewRouter(server.RouterConfig{
		AuthHandler:     authHandler,
		AuthMiddleware:  authMiddleware,
		ProductHandler:  productHandler,
		GroupHandler:    groupHandler,
		ChatHandler:     chatHandler,
		RealtimeHandler: realtimeHandler,
		AdminHandler:    adminHandler,
	})

	port := envutil.Str("PORT", "8080")
	log.Info("Server listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
