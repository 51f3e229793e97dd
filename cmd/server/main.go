package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/workbridge/marketplace-backend/internal/config"
	"github.com/workbridge/marketplace-backend/internal/db"
	httpHandlers "github.com/workbridge/marketplace-backend/internal/http/handlers"
	httpRouter "github.com/workbridge/marketplace-backend/internal/http/router"
	"github.com/workbridge/marketplace-backend/internal/logger"
	"github.com/workbridge/marketplace-backend/internal/repository"
	"github.com/workbridge/marketplace-backend/internal/service"
	"github.com/workbridge/marketplace-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	if cfg.Env == "development" {
		logger.Init("debug")
		logger.SetTextFormatter()
	} else {
		logger.Init("info")
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	projectRepo := repository.NewProjectRepository(dbConn)
	bidRepo := repository.NewBidRepository(dbConn)
	escrowRepo := repository.NewEscrowRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)
	disputeRepo := repository.NewDisputeRepository(dbConn)
	reviewRepo := repository.NewReviewRepository(dbConn)

	// Сервисы.
	authService := service.NewAuthService(userRepo, tokenManager)
	notificationService := service.NewNotificationService(notificationRepo)
	projectService := service.NewProjectService(projectRepo, bidRepo, escrowRepo, notificationService)
	bidService := service.NewBidService(bidRepo, projectRepo, notificationService)
	escrowService := service.NewEscrowService(escrowRepo, projectRepo, bidRepo, notificationService)
	disputeService := service.NewDisputeService(disputeRepo, projectRepo, notificationService)
	reviewService := service.NewReviewService(reviewRepo, projectRepo)

	// Вебсокеты: live-доставка поверх журнала уведомлений.
	hub := ws.NewHub()
	go hub.Run()
	notificationService.SetHub(hub)

	// HTTP хэндлеры.
	authHandler := httpHandlers.NewAuthHandler(authService)
	projectHandler := httpHandlers.NewProjectHandler(projectService)
	bidHandler := httpHandlers.NewBidHandler(bidService)
	escrowHandler := httpHandlers.NewEscrowHandler(escrowService)
	notificationHandler := httpHandlers.NewNotificationHandler(notificationService)
	disputeHandler := httpHandlers.NewDisputeHandler(disputeService)
	reviewHandler := httpHandlers.NewReviewHandler(reviewService)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, authHandler, projectHandler, bidHandler, escrowHandler, notificationHandler, disputeHandler, reviewHandler, wsHandler, healthHandler, tokenManager)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
