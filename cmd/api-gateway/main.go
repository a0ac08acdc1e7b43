package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/gw-connect/connect-api/api/swagger"
	"github.com/gw-connect/connect-api/internal/handler"
	"github.com/gw-connect/connect-api/internal/middleware"
	"github.com/gw-connect/connect-api/internal/repository"
	"github.com/gw-connect/connect-api/internal/service"
	"github.com/gw-connect/connect-api/pkg/cache"
	"github.com/gw-connect/connect-api/pkg/clock"
	"github.com/gw-connect/connect-api/pkg/config"
	"github.com/gw-connect/connect-api/pkg/database"
	"github.com/gw-connect/connect-api/pkg/logger"
	corsmiddleware "github.com/gw-connect/connect-api/pkg/middleware/cors"
	reqidmiddleware "github.com/gw-connect/connect-api/pkg/middleware/requestid"
	"github.com/gw-connect/connect-api/pkg/storage"
)

// @title GW Connect API
// @version 1.0.0
// @description University community portal API
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	materialStore, err := storage.NewLocalStorage(cfg.Materials.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init materials storage", "error", err)
	}
	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init exports storage", "error", err)
	}

	validate := validator.New()
	clk := clock.System()

	userRepo := repository.NewUserRepository(db)
	personRepo := repository.NewPersonRepository(db)
	appointmentRepo := repository.NewAppointmentRepository(db)
	studyGroupRepo := repository.NewStudyGroupRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	materialRepo := repository.NewMaterialRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()

	notificationSvc := service.NewNotificationService(notificationRepo, logr, service.NotificationServiceConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
	})

	availabilitySvc := service.NewAvailabilityService(personRepo, appointmentRepo, cacheRepo, clk, metricsSvc, validate, logr, service.AvailabilityServiceConfig{
		SlotCacheTTL:       cfg.Booking.SlotCacheTTL,
		MaxGenerateDaysOut: cfg.Booking.MaxGenerateDaysOut,
	})

	bookingSvc := service.NewBookingService(appointmentRepo, personRepo, availabilitySvc, notificationSvc, metricsSvc, clk, validate, logr, service.BookingServiceConfig{
		AutoConfirmEnabled: cfg.Booking.AutoConfirmEnabled,
	})

	directorySvc := service.NewDirectoryService(userRepo, personRepo, cacheRepo, metricsSvc, validate, logr, service.DirectoryServiceConfig{
		CacheTTL: cfg.Directory.CacheTTL,
	})

	studyGroupSvc := service.NewStudyGroupService(studyGroupRepo, notificationSvc, validate, logr)
	messageSvc := service.NewMessageService(messageRepo, userRepo, notificationSvc, validate, logr)

	materialSigner := storage.NewSignedURLSigner(cfg.Materials.SignedURLSecret, cfg.Materials.SignedURLTTL)
	materialSvc := service.NewMaterialService(materialRepo, materialStore, materialSigner, validate, logr, service.MaterialServiceConfig{
		MaxFileSizeBytes: cfg.Materials.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Materials.AllowedMIMEs,
	})

	exportSigner := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(appointmentRepo, personRepo, exportStore, exportSigner, logr, service.ExportServiceConfig{
		CleanupTTL: cfg.Exports.SignedURLTTL,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	go func() {
		ticker := time.NewTicker(cfg.Exports.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				exportSvc.Cleanup()
			}
		}
	}()

	availabilityHandler := handler.NewAvailabilityHandler(availabilitySvc)
	bookingHandler := handler.NewBookingHandler(bookingSvc)
	directoryHandler := handler.NewDirectoryHandler(directorySvc)
	studyGroupHandler := handler.NewStudyGroupHandler(studyGroupSvc)
	messageHandler := handler.NewMessageHandler(messageSvc)
	materialHandler := handler.NewMaterialHandler(materialSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	exportHandler := handler.NewExportHandler(exportSvc, exportStore)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// Signed-token downloads authenticate via the token itself.
	api.GET("/materials/download/:token", materialHandler.Download)
	api.GET("/exports/download/:token", exportHandler.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(cfg.JWT.Secret))
	{
		authed.GET("/directory", directoryHandler.Search)
		authed.PUT("/directory/me", directoryHandler.UpdateProfile)
		authed.GET("/directory/:id", directoryHandler.GetProfile)

		authed.GET("/people/me", availabilityHandler.Me)
		authed.GET("/people/:id", availabilityHandler.GetPerson)
		authed.GET("/people/:id/windows", availabilityHandler.ListWindows)
		authed.PUT("/people/:id/windows", availabilityHandler.ReplaceWindows)
		authed.POST("/people/:id/windows/import", availabilityHandler.ImportWindows)
		authed.PUT("/people/:id/policy", availabilityHandler.UpdatePolicy)
		authed.GET("/people/:id/slots", availabilityHandler.Slots)

		authed.POST("/appointments", bookingHandler.Create)
		authed.GET("/appointments", bookingHandler.List)
		authed.GET("/appointments/:id", bookingHandler.Get)
		authed.POST("/appointments/:id/confirm", bookingHandler.Confirm)
		authed.POST("/appointments/:id/decline", bookingHandler.Decline)
		authed.POST("/appointments/:id/cancel", bookingHandler.Cancel)
		authed.POST("/appointments/:id/complete", bookingHandler.Complete)
		authed.POST("/appointments/:id/reschedule", bookingHandler.Reschedule)
		authed.DELETE("/appointments/:id", bookingHandler.Archive)

		authed.GET("/groups", studyGroupHandler.List)
		authed.POST("/groups", studyGroupHandler.Create)
		authed.GET("/groups/:id", studyGroupHandler.Get)
		authed.PUT("/groups/:id", studyGroupHandler.Update)
		authed.DELETE("/groups/:id", studyGroupHandler.Delete)
		authed.POST("/groups/:id/join", studyGroupHandler.Join)
		authed.POST("/groups/:id/leave", studyGroupHandler.Leave)
		authed.GET("/groups/:id/members", studyGroupHandler.Members)

		authed.GET("/conversations", messageHandler.Conversations)
		authed.POST("/conversations", messageHandler.Start)
		authed.GET("/conversations/:id/messages", messageHandler.Messages)
		authed.POST("/conversations/:id/messages", messageHandler.Send)

		authed.GET("/materials", materialHandler.List)
		authed.POST("/materials", materialHandler.Upload)
		authed.GET("/materials/:id", materialHandler.Get)
		authed.PUT("/materials/:id", materialHandler.Update)
		authed.DELETE("/materials/:id", materialHandler.Delete)
		authed.GET("/materials/:id/link", materialHandler.Link)

		authed.GET("/notifications", notificationHandler.List)
		authed.POST("/notifications/:id/read", notificationHandler.MarkRead)
		authed.POST("/notifications/read-all", notificationHandler.MarkAllRead)

		authed.GET("/exports/agenda", exportHandler.Agenda)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
