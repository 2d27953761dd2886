package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rescuelink/internal/config"
	"rescuelink/internal/delivery"
	"rescuelink/internal/handlers/shared"
	"rescuelink/internal/ingest"
	"rescuelink/internal/middleware"
	"rescuelink/internal/repositories/mongodb"
	"rescuelink/internal/services"
	"rescuelink/internal/utils"
	"rescuelink/pkg/cache"
	"rescuelink/pkg/database"
	"rescuelink/pkg/logger"
	"rescuelink/pkg/maps"
	"rescuelink/pkg/push"
	"rescuelink/pkg/sms"
	"rescuelink/pkg/storage"
	"rescuelink/pkg/websocket"
	"rescuelink/routes"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&logger.Config{
		Level:  cfg.App.LogLevel,
		Format: cfg.App.LogFormat,
		Output: "stdout",
		Colors: !config.IsProduction(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	log.Infof("Starting %s %s (%s)", cfg.App.Name, cfg.App.Version, cfg.App.Environment)

	// Durable stores first: without them the offline capture guarantee is
	// void and there is no point serving traffic.
	db, err := database.NewMongoDB(&database.DatabaseConfig{
		URI:            cfg.Database.URI,
		Database:       cfg.Database.Database,
		MaxPoolSize:    cfg.Database.MaxPoolSize,
		MinPoolSize:    cfg.Database.MinPoolSize,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		SocketTimeout:  cfg.Database.SocketTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer db.Close()

	indexCtx, cancelIndex := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.EnsureIndexes(indexCtx); err != nil {
		cancelIndex()
		log.Fatalf("Failed to ensure indexes: %v", err)
	}
	cancelIndex()

	redisCache, err := cache.NewRedisCache(&cache.RedisConfig{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisCache.Close()

	eventRepo := mongodb.NewEventRepository(db.Database, redisCache)
	ledgerRepo := mongodb.NewLedgerRepository(db.Database, redisCache)

	ingestClient := ingest.NewClient(cfg.Ingest.BaseURL, cfg.Ingest.APIKey, cfg.Ingest.RequestTimeout)

	smsProvider, err := buildSMSProvider(cfg.SMS)
	if err != nil {
		log.Fatalf("Failed to init SMS provider: %v", err)
	}
	pushProviders := buildPushProviders(cfg.Push, log)
	storageProvider, err := buildStorageProvider(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to init storage provider: %v", err)
	}
	geocoder := buildGeocoder(cfg.Maps, log)

	hub := websocket.NewHub()
	go hub.Run()

	notifier := services.NewNotificationService(hub, pushProviders, log)
	fallback := services.NewFallbackService(smsProvider, cfg.SMS, log)
	sosService := services.NewSOSService(eventRepo, ledgerRepo, storageProvider, notifier, log)
	projector := services.NewProjectorService(eventRepo, ledgerRepo, geocoder, log)

	worker := delivery.NewWorker(eventRepo, ledgerRepo, ingestClient, fallback, notifier, cfg.Worker, log)
	poller := delivery.NewPoller(ingestClient, sosService, cfg.Ingest.AckPollInterval, log)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	go worker.Start(workerCtx)
	go poller.Start(workerCtx)

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.CORS(), middleware.RequestID(), middleware.RequestLogger(log))

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			utils.ErrorResponse(c, http.StatusServiceUnavailable, "UNHEALTHY", "event store unreachable")
			return
		}
		utils.SuccessResponse(c, "healthy", gin.H{"version": cfg.App.Version})
	})

	sosHandler := shared.NewSOSHandler(sosService, log)
	dashboardHandler := shared.NewDashboardHandler(projector, sosService, websocket.NewHandler(hub), log)

	api := router.Group("/api/v1")
	routes.SetupSOSRoutes(api, sosHandler, cfg.Security.JWTSecret)
	routes.SetupDashboardRoutes(api, dashboardHandler, cfg.Security.JWTSecret)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: router,
	}

	go func() {
		log.Infof("HTTP server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	stopWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Forced shutdown: %v", err)
	}
	log.Info("Shutdown complete")
}

func buildSMSProvider(cfg *config.SMSConfig) (sms.SMSProvider, error) {
	switch cfg.Provider {
	case "aws":
		return sms.NewAWSSNSProvider(cfg.AWS.Region)
	default:
		return sms.NewTwilioProvider(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber), nil
	}
}

// buildPushProviders maps device platforms to providers. Push is optional;
// missing credentials just mean no status notifications.
func buildPushProviders(cfg *config.PushConfig, log *logger.Logger) map[string]push.PushProvider {
	providers := make(map[string]push.PushProvider)
	if !cfg.Enabled {
		return providers
	}

	if cfg.FCMCredentials != "" {
		fcm, err := push.NewFCMProvider(cfg.FCMCredentials)
		if err != nil {
			log.Warnf("FCM disabled: %v", err)
		} else {
			providers["android"] = fcm
		}
	}
	if cfg.APNS.Enabled {
		apns, err := push.NewAPNSProvider(cfg.APNS.KeyFile, cfg.APNS.KeyID, cfg.APNS.TeamID, cfg.APNS.Topic, cfg.APNS.Production)
		if err != nil {
			log.Warnf("APNs disabled: %v", err)
		} else {
			providers["ios"] = apns
		}
	}
	return providers
}

func buildStorageProvider(cfg *config.StorageConfig) (storage.StorageProvider, error) {
	switch cfg.Provider {
	case "s3":
		return storage.NewS3Storage(cfg.S3Region, cfg.S3Bucket)
	case "gcs":
		return storage.NewGCPStorage(cfg.GCSCredentials, cfg.GCSBucket)
	default:
		return storage.NewLocalStorage(cfg.LocalPath, cfg.LocalBaseURL)
	}
}

func buildGeocoder(cfg *config.MapsConfig, log *logger.Logger) maps.Geocoder {
	if !cfg.Enabled || cfg.GoogleAPIKey == "" {
		return nil
	}
	geocoder, err := maps.NewGoogleGeocoder(cfg.GoogleAPIKey)
	if err != nil {
		log.Warnf("Geocoding disabled: %v", err)
		return nil
	}
	return geocoder
}
