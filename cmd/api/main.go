// main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/Marga-Ghale/meetup-bot-backend/internal/api/handlers"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/api/middleware"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/config"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/connector"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/cron"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/db"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/email"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/notification"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/repository"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/seed"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/service"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/socket"
)

func main() {
	// ============================================
	// Load environment variables
	// ============================================
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// ============================================
	// Load configuration
	// ============================================
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// ============================================
	// Initialize Repositories (PostgreSQL or in-memory)
	// ============================================
	var repos *repository.Repositories
	var pg *db.PostgresDB
	if cfg.DatabaseURL != "" {
		log.Println("🔄 Running database migrations...")
		if err := db.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			log.Fatalf("❌ Migration failed: %v", err)
		}
		log.Println("✅ Database migrations completed")

		var err error
		pg, err = db.NewPostgresDB(cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			log.Fatalf("❌ Failed to connect to PostgreSQL: %v", err)
		}
		defer pg.Close()

		repos = repository.NewPgRepositories(pg.Pool)
	} else {
		log.Println("⚠️  DATABASE_URL not set, using in-memory storage")
		repos = repository.NewRepositories()
	}
	log.Println("📦 Repositories initialized")

	// ============================================
	// Initialize Redis (optional)
	// ============================================
	var redisDB *db.RedisDB
	if cfg.RedisURL != "" {
		var err error
		redisDB, err = db.NewRedisDB(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️ Failed to connect to Redis: %v (continuing without cache)", err)
			redisDB = nil
		} else {
			defer redisDB.Close()
			log.Println("⚡ Redis cache enabled")
		}
	}

	// ============================================
	// Initialize Transport
	// ============================================
	var client connector.Client
	switch cfg.Transport {
	case config.TransportMemory:
		memory := connector.NewMemoryClient()
		if cfg.Environment != "production" {
			log.Println("🌱 Seeding development data...")
			seed.SeedData(repos, memory, cfg.BotID())
		}
		client = memory
		log.Println("🧪 Using in-memory transport")
	default:
		httpClient := connector.NewHTTPClient(&connector.AppCredentials{
			AppID:       cfg.MicrosoftAppID,
			AppPassword: cfg.MicrosoftAppPassword,
			TokenURL:    cfg.BotTokenURL,
			HTTPClient:  &http.Client{Timeout: 15 * time.Second},
		})
		client = httpClient
		if redisDB != nil {
			client = connector.NewCachedClient(httpClient, redisDB)
		}
		log.Println("🤖 Using Bot Framework transport")
	}

	// ============================================
	// Initialize Email Queue (optional)
	// ============================================
	var emailQueue *email.EmailQueue
	if cfg.SMTPHost != "" {
		emailSvc := email.NewService(&email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
			UseTLS:   cfg.SMTPUseTLS,
		})
		emailQueue = email.NewEmailQueue(emailSvc, 2)
		defer emailQueue.Stop()
		log.Println("📧 Email service initialized")
	} else {
		log.Println("⚠️  Email not configured (SMTP_HOST not set)")
	}

	// ============================================
	// Initialize WebSocket Hub
	// ============================================
	appCtx, stopApp := context.WithCancel(context.Background())
	defer stopApp()

	hub := socket.NewHub()
	go hub.Run(appCtx)
	broadcaster := socket.NewBroadcaster(hub)
	wsHandler := socket.NewHandler(hub, func(key string) bool {
		return middleware.VerifyAdminKey(cfg.AdminAPIKeyHash, key)
	})
	log.Println("🔌 WebSocket hub initialized")

	// ============================================
	// Initialize Services
	// ============================================
	notificationSvc := notification.NewService(notification.Config{
		Testing: cfg.Testing,
		BotID:   cfg.BotID(),
		BotName: cfg.BotName,
	}, client, nil)

	services := service.NewServices(&service.ServiceDeps{
		Config:      cfg,
		Repos:       repos,
		Client:      client,
		NotifSvc:    notificationSvc,
		EmailQueue:  emailQueue,
		Broadcaster: broadcaster,
	})
	log.Println("✨ All services initialized")

	// ============================================
	// Initialize Cron Scheduler
	// ============================================
	var locker cron.Locker
	if redisDB != nil {
		locker = redisDB
	}
	scheduler := cron.NewScheduler(cron.Config{
		PairUpSchedule:   cfg.PairUpSchedule,
		MoodPollSchedule: cfg.MoodPollSchedule,
	}, services.PairUp, locker)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("❌ Failed to start scheduler: %v", err)
	}
	defer scheduler.Stop()

	// ============================================
	// Create Gin Router
	// ============================================
	r := handlers.NewRouter(handlers.NewHandlers(services), handlers.RouterConfig{
		BotAuth: middleware.BotAuthConfig{
			AppID:    cfg.MicrosoftAppID,
			Disabled: cfg.BotAuthDisabled || cfg.Transport == config.TransportMemory,
			Keys:     middleware.NewOpenIDKeys(appCtx, cfg.BotOpenIDMetadataURL),
		},
		AdminAPIKeyHash: cfg.AdminAPIKeyHash,
		WebSocket:       wsHandler,
		Health: func() gin.H {
			return gin.H{
				"database":   getDatabaseStatus(pg),
				"cache":      getCacheStatus(redisDB),
				"transport":  cfg.Transport,
				"ws_clients": hub.GetConnectedClientsCount(),
				"email":      getEmailStatus(emailQueue),
			}
		},
	})

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // manual runs and the websocket feed outlive a fixed write deadline
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	go func() {
		log.Printf("🚀 Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

func getDatabaseStatus(pg *db.PostgresDB) string {
	if pg == nil {
		return "in-memory"
	}
	if err := pg.Ping(context.Background()); err != nil {
		return "unreachable"
	}
	return "connected"
}

func getCacheStatus(redisDB *db.RedisDB) string {
	if redisDB != nil {
		return "connected"
	}
	return "disabled"
}

func getEmailStatus(q *email.EmailQueue) string {
	if q != nil {
		return "configured"
	}
	return "disabled"
}
