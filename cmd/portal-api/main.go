package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ai-opportunities/report-portal/report-portal-backend/internal/auth"
	"ai-opportunities/report-portal/report-portal-backend/internal/bootstrap"
	"ai-opportunities/report-portal/report-portal-backend/internal/config"
	"ai-opportunities/report-portal/report-portal-backend/internal/delivery"
	"ai-opportunities/report-portal/report-portal-backend/internal/imagegen"
	"ai-opportunities/report-portal/report-portal-backend/internal/llm"
	"ai-opportunities/report-portal/report-portal-backend/internal/ratelimit"
	"ai-opportunities/report-portal/report-portal-backend/internal/reports"
	"ai-opportunities/report-portal/report-portal-backend/internal/reports/jobs"
	"ai-opportunities/report-portal/report-portal-backend/internal/survey"
	"ai-opportunities/report-portal/report-portal-backend/pkg/security"
	"ai-opportunities/report-portal/report-portal-backend/pkg/storage"
)

func main() {
	configPath := flag.String("config", envOr("CONFIG_PATH", "config.json"), "path to the JSON config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		boot, _ := zap.NewProduction()
		boot.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize logger
	logger, err := bootstrap.NewLogger(cfg.Logging.Level)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx := context.Background()

	// Connect to database
	logger.Info("Connecting to database",
		zap.String("host", cfg.Database.Host),
		zap.String("db", cfg.Database.DBName))
	db, err := sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	// Rate-limit counters are shared through Redis when configured
	var counter ratelimit.Counter = ratelimit.NewMemoryCounter()
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("Failed to connect to redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		defer redisClient.Close()
		counter = ratelimit.NewRedisCounter(redisClient, cfg.Redis.Prefix)
		logger.Info("Using redis rate-limit counters", zap.String("addr", cfg.Redis.Addr))
	}

	// Initialize rendering
	assembler, err := bootstrap.NewAssembler(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize renderer", zap.Error(err))
	}

	// Initialize jobs
	jobStore := jobs.NewStore(cfg.Jobs.TTL, logger)
	if err := jobStore.Start(cfg.Jobs.ReapSchedule); err != nil {
		logger.Fatal("Failed to start job reaper", zap.Error(err))
	}
	worker := jobs.NewWorker(jobStore, cfg.Jobs.Worker, logger)

	// Initialize Reporting Module
	llmClient := llm.NewClient(cfg.LLM, logger)
	deps := reports.Dependencies{
		Assembler:  assembler,
		Repository: reports.NewPostgresRepository(db),
		Reports:    llmClient,
		Jobs:       worker,
		JobStore:   jobStore,
	}
	if cfg.ImageGen.Enabled {
		deps.Images = imagegen.NewClient(cfg.ImageGen.Config, logger)
	}
	if archiver := newArchiver(ctx, cfg, logger); archiver != nil {
		deps.Archiver = archiver
	}
	if cfg.Email.Enabled {
		awsCfg, err := storage.LoadAWSConfig(ctx, storage.S3Config{Region: cfg.Email.Region})
		if err != nil {
			logger.Fatal("Failed to configure email", zap.Error(err))
		}
		deps.Mailer = delivery.NewMailer(sesv2.NewFromConfig(awsCfg), cfg.Email.EmailConfig, logger)
	}
	if cfg.CRM.WebhookURL != "" {
		deps.CRM = delivery.NewCRMClient(cfg.CRM, logger)
	}

	reportsService := reports.NewService(deps, logger)
	reportsHandler := reports.NewHandler(reportsService, logger, cfg.Server.MaxBodyBytes)
	surveyHandler := survey.NewHandler(llmClient, logger)

	// Setup Router
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger), cors(cfg.Server.CORSOrigins))

	limit := func(name string, rule config.RateLimitRule) gin.HandlerFunc {
		return ratelimit.Limit(counter, ratelimit.Rule{Name: name, Limit: rule.Limit, Window: rule.Window}, logger)
	}

	// Admin access is only available with an API key to exchange for tokens
	admin := func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	}

	// Register Routes
	api := router.Group("/api/v1")
	{
		if cfg.Security.AdminAPIKey != "" {
			tokens, err := security.NewTokenManager(cfg.Security.JWTSecret, cfg.Security.JWTIssuer, cfg.Security.TokenTTL)
			if err != nil {
				logger.Fatal("Failed to initialize tokens", zap.Error(err))
			}
			auth.RegisterRoutes(api, auth.NewHandler(tokens, cfg.Security.AdminAPIKey, logger), limit("token", cfg.RateLimit.Token))
			admin = auth.RequireAdmin(tokens, logger)
		}

		reportsHandler.RegisterRoutes(api, reports.Routes{
			Render:   []gin.HandlerFunc{limit("render", cfg.RateLimit.Render)},
			Generate: []gin.HandlerFunc{limit("generate", cfg.RateLimit.Generate)},
			Admin:    []gin.HandlerFunc{admin},
		})
		surveyHandler.RegisterRoutes(api, limit("survey", cfg.RateLimit.Survey))
	}

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		checkCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		checks := gin.H{"database": "ok"}
		status := http.StatusOK
		if err := db.PingContext(checkCtx); err != nil {
			checks["database"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if redisClient != nil {
			checks["redis"] = "ok"
			if err := redisClient.Ping(checkCtx).Err(); err != nil {
				checks["redis"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}

		state := "healthy"
		if status != http.StatusOK {
			state = "degraded"
		}
		c.JSON(status, gin.H{
			"status":    state,
			"timestamp": time.Now(),
			"checks":    checks,
			"jobs":      jobStore.Len(),
		})
	})

	// Start Server
	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", srv.Addr))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := worker.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Report jobs cancelled during shutdown", zap.Error(err))
	}
	jobStore.Stop()

	logger.Info("Server exiting")
}

func newArchiver(ctx context.Context, cfg *config.Config, logger *zap.Logger) *storage.Archiver {
	switch cfg.Storage.Driver {
	case "s3":
		awsCfg, err := storage.LoadAWSConfig(ctx, cfg.Storage.S3)
		if err != nil {
			logger.Fatal("Failed to configure storage", zap.Error(err))
		}
		logger.Info("Archiving reports to S3", zap.String("bucket", cfg.Storage.Bucket))
		return storage.NewArchiver(storage.NewS3Client(awsCfg, cfg.Storage.S3), cfg.Storage.Bucket, cfg.Storage.Prefix, cfg.Storage.URLTTL)
	case "memory":
		logger.Warn("Archiving reports in memory; download links do not survive restarts")
		return storage.NewArchiver(storage.NewMemoryS3Client(), "local", cfg.Storage.Prefix, cfg.Storage.URLTTL)
	}
	return nil
}

// cors allows the configured origins; "*" allows any
func cors(origins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case allowed["*"]:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && allowed[origin]:
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, Retry-After, X-RateLimit-Limit, X-RateLimit-Remaining")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("Request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Int("bytes", c.Writer.Size()),
			zap.String("client_ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)))
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
