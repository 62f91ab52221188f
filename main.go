package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"nva-backoffice/internal/config"
	"nva-backoffice/internal/database"
	"nva-backoffice/internal/handlers"
	"nva-backoffice/internal/logging"
	"nva-backoffice/internal/middleware"
	"nva-backoffice/internal/redis"
	"nva-backoffice/internal/repository"
	"nva-backoffice/internal/repository/postgres"
	"nva-backoffice/internal/services"
	"nva-backoffice/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type app struct {
	tokens        *utils.TokenManager
	auth          *handlers.AuthHandler
	agents        *handlers.AgentHandler
	events        *handlers.EventHandler
	agenda        *handlers.AgendaHandler
	presences     *handlers.PresenceHandler
	payments      *handlers.PaymentHandler
	notifications *handlers.NotificationHandler
	messages      *handlers.MessageHandler
	evaluation    *handlers.PerformanceHandler
	dashboard     *handlers.DashboardHandler
}

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	logger := logging.New(cfg.Env, cfg.LogLevel)
	if envErr != nil {
		logger.Info("No .env file found")
	}
	gin.SetMode(cfg.GinMode)

	loc, err := cfg.Location()
	if err != nil {
		logger.WithError(err).Fatal("Invalid time zone")
	}
	clock := services.NewClock(loc)
	ctx := context.Background()

	db, err := database.Initialize(cfg.DatabaseURL, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	store := postgres.NewStore(db)

	redisClient, err := redis.Initialize(ctx, cfg.RedisURL)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redisClient.Close()
	limiter := redis.NewLoginLimiter(redisClient, cfg.LoginMaxAttempts, cfg.LoginLockDuration)

	var storage services.ObjectStorage
	if s, err := services.NewStorageService(cfg); err != nil {
		logger.WithError(err).Warn("Object storage unavailable, uploads are disabled")
	} else {
		if err := s.EnsureBucket(ctx); err != nil {
			logger.WithError(err).Warn("Failed to ensure storage bucket")
		}
		storage = s
	}

	var analyzer services.Analyzer = services.LocalAnalyzer{}
	if cfg.GeminiAPIKey != "" {
		gemini, err := services.NewGeminiAnalyzer(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.WithError(err).Warn("Gemini unavailable, using the local analyzer")
		} else {
			defer gemini.Close()
			analyzer = gemini
		}
	}

	var pusher services.Pusher = services.NoopPusher{}
	if cfg.FirebaseProjectID != "" {
		fcm, err := services.NewFirebasePusher(ctx, cfg.FirebaseProjectID, cfg.FirebasePrivateKeyPath)
		if err != nil {
			logger.WithError(err).Warn("Firebase unavailable, push notifications are disabled")
		} else {
			pusher = fcm
		}
	}

	tokens := utils.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiry, cfg.RefreshExpiry)
	a, err := newApp(ctx, deps{
		cfg:      cfg,
		store:    store,
		tokens:   tokens,
		sessions: redisClient,
		limiter:  limiter,
		storage:  storage,
		analyzer: analyzer,
		pusher:   pusher,
		clock:    clock,
		log:      logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize services")
	}

	router := setupRoutes(a, cfg, logger)

	logger.WithField("port", cfg.Port).Info("Server starting")
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.WithError(err).Fatal("Failed to start server")
	}
}

type deps struct {
	cfg      *config.Config
	store    *repository.Store
	tokens   *utils.TokenManager
	sessions services.SessionStore
	limiter  services.LoginLimiter
	storage  services.ObjectStorage
	analyzer services.Analyzer
	pusher   services.Pusher
	clock    services.Clock
	log      *logrus.Logger
}

// newApp wires services and handlers and makes sure the configured admin
// account exists.
func newApp(ctx context.Context, d deps) (*app, error) {
	cfg, store, log := d.cfg, d.store, d.log

	agentService := services.NewAgentService(store, d.storage, cfg.MaxFileSize, cfg.AllowedImageTypes, log)
	if err := agentService.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return nil, fmt.Errorf("ensure admin: %w", err)
	}
	authService := services.NewAuthService(store, d.tokens, d.sessions, d.limiter, d.clock, log)
	eventService := services.NewEventService(store, d.clock, log)
	perfService := services.NewPerformanceService(store, d.clock, log)

	return &app{
		tokens:        d.tokens,
		auth:          handlers.NewAuthHandler(authService, agentService),
		agents:        handlers.NewAgentHandler(agentService),
		events:        handlers.NewEventHandler(eventService),
		agenda:        handlers.NewAgendaHandler(services.NewAgendaService(store, d.clock)),
		presences:     handlers.NewPresenceHandler(services.NewPresenceService(store, d.storage, cfg.MaxFileSize, d.clock, log)),
		payments:      handlers.NewPaymentHandler(services.NewPaymentService(store, log)),
		notifications: handlers.NewNotificationHandler(services.NewNotificationService(store, d.pusher, d.clock, log)),
		messages:      handlers.NewMessageHandler(services.NewMessagingService(store)),
		evaluation: handlers.NewPerformanceHandler(
			perfService,
			services.NewAnalysisService(store, perfService, d.analyzer, cfg.AITimeout, log),
			services.NewExportService(perfService, d.clock),
		),
		dashboard: handlers.NewDashboardHandler(services.NewDashboardService(store, eventService, d.clock)),
	}, nil
}

func setupRoutes(a *app, cfg *config.Config, logger *logrus.Logger) *gin.Engine {
	handlers.RegisterValidators()

	router := gin.New()
	router.Use(middleware.RequestLogger(logger), gin.Recovery())
	router.Use(middleware.CORS(cfg.CORSOrigins))
	router.MaxMultipartMemory = cfg.MaxFileSize

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	authed := middleware.AuthRequired(a.tokens)
	adminOnly := middleware.AdminRequired()

	auth := v1.Group("/auth")
	{
		auth.POST("/register", a.auth.Register)
		auth.POST("/login", a.auth.Login)
		auth.POST("/refresh", a.auth.RefreshToken)
		auth.POST("/logout", authed, a.auth.Logout)
	}

	api := v1.Group("")
	api.Use(authed)

	agents := api.Group("/agents")
	{
		agents.GET("", a.agents.List)
		agents.POST("", adminOnly, a.agents.Create)
		agents.GET("/:id", a.agents.Get)
		agents.PATCH("/:id", a.agents.Update)
		agents.DELETE("/:id", a.agents.Delete)
		agents.POST("/:id/regenerate-password", adminOnly, a.agents.RegeneratePassword)
	}

	profile := api.Group("/profile")
	{
		profile.GET("", a.agents.GetProfile)
		profile.PATCH("", a.agents.UpdateProfile)
		profile.POST("/photos", a.agents.UploadPhoto)
		profile.DELETE("/photos/:id", a.agents.DeletePhoto)
	}

	events := api.Group("/events")
	{
		events.GET("", a.events.List)
		events.POST("", adminOnly, a.events.Create)
		events.GET("/mine", a.events.Mine)
		events.GET("/available-agents", a.events.AvailableAgents)
		events.GET("/:id", a.events.Get)
		events.PUT("/:id", adminOnly, a.events.Update)
		events.PATCH("/:id", adminOnly, a.events.Update)
		events.DELETE("/:id", adminOnly, a.events.Delete)
	}

	performances := api.Group("/event-performances")
	{
		performances.GET("", a.events.Performances)
		performances.POST("", adminOnly, a.events.CreatePerformance)
		performances.GET("/:id", a.events.Performance)
		performances.PUT("/:id", adminOnly, a.events.UpdatePerformance)
		performances.PATCH("/:id", adminOnly, a.events.UpdatePerformance)
		performances.DELETE("/:id", adminOnly, a.events.DeletePerformance)
	}

	agenda := api.Group("/agenda")
	{
		agenda.GET("/availability", a.agenda.Availabilities)
		agenda.POST("/availability", a.agenda.SaveAvailability)
		agenda.GET("/availability/:id", a.agenda.Availability)
		agenda.PUT("/availability/:id", a.agenda.UpdateAvailability)
		agenda.DELETE("/availability/:id", a.agenda.DeleteAvailability)
		agenda.GET("/preferences", a.agenda.Preference)
		agenda.PUT("/preferences", a.agenda.SavePreference)
		agenda.GET("/:year/:month", a.agenda.Month)
	}

	presences := api.Group("/presences")
	{
		presences.GET("", a.presences.List)
		presences.POST("", a.presences.Create)
		presences.GET("/mine", a.presences.Mine)
		presences.GET("/dashboard", adminOnly, a.presences.Dashboard)
		presences.GET("/:id", a.presences.Get)
		presences.POST("/:id/photos", a.presences.AddPhoto)
		presences.PATCH("/:id/status", adminOnly, a.presences.UpdateStatus)
	}

	payments := api.Group("/payments")
	{
		payments.GET("", adminOnly, a.payments.List)
		payments.POST("", adminOnly, a.payments.Create)
		payments.GET("/mine", a.payments.Mine)
		payments.GET("/agent/:id", a.payments.ForAgent)
		payments.GET("/agent/:id/total", a.payments.Total)
		payments.GET("/:id", a.payments.Get)
	}

	notifications := api.Group("/notifications")
	{
		notifications.GET("", a.notifications.List)
		notifications.POST("", adminOnly, a.notifications.Send)
		notifications.GET("/unread-count", a.notifications.UnreadCount)
		notifications.GET("/:id", a.notifications.Get)
		notifications.DELETE("/:id", a.notifications.Delete)
		notifications.POST("/:id/read", a.notifications.MarkRead)
	}

	messages := api.Group("/messages")
	{
		messages.GET("/conversations", a.messages.Conversations)
		messages.POST("/conversations", a.messages.CreateConversation)
		messages.GET("/conversations/search", a.messages.Search)
		messages.GET("/conversations/:id", a.messages.Conversation)
		messages.GET("/conversations/:id/messages", a.messages.Messages)
		messages.POST("/conversations/:id/messages", a.messages.Send)
		messages.GET("/unread-count", a.messages.UnreadCount)
		messages.GET("/users", a.agents.Directory)
		messages.GET("/:id", a.messages.Message)
		messages.DELETE("/:id", a.messages.Delete)
	}

	evaluation := api.Group("/evaluation")
	{
		evaluation.GET("/agent-performances", a.evaluation.AgentPerformances)
		evaluation.GET("/rankings", a.evaluation.Rankings)
		evaluation.GET("/presence-stats", a.evaluation.PresenceStats)
		evaluation.GET("/ai-analysis", adminOnly, a.evaluation.Analysis)
		evaluation.POST("/ai-analysis", adminOnly, a.evaluation.Analysis)
		evaluation.POST("/calculate-rankings", adminOnly, a.evaluation.CalculateRankings)
		evaluation.GET("/export-csv", adminOnly, a.evaluation.ExportCSV)
		evaluation.GET("/export-xlsx", adminOnly, a.evaluation.ExportXLSX)
	}

	dashboard := api.Group("/dashboard")
	dashboard.Use(adminOnly)
	{
		dashboard.GET("/stats", a.dashboard.Stats)
		dashboard.GET("/recent-events", a.dashboard.RecentEvents)
		dashboard.GET("/recent-payments", a.dashboard.RecentPayments)
		dashboard.GET("/payment-chart", a.dashboard.PaymentChart)
	}

	return router
}
