package main

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/quizbattle/quizbattle-api/internal/config"
	"github.com/quizbattle/quizbattle-api/internal/handler"
	"github.com/quizbattle/quizbattle-api/internal/middleware"
	pgRepo "github.com/quizbattle/quizbattle-api/internal/repository/postgres"
	redisRepo "github.com/quizbattle/quizbattle-api/internal/repository/redis"
	"github.com/quizbattle/quizbattle-api/internal/service"
	"github.com/quizbattle/quizbattle-api/internal/service/gamemanager"
	"github.com/quizbattle/quizbattle-api/internal/service/oracle"
	ws "github.com/quizbattle/quizbattle-api/internal/websocket"
	"github.com/quizbattle/quizbattle-api/pkg/auth"
	"github.com/quizbattle/quizbattle-api/pkg/database"
)

func main() {
	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("[Main] Loading configuration from %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("[Main] Failed to load config: %v", err)
		os.Exit(1)
	}

	// Подключение к PostgreSQL и миграции
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("[Main] Failed to connect to database: %v", err)
		os.Exit(1)
	}
	if err := database.MigrateDB(db); err != nil {
		log.Printf("[Main] Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Подключение к Redis
	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("[Main] Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("[Main] Successfully connected to Redis")

	// Репозитории
	userRepo := pgRepo.NewUserRepo(db)
	gameRepo := pgRepo.NewGameRepo(db)
	playerRepo := pgRepo.NewPlayerRepo(db)
	questionRepo := pgRepo.NewQuestionRepo(db)
	statsRepo := pgRepo.NewStatsRepo(db)

	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("[Main] Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}

	// Токены
	jwtService, err := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL, cfg.Auth.PlayerTokenTTL)
	if err != nil {
		log.Printf("[Main] Failed to initialize JWT service: %v", err)
		os.Exit(1)
	}

	// Контекст жизни фоновых горутин (таймеры комнат, уборка реестра)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Игровой движок: хаб, генератор вопросов, реестр комнат
	hub := ws.NewHub()
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	oracleService := oracle.NewService(cfg.Oracle, rnd)

	registry := gamemanager.NewRegistry(ctx, &gamemanager.Dependencies{
		GameRepo:     gameRepo,
		PlayerRepo:   playerRepo,
		QuestionRepo: questionRepo,
		Source:       oracleService,
		Broadcaster:  &service.HubBroadcaster{Hub: hub},
		Rand:         rnd,
	}, nil)
	registry.StartCleanup(ctx)

	// Сервисы
	gameService := service.NewGameService(registry, jwtService)
	authService := service.NewAuthService(userRepo, jwtService)
	statsService := service.NewStatsService(userRepo, gameRepo, statsRepo, cacheRepo)

	// Обработчики
	secureCookies := cfg.Auth.SecureCookies || gin.Mode() == gin.ReleaseMode
	authHandler := handler.NewAuthHandler(authService, int(cfg.Auth.SessionTTL.Seconds()), secureCookies)
	gameHandler := handler.NewGameHandler(gameService)
	statsHandler := handler.NewStatsHandler(statsService)
	wsHandler := handler.NewWSHandler(gameService, hub, cfg.CORS.AllowedOrigins)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(jwtService)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	httpLimit := middleware.DefaultRateLimitConfig()
	if cfg.RateLimit.Requests > 0 {
		httpLimit.MaxRequests = cfg.RateLimit.Requests
	}
	if cfg.RateLimit.WindowSec > 0 {
		httpLimit.Window = time.Duration(cfg.RateLimit.WindowSec) * time.Second
	}

	// Роутер
	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORS.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.CORS.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowCredentials = !corsConfig.AllowAllOrigins
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/", rateLimiter.LimitByIP(httpLimit))
	{
		authGroup := api.Group("/auth")
		{
			strict := rateLimiter.Limit(middleware.StrictAuthRateLimitConfig())
			authGroup.POST("/register", strict, authHandler.Register)
			authGroup.POST("/login", strict, authHandler.Login)
			authGroup.POST("/logout", authHandler.Logout)
			authGroup.GET("/me", authMiddleware.RequireAuth(), authHandler.Me)
		}

		api.GET("/users/:id/stats", middleware.ExtractUintParam("id", "statsUserID"), statsHandler.GetUserStats)
		api.GET("/rating/data", statsHandler.GetRatingData)
		api.GET("/rating/export", statsHandler.ExportRating)

		games := api.Group("/games", authMiddleware.OptionalAuth())
		{
			games.POST("", gameHandler.CreateGame)
			pinGroup := games.Group("/:pin", middleware.ExtractPINParam("pin"))
			{
				pinGroup.POST("/join", gameHandler.JoinGame)
				pinGroup.POST("/start", gameHandler.StartGame)
				pinGroup.GET("", gameHandler.GetGame)
			}
		}
	}

	// Сокеты вне HTTP-лимитера: у них свой пер-сокетный лимит сообщений
	router.GET("/ws/:pin/:player_id", middleware.ExtractPINParam("pin"), wsHandler.Connect)

	// HTTP-сервер с тайм-аутами против slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("[Main] Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[Main] Failed to start server: %v", err)
		}
	}()

	// Ожидаем сигнал остановки
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("[Main] Shutting down server...")

	// Останавливаем фоновые горутины, комнаты и сокеты
	cancel()
	registry.Shutdown()
	hub.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Main] Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("[Main] Server exited properly")
}
