package api

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/ElementalEngine/core-api-backend/internal/api/handlers"
	"github.com/ElementalEngine/core-api-backend/internal/api/middleware"
	"github.com/ElementalEngine/core-api-backend/internal/config"
	"github.com/ElementalEngine/core-api-backend/internal/rating"
	"github.com/ElementalEngine/core-api-backend/internal/repository"
	"github.com/ElementalEngine/core-api-backend/internal/service"
	"github.com/ElementalEngine/core-api-backend/pkg/cache"
	"github.com/ElementalEngine/core-api-backend/pkg/database"
	"github.com/ElementalEngine/core-api-backend/pkg/parser"
	"github.com/ElementalEngine/core-api-backend/pkg/ratelimit"
	"github.com/ElementalEngine/core-api-backend/pkg/storage"
)

// SetupRouter wires repositories, services and handlers into the HTTP
// API. redisClient may be nil; caching and distributed rate limiting
// then degrade to their local fallbacks.
func SetupRouter(cfg *config.Config, db *database.DB, redisClient *redis.Client) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())

	pendingRepo := repository.NewPendingMatchRepository(db)
	validatedRepo := repository.NewValidatedMatchRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	userRepo := repository.NewUserRepository(db)
	approvalRepo := repository.NewApprovalRepository(db, statsRepo, validatedRepo, pendingRepo)

	parserClient := parser.NewClient(cfg.ParserURL)
	archive := storage.NewArchive(cfg.SaveArchivePath)

	var leaderboardCache service.LeaderboardCache
	var reportLimiter *ratelimit.RedisLimiter
	if redisClient != nil {
		leaderboardCache = cache.NewLeaderboardCache(redisClient, cfg.LeaderboardCacheTTL)
		reportLimiter = ratelimit.NewRedisLimiter(redisClient, "report:")
	}

	env := rating.NewEnv(cfg.SkillMu, cfg.SkillSigma, cfg.SkillBeta, cfg.SkillTau, cfg.SkillDrawProb)
	matchService := service.NewMatchService(
		pendingRepo, validatedRepo, statsRepo, userRepo,
		approvalRepo, parserClient, archive, leaderboardCache, env,
		service.Options{
			MinSubPoints:        cfg.MinSubPoints,
			LeaderboardMinGames: cfg.LeaderboardMinGames,
		},
	)

	authHandler := handlers.NewAuthHandler(cfg)
	matchHandler := handlers.NewMatchHandler(matchService)
	leaderboardHandler := handlers.NewLeaderboardHandler(matchService)

	reportLimit := middleware.ReportRateLimit(middleware.ReportRateLimitConfig{
		Limiter: reportLimiter,
		Limit:   cfg.ReportRateLimit,
		Window:  cfg.ReportRateWindow,
	})

	router.GET("/health", handlers.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/token", authHandler.Token)
		}

		matches := v1.Group("/matches")
		matches.Use(middleware.Auth(cfg))
		{
			matches.POST("", reportLimit, matchHandler.CreateMatch)
			matches.POST("/upload", reportLimit, matchHandler.UploadSave)
			matches.GET("/:id", matchHandler.GetMatch)
			matches.PATCH("/:id", matchHandler.UpdateMatch)
			matches.DELETE("/:id", matchHandler.DeleteMatch)

			matches.POST("/:id/messages", matchHandler.AppendMessages)
			matches.POST("/:id/order", matchHandler.ChangeOrder)
			matches.POST("/:id/quit", matchHandler.ToggleQuit)
			matches.POST("/:id/identity", matchHandler.AssignIdentity)
			matches.POST("/:id/sub", matchHandler.AssignSub)
			matches.DELETE("/:id/sub/:slot", matchHandler.RemoveSub)

			matches.POST("/:id/approve", matchHandler.Approve)
		}

		v1.GET("/leaderboard", leaderboardHandler.GetLeaderboard)
	}

	return router
}
