package http

import (
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"civicreport/internal/config"
	"civicreport/internal/store"
)

// Rate budget: 100 requests per 15-minute window per caller IP,
// applied to every /api route.
const (
	rateLimitWindow = 15 * time.Minute
	rateLimitBudget = 100
)

// SetupRoutes configures all application routes and middleware.
func SetupRoutes(router *gin.Engine, st store.Store, cfg config.Config) {
	env := &Env{Store: st, Cfg: cfg}

	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(SecurityHeadersMiddleware())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Token"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	limiter := NewIPRateLimiter(rate.Limit(float64(rateLimitBudget)/rateLimitWindow.Seconds()), rateLimitBudget)
	go func() {
		for {
			time.Sleep(10 * time.Minute)
			limiter.Evict()
		}
	}()

	authRequired := AuthMiddleware([]byte(cfg.JWTSecret))

	api := router.Group("/api")
	api.Use(RateLimitMiddleware(limiter))
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", env.Register)
			auth.POST("/login", env.Login)
			auth.GET("/me", authRequired, env.Me)
		}

		api.GET("/posts", env.ListPosts)
		api.GET("/posts/similar", env.SimilarPosts)
		api.GET("/posts/:id", env.GetPost)
		api.POST("/posts", authRequired, env.CreatePost)
		api.POST("/posts/:id/vote", authRequired, env.VoteOnPost)
		api.POST("/posts/:id/comment", authRequired, env.AddComment)

		api.POST("/comments/:id/like", authRequired, env.LikeComment)
		api.PUT("/comments/:id", authRequired, env.EditComment)

		api.GET("/users/:id", env.GetUser)
		api.PUT("/users/profile", authRequired, env.UpdateProfile)

		// Moderation is only exposed when an admin token is configured.
		if cfg.AdminToken != "" {
			api.DELETE("/posts/:id", AdminAuthMiddleware(cfg.AdminToken), env.HidePost)
		} else {
			log.Println("X_ADMIN_TOKEN not set, moderation route disabled")
		}
	}

	router.GET("/", env.Health)

	// Uploaded images are served from a fixed prefix; the SPA bundle,
	// when present, from the site root.
	router.Static("/uploads", cfg.UploadDir)
	router.StaticFile("/app", "./public/index.html")
}
