package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"social-trading-backend/internal/auth"
	"social-trading-backend/internal/config"
	"social-trading-backend/internal/database"
	"social-trading-backend/internal/handlers"
	"social-trading-backend/internal/services"
	"social-trading-backend/internal/tapestry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret)

	// Connect to database
	if err := database.Connect(cfg.GetDSN()); err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(); err != nil {
		logrus.Fatalf("Failed to run migrations: %v", err)
	}

	// External social graph client
	tapestryClient := tapestry.NewClient(
		cfg.Tapestry.BaseURL,
		cfg.Tapestry.APIKey,
		time.Duration(cfg.Tapestry.TimeoutSeconds)*time.Second,
	)

	// Initialize services
	db := database.GetDB()
	pointsService := services.NewPointsService(db)
	achievementService := services.NewAchievementService(db, pointsService)
	pointsService.AttachAchievementService(achievementService)
	referralService := services.NewReferralService(db, pointsService)
	leaderboardService := services.NewLeaderboardService(db)
	ogService := services.NewOGService(db, pointsService)
	socialService := services.NewSocialService(db, tapestryClient, pointsService)
	profileService := services.NewProfileService(db, tapestryClient, pointsService, referralService)

	// Seed the achievement catalog
	if err := achievementService.InitializeAchievements(); err != nil {
		logrus.Fatalf("Failed to seed achievements: %v", err)
	}

	// Initialize handlers
	profileHandler := handlers.NewProfileHandler(profileService)
	socialHandler := handlers.NewSocialHandler(socialService)
	pointsHandler := handlers.NewPointsHandler(pointsService, leaderboardService)
	achievementHandler := handlers.NewAchievementHandler(achievementService)
	referralHandler := handlers.NewReferralHandler(referralService)
	ogHandler := handlers.NewOGHandler(ogService)

	// Set up Gin router
	router := gin.Default()

	// CORS middleware
	allowedOrigins := []string{
		"http://localhost:3000",
		"http://localhost:5173", // Vite dev server
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
	if frontendURL := os.Getenv("FRONTEND_URL"); frontendURL != "" {
		allowedOrigins = append(allowedOrigins, frontendURL)
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// API routes (protected)
	api := router.Group("/api")
	api.Use(auth.AuthMiddleware())
	{
		// Profile endpoints
		api.POST("/profiles", profileHandler.CreateProfile)
		api.PUT("/profiles", profileHandler.UpdateProfile)
		api.GET("/profiles/suggested", profileHandler.GetSuggestedProfiles)
		api.GET("/profiles/wallet/:address", profileHandler.GetProfileByWallet)
		api.GET("/profiles/:did", profileHandler.GetProfile)

		// Social graph endpoints
		api.POST("/social/follow", socialHandler.Follow)
		api.DELETE("/social/follow", socialHandler.Unfollow)
		api.GET("/social/is-following", socialHandler.IsFollowing)
		api.GET("/social/followers/:did", socialHandler.GetFollowers)
		api.GET("/social/following/:did", socialHandler.GetFollowing)

		// Comment and like endpoints
		api.POST("/comments", socialHandler.CreateComment)
		api.GET("/comments/profile/:did", socialHandler.GetProfileComments)
		api.POST("/comments/:id/like", socialHandler.LikeComment)
		api.DELETE("/comments/:id/like", socialHandler.UnlikeComment)

		// Points endpoints
		api.POST("/points/award", pointsHandler.AwardPoints)
		api.GET("/points/history", pointsHandler.GetHistory)
		api.GET("/points/me", pointsHandler.GetSummary)
		api.GET("/points/leaderboard", pointsHandler.GetLeaderboard)

		// Achievement endpoints
		api.GET("/achievements", achievementHandler.GetCatalog)
		api.GET("/achievements/me", achievementHandler.GetUserAchievements)

		// Referral endpoints
		api.GET("/referrals/check/:code", referralHandler.CheckReferralCode)
		api.POST("/referrals/process", referralHandler.ProcessReferral)
		api.GET("/referrals/me", referralHandler.GetReferrals)

		// Trading volume / OG endpoints
		api.POST("/og/volume", ogHandler.UpdateTradingVolume)
		api.GET("/og/progress", ogHandler.GetOGProgress)
	}

	// Admin routes (protected + admin only)
	admin := router.Group("/api/admin")
	admin.Use(auth.AuthMiddleware())
	admin.Use(handlers.AdminMiddleware(cfg.App.AdminDIDs))
	{
		admin.POST("/achievements/init", achievementHandler.InitializeAchievements)
		admin.POST("/og/grant", ogHandler.GrantManualOG)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logrus.Infof("Server starting on port %s", cfg.Server.Port)
		logrus.Infof("Health check: http://localhost:%s/health", cfg.Server.Port)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	// Graceful shutdown with 5 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Fatal("Server forced to shutdown: ", err)
	}

	logrus.Info("Server exited")
}
