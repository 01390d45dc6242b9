package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"personalysis-collab/auth"
	"personalysis-collab/internal/comment"
	"personalysis-collab/internal/config"
	"personalysis-collab/internal/db"
	"personalysis-collab/internal/document"
	"personalysis-collab/internal/lock"
	"personalysis-collab/internal/middleware"
	"personalysis-collab/internal/notification"
	"personalysis-collab/internal/realtime"
	"personalysis-collab/internal/review"
	"personalysis-collab/internal/session"
	"personalysis-collab/internal/user"
	"personalysis-collab/internal/version"
	"personalysis-collab/internal/worker"
	"personalysis-collab/redis"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Connect to database
	db.ConnectDb()
	defer db.CloseDb()

	// Migrate database schema
	db.Migrate()

	// Seed database with initial data (for development)
	if config.AppConfig.Environment == "development" {
		db.SeedData()
	}

	// Initialize Redis
	redis.InitRedis(config.AppConfig.RedisAddress)
	cache := redis.NewCache()

	auth.Init(config.AppConfig.JWTSecret)

	pool := worker.NewWorkerPool(config.AppConfig.WorkerPoolSize)
	hub := realtime.NewHub()

	// Initialize repositories
	userRepo := user.NewRepository(db.AppDb)
	sessionRepo := session.NewRepository(db.AppDb)
	lockRepo := lock.NewRepository(db.AppDb)
	docRepo := document.NewRepository(db.AppDb)
	commentRepo := comment.NewRepository(db.AppDb)
	versionRepo := version.NewRepository(db.AppDb)
	reviewRepo := review.NewRepository(db.AppDb)
	notificationRepo := notification.NewRepository(db.AppDb)

	// The dispatcher is the event bus every service publishes to. It
	// needs the session service for fan-out, which in turn publishes to
	// the dispatcher, so recipients are bound after construction.
	dispatcher := notification.NewDispatcher(notificationRepo, hub, pool)

	// Initialize services
	userService := user.NewService(userRepo)
	sessionService := session.NewService(sessionRepo, cache, dispatcher)
	dispatcher.BindRecipients(sessionService)
	lockService := lock.NewService(lockRepo, sessionService, dispatcher, config.AppConfig.LockTTL)
	docService := document.NewService(docRepo, lockService, sessionService, dispatcher)
	commentService := comment.NewService(commentRepo, sessionService, dispatcher)
	versionService := version.NewService(versionRepo, docService, sessionService, dispatcher)
	reviewService := review.NewService(reviewRepo, sessionService, userService, dispatcher)
	notificationService := notification.NewService(notificationRepo)

	// Initialize handlers
	userHandler := user.NewHandler(userService)
	sessionHandler := session.NewHandler(sessionService)
	lockHandler := lock.NewHandler(lockService)
	docHandler := document.NewHandler(docService)
	commentHandler := comment.NewHandler(commentService)
	versionHandler := version.NewHandler(versionService)
	reviewHandler := review.NewHandler(reviewService)
	notificationHandler := notification.NewHandler(notificationService)
	wsHandler := realtime.NewHandler(hub, sessionService, cache)

	authGuard := &auth.Auth{Users: userService, InternalSecret: config.AppConfig.InternalSecret}

	// Initialize Gin router
	router := gin.Default()
	router.Use(middleware.ErrorHandler())

	// cors setting
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
	}

	if config.AppConfig.Environment == "development" {
		// Allow all origins in development
		corsConfig.AllowAllOrigins = true
	} else {
		// Restrict origins in production
		corsConfig.AllowOrigins = []string{config.AppConfig.FrontendAddress}
	}
	router.Use(cors.New(corsConfig))

	// User routes
	router.POST("/register", userHandler.Register)
	router.POST("/login", userHandler.Login)
	router.DELETE("/logout", authGuard.Middleware(), userHandler.Logout)
	router.GET("/profile", authGuard.Middleware(), userHandler.GetProfile)
	router.GET("/users", authGuard.Middleware(), userHandler.SearchUsers)

	// Collaboration session routes
	api := router.Group("/api", authGuard.Middleware())
	{
		sessions := api.Group("/collaboration")
		sessions.GET("", sessionHandler.List)
		sessions.POST("", sessionHandler.Create)
		sessions.GET("/:id", sessionHandler.Show)
		sessions.POST("/:id/archive", sessionHandler.Archive)

		// presence
		sessions.POST("/:id/join", sessionHandler.Join)
		sessions.POST("/:id/heartbeat", sessionHandler.Heartbeat)
		sessions.PUT("/:id/status", sessionHandler.SetStatus)
		sessions.POST("/:id/leave", sessionHandler.Leave)

		// element locks
		sessions.GET("/:id/locks", lockHandler.List)
		sessions.POST("/:id/locks", lockHandler.Acquire)
		sessions.GET("/:id/locks/:elementId", lockHandler.Show)
		sessions.PUT("/:id/locks/:elementId", lockHandler.Refresh)
		sessions.DELETE("/:id/locks/:elementId", lockHandler.Release)

		// document state
		sessions.GET("/:id/document", docHandler.ShowState)
		sessions.POST("/:id/document/changes", docHandler.ApplyChange)

		// comments
		sessions.GET("/:id/comments", commentHandler.List)
		sessions.POST("/:id/comments", commentHandler.Add)
		sessions.POST("/:id/comments/:commentId/resolve", commentHandler.Resolve)

		// versions
		sessions.GET("/:id/versions", versionHandler.List)
		sessions.POST("/:id/versions", versionHandler.Create)
		sessions.GET("/:id/versions/compare", versionHandler.Compare)
		sessions.POST("/:id/versions/:versionId/switch", versionHandler.Switch)
		sessions.POST("/:id/versions/:versionId/restore", versionHandler.Restore)

		// reviews
		sessions.GET("/:id/reviews", reviewHandler.List)
		sessions.POST("/:id/reviews", reviewHandler.Create)
		sessions.GET("/:id/reviews/:reviewId", reviewHandler.Show)
		sessions.POST("/:id/reviews/:reviewId/decide", reviewHandler.Decide)
		sessions.POST("/:id/reviews/:reviewId/comments", reviewHandler.AddComment)
		sessions.POST("/:id/reviews/:reviewId/resubmit", reviewHandler.Resubmit)

		// notifications
		api.GET("/notifications", notificationHandler.List)
		api.PUT("/notifications/read-all", notificationHandler.MarkAllRead)
		api.PUT("/notifications/:notificationId/read", notificationHandler.MarkRead)
		api.DELETE("/notifications/:notificationId", notificationHandler.Delete)
	}

	// realtime channel (token via query param)
	router.GET("/ws/sessions/:id", authGuard.Middleware(), wsHandler.Serve)

	// Background expiry sweep: lazy expiry already keeps reads correct,
	// this only exists so watchers hear about locks nobody touches.
	sweepDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(config.AppConfig.LockSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				pool.Submit(func(ctx context.Context) error {
					return lockService.SweepExpired(ctx)
				})
			case <-sweepDone:
				return
			}
		}
	}()

	// Server configuration
	serverPort := config.AppConfig.ServerPort
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", serverPort),
		Handler: router.Handler(),
	}

	// Start server
	go func() {
		log.Printf("Server listening on port %s", serverPort)
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	close(sweepDone)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Println("Server shutdown error:", err)
	}

	// drain in-flight notification fan-outs before exiting
	pool.Shutdown()

	log.Println("Server shutdown complete")
}
