package main

import (
	"log"
	"net/http"
	"os"

	"thesis-portal/config"
	"thesis-portal/handlers"
	"thesis-portal/middleware"
	"thesis-portal/models"
	"thesis-portal/repositories"
	"thesis-portal/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize database
	db := config.InitDB()
	if err := db.AutoMigrate(
		&models.User{},
		&models.Submission{},
		&models.AuditLogEntry{},
		&models.Notification{},
	); err != nil {
		log.Fatal("Migration failed:", err)
	}

	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "uploads"
	}
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		log.Fatal("Failed to create upload dir:", err)
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	submissionRepo := repositories.NewSubmissionRepository(db)
	auditRepo := repositories.NewAuditLogRepository(db)
	notificationRepo := repositories.NewNotificationRepository(db)

	// Initialize services
	authService := services.NewAuthService(userRepo)
	queueService := services.NewQueueService(submissionRepo)
	notificationService := services.NewNotificationService(notificationRepo, userRepo)

	dspaceURL := os.Getenv("DSPACE_URL")
	if dspaceURL == "" {
		dspaceURL = "http://localhost:8000"
	}
	publisher := services.NewDSpacePublisher(dspaceURL)

	transitionService := services.NewTransitionService(submissionRepo, auditRepo, notificationService, publisher)

	// Deadline reminder sweep
	scheduler := services.NewDeadlineScheduler(submissionRepo, notificationRepo)
	scheduler.Start()
	defer scheduler.Stop()

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	submissionHandler := handlers.NewSubmissionHandler(queueService, transitionService, auditRepo, submissionRepo, uploadDir)
	notificationHandler := handlers.NewNotificationHandler(notificationService, submissionRepo)

	// Setup router
	router := gin.Default()

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// API routes
	v1 := router.Group("/api/v1")
	{
		// Auth routes (public)
		auth := v1.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		// Protected routes
		protected := v1.Group("/")
		protected.Use(middleware.AuthMiddleware())
		{
			// Profile
			protected.GET("/profile", authHandler.GetProfile)

			// Submissions
			submissions := protected.Group("/submissions")
			{
				submissions.POST("", middleware.RequireRole(models.RoleStudent), submissionHandler.Submit)
				submissions.GET("", submissionHandler.ListQueue)
				submissions.POST("/:id/approve", middleware.RequireRole(models.RoleLibrarian), submissionHandler.ApproveToReviewer)
				submissions.POST("/:id/return", middleware.RequireRole(models.RoleLibrarian, models.RoleReviewer), submissionHandler.ReturnToStudent)
				submissions.POST("/:id/undo", middleware.RequireRole(models.RoleLibrarian), submissionHandler.UndoSendToReviewer)
				submissions.POST("/:id/return-review", middleware.RequireRole(models.RoleReviewer), submissionHandler.ReturnToLibrarian)
				submissions.POST("/:id/send-admin", middleware.RequireRole(models.RoleReviewer), submissionHandler.ApproveToAdmin)
				submissions.POST("/:id/publish", middleware.RequireRole(models.RoleAdmin), submissionHandler.Publish)
			}

			// Admin
			protected.DELETE("/sent-history/:actor", middleware.RequireRole(models.RoleAdmin), submissionHandler.PurgeSentHistory)
			protected.GET("/dashboard", middleware.RequireRole(models.RoleAdmin), submissionHandler.Dashboard)

			// Notifications
			notifications := protected.Group("/notifications")
			{
				notifications.GET("", notificationHandler.List)
				notifications.POST("/:id/read", notificationHandler.MarkRead)
			}

			protected.GET("/calendar.ics", notificationHandler.Calendar)
		}
	}

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	log.Fatal(http.ListenAndServe(":"+port, router))
}
