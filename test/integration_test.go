package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"thesis-portal/handlers"
	"thesis-portal/middleware"
	"thesis-portal/models"
	"thesis-portal/repositories"
	"thesis-portal/services"
)

type IntegrationTestSuite struct {
	suite.Suite
	db     *gorm.DB
	router *gin.Engine
	dspace *httptest.Server

	tokens map[string]string
}

func (suite *IntegrationTestSuite) SetupSuite() {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		suite.T().Skip("TEST_DATABASE_DSN not set; skipping integration suite")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		suite.T().Fatal("Failed to connect to test database:", err)
	}
	suite.db = db

	if err := db.AutoMigrate(
		&models.User{},
		&models.Submission{},
		&models.AuditLogEntry{},
		&models.Notification{},
	); err != nil {
		suite.T().Fatal("Migration failed:", err)
	}

	// Stand-in repository endpoint for publish calls.
	suite.dspace = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"uuid":"0000-1111","handle":"123456789/42"}`)
	}))

	suite.setupRouter()
}

func (suite *IntegrationTestSuite) setupRouter() {
	gin.SetMode(gin.TestMode)

	userRepo := repositories.NewUserRepository(suite.db)
	submissionRepo := repositories.NewSubmissionRepository(suite.db)
	auditRepo := repositories.NewAuditLogRepository(suite.db)
	notificationRepo := repositories.NewNotificationRepository(suite.db)

	authService := services.NewAuthService(userRepo)
	queueService := services.NewQueueService(submissionRepo)
	notificationService := services.NewNotificationService(notificationRepo, userRepo)
	publisher := services.NewDSpacePublisher(suite.dspace.URL)
	transitionService := services.NewTransitionService(submissionRepo, auditRepo, notificationService, publisher)

	authHandler := handlers.NewAuthHandler(authService)
	submissionHandler := handlers.NewSubmissionHandler(queueService, transitionService, auditRepo, submissionRepo, suite.T().TempDir())
	notificationHandler := handlers.NewNotificationHandler(notificationService, submissionRepo)

	router := gin.New()

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		protected := v1.Group("/")
		protected.Use(middleware.AuthMiddleware())
		{
			protected.GET("/profile", authHandler.GetProfile)

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

			protected.DELETE("/sent-history/:actor", middleware.RequireRole(models.RoleAdmin), submissionHandler.PurgeSentHistory)
			protected.GET("/dashboard", middleware.RequireRole(models.RoleAdmin), submissionHandler.Dashboard)

			notifications := protected.Group("/notifications")
			{
				notifications.GET("", notificationHandler.List)
				notifications.POST("/:id/read", notificationHandler.MarkRead)
			}

			protected.GET("/calendar.ics", notificationHandler.Calendar)
		}
	}

	suite.router = router
}

func (suite *IntegrationTestSuite) TearDownSuite() {
	if suite.dspace != nil {
		suite.dspace.Close()
	}
	if suite.db != nil {
		suite.db.Exec("DROP TABLE IF EXISTS notifications")
		suite.db.Exec("DROP TABLE IF EXISTS audit_log_entries")
		suite.db.Exec("DROP TABLE IF EXISTS submissions")
		suite.db.Exec("DROP TABLE IF EXISTS users")
	}
}

func (suite *IntegrationTestSuite) SetupTest() {
	suite.db.Exec("TRUNCATE TABLE notifications RESTART IDENTITY CASCADE")
	suite.db.Exec("TRUNCATE TABLE audit_log_entries RESTART IDENTITY CASCADE")
	suite.db.Exec("TRUNCATE TABLE submissions RESTART IDENTITY CASCADE")
	suite.db.Exec("TRUNCATE TABLE users RESTART IDENTITY CASCADE")

	suite.tokens = map[string]string{}
	suite.registerUser("jane.roe", "jane@uni.edu", models.RoleStudent)
	suite.registerUser("lib1", "lib1@uni.edu", models.RoleLibrarian)
	suite.registerUser("rev1", "rev1@uni.edu", models.RoleReviewer)
	suite.registerUser("adm1", "adm1@uni.edu", models.RoleAdmin)
}

type envelope struct {
	Code        int             `json:"code"`
	CodeType    string          `json:"code_type"`
	CodeMessage string          `json:"code_message"`
	Data        json.RawMessage `json:"data"`
}

func (suite *IntegrationTestSuite) registerUser(username, email string, role models.UserRole) {
	payload := models.RegisterRequest{
		Username: username,
		Email:    email,
		Password: "password123",
		Role:     role,
	}

	body, _ := json.Marshal(payload)
	req := httptest.NewRequest("POST", "/api/v1/auth/register", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	suite.Equal(http.StatusOK, w.Code)

	var resp envelope
	suite.NoError(json.Unmarshal(w.Body.Bytes(), &resp))

	var auth models.AuthResponse
	suite.NoError(json.Unmarshal(resp.Data, &auth))
	suite.NotEmpty(auth.Token)
	suite.tokens[username] = auth.Token
}

func (suite *IntegrationTestSuite) submitFile(username, filename string) models.Submission {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	suite.NoError(err)
	_, err = part.Write([]byte("%PDF-1.4 test payload"))
	suite.NoError(err)
	suite.NoError(writer.Close())

	req := httptest.NewRequest("POST", "/api/v1/submissions", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+suite.tokens[username])

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	suite.Equal(http.StatusOK, w.Code, w.Body.String())

	var resp envelope
	suite.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	var sub models.Submission
	suite.NoError(json.Unmarshal(resp.Data, &sub))
	return sub
}

func (suite *IntegrationTestSuite) transition(username, path string, payload interface{}) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest("POST", path, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+suite.tokens[username])

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *IntegrationTestSuite) listQueue(username, query string) []models.Submission {
	req := httptest.NewRequest("GET", "/api/v1/submissions?"+query, nil)
	req.Header.Set("Authorization", "Bearer "+suite.tokens[username])

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	suite.Equal(http.StatusOK, w.Code)

	var resp envelope
	suite.NoError(json.Unmarshal(w.Body.Bytes(), &resp))

	var data struct {
		Submissions []models.Submission `json:"submissions"`
		Total       int                 `json:"total"`
	}
	suite.NoError(json.Unmarshal(resp.Data, &data))
	return data.Submissions
}

func (suite *IntegrationTestSuite) TestAuthFlow() {
	payload := models.LoginRequest{Email: "jane@uni.edu", Password: "password123"}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	suite.Equal(http.StatusOK, w.Code)

	var resp envelope
	suite.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	var auth models.AuthResponse
	suite.NoError(json.Unmarshal(resp.Data, &auth))
	suite.Equal("jane.roe", auth.User.Username)
	suite.NotEmpty(auth.Token)
}

func (suite *IntegrationTestSuite) TestRejectsDisallowedFileType() {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, _ := writer.CreateFormFile("file", "malware.exe")
	part.Write([]byte("nope"))
	writer.Close()

	req := httptest.NewRequest("POST", "/api/v1/submissions", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+suite.tokens["jane.roe"])

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *IntegrationTestSuite) TestFullLifecycleOverHTTP() {
	sub := suite.submitFile("jane.roe", "jane_roe.pdf")
	suite.Equal("jane_roe_Stage1.pdf", sub.Filename)

	// Librarian sees it, reviewer does not.
	suite.Len(suite.listQueue("lib1", "queue=to-review"), 1)
	suite.Empty(suite.listQueue("rev1", "queue=to-review"))

	// Librarian approves to reviewer.
	w := suite.transition("lib1", fmt.Sprintf("/api/v1/submissions/%d/approve", sub.ID), models.TransitionRequest{ExpectedTime: sub.Time})
	suite.Equal(http.StatusOK, w.Code, w.Body.String())

	var resp envelope
	suite.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	var s2 models.Submission
	suite.NoError(json.Unmarshal(resp.Data, &s2))
	suite.Equal("jane_roe_Stage2.pdf", s2.Filename)

	// A stale retry is rejected as a conflict.
	retry := suite.transition("lib1", fmt.Sprintf("/api/v1/submissions/%d/approve", sub.ID), models.TransitionRequest{ExpectedTime: sub.Time})
	suite.Equal(http.StatusConflict, retry.Code)

	// Reviewer approves up, admin publishes.
	w = suite.transition("rev1", fmt.Sprintf("/api/v1/submissions/%d/send-admin", s2.ID), models.TransitionRequest{ExpectedTime: s2.Time, ReadyForPublication: true})
	suite.Equal(http.StatusOK, w.Code, w.Body.String())
	suite.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	var s3 models.Submission
	suite.NoError(json.Unmarshal(resp.Data, &s3))

	w = suite.transition("adm1", fmt.Sprintf("/api/v1/submissions/%d/publish", s3.ID), models.PublishRequest{ExpectedTime: s3.Time, Keywords: []string{"thesis"}})
	suite.Equal(http.StatusOK, w.Code, w.Body.String())
	suite.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	var s4 models.Submission
	suite.NoError(json.Unmarshal(resp.Data, &s4))
	suite.Equal("jane_roe_Stage4.pdf", s4.Filename)
	suite.Equal("123456789/42", s4.RepositoryID)

	// The owner was notified about the publication.
	req := httptest.NewRequest("GET", "/api/v1/notifications", nil)
	req.Header.Set("Authorization", "Bearer "+suite.tokens["jane.roe"])
	nw := httptest.NewRecorder()
	suite.router.ServeHTTP(nw, req)
	suite.Equal(http.StatusOK, nw.Code)
	suite.Contains(nw.Body.String(), "was published")
}

func (suite *IntegrationTestSuite) TestStudentCannotApprove() {
	sub := suite.submitFile("jane.roe", "jane_roe.pdf")

	w := suite.transition("jane.roe", fmt.Sprintf("/api/v1/submissions/%d/approve", sub.ID), models.TransitionRequest{ExpectedTime: sub.Time})
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func TestIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(IntegrationTestSuite))
}
