package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/multitemplate"
	"github.com/gin-gonic/gin"

	"mocktest-server/config"
	"mocktest-server/db"
	"mocktest-server/evaluate"
	"mocktest-server/generator"
	"mocktest-server/handlers"
	"mocktest-server/judge"
	"mocktest-server/middleware"
	"mocktest-server/models"
	"mocktest-server/research"
	"mocktest-server/session"
	"mocktest-server/store"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	// Initialize database connection pool
	pool, err := db.InitDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.CreateSchema(pool); err != nil {
		log.Fatalf("Error creating database schema: %v", err)
	}

	// Wire services
	st := store.NewPostgres(pool)
	sink := func(source, target, message string) {
		db.LogAdapterEvent(pool, source, target, message)
	}
	recentEvents := func(limit int) ([]models.AdapterEvent, error) {
		return db.RecentAdapterEvents(pool, limit)
	}
	adjudicator := judge.New(cfg.Judge, sink)
	evaluator := evaluate.New(st, adjudicator, sink)
	sessions := session.NewService(st)
	explainer := judge.NewExplainer(cfg.Judge)
	extractor := judge.NewExtractor(cfg.Judge)
	researcher := research.NewResearcher(cfg.Research)
	profileCache := research.NewCache(cfg.Research.CacheDir)
	assessmentGen := generator.New(cfg.Generator)

	// Set Gin mode
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// Load HTML templates for admin UI
	renderer := multitemplate.NewRenderer()
	renderer.AddFromFiles("admin_dashboard", "templates/layout.html", "templates/admin_dashboard.html")
	router.HTMLRender = renderer

	router.Use(middleware.Logger())

	router.GET("/health", handlers.HealthCheck())

	api := router.Group("/api")
	{
		api.POST("/upload", handlers.UploadText(st, sessions, extractor))
		api.POST("/upload/bank", handlers.UploadBank(st, sessions))
		api.POST("/tests/:test_id/start", handlers.StartTest(sessions))
		api.POST("/tests/:test_id/retry", handlers.RetryTest(sessions))
		api.POST("/tests/:test_id/submit", handlers.SubmitTest(evaluator))
		api.GET("/tests/:test_id/status", handlers.TestStatus(sessions))
		api.GET("/tests/:test_id/result", handlers.GetTestResult(st))
		api.POST("/tests/:test_id/questions/:question_id/bookmark", handlers.BookmarkQuestion(sessions))
		api.POST("/explanations", handlers.ExplainAnswer(st, explainer))
		api.POST("/company-tests", handlers.CreateCompanyTest(st, sessions, researcher, profileCache, assessmentGen, sink))
		api.GET("/companies", handlers.ListCompanies(profileCache))
		api.GET("/companies/:name/profile", handlers.GetCompanyProfile(profileCache))
		api.DELETE("/companies/:name", handlers.DeleteCompanyProfile(profileCache))
	}

	// Admin UI routes
	admin := router.Group("/admin")
	admin.Use(middleware.AuthMiddleware(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer))
	admin.Use(middleware.RoleCheckMiddleware([]string{"admin"}))
	{
		admin.GET("/dashboard", handlers.AdminDashboard(st, recentEvents))
	}

	srv := &http.Server{
		Addr:    cfg.ServerPort,
		Handler: router,
	}

	// Goroutine to gracefully shut down the server
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}
	}()

	log.Printf("MockTest Server starting on %s", cfg.ServerPort)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server startup error: %v", err)
	}
	log.Println("Server exited gracefully.")
}
