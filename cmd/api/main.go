package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/gradebook-io/school-admin-api/api/swagger"
	"github.com/gradebook-io/school-admin-api/internal/handler"
	"github.com/gradebook-io/school-admin-api/internal/middleware"
	"github.com/gradebook-io/school-admin-api/internal/models"
	"github.com/gradebook-io/school-admin-api/internal/repository"
	"github.com/gradebook-io/school-admin-api/internal/service"
	"github.com/gradebook-io/school-admin-api/pkg/cache"
	"github.com/gradebook-io/school-admin-api/pkg/config"
	"github.com/gradebook-io/school-admin-api/pkg/database"
	"github.com/gradebook-io/school-admin-api/pkg/logger"
	corsmiddleware "github.com/gradebook-io/school-admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/gradebook-io/school-admin-api/pkg/middleware/requestid"
	"github.com/gradebook-io/school-admin-api/pkg/storage"
)

// @title School Admin API
// @version 1.0.0
// @description Attendance, grading, and report card backend
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	classRepo := repository.NewClassRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	eventRepo := repository.NewEventRepository(db)
	reportCardRepo := repository.NewReportCardRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)
	defer cacheRepo.Close()

	// Services.
	cacheService := service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.CacheEnabled)
	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	dashboardService := service.NewDashboardService(userRepo, gradeRepo, eventRepo, cacheService, logr, cfg.Dashboard.CacheTTL)
	attendanceService := service.NewAttendanceService(attendanceRepo, lessonRepo, studentRepo, validate, logr)
	studentService := service.NewStudentService(studentRepo, classRepo, validate, logr)
	classService := service.NewClassService(classRepo, validate, logr)
	lessonService := service.NewLessonService(lessonRepo, classRepo, validate, logr)
	gradeService := service.NewGradeService(gradeRepo, studentRepo, dashboardService, validate, logr)
	eventService := service.NewEventService(eventRepo, studentRepo, dashboardService, validate, logr)
	reportCardService := service.NewReportCardService(reportCardRepo, gradeRepo, studentRepo, validate, logr)

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportService := service.NewReportExportService(reportCardRepo, reportCardService, exportStore, signer, logr,
		cfg.Exports.WorkerConcurrency, cfg.Exports.WorkerRetries)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	exportService.Start(ctx)
	defer exportService.Stop()

	// Handlers.
	authHandler := handler.NewAuthHandler(authService)
	attendanceHandler := handler.NewAttendanceHandler(attendanceService)
	dashboardHandler := handler.NewDashboardHandler(dashboardService)
	studentHandler := handler.NewStudentHandler(studentService)
	classHandler := handler.NewClassHandler(classService)
	lessonHandler := handler.NewLessonHandler(lessonService)
	gradeHandler := handler.NewGradeHandler(gradeService)
	eventHandler := handler.NewEventHandler(eventService)
	reportCardHandler := handler.NewReportCardHandler(reportCardService, exportService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		readyCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(readyCtx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	v1 := r.Group(cfg.APIPrefix)
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.GET("/me", middleware.Auth(authService), authHandler.Me)
		}

		// Download uses the signed token instead of a bearer token so
		// links can be opened directly from a browser.
		v1.GET("/report-cards/exports/:jobId/download", reportCardHandler.ExportDownload)

		secured := v1.Group("", middleware.Auth(authService))
		{
			secured.GET("/dashboard/teacher", dashboardHandler.Teacher)

			secured.GET("/attendance", attendanceHandler.List)
			secured.POST("/attendance", attendanceHandler.Mark)
			secured.POST("/attendance/absent-day", attendanceHandler.MarkAbsentForDay)
			secured.PATCH("/attendance/:id", attendanceHandler.Update)
			secured.DELETE("/attendance/:id", attendanceHandler.Delete)

			secured.GET("/students", studentHandler.List)
			secured.POST("/students", studentHandler.Create)
			secured.GET("/students/:id", studentHandler.Get)
			secured.PUT("/students/:id", studentHandler.Update)
			secured.DELETE("/students/:id", middleware.RequireRole(models.RoleAdmin), studentHandler.Delete)
			secured.GET("/students/:id/attendance", attendanceHandler.ByStudent)
			secured.GET("/students/:id/report-cards", reportCardHandler.ListByStudent)

			secured.GET("/classes", classHandler.List)
			secured.POST("/classes", middleware.RequireRole(models.RoleAdmin), classHandler.Create)
			secured.GET("/classes/:id", classHandler.Get)
			secured.PUT("/classes/:id", middleware.RequireRole(models.RoleAdmin), classHandler.Update)
			secured.DELETE("/classes/:id", middleware.RequireRole(models.RoleAdmin), classHandler.Delete)

			secured.GET("/lessons", lessonHandler.List)
			secured.POST("/lessons", lessonHandler.Create)
			secured.GET("/lessons/:id", lessonHandler.Get)
			secured.PUT("/lessons/:id", lessonHandler.Update)
			secured.DELETE("/lessons/:id", middleware.RequireRole(models.RoleAdmin), lessonHandler.Delete)

			secured.GET("/grades", gradeHandler.List)
			secured.POST("/grades", gradeHandler.Create)
			secured.GET("/grades/comment-templates", gradeHandler.ListCommentTemplates)
			secured.POST("/grades/comment-templates", gradeHandler.CreateCommentTemplate)
			secured.GET("/grades/comment-templates/:id", gradeHandler.GetCommentTemplate)
			secured.DELETE("/grades/comment-templates/:id", middleware.RequireRole(models.RoleAdmin), gradeHandler.DeleteCommentTemplate)

			secured.GET("/events", eventHandler.List)
			secured.GET("/events/:id", eventHandler.Get)
			secured.POST("/events", eventHandler.Create)
			secured.DELETE("/events/:id", middleware.RequireRole(models.RoleAdmin, models.RoleCounselor), eventHandler.Delete)

			secured.POST("/report-cards", reportCardHandler.Generate)
			secured.GET("/report-cards/:id", reportCardHandler.Get)
			secured.POST("/report-cards/:id/lines", reportCardHandler.AddLines)
			secured.POST("/report-cards/:id/publish", middleware.RequireRole(models.RoleAdmin), reportCardHandler.Publish)
			secured.POST("/report-cards/:id/export", reportCardHandler.Export)
			secured.GET("/report-cards/exports/:jobId", reportCardHandler.ExportStatus)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
