package app

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/mnuel1/spacio-backend/internal/handler"
	"github.com/mnuel1/spacio-backend/internal/middleware"
	"github.com/mnuel1/spacio-backend/internal/models"
	"github.com/mnuel1/spacio-backend/pkg/config"
	"github.com/mnuel1/spacio-backend/pkg/logger"
	corsmiddleware "github.com/mnuel1/spacio-backend/pkg/middleware/cors"
	reqidmiddleware "github.com/mnuel1/spacio-backend/pkg/middleware/requestid"
)

// NewRouter mounts every HTTP route on a fresh gin engine.
func NewRouter(c *Container) *gin.Engine {
	cfg := c.Config
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(c.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(c.Metrics))

	metricsHandler := handler.NewMetricsHandler(c.Metrics, c.DB).WithEvents(c.Events)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	meetingHandler := handler.NewMeetingHandler(c.Meetings)
	scheduleHandler := handler.NewScheduleHandler(c.AutoSchedule)
	conflictHandler := handler.NewConflictHandler(c.Conflicts)
	exportHandler := handler.NewExportHandler(c.Export)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.Auth(c.Tokens, cfg.JWT.Required))
	writers := middleware.RequireRoles(cfg.JWT.Required, models.RoleAdmin, models.RoleScheduler)

	api.GET("/metrics/summary", metricsHandler.Summary)

	meetings := api.Group("/meetings")
	meetings.GET("", meetingHandler.List)
	meetings.POST("", writers, meetingHandler.Create)
	meetings.PUT("/:id", writers, meetingHandler.Reassign)
	meetings.DELETE("/:id", writers, meetingHandler.Delete)

	schedules := api.Group("/schedules")
	schedules.POST("/auto", writers, scheduleHandler.AutoSchedule)
	schedules.POST("/blocks", scheduleHandler.PlanBlocks)

	api.GET("/conflicts", conflictHandler.Report)
	api.GET("/timetable/export", exportHandler.Timetable)

	return r
}
