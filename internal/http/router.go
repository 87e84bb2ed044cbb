package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/studypath-backend/internal/http/handlers"
	"github.com/yungbote/studypath-backend/internal/platform/envutil"
)

type RouterConfig struct {
	HealthHandler   *httpH.HealthHandler
	WorkflowHandler *httpH.WorkflowHandler
	SessionHandler  *httpH.SessionHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(otelgin.Middleware("studypath-backend"))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     envutil.StrSlice("HTTP_CORS_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/healthcheck/agents", cfg.HealthHandler.Agents)
	}

	api := r.Group("/api")
	{
		if cfg.WorkflowHandler != nil {
			api.POST("/workflows/run", cfg.WorkflowHandler.Run)
			api.POST("/workflows/stream", cfg.WorkflowHandler.Stream)
			api.POST("/workflows/batch", cfg.WorkflowHandler.Batch)
			api.DELETE("/workflows/:id", cfg.WorkflowHandler.Cancel)
		}

		if cfg.SessionHandler != nil {
			api.GET("/sessions", cfg.SessionHandler.ListRecent)
			api.GET("/sessions/:id", cfg.SessionHandler.Get)
		}
	}

	return r
}
