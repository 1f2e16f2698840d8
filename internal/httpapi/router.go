package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/suPer8Hu/readmegen/internal/common"
	"github.com/suPer8Hu/readmegen/internal/generation"
	"github.com/suPer8Hu/readmegen/internal/httpapi/handlers"
	"github.com/suPer8Hu/readmegen/internal/httpapi/middleware"
)

func NewRouter(jobs *generation.Service, jwtSecret string, log *zap.SugaredLogger) *gin.Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(log))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	h := handlers.NewHandler(jobs, log)

	api := r.Group("/api")
	api.GET("/health", h.Health)

	// JWT required when a secret is configured
	authed := api.Group("/")
	authed.Use(middleware.AuthRequired(jwtSecret))
	authed.GET("/health/llm", h.BackendHealth)
	authed.POST("/generate", h.Generate)
	authed.GET("/jobs", h.ListJobs)
	authed.GET("/jobs/:id", h.GetJob)
	authed.DELETE("/jobs/:id", h.DeleteJob)
	authed.POST("/jobs/:id/retry", h.RetryJob)
	authed.GET("/jobs/:id/download", h.Download)
	authed.GET("/jobs/:id/preview", h.Preview)
	return r
}
