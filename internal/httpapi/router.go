package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/suPer8Hu/nutribot/internal/common"
	"github.com/suPer8Hu/nutribot/internal/httpapi/handlers"
	"github.com/suPer8Hu/nutribot/internal/httpapi/middleware"
)

func NewRouter(h *handlers.Handler, jwtSecret string, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(jwtSecret))
	authGroup.GET("/tasks/:task_id", h.GetTask)
	authGroup.GET("/knowledge/search", h.SearchKnowledge)
	return r
}
