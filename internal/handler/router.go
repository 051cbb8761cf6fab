package handler

import (
	"net/http"
	"time"

	"github.com/CageChen/ezworkspace/internal/fs"
	"github.com/CageChen/ezworkspace/internal/logging"
	"github.com/CageChen/ezworkspace/internal/metrics"
	"github.com/CageChen/ezworkspace/internal/session"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterOptions selects which API groups are served
type RouterOptions struct {
	// Session backs the workspace and project APIs. Nil disables them.
	Session *session.Session
	// Host is served on /api/host when set, normally a LocalFS.
	Host   fs.Backend
	Logger *zap.Logger
}

// NewRouter builds the gin engine with middleware and every enabled route
func NewRouter(opts RouterOptions) *gin.Engine {
	logger := logging.OrNop(opts.Logger)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Content-Type", "Content-Length", "Accept", "Origin"},
		MaxAge:          12 * time.Hour,
	}))
	r.Use(logging.Middleware(logger.Named("http")))
	r.Use(requestMetrics())

	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	if opts.Host != nil {
		hostHandler := NewHostHandler(opts.Host, logger.Named("host"))
		api.POST("/host/:op", hostHandler.Invoke)
		api.GET("/host/ws", hostHandler.HandleWS)
	}

	if opts.Session != nil {
		events := NewWSHandler(logger.Named("events"))
		wsHandler := NewWorkspaceHandler(opts.Session, events, logger.Named("workspace"))
		projectHandler := NewProjectHandler(opts.Session, events, logger.Named("projects"))

		// Tree, file and entry APIs
		api.GET("/ws", events.HandleWS)
		api.GET("/tree", wsHandler.GetTree)
		api.POST("/tree/refresh", wsHandler.RefreshTree)
		api.GET("/files/*path", wsHandler.GetFile)
		api.PUT("/files/*path", wsHandler.PutFile)
		api.POST("/entries", wsHandler.CreateEntry)
		api.DELETE("/entries/*path", wsHandler.DeleteEntry)
		api.POST("/rename", wsHandler.Rename)
		api.POST("/copy", wsHandler.Copy)

		// Project APIs
		api.GET("/projects", projectHandler.ListProjects)
		api.POST("/projects/close", projectHandler.CloseProject)
		api.POST("/projects/:name", projectHandler.SaveProject)
		api.DELETE("/projects/:name", projectHandler.DeleteProject)
		api.POST("/projects/:name/open", projectHandler.OpenProject)
		api.GET("/projects/:name/export", projectHandler.ExportProject)
	}

	return r
}

// requestMetrics counts requests by route pattern
func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status())
	}
}
