package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/matheus3301/relay/internal/chat"
	"github.com/matheus3301/relay/internal/metrics"
	"github.com/matheus3301/relay/internal/notify"
	"github.com/matheus3301/relay/internal/status"
	"go.uber.org/zap"
)

// Deps are the collaborators the REST surface needs. Live, Tokens, Status
// and UploadsDir may be zero to disable the matching routes.
type Deps struct {
	Chat         *chat.Service
	Live         http.Handler
	Tokens       *notify.Tokens
	Status       *status.Machine
	UploadsDir   string
	MaxBodyBytes int64
	Logger       *zap.Logger
}

type handler struct {
	chat   *chat.Service
	tokens *notify.Tokens
	status *status.Machine
	logger *zap.Logger
}

// NewRouter builds the HTTP handler for the relay.
func NewRouter(d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(accessLog(d.Logger, "/healthz", "/metrics"))
	r.Use(metrics.Middleware())

	h := &handler{chat: d.Chat, tokens: d.Tokens, status: d.Status, logger: d.Logger}

	api := r.Group("/api")
	if d.MaxBodyBytes > 0 {
		api.Use(maxBodySize(d.MaxBodyBytes))
	}
	api.POST("/messages", h.sendMessage)
	api.POST("/messages/file", h.sendFile)
	api.PUT("/messages/read", h.markRead)
	api.GET("/messages/unread/:userId", h.unreadCount)
	api.GET("/messages/:userId/:adminId", h.history)
	api.DELETE("/messages/:messageId", h.deleteMessage)
	api.GET("/admin/conversations", h.conversations)
	if d.Tokens != nil {
		api.PUT("/users/:userId/push-token", h.registerPushToken)
	}

	if d.Live != nil {
		r.GET("/ws", gin.WrapH(d.Live))
	}
	if d.UploadsDir != "" {
		r.Static("/uploads", d.UploadsDir)
	}
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/healthz", h.health)
	return r
}

func accessLog(logger *zap.Logger, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}
	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func maxBodySize(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}
