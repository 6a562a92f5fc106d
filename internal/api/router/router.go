package router

import (
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/d60-Lab/collab-core/internal/api/handler"
	"github.com/d60-Lab/collab-core/internal/api/middleware"
	"github.com/d60-Lab/collab-core/internal/config"
	"github.com/d60-Lab/collab-core/pkg/response"
)

// 可加锁的资源类型
var lockableResources = map[string]bool{
	"chapter": true,
	"post":    true,
	"thread":  true,
}

// New 组装路由与中间件
func New(cfg *config.Config, h *handler.Handler) *gin.Engine {
	gin.SetMode(ginMode(cfg.Server.Mode))
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	if cfg.Sentry.DSN != "" {
		r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	if cfg.Telemetry.Endpoint != "" {
		r.Use(otelgin.Middleware("collab-core"))
	}
	// SSE 不能压缩，排除流式端点
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/stream"})))

	registerValidators()

	api := r.Group("/api/v1", middleware.Auth(cfg.JWT.Secret))
	{
		api.POST("/lock", middleware.RateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst), h.Lock)
		api.GET("/stream", h.Stream)

		api.GET("/notifications", h.ListNotifications)
		api.GET("/notifications/unread_count", h.UnreadCount)
		api.POST("/notifications/read", h.MarkRead)
		api.POST("/notifications/read_all", h.MarkAllRead)

		api.POST("/chapters/:id/publish", h.PublishChapter)
		api.POST("/books/:id/follow", h.FollowBook)
		api.DELETE("/books/:id/follow", h.UnfollowBook)

		admin := api.Group("/admin", requireAdmin())
		{
			admin.POST("/outbox/drain", h.DrainOutbox)
			admin.POST("/outbox/requeue", h.RequeueOutbox)
		}
	}
	return r
}

func ginMode(mode string) string {
	if mode == "debug" {
		return gin.DebugMode
	}
	return gin.ReleaseMode
}

// requireAdmin 管理端点仅限特权角色
func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !middleware.IsPrivileged(c) {
			response.Forbidden(c, "admin role required")
			c.Abort()
			return
		}
		c.Next()
	}
}

func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("resourcekind", func(fl validator.FieldLevel) bool {
			return lockableResources[fl.Field().String()]
		})
	}
}
