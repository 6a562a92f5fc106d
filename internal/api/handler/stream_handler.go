package handler

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/collab-core/internal/api/middleware"
	"github.com/d60-Lab/collab-core/pkg/logger"
)

// Stream 长连接推送端点（text/event-stream）。
// 连接注册到进程内 Broker，客户端断开即注销；每个 keepalive 周期
// 发送注释行防止代理断开空闲连接
// @Summary 通知推送流
// @Tags 协同
// @Produce text/event-stream
// @Router /api/v1/stream [get]
func (h *Handler) Stream(c *gin.Context) {
	userID := middleware.UserID(c)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	client := h.broker.Subscribe(userID)
	defer h.broker.Unsubscribe(client.ID)

	w := c.Writer
	// 建议客户端重连退避 + 握手帧
	fmt.Fprint(w, "retry: 5000\n\n")
	fmt.Fprintf(w, "event: connected\ndata: {\"client_id\":%q}\n\n", client.ID)
	w.Flush()

	logger.Debug("stream client connected",
		zap.String("client", client.ID), zap.String("user", userID))

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			// 客户端断开，注销由 defer 完成
			logger.Debug("stream client disconnected", zap.String("client", client.ID))
			return
		case ev, ok := <-client.C():
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, ev.Data); err != nil {
				// 单个坏连接只影响自己
				logger.Warn("stream write failed", zap.String("client", client.ID), zap.Error(err))
				return
			}
			w.Flush()
		case t := <-ticker.C:
			if _, err := fmt.Fprintf(w, ": keepalive %d\n\n", t.Unix()); err != nil {
				return
			}
			w.Flush()
		}
	}
}
