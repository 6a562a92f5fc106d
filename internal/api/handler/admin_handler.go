package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/collab-core/pkg/response"
)

// DrainOutbox 手动排空外发盒（运维/开发触发，非客户端契约）
// @Summary 排空外发盒
// @Tags 管理
// @Param limit query int false "本次最多处理事件数" default(100)
// @Success 200 {object} response.Response{data=service.DrainReport}
// @Router /api/v1/admin/outbox/drain [post]
func (h *Handler) DrainOutbox(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	report, err := h.drainer.Drain(c.Request.Context(), limit)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, report)
}

// RequeueOutbox 将 error 事件重置为 pending，等待下次排空（人工重试入口）
// @Summary 重排失败事件
// @Tags 管理
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/admin/outbox/requeue [post]
func (h *Handler) RequeueOutbox(c *gin.Context) {
	n, err := h.outboxRepo.RequeueErrored(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"requeued": n})
}
