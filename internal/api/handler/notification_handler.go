package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/collab-core/internal/api/middleware"
	"github.com/d60-Lab/collab-core/pkg/response"
)

// ListNotifications 查询当前用户通知
// @Summary 通知列表
// @Tags 通知
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Param unread query bool false "仅未读"
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/notifications [get]
func (h *Handler) ListNotifications(c *gin.Context) {
	userID := middleware.UserID(c)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	onlyUnread := c.Query("unread") == "true"
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	list, err := h.notifRepo.ListByUser(c.Request.Context(), userID, onlyUnread, (page-1)*pageSize, pageSize)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "list": list})
}

// UnreadCount 未读数
// @Summary 未读通知数
// @Tags 通知
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/notifications/unread_count [get]
func (h *Handler) UnreadCount(c *gin.Context) {
	cnt, err := h.notifRepo.CountUnread(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"count": cnt})
}

type markReadRequest struct {
	IDs []string `json:"ids" binding:"required,min=1"`
}

// MarkRead 标记已读
// @Summary 标记通知已读
// @Tags 通知
// @Accept json
// @Param request body markReadRequest true "通知 id 列表"
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/notifications/read [post]
func (h *Handler) MarkRead(c *gin.Context) {
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	n, err := h.notifRepo.MarkRead(c.Request.Context(), middleware.UserID(c), req.IDs)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"updated": n})
}

// MarkAllRead 全部标记已读
// @Summary 全部通知已读
// @Tags 通知
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/notifications/read_all [post]
func (h *Handler) MarkAllRead(c *gin.Context) {
	n, err := h.notifRepo.MarkAllRead(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"updated": n})
}
