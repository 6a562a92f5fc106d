package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/collab-core/internal/api/middleware"
	"github.com/d60-Lab/collab-core/internal/model"
	"github.com/d60-Lab/collab-core/internal/service"
	"github.com/d60-Lab/collab-core/pkg/response"
)

// 锁动作
const (
	actionAcquireOrBeat = "acquire_or_beat"
	actionRelease       = "release"
	actionForceRelease  = "force_release"
	actionStatus        = "status"
)

type lockRequest struct {
	Resource string `json:"resource" binding:"required,resourcekind"`
	ID       string `json:"id" binding:"required"`
	Action   string `json:"action" binding:"required,oneof=acquire_or_beat release force_release status"`
	TabID    string `json:"tab_id"`
}

// lockResponse 锁端点响应体（423 时 ok=false 并携带持锁人）
type lockResponse struct {
	OK       bool                 `json:"ok"`
	Locked   bool                 `json:"locked"`
	Mine     bool                 `json:"mine"`
	LockedBy *model.LockOwnerView `json:"locked_by,omitempty"`
}

// Lock 软锁端点：抢锁/心跳/释放/强制释放/查询
// @Summary 章节软锁操作
// @Tags 协同
// @Accept json
// @Produce json
// @Param request body lockRequest true "锁操作"
// @Success 200 {object} lockResponse
// @Failure 400 {object} response.Response
// @Failure 423 {object} lockResponse
// @Router /api/v1/lock [post]
func (h *Handler) Lock(c *gin.Context) {
	var req lockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ident := service.Identity{
		UserID:      middleware.UserID(c),
		DisplayName: c.GetString(middleware.CtxDisplayName),
		Avatar:      c.GetString(middleware.CtxAvatar),
		TabID:       req.TabID,
	}
	ctx := c.Request.Context()

	switch req.Action {
	case actionAcquireOrBeat:
		res, err := h.lockService.AcquireOrBeat(ctx, req.Resource, req.ID, ident)
		if err != nil {
			response.InternalError(c, err)
			return
		}
		if !res.Mine {
			// 423：他人持锁，带上持锁人供前端展示
			c.JSON(http.StatusLocked, lockResponse{OK: false, Locked: true, Mine: false, LockedBy: res.LockedBy})
			return
		}
		c.JSON(http.StatusOK, lockResponse{OK: true, Locked: true, Mine: true, LockedBy: res.LockedBy})

	case actionStatus:
		res, err := h.lockService.Status(ctx, req.Resource, req.ID, ident.UserID)
		if err != nil {
			response.InternalError(c, err)
			return
		}
		c.JSON(http.StatusOK, lockResponse{OK: true, Locked: res.Locked, Mine: res.Mine, LockedBy: res.LockedBy})

	case actionRelease:
		if err := h.lockService.Release(ctx, req.Resource, req.ID, ident); err != nil {
			response.InternalError(c, err)
			return
		}
		c.JSON(http.StatusOK, lockResponse{OK: true, Locked: false, Mine: false})

	case actionForceRelease:
		err := h.lockService.ForceRelease(ctx, req.Resource, req.ID, middleware.IsPrivileged(c))
		if errors.Is(err, service.ErrNotPrivileged) {
			response.Forbidden(c, err.Error())
			return
		}
		if err != nil {
			response.InternalError(c, err)
			return
		}
		c.JSON(http.StatusOK, lockResponse{OK: true, Locked: false, Mine: false})
	}
}
