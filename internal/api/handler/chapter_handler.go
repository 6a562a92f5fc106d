package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/collab-core/internal/api/middleware"
	"github.com/d60-Lab/collab-core/internal/service"
	"github.com/d60-Lab/collab-core/pkg/response"
)

// PublishChapter 发布章节并为书籍关注者入队通知事件
// @Summary 发布章节
// @Tags 章节
// @Param id path string true "章节ID"
// @Success 200 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/chapters/{id}/publish [post]
func (h *Handler) PublishChapter(c *gin.Context) {
	actor := service.Identity{
		UserID:      middleware.UserID(c),
		DisplayName: c.GetString(middleware.CtxDisplayName),
		Avatar:      c.GetString(middleware.CtxAvatar),
	}
	if err := h.chapterService.PublishChapter(c.Request.Context(), c.Param("id"), actor); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, nil)
}

// FollowBook 关注书籍（成为发布通知收件人）
// @Summary 关注书籍
// @Tags 章节
// @Param id path string true "书籍ID"
// @Success 200 {object} response.Response
// @Router /api/v1/books/{id}/follow [post]
func (h *Handler) FollowBook(c *gin.Context) {
	if err := h.chapterService.FollowBook(c.Request.Context(), c.Param("id"), middleware.UserID(c)); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, nil)
}

// UnfollowBook 取消关注书籍
// @Summary 取消关注书籍
// @Tags 章节
// @Param id path string true "书籍ID"
// @Success 200 {object} response.Response
// @Router /api/v1/books/{id}/follow [delete]
func (h *Handler) UnfollowBook(c *gin.Context) {
	if err := h.chapterService.UnfollowBook(c.Request.Context(), c.Param("id"), middleware.UserID(c)); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, nil)
}
