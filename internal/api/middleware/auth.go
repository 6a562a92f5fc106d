package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/d60-Lab/collab-core/internal/model"
	"github.com/d60-Lab/collab-core/pkg/response"
)

// gin context 注入键
const (
	CtxUserID      = "auth.user_id"
	CtxDisplayName = "auth.display_name"
	CtxAvatar      = "auth.avatar"
	CtxRole        = "auth.role"
)

// IdentityClaims 会话令牌携带的身份信息（认证子系统签发，这里只校验消费）
type IdentityClaims struct {
	DisplayName string `json:"name,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	Role        string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Auth 解析 Bearer JWT 并注入调用方身份；EventSource 不能带请求头，
// 流式端点允许 query 参数 token 兜底
func Auth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		raw := ""
		if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
			raw = strings.TrimPrefix(h, "Bearer ")
		} else if q := c.Query("token"); q != "" {
			raw = q
		}
		if raw == "" {
			response.Unauthorized(c, "missing token")
			return
		}

		claims := &IdentityClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			return key, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
		if err != nil || !token.Valid || claims.Subject == "" {
			response.Unauthorized(c, "invalid token")
			return
		}

		role := claims.Role
		if role == "" {
			role = model.RoleMember
		}
		c.Set(CtxUserID, claims.Subject)
		c.Set(CtxDisplayName, claims.DisplayName)
		c.Set(CtxAvatar, claims.Avatar)
		c.Set(CtxRole, role)
		c.Next()
	}
}

// UserID 读取当前调用方 userId
func UserID(c *gin.Context) string { return c.GetString(CtxUserID) }

// IsPrivileged 管理角色判定（force_release、管理端点）
func IsPrivileged(c *gin.Context) bool { return c.GetString(CtxRole) == model.RoleAdmin }
