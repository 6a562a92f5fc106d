package model

import "time"

// Lock 软锁记录（只存在于 redis，按 resource key 存储，TTL 到期自动消失）
// 不存在即未锁定；tabId 区分同一用户的多个浏览器标签页
type Lock struct {
	ResourceID       string    `json:"resource_id"`
	OwnerUserID      string    `json:"owner_user_id"`
	OwnerDisplayName string    `json:"owner_display_name"`
	OwnerAvatar      string    `json:"owner_avatar"`
	TabID            string    `json:"tab_id"`
	Since            time.Time `json:"since"`
	LastBeat         time.Time `json:"last_beat"`
}

// LockOwnerView 返回给前端的持锁人信息（脱敏后的冗余字段）
type LockOwnerView struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Avatar      string    `json:"avatar"`
	Since       time.Time `json:"since"`
	LastBeat    time.Time `json:"last_beat"`
}

// OwnerView 导出持锁人视图
func (l *Lock) OwnerView() *LockOwnerView {
	if l == nil {
		return nil
	}
	return &LockOwnerView{
		UserID:      l.OwnerUserID,
		DisplayName: l.OwnerDisplayName,
		Avatar:      l.OwnerAvatar,
		Since:       l.Since,
		LastBeat:    l.LastBeat,
	}
}
