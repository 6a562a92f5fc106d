package model

import (
	"encoding/json"
	"time"
)

// Notification 用户通知（仅由 Drainer 创建，一个事件对一个收件人至多一条）
// 复合唯一键，避免重复 (user, event)
// ux_notification_user_event = (user_id, event_id)
type Notification struct {
	ID         string          `gorm:"primaryKey;type:varchar(36)"`
	UserID     string          `gorm:"type:varchar(36);index:idx_notification_user;uniqueIndex:ux_notification_user_event;not null"`
	EventID    string          `gorm:"type:varchar(36);uniqueIndex:ux_notification_user_event;not null"`
	Type       string          `gorm:"type:varchar(64);not null"`
	ActorID    string          `gorm:"type:varchar(36)"`
	TargetType string          `gorm:"type:varchar(32)"`
	TargetID   string          `gorm:"type:varchar(36)"`
	Payload    json.RawMessage `gorm:"type:jsonb"`
	IsRead     bool            `gorm:"index:idx_notification_user_read;default:false"`
	CreatedAt  time.Time       `gorm:"index"`
}

func (Notification) TableName() string { return "notifications" }
