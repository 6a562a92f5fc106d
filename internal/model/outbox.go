package model

import (
	"encoding/json"
	"time"
)

// Outbox 事件状态
const (
	OutboxStatusPending = "pending"
	OutboxStatusDone    = "done"
	OutboxStatusError   = "error"
)

// OutboxEvent 事件外发盒：业务事务内落库，Drainer 负责扇出为通知
// 状态只由 Drainer 推进（pending -> done/error），其余场景只追加
type OutboxEvent struct {
	ID          string          `gorm:"primaryKey;type:varchar(36)"`
	Kind        string          `gorm:"type:varchar(64);index:idx_outbox_kind;not null"`
	EntityType  string          `gorm:"type:varchar(32);not null"`
	EntityID    string          `gorm:"type:varchar(36);not null"`
	ActorID     string          `gorm:"type:varchar(36)"`
	Recipients  json.RawMessage `gorm:"type:jsonb"` // 收件人 userId 数组，入队时即确定
	Payload     json.RawMessage `gorm:"type:jsonb"`
	Status      string          `gorm:"type:varchar(16);index:idx_outbox_status;default:pending"`
	Error       string          `gorm:"type:text"`
	ProcessedAt *time.Time
	CreatedAt   time.Time `gorm:"index"`
}

func (OutboxEvent) TableName() string { return "outbox_events" }

// RecipientList 解出收件人列表；空字段视为无收件人
func (e *OutboxEvent) RecipientList() ([]string, error) {
	if len(e.Recipients) == 0 {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(e.Recipients, &out); err != nil {
		return nil, err
	}
	return out, nil
}
