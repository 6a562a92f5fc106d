package model

import "time"

// 用户角色
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// User 用户（仅协同核心所需字段）
type User struct {
	ID          string `gorm:"primaryKey;type:varchar(36)"`
	Username    string `gorm:"type:varchar(64);uniqueIndex"`
	Email       string `gorm:"type:varchar(128);uniqueIndex"`
	Password    string `gorm:"type:varchar(128)"`
	DisplayName string `gorm:"type:varchar(64)"`
	Avatar      string `gorm:"type:varchar(255)"`
	Role        string `gorm:"type:varchar(16);default:member"`
	Age         int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (User) TableName() string { return "users" }
