package model

import "time"

// BookFollower 书籍关注关系（发布通知的收件人来源）
// 复合唯一键，避免重复关注
// idx_book_follower_pair = (book_id, user_id)
type BookFollower struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	BookID    string `gorm:"type:varchar(36);index:idx_book_follower_book;index:idx_book_follower_pair,unique;not null"`
	UserID    string `gorm:"type:varchar(36);not null;index:idx_book_follower_pair,unique"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (BookFollower) TableName() string { return "book_followers" }
