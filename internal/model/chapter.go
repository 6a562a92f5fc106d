package model

import "time"

// 章节状态
const (
	ChapterStatusDraft     = "draft"
	ChapterStatusPublished = "published"
)

// Chapter 章节（协同编辑与发布通知的目标实体，仅核心所需字段）
type Chapter struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	BookID    string `gorm:"type:varchar(36);index:idx_chapter_book;not null"`
	AuthorID  string `gorm:"type:varchar(36);index:idx_chapter_author;not null"`
	Title     string `gorm:"type:varchar(255)"`
	Body      string `gorm:"type:text"`
	Status    string `gorm:"type:varchar(16);index;default:draft"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Chapter) TableName() string { return "chapters" }
