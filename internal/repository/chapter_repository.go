package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/collab-core/internal/model"
)

type ChapterRepository interface {
	Create(ctx context.Context, c *model.Chapter) error
	GetByID(ctx context.Context, id string) (*model.Chapter, error)
	// UpdateStatusTx 事务内推进章节状态（与 outbox 落库同一事务）
	UpdateStatusTx(tx *gorm.DB, id, status string) error
}

type chapterRepository struct{ db *gorm.DB }

func NewChapterRepository(db *gorm.DB) ChapterRepository { return &chapterRepository{db: db} }

func (r *chapterRepository) Create(ctx context.Context, c *model.Chapter) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *chapterRepository) GetByID(ctx context.Context, id string) (*model.Chapter, error) {
	var c model.Chapter
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *chapterRepository) UpdateStatusTx(tx *gorm.DB, id, status string) error {
	return tx.Model(&model.Chapter{}).Where("id = ?", id).Update("status", status).Error
}
