package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/collab-core/internal/model"
)

type BookFollowerRepository interface {
	Create(ctx context.Context, bookID, userID string) error
	Delete(ctx context.Context, bookID, userID string) error
	ListFollowers(ctx context.Context, bookID string, offset, limit int) ([]*model.BookFollower, error)
}

type bookFollowerRepository struct{ db *gorm.DB }

func NewBookFollowerRepository(db *gorm.DB) BookFollowerRepository {
	return &bookFollowerRepository{db: db}
}

func (r *bookFollowerRepository) Create(ctx context.Context, bookID, userID string) error {
	f := &model.BookFollower{ID: uuid.New().String(), BookID: bookID, UserID: userID}
	// 幂等：重复关注不报错
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(f).Error
}

func (r *bookFollowerRepository) Delete(ctx context.Context, bookID, userID string) error {
	return r.db.WithContext(ctx).
		Where("book_id = ? AND user_id = ?", bookID, userID).
		Delete(&model.BookFollower{}).Error
}

func (r *bookFollowerRepository) ListFollowers(ctx context.Context, bookID string, offset, limit int) ([]*model.BookFollower, error) {
	var res []*model.BookFollower
	err := r.db.WithContext(ctx).Where("book_id = ?", bookID).Offset(offset).Limit(limit).Find(&res).Error
	return res, err
}
