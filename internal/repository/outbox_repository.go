package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/d60-Lab/collab-core/internal/model"
)

type OutboxRepository interface {
	// CreateTx 事务内落库（与业务写入同一事务）
	CreateTx(tx *gorm.DB, e *model.OutboxEvent) error
	Create(ctx context.Context, e *model.OutboxEvent) error
	GetByID(ctx context.Context, id string) (*model.OutboxEvent, error)
	// FetchPending 按创建时间取最旧的 pending 事件
	FetchPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	MarkDone(ctx context.Context, id string) error
	MarkError(ctx context.Context, id string, msg string) error
	// RequeueErrored 将 error 事件重置为 pending（人工重试入口）
	RequeueErrored(ctx context.Context) (int64, error)
}

type outboxRepository struct{ db *gorm.DB }

func NewOutboxRepository(db *gorm.DB) OutboxRepository { return &outboxRepository{db: db} }

func (r *outboxRepository) CreateTx(tx *gorm.DB, e *model.OutboxEvent) error {
	return tx.Create(e).Error
}

func (r *outboxRepository) Create(ctx context.Context, e *model.OutboxEvent) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *outboxRepository) GetByID(ctx context.Context, id string) (*model.OutboxEvent, error) {
	var e model.OutboxEvent
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *outboxRepository) FetchPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	var res []*model.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("status = ?", model.OutboxStatusPending).
		Order("created_at").
		Limit(limit).
		Find(&res).Error
	return res, err
}

func (r *outboxRepository) MarkDone(ctx context.Context, id string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": model.OutboxStatusDone, "processed_at": now, "error": ""}).Error
}

func (r *outboxRepository) MarkError(ctx context.Context, id string, msg string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": model.OutboxStatusError, "processed_at": now, "error": msg}).Error
}

func (r *outboxRepository) RequeueErrored(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.OutboxEvent{}).
		Where("status = ?", model.OutboxStatusError).
		Updates(map[string]any{"status": model.OutboxStatusPending, "error": "", "processed_at": nil})
	return res.RowsAffected, res.Error
}
