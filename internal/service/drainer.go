package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/d60-Lab/collab-core/internal/event"
	"github.com/d60-Lab/collab-core/internal/model"
	"github.com/d60-Lab/collab-core/internal/repository"
	"github.com/d60-Lab/collab-core/internal/stream"
	"github.com/d60-Lab/collab-core/pkg/logger"
)

// DrainReport 一次排空的统计结果
type DrainReport struct {
	Polled  int `json:"polled"`
	Created int `json:"created"`
	Errors  int `json:"errors"`
}

// NotificationPing 推给在线客户端的轻量提示，仅够前端决定是否拉取
type NotificationPing struct {
	NotificationID string       `json:"notification_id"`
	EventID        string       `json:"event_id"`
	Type           string       `json:"type"`
	Target         event.Target `json:"target"`
}

// Drainer 将 pending 外发盒事件扇出为每收件人一条通知，并经 Publisher 推送提示。
// 事件间互相隔离：单个事件失败只标记该事件为 error，继续处理后续事件
type Drainer struct {
	outboxRepo repository.OutboxRepository
	notifRepo  repository.NotificationRepository
	publisher  stream.Publisher
}

func NewDrainer(outboxRepo repository.OutboxRepository, notifRepo repository.NotificationRepository, publisher stream.Publisher) *Drainer {
	return &Drainer{outboxRepo: outboxRepo, notifRepo: notifRepo, publisher: publisher}
}

// Drain 取最旧的至多 limit 条 pending 事件逐个扇出。
// 每个事件的状态推进独立提交，调用中途失败不回滚已完成的事件
func (d *Drainer) Drain(ctx context.Context, limit int) (DrainReport, error) {
	if limit <= 0 {
		limit = 100
	}
	var report DrainReport

	events, err := d.outboxRepo.FetchPending(ctx, limit)
	if err != nil {
		return report, err
	}
	report.Polled = len(events)

	for _, e := range events {
		created, err := d.expand(ctx, e)
		if err != nil {
			report.Errors++
			logger.Error("outbox event expansion failed",
				zap.String("event", e.ID),
				zap.String("kind", e.Kind),
				zap.Error(err))
			if mErr := d.outboxRepo.MarkError(ctx, e.ID, err.Error()); mErr != nil {
				logger.Error("mark outbox error failed", zap.String("event", e.ID), zap.Error(mErr))
			}
			continue
		}
		report.Created += created
		if err := d.outboxRepo.MarkDone(ctx, e.ID); err != nil {
			report.Errors++
			logger.Error("mark outbox done failed", zap.String("event", e.ID), zap.Error(err))
		}
	}
	return report, nil
}

// expand 单个事件的扇出：校验载荷 -> 批量写通知（重复收件人跳过）-> 逐收件人推提示
func (d *Drainer) expand(ctx context.Context, e *model.OutboxEvent) (int, error) {
	if err := event.ValidatePayload(e.Kind, e.Payload); err != nil {
		return 0, err
	}
	recipients, err := e.RecipientList()
	if err != nil {
		return 0, err
	}
	if len(recipients) == 0 {
		return 0, nil
	}

	now := time.Now()
	rows := make([]model.Notification, 0, len(recipients))
	for _, uid := range recipients {
		rows = append(rows, model.Notification{
			ID:         uuid.New().String(),
			UserID:     uid,
			EventID:    e.ID,
			Type:       e.Kind,
			ActorID:    e.ActorID,
			TargetType: e.EntityType,
			TargetID:   e.EntityID,
			Payload:    e.Payload,
			CreatedAt:  now,
		})
	}
	written, err := d.notifRepo.CreateBatch(ctx, rows)
	if err != nil {
		return 0, err
	}

	target := event.Target{Type: e.EntityType, ID: e.EntityID}
	for _, row := range rows {
		ping := NotificationPing{
			NotificationID: row.ID,
			EventID:        e.ID,
			Type:           e.Kind,
			Target:         target,
		}
		if err := d.publisher.PublishUser(row.UserID, "notification", ping); err != nil {
			return int(written), err
		}
	}
	return int(written), nil
}
