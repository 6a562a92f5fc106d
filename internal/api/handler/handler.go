package handler

import (
	"time"

	"github.com/d60-Lab/collab-core/internal/repository"
	"github.com/d60-Lab/collab-core/internal/service"
	"github.com/d60-Lab/collab-core/internal/stream"
)

// Handler 聚合各端点依赖
type Handler struct {
	lockService    service.SoftLockService
	chapterService *service.ChapterService
	drainer        *service.Drainer
	outboxRepo     repository.OutboxRepository
	notifRepo      repository.NotificationRepository
	broker         *stream.Broker
	keepalive      time.Duration
}

func New(
	lockService service.SoftLockService,
	chapterService *service.ChapterService,
	drainer *service.Drainer,
	outboxRepo repository.OutboxRepository,
	notifRepo repository.NotificationRepository,
	broker *stream.Broker,
	keepalive time.Duration,
) *Handler {
	if keepalive <= 0 {
		keepalive = 25 * time.Second
	}
	return &Handler{
		lockService:    lockService,
		chapterService: chapterService,
		drainer:        drainer,
		outboxRepo:     outboxRepo,
		notifRepo:      notifRepo,
		broker:         broker,
		keepalive:      keepalive,
	}
}
