package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/collab-core/internal/event"
	"github.com/d60-Lab/collab-core/internal/model"
	"github.com/d60-Lab/collab-core/internal/repository"
	"github.com/d60-Lab/collab-core/pkg/logger"
)

// followerPageSize 收件人分页加载批大小
const followerPageSize = 500

// EventQueue 负责外发盒入队：业务事务内一次持久化写入，扇出交给 Drainer
type EventQueue struct {
	db         *gorm.DB
	outboxRepo repository.OutboxRepository
	trigger    DrainTrigger
}

func NewEventQueue(db *gorm.DB, outboxRepo repository.OutboxRepository, trigger DrainTrigger) *EventQueue {
	if trigger == nil {
		trigger = NoopTrigger{}
	}
	return &EventQueue{db: db, outboxRepo: outboxRepo, trigger: trigger}
}

// QueueEvent 校验并落库一条事件，随后触发排空（不阻塞调用方）
func (q *EventQueue) QueueEvent(ctx context.Context, env event.Envelope) (string, error) {
	e, err := q.buildRecord(env)
	if err != nil {
		return "", err
	}
	if err := q.outboxRepo.Create(ctx, e); err != nil {
		return "", err
	}
	q.trigger.Notify()
	return e.ID, nil
}

// QueueEventTx 事务内入队；提交后调用方应调用 NotifyDrain
func (q *EventQueue) QueueEventTx(tx *gorm.DB, env event.Envelope) (string, error) {
	e, err := q.buildRecord(env)
	if err != nil {
		return "", err
	}
	if err := q.outboxRepo.CreateTx(tx, e); err != nil {
		return "", err
	}
	return e.ID, nil
}

// NotifyDrain 事务提交后的排空触发
func (q *EventQueue) NotifyDrain() { q.trigger.Notify() }

func (q *EventQueue) buildRecord(env event.Envelope) (*model.OutboxEvent, error) {
	// 入队边界校验，坏载荷在生产方即暴露
	if err := event.ValidatePayload(env.Kind, env.Payload); err != nil {
		return nil, err
	}
	recipients, err := json.Marshal(env.Recipients)
	if err != nil {
		return nil, fmt.Errorf("marshal recipients: %w", err)
	}
	return &model.OutboxEvent{
		ID:         uuid.New().String(),
		Kind:       env.Kind,
		EntityType: env.Target.Type,
		EntityID:   env.Target.ID,
		ActorID:    env.ActorID,
		Recipients: recipients,
		Payload:    env.Payload,
		Status:     model.OutboxStatusPending,
		CreatedAt:  time.Now(),
	}, nil
}

// ChapterService 章节发布：事务内推进章节状态并写入外发盒事件。
// cache 可为 nil（关闭关注者缓存）
type ChapterService struct {
	db           *gorm.DB
	chapterRepo  repository.ChapterRepository
	followerRepo repository.BookFollowerRepository
	cache        *FollowerCache
	queue        *EventQueue
}

func NewChapterService(db *gorm.DB, chapterRepo repository.ChapterRepository, followerRepo repository.BookFollowerRepository, cache *FollowerCache, queue *EventQueue) *ChapterService {
	return &ChapterService{db: db, chapterRepo: chapterRepo, followerRepo: followerRepo, cache: cache, queue: queue}
}

// PublishChapter 发布章节。收件人 = 所属书籍的关注者（去掉操作者本人），
// 入队时即确定；通知入队失败不影响发布动作本身
func (s *ChapterService) PublishChapter(ctx context.Context, chapterID string, actor Identity) error {
	chapter, err := s.chapterRepo.GetByID(ctx, chapterID)
	if err != nil {
		return err
	}

	followerIDs, err := s.loadFollowerIDs(ctx, chapter.BookID)
	if err != nil {
		// 尽力而为：收件人查询失败仅记录，不阻塞发布
		logger.Warn("list recipients failed, publish without notifications",
			zap.String("chapter", chapterID), zap.Error(err))
		followerIDs = nil
	}
	recipients := make([]string, 0, len(followerIDs))
	for _, id := range followerIDs {
		if id != actor.UserID {
			recipients = append(recipients, id)
		}
	}

	payload, err := json.Marshal(event.ChapterPublishedPayload{
		BookID:       chapter.BookID,
		ChapterID:    chapter.ID,
		ChapterTitle: chapter.Title,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.chapterRepo.UpdateStatusTx(tx, chapter.ID, model.ChapterStatusPublished); err != nil {
			return err
		}
		env := event.Envelope{
			Kind:       event.KindChapterPublished,
			ActorID:    actor.UserID,
			Target:     event.Target{Type: "chapter", ID: chapter.ID},
			Recipients: recipients,
			Payload:    payload,
		}
		if _, err := s.queue.QueueEventTx(tx, env); err != nil {
			// 通知缺失不应使主动作失败
			logger.Warn("queue chapter.published failed",
				zap.String("chapter", chapter.ID), zap.Error(err))
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.queue.NotifyDrain()
	return nil
}

// loadFollowerIDs 返回书籍的完整关注者 ID 列表，优先走缓存，回源时分页加载并回填
func (s *ChapterService) loadFollowerIDs(ctx context.Context, bookID string) ([]string, error) {
	if s.cache != nil {
		if ids, ok := s.cache.Get(ctx, bookID); ok {
			return ids, nil
		}
	}

	var out []string
	offset := 0
	for {
		followers, err := s.followerRepo.ListFollowers(ctx, bookID, offset, followerPageSize)
		if err != nil {
			return nil, err
		}
		for _, f := range followers {
			out = append(out, f.UserID)
		}
		if len(followers) < followerPageSize {
			break
		}
		offset += followerPageSize
	}

	if s.cache != nil {
		s.cache.Put(ctx, bookID, out)
	}
	return out, nil
}

// FollowBook 关注书籍，重复关注幂等
func (s *ChapterService) FollowBook(ctx context.Context, bookID, userID string) error {
	if err := s.followerRepo.Create(ctx, bookID, userID); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, bookID)
	}
	return nil
}

// UnfollowBook 取消关注，未关注时为空操作
func (s *ChapterService) UnfollowBook(ctx context.Context, bookID, userID string) error {
	if err := s.followerRepo.Delete(ctx, bookID, userID); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, bookID)
	}
	return nil
}
