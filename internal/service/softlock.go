package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/d60-Lab/collab-core/internal/lease"
	"github.com/d60-Lab/collab-core/internal/model"
)

var (
	// ErrNotPrivileged 非特权用户调用强制解锁
	ErrNotPrivileged = errors.New("force release requires privileged caller")
)

// Identity 调用方身份（来自认证中间件，tabId 区分同一用户的多个标签页）
type Identity struct {
	UserID      string
	DisplayName string
	Avatar      string
	TabID       string
}

// LockResult 锁操作结果
type LockResult struct {
	Locked   bool                 `json:"locked"`
	Mine     bool                 `json:"mine"`
	LockedBy *model.LockOwnerView `json:"locked_by,omitempty"`
}

// SoftLockService 软锁协议：租约式咨询锁，不在存储层拦截写入，
// 仅用于编辑端协调；崩溃的会话靠 TTL 自愈，心跳间隔应远小于 TTL（约 1:4）
type SoftLockService interface {
	// AcquireOrBeat 抢锁或续约。锁空闲则创建；本人持有（任一标签页）则续约，
	// 不覆盖记录中的 tabId；他人持有则返回 Mine=false 与持锁人信息
	AcquireOrBeat(ctx context.Context, resource, id string, ident Identity) (*LockResult, error)
	// Status 只读查询，不影响 TTL 与归属
	Status(ctx context.Context, resource, id, userID string) (*LockResult, error)
	// Release 持有者释放；非持有者或 tabId 不匹配为无操作
	Release(ctx context.Context, resource, id string, ident Identity) error
	// ForceRelease 无条件删除，仅限特权调用方（卡死会话的兜底恢复）
	ForceRelease(ctx context.Context, resource, id string, privileged bool) error
}

type softLockService struct {
	store lease.Store
	ttl   time.Duration
	// key 前缀，与其它 redis 使用方隔离
	prefix string
}

func NewSoftLockService(store lease.Store, prefix string, ttl time.Duration) SoftLockService {
	if ttl <= 0 {
		ttl = 180 * time.Second
	}
	if prefix == "" {
		prefix = "softlock:"
	}
	return &softLockService{store: store, ttl: ttl, prefix: prefix}
}

func (s *softLockService) key(resource, id string) string {
	return fmt.Sprintf("%s%s:%s", s.prefix, resource, id)
}

func (s *softLockService) AcquireOrBeat(ctx context.Context, resource, id string, ident Identity) (*LockResult, error) {
	key := s.key(resource, id)
	now := time.Now().UTC()
	lock := &model.Lock{
		ResourceID:       id,
		OwnerUserID:      ident.UserID,
		OwnerDisplayName: ident.DisplayName,
		OwnerAvatar:      ident.Avatar,
		TabID:            ident.TabID,
		Since:            now,
		LastBeat:         now,
	}

	ok, current, err := s.store.Acquire(ctx, key, lock, s.ttl)
	if err != nil {
		return nil, err
	}
	if ok {
		return &LockResult{Locked: true, Mine: true, LockedBy: lock.OwnerView()}, nil
	}

	if current.OwnerUserID == ident.UserID {
		// 本人任一标签页心跳均续约；记录中的 tabId 保持首个标签页
		renewed, err := s.store.Renew(ctx, key, ident.UserID, s.ttl)
		if err != nil {
			return nil, err
		}
		if !renewed {
			// 续约窗口内恰好过期，按新锁重新抢占
			ok, current, err = s.store.Acquire(ctx, key, lock, s.ttl)
			if err != nil {
				return nil, err
			}
			if !ok {
				return &LockResult{Locked: true, Mine: false, LockedBy: current.OwnerView()}, nil
			}
		}
		return &LockResult{Locked: true, Mine: true, LockedBy: lock.OwnerView()}, nil
	}

	return &LockResult{Locked: true, Mine: false, LockedBy: current.OwnerView()}, nil
}

func (s *softLockService) Status(ctx context.Context, resource, id, userID string) (*LockResult, error) {
	lock, err := s.store.Get(ctx, s.key(resource, id))
	if err != nil {
		return nil, err
	}
	if lock == nil {
		return &LockResult{Locked: false, Mine: false}, nil
	}
	return &LockResult{
		Locked:   true,
		Mine:     lock.OwnerUserID == userID,
		LockedBy: lock.OwnerView(),
	}, nil
}

func (s *softLockService) Release(ctx context.Context, resource, id string, ident Identity) error {
	_, err := s.store.Release(ctx, s.key(resource, id), ident.UserID, ident.TabID)
	return err
}

func (s *softLockService) ForceRelease(ctx context.Context, resource, id string, privileged bool) error {
	// 权限校验先于任何存储变更
	if !privileged {
		return ErrNotPrivileged
	}
	return s.store.ForceRelease(ctx, s.key(resource, id))
}
