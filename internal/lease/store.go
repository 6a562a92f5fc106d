// Package lease abstracts the shared TTL'd key-value cache backing the soft
// lock protocol. Every operation is atomic on the store side; callers never
// do read-modify-write themselves.
package lease

import (
	"context"
	"time"

	"github.com/d60-Lab/collab-core/internal/model"
)

// Store is the lease-store contract. One value per key at most; absence of a
// key means unlocked. Values expire on their own via TTL.
type Store interface {
	// Acquire sets the lock if the key is absent. Returns ok=true when the
	// caller won the key; otherwise the current holder is returned untouched.
	Acquire(ctx context.Context, key string, lock *model.Lock, ttl time.Duration) (ok bool, current *model.Lock, err error)

	// Get reads the current lock without touching TTL or ownership.
	// Returns nil when the key is absent.
	Get(ctx context.Context, key string) (*model.Lock, error)

	// Renew refreshes TTL and last-beat, guarded by owner identity. The stored
	// tab id and acquisition time are preserved. ok=false when the key is
	// absent or owned by someone else.
	Renew(ctx context.Context, key, userID string, ttl time.Duration) (ok bool, err error)

	// Release deletes the lock only when userID owns it and the stored tab id
	// is empty or equals tabID. Absent key or mismatch is a no-op, not an error.
	Release(ctx context.Context, key, userID, tabID string) (released bool, err error)

	// ForceRelease unconditionally deletes the key.
	ForceRelease(ctx context.Context, key string) error
}
