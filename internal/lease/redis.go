package lease

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/d60-Lab/collab-core/internal/model"
)

// acquireScript: set-if-absent. Returns "" when the caller won the key,
// otherwise the serialized current holder.
var acquireScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return redis.call('GET', KEYS[1])
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
return ''
`)

// renewScript: set-if-present guarded by owner. Only last_beat changes in the
// stored record; tab_id and since survive so the original tab stays canonical.
// Returns 1 renewed, 0 absent, -1 foreign owner.
var renewScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then return 0 end
local l = cjson.decode(v)
if l.owner_user_id ~= ARGV[1] then return -1 end
l.last_beat = ARGV[2]
redis.call('SET', KEYS[1], cjson.encode(l), 'PX', ARGV[3])
return 1
`)

// releaseScript: delete guarded by owner and tab. Returns 1 deleted,
// 0 absent, -1 foreign owner, -2 tab mismatch.
var releaseScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then return 0 end
local l = cjson.decode(v)
if l.owner_user_id ~= ARGV[1] then return -1 end
if l.tab_id ~= '' and l.tab_id ~= ARGV[2] then return -2 end
redis.call('DEL', KEYS[1])
return 1
`)

// RedisStore implements Store on a shared redis instance, safe across
// horizontally scaled processes.
type RedisStore struct {
	rdb redis.UniversalClient
}

func NewRedisStore(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Acquire(ctx context.Context, key string, lock *model.Lock, ttl time.Duration) (bool, *model.Lock, error) {
	payload, err := json.Marshal(lock)
	if err != nil {
		return false, nil, fmt.Errorf("marshal lock: %w", err)
	}
	res, err := acquireScript.Run(ctx, s.rdb, []string{key}, string(payload), ttl.Milliseconds()).Text()
	if err != nil {
		return false, nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if res == "" {
		return true, nil, nil
	}
	current := &model.Lock{}
	if err := json.Unmarshal([]byte(res), current); err != nil {
		return false, nil, fmt.Errorf("decode holder for %s: %w", key, err)
	}
	return false, current, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (*model.Lock, error) {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	lock := &model.Lock{}
	if err := json.Unmarshal(raw, lock); err != nil {
		return nil, fmt.Errorf("decode lock %s: %w", key, err)
	}
	return lock, nil
}

func (s *RedisStore) Renew(ctx context.Context, key, userID string, ttl time.Duration) (bool, error) {
	beat := time.Now().UTC().Format(time.RFC3339Nano)
	n, err := renewScript.Run(ctx, s.rdb, []string{key}, userID, beat, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("renew %s: %w", key, err)
	}
	return n == 1, nil
}

func (s *RedisStore) Release(ctx context.Context, key, userID, tabID string) (bool, error) {
	n, err := releaseScript.Run(ctx, s.rdb, []string{key}, userID, tabID).Int()
	if err != nil {
		return false, fmt.Errorf("release %s: %w", key, err)
	}
	return n == 1, nil
}

func (s *RedisStore) ForceRelease(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("force release %s: %w", key, err)
	}
	return nil
}
