package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/d60-Lab/collab-core/internal/lease"
	"github.com/d60-Lab/collab-core/internal/service"
)

// Soft-lock throughput under contention: W workers heartbeat-loop over R
// resources against a real redis, recording acquire_or_beat latency and the
// share of contended calls.
func main() {
	const (
		workers   = 50
		resources = 10
		calls     = 2000
		ttl       = 30 * time.Second
	)

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		panic(fmt.Sprintf("redis at %s: %v", redisAddr, err))
	}

	svc := service.NewSoftLockService(lease.NewRedisStore(client), "bench:softlock:", ttl)

	var (
		mu        sync.Mutex
		durations []time.Duration
		contended int
	)
	var wg sync.WaitGroup
	start := time.Now()
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(int64(id)))
			ident := service.Identity{
				UserID:      fmt.Sprintf("user_%d", id),
				DisplayName: fmt.Sprintf("user_%d", id),
				TabID:       fmt.Sprintf("tab_%d", id),
			}
			local := make([]time.Duration, 0, calls)
			localContended := 0
			for i := 0; i < calls; i++ {
				res := fmt.Sprintf("ch_%d", rnd.Intn(resources))
				t0 := time.Now()
				out, err := svc.AcquireOrBeat(ctx, "chapter", res, ident)
				if err != nil {
					panic(err)
				}
				local = append(local, time.Since(t0))
				if !out.Mine {
					localContended++
				} else if rnd.Float64() < 0.2 {
					_ = svc.Release(ctx, "chapter", res, ident)
				}
			}
			mu.Lock()
			durations = append(durations, local...)
			contended += localContended
			mu.Unlock()
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	total := workers * calls
	fmt.Printf("softlock: %d workers x %d calls over %d resources in %v (%.0f ops/s)\n",
		workers, calls, resources, elapsed, float64(total)/elapsed.Seconds())
	fmt.Printf("contended=%d (%.1f%%) avg=%v p95=%v p99=%v\n",
		contended, 100*float64(contended)/float64(total),
		avg(durations), pct(durations, 0.95), pct(durations, 0.99))
}

func avg(vs []time.Duration) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range vs {
		sum += v
	}
	return sum / time.Duration(len(vs))
}

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), vs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
