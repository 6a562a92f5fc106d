package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/d60-Lab/collab-core/internal/event"
	"github.com/d60-Lab/collab-core/internal/model"
	"github.com/d60-Lab/collab-core/internal/repository"
	"github.com/d60-Lab/collab-core/internal/service"
	"github.com/d60-Lab/collab-core/internal/stream"
)

// Measures outbox drain throughput: queue EVENTS pending events carrying
// RECIPIENTS recipients each, then time Drain batches until the table is empty.
func main() {
	events := envInt("EVENTS", 500)
	recipients := envInt("RECIPIENTS", 200)
	batch := envInt("BATCH", 100)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		panic(err)
	}
	if err := db.AutoMigrate(&model.OutboxEvent{}, &model.Notification{}); err != nil {
		panic(err)
	}

	outboxRepo := repository.NewOutboxRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	broker := stream.NewBroker(64)
	drainer := service.NewDrainer(outboxRepo, notifRepo, broker)
	queue := service.NewEventQueue(db, outboxRepo, service.NoopTrigger{})

	ctx := context.Background()
	recs := make([]string, recipients)
	for i := range recs {
		recs[i] = fmt.Sprintf("user_%d", i)
	}
	payload, _ := json.Marshal(event.ChapterPublishedPayload{
		BookID: "b1", ChapterID: "ch1", ChapterTitle: "bench",
	})
	for i := 0; i < events; i++ {
		if _, err := queue.QueueEvent(ctx, event.Envelope{
			Kind:       event.KindChapterPublished,
			ActorID:    "author",
			Target:     event.Target{Type: "chapter", ID: fmt.Sprintf("ch_%d", i)},
			Recipients: recs,
			Payload:    payload,
		}); err != nil {
			panic(err)
		}
	}

	var batches []time.Duration
	var created int
	start := time.Now()
	for {
		st := time.Now()
		report, err := drainer.Drain(ctx, batch)
		if err != nil {
			panic(err)
		}
		if report.Polled == 0 {
			break
		}
		batches = append(batches, time.Since(st))
		created += report.Created
	}
	elapsed := time.Since(start)

	rows := float64(created)
	fmt.Printf("EVENTS=%d RECIPIENTS=%d BATCH=%d\n", events, recipients, batch)
	fmt.Printf("drained %d notification rows in %v (%.0f rows/s)\n",
		created, elapsed, rows/elapsed.Seconds())
	fmt.Printf("per batch: avg=%v p95=%v p99=%v\n", avg(batches), pct(batches, 0.95), pct(batches, 0.99))
}

func envInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			return v
		}
	}
	return def
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
