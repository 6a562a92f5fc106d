package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/d60-Lab/collab-core/internal/event"
	"github.com/d60-Lab/collab-core/internal/model"
	"github.com/d60-Lab/collab-core/internal/repository"
	"github.com/d60-Lab/collab-core/internal/stream"
)

func setupDrainDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{}, &model.Chapter{}, &model.BookFollower{},
		&model.OutboxEvent{}, &model.Notification{},
	))
	return db
}

func mustPayload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func chapterEnvelope(t *testing.T, recipients ...string) event.Envelope {
	t.Helper()
	return event.Envelope{
		Kind:       event.KindChapterPublished,
		ActorID:    "author",
		Target:     event.Target{Type: "chapter", ID: "ch1"},
		Recipients: recipients,
		Payload: mustPayload(t, event.ChapterPublishedPayload{
			BookID: "b1", ChapterID: "ch1", ChapterTitle: "第一章",
		}),
	}
}

func TestDrainFansOutOneNotificationPerRecipient(t *testing.T) {
	db := setupDrainDB(t)
	outboxRepo := repository.NewOutboxRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	broker := stream.NewBroker(8)
	d := NewDrainer(outboxRepo, notifRepo, broker)
	queue := NewEventQueue(db, outboxRepo, NoopTrigger{})
	ctx := context.Background()

	u1 := broker.Subscribe("u1")
	u2 := broker.Subscribe("u2")
	u3 := broker.Subscribe("u3")

	eventID, err := queue.QueueEvent(ctx, chapterEnvelope(t, "u1", "u2", "u3"))
	require.NoError(t, err)

	report, err := d.Drain(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, DrainReport{Polled: 1, Created: 3, Errors: 0}, report)

	// exactly one notification row per recipient
	for _, uid := range []string{"u1", "u2", "u3"} {
		rows, err := notifRepo.ListByUser(ctx, uid, false, 0, 10)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, eventID, rows[0].EventID)
		assert.Equal(t, event.KindChapterPublished, rows[0].Type)
		assert.Equal(t, "chapter", rows[0].TargetType)
		assert.Equal(t, "ch1", rows[0].TargetID)
		assert.False(t, rows[0].IsRead)
	}

	e, err := outboxRepo.GetByID(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, model.OutboxStatusDone, e.Status)
	require.NotNil(t, e.ProcessedAt)

	// each connected recipient got one live ping
	for _, c := range []*stream.Client{u1, u2, u3} {
		select {
		case ev := <-c.C():
			assert.Equal(t, "notification", ev.Name)
			var ping NotificationPing
			require.NoError(t, json.Unmarshal(ev.Data, &ping))
			assert.Equal(t, eventID, ping.EventID)
			assert.Equal(t, "ch1", ping.Target.ID)
		default:
			t.Fatalf("client %s got no ping", c.UserID)
		}
	}
}

func TestDrainIdempotent(t *testing.T) {
	db := setupDrainDB(t)
	outboxRepo := repository.NewOutboxRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	d := NewDrainer(outboxRepo, notifRepo, stream.NewBroker(8))
	queue := NewEventQueue(db, outboxRepo, NoopTrigger{})
	ctx := context.Background()

	eventID, err := queue.QueueEvent(ctx, chapterEnvelope(t, "u1", "u2"))
	require.NoError(t, err)

	_, err = d.Drain(ctx, 10)
	require.NoError(t, err)

	// a done event is not picked up again
	report, err := d.Drain(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, DrainReport{}, report)

	// even a forced redelivery creates no duplicate (user, event) rows
	require.NoError(t, db.Model(&model.OutboxEvent{}).
		Where("id = ?", eventID).
		Update("status", model.OutboxStatusPending).Error)
	report, err = d.Drain(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Polled)
	assert.Equal(t, 0, report.Created)

	var cnt int64
	require.NoError(t, db.Model(&model.Notification{}).Count(&cnt).Error)
	assert.EqualValues(t, 2, cnt)
}

func TestDrainZeroRecipientsMarksDone(t *testing.T) {
	db := setupDrainDB(t)
	outboxRepo := repository.NewOutboxRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	d := NewDrainer(outboxRepo, notifRepo, stream.NewBroker(8))
	queue := NewEventQueue(db, outboxRepo, NoopTrigger{})
	ctx := context.Background()

	eventID, err := queue.QueueEvent(ctx, chapterEnvelope(t))
	require.NoError(t, err)

	report, err := d.Drain(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, DrainReport{Polled: 1, Created: 0, Errors: 0}, report)

	e, err := outboxRepo.GetByID(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, model.OutboxStatusDone, e.Status)
}

func TestDrainIsolatesFailuresPerEvent(t *testing.T) {
	db := setupDrainDB(t)
	outboxRepo := repository.NewOutboxRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	d := NewDrainer(outboxRepo, notifRepo, stream.NewBroker(8))
	queue := NewEventQueue(db, outboxRepo, NoopTrigger{})
	ctx := context.Background()

	// bad event first so ordering also proves the good one still completes:
	// inserted directly, bypassing enqueue validation, like a rogue producer
	bad := &model.OutboxEvent{
		ID:         uuid.New().String(),
		Kind:       "bogus.kind",
		EntityType: "chapter",
		EntityID:   "chX",
		Recipients: mustPayload(t, []string{"u1"}),
		Payload:    mustPayload(t, map[string]string{"x": "y"}),
		Status:     model.OutboxStatusPending,
		CreatedAt:  time.Now().Add(-time.Minute),
	}
	require.NoError(t, outboxRepo.Create(ctx, bad))

	goodID, err := queue.QueueEvent(ctx, chapterEnvelope(t, "u1"))
	require.NoError(t, err)

	report, err := d.Drain(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Polled)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Errors)

	badRow, err := outboxRepo.GetByID(ctx, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OutboxStatusError, badRow.Status)
	assert.Contains(t, badRow.Error, "bogus.kind")

	goodRow, err := outboxRepo.GetByID(ctx, goodID)
	require.NoError(t, err)
	assert.Equal(t, model.OutboxStatusDone, goodRow.Status)
}

func TestRequeueErroredEvents(t *testing.T) {
	db := setupDrainDB(t)
	outboxRepo := repository.NewOutboxRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	d := NewDrainer(outboxRepo, notifRepo, stream.NewBroker(8))
	ctx := context.Background()

	bad := &model.OutboxEvent{
		ID:         uuid.New().String(),
		Kind:       "bogus.kind",
		EntityType: "chapter",
		EntityID:   "chX",
		Recipients: mustPayload(t, []string{"u1"}),
		Status:     model.OutboxStatusPending,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, outboxRepo.Create(ctx, bad))
	_, err := d.Drain(ctx, 10)
	require.NoError(t, err)

	n, err := outboxRepo.RequeueErrored(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	row, err := outboxRepo.GetByID(ctx, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OutboxStatusPending, row.Status)
	assert.Empty(t, row.Error)
}

func TestDrainOldestFirstRespectsLimit(t *testing.T) {
	db := setupDrainDB(t)
	outboxRepo := repository.NewOutboxRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	d := NewDrainer(outboxRepo, notifRepo, stream.NewBroker(8))
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	var ids []string
	for i := 0; i < 3; i++ {
		e := &model.OutboxEvent{
			ID:         uuid.New().String(),
			Kind:       event.KindPostCreated,
			EntityType: "post",
			EntityID:   "p1",
			Recipients: mustPayload(t, []string{"u1"}),
			Payload:    mustPayload(t, event.PostCreatedPayload{ThreadID: "t1", PostID: "p1"}),
			Status:     model.OutboxStatusPending,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, outboxRepo.Create(ctx, e))
		ids = append(ids, e.ID)
	}

	report, err := d.Drain(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Polled)

	// the two oldest moved on, the newest is still pending
	for i, id := range ids {
		row, err := outboxRepo.GetByID(ctx, id)
		require.NoError(t, err)
		if i < 2 {
			assert.Equal(t, model.OutboxStatusDone, row.Status)
		} else {
			assert.Equal(t, model.OutboxStatusPending, row.Status)
		}
	}
}
