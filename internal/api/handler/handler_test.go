package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/d60-Lab/collab-core/internal/api/handler"
	"github.com/d60-Lab/collab-core/internal/api/middleware"
	"github.com/d60-Lab/collab-core/internal/api/router"
	"github.com/d60-Lab/collab-core/internal/config"
	"github.com/d60-Lab/collab-core/internal/lease"
	"github.com/d60-Lab/collab-core/internal/model"
	"github.com/d60-Lab/collab-core/internal/repository"
	"github.com/d60-Lab/collab-core/internal/service"
	"github.com/d60-Lab/collab-core/internal/stream"
)

const testSecret = "test-secret"

type testEnv struct {
	engine       *httpEngine
	mr           *miniredis.Miniredis
	db           *gorm.DB
	broker       *stream.Broker
	queue        *service.EventQueue
	chapterRepo  repository.ChapterRepository
	followerRepo repository.BookFollowerRepository
	notifRepo    repository.NotificationRepository
}

type httpEngine struct{ h http.Handler }

func (e *httpEngine) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.h.ServeHTTP(w, req)
	return w
}

func newTestEnv(t *testing.T, tweak func(*config.Config)) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{}, &model.Chapter{}, &model.BookFollower{},
		&model.OutboxEvent{}, &model.Notification{},
	))

	outboxRepo := repository.NewOutboxRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	chapterRepo := repository.NewChapterRepository(db)
	followerRepo := repository.NewBookFollowerRepository(db)

	lockService := service.NewSoftLockService(lease.NewRedisStore(client), "softlock:", 180*time.Second)
	broker := stream.NewBroker(8)
	drainer := service.NewDrainer(outboxRepo, notifRepo, broker)
	queue := service.NewEventQueue(db, outboxRepo, service.NoopTrigger{})
	followerCache := service.NewFollowerCache(client, time.Minute)
	chapterService := service.NewChapterService(db, chapterRepo, followerRepo, followerCache, queue)

	cfg := &config.Config{
		Server:    config.ServerConfig{Mode: "release"},
		JWT:       config.JWTConfig{Secret: testSecret},
		RateLimit: config.RateLimitConfig{RPS: 1000, Burst: 1000},
		Stream:    config.StreamConfig{KeepaliveInterval: 50 * time.Millisecond, ClientBuffer: 8},
	}
	if tweak != nil {
		tweak(cfg)
	}

	h := handler.New(lockService, chapterService, drainer, outboxRepo, notifRepo, broker, cfg.Stream.KeepaliveInterval)
	engine := router.New(cfg, h)

	return &testEnv{
		engine:       &httpEngine{h: engine},
		mr:           mr,
		db:           db,
		broker:       broker,
		queue:        queue,
		chapterRepo:  chapterRepo,
		followerRepo: followerRepo,
		notifRepo:    notifRepo,
	}
}

func signToken(t *testing.T, sub, name, role string) string {
	t.Helper()
	claims := middleware.IdentityClaims{
		DisplayName: name,
		Role:        role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}
