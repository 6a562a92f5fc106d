package stream

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForEvent(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case ev := <-c.C():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestRedisBridgeRelaysAcrossBrokers(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb1 := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rdb2 := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb1.Close(); _ = rdb2.Close() })

	// two processes, each with its own local broker
	brokerA := NewBroker(8)
	brokerB := NewBroker(8)
	bridgeA := NewRedisBridge(rdb1, brokerA, "test:stream")
	bridgeB := NewRedisBridge(rdb2, brokerB, "test:stream")

	stopA := bridgeA.Run(context.Background())
	defer stopA()
	stopB := bridgeB.Run(context.Background())
	defer stopB()

	clientOnB := brokerB.Subscribe("alice")

	// give the subscriptions a moment to register
	time.Sleep(50 * time.Millisecond)

	// a publish issued on process A reaches the client connected to process B
	require.NoError(t, bridgeA.PublishUser("alice", "notification", map[string]string{"id": "n1"}))

	ev := waitForEvent(t, clientOnB)
	assert.Equal(t, "notification", ev.Name)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(ev.Data, &payload))
	assert.Equal(t, "n1", payload["id"])
}

func TestRedisBridgeBroadcast(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	broker := NewBroker(8)
	bridge := NewRedisBridge(rdb, broker, "test:stream")
	stop := bridge.Run(context.Background())
	defer stop()

	alice := broker.Subscribe("alice")
	bob := broker.Subscribe("bob")
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, bridge.Broadcast("announce", map[string]string{"msg": "hi"}))

	assert.Equal(t, "announce", waitForEvent(t, alice).Name)
	assert.Equal(t, "announce", waitForEvent(t, bob).Name)
}
