package main

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/d60-Lab/collab-core/internal/stream"
)

// Measures broker fan-out latency: publish one ping to N connected clients
// and record enqueue-to-receive time per client.
func main() {
	const (
		clients  = 2000
		rounds   = 200
		buffer   = 64
		interval = 2 * time.Millisecond
	)

	broker := stream.NewBroker(buffer)

	var wg sync.WaitGroup
	latencies := make([][]time.Duration, clients)
	subs := make([]*stream.Client, clients)
	for i := 0; i < clients; i++ {
		subs[i] = broker.Subscribe(fmt.Sprintf("user_%d", i))
		latencies[i] = make([]time.Duration, 0, rounds)
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for ev := range subs[idx].C() {
				var sent int64
				// payload is the publish timestamp in nanos
				if _, err := fmt.Sscanf(string(ev.Data), "%d", &sent); err != nil {
					continue
				}
				latencies[idx] = append(latencies[idx], time.Duration(time.Now().UnixNano()-sent))
			}
		}(i)
	}

	start := time.Now()
	for r := 0; r < rounds; r++ {
		_ = broker.Broadcast("ping", time.Now().UnixNano())
		time.Sleep(interval)
	}
	// allow buffered events to drain before closing
	time.Sleep(200 * time.Millisecond)
	for _, s := range subs {
		broker.Unsubscribe(s.ID)
	}
	wg.Wait()
	elapsed := time.Since(start)

	var all []time.Duration
	for _, l := range latencies {
		all = append(all, l...)
	}
	delivered := len(all)
	expected := clients * rounds

	fmt.Printf("broker fan-out: %d clients x %d rounds in %v\n", clients, rounds, elapsed)
	fmt.Printf("delivered=%d/%d (%.2f%%) avg=%v p95=%v p99=%v\n",
		delivered, expected, 100*float64(delivered)/float64(expected),
		avg(all), pct(all, 0.95), pct(all, 0.99))
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
