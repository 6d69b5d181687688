package main

import (
	"fmt"
	"sync"
	"time"

	cache "github.com/krisalay/ttl-cache"
)

// ================= BENCHMARK =================

func main() {
	fmt.Println("\n================ CACHE LOAD BENCHMARK =================")

	// ---------------- Cache Config ----------------
	const (
		shards        = 16
		preloadKeys   = 100000
		goroutines    = 200
		opsPerG       = 5000
		writeEvery    = 20 // one Set per this many ops
		sweepInterval = 100 * time.Millisecond
	)

	fmt.Println("CONFIG")
	fmt.Println("---------------------------------")
	fmt.Println("Shards        :", shards)
	fmt.Println("Preload Keys  :", preloadKeys)
	fmt.Println("Goroutines    :", goroutines)
	fmt.Println("Ops/Goroutine :", opsPerG)
	fmt.Println("Write Ratio   :", fmt.Sprintf("1/%d", writeEvery))
	fmt.Println("Sweep Interval:", sweepInterval)
	fmt.Println("---------------------------------")

	c := cache.New(cache.Config{
		Shards:        shards,
		SweepInterval: sweepInterval,
	})
	defer c.Close()

	// ---------------- Preload Cache ----------------
	fmt.Println("Preloading cache...")
	keys := make([]string, preloadKeys)
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%d", i)
		// A quarter of the keys expire during the run and feed the sweeper.
		ttl := time.Duration(0)
		if i%4 == 0 {
			ttl = 200 * time.Millisecond
		}
		_ = c.Set(keys[i], i, ttl)
	}
	fmt.Println("Preload complete.")

	// ---------------- Load Test ----------------
	fmt.Println("Running concurrency benchmark...")

	start := time.Now()

	var hits, misses sync.Map
	wg := sync.WaitGroup{}
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			h, m := 0, 0
			for j := 0; j < opsPerG; j++ {
				key := keys[(id*opsPerG+j)%preloadKeys]
				if j%writeEvery == 0 {
					_ = c.Set(key, j, time.Second)
					continue
				}
				if _, ok := c.Get(key); ok {
					h++
				} else {
					m++
				}
			}
			hits.Store(id, h)
			misses.Store(id, m)
		}(i)
	}

	wg.Wait()

	duration := time.Since(start)
	totalOps := goroutines * opsPerG

	fmt.Println("\n================ RESULTS =================")
	fmt.Printf("Total Operations : %d\n", totalOps)
	fmt.Printf("Hits / Misses    : %d / %d\n", sum(&hits), sum(&misses))
	fmt.Printf("Entries Left     : %d\n", c.Len())
	fmt.Printf("Total Time       : %v\n", duration)
	fmt.Printf("Throughput       : %.2f ops/sec\n", float64(totalOps)/duration.Seconds())
	fmt.Println("=========================================")
}

func sum(m *sync.Map) int {
	total := 0
	m.Range(func(_, v any) bool {
		total += v.(int)
		return true
	})
	return total
}
