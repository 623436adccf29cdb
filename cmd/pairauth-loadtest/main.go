// Command pairauth-loadtest drives the Redis session store with concurrent
// compare-and-set rotations and checks that every contested rotation has
// exactly one winner.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/pairauth/session"
)

func main() {
	var (
		subjects    = flag.Int("subjects", 10000, "number of subjects to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers in the read phase")
		ops         = flag.Int("ops", 200000, "reads in the read phase")
		rounds      = flag.Int("rounds", 2000, "contested rotations in the race phase")
		contenders  = flag.Int("contenders", 8, "refreshes racing on the same value per round")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "prs-load", "session key prefix")
	)
	flag.Parse()

	if *subjects <= 0 || *concurrency <= 0 || *ops <= 0 || *rounds <= 0 || *contenders < 2 {
		fmt.Fprintln(os.Stderr, "subjects, concurrency, ops and rounds must be > 0; contenders must be >= 2")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	store := session.NewRedisStore(client, *prefix, 24*time.Hour)

	names := make([]string, *subjects)
	fmt.Printf("seeding %d subjects...\n", *subjects)
	startSeed := time.Now()
	for i := range names {
		names[i] = fmt.Sprintf("subject-%d", i)
		if _, err := store.SetIfMatches(ctx, names[i], session.ExpectAny(), session.Present(valueFor(i, 0))); err != nil {
			fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	readStats := runReadPhase(ctx, store, names, *ops, *concurrency)
	raceStats, violations := runRacePhase(ctx, store, names, *rounds, *contenders)

	fmt.Println("---- results ----")
	printStats("read", readStats)
	printStats("rotate", raceStats)
	fmt.Printf("race: rounds=%d contenders=%d single-winner violations=%d\n", *rounds, *contenders, violations)
	if violations > 0 {
		os.Exit(1)
	}
}

func runReadPhase(ctx context.Context, store session.Store, names []string, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				v, err := store.Get(ctx, names[r.Intn(len(names))])
				d := time.Since(t0)
				if err != nil || !v.Valid {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

// runRacePhase starts contenders goroutines per round, each trying to swap
// the same current value for its own next value. Exactly one must succeed.
func runRacePhase(ctx context.Context, store session.Store, names []string, rounds, contenders int) (phaseStats, int) {
	var (
		failures   int64
		violations int
		latencies  = make([]time.Duration, 0, rounds*contenders)
		mu         sync.Mutex
	)
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	start := time.Now()
	for round := 0; round < rounds; round++ {
		name := names[r.Intn(len(names))]
		current, err := store.Get(ctx, name)
		if err != nil {
			failures++
			continue
		}

		var (
			wg      sync.WaitGroup
			winners int64
			gate    = make(chan struct{})
		)
		for c := 0; c < contenders; c++ {
			wg.Add(1)
			go func(c int) {
				defer wg.Done()
				<-gate
				t0 := time.Now()
				ok, err := store.SetIfMatches(ctx, name, session.Expect(current), session.Present(valueFor(round, c+1)))
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				if ok {
					atomic.AddInt64(&winners, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}(c)
		}
		close(gate)
		wg.Wait()

		if winners != 1 {
			violations++
		}
	}
	return computeStats(time.Since(start), latencies, failures), violations
}

func valueFor(round, contender int) string {
	return session.Fingerprint(fmt.Sprintf("token-%d-%d", round, contender))
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
