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

	"github.com/MrEthical07/carebook/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type sessionState struct {
	sid  string
	user *session.User
	mu   sync.Mutex
}

func main() {
	var (
		sessions    = flag.Int("sessions", 100000, "number of sessions to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (hydrate + login)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "carebook", "session key prefix")
		ttl         = flag.Duration("ttl", session.DefaultTTL, "session ttl")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency, and ops must be > 0")
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
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	lt := &loadTest{client: client, prefix: *prefix, ttl: *ttl}

	states := make([]sessionState, *sessions)
	fmt.Printf("seeding %d sessions...\n", *sessions)
	startSeed := time.Now()
	for i := 0; i < *sessions; i++ {
		states[i] = sessionState{sid: session.NewSessionID(), user: userFor(i)}
		store, err := lt.store(states[i].sid)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open store: %v\n", err)
			os.Exit(1)
		}
		if err := store.Login(ctx, tokenFor(i, 0), states[i].user); err != nil {
			fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	hydrateStats := lt.runHydratePhase(ctx, states, *ops, *concurrency)
	loginStats := lt.runLoginPhase(ctx, states, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("hydrate", hydrateStats)
	printStats("login", loginStats)
}

type loadTest struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// store mirrors what the portal builds per page load.
func (lt *loadTest) store(sid string) (*session.Store, error) {
	storage, err := session.NewRedisStorage(lt.client, lt.prefix, sid)
	if err != nil {
		return nil, err
	}
	return session.NewStore(session.NewDurablePersister(storage, lt.ttl)), nil
}

func (lt *loadTest) runHydratePhase(ctx context.Context, states []sessionState, ops, concurrency int) phaseStats {
	return runPhase(ops, concurrency, 7919, func(r *rand.Rand, i int) bool {
		state := &states[r.Intn(len(states))]
		store, err := lt.store(state.sid)
		if err != nil {
			return false
		}
		boot := session.NewBootstrapper(store)
		boot.Activate(ctx)
		return boot.Outcome() == session.OutcomeAuthenticated && store.User().ID == state.user.ID
	})
}

func (lt *loadTest) runLoginPhase(ctx context.Context, states []sessionState, ops, concurrency int) phaseStats {
	return runPhase(ops, concurrency, 6151, func(r *rand.Rand, i int) bool {
		idx := r.Intn(len(states))
		state := &states[idx]

		state.mu.Lock()
		defer state.mu.Unlock()
		store, err := lt.store(state.sid)
		if err != nil {
			return false
		}
		return store.Login(ctx, tokenFor(idx, i+1), state.user) == nil
	})
}

// runPhase runs ops calls of op across concurrency workers, timing each call.
func runPhase(ops, concurrency int, seed int64, op func(r *rand.Rand, i int) bool) phaseStats {
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
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				ok := op(r, i)
				d := time.Since(t0)
				if !ok {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
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
		return phaseStats{total: total}
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

func userFor(i int) *session.User {
	role := session.RolePatient
	if i%5 == 0 {
		role = session.RoleDoctor
	}
	return &session.User{
		ID:    fmt.Sprintf("user-%d", i),
		Name:  fmt.Sprintf("Load User %d", i),
		Email: fmt.Sprintf("user-%d@carebook.test", i),
		Role:  role,
	}
}

func tokenFor(i, generation int) string {
	return fmt.Sprintf("tok-%d-%d", i, generation)
}
