// Command bench runs a synthetic workload against the cache and exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"flag"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/segcache/cache"
	pmet "github.com/IvanBrykalov/segcache/metrics/prom"
)

func main() {
	// ---- Flags ----
	var (
		maxSize     = flag.Int64("max_size", 100_000, "maximum entries (ignored with -weighted)")
		weighted    = flag.Bool("weighted", false, "bound by total value bytes instead of entry count")
		maxWeight   = flag.Int64("max_weight", 64<<20, "maximum total weight in bytes with -weighted")
		concurrency = flag.Int("concurrency", 16, "concurrency level (segments are rounded up to a power of two)")
		expAccess   = flag.Duration("expire_after_access", 0, "expire entries idle this long (0 = disabled)")
		expWrite    = flag.Duration("expire_after_write", 0, "expire entries this long after write (0 = disabled)")

		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		readPct  = flag.Int("reads", 80, "read percentage [0..100]")

		keys    = flag.Int("keys", 1_000_000, "keyspace size")
		zipfS   = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV   = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed    = flag.Int64("seed", time.Now().UnixNano(), "random seed")
		preload = flag.Int("preload", 0, "preload entries (0 = max_size/2)")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr")
		logLevel    = flag.String("log_level", "info", "log level (trace, debug, info, warn, error)")
	)
	flag.Parse()

	log := logrus.New()
	lvl, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		log.WithError(err).Fatal("bench: bad -log_level")
	}
	log.SetLevel(lvl)

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			log.WithField("addr", *pprofAddr).Info("pprof: serving")
			log.WithError(http.ListenAndServe(*pprofAddr, nil)).Error("pprof: server stopped")
		}()
	}

	// ---- Prometheus metrics (on DefaultServeMux) ----
	metrics := pmet.New(nil, "segcache", "bench", nil)
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.WithField("addr", *metricsAddr).Info("metrics: serving")
		log.WithError(http.ListenAndServe(*metricsAddr, nil)).Error("metrics: server stopped")
	}()

	// ---- Build cache ----
	b := cache.NewBuilder[string, string]().
		ConcurrencyLevel(*concurrency).
		Metrics(metrics).
		Logger(log)
	capacity := *maxSize
	if *weighted {
		b.MaximumWeight(*maxWeight).Weigher(func(k, v string) int { return len(k) + len(v) })
		capacity = *maxWeight / 16 // rough entry estimate for preloading
	} else {
		b.MaximumSize(*maxSize)
	}
	if *expAccess > 0 {
		b.ExpireAfterAccess(*expAccess)
	}
	if *expWrite > 0 {
		b.ExpireAfterWrite(*expWrite)
	}
	c, err := b.Build()
	if err != nil {
		log.WithError(err).Fatal("bench: invalid cache configuration")
	}

	// ---- Preload half capacity to get a realistic hit-rate ----
	pl := *preload
	if pl == 0 {
		pl = int(capacity / 2)
	}
	for i := 0; i < pl; i++ {
		k := "k:" + strconv.Itoa(i)
		c.Put(k, "v"+strconv.Itoa(i))
	}

	// ---- Snapshot flags for goroutines ----
	readPctVal := *readPct
	keysMax := uint64(*keys - 1)
	seedBase := *seed
	zipfSVal := *zipfS
	zipfVVal := *zipfV
	workersN := *workers
	if workersN <= 0 {
		workersN = 1
	}

	// ---- Load generation ----
	var reads, writes, hits, misses, total atomic.Uint64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workersN; w++ {
		g.Go(func() error {
			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			localR := rand.New(rand.NewSource(seedBase + int64(w)*9973))
			localZipf := rand.NewZipf(localR, zipfSVal, zipfVVal, keysMax)

			keyByZipf := func() string {
				return "k:" + strconv.FormatUint(localZipf.Uint64(), 10)
			}

			for {
				select {
				case <-ctx.Done():
					return nil
				default:
				}

				total.Add(1)
				if int(localR.Int31n(100)) < readPctVal {
					reads.Add(1)
					if _, ok := c.GetIfPresent(keyByZipf()); ok {
						hits.Add(1)
					} else {
						misses.Add(1)
					}
				} else {
					writes.Add(1)
					c.Put(keyByZipf(), "v"+strconv.Itoa(localR.Int()))
				}
			}
		})
	}
	_ = g.Wait()
	elapsed := time.Since(start)

	// ---- Report ----
	ops := total.Load()
	readsN := reads.Load()
	hitRate := 0.0
	if readsN > 0 {
		hitRate = float64(hits.Load()) / float64(readsN) * 100
	}
	st := c.Stats()

	log.WithFields(logrus.Fields{
		"segments":    st.Segments,
		"workers":     workersN,
		"keys":        *keys,
		"seed":        seedBase,
		"weighted":    *weighted,
		"duration":    elapsed,
		"ops":         ops,
		"ops_per_sec": int64(float64(ops) / elapsed.Seconds()),
		"reads":       readsN,
		"writes":      writes.Load(),
		"hits":        hits.Load(),
		"misses":      misses.Load(),
		"hit_rate":    strconv.FormatFloat(hitRate, 'f', 2, 64) + "%",
		"evictions":   st.Evictions,
		"size":        c.Size(),
	}).Info("bench: done")
}
