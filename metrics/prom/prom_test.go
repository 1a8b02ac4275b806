package prom

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/IvanBrykalov/segcache/cache"
)

func TestAdapter_ExportsCacheSignals(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "app", "cache", prometheus.Labels{"cache": "users"})

	c := cache.NewBuilder[string, string]().
		ConcurrencyLevel(1).
		MaximumSize(2).
		Metrics(m).
		MustBuild()

	c.Put("a", "1")
	c.Put("b", "2")
	c.GetIfPresent("a")
	c.GetIfPresent("zz")
	c.Put("c", "3") // evicts b

	if got := testutil.ToFloat64(m.hits); got != 1 {
		t.Fatalf("hits = %v", got)
	}
	if got := testutil.ToFloat64(m.misses); got != 1 {
		t.Fatalf("misses = %v", got)
	}
	if got := testutil.ToFloat64(m.evicts.WithLabelValues("size")); got != 1 {
		t.Fatalf("size evictions = %v", got)
	}
	if got := testutil.ToFloat64(m.sizeEnt); got != 2 {
		t.Fatalf("size_entries = %v", got)
	}
	if got := testutil.ToFloat64(m.sizeWeight); got != 2 {
		t.Fatalf("size_weight = %v", got)
	}

	c.Invalidate("a")
	c.Clear()
	if got := testutil.ToFloat64(m.sizeEnt); got != 0 {
		t.Fatalf("size_entries after Clear = %v", got)
	}

	want := `
# HELP app_cache_evictions_total Automatic removals by cause
# TYPE app_cache_evictions_total counter
app_cache_evictions_total{cache="users",cause="size"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "app_cache_evictions_total"); err != nil {
		t.Fatal(err)
	}
}

func TestAdapter_LoadResults(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "", "", nil)

	fail := true
	c := cache.NewBuilder[int, int]().
		Metrics(m).
		Loader(func(context.Context, int) (int, error) {
			if fail {
				return 0, errors.New("backend down")
			}
			return 1, nil
		}).
		MustBuild()

	if _, err := c.GetOrLoad(context.Background(), 1); err == nil {
		t.Fatal("want loader error")
	}
	fail = false
	if _, err := c.GetOrLoad(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	if n := testutil.CollectAndCount(m.loads, "load_duration_seconds"); n != 2 {
		t.Fatalf("want 2 load series, got %d", n)
	}
}

func TestAdapter_ExpiredCause(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "", "", nil)

	var now int64
	c := cache.NewBuilder[int, int]().
		ExpireAfterWrite(time.Second).
		Ticker(cache.TickerFunc(func() int64 { return now })).
		Metrics(m).
		MustBuild()
	c.Put(1, 1)
	now = int64(2 * time.Second)
	c.CleanUp()

	if got := testutil.ToFloat64(m.evicts.WithLabelValues("expired")); got != 1 {
		t.Fatalf("expired evictions = %v", got)
	}
}
