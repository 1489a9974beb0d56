package manager

import (
	"sync/atomic"

	"github.com/mgramigna/cql-language-server/internal/cache"
	"github.com/prometheus/client_golang/prometheus"
)

// Stats is a point-in-time view of the manager's counters.
type Stats struct {
	Hits         uint64 `json:"hits"`
	Misses       uint64 `json:"misses"`
	Translations uint64 `json:"translations"`
	Coalesced    uint64 `json:"coalesced"`
	Stale        uint64 `json:"stale"`
	Cached       int    `json:"cached"`
}

type counters struct {
	hits         atomic.Uint64
	misses       atomic.Uint64
	translations atomic.Uint64
	coalesced    atomic.Uint64
	stale        atomic.Uint64
}

func (c *counters) snapshot(cached int) Stats {
	return Stats{
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Translations: c.translations.Load(),
		Coalesced:    c.coalesced.Load(),
		Stale:        c.stale.Load(),
		Cached:       cached,
	}
}

func counterFunc(v *atomic.Uint64, name, help string) prometheus.Collector {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "cqlls",
		Subsystem: "translation",
		Name:      name,
		Help:      help,
	}, func() float64 { return float64(v.Load()) })
}

func (c *counters) register(reg prometheus.Registerer, artifacts *cache.Artifacts) error {
	collectors := []prometheus.Collector{
		counterFunc(&c.hits, "cache_hits_total", "Translation requests served from the artifact cache."),
		counterFunc(&c.misses, "cache_misses_total", "Translation requests that missed the artifact cache."),
		counterFunc(&c.translations, "translator_invocations_total", "Calls into the translator."),
		counterFunc(&c.coalesced, "coalesced_total", "Requests that shared an in-flight translation."),
		counterFunc(&c.stale, "stale_evictions_total", "Cached artifacts dropped because a dependency changed."),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "cqlls",
			Subsystem: "translation",
			Name:      "cached_artifacts",
			Help:      "Artifacts currently held in the cache.",
		}, func() float64 { return float64(artifacts.Len()) }),
	}
	for _, col := range collectors {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}
