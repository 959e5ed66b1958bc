// Package metrics provides Prometheus metrics for the PST read path.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "pst"

// Metrics holds the counters updated by the page allocator, the block
// reader and the store.
type Metrics struct {
	// Page allocator
	PagesRead       prometheus.Counter
	PageCacheHits   prometheus.Counter
	PageCacheMisses prometheus.Counter

	// Block reader
	BlocksRead     prometheus.Counter
	BlockBytesRead prometheus.Counter

	// Structural failures by kind: page, block, header.
	ChecksumFailures *prometheus.CounterVec

	// Contexts opened by the store, by kind: property, table, subnode.
	ContextsOpened *prometheus.CounterVec
}

// New creates the metrics and registers them with reg.
// A nil reg leaves them unregistered, which keeps them usable but private.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PagesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "page",
			Name:      "reads_total",
			Help:      "Total number of pages read from the file",
		}),
		PageCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "page",
			Name:      "cache_hits_total",
			Help:      "Total number of page reads served from the cache",
		}),
		PageCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "page",
			Name:      "cache_misses_total",
			Help:      "Total number of page reads that missed the cache",
		}),
		BlocksRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "block",
			Name:      "reads_total",
			Help:      "Total number of blocks read from the file",
		}),
		BlockBytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "block",
			Name:      "read_bytes_total",
			Help:      "Total number of payload bytes read from blocks",
		}),
		ChecksumFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checksum_failures_total",
			Help:      "Total number of structures rejected by checksum or signature",
		}, []string{"kind"}),
		ContextsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "contexts_opened_total",
			Help:      "Total number of property and table contexts opened",
		}, []string{"kind"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.PagesRead,
			m.PageCacheHits,
			m.PageCacheMisses,
			m.BlocksRead,
			m.BlockBytesRead,
			m.ChecksumFailures,
			m.ContextsOpened,
		)
	}
	return m
}
