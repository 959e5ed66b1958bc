package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"

	"github.com/dacapoday/pst/page"
)

type config struct {
	logger    *zap.Logger
	cacheSize int
	registry  prometheus.Registerer
	codepage  encoding.Encoding
}

// Option configures a Store.
type Option func(*config)

func newConfig(opts []Option) config {
	c := config{
		logger:    zap.NewNop(),
		cacheSize: page.DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPageCacheSize sets the number of BTree pages kept in memory; zero
// disables the cache.
func WithPageCacheSize(size int) Option {
	return func(c *config) {
		c.cacheSize = size
	}
}

// WithMetrics registers the read path counters with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *config) {
		c.registry = reg
	}
}

// WithCodepage sets the code page of String8 values. The default is
// Windows-1252.
func WithCodepage(codepage encoding.Encoding) Option {
	return func(c *config) {
		c.codepage = codepage
	}
}
