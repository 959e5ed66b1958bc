// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package page

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dacapoday/pst"
	"github.com/dacapoday/pst/internal/metrics"
)

var ErrCorruptPage = pst.ErrCorruptPage

// DefaultCacheSize is the number of pages kept by an Allocator unless
// WithCacheSize says otherwise.
const DefaultCacheSize = 1024

// Allocator maps absolute offsets to validated pages.
// Pages are cached read-through by offset; cached pages are never mutated,
// so an Allocator is safe for concurrent use.
type Allocator struct {
	file    io.ReaderAt
	format  pst.Format
	cache   *lru.Cache[int64, Page]
	metrics *metrics.Metrics
}

type config struct {
	cacheSize int
	metrics   *metrics.Metrics
}

// Option configures an Allocator.
type Option func(*config)

// WithCacheSize sets the number of cached pages; zero disables the cache.
func WithCacheSize(size int) Option {
	return func(c *config) {
		c.cacheSize = size
	}
}

// WithMetrics sets the counters updated on every read.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// New returns an Allocator reading pages of format from file.
func New(file io.ReaderAt, format pst.Format, opts ...Option) *Allocator {
	c := config{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(&c)
	}
	if c.metrics == nil {
		c.metrics = metrics.New(nil)
	}

	allocator := &Allocator{
		file:    file,
		format:  format,
		metrics: c.metrics,
	}
	if c.cacheSize > 0 {
		allocator.cache, _ = lru.New[int64, Page](c.cacheSize)
	}
	return allocator
}

// Format returns the layout variant of the pages.
func (allocator *Allocator) Format() pst.Format {
	return allocator.format
}

// ReadPage reads the page at offset and validates its trailer.
func (allocator *Allocator) ReadPage(offset int64) (page Page, err error) {
	if allocator.cache != nil {
		var ok bool
		if page, ok = allocator.cache.Get(offset); ok {
			allocator.metrics.PageCacheHits.Inc()
			return
		}
		allocator.metrics.PageCacheMisses.Inc()
	}

	if offset < 0 {
		err = fmt.Errorf("page(%#x) has negative offset: %w", offset, ErrCorruptPage)
		return
	}

	buf := make([]byte, pst.PageSize)
	n, err := allocator.file.ReadAt(buf, offset)
	allocator.metrics.PagesRead.Inc()
	if n < len(buf) {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		if errors.Is(err, pst.ErrClosed) || errors.Is(err, fs.ErrClosed) {
			err = fmt.Errorf("read page(%#x): %w", offset, pst.ErrClosed)
			return
		}
		err = fmt.Errorf("read page(%#x) failed: %w: %w", offset, ErrCorruptPage, err)
		return
	}
	err = nil

	page = Make(buf, offset, allocator.format)
	if err = page.validate(); err != nil {
		allocator.metrics.ChecksumFailures.WithLabelValues("page").Inc()
		page = Page{}
		return
	}

	if allocator.cache != nil {
		allocator.cache.Add(offset, page)
	}
	return
}

// ReadPageType reads the page at offset and checks that it has type want.
func (allocator *Allocator) ReadPageType(offset int64, want Type) (page Page, err error) {
	if page, err = allocator.ReadPage(offset); err != nil {
		return
	}
	if typ := page.Type(); typ != want {
		err = fmt.Errorf("page(%#x) has type %v, expected %v: %w", offset, typ, want, ErrCorruptPage)
		page = Page{}
	}
	return
}
