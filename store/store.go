// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package store opens a PST file and exposes its nodes: property and table
// contexts by NodeID, EntryID resolution and the named property map.
package store

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dacapoday/pst"
	"github.com/dacapoday/pst/block"
	"github.com/dacapoday/pst/bptree"
	"github.com/dacapoday/pst/crypt"
	"github.com/dacapoday/pst/header"
	"github.com/dacapoday/pst/internal/metrics"
	"github.com/dacapoday/pst/ltp"
	"github.com/dacapoday/pst/namedprop"
	"github.com/dacapoday/pst/node"
	"github.com/dacapoday/pst/page"
)

var (
	ErrClosed       = pst.ErrClosed
	ErrFileFormat   = pst.ErrFileFormat
	ErrNodeNotFound = pst.ErrNodeNotFound
)

type File = pst.File

type DB = Store[*os.File]

// Open opens the PST file at path read-only.
func Open(path string, opts ...Option) (db *DB, err error) {
	file, err := os.Open(path)
	if err != nil {
		return
	}

	db = new(DB)
	if err = db.Load(file, opts...); err != nil {
		_ = file.Close()
		db = nil
	}
	return
}

// Store is an opened PST file. Every read starts from the BTree roots and
// shares only the page cache, so a Store is safe for concurrent use.
type Store[F File] struct {
	file    F
	header  *header.Header
	pages   *page.Allocator
	nodes   *bptree.NodeIndex
	blocks  *bptree.BlockIndex
	reader  *block.Reader
	logger  *zap.Logger
	metrics *metrics.Metrics
	ltpOpts []ltp.Option
	closed  atomic.Bool

	recordKey lazy[uuid.UUID]
	named     lazy[*namedprop.Map]
}

type lazy[T any] struct {
	once  sync.Once
	value T
	err   error
}

func (l *lazy[T]) get(load func() (T, error)) (T, error) {
	l.once.Do(func() {
		l.value, l.err = load()
	})
	return l.value, l.err
}

// Load reads the header of file and prepares the BTrees. The Store owns file
// from now on and closes it on Close.
func (s *Store[F]) Load(file F, opts ...Option) (err error) {
	c := newConfig(opts)
	s.logger = c.logger
	s.metrics = metrics.New(c.registry)

	h, err := header.Read(file)
	if err != nil {
		s.metrics.ChecksumFailures.WithLabelValues("header").Inc()
		s.logger.Warn("invalid header", zap.Error(err))
		return
	}
	cipher, err := crypt.New(h.CryptMethod)
	if err != nil {
		return
	}

	s.file = file
	s.header = h
	s.pages = page.New(file, h.Format, page.WithCacheSize(c.cacheSize), page.WithMetrics(s.metrics))
	s.nodes = bptree.NewNodeIndex(s.pages, h.Root.NodeBTree, h.MaxDepth())
	s.blocks = bptree.NewBlockIndex(s.pages, h.Root.BlockBTree, h.MaxDepth())
	s.reader = block.New(file, h.Format, s.blocks, cipher, block.WithMetrics(s.metrics))
	if c.codepage != nil {
		s.ltpOpts = append(s.ltpOpts, ltp.WithCodepage(c.codepage))
	}

	s.logger.Debug("opened",
		zap.Stringer("format", h.Format),
		zap.Uint16("version", h.Version),
		zap.Stringer("crypt", h.CryptMethod),
		zap.Uint64("eof", h.Root.FileEOF),
		zap.Stringer("nbt", h.Root.NodeBTree),
		zap.Stringer("bbt", h.Root.BlockBTree),
		zap.Int("max_depth", h.MaxDepth()),
	)
	return
}

// Close closes the file. Reads after Close return ErrClosed.
func (s *Store[F]) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.file.Close()
}

// File returns the underlying file.
func (s *Store[F]) File() F {
	return s.file
}

// Header returns the decoded file header.
func (s *Store[F]) Header() *header.Header {
	return s.header
}

// Format returns the layout variant of the file.
func (s *Store[F]) Format() pst.Format {
	return s.header.Format
}

// BlockReader returns the reader of the file's data blocks.
func (s *Store[F]) BlockReader() *block.Reader {
	return s.reader
}

// check logs structural corruption before handing err back.
func (s *Store[F]) check(op string, nid pst.NodeID, err error) error {
	if err == nil {
		return nil
	}
	for _, corrupt := range []error{
		pst.ErrCorruptPage,
		pst.ErrIndexCorrupt,
		pst.ErrCorruptBlock,
		pst.ErrTruncatedBlock,
		pst.ErrCorruptHeap,
		pst.ErrCorruptTable,
	} {
		if errors.Is(err, corrupt) {
			s.logger.Warn("corrupt node", zap.String("op", op), zap.Stringer("nid", nid), zap.Error(err))
			break
		}
	}
	return err
}

// Node returns the node BTree entry of nid.
func (s *Store[F]) Node(nid pst.NodeID) (entry bptree.NodeEntry, err error) {
	if s.closed.Load() {
		err = ErrClosed
		return
	}
	entry, err = s.nodes.Find(uint64(nid))
	if err != nil {
		err = s.check("node", nid, fmt.Errorf("node(%v): %w", nid, err))
	}
	return
}

// Nodes returns an iterator over the node BTree in NodeID order.
func (s *Store[F]) Nodes() iter.Seq2[bptree.NodeEntry, error] {
	if s.closed.Load() {
		return failed[bptree.NodeEntry](ErrClosed)
	}
	return s.nodes.All()
}

// Blocks returns an iterator over the block BTree in BlockID order.
func (s *Store[F]) Blocks() iter.Seq2[bptree.BlockEntry, error] {
	if s.closed.Load() {
		return failed[bptree.BlockEntry](ErrClosed)
	}
	return s.blocks.All()
}

func failed[T any](err error) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		yield(zero, err)
	}
}

// DensityList reads the density list page, which tracks the free space of
// the allocation map pages.
func (s *Store[F]) DensityList() (dl page.DensityList, err error) {
	if s.closed.Load() {
		err = ErrClosed
		return
	}
	if dl, err = s.pages.ReadDensityList(); err != nil {
		err = s.check("density list", 0, err)
	}
	return
}

// LoadNode returns the data and subnode trees of nid without decoding them.
func (s *Store[F]) LoadNode(nid pst.NodeID) (*node.Node, error) {
	entry, err := s.Node(nid)
	if err != nil {
		return nil, err
	}
	return node.New(s.reader, entry.ID, entry.Data, entry.Sub), nil
}

func (s *Store[F]) loadSubnode(owner, nid pst.NodeID) (*node.Node, error) {
	parent, err := s.LoadNode(owner)
	if err != nil {
		return nil, err
	}
	sub, err := parent.Subnode(nid)
	return sub, s.check("subnode", owner, err)
}

func (s *Store[F]) propertyContext(n *node.Node, kind string) (*ltp.PropertyContext, error) {
	pc, err := ltp.OpenPropertyContext(n, s.ltpOpts...)
	if err != nil {
		return nil, s.check("property context", n.ID(), err)
	}
	s.metrics.ContextsOpened.WithLabelValues(kind).Inc()
	return pc, nil
}

func (s *Store[F]) tableContext(n *node.Node, kind string) (*ltp.TableContext, error) {
	tc, err := ltp.OpenTableContext(n, s.ltpOpts...)
	if err != nil {
		return nil, s.check("table context", n.ID(), err)
	}
	s.metrics.ContextsOpened.WithLabelValues(kind).Inc()
	return tc, nil
}

// OpenNode opens the property context of nid.
func (s *Store[F]) OpenNode(nid pst.NodeID) (*ltp.PropertyContext, error) {
	n, err := s.LoadNode(nid)
	if err != nil {
		return nil, err
	}
	return s.propertyContext(n, "property")
}

// OpenTable opens the table context of nid.
func (s *Store[F]) OpenTable(nid pst.NodeID) (*ltp.TableContext, error) {
	n, err := s.LoadNode(nid)
	if err != nil {
		return nil, err
	}
	return s.tableContext(n, "table")
}

// OpenSubnode opens the property context of subnode nid of owner, such as
// an attachment of a message.
func (s *Store[F]) OpenSubnode(owner, nid pst.NodeID) (*ltp.PropertyContext, error) {
	n, err := s.loadSubnode(owner, nid)
	if err != nil {
		return nil, err
	}
	return s.propertyContext(n, "subnode")
}

// OpenSubtable opens the table context of subnode nid of owner, such as the
// recipient table of a message.
func (s *Store[F]) OpenSubtable(owner, nid pst.NodeID) (*ltp.TableContext, error) {
	n, err := s.loadSubnode(owner, nid)
	if err != nil {
		return nil, err
	}
	return s.tableContext(n, "subtable")
}

// NamedProperties returns the name-to-id map, loaded on first use.
func (s *Store[F]) NamedProperties() (*namedprop.Map, error) {
	return s.named.get(func() (*namedprop.Map, error) {
		pc, err := s.OpenNode(pst.NIDNameToIDMap)
		if err != nil {
			return nil, err
		}
		m, err := namedprop.Load(pc)
		return m, s.check("named properties", pst.NIDNameToIDMap, err)
	})
}

// LookupNamedProperty returns the property id of a named property.
func (s *Store[F]) LookupNamedProperty(guid uuid.UUID, name namedprop.Name) (uint16, error) {
	m, err := s.NamedProperties()
	if err != nil {
		return 0, err
	}
	return m.Resolve(guid, name)
}
