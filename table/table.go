// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package table binds a pager, a tree and the header page into the single
// users table.
package table

import (
	"fmt"
	"io"
	"iter"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dacapoday/sqlet"
	"github.com/dacapoday/sqlet/btree"
	"github.com/dacapoday/sqlet/internal/meta"
	"github.com/dacapoday/sqlet/pager"
	"github.com/dacapoday/sqlet/row"
)

type DB = Table[*os.File]

// Open opens or creates the table file at path.
func Open(path string, opts ...Option) (db *DB, err error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", sqlet.ErrIO, err)
	}

	db = new(DB)
	if err = db.Load(file, opts...); err != nil {
		file.Close()
		db = nil
	}
	return
}

// Table is the users table stored in one file.
// It is not safe for concurrent use.
type Table[F sqlet.File] struct {
	pager  pager.Pager[F]
	tree   btree.Tree
	meta   meta.Meta
	log    *zap.Logger
	clock  func() time.Time
	sync   bool
	loaded bool
}

func (t *Table[F]) File() F {
	return t.pager.File()
}

// Load opens the table stored in file. An empty file is formatted with a
// header page and an empty root leaf.
func (t *Table[F]) Load(file F, opts ...Option) (err error) {
	if t.loaded {
		return fmt.Errorf("table already loaded")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	t.log = o.logger
	t.clock = o.clock
	t.sync = o.sync

	probe := make([]byte, pager.MinPageSize)
	n, err := file.ReadAt(probe, 0)
	if err != nil && err != io.EOF {
		return fmt.Errorf("read header: %w: %w", sqlet.ErrIO, err)
	}

	if n == 0 {
		err = t.create(file, o)
	} else {
		err = t.open(file, probe[:n], o)
	}
	if err != nil {
		return
	}

	t.loaded = true
	t.log.Info("table opened",
		zap.Stringer("file_id", t.FileID()),
		zap.Uint32("page_size", t.meta.PageSize),
		zap.Uint32("pages", t.pager.PageCount()),
		zap.Uint32("root", t.tree.Root()),
		zap.Uint64("rows", t.meta.RowCount),
	)
	return
}

func (t *Table[F]) create(file F, o options) (err error) {
	if err = t.pager.Load(file, pager.Options{PageSize: o.pageSize, MaxPages: o.maxPages, Logger: t.log}); err != nil {
		return
	}
	if _, err = t.pager.Allocate(); err != nil {
		return
	}
	root, err := btree.Init(&t.pager)
	if err != nil {
		return
	}
	if err = t.tree.Load(&t.pager, root, t.log); err != nil {
		return
	}

	now := t.clock().UnixNano()
	t.meta = meta.Meta{
		FileID:     uuid.New(),
		CreateTime: now,
		UpdateTime: now,
		Root:       root,
		PageSize:   uint32(t.pager.PageSize()),
		Version:    meta.Version,
	}
	return t.flush()
}

func (t *Table[F]) open(file F, header []byte, o options) (err error) {
	if err = meta.Decode(header, &t.meta); err != nil {
		return
	}
	if !pager.ValidPageSize(t.meta.PageSize) {
		return fmt.Errorf("header page size %d: %w", t.meta.PageSize, sqlet.ErrCorrupt)
	}
	if o.pageSize != t.meta.PageSize {
		t.log.Debug("page size taken from header",
			zap.Uint32("requested", o.pageSize),
			zap.Uint32("stored", t.meta.PageSize),
		)
	}

	if err = t.pager.Load(file, pager.Options{PageSize: t.meta.PageSize, MaxPages: o.maxPages, Logger: t.log}); err != nil {
		return
	}
	if t.meta.PageCount > t.pager.PageCount() {
		return fmt.Errorf("header lists %d pages, file holds %d: %w", t.meta.PageCount, t.pager.PageCount(), sqlet.ErrCorrupt)
	}
	if t.meta.Root == 0 || t.meta.Root >= t.pager.PageCount() {
		return fmt.Errorf("root page %d: %w", t.meta.Root, sqlet.ErrCorrupt)
	}
	return t.tree.Load(&t.pager, t.meta.Root, t.log)
}

// writeHeader encodes the header into page 0.
func (t *Table[F]) writeHeader() (err error) {
	page, err := t.pager.Page(0)
	if err != nil {
		return
	}
	t.meta.Root = t.tree.Root()
	t.meta.PageCount = t.pager.PageCount()
	if err = meta.Encode(page, &t.meta); err != nil {
		return
	}
	t.pager.MarkDirty(0)
	return
}

func (t *Table[F]) flush() (err error) {
	if err = t.writeHeader(); err != nil {
		return
	}
	return t.pager.FlushAll()
}

// Flush writes the header and every modified page, then syncs the file.
func (t *Table[F]) Flush() error {
	if !t.loaded {
		return sqlet.ErrClosed
	}
	return t.flush()
}

// Close flushes the table and closes the file. The file is closed even if
// the flush fails; the first error is returned.
func (t *Table[F]) Close() (err error) {
	if !t.loaded {
		return sqlet.ErrClosed
	}
	t.loaded = false

	t.meta.UpdateTime = t.clock().UnixNano()
	herr := t.writeHeader()
	err = t.pager.Close()
	if herr != nil {
		err = herr
	}
	if err != nil {
		t.log.Error("table close failed", zap.Error(err))
		return
	}
	t.log.Info("table closed",
		zap.Uint64("rows", t.meta.RowCount),
		zap.Uint32("pages", t.meta.PageCount),
	)
	return
}

// Insert parses and validates the fields, then stores the row.
func (t *Table[F]) Insert(id, username, email string) error {
	r, err := row.Parse(id, username, email)
	if err != nil {
		return err
	}
	return t.InsertRow(r)
}

// InsertRow stores r. It fails with sqlet.ErrDuplicateKey if the id exists
// and with sqlet.ErrTableFull if the page limit would be exceeded; in both
// cases the table is unchanged.
//
// With WithSync the table is flushed after the row is stored. A flush
// failure is logged and does not fail the insert.
func (t *Table[F]) InsertRow(r row.Row) (err error) {
	if !t.loaded {
		return sqlet.ErrClosed
	}
	val, err := row.Marshal(r)
	if err != nil {
		return
	}
	if err = t.tree.Insert(r.ID, val); err != nil {
		t.log.Debug("insert rejected", zap.Uint32("id", r.ID), zap.Error(err))
		return
	}
	t.meta.RowCount++
	if t.sync {
		// The row is already visible; a failed sync leaves its pages dirty
		// for the next Flush or Close.
		if serr := t.flush(); serr != nil {
			t.log.Error("table sync failed", zap.Uint32("id", r.ID), zap.Error(serr))
		}
	}
	return
}

// Rows returns every row in ascending id order.
// A read failure is yielded once and ends the sequence.
func (t *Table[F]) Rows() iter.Seq2[row.Row, error] {
	return func(yield func(row.Row, error) bool) {
		if !t.loaded {
			yield(row.Row{}, sqlet.ErrClosed)
			return
		}
		c := t.tree.Cursor()
		for ok := c.SeekFirst(); ok; ok = c.Next() {
			if !yield(row.Decode(c.Val()), nil) {
				return
			}
		}
		if err := c.Error(); err != nil {
			yield(row.Row{}, err)
		}
	}
}

// SelectAll returns every row formatted as "(id, username, email)".
func (t *Table[F]) SelectAll() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for r, err := range t.Rows() {
			if err != nil {
				yield("", err)
				return
			}
			if !yield(r.String(), nil) {
				return
			}
		}
	}
}

// Find returns the row with the given id.
func (t *Table[F]) Find(id uint32) (r row.Row, found bool, err error) {
	if !t.loaded {
		err = sqlet.ErrClosed
		return
	}
	val, found, err := t.tree.Find(id)
	if found {
		r = row.Decode(val)
	}
	return
}

// Dump writes the tree outline.
func (t *Table[F]) Dump(w io.Writer) error {
	if !t.loaded {
		return sqlet.ErrClosed
	}
	return t.tree.Dump(w)
}

// Check verifies the tree and that it holds Count rows.
func (t *Table[F]) Check() error {
	if !t.loaded {
		return sqlet.ErrClosed
	}
	n, err := t.tree.Check()
	if err != nil {
		return err
	}
	if uint64(n) != t.meta.RowCount {
		return fmt.Errorf("tree holds %d rows, header counts %d: %w", n, t.meta.RowCount, sqlet.ErrCorrupt)
	}
	return nil
}

func (t *Table[F]) Count() uint64 {
	return t.meta.RowCount
}

func (t *Table[F]) Root() sqlet.PageNo {
	return t.tree.Root()
}

func (t *Table[F]) PageSize() int {
	return t.pager.PageSize()
}

func (t *Table[F]) PageCount() uint32 {
	return t.pager.PageCount()
}

func (t *Table[F]) Height() (int, error) {
	return t.tree.Height()
}

func (t *Table[F]) FileID() uuid.UUID {
	return uuid.UUID(t.meta.FileID)
}

func (t *Table[F]) Created() time.Time {
	return time.Unix(0, t.meta.CreateTime)
}

func (t *Table[F]) Updated() time.Time {
	return time.Unix(0, t.meta.UpdateTime)
}
