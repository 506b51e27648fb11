// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package pager caches fixed-size pages of a [sqlet.File].
//
// Pages stay resident until Close. Nothing reaches the file until a page is
// flushed, so newly allocated pages past the end of the file cost no I/O.
package pager

import (
	"fmt"
	"io"
	"os"
	"slices"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/dacapoday/sqlet"
)

type PageNo = sqlet.PageNo

var (
	ErrIO              = sqlet.ErrIO
	ErrClosed          = sqlet.ErrClosed
	ErrCorrupt         = sqlet.ErrCorrupt
	ErrTableFull       = sqlet.ErrTableFull
	ErrInvalidPageSize = sqlet.ErrInvalidPageSize
)

const (
	MinPageSize     = 1 << 10
	MaxPageSize     = 1 << 16
	DefaultPageSize = 1 << 12
)

// Options configures Load.
type Options struct {
	// PageSize must be a power of two between MinPageSize and MaxPageSize.
	// Zero selects DefaultPageSize.
	PageSize uint32
	// MaxPages caps the page count, header page included. Zero is unlimited.
	MaxPages uint32
	Logger   *zap.Logger
}

// Pager owns a file and the pages read from it.
type Pager[F sqlet.File] struct {
	file   F
	log    *zap.Logger
	pool   sync.Pool
	pages  map[PageNo]*[]byte
	dirty  map[PageNo]struct{}
	size   int
	count  uint32 // pages known, allocated ones included
	stored uint32 // pages backed by the file
	max    uint32
	loaded bool
}

// ValidPageSize reports whether size is an acceptable page size.
func ValidPageSize(size uint32) bool {
	return size >= MinPageSize && size <= MaxPageSize && size&(size-1) == 0
}

// Load binds the pager to file. The file size must be a whole number of pages.
func (pager *Pager[F]) Load(file F, opt Options) (err error) {
	if pager.loaded {
		return errors.New("pager already loaded")
	}

	size := opt.PageSize
	if size == 0 {
		size = DefaultPageSize
	}
	if !ValidPageSize(size) {
		return fmt.Errorf("page size %d: %w", size, ErrInvalidPageSize)
	}

	length, err := fileSize(file)
	if err != nil {
		return errors.Wrapf(fmt.Errorf("%w: %w", ErrIO, err), "stat file")
	}
	if length%int64(size) != 0 {
		return fmt.Errorf("file size %d is not a multiple of page size %d: %w", length, size, ErrCorrupt)
	}
	count := length / int64(size)
	if count > int64(^uint32(0)) {
		return fmt.Errorf("file of %d pages: %w", count, ErrCorrupt)
	}

	pager.log = opt.Logger
	if pager.log == nil {
		pager.log = zap.NewNop()
	}
	pager.file = file
	pager.size = int(size)
	pager.count = uint32(count)
	pager.stored = uint32(count)
	pager.max = opt.MaxPages
	pager.pages = make(map[PageNo]*[]byte)
	pager.dirty = make(map[PageNo]struct{})
	pageSize := pager.size
	pager.pool.New = func() any {
		buf := make([]byte, pageSize)
		return &buf
	}
	pager.loaded = true

	pager.log.Debug("pager loaded",
		zap.Int("page_size", pager.size),
		zap.Uint32("pages", pager.count),
	)
	return
}

func fileSize(file any) (int64, error) {
	switch f := file.(type) {
	case interface{ Stat() (os.FileInfo, error) }:
		info, err := f.Stat()
		if err != nil {
			return 0, err
		}
		return info.Size(), nil
	case interface{ Size() int64 }:
		return f.Size(), nil
	case io.Seeker:
		return f.Seek(0, io.SeekEnd)
	}
	return 0, errors.New("file size unknown")
}

func (pager *Pager[F]) File() F {
	return pager.file
}

func (pager *Pager[F]) PageSize() int {
	return pager.size
}

// PageCount returns the number of pages, allocated but unflushed ones included.
func (pager *Pager[F]) PageCount() uint32 {
	return pager.count
}

// Resident returns the number of cached pages.
func (pager *Pager[F]) Resident() int {
	return len(pager.pages)
}

// Page returns the cached buffer of page n, reading it on first use.
// Pages the file does not back yet are returned zero-filled without I/O.
// The buffer is owned by the pager; mutate it and call MarkDirty.
func (pager *Pager[F]) Page(n PageNo) (page []byte, err error) {
	if !pager.loaded {
		return nil, ErrClosed
	}
	if buf := pager.pages[n]; buf != nil {
		return *buf, nil
	}
	if n >= pager.count {
		return nil, fmt.Errorf("page %d beyond page count %d: %w", n, pager.count, ErrCorrupt)
	}

	buf := pager.allocateBuffer()
	page = *buf
	if n < pager.stored {
		if _, err = pager.file.ReadAt(page, int64(n)*int64(pager.size)); err != nil && err != io.EOF {
			pager.recycleBuffer(buf)
			return nil, errors.Wrapf(fmt.Errorf("%w: %w", ErrIO, err), "read page %d", n)
		}
		err = nil
		pager.log.Debug("page loaded", zap.Uint32("page", n))
	}
	pager.pages[n] = buf
	return
}

// Allocate appends a zeroed page and returns its number. The page is
// resident and dirty; nothing is written until it is flushed.
func (pager *Pager[F]) Allocate() (n PageNo, err error) {
	if !pager.loaded {
		return 0, ErrClosed
	}
	if err = pager.Reserve(1); err != nil {
		return
	}
	n = pager.count
	pager.count++
	pager.pages[n] = pager.allocateBuffer()
	pager.dirty[n] = struct{}{}
	return
}

// Reserve reports ErrTableFull unless k more pages can be allocated.
func (pager *Pager[F]) Reserve(k int) error {
	if pager.max == 0 {
		return nil
	}
	if int64(pager.count)+int64(k) > int64(pager.max) {
		return fmt.Errorf("%d pages in use, %d more needed, limit %d: %w", pager.count, k, pager.max, ErrTableFull)
	}
	return nil
}

// MarkDirty schedules page n for the next flush.
func (pager *Pager[F]) MarkDirty(n PageNo) {
	if _, ok := pager.pages[n]; ok {
		pager.dirty[n] = struct{}{}
	}
}

// Dirty reports whether page n has unflushed changes.
func (pager *Pager[F]) Dirty(n PageNo) bool {
	_, ok := pager.dirty[n]
	return ok
}

// Flush writes page n if it is resident.
func (pager *Pager[F]) Flush(n PageNo) (err error) {
	if !pager.loaded {
		return ErrClosed
	}
	buf, ok := pager.pages[n]
	if !ok {
		return
	}
	if _, err = pager.file.WriteAt(*buf, int64(n)*int64(pager.size)); err != nil {
		return errors.Wrapf(fmt.Errorf("%w: %w", ErrIO, err), "write page %d", n)
	}
	delete(pager.dirty, n)
	if n >= pager.stored {
		pager.stored = n + 1
	}
	pager.log.Debug("page flushed", zap.Uint32("page", n))
	return
}

// FlushAll writes every dirty page in page order and syncs the file.
func (pager *Pager[F]) FlushAll() (err error) {
	if !pager.loaded {
		return ErrClosed
	}
	dirty := make([]PageNo, 0, len(pager.dirty))
	for n := range pager.dirty {
		dirty = append(dirty, n)
	}
	slices.Sort(dirty)
	for _, n := range dirty {
		if err = pager.Flush(n); err != nil {
			return
		}
	}
	if err = pager.file.Sync(); err != nil {
		return errors.Wrapf(fmt.Errorf("%w: %w", ErrIO, err), "sync")
	}
	return
}

// Close flushes dirty pages and closes the file. The file is closed even
// when flushing fails; the first error is returned.
func (pager *Pager[F]) Close() (err error) {
	if !pager.loaded {
		return ErrClosed
	}
	err = pager.FlushAll()
	if cerr := pager.file.Close(); cerr != nil && err == nil {
		err = errors.Wrapf(fmt.Errorf("%w: %w", ErrIO, cerr), "close")
	}

	for n, buf := range pager.pages {
		pager.recycleBuffer(buf)
		delete(pager.pages, n)
	}
	pager.dirty = nil
	pager.pool.New = nil
	pager.loaded = false
	pager.log.Debug("pager closed", zap.Error(err))
	return
}

// Buffers are pooled by pointer so Put does not allocate.
func (pager *Pager[F]) allocateBuffer() *[]byte {
	buf := pager.pool.Get().(*[]byte)
	clear(*buf)
	return buf
}

func (pager *Pager[F]) recycleBuffer(buf *[]byte) {
	pager.pool.Put(buf)
}
