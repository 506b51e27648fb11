package table

import (
	"time"

	"go.uber.org/zap"

	"github.com/dacapoday/sqlet/pager"
)

// Option configures Open and Load.
type Option func(*options)

type options struct {
	pageSize uint32
	maxPages uint32
	sync     bool
	logger   *zap.Logger
	clock    func() time.Time
}

func defaultOptions() options {
	return options{
		pageSize: pager.DefaultPageSize,
		logger:   zap.NewNop(),
		clock:    time.Now,
	}
}

// WithPageSize sets the page size of a new file.
// Existing files keep the page size recorded in their header.
func WithPageSize(size uint32) Option {
	return func(o *options) {
		o.pageSize = size
	}
}

// WithMaxPages caps the file at n pages, header included. Zero is unlimited.
func WithMaxPages(n uint32) Option {
	return func(o *options) {
		o.maxPages = n
	}
}

// WithSync flushes and syncs the file after every insert.
func WithSync(sync bool) Option {
	return func(o *options) {
		o.sync = sync
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func withClock(clock func() time.Time) Option {
	return func(o *options) {
		o.clock = clock
	}
}
