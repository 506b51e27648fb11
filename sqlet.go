// Package sqlet defines the storage interfaces and error taxonomy shared by
// the single-table database: a fixed-schema row store indexed by a B-tree and
// driven by a line-oriented command REPL.
package sqlet

import "io"

// File provides access to the backing storage of a table.
// The File interface is the minimum implementation required.
//
// The *os.File type satisfies this interface.
type File interface {
	io.ReaderAt
	io.WriterAt
	io.Closer

	// Truncate changes the size of the file.
	Truncate(size int64) error

	// Sync commits the current contents of the file to stable storage.
	Sync() error
}

// PageNo identifies a page of the backing file, starting from 0.
type PageNo = uint32
