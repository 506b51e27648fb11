// Package mem provides an in-memory sqlet.File for tests and tooling.
package mem

import (
	"io"
	"sync"

	"github.com/dacapoday/sqlet"
)

// Op selects the file operations a fault applies to.
type Op uint8

const (
	OpRead Op = 1 << iota
	OpWrite
	OpSync
	OpTruncate
)

// File is an in-memory implementation of the sqlet.File interface.
// It is safe for concurrent use by multiple goroutines.
//
// File requires no initialization - just declare and use:
//
//	var f File
//	f.WriteAt([]byte("hello"), 0)
//
// Close keeps the contents, so a table can be closed and loaded again from
// the same File to simulate a restart.
type File struct {
	rw     sync.RWMutex
	data   []byte
	faults Op
	err    error
	stats  Stats
}

// Stats counts the operations issued against a File.
type Stats struct {
	Reads  int
	Writes int
	Syncs  int
	Closes int
}

var _ sqlet.File = new(File)

// Fail makes every subsequent operation in ops return err, until Heal is called.
func (file *File) Fail(ops Op, err error) {
	file.rw.Lock()
	file.faults = ops
	file.err = err
	file.rw.Unlock()
}

// Heal clears any fault installed by Fail.
func (file *File) Heal() {
	file.Fail(0, nil)
}

func (file *File) fault(op Op) error {
	if file.faults&op != 0 {
		return file.err
	}
	return nil
}

// Stats returns a snapshot of the operation counters.
func (file *File) Stats() Stats {
	file.rw.RLock()
	defer file.rw.RUnlock()
	return file.stats
}

// Close records the close. The contents are retained.
func (file *File) Close() error {
	file.rw.Lock()
	file.stats.Closes++
	file.rw.Unlock()
	return nil
}

// Size returns the current size of the file in bytes.
func (file *File) Size() int64 {
	file.rw.RLock()
	defer file.rw.RUnlock()
	return int64(len(file.data))
}

// Bytes returns a copy of the file contents.
func (file *File) Bytes() []byte {
	file.rw.RLock()
	defer file.rw.RUnlock()
	return append([]byte(nil), file.data...)
}

// ReadFrom reads data from r until EOF and replaces the entire file content.
// It implements io.ReaderFrom interface.
func (file *File) ReadFrom(r io.Reader) (n int64, err error) {
	data, err := io.ReadAll(r)
	file.rw.Lock()
	file.data = data
	file.rw.Unlock()
	return int64(len(data)), err
}

// WriteTo writes the entire file content to w.
// It implements io.WriterTo interface.
func (file *File) WriteTo(w io.Writer) (n int64, err error) {
	file.rw.RLock()
	defer file.rw.RUnlock()
	c, err := w.Write(file.data)
	return int64(c), err
}

// WriteAt writes len(p) bytes from p to the file starting at byte offset off.
// Writing past the end grows the file, filling the gap with zero bytes.
func (file *File) WriteAt(p []byte, off int64) (n int, err error) {
	if off < 0 {
		return 0, io.ErrUnexpectedEOF
	}

	file.rw.Lock()
	defer file.rw.Unlock()
	if err = file.fault(OpWrite); err != nil {
		return
	}
	file.stats.Writes++
	if end := off + int64(len(p)); end > int64(len(file.data)) {
		file.grow(end)
	}
	return copy(file.data[off:], p), nil
}

// ReadAt reads len(p) bytes into p starting at byte offset off in the file.
// Like os.File, it returns io.EOF when fewer than len(p) bytes are available.
func (file *File) ReadAt(p []byte, off int64) (n int, err error) {
	if off < 0 {
		return 0, io.ErrUnexpectedEOF
	}

	file.rw.Lock()
	defer file.rw.Unlock()
	if err = file.fault(OpRead); err != nil {
		return
	}
	file.stats.Reads++
	if off >= int64(len(file.data)) {
		return 0, io.EOF
	}
	n = copy(p, file.data[off:])
	if n < len(p) {
		err = io.EOF
	}
	return
}

// Truncate changes the size of the file.
// Growing the file fills the new space with zero bytes.
func (file *File) Truncate(size int64) error {
	if size < 0 {
		return io.ErrUnexpectedEOF
	}

	file.rw.Lock()
	defer file.rw.Unlock()
	if err := file.fault(OpTruncate); err != nil {
		return err
	}
	if size > int64(len(file.data)) {
		file.grow(size)
	} else {
		file.data = file.data[:size]
	}
	return nil
}

// Sync is a no-op for in-memory files unless a fault is installed.
func (file *File) Sync() error {
	file.rw.Lock()
	defer file.rw.Unlock()
	if err := file.fault(OpSync); err != nil {
		return err
	}
	file.stats.Syncs++
	return nil
}

func (file *File) grow(size int64) {
	if size <= int64(cap(file.data)) {
		tail := file.data[len(file.data):size]
		clear(tail)
		file.data = file.data[:size]
		return
	}
	data := make([]byte, size, max(size, 2*int64(cap(file.data))))
	copy(data, file.data)
	file.data = data
}
