package table

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dacapoday/sqlet"
	"github.com/dacapoday/sqlet/mem"
	"github.com/dacapoday/sqlet/row"
)

var epoch = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func fixedClock() time.Time { return epoch }

func load(t *testing.T, file *mem.File, opts ...Option) *Table[*mem.File] {
	t.Helper()
	tbl := new(Table[*mem.File])
	require.NoError(t, tbl.Load(file, append([]Option{withClock(fixedClock)}, opts...)...))
	return tbl
}

func collect(t *testing.T, tbl *Table[*mem.File]) (lines []string) {
	t.Helper()
	for line, err := range tbl.SelectAll() {
		require.NoError(t, err)
		lines = append(lines, line)
	}
	return
}

func insertRange(t *testing.T, tbl *Table[*mem.File], lo, hi int) {
	t.Helper()
	for i := lo; i <= hi; i++ {
		require.NoError(t, tbl.Insert(fmt.Sprint(i), fmt.Sprintf("user%d", i), fmt.Sprintf("person%d@example.com", i)))
	}
}

func TestCreate(t *testing.T) {
	file := new(mem.File)
	tbl := load(t, file)

	assert.Zero(t, tbl.Count())
	assert.Equal(t, sqlet.PageNo(1), tbl.Root())
	assert.Equal(t, 4096, tbl.PageSize())
	assert.NotEqual(t, uuid.Nil, tbl.FileID())
	assert.True(t, tbl.Created().Equal(epoch))
	assert.Equal(t, int64(2*4096), file.Size())
	assert.Empty(t, collect(t, tbl))
	require.NoError(t, tbl.Close())
}

func TestInsertSelect(t *testing.T) {
	tbl := load(t, new(mem.File))
	require.NoError(t, tbl.Insert("1", "aj", "amariuslesure@hotmail.com"))
	assert.Equal(t, []string{"(1, aj, amariuslesure@hotmail.com)"}, collect(t, tbl))
	assert.Equal(t, uint64(1), tbl.Count())

	r, found, err := tbl.Find(1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, row.Row{ID: 1, Username: "aj", Email: "amariuslesure@hotmail.com"}, r)
}

func TestSelectOrdered(t *testing.T) {
	tbl := load(t, new(mem.File))
	for _, id := range []string{"3", "1", "2"} {
		require.NoError(t, tbl.Insert(id, "u"+id, "e"+id))
	}
	assert.Equal(t, []string{"(1, u1, e1)", "(2, u2, e2)", "(3, u3, e3)"}, collect(t, tbl))
}

func TestValidationLeavesTableUnchanged(t *testing.T) {
	tbl := load(t, new(mem.File))
	require.NoError(t, tbl.Insert("1", "a", "b"))

	tests := []struct {
		id, username, email string
		message             string
	}{
		{"-1", "a", "b", row.MsgNegativeID},
		{"x", "a", "b", row.MsgSyntax},
		{"2", string(bytes.Repeat([]byte{'a'}, 33)), "b", row.MsgTooLong},
		{"2", "a", string(bytes.Repeat([]byte{'a'}, 256)), row.MsgTooLong},
		{"2", "a\x00b", "x@y", row.MsgNUL},
	}
	for _, tt := range tests {
		err := tbl.Insert(tt.id, tt.username, tt.email)
		require.ErrorIs(t, err, sqlet.ErrValidation)
		var verr *sqlet.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, tt.message, verr.Message)
	}
	assert.Equal(t, uint64(1), tbl.Count())
	assert.Equal(t, []string{"(1, a, b)"}, collect(t, tbl))
}

func TestDuplicateKey(t *testing.T) {
	tbl := load(t, new(mem.File))
	require.NoError(t, tbl.Insert("1", "a", "b"))
	require.ErrorIs(t, tbl.Insert("1", "c", "d"), sqlet.ErrDuplicateKey)
	assert.Equal(t, uint64(1), tbl.Count())
	assert.Equal(t, []string{"(1, a, b)"}, collect(t, tbl))
}

func TestPersistence(t *testing.T) {
	file := new(mem.File)
	tbl := load(t, file, WithPageSize(1024))
	insertRange(t, tbl, 1, 300)
	want := collect(t, tbl)
	root, id := tbl.Root(), tbl.FileID()
	require.NotEqual(t, sqlet.PageNo(1), root)
	require.NoError(t, tbl.Close())
	require.Equal(t, 1, file.Stats().Closes)

	// the stored page size wins over the option
	tbl = load(t, file, WithPageSize(4096))
	assert.Equal(t, 1024, tbl.PageSize())
	assert.Equal(t, uint64(300), tbl.Count())
	assert.Equal(t, root, tbl.Root())
	assert.Equal(t, id, tbl.FileID())
	assert.Equal(t, want, collect(t, tbl))
	require.NoError(t, tbl.Check())

	height, err := tbl.Height()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, height, 3)

	insertRange(t, tbl, 301, 310)
	require.NoError(t, tbl.Close())

	tbl = load(t, file)
	assert.Equal(t, uint64(310), tbl.Count())
	require.NoError(t, tbl.Check())
}

func TestSync(t *testing.T) {
	file := new(mem.File)
	tbl := load(t, file, WithSync(true))
	syncs := file.Stats().Syncs
	require.NoError(t, tbl.Insert("7", "a", "b"))
	assert.Equal(t, syncs+1, file.Stats().Syncs)

	// a copy taken without Close already holds the row
	var clone mem.File
	_, err := clone.ReadFrom(bytes.NewReader(file.Bytes()))
	require.NoError(t, err)
	copied := load(t, &clone)
	assert.Equal(t, []string{"(7, a, b)"}, collect(t, copied))
}

func TestSyncFailureKeepsRow(t *testing.T) {
	file := new(mem.File)
	core, logs := observer.New(zap.WarnLevel)
	tbl := load(t, file, WithSync(true), WithLogger(zap.New(core)))

	injected := errors.New("disk gone")
	file.Fail(mem.OpWrite, injected)
	require.NoError(t, tbl.Insert("1", "a", "a@b"))
	assert.Equal(t, uint64(1), tbl.Count())
	assert.Equal(t, []string{"(1, a, a@b)"}, collect(t, tbl))
	require.Equal(t, 1, logs.FilterMessage("table sync failed").Len())
	require.ErrorIs(t, tbl.Flush(), injected)

	// the pages stay dirty and reach the file once writes succeed
	file.Heal()
	require.NoError(t, tbl.Close())
	reopened := load(t, file)
	assert.Equal(t, []string{"(1, a, a@b)"}, collect(t, reopened))
}

func TestTableFull(t *testing.T) {
	tbl := load(t, new(mem.File), WithPageSize(1024), WithMaxPages(2))
	insertRange(t, tbl, 1, 3)
	require.ErrorIs(t, tbl.Insert("4", "a", "b"), sqlet.ErrTableFull)
	assert.Equal(t, uint64(3), tbl.Count())
	assert.Len(t, collect(t, tbl), 3)
	require.NoError(t, tbl.Check())
}

func TestCorruptHeader(t *testing.T) {
	file := new(mem.File)
	tbl := load(t, file)
	require.NoError(t, tbl.Insert("1", "a", "b"))
	require.NoError(t, tbl.Close())

	data := file.Bytes()
	data[6] ^= 0xff
	var damaged mem.File
	_, err := damaged.ReadFrom(bytes.NewReader(data))
	require.NoError(t, err)
	require.ErrorIs(t, new(Table[*mem.File]).Load(&damaged), sqlet.ErrCorrupt)

	var foreign mem.File
	_, err = foreign.ReadFrom(bytes.NewReader(bytes.Repeat([]byte("junk"), 1024)))
	require.NoError(t, err)
	require.ErrorIs(t, new(Table[*mem.File]).Load(&foreign), sqlet.ErrUnknownMagicCode)
}

func TestTruncatedFile(t *testing.T) {
	file := new(mem.File)
	tbl := load(t, file, WithPageSize(1024))
	insertRange(t, tbl, 1, 20)
	require.NoError(t, tbl.Close())

	require.NoError(t, file.Truncate(file.Size()-1024))
	require.ErrorIs(t, new(Table[*mem.File]).Load(file), sqlet.ErrCorrupt)
}

func TestCloseFlushFailure(t *testing.T) {
	file := new(mem.File)
	tbl := load(t, file)
	require.NoError(t, tbl.Insert("1", "a", "b"))

	injected := errors.New("injected")
	file.Fail(mem.OpWrite, injected)
	err := tbl.Close()
	require.ErrorIs(t, err, sqlet.ErrIO)
	require.ErrorIs(t, err, injected)
	assert.Equal(t, 1, file.Stats().Closes)
	require.ErrorIs(t, tbl.Close(), sqlet.ErrClosed)
}

func TestClosed(t *testing.T) {
	tbl := load(t, new(mem.File))
	require.NoError(t, tbl.Close())

	require.ErrorIs(t, tbl.Insert("1", "a", "b"), sqlet.ErrClosed)
	require.ErrorIs(t, tbl.Flush(), sqlet.ErrClosed)
	require.ErrorIs(t, tbl.Dump(new(bytes.Buffer)), sqlet.ErrClosed)
	for _, err := range tbl.Rows() {
		require.ErrorIs(t, err, sqlet.ErrClosed)
	}
}

func TestOpenPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.db")
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Insert("1", "aj", "amariuslesure@hotmail.com"))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	var lines []string
	for line, err := range db.SelectAll() {
		require.NoError(t, err)
		lines = append(lines, line)
	}
	assert.Equal(t, []string{"(1, aj, amariuslesure@hotmail.com)"}, lines)
	require.NoError(t, db.Close())

	_, err = Open(filepath.Join(t.TempDir(), "missing", "users.db"))
	require.ErrorIs(t, err, sqlet.ErrIO)
}
