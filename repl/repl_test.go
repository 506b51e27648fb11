package repl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dacapoday/sqlet/command"
	"github.com/dacapoday/sqlet/mem"
	"github.com/dacapoday/sqlet/table"
)

func open(t *testing.T, file *mem.File, opts ...table.Option) *table.Table[*mem.File] {
	t.Helper()
	tbl := new(table.Table[*mem.File])
	require.NoError(t, tbl.Load(file, opts...))
	return tbl
}

// script runs commands against the table in file and returns the output lines.
func script(t *testing.T, file *mem.File, commands []string, opts ...table.Option) ([]string, Status) {
	t.Helper()
	tbl := open(t, file, opts...)
	defer func() { require.NoError(t, tbl.Close()) }()

	var out bytes.Buffer
	in := strings.NewReader(strings.Join(commands, "\n") + "\n")
	status, err := Run(context.Background(), &command.Session{Table: tbl}, in, &out)
	require.NoError(t, err)
	return strings.Split(out.String(), "\n"), status
}

func TestInsertSelectExit(t *testing.T) {
	got, status := script(t, new(mem.File), []string{
		"insert 1 aj amariuslesure@hotmail.com",
		"select",
		".exit",
	})
	assert.Equal(t, StatusExit, status)
	assert.Equal(t, []string{
		"db > Executed.",
		"db > (1, aj, amariuslesure@hotmail.com)",
		"Executed.",
		"db > ",
	}, got)
}

func TestDuplicateKeyScenario(t *testing.T) {
	got, _ := script(t, new(mem.File), []string{
		"insert 1 a a@b.com",
		"insert 1 b b@c.com",
		"select",
		".exit",
	})
	assert.Equal(t, []string{
		"db > Executed.",
		"db > Error: Duplicate key.",
		"db > (1, a, a@b.com)",
		"Executed.",
		"db > ",
	}, got)
}

func TestEmptySelect(t *testing.T) {
	got, _ := script(t, new(mem.File), []string{"select", ".exit"})
	assert.Equal(t, []string{"db > Executed.", "db > "}, got)
}

func TestErrorMessages(t *testing.T) {
	long := strings.Repeat("a", 33)
	got, _ := script(t, new(mem.File), []string{
		"insert -1 cstack foo@bar.com",
		"insert 1 " + long + " foo@bar.com",
		"insert 1 a",
		"insert x a b",
		"update 1 a b",
		".foo",
		"",
		"select",
		".exit",
	})
	assert.Equal(t, []string{
		"db > ID must be positive.",
		"db > String is too long.",
		"db > Syntax error. Could not parse statement.",
		"db > Syntax error. Could not parse statement.",
		"db > Unrecognized keyword at start of 'update 1 a b'.",
		"db > Unrecognized command '.foo'",
		"db > Unrecognized keyword at start of ''.",
		"db > Executed.",
		"db > ",
	}, got)
}

func TestMaxLengthStrings(t *testing.T) {
	username := strings.Repeat("a", 32)
	email := strings.Repeat("a", 255)
	got, _ := script(t, new(mem.File), []string{
		fmt.Sprintf("insert 1 %s %s", username, email),
		"select",
		".exit",
	})
	assert.Equal(t, []string{
		"db > Executed.",
		fmt.Sprintf("db > (1, %s, %s)", username, email),
		"Executed.",
		"db > ",
	}, got)
}

func TestManyRowsSorted(t *testing.T) {
	var commands []string
	for i := 50; i >= 1; i-- {
		commands = append(commands, fmt.Sprintf("insert %d user%d person%d@example.com", i, i, i))
	}
	commands = append(commands, "select", ".exit")
	got, _ := script(t, new(mem.File), commands)

	var want []string
	for range 50 {
		want = append(want, "db > Executed.")
	}
	want = append(want, "db > (1, user1, person1@example.com)")
	for i := 2; i <= 50; i++ {
		want = append(want, fmt.Sprintf("(%d, user%d, person%d@example.com)", i, i, i))
	}
	want = append(want, "Executed.", "db > ")
	assert.Equal(t, want, got)
}

func TestPersistsAcrossRuns(t *testing.T) {
	file := new(mem.File)
	script(t, file, []string{"insert 1 user1 person1@example.com", ".exit"})

	got, _ := script(t, file, []string{"select", ".exit"})
	assert.Equal(t, []string{
		"db > (1, user1, person1@example.com)",
		"Executed.",
		"db > ",
	}, got)
}

func TestBtreeScenario(t *testing.T) {
	var commands []string
	for i := 1; i <= 14; i++ {
		commands = append(commands, fmt.Sprintf("insert %d user%d person%d@example.com", i, i, i))
	}
	commands = append(commands, ".btree", ".exit")
	got, _ := script(t, new(mem.File), commands)

	want := []string{"db > Tree:", "- internal (size 1)", "  - leaf (size 7)"}
	for i := 1; i <= 7; i++ {
		want = append(want, fmt.Sprintf("    - %d", i))
	}
	want = append(want, "  - key 7", "  - leaf (size 7)")
	for i := 8; i <= 14; i++ {
		want = append(want, fmt.Sprintf("    - %d", i))
	}
	want = append(want, "db > ")
	assert.Equal(t, want, got[14:])
}

func TestTableFullScenario(t *testing.T) {
	got, _ := script(t, new(mem.File), []string{
		"insert 1 a b",
		"insert 2 a b",
		"insert 3 a b",
		"insert 4 a b",
		".exit",
	}, table.WithPageSize(1024), table.WithMaxPages(2))
	assert.Equal(t, "db > Error: Table full.", got[3])
}

func TestEOF(t *testing.T) {
	tbl := open(t, new(mem.File))
	defer tbl.Close()

	var out bytes.Buffer
	status, err := Run(context.Background(), &command.Session{Table: tbl}, strings.NewReader("insert 1 a b\nselect"), &out)
	require.NoError(t, err)
	assert.Equal(t, StatusEOF, status)
	assert.Equal(t, "db > Executed.\ndb > (1, a, b)\nExecuted.\ndb > ", out.String())
}

func TestCRLF(t *testing.T) {
	tbl := open(t, new(mem.File))
	defer tbl.Close()

	var out bytes.Buffer
	status, err := Run(context.Background(), &command.Session{Table: tbl}, strings.NewReader("insert 1 a b\r\n.exit\r\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, StatusExit, status)
	assert.Equal(t, "db > Executed.\ndb > ", out.String())
}

func TestCanceled(t *testing.T) {
	tbl := open(t, new(mem.File))
	defer tbl.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	status, err := Run(ctx, &command.Session{Table: tbl}, strings.NewReader("select\n"), &out)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusCanceled, status)
	assert.Empty(t, out.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestWriteFailure(t *testing.T) {
	tbl := open(t, new(mem.File))
	defer tbl.Close()

	status, err := Run(context.Background(), &command.Session{Table: tbl}, strings.NewReader("select\n"), failingWriter{})
	require.Error(t, err)
	assert.Equal(t, StatusError, status)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "exit", StatusExit.String())
	assert.Equal(t, "eof", StatusEOF.String())
	assert.Equal(t, "Status(9)", Status(9).String())
}
