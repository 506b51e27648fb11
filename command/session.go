package command

import (
	"context"
	"fmt"
	"io"
	"iter"

	"go.uber.org/zap"

	"github.com/dacapoday/sqlet"
	"github.com/dacapoday/sqlet/btree"
	"github.com/dacapoday/sqlet/row"
)

// Result tells the caller whether to keep reading input.
type Result uint8

const (
	ResultOK Result = iota
	ResultExit
)

// Store is the table a session executes against.
// *table.Table satisfies it.
type Store interface {
	InsertRow(r row.Row) error
	SelectAll() iter.Seq2[string, error]
	Dump(w io.Writer) error
	PageSize() int
}

// Session executes commands against one table and prints to Out.
type Session struct {
	Table Store
	Out   io.Writer
	Log   *zap.Logger
}

// Execute runs cmd. Output produced before a failure stays written; the
// caller prints Message(err) for the failure.
func (s *Session) Execute(ctx context.Context, cmd Command) (result Result, err error) {
	if err = ctx.Err(); err != nil {
		return
	}
	switch cmd := cmd.(type) {
	case *MetaCommand:
		result, err = s.meta(cmd)
	case *Statement:
		err = s.statement(cmd)
	default:
		err = fmt.Errorf("unknown command %T", cmd)
	}
	if err != nil && s.Log != nil {
		s.Log.Debug("command failed", zap.Error(err))
	}
	return
}

func (s *Session) meta(cmd *MetaCommand) (Result, error) {
	switch cmd.Name {
	case ".exit":
		return ResultExit, nil
	case ".btree":
		if _, err := io.WriteString(s.Out, "Tree:\n"); err != nil {
			return ResultOK, err
		}
		return ResultOK, s.Table.Dump(s.Out)
	case ".constants":
		if _, err := io.WriteString(s.Out, "Constants:\n"); err != nil {
			return ResultOK, err
		}
		return ResultOK, PrintConstants(s.Out, s.Table.PageSize())
	}
	return ResultOK, &LineError{Err: sqlet.ErrUnrecognizedCommand, Line: cmd.Name}
}

func (s *Session) statement(stmt *Statement) (err error) {
	switch stmt.Kind {
	case Insert:
		if err = s.Table.InsertRow(stmt.Row); err != nil {
			return
		}
	case Select:
		for line, err := range s.Table.SelectAll() {
			if err != nil {
				return err
			}
			if _, err = fmt.Fprintln(s.Out, line); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown statement %v", stmt.Kind)
	}
	_, err = io.WriteString(s.Out, "Executed.\n")
	return
}

// PrintConstants writes the page layout constants for pageSize.
func PrintConstants(w io.Writer, pageSize int) (err error) {
	constants := []struct {
		name  string
		value int
	}{
		{"ROW_SIZE", row.Size},
		{"COMMON_NODE_HEADER_SIZE", btree.CommonNodeHeaderSize},
		{"LEAF_NODE_HEADER_SIZE", btree.LeafNodeHeaderSize},
		{"LEAF_NODE_CELL_SIZE", btree.LeafCellSize},
		{"LEAF_NODE_SPACE_FOR_CELLS", btree.LeafSpaceForCells(pageSize)},
		{"LEAF_NODE_MAX_CELLS", btree.LeafMaxCells(pageSize)},
	}
	for _, c := range constants {
		if _, err = fmt.Fprintf(w, "%s: %d\n", c.name, c.value); err != nil {
			return
		}
	}
	return
}
