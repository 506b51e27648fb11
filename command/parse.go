package command

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/dacapoday/sqlet"
	"github.com/dacapoday/sqlet/row"
)

// Command is a parsed input line: a *MetaCommand or a *Statement.
type Command interface {
	command()
}

// MetaCommand is a line starting with '.'. Name is the whole line.
type MetaCommand struct {
	Name string
}

func (*MetaCommand) command() {}

type StatementKind uint8

const (
	Insert StatementKind = iota + 1
	Select
)

func (k StatementKind) String() string {
	switch k {
	case Insert:
		return "insert"
	case Select:
		return "select"
	}
	return "unknown"
}

// Statement is a prepared insert or select. Row is set for inserts.
type Statement struct {
	Kind StatementKind
	Row  row.Row
}

func (*Statement) command() {}

//nolint:govet // participle grammar tags are not standard struct tags
type statementGrammar struct {
	Verb string   `parser:"@Word"`
	Args []string `parser:"@Word*"`
}

var statementLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Word", Pattern: `[^\s]+`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var statementParser = participle.MustBuild[statementGrammar](
	participle.Lexer(statementLexer),
	participle.Elide("Whitespace"),
)

// Parse prepares one input line. Insert fields are parsed and validated
// here, so a rejected insert never reaches the table.
func Parse(line string) (Command, error) {
	if strings.HasPrefix(line, ".") {
		return &MetaCommand{Name: line}, nil
	}

	parsed, err := statementParser.ParseString("", line)
	if err != nil {
		return nil, &LineError{Err: sqlet.ErrUnrecognizedStatement, Line: line}
	}

	switch parsed.Verb {
	case "insert":
		if len(parsed.Args) != 3 {
			return nil, sqlet.Invalid("", row.MsgSyntax)
		}
		r, err := row.Parse(parsed.Args[0], parsed.Args[1], parsed.Args[2])
		if err != nil {
			return nil, err
		}
		return &Statement{Kind: Insert, Row: r}, nil
	case "select":
		if len(parsed.Args) != 0 {
			return nil, sqlet.Invalid("", row.MsgSyntax)
		}
		return &Statement{Kind: Select}, nil
	}
	return nil, &LineError{Err: sqlet.ErrUnrecognizedStatement, Line: line}
}
