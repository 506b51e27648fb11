// Command sqlet is an interactive shell over a single users table stored in
// one file.
//
//	sqlet users.db
//	db > insert 1 aj amariuslesure@hotmail.com
//	Executed.
//	db > select
//	(1, aj, amariuslesure@hotmail.com)
//	Executed.
//	db > .exit
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/dacapoday/sqlet/command"
	"github.com/dacapoday/sqlet/internal/logging"
	"github.com/dacapoday/sqlet/repl"
	"github.com/dacapoday/sqlet/table"
)

const version = "0.1.0"

// CLI defines the command-line interface for sqlet.
type CLI struct {
	Filename string `arg:"" help:"Table file, created if missing." type:"path" env:"SQLET_FILE"`

	PageSize uint32 `name:"page-size" default:"4096" env:"SQLET_PAGE_SIZE" help:"Page size for a new file (power of two, 1024-65536)."`
	MaxPages uint32 `name:"max-pages" default:"0" env:"SQLET_MAX_PAGES" help:"Page limit including the header page; 0 is unlimited."`
	Sync     bool   `name:"sync" env:"SQLET_SYNC" help:"Flush and sync after every insert."`

	Log LogFlags `embed:"" prefix:"log-"`

	Version kong.VersionFlag `help:"Print version information."`
}

// LogFlags configures the logger. Logs never go to stdout.
type LogFlags struct {
	Level      string `default:"warn" enum:"debug,info,warn,error,off" env:"SQLET_LOG_LEVEL" help:"Log level."`
	Format     string `default:"console" enum:"console,json" env:"SQLET_LOG_FORMAT" help:"Log encoding."`
	File       string `type:"path" env:"SQLET_LOG_FILE" help:"Log to this rotated file instead of stderr."`
	MaxSize    int    `name:"max-size" default:"10" env:"SQLET_LOG_MAX_SIZE" help:"Megabytes before the log file rotates."`
	MaxBackups int    `name:"max-backups" default:"3" env:"SQLET_LOG_MAX_BACKUPS" help:"Rotated log files to keep."`
	MaxAge     int    `name:"max-age" default:"28" env:"SQLET_LOG_MAX_AGE" help:"Days to keep rotated log files."`
	Compress   bool   `env:"SQLET_LOG_COMPRESS" help:"Gzip rotated log files."`
}

func (f LogFlags) config() logging.Config {
	return logging.Config{
		Level:      f.Level,
		Format:     f.Format,
		File:       f.File,
		MaxSize:    f.MaxSize,
		MaxBackups: f.MaxBackups,
		MaxAge:     f.MaxAge,
		Compress:   f.Compress,
	}
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("sqlet"),
		kong.Description("A single-table store behind an insert/select shell."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	os.Exit(cli.run(context.Background(), os.Stdin, os.Stdout, os.Stderr, interactive))
}

// run executes the shell and returns the process exit code.
func (cli *CLI) run(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, interactive bool) int {
	log, closeLog, err := logging.New(cli.Log.config(), stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer closeLog()

	db, err := table.Open(cli.Filename,
		table.WithPageSize(cli.PageSize),
		table.WithMaxPages(cli.MaxPages),
		table.WithSync(cli.Sync),
		table.WithLogger(log),
	)
	if err != nil {
		log.Error("open failed", zap.String("file", cli.Filename), zap.Error(err))
		fmt.Fprintf(stderr, "Unable to open file %s: %v\n", cli.Filename, err)
		return 1
	}

	if interactive {
		fmt.Fprintf(stderr, "sqlet %s: %s, %d rows. Enter .exit to quit.\n", version, cli.Filename, db.Count())
	}

	sess := &command.Session{Table: db, Out: stdout, Log: log}
	status, err := repl.Run(ctx, sess, stdin, stdout)
	switch status {
	case repl.StatusEOF:
		log.Warn("input ended without .exit")
	case repl.StatusExit:
	default:
		log.Error("shell stopped", zap.Stringer("status", status), zap.Error(err))
	}

	if cerr := db.Close(); cerr != nil {
		log.Error("close failed", zap.Error(cerr))
		fmt.Fprintln(stderr, command.Message(cerr))
		return 1
	}
	if err != nil {
		fmt.Fprintln(stderr, command.Message(err))
		return 1
	}
	return 0
}
