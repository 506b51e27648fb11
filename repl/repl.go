// Package repl drives a command session from a line-oriented input.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dacapoday/sqlet/command"
)

// Prompt is written before every read.
const Prompt = "db > "

// Status tells why Run returned.
type Status uint8

const (
	StatusExit     Status = iota // .exit was entered
	StatusEOF                    // the input ended
	StatusCanceled               // ctx was canceled
	StatusError                  // reading input or writing output failed
)

func (s Status) String() string {
	switch s {
	case StatusExit:
		return "exit"
	case StatusEOF:
		return "eof"
	case StatusCanceled:
		return "canceled"
	case StatusError:
		return "error"
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// Run reads lines from in and executes them in sess until .exit or the end
// of input. Prompts and error messages go to out; command output goes to
// sess.Out, which defaults to out.
//
// Command failures are printed and the loop continues. Run returns an error
// only when reading, writing or ctx fails.
func Run(ctx context.Context, sess *command.Session, in io.Reader, out io.Writer) (Status, error) {
	if sess.Out == nil {
		sess.Out = out
	}
	r := bufio.NewReader(in)
	for {
		if err := ctx.Err(); err != nil {
			return StatusCanceled, err
		}
		if _, err := io.WriteString(out, Prompt); err != nil {
			return StatusError, err
		}

		line, err := r.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			if errors.Is(err, io.EOF) {
				return StatusEOF, nil
			}
			return StatusError, err
		}
		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")

		result, err := execute(ctx, sess, line)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return StatusCanceled, err
			}
			if _, err = fmt.Fprintln(out, command.Message(err)); err != nil {
				return StatusError, err
			}
		}
		if result == command.ResultExit {
			return StatusExit, nil
		}
	}
}

func execute(ctx context.Context, sess *command.Session, line string) (command.Result, error) {
	cmd, err := command.Parse(line)
	if err != nil {
		return command.ResultOK, err
	}
	return sess.Execute(ctx, cmd)
}
