// Package repl hosts a calc.Session on a character stream: it reads one
// statement per line, executes it and writes one output line back.
package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/antibyte/retrocalc/pkg/calc"
	"github.com/antibyte/retrocalc/pkg/configuration"
	"github.com/antibyte/retrocalc/pkg/logger"
)

// Recorder receives every executed statement. Implementations must not
// block for long; the loop waits for Record before reading the next line.
type Recorder interface {
	Record(input, output string, failed bool) error
}

// Options controls output formatting of the loop.
type Options struct {
	// Prefix is written before every successful result.
	Prefix string
	// MaxLineLength bounds a single statement; 0 means unlimited.
	MaxLineLength int
	// QuietErrors suppresses error messages on the output stream.
	QuietErrors bool
	// Recorder, if set, journals each statement.
	Recorder Recorder
}

// OptionsFromConfig reads the [Calc] section.
func OptionsFromConfig() Options {
	return Options{
		Prefix:        configuration.GetUnquoted("Calc", "output_prefix", "\t"),
		MaxLineLength: configuration.GetInt("Calc", "max_line_length", calc.DefaultMaxLineLength),
		QuietErrors:   !configuration.GetBool("Calc", "echo_errors", true),
	}
}

// Run executes statements from in until end of input or the exit keyword.
// Statement errors are reported on out and do not stop the loop; only a
// failure to read or write ends it with an error.
func Run(in io.Reader, out io.Writer, sess *calc.Session, opts Options) error {
	br, ok := in.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(in)
	}
	lx := calc.NewLexer(br)
	lx.SetMaxLineLength(opts.MaxLineLength)

	logger.Info(logger.AreaREPL, "REPL started")
	statements := 0
	defer func() {
		logger.Info(logger.AreaREPL, "REPL finished after %d statements", statements)
	}()

	for {
		stmt, err := lx.Next(sess)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				return nil
			case errors.Is(err, calc.ErrExit):
				logger.Debug(logger.AreaREPL, "exit requested")
				return nil
			}
			if _, isStatementErr := calc.KindOf(err); !isStatementErr {
				return fmt.Errorf("reading input: %w", err)
			}
			statements++
			if werr := report(out, opts, lx.Line(), "", err); werr != nil {
				return werr
			}
			continue
		}

		if stmt.Empty() {
			continue
		}
		statements++

		res, err := sess.Exec(stmt)
		if werr := report(out, opts, stmt.Source, res.Text, err); werr != nil {
			return werr
		}
	}
}

// report writes one statement outcome and journals it.
func report(out io.Writer, opts Options, input, text string, stmtErr error) error {
	var line string
	if stmtErr != nil {
		line = stmtErr.Error()
	} else {
		line = opts.Prefix + text
	}

	if opts.Recorder != nil {
		if err := opts.Recorder.Record(input, line, stmtErr != nil); err != nil {
			logger.Warn(logger.AreaREPL, "recording statement failed: %v", err)
		}
	}

	if stmtErr != nil && opts.QuietErrors {
		return nil
	}
	if _, err := fmt.Fprintln(out, line); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}
