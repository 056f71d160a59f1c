// Package console collects the diagnostics a pattern run produces:
// level-tagged log lines plus the single terminal hard error.
package console

import (
	"fmt"

	plerr "github.com/hexpat-lang/hexpat/core/errors"
)

// Level classifies a log message.
type Level int

const (
	Debug Level = iota
	Info
	Warning
	Error
)

var levelNames = [...]string{
	Debug:   "debug",
	Info:    "info",
	Warning: "warning",
	Error:   "error",
}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// Message is one log line.
type Message struct {
	Level Level
	Text  string
}

// Console is the per-run diagnostics sink. It is not safe for
// concurrent use; a run owns its console.
type Console struct {
	log       []Message
	hardError *plerr.Error
}

// New returns an empty console.
func New() *Console {
	return &Console{}
}

// Log appends a message at the given level.
func (c *Console) Log(level Level, text string) {
	c.log = append(c.log, Message{Level: level, Text: text})
}

// Logf is Log with formatting.
func (c *Console) Logf(level Level, format string, args ...any) {
	c.Log(level, fmt.Sprintf(format, args...))
}

// Messages returns the accumulated log in order.
func (c *Console) Messages() []Message {
	return c.log
}

// SetHardError records the terminal error of the run and mirrors it
// into the log at Error level.
func (c *Console) SetHardError(err *plerr.Error) {
	c.hardError = err
	c.Log(Error, err.Message)
}

// LastHardError returns the terminal error, or nil if the run
// succeeded so far.
func (c *Console) LastHardError() *plerr.Error {
	return c.hardError
}

// Clear resets the console at the start of a run.
func (c *Console) Clear() {
	c.log = nil
	c.hardError = nil
}
