// Package notify is the shared channel user-facing messages are routed
// through, categorized by severity.
package notify

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

var (
	infoLabel  = color.New(color.FgCyan).SprintFunc()
	warnLabel  = color.New(color.FgYellow).SprintFunc()
	errorLabel = color.New(color.FgRed, color.Bold).SprintFunc()
)

// Console writes severity-tagged messages to a writer.
type Console struct {
	out io.Writer
}

// NewConsole creates a Console writing to stderr.
func NewConsole() *Console {
	return &Console{out: os.Stderr}
}

// NewConsoleWriter creates a Console writing to the given writer.
func NewConsoleWriter(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) Infof(format string, args ...interface{}) {
	fmt.Fprintf(c.out, "%s %s\n", infoLabel("info:"), fmt.Sprintf(format, args...))
}

func (c *Console) Warnf(format string, args ...interface{}) {
	fmt.Fprintf(c.out, "%s %s\n", warnLabel("warning:"), fmt.Sprintf(format, args...))
}

func (c *Console) Errorf(format string, args ...interface{}) {
	fmt.Fprintf(c.out, "%s %s\n", errorLabel("error:"), fmt.Sprintf(format, args...))
}
