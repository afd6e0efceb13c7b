// Package color styles rip's listings and prompts for the terminal.
// Output is plain when stdout is not a terminal, when NO_COLOR is set
// (https://no-color.org/) or when TERM=dumb.
package color

import (
	"fmt"
	"os"
	"sync"

	fcolor "github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var mu sync.Mutex

var (
	success  = fcolor.New(fcolor.FgGreen)
	failure  = fcolor.New(fcolor.FgRed)
	warning  = fcolor.New(fcolor.FgYellow)
	header   = fcolor.New(fcolor.Bold)
	dim      = fcolor.New(fcolor.Faint)
	original = fcolor.New(fcolor.FgCyan)
	grave    = fcolor.New(fcolor.FgHiBlack)
	prompt   = fcolor.New(fcolor.Bold, fcolor.FgYellow)
)

// Init turns color off when the --no-color flag is set or stdout is not a
// terminal. It never turns color back on.
func Init(noColorFlag bool) {
	initFor(os.Stdout, noColorFlag)
}

func initFor(f *os.File, noColorFlag bool) {
	mu.Lock()
	defer mu.Unlock()
	_, noColorEnv := os.LookupEnv("NO_COLOR")
	if noColorFlag || noColorEnv || os.Getenv("TERM") == "dumb" || !isTerminal(f) {
		fcolor.NoColor = true
	}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Enabled returns true if color output is enabled.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return !fcolor.NoColor
}

// Disable turns off color output.
func Disable() {
	mu.Lock()
	fcolor.NoColor = true
	mu.Unlock()
}

// Enable turns on color output.
func Enable() {
	mu.Lock()
	fcolor.NoColor = false
	mu.Unlock()
}

func wrap(c *fcolor.Color, s string) string {
	mu.Lock()
	defer mu.Unlock()
	return c.Sprint(s)
}

// Success formats a success message in green.
func Success(s string) string { return wrap(success, s) }

// Successf formats a success message with printf-style arguments.
func Successf(format string, args ...any) string { return Success(fmt.Sprintf(format, args...)) }

// Error formats an error message in red.
func Error(s string) string { return wrap(failure, s) }

// Errorf formats an error message with printf-style arguments.
func Errorf(format string, args ...any) string { return Error(fmt.Sprintf(format, args...)) }

// Warning formats a warning message in yellow.
func Warning(s string) string { return wrap(warning, s) }

// Warningf formats a warning message with printf-style arguments.
func Warningf(format string, args ...any) string { return Warning(fmt.Sprintf(format, args...)) }

// Header formats a header in bold.
func Header(s string) string { return wrap(header, s) }

// Dim formats secondary information.
func Dim(s string) string { return wrap(dim, s) }

// Original formats the path an item was buried from.
func Original(s string) string { return wrap(original, s) }

// Grave formats a path inside the graveyard.
func Grave(s string) string { return wrap(grave, s) }

// Prompt formats a question that waits for a y/N answer.
func Prompt(s string) string { return wrap(prompt, s) }
