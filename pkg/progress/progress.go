// Package progress reports progress of long cross-device copies and purges.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Callback receives progress updates. Units are bytes for copies and
// entries for purges; total is 0 when unknown.
type Callback func(op string, current, total int64, message string)

// Noop is a no-op callback for default behavior.
func Noop(op string, current, total int64, message string) {}

// Progress tracks one operation and forwards updates to a Callback.
// It is safe for concurrent use.
type Progress struct {
	Op      string
	Total   int64
	current atomic.Int64
	cb      Callback
}

// New creates a new Progress tracker.
func New(op string, total int64, cb Callback) *Progress {
	if cb == nil {
		cb = Noop
	}
	return &Progress{Op: op, Total: total, cb: cb}
}

// Add advances progress by n units.
func (p *Progress) Add(n int64, message string) {
	cur := p.current.Add(n)
	p.cb(p.Op, cur, p.Total, message)
}

// Increment advances progress by one unit.
func (p *Progress) Increment(message string) {
	p.Add(1, message)
}

// Done marks the operation as complete.
func (p *Progress) Done(message string) {
	if p.Total > 0 {
		p.current.Store(p.Total)
	}
	p.cb(p.Op, p.current.Load(), p.Total, message)
}

// Current returns the current progress value.
func (p *Progress) Current() int64 {
	return p.current.Load()
}

// Writer returns an io.Writer that advances p by the bytes written through it.
func (p *Progress) Writer(w io.Writer) io.Writer {
	return &countingWriter{w: w, p: p}
}

type countingWriter struct {
	w io.Writer
	p *Progress
}

func (c *countingWriter) Write(b []byte) (int, error) {
	n, err := c.w.Write(b)
	if n > 0 {
		c.p.Add(int64(n), "")
	}
	return n, err
}

// Terminal draws a single-line progress bar on stderr.
type Terminal struct {
	mu          sync.Mutex
	writer      io.Writer
	bytes       bool
	lastLineLen int
	enabled     atomic.Bool
}

// NewTerminal creates a terminal progress bar. When bytes is set, counts are
// rendered as sizes.
func NewTerminal(bytes, enabled bool) *Terminal {
	t := &Terminal{writer: os.Stderr, bytes: bytes}
	t.enabled.Store(enabled)
	return t
}

// SetWriter redirects output.
func (t *Terminal) SetWriter(w io.Writer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writer = w
}

// Callback returns a Callback function for this terminal.
func (t *Terminal) Callback() Callback {
	return func(op string, current, total int64, message string) {
		if !t.enabled.Load() {
			return
		}
		t.render(op, current, total, message)
	}
}

func (t *Terminal) render(op string, current, total int64, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	clear := "\r"
	if t.lastLineLen > 0 {
		clear = "\r" + strings.Repeat(" ", t.lastLineLen) + "\r"
	}

	var line string
	if total > 0 {
		const barWidth = 30
		if current > total {
			current = total
		}
		filled := int(barWidth * current / total)
		bar := strings.Repeat("=", filled) + strings.Repeat(" ", barWidth-filled)
		line = fmt.Sprintf("%s [%s] %s/%s (%.0f%%)", op, bar, t.unit(current), t.unit(total),
			float64(current)/float64(total)*100)
	} else {
		line = fmt.Sprintf("%s... %s", op, t.unit(current))
	}
	if message != "" {
		line += " " + message
	}

	fmt.Fprint(t.writer, clear+line)
	t.lastLineLen = len(line)
}

func (t *Terminal) unit(n int64) string {
	if t.bytes {
		return HumanBytes(n)
	}
	return fmt.Sprintf("%d", n)
}

// Done ends the bar with a newline.
func (t *Terminal) Done() {
	if !t.enabled.Load() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastLineLen > 0 {
		fmt.Fprintln(t.writer)
		t.lastLineLen = 0
	}
}

// SetEnabled enables or disables the progress bar.
func (t *Terminal) SetEnabled(enabled bool) {
	t.enabled.Store(enabled)
}

// IsEnabled returns whether the progress bar is enabled.
func (t *Terminal) IsEnabled() bool {
	return t.enabled.Load()
}

// HumanBytes formats n with binary units, e.g. "1.5 MiB".
func HumanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
