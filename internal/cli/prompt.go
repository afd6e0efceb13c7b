package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rip-project/rip/pkg/color"
	"github.com/rip-project/rip/pkg/progress"
)

// promptYes asks question on stderr and reads the answer from stdin. Only
// an answer starting with y counts as yes; EOF counts as no.
func (c *command) promptYes(question string) (bool, error) {
	if c.opts.yes {
		return true, nil
	}
	fmt.Fprintf(c.cmd.ErrOrStderr(), "%s (y/N) ", color.Prompt(question))
	if c.in == nil {
		c.in = bufio.NewReader(c.cmd.InOrStdin())
	}
	line, err := c.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read answer: %w", err)
	}
	if errors.Is(err, io.EOF) && line == "" {
		fmt.Fprintln(c.cmd.ErrOrStderr())
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return strings.HasPrefix(answer, "y"), nil
}

// confirmCopy is asked by the mover before a big cross-device copy.
func (c *command) confirmCopy(src string, bytes int64) bool {
	fmt.Fprintf(c.cmd.ErrOrStderr(), "About to copy a big file (%s is %s)\n", src, progress.HumanBytes(bytes))
	ok, err := c.promptYes("Copy it into the graveyard anyway?")
	if err != nil {
		fmtErr(c.cmd.ErrOrStderr(), "%v", err)
		return false
	}
	return ok
}
