package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rip-project/rip/pkg/errclass"
	"github.com/rip-project/rip/pkg/rip"
)

func (c *command) runBury(ctx context.Context, client *rip.Client, targets []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	results := []*rip.BuryResult{}
	for _, target := range targets {
		if c.opts.inspect {
			summary, err := client.Inspect(cwd, target)
			if err != nil {
				return err
			}
			summary.Render(c.cmd.ErrOrStderr())
			ok, err := c.promptYes(fmt.Sprintf("Send %s to the graveyard?", target))
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
		}

		res, err := client.Bury(ctx, []string{target}, rip.BuryOptions{Cwd: cwd})
		results = append(results, res...)
		if errors.Is(err, errclass.ErrAlreadyBuried) {
			if err := c.unlinkBuried(ctx, client, target); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			if jerr := c.outputJSON(results); jerr != nil {
				return errors.Join(err, jerr)
			}
			return err
		}
	}
	return c.outputJSON(results)
}

// unlinkBuried offers to erase a target that is already inside the graveyard.
func (c *command) unlinkBuried(ctx context.Context, client *rip.Client, target string) error {
	fmt.Fprintf(c.cmd.ErrOrStderr(), "%s is already in the graveyard.\n", target)
	ok, err := c.promptYes("Permanently unlink it?")
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(c.cmd.ErrOrStderr(), "Skipping %s\n", target)
		return nil
	}
	_, err = client.PurgePath(ctx, target)
	return err
}
