package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/rip-project/rip/pkg/color"
	"github.com/rip-project/rip/pkg/model"
	"github.com/rip-project/rip/pkg/rip"
)

// runUnbury restores the named graves (or original paths), everything
// buried from the current directory with --seance, or the last buried item.
func (c *command) runUnbury(ctx context.Context, client *rip.Client, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	results := []*rip.RestoreResult{}
	finish := func(err error) error {
		if jerr := c.outputJSON(results); err == nil {
			err = jerr
		}
		return err
	}
	report := func(res *rip.RestoreResult) {
		results = append(results, res)
		if !c.opts.jsonOutput {
			c.printf("Returned %s to %s\n", color.Grave(res.Entry.Grave), color.Original(res.Destination))
		}
	}

	for _, arg := range args {
		inside, err := client.IsBuried(cwd, arg)
		if err != nil {
			return finish(err)
		}
		sel := model.ByOriginal(arg)
		if inside {
			sel = model.ByGrave(arg)
		}
		res, err := client.Restore(ctx, sel)
		if err != nil {
			return finish(err)
		}
		report(res)
	}

	if c.opts.seance {
		restored, err := client.RestoreAll(ctx, model.Under(cwd))
		for _, res := range restored {
			report(res)
		}
		if err != nil {
			return finish(err)
		}
	}

	if len(args) == 0 && !c.opts.seance {
		res, err := client.Restore(ctx, model.Latest())
		if err != nil {
			return finish(err)
		}
		report(res)
	}
	return finish(nil)
}
