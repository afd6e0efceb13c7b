package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rip-project/rip/pkg/color"
	"github.com/rip-project/rip/pkg/errclass"
	"github.com/rip-project/rip/pkg/model"
	"github.com/rip-project/rip/pkg/progress"
	"github.com/rip-project/rip/pkg/rip"
)

// runPurge erases the selected graves after confirmation. Graves are
// selected by argument (grave or original path), --older-than, --seance
// (buried from the current directory) or --all.
func (c *command) runPurge(ctx context.Context, client *rip.Client, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	var sels []model.Selector
	for _, arg := range args {
		inside, err := client.IsBuried(cwd, arg)
		if err != nil {
			return err
		}
		if inside {
			sels = append(sels, model.ByGrave(arg))
		} else {
			sels = append(sels, model.ByOriginal(arg))
		}
	}
	if c.opts.olderThan != "" {
		age, err := parseAge(c.opts.olderThan)
		if err != nil {
			return err
		}
		sels = append(sels, model.OlderThan(age))
	}
	if c.opts.seance {
		sels = append(sels, model.Under(cwd))
	}
	if c.opts.all {
		sels = append(sels, model.All())
	}
	if len(sels) == 0 {
		return errclass.ErrInvalidArgs.WithMessage("--purge needs graves, --older-than, --seance or --all")
	}

	plan, err := c.planPurge(ctx, client, sels)
	if err != nil {
		return err
	}
	if len(plan.Entries) == 0 {
		if c.opts.jsonOutput {
			return c.outputJSON(&model.PurgeResult{PlanID: plan.PlanID, Purged: []*model.GraveyardEntry{}})
		}
		c.printf("Nothing to purge.\n")
		return nil
	}

	if !c.opts.jsonOutput {
		for _, e := range plan.Entries {
			c.printf("%s\n", color.Grave(e.Grave))
		}
	}
	ok, err := c.promptYes(fmt.Sprintf("Permanently delete %d grave(s), %s?", len(plan.Entries), progress.HumanBytes(plan.Bytes)))
	if err != nil {
		return err
	}
	if !ok {
		if !c.opts.jsonOutput {
			c.printf("Nothing purged.\n")
		}
		return nil
	}

	result, err := client.RunPurge(ctx, plan)
	if err != nil {
		return err
	}
	if c.opts.jsonOutput {
		if err := c.outputJSON(result); err != nil {
			return err
		}
	} else {
		c.printf("Purged %d grave(s), %s.\n", len(result.Purged), progress.HumanBytes(result.Bytes))
		for _, f := range result.Failed {
			fmtErr(c.cmd.ErrOrStderr(), "%s: %s", f.Entry.Grave, f.Error)
		}
	}
	if len(result.Failed) > 0 {
		return errclass.ErrIO.WithMessagef("%d grave(s) could not be purged", len(result.Failed))
	}
	return nil
}

// planPurge merges the plans of several selectors, each grave once.
func (c *command) planPurge(ctx context.Context, client *rip.Client, sels []model.Selector) (*model.PurgePlan, error) {
	var merged *model.PurgePlan
	seen := make(map[string]bool)
	for _, sel := range sels {
		plan, err := client.PlanPurge(ctx, sel)
		if err != nil {
			return nil, err
		}
		if merged == nil {
			merged = &model.PurgePlan{PlanID: plan.PlanID, CreatedAt: plan.CreatedAt, Selector: plan.Selector}
		}
		for _, e := range plan.Entries {
			if seen[e.Grave] {
				continue
			}
			seen[e.Grave] = true
			merged.Entries = append(merged.Entries, e)
			merged.Bytes += e.Size
		}
	}
	return merged, nil
}

// parseAge accepts time.ParseDuration syntax plus whole days ("30d") and
// weeks ("2w").
func parseAge(s string) (time.Duration, error) {
	units := map[string]time.Duration{"d": 24 * time.Hour, "w": 7 * 24 * time.Hour}
	for suffix, unit := range units {
		if n, ok := strings.CutSuffix(s, suffix); ok {
			v, err := strconv.Atoi(n)
			if err != nil || v < 0 {
				return 0, errclass.ErrInvalidArgs.WithMessagef("invalid age %q", s)
			}
			return time.Duration(v) * unit, nil
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, errclass.ErrInvalidArgs.WithMessagef("invalid age %q", s)
	}
	return d, nil
}

func (c *command) runDecompose(ctx context.Context, client *rip.Client) error {
	ok, err := c.promptYes(fmt.Sprintf("Really unlink the entire graveyard at %s?", client.Root()))
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	n, err := client.Decompose(ctx)
	if err != nil {
		return err
	}
	if c.opts.jsonOutput {
		return c.outputJSON(map[string]any{"graveyard": client.Root(), "entries": n})
	}
	c.printf("Removed %s (%d buried item(s)).\n", client.Root(), n)
	return nil
}
