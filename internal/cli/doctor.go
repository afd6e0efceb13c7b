package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/rip-project/rip/pkg/color"
	"github.com/rip-project/rip/pkg/rip"
)

var errUnhealthy = errors.New("graveyard is not healthy")

func (c *command) runDoctor(ctx context.Context, client *rip.Client) error {
	var repairs []rip.RepairResult
	if len(c.opts.repair) > 0 {
		var err error
		if repairs, err = client.Repair(ctx, c.opts.repair); err != nil {
			return err
		}
	}

	result, err := client.Doctor(ctx)
	if err != nil {
		return err
	}

	if c.opts.jsonOutput {
		if err := c.outputJSON(map[string]any{"repairs": repairs, "result": result}); err != nil {
			return err
		}
	} else {
		for _, r := range repairs {
			status := color.Success("ok")
			if !r.Success {
				status = color.Error("failed")
			}
			c.printf("Repair %s: %s (cleaned %d) %s\n", r.Action, status, r.Cleaned, r.Message)
		}
		if len(result.Findings) == 0 {
			c.printf("Graveyard %s is healthy (%d buried item(s)).\n", client.Root(), result.Entries)
		} else {
			c.printf("%s\n", color.Header(fmt.Sprintf("Findings (%d):", len(result.Findings))))
			for _, f := range result.Findings {
				c.printf("  [%s] %s: %s %s\n", f.Severity, f.Category, f.Description, color.Dim(f.Path))
			}
		}
	}

	if !result.Healthy {
		return errUnhealthy
	}
	return nil
}
