package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/rip-project/rip/pkg/color"
	"github.com/rip-project/rip/pkg/model"
	"github.com/rip-project/rip/pkg/rip"
)

func (c *command) runSeance(ctx context.Context, client *rip.Client) error {
	var (
		entries []*model.GraveyardEntry
		err     error
	)
	if c.opts.all {
		entries, err = client.List(ctx)
	} else {
		cwd, werr := os.Getwd()
		if werr != nil {
			return fmt.Errorf("get working directory: %w", werr)
		}
		entries, err = client.Seance(ctx, cwd)
	}
	if err != nil {
		return err
	}

	if c.opts.jsonOutput {
		if entries == nil {
			entries = []*model.GraveyardEntry{}
		}
		return c.outputJSON(entries)
	}
	for _, e := range entries {
		c.printf("%s %s\n", color.Dim(e.BuriedAt.Local().Format("2006-01-02 15:04:05")), color.Grave(e.Grave))
	}
	return nil
}
