// Package rip is the library API of the graveyard: bury paths, list and
// restore what was buried, and purge it for good.
package rip

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rip-project/rip/internal/bury"
	"github.com/rip-project/rip/internal/doctor"
	"github.com/rip-project/rip/internal/engine"
	"github.com/rip-project/rip/internal/graveyard"
	"github.com/rip-project/rip/internal/inspect"
	"github.com/rip-project/rip/internal/purge"
	"github.com/rip-project/rip/internal/record"
	"github.com/rip-project/rip/internal/restore"
	"github.com/rip-project/rip/pkg/config"
	"github.com/rip-project/rip/pkg/logging"
	"github.com/rip-project/rip/pkg/metrics"
	"github.com/rip-project/rip/pkg/model"
	"github.com/rip-project/rip/pkg/pathutil"
	"github.com/rip-project/rip/pkg/progress"
)

// Result types of the operations below.
type (
	BuryResult    = bury.Result
	RestoreResult = restore.Result
	MoveReport    = engine.MoveReport
	DoctorResult  = doctor.Result
	Finding       = doctor.Finding
	RepairResult  = doctor.RepairResult
	Summary       = inspect.Summary
)

// Options configures Open.
type Options struct {
	// Graveyard overrides every other graveyard source when set.
	Graveyard string
	// Config is used as is. Nil loads the configuration file.
	Config *config.Config
	// Logger defaults to the global logger.
	Logger *logging.Logger
	// Metrics defaults to a fresh registry owned by the client.
	Metrics *metrics.Registry
	// Progress receives byte counts of cross-device copies.
	Progress progress.Callback
	// ConfirmCopy is asked before copying more than engine.BigFileThreshold
	// bytes across devices. Nil copies without asking.
	ConfirmCopy func(src string, bytes int64) bool
}

// BuryOptions configures Bury.
type BuryOptions struct {
	// Cwd resolves relative paths. Empty means the process working directory.
	Cwd string
}

// Client provides high-level operations on one graveyard.
type Client struct {
	cfg      *config.Config
	g        *graveyard.Graveyard
	mover    *engine.Mover
	burier   *bury.Burier
	restorer *restore.Restorer
	pruner   *purge.Pruner
	metrics  *metrics.Registry
	log      *logging.Logger
	closed   bool
}

// Open resolves the graveyard, creating it if needed, and opens its record store.
func Open(opts Options) (*Client, error) {
	cfg := opts.Config
	if cfg == nil {
		var err error
		if cfg, err = config.LoadDefault(); err != nil {
			return nil, fmt.Errorf("rip open: %w", err)
		}
	}
	log := opts.Logger
	if log == nil {
		log = logging.Global()
	}
	reg := opts.Metrics
	if reg == nil {
		reg = metrics.NewRegistry()
	}

	root := config.ResolveGraveyard(opts.Graveyard, cfg)
	g, err := graveyard.Open(root, cfg.RecordBackend, log)
	if err != nil {
		return nil, fmt.Errorf("rip open: %w", err)
	}

	eng := engine.NewEngine(cfg.CopyEngine, g.Root)
	log.Debug("copy engine selected", map[string]any{"engine": string(eng.Name())})
	mover := engine.NewMover(engine.Options{
		Engine:      eng,
		PartialCopy: cfg.PartialCopy,
		Progress:    opts.Progress,
		ConfirmCopy: opts.ConfirmCopy,
		Logger:      log,
	})

	return &Client{
		cfg:      cfg,
		g:        g,
		mover:    mover,
		burier:   bury.NewBurier(g, mover, reg, log),
		restorer: restore.NewRestorer(g, mover, cfg.RestoreConflict, reg, log),
		pruner:   purge.NewPruner(g, reg, log),
		metrics:  reg,
		log:      log,
	}, nil
}

// Root returns the resolved graveyard directory.
func (c *Client) Root() string {
	return c.g.Root
}

// Config returns the configuration in effect.
func (c *Client) Config() *config.Config {
	return c.cfg
}

// Metrics returns the client's metrics registry.
func (c *Client) Metrics() *metrics.Registry {
	return c.metrics
}

// Close writes the metrics textfile when one is configured and releases
// the record store.
func (c *Client) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.cfg.MetricsTextfile != "" {
		if err := c.metrics.WriteTextfile(c.cfg.MetricsTextfile); err != nil {
			c.log.Warn("write metrics textfile", map[string]any{"path": c.cfg.MetricsTextfile, "error": err.Error()})
		}
	}
	return c.g.Close()
}

// Bury moves paths into the graveyard one at a time. A failure stops the
// batch: earlier paths stay buried and later ones are untouched.
func (c *Client) Bury(ctx context.Context, paths []string, opts BuryOptions) ([]*BuryResult, error) {
	cwd, err := workDir(opts.Cwd)
	if err != nil {
		return nil, err
	}
	return c.burier.BuryAll(ctx, cwd, paths)
}

// IsBuried reports whether path lies inside the graveyard.
func (c *Client) IsBuried(cwd, path string) (bool, error) {
	cwd, err := workDir(cwd)
	if err != nil {
		return false, err
	}
	return c.g.Contains(string(pathutil.ResolveDestination(absolute(cwd, path)))), nil
}

// Restore unburies one entry: the latest, the latest burial of an
// original path, or the entry at a grave path.
func (c *Client) Restore(ctx context.Context, sel model.Selector) (*RestoreResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sel, err := c.canonicalSelector(sel)
	if err != nil {
		return nil, err
	}
	return c.restorer.Restore(sel)
}

// RestoreAll unburies every entry sel matches, most recent first.
func (c *Client) RestoreAll(ctx context.Context, sel model.Selector) ([]*RestoreResult, error) {
	sel, err := c.canonicalSelector(sel)
	if err != nil {
		return nil, err
	}
	return c.restorer.RestoreAll(ctx, sel)
}

// List returns every live entry, most recently buried first.
func (c *Client) List(ctx context.Context) ([]*model.GraveyardEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.g.Records.List()
}

// Seance returns the entries buried from dir or below it.
func (c *Client) Seance(ctx context.Context, dir string) ([]*model.GraveyardEntry, error) {
	entries, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	sel, err := c.canonicalSelector(model.Under(dir))
	if err != nil {
		return nil, err
	}
	return record.Select(entries, sel, time.Now()), nil
}

// PlanPurge lists what Purge would erase.
func (c *Client) PlanPurge(ctx context.Context, sel model.Selector) (*model.PurgePlan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sel, err := c.canonicalSelector(sel)
	if err != nil {
		return nil, err
	}
	return c.pruner.Plan(sel)
}

// RunPurge executes a plan from PlanPurge.
func (c *Client) RunPurge(ctx context.Context, plan *model.PurgePlan) (*model.PurgeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.pruner.Run(plan)
}

// Purge permanently erases the entries sel matches.
func (c *Client) Purge(ctx context.Context, sel model.Selector) (*model.PurgeResult, error) {
	plan, err := c.PlanPurge(ctx, sel)
	if err != nil {
		return nil, err
	}
	return c.RunPurge(ctx, plan)
}

// PurgePath permanently removes a path inside the graveyard.
func (c *Client) PurgePath(ctx context.Context, path string) ([]*model.GraveyardEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cwd, err := workDir("")
	if err != nil {
		return nil, err
	}
	return c.pruner.PurgePath(string(pathutil.ResolveDestination(absolute(cwd, path))))
}

// Decompose removes the whole graveyard. The client is closed afterwards.
func (c *Client) Decompose(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := c.pruner.Decompose()
	if err != nil {
		return 0, err
	}
	return n, c.Close()
}

// Doctor checks the graveyard for inconsistencies.
func (c *Client) Doctor(ctx context.Context) (*DoctorResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return doctor.NewDoctor(c.g, c.log).Check()
}

// Repair runs doctor repair actions by id.
func (c *Client) Repair(ctx context.Context, actions []string) ([]RepairResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return doctor.NewDoctor(c.g, c.log).Repair(actions)
}

// Inspect summarizes path for a confirmation prompt.
func (c *Client) Inspect(cwd, path string) (*Summary, error) {
	cwd, err := workDir(cwd)
	if err != nil {
		return nil, err
	}
	return inspect.Inspect(absolute(cwd, path))
}

// canonicalSelector makes selector paths absolute and resolves symlinked
// ancestors so they compare equal to recorded paths.
func (c *Client) canonicalSelector(sel model.Selector) (model.Selector, error) {
	if sel.Path == "" {
		return sel, nil
	}
	cwd, err := workDir("")
	if err != nil {
		return sel, err
	}
	sel.Path = string(pathutil.ResolveDestination(absolute(cwd, sel.Path)))
	return sel, nil
}

func workDir(cwd string) (string, error) {
	if cwd != "" {
		return cwd, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return wd, nil
}

func absolute(cwd, p string) string {
	p = pathutil.StripVerbatim(p)
	if !filepath.IsAbs(p) {
		p = filepath.Join(cwd, p)
	}
	return filepath.Clean(p)
}
