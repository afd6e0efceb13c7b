// Package purge permanently erases graves. Callers confirm; the Pruner
// never prompts.
package purge

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/rip-project/rip/internal/audit"
	"github.com/rip-project/rip/internal/graveyard"
	"github.com/rip-project/rip/internal/record"
	"github.com/rip-project/rip/pkg/errclass"
	"github.com/rip-project/rip/pkg/fsutil"
	"github.com/rip-project/rip/pkg/logging"
	"github.com/rip-project/rip/pkg/metrics"
	"github.com/rip-project/rip/pkg/model"
	"github.com/rip-project/rip/pkg/pathutil"
)

// Pruner plans and executes purges.
type Pruner struct {
	g       *graveyard.Graveyard
	metrics *metrics.Registry
	log     *logging.Logger
	now     func() time.Time
}

// NewPruner creates a Pruner. reg and log may be nil.
func NewPruner(g *graveyard.Graveyard, reg *metrics.Registry, log *logging.Logger) *Pruner {
	if reg == nil {
		reg = metrics.Default()
	}
	if log == nil {
		log = logging.Global()
	}
	return &Pruner{g: g, metrics: reg, log: log, now: time.Now}
}

// Plan selects the entries a purge would erase without touching anything.
func (p *Pruner) Plan(sel model.Selector) (*model.PurgePlan, error) {
	if sel.Kind == "" {
		return nil, errclass.ErrInvalidArgs.WithMessage("empty purge selector")
	}
	entries, err := p.g.Records.List()
	if err != nil {
		return nil, err
	}
	now := p.now()
	plan := &model.PurgePlan{
		PlanID:    uuid.NewString(),
		CreatedAt: now.UTC(),
		Selector:  sel,
		Entries:   record.Select(entries, sel, now),
	}
	for _, e := range plan.Entries {
		plan.Bytes += entrySize(e)
	}
	p.log.Debug("purge planned", map[string]any{"plan_id": plan.PlanID, "entries": len(plan.Entries), "bytes": plan.Bytes})
	return plan, nil
}

// Run erases each planned grave and then its record. A failing entry is
// reported in the result and the remaining entries are still processed.
// Entries no longer in the record store are skipped as failures.
func (p *Pruner) Run(plan *model.PurgePlan) (*model.PurgeResult, error) {
	if plan == nil {
		return nil, errclass.ErrInvalidArgs.WithMessage("nil purge plan")
	}
	start := time.Now()
	result := &model.PurgeResult{PlanID: plan.PlanID}
	for _, e := range plan.Entries {
		if err := p.purgeEntry(e); err != nil {
			p.log.Warn("purge failed", map[string]any{"grave": e.Grave, "error": err.Error()})
			p.metrics.RecordError("purge", errclass.Code(err))
			result.Failed = append(result.Failed, model.PurgeFailure{Entry: e, Error: err.Error()})
			continue
		}
		result.Purged = append(result.Purged, e)
		result.Bytes += entrySize(e)
	}
	p.metrics.RecordPurge(len(result.Purged), time.Since(start))
	return result, nil
}

func (p *Pruner) purgeEntry(e *model.GraveyardEntry) error {
	if !p.g.Contains(e.Grave) || pathutil.Equal(e.Grave, p.g.Root) {
		return errclass.ErrInvalidArgs.WithMessagef("grave %s is outside the graveyard", e.Grave)
	}
	if _, err := p.g.Records.Lookup(e.Grave); err != nil {
		return fmt.Errorf("no longer buried: %w", err)
	}
	if err := os.RemoveAll(e.Grave); err != nil {
		return errclass.ClassifyMsg(err, "remove "+e.Grave)
	}
	if err := p.g.Records.Remove(e.Grave); err != nil {
		return err
	}
	p.g.PruneEmptyParents(e.Grave)
	p.audit(e.Original.String(), e.Grave, map[string]any{"size": e.Size})
	return nil
}

// PurgePath permanently removes a path inside the graveyard together with
// the records of every grave at or below it. It returns those records.
func (p *Pruner) PurgePath(path string) ([]*model.GraveyardEntry, error) {
	if !p.g.Contains(path) || pathutil.Equal(path, p.g.Root) {
		return nil, errclass.ErrInvalidArgs.WithMessagef("%s is not inside the graveyard", path)
	}
	start := time.Now()
	entries, err := p.g.Records.List()
	if err != nil {
		return nil, err
	}
	if err := os.RemoveAll(path); err != nil {
		p.metrics.RecordError("purge", errclass.Code(err))
		return nil, errclass.ClassifyMsg(err, "remove "+path)
	}

	var removed []*model.GraveyardEntry
	for _, e := range entries {
		if !pathutil.Within(path, e.Grave) {
			continue
		}
		if err := p.g.Records.Remove(e.Grave); err != nil {
			return removed, err
		}
		removed = append(removed, e)
	}
	p.g.PruneEmptyParents(path)
	p.audit("", path, map[string]any{"records": len(removed)})
	p.metrics.RecordPurge(len(removed), time.Since(start))
	return removed, nil
}

// Decompose removes the whole graveyard, records and audit log included,
// so it leaves no audit event behind.
// It returns how many live entries were erased.
func (p *Pruner) Decompose() (int, error) {
	start := time.Now()
	entries, err := p.g.Records.List()
	if err != nil {
		p.log.Warn("listing records before decompose", map[string]any{"error": err.Error()})
	}
	p.log.Info("decomposing graveyard", map[string]any{"root": p.g.Root, "entries": len(entries)})
	if err := p.g.Remove(); err != nil {
		p.metrics.RecordError("decompose", errclass.Code(err))
		return 0, err
	}
	p.metrics.RecordPurge(len(entries), time.Since(start))
	return len(entries), nil
}

func (p *Pruner) audit(original, grave string, details map[string]any) {
	if err := p.g.Audit.Append(audit.Event{Type: model.EventTypePurge, Original: original, Grave: grave, Details: details}); err != nil {
		p.log.Warn("audit append failed", map[string]any{"error": err.Error()})
	}
}

// entrySize prefers the recorded size and measures the grave for records
// that carry none.
func entrySize(e *model.GraveyardEntry) int64 {
	if e.Size > 0 {
		return e.Size
	}
	n, _, err := fsutil.TreeSize(e.Grave)
	if err != nil {
		return 0
	}
	return n
}
