// Package restore moves buried items back to where they came from.
package restore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rip-project/rip/internal/audit"
	"github.com/rip-project/rip/internal/engine"
	"github.com/rip-project/rip/internal/graveyard"
	"github.com/rip-project/rip/internal/record"
	"github.com/rip-project/rip/pkg/errclass"
	"github.com/rip-project/rip/pkg/logging"
	"github.com/rip-project/rip/pkg/metrics"
	"github.com/rip-project/rip/pkg/model"
	"github.com/rip-project/rip/pkg/pathutil"
)

// Result is one restored item.
type Result struct {
	Entry       *model.GraveyardEntry `json:"entry"`
	Destination string                `json:"destination"`
	Renamed     bool                  `json:"renamed,omitempty"`
	Report      *engine.MoveReport    `json:"report"`
}

// Restorer handles unbury operations.
type Restorer struct {
	g        *graveyard.Graveyard
	mover    *engine.Mover
	conflict model.RestoreConflictPolicy
	metrics  *metrics.Registry
	log      *logging.Logger
}

// NewRestorer creates a new restorer. An empty conflict policy means fail.
func NewRestorer(g *graveyard.Graveyard, mover *engine.Mover, conflict model.RestoreConflictPolicy, reg *metrics.Registry, log *logging.Logger) *Restorer {
	if conflict == "" {
		conflict = model.RestoreConflictFail
	}
	if reg == nil {
		reg = metrics.Default()
	}
	if log == nil {
		log = logging.Global()
	}
	return &Restorer{g: g, mover: mover, conflict: conflict, metrics: reg, log: log}
}

// Restore unburies a single entry. Latest picks the most recently buried
// entry whose grave still exists; Original picks the most recent burial of
// that path; Grave picks the entry stored there.
func (r *Restorer) Restore(sel model.Selector) (*Result, error) {
	entry, err := r.pick(sel)
	if err != nil {
		r.metrics.RecordError("restore", errclass.Code(err))
		return nil, err
	}
	return r.RestoreEntry(entry)
}

// RestoreAll unburies every entry sel matches, most recent first, and stops
// at the first failure or when ctx is done. Results of items restored so
// far are returned with the error.
func (r *Restorer) RestoreAll(ctx context.Context, sel model.Selector) ([]*Result, error) {
	entries, err := r.g.Records.List()
	if err != nil {
		return nil, err
	}
	if sel.Kind == model.SelectLatest {
		e, err := r.pick(sel)
		if err != nil {
			return nil, err
		}
		entries = []*model.GraveyardEntry{e}
	} else {
		entries = record.Select(entries, sel, time.Now())
	}

	results := make([]*Result, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := r.RestoreEntry(e)
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			return results, fmt.Errorf("unbury %s: %w", e.Grave, err)
		}
	}
	return results, nil
}

func (r *Restorer) pick(sel model.Selector) (*model.GraveyardEntry, error) {
	entries, err := r.g.Records.List()
	if err != nil {
		return nil, err
	}
	switch sel.Kind {
	case model.SelectLatest:
		for _, e := range entries {
			if _, err := os.Lstat(e.Grave); err == nil {
				return e, nil
			}
			r.log.Debug("skipping entry with missing grave", map[string]any{"grave": e.Grave})
		}
		return nil, errclass.ErrNotFound.WithMessage("nothing to unbury")
	case model.SelectOriginal, model.SelectGrave:
		matched := record.Select(entries, sel, time.Now())
		if len(matched) == 0 {
			return nil, errclass.ErrNotFound.WithMessagef("no grave recorded for %s", sel.Path)
		}
		return matched[0], nil
	default:
		return nil, errclass.ErrInvalidArgs.WithMessagef("selector %q picks more than one entry", sel.Kind)
	}
}

// RestoreEntry moves e back to its original path and removes its record.
// A missing grave fails with E_NOT_FOUND and keeps the record.
func (r *Restorer) RestoreEntry(e *model.GraveyardEntry) (*Result, error) {
	start := time.Now()
	res, err := r.restore(e)
	if err != nil {
		r.metrics.RecordError("restore", errclass.Code(err))
	}
	if res != nil {
		var copied int64
		if res.Report.Method == model.MethodCopy {
			copied = res.Report.Bytes
		}
		r.metrics.RecordRestore(copied, time.Since(start))
	}
	return res, err
}

func (r *Restorer) restore(e *model.GraveyardEntry) (*Result, error) {
	log := r.log.WithFields(map[string]any{"grave": e.Grave, "original": e.Original.String()})

	if _, err := os.Lstat(e.Grave); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errclass.ErrNotFound.Wrapf(err, "grave %s is missing", e.Grave)
		}
		return nil, errclass.ClassifyMsg(err, "stat grave")
	}

	dest := string(pathutil.ResolveDestination(string(e.Original)))
	renamed := false
	if occupied(dest) {
		if r.conflict != model.RestoreConflictRename {
			return nil, errclass.ErrDestinationOccupied.WithMessagef("%s already exists", dest)
		}
		dest = graveyard.Disambiguate(dest, occupied)
		renamed = true
		log.Debug("destination occupied, restoring beside it", map[string]any{"dest": dest})
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return nil, errclass.ClassifyMsg(err, "recreate parent of "+dest)
	}

	report, moveErr := r.mover.Move(e.Grave, dest)
	if moveErr != nil && !engine.DestinationComplete(moveErr) {
		return nil, moveErr
	}

	if err := r.g.Records.Remove(e.Grave); err != nil {
		return nil, fmt.Errorf("remove record of %s: %w", e.Grave, err)
	}
	r.g.PruneEmptyParents(e.Grave)

	details := map[string]any{"method": string(report.Method)}
	if renamed {
		details["destination"] = dest
	}
	if err := r.g.Audit.Append(audit.Event{
		Type: model.EventTypeUnbury, Original: e.Original.String(), Grave: e.Grave, Details: details,
	}); err != nil {
		log.Warn("audit append failed", map[string]any{"error": err.Error()})
	}

	log.Debug("unburied", map[string]any{"dest": dest})
	return &Result{Entry: e, Destination: dest, Renamed: renamed, Report: report}, moveErr
}

func occupied(p string) bool {
	_, err := os.Lstat(p)
	return err == nil
}
