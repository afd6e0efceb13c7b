// Package bury moves user paths into the graveyard and records them.
package bury

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rip-project/rip/internal/audit"
	"github.com/rip-project/rip/internal/engine"
	"github.com/rip-project/rip/internal/graveyard"
	"github.com/rip-project/rip/pkg/config"
	"github.com/rip-project/rip/pkg/errclass"
	"github.com/rip-project/rip/pkg/fsutil"
	"github.com/rip-project/rip/pkg/logging"
	"github.com/rip-project/rip/pkg/metrics"
	"github.com/rip-project/rip/pkg/model"
	"github.com/rip-project/rip/pkg/pathutil"
)

// mapAttempts bounds retries when another process takes a grave between
// mapping and moving.
const mapAttempts = 3

// Result is one buried item.
type Result struct {
	Entry  *model.GraveyardEntry `json:"entry"`
	Report *engine.MoveReport    `json:"report"`
}

// Burier buries paths into one graveyard.
type Burier struct {
	g       *graveyard.Graveyard
	mover   *engine.Mover
	metrics *metrics.Registry
	log     *logging.Logger
	now     func() time.Time
	user    string
}

// NewBurier creates a Burier. reg may be nil.
func NewBurier(g *graveyard.Graveyard, mover *engine.Mover, reg *metrics.Registry, log *logging.Logger) *Burier {
	if log == nil {
		log = logging.Global()
	}
	if reg == nil {
		reg = metrics.Default()
	}
	return &Burier{g: g, mover: mover, metrics: reg, log: log, now: time.Now, user: config.CurrentUser()}
}

// Bury resolves target against cwd, moves it into the graveyard and records
// it. Targets inside the graveyard fail with E_ALREADY_BURIED.
//
// When the move completed but the source could not be fully removed, the
// entry is still recorded and returned together with the move error.
func (b *Burier) Bury(cwd, target string) (*Result, error) {
	start := time.Now()
	res, err := b.bury(cwd, target)
	if err != nil {
		b.metrics.RecordError("bury", errclass.Code(err))
	}
	if res != nil {
		b.metrics.RecordBury(string(res.Entry.Kind), string(res.Report.Method), copiedBytes(res.Report), time.Since(start))
	}
	return res, err
}

func (b *Burier) bury(cwd, target string) (*Result, error) {
	original, info, err := pathutil.Resolve(cwd, target)
	if err != nil {
		return nil, err
	}
	log := b.log.WithFields(map[string]any{"original": original.String()})

	if b.g.IsAncestor(string(original)) {
		return nil, errclass.ErrInvalidArgs.WithMessagef("refusing to bury %s: it contains the graveyard", original)
	}
	if b.g.Contains(string(original)) {
		return nil, errclass.ErrAlreadyBuried.WithMessagef("%s is already in the graveyard", original)
	}

	size, _, err := fsutil.TreeSize(string(original))
	if err != nil {
		return nil, errclass.ClassifyMsg(err, "measure "+target)
	}
	if b.log.Enabled(logging.LevelDebug) {
		src, serr := fsutil.DeviceID(string(original))
		dst, derr := fsutil.DeviceID(b.g.Root)
		if serr == nil && derr == nil && src != dst {
			log.Debug("graveyard is on another device, expecting a copy", map[string]any{"size": size})
		}
	}

	var (
		grave   string
		report  *engine.MoveReport
		moveErr error
	)
	for attempt := 1; attempt <= mapAttempts; attempt++ {
		grave, err = b.g.MapGrave(original)
		if err != nil {
			return nil, err
		}
		if err := b.g.EnsureParent(grave); err != nil {
			return nil, err
		}
		log.Debug("moving to grave", map[string]any{"grave": grave, "attempt": attempt})
		report, moveErr = b.mover.Move(string(original), grave)
		if !errors.Is(moveErr, errclass.ErrDestinationOccupied) {
			break
		}
	}
	if moveErr != nil && !engine.DestinationComplete(moveErr) {
		b.g.PruneEmptyParents(grave)
		return nil, moveErr
	}

	entry := &model.GraveyardEntry{
		ID:       uuid.NewString(),
		Original: original,
		Grave:    grave,
		Kind:     model.KindOf(info),
		BuriedAt: b.now().UTC(),
		User:     b.user,
		Size:     size,
	}
	if err := b.g.Records.Append(entry); err != nil {
		return nil, b.undo(entry, moveErr, err)
	}

	details := map[string]any{"method": string(report.Method), "kind": string(entry.Kind), "size": size}
	if moveErr != nil {
		details["source_removal_failed"] = true
	}
	if err := b.g.Audit.Append(audit.Event{
		Type: model.EventTypeBury, Original: original.String(), Grave: grave, Details: details,
	}); err != nil {
		log.Warn("audit append failed", map[string]any{"error": err.Error()})
	}

	log.Debug("buried", map[string]any{"grave": grave, "method": string(report.Method)})
	return &Result{Entry: entry, Report: report}, moveErr
}

// undo moves an unrecorded grave back to its original location. When that
// is impossible the error names the grave so the item can be found.
func (b *Burier) undo(e *model.GraveyardEntry, moveErr, recordErr error) error {
	if moveErr == nil {
		if _, err := b.mover.Move(e.Grave, string(e.Original)); err == nil {
			b.g.PruneEmptyParents(e.Grave)
			return fmt.Errorf("record %s: %w", e.Original, recordErr)
		}
	}
	return fmt.Errorf("record %s (content left at %s): %w", e.Original, e.Grave, recordErr)
}

// BuryAll buries targets in order and stops at the first failure or when
// ctx is done. The results of the items buried so far are returned with
// the error.
func (b *Burier) BuryAll(ctx context.Context, cwd string, targets []string) ([]*Result, error) {
	results := make([]*Result, 0, len(targets))
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := b.Bury(cwd, t)
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			return results, fmt.Errorf("bury %s: %w", t, err)
		}
	}
	return results, nil
}

func copiedBytes(r *engine.MoveReport) int64 {
	if r == nil || r.Method != model.MethodCopy {
		return 0
	}
	return r.Bytes
}
