package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/rip-project/rip/internal/integrity"
	"github.com/rip-project/rip/pkg/errclass"
	"github.com/rip-project/rip/pkg/fsutil"
	"github.com/rip-project/rip/pkg/logging"
	"github.com/rip-project/rip/pkg/model"
	"github.com/rip-project/rip/pkg/progress"
)

// BigFileThreshold is the size above which a cross-device copy asks
// ConfirmCopy first.
const BigFileThreshold = 500 * 1000 * 1000

// StagingMarker appears in the names of in-flight cross-device copies.
const StagingMarker = ".rip-"

// Options configure a Mover.
type Options struct {
	// Engine copies across devices. Nil selects a CopyEngine.
	Engine Engine
	// PartialCopy decides whether a failed copy is removed or kept.
	PartialCopy model.PartialCopyPolicy
	// Progress receives copied byte counts.
	Progress progress.Callback
	// ConfirmCopy is asked before copying more than BigFileThreshold bytes.
	// Returning false aborts the move with the source untouched.
	ConfirmCopy func(src string, bytes int64) bool
	Logger      *logging.Logger
	// Rename performs the first move attempt. Nil selects
	// fsutil.RenameAndSync; a cross-device error from it starts the copy.
	Rename func(oldpath, newpath string) error
}

// MoveReport describes a completed (or partially completed) move.
type MoveReport struct {
	Method       model.MoveMethod `json:"method"`
	State        model.MoveState  `json:"state"`
	Bytes        int64            `json:"bytes,omitempty"`
	Files        int              `json:"files,omitempty"`
	Degraded     bool             `json:"degraded,omitempty"`
	Degradations []string         `json:"degradations,omitempty"`
	Staging      string           `json:"staging,omitempty"`
	Duration     time.Duration    `json:"duration"`
}

// MoveError reports the state in which a move stopped. Err carries the
// errclass class of the failure.
type MoveError struct {
	State model.MoveState
	Src   string
	Dst   string
	Err   error
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("move %s to %s (%s): %v", e.Src, e.Dst, e.State, e.Err)
}

func (e *MoveError) Unwrap() error {
	return e.Err
}

// DestinationComplete reports whether err is a move that failed only while
// removing the source: the destination holds a verified copy.
func DestinationComplete(err error) bool {
	var me *MoveError
	return errors.As(err, &me) && me.State == model.StateDeletingSource
}

// Mover relocates paths with rename and a verified copy fallback.
type Mover struct {
	engine      Engine
	partialCopy model.PartialCopyPolicy
	progress    progress.Callback
	confirm     func(string, int64) bool
	log         *logging.Logger

	rename    func(oldpath, newpath string) error
	freeBytes func(path string) (uint64, error)
}

// NewMover creates a Mover.
func NewMover(opts Options) *Mover {
	m := &Mover{
		engine:      opts.Engine,
		partialCopy: opts.PartialCopy,
		progress:    opts.Progress,
		confirm:     opts.ConfirmCopy,
		log:         opts.Logger,
		rename:      fsutil.RenameAndSync,
		freeBytes:   fsutil.FreeBytes,
	}
	if opts.Rename != nil {
		m.rename = opts.Rename
	}
	if m.engine == nil {
		m.engine = NewCopyEngine()
	}
	if m.partialCopy == "" {
		m.partialCopy = model.PartialCopyCleanup
	}
	if m.log == nil {
		m.log = logging.Global()
	}
	return m
}

// Engine returns the copy engine used for cross-device moves.
func (m *Mover) Engine() Engine {
	return m.engine
}

// Move relocates src to dst. dst must not exist; its parent must.
//
// The move runs renaming -> done, or for a cross-device move
// renaming -> copying -> verifying -> deleting-source -> done. Until
// deleting-source starts, a failure leaves src untouched. A failure in
// deleting-source returns the report together with a *MoveError: dst is
// then complete and src may be partially removed.
func (m *Mover) Move(src, dst string) (*MoveReport, error) {
	start := time.Now()
	report := &MoveReport{Method: model.MethodRename, State: model.StateRenaming}
	log := m.log.WithFields(map[string]any{"src": src, "dst": dst})

	fail := func(state model.MoveState, err error) (*MoveReport, error) {
		report.State = model.StateFailed
		report.Duration = time.Since(start)
		log.Debug("move failed", map[string]any{"state": string(state), "error": err.Error()})
		return report, &MoveError{State: state, Src: src, Dst: dst, Err: err}
	}

	if exists, err := fsutil.Exists(dst); err != nil {
		return fail(model.StateRenaming, errclass.ClassifyMsg(err, "check destination"))
	} else if exists {
		return fail(model.StateRenaming, errclass.ErrDestinationOccupied.WithMessagef("%s already exists", dst))
	}

	log.Debug("attempting rename")
	err := m.rename(src, dst)
	if err == nil {
		report.State = model.StateDone
		report.Duration = time.Since(start)
		return report, nil
	}
	if !fsutil.IsCrossDevice(err) {
		return fail(model.StateRenaming, errclass.ClassifyMsg(err, "rename"))
	}

	log.Debug("rename crosses devices, copying", map[string]any{"engine": string(m.engine.Name())})
	report.Method = model.MethodCopy
	report.State = model.StateCopying

	size, _, err := fsutil.TreeSize(src)
	if err != nil {
		return fail(model.StateCopying, errclass.ClassifyMsg(err, "measure source"))
	}
	if free, err := m.freeBytes(filepath.Dir(dst)); err == nil && uint64(size) > free {
		return fail(model.StateCopying, errclass.ErrDeviceFull.WithMessagef(
			"%s needs %d bytes, %d available", src, size, free))
	}
	if size > BigFileThreshold && m.confirm != nil && !m.confirm(src, size) {
		return fail(model.StateCopying, errclass.ErrCrossDeviceCopyFailed.WithMessagef("copy of %s declined", src))
	}

	staging := filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+StagingMarker+uuid.NewString())
	prog := progress.New("copy "+filepath.Base(src), size, m.progress)
	clone, err := m.engine.Clone(src, staging, prog)
	if err != nil {
		m.discard(staging, report)
		class := errclass.ErrCrossDeviceCopyFailed
		if errclass.Code(err) == errclass.ErrDeviceFull.Code {
			class = errclass.ErrDeviceFull
		}
		return fail(model.StateCopying, class.Wrap(err, "copy "+src))
	}
	prog.Done("")
	report.Files = clone.Files
	report.Bytes = clone.Bytes
	report.Degraded = clone.Degraded
	report.Degradations = clone.Degradations

	report.State = model.StateVerifying
	log.Debug("verifying copy", map[string]any{"staging": staging})
	if err := verify(src, staging); err != nil {
		m.discard(staging, report)
		return fail(model.StateVerifying, errclass.ErrCrossDeviceCopyFailed.Wrap(err, "verify copy of "+src))
	}
	if err := fsutil.RenameAndSync(staging, dst); err != nil {
		m.discard(staging, report)
		return fail(model.StateVerifying, errclass.ClassifyMsg(err, "publish copy"))
	}

	report.State = model.StateDeletingSource
	log.Debug("removing source")
	if err := os.RemoveAll(src); err != nil {
		report.Duration = time.Since(start)
		log.Warn("copy complete but source could not be removed", map[string]any{"error": err.Error()})
		return report, &MoveError{
			State: model.StateDeletingSource, Src: src, Dst: dst,
			Err: errclass.ClassifyMsg(err, "remove source after copy"),
		}
	}
	if err := fsutil.FsyncDir(filepath.Dir(src)); err != nil {
		log.Debug("fsync source dir", map[string]any{"error": err.Error()})
	}

	report.State = model.StateDone
	report.Duration = time.Since(start)
	return report, nil
}

func verify(src, dup string) error {
	want, err := integrity.ComputeTreeHash(src)
	if err != nil {
		return fmt.Errorf("hash source: %w", err)
	}
	got, err := integrity.ComputeTreeHash(dup)
	if err != nil {
		return fmt.Errorf("hash copy: %w", err)
	}
	if want.Hash != got.Hash {
		return fmt.Errorf("content mismatch: %s != %s", got.Hash, want.Hash)
	}
	return nil
}

// discard applies the partial copy policy to a failed staging copy.
func (m *Mover) discard(staging string, report *MoveReport) {
	if m.partialCopy == model.PartialCopyKeep {
		if ok, _ := fsutil.Exists(staging); ok {
			report.Staging = staging
			m.log.Warn("partial copy kept", map[string]any{"path": staging})
		}
		return
	}
	if err := os.RemoveAll(staging); err != nil {
		m.log.Warn("could not remove partial copy", map[string]any{"path": staging, "error": err.Error()})
	}
}
