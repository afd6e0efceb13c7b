// Package doctor checks a graveyard for inconsistencies between its records,
// its content and its audit log.
package doctor

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rip-project/rip/internal/engine"
	"github.com/rip-project/rip/internal/graveyard"
	"github.com/rip-project/rip/pkg/logging"
	"github.com/rip-project/rip/pkg/model"
)

// Finding categories.
const (
	CategoryRecord    = "record"
	CategoryMissing   = "missing"
	CategoryUntracked = "untracked"
	CategoryStaging   = "staging"
	CategoryAudit     = "audit"
)

// Severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Finding represents a detected issue.
type Finding struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Path        string `json:"path,omitempty"`
}

// Result contains doctor check results.
type Result struct {
	Healthy  bool      `json:"healthy"`
	Entries  int       `json:"entries"`
	Findings []Finding `json:"findings"`
}

// RepairAction describes an available repair.
type RepairAction struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// RepairResult reports what a repair action did.
type RepairResult struct {
	Action  string `json:"action"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Cleaned int    `json:"cleaned"`
}

// Doctor performs graveyard health checks.
type Doctor struct {
	g   *graveyard.Graveyard
	log *logging.Logger
}

// NewDoctor creates a new doctor.
func NewDoctor(g *graveyard.Graveyard, log *logging.Logger) *Doctor {
	if log == nil {
		log = logging.Global()
	}
	return &Doctor{g: g, log: log}
}

// Check runs all diagnostic checks. Only a failure to read the record store
// is returned as an error; everything else becomes a finding.
func (d *Doctor) Check() (*Result, error) {
	result := &Result{Healthy: true}

	entries, corrupt, err := d.g.Records.Load()
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	result.Entries = len(entries)

	for _, c := range corrupt {
		d.add(result, Finding{
			Category:    CategoryRecord,
			Description: fmt.Sprintf("line %d is unreadable (%s): %q", c.Line, c.Reason, c.Raw),
			Severity:    SeverityWarning,
			Path:        d.g.Records.Path(),
		})
	}
	d.checkMissing(result, entries)
	d.walkContent(result, entries)
	d.checkAudit(result)
	return result, nil
}

func (d *Doctor) add(result *Result, f Finding) {
	if f.Severity == SeverityError || f.Severity == SeverityCritical {
		result.Healthy = false
	}
	result.Findings = append(result.Findings, f)
}

func (d *Doctor) checkMissing(result *Result, entries []*model.GraveyardEntry) {
	for _, e := range entries {
		if _, err := os.Lstat(e.Grave); err != nil {
			d.add(result, Finding{
				Category:    CategoryMissing,
				Description: fmt.Sprintf("grave of %s is gone", e.Original),
				Severity:    SeverityError,
				Path:        e.Grave,
			})
		}
	}
}

// walkContent reports content that no record accounts for, and leftovers
// of interrupted cross-device copies.
func (d *Doctor) walkContent(result *Result, entries []*model.GraveyardEntry) {
	live := make(map[string]bool, len(entries))
	ancestors := make(map[string]bool)
	for _, e := range entries {
		live[e.Grave] = true
		for dir := filepath.Dir(e.Grave); dir != d.g.Root && d.g.Contains(dir); dir = filepath.Dir(dir) {
			ancestors[dir] = true
		}
	}

	filepath.WalkDir(d.g.Root, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			d.log.Debug("walk error", map[string]any{"path": path, "error": err.Error()})
			return nil
		}
		if path == d.g.Root {
			return nil
		}
		skip := func() error {
			if de.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		switch {
		case filepath.Dir(path) == d.g.Root && graveyard.IsBookkeeping(de.Name()):
			return skip()
		case live[path]:
			return skip()
		case isStaging(de.Name()):
			d.add(result, Finding{
				Category:    CategoryStaging,
				Description: fmt.Sprintf("leftover of an interrupted copy: %s", de.Name()),
				Severity:    SeverityInfo,
				Path:        path,
			})
			return skip()
		case ancestors[path]:
			return nil
		default:
			d.add(result, Finding{
				Category:    CategoryUntracked,
				Description: "content without a record",
				Severity:    SeverityWarning,
				Path:        path,
			})
			return skip()
		}
	})
}

func (d *Doctor) checkAudit(result *Result) {
	n, err := d.g.Audit.Verify()
	if err != nil {
		d.add(result, Finding{
			Category:    CategoryAudit,
			Description: fmt.Sprintf("audit chain broken after %d intact records: %v", n, err),
			Severity:    SeverityCritical,
			Path:        d.g.Audit.Path(),
		})
	}
}

func isStaging(name string) bool {
	return strings.HasPrefix(name, ".") && strings.Contains(name, engine.StagingMarker)
}

// ListRepairActions returns the available repair actions.
func (d *Doctor) ListRepairActions() []RepairAction {
	return []RepairAction{
		{ID: "clean_staging", Description: "remove leftovers of interrupted cross-device copies"},
		{ID: "drop_missing", Description: "forget records whose grave is gone"},
	}
}

// Repair runs the named actions in order. Unknown actions are reported as
// unsuccessful results.
func (d *Doctor) Repair(actions []string) ([]RepairResult, error) {
	results := make([]RepairResult, 0, len(actions))
	for _, id := range actions {
		var (
			n   int
			err error
		)
		switch id {
		case "clean_staging":
			n, err = d.cleanStaging()
		case "drop_missing":
			n, err = d.dropMissing()
		default:
			results = append(results, RepairResult{Action: id, Message: "unknown repair action"})
			continue
		}
		r := RepairResult{Action: id, Success: err == nil, Cleaned: n}
		if err != nil {
			r.Message = err.Error()
		}
		results = append(results, r)
	}
	return results, nil
}

func (d *Doctor) cleanStaging() (int, error) {
	res, err := d.Check()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, f := range res.Findings {
		if f.Category != CategoryStaging {
			continue
		}
		if err := os.RemoveAll(f.Path); err != nil {
			return n, fmt.Errorf("remove %s: %w", f.Path, err)
		}
		d.g.PruneEmptyParents(f.Path)
		n++
	}
	return n, nil
}

func (d *Doctor) dropMissing() (int, error) {
	entries, err := d.g.Records.List()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if _, err := os.Lstat(e.Grave); err == nil {
			continue
		}
		if err := d.g.Records.Remove(e.Grave); err != nil {
			return n, err
		}
		d.g.PruneEmptyParents(e.Grave)
		n++
	}
	return n, nil
}
