package syncer

import (
	"fmt"
	"time"

	"semasync/detect"
	"semasync/errs"
)

// Direction says which side is the source of truth for a run.
type Direction string

const (
	ModelToWarehouse Direction = "model-to-warehouse"
	WarehouseToModel Direction = "warehouse-to-model"
)

// ParseDirection validates a CLI direction flag.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case ModelToWarehouse, WarehouseToModel:
		return Direction(s), nil
	}
	return "", &errs.ValidationError{Field: "direction", Value: s}
}

// Mode selects which detected changes a run applies.
type Mode string

const (
	// ModeFull applies every detected change the sink can express.
	ModeFull Mode = "full"
	// ModeIncremental applies additions and modifications, never removals.
	ModeIncremental Mode = "incremental"
	// ModeMetadataOnly applies only modifications whose differing fields are
	// all metadata: description, format string, hidden flag, display folder.
	ModeMetadataOnly Mode = "metadata-only"
)

// ParseMode validates a CLI mode flag.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFull, ModeIncremental, ModeMetadataOnly:
		return Mode(s), nil
	}
	return "", &errs.ValidationError{Field: "mode", Value: s}
}

// metadataFields are the column fields a metadata-only sync may touch.
var metadataFields = map[string]struct{}{
	"description":   {},
	"format_string": {},
	"is_hidden":     {},
	"folder":        {},
}

// FilterByMode narrows detected changes to the ones a mode applies. The
// subsets nest: incremental and metadata-only are both subsets of full.
func FilterByMode(changes []detect.Change, mode Mode) []detect.Change {
	var out []detect.Change
	for _, c := range changes {
		if modeKeeps(c, mode) {
			out = append(out, c)
		}
	}
	return out
}

func modeKeeps(c detect.Change, mode Mode) bool {
	switch mode {
	case ModeIncremental:
		return c.Type == detect.Added || c.Type == detect.Modified
	case ModeMetadataOnly:
		return c.Type == detect.Modified && metadataOnly(c.Details)
	default:
		return c.Type != detect.Unchanged
	}
}

// metadataOnly reports whether every differing field is metadata. A change
// that also touches a structural field is not metadata-only, even when a
// metadata field changed alongside it.
func metadataOnly(details map[string]detect.FieldChange) bool {
	if len(details) == 0 {
		return false
	}
	for field := range details {
		if _, ok := metadataFields[field]; !ok {
			return false
		}
	}
	return true
}

// Apply outcomes per change.
const (
	StatusApplied    = "applied"
	StatusSkipped    = "skipped"
	StatusFailed     = "failed"
	StatusRolledBack = "rolled_back"
	StatusWouldApply = "would_apply"
)

// AppliedChange is the per-change outcome of the apply phase.
type AppliedChange struct {
	Entity  string `json:"entity"`
	Name    string `json:"name"`
	Parent  string `json:"parent,omitempty"`
	Action  string `json:"action"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// SyncResult is the full outcome of one run.
type SyncResult struct {
	Model          string          `json:"model"`
	Direction      Direction       `json:"direction"`
	Mode           Mode            `json:"mode"`
	DryRun         bool            `json:"dry_run,omitempty"`
	Success        bool            `json:"success"`
	SnapshotID     string          `json:"snapshot_id,omitempty"`
	ChangesApplied int             `json:"changes_applied"`
	ChangesSkipped int             `json:"changes_skipped"`
	Errors         int             `json:"errors"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	Details        []AppliedChange `json:"details,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
	CompletedAt    time.Time       `json:"completed_at"`
}

func (r *SyncResult) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// Summary renders a one-line outcome for logs and the batch report.
func (r *SyncResult) Summary() string {
	status := "ok"
	if !r.Success {
		status = "failed"
	}
	if r.DryRun {
		status += " (dry-run)"
	}
	return fmt.Sprintf("%s: %d applied, %d skipped, %d errors [%s]",
		status, r.ChangesApplied, r.ChangesSkipped, r.Errors, r.Duration().Round(time.Millisecond))
}

// BatchResult aggregates a workspace-wide run.
type BatchResult struct {
	Results   []*SyncResult `json:"results"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
}
