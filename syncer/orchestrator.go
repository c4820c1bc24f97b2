package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"semasync/detect"
	"semasync/errs"
	"semasync/logger"
	"semasync/model"
	"semasync/snapshot"
)

// Options tunes one Sync invocation.
type Options struct {
	Mode         Mode
	DryRun       bool
	SkipSnapshot bool
}

// Orchestrator runs syncs for one source/target pair. Construct with a
// struct literal; Detector, Log and Store are optional.
type Orchestrator struct {
	// Name labels results; it defaults to the extracted source model's name.
	Name      string
	Direction Direction
	Source    Extractor
	Target    Extractor
	Sink      SchemaSink
	// Store, when set, takes a pre-apply snapshot of the target and records
	// every run in the history ledger.
	Store    *snapshot.Store
	Detector *detect.Detector
	Log      *logger.Logger
	// Progress, when set, receives step announcements for CLI rendering.
	Progress func(step, total int, message string)
}

const progressSteps = 4

func (o *Orchestrator) detector() *detect.Detector {
	if o.Detector != nil {
		return o.Detector
	}
	return detect.NewDetector()
}

func (o *Orchestrator) logger() *logger.Logger {
	if o.Log != nil {
		return o.Log
	}
	return logger.Nop()
}

func (o *Orchestrator) step(n int, message string) {
	if o.Progress != nil {
		o.Progress(n, progressSteps, message)
	}
}

// Preview extracts both sides and detects changes without applying anything.
func (o *Orchestrator) Preview(ctx context.Context) (*detect.Report, error) {
	source, err := o.Source.Extract(ctx)
	if err != nil {
		return nil, &errs.SyncError{Direction: string(o.Direction), Err: fmt.Errorf("extracting source: %w", err)}
	}
	target, err := o.targetModel(ctx, source)
	if err != nil {
		return nil, err
	}
	return o.detector().Detect(source, target), nil
}

// Sync runs extraction, detection, filtering and apply. The result is
// always returned, also alongside an error, so callers can render partial
// accounting from a failed run.
func (o *Orchestrator) Sync(ctx context.Context, opts Options) (*SyncResult, error) {
	if opts.Mode == "" {
		opts.Mode = ModeFull
	}
	result := &SyncResult{
		Model:     o.Name,
		Direction: o.Direction,
		Mode:      opts.Mode,
		DryRun:    opts.DryRun,
		StartedAt: time.Now().UTC(),
	}

	err := o.run(ctx, opts, result)
	result.CompletedAt = time.Now().UTC()
	result.Success = err == nil && result.Errors == 0
	if err != nil && result.ErrorMessage == "" {
		result.ErrorMessage = err.Error()
	}
	o.record(ctx, result)
	return result, err
}

func (o *Orchestrator) run(ctx context.Context, opts Options, result *SyncResult) error {
	log := o.logger()

	o.step(1, "Extracting source schema")
	source, err := o.Source.Extract(ctx)
	if err != nil {
		return &errs.SyncError{Direction: string(o.Direction), Err: fmt.Errorf("extracting source: %w", err)}
	}
	if result.Model == "" {
		result.Model = source.Name
	}

	o.step(2, "Extracting target schema")
	target, err := o.targetModel(ctx, source)
	if err != nil {
		return err
	}

	o.step(3, "Detecting changes")
	report := o.detector().Detect(source, target)
	changes := FilterByMode(report.Changes, opts.Mode)
	log.Info("changes detected",
		"model", result.Model,
		"total", len(report.Changes),
		"after_filter", len(changes),
		"mode", string(opts.Mode))

	if len(changes) == 0 {
		o.step(4, "Target is already in sync")
		return nil
	}

	if o.Store != nil && !opts.DryRun && !opts.SkipSnapshot {
		id, err := o.Store.CreateSnapshot(ctx, target, fmt.Sprintf("pre-sync snapshot (%s)", o.Direction))
		if err != nil {
			return &errs.SyncError{Direction: string(o.Direction), Err: fmt.Errorf("creating pre-sync snapshot: %w", err)}
		}
		result.SnapshotID = id
		log.Info("pre-sync snapshot created", "snapshot_id", id)
	}

	plan := o.buildPlan(changes, source, result)

	verb := "Applying"
	if opts.DryRun {
		verb = "Simulating"
	}
	o.step(4, fmt.Sprintf("%s %d change(s)", verb, len(changes)))

	var applyErr error
	if tsink, ok := o.Sink.(TransactionalSink); ok && !opts.DryRun {
		applyErr = o.applyTransactional(ctx, tsink, plan, source, target, result)
	} else {
		applyErr = o.applyPush(ctx, plan, source, target, result, opts.DryRun)
	}
	finalizeCounts(result)

	if applyErr != nil {
		return &errs.SyncError{
			Direction: string(o.Direction),
			Source:    source.Source,
			Target:    o.Sink.Platform(),
			Err:       applyErr,
		}
	}
	return nil
}

// targetModel extracts the target side. A target with no readable schema
// yet is an empty model, so everything on the source side diffs as an
// addition.
func (o *Orchestrator) targetModel(ctx context.Context, source *model.Model) (*model.Model, error) {
	target, err := o.Target.Extract(ctx)
	if err == nil {
		return target, nil
	}
	if errs.NotFound(err) {
		o.logger().Warn("target has no readable schema yet, treating it as empty", "error", err)
		return &model.Model{Name: source.Name, ExtractedAt: time.Now().UTC()}, nil
	}
	return nil, &errs.SyncError{Direction: string(o.Direction), Err: fmt.Errorf("extracting target: %w", err)}
}

// record appends the run to the history ledger, dry runs included.
func (o *Orchestrator) record(ctx context.Context, result *SyncResult) {
	if o.Store == nil {
		return
	}
	status := "success"
	if !result.Success {
		status = "failed"
	}
	if result.DryRun {
		status = "dry-run"
	}
	rec := snapshot.SyncRecord{
		Direction:      string(result.Direction),
		Status:         status,
		StartedAt:      result.StartedAt,
		CompletedAt:    &result.CompletedAt,
		ChangesApplied: result.ChangesApplied,
		Errors:         result.Errors,
	}
	if result.SnapshotID != "" {
		rec.SnapshotID = &result.SnapshotID
	}
	if result.ErrorMessage != "" {
		rec.ErrorMessage = &result.ErrorMessage
	}
	if _, err := o.Store.RecordSync(ctx, rec); err != nil {
		o.logger().Warn("recording sync history failed", "error", err)
	}
}

type opKind int

const (
	opAddTable opKind = iota
	opMergeTable
	opColumnMetadata
)

// colRef ties a column name to its accounting entry in SyncResult.Details.
type colRef struct {
	name string
	idx  int
}

// applyOp is one sink write along with the detected changes it settles.
// opMergeTable folds everything touching one existing table into a single
// read-modify-write resubmission.
type applyOp struct {
	kind     opKind
	table    string
	column   string
	fields   map[string]string
	addCols  []colRef
	modCols  []colRef
	tableIdx []int
	entryIdx []int
}

func (op applyOp) allIdx() []int {
	idx := append([]int(nil), op.entryIdx...)
	for _, ref := range op.addCols {
		idx = append(idx, ref.idx)
	}
	for _, ref := range op.modCols {
		idx = append(idx, ref.idx)
	}
	return append(idx, op.tableIdx...)
}

// buildPlan turns filtered changes into sink operations. Changes nothing can
// apply (removals, entities the sink has no writes for) are settled as
// skipped right away; everything else gets a pending accounting entry the
// apply phase resolves. Column additions under a brand-new table ride along
// with that table's single AddTable call; only columns added to pre-existing
// tables become read-modify-write merges.
func (o *Orchestrator) buildPlan(changes []detect.Change, source *model.Model, result *SyncResult) []applyOp {
	type tableWork struct {
		addCols  []colRef
		modCols  []colRef
		tableIdx []int
	}
	work := make(map[string]*tableWork)
	newTables := make(map[string]int)
	var tableOrder []string
	var ops []applyOp

	entry := func(c detect.Change, status, message string) int {
		result.Details = append(result.Details, AppliedChange{
			Entity:  string(c.Entity),
			Name:    c.EntityName,
			Parent:  c.ParentEntity,
			Action:  string(c.Type),
			Status:  status,
			Message: message,
		})
		return len(result.Details) - 1
	}
	forTable := func(name string) *tableWork {
		w, ok := work[name]
		if !ok {
			w = &tableWork{}
			work[name] = w
			tableOrder = append(tableOrder, name)
		}
		return w
	}

	for _, c := range changes {
		switch {
		case c.Type == detect.Removed:
			entry(c, StatusSkipped, "removals are never applied")
		case c.Entity == detect.EntityMeasure || c.Entity == detect.EntityRelationship:
			entry(c, StatusSkipped, fmt.Sprintf("%ss are not writable on %s", c.Entity, o.Sink.Platform()))
		case c.Entity == detect.EntityTable && c.Type == detect.Added:
			if source.GetTable(c.EntityName) == nil {
				entry(c, StatusSkipped, "table missing from source model")
				continue
			}
			newTables[strings.ToLower(c.EntityName)] = len(ops)
			ops = append(ops, applyOp{kind: opAddTable, table: c.EntityName, entryIdx: []int{entry(c, "", "")}})
		case c.Entity == detect.EntityTable && c.Type == detect.Modified:
			w := forTable(c.EntityName)
			w.tableIdx = append(w.tableIdx, entry(c, "", ""))
		case c.Entity == detect.EntityColumn && c.Type == detect.Added:
			if i, ok := newTables[strings.ToLower(c.ParentEntity)]; ok {
				ops[i].entryIdx = append(ops[i].entryIdx, entry(c, "", ""))
				continue
			}
			w := forTable(c.ParentEntity)
			w.addCols = append(w.addCols, colRef{name: c.EntityName, idx: entry(c, "", "")})
		case c.Entity == detect.EntityColumn && c.Type == detect.Modified && metadataOnly(c.Details):
			ops = append(ops, applyOp{
				kind:     opColumnMetadata,
				table:    c.ParentEntity,
				column:   c.EntityName,
				fields:   fieldValues(c.Details),
				entryIdx: []int{entry(c, "", "")},
			})
		case c.Entity == detect.EntityColumn && c.Type == detect.Modified:
			w := forTable(c.ParentEntity)
			w.modCols = append(w.modCols, colRef{name: c.EntityName, idx: entry(c, "", "")})
		default:
			entry(c, StatusSkipped, "change is not applicable")
		}
	}

	for _, name := range tableOrder {
		w := work[name]
		ops = append(ops, applyOp{
			kind:     opMergeTable,
			table:    name,
			addCols:  w.addCols,
			modCols:  w.modCols,
			tableIdx: w.tableIdx,
		})
	}
	return ops
}

// applyPush applies operations one by one. The first failure stops the run:
// everything settled so far keeps its status, the failed operation's changes
// are marked failed, the rest are never attempted.
func (o *Orchestrator) applyPush(ctx context.Context, plan []applyOp, source, target *model.Model, result *SyncResult, dryRun bool) error {
	for _, op := range plan {
		if err := ctx.Err(); err != nil {
			o.markPending(result, StatusSkipped, "cancelled before apply")
			return err
		}
		if err := o.applyOp(ctx, o.Sink, op, source, target, result, dryRun); err != nil {
			o.settleOp(result, op, StatusFailed, err.Error())
			o.markPending(result, StatusSkipped, "not attempted after failure")
			return err
		}
	}
	return nil
}

// applyTransactional wraps the whole plan in one sink transaction. Any
// failure rolls everything back and reports a hard failure with zero
// applied changes.
func (o *Orchestrator) applyTransactional(ctx context.Context, sink TransactionalSink, plan []applyOp, source, target *model.Model, result *SyncResult) error {
	tx, err := sink.Begin(ctx)
	if err != nil {
		o.markPending(result, StatusFailed, "transaction could not start")
		return &errs.TransactionError{Operation: "begin", Err: err}
	}

	for _, op := range plan {
		err := ctx.Err()
		if err == nil {
			err = o.applyOp(ctx, tx, op, source, target, result, false)
		}
		if err != nil {
			o.settleOp(result, op, StatusFailed, err.Error())
			rollbackErr := tx.Rollback(context.WithoutCancel(ctx))
			o.unwindBookkeeping(result)
			if rollbackErr != nil {
				o.logger().Error("rollback failed", "error", rollbackErr)
			}
			return &errs.TransactionError{Operation: "apply", RollbackPerformed: rollbackErr == nil, Err: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		rollbackErr := tx.Rollback(context.WithoutCancel(ctx))
		o.unwindBookkeeping(result)
		return &errs.TransactionError{Operation: "commit", RollbackPerformed: rollbackErr == nil, Err: err}
	}
	return nil
}

func (o *Orchestrator) applyOp(ctx context.Context, sink SchemaSink, op applyOp, source, target *model.Model, result *SyncResult, dryRun bool) error {
	switch op.kind {
	case opAddTable:
		if dryRun {
			o.settleOp(result, op, StatusWouldApply, "")
			return nil
		}
		def := source.GetTable(op.table)
		if err := sink.AddTable(ctx, *def); err != nil {
			return fmt.Errorf("adding table %s: %w", op.table, err)
		}
		o.settleOp(result, op, StatusApplied, "")
		return nil

	case opColumnMetadata:
		if dryRun {
			o.settleOp(result, op, StatusWouldApply, "")
			return nil
		}
		err := sink.UpdateColumnMetadata(ctx, op.table, op.column, op.fields)
		if errs.NotSupported(err) {
			// The sink has no column-metadata primitive; fold the change
			// into a full table resubmission instead.
			fold := applyOp{
				kind:    opMergeTable,
				table:   op.table,
				modCols: []colRef{{name: op.column, idx: op.entryIdx[0]}},
			}
			return o.applyOp(ctx, sink, fold, source, target, result, dryRun)
		}
		if err != nil {
			return fmt.Errorf("updating column metadata %s.%s: %w", op.table, op.column, err)
		}
		o.settleOp(result, op, StatusApplied, "")
		return nil

	case opMergeTable:
		return o.applyMerge(ctx, sink, op, source, target, result, dryRun)
	}
	return nil
}

// applyMerge performs the read-modify-write resubmission of one existing
// table: start from the current definition, append the added columns that
// are not already present, overwrite modified columns and table fields from
// the source, then resubmit.
func (o *Orchestrator) applyMerge(ctx context.Context, sink SchemaSink, op applyOp, source, target *model.Model, result *SyncResult, dryRun bool) error {
	srcTable := source.GetTable(op.table)
	if srcTable == nil {
		o.settleOp(result, op, StatusSkipped, "table missing from source model")
		return nil
	}

	okStatus := StatusApplied
	base := o.currentDefinition(ctx, sink, target, op.table, dryRun)
	if base == nil {
		// The table is gone on the target; recreate it whole.
		if dryRun {
			o.settleOp(result, op, StatusWouldApply, "table would be created")
			return nil
		}
		if err := sink.AddTable(ctx, *srcTable); err != nil {
			return fmt.Errorf("recreating table %s: %w", op.table, err)
		}
		o.settleOp(result, op, StatusApplied, "table recreated")
		return nil
	}
	if dryRun {
		okStatus = StatusWouldApply
	}

	def := *base
	def.Columns = append([]model.Column(nil), base.Columns...)

	var settled []int
	for _, ref := range op.addCols {
		if def.GetColumn(ref.name) != nil {
			o.settleEntry(result, ref.idx, StatusSkipped, "column already present on target")
			continue
		}
		col := srcTable.GetColumn(ref.name)
		if col == nil {
			o.settleEntry(result, ref.idx, StatusSkipped, "column missing from source model")
			continue
		}
		def.Columns = append(def.Columns, *col)
		settled = append(settled, ref.idx)
	}
	for _, ref := range op.modCols {
		col := srcTable.GetColumn(ref.name)
		if col == nil {
			o.settleEntry(result, ref.idx, StatusSkipped, "column missing from source model")
			continue
		}
		if existing := def.GetColumn(ref.name); existing != nil {
			*existing = *col
		} else {
			def.Columns = append(def.Columns, *col)
		}
		settled = append(settled, ref.idx)
	}
	if len(op.tableIdx) > 0 {
		def.Description = srcTable.Description
		def.IsHidden = srcTable.IsHidden
		settled = append(settled, op.tableIdx...)
	}

	if len(settled) == 0 {
		return nil
	}
	if !dryRun {
		if err := sink.UpdateTable(ctx, op.table, def); err != nil {
			return fmt.Errorf("updating table %s: %w", op.table, err)
		}
	}
	for _, idx := range settled {
		o.settleEntry(result, idx, okStatus, "")
	}
	return nil
}

// currentDefinition resolves the base for a read-modify-write. Sinks that
// can read themselves are consulted immediately before the write; otherwise
// the target model extracted at the start of the run is the best available
// view. nil means the table does not exist on the target.
func (o *Orchestrator) currentDefinition(ctx context.Context, sink SchemaSink, target *model.Model, table string, dryRun bool) *model.Table {
	if reader, ok := sink.(TableReader); ok && !dryRun {
		def, err := reader.GetTable(ctx, table)
		if err == nil {
			return def
		}
		if errs.NotFound(err) {
			return nil
		}
		o.logger().Warn("reading current table definition failed, falling back to extracted state",
			"table", table, "error", err)
	}
	return target.GetTable(table)
}

// settleEntry resolves one pending accounting entry. Entries already settled
// keep their first outcome.
func (o *Orchestrator) settleEntry(result *SyncResult, idx int, status, message string) {
	if result.Details[idx].Status != "" {
		return
	}
	result.Details[idx].Status = status
	result.Details[idx].Message = message
}

func (o *Orchestrator) settleOp(result *SyncResult, op applyOp, status, message string) {
	for _, idx := range op.allIdx() {
		o.settleEntry(result, idx, status, message)
	}
}

// markPending settles every still-pending entry, used when a run stops
// before reaching them.
func (o *Orchestrator) markPending(result *SyncResult, status, message string) {
	for i := range result.Details {
		if result.Details[i].Status == "" {
			result.Details[i].Status = status
			result.Details[i].Message = message
		}
	}
}

// unwindBookkeeping rewrites accounting after a rollback: applied changes
// become rolled back, unreached ones are skipped.
func (o *Orchestrator) unwindBookkeeping(result *SyncResult) {
	for i := range result.Details {
		switch result.Details[i].Status {
		case StatusApplied:
			result.Details[i].Status = StatusRolledBack
			result.Details[i].Message = "rolled back"
		case "":
			result.Details[i].Status = StatusSkipped
			result.Details[i].Message = "transaction aborted"
		}
	}
}

func finalizeCounts(result *SyncResult) {
	var applied, skipped, failed int
	for _, d := range result.Details {
		switch d.Status {
		case StatusApplied, StatusWouldApply:
			applied++
		case StatusSkipped:
			skipped++
		case StatusFailed:
			failed++
		}
	}
	result.ChangesApplied = applied
	result.ChangesSkipped = skipped
	result.Errors = failed
}

func fieldValues(details map[string]detect.FieldChange) map[string]string {
	fields := make(map[string]string, len(details))
	for name, fc := range details {
		fields[name] = valueString(fc.New)
	}
	return fields
}

func valueString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", t)
	}
}

// SyncAll runs each orchestrator start to finish in order and aggregates
// the outcomes. One model failing does not stop the batch.
func SyncAll(ctx context.Context, runs []*Orchestrator, opts Options) *BatchResult {
	batch := &BatchResult{}
	for _, o := range runs {
		if ctx.Err() != nil {
			break
		}
		result, err := o.Sync(ctx, opts)
		if err != nil && !errors.Is(err, ctx.Err()) {
			o.logger().Error("sync failed", "model", result.Model, "error", err)
		}
		batch.Results = append(batch.Results, result)
		if result.Success {
			batch.Succeeded++
		} else {
			batch.Failed++
		}
	}
	return batch
}
