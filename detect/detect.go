// Package detect computes the structural diff between two normalized
// semantic models. Detection is pure: no I/O, no mutation of either model.
package detect

import (
	"fmt"
	"strings"
	"time"

	"semasync/model"
)

// Detector diffs two models at table, column, measure and relationship
// granularity. The zero value compares case-insensitively and includes
// hidden entities.
type Detector struct {
	// IgnoreHidden excludes hidden entities from the comparison entirely, so
	// a hidden-only difference never appears as a change.
	IgnoreHidden bool
	// CaseSensitive switches name identity to exact matching.
	CaseSensitive bool
}

// NewDetector returns a detector with the default comparison rules.
func NewDetector() *Detector {
	return &Detector{}
}

// Detect compares source against target and reports what would have to
// change on the target to match the source. Old values in the report are the
// target's, new values the source's.
func (d *Detector) Detect(source, target *model.Model) *Report {
	report := &Report{
		Source:      source.Name,
		Target:      target.Name,
		GeneratedAt: time.Now().UTC(),
	}
	report.Changes = append(report.Changes, d.tableChanges(source, target)...)
	report.Changes = append(report.Changes, d.measureChanges(source, target)...)
	report.Changes = append(report.Changes, d.relationshipChanges(source, target)...)
	return report
}

func (d *Detector) normalize(name string) string {
	if d.CaseSensitive {
		return name
	}
	return strings.ToLower(name)
}

// relationshipKey is the endpoint 4-tuple identity. Direction matters: a
// swapped pair of endpoints is a different relationship, never a
// modification of the same one.
func (d *Detector) relationshipKey(r *model.Relationship) string {
	return fmt.Sprintf("%s.%s->%s.%s",
		d.normalize(r.FromTable), d.normalize(r.FromColumn),
		d.normalize(r.ToTable), d.normalize(r.ToColumn))
}

func (d *Detector) tableMap(tables []model.Table) map[string]*model.Table {
	m := make(map[string]*model.Table, len(tables))
	for i := range tables {
		t := &tables[i]
		if d.IgnoreHidden && t.IsHidden {
			continue
		}
		m[d.normalize(t.Name)] = t
	}
	return m
}

func (d *Detector) tableChanges(source, target *model.Model) []Change {
	var changes []Change
	sourceTables := d.tableMap(source.Tables)
	targetTables := d.tableMap(target.Tables)

	for i := range source.Tables {
		st := &source.Tables[i]
		if d.IgnoreHidden && st.IsHidden {
			continue
		}
		tt, ok := targetTables[d.normalize(st.Name)]
		if !ok {
			changes = append(changes, Change{
				Type:       Added,
				Entity:     EntityTable,
				EntityName: st.Name,
				NewValue:   st,
			})
			// Every column of a new table is its own addition so push-style
			// sinks can batch them by owning table.
			for j := range st.Columns {
				col := &st.Columns[j]
				if d.IgnoreHidden && col.IsHidden {
					continue
				}
				changes = append(changes, Change{
					Type:         Added,
					Entity:       EntityColumn,
					EntityName:   col.Name,
					ParentEntity: st.Name,
					NewValue:     col,
				})
			}
			continue
		}
		changes = append(changes, d.compareTables(st, tt)...)
	}

	for i := range target.Tables {
		tt := &target.Tables[i]
		if d.IgnoreHidden && tt.IsHidden {
			continue
		}
		if _, ok := sourceTables[d.normalize(tt.Name)]; !ok {
			changes = append(changes, Change{
				Type:       Removed,
				Entity:     EntityTable,
				EntityName: tt.Name,
				OldValue:   tt,
			})
		}
	}
	return changes
}

func (d *Detector) compareTables(st, tt *model.Table) []Change {
	var changes []Change

	details := map[string]FieldChange{}
	if st.Description != tt.Description {
		details["description"] = FieldChange{Old: tt.Description, New: st.Description}
	}
	if st.IsHidden != tt.IsHidden {
		details["is_hidden"] = FieldChange{Old: tt.IsHidden, New: st.IsHidden}
	}
	if len(details) > 0 {
		changes = append(changes, Change{
			Type:       Modified,
			Entity:     EntityTable,
			EntityName: st.Name,
			OldValue:   tt,
			NewValue:   st,
			Details:    details,
		})
	}

	changes = append(changes, d.columnChanges(st, tt)...)
	return changes
}

func (d *Detector) columnChanges(st, tt *model.Table) []Change {
	var changes []Change

	sourceCols := make(map[string]*model.Column, len(st.Columns))
	for i := range st.Columns {
		c := &st.Columns[i]
		if d.IgnoreHidden && c.IsHidden {
			continue
		}
		sourceCols[d.normalize(c.Name)] = c
	}
	targetCols := make(map[string]*model.Column, len(tt.Columns))
	for i := range tt.Columns {
		c := &tt.Columns[i]
		if d.IgnoreHidden && c.IsHidden {
			continue
		}
		targetCols[d.normalize(c.Name)] = c
	}

	for i := range st.Columns {
		sc := &st.Columns[i]
		if d.IgnoreHidden && sc.IsHidden {
			continue
		}
		tc, ok := targetCols[d.normalize(sc.Name)]
		if !ok {
			changes = append(changes, Change{
				Type:         Added,
				Entity:       EntityColumn,
				EntityName:   sc.Name,
				ParentEntity: st.Name,
				NewValue:     sc,
			})
			continue
		}
		if change := d.compareColumns(sc, tc, st.Name); change != nil {
			changes = append(changes, *change)
		}
	}

	for i := range tt.Columns {
		tc := &tt.Columns[i]
		if d.IgnoreHidden && tc.IsHidden {
			continue
		}
		if _, ok := sourceCols[d.normalize(tc.Name)]; !ok {
			changes = append(changes, Change{
				Type:         Removed,
				Entity:       EntityColumn,
				EntityName:   tc.Name,
				ParentEntity: st.Name,
				OldValue:     tc,
			})
		}
	}
	return changes
}

func (d *Detector) compareColumns(sc, tc *model.Column, tableName string) *Change {
	details := map[string]FieldChange{}
	if sc.DataType != tc.DataType {
		details["data_type"] = FieldChange{Old: tc.DataType, New: sc.DataType}
	}
	if sc.Description != tc.Description {
		details["description"] = FieldChange{Old: tc.Description, New: sc.Description}
	}
	if sc.IsNullable != tc.IsNullable {
		details["is_nullable"] = FieldChange{Old: tc.IsNullable, New: sc.IsNullable}
	}
	if sc.IsHidden != tc.IsHidden {
		details["is_hidden"] = FieldChange{Old: tc.IsHidden, New: sc.IsHidden}
	}
	if sc.FormatString != tc.FormatString {
		details["format_string"] = FieldChange{Old: tc.FormatString, New: sc.FormatString}
	}
	if len(details) == 0 {
		return nil
	}
	return &Change{
		Type:         Modified,
		Entity:       EntityColumn,
		EntityName:   sc.Name,
		ParentEntity: tableName,
		OldValue:     tc,
		NewValue:     sc,
		Details:      details,
	}
}

func (d *Detector) measureChanges(source, target *model.Model) []Change {
	var changes []Change

	sourceMeasures := make(map[string]*model.Measure, len(source.Measures))
	for i := range source.Measures {
		m := &source.Measures[i]
		if d.IgnoreHidden && m.IsHidden {
			continue
		}
		sourceMeasures[d.normalize(m.Name)] = m
	}
	targetMeasures := make(map[string]*model.Measure, len(target.Measures))
	for i := range target.Measures {
		m := &target.Measures[i]
		if d.IgnoreHidden && m.IsHidden {
			continue
		}
		targetMeasures[d.normalize(m.Name)] = m
	}

	for i := range source.Measures {
		sm := &source.Measures[i]
		if d.IgnoreHidden && sm.IsHidden {
			continue
		}
		tm, ok := targetMeasures[d.normalize(sm.Name)]
		if !ok {
			changes = append(changes, Change{
				Type:       Added,
				Entity:     EntityMeasure,
				EntityName: sm.Name,
				NewValue:   sm,
			})
			continue
		}
		if change := d.compareMeasures(sm, tm); change != nil {
			changes = append(changes, *change)
		}
	}

	for i := range target.Measures {
		tm := &target.Measures[i]
		if d.IgnoreHidden && tm.IsHidden {
			continue
		}
		if _, ok := sourceMeasures[d.normalize(tm.Name)]; !ok {
			changes = append(changes, Change{
				Type:       Removed,
				Entity:     EntityMeasure,
				EntityName: tm.Name,
				OldValue:   tm,
			})
		}
	}
	return changes
}

func (d *Detector) compareMeasures(sm, tm *model.Measure) *Change {
	details := map[string]FieldChange{}
	if sm.Expression != tm.Expression {
		details["expression"] = FieldChange{Old: tm.Expression, New: sm.Expression}
	}
	if sm.Description != tm.Description {
		details["description"] = FieldChange{Old: tm.Description, New: sm.Description}
	}
	if sm.FormatString != tm.FormatString {
		details["format_string"] = FieldChange{Old: tm.FormatString, New: sm.FormatString}
	}
	if sm.IsHidden != tm.IsHidden {
		details["is_hidden"] = FieldChange{Old: tm.IsHidden, New: sm.IsHidden}
	}
	if len(details) == 0 {
		return nil
	}
	return &Change{
		Type:       Modified,
		Entity:     EntityMeasure,
		EntityName: sm.Name,
		OldValue:   tm,
		NewValue:   sm,
		Details:    details,
	}
}

func (d *Detector) relationshipChanges(source, target *model.Model) []Change {
	var changes []Change

	sourceRels := make(map[string]*model.Relationship, len(source.Relationships))
	for i := range source.Relationships {
		r := &source.Relationships[i]
		sourceRels[d.relationshipKey(r)] = r
	}
	targetRels := make(map[string]*model.Relationship, len(target.Relationships))
	for i := range target.Relationships {
		r := &target.Relationships[i]
		targetRels[d.relationshipKey(r)] = r
	}

	for i := range source.Relationships {
		sr := &source.Relationships[i]
		key := d.relationshipKey(sr)
		tr, ok := targetRels[key]
		if !ok {
			changes = append(changes, Change{
				Type:            Added,
				Entity:          EntityRelationship,
				EntityName:      sr.Name,
				NewValue:        sr,
				RelationshipKey: key,
			})
			continue
		}
		if change := d.compareRelationships(sr, tr, key); change != nil {
			changes = append(changes, *change)
		}
	}

	for i := range target.Relationships {
		tr := &target.Relationships[i]
		key := d.relationshipKey(tr)
		if _, ok := sourceRels[key]; !ok {
			changes = append(changes, Change{
				Type:            Removed,
				Entity:          EntityRelationship,
				EntityName:      tr.Name,
				OldValue:        tr,
				RelationshipKey: key,
			})
		}
	}
	return changes
}

func (d *Detector) compareRelationships(sr, tr *model.Relationship, key string) *Change {
	details := map[string]FieldChange{}
	if sr.Cardinality != tr.Cardinality {
		details["cardinality"] = FieldChange{Old: tr.Cardinality, New: sr.Cardinality}
	}
	if sr.CrossFilterDirection != tr.CrossFilterDirection {
		details["cross_filter_direction"] = FieldChange{Old: tr.CrossFilterDirection, New: sr.CrossFilterDirection}
	}
	if sr.IsActive != tr.IsActive {
		details["is_active"] = FieldChange{Old: tr.IsActive, New: sr.IsActive}
	}
	if len(details) == 0 {
		return nil
	}
	return &Change{
		Type:            Modified,
		Entity:          EntityRelationship,
		EntityName:      sr.Name,
		OldValue:        tr,
		NewValue:        sr,
		Details:         details,
		RelationshipKey: key,
	}
}
