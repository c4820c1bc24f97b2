package detect

import "time"

// ChangeType tags what happened to an entity between two models.
type ChangeType string

const (
	Added     ChangeType = "added"
	Modified  ChangeType = "modified"
	Removed   ChangeType = "removed"
	Unchanged ChangeType = "unchanged"
)

// EntityType names the kind of entity a change applies to.
type EntityType string

const (
	EntityTable        EntityType = "table"
	EntityColumn       EntityType = "column"
	EntityMeasure      EntityType = "measure"
	EntityRelationship EntityType = "relationship"
)

// FieldChange holds one differing field's value on each side. Old is the
// target's value, New the source's.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// Change is one detected difference. OldValue/NewValue carry the full entity
// snapshots; Details lists only the differing fields of a MODIFIED change.
// RelationshipKey is set for relationship changes so consumers can tell
// endpoint identity apart from the display name.
type Change struct {
	Type            ChangeType             `json:"change_type"`
	Entity          EntityType             `json:"entity_type"`
	EntityName      string                 `json:"entity_name"`
	ParentEntity    string                 `json:"parent_entity,omitempty"`
	OldValue        any                    `json:"old_value,omitempty"`
	NewValue        any                    `json:"new_value,omitempty"`
	Details         map[string]FieldChange `json:"details,omitempty"`
	RelationshipKey string                 `json:"relationship_key,omitempty"`
}

// Report is the immutable outcome of one detection run.
type Report struct {
	Source      string    `json:"source"`
	Target      string    `json:"target"`
	Changes     []Change  `json:"changes"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Additions returns the ADDED changes.
func (r *Report) Additions() []Change {
	return r.filter(Added)
}

// Modifications returns the MODIFIED changes.
func (r *Report) Modifications() []Change {
	return r.filter(Modified)
}

// Removals returns the REMOVED changes.
func (r *Report) Removals() []Change {
	return r.filter(Removed)
}

func (r *Report) filter(t ChangeType) []Change {
	var out []Change
	for _, c := range r.Changes {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}

// HasChanges reports whether the run found any difference.
func (r *Report) HasChanges() bool {
	return len(r.Changes) > 0
}

// Summary holds the per-kind change counts.
type Summary struct {
	Added    int `json:"added"`
	Modified int `json:"modified"`
	Removed  int `json:"removed"`
	Total    int `json:"total"`
}

// Summarize counts changes by kind.
func (r *Report) Summarize() Summary {
	s := Summary{}
	for _, c := range r.Changes {
		switch c.Type {
		case Added:
			s.Added++
		case Modified:
			s.Modified++
		case Removed:
			s.Removed++
		}
	}
	s.Total = len(r.Changes)
	return s
}
