// Package extract turns platform schema listings into normalized models. An
// Extractor owns an ordered chain of strategies and returns the first usable
// result; nothing is ever merged across strategies.
package extract

import (
	"context"
	"time"

	"semasync/errs"
	"semasync/logger"
	"semasync/model"
)

// MetadataKeyStrategy records which strategy produced a model.
const MetadataKeyStrategy = "extraction_strategy"

// Extractor runs the fallback chain for one source. A model is usable when
// at least one of its tables has at least one column; anything less counts
// as a strategy failure and the chain advances. Strategy errors are logged
// and swallowed so a broken endpoint never masks a later fallback.
type Extractor struct {
	ref        SourceRef
	platform   string
	strategies []Strategy
	metadata   SchemaSource
	log        *logger.Logger
}

// NewExtractor builds the chain. metadata may be nil; when present it is
// consulted once after a strategy wins, to attach measures and relationships
// the winning strategy could not see.
func NewExtractor(ref SourceRef, platform string, strategies []Strategy, metadata SchemaSource, log *logger.Logger) *Extractor {
	return &Extractor{
		ref:        ref,
		platform:   platform,
		strategies: strategies,
		metadata:   metadata,
		log:        log,
	}
}

// Ref returns the source reference this extractor reads.
func (e *Extractor) Ref() SourceRef { return e.ref }

// Platform returns the platform label stamped onto extracted models.
func (e *Extractor) Platform() string { return e.platform }

// Extract walks the chain. Exhaustion means the source has no readable
// schema at all and reports ResourceNotFound.
func (e *Extractor) Extract(ctx context.Context) (*model.Model, error) {
	for _, strat := range e.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		m, err := strat.TryExtract(ctx, e.ref)
		if err != nil {
			e.log.Warn("extraction strategy failed",
				"strategy", strat.Name(), "source", e.ref.Name, "error", err)
			continue
		}
		if !usable(m) {
			e.log.Warn("extraction strategy found no usable tables",
				"strategy", strat.Name(), "source", e.ref.Name)
			continue
		}

		e.log.Info("schema extracted",
			"strategy", strat.Name(), "source", e.ref.Name, "tables", len(m.Tables))
		e.enrich(ctx, m)
		e.finalize(m, strat.Name())
		return m, nil
	}
	return nil, &errs.ResourceNotFoundError{ResourceType: "schema", ResourceID: e.ref.Name}
}

// usable reports whether a model carries any real structure.
func usable(m *model.Model) bool {
	if m == nil {
		return false
	}
	for _, t := range m.Tables {
		if len(t.Columns) > 0 {
			return true
		}
	}
	return false
}

// enrich attaches measures and relationships from the metadata source, but
// only where the winning strategy produced none. A metadata source that does
// not support a listing is fine; one that fails is logged and ignored.
func (e *Extractor) enrich(ctx context.Context, m *model.Model) {
	if e.metadata == nil {
		return
	}

	if len(m.Measures) == 0 {
		measures, err := e.metadata.ListMeasures(ctx)
		switch {
		case errs.NotSupported(err):
		case err != nil:
			e.log.Warn("listing measures failed", "source", e.ref.Name, "error", err)
		default:
			for _, mi := range measures {
				m.Measures = append(m.Measures, mi.ToMeasure())
			}
		}
	}

	if len(m.Relationships) == 0 {
		relationships, err := e.metadata.ListRelationships(ctx)
		switch {
		case errs.NotSupported(err):
		case err != nil:
			e.log.Warn("listing relationships failed", "source", e.ref.Name, "error", err)
		default:
			for _, ri := range relationships {
				m.Relationships = append(m.Relationships, ri.ToRelationship())
			}
		}
	}
}

func (e *Extractor) finalize(m *model.Model, strategy string) {
	if m.Name == "" {
		m.Name = e.ref.Name
	}
	m.Source = e.platform
	m.ExtractedAt = time.Now().UTC()
	if m.Metadata == nil {
		m.Metadata = make(map[string]string)
	}
	m.Metadata[MetadataKeyStrategy] = strategy
	if e.ref.ID != "" {
		m.Metadata["source_id"] = e.ref.ID
	}
}
