package extract

import (
	"context"
	"sort"
	"strings"

	"semasync/errs"
	"semasync/logger"
	"semasync/model"
	"semasync/registry"
)

// Strategy is one way of obtaining a schema. Strategies run in a fixed
// order; the first one returning a usable model wins and later ones are
// never consulted.
type Strategy interface {
	Name() string
	TryExtract(ctx context.Context, ref SourceRef) (*model.Model, error)
}

// DirectStrategy reads tables and columns through the source's primary
// listing API. A table whose column listing fails is skipped with a warning
// rather than failing the whole read.
type DirectStrategy struct {
	source SchemaSource
	log    *logger.Logger
}

func NewDirectStrategy(source SchemaSource, log *logger.Logger) *DirectStrategy {
	return &DirectStrategy{source: source, log: log}
}

func (s *DirectStrategy) Name() string { return "direct" }

func (s *DirectStrategy) TryExtract(ctx context.Context, ref SourceRef) (*model.Model, error) {
	tables, err := s.source.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	m := &model.Model{Name: ref.Name, Source: s.source.Platform()}
	for _, ti := range tables {
		columns, err := s.source.ListColumns(ctx, ti.ID)
		if err != nil {
			s.log.Warn("listing columns failed", "table", ti.Name, "error", err)
			continue
		}
		table := ti.ToTable()
		for _, ci := range columns {
			table.Columns = append(table.Columns, ci.ToColumn())
		}
		m.Tables = append(m.Tables, table)
	}
	return m, nil
}

// RegistryStrategy serves manually maintained definitions. It is the
// last-resort catalog for models nothing can read live.
type RegistryStrategy struct {
	registry *registry.Registry
	log      *logger.Logger
}

func NewRegistryStrategy(reg *registry.Registry, log *logger.Logger) *RegistryStrategy {
	return &RegistryStrategy{registry: reg, log: log}
}

func (s *RegistryStrategy) Name() string { return "registry" }

func (s *RegistryStrategy) TryExtract(ctx context.Context, ref SourceRef) (*model.Model, error) {
	if !s.registry.HasDefinition(ref.Name) {
		return nil, &errs.ResourceNotFoundError{ResourceType: "definition", ResourceID: ref.Name}
	}
	s.log.Info("using manual definition", "model", ref.Name)
	return &model.Model{
		Name:        ref.Name,
		Description: s.registry.GetDescription(ref.Name),
		Tables:      s.registry.GetTables(ref.Name),
	}, nil
}

// defaultSampleLimit is how many rows the inference strategy reads per
// table.
const defaultSampleLimit = 10

const inferredNote = "Type inferred from row sampling"

// SampleStrategy infers column schemas from live rows. It only needs the
// source's table listing plus a row sampler, so it works against query-only
// endpoints. Inferred columns are always nullable and carry a provenance
// note in their description.
type SampleStrategy struct {
	source  SchemaSource
	sampler RowSampler
	limit   int
	log     *logger.Logger
}

func NewSampleStrategy(source SchemaSource, sampler RowSampler, log *logger.Logger) *SampleStrategy {
	return &SampleStrategy{source: source, sampler: sampler, limit: defaultSampleLimit, log: log}
}

func (s *SampleStrategy) Name() string { return "sample" }

func (s *SampleStrategy) TryExtract(ctx context.Context, ref SourceRef) (*model.Model, error) {
	tables, err := s.source.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	m := &model.Model{Name: ref.Name, Source: s.source.Platform()}
	for _, ti := range tables {
		rows, err := s.sampler.SampleRows(ctx, ti.Name, s.limit)
		if err != nil {
			s.log.Warn("sampling rows failed", "table", ti.Name, "error", err)
			continue
		}
		columns := inferColumns(rows)
		if len(columns) == 0 {
			continue
		}
		table := ti.ToTable()
		table.Columns = columns
		m.Tables = append(m.Tables, table)
	}
	return m, nil
}

// inferColumns derives a column list from sampled rows. The first non-nil
// value seen for a key decides its type; keys whose values are all nil fall
// back to string. Output is sorted by name because row maps carry no order.
func inferColumns(rows []map[string]any) []model.Column {
	types := make(map[string]model.DataType)
	var names []string
	for _, row := range rows {
		for key, value := range row {
			name := columnNameFromKey(key)
			if name == "" {
				continue
			}
			if _, seen := types[name]; !seen {
				types[name] = model.TypeUnknown
				names = append(names, name)
			}
			if types[name] == model.TypeUnknown && value != nil {
				types[name] = model.InferDataType(value)
			}
		}
	}
	sort.Strings(names)

	columns := make([]model.Column, 0, len(names))
	for _, name := range names {
		t := types[name]
		if t == model.TypeUnknown {
			t = model.TypeString
		}
		columns = append(columns, model.Column{
			Name:           name,
			DataType:       string(t),
			NormalizedType: t,
			IsNullable:     true,
			Description:    inferredNote,
		})
	}
	return columns
}

// columnNameFromKey strips the "Table[Column]" wrapping query engines put
// on result keys.
func columnNameFromKey(key string) string {
	if strings.HasSuffix(key, "]") {
		if i := strings.Index(key, "["); i >= 0 {
			return key[i+1 : len(key)-1]
		}
	}
	return key
}
