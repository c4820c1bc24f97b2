// Package lakehouse discovers table schemas by reading Delta commit logs
// straight out of an S3-compatible object store. It needs no running compute
// endpoint, which makes it a useful fallback when the model service cannot
// describe its own tables.
package lakehouse

import (
	"context"
	"path"
	"strings"

	"semasync/extract"
	"semasync/logger"
	"semasync/model"
)

// PlatformName identifies schemas that came from Delta storage.
const PlatformName = "lakehouse"

// Strategy reads every Delta table under a storage prefix. Directory names
// starting with an underscore are internal (staging areas, logs) and skipped.
type Strategy struct {
	store  ObjectStore
	prefix string
	log    *logger.Logger
}

func NewStrategy(store ObjectStore, prefix string, log *logger.Logger) *Strategy {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Strategy{store: store, prefix: prefix, log: log}
}

func (s *Strategy) Name() string { return "lakehouse" }

func (s *Strategy) TryExtract(ctx context.Context, ref extract.SourceRef) (*model.Model, error) {
	entries, err := s.store.ListPrefix(ctx, s.prefix, false)
	if err != nil {
		return nil, err
	}

	m := &model.Model{Name: ref.Name, Source: PlatformName}
	for _, key := range entries {
		if !strings.HasSuffix(key, "/") {
			continue
		}
		name := path.Base(strings.TrimSuffix(key, "/"))
		if name == "" || strings.HasPrefix(name, "_") {
			continue
		}

		schema, err := s.readTable(ctx, key)
		if err != nil {
			s.log.Warn("skipping table without a readable commit log",
				"table", name, "error", err)
			continue
		}
		m.Tables = append(m.Tables, model.Table{
			Name:            name,
			Description:     schema.Description,
			Columns:         schema.Columns,
			SourceTable:     strings.TrimSuffix(key, "/"),
			PartitionSource: strings.Join(schema.PartitionColumns, ", "),
		})
	}
	return m, nil
}

func (s *Strategy) readTable(ctx context.Context, tableDir string) (*tableSchema, error) {
	data, err := s.store.GetObject(ctx, tableDir+firstCommit)
	if err != nil {
		return nil, err
	}
	return parseCommitLog(data)
}
