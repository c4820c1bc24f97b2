package powerbi

import (
	"context"
	"fmt"
	"strings"

	"semasync/errs"
	"semasync/logger"
	"semasync/model"
)

// Sink writes table definitions through the push-dataset schema API. The API
// replaces whole table definitions; there is no endpoint that updates a
// single column, so column-metadata changes fold into a table resubmission.
type Sink struct {
	client  *Client
	dataset Dataset
	log     *logger.Logger
}

func NewSink(client *Client, dataset Dataset, log *logger.Logger) *Sink {
	return &Sink{client: client, dataset: dataset, log: log}
}

func (s *Sink) Platform() string { return PlatformName }

// AddTable creates a table with all of its columns in one call.
func (s *Sink) AddTable(ctx context.Context, def model.Table) error {
	s.log.Info("creating table", "dataset", s.dataset.Name, "table", def.Name,
		"columns", len(def.Columns))
	return s.client.PutTable(ctx, s.dataset.ID, tableFromModel(def))
}

// UpdateTable resubmits a full table definition under the given name.
func (s *Sink) UpdateTable(ctx context.Context, name string, def model.Table) error {
	t := tableFromModel(def)
	if name != "" {
		t.Name = name
	}
	s.log.Info("updating table", "dataset", s.dataset.Name, "table", t.Name,
		"columns", len(t.Columns))
	return s.client.PutTable(ctx, s.dataset.ID, t)
}

// UpdateColumnMetadata is unavailable on the push API.
func (s *Sink) UpdateColumnMetadata(ctx context.Context, table, column string, fields map[string]string) error {
	return fmt.Errorf("column metadata on %s.%s: %w", table, column, errs.ErrNotSupported)
}

// GetTable reads the live definition of one table so callers can merge new
// columns into it right before a resubmission.
func (s *Sink) GetTable(ctx context.Context, name string) (*model.Table, error) {
	tables, err := s.client.GetTables(ctx, s.dataset.ID)
	if err != nil {
		return nil, err
	}
	for _, t := range tables {
		if strings.EqualFold(t.Name, name) {
			mt := t.toModel()
			return &mt, nil
		}
	}
	return nil, &errs.ResourceNotFoundError{ResourceType: "table", ResourceID: name}
}
