// Package syncer drives one synchronization run end to end: extract both
// sides, detect differences, filter them by mode, and apply what remains to
// the target platform.
package syncer

import (
	"context"

	"semasync/model"
)

// Extractor produces the normalized model for one side of a run.
type Extractor interface {
	Extract(ctx context.Context) (*model.Model, error)
}

// SchemaSink applies schema definitions to a target platform. Sinks have no
// removal operations; detected removals are reported but never applied.
type SchemaSink interface {
	Platform() string
	AddTable(ctx context.Context, def model.Table) error
	UpdateTable(ctx context.Context, name string, def model.Table) error
	UpdateColumnMetadata(ctx context.Context, table, column string, fields map[string]string) error
}

// TransactionalSink groups writes into an all-or-nothing transaction.
type TransactionalSink interface {
	SchemaSink
	Begin(ctx context.Context) (Transaction, error)
}

// Transaction is an open batch of sink writes. Rollback after a successful
// Commit must be a no-op so it can sit in a defer.
type Transaction interface {
	SchemaSink
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TableReader is an optional sink capability: reading a table definition
// back immediately before modifying it. Push-style targets replace whole
// tables on update, so writes against them start from the live definition.
type TableReader interface {
	GetTable(ctx context.Context, name string) (*model.Table, error)
}
