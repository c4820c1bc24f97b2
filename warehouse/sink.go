package warehouse

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"semasync/logger"
	"semasync/model"
	"semasync/syncer"
)

// execer is satisfied by both *pgxpool.Pool and pgx.Tx, so the same write
// path serves autocommit and transactional applies.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Sink applies schema changes to the warehouse. Begin hands out a
// transaction running the same writes with all-or-nothing semantics.
type Sink struct {
	pool   *pgxpool.Pool
	writer writer
}

func NewSink(pool *pgxpool.Pool, schema string, log *logger.Logger) *Sink {
	return &Sink{
		pool:   pool,
		writer: writer{run: pool, schema: schema, log: log},
	}
}

func (s *Sink) Platform() string { return PlatformName }

func (s *Sink) AddTable(ctx context.Context, def model.Table) error {
	return s.writer.addTable(ctx, def)
}

func (s *Sink) UpdateTable(ctx context.Context, name string, def model.Table) error {
	return s.writer.updateTable(ctx, name, def)
}

func (s *Sink) UpdateColumnMetadata(ctx context.Context, table, column string, fields map[string]string) error {
	return s.writer.updateColumnMetadata(ctx, table, column, fields)
}

func (s *Sink) Begin(ctx context.Context) (syncer.Transaction, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &Tx{
		writer: writer{run: tx, schema: s.writer.schema, log: s.writer.log},
		tx:     tx,
	}, nil
}

// Tx is one open warehouse transaction.
type Tx struct {
	writer writer
	tx     pgx.Tx
}

func (t *Tx) Platform() string { return PlatformName }

func (t *Tx) AddTable(ctx context.Context, def model.Table) error {
	return t.writer.addTable(ctx, def)
}

func (t *Tx) UpdateTable(ctx context.Context, name string, def model.Table) error {
	return t.writer.updateTable(ctx, name, def)
}

func (t *Tx) UpdateColumnMetadata(ctx context.Context, table, column string, fields map[string]string) error {
	return t.writer.updateColumnMetadata(ctx, table, column, fields)
}

func (t *Tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Rollback is safe to call after Commit; a closed transaction is not an
// error.
func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rolling back transaction: %w", err)
	}
	return nil
}

// writer holds the shared DDL emission used by Sink and Tx.
type writer struct {
	run    execer
	schema string
	log    *logger.Logger
}

func (w writer) addTable(ctx context.Context, def model.Table) error {
	w.log.Debug("creating warehouse table", "table", def.Name, "columns", len(def.Columns))
	if _, err := w.run.Exec(ctx, buildCreateTable(w.schema, def)); err != nil {
		return fmt.Errorf("creating table %s: %w", def.Name, err)
	}
	if comment := tableComment(def); comment != "" {
		if _, err := w.run.Exec(ctx, buildTableComment(w.schema, def.Name, comment)); err != nil {
			return fmt.Errorf("commenting table %s: %w", def.Name, err)
		}
	}
	return w.writeColumnComments(ctx, def.Name, def.Columns)
}

// updateTable reconciles a table toward def by adding missing columns and
// refreshing table and column comments. Column types are never altered in
// place.
func (w writer) updateTable(ctx context.Context, name string, def model.Table) error {
	w.log.Debug("updating warehouse table", "table", name, "columns", len(def.Columns))
	for _, c := range def.Columns {
		if _, err := w.run.Exec(ctx, buildAddColumn(w.schema, name, c)); err != nil {
			return fmt.Errorf("adding column %s.%s: %w", name, c.Name, err)
		}
	}
	if comment := tableComment(def); comment != "" {
		if _, err := w.run.Exec(ctx, buildTableComment(w.schema, name, comment)); err != nil {
			return fmt.Errorf("commenting table %s: %w", name, err)
		}
	}
	return w.writeColumnComments(ctx, name, def.Columns)
}

func (w writer) updateColumnMetadata(ctx context.Context, table, column string, fields map[string]string) error {
	comment, ok := metadataComment(fields)
	if !ok {
		return nil
	}
	if _, err := w.run.Exec(ctx, buildColumnComment(w.schema, table, column, comment)); err != nil {
		return fmt.Errorf("commenting column %s.%s: %w", table, column, err)
	}
	return nil
}

func (w writer) writeColumnComments(ctx context.Context, table string, columns []model.Column) error {
	for _, c := range columns {
		comment := columnComment(c)
		if comment == "" {
			continue
		}
		if _, err := w.run.Exec(ctx, buildColumnComment(w.schema, table, c.Name, comment)); err != nil {
			return fmt.Errorf("commenting column %s.%s: %w", table, c.Name, err)
		}
	}
	return nil
}
