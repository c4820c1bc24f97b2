// Package snapshot persists full model snapshots and the sync-run history
// ledger in a local SQLite database.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"semasync/errs"
	"semasync/logger"
	"semasync/model"
)

const defaultListLimit = 20

// SnapshotInfo describes a stored snapshot without its payload.
type SnapshotInfo struct {
	SnapshotID    string    `db:"snapshot_id" json:"snapshot_id"`
	ModelName     string    `db:"model_name" json:"model_name"`
	Source        string    `db:"source" json:"source"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	TablesCount   int       `db:"tables_count" json:"tables_count"`
	ColumnsCount  int       `db:"columns_count" json:"columns_count"`
	MeasuresCount int       `db:"measures_count" json:"measures_count"`
	Description   string    `db:"description" json:"description,omitempty"`
}

// SyncRecord is one entry in the append-only sync-history ledger. History
// entries outlive the snapshots they reference.
type SyncRecord struct {
	SyncID         string     `db:"sync_id" json:"sync_id"`
	SnapshotID     *string    `db:"snapshot_id" json:"snapshot_id,omitempty"`
	Direction      string     `db:"direction" json:"direction"`
	Status         string     `db:"status" json:"status"`
	StartedAt      time.Time  `db:"started_at" json:"started_at"`
	CompletedAt    *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	ChangesApplied int        `db:"changes_applied" json:"changes_applied"`
	Errors         int        `db:"errors" json:"errors"`
	ErrorMessage   *string    `db:"error_message" json:"error_message,omitempty"`
}

// Store is a snapshot and history store over one SQLite file. Every
// operation opens its own connection and closes it before returning, so
// other processes reading the same file are tolerated.
type Store struct {
	path string
	log  *logger.Logger
}

// NewStore creates the backing database file and its tables if needed.
func NewStore(path string, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Nop()
	}
	if path == "" {
		return nil, &errs.ConfigurationError{Message: "snapshot store path is required"}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating snapshot directory: %w", err)
		}
	}

	s := &Store{path: path, log: log}
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	if err := ensureTables(db); err != nil {
		return nil, fmt.Errorf("initializing snapshot store: %w", err)
	}
	log.Debug("snapshot store initialized", "path", path)
	return s, nil
}

func (s *Store) open() (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite3", s.path+"?_busy_timeout=5000")
	if err != nil {
		return nil, &errs.ConnectionError{Service: "snapshot store", Err: err}
	}
	return db, nil
}

func ensureTables(db *sqlx.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			snapshot_id TEXT PRIMARY KEY,
			model_name TEXT NOT NULL,
			source TEXT NOT NULL,
			model_json TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			tables_count INTEGER NOT NULL DEFAULT 0,
			columns_count INTEGER NOT NULL DEFAULT 0,
			measures_count INTEGER NOT NULL DEFAULT 0
		)`); err != nil {
		return err
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sync_history (
			sync_id TEXT PRIMARY KEY,
			snapshot_id TEXT,
			direction TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP,
			changes_applied INTEGER NOT NULL DEFAULT 0,
			errors INTEGER NOT NULL DEFAULT 0,
			error_message TEXT
		)`); err != nil {
		return err
	}
	return nil
}

// CreateSnapshot stores the full model and returns the generated snapshot
// ID. Two snapshots of identical content are distinct records.
func (s *Store) CreateSnapshot(ctx context.Context, m *model.Model, description string) (string, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("serializing model: %w", err)
	}

	db, err := s.open()
	if err != nil {
		return "", err
	}
	defer db.Close()

	snapshotID := uuid.New().String()
	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto("snapshots")
	ib.Cols("snapshot_id", "model_name", "source", "model_json", "created_at",
		"description", "tables_count", "columns_count", "measures_count")
	ib.Values(snapshotID, m.Name, m.Source, string(payload), time.Now().UTC(),
		description, m.TableCount(), m.ColumnCount(), m.MeasureCount())

	query, args := ib.Build()
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("inserting snapshot: %w", err)
	}

	s.log.Info("created snapshot", "snapshot_id", snapshotID, "model", m.Name)
	return snapshotID, nil
}

// Restore loads the model stored under snapshotID.
func (s *Store) Restore(ctx context.Context, snapshotID string) (*model.Model, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("model_json")
	sb.From("snapshots")
	sb.Where(sb.Equal("snapshot_id", snapshotID))

	query, args := sb.Build()
	var payload string
	if err := db.GetContext(ctx, &payload, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &errs.ResourceNotFoundError{ResourceType: "snapshot", ResourceID: snapshotID}
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var m model.Model
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return nil, fmt.Errorf("deserializing snapshot %s: %w", snapshotID, err)
	}

	s.log.Info("restored model from snapshot", "snapshot_id", snapshotID, "model", m.Name)
	return &m, nil
}

// GetLatest returns the most recent snapshot, optionally filtered by model
// name. Returns nil when the store holds no matching snapshot.
func (s *Store) GetLatest(ctx context.Context, modelName string) (*SnapshotInfo, error) {
	infos, err := s.ListSnapshots(ctx, modelName, 1)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, nil
	}
	return &infos[0], nil
}

// ListSnapshots returns snapshots newest-first, optionally filtered by
// model name. A non-positive limit falls back to the default page size.
func (s *Store) ListSnapshots(ctx context.Context, modelName string, limit int) ([]SnapshotInfo, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("snapshot_id", "model_name", "source", "created_at",
		"tables_count", "columns_count", "measures_count", "description")
	sb.From("snapshots")
	if modelName != "" {
		sb.Where(sb.Equal("model_name", modelName))
	}
	sb.OrderBy("created_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var infos []SnapshotInfo
	if err := db.SelectContext(ctx, &infos, query, args...); err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	return infos, nil
}

// Delete removes one snapshot. Returns false when no such snapshot exists.
// History entries referencing the snapshot are left in place.
func (s *Store) Delete(ctx context.Context, snapshotID string) (bool, error) {
	db, err := s.open()
	if err != nil {
		return false, err
	}
	defer db.Close()

	delb := sqlbuilder.SQLite.NewDeleteBuilder()
	delb.DeleteFrom("snapshots")
	delb.Where(delb.Equal("snapshot_id", snapshotID))

	query, args := delb.Build()
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("deleting snapshot: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows > 0 {
		s.log.Info("deleted snapshot", "snapshot_id", snapshotID)
	}
	return rows > 0, nil
}

// CleanupKeepLast deletes all but the newest keepLast snapshots across all
// models and returns the number deleted.
func (s *Store) CleanupKeepLast(ctx context.Context, keepLast int) (int, error) {
	if keepLast < 0 {
		keepLast = 0
	}

	db, err := s.open()
	if err != nil {
		return 0, err
	}
	defer db.Close()

	delb := sqlbuilder.SQLite.NewDeleteBuilder()
	delb.DeleteFrom("snapshots")
	if keepLast > 0 {
		sb := sqlbuilder.SQLite.NewSelectBuilder()
		sb.Select("snapshot_id")
		sb.From("snapshots")
		sb.OrderBy("created_at DESC")
		sb.Limit(keepLast)

		query, args := sb.Build()
		var keepIDs []string
		if err := db.SelectContext(ctx, &keepIDs, query, args...); err != nil {
			return 0, fmt.Errorf("listing snapshots to keep: %w", err)
		}
		if len(keepIDs) > 0 {
			keep := make([]interface{}, len(keepIDs))
			for i, id := range keepIDs {
				keep[i] = id
			}
			delb.Where(delb.NotIn("snapshot_id", keep...))
		}
	}

	query, args := delb.Build()
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("cleaning up snapshots: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if rows > 0 {
		s.log.Info("cleaned up old snapshots", "deleted", rows, "kept", keepLast)
	}
	return int(rows), nil
}

// RecordSync appends one run to the history ledger and returns the
// generated sync ID. The record's own SyncID field is ignored.
func (s *Store) RecordSync(ctx context.Context, rec SyncRecord) (string, error) {
	db, err := s.open()
	if err != nil {
		return "", err
	}
	defer db.Close()

	syncID := uuid.New().String()
	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto("sync_history")
	ib.Cols("sync_id", "snapshot_id", "direction", "status", "started_at",
		"completed_at", "changes_applied", "errors", "error_message")
	ib.Values(syncID, rec.SnapshotID, rec.Direction, rec.Status, rec.StartedAt,
		rec.CompletedAt, rec.ChangesApplied, rec.Errors, rec.ErrorMessage)

	query, args := ib.Build()
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("recording sync history: %w", err)
	}
	return syncID, nil
}

// ListHistory returns sync-history entries newest-first.
func (s *Store) ListHistory(ctx context.Context, limit int) ([]SyncRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("sync_id", "snapshot_id", "direction", "status", "started_at",
		"completed_at", "changes_applied", "errors", "error_message")
	sb.From("sync_history")
	sb.OrderBy("started_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var records []SyncRecord
	if err := db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("listing sync history: %w", err)
	}
	return records, nil
}
