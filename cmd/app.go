package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"semasync/auth"
	"semasync/config"
	"semasync/detect"
	"semasync/errs"
	"semasync/extract"
	"semasync/lakehouse"
	"semasync/logger"
	"semasync/powerbi"
	"semasync/registry"
	"semasync/snapshot"
	"semasync/syncer"
	"semasync/warehouse"
)

// app wires the engine together for one command invocation. Collaborators
// are built lazily so local-only commands never touch the network.
type app struct {
	cfg *config.Config
	log *logger.Logger

	pool      *pgxpool.Pool
	pbClient  *powerbi.Client
	pbDataset *powerbi.Dataset
	store     *snapshot.Store
	reg       *registry.Registry
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: log}, nil
}

// mustApp is the command-entry variant: a setup failure is fatal.
func mustApp() *app {
	a, err := newApp()
	if err != nil {
		fmt.Printf("❌ Configuration error: %v\n", err)
		os.Exit(1)
	}
	return a
}

func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
	a.log.Sync()
}

func (a *app) snapshots() (*snapshot.Store, error) {
	if a.store == nil {
		s, err := snapshot.NewStore(a.cfg.SnapshotDBPath, a.log)
		if err != nil {
			return nil, err
		}
		a.store = s
	}
	return a.store, nil
}

func (a *app) registry() (*registry.Registry, error) {
	if a.reg == nil {
		r, err := registry.New(a.cfg.RegistryDir, a.log)
		if err != nil {
			return nil, err
		}
		a.reg = r
	}
	return a.reg, nil
}

func (a *app) warehousePool(ctx context.Context) (*pgxpool.Pool, error) {
	if a.pool == nil {
		pool, err := warehouse.Connect(ctx, a.cfg)
		if err != nil {
			return nil, err
		}
		a.pool = pool
	}
	return a.pool, nil
}

func (a *app) powerbi() (*powerbi.Client, error) {
	if a.pbClient == nil {
		if err := a.cfg.RequireModelSide(); err != nil {
			return nil, err
		}
		cache := auth.NewTokenCache(a.cfg.TokenCachePath, a.log)
		creds := auth.NewOAuthClient(a.cfg, cache, a.log)
		a.pbClient = powerbi.NewClient(a.cfg, creds, a.log)
	}
	return a.pbClient, nil
}

// dataset resolves the configured dataset by name. With createMissing set, a
// missing dataset is created as an empty push dataset so a first
// warehouse-to-model sync has somewhere to land.
func (a *app) dataset(ctx context.Context, createMissing bool) (*powerbi.Dataset, error) {
	if a.pbDataset != nil {
		return a.pbDataset, nil
	}
	client, err := a.powerbi()
	if err != nil {
		return nil, err
	}
	ds, err := client.ResolveDataset(ctx, a.cfg.DatasetName)
	if errs.NotFound(err) && createMissing {
		fmt.Printf("ℹ️  Dataset %q not found, creating a push dataset\n", a.cfg.DatasetName)
		ds, err = client.CreatePushDataset(ctx, a.cfg.DatasetName, []powerbi.Table{})
	}
	if err != nil {
		return nil, err
	}
	a.pbDataset = ds
	return ds, nil
}

// modelName labels extracted models and sync results. The dataset name wins;
// the warehouse schema is the fallback for warehouse-only setups.
func (a *app) modelName() string {
	if a.cfg.DatasetName != "" {
		return a.cfg.DatasetName
	}
	return a.cfg.WarehouseSchema
}

// modelExtractor builds the semantic-model side with its full fallback
// chain: the REST schema read, the DMV query endpoint, the lakehouse commit
// logs, the manual registry, and finally row sampling.
func (a *app) modelExtractor(ctx context.Context, createMissing bool) (*extract.Extractor, error) {
	client, err := a.powerbi()
	if err != nil {
		return nil, err
	}
	ds, err := a.dataset(ctx, createMissing)
	if err != nil {
		return nil, err
	}
	source := powerbi.NewSource(client, *ds, a.log)
	ref := extract.SourceRef{Name: a.modelName(), ID: ds.ID}

	strategies := []extract.Strategy{
		extract.NewDirectStrategy(source, a.log),
		powerbi.NewDMVStrategy(client, a.log),
	}
	if a.cfg.LakeConfigured() {
		store, err := lakehouse.NewMinioStore(a.cfg)
		if err != nil {
			a.log.Warn("lakehouse storage unavailable, skipping that strategy", "error", err)
		} else {
			strategies = append(strategies, lakehouse.NewStrategy(store, a.cfg.LakePrefix, a.log))
		}
	}
	reg, err := a.registry()
	if err != nil {
		return nil, err
	}
	strategies = append(strategies,
		extract.NewRegistryStrategy(reg, a.log),
		extract.NewSampleStrategy(source, source, a.log),
	)
	return extract.NewExtractor(ref, powerbi.PlatformName, strategies, source, a.log), nil
}

// warehouseExtractor builds the warehouse side: the catalog read plus the
// manual registry as fallback.
func (a *app) warehouseExtractor(ctx context.Context) (*extract.Extractor, error) {
	pool, err := a.warehousePool(ctx)
	if err != nil {
		return nil, err
	}
	source := warehouse.NewSource(pool, a.cfg.WarehouseSchema, a.log)
	ref := extract.SourceRef{Name: a.modelName(), ID: a.cfg.WarehouseSchema}
	reg, err := a.registry()
	if err != nil {
		return nil, err
	}
	strategies := []extract.Strategy{
		extract.NewDirectStrategy(source, a.log),
		extract.NewRegistryStrategy(reg, a.log),
	}
	return extract.NewExtractor(ref, warehouse.PlatformName, strategies, source, a.log), nil
}

// extractorFor serves the commands that read one side only.
func (a *app) extractorFor(ctx context.Context, side string) (*extract.Extractor, error) {
	switch side {
	case "model":
		return a.modelExtractor(ctx, false)
	case "warehouse":
		return a.warehouseExtractor(ctx)
	case "lakehouse":
		if !a.cfg.LakeConfigured() {
			return nil, &errs.ConfigurationError{
				Message: "lakehouse is not configured",
				Details: map[string]string{"SEMASYNC_LAKE_ENDPOINT": "required"},
			}
		}
		store, err := lakehouse.NewMinioStore(a.cfg)
		if err != nil {
			return nil, err
		}
		ref := extract.SourceRef{Name: a.modelName(), ID: a.cfg.LakeBucket}
		strategies := []extract.Strategy{lakehouse.NewStrategy(store, a.cfg.LakePrefix, a.log)}
		return extract.NewExtractor(ref, lakehouse.PlatformName, strategies, nil, a.log), nil
	}
	return nil, &errs.ValidationError{Field: "source", Value: side}
}

func (a *app) warehouseSink(ctx context.Context) (*warehouse.Sink, error) {
	pool, err := a.warehousePool(ctx)
	if err != nil {
		return nil, err
	}
	return warehouse.NewSink(pool, a.cfg.WarehouseSchema, a.log), nil
}

func (a *app) detector() *detect.Detector {
	return &detect.Detector{IgnoreHidden: a.cfg.IgnoreHidden, CaseSensitive: a.cfg.CaseSensitive}
}

// orchestrator wires one sync direction end to end.
func (a *app) orchestrator(ctx context.Context, direction syncer.Direction, withStore bool) (*syncer.Orchestrator, error) {
	o := &syncer.Orchestrator{
		Name:      a.modelName(),
		Direction: direction,
		Detector:  a.detector(),
		Log:       a.log,
		Progress: func(step, total int, message string) {
			fmt.Printf("[%d/%d] %s\n", step, total, message)
		},
	}

	switch direction {
	case syncer.ModelToWarehouse:
		source, err := a.modelExtractor(ctx, false)
		if err != nil {
			return nil, err
		}
		target, err := a.warehouseExtractor(ctx)
		if err != nil {
			return nil, err
		}
		sink, err := a.warehouseSink(ctx)
		if err != nil {
			return nil, err
		}
		o.Source = source
		o.Target = target
		o.Sink = sink
	case syncer.WarehouseToModel:
		source, err := a.warehouseExtractor(ctx)
		if err != nil {
			return nil, err
		}
		target, err := a.modelExtractor(ctx, true)
		if err != nil {
			return nil, err
		}
		client, err := a.powerbi()
		if err != nil {
			return nil, err
		}
		ds, err := a.dataset(ctx, true)
		if err != nil {
			return nil, err
		}
		o.Source = source
		o.Target = target
		o.Sink = powerbi.NewSink(client, *ds, a.log)
	default:
		return nil, &errs.ValidationError{Field: "direction", Value: string(direction)}
	}

	if withStore {
		store, err := a.snapshots()
		if err != nil {
			return nil, err
		}
		o.Store = store
	}
	return o, nil
}

func confirmApply(force bool) bool {
	if force {
		return true
	}
	fmt.Print("⚠️  This will modify the target. Continue? [y/N]: ")
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
