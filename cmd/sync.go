package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"semasync/extract"
	"semasync/powerbi"
	"semasync/syncer"
)

var (
	syncDirection  string
	syncMode       string
	syncDryRun     bool
	syncForce      bool
	syncAll        bool
	syncOutput     string
	syncNoSnapshot bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Apply detected schema changes to the target",
	Long: `Extract both sides, detect the differences, and apply them to the
target. A snapshot of the target is taken before any write so a bad sync
can be inspected and recovered.

Examples:
  semasync sync                                      # model-to-warehouse, full
  semasync sync --mode incremental                   # additions and modifications only
  semasync sync --mode metadata-only                 # descriptions, format strings, hidden flags
  semasync sync --direction warehouse-to-model
  semasync sync --dry-run                            # accounting without writes
  semasync sync --all                                # every dataset in the workspace
  semasync sync --output result.json                 # write the result as JSON
`,
	Run: func(cmd *cobra.Command, args []string) {
		direction, err := syncer.ParseDirection(syncDirection)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(1)
		}
		mode, err := syncer.ParseMode(syncMode)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(1)
		}

		a := mustApp()
		defer a.Close()
		ctx := context.Background()
		opts := syncer.Options{Mode: mode, DryRun: syncDryRun, SkipSnapshot: syncNoSnapshot}

		if !syncDryRun && !confirmApply(syncForce) {
			fmt.Println("🚫 Sync cancelled")
			return
		}

		if syncAll {
			runWorkspaceSync(ctx, a, direction, opts)
			return
		}

		o, err := a.orchestrator(ctx, direction, true)
		if err != nil {
			fmt.Printf("❌ Error preparing sync: %v\n", err)
			os.Exit(1)
		}

		result, err := o.Sync(ctx, opts)
		printSyncResult(result)
		writeResultFile(result)
		if err != nil {
			fmt.Printf("❌ Sync failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	syncCmd.Flags().StringVarP(&syncDirection, "direction", "d", string(syncer.ModelToWarehouse), "Sync direction (model-to-warehouse, warehouse-to-model)")
	syncCmd.Flags().StringVarP(&syncMode, "mode", "m", string(syncer.ModeFull), "Sync mode (full, incremental, metadata-only)")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Compute the full accounting without writing anything")
	syncCmd.Flags().BoolVarP(&syncForce, "force", "f", false, "Skip the confirmation prompt")
	syncCmd.Flags().BoolVar(&syncAll, "all", false, "Sync every dataset in the workspace (model-to-warehouse only)")
	syncCmd.Flags().StringVarP(&syncOutput, "output", "o", "", "Write the sync result to a JSON file")
	syncCmd.Flags().BoolVar(&syncNoSnapshot, "no-snapshot", false, "Skip the pre-sync snapshot")
}

// runWorkspaceSync builds one orchestrator per dataset in the workspace and
// runs them start to finish. One dataset failing does not stop the rest.
func runWorkspaceSync(ctx context.Context, a *app, direction syncer.Direction, opts syncer.Options) {
	if direction != syncer.ModelToWarehouse {
		fmt.Println("❌ --all only supports the model-to-warehouse direction")
		os.Exit(1)
	}

	client, err := a.powerbi()
	if err != nil {
		fmt.Printf("❌ Error preparing workspace sync: %v\n", err)
		os.Exit(1)
	}
	datasets, err := client.ListDatasets(ctx)
	if err != nil {
		fmt.Printf("❌ Error listing datasets: %v\n", err)
		os.Exit(1)
	}
	if len(datasets) == 0 {
		fmt.Println("📋 No datasets found in the workspace")
		return
	}
	fmt.Printf("🔄 Syncing %d dataset(s)\n", len(datasets))

	target, err := a.warehouseExtractor(ctx)
	if err != nil {
		fmt.Printf("❌ Error preparing warehouse side: %v\n", err)
		os.Exit(1)
	}
	sink, err := a.warehouseSink(ctx)
	if err != nil {
		fmt.Printf("❌ Error preparing warehouse sink: %v\n", err)
		os.Exit(1)
	}
	store, err := a.snapshots()
	if err != nil {
		fmt.Printf("❌ Error opening snapshot store: %v\n", err)
		os.Exit(1)
	}

	var runs []*syncer.Orchestrator
	for _, ds := range datasets {
		source, err := a.datasetExtractor(ctx, ds)
		if err != nil {
			fmt.Printf("⚠️  Skipping dataset %s: %v\n", ds.Name, err)
			continue
		}
		runs = append(runs, &syncer.Orchestrator{
			Name:      ds.Name,
			Direction: direction,
			Source:    source,
			Target:    target,
			Sink:      sink,
			Store:     store,
			Detector:  a.detector(),
			Log:       a.log,
		})
	}

	batch := syncer.SyncAll(ctx, runs, opts)

	fmt.Println("\n📊 Workspace sync summary")
	fmt.Println(strings.Repeat("=", 60))
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	for _, r := range batch.Results {
		line := fmt.Sprintf("  %-30s %s", r.Model, r.Summary())
		if r.Success {
			green.Println(line)
		} else {
			red.Println(line)
		}
	}
	fmt.Printf("\n%d succeeded, %d failed\n", batch.Succeeded, batch.Failed)

	if syncOutput != "" {
		writeJSONFile(syncOutput, batch)
	}
	if batch.Failed > 0 {
		os.Exit(1)
	}
}

// datasetExtractor builds the model-side extractor for one specific dataset,
// used by workspace-wide sync where each dataset is its own source.
func (a *app) datasetExtractor(ctx context.Context, ds powerbi.Dataset) (*extract.Extractor, error) {
	client, err := a.powerbi()
	if err != nil {
		return nil, err
	}
	source := powerbi.NewSource(client, ds, a.log)
	ref := extract.SourceRef{Name: ds.Name, ID: ds.ID}

	strategies := []extract.Strategy{
		extract.NewDirectStrategy(source, a.log),
		powerbi.NewDMVStrategy(client, a.log),
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

func printSyncResult(result *syncer.SyncResult) {
	fmt.Println()
	if result.Success {
		if result.DryRun {
			fmt.Println("✅ Dry run complete, nothing was written")
		} else {
			fmt.Println("✅ Sync complete")
		}
	} else {
		fmt.Println("❌ Sync did not complete")
	}

	fmt.Printf("📊 %d applied, %d skipped, %d errors (%s)\n",
		result.ChangesApplied, result.ChangesSkipped, result.Errors,
		result.Duration().Round(time.Millisecond))
	if result.SnapshotID != "" {
		fmt.Printf("📸 Pre-sync snapshot: %s\n", result.SnapshotID)
	}

	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)
	for _, d := range result.Details {
		switch d.Status {
		case syncer.StatusFailed:
			red.Printf("   💥 %s %s: %s\n", d.Action, detailName(d), d.Message)
		case syncer.StatusRolledBack:
			yellow.Printf("   ↩️  %s %s rolled back\n", d.Action, detailName(d))
		}
	}
}

func detailName(d syncer.AppliedChange) string {
	if d.Parent != "" {
		return fmt.Sprintf("%s %s.%s", d.Entity, d.Parent, d.Name)
	}
	return fmt.Sprintf("%s %s", d.Entity, d.Name)
}

func writeResultFile(result *syncer.SyncResult) {
	if syncOutput == "" {
		return
	}
	writeJSONFile(syncOutput, result)
}

func writeJSONFile(path string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("⚠️  Could not encode result: %v\n", err)
		return
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		fmt.Printf("⚠️  Could not write %s: %v\n", path, err)
		return
	}
	fmt.Printf("💾 Result written to %s\n", path)
}
