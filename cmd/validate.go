package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"semasync/errs"
	"semasync/lakehouse"
	"semasync/registry"
)

var (
	validateFormat  string
	validateOffline bool
	validateTimeout time.Duration
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration, registry definitions and connectivity",
	Long: `Validate the engine setup end to end.

This command will:
- Report which sides (model service, warehouse, lakehouse) are configured
- Validate every manual model definition in the registry directory
- Probe connectivity of each configured service and the snapshot store

Use --offline to skip the connectivity probes.

Examples:
  semasync validate                  # Validate everything
  semasync validate --offline        # Configuration and registry only
  semasync validate --format json    # Output validation results as JSON
`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runValidate(); err != nil {
			fmt.Printf("❌ Validation failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	validateCmd.Flags().StringVarP(&validateFormat, "format", "f", "text", "Output format (text, json)")
	validateCmd.Flags().BoolVar(&validateOffline, "offline", false, "Skip connectivity probes")
	validateCmd.Flags().DurationVarP(&validateTimeout, "timeout", "t", 15*time.Second, "Timeout per connectivity probe")
}

type probeResult struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type validationReport struct {
	ModelSideConfigured bool                                  `json:"model_side_configured"`
	WarehouseConfigured bool                                  `json:"warehouse_configured"`
	LakehouseConfigured bool                                  `json:"lakehouse_configured"`
	Definitions         map[string]*registry.ValidationResult `json:"definitions"`
	Connectivity        map[string]probeResult                `json:"connectivity,omitempty"`
	Valid               bool                                  `json:"valid"`
}

var probeOrder = []string{"Model service", "Warehouse", "Lakehouse", "Snapshot store"}

func runValidate() error {
	a := mustApp()
	defer a.Close()

	report := &validationReport{
		ModelSideConfigured: a.cfg.RequireModelSide() == nil,
		WarehouseConfigured: a.cfg.RequireWarehouse() == nil,
		LakehouseConfigured: a.cfg.LakeConfigured(),
		Definitions:         map[string]*registry.ValidationResult{},
		Valid:               true,
	}

	reg, err := a.registry()
	if err != nil {
		return err
	}
	for _, name := range reg.Names() {
		def, ok := reg.GetDefinition(name)
		if !ok {
			continue
		}
		result := registry.ValidateDefinition(name, def)
		report.Definitions[name] = result
		if !result.Valid {
			report.Valid = false
		}
	}

	if !report.ModelSideConfigured && !report.WarehouseConfigured {
		report.Valid = false
	}

	if !validateOffline {
		runProbes(a, report)
	}

	if validateFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printValidationReport(report)
	}

	if !report.Valid {
		os.Exit(1)
	}
	return nil
}

func runProbes(a *app, report *validationReport) {
	report.Connectivity = map[string]probeResult{}

	probe := func(name string, configured bool, fn func(ctx context.Context) (string, error)) {
		if !configured {
			report.Connectivity[name] = probeResult{Status: "skipped", Detail: "not configured"}
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), validateTimeout)
		defer cancel()
		detail, err := fn(ctx)
		if err != nil {
			report.Connectivity[name] = probeResult{Status: "failed", Detail: err.Error()}
			report.Valid = false
			return
		}
		report.Connectivity[name] = probeResult{Status: "ok", Detail: detail}
	}

	probe("Model service", report.ModelSideConfigured, func(ctx context.Context) (string, error) {
		client, err := a.powerbi()
		if err != nil {
			return "", err
		}
		ws, err := client.GetWorkspace(ctx)
		if err != nil {
			return "", err
		}
		ds, err := client.ResolveDataset(ctx, a.cfg.DatasetName)
		if errs.NotFound(err) {
			return fmt.Sprintf("workspace %s, dataset %q will be created on first warehouse-to-model sync", ws.Name, a.cfg.DatasetName), nil
		}
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("workspace %s, dataset %s (%s)", ws.Name, ds.Name, ds.DatasetType()), nil
	})

	probe("Warehouse", report.WarehouseConfigured, func(ctx context.Context) (string, error) {
		pool, err := a.warehousePool(ctx)
		if err != nil {
			return "", err
		}
		if err := pool.Ping(ctx); err != nil {
			return "", err
		}
		return "schema " + a.cfg.WarehouseSchema, nil
	})

	probe("Lakehouse", report.LakehouseConfigured, func(ctx context.Context) (string, error) {
		store, err := lakehouse.NewMinioStore(a.cfg)
		if err != nil {
			return "", err
		}
		if err := store.Ping(ctx); err != nil {
			return "", err
		}
		return "bucket " + a.cfg.LakeBucket, nil
	})

	probe("Snapshot store", true, func(ctx context.Context) (string, error) {
		store, err := a.snapshots()
		if err != nil {
			return "", err
		}
		if _, err := store.ListHistory(ctx, 1); err != nil {
			return "", err
		}
		return a.cfg.SnapshotDBPath, nil
	})
}

func printValidationReport(report *validationReport) {
	sideLine := func(name string, configured bool) {
		if configured {
			fmt.Printf("  ✅ %s configured\n", name)
		} else {
			fmt.Printf("  ⚠️  %s not configured\n", name)
		}
	}

	fmt.Println("🔧 Configuration:")
	sideLine("Model service", report.ModelSideConfigured)
	sideLine("Warehouse", report.WarehouseConfigured)
	sideLine("Lakehouse", report.LakehouseConfigured)
	if !report.ModelSideConfigured && !report.WarehouseConfigured {
		color.Red("  ❌ Neither side is configured, nothing can be synced")
	}

	fmt.Printf("\n📚 Registry definitions (%d):\n", len(report.Definitions))
	if len(report.Definitions) == 0 {
		fmt.Println("  (none)")
	}
	for name, result := range report.Definitions {
		if result.Valid {
			color.Green("  ✅ %s", name)
		} else {
			color.Red("  ❌ %s", name)
		}
		for _, e := range result.Errors {
			fmt.Printf("      🔴 %s\n", e.Message)
		}
		for _, w := range result.Warnings {
			fmt.Printf("      🟡 %s\n", w.Message)
		}
	}

	if report.Connectivity != nil {
		fmt.Println("\n🔎 Connectivity:")
		for _, name := range probeOrder {
			r, ok := report.Connectivity[name]
			if !ok {
				continue
			}
			switch r.Status {
			case "ok":
				fmt.Printf("  ✅ %s: %s\n", name, r.Detail)
			case "skipped":
				fmt.Printf("  ⏭️  %s: %s\n", name, r.Detail)
			default:
				color.Red("  ❌ %s: %s", name, r.Detail)
			}
		}
	}

	if report.Valid {
		fmt.Println("\n🎉 Everything checks out")
	} else {
		fmt.Println("\n💡 Fix the problems above before syncing")
	}
}
