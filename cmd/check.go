package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"semasync/detect"
	"semasync/syncer"
)

var (
	checkDirection string
	checkMode      string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Exit non-zero when schema drift exists",
	Long: `Detect drift between the two sides without applying anything.

Intended as a CI gate: the command exits 0 when the target already
matches the source and 1 when a sync would change something.

Examples:
  semasync check                                  # Gate on model-to-warehouse drift
  semasync check --direction warehouse-to-model
  semasync check --mode metadata-only             # Gate on metadata drift only
`,
	Run: func(cmd *cobra.Command, args []string) {
		direction, err := syncer.ParseDirection(checkDirection)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(1)
		}
		mode, err := syncer.ParseMode(checkMode)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(1)
		}

		a := mustApp()
		defer a.Close()
		ctx := context.Background()

		o, err := a.orchestrator(ctx, direction, false)
		if err != nil {
			fmt.Printf("❌ Error preparing drift check: %v\n", err)
			os.Exit(1)
		}
		o.Progress = nil

		report, err := o.Preview(ctx)
		if err != nil {
			fmt.Printf("❌ Drift check failed: %v\n", err)
			os.Exit(1)
		}

		pending := syncer.FilterByMode(report.Changes, mode)
		if len(pending) == 0 {
			fmt.Printf("✅ No drift detected (%s), target is in sync\n", direction)
			return
		}

		added, modified, removed := 0, 0, 0
		for _, c := range pending {
			switch c.Type {
			case detect.Added:
				added++
			case detect.Modified:
				modified++
			case detect.Removed:
				removed++
			}
		}
		fmt.Printf("⚠️  Drift detected: %d change(s) pending (%d added, %d modified, %d removed)\n",
			len(pending), added, modified, removed)
		fmt.Printf("💡 Run 'semasync preview -d %s' for details\n", direction)
		os.Exit(1)
	},
}

func init() {
	checkCmd.Flags().StringVarP(&checkDirection, "direction", "d", "model-to-warehouse", "Sync direction to gate on (model-to-warehouse, warehouse-to-model)")
	checkCmd.Flags().StringVarP(&checkMode, "mode", "m", "full", "Change scope to gate on (full, incremental, metadata-only)")
}
