package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"semasync/snapshot"
)

var (
	historyLimit    int
	historyDetailed bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the sync history ledger",
	Long: `Show past sync runs with their direction, outcome and counts.

Examples:
  semasync history                   # Show recent sync runs
  semasync history --limit 10        # Show last 10 runs
  semasync history --detailed        # Show full record details
`,
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		defer a.Close()

		store, err := a.snapshots()
		if err != nil {
			fmt.Printf("❌ Error opening snapshot store: %v\n", err)
			os.Exit(1)
		}

		history, err := store.ListHistory(context.Background(), historyLimit)
		if err != nil {
			fmt.Printf("❌ Error reading sync history: %v\n", err)
			os.Exit(1)
		}

		if len(history) == 0 {
			fmt.Println("📋 No sync history found")
			return
		}

		if historyDetailed {
			showDetailedHistory(history)
		} else {
			showSummaryHistory(history)
		}
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "Limit number of records to show")
	historyCmd.Flags().BoolVarP(&historyDetailed, "detailed", "d", false, "Show detailed information")
}

func statusIndicator(status string) string {
	switch status {
	case "success":
		return color.New(color.FgGreen, color.Bold).Sprint("✅")
	case "failed":
		return color.New(color.FgRed, color.Bold).Sprint("❌")
	case "dry-run":
		return color.New(color.FgBlue, color.Bold).Sprint("🔎")
	default:
		return color.New(color.FgYellow, color.Bold).Sprint("⚠️")
	}
}

func showDetailedHistory(history []snapshot.SyncRecord) {
	cyan := color.New(color.FgCyan)
	red := color.New(color.FgRed, color.Bold)

	fmt.Println("📋 Sync History")
	fmt.Println(strings.Repeat("=", 60))

	for i, rec := range history {
		fmt.Printf("\n%d. %s %s\n", i+1, statusIndicator(rec.Status), rec.SyncID)
		cyan.Printf("   🔄 Direction: %s\n", rec.Direction)
		cyan.Printf("   📅 Started: %s\n", rec.StartedAt.Format("2006-01-02 15:04:05"))
		if rec.CompletedAt != nil {
			cyan.Printf("   ⏱️  Duration: %v\n", rec.CompletedAt.Sub(rec.StartedAt).Round(time.Millisecond))
		}
		cyan.Printf("   📊 Applied: %d, errors: %d\n", rec.ChangesApplied, rec.Errors)
		if rec.SnapshotID != nil {
			cyan.Printf("   📸 Snapshot: %s\n", *rec.SnapshotID)
		}
		if rec.ErrorMessage != nil && *rec.ErrorMessage != "" {
			red.Printf("   💥 Error: %s\n", *rec.ErrorMessage)
		}
	}
}

func showSummaryHistory(history []snapshot.SyncRecord) {
	fmt.Println("📋 Sync History")
	fmt.Printf("%-3s %-4s %-22s %-10s %-8s %-7s %s\n", "#", "", "Direction", "Status", "Applied", "Errors", "Started")
	fmt.Println(strings.Repeat("-", 76))

	successCount := 0
	failedCount := 0
	for i, rec := range history {
		fmt.Printf("%-3d %-4s %-22s %-10s %-8d %-7d %s\n",
			i+1,
			statusIndicator(rec.Status),
			rec.Direction,
			rec.Status,
			rec.ChangesApplied,
			rec.Errors,
			rec.StartedAt.Format("2006-01-02 15:04"),
		)
		switch rec.Status {
		case "success":
			successCount++
		case "failed":
			failedCount++
		}
	}

	fmt.Println(strings.Repeat("-", 76))
	fmt.Printf("📊 Summary: %d total, %d successful, %d failed\n",
		len(history), successCount, failedCount)
}
