package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage model snapshots",
	Long: `Create, list, restore and delete snapshots of extracted models.

Every live sync takes a snapshot of the target automatically; these
subcommands manage snapshots by hand.

Examples:
  semasync snapshot create --source warehouse --description "before release"
  semasync snapshot list
  semasync snapshot restore 2f7c... --output model.json
  semasync snapshot delete 2f7c...
  semasync snapshot cleanup --keep 10
`,
}

var (
	snapCreateSource      string
	snapCreateDescription string
	snapListModel         string
	snapListLimit         int
	snapRestoreOutput     string
	snapRestoreLatest     bool
	snapRestoreModel      string
	snapCleanupKeep       int
)

var snapshotCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Extract one side and store it as a snapshot",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		defer a.Close()
		ctx := context.Background()

		extractor, err := a.extractorFor(ctx, snapCreateSource)
		if err != nil {
			fmt.Printf("❌ Error preparing extraction: %v\n", err)
			os.Exit(1)
		}
		m, err := extractor.Extract(ctx)
		if err != nil {
			fmt.Printf("❌ Extraction failed: %v\n", err)
			os.Exit(1)
		}

		store, err := a.snapshots()
		if err != nil {
			fmt.Printf("❌ Error opening snapshot store: %v\n", err)
			os.Exit(1)
		}
		id, err := store.CreateSnapshot(ctx, m, snapCreateDescription)
		if err != nil {
			fmt.Printf("❌ Error creating snapshot: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("📸 Snapshot created: %s (%d tables, %d columns)\n", id, m.TableCount(), m.ColumnCount())
	},
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored snapshots, newest first",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		defer a.Close()

		store, err := a.snapshots()
		if err != nil {
			fmt.Printf("❌ Error opening snapshot store: %v\n", err)
			os.Exit(1)
		}
		infos, err := store.ListSnapshots(context.Background(), snapListModel, snapListLimit)
		if err != nil {
			fmt.Printf("❌ Error listing snapshots: %v\n", err)
			os.Exit(1)
		}
		if len(infos) == 0 {
			fmt.Println("📋 No snapshots found")
			return
		}

		fmt.Println("📸 Snapshots")
		fmt.Printf("%-38s %-20s %-10s %-8s %-8s %s\n", "ID", "Model", "Source", "Tables", "Columns", "Created")
		fmt.Println(strings.Repeat("-", 100))
		for _, info := range infos {
			fmt.Printf("%-38s %-20s %-10s %-8d %-8d %s\n",
				info.SnapshotID,
				info.ModelName,
				info.Source,
				info.TablesCount,
				info.ColumnsCount,
				info.CreatedAt.Format("2006-01-02 15:04"),
			)
			if info.Description != "" {
				fmt.Printf("    💬 %s\n", info.Description)
			}
		}
	},
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore [snapshot-id]",
	Short: "Materialize a snapshot back into a model file",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 && !snapRestoreLatest {
			fmt.Println("❌ Provide a snapshot id or use --latest")
			os.Exit(1)
		}

		a := mustApp()
		defer a.Close()
		ctx := context.Background()

		store, err := a.snapshots()
		if err != nil {
			fmt.Printf("❌ Error opening snapshot store: %v\n", err)
			os.Exit(1)
		}

		var id string
		if snapRestoreLatest {
			info, err := store.GetLatest(ctx, snapRestoreModel)
			if err != nil {
				fmt.Printf("❌ No snapshot to restore: %v\n", err)
				os.Exit(1)
			}
			id = info.SnapshotID
			fmt.Printf("📸 Latest snapshot: %s (%s, %s)\n", id, info.ModelName, info.CreatedAt.Format("2006-01-02 15:04"))
		} else {
			id = args[0]
		}

		m, err := store.Restore(ctx, id)
		if err != nil {
			fmt.Printf("❌ Restore failed: %v\n", err)
			os.Exit(1)
		}

		out := snapRestoreOutput
		if out == "" {
			out = id + ".json"
		}
		data, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			fmt.Printf("❌ Error encoding model: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(out, append(data, '\n'), 0644); err != nil {
			fmt.Printf("❌ Error writing %s: %v\n", out, err)
			os.Exit(1)
		}
		fmt.Printf("✅ Restored %s (%d tables) to %s\n", m.Name, m.TableCount(), out)
	},
}

var snapshotDeleteCmd = &cobra.Command{
	Use:   "delete <snapshot-id>",
	Short: "Delete a snapshot",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		defer a.Close()

		store, err := a.snapshots()
		if err != nil {
			fmt.Printf("❌ Error opening snapshot store: %v\n", err)
			os.Exit(1)
		}
		deleted, err := store.Delete(context.Background(), args[0])
		if err != nil {
			fmt.Printf("❌ Error deleting snapshot: %v\n", err)
			os.Exit(1)
		}
		if !deleted {
			fmt.Printf("⚠️  Snapshot %s not found\n", args[0])
			os.Exit(1)
		}
		fmt.Printf("🗑️  Snapshot %s deleted\n", args[0])
	},
}

var snapshotCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete all but the newest snapshots",
	Run: func(cmd *cobra.Command, args []string) {
		if snapCleanupKeep < 1 {
			fmt.Println("❌ --keep must be at least 1")
			os.Exit(1)
		}

		a := mustApp()
		defer a.Close()

		store, err := a.snapshots()
		if err != nil {
			fmt.Printf("❌ Error opening snapshot store: %v\n", err)
			os.Exit(1)
		}
		deleted, err := store.CleanupKeepLast(context.Background(), snapCleanupKeep)
		if err != nil {
			fmt.Printf("❌ Cleanup failed: %v\n", err)
			os.Exit(1)
		}
		if deleted == 0 {
			fmt.Printf("✅ Nothing to clean up, %d or fewer snapshots stored\n", snapCleanupKeep)
			return
		}
		fmt.Printf("🗑️  Deleted %d snapshot(s), kept the newest %d\n", deleted, snapCleanupKeep)
	},
}

func init() {
	snapshotCreateCmd.Flags().StringVarP(&snapCreateSource, "source", "s", "model", "Side to snapshot (model, warehouse, lakehouse)")
	snapshotCreateCmd.Flags().StringVarP(&snapCreateDescription, "description", "m", "", "Snapshot description")
	snapshotListCmd.Flags().StringVarP(&snapListModel, "model", "m", "", "Filter by model name")
	snapshotListCmd.Flags().IntVarP(&snapListLimit, "limit", "l", 20, "Limit number of snapshots to show")
	snapshotRestoreCmd.Flags().StringVarP(&snapRestoreOutput, "output", "o", "", "Output file (defaults to <snapshot-id>.json)")
	snapshotRestoreCmd.Flags().BoolVar(&snapRestoreLatest, "latest", false, "Restore the newest snapshot instead of a specific id")
	snapshotRestoreCmd.Flags().StringVarP(&snapRestoreModel, "model", "m", "", "With --latest, restrict to snapshots of this model")
	snapshotCleanupCmd.Flags().IntVarP(&snapCleanupKeep, "keep", "k", 10, "Number of newest snapshots to keep")

	snapshotCmd.AddCommand(snapshotCreateCmd)
	snapshotCmd.AddCommand(snapshotListCmd)
	snapshotCmd.AddCommand(snapshotRestoreCmd)
	snapshotCmd.AddCommand(snapshotDeleteCmd)
	snapshotCmd.AddCommand(snapshotCleanupCmd)
}
