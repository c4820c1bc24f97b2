package cmd

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"semasync/config"
)

var configFormat string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Print the configuration after environment and .env resolution.

Secrets are masked; use this to verify which values the tool actually
picked up before debugging credentials elsewhere.

Examples:
  semasync config
  semasync config --format json
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("❌ Configuration error: %v\n", err)
			os.Exit(1)
		}

		switch configFormat {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(configView(cfg)); err != nil {
				fmt.Printf("❌ Error encoding configuration: %v\n", err)
				os.Exit(1)
			}
		case "text":
			printConfig(cfg)
		default:
			fmt.Printf("❌ Unknown format: %s (use text or json)\n", configFormat)
			os.Exit(1)
		}
	},
}

func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	return "********"
}

func maskURL(raw string) string {
	if raw == "" {
		return "(not set)"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "(set, unparseable)"
	}
	return u.Redacted()
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

func configView(cfg *config.Config) map[string]any {
	return map[string]any{
		"tenant_id":        orUnset(cfg.TenantID),
		"client_id":        orUnset(cfg.ClientID),
		"client_secret":    maskSecret(cfg.ClientSecret),
		"workspace_id":     orUnset(cfg.WorkspaceID),
		"dataset":          orUnset(cfg.DatasetName),
		"api_base_url":     cfg.APIBaseURL,
		"database_url":     maskURL(cfg.DatabaseURL),
		"warehouse_schema": cfg.WarehouseSchema,
		"lake_endpoint":    orUnset(cfg.LakeEndpoint),
		"lake_access_key":  orUnset(cfg.LakeAccessKey),
		"lake_secret_key":  maskSecret(cfg.LakeSecretKey),
		"lake_bucket":      orUnset(cfg.LakeBucket),
		"lake_prefix":      cfg.LakePrefix,
		"snapshot_db":      cfg.SnapshotDBPath,
		"registry_dir":     cfg.RegistryDir,
		"request_timeout":  cfg.RequestTimeout.String(),
		"ignore_hidden":    cfg.IgnoreHidden,
		"case_sensitive":   cfg.CaseSensitive,
		"log_level":        cfg.LogLevel,
		"log_mode":         cfg.LogMode,
	}
}

func printConfig(cfg *config.Config) {
	bold := color.New(color.Bold)

	bold.Println("🔧 Effective configuration")
	fmt.Println()

	fmt.Println("🏢 Model side")
	fmt.Printf("   %-20s %s\n", "Tenant ID:", orUnset(cfg.TenantID))
	fmt.Printf("   %-20s %s\n", "Client ID:", orUnset(cfg.ClientID))
	fmt.Printf("   %-20s %s\n", "Client secret:", maskSecret(cfg.ClientSecret))
	fmt.Printf("   %-20s %s\n", "Workspace ID:", orUnset(cfg.WorkspaceID))
	fmt.Printf("   %-20s %s\n", "Dataset:", orUnset(cfg.DatasetName))
	fmt.Printf("   %-20s %s\n", "API base URL:", cfg.APIBaseURL)
	fmt.Println()

	fmt.Println("🗄️  Warehouse")
	fmt.Printf("   %-20s %s\n", "Database URL:", maskURL(cfg.DatabaseURL))
	fmt.Printf("   %-20s %s\n", "Schema:", cfg.WarehouseSchema)
	fmt.Println()

	fmt.Println("🪣 Lakehouse")
	fmt.Printf("   %-20s %s\n", "Endpoint:", orUnset(cfg.LakeEndpoint))
	fmt.Printf("   %-20s %s\n", "Access key:", orUnset(cfg.LakeAccessKey))
	fmt.Printf("   %-20s %s\n", "Secret key:", maskSecret(cfg.LakeSecretKey))
	fmt.Printf("   %-20s %s\n", "Bucket:", orUnset(cfg.LakeBucket))
	fmt.Printf("   %-20s %s\n", "Prefix:", cfg.LakePrefix)
	fmt.Println()

	fmt.Println("💾 Local state")
	fmt.Printf("   %-20s %s\n", "Snapshot DB:", cfg.SnapshotDBPath)
	fmt.Printf("   %-20s %s\n", "Registry dir:", cfg.RegistryDir)
	fmt.Println()

	fmt.Println("⚙️  Engine")
	fmt.Printf("   %-20s %s\n", "Request timeout:", cfg.RequestTimeout)
	fmt.Printf("   %-20s %t\n", "Ignore hidden:", cfg.IgnoreHidden)
	fmt.Printf("   %-20s %t\n", "Case sensitive:", cfg.CaseSensitive)
	fmt.Printf("   %-20s %s (%s)\n", "Logging:", cfg.LogLevel, cfg.LogMode)
}

func init() {
	configCmd.Flags().StringVarP(&configFormat, "format", "f", "text", "Output format (text, json)")
}
