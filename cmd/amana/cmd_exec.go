package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/amana/internal/dispatch"
	"github.com/user/amana/internal/types"
	"github.com/user/amana/internal/workspace"
)

func init() {
	rootCmd.AddCommand(execCmd)
	execCmd.Flags().String("data", "{}", "command payload as JSON")
}

var execCmd = &cobra.Command{
	Use:   "exec <command>",
	Short: "Run a command directly against the Google backends",
	Long: "Executes one command through the dispatcher, bypassing the dialog engine.\n" +
		"Example: amana exec SHOW_AGENDA --data '{\"max\": 5}'",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		raw, _ := cmd.Flags().GetString("data")
		var data map[string]any
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return fmt.Errorf("parse --data: %w", err)
		}

		tz, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		ws, err := workspace.New(ctx, workspace.Credentials{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RefreshToken: cfg.Google.RefreshToken,
		})
		if err != nil {
			return fmt.Errorf("create workspace client: %w", err)
		}
		dispatcher := dispatch.New(ws, tz, cfg.Google.DriveFolderID, cfg.Google.SpreadsheetID)

		result, err := dispatcher.Execute(ctx, types.Command(args[0]), data)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}
