package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/amana/internal/store"
	"github.com/user/amana/internal/types"
)

func init() {
	rootCmd.AddCommand(automationCmd)
	automationCmd.AddCommand(automationAddCmd, automationListCmd, automationRemoveCmd, automationEnableCmd, automationDisableCmd)

	automationAddCmd.Flags().String("name", "", "automation name (required)")
	automationAddCmd.Flags().String("message", "", "message fired into the conversation (required)")
	automationAddCmd.Flags().String("schedule", "", "cron schedule expression (required)")
	automationAddCmd.Flags().String("conversation", "", "target conversation ID, e.g. the Telegram chat ID (required)")
	_ = automationAddCmd.MarkFlagRequired("name")
	_ = automationAddCmd.MarkFlagRequired("message")
	_ = automationAddCmd.MarkFlagRequired("schedule")
	_ = automationAddCmd.MarkFlagRequired("conversation")
}

func automationStore() *store.AutomationStore {
	cfg := loadConfig()
	return store.NewAutomationStore(filepath.Join(cfg.DataDir, "automations.json"))
}

var automationCmd = &cobra.Command{
	Use:   "automation",
	Short: "Manage scheduled automations",
}

var automationAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new automation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		message, _ := cmd.Flags().GetString("message")
		schedule, _ := cmd.Flags().GetString("schedule")
		conversation, _ := cmd.Flags().GetString("conversation")

		s := automationStore()
		auto := &store.Automation{
			Name:           name,
			Message:        message,
			Schedule:       schedule,
			ConversationID: types.ConversationID(conversation),
			Enabled:        true,
		}
		if err := s.Add(auto); err != nil {
			return fmt.Errorf("add automation: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Automation %q added. Send SIGHUP to a running daemon to pick it up.\n", name)
		return nil
	},
}

var automationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all automations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := automationStore()
		automations, err := s.List()
		if err != nil {
			return fmt.Errorf("list automations: %w", err)
		}

		if len(automations) == 0 {
			fmt.Println("No automations configured.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSCHEDULE\tENABLED\tCONVERSATION\tMESSAGE")
		for _, a := range automations {
			fmt.Fprintf(w, "%s\t%s\t%v\t%s\t%s\n",
				a.Name,
				a.Schedule,
				a.Enabled,
				a.ConversationID,
				a.Message,
			)
		}
		return w.Flush()
	},
}

var automationRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove an automation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := automationStore()
		if err := s.Remove(args[0]); err != nil {
			return fmt.Errorf("remove automation: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Automation %q removed.\n", args[0])
		return nil
	},
}

var automationEnableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Enable an automation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := automationStore()
		if err := s.SetEnabled(args[0], true); err != nil {
			return fmt.Errorf("enable automation: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Automation %q enabled.\n", args[0])
		return nil
	},
}

var automationDisableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable an automation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := automationStore()
		if err := s.SetEnabled(args[0], false); err != nil {
			return fmt.Errorf("disable automation: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Automation %q disabled.\n", args[0])
		return nil
	},
}
