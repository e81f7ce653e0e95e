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
	rootCmd.AddCommand(conversationCmd)
	conversationCmd.AddCommand(conversationListCmd, conversationShowCmd, conversationResetCmd)
}

func contextStore() *store.ContextStore {
	cfg := loadConfig()
	return store.New(filepath.Join(cfg.DataDir, "contexts"))
}

var conversationCmd = &cobra.Command{
	Use:   "conversation",
	Short: "Inspect conversation state",
}

var conversationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all conversations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := contextStore()
		conversations, err := s.List()
		if err != nil {
			return fmt.Errorf("list conversations: %w", err)
		}

		if len(conversations) == 0 {
			fmt.Println("No conversations yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CONVERSATION\tINTENT\tSTAGE\tHISTORY\tLAST UPDATE")
		for _, c := range conversations {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				c.ID,
				c.Intent,
				c.Stage,
				len(c.History),
				c.LastUpdate.Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}

var conversationShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one conversation's state and history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := contextStore()
		id := types.ConversationID(args[0])

		release := s.Acquire(id)
		conv, err := s.Load(id)
		release()
		if err != nil {
			return fmt.Errorf("load conversation: %w", err)
		}

		fmt.Fprintf(os.Stdout, "Conversation: %s\n", conv.ID)
		fmt.Fprintf(os.Stdout, "Intent:       %s\n", conv.Intent)
		fmt.Fprintf(os.Stdout, "Stage:        %s\n", conv.Stage)
		if len(conv.Fields) > 0 {
			fmt.Fprintln(os.Stdout, "Fields:")
			for k, v := range conv.Fields {
				fmt.Fprintf(os.Stdout, "  %s = %v\n", k, v)
			}
		}
		if len(conv.History) > 0 {
			fmt.Fprintln(os.Stdout, "History:")
			for _, h := range conv.History {
				fmt.Fprintf(os.Stdout, "  [%s] %s\n", h.Role, h.Text)
			}
		}
		return nil
	},
}

var conversationResetCmd = &cobra.Command{
	Use:   "reset <id>",
	Short: "Reset a conversation to idle, keeping its history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := contextStore()
		id := types.ConversationID(args[0])

		release := s.Acquire(id)
		err := s.EndTask(id)
		release()
		if err != nil {
			return fmt.Errorf("reset conversation: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Conversation %s reset to idle.\n", id)
		return nil
	},
}
