package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage saved sessions",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List resumable sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cleanup, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		summaries, err := store.ListInProgress(cmd.Context())
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if len(summaries) == 0 {
			fmt.Println("No in-progress sessions.")
			return nil
		}

		fmt.Printf("%-36s  %-12s  %-8s  %-9s  %s\n", "ID", "Difficulty", "Words", "Answered", "Updated")
		for _, s := range summaries {
			fmt.Printf("%-36s  %-12s  %-8d  %4d/%-4d  %s\n",
				s.ID, s.Difficulty, s.WordCount, s.AnsweredCount, s.TotalQuestions,
				s.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a saved session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cleanup, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		deleted, err := store.Delete(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		if !deleted {
			fmt.Printf("Session %s was already gone.\n", args[0])
			return nil
		}
		fmt.Printf("Deleted %s.\n", args[0])
		return nil
	},
}

func init() {
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyDeleteCmd)
}
