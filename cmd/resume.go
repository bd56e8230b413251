package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume [session-id]",
	Short: "Continue an in-progress session",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		id := ""
		if len(args) == 1 {
			id = args[0]
		} else {
			id, err = pickInProgress(cmd)
			if err != nil {
				return err
			}
		}
		return a.Resume(cmd.Context(), id)
	},
}

// pickInProgress lists resumable sessions and returns the newest one.
func pickInProgress(cmd *cobra.Command) (string, error) {
	store, cleanup, err := openStore(cmd)
	if err != nil {
		return "", err
	}
	defer cleanup()

	summaries, err := store.ListInProgress(cmd.Context())
	if err != nil {
		return "", fmt.Errorf("list sessions: %w", err)
	}
	if len(summaries) == 0 {
		return "", fmt.Errorf("no in-progress sessions; start one with `wordiz play`")
	}

	fmt.Println("In-progress sessions (newest first):")
	for _, s := range summaries {
		fmt.Printf("  %s  %s  %d/%d answered  %s\n",
			s.ID, s.Difficulty, s.AnsweredCount, s.TotalQuestions,
			s.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Printf("Resuming %s.\n\n", summaries[0].ID)
	return summaries[0].ID, nil
}
