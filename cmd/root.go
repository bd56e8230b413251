package cmd

import (
	"github.com/abhisek/wordiz/internal/progress"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "wordiz",
	Short: "AI vocabulary quiz for English learners",
	Long:  "Wordiz — terminal vocabulary trainer for Chinese-speaking English learners: give it a word list, practice through three AI-generated question rounds, retry your mistakes and get a written report.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides WORDIZ_DB env var)")

	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then WORDIZ_DB env var, then the default XDG path.
func resolveDBPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, progress.EnsureDir(p)
	}
	return progress.DefaultDBPath()
}
