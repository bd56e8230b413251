package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/wordiz/internal/analysis"
	"github.com/abhisek/wordiz/internal/app"
	"github.com/abhisek/wordiz/internal/generation"
	"github.com/abhisek/wordiz/internal/llm"
	"github.com/abhisek/wordiz/internal/progress"
	"github.com/abhisek/wordiz/internal/quiz"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Start a practice session over a word list",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		words, err := collectWords(cmd, args)
		if err != nil {
			return err
		}

		difficulty, err := parseDifficulty(cmd)
		if err != nil {
			return err
		}

		a, cleanup, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		return a.Play(ctx, words, difficulty)
	},
}

func init() {
	playCmd.Flags().StringP("words", "w", "", "Comma-separated word list")
	playCmd.Flags().StringP("file", "f", "", "File with one word per line")
	playCmd.Flags().StringP("difficulty", "d", string(quiz.DifficultyIntermediate), "beginner, intermediate or advanced")
	playCmd.Flags().String("generation-url", "", "Use a hosted generation API instead of calling the model directly")
	playCmd.Flags().String("progress-url", "", "Sync progress to a hosted history service instead of local SQLite")
	playCmd.Flags().String("token", "", "Bearer token for hosted services (or WORDIZ_API_TOKEN)")
	playCmd.Flags().Duration("poll-interval", 2*time.Second, "How often to refresh generation state")
}

func collectWords(cmd *cobra.Command, args []string) ([]string, error) {
	raw, _ := cmd.Flags().GetString("words")
	file, _ := cmd.Flags().GetString("file")

	var words []string
	switch {
	case raw != "":
		for _, w := range strings.Split(raw, ",") {
			if w = strings.TrimSpace(w); w != "" {
				words = append(words, w)
			}
		}
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read word file: %w", err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				words = append(words, line)
			}
		}
	default:
		words = args
	}

	if len(words) == 0 {
		return nil, fmt.Errorf("no words given: use --words, --file or positional arguments")
	}
	return words, nil
}

func parseDifficulty(cmd *cobra.Command) (quiz.Difficulty, error) {
	raw, _ := cmd.Flags().GetString("difficulty")
	d := quiz.Difficulty(strings.ToLower(raw))
	switch d {
	case quiz.DifficultyBeginner, quiz.DifficultyIntermediate, quiz.DifficultyAdvanced:
		return d, nil
	}
	return "", fmt.Errorf("unknown difficulty %q", raw)
}

func serviceToken(cmd *cobra.Command) string {
	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		token = os.Getenv("WORDIZ_API_TOKEN")
	}
	return token
}

// openStore resolves the progress backend: hosted when --progress-url
// is set, local SQLite otherwise.
func openStore(cmd *cobra.Command) (progress.Store, func(), error) {
	store, _, cleanup, err := openStoreWithLogger(cmd)
	return store, cleanup, err
}

func openStoreWithLogger(cmd *cobra.Command) (progress.Store, llm.RequestLogger, func(), error) {
	if u, _ := cmd.Flags().GetString("progress-url"); u != "" {
		return progress.NewRemote(u, serviceToken(cmd)), nil, func() {}, nil
	}

	dbPath, err := resolveDBPath(cmd)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("resolve DB path: %w", err)
	}
	local, err := progress.OpenLocal(dbPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open store: %w", err)
	}
	return local, local, func() { local.Close() }, nil
}

// buildApp assembles the store, provider and services for the
// interactive commands. The cleanup closes what was opened.
func buildApp(cmd *cobra.Command) (*app.App, func(), error) {
	ctx := cmd.Context()
	token := serviceToken(cmd)

	store, logger, cleanup, err := openStoreWithLogger(cmd)
	if err != nil {
		return nil, nil, err
	}

	cfg := llm.ConfigFromEnv()
	if err := cfg.Validate(); err != nil {
		if discovered, ok := llm.DiscoverConfig(); ok {
			cfg = discovered
		} else {
			cleanup()
			return nil, nil, fmt.Errorf("no LLM provider configured: %w", err)
		}
	}
	provider, err := llm.NewProvider(ctx, cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("initialize LLM provider: %w", err)
	}

	var svc generation.Service
	if u, _ := cmd.Flags().GetString("generation-url"); u != "" {
		svc = generation.NewRemoteService(u, token)
	} else {
		svc = generation.NewLLMService(provider, generation.DefaultConfig())
	}

	interval, _ := cmd.Flags().GetDuration("poll-interval")
	a := app.New(app.Options{
		Store:        store,
		Service:      svc,
		Analyzer:     analysis.New(provider, analysis.DefaultConfig()),
		PollInterval: interval,
		In:           os.Stdin,
		Out:          os.Stdout,
	})
	return a, cleanup, nil
}
