package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"pitchcraft/internal/app"
	"pitchcraft/internal/auth"
	"pitchcraft/internal/config"
	"pitchcraft/internal/domain"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "pitchcraft",
	Short: "AI startup pitch generator",
	Long: `PitchCraft turns a startup idea into a structured pitch and a
one-page landing page, keeps the conversation per signed-in user and
exports saved pitches as PDF.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "pitchcraft.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.AddCommand(initCmd, serveCmd, generateCmd, exportCmd)
}

func buildApp(ctx context.Context, mutate func(*config.Config)) (*app.App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if mutate != nil {
		mutate(cfg)
	}
	return app.Build(ctx, cfg)
}

type tokenVerifier interface {
	Verify(ctx context.Context, token string) (domain.User, error)
}

// signedIn resolves --token into the process auth state and returns the user
// it settles on. An empty token keeps whoever is already signed in, which is
// nobody for a fresh run.
func signedIn(ctx context.Context, v tokenVerifier, state *auth.State, token string) (*domain.User, error) {
	updates, stop := state.Subscribe()
	defer stop()

	if token != "" {
		u, err := v.Verify(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("verifying token: %w", err)
		}
		state.Set(&u)
	}
	u := <-updates
	if u == nil {
		slog.DebugContext(ctx, "running anonymously")
		return nil, nil
	}
	slog.DebugContext(ctx, "signed in", "user_id", u.ID, "email", u.Email)
	return u, nil
}
