package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"pitchcraft/internal/domain"
	"pitchcraft/internal/usecase"
)

var (
	genIdea       string
	genTone       string
	genToken      string
	genSession    string
	genLandingOut string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a pitch and print it as markdown",
	Long: `Generates a pitch for --idea. Without --idea on a terminal the idea and
tone are asked for interactively. With --token the pitch is saved to the
signed-in user's gallery, and --session continues an existing pitch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		interactive := isatty.IsTerminal(os.Stdin.Fd())

		idea, tone, err := resolveIdea(genIdea, genTone, interactive)
		if err != nil {
			return err
		}

		a, err := buildApp(ctx, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		owner, err := signedIn(ctx, a.Verifier, a.Auth, genToken)
		if err != nil {
			return err
		}

		out, err := withSpinner(ctx, interactive, "Generating pitch", func(ctx context.Context) (usecase.PitchOutput, error) {
			return a.Pitches.Generate(ctx, usecase.GenerateInput{
				Owner:     owner,
				SessionID: genSession,
				Text:      idea,
				Tone:      tone,
			})
		})
		if err != nil {
			return err
		}
		return printPitch(cmd.OutOrStdout(), cmd.ErrOrStderr(), out, genLandingOut)
	},
}

func init() {
	generateCmd.Flags().StringVar(&genIdea, "idea", "", "startup idea or follow-up message")
	generateCmd.Flags().StringVar(&genTone, "tone", "", "pitch tone: Formal or Fun")
	generateCmd.Flags().StringVar(&genToken, "token", "", "access token; saves the pitch when set")
	generateCmd.Flags().StringVar(&genSession, "session", "", "continue this saved pitch (needs --token)")
	generateCmd.Flags().StringVar(&genLandingOut, "landing-out", "", "write the landing page HTML to this file")
}

// resolveIdea fills missing flags from interactive prompts.
func resolveIdea(idea, tone string, interactive bool) (string, string, error) {
	idea = strings.TrimSpace(idea)
	if idea == "" {
		if !interactive {
			return "", "", errors.New("--idea is required when stdin is not a terminal")
		}
		ideaPrompt := promptui.Prompt{
			Label: "Describe your startup idea",
			Validate: func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("please enter your startup idea")
				}
				return nil
			},
		}
		var err error
		idea, err = ideaPrompt.Run()
		if err != nil {
			return "", "", fmt.Errorf("idea: %w", err)
		}
	}
	if tone == "" && interactive {
		tonePrompt := promptui.Select{
			Label: "Select tone",
			Items: []string{string(domain.ToneFormal), string(domain.ToneFun)},
		}
		_, picked, err := tonePrompt.Run()
		if err != nil {
			return "", "", fmt.Errorf("tone selection: %w", err)
		}
		tone = picked
	}
	return idea, tone, nil
}

// withSpinner runs fn while a spinner ticks on stderr.
func withSpinner[T any](ctx context.Context, show bool, label string, fn func(context.Context) (T, error)) (T, error) {
	if !show {
		return fn(ctx)
	}
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(label),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(100 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				_ = bar.Add(1)
			}
		}
	}()
	v, err := fn(ctx)
	close(done)
	_ = bar.Finish()
	return v, err
}

func printPitch(stdout, stderr io.Writer, out usecase.PitchOutput, landingPath string) error {
	fmt.Fprintln(stdout, out.Answer.Text)
	if out.Failed {
		return errors.New("generation failed")
	}
	if out.Persisted {
		fmt.Fprintf(stderr, "Saved as %s\n", out.SessionID)
	}
	if landingPath == "" {
		return nil
	}
	if !out.Answer.HasLanding() {
		fmt.Fprintln(stderr, "No landing page was generated.")
		return nil
	}
	if err := os.WriteFile(landingPath, []byte(*out.Answer.LandingMarkup), 0o644); err != nil {
		return fmt.Errorf("writing landing page: %w", err)
	}
	fmt.Fprintf(stderr, "Landing page written to %s\n", landingPath)
	return nil
}
