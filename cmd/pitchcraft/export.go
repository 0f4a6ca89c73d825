package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"pitchcraft/internal/usecase"
)

var (
	exportToken string
	exportOut   string
	exportLink  bool
)

var exportCmd = &cobra.Command{
	Use:   "export <pitch-id>",
	Short: "Export a saved pitch as PDF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if exportToken == "" {
			return errors.New("--token is required")
		}
		a, err := buildApp(ctx, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		owner, err := signedIn(ctx, a.Verifier, a.Auth, exportToken)
		if err != nil {
			return err
		}

		out, err := withSpinner(ctx, isatty.IsTerminal(os.Stderr.Fd()), "Rendering PDF", func(ctx context.Context) (usecase.ExportOutput, error) {
			return a.Gallery.Export(ctx, *owner, args[0], exportLink)
		})
		if err != nil {
			return err
		}
		if out.URL != "" {
			fmt.Fprintln(cmd.OutOrStdout(), out.URL)
			return nil
		}

		path := exportOut
		if path == "" {
			path = out.Result.Filename
		}
		if err := os.WriteFile(path, out.Result.Data, 0o644); err != nil {
			return fmt.Errorf("writing pdf: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported to %s\n", path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportToken, "token", "", "access token of the pitch owner")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default PitchCraft_<id>.pdf)")
	exportCmd.Flags().BoolVar(&exportLink, "link", false, "upload to object storage and print a presigned link")
}
