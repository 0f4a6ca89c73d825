package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pitchcraft/internal/config"
	"pitchcraft/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web app, API and live dashboard channel",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx, func(c *config.Config) {
			if serveAddr != "" {
				c.Server.Addr = serveAddr
			}
		})
		if err != nil {
			return err
		}
		defer a.Close()

		lv, err := server.NewLive(a.Pitches, a.Gallery, a.Store, a.Verifier)
		if err != nil {
			return fmt.Errorf("creating live channel: %w", err)
		}
		srv := server.New(a.Config.Server, a.Handler, lv)

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Error("failed to shut down server", "err", err)
			}
		}()

		return srv.Start()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}
