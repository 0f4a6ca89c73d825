package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"pitchcraft/internal/app"
	"pitchcraft/internal/config"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load(os.Getenv("PITCHCRAFT_CONFIG"))
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	if v := os.Getenv("STATE_TABLE"); v != "" {
		cfg.Store.Driver = config.StoreDynamo
		cfg.Store.Table = v
	}
	if v := os.Getenv("PARAM_PREFIX"); v != "" {
		cfg.ParamPrefix = v
	}
	// Lambda has no Chrome layer by default; export stays opt-in there.
	if os.Getenv("PITCHCRAFT_EXPORT__ENABLED") == "" {
		cfg.Export.Enabled = false
	}
	cfg.Server.SecureCookie = true

	// ---- Dependencies ----
	a, err := app.Build(ctx, cfg)
	if err != nil {
		slog.Error("failed to build app", "err", err)
		os.Exit(1)
	}

	lambda.Start(a.Handler.Handle)
}
