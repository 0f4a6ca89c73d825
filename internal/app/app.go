// Package app builds the object graph shared by the Lambda entry point, the
// local server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/supabase-community/supabase-go"

	"pitchcraft/handler"
	"pitchcraft/internal/auth"
	"pitchcraft/internal/config"
	"pitchcraft/internal/export"
	"pitchcraft/internal/integrations/gemini"
	"pitchcraft/internal/integrations/openai"
	"pitchcraft/internal/integrations/openrouter"
	"pitchcraft/internal/integrations/paramstore"
	"pitchcraft/internal/live"
	"pitchcraft/internal/repository"
	"pitchcraft/internal/usecase"
)

// NamedGenerator is a generator that can say which backend it is.
type NamedGenerator interface {
	usecase.Generator
	Name() string
}

// App holds the wired dependencies. Close releases the ones that own
// connections.
type App struct {
	Config    *config.Config
	Store     *live.Store
	Generator NamedGenerator
	Pitches   *usecase.PitchService
	Gallery   *usecase.GalleryService
	Verifier  *auth.Verifier
	// Auth is the process-wide signed-in user for CLI runs.
	Auth *auth.State
	// Accounts is nil when no Supabase project is configured.
	Accounts *auth.Provider
	Handler  *handler.Handler

	closers []func() error
}

// Build wires every dependency described by cfg. AWS credentials are only
// loaded when a component needs DynamoDB or the parameter store.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("app: invalid config: %w", err)
	}
	a := &App{Config: cfg, Auth: auth.NewState()}

	// ---- AWS ----
	var (
		awsCfg aws.Config
		tokens paramstore.TokenGetter
	)
	if needsAWS(cfg) {
		var err error
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("app: load AWS config: %w", err)
		}
		if needsParamStore(cfg) {
			ps, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
			if err != nil {
				return nil, fmt.Errorf("app: create parameter store client: %w", err)
			}
			tokens = ps
		}
	}

	// ---- Supabase ----
	var sb *supabase.Client
	if cfg.Supabase.Configured() {
		var err error
		sb, err = supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.Key, nil)
		if err != nil {
			return nil, fmt.Errorf("app: create supabase client: %w", err)
		}
		a.Accounts, err = auth.NewProvider(sb.Auth)
		if err != nil {
			return nil, fmt.Errorf("app: create auth provider: %w", err)
		}
	}

	// ---- Store ----
	inner, err := newStore(cfg, awsCfg, sb)
	if err != nil {
		return nil, err
	}
	var notifier live.Notifier = live.NewLocalNotifier()
	if cfg.Redis.URL != "" {
		rn, err := live.NewRedisNotifier(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("app: create redis notifier: %w", err)
		}
		a.closers = append(a.closers, rn.Close)
		notifier = rn
	}
	a.Store = live.New(inner, notifier)

	// ---- Generator ----
	a.Generator, err = NewGenerator(cfg, tokens)
	if err != nil {
		a.Close()
		return nil, err
	}

	// ---- Identity ----
	verifierOpts := []auth.VerifierOption{auth.WithAudience(cfg.Auth.Audience)}
	if cfg.Auth.JWTSecret != "" {
		verifierOpts = append(verifierOpts, auth.WithSecret(cfg.Auth.JWTSecret))
	}
	a.Verifier, err = auth.NewVerifier(tokens, cfg.ParamPrefix, verifierOpts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("app: create token verifier: %w", err)
	}

	// ---- Use cases ----
	a.Pitches, err = usecase.NewPitchService(a.Generator, a.Store,
		usecase.WithMaxInput(cfg.Limits.MaxInput),
		usecase.WithHistoryBudget(cfg.Limits.HistoryBudget),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("app: create pitch service: %w", err)
	}

	galleryOpts, err := exportOptions(cfg.Export)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Gallery, err = usecase.NewGalleryService(a.Store, galleryOpts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("app: create gallery service: %w", err)
	}

	// ---- Handler ----
	handlerOpts := []handler.Option{handler.WithSecureCookie(cfg.Server.SecureCookie)}
	if a.Accounts != nil {
		handlerOpts = append(handlerOpts, handler.WithAuthenticator(a.Accounts))
	}
	a.Handler, err = handler.NewHandler(a.Pitches, a.Gallery, a.Verifier, handlerOpts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("app: create handler: %w", err)
	}

	slog.Info("app ready",
		"store", cfg.Store.Driver,
		"generator", a.Generator.Name(),
		"redis", cfg.Redis.URL != "",
		"accounts", a.Accounts != nil,
	)
	return a, nil
}

// Close releases connections. It is safe to call more than once.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func needsParamStore(cfg *config.Config) bool {
	return cfg.Generator.APIKey == "" || cfg.Auth.JWTSecret == ""
}

func needsAWS(cfg *config.Config) bool {
	return cfg.Store.Driver == config.StoreDynamo || needsParamStore(cfg)
}

func newStore(cfg *config.Config, awsCfg aws.Config, sb *supabase.Client) (repository.Store, error) {
	switch cfg.Store.Driver {
	case config.StoreDynamo:
		s, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.Store.Table)
		if err != nil {
			return nil, fmt.Errorf("app: create dynamo store: %w", err)
		}
		return s, nil
	case config.StoreSupabase:
		s, err := repository.NewSupabaseStore(sb, cfg.Store.Table)
		if err != nil {
			return nil, fmt.Errorf("app: create supabase store: %w", err)
		}
		return s, nil
	default:
		return repository.NewMemoryStore(), nil
	}
}

// NewGenerator returns the configured model backend.
func NewGenerator(cfg *config.Config, tokens paramstore.TokenGetter) (NamedGenerator, error) {
	g := cfg.Generator
	switch g.Provider {
	case config.GeneratorOpenAI:
		opts := []openai.Option{openai.WithModel(g.Model)}
		if g.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(g.BaseURL))
		}
		if g.APIKey != "" {
			opts = append(opts, openai.WithAPIKey(g.APIKey))
		}
		if g.Temperature > 0 {
			opts = append(opts, openai.WithTemperature(g.Temperature))
		}
		c, err := openai.NewClient(tokens, cfg.ParamPrefix, opts...)
		if err != nil {
			return nil, fmt.Errorf("app: create openai client: %w", err)
		}
		return c, nil
	case config.GeneratorOpenRouter:
		c, err := openrouter.NewClient(tokens, cfg.ParamPrefix,
			openrouter.WithModel(g.Model),
			openrouter.WithBaseURL(g.BaseURL),
			openrouter.WithAPIKey(g.APIKey),
		)
		if err != nil {
			return nil, fmt.Errorf("app: create openrouter client: %w", err)
		}
		return c, nil
	default:
		opts := []gemini.Option{gemini.WithModel(g.Model)}
		if g.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(g.BaseURL))
		}
		if g.APIKey != "" {
			opts = append(opts, gemini.WithAPIKey(g.APIKey))
		}
		c, err := gemini.NewClient(tokens, cfg.ParamPrefix, opts...)
		if err != nil {
			return nil, fmt.Errorf("app: create gemini client: %w", err)
		}
		return c, nil
	}
}

// exportOptions sets up PDF export. A host without Chrome keeps serving
// everything but export.
func exportOptions(cfg config.ExportConfig) ([]usecase.GalleryOption, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	var chromeOpts []export.ChromeOption
	if cfg.Timeout > 0 {
		chromeOpts = append(chromeOpts, export.WithTimeout(cfg.Timeout))
	}
	if cfg.ChromePath != "" {
		chromeOpts = append(chromeOpts, export.WithExecPath(cfg.ChromePath))
	}
	browser, err := export.NewChromeBrowser(chromeOpts...)
	if errors.Is(err, export.ErrPDFDependencyMissing) {
		slog.Warn("pdf export disabled", "err", err)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("app: create browser: %w", err)
	}
	exporter, err := export.NewExporter(browser)
	if err != nil {
		return nil, fmt.Errorf("app: create exporter: %w", err)
	}
	opts := []usecase.GalleryOption{usecase.WithExporter(exporter)}

	if m := cfg.Minio; m.Endpoint != "" {
		up, err := export.NewMinioUploader(export.MinioConfig{
			Endpoint:  m.Endpoint,
			AccessKey: m.AccessKey,
			SecretKey: m.SecretKey,
			Bucket:    m.Bucket,
			Region:    m.Region,
			UseSSL:    m.UseSSL,
			LinkTTL:   m.LinkTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("app: create minio uploader: %w", err)
		}
		opts = append(opts, usecase.WithUploader(up))
	}
	return opts, nil
}
