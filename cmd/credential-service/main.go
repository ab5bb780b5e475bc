package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/ctm-colima/credential-service/internal/config"
	"github.com/ctm-colima/credential-service/internal/database"
	"github.com/ctm-colima/credential-service/internal/di"
	"github.com/ctm-colima/credential-service/internal/observability"
	"github.com/ctm-colima/credential-service/internal/repository"
	"github.com/ctm-colima/credential-service/internal/tools/common"
	"github.com/ctm-colima/credential-service/internal/tools/folio"
	"github.com/ctm-colima/credential-service/internal/tools/loadgen"
	"github.com/ctm-colima/credential-service/internal/tools/seed"
	"github.com/ctm-colima/credential-service/internal/tools/ui"
)

type rootOptions struct {
	envFile string
	ci      bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "credential-service",
		Short:        "CTM union credential administration service",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newSeedCommand(opts),
		newPopulateFolioCommand(opts),
		newLoadgenCommand(opts),
	)
	return cmd
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return err
			}
			logger := observability.NewLogger(os.Stdout, cfg.LogLevel)
			ctx, stop := signalContext()
			defer stop()

			application, cleanup, err := di.InitializeApp(ctx, cfg, logger)
			if err != nil {
				logger.Error("startup failed", "error", err.Error())
				return err
			}
			defer cleanup()
			return application.Run(ctx)
		},
	}
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(opts, "migrate", func(context.Context, *config.Config, *gorm.DB) ([]string, error) {
				return []string{"schema up to date"}, nil
			})
		},
	}
}

func newSeedCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the admin from SEED_ADMIN_EMAIL/SEED_ADMIN_PASSWORD and default settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(opts, "seed", func(ctx context.Context, cfg *config.Config, db *gorm.DB) ([]string, error) {
				return seed.Run(ctx, repository.NewAdminRepository(db), repository.NewSettingsRepository(db), seed.Options{
					AdminEmail:    cfg.SeedAdminEmail,
					AdminPassword: cfg.SeedAdminPassword,
				})
			})
		},
	}
}

func newPopulateFolioCommand(opts *rootOptions) *cobra.Command {
	var csvPath string
	cmd := &cobra.Command{
		Use:   "populate-folio",
		Short: "Assign folios to existing members from the legacy CSV export",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(opts, "populate-folio", func(ctx context.Context, _ *config.Config, db *gorm.DB) ([]string, error) {
				f, err := os.Open(csvPath)
				if err != nil {
					return nil, fmt.Errorf("open csv: %w", err)
				}
				defer func() { _ = f.Close() }()
				rep, err := folio.Import(ctx, repository.NewMemberRepository(db), f)
				lines := rep.Lines()
				if rep.Errors > 0 && err == nil {
					err = fmt.Errorf("%d rows failed", rep.Errors)
				}
				return append(lines, rep.Problems...), err
			})
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "olddb.csv", "path to the legacy registry CSV")
	return cmd
}

func newLoadgenCommand(opts *rootOptions) *cobra.Command {
	cfg := loadgen.Config{}
	cmd := &cobra.Command{
		Use:   "loadgen",
		Short: "Generate synthetic traffic against a running instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			return runTask(ctx, opts, "loadgen "+cfg.Profile, func(ctx context.Context) ([]string, error) {
				res, err := loadgen.Run(ctx, cfg)
				return res.Lines(), err
			})
		},
	}
	cmd.Flags().StringVar(&cfg.BaseURL, "base-url", "http://localhost:8080", "API base URL")
	cmd.Flags().StringVar(&cfg.Profile, "profile", "mixed", "traffic profile: public, admin or mixed")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", 10*time.Second, "how long to generate traffic")
	cmd.Flags().IntVar(&cfg.RPS, "rps", 10, "requests per second")
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", 4, "concurrent workers")
	cmd.Flags().Int64Var(&cfg.Seed, "seed", 42, "random seed")
	cmd.Flags().StringVar(&cfg.Email, "email", os.Getenv("SEED_ADMIN_EMAIL"), "admin email for the admin profile")
	cmd.Flags().StringVar(&cfg.Password, "password", os.Getenv("SEED_ADMIN_PASSWORD"), "admin password for the admin profile")
	cmd.Flags().StringSliceVar(&cfg.MemberIDs, "member-id", nil, "member ids to validate publicly")
	return cmd
}

// withDatabase loads config, opens and migrates the database, then runs fn as a task.
func withDatabase(opts *rootOptions, title string, fn func(context.Context, *config.Config, *gorm.DB) ([]string, error)) error {
	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return err
	}
	db, err := database.Open(cfg.DatabaseURL, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()

	ctx, stop := signalContext()
	defer stop()
	return runTask(ctx, opts, title, func(ctx context.Context) ([]string, error) {
		if err := database.Migrate(ctx, db); err != nil {
			return nil, err
		}
		return fn(ctx, cfg, db)
	})
}

func runTask(ctx context.Context, opts *rootOptions, title string, task ui.Task) error {
	if opts.ci {
		details, err := task(ctx)
		common.PrintCIResult(err == nil, title, details, err)
		if err != nil {
			os.Exit(common.ExitFailure)
		}
		return nil
	}
	_, err := ui.Run(ctx, title, task)
	return err
}
