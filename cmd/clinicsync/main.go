package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinicsync/clinicsync/internal/config"
	"github.com/clinicsync/clinicsync/internal/domain/appointment"
	"github.com/clinicsync/clinicsync/internal/domain/identity"
	"github.com/clinicsync/clinicsync/internal/domain/patient"
	syncrun "github.com/clinicsync/clinicsync/internal/domain/sync"
	"github.com/clinicsync/clinicsync/internal/platform/alfadocs"
	"github.com/clinicsync/clinicsync/internal/platform/db"
	"github.com/clinicsync/clinicsync/internal/platform/ghl"
	"github.com/clinicsync/clinicsync/internal/platform/routing"
	"github.com/clinicsync/clinicsync/internal/platform/schedule"
	"github.com/clinicsync/clinicsync/internal/platform/status"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinicsync",
		Short: "Clinical records to CRM reconciliation sync",
	}

	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(pushCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

// app holds the wired sync pipeline.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	pool   *pgxpool.Pool
	runner *syncrun.Runner
}

func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	calendars, err := routing.LoadRuleset(cfg.CalendarsFile)
	if err != nil {
		return nil, err
	}
	operators, err := routing.LoadOperators(cfg.OperatorsFile)
	if err != nil {
		return nil, err
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, err
	}
	logger.Info().Msg("connected to database")

	source := alfadocs.NewClient(cfg.AlfaDocsBaseURL, cfg.AlfaDocsAPIKey,
		cfg.AlfaDocsPracticeID, cfg.AlfaDocsArchiveID, logger)
	tokens := ghl.NewTokenSource(cfg.GHLAuthURL, cfg.GHLLocationID, logger)
	crm := ghl.NewClient(cfg.GHLBaseURL, cfg.GHLLocationID, tokens, ghl.NewRateLimiter(), logger)

	patientRepo := patient.NewRepoPG(pool)
	patients := patient.NewService(patientRepo, source, logger)
	contacts := identity.NewResolver(patientRepo, crm, logger)
	appointments := appointment.NewService(appointment.Params{
		Repo:              appointment.NewRepoPG(pool),
		Patients:          patients,
		Upstream:          source,
		Identities:        contacts,
		CRM:               crm,
		Calendars:         calendars,
		Operators:         operators,
		BlockedOperatorID: cfg.BlockedOperatorID,
		StaleFlagAge:      cfg.StaleFlagAge,
		Logger:            logger,
	})

	runner := syncrun.NewRunner(syncrun.Params{
		Source:       source,
		Patients:     patients,
		Appointments: appointments,
		Contacts:     contacts,
		Logger:       logger,
	})

	return &app{cfg: cfg, logger: logger, pool: pool, runner: runner}, nil
}

func (a *app) close() { a.pool.Close() }

// runOnce wires the pipeline and executes one run function under a
// signal-cancelled context.
func runOnce(run func(ctx context.Context, a *app) (*syncrun.Stats, error)) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if _, err := run(ctx, a); err != nil {
		a.logger.Error().Err(err).Msg("run aborted")
		return err
	}
	return nil
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one full sync: ingest, sweep, push",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(func(ctx context.Context, a *app) (*syncrun.Stats, error) {
				return a.runner.Run(ctx)
			})
		},
	}
}

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Pull patients and appointments into the local store only",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(func(ctx context.Context, a *app) (*syncrun.Stats, error) {
				return a.runner.Ingest(ctx)
			})
		},
	}
}

func pushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Push pending contacts and events to the CRM only",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(func(ctx context.Context, a *app) (*syncrun.Stats, error) {
				return a.runner.Push(ctx)
			})
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled syncs with status endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	scheduler, err := schedule.New(ctx, a.cfg.SyncSchedule, a.runner.Run, a.logger)
	if err != nil {
		return fmt.Errorf("schedule %q: %w", a.cfg.SyncSchedule, err)
	}

	server := status.NewServer(a.pool, scheduler, a.logger)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(a.cfg.Port) }()

	scheduler.Start()
	go scheduler.Trigger() // first run immediately, then on schedule

	select {
	case <-ctx.Done():
		a.logger.Info().Msg("shutting down")
	case err := <-errCh:
		return err
	}

	scheduler.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				state := "pending"
				appliedAt := ""
				if s.Applied {
					state = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, state, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}
