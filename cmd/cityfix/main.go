package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"cityfix/internal/app"
	"cityfix/internal/platform/config"
	"cityfix/internal/platform/logger"
	"cityfix/internal/platform/postgres"
	"cityfix/internal/platform/tracing"
	"cityfix/migrations"
)

// main exposes one subcommand per service. Each service owns its HTTP routes
// and queues; standalone runs all three in one process.
func main() {
	cmd := &cli.Command{
		Name:  "cityfix",
		Usage: "city issue reporting: reports, users and the audit log",
		Commands: []*cli.Command{
			serviceCommand(config.ServiceReport, "serve /reports and publish report events", app.ReportModule),
			serviceCommand(config.ServiceUser, "serve /users and keep report counters", app.UserModule),
			serviceCommand(config.ServiceLog, "store audit events and serve /logs", app.LogModule),
			serviceCommand(config.ServiceStandalone, "run every service in one process",
				app.UserModule, app.ReportModule, app.LogModule),
			migrateCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func serviceCommand(service, usage string, builders ...func(*app.Infra) app.Module) *cli.Command {
	return &cli.Command{
		Name:  service,
		Usage: usage,
		Flags: config.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := config.FromCommand(c)
			if err := cfg.Validate(service); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			log := logger.New(cfg.Server.LogLevel, cfg.Server.LogFormat).With("service", service)

			shutdownTracing := tracing.Setup(service)
			defer func() {
				if err := shutdownTracing(context.WithoutCancel(ctx)); err != nil {
					log.Warn("tracer shutdown failed", "error", err)
				}
			}()

			infra, err := app.Open(ctx, cfg, service, log)
			if err != nil {
				return fmt.Errorf("start %s: %w", service, err)
			}
			defer func() {
				if err := infra.Close(); err != nil {
					log.Warn("close resources", "error", err)
				}
			}()

			modules := make([]app.Module, 0, len(builders))
			for _, build := range builders {
				modules = append(modules, build(infra))
			}
			log.InfoContext(ctx, "starting",
				"addr", cfg.Server.Addr,
				"broker", cfg.Broker.Kind,
				"postgres", infra.DB != nil,
				"redis", infra.Redis != nil,
			)
			return app.Run(ctx, infra, modules...)
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply database migrations and exit",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "database-url", Required: true, Sources: cli.EnvVars("CITYFIX_DATABASE_URL")},
			&cli.StringSliceFlag{Name: "set", Value: migrations.All, Usage: "migration sets to apply"},
			&cli.StringFlag{Name: "log-level", Value: "info", Sources: cli.EnvVars("CITYFIX_LOG_LEVEL")},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			log := logger.New(c.String("log-level"), "text")
			db, err := postgres.Open(ctx, c.String("database-url"))
			if err != nil {
				return err
			}
			defer db.Close()

			for _, set := range c.StringSlice("set") {
				if err := migrations.Up(ctx, db, set, log); err != nil {
					return err
				}
				v, err := migrations.Version(ctx, db, set)
				if err != nil {
					return err
				}
				log.InfoContext(ctx, "migrations applied", "set", set, "version", v)
			}
			return nil
		},
	}
}
