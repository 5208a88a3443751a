package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"revenue-balance/internal/adapters/cli"
	webAdapter "revenue-balance/internal/adapters/web"
	"revenue-balance/internal/app"
	"revenue-balance/internal/config"
	"revenue-balance/internal/db"
	"revenue-balance/internal/job"
	"revenue-balance/internal/logger"
	"revenue-balance/internal/notify"
	"revenue-balance/internal/store"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	_ "time/tzdata"
)

const usage = `Usage: balancer <command> [args]

Commands:
  run [--report file.xlsx|file.pdf]   classify all unbalanced orders now
  preview <sales-order-id>            classify one order without writing
  summary                             print the latest daily summary
  schema                              print the stage payload JSON Schema
  migrate [up|status]                 apply or list database migrations
  schedule                            run on the configured cron schedule
  serve                               schedule plus the HTTP ops API
  token <subject>                     mint an admin token for POST /api/runs`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, closeLog := logger.New(logger.Options{
		Service: cfg.JobName,
		Env:     cfg.Environment,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		File:    cfg.LogFile,
	})
	defer closeLog.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, os.Args[1:]); err != nil {
		stop()
		if errors.Is(err, cli.ErrUsage) {
			fmt.Fprintf(os.Stderr, "%v\n\n%s\n", err, usage)
			os.Exit(2)
		}
		log.Error("command failed", "command", os.Args[1], "err", err)
		_ = closeLog.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger, args []string) error {
	if args[0] == "token" {
		if len(args) < 2 {
			return fmt.Errorf("%w: balancer token <subject>", cli.ErrUsage)
		}
		tok, err := webAdapter.IssueToken(cfg.JWTSecret, args[1], webAdapter.RoleAdmin, 24*time.Hour)
		if err != nil {
			return err
		}
		fmt.Println(tok)
		return nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: int32(cfg.Workers + 4)})
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()

	if args[0] == "migrate" {
		return migrate(ctx, pool, log, args[1:])
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	records, err := store.NewPostgres(pool, store.Queries{
		UnbalancedOrders: cfg.UnbalancedOrdersQuery,
		BalanceAnalysis:  cfg.BalanceAnalysisQuery,
	}, cfg.MaxLinesPerOrder)
	if err != nil {
		return err
	}

	notifier, err := buildNotifier(cfg, log)
	if err != nil {
		return err
	}

	runner, err := job.NewRunner(job.Config{
		JobName:         cfg.JobName,
		DeploymentID:    cfg.DeploymentID(),
		Workers:         cfg.Workers,
		OrdersPerSecond: cfg.OrdersPerSecond,
		StageDir:        cfg.StageDir,
		KeepStageFiles:  cfg.KeepStageFiles,
		Location:        loc,
	}, records, records, notifier,
		job.WithLogger(log),
		job.WithMetrics(job.NewMetrics(prometheus.DefaultRegisterer)),
	)
	if err != nil {
		return err
	}

	svc := app.NewAppService(runner, records, cfg.ReportDir, log)

	switch args[0] {
	case "schedule":
		sched, err := job.NewScheduler(cfg.Schedule, loc, runner, log, svc.RecordScheduledRun)
		if err != nil {
			return err
		}
		return sched.Run(ctx)

	case "serve":
		return serve(ctx, cfg, log, runner, svc, loc)

	default:
		if !cli.Handles(args[0]) {
			return fmt.Errorf("%w: unknown command %s", cli.ErrUsage, args[0])
		}
		return cli.Run(ctx, svc, args, os.Stdout)
	}
}

func serve(ctx context.Context, cfg *config.Config, log *slog.Logger, runner *job.Runner, svc app.ApplicationService, loc *time.Location) error {
	sched, err := job.NewScheduler(cfg.Schedule, loc, runner, log, svc.RecordScheduledRun)
	if err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET is not set; POST /api/runs is disabled")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           webAdapter.NewHandler(svc, cfg.AllowedOrigins, cfg.JWTSecret, promhttp.Handler(), log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return sched.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func migrate(ctx context.Context, pool *pgxpool.Pool, log *slog.Logger, args []string) error {
	action := "up"
	if len(args) > 0 {
		action = args[0]
	}
	switch action {
	case "up":
		applied, err := db.Migrate(ctx, pool)
		if err != nil {
			return err
		}
		log.Info("migrations applied", "count", len(applied), "versions", applied)
		return nil
	case "status":
		statuses, err := db.Status(ctx, pool)
		if err != nil {
			return err
		}
		for _, s := range statuses {
			state := "pending"
			if s.Applied {
				state = "applied"
			}
			fmt.Printf("%05d  %-8s %s\n", s.Version, state, s.Path)
		}
		return nil
	default:
		return fmt.Errorf("%w: balancer migrate [up|status]", cli.ErrUsage)
	}
}

// buildNotifier fans escalations out to every configured channel. The log notifier is
// always included so failures stay visible without a mail relay.
func buildNotifier(cfg *config.Config, log *slog.Logger) (notify.Notifier, error) {
	channels := notify.Multi{notify.NewLogNotifier(log)}
	if cfg.SMTP.Host != "" {
		email, err := notify.NewEmailNotifier(notify.SMTPConfig{
			Host:      cfg.SMTP.Host,
			Port:      cfg.SMTP.Port,
			Username:  cfg.SMTP.Username,
			Password:  cfg.SMTP.Password,
			FromEmail: cfg.SMTP.FromEmail,
			FromName:  cfg.SMTP.FromName,
		}, cfg.NotifyTo...)
		if err != nil {
			return nil, fmt.Errorf("email notifier: %w", err)
		}
		channels = append(channels, email)
	}
	if cfg.WebhookURL != "" {
		channels = append(channels, notify.NewWebhookNotifier(cfg.WebhookURL))
	}
	return channels, nil
}
