package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chefshef/courtsched/internal/auth"
	"github.com/chefshef/courtsched/internal/bookbot"
	"github.com/chefshef/courtsched/internal/config"
	"github.com/chefshef/courtsched/internal/cronjob"
	"github.com/chefshef/courtsched/internal/migrate"
	"github.com/chefshef/courtsched/internal/notify"
	"github.com/chefshef/courtsched/internal/retry"
	"github.com/chefshef/courtsched/internal/schedule"
	"github.com/chefshef/courtsched/internal/scheduler"
	"github.com/chefshef/courtsched/internal/store"
	"github.com/chefshef/courtsched/internal/trigger"
	"github.com/chefshef/courtsched/internal/web"
	"github.com/chefshef/courtsched/internal/webhook"
)

func newServerCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the booking scheduler + HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}

			logger := newLogger(cfg.LogJSON)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			st, err := openStore(ctx, cfg, migrateUp)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			if cfg.BookbotURL == "" {
				return fmt.Errorf("BOOKBOT_URL is required")
			}

			var notifier notify.Notifier = notify.Nop{}
			if cfg.NtfyTopic != "" {
				notifier = notify.NewNtfy(cfg.NtfyTopic, logger)
			}

			sched := schedule.NewManager(st, logger)
			ext := cronjob.New(cfg.CronjobAPIKey, cfg.BaseURL, cfg.WebhookSecret, cfg.Timezone)
			registry := trigger.NewRegistry(st, ext, logger)
			attempter := bookbot.New(cfg.BookbotURL, cfg.BookbotToken)
			runner := retry.NewRunner(attempter, sched, notifier, logger)
			tick := scheduler.New(runner, logger)
			gate := webhook.NewGate(registry, sched, runner, cfg.Location(), cfg.OpenDelayDays, cfg.Tolerance, logger)
			operator := auth.NewOperator(cfg.OperatorPasswordHash, cfg.CookieHashKey, cfg.CookieBlockKey)

			go func() { _ = tick.Run(ctx) }()

			srv := &web.Server{
				Sched:          sched,
				Registry:       registry,
				Runner:         runner,
				Ticker:         tick,
				Gate:           gate,
				Notifier:       notifier,
				Operator:       operator,
				Log:            logger,
				Loc:            cfg.Location(),
				OpenDelayDays:  cfg.OpenDelayDays,
				PreciseHorizon: cfg.PreciseHorizon,
				WebhookSecret:  cfg.WebhookSecret,
				StoreBackend:   cfg.StoreBackend,
				LogJSON:        cfg.LogJSON,
			}
			sched.Log(ctx, "Scheduler initialized", "info")
			return web.Start(ctx, cfg.ListenAddr, srv.Routes(), logger)
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup (postgres backend)")
	return cmd
}

func openStore(ctx context.Context, cfg config.Config, migrateUp bool) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		return store.OpenRedis(ctx, cfg.RedisURL)
	case config.BackendPostgres:
		pg, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if migrateUp {
			if err := migrate.Up(ctx, pg.Pool()); err != nil {
				_ = pg.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		return pg, nil
	default:
		return store.NewMemory(), nil
	}
}

func newLogger(jsonFormat bool) *slog.Logger {
	var h slog.Handler
	if jsonFormat {
		h = slog.NewJSONHandler(os.Stderr, nil)
	} else {
		h = slog.NewTextHandler(os.Stderr, nil)
	}
	return slog.New(h)
}
