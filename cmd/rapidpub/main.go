package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/rapid-pub/backoffice/cmd/rapidpub/cli"
	"github.com/rapid-pub/backoffice/internal/app"
	"github.com/rapid-pub/backoffice/internal/platform/db"
	"github.com/rapid-pub/backoffice/jobs"
	"github.com/rapid-pub/backoffice/migrations"
)

const usage = `usage: rapidpub [command]

commands:
  serve                 run the HTTP API (default)
  migrate               apply pending database migrations
  queue stats           show email queue depth
  queue retries [n]     list emails waiting for a retry
  queue send-test <to>  enqueue a test email
`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	args := os.Args[1:]
	command := "serve"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	switch command {
	case "serve":
		err = serve(ctx, cfg, logger)
	case "migrate":
		err = db.Migrate(migrations.FS, ".", cfg.PGDSN, logger)
	case "queue":
		err = queue(ctx, cfg, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error(command+" failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	rt, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()
	return app.Serve(ctx, cfg, rt.Handler, logger)
}

func queue(ctx context.Context, cfg *app.Config, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	client := jobs.NewClient(redisOpts)
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		_ = client.Close()
		_ = inspector.Close()
	}()
	c := cli.NewQueueCLI(client, inspector, os.Stdout)

	switch args[0] {
	case "stats":
		return c.Stats()
	case "retries":
		size := 0
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("retries: %w", err)
			}
			size = n
		}
		return c.Retries(size)
	case "send-test":
		if len(args) < 2 {
			return fmt.Errorf("send-test: recipient required")
		}
		return c.SendTest(ctx, cfg.SMTPFrom, args[1])
	}
	return fmt.Errorf("unknown queue command %q", args[0])
}
