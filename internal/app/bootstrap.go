package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/rapid-pub/backoffice/internal/clients"
	"github.com/rapid-pub/backoffice/internal/export"
	"github.com/rapid-pub/backoffice/internal/extraction"
	"github.com/rapid-pub/backoffice/internal/insights"
	"github.com/rapid-pub/backoffice/internal/mailer"
	"github.com/rapid-pub/backoffice/internal/numbering"
	"github.com/rapid-pub/backoffice/internal/observability"
	"github.com/rapid-pub/backoffice/internal/platform/cache"
	"github.com/rapid-pub/backoffice/internal/platform/db"
	"github.com/rapid-pub/backoffice/internal/sales"
	"github.com/rapid-pub/backoffice/internal/settings"
	"github.com/rapid-pub/backoffice/jobs"
	"github.com/rapid-pub/backoffice/migrations"
	"github.com/rapid-pub/backoffice/report"
	"github.com/rapid-pub/backoffice/web"
)

const (
	numberingLockTTL  = 5 * time.Second
	numberingLockWait = 3 * time.Second
	statsNamespace    = "rapidpub:stats"
)

// Runtime is the wired application graph.
type Runtime struct {
	Handler http.Handler
	Metrics *observability.Metrics

	pool    *pgxpool.Pool
	redis   *redis.Client
	closers []func() error
	logger  *slog.Logger
}

// Build connects the backing services and wires every module. Redis is
// optional: without it stats are not cached, numbering is not locked and
// emails are simulated.
func Build(ctx context.Context, cfg *Config, logger *slog.Logger) (*Runtime, error) {
	rt := &Runtime{logger: logger, Metrics: observability.NewMetrics()}

	if cfg.DBAutoMigrate {
		if err := db.Migrate(migrations.FS, ".", cfg.PGDSN, logger); err != nil {
			return nil, err
		}
	}
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns, ApplicationName: "rapidpub"})
	if err != nil {
		return nil, err
	}
	rt.pool = pool

	if cfg.RedisAddr != "" {
		client, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, running without cache and queue", slog.Any("error", err))
		} else {
			rt.redis = client
			rt.closers = append(rt.closers, client.Close)
		}
	}

	handler, err := rt.wire(cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Handler = handler
	return rt, nil
}

func (rt *Runtime) wire(cfg *Config) (http.Handler, error) {
	logger := rt.logger

	var locker numbering.Locker
	if rt.redis != nil {
		locker = cache.NewLocker(rt.redis, numberingLockTTL, numberingLockWait)
	}
	numbers, err := numbering.NewService(numbering.Config{
		Strategy:    numbering.Strategy(cfg.NumberingStrategy),
		MaxAttempts: cfg.NumberingMaxAttempts,
		Location:    cfg.Location(),
	}, locker, logger)
	if err != nil {
		return nil, err
	}

	statsCache := cache.NewJSONCache(rt.redis, statsNamespace, cfg.StatsCacheTTL)

	settingsService := settings.NewService(settings.NewRepository(rt.pool), logger)
	clientsService := clients.NewService(clients.NewRepository(rt.pool), logger)

	salesService := sales.NewService(sales.NewRepository(rt.pool), numbers, logger)
	salesService.SetTransitioner(sales.NewTransitioner(cfg.SalesStrictTransitions))
	salesService.SetSpawnGuard(cfg.SalesSpawnGuard)
	salesService.SetClientResolver(clientsService)
	salesService.SetTaxRates(settingsService)
	salesService.SetRecorder(rt.Metrics)
	salesService.SetInvalidator(statsCache)

	salesHandler := sales.NewHandler(logger, salesService)
	salesHandler.SetInvoiceExporter(export.NewInvoiceExporter(salesService, logger))

	var assisted extraction.Extractor
	if cfg.AssistedExtraction() {
		client, err := extraction.NewAssisted(extraction.AssistedConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("assisted extraction: %w", err)
		}
		assisted = client
	} else {
		logger.Info("no OPENAI_API_KEY, quote extraction uses the heuristic only")
	}
	extractionService := extraction.NewService(assisted, cfg.OpenAITimeout, logger)
	extractionService.SetRecorder(rt.Metrics)

	insightsService := insights.NewService(insights.NewRepository(rt.pool), statsCache, logger)
	insightsService.SetLocation(cfg.Location())
	insightsService.SetOverdueMarker(salesService)

	var queue mailer.Queue
	var inspector jobs.QueueInspector
	if rt.redis != nil {
		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		jobClient := jobs.NewClient(redisOpts)
		asynqInspector := asynq.NewInspector(redisOpts)
		rt.closers = append(rt.closers, jobClient.Close, asynqInspector.Close)
		queue = jobClient
		inspector = asynqInspector
	}
	mailerService := mailer.NewService(queue, salesService, settingsService, cfg.SMTPFrom, logger)

	docs, err := report.NewDocuments(salesService, settingsService, web.Templates, logger)
	if err != nil {
		return nil, err
	}
	docs.SetOrders(salesService)
	var pinger report.Pinger
	if cfg.GotenbergURL != "" {
		gotenberg := report.NewClient(cfg.GotenbergURL, 0)
		docs.SetRenderer(gotenberg)
		pinger = gotenberg
	} else {
		logger.Info("no GOTENBERG_URL, documents are served as HTML")
	}

	return NewRouter(RouterParams{
		Logger:            logger,
		Config:            cfg,
		Metrics:           rt.Metrics,
		SalesHandler:      salesHandler,
		ClientsHandler:    clients.NewHandler(logger, clientsService),
		ExtractionHandler: extraction.NewHandler(logger, extractionService),
		InsightsHandler:   insights.NewHandler(logger, insightsService),
		SettingsHandler:   settings.NewHandler(logger, settingsService),
		MailerHandler:     mailer.NewHandler(logger, mailerService),
		ReportHandler:     report.NewHandler(docs, pinger, logger),
		JobHandler:        jobs.NewHandler(inspector, logger),
	}), nil
}

// Close releases the connections opened by Build.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.logger.Warn("close resource", slog.Any("error", err))
		}
	}
	if rt.pool != nil {
		rt.pool.Close()
	}
}
