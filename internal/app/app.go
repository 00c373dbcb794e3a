package app

import (
	"context"
	"fmt"
	"net/http"

	"cloud.google.com/go/pubsub"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/goods-issue/internal/adapter/metrics"
	"github.com/rl1809/goods-issue/internal/adapter/notifier"
	"github.com/rl1809/goods-issue/internal/adapter/storage"
	"github.com/rl1809/goods-issue/internal/config"
	"github.com/rl1809/goods-issue/internal/core/service"
)

// App holds every adapter and service of one process.
type App struct {
	Store       *storage.SQLStore
	Reconciler  *service.ReconcileService
	Coordinator *service.Coordinator
	Stock       *service.StockService
	Registry    *prometheus.Registry

	lane   *service.Lane
	redis  *redis.Client
	pubsub *pubsub.Client
	topic  *notifier.PubSubNotifier
	logger logrus.FieldLogger
}

func New(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (*App, error) {
	a := &App{logger: logger}
	if err := a.init(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context, cfg *config.Config) error {
	var err error
	switch cfg.StoreDriver {
	case config.StoreMySQL:
		a.Store, err = storage.OpenMySQL(ctx, cfg.MySQLDSN)
	default:
		a.Store, err = storage.OpenSQLite(ctx, cfg.SQLitePath)
	}
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	a.logger.WithField("driver", cfg.StoreDriver).Info("store ready")

	var serviceOpts []service.ServiceOption
	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 100,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		redisAdapter := storage.NewRedisAdapter(a.redis, cfg.IdempotencyTTL)
		serviceOpts = append(serviceOpts,
			service.WithIdempotencyCache(redisAdapter),
			service.WithOrderLock(redisAdapter, cfg.OrderLockTTL),
		)
		a.logger.WithField("addr", cfg.RedisAddr).Info("connected to redis")
	}

	notifiers := notifier.Fanout{notifier.NewLogNotifier(a.logger)}
	switch cfg.Notifier {
	case config.NotifierRedis:
		notifiers = append(notifiers, notifier.NewRedisNotifier(a.redis, cfg.RedisChannel))
	case config.NotifierPubSub:
		a.pubsub, err = pubsub.NewClient(ctx, cfg.PubSubProjectID)
		if err != nil {
			return fmt.Errorf("pubsub client: %w", err)
		}
		a.topic, err = notifier.NewPubSubNotifier(a.pubsub, cfg.PubSubTopic)
		if err != nil {
			return err
		}
		notifiers = append(notifiers, a.topic)
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewRecorder(a.Registry)

	a.lane = service.NewLane(cfg.LaneQueueSize)
	engine := service.NewEngine(a.Store, a.lane, a.logger,
		service.WithNotifier(notifiers),
		service.WithRecorder(recorder),
	)

	a.Reconciler = service.NewReconcileService(engine, a.logger, serviceOpts...)
	a.Coordinator = service.NewCoordinator(a.Reconciler, cfg.ConflictRetries, recorder, a.logger)
	a.Stock = service.NewStockService(a.Store, a.lane, a.logger)
	return nil
}

func (a *App) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})
}

// Close drains the write lane before closing connections. Safe to call on a
// partially built App.
func (a *App) Close() {
	if a.lane != nil {
		a.lane.Close()
	}
	if a.topic != nil {
		a.topic.Stop()
	}
	if a.pubsub != nil {
		if err := a.pubsub.Close(); err != nil {
			a.logger.WithError(err).Warn("close pubsub client")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.WithError(err).Warn("close redis")
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.logger.WithError(err).Warn("close store")
		}
	}
}
