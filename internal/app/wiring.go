package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	httpapi "floors-indexer/internal/api/http"
	"floors-indexer/internal/api/http/mw"
	"floors-indexer/internal/candle"
	"floors-indexer/internal/config"
	dedupe "floors-indexer/internal/dedupe/redis"
	"floors-indexer/internal/domain"
	"floors-indexer/internal/ingest"
	"floors-indexer/internal/metrics"
	"floors-indexer/internal/pubsub/nats"
	"floors-indexer/internal/security"
	"floors-indexer/internal/service"
	"floors-indexer/internal/stats"
	"floors-indexer/internal/store"
	"floors-indexer/internal/stores/clickhouse"
	"floors-indexer/internal/stores/redis"
	"floors-indexer/internal/window"

	"github.com/grafana/pyroscope-go"
	"gitlab.com/nevasik7/alerting"
	lgcfg "gitlab.com/nevasik7/alerting/config"
	"gitlab.com/nevasik7/alerting/logger"
)

type Container struct {
	app *App

	// infra
	redis *redis.Client
	ch    *clickhouse.Conn
	nc    *nats.Client

	chWriter *clickhouse.Writer
	consumer *ingest.Consumer

	cleanupF func()

	httpSrv *httpapi.Server

	profiler *pyroscope.Profiler
}

func (c *Container) Start() error {
	return c.app.Start()
}

func (c *Container) Stop(ctx context.Context) error {
	// stop intake first so shutdown drains a quiet pipeline
	if c.consumer != nil {
		if err := c.consumer.Close(); err != nil {
			return fmt.Errorf("consumer close is failed, error=%w", err)
		}
	}

	if err := c.app.Shutdown(ctx); err != nil {
		return fmt.Errorf("app shutdown is failed, error=%w", err)
	}

	if c.cleanupF != nil {
		c.cleanupF()
	}
	return nil
}

// Construct image app
func Build(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	lg := logger.New(lgcfg.LoggerCfg{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	lg.Info("Successfully initialize logger")

	profiler, err := metrics.InitPProf(&cfg.Metrics.Pyroscope, cfg.App.InstanceID)
	if err != nil {
		return nil, nil, fmt.Errorf("pyroscope initialize failed: %w", err)
	}
	if profiler != nil {
		lg.Infof("Successfully initialize Pyroscope to %s as %s", cfg.Metrics.Pyroscope.ServerAddr, cfg.Metrics.Pyroscope.AppName)
	}

	// Redis client
	rdb, err := redis.New(ctx, &cfg.Stores.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize redis client: %w", err)
	}
	lg.Infof("Successfully initialize redis client, addr=%s", cfg.Stores.Redis.Addr)

	// Entity store over the same connection
	entityStore, err := store.NewRedis(rdb, cfg.Stores.Redis.EntityPrefix)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize entity store: %w", err)
	}

	// Bloom prefilter (optional)
	var bloom *dedupe.Bloom
	if cfg.Dedupe.Bloom.Enabled {
		if bloom, err = dedupe.NewBloom(&cfg.Dedupe.Bloom, rdb); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize bloom: %w", err)
		}
		if err = bloom.Ensure(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to reserve bloom filter: %w", err)
		}
		lg.Infof("Successfully initialize Bloom by key=%s, cap=%d, errRate=%f", bloom.Key, bloom.Capacity, bloom.ErrRate)
	}

	// Dedupe
	deduper, err := dedupe.NewDeduper(lg, &cfg.Dedupe, rdb, bloom)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize redis deduper: %w", err)
	}
	lg.Infof("Successfully initialize Deduper redis_client by prefix %s", cfg.Dedupe.Prefix)

	// Window Engine + warm start
	span := cfg.App.WindowSeconds
	if span <= 0 {
		span = domain.WindowSeconds
	}
	windowEngine, err := window.NewEngine(span)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize window engine: %w", err)
	}

	warmStart := NewWindowWarmStart(lg, rdb.Client, cfg.Stores.Redis.SnapshotKey, windowEngine)
	if err = warmStart.Load(ctx); err != nil {
		// cold start is better than no start
		lg.Errorf("Window warm start failed, continuing cold: %v", err)
		windowEngine.Reset()
	}
	lg.Infof("Successfully initialize Window Engine, span=%ds", span)

	// NATS
	natsCl, err := nats.New(lg, &cfg.PubSub.NATS)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize nats client: %w", err)
	}

	// ClickHouse (optional archive)
	var (
		ch       *clickhouse.Conn
		chWriter *clickhouse.Writer
	)
	if cfg.Stores.ClickHouse.Enabled {
		if ch, err = clickhouse.New(ctx, &cfg.Stores.ClickHouse); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize clickhouse client: %w", err)
		}
		url := strings.Split(cfg.Stores.ClickHouse.DSN, "?")
		lg.Infof("Successfully initialize clickhouse client, url=%s", url[0])

		chWriter = clickhouse.NewWriter(alerting.NewAlerting(lg, nil), ch.Native, cfg.Stores.ClickHouse)
		lg.Info("Successfully initialize clickhouse writer")
	}

	// Aggregation pipeline
	snapshots := stats.NewSnapshotPublisher(entityStore)
	global := stats.NewGlobalAggregator(entityStore, windowEngine, snapshots)

	var history service.HistoryWriter
	if chWriter != nil {
		history = chWriter
	}

	svc := service.NewIndexer(
		lg,
		entityStore,
		windowEngine,
		candle.New(entityStore),
		stats.NewRollingPublisher(entityStore),
		global,
		deduper,
		natsCl,
		history,
	)

	// Trade intake
	consumer, err := ingest.NewConsumer(lg, natsCl.Conn(), &cfg.Ingest, svc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize trade consumer: %w", err)
	}

	// Security (optional)
	var jwtMW *mw.JWTMiddleware
	if cfg.Security.JWT.Enabled {
		verifier, err := security.NewRS256Verifier(&cfg.Security.JWT)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize JWT verifier: %w", err)
		}
		jwtMW = mw.NewJWTMiddleware(verifier)
		lg.Info("Successfully initialize JWT-Verifier")
	}

	var rateLimitMW *mw.RateLimitMiddleware
	if cfg.RateLimit.Enabled {
		rateLimitMW = mw.NewRateLimit(rdb.Client, mw.RateLimitConfig{
			ByIP: mw.RateBucket{
				RefillPerSec: cfg.RateLimit.ByIP.RefillPerSec,
				Burst:        cfg.RateLimit.ByIP.Burst,
			},
			ByJWT: mw.RateBucket{
				RefillPerSec: cfg.RateLimit.ByJWT.RefillPerSec,
				Burst:        cfg.RateLimit.ByJWT.Burst,
			},
		})
	}

	var corsMW *mw.CORSMiddleware
	if cfg.API.HTTP.CORS.Enabled {
		corsMW = mw.NewCORSConfig(&cfg.API.HTTP.CORS)
	}

	// HTTP server
	router := httpapi.BuildRouter(
		httpapi.NewHandler(lg, svc),
		mw.NewLogging(lg),
		mw.NewGzip(0, lg),
		rateLimitMW,
		jwtMW,
		corsMW,
	)
	httpSrv := httpapi.NewServer(lg, &cfg.API.HTTP, router)
	lg.Info("Successfully initialize HTTP server")

	c := &Container{
		app:      New(alerting.NewAlerting(lg, nil), httpSrv, warmStart, cfg.App.SnapshotInterval),
		redis:    rdb,
		ch:       ch,
		nc:       natsCl,
		chWriter: chWriter,
		consumer: consumer,
		httpSrv:  httpSrv,
		profiler: profiler,
	}

	cleanupF := func() {
		ctxClean, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if c.profiler != nil {
			if err := c.profiler.Stop(); err != nil {
				lg.Errorf("Failed to stop profiler: %v", err)
			}
		}

		if c.chWriter != nil {
			if err := c.chWriter.Close(ctxClean); err != nil {
				lg.Errorf("Failed to close by cleanupF clickhouse writer: %v", err)
			}
		}

		if c.ch != nil {
			if err := c.ch.Close(); err != nil {
				lg.Errorf("Failed to close by cleanupF clickhouse client: %v", err)
			}
		}

		if err := c.nc.Close(); err != nil {
			lg.Errorf("Failed to close by cleanupF nats client: %v", err)
		}

		if err := c.redis.Close(); err != nil {
			lg.Errorf("Failed to close by cleanupF redis client: %v", err)
		}

		lg.Info("Successfully cleaned up dependency")
	}

	lg.Info("Successfully initialize Wiring")
	return c, cleanupF, nil
}
