package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tyreaid/roadaid/api/providers"
	"github.com/tyreaid/roadaid/api/requests"
	"github.com/tyreaid/roadaid/config"
	"github.com/tyreaid/roadaid/core/dispatch"
	"github.com/tyreaid/roadaid/core/geo"
	coremetrics "github.com/tyreaid/roadaid/core/metrics"
	corestore "github.com/tyreaid/roadaid/core/store"
	"github.com/tyreaid/roadaid/infra/alert"
	"github.com/tyreaid/roadaid/infra/logger"
	"github.com/tyreaid/roadaid/infra/metrics"
	pgstore "github.com/tyreaid/roadaid/infra/store"
	"github.com/tyreaid/roadaid/internal/eventbus"
	"github.com/tyreaid/roadaid/jobs/expiry"
)

// Service wires the dispatch manager to its store, API, metrics, alerts and
// background jobs.
type Service struct {
	Manager *dispatch.Manager

	cfg        *config.Config
	bus        eventbus.EventBus
	log        logger.Logger
	httpSrv    *http.Server
	influxSink coremetrics.MetricsSink
	alertPub   alert.Publisher
	notifier   *alert.Notifier
	expiryJob  *expiry.Job
	pg         *pgstore.PostgresStore
}

// New creates a Service from the configuration.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	log := logger.New("service")
	svc := &Service{cfg: cfg, bus: eventbus.New(), log: log}

	st, err := svc.buildStore(ctx)
	if err != nil {
		return nil, err
	}

	// Prometheus counts inline with the dispatch path; Influx archives from
	// the bus so a slow write never holds an accept.
	var sink coremetrics.MetricsSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err = metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
	}
	if cfg.Metrics.InfluxEnabled {
		svc.influxSink = metrics.NewInfluxSinkWithFallback(
			cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken, cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket)
	}

	idx := geo.NewIndex(cfg.Geo.CellSizeDeg)
	manager, err := dispatch.NewManager(st, idx, svc.bus, sink, logger.New("dispatch"), cfg.Dispatch)
	if err != nil {
		return nil, fmt.Errorf("dispatch manager: %w", err)
	}
	svc.Manager = manager

	if cfg.Alerts.Enabled {
		pub, err := alert.NewPahoPublisher(cfg.Alerts)
		if err != nil {
			return nil, fmt.Errorf("alert publisher: %w", err)
		}
		svc.alertPub = pub
		svc.notifier, err = alert.NewNotifier(svc.bus, manager, pub, cfg.Alerts.TopicRoot)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Expiry.Enabled {
		svc.expiryJob, err = expiry.New(manager, cfg.Expiry)
		if err != nil {
			return nil, fmt.Errorf("expiry job: %w", err)
		}
	}

	mux := http.NewServeMux()
	requests.NewHandler(manager, cfg.HTTP.BearerToken).Register(mux)
	providers.NewHandler(manager, cfg.HTTP.BearerToken).Register(mux)
	svc.httpSrv = &http.Server{Addr: cfg.HTTP.Addr, Handler: mux}

	return svc, nil
}

func (s *Service) buildStore(ctx context.Context) (corestore.RequestStore, error) {
	switch s.cfg.Store.Backend {
	case "postgres":
		pg, err := pgstore.NewPostgresStore(ctx, s.cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("postgres store: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, fmt.Errorf("postgres schema: %w", err)
		}
		s.pg = pg
		return pg, nil
	default:
		return corestore.NewMemoryStore(), nil
	}
}

// Run starts the service and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.influxSink != nil {
		metrics.StartEventCollector(ctx, s.bus, s.influxSink)
	}
	if s.notifier != nil {
		s.notifier.Start(ctx)
	}
	if s.expiryJob != nil {
		go func() {
			if err := s.expiryJob.Start(ctx); err != nil && err != context.Canceled {
				s.log.Errorf("expiry job: %v", err)
			}
		}()
	}
	if s.cfg.Metrics.PrometheusEnabled {
		if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusPort); err != nil {
			s.log.Errorf("prom server: %v", err)
		}
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("http shutdown: %v", err)
		}
	}()

	s.log.Infof("listening on %s", s.cfg.HTTP.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	if s.alertPub != nil {
		s.alertPub.Disconnect()
	}
	if s.pg != nil {
		s.pg.Close()
	}
	return nil
}
