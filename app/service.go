package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kilianp07/cad/api"
	"github.com/kilianp07/cad/config"
	corealert "github.com/kilianp07/cad/core/alert"
	"github.com/kilianp07/cad/core/broadcast"
	"github.com/kilianp07/cad/core/dispatch"
	coremetrics "github.com/kilianp07/cad/core/metrics"
	coremon "github.com/kilianp07/cad/core/monitoring"
	coremqtt "github.com/kilianp07/cad/core/mqtt"
	"github.com/kilianp07/cad/core/panicmode"
	"github.com/kilianp07/cad/infra/alert"
	"github.com/kilianp07/cad/infra/logger"
	"github.com/kilianp07/cad/infra/metrics"
	"github.com/kilianp07/cad/infra/monitoring"
	"github.com/kilianp07/cad/infra/mqtt"
	"github.com/kilianp07/cad/infra/store/sqlite"
	"github.com/kilianp07/cad/infra/ws"
)

// Service wires the dispatch core to its store, transports and observers.
type Service struct {
	Manager  *dispatch.Manager
	Presence *broadcast.Presence

	cfg      *config.Config
	store    *sqlite.Store
	bcast    *broadcast.Broadcaster
	sink     coremetrics.MetricsSink
	mqtt     *mqtt.PahoClient
	server   *http.Server
	log      logger.Logger
	listener net.Listener
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	if err := cfg.Logging.Apply(); err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	st, err := sqlite.Open(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	svc := &Service{cfg: cfg, store: st, log: logg}
	if err := svc.build(); err != nil {
		_ = svc.Close()
		return nil, err
	}
	return svc, nil
}

func (s *Service) build() error {
	cfg := s.cfg
	s.bcast = broadcast.New(logger.New("broadcast"), cfg.Broadcast.Buffer)
	s.Presence = broadcast.NewPresence(s.bcast)

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return fmt.Errorf("metrics sink: %w", err)
	}
	s.sink = sink

	pc := panicmode.New(s.bcast, alert.New(cfg.Alert), corealert.NewLocale(cfg.Alert.Locale), logger.New("panic"), cfg.Panic)
	s.Manager, err = dispatch.NewManager(s.store, s.bcast, pc, sink, logger.New("dispatch"), cfg.Dispatch)
	if err != nil {
		return fmt.Errorf("dispatch manager: %w", err)
	}
	journal, err := cfg.Journal.Open()
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	if journal != nil {
		s.Manager.SetLogStore(journal)
	}

	if cfg.MQTT.Enabled {
		s.mqtt, err = mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("mqtt client: %w", err)
		}
		s.mqtt.SetPanicHandler(func(ctx context.Context, cmd coremqtt.PanicCommand) error {
			_, err := s.Manager.PanicSignal(ctx, dispatch.PanicSignal{UnitID: cmd.UnitID, On: cmd.On})
			return err
		})
	}

	handler, err := api.New(cfg.HTTP, api.Options{
		Manager:  s.Manager,
		Presence: s.Presence,
		Gateway:  ws.New(s.bcast, s.Presence, logger.New("ws"), cfg.WS),
		Metrics:  promhttp.Handler(),
		Logger:   logger.New("api"),
	})
	if err != nil {
		return fmt.Errorf("api: %w", err)
	}
	s.server = &http.Server{Addr: cfg.HTTP.Addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	return nil
}

// Listen binds the HTTP address. Run calls it when it was not called before.
func (s *Service) Listen() (net.Addr, error) {
	if s.listener != nil {
		return s.listener.Addr(), nil
	}
	l, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return nil, err
	}
	s.listener = l
	return l.Addr(), nil
}

// Run serves HTTP and forwards events until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if _, err := s.Listen(); err != nil {
		return fmt.Errorf("listen %s: %w", s.server.Addr, err)
	}
	collectorDone := metrics.StartEventCollector(ctx, s.bcast, s.sink)
	bridgeDone := closedChan()
	if s.mqtt != nil {
		bridgeDone = mqtt.StartBridge(ctx, s.bcast, s.mqtt, s.cfg.MQTT.TopicPrefix, logger.New("mqtt_bridge"))
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", s.listener.Addr())
		if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		runErr = err
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(s.cfg.HTTP.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.log.Errorf("http shutdown: %v", err)
	}
	<-collectorDone
	<-bridgeDone
	return runErr
}

func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	if s.Manager != nil {
		errs = append(errs, s.Manager.Close())
	}
	if s.bcast != nil {
		s.bcast.Close()
	}
	if s.mqtt != nil {
		s.mqtt.Disconnect()
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	coremon.Flush(2 * time.Second)
	return errors.Join(errs...)
}
