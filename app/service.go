// Package app wires the cloud client, schedule store, entity catalog and
// submission controller into a running service.
package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lmichel/tonectl/api/planning"
	"github.com/lmichel/tonectl/config"
	"github.com/lmichel/tonectl/core/catalog"
	coremetrics "github.com/lmichel/tonectl/core/metrics"
	"github.com/lmichel/tonectl/core/program"
	"github.com/lmichel/tonectl/core/schedule"
	"github.com/lmichel/tonectl/core/store"
	"github.com/lmichel/tonectl/core/submit"
	"github.com/lmichel/tonectl/infra/cloud"
	"github.com/lmichel/tonectl/infra/logger"
	"github.com/lmichel/tonectl/infra/metrics"
	"github.com/lmichel/tonectl/infra/mqtt"
	"github.com/lmichel/tonectl/internal/eventbus"
)

// Service orchestrates the planning components.
type Service struct {
	cfg        *config.Config
	client     *cloud.Client
	store      *store.Store
	controller *submit.Controller
	bus        eventbus.EventBus
	publisher  *mqtt.StatusPublisher
	log        logger.Logger

	mu         sync.RWMutex
	product    *cloud.Product
	candidates []string
	selection  catalog.Selection
	runCtx     context.Context
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logger.SetLevel(cfg.Logging.Level)
	logg := logger.New("service")

	client, err := cloud.NewClient(cfg.Cloud)
	if err != nil {
		return nil, fmt.Errorf("cloud client: %w", err)
	}

	var sinks []coremetrics.MetricsSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(nil)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.Metrics))
	}
	var sink coremetrics.MetricsSink = coremetrics.NopSink{}
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = coremetrics.NewMultiSink(sinks...)
	}

	bus := eventbus.New()
	st := store.New()
	svc := &Service{
		cfg:    cfg,
		client: client,
		store:  st,
		bus:    bus,
		log:    logg,
		runCtx: context.Background(),
	}

	applier := cloud.ScheduleApplier{Client: client, Modem: svc.modemFor}
	timeout := time.Duration(cfg.Planning.SubmitTimeoutSeconds) * time.Second
	controller, err := submit.NewController(applier, st, timeout, logg, sink, bus)
	if err != nil {
		return nil, fmt.Errorf("submission controller: %w", err)
	}
	svc.controller = controller

	if cfg.MQTT.Enabled {
		pub, err := mqtt.NewStatusPublisher(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		svc.publisher = pub
	}
	return svc, nil
}

// Run starts the refresh loop, the HTTP API and the metrics endpoint, then
// blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	s.runCtx = ctx
	s.mu.Unlock()

	if err := s.client.Authenticate(ctx); err != nil {
		return err
	}
	if err := s.refresh(ctx); err != nil {
		s.log.Errorf("initial refresh: %v", err)
	}

	go s.refreshLoop(ctx)

	if s.publisher != nil {
		go s.publisher.Run(s.bus.Subscribe())
	}
	if s.cfg.Metrics.PrometheusEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	srv := &http.Server{Addr: s.cfg.Planning.HTTPAddr, Handler: planning.NewHandler(s)}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("api server shutdown: %v", err)
		}
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// RefreshOnce authenticates and performs a single refresh cycle. It is used
// by one-shot commands that do not run the full service loop.
func (s *Service) RefreshOnce(ctx context.Context) error {
	if err := s.client.Authenticate(ctx); err != nil {
		return err
	}
	return s.refresh(ctx)
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.publisher != nil {
		s.publisher.Disconnect()
	}
	s.bus.Close()
	return nil
}

// Entities lists the resolved planning candidates in catalog order, with the
// current selection flagged.
func (s *Service) Entities() []planning.EntityInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	sorted := make([]string, len(s.candidates))
	copy(sorted, s.candidates)
	catalog.Sort(sorted)
	selected := s.selection.Revalidate(sorted)
	infos := make([]planning.EntityInfo, 0, len(sorted))
	for _, id := range sorted {
		title := entityTitle(id)
		infos = append(infos, planning.EntityInfo{
			EntityID: id,
			Title:    title,
			Program:  program.Infer(id, title),
			Selected: id == selected,
		})
	}
	return infos
}

// ensureGrid hydrates the entity's grid from the latest raw planning data if
// it is not cached yet.
func (s *Service) ensureGrid(entityID string) error {
	raw, err := s.rawPlanning(entityID)
	if err != nil {
		return err
	}
	s.store.Hydrate(entityID, raw)
	return nil
}

// Grid returns a snapshot of the entity's cached grid, hydrating it from the
// latest raw planning data on first access. The copy is taken under the
// store lock; all writes go through SetCell.
func (s *Service) Grid(entityID string) (schedule.Grid, error) {
	if err := s.ensureGrid(entityID); err != nil {
		return schedule.Grid{}, err
	}
	g, _ := s.store.Snapshot(entityID)
	return g, nil
}

// SetCell mutates one cell of the entity's cached grid.
func (s *Service) SetCell(entityID string, day, hour int, mode byte) error {
	if err := s.ensureGrid(entityID); err != nil {
		return err
	}
	if !s.store.SetCell(entityID, day, hour, mode) {
		return fmt.Errorf("planning: cell %d/%d out of range", day, hour)
	}
	return nil
}

// Discard drops the entity's cached grid, so the next read re-hydrates it
// from the latest cloud planning data. Pending local edits are lost.
func (s *Service) Discard(entityID string) error {
	if err := s.ensureGrid(entityID); err != nil {
		return err
	}
	s.store.Invalidate(entityID)
	return nil
}

// Select makes the entity the current selection. The identifier must be a
// resolved candidate.
func (s *Service) Select(entityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.candidates {
		if c == entityID {
			s.selection.Select(entityID)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", planning.ErrUnknownEntity, entityID)
}

// Submit pushes the entity's cached grid to the device. The entity is
// reserved synchronously, so a concurrent submit is rejected before this
// call returns; the submission itself runs asynchronously and its outcome
// lands in the entity's submission status.
func (s *Service) Submit(entityID string) error {
	if err := s.ensureGrid(entityID); err != nil {
		return err
	}
	if err := s.controller.Reserve(entityID); err != nil {
		return err
	}
	snapshot, _ := s.store.Snapshot(entityID)
	prog := program.Infer(entityID, entityTitle(entityID))
	s.mu.RLock()
	ctx := s.runCtx
	s.mu.RUnlock()
	go func() {
		if err := s.controller.SubmitReserved(ctx, entityID, snapshot, prog); err != nil {
			s.log.Warnf("submission for %s settled with error: %v", entityID, err)
		}
	}()
	return nil
}

// Statistics fetches consumption samples for the account's device and
// aggregates them.
func (s *Service) Statistics(ctx context.Context, start, end, granularity string) ([]cloud.StatPoint, cloud.StatsSummary, error) {
	s.mu.RLock()
	product := s.product
	s.mu.RUnlock()
	if product == nil {
		return nil, cloud.StatsSummary{}, fmt.Errorf("app: no product loaded, refresh first")
	}
	points, err := s.client.Statistics(ctx, product.Modem, start, end, granularity)
	if err != nil {
		return nil, cloud.StatsSummary{}, err
	}
	return points, cloud.Summarize(points), nil
}

// SubmissionStatus returns the entity's current submission status, creating
// the default on first read.
func (s *Service) SubmissionStatus(entityID string) submit.Status {
	return s.store.Status(entityID)
}

// rawPlanning returns the raw planning entries for a live entity, or
// ErrUnknownEntity when the identifier does not resolve to a candidate.
func (s *Service) rawPlanning(entityID string) ([]schedule.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	found := false
	for _, c := range s.candidates {
		if c == entityID {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", planning.ErrUnknownEntity, entityID)
	}
	if s.product == nil {
		return nil, nil
	}
	id, ok := catalog.ParseEntityID(entityID)
	if !ok {
		return nil, nil
	}
	return s.product.Planning(id.Program), nil
}

// modemFor maps an entity identifier to the modem the cloud addresses
// commands to.
func (s *Service) modemFor(string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.product == nil {
		return ""
	}
	return s.product.Modem
}

// entityTitle renders the French display title the integration uses for a
// planning entity.
func entityTitle(entityID string) string {
	id, ok := catalog.ParseEntityID(entityID)
	if !ok {
		return "Planning"
	}
	family := "Chauffage"
	if id.Family == "cooling" {
		family = "Climatisation"
	}
	return fmt.Sprintf("Planning %s Programme %s", family, string(id.Program[0]-'a'+'A'))
}
