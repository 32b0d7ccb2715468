// Package app assembles the runtime: it builds the scheduler registry, the
// approval coordinator, the chat gateway and the HTTP surface from one config
// and runs them until shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/homar/homar/internal/approval"
	"github.com/homar/homar/internal/clock"
	"github.com/homar/homar/internal/config"
	"github.com/homar/homar/internal/events"
	"github.com/homar/homar/internal/gateway"
	"github.com/homar/homar/internal/health"
	"github.com/homar/homar/internal/httpapi"
	"github.com/homar/homar/internal/schedule"
	"github.com/homar/homar/internal/store"
	"github.com/homar/homar/internal/tools"
)

type Runtime struct {
	cfg    config.Config
	logger *slog.Logger

	store      *store.Store
	registry   *schedule.Registry
	approvals  *approval.Coordinator
	gateway    *gateway.Service
	hub        *events.Hub
	health     *health.Registry
	httpServer *http.Server
}

// lateDeliverer breaks the construction cycle between the registry and the
// gateway: the registry needs a deliverer before the gateway exists.
type lateDeliverer struct {
	mu sync.Mutex
	d  schedule.Deliverer
}

func (l *lateDeliverer) bind(d schedule.Deliverer) {
	l.mu.Lock()
	l.d = d
	l.mu.Unlock()
}

func (l *lateDeliverer) Deliver(ctx context.Context, target, payload string) error {
	l.mu.Lock()
	d := l.d
	l.mu.Unlock()
	if d == nil {
		return fmt.Errorf("deliverer not bound yet")
	}
	return d.Deliver(ctx, target, payload)
}

func New(cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	sqlStore, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := sqlStore.AutoMigrate(context.Background()); err != nil {
		sqlStore.Close()
		return nil, err
	}

	healthRegistry := health.NewRegistry()
	healthRegistry.Set("runtime", health.StateStarting, "booting")
	healthRegistry.Set("scheduler", health.StateStarting, "initializing")
	healthRegistry.Set("approvals", health.StateStarting, "initializing")
	healthRegistry.Set("api", health.StateStarting, "initializing")

	systemClock := clock.NewSystem()
	hub := events.NewHub(cfg.EventBufferSize, logger.With("component", "events"))

	approvals := approval.NewCoordinator(
		&hubRenderer{hub: hub},
		systemClock,
		time.Duration(cfg.ApprovalTimeoutSeconds)*time.Second,
		logger.With("component", "approvals"),
	)
	hub.SetDecisionHandler(func(id, decision, actor string) error {
		return approvals.Resolve(id, approval.Decision(decision), actor)
	})

	late := &lateDeliverer{}
	registry := schedule.NewRegistry(late, systemClock, location, logger.With("component", "scheduler"))

	toolService := tools.NewService(
		registry,
		approvals,
		systemClock,
		location,
		time.Duration(cfg.MinDelaySeconds)*time.Second,
		time.Duration(cfg.MaxDelaySeconds)*time.Second,
		logger.With("component", "tools"),
	)
	gatewayService := gateway.NewService(
		toolService,
		sqlStore,
		&hubTransport{hub: hub},
		logger.With("component", "gateway"),
	)
	late.bind(&eventedDeliverer{next: gatewayService, hub: hub})

	handler := httpapi.NewRouter(httpapi.Dependencies{
		Config:    cfg,
		Store:     sqlStore,
		Tools:     toolService,
		Approvals: approvals,
		Gateway:   gatewayService,
		Health:    healthRegistry,
		Hub:       hub,
		Logger:    logger.With("component", "api"),
	})

	return &Runtime{
		cfg:       cfg,
		logger:    logger,
		store:     sqlStore,
		registry:  registry,
		approvals: approvals,
		gateway:   gatewayService,
		hub:       hub,
		health:    healthRegistry,
		httpServer: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}
