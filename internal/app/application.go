// Package app ties the domain services together and manages their lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/yorktechapps/pixelplace/internal/app/auth"
	"github.com/yorktechapps/pixelplace/internal/app/config"
	"github.com/yorktechapps/pixelplace/internal/app/httpapi"
	"github.com/yorktechapps/pixelplace/internal/app/hub"
	canvassvc "github.com/yorktechapps/pixelplace/internal/app/services/canvas"
	"github.com/yorktechapps/pixelplace/internal/app/services/ledger"
	purchasesvc "github.com/yorktechapps/pixelplace/internal/app/services/purchase"
	"github.com/yorktechapps/pixelplace/internal/app/services/settlement"
	"github.com/yorktechapps/pixelplace/internal/app/stats"
	"github.com/yorktechapps/pixelplace/internal/app/storage"
	"github.com/yorktechapps/pixelplace/internal/app/storage/memory"
	"github.com/yorktechapps/pixelplace/internal/app/system"
	"github.com/yorktechapps/pixelplace/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Events       storage.EventStore
	Participants storage.ParticipantStore
	Transactions storage.TransactionStore
}

// Application owns the wired services and their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Canvas    *canvassvc.Service
	Ledger    *ledger.Service
	Purchases *purchasesvc.Service
	Hub       *hub.Hub
	Auth      *auth.Service
	Handler   http.Handler
}

// New builds a fully initialised application with the provided stores.
func New(cfg *config.Config, stores Stores, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	logCfg := logger.LoggingConfig{Level: cfg.LogLevel, Format: cfg.LogFormat}
	named := func(name string) *logger.Logger { return logger.New(logCfg, name) }

	mem := memory.New()
	if stores.Events == nil {
		stores.Events = mem
	}
	if stores.Participants == nil {
		stores.Participants = mem
	}
	if stores.Transactions == nil {
		stores.Transactions = mem
	}

	manager := system.NewManager()

	canvasSvc := canvassvc.New(stores.Events, stores.Participants, named("canvas"))
	ledgerSvc := ledger.New(stores.Participants, stores.Transactions, named("ledger"))

	var transfers purchasesvc.Transferrer
	var settlementClient *settlement.Client
	if cfg.APIKey != "" {
		settlementClient = settlement.NewClient(settlement.Config{
			URL:     cfg.FormbarWSURL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.TransferTimeout,
		}, named("settlement"))
		transfers = settlementClient
	} else {
		log.Warn("API_KEY not set; pixel purchases disabled")
	}

	purchaseSvc := purchasesvc.New(ledgerSvc, transfers, cfg.AppAccountID, named("purchase"))
	hubSvc := hub.New(canvasSvc, purchaseSvc, ledgerSvc, named("hub"))
	authSvc := auth.New(auth.Config{
		AuthURL:    cfg.AuthURL,
		ThisURL:    cfg.ThisURL,
		SessionTTL: cfg.SessionTTL,
	}, ledgerSvc, named("auth"))

	services := []system.Service{hubSvc, stats.NewReporter(canvasSvc, hubSvc, "", named("stats"))}
	if settlementClient != nil {
		services = append(services, settlementClient)
	}
	for _, svc := range services {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	return &Application{
		manager:   manager,
		log:       log,
		Canvas:    canvasSvc,
		Ledger:    ledgerSvc,
		Purchases: purchaseSvc,
		Hub:       hubSvc,
		Auth:      authSvc,
		Handler:   httpapi.NewHandler(canvasSvc, hubSvc, authSvc),
	}, nil
}

// Start rebuilds the canvas view from the event log and starts all services.
func (a *Application) Start(ctx context.Context) error {
	if err := a.Canvas.Rebuild(ctx); err != nil {
		return fmt.Errorf("rebuild canvas view: %w", err)
	}
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
