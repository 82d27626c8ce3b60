package main

import (
	"context"
	"time"

	"github.com/diewo77/docbatch/internal/activity"
	"github.com/diewo77/docbatch/internal/config"
	"github.com/diewo77/docbatch/internal/gate"
	"github.com/diewo77/docbatch/internal/services"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App wires the services against one database and configuration.
type App struct {
	cfg    *config.Config
	log    *zap.Logger
	actors *gate.CachedResolver
	users  *services.UserDirectory

	store    *services.AttributeStore
	docTypes *services.DocumentTypeService
	reports  *services.ReportService
	gen      *services.Generator
	batch    *services.Orchestrator
}

// NewApp builds every service with the shared gate, audit notifier and logger.
func NewApp(db *gorm.DB, cfg *config.Config, log *zap.Logger) *App {
	g := gate.Default()
	notifier := activity.NewDBNotifier(db, log)

	store := services.NewAttributeStore(db, cfg.UniqueKeys)
	store.Gate, store.Notifier, store.Log = g, notifier, log.Named("store")

	docTypes := services.NewDocumentTypeService(db)
	docTypes.Gate, docTypes.Notifier, docTypes.Log = g, notifier, log.Named("doctypes")

	reports := services.NewReportService(db)
	reports.Gate, reports.Notifier, reports.Log = g, notifier, log.Named("reports")

	gen := services.NewGenerator(db, docTypes, store, cfg.Storage.OutputDir)
	gen.Gate, gen.Notifier, gen.Log = g, notifier, log.Named("generator")

	batch := services.NewOrchestrator(db, gen, cfg.Storage.OutputDir)
	batch.Gate, batch.Notifier, batch.Log = g, notifier, log.Named("batch")
	batch.Workers = cfg.Batch.Workers
	batch.DispatchDelay = cfg.Batch.DispatchDelay()
	if cfg.Storage.Reveal {
		batch.Revealer = activity.NewCommandRevealer(log)
	} else {
		batch.Revealer = activity.LogRevealer{Log: log}
	}

	users := services.NewUserDirectory(db)
	users.Gate = g
	actors := gate.NewCachedResolver(users, 5*time.Minute)
	users.Cache = actors

	return &App{
		cfg:      cfg,
		log:      log,
		actors:   actors,
		users:    users,
		store:    store,
		docTypes: docTypes,
		reports:  reports,
		gen:      gen,
		batch:    batch,
	}
}

// operator resolves the configured operator account.
func (a *App) operator(ctx context.Context) (*gate.Actor, error) {
	return a.actors.Resolve(ctx, a.cfg.App.OperatorID)
}

func (a *App) Generate(ctx context.Context, req services.GenerateRequest) (*services.DraftOutput, error) {
	actor, err := a.operator(ctx)
	if err != nil {
		return nil, err
	}
	return a.gen.Generate(ctx, actor, req)
}

// RunBatch runs a batch and logs progress as it goes.
func (a *App) RunBatch(ctx context.Context, req services.BatchRequest) (*services.BatchSummary, error) {
	actor, err := a.operator(ctx)
	if err != nil {
		return nil, err
	}
	return a.batch.Run(ctx, actor, req, func(p services.Progress) {
		if p.IsComplete {
			return
		}
		a.log.Info("batch progress",
			zap.Int("completed", p.Completed),
			zap.Int("total", p.Total),
			zap.String("current", p.Current),
		)
	})
}

// SetRole changes a user's role on behalf of the operator.
func (a *App) SetRole(ctx context.Context, id, role string) (any, error) {
	actor, err := a.operator(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.users.SetRole(ctx, actor, id, role); err != nil {
		return nil, err
	}
	return map[string]string{"id": id, "role": role}, nil
}

func (a *App) ListReports(ctx context.Context, f services.ReportFilter) (any, error) {
	actor, err := a.operator(ctx)
	if err != nil {
		return nil, err
	}
	return a.reports.ListReports(ctx, actor, f)
}

func (a *App) ListDocumentTypes(ctx context.Context) (any, error) {
	actor, err := a.operator(ctx)
	if err != nil {
		return nil, err
	}
	return a.docTypes.ListDocumentTypes(ctx, actor)
}

func (a *App) ListClients(ctx context.Context, schemaID string) (any, error) {
	actor, err := a.operator(ctx)
	if err != nil {
		return nil, err
	}
	return a.store.ListEntities(ctx, actor, schemaID)
}
