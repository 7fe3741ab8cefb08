package persistence

import (
	"context"
	"errors"
	"fmt"

	"entity-persister/core/metadata"
	"entity-persister/core/normalize"
	"entity-persister/core/reconcile"
	"entity-persister/core/value"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNotFound is returned when the addressed row does not exist.
var ErrNotFound = errors.New("entity not found")

// Result describes a persist or remove call.
type Result struct {
	Entity     string                `json:"entity"`
	Identifier value.Value           `json:"identifier"`
	DryRun     bool                  `json:"dry_run"`
	Executed   int                   `json:"executed"`
	Summary    reconcile.PlanSummary `json:"summary"`
	Actions    []reconcile.Action    `json:"actions"`
}

// Service persists entity graphs through units of work.
type Service struct {
	registry *metadata.Registry
	db       *gorm.DB
	store    *Store
	cfg      reconcile.Config
	logger   *zap.Logger
}

// NewService creates a new persistence service.
func NewService(registry *metadata.Registry, db *gorm.DB, logger *zap.Logger, cfg Config) (*Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	n := normalize.New(loc)
	return &Service{
		registry: registry,
		db:       db,
		store:    NewStore(db, n),
		cfg: reconcile.Config{
			LoadConcurrency: cfg.Concurrency(),
			Normalizer:      n,
			Logger:          logger,
		},
		logger: logger,
	}, nil
}

// Registry returns the entity metadata the service works with.
func (s *Service) Registry() *metadata.Registry {
	return s.registry
}

// Persist saves rec, and every related entity reachable through cascading
// relations, as an instance of entity.
func (s *Service) Persist(ctx context.Context, entity string, rec *value.Record, dryRun bool) (*Result, error) {
	uow := reconcile.NewUnitOfWork(s.registry, s.cfg)
	root, err := uow.Persist(entity, rec)
	if err != nil {
		return nil, err
	}
	res, err := s.run(ctx, uow, dryRun)
	if err != nil {
		return nil, err
	}
	res.Entity = entity
	res.Identifier = root.Identifier()
	return res, nil
}

// Remove deletes the row of entity identified by id, cascading to related
// rows where configured.
func (s *Service) Remove(ctx context.Context, entity string, id value.Value, dryRun bool) (*Result, error) {
	meta := s.registry.Entity(entity)
	if meta == nil {
		return nil, fmt.Errorf("%w: %s", reconcile.ErrUnknownEntity, entity)
	}
	stored, err := s.store.LoadSnapshot(ctx, meta, id)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, entity, id)
	}

	uow := reconcile.NewUnitOfWork(s.registry, s.cfg)
	if _, err := uow.Remove(entity, stored); err != nil {
		return nil, err
	}
	res, err := s.run(ctx, uow, dryRun)
	if err != nil {
		return nil, err
	}
	res.Entity = entity
	res.Identifier = id
	return res, nil
}

// Find returns the stored row of entity identified by id.
func (s *Service) Find(ctx context.Context, entity string, id value.Value) (*value.Record, error) {
	meta := s.registry.Entity(entity)
	if meta == nil {
		return nil, fmt.Errorf("%w: %s", reconcile.ErrUnknownEntity, entity)
	}
	rec, err := s.store.LoadSnapshot(ctx, meta, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, entity, id)
	}
	return rec, nil
}

// CheckSchema compares the entity definitions with the database schema.
func (s *Service) CheckSchema() (*SchemaReport, error) {
	return CheckSchema(s.db, s.registry)
}

func (s *Service) run(ctx context.Context, uow *reconcile.UnitOfWork, dryRun bool) (*Result, error) {
	if err := uow.Load(ctx, s.store); err != nil {
		return nil, err
	}
	plan, err := uow.BuildPlan()
	if err != nil {
		return nil, err
	}

	res := &Result{DryRun: dryRun, Summary: plan.Summary}
	executed, err := reconcile.ApplyPlan(ctx, s.store, plan, reconcile.Options{DryRun: dryRun, Logger: s.logger})
	if err != nil {
		return nil, err
	}
	res.Executed = executed
	res.Actions = plan.Actions()
	return res, nil
}
