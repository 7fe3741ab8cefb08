package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"entity-persister/core/database"
	"entity-persister/core/logger"
	"entity-persister/core/metadata"
	"entity-persister/core/normalize"
	"entity-persister/core/reconcile"
	"entity-persister/core/value"
	"entity-persister/feature/persistence"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Flags for plan commands
	applyPlan  bool
	yesConfirm bool
)

// planCmd is the parent command for all planning operations.
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan (and optionally apply) entity persistence operations",
	Long: `Compare desired entities with the stored rows and report the operations
needed to reconcile them. Nothing is written unless --apply is given.`,
}

// persistPlanCmd plans the persistence of an entity graph read from a JSON file.
var persistPlanCmd = &cobra.Command{
	Use:   "persist <entity> <file.json>",
	Short: "Plan inserting or updating an entity graph",
	Long: `Plan inserting or updating the entity graph stored in a JSON file.

Examples:
  # Report only
  plan persist post post.json

  # Apply with interactive confirmation
  plan persist post post.json --apply

  # Apply with auto-confirm (non-interactive)
  plan persist post post.json --apply --yes`,
	Args: cobra.ExactArgs(2),
	RunE: runPersistPlan,
}

// removePlanCmd plans the removal of a stored row.
var removePlanCmd = &cobra.Command{
	Use:   "remove <entity> <id>",
	Short: "Plan removing a stored entity and its cascades",
	Args:  cobra.ExactArgs(2),
	RunE:  runRemovePlan,
}

func init() {
	planCmd.AddCommand(persistPlanCmd)
	planCmd.AddCommand(removePlanCmd)

	planCmd.PersistentFlags().BoolVar(&applyPlan, "apply", false, "Execute the planned operations")
	planCmd.PersistentFlags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm execution (non-interactive)")

	RootCmd.AddCommand(planCmd)
}

// planEnv bundles what every plan command needs.
type planEnv struct {
	logger   *zap.Logger
	registry *metadata.Registry
	uow      *reconcile.UnitOfWork
	store    *persistence.Store
}

func newPlanEnv() (*planEnv, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	registry, err := cfg.Persistence.LoadRegistry()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Persistence.Location()
	if err != nil {
		return nil, err
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	n := normalize.New(loc)
	return &planEnv{
		logger:   l,
		registry: registry,
		store:    persistence.NewStore(db, n),
		uow: reconcile.NewUnitOfWork(registry, reconcile.Config{
			LoadConcurrency: cfg.Persistence.Concurrency(),
			Normalizer:      n,
			Logger:          l,
		}),
	}, nil
}

func runPersistPlan(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[1], err)
	}
	doc, err := value.ParseJSON(data)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", args[1], err)
	}
	if !doc.IsObject() {
		return fmt.Errorf("%s must contain a JSON object", args[1])
	}

	env, err := newPlanEnv()
	if err != nil {
		return err
	}
	if _, err := env.uow.Persist(args[0], doc.Record()); err != nil {
		return err
	}
	return env.run(cmd.Context())
}

func runRemovePlan(cmd *cobra.Command, args []string) error {
	env, err := newPlanEnv()
	if err != nil {
		return err
	}
	meta := env.registry.Entity(args[0])
	if meta == nil {
		return fmt.Errorf("%w: %s", reconcile.ErrUnknownEntity, args[0])
	}
	stored, err := loadRemoveTarget(cmd.Context(), env.store, meta, args[1])
	if err != nil {
		return err
	}
	if _, err := env.uow.Remove(args[0], stored); err != nil {
		return err
	}
	return env.run(cmd.Context())
}

// loadRemoveTarget returns the stored row of meta addressed by raw. A missing
// row is an error wrapping persistence.ErrNotFound.
func loadRemoveTarget(ctx context.Context, loader reconcile.SnapshotLoader, meta *metadata.Entity, raw string) (*value.Record, error) {
	id, err := persistence.ParseIdentifier(meta, raw)
	if err != nil {
		return nil, err
	}
	stored, err := loader.LoadSnapshot(ctx, meta, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %s: %w", meta.Name, id, err)
	}
	if stored == nil {
		return nil, fmt.Errorf("%w: %s %s", persistence.ErrNotFound, meta.Name, id)
	}
	return stored, nil
}

func (e *planEnv) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	e.logger.Info("Loading stored rows...")
	if err := e.uow.Load(ctx, e.store); err != nil {
		return fmt.Errorf("failed to load snapshots: %w", err)
	}
	plan, err := e.uow.BuildPlan()
	if err != nil {
		return fmt.Errorf("failed to build plan: %w", err)
	}

	printPlanReport(e.logger, plan)

	if !applyPlan {
		e.logger.Info("Dry-run mode: No changes were made. Use --apply to execute the plan.")
		return nil
	}
	if plan.Summary.Total() == 0 {
		e.logger.Info("No actions required.")
		return nil
	}
	if !confirmAction() {
		e.logger.Warn("Operation cancelled by user. No changes were made.")
		return nil
	}

	e.logger.Info("Applying actions...")
	executed, err := reconcile.ApplyPlan(ctx, e.store, plan, reconcile.Options{Logger: e.logger})
	if err != nil {
		return fmt.Errorf("failed to apply plan: %w", err)
	}
	e.logger.Info("Successfully executed actions", zap.Int("count", executed))
	return nil
}

// printPlanReport prints a formatted plan report using logger.
func printPlanReport(l *zap.Logger, plan *reconcile.Plan) {
	s := plan.Summary

	l.Info("Plan report",
		zap.Int("subjects", s.Subjects),
		zap.Int("inserts", s.Inserts),
		zap.Int("updates", s.Updates),
		zap.Int("relation_updates", s.RelationUpdates),
		zap.Int("junction_inserts", s.JunctionInserts),
		zap.Int("junction_removes", s.JunctionRemoves),
		zap.Int("removes", s.Removes),
	)

	actions := plan.Actions()
	maxShow := 10
	if len(actions) < maxShow {
		maxShow = len(actions)
	}
	for _, action := range actions[:maxShow] {
		l.Info("Planned action",
			zap.String("type", string(action.Type)),
			zap.String("entity", action.Entity),
			zap.Stringer("id", action.Identifier),
			zap.Strings("columns", action.Columns),
		)
	}
	if len(actions) > maxShow {
		l.Info("Additional actions not shown", zap.Int("count", len(actions)-maxShow))
	}
}

// confirmAction prompts the user for confirmation or uses --yes flag.
func confirmAction() bool {
	if yesConfirm {
		fmt.Println("\n✓ Auto-confirmed via --yes flag")
		return true
	}

	fmt.Print("\n⚠️  Type 'yes' to apply the plan: ")
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(response)
	return response == "yes"
}
