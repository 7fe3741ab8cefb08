package reconcile

import (
	"context"
	"fmt"
	"sort"

	"entity-persister/core/subject"
	"entity-persister/core/value"

	"go.uber.org/zap"
)

// BuildPlan validates the unit of work and returns its operations.
// It does NOT execute them; use ApplyPlan for that.
func (u *UnitOfWork) BuildPlan() (*Plan, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}

	plan := &Plan{}
	for _, s := range u.subjects {
		switch {
		case s.MustBeInserted():
			plan.Inserts = append(plan.Inserts, s)
		case s.MustBeUpdated():
			plan.Updates = append(plan.Updates, s)
		}

		for _, ru := range s.RelationUpdates() {
			plan.RelationUpdates = append(plan.RelationUpdates, RelationUpdate{Owner: s, RelationUpdate: ru})
		}
		for _, j := range s.JunctionInserts() {
			plan.JunctionInserts = append(plan.JunctionInserts, JunctionOperation{Owner: s, Junction: j})
		}
		for _, j := range s.JunctionRemoves() {
			plan.JunctionRemoves = append(plan.JunctionRemoves, JunctionOperation{Owner: s, Junction: j})
		}
	}
	plan.Inserts = u.orderInserts(plan.Inserts)

	// Removes run in reverse creation order so dependents go first
	for i := len(u.subjects) - 1; i >= 0; i-- {
		s := u.subjects[i]
		if s.MustBeRemoved && s.HasDatabaseEntity() {
			plan.Removes = append(plan.Removes, s)
		}
	}

	plan.Summary = PlanSummary{
		Subjects:        len(u.subjects),
		Inserts:         len(plan.Inserts),
		Updates:         len(plan.Updates),
		RelationUpdates: len(plan.RelationUpdates),
		JunctionInserts: len(plan.JunctionInserts),
		JunctionRemoves: len(plan.JunctionRemoves),
		Removes:         len(plan.Removes),
	}
	u.log.Debug("Built plan",
		zap.Int("inserts", plan.Summary.Inserts),
		zap.Int("updates", plan.Summary.Updates),
		zap.Int("relation_updates", plan.Summary.RelationUpdates),
		zap.Int("junction_inserts", plan.Summary.JunctionInserts),
		zap.Int("junction_removes", plan.Summary.JunctionRemoves),
		zap.Int("removes", plan.Summary.Removes))
	return plan, nil
}

// orderInserts sorts inserts by creation time, moving rows referenced through
// an owning foreign key before the rows referencing them. Reference cycles
// keep creation order.
func (u *UnitOfWork) orderInserts(inserts []*subject.Subject) []*subject.Subject {
	sort.SliceStable(inserts, func(i, j int) bool {
		return inserts[i].CreatedAt.Before(inserts[j].CreatedAt)
	})

	pending := make(map[*subject.Subject]bool, len(inserts))
	for _, s := range inserts {
		pending[s] = true
	}

	ordered := make([]*subject.Subject, 0, len(inserts))
	visiting := make(map[*subject.Subject]bool)
	var visit func(s *subject.Subject)
	visit = func(s *subject.Subject) {
		if !pending[s] || visiting[s] {
			return
		}
		visiting[s] = true
		for _, rel := range s.Metadata().OwningToOneRelations() {
			v := s.DesiredEntity().Value(rel.PropertyName)
			if !v.IsObject() {
				continue
			}
			if dep, ok := u.byRecord[v.Record()]; ok {
				visit(dep)
			}
		}
		delete(pending, s)
		ordered = append(ordered, s)
	}
	for _, s := range inserts {
		visit(s)
	}
	return ordered
}

// Actions describes the plan in execution order.
func (p *Plan) Actions() []Action {
	var actions []Action
	for _, s := range p.Inserts {
		actions = append(actions, subjectAction(ActionInsert, s, nil))
	}
	for _, s := range p.Updates {
		var cols []string
		for _, c := range s.DiffColumns() {
			cols = append(cols, c.PropertyName)
		}
		for _, r := range s.DiffRelations() {
			cols = append(cols, r.PropertyName)
		}
		actions = append(actions, subjectAction(ActionUpdate, s, cols))
	}
	for _, ru := range p.RelationUpdates {
		a := subjectAction(ActionRelationUpdate, ru.Owner, []string{ru.Relation.PropertyName})
		if id := ru.RelatedIdentifier(); id.IsDefined() {
			a.Related = []value.Value{id}
		}
		actions = append(actions, a)
	}
	for _, op := range p.JunctionInserts {
		a := subjectAction(ActionJunctionInsert, op.Owner, []string{op.Relation.PropertyName})
		a.Related = op.Identifiers()
		actions = append(actions, a)
	}
	for _, op := range p.JunctionRemoves {
		a := subjectAction(ActionJunctionRemove, op.Owner, []string{op.Relation.PropertyName})
		a.Related = op.Identifiers()
		actions = append(actions, a)
	}
	for _, s := range p.Removes {
		actions = append(actions, subjectAction(ActionRemove, s, nil))
	}
	return actions
}

func subjectAction(typ ActionType, s *subject.Subject, cols []string) Action {
	id := s.Identifier()
	if !id.IsDefined() {
		id = value.Null()
	}
	return Action{
		Type:       typ,
		Entity:     s.Metadata().Name,
		Subject:    s.ID.String(),
		Identifier: id,
		Columns:    cols,
	}
}

// ApplyPlan executes the operations of plan, in order: inserts, updates,
// relation updates, junction inserts, junction removes and removes.
// Generated identifiers are written back to the inserted subjects.
// Returns the number of operations executed and any error encountered.
// Nothing is executed when opts.DryRun is set.
func ApplyPlan(ctx context.Context, exec Executor, plan *Plan, opts Options) (executed int, err error) {
	if opts.DryRun {
		return 0, nil
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	if tx, ok := exec.(Transactor); ok {
		err = tx.WithinTransaction(ctx, func(ctx context.Context, txExec Executor) error {
			var applyErr error
			executed, applyErr = apply(ctx, txExec, plan, log)
			return applyErr
		})
		if err != nil {
			return 0, err
		}
		return executed, nil
	}
	return apply(ctx, exec, plan, log)
}

func apply(ctx context.Context, exec Executor, plan *Plan, log *zap.Logger) (executed int, err error) {
	inserted := make(map[*value.Record]*subject.Subject, len(plan.Inserts))
	for _, s := range plan.Inserts {
		placeInTree(s, inserted)
		id, err := exec.Insert(ctx, s)
		if err != nil {
			return executed, fmt.Errorf("failed to insert %s: %w", s.Metadata().Name, err)
		}
		if id.IsDefined() && !id.IsNull() {
			s.SetNewlyGeneratedID(id)
		}
		inserted[s.DesiredEntity()] = s
		executed++
	}
	log.Debug("Applied inserts", zap.Int("count", len(plan.Inserts)))

	for _, s := range plan.Updates {
		if err := exec.Update(ctx, s); err != nil {
			return executed, fmt.Errorf("failed to update %s %s: %w", s.Metadata().Name, s.Identifier(), err)
		}
		executed++
	}
	log.Debug("Applied updates", zap.Int("count", len(plan.Updates)))

	for _, ru := range plan.RelationUpdates {
		if err := exec.UpdateRelation(ctx, ru); err != nil {
			return executed, fmt.Errorf("failed to update relation %s.%s: %w", ru.Owner.Metadata().Name, ru.Relation.PropertyName, err)
		}
		executed++
	}
	log.Debug("Applied relation updates", zap.Int("count", len(plan.RelationUpdates)))

	if len(plan.JunctionInserts) > 0 {
		if batch, ok := exec.(BatchJunctionInserter); ok {
			if err := batch.InsertJunctionBatch(ctx, plan.JunctionInserts); err != nil {
				return executed, fmt.Errorf("failed to batch insert junction rows: %w", err)
			}
			executed += len(plan.JunctionInserts)
		} else {
			for _, op := range plan.JunctionInserts {
				if err := exec.InsertJunction(ctx, op); err != nil {
					return executed, fmt.Errorf("failed to insert junction rows for %s.%s: %w", op.Owner.Metadata().Name, op.Relation.PropertyName, err)
				}
				executed++
			}
		}
	}
	log.Debug("Applied junction inserts", zap.Int("count", len(plan.JunctionInserts)))

	for _, op := range plan.JunctionRemoves {
		if err := exec.RemoveJunction(ctx, op); err != nil {
			return executed, fmt.Errorf("failed to remove junction rows for %s.%s: %w", op.Owner.Metadata().Name, op.Relation.PropertyName, err)
		}
		executed++
	}
	log.Debug("Applied junction removes", zap.Int("count", len(plan.JunctionRemoves)))

	if len(plan.Removes) > 0 {
		if batch, ok := exec.(BatchRemover); ok {
			if err := batch.RemoveBatch(ctx, plan.Removes); err != nil {
				return executed, fmt.Errorf("failed to batch remove: %w", err)
			}
			executed += len(plan.Removes)
		} else {
			for _, s := range plan.Removes {
				if err := exec.Remove(ctx, s); err != nil {
					return executed, fmt.Errorf("failed to remove %s %s: %w", s.Metadata().Name, s.Identifier(), err)
				}
				executed++
			}
		}
	}
	log.Debug("Applied removes", zap.Int("count", len(plan.Removes)))

	return executed, nil
}

// placeInTree sets the parent's generated id and the depth of a subject whose
// entity references itself. Roots get level 0; depths are only known for
// parents inserted earlier in the same plan.
func placeInTree(s *subject.Subject, inserted map[*value.Record]*subject.Subject) {
	rel := s.Metadata().TreeParent()
	if rel == nil || !s.HasDesiredEntity() {
		return
	}
	v := s.DesiredEntity().Value(rel.PropertyName)
	switch {
	case v.IsNullish():
		level := 0
		s.TreeLevel = &level
	case v.IsObject():
		parent, ok := inserted[v.Record()]
		if !ok {
			return
		}
		s.ParentGeneratedID = parent.NewlyGeneratedID
		if parent.TreeLevel != nil {
			level := *parent.TreeLevel + 1
			s.TreeLevel = &level
		}
	}
}
