package reconcile

import (
	"errors"
	"time"

	"entity-persister/core/normalize"
	"entity-persister/core/subject"
	"entity-persister/core/value"

	"go.uber.org/zap"
)

// DefaultLoadConcurrency bounds concurrent snapshot loads when
// Config.LoadConcurrency is not set.
const DefaultLoadConcurrency = 8

// ErrUnknownEntity is returned for entity names missing from the registry.
var ErrUnknownEntity = errors.New("unknown entity")

// Config configures a unit of work.
type Config struct {
	// LoadConcurrency bounds the number of snapshots fetched at once.
	LoadConcurrency int

	// Normalizer is shared by every subject of the unit of work.
	// If nil, a normalizer using time.Local is created.
	Normalizer *normalize.Normalizer

	// Logger receives debug output for every stage. If nil, logging is disabled.
	Logger *zap.Logger

	// Clock stamps subject creation times. Defaults to time.Now.
	Clock func() time.Time
}

// RelationUpdate is an inverse-side relation write scheduled by Owner.
type RelationUpdate struct {
	Owner *subject.Subject
	subject.RelationUpdate
}

// JunctionOperation is a set of join table rows to insert or remove for Owner.
type JunctionOperation struct {
	Owner *subject.Subject
	subject.Junction
}

// Plan lists the operations of a unit of work in execution order.
type Plan struct {
	Inserts         []*subject.Subject
	Updates         []*subject.Subject
	RelationUpdates []RelationUpdate
	JunctionInserts []JunctionOperation
	JunctionRemoves []JunctionOperation
	Removes         []*subject.Subject

	// Summary provides aggregate counts.
	Summary PlanSummary
}

// PlanSummary provides aggregate statistics for a plan.
type PlanSummary struct {
	// Subjects is the number of subjects tracked by the unit of work.
	Subjects int `json:"subjects"`

	Inserts         int `json:"inserts"`
	Updates         int `json:"updates"`
	RelationUpdates int `json:"relation_updates"`
	JunctionInserts int `json:"junction_inserts"`
	JunctionRemoves int `json:"junction_removes"`
	Removes         int `json:"removes"`
}

// Total returns the number of planned operations.
func (s PlanSummary) Total() int {
	return s.Inserts + s.Updates + s.RelationUpdates + s.JunctionInserts + s.JunctionRemoves + s.Removes
}

// ActionType names a planned operation.
type ActionType string

const (
	ActionInsert         ActionType = "insert"
	ActionUpdate         ActionType = "update"
	ActionRelationUpdate ActionType = "relation_update"
	ActionJunctionInsert ActionType = "junction_insert"
	ActionJunctionRemove ActionType = "junction_remove"
	ActionRemove         ActionType = "remove"
)

// Action is a serializable description of one planned operation.
type Action struct {
	// Type specifies the operation.
	Type ActionType `json:"type"`

	// Entity is the entity name the operation is applied to.
	Entity string `json:"entity"`

	// Subject is the subject ID for cross-referencing log lines.
	Subject string `json:"subject"`

	// Identifier is the entity identifier, null for rows not inserted yet.
	Identifier value.Value `json:"identifier"`

	// Columns lists changed columns and relations for updates, or the relation
	// name for relation and junction operations.
	Columns []string `json:"columns,omitempty"`

	// Related lists the related identifiers known at planning time.
	Related []value.Value `json:"related,omitempty"`
}

// Options controls plan execution.
type Options struct {
	// DryRun prevents execution of any operation if true.
	DryRun bool

	// Logger receives debug output for every stage. If nil, logging is disabled.
	Logger *zap.Logger
}
