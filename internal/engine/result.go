package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"snapstate/internal/prereq"
	"snapstate/internal/processor"
)

// Operation names the two directions a template can be run in.
type Operation string

const (
	OperationBackup  Operation = "Backup"
	OperationRestore Operation = "Restore"
)

// IsValid reports whether the operation is a known value.
func (o Operation) IsValid() bool {
	return o == OperationBackup || o == OperationRestore
}

// State is a stage in an operation's lifecycle.
type State string

const (
	StateLoaded               State = "Loaded"
	StatePrerequisitesChecked State = "PrerequisitesChecked"
	StateProcessing           State = "Processing"
	StateCompleted            State = "Completed"
	StateAborted              State = "Aborted"
)

// canTransition reports whether moving from s to the given state is a legal
// lifecycle step. Aborted is reachable from every non-terminal state.
func (s State) canTransition(to State) bool {
	if to == StateAborted {
		return s != StateCompleted && s != StateAborted
	}
	switch s {
	case "":
		return to == StateLoaded
	case StateLoaded:
		return to == StatePrerequisitesChecked
	case StatePrerequisitesChecked:
		return to == StateProcessing
	case StateProcessing:
		return to == StateCompleted
	default:
		return false
	}
}

// FailureKind classifies an item failure for reporting.
type FailureKind string

const (
	KindPath       FailureKind = "path"
	KindCapture    FailureKind = "capture"
	KindApply      FailureKind = "apply"
	KindDecryption FailureKind = "decryption"
)

// ItemFailure describes one failed item with enough detail to diagnose
// without re-running the operation.
type ItemFailure struct {
	Item     string
	Category processor.Category
	Kind     FailureKind
	Err      string
}

// OperationResult is the aggregate outcome of one Run.
type OperationResult struct {
	OperationID    uuid.UUID
	Operation      Operation
	State          State
	ItemsProcessed int
	ItemsSkipped   int
	ItemsFailed    []ItemFailure
	Artifacts      int
	Unmet          []prereq.UnmetPrerequisite
	Message        string
	StartedAt      time.Time
	FinishedAt     time.Time
}

// transition advances the result's lifecycle state, rejecting illegal steps.
func (r *OperationResult) transition(to State) error {
	if !r.State.canTransition(to) {
		return fmt.Errorf("invalid state transition: %s -> %s", r.State, to)
	}
	r.State = to
	return nil
}

// Succeeded reports whether the run completed without any item failures.
func (r *OperationResult) Succeeded() bool {
	return r.State == StateCompleted && len(r.ItemsFailed) == 0
}
