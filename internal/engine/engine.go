// Package engine orchestrates a single template operation: loading, gating,
// and per-item processing, aggregating the outcome into an OperationResult.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"snapstate/internal/config"
	"snapstate/internal/kvstore"
	"snapstate/internal/prereq"
	"snapstate/internal/processor"
	"snapstate/internal/statefiles"
	"snapstate/internal/template"
	"snapstate/pkg/cmdexec"
	"snapstate/pkg/crypto"
	"snapstate/pkg/log"
)

// Request describes one operation to run.
type Request struct {
	TemplatePath string
	Operation    Operation
	StateDir     string
	Passphrase   string
}

// Engine runs template operations. A single Engine may run multiple
// independent operations concurrently as long as their state directories are
// disjoint; the encryption session is the only shared resource and guards
// itself.
type Engine struct {
	cfg     *config.Config
	runner  cmdexec.Runner
	store   kvstore.Store
	session *crypto.Session
}

// New creates an Engine.
func New(cfg *config.Config, runner cmdexec.Runner, store kvstore.Store, session *crypto.Session) *Engine {
	return &Engine{cfg: cfg, runner: runner, store: store, session: session}
}

// workItem pairs an item's identity with its bound processor.
type workItem struct {
	name      string
	category  processor.Category
	action    template.Action
	statePath string
	proc      processor.Processor
	pathErr   error
}

// Run executes the operation described by req. The returned result is always
// populated; the error is non-nil exactly when the run ended in Aborted.
// Per-item failures do not abort: the run still ends Completed with a
// non-empty failure list.
func (e *Engine) Run(ctx context.Context, req Request) (*OperationResult, error) {
	result := &OperationResult{
		OperationID: uuid.New(),
		Operation:   req.Operation,
		StartedAt:   time.Now().UTC(),
	}

	if !req.Operation.IsValid() {
		return e.abort(result, fmt.Errorf("invalid operation %q", string(req.Operation)))
	}
	if req.StateDir == "" {
		return e.abort(result, fmt.Errorf("state files directory is required"))
	}

	log.Info("Starting operation", "operation", string(req.Operation), "template", req.TemplatePath, "operation_id", result.OperationID.String())

	desc, err := template.Load(req.TemplatePath)
	if err != nil {
		return e.abort(result, err)
	}
	result.transition(StateLoaded)
	log.Info("Template loaded", "template", desc.Metadata.Name, "version", desc.Metadata.Version, "items", desc.ItemCount())

	prereqResult := prereq.NewEvaluator(e.runner, e.store).Evaluate(ctx, desc.Prerequisites, string(req.Operation))
	result.Unmet = prereqResult.Unmet
	result.transition(StatePrerequisitesChecked)

	if !prereqResult.Proceed {
		msg := fmt.Sprintf("Prerequisites not met for %s operation. Aborting.", string(req.Operation))
		result.Message = msg
		log.Error(msg)
		result.transition(StateAborted)
		result.FinishedAt = time.Now().UTC()
		return result, errors.New(msg)
	}

	// Nothing may touch the state root until the prerequisite gate passes.
	if err := e.checkStateRoot(req); err != nil {
		return e.abort(result, err)
	}

	result.transition(StateProcessing)

	items := e.buildWorkList(desc, req)
	for _, item := range items {
		// Cancellation is cooperative and checked between items.
		if err := ctx.Err(); err != nil {
			return e.abort(result, fmt.Errorf("operation cancelled: %w", err))
		}

		e.processItem(ctx, req, item, result)

		// Item failures are recoverable; losing the state root is not.
		if err := e.stateRootAccessible(req.StateDir); err != nil {
			return e.abort(result, err)
		}
	}

	result.transition(StateCompleted)
	result.FinishedAt = time.Now().UTC()
	log.Info("Operation completed",
		"operation", string(req.Operation),
		"processed", result.ItemsProcessed,
		"skipped", result.ItemsSkipped,
		"failed", len(result.ItemsFailed),
		"artifacts", result.Artifacts)
	return result, nil
}

// abort finalizes the result in the Aborted state.
func (e *Engine) abort(result *OperationResult, err error) (*OperationResult, error) {
	result.transition(StateAborted)
	result.Message = err.Error()
	result.FinishedAt = time.Now().UTC()
	log.Error("Operation aborted", "operation", string(result.Operation), "error", err)
	return result, err
}

// checkStateRoot verifies the state-files root is usable before anything is
// written or read. Failures here are resource-level and fatal.
func (e *Engine) checkStateRoot(req Request) error {
	if req.Operation == OperationBackup {
		if err := os.MkdirAll(req.StateDir, 0755); err != nil {
			return fmt.Errorf("state files directory %s is not accessible: %w", req.StateDir, err)
		}
		return nil
	}
	info, err := os.Stat(req.StateDir)
	if err != nil {
		return fmt.Errorf("state files directory %s is not accessible: %w", req.StateDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("state files path %s is not a directory", req.StateDir)
	}
	return nil
}

// stateRootAccessible re-checks the root between items so a vanished or
// unreadable root aborts instead of producing one failure per remaining item.
func (e *Engine) stateRootAccessible(root string) error {
	if _, err := os.Stat(root); err != nil {
		return fmt.Errorf("state files directory %s became inaccessible: %w", root, err)
	}
	return nil
}

// buildWorkList assembles the operation's items in the fixed documented
// order: registry, then files, then applications. Later categories can rely
// on earlier categories' artifacts already existing.
func (e *Engine) buildWorkList(desc *template.TemplateDescriptor, req Request) []workItem {
	resolver := statefiles.NewResolver(req.StateDir)
	encryption := &processor.Encryption{Session: e.session, Passphrase: req.Passphrase}

	var items []workItem

	for _, item := range desc.Registry {
		statePath, err := resolver.Resolve(item.DynamicStatePath)
		items = append(items, workItem{
			name:      item.Name,
			category:  processor.CategoryRegistry,
			action:    item.Action,
			statePath: statePath,
			proc:      processor.NewRegistryProcessor(item, statePath, e.store),
			pathErr:   err,
		})
	}
	for _, item := range desc.Files {
		statePath, err := resolver.Resolve(item.DynamicStatePath)
		items = append(items, workItem{
			name:      item.Name,
			category:  processor.CategoryFile,
			action:    item.Action,
			statePath: statePath,
			proc:      processor.NewFileProcessor(item, statePath, encryption),
			pathErr:   err,
		})
	}
	for _, item := range desc.Applications {
		statePath, err := resolver.Resolve(item.DynamicStatePath)
		items = append(items, workItem{
			name:      item.Name,
			category:  processor.CategoryApplication,
			action:    item.Action,
			statePath: statePath,
			proc:      processor.NewApplicationProcessor(item, statePath, e.runner, e.cfg.PackageManager),
			pathErr:   err,
		})
	}

	return items
}

// actionMatches reports whether an item participates in the operation.
func actionMatches(action template.Action, op Operation) bool {
	if action == template.ActionSync {
		return true
	}
	if op == OperationBackup {
		return action == template.ActionBackup
	}
	return action == template.ActionRestore
}

// processItem runs one item through its processor and folds the outcome into
// the result.
func (e *Engine) processItem(ctx context.Context, req Request, item workItem, result *OperationResult) {
	if !actionMatches(item.action, req.Operation) {
		log.Debug("Item does not participate in operation, skipping", "item", item.name, "action", string(item.action), "operation", string(req.Operation))
		result.ItemsSkipped++
		return
	}

	if item.pathErr != nil {
		result.ItemsFailed = append(result.ItemsFailed, ItemFailure{
			Item:     item.name,
			Category: item.category,
			Kind:     KindPath,
			Err:      item.pathErr.Error(),
		})
		return
	}

	switch req.Operation {
	case OperationBackup:
		captured, err := item.proc.Capture(ctx)
		if err != nil {
			result.ItemsFailed = append(result.ItemsFailed, ItemFailure{
				Item:     item.name,
				Category: item.category,
				Kind:     KindCapture,
				Err:      err.Error(),
			})
			return
		}
		if !captured {
			result.ItemsSkipped++
			return
		}
		result.ItemsProcessed++
		result.Artifacts++

	case OperationRestore:
		if _, err := os.Stat(item.statePath); err != nil {
			if os.IsNotExist(err) {
				log.Debug("No captured state for item, skipping", "item", item.name)
				result.ItemsSkipped++
				return
			}
			result.ItemsFailed = append(result.ItemsFailed, ItemFailure{
				Item:     item.name,
				Category: item.category,
				Kind:     KindApply,
				Err:      err.Error(),
			})
			return
		}

		if err := item.proc.Apply(ctx); err != nil {
			kind := KindApply
			if errors.Is(err, crypto.ErrDecryptionFailed) {
				kind = KindDecryption
			}
			result.ItemsFailed = append(result.ItemsFailed, ItemFailure{
				Item:     item.name,
				Category: item.category,
				Kind:     kind,
				Err:      err.Error(),
			})
			return
		}
		result.ItemsProcessed++
		result.Artifacts++
	}
}
