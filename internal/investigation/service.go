// Package investigation implements the lifecycle manager for investigations
// and their tasks: creation, updates, the status transition graph, and
// optimistic concurrency. Every successful mutation appends exactly one
// activity row in the same transaction as the state change.
package investigation

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/casetrail/casetrail/internal/activity"
	"github.com/casetrail/casetrail/internal/auth"
	"github.com/casetrail/casetrail/internal/datastore"
	"github.com/casetrail/casetrail/internal/errors"
	"github.com/casetrail/casetrail/internal/logging"
	"github.com/casetrail/casetrail/internal/observability"
)

var (
	serviceLogger *slog.Logger
	loggerOnce    sync.Once
	levelVar      = new(slog.LevelVar)
)

func getLogger() *slog.Logger {
	loggerOnce.Do(func() {
		levelVar.Set(slog.LevelInfo)
		var err error
		serviceLogger, _, err = logging.NewFileLogger("logs/investigation.log", "investigation", levelVar)
		if err != nil {
			serviceLogger = logging.ForService("investigation")
			if serviceLogger == nil {
				serviceLogger = slog.Default().With("service", "investigation")
			}
		}
	})
	return serviceLogger
}

// Service is the lifecycle manager. All writes go through the store's
// Transaction so the state change and its audit row commit atomically.
type Service struct {
	store   datastore.Interface
	metrics *observability.Metrics // nil disables metrics
}

// NewService creates a lifecycle manager on top of the given store.
func NewService(store datastore.Interface, metrics *observability.Metrics) *Service {
	return &Service{store: store, metrics: metrics}
}

// UpdatePatch carries the fields an update may change, plus the version
// token the caller read. Nil fields are left untouched. Status is not
// patchable; status moves only through Transition.
type UpdatePatch struct {
	Title            *string
	Description      *string
	Priority         *string
	LeadInvestigator *string
	Metadata         map[string]any
	// UpdatedAt is the version token from the caller's last read. A
	// mismatch against the stored value fails with concurrent-modification.
	UpdatedAt time.Time
}

// Create opens a new investigation. Title is required; priority defaults to
// Medium and status to Active. The creator becomes lead investigator until
// reassigned.
func (s *Service) Create(actor auth.Actor, title, description, priority string) (inv *datastore.Investigation, err error) {
	defer func() { s.metrics.RecordMutation("investigation_create", err) }()

	if err = validateActor(actor); err != nil {
		return nil, err
	}
	if title == "" {
		return nil, errors.Newf("investigation title must not be empty").
			Component("investigation").
			Category(errors.CategoryValidation).
			Context("field", "title").
			Build()
	}
	if priority == "" {
		priority = datastore.PriorityMedium
	}
	if !datastore.ValidPriority(priority) {
		return nil, errors.Newf("invalid priority: %s", priority).
			Component("investigation").
			Category(errors.CategoryValidation).
			Context("field", "priority").
			Build()
	}

	now := time.Now().UTC()
	lead := actor.UserID
	inv = &datastore.Investigation{
		ID:               datastore.NewID(),
		Title:            title,
		Description:      description,
		Status:           datastore.InvestigationActive,
		Priority:         priority,
		CreatedAt:        now,
		UpdatedAt:        now,
		CreatedBy:        actor.UserID,
		LeadInvestigator: &lead,
	}

	err = s.store.Transaction(func(tx datastore.Interface) error {
		if err := tx.CreateInvestigation(inv); err != nil {
			return err
		}
		return activity.Append(tx, inv.ID, actor.UserID, activity.TypeInvestigationCreated,
			"investigation created: "+title, map[string]any{
				"title":             title,
				"description":       description,
				"status":            inv.Status,
				"priority":          priority,
				"lead_investigator": lead,
			})
	})
	if err != nil {
		return nil, err
	}
	getLogger().Info("investigation created", "id", inv.ID, "created_by", actor.UserID)
	return inv, nil
}

// Get fetches one investigation.
func (s *Service) Get(id string) (*datastore.Investigation, error) {
	return s.store.GetInvestigation(id)
}

// List returns investigations matching the filter.
func (s *Service) List(filter *datastore.InvestigationFilter) ([]datastore.Investigation, error) {
	return s.store.ListInvestigations(filter)
}

// Update applies a field patch under optimistic concurrency. A stale
// version token fails with concurrent-modification and the caller must
// re-read and retry; the engine never merges silently.
func (s *Service) Update(actor auth.Actor, id string, patch *UpdatePatch) (inv *datastore.Investigation, err error) {
	defer func() { s.metrics.RecordMutation("investigation_update", err) }()

	if err = validateActor(actor); err != nil {
		return nil, err
	}
	if patch == nil || patch.UpdatedAt.IsZero() {
		return nil, errors.Newf("update requires the caller's version token").
			Component("investigation").
			Category(errors.CategoryValidation).
			Context("field", "updated_at").
			Build()
	}
	if patch.Priority != nil && !datastore.ValidPriority(*patch.Priority) {
		return nil, errors.Newf("invalid priority: %s", *patch.Priority).
			Component("investigation").
			Category(errors.CategoryValidation).
			Context("field", "priority").
			Build()
	}
	if patch.Title != nil && *patch.Title == "" {
		return nil, errors.Newf("investigation title must not be empty").
			Component("investigation").
			Category(errors.CategoryValidation).
			Context("field", "title").
			Build()
	}
	// The guarded update writes a column map, which bypasses the struct
	// serializer; metadata goes in pre-marshalled.
	var metadataJSON *string
	if patch.Metadata != nil {
		raw, mErr := json.Marshal(patch.Metadata)
		if mErr != nil {
			return nil, errors.New(mErr).
				Component("investigation").
				Category(errors.CategoryValidation).
				Context("field", "metadata").
				Build()
		}
		encoded := string(raw)
		metadataJSON = &encoded
	}

	err = s.store.Transaction(func(tx datastore.Interface) error {
		current, err := tx.GetInvestigation(id)
		if err != nil {
			return err
		}
		if current.Status == datastore.InvestigationArchived {
			return archivedError(id)
		}

		now := time.Now().UTC()
		updates := map[string]any{"updated_at": now}
		changes := map[string]any{}
		applyField(updates, changes, "title", current.Title, patch.Title)
		applyField(updates, changes, "description", current.Description, patch.Description)
		applyField(updates, changes, "priority", current.Priority, patch.Priority)
		if patch.LeadInvestigator != nil {
			from := ""
			if current.LeadInvestigator != nil {
				from = *current.LeadInvestigator
			}
			if from != *patch.LeadInvestigator {
				updates["lead_investigator"] = *patch.LeadInvestigator
				changes["lead_investigator"] = map[string]any{"from": from, "to": *patch.LeadInvestigator}
			}
		}
		if metadataJSON != nil {
			updates["metadata"] = *metadataJSON
		}

		if len(changes) == 0 && patch.Metadata == nil {
			// Nothing would change; skip the write rather than burning a
			// version bump with no audit entry.
			inv = current
			return nil
		}
		rows, err := tx.UpdateInvestigationGuarded(id, patch.UpdatedAt, updates)
		if err != nil {
			return err
		}
		if rows == 0 {
			return concurrentModification("investigation", id)
		}
		if err := activity.Append(tx, id, actor.UserID, activity.TypeInvestigationUpdated,
			"investigation updated", map[string]any{"changes": changes}); err != nil {
			return err
		}
		inv, err = tx.GetInvestigation(id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// Delete removes an investigation and everything it owns. Lead only.
func (s *Service) Delete(actor auth.Actor, id string) (err error) {
	defer func() { s.metrics.RecordMutation("investigation_delete", err) }()

	if err = validateActor(actor); err != nil {
		return err
	}
	return s.store.Transaction(func(tx datastore.Interface) error {
		inv, err := tx.GetInvestigation(id)
		if err != nil {
			return err
		}
		lead, err := isLead(tx, inv, actor)
		if err != nil {
			return err
		}
		if !lead {
			return permissionDenied(actor, id, "delete")
		}
		return tx.DeleteInvestigation(id)
	})
}

// validateActor rejects operations without a verified identity.
func validateActor(actor auth.Actor) error {
	if !actor.Valid() {
		return errors.Newf("operation requires an authenticated actor").
			Component("investigation").
			Category(errors.CategoryPermissionDenied).
			Build()
	}
	return nil
}

// applyField records a changed string field into updates and changes.
func applyField(updates, changes map[string]any, field, from string, to *string) {
	if to == nil || *to == from {
		return
	}
	updates[field] = *to
	changes[field] = map[string]any{"from": from, "to": *to}
}

func concurrentModification(entity, id string) error {
	return errors.Newf("%s %s was modified concurrently; re-read and retry", entity, id).
		Component("investigation").
		Category(errors.CategoryConcurrentModification).
		Context("entity", entity).
		Context("id", id).
		Build()
}

func archivedError(id string) error {
	return errors.Newf("investigation %s is archived", id).
		Component("investigation").
		Category(errors.CategoryInvestigationArchived).
		Context("investigation_id", id).
		Build()
}

func permissionDenied(actor auth.Actor, id, operation string) error {
	return errors.Newf("user %s is not permitted to %s investigation %s", actor.UserID, operation, id).
		Component("investigation").
		Category(errors.CategoryPermissionDenied).
		Context("user_id", actor.UserID).
		Context("investigation_id", id).
		Context("operation", operation).
		Build()
}
