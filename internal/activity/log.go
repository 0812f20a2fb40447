// Package activity maintains the append-only audit trail. Append is only
// ever called by the other services inside their own transactions, so an
// activity row and the state change it describes commit atomically or not
// at all. Reads return the causal sequence for an investigation; Replay
// folds that sequence back into current state for audits.
package activity

import (
	"log/slog"
	"sync"
	"time"

	"github.com/casetrail/casetrail/internal/datastore"
	"github.com/casetrail/casetrail/internal/errors"
	"github.com/casetrail/casetrail/internal/logging"
)

// Activity types written by the engine.
const (
	TypeInvestigationCreated = "investigation_created"
	TypeInvestigationUpdated = "investigation_updated"
	TypeStatusChanged        = "status_changed"
	TypeTaskCreated          = "task_created"
	TypeTaskUpdated          = "task_updated"
	TypeTaskStatusChanged    = "task_status_changed"
	TypeEvidenceCollected    = "evidence_collected"
	TypeCollaboratorJoined   = "collaborator_joined"
	TypeCollaboratorLeft     = "collaborator_left"
	TypeRoleChanged          = "role_changed"
)

// detailSchemas names the detail keys each activity type must carry. The
// details payload itself stays opaque to the store; validation happens here
// at the write edge so replay can rely on the keys being present.
var detailSchemas = map[string][]string{
	TypeInvestigationCreated: {"title", "status", "priority"},
	TypeInvestigationUpdated: {"changes"},
	TypeStatusChanged:        {"from", "to"},
	TypeTaskCreated:          {"task_id", "title", "status", "priority"},
	TypeTaskUpdated:          {"task_id", "changes"},
	TypeTaskStatusChanged:    {"task_id", "from", "to"},
	TypeEvidenceCollected:    {"evidence_id", "evidence_type", "source"},
	TypeCollaboratorJoined:   {"role"},
	TypeCollaboratorLeft:     {},
	TypeRoleChanged:          {"from", "to"},
}

var (
	activityLogger *slog.Logger
	loggerOnce     sync.Once
	levelVar       = new(slog.LevelVar)
)

func getLogger() *slog.Logger {
	loggerOnce.Do(func() {
		levelVar.Set(slog.LevelInfo)
		var err error
		activityLogger, _, err = logging.NewFileLogger("logs/activity.log", "activity", levelVar)
		if err != nil {
			activityLogger = logging.ForService("activity")
			if activityLogger == nil {
				activityLogger = slog.Default().With("service", "activity")
			}
		}
	})
	return activityLogger
}

// Append writes one audit row through tx. Callers pass the Interface bound
// to their open transaction; Append never opens its own.
func Append(tx datastore.Interface, investigationID, userID, activityType, description string, details map[string]any) error {
	required, known := detailSchemas[activityType]
	if !known {
		return errors.Newf("unknown activity type: %s", activityType).
			Component("activity").
			Category(errors.CategoryValidation).
			Context("activity_type", activityType).
			Build()
	}
	for _, key := range required {
		if _, ok := details[key]; !ok {
			return errors.Newf("activity details missing required key %q", key).
				Component("activity").
				Category(errors.CategoryValidation).
				Context("activity_type", activityType).
				Context("missing_key", key).
				Build()
		}
	}

	row := &datastore.Activity{
		ID:              datastore.NewID(),
		InvestigationID: investigationID,
		UserID:          userID,
		ActivityType:    activityType,
		Description:     description,
		CreatedAt:       time.Now().UTC(),
		Details:         details,
	}
	if err := tx.CreateActivity(row); err != nil {
		return err
	}
	getLogger().Debug("activity appended",
		"investigation_id", investigationID,
		"activity_type", activityType,
		"user_id", userID)
	return nil
}

// Log provides read access to the audit trail.
type Log struct {
	store datastore.Interface
}

// NewLog creates a Log backed by the given store.
func NewLog(store datastore.Interface) *Log {
	return &Log{store: store}
}

// List returns the activity sequence for an investigation, oldest first.
func (l *Log) List(investigationID string, limit, offset int) ([]datastore.Activity, error) {
	return l.store.ListActivities(investigationID, limit, offset)
}

// Count returns the number of activity rows for an investigation.
func (l *Log) Count(investigationID string) (int64, error) {
	return l.store.CountActivities(investigationID)
}
