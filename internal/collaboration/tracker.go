// Package collaboration tracks investigation membership, roles and live
// presence. Membership changes are audited; presence heartbeats are not,
// so high-frequency heartbeats cannot flood the activity log.
package collaboration

import (
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
	trackerLogger *slog.Logger
	loggerOnce    sync.Once
	levelVar      = new(slog.LevelVar)
)

func getLogger() *slog.Logger {
	loggerOnce.Do(func() {
		levelVar.Set(slog.LevelInfo)
		var err error
		trackerLogger, _, err = logging.NewFileLogger("logs/collaboration.log", "collaboration", levelVar)
		if err != nil {
			trackerLogger = logging.ForService("collaboration")
			if trackerLogger == nil {
				trackerLogger = slog.Default().With("service", "collaboration")
			}
		}
	})
	return trackerLogger
}

// Tracker manages membership and presence.
type Tracker struct {
	store   datastore.Interface
	metrics *observability.Metrics
}

// NewTracker creates a Tracker on top of the given store.
func NewTracker(store datastore.Interface, metrics *observability.Metrics) *Tracker {
	return &Tracker{store: store, metrics: metrics}
}

// Join adds userID to an investigation's team. An empty userID joins the
// actor themselves. The first member of an empty team becomes lead unless
// an explicit role is requested; later joiners default to analyst.
func (t *Tracker) Join(actor auth.Actor, investigationID, userID, role string) (c *datastore.Collaborator, err error) {
	defer func() { t.metrics.RecordMutation("collaborator_join", err) }()

	if !actor.Valid() {
		return nil, notAuthenticated()
	}
	if userID == "" {
		userID = actor.UserID
	}
	if role != "" && !datastore.ValidRole(role) {
		return nil, errors.Newf("invalid role: %s", role).
			Component("collaboration").
			Category(errors.CategoryValidation).
			Context("field", "role").
			Build()
	}

	err = t.store.Transaction(func(tx datastore.Interface) error {
		if _, err := tx.GetInvestigation(investigationID); err != nil {
			return err
		}
		if _, err := tx.GetCollaborator(investigationID, userID); err == nil {
			return errors.Newf("user %s is already a member of investigation %s", userID, investigationID).
				Component("collaboration").
				Category(errors.CategoryAlreadyMember).
				Context("investigation_id", investigationID).
				Context("user_id", userID).
				Build()
		} else if !errors.HasCategory(err, errors.CategoryNotFound) {
			return err
		}

		assigned := role
		if assigned == "" {
			count, err := tx.CountCollaborators(investigationID)
			if err != nil {
				return err
			}
			if count == 0 {
				assigned = datastore.RoleLead
			} else {
				assigned = datastore.RoleAnalyst
			}
		}

		now := time.Now().UTC()
		c = &datastore.Collaborator{
			ID:              datastore.NewID(),
			InvestigationID: investigationID,
			UserID:          userID,
			Role:            assigned,
			JoinedAt:        now,
			LastActive:      now,
		}
		if err := tx.CreateCollaborator(c); err != nil {
			return err
		}
		details := map[string]any{"role": assigned}
		if userID != actor.UserID {
			details["added_by"] = actor.UserID
		}
		return activity.Append(tx, investigationID, userID, activity.TypeCollaboratorJoined,
			"joined investigation as "+assigned, details)
	})
	if err != nil {
		return nil, err
	}
	getLogger().Info("collaborator joined", "investigation_id", investigationID, "user_id", userID, "role", c.Role)
	return c, nil
}

// Leave removes userID from an investigation's team.
func (t *Tracker) Leave(actor auth.Actor, investigationID, userID string) (err error) {
	defer func() { t.metrics.RecordMutation("collaborator_leave", err) }()

	if !actor.Valid() {
		return notAuthenticated()
	}
	if userID == "" {
		userID = actor.UserID
	}
	return t.store.Transaction(func(tx datastore.Interface) error {
		if _, err := tx.GetCollaborator(investigationID, userID); err != nil {
			if errors.HasCategory(err, errors.CategoryNotFound) {
				return notAMember(investigationID, userID)
			}
			return err
		}
		if err := tx.DeleteCollaborator(investigationID, userID); err != nil {
			return err
		}
		return activity.Append(tx, investigationID, userID, activity.TypeCollaboratorLeft,
			"left investigation", map[string]any{})
	})
}

// UpdateRole changes a member's role. Only the investigation lead may do
// this, and the change is audited.
func (t *Tracker) UpdateRole(actor auth.Actor, investigationID, userID, role string) (err error) {
	defer func() { t.metrics.RecordMutation("collaborator_role", err) }()

	if !actor.Valid() {
		return notAuthenticated()
	}
	if !datastore.ValidRole(role) {
		return errors.Newf("invalid role: %s", role).
			Component("collaboration").
			Category(errors.CategoryValidation).
			Context("field", "role").
			Build()
	}
	return t.store.Transaction(func(tx datastore.Interface) error {
		inv, err := tx.GetInvestigation(investigationID)
		if err != nil {
			return err
		}
		allowed := inv.LeadInvestigator != nil && *inv.LeadInvestigator == actor.UserID
		if !allowed {
			if c, err := tx.GetCollaborator(investigationID, actor.UserID); err == nil {
				allowed = c.Role == datastore.RoleLead
			} else if !errors.HasCategory(err, errors.CategoryNotFound) {
				return err
			}
		}
		if !allowed {
			return errors.Newf("user %s is not permitted to change roles on investigation %s", actor.UserID, investigationID).
				Component("collaboration").
				Category(errors.CategoryPermissionDenied).
				Context("investigation_id", investigationID).
				Context("user_id", actor.UserID).
				Build()
		}

		current, err := tx.GetCollaborator(investigationID, userID)
		if err != nil {
			if errors.HasCategory(err, errors.CategoryNotFound) {
				return notAMember(investigationID, userID)
			}
			return err
		}
		if current.Role == role {
			return nil
		}
		if err := tx.UpdateCollaboratorRole(investigationID, userID, role); err != nil {
			return err
		}
		return activity.Append(tx, investigationID, actor.UserID, activity.TypeRoleChanged,
			"role changed from "+current.Role+" to "+role, map[string]any{
				"user_id": userID,
				"from":    current.Role,
				"to":      role,
			})
	})
}

// ListMembers returns an investigation's team in join order.
func (t *Tracker) ListMembers(investigationID string) ([]datastore.Collaborator, error) {
	return t.store.ListCollaborators(investigationID)
}

// Heartbeat upserts the caller's presence row. Supplying an investigation
// id asserts focus on it and requires membership. Heartbeats never write
// activity rows.
func (t *Tracker) Heartbeat(actor auth.Actor, status, investigationID, location string) (err error) {
	if !actor.Valid() {
		return notAuthenticated()
	}
	if !datastore.ValidPresenceStatus(status) {
		return errors.Newf("invalid presence status: %s", status).
			Component("collaboration").
			Category(errors.CategoryValidation).
			Context("field", "status").
			Build()
	}

	p := &datastore.Presence{
		UserID:          actor.UserID,
		Status:          status,
		LastSeen:        time.Now().UTC(),
		CurrentLocation: location,
	}
	if investigationID != "" {
		if _, err := t.store.GetCollaborator(investigationID, actor.UserID); err != nil {
			if errors.HasCategory(err, errors.CategoryNotFound) {
				return notAMember(investigationID, actor.UserID)
			}
			return err
		}
		focus := investigationID
		p.InvestigationID = &focus
	}
	return t.store.UpsertPresence(p)
}

// GetPresence returns one user's presence row.
func (t *Tracker) GetPresence(userID string) (*datastore.Presence, error) {
	return t.store.GetPresence(userID)
}

// ListPresence returns all presence rows.
func (t *Tracker) ListPresence() ([]datastore.Presence, error) {
	return t.store.ListPresence()
}

// SweepStalePresence marks users offline whose last_seen predates now
// minus staleThreshold. The store re-checks last_seen at write time, so a
// concurrent heartbeat wins over the sweep. No activity rows are written;
// going stale is not a user-initiated event.
func (t *Tracker) SweepStalePresence(now time.Time, staleThreshold time.Duration) (int64, error) {
	start := time.Now()
	swept, err := t.store.MarkStalePresenceOffline(now.Add(-staleThreshold))
	if err != nil {
		return 0, err
	}
	if t.metrics != nil {
		t.metrics.PresenceSweepDuration.Observe(time.Since(start).Seconds())
		t.metrics.PresenceSweptRowsTotal.Add(float64(swept))
	}
	if swept > 0 {
		getLogger().Info("stale presence swept", "rows", swept)
	}
	return swept, nil
}

func notAuthenticated() error {
	return errors.Newf("operation requires an authenticated actor").
		Component("collaboration").
		Category(errors.CategoryPermissionDenied).
		Build()
}

func notAMember(investigationID, userID string) error {
	return errors.Newf("user %s has not joined investigation %s", userID, investigationID).
		Component("collaboration").
		Category(errors.CategoryNotAMember).
		Context("investigation_id", investigationID).
		Context("user_id", userID).
		Build()
}
