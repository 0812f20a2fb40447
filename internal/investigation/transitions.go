package investigation

import (
	"time"

	"github.com/casetrail/casetrail/internal/activity"
	"github.com/casetrail/casetrail/internal/auth"
	"github.com/casetrail/casetrail/internal/datastore"
	"github.com/casetrail/casetrail/internal/errors"
)

// transitionGraph is the directed graph of permitted status moves. The
// Active/Pending pair is the only two-way edge; Archived has no outgoing
// edges at all.
var transitionGraph = map[string][]string{
	datastore.InvestigationActive:    {datastore.InvestigationPending, datastore.InvestigationCompleted},
	datastore.InvestigationPending:   {datastore.InvestigationActive, datastore.InvestigationArchived},
	datastore.InvestigationCompleted: {datastore.InvestigationArchived},
	datastore.InvestigationArchived:  {},
}

// transitionAllowed reports whether the edge from → to exists.
func transitionAllowed(from, to string) bool {
	for _, target := range transitionGraph[from] {
		if target == to {
			return true
		}
	}
	return false
}

// isToggle reports whether the edge is the reversible Active/Pending pair.
func isToggle(from, to string) bool {
	return (from == datastore.InvestigationActive && to == datastore.InvestigationPending) ||
		(from == datastore.InvestigationPending && to == datastore.InvestigationActive)
}

// isLead reports whether the actor is the lead investigator or holds the
// lead role on the team. An investigation with neither denies lead-only
// operations to everyone.
func isLead(tx datastore.Interface, inv *datastore.Investigation, actor auth.Actor) (bool, error) {
	if inv.LeadInvestigator != nil && *inv.LeadInvestigator == actor.UserID {
		return true, nil
	}
	c, err := tx.GetCollaborator(inv.ID, actor.UserID)
	if err != nil {
		if errors.HasCategory(err, errors.CategoryNotFound) {
			return false, nil
		}
		return false, err
	}
	return c.Role == datastore.RoleLead, nil
}

// isMember reports whether the actor belongs to the investigation: a
// collaborator row, the lead investigator, or the creator.
func isMember(tx datastore.Interface, inv *datastore.Investigation, actor auth.Actor) (bool, error) {
	if inv.CreatedBy == actor.UserID {
		return true, nil
	}
	if inv.LeadInvestigator != nil && *inv.LeadInvestigator == actor.UserID {
		return true, nil
	}
	_, err := tx.GetCollaborator(inv.ID, actor.UserID)
	if err != nil {
		if errors.HasCategory(err, errors.CategoryNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Transition moves an investigation along the status graph. Any member may
// toggle Active and Pending; moving to Completed or Archived takes the lead
// investigator or a collaborator with the lead role. The status write and
// its audit row commit together; a concurrent transition on the same
// version fails with concurrent-modification.
func (s *Service) Transition(actor auth.Actor, id, target string) (inv *datastore.Investigation, err error) {
	defer func() { s.metrics.RecordMutation("investigation_transition", err) }()

	if err = validateActor(actor); err != nil {
		return nil, err
	}
	if !datastore.ValidInvestigationStatus(target) {
		return nil, errors.Newf("invalid investigation status: %s", target).
			Component("investigation").
			Category(errors.CategoryValidation).
			Context("field", "status").
			Build()
	}

	err = s.store.Transaction(func(tx datastore.Interface) error {
		current, err := tx.GetInvestigation(id)
		if err != nil {
			return err
		}
		if !transitionAllowed(current.Status, target) {
			return errors.Newf("transition %s -> %s is not permitted", current.Status, target).
				Component("investigation").
				Category(errors.CategoryInvalidTransition).
				Context("investigation_id", id).
				Context("from", current.Status).
				Context("to", target).
				Build()
		}

		if isToggle(current.Status, target) {
			member, err := isMember(tx, current, actor)
			if err != nil {
				return err
			}
			if !member {
				return permissionDenied(actor, id, "transition")
			}
		} else {
			lead, err := isLead(tx, current, actor)
			if err != nil {
				return err
			}
			if !lead {
				return permissionDenied(actor, id, "transition")
			}
		}

		now := time.Now().UTC()
		rows, err := tx.UpdateInvestigationGuarded(id, current.UpdatedAt, map[string]any{
			"status":     target,
			"updated_at": now,
		})
		if err != nil {
			return err
		}
		if rows == 0 {
			return concurrentModification("investigation", id)
		}

		if err := activity.Append(tx, id, actor.UserID, activity.TypeStatusChanged,
			"status changed from "+current.Status+" to "+target, map[string]any{
				"from": current.Status,
				"to":   target,
			}); err != nil {
			return err
		}
		inv, err = tx.GetInvestigation(id)
		return err
	})
	if err != nil {
		return nil, err
	}
	getLogger().Info("investigation transitioned", "id", id, "to", target, "actor", actor.UserID)
	return inv, nil
}
