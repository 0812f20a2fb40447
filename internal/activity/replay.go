package activity

import (
	"github.com/casetrail/casetrail/internal/datastore"
	"github.com/casetrail/casetrail/internal/errors"
)

// InvestigationState is the investigation and task state reconstructed from
// an activity sequence. Replaying the full sequence for an investigation
// reproduces the live rows exactly, which is what audits verify.
type InvestigationState struct {
	ID               string                `json:"id"`
	Title            string                `json:"title"`
	Description      string                `json:"description"`
	Status           string                `json:"status"`
	Priority         string                `json:"priority"`
	CreatedBy        string                `json:"created_by"`
	LeadInvestigator string                `json:"lead_investigator,omitempty"`
	Tasks            map[string]*TaskState `json:"tasks"`
	EvidenceCount    int                   `json:"evidence_count"`
	Members          map[string]string     `json:"members"` // user id -> role
}

// TaskState is the replayed state of one task.
type TaskState struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	Priority   string `json:"priority"`
	AssignedTo string `json:"assigned_to,omitempty"`
}

// Replay folds an investigation's activity sequence, oldest first, into
// current state. The first entry must be the creation snapshot.
func (l *Log) Replay(investigationID string) (*InvestigationState, error) {
	entries, err := l.store.ListActivities(investigationID, 0, 0)
	if err != nil {
		return nil, err
	}
	return ReplayEntries(investigationID, entries)
}

// ReplayEntries reduces an ordered activity sequence to state. Exposed
// separately so exports can replay an already-fetched sequence.
func ReplayEntries(investigationID string, entries []datastore.Activity) (*InvestigationState, error) {
	if len(entries) == 0 {
		return nil, errors.Newf("no activity recorded for investigation %s", investigationID).
			Component("activity").
			Category(errors.CategoryNotFound).
			Context("investigation_id", investigationID).
			Build()
	}
	first := entries[0]
	if first.ActivityType != TypeInvestigationCreated {
		return nil, errors.Newf("activity sequence does not start with creation snapshot").
			Component("activity").
			Category(errors.CategoryState).
			Context("investigation_id", investigationID).
			Context("first_type", first.ActivityType).
			Build()
	}

	state := &InvestigationState{
		ID:        investigationID,
		Title:     detailString(first.Details, "title"),
		Status:    detailString(first.Details, "status"),
		Priority:  detailString(first.Details, "priority"),
		CreatedBy: first.UserID,
		Tasks:     make(map[string]*TaskState),
		Members:   make(map[string]string),
	}
	if desc := detailString(first.Details, "description"); desc != "" {
		state.Description = desc
	}
	if lead := detailString(first.Details, "lead_investigator"); lead != "" {
		state.LeadInvestigator = lead
	}

	for i := 1; i < len(entries); i++ {
		entry := entries[i]
		switch entry.ActivityType {
		case TypeStatusChanged:
			state.Status = detailString(entry.Details, "to")
		case TypeInvestigationUpdated:
			applyChanges(entry.Details, func(field, to string) {
				switch field {
				case "title":
					state.Title = to
				case "description":
					state.Description = to
				case "priority":
					state.Priority = to
				case "lead_investigator":
					state.LeadInvestigator = to
				}
			})
		case TypeTaskCreated:
			taskID := detailString(entry.Details, "task_id")
			state.Tasks[taskID] = &TaskState{
				ID:         taskID,
				Title:      detailString(entry.Details, "title"),
				Status:     detailString(entry.Details, "status"),
				Priority:   detailString(entry.Details, "priority"),
				AssignedTo: detailString(entry.Details, "assigned_to"),
			}
		case TypeTaskStatusChanged:
			if task, ok := state.Tasks[detailString(entry.Details, "task_id")]; ok {
				task.Status = detailString(entry.Details, "to")
			}
		case TypeTaskUpdated:
			task, ok := state.Tasks[detailString(entry.Details, "task_id")]
			if !ok {
				continue
			}
			applyChanges(entry.Details, func(field, to string) {
				switch field {
				case "title":
					task.Title = to
				case "priority":
					task.Priority = to
				case "assigned_to":
					task.AssignedTo = to
				}
			})
		case TypeEvidenceCollected:
			state.EvidenceCount++
		case TypeCollaboratorJoined:
			state.Members[entry.UserID] = detailString(entry.Details, "role")
		case TypeCollaboratorLeft:
			delete(state.Members, entry.UserID)
		case TypeRoleChanged:
			if user := detailString(entry.Details, "user_id"); user != "" {
				state.Members[user] = detailString(entry.Details, "to")
			}
		}
	}
	return state, nil
}

// detailString reads a string detail, tolerating the map[string]any form
// details take after a JSON round trip through the store.
func detailString(details map[string]any, key string) string {
	if details == nil {
		return ""
	}
	if v, ok := details[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// applyChanges walks a "changes" detail of the form
// {field: {"from": old, "to": new}} and calls apply per field.
func applyChanges(details map[string]any, apply func(field, to string)) {
	raw, ok := details["changes"]
	if !ok {
		return
	}
	changes, ok := raw.(map[string]any)
	if !ok {
		return
	}
	for field, change := range changes {
		pair, ok := change.(map[string]any)
		if !ok {
			continue
		}
		if to, ok := pair["to"].(string); ok {
			apply(field, to)
		}
	}
}
