// model.go this code defines the data model for the engine
package datastore

import "time"

// Investigation status values. Transitions between them are enforced by the
// investigation service, not by the store.
const (
	InvestigationActive    = "Active"
	InvestigationPending   = "Pending"
	InvestigationCompleted = "Completed"
	InvestigationArchived  = "Archived"
)

// Task status values.
const (
	TaskOpen       = "Open"
	TaskInProgress = "InProgress"
	TaskReview     = "Review"
	TaskCompleted  = "Completed"
)

// Priority values shared by investigations and tasks.
const (
	PriorityLow      = "Low"
	PriorityMedium   = "Medium"
	PriorityHigh     = "High"
	PriorityCritical = "Critical"
)

// Collaborator roles.
const (
	RoleLead     = "lead"
	RoleAnalyst  = "analyst"
	RoleObserver = "observer"
)

// Presence status values.
const (
	PresenceOnline  = "online"
	PresenceAway    = "away"
	PresenceBusy    = "busy"
	PresenceOffline = "offline"
)

// Investigation is the top-level case record. It owns tasks, evidence,
// activity and membership; deleting it cascades to all of them and clears
// any presence rows focused on it.
type Investigation struct {
	ID               string    `gorm:"primaryKey;size:32"`
	Title            string    `gorm:"size:255;not null"`
	Description      string    `gorm:"type:text"`
	Status           string    `gorm:"size:20;not null;index:idx_investigations_status"`
	Priority         string    `gorm:"size:20;not null;index:idx_investigations_priority"`
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
	CreatedBy        string    `gorm:"size:64;not null"`
	LeadInvestigator *string   `gorm:"size:64"`
	Metadata         map[string]any `gorm:"serializer:json"`

	Tasks         []Task         `gorm:"foreignKey:InvestigationID;constraint:OnDelete:CASCADE"`
	Evidence      []EvidenceItem `gorm:"foreignKey:InvestigationID;constraint:OnDelete:CASCADE"`
	Activities    []Activity     `gorm:"foreignKey:InvestigationID;constraint:OnDelete:CASCADE"`
	Collaborators []Collaborator `gorm:"foreignKey:InvestigationID;constraint:OnDelete:CASCADE"`
	Presences     []Presence     `gorm:"foreignKey:InvestigationID;constraint:OnDelete:SET NULL"`
}

// Task belongs to exactly one investigation and dies with it. Evidence
// referencing a task survives task deletion with task_id cleared.
type Task struct {
	ID              string     `gorm:"primaryKey;size:32"`
	InvestigationID string     `gorm:"size:32;not null;index:idx_tasks_investigation"`
	Title           string     `gorm:"size:255;not null"`
	Description     string     `gorm:"type:text"`
	Status          string     `gorm:"size:20;not null;index:idx_tasks_status"`
	Priority        string     `gorm:"size:20;not null"`
	AssignedTo      *string    `gorm:"size:64"`
	CreatedAt       time.Time  `gorm:"not null"`
	UpdatedAt       time.Time  `gorm:"not null"`
	DueDate         *time.Time
	Metadata        map[string]any `gorm:"serializer:json"`

	Evidence []EvidenceItem `gorm:"foreignKey:TaskID;constraint:OnDelete:SET NULL"`
}

// EvidenceItem is an append-only chain-of-custody record. Content and hash
// are immutable once written; corrections are new rows.
type EvidenceItem struct {
	ID              string    `gorm:"primaryKey;size:32"`
	InvestigationID string    `gorm:"size:32;not null;index:idx_evidence_investigation"`
	TaskID          *string   `gorm:"size:32;index:idx_evidence_task"`
	Title           string    `gorm:"size:255;not null"`
	Description     string    `gorm:"type:text"`
	Type            string    `gorm:"size:64;not null"`
	Source          string    `gorm:"size:255;not null"`
	Content         string    `gorm:"type:text;not null"`
	Hash            *string   `gorm:"size:64"`
	CollectedAt     time.Time `gorm:"not null"`
	Metadata        map[string]any `gorm:"serializer:json"`
}

// Activity is one immutable audit trail entry. Rows are totally ordered per
// investigation by (created_at, id).
type Activity struct {
	ID              string    `gorm:"primaryKey;size:32"`
	InvestigationID string    `gorm:"size:32;not null;index:idx_activities_investigation"`
	UserID          string    `gorm:"size:64;not null"`
	ActivityType    string    `gorm:"size:64;not null"`
	Description     string    `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"not null;index:idx_activities_created_at"`
	Details         map[string]any `gorm:"serializer:json"`
}

// Collaborator is investigation membership. A user appears at most once per
// investigation.
type Collaborator struct {
	ID              string    `gorm:"primaryKey;size:32"`
	InvestigationID string    `gorm:"size:32;not null;uniqueIndex:idx_collaborators_inv_user;index:idx_collaborators_investigation"`
	UserID          string    `gorm:"size:64;not null;uniqueIndex:idx_collaborators_inv_user"`
	Role            string    `gorm:"size:20;not null"`
	Permissions     map[string]any `gorm:"serializer:json"`
	JoinedAt        time.Time `gorm:"not null"`
	LastActive      time.Time `gorm:"not null"`
}

// ValidInvestigationStatus reports whether s is a known investigation status.
func ValidInvestigationStatus(s string) bool {
	switch s {
	case InvestigationActive, InvestigationPending, InvestigationCompleted, InvestigationArchived:
		return true
	}
	return false
}

// ValidTaskStatus reports whether s is a known task status.
func ValidTaskStatus(s string) bool {
	switch s {
	case TaskOpen, TaskInProgress, TaskReview, TaskCompleted:
		return true
	}
	return false
}

// ValidPriority reports whether s is a known priority.
func ValidPriority(s string) bool {
	switch s {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// ValidRole reports whether s is a known collaborator role.
func ValidRole(s string) bool {
	switch s {
	case RoleLead, RoleAnalyst, RoleObserver:
		return true
	}
	return false
}

// ValidPresenceStatus reports whether s is a known presence status.
func ValidPresenceStatus(s string) bool {
	switch s {
	case PresenceOnline, PresenceAway, PresenceBusy, PresenceOffline:
		return true
	}
	return false
}

// Presence is the per-user liveness record, exactly one row per user for
// the lifetime of the process (upsert semantics). InvestigationID is the
// user's current focus and is cleared, not cascaded, when that
// investigation is deleted.
type Presence struct {
	UserID          string    `gorm:"primaryKey;size:64"`
	InvestigationID *string   `gorm:"size:32;index:idx_presences_investigation"`
	Status          string    `gorm:"size:20;not null"`
	LastSeen        time.Time `gorm:"not null"`
	CurrentLocation string    `gorm:"size:255"`
}
