// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"time"

	"gorm.io/gorm"

	"github.com/casetrail/casetrail/internal/conf"
	"github.com/casetrail/casetrail/internal/errors"
)

// Interface abstracts the underlying database implementation and defines
// the operations the engine services need. All mutating service flows run
// through Transaction so state writes and their activity rows commit as one
// atomic unit.
type Interface interface {
	Open() error
	Close() error

	// Transaction runs fn against a derived Interface bound to a database
	// transaction. fn returning an error rolls the transaction back.
	Transaction(fn func(tx Interface) error) error

	// Investigations
	CreateInvestigation(inv *Investigation) error
	GetInvestigation(id string) (*Investigation, error)
	ListInvestigations(filter *InvestigationFilter) ([]Investigation, error)
	// UpdateInvestigationGuarded applies the given column updates only when
	// the stored updated_at still equals expectedUpdatedAt. Returns the
	// number of rows changed; zero means the version token was stale.
	UpdateInvestigationGuarded(id string, expectedUpdatedAt time.Time, updates map[string]any) (int64, error)
	DeleteInvestigation(id string) error

	// Tasks
	CreateTask(task *Task) error
	GetTask(id string) (*Task, error)
	ListTasks(investigationID string) ([]Task, error)
	UpdateTaskGuarded(id string, expectedUpdatedAt time.Time, updates map[string]any) (int64, error)
	DeleteTask(id string) error

	// Evidence
	CreateEvidence(item *EvidenceItem) error
	GetEvidence(id string) (*EvidenceItem, error)
	ListEvidence(filter *EvidenceFilter) ([]EvidenceItem, error)

	// Activities
	CreateActivity(activity *Activity) error
	ListActivities(investigationID string, limit, offset int) ([]Activity, error)
	CountActivities(investigationID string) (int64, error)

	// Collaborators
	CreateCollaborator(c *Collaborator) error
	GetCollaborator(investigationID, userID string) (*Collaborator, error)
	ListCollaborators(investigationID string) ([]Collaborator, error)
	CountCollaborators(investigationID string) (int64, error)
	UpdateCollaboratorRole(investigationID, userID, role string) error
	DeleteCollaborator(investigationID, userID string) error

	// Presence
	UpsertPresence(p *Presence) error
	GetPresence(userID string) (*Presence, error)
	ListPresence() ([]Presence, error)
	// MarkStalePresenceOffline sets status to offline for rows whose
	// last_seen predates cutoff and that are not offline already. The
	// cutoff re-check happens in the UPDATE's WHERE clause so a sweep
	// racing a fresh heartbeat never resurrects staleness.
	MarkStalePresenceOffline(cutoff time.Time) (int64, error)
}

// InvestigationFilter narrows ListInvestigations.
type InvestigationFilter struct {
	Status   string
	Priority string
	// UserID limits results to investigations the user created, leads, or
	// has joined as a collaborator.
	UserID string
	Limit  int
	Offset int
}

// EvidenceFilter narrows ListEvidence. InvestigationID is required.
type EvidenceFilter struct {
	InvestigationID string
	TaskID          string
	Type            string
	Limit           int
	Offset          int
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new store instance based on the configured backend.
func New(settings *conf.Settings) Interface {
	switch settings.Database.Backend {
	case "mysql":
		return &MySQLStore{Settings: settings}
	default:
		return &SQLiteStore{Settings: settings}
	}
}

// Transaction runs fn inside a database transaction. The Interface handed
// to fn shares the transaction, so every store call in fn commits or rolls
// back together.
func (ds *DataStore) Transaction(fn func(tx Interface) error) error {
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		return fn(&DataStore{DB: tx})
	})
}

// Open is implemented by the backend-specific stores.
func (ds *DataStore) Open() error {
	return errors.Newf("store backend does not implement Open").
		Component("datastore").
		Category(errors.CategoryDatabase).
		Build()
}

// Close is implemented by the backend-specific stores.
func (ds *DataStore) Close() error {
	return nil
}
