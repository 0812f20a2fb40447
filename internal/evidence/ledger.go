// Package evidence implements the append-only evidence ledger. Content and
// hash are written once and never mutated; corrections are recorded as new
// items so the chain of custody stays intact. When a caller declares a
// hash, the ledger recomputes it from the content and rejects divergence at
// write time rather than letting corruption surface on read.
package evidence

import (
	"crypto/sha256"
	"encoding/hex"
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
	ledgerLogger *slog.Logger
	loggerOnce   sync.Once
	levelVar     = new(slog.LevelVar)
)

func getLogger() *slog.Logger {
	loggerOnce.Do(func() {
		levelVar.Set(slog.LevelInfo)
		var err error
		ledgerLogger, _, err = logging.NewFileLogger("logs/evidence.log", "evidence", levelVar)
		if err != nil {
			ledgerLogger = logging.ForService("evidence")
			if ledgerLogger == nil {
				ledgerLogger = slog.Default().With("service", "evidence")
			}
		}
	})
	return ledgerLogger
}

// Ledger records and lists evidence items.
type Ledger struct {
	store   datastore.Interface
	metrics *observability.Metrics
}

// NewLedger creates a Ledger on top of the given store.
func NewLedger(store datastore.Interface, metrics *observability.Metrics) *Ledger {
	return &Ledger{store: store, metrics: metrics}
}

// RecordParams carries the fields for one evidence record.
type RecordParams struct {
	InvestigationID string
	TaskID          string // optional task linkage
	Title           string
	Description     string
	Type            string
	Source          string
	Content         string
	Hash            string // optional declared hash, hex sha256 of Content
	Metadata        map[string]any
}

// ContentHash returns the hex sha256 digest of content.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Record appends one evidence item and its audit row in a single
// transaction. The investigation must be Active or Pending; a declared
// hash that does not match the content fails with integrity-mismatch and
// nothing is stored.
func (l *Ledger) Record(actor auth.Actor, params *RecordParams) (item *datastore.EvidenceItem, err error) {
	defer func() { l.metrics.RecordMutation("evidence_record", err) }()

	if !actor.Valid() {
		return nil, errors.Newf("recording evidence requires an authenticated actor").
			Component("evidence").
			Category(errors.CategoryPermissionDenied).
			Build()
	}
	if params == nil || params.Type == "" || params.Source == "" || params.Content == "" {
		return nil, errors.Newf("evidence requires type, source and content").
			Component("evidence").
			Category(errors.CategoryValidation).
			Build()
	}

	computed := ContentHash(params.Content)
	if params.Hash != "" && params.Hash != computed {
		return nil, errors.Newf("declared hash does not match content").
			Component("evidence").
			Category(errors.CategoryIntegrityMismatch).
			Context("investigation_id", params.InvestigationID).
			Context("declared_hash", params.Hash).
			Context("computed_hash", computed).
			Build()
	}

	err = l.store.Transaction(func(tx datastore.Interface) error {
		inv, err := tx.GetInvestigation(params.InvestigationID)
		if err != nil {
			return err
		}
		switch inv.Status {
		case datastore.InvestigationArchived, datastore.InvestigationCompleted:
			return errors.Newf("investigation %s is %s; evidence can only be recorded while Active or Pending", inv.ID, inv.Status).
				Component("evidence").
				Category(errors.CategoryState).
				Context("investigation_id", inv.ID).
				Context("status", inv.Status).
				Build()
		}

		if params.TaskID != "" {
			task, err := tx.GetTask(params.TaskID)
			if err != nil {
				return err
			}
			if task.InvestigationID != params.InvestigationID {
				return errors.Newf("task %s does not belong to investigation %s", params.TaskID, params.InvestigationID).
					Component("evidence").
					Category(errors.CategoryValidation).
					Context("task_id", params.TaskID).
					Build()
			}
		}

		hash := computed
		item = &datastore.EvidenceItem{
			ID:              datastore.NewID(),
			InvestigationID: params.InvestigationID,
			Title:           params.Title,
			Description:     params.Description,
			Type:            params.Type,
			Source:          params.Source,
			Content:         params.Content,
			Hash:            &hash,
			CollectedAt:     time.Now().UTC(),
			Metadata:        params.Metadata,
		}
		if params.TaskID != "" {
			taskID := params.TaskID
			item.TaskID = &taskID
		}
		if err := tx.CreateEvidence(item); err != nil {
			return err
		}
		return activity.Append(tx, params.InvestigationID, actor.UserID, activity.TypeEvidenceCollected,
			"evidence collected from "+params.Source, map[string]any{
				"evidence_id":   item.ID,
				"evidence_type": params.Type,
				"source":        params.Source,
				"task_id":       params.TaskID,
			})
	})
	if err != nil {
		return nil, err
	}
	getLogger().Info("evidence recorded",
		"id", item.ID,
		"investigation_id", params.InvestigationID,
		"type", params.Type)
	return item, nil
}

// Get fetches one evidence item.
func (l *Ledger) Get(id string) (*datastore.EvidenceItem, error) {
	return l.store.GetEvidence(id)
}

// List returns evidence for an investigation, optionally filtered.
func (l *Ledger) List(filter *datastore.EvidenceFilter) ([]datastore.EvidenceItem, error) {
	if filter == nil || filter.InvestigationID == "" {
		return nil, errors.Newf("evidence listing requires an investigation id").
			Component("evidence").
			Category(errors.CategoryValidation).
			Build()
	}
	return l.store.ListEvidence(filter)
}

// Verify recomputes the hash of a stored item against its recorded hash.
// A mismatch means the row was tampered with outside the engine.
func (l *Ledger) Verify(id string) (bool, error) {
	item, err := l.store.GetEvidence(id)
	if err != nil {
		return false, err
	}
	if item.Hash == nil {
		return false, nil
	}
	return ContentHash(item.Content) == *item.Hash, nil
}
