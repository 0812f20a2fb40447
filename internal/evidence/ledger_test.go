package evidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casetrail/casetrail/internal/auth"
	"github.com/casetrail/casetrail/internal/datastore"
	"github.com/casetrail/casetrail/internal/errors"
	"github.com/casetrail/casetrail/internal/investigation"
)

var collector = auth.Actor{UserID: "alice", Role: "analyst"}

func newTestLedger(t *testing.T) (*Ledger, *investigation.Service, *datastore.Investigation) {
	t.Helper()
	store := datastore.NewTestStore(t)
	svc := investigation.NewService(store, nil)
	inv, err := svc.Create(collector, "malware triage", "", "")
	require.NoError(t, err)
	return NewLedger(store, nil), svc, inv
}

func TestRecordComputesHash(t *testing.T) {
	t.Parallel()

	ledger, _, inv := newTestLedger(t)

	item, err := ledger.Record(collector, &RecordParams{
		InvestigationID: inv.ID,
		Title:           "dropper sample",
		Type:            "file",
		Source:          "endpoint-12",
		Content:         "MZ binary payload",
	})
	require.NoError(t, err)
	require.NotNil(t, item.Hash)
	assert.Equal(t, ContentHash("MZ binary payload"), *item.Hash,
		"hash is always computed, even when undeclared")
}

func TestRecordDeclaredHashMismatch(t *testing.T) {
	t.Parallel()

	ledger, _, inv := newTestLedger(t)

	_, err := ledger.Record(collector, &RecordParams{
		InvestigationID: inv.ID,
		Type:            "log",
		Source:          "siem",
		Content:         "real content",
		Hash:            ContentHash("tampered content"),
	})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryIntegrityMismatch))

	items, listErr := ledger.List(&datastore.EvidenceFilter{InvestigationID: inv.ID})
	require.NoError(t, listErr)
	assert.Empty(t, items, "nothing may be stored on a mismatch")
}

func TestRecordDeclaredHashMatch(t *testing.T) {
	t.Parallel()

	ledger, _, inv := newTestLedger(t)

	item, err := ledger.Record(collector, &RecordParams{
		InvestigationID: inv.ID,
		Type:            "log",
		Source:          "siem",
		Content:         "matching content",
		Hash:            ContentHash("matching content"),
	})
	require.NoError(t, err)

	ok, err := ledger.Verify(item.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRecordRequiresActiveOrPending(t *testing.T) {
	t.Parallel()

	ledger, svc, inv := newTestLedger(t)

	_, err := svc.Transition(collector, inv.ID, datastore.InvestigationCompleted)
	require.NoError(t, err)

	_, err = ledger.Record(collector, &RecordParams{
		InvestigationID: inv.ID,
		Type:            "file",
		Source:          "endpoint-12",
		Content:         "late evidence",
	})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryState))
}

func TestRecordTaskMustBelongToInvestigation(t *testing.T) {
	t.Parallel()

	store := datastore.NewTestStore(t)
	svc := investigation.NewService(store, nil)
	ledger := NewLedger(store, nil)

	invA, err := svc.Create(collector, "case a", "", "")
	require.NoError(t, err)
	invB, err := svc.Create(collector, "case b", "", "")
	require.NoError(t, err)
	taskB, err := svc.CreateTask(collector, invB.ID, &investigation.TaskParams{Title: "b task"})
	require.NoError(t, err)

	_, err = ledger.Record(collector, &RecordParams{
		InvestigationID: invA.ID,
		TaskID:          taskB.ID,
		Type:            "file",
		Source:          "endpoint-12",
		Content:         "cross-linked",
	})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestRecordValidation(t *testing.T) {
	t.Parallel()

	ledger, _, inv := newTestLedger(t)

	_, err := ledger.Record(collector, &RecordParams{InvestigationID: inv.ID, Type: "file"})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))

	_, err = ledger.Record(auth.Actor{}, &RecordParams{
		InvestigationID: inv.ID,
		Type:            "file",
		Source:          "endpoint-12",
		Content:         "content",
	})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryPermissionDenied))
}

func TestListFilters(t *testing.T) {
	t.Parallel()

	ledger, svc, inv := newTestLedger(t)

	task, err := svc.CreateTask(collector, inv.ID, &investigation.TaskParams{Title: "collect logs"})
	require.NoError(t, err)

	_, err = ledger.Record(collector, &RecordParams{
		InvestigationID: inv.ID,
		TaskID:          task.ID,
		Type:            "log",
		Source:          "siem",
		Content:         "log lines",
	})
	require.NoError(t, err)
	_, err = ledger.Record(collector, &RecordParams{
		InvestigationID: inv.ID,
		Type:            "file",
		Source:          "endpoint-12",
		Content:         "binary",
	})
	require.NoError(t, err)

	byTask, err := ledger.List(&datastore.EvidenceFilter{InvestigationID: inv.ID, TaskID: task.ID})
	require.NoError(t, err)
	assert.Len(t, byTask, 1)

	byType, err := ledger.List(&datastore.EvidenceFilter{InvestigationID: inv.ID, Type: "file"})
	require.NoError(t, err)
	assert.Len(t, byType, 1)

	_, err = ledger.List(nil)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}
