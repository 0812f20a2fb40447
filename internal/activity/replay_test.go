package activity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casetrail/casetrail/internal/activity"
	"github.com/casetrail/casetrail/internal/auth"
	"github.com/casetrail/casetrail/internal/collaboration"
	"github.com/casetrail/casetrail/internal/datastore"
	"github.com/casetrail/casetrail/internal/errors"
	"github.com/casetrail/casetrail/internal/evidence"
	"github.com/casetrail/casetrail/internal/investigation"
)

var (
	alice = auth.Actor{UserID: "alice", Role: "analyst"}
	bob   = auth.Actor{UserID: "bob", Role: "analyst"}
)

func TestAppendValidatesDetailSchema(t *testing.T) {
	t.Parallel()

	store := datastore.NewTestStore(t)

	err := store.Transaction(func(tx datastore.Interface) error {
		return activity.Append(tx, datastore.NewID(), "alice", activity.TypeStatusChanged,
			"status changed", map[string]any{"from": "Active"})
	})
	require.Error(t, err, "missing 'to' key must be rejected")
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))

	err = store.Transaction(func(tx datastore.Interface) error {
		return activity.Append(tx, datastore.NewID(), "alice", "made_up_type",
			"", map[string]any{})
	})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestAppendRollsBackWithTransaction(t *testing.T) {
	t.Parallel()

	store := datastore.NewTestStore(t)
	svc := investigation.NewService(store, nil)
	inv, err := svc.Create(alice, "rollback check", "", "")
	require.NoError(t, err)

	sentinel := errors.NewStd("boom")
	err = store.Transaction(func(tx datastore.Interface) error {
		if err := activity.Append(tx, inv.ID, "alice", activity.TypeStatusChanged,
			"status changed", map[string]any{"from": "Active", "to": "Pending"}); err != nil {
			return err
		}
		return sentinel
	})
	require.Error(t, err)

	count, err := store.CountActivities(inv.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count, "only the creation entry survives the rollback")
}

func TestReplayEmptyLog(t *testing.T) {
	t.Parallel()

	store := datastore.NewTestStore(t)
	log := activity.NewLog(store)

	_, err := log.Replay(datastore.NewID())
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
}

func TestReplayRequiresCreationSnapshot(t *testing.T) {
	t.Parallel()

	entries := []datastore.Activity{{
		ID:           datastore.NewID(),
		ActivityType: activity.TypeStatusChanged,
		Details:      map[string]any{"from": "Active", "to": "Pending"},
	}}
	_, err := activity.ReplayEntries("inv-1", entries)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryState))
}

// TestReplayMatchesLiveState drives a full collaboration scenario through
// the services and checks that folding the activity log reproduces exactly
// what the live rows say.
func TestReplayMatchesLiveState(t *testing.T) {
	t.Parallel()

	store := datastore.NewTestStore(t)
	svc := investigation.NewService(store, nil)
	ledger := evidence.NewLedger(store, nil)
	tracker := collaboration.NewTracker(store, nil)
	log := activity.NewLog(store)

	inv, err := svc.Create(alice, "ransomware intake", "initial triage", datastore.PriorityHigh)
	require.NoError(t, err)

	task, err := svc.CreateTask(alice, inv.ID, &investigation.TaskParams{
		Title:      "isolate host",
		AssignedTo: "bob",
	})
	require.NoError(t, err)

	_, err = svc.UpdateTaskStatus(bob, task.ID, datastore.TaskInProgress)
	require.NoError(t, err)

	_, err = ledger.Record(bob, &evidence.RecordParams{
		InvestigationID: inv.ID,
		TaskID:          task.ID,
		Type:            "memory_dump",
		Source:          "host-42",
		Content:         "lsass dump",
	})
	require.NoError(t, err)

	_, err = tracker.Join(bob, inv.ID, "", "")
	require.NoError(t, err)

	newTitle := "ransomware intake - LockBit"
	current, err := svc.Get(inv.ID)
	require.NoError(t, err)
	_, err = svc.Update(alice, inv.ID, &investigation.UpdatePatch{
		Title:     &newTitle,
		UpdatedAt: current.UpdatedAt,
	})
	require.NoError(t, err)

	_, err = svc.Transition(alice, inv.ID, datastore.InvestigationPending)
	require.NoError(t, err)

	state, err := log.Replay(inv.ID)
	require.NoError(t, err)

	live, err := svc.Get(inv.ID)
	require.NoError(t, err)

	assert.Equal(t, live.Title, state.Title)
	assert.Equal(t, live.Status, state.Status)
	assert.Equal(t, live.Priority, state.Priority)
	assert.Equal(t, live.CreatedBy, state.CreatedBy)
	require.NotNil(t, live.LeadInvestigator)
	assert.Equal(t, *live.LeadInvestigator, state.LeadInvestigator)

	liveTasks, err := svc.ListTasks(inv.ID)
	require.NoError(t, err)
	require.Len(t, liveTasks, 1)
	replayed, ok := state.Tasks[liveTasks[0].ID]
	require.True(t, ok, "replayed state must contain the task")
	assert.Equal(t, liveTasks[0].Title, replayed.Title)
	assert.Equal(t, liveTasks[0].Status, replayed.Status)

	items, err := ledger.List(&datastore.EvidenceFilter{InvestigationID: inv.ID})
	require.NoError(t, err)
	assert.Equal(t, len(items), state.EvidenceCount)

	members, err := tracker.ListMembers(inv.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, members[0].Role, state.Members["bob"])
}

// TestFullScenarioActivitySequence pins the audit trail a typical case
// produces end to end. The creation snapshot is the first entry — replay
// depends on it — so four follow-up mutations yield a sequence of five.
func TestFullScenarioActivitySequence(t *testing.T) {
	t.Parallel()

	store := datastore.NewTestStore(t)
	svc := investigation.NewService(store, nil)
	ledger := evidence.NewLedger(store, nil)
	tracker := collaboration.NewTracker(store, nil)
	log := activity.NewLog(store)

	inv, err := svc.Create(alice, "Phishing Campaign X", "", "")
	require.NoError(t, err)

	_, err = tracker.Join(alice, inv.ID, "bob", datastore.RoleAnalyst)
	require.NoError(t, err)

	task, err := svc.CreateTask(alice, inv.ID, &investigation.TaskParams{
		Title: "Trace sender domain",
	})
	require.NoError(t, err)

	_, err = ledger.Record(bob, &evidence.RecordParams{
		InvestigationID: inv.ID,
		TaskID:          task.ID,
		Type:            "email-header",
		Source:          "mail-gateway",
		Content:         "<raw header text>",
	})
	require.NoError(t, err)

	_, err = svc.Transition(alice, inv.ID, datastore.InvestigationCompleted)
	require.NoError(t, err)

	entries, err := log.List(inv.ID, 100, 0)
	require.NoError(t, err)
	require.Len(t, entries, 5)

	types := make([]string, len(entries))
	for i, e := range entries {
		types[i] = e.ActivityType
	}
	assert.Equal(t, []string{
		activity.TypeInvestigationCreated,
		activity.TypeCollaboratorJoined,
		activity.TypeTaskCreated,
		activity.TypeEvidenceCollected,
		activity.TypeStatusChanged,
	}, types)
}

func TestReplayMembershipChurn(t *testing.T) {
	t.Parallel()

	store := datastore.NewTestStore(t)
	svc := investigation.NewService(store, nil)
	tracker := collaboration.NewTracker(store, nil)
	log := activity.NewLog(store)

	inv, err := svc.Create(alice, "membership churn", "", "")
	require.NoError(t, err)

	_, err = tracker.Join(alice, inv.ID, "", "")
	require.NoError(t, err)
	_, err = tracker.Join(bob, inv.ID, "", "")
	require.NoError(t, err)
	require.NoError(t, tracker.UpdateRole(alice, inv.ID, "bob", datastore.RoleObserver))
	require.NoError(t, tracker.Leave(alice, inv.ID, ""))

	state, err := log.Replay(inv.ID)
	require.NoError(t, err)

	assert.NotContains(t, state.Members, "alice")
	assert.Equal(t, datastore.RoleObserver, state.Members["bob"])
}
