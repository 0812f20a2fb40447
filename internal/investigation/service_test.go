package investigation

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casetrail/casetrail/internal/auth"
	"github.com/casetrail/casetrail/internal/datastore"
	"github.com/casetrail/casetrail/internal/errors"
)

var (
	alice = auth.Actor{UserID: "alice", Role: "analyst"}
	bob   = auth.Actor{UserID: "bob", Role: "analyst"}
)

func newTestService(t *testing.T) (*Service, datastore.Interface) {
	t.Helper()
	store := datastore.NewTestStore(t)
	return NewService(store, nil), store
}

func TestCreateDefaults(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)

	inv, err := svc.Create(alice, "lateral movement", "suspicious SMB traffic", "")
	require.NoError(t, err)

	assert.Len(t, inv.ID, 32)
	assert.Equal(t, datastore.InvestigationActive, inv.Status)
	assert.Equal(t, datastore.PriorityMedium, inv.Priority)
	assert.Equal(t, "alice", inv.CreatedBy)
	require.NotNil(t, inv.LeadInvestigator)
	assert.Equal(t, "alice", *inv.LeadInvestigator, "creator starts as lead")
}

func TestCreateRequiresTitle(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)

	_, err := svc.Create(alice, "", "", "")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestCreateWritesActivity(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t)

	inv, err := svc.Create(alice, "exfil review", "", datastore.PriorityHigh)
	require.NoError(t, err)

	entries, err := store.ListActivities(inv.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "investigation_created", entries[0].ActivityType)
	assert.Equal(t, "alice", entries[0].UserID)
}

func TestUpdateStaleTokenConflict(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	inv, err := svc.Create(alice, "dns tunneling", "", "")
	require.NoError(t, err)

	title1 := "dns tunneling - confirmed"
	first, err := svc.Update(alice, inv.ID, &UpdatePatch{Title: &title1, UpdatedAt: inv.UpdatedAt})
	require.NoError(t, err)
	assert.Equal(t, title1, first.Title)

	// Second writer still holds the original token.
	title2 := "dns tunneling - false positive"
	_, err = svc.Update(bob, inv.ID, &UpdatePatch{Title: &title2, UpdatedAt: inv.UpdatedAt})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConcurrentModification))

	got, err := svc.Get(inv.ID)
	require.NoError(t, err)
	assert.Equal(t, title1, got.Title, "losing write must not land")
}

func TestUpdateMetadataPersists(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	inv, err := svc.Create(alice, "watering hole", "", "")
	require.NoError(t, err)

	updated, err := svc.Update(alice, inv.ID, &UpdatePatch{
		Metadata:  map[string]any{"ticket": "IR-1042", "confidence": "high"},
		UpdatedAt: inv.UpdatedAt,
	})
	require.NoError(t, err)
	assert.Equal(t, "IR-1042", updated.Metadata["ticket"])
	assert.True(t, updated.UpdatedAt.After(inv.UpdatedAt), "metadata-only update bumps the version")

	got, err := svc.Get(inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "high", got.Metadata["confidence"], "metadata must round-trip through the store")
}

func TestUpdateNoChangesSkipsAudit(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t)
	inv, err := svc.Create(alice, "beaconing", "", "")
	require.NoError(t, err)

	same := inv.Title
	got, err := svc.Update(alice, inv.ID, &UpdatePatch{Title: &same, UpdatedAt: inv.UpdatedAt})
	require.NoError(t, err)
	assert.Equal(t, inv.UpdatedAt.Unix(), got.UpdatedAt.Unix(), "no-op update must not bump the version")

	count, err := store.CountActivities(inv.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count, "only the creation entry should exist")
}

func TestTransitionGraph(t *testing.T) {
	t.Parallel()

	all := []string{
		datastore.InvestigationActive,
		datastore.InvestigationPending,
		datastore.InvestigationCompleted,
		datastore.InvestigationArchived,
	}
	allowed := map[string]map[string]bool{
		datastore.InvestigationActive:    {datastore.InvestigationPending: true, datastore.InvestigationCompleted: true},
		datastore.InvestigationPending:   {datastore.InvestigationActive: true, datastore.InvestigationArchived: true},
		datastore.InvestigationCompleted: {datastore.InvestigationArchived: true},
		datastore.InvestigationArchived:  {},
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[from][to], transitionAllowed(from, to), "%s -> %s", from, to)
		}
	}
}

// TestTransitionRandomWalk drives a fresh investigation through random
// transition attempts and checks the service accepts exactly the graph's
// edges and nothing else.
func TestTransitionRandomWalk(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	inv, err := svc.Create(alice, "random walk", "", "")
	require.NoError(t, err)

	all := []string{
		datastore.InvestigationActive,
		datastore.InvestigationPending,
		datastore.InvestigationCompleted,
		datastore.InvestigationArchived,
	}
	rng := rand.New(rand.NewSource(42))
	current := inv.Status

	for i := 0; i < 50; i++ {
		target := all[rng.Intn(len(all))]
		got, err := svc.Transition(alice, inv.ID, target)
		if transitionAllowed(current, target) {
			require.NoError(t, err, "edge %s -> %s must be accepted", current, target)
			current = got.Status
		} else {
			require.Error(t, err, "edge %s -> %s must be rejected", current, target)
			assert.True(t, errors.HasCategory(err, errors.CategoryInvalidTransition))
		}
		if current == datastore.InvestigationArchived {
			break
		}
	}
}

func TestTogglePermissions(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t)
	inv, err := svc.Create(alice, "toggle permissions", "", "")
	require.NoError(t, err)

	// bob is not a member; even the toggle is denied.
	_, err = svc.Transition(bob, inv.ID, datastore.InvestigationPending)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryPermissionDenied))

	require.NoError(t, store.CreateCollaborator(&datastore.Collaborator{
		ID:              datastore.NewID(),
		InvestigationID: inv.ID,
		UserID:          "bob",
		Role:            datastore.RoleObserver,
		JoinedAt:        time.Now().UTC(),
		LastActive:      time.Now().UTC(),
	}))

	// Any member may toggle.
	got, err := svc.Transition(bob, inv.ID, datastore.InvestigationPending)
	require.NoError(t, err)
	assert.Equal(t, datastore.InvestigationPending, got.Status)

	// Terminal edges take the lead; bob is an observer.
	_, err = svc.Transition(bob, inv.ID, datastore.InvestigationArchived)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryPermissionDenied))

	_, err = svc.Transition(alice, inv.ID, datastore.InvestigationArchived)
	require.NoError(t, err)
}

func TestUpdateArchivedRejected(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	inv, err := svc.Create(alice, "to be archived", "", "")
	require.NoError(t, err)

	inv, err = svc.Transition(alice, inv.ID, datastore.InvestigationPending)
	require.NoError(t, err)
	inv, err = svc.Transition(alice, inv.ID, datastore.InvestigationArchived)
	require.NoError(t, err)

	title := "post-archive edit"
	_, err = svc.Update(alice, inv.ID, &UpdatePatch{Title: &title, UpdatedAt: inv.UpdatedAt})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryInvestigationArchived))
}

func TestDeleteLeadOnly(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	inv, err := svc.Create(alice, "short lived", "", "")
	require.NoError(t, err)

	err = svc.Delete(bob, inv.ID)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryPermissionDenied))

	require.NoError(t, svc.Delete(alice, inv.ID))
	_, err = svc.Get(inv.ID)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
}

func TestCreateTaskLifecycle(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	inv, err := svc.Create(alice, "task lifecycle", "", "")
	require.NoError(t, err)

	task, err := svc.CreateTask(alice, inv.ID, &TaskParams{Title: "collect pcaps", AssignedTo: "bob"})
	require.NoError(t, err)
	assert.Equal(t, datastore.TaskOpen, task.Status)
	require.NotNil(t, task.AssignedTo)
	assert.Equal(t, "bob", *task.AssignedTo)

	task, err = svc.UpdateTaskStatus(bob, task.ID, datastore.TaskInProgress)
	require.NoError(t, err)
	assert.Equal(t, datastore.TaskInProgress, task.Status)

	// Same-state move is an invalid transition.
	_, err = svc.UpdateTaskStatus(bob, task.ID, datastore.TaskInProgress)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryInvalidTransition))
}

func TestCreateTaskStateGates(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	inv, err := svc.Create(alice, "state gates", "", "")
	require.NoError(t, err)

	_, err = svc.Transition(alice, inv.ID, datastore.InvestigationCompleted)
	require.NoError(t, err)

	_, err = svc.CreateTask(alice, inv.ID, &TaskParams{Title: "too late"})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryState))

	_, err = svc.Transition(alice, inv.ID, datastore.InvestigationArchived)
	require.NoError(t, err)

	_, err = svc.CreateTask(alice, inv.ID, &TaskParams{Title: "way too late"})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryInvestigationArchived))
}

func TestTaskStatusArchivedOwnerRejected(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	inv, err := svc.Create(alice, "archived owner", "", "")
	require.NoError(t, err)

	task, err := svc.CreateTask(alice, inv.ID, &TaskParams{Title: "stuck task"})
	require.NoError(t, err)

	_, err = svc.Transition(alice, inv.ID, datastore.InvestigationPending)
	require.NoError(t, err)
	_, err = svc.Transition(alice, inv.ID, datastore.InvestigationArchived)
	require.NoError(t, err)

	_, err = svc.UpdateTaskStatus(alice, task.ID, datastore.TaskCompleted)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryInvestigationArchived))
}

func TestUpdateTaskConflict(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	inv, err := svc.Create(alice, "task conflict", "", "")
	require.NoError(t, err)

	task, err := svc.CreateTask(alice, inv.ID, &TaskParams{Title: "original"})
	require.NoError(t, err)

	t1 := "first edit"
	_, err = svc.UpdateTask(alice, task.ID, &TaskPatch{Title: &t1, UpdatedAt: task.UpdatedAt})
	require.NoError(t, err)

	t2 := "second edit"
	_, err = svc.UpdateTask(bob, task.ID, &TaskPatch{Title: &t2, UpdatedAt: task.UpdatedAt})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConcurrentModification))
}
