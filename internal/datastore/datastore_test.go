package datastore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInvestigation(t *testing.T, store Interface) *Investigation {
	t.Helper()
	inv := &Investigation{
		ID:        NewID(),
		Title:     "credential stuffing wave",
		Status:    InvestigationActive,
		Priority:  PriorityMedium,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
		CreatedBy: "alice",
	}
	require.NoError(t, store.CreateInvestigation(inv))
	return inv
}

func TestNewID(t *testing.T) {
	t.Parallel()

	id := NewID()
	assert.Len(t, id, 32)
	assert.True(t, ValidID(id), "generated id should validate")
	assert.NotEqual(t, id, NewID(), "ids should be unique")
}

func TestInvestigationCascadeDelete(t *testing.T) {
	t.Parallel()

	store := NewTestStore(t)
	inv := newInvestigation(t, store)

	task := &Task{
		ID:              NewID(),
		InvestigationID: inv.ID,
		Title:           "pull auth logs",
		Status:          TaskOpen,
		Priority:        PriorityMedium,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	require.NoError(t, store.CreateTask(task))

	item := &EvidenceItem{
		ID:              NewID(),
		InvestigationID: inv.ID,
		Title:           "auth log excerpt",
		Type:            "log",
		Source:          "siem",
		Content:         "failed logins",
		CollectedAt:     time.Now().UTC(),
	}
	require.NoError(t, store.CreateEvidence(item))

	act := &Activity{
		ID:              NewID(),
		InvestigationID: inv.ID,
		UserID:          "alice",
		ActivityType:    "investigation_created",
		Description:     "created",
		CreatedAt:       time.Now().UTC(),
	}
	require.NoError(t, store.CreateActivity(act))

	collab := &Collaborator{
		ID:              NewID(),
		InvestigationID: inv.ID,
		UserID:          "bob",
		Role:            RoleAnalyst,
		JoinedAt:        time.Now().UTC(),
		LastActive:      time.Now().UTC(),
	}
	require.NoError(t, store.CreateCollaborator(collab))

	require.NoError(t, store.UpsertPresence(&Presence{
		UserID:          "bob",
		InvestigationID: &inv.ID,
		Status:          PresenceOnline,
		LastSeen:        time.Now().UTC(),
	}))

	require.NoError(t, store.DeleteInvestigation(inv.ID))

	_, err := store.GetTask(task.ID)
	assert.Error(t, err, "tasks should cascade on investigation delete")
	_, err = store.GetEvidence(item.ID)
	assert.Error(t, err, "evidence should cascade on investigation delete")
	count, err := store.CountActivities(inv.ID)
	require.NoError(t, err)
	assert.Zero(t, count, "activities should cascade on investigation delete")
	_, err = store.GetCollaborator(inv.ID, "bob")
	assert.Error(t, err, "collaborators should cascade on investigation delete")

	presence, err := store.GetPresence("bob")
	require.NoError(t, err, "presence rows must survive investigation delete")
	assert.Nil(t, presence.InvestigationID, "focus link should be cleared, not cascaded")
}

func TestTaskDeleteNullsEvidenceLink(t *testing.T) {
	t.Parallel()

	store := NewTestStore(t)
	inv := newInvestigation(t, store)

	task := &Task{
		ID:              NewID(),
		InvestigationID: inv.ID,
		Title:           "image host",
		Status:          TaskOpen,
		Priority:        PriorityHigh,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	require.NoError(t, store.CreateTask(task))

	item := &EvidenceItem{
		ID:              NewID(),
		InvestigationID: inv.ID,
		TaskID:          &task.ID,
		Title:           "disk image",
		Type:            "file",
		Source:          "workstation-7",
		Content:         "image manifest",
		CollectedAt:     time.Now().UTC(),
	}
	require.NoError(t, store.CreateEvidence(item))

	require.NoError(t, store.DeleteTask(task.ID))

	got, err := store.GetEvidence(item.ID)
	require.NoError(t, err, "evidence must survive task deletion")
	assert.Nil(t, got.TaskID, "task link should be cleared, not cascaded")
}

func TestGuardedUpdateStaleToken(t *testing.T) {
	t.Parallel()

	store := NewTestStore(t)
	inv := newInvestigation(t, store)

	stored, err := store.GetInvestigation(inv.ID)
	require.NoError(t, err)

	rows, err := store.UpdateInvestigationGuarded(inv.ID, stored.UpdatedAt, map[string]any{
		"title":      "renamed",
		"updated_at": time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows)

	// Same token again: the first write bumped updated_at.
	rows, err = store.UpdateInvestigationGuarded(inv.ID, stored.UpdatedAt, map[string]any{
		"title":      "renamed again",
		"updated_at": time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Zero(t, rows, "stale version token must not match any row")
}

func TestUpsertPresence(t *testing.T) {
	t.Parallel()

	store := NewTestStore(t)

	first := &Presence{
		UserID:   "carol",
		Status:   PresenceOnline,
		LastSeen: time.Now().UTC().Add(-time.Minute),
	}
	require.NoError(t, store.UpsertPresence(first))

	second := &Presence{
		UserID:          "carol",
		Status:          PresenceBusy,
		LastSeen:        time.Now().UTC(),
		CurrentLocation: "evidence-view",
	}
	require.NoError(t, store.UpsertPresence(second))

	got, err := store.GetPresence("carol")
	require.NoError(t, err)
	assert.Equal(t, PresenceBusy, got.Status)
	assert.Equal(t, "evidence-view", got.CurrentLocation)

	rows, err := store.ListPresence()
	require.NoError(t, err)
	assert.Len(t, rows, 1, "upsert must not create a second row")
}

func TestMarkStalePresenceOffline(t *testing.T) {
	t.Parallel()

	store := NewTestStore(t)
	now := time.Now().UTC()
	threshold := 2 * time.Minute

	// Twice the threshold: stale.
	require.NoError(t, store.UpsertPresence(&Presence{
		UserID:   "stale-user",
		Status:   PresenceOnline,
		LastSeen: now.Add(-2 * threshold),
	}))
	// Half the threshold: fresh.
	require.NoError(t, store.UpsertPresence(&Presence{
		UserID:   "fresh-user",
		Status:   PresenceAway,
		LastSeen: now.Add(-threshold / 2),
	}))
	// Already offline: not counted again.
	require.NoError(t, store.UpsertPresence(&Presence{
		UserID:   "gone-user",
		Status:   PresenceOffline,
		LastSeen: now.Add(-3 * threshold),
	}))

	swept, err := store.MarkStalePresenceOffline(now.Add(-threshold))
	require.NoError(t, err)
	assert.EqualValues(t, 1, swept)

	stale, err := store.GetPresence("stale-user")
	require.NoError(t, err)
	assert.Equal(t, PresenceOffline, stale.Status)

	fresh, err := store.GetPresence("fresh-user")
	require.NoError(t, err)
	assert.Equal(t, PresenceAway, fresh.Status, "fresh heartbeat must survive the sweep")
}

func TestListInvestigationsFilters(t *testing.T) {
	t.Parallel()

	store := NewTestStore(t)
	inv := newInvestigation(t, store)

	other := &Investigation{
		ID:        NewID(),
		Title:     "phishing kit",
		Status:    InvestigationPending,
		Priority:  PriorityCritical,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
		CreatedBy: "bob",
	}
	require.NoError(t, store.CreateInvestigation(other))

	byStatus, err := store.ListInvestigations(&InvestigationFilter{Status: InvestigationPending})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, other.ID, byStatus[0].ID)

	byPriority, err := store.ListInvestigations(&InvestigationFilter{Priority: PriorityMedium})
	require.NoError(t, err)
	require.Len(t, byPriority, 1)
	assert.Equal(t, inv.ID, byPriority[0].ID)

	// user scoping covers creator, lead and collaborators
	require.NoError(t, store.CreateCollaborator(&Collaborator{
		ID:              NewID(),
		InvestigationID: other.ID,
		UserID:          "alice",
		Role:            RoleAnalyst,
		JoinedAt:        time.Now().UTC(),
		LastActive:      time.Now().UTC(),
	}))
	forAlice, err := store.ListInvestigations(&InvestigationFilter{UserID: "alice"})
	require.NoError(t, err)
	assert.Len(t, forAlice, 2, "alice created one and joined the other")

	forBob, err := store.ListInvestigations(&InvestigationFilter{UserID: "bob"})
	require.NoError(t, err)
	assert.Len(t, forBob, 1)
}
