package services

import (
	"context"
	"testing"
	"time"

	"github.com/huangang/projecthub/backend/internal/models"
	"github.com/huangang/projecthub/backend/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardStats(t *testing.T) {
	db := newTestDB(t)
	store := NewSubmissionStore(db)
	ctx := context.Background()

	approved := seedProject(t, store, alice)
	approved.Status = workflow.StatusApproved
	approved.Credits = credits(4)
	require.NoError(t, store.Save(ctx, approved))

	registered := seedProject(t, store, alice)
	registered.Status = workflow.StatusApproved
	registered.Credits = credits(2)
	require.NoError(t, store.Save(ctx, registered))
	require.NoError(t, store.RecordExternalRequest(ctx, registered.ID, &models.ExternalRequest{Sent: true, SentAt: time.Now()}))

	seedProject(t, store, bob)

	w := &models.Workshop{WorkshopTitle: "Intro", Details: "d"}
	w.Submitter = workflow.Identity{UserID: carol.ID, Name: carol.Name, Email: carol.Email}
	w.Roster = workflow.BuildRoster(w.Submitter, nil, nil)
	require.NoError(t, store.Create(ctx, w))

	resp, err := NewDashboardService(db).GetStats(&DashboardStatsRequest{})
	require.NoError(t, err)

	assert.Equal(t, int64(3), resp.Projects.Total)
	assert.Equal(t, int64(2), resp.Projects.ByStatus[workflow.StatusApproved])
	assert.Equal(t, int64(1), resp.Projects.ByStatus[workflow.StatusPending])
	assert.Equal(t, int64(1), resp.Workshops.Total)
	assert.Equal(t, int64(6), resp.CreditsAwarded)
	assert.Equal(t, []string{approved.ID}, resp.Unregistered)

	require.NotEmpty(t, resp.TopSubmitters)
	assert.Equal(t, alice.Email, resp.TopSubmitters[0].Email)
	assert.Equal(t, int64(2), resp.TopSubmitters[0].Count)
}

func TestDashboardStats_DateWindow(t *testing.T) {
	db := newTestDB(t)
	seedProject(t, NewSubmissionStore(db), alice)

	resp, err := NewDashboardService(db).GetStats(&DashboardStatsRequest{StartDate: "2000-01-01", EndDate: "2000-12-31"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), resp.Projects.Total)
	assert.Empty(t, resp.TopSubmitters)
	assert.Equal(t, 2000, resp.From.Year())
}
