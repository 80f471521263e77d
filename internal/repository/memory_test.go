package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeamInstallLifecycleKeepsHistory(t *testing.T) {
	repo := NewInMemoryTeamRepository()
	ctx := context.Background()

	status, err := repo.GetTeamInstallStatus(ctx, "team-1")
	require.NoError(t, err)
	assert.Nil(t, status)

	team := &TeamInstallation{TeamID: "team-1", ServiceURL: "https://svc", TenantID: "tenant"}
	require.NoError(t, repo.SaveTeamInstallStatus(ctx, team, true))

	installed, err := repo.GetInstalledTeams(ctx)
	require.NoError(t, err)
	require.Len(t, installed, 1)
	assert.True(t, installed[0].Installed)

	require.NoError(t, repo.SaveTeamInstallStatus(ctx, &TeamInstallation{TeamID: "team-1", ServiceURL: "https://svc", TenantID: "tenant"}, false))

	installed, err = repo.GetInstalledTeams(ctx)
	require.NoError(t, err)
	assert.Empty(t, installed)

	status, err = repo.GetTeamInstallStatus(ctx, "team-1")
	require.NoError(t, err)
	require.NotNil(t, status, "uninstalling keeps the record")
	assert.False(t, status.Installed)
}

func TestOptInStatusDefaultsToAbsent(t *testing.T) {
	repo := NewInMemoryOptInRepository()
	ctx := context.Background()

	status, err := repo.GetOptInStatus(ctx, "tenant", "user")
	require.NoError(t, err)
	assert.Nil(t, status)

	require.NoError(t, repo.SetOptInStatus(ctx, "tenant", "user", false, "https://svc"))
	status, err = repo.GetOptInStatus(ctx, "tenant", "user")
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.False(t, status.OptedIn)
	assert.Equal(t, "https://svc", status.ServiceURL)

	other, err := repo.GetOptInStatus(ctx, "other-tenant", "user")
	require.NoError(t, err)
	assert.Nil(t, other, "status is tenant scoped")
}

func TestGetTodaysMoodsFiltersByDayTenantAndUser(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	repo := NewInMemoryMoodRepository()
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	entries := []*MoodEntry{
		{TenantID: "t", UserID: "a", Mood: "happy"},
		// a duplicate for the same day still counts
		{TenantID: "t", UserID: "a", Mood: "happy"},
		{TenantID: "t", UserID: "b", Mood: "sad"},
		// not requested
		{TenantID: "t", UserID: "c", Mood: "happy"},
		// other tenant
		{TenantID: "other", UserID: "a", Mood: "sad"},
		// yesterday
		{TenantID: "t", UserID: "b", Mood: "sad", RecordedAt: now.Add(-24 * time.Hour)},
	}
	for _, e := range entries {
		require.NoError(t, repo.SaveMood(ctx, e))
		assert.NotEmpty(t, e.ID)
	}

	got, err := repo.GetTodaysMoods(ctx, "t", []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, got, 3)
}
