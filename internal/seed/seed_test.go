package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Marga-Ghale/meetup-bot-backend/internal/connector"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/repository"
)

func TestSeedDataInstallsTeamsOnce(t *testing.T) {
	ctx := context.Background()
	repos := repository.NewRepositories()
	client := connector.NewMemoryClient()

	SeedData(repos, client, "28:bot")
	SeedData(repos, client, "28:bot")

	teams, err := repos.TeamRepo.GetInstalledTeams(ctx)
	require.NoError(t, err)
	require.Len(t, teams, 2)

	members, err := client.GetTeamMembers(ctx, ServiceURL, "19:engineering@thread.tacv2", TenantID)
	require.NoError(t, err)
	assert.Len(t, members, 6)

	name, err := client.GetTeamName(ctx, ServiceURL, "19:design@thread.tacv2")
	require.NoError(t, err)
	assert.Equal(t, "Design", name)

	status, err := repos.OptInRepo.GetOptInStatus(ctx, TenantID, "aad-sita.rai")
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.False(t, status.OptedIn)
}
