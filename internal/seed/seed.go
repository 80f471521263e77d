// internal/seed/seed.go
package seed

import (
	"context"
	"log"

	"github.com/Marga-Ghale/meetup-bot-backend/internal/connector"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/repository"
)

const (
	ServiceURL = "http://localhost:3978/_dev"
	TenantID   = "dev-tenant"
)

type team struct {
	id      string
	name    string
	members []connector.TeamsChannelAccount
}

func person(id, given, surname string) connector.TeamsChannelAccount {
	return connector.TeamsChannelAccount{
		ID:                "29:" + id,
		Name:              given + " " + surname,
		GivenName:         given,
		Surname:           surname,
		Email:             id + "@oratechnologies.io",
		UserPrincipalName: id + "@oratechnologies.io",
		AADObjectID:       "aad-" + id,
	}
}

// SeedData installs a few teams and fills the in-memory transport with their
// rosters, so runs can be exercised locally without Teams.
func SeedData(repos *repository.Repositories, client *connector.MemoryClient, botID string) {
	ctx := context.Background()

	installed, _ := repos.TeamRepo.GetInstalledTeams(ctx)
	if len(installed) > 0 {
		log.Println("[Seed] Data already exists, skipping...")
		return
	}

	log.Println("[Seed] 🌱 Creating development teams...")

	bot := connector.TeamsChannelAccount{ID: botID, Name: "MeetupBot"}

	teams := []team{
		{
			id:   "19:engineering@thread.tacv2",
			name: "Engineering",
			members: []connector.TeamsChannelAccount{
				bot,
				person("marga.ghale", "Marga", "Ghale"),
				person("bipin.dhimal", "Bipin", "Dhimal"),
				person("kritim.kafle", "Kritim", "Kafle"),
				person("prerak.khadka", "Prerak", "Khadka"),
				person("sita.rai", "Sita", "Rai"),
			},
		},
		{
			id:   "19:design@thread.tacv2",
			name: "Design",
			members: []connector.TeamsChannelAccount{
				bot,
				person("anita.shrestha", "Anita", "Shrestha"),
				person("rohan.thapa", "Rohan", "Thapa"),
			},
		},
	}

	for _, t := range teams {
		client.SetRoster(t.id, t.name, t.members)
		if err := repos.TeamRepo.SaveTeamInstallStatus(ctx, &repository.TeamInstallation{
			TeamID:     t.id,
			ServiceURL: ServiceURL,
			TenantID:   TenantID,
		}, true); err != nil {
			log.Printf("[Seed] ❌ Failed to install team %s: %v", t.name, err)
			continue
		}
		log.Printf("[Seed] ✅ Team %s with %d members", t.name, len(t.members)-1)
	}

	// Sita sits out of pairings
	if err := repos.OptInRepo.SetOptInStatus(ctx, TenantID, "aad-sita.rai", false, ServiceURL); err != nil {
		log.Printf("[Seed] ❌ Failed to opt out sita.rai: %v", err)
	}

	log.Println("[Seed] 🌱 Development data ready")
}
