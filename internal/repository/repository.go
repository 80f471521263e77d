// internal/repository/repository.go
package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ============================================
// Models / Entities
// ============================================

// TeamInstallation records whether the bot is installed in a team. Rows are
// flipped to Installed=false on removal, never deleted.
type TeamInstallation struct {
	TeamID     string
	ServiceURL string
	TenantID   string
	Installed  bool
	UpdatedAt  time.Time
}

// UserOptInStatus is a user's pairing consent within a tenant.
type UserOptInStatus struct {
	TenantID   string
	UserID     string
	OptedIn    bool
	ServiceURL string
	UpdatedAt  time.Time
}

// MoodEntry is one mood check-in. Entries are append-only.
type MoodEntry struct {
	ID         string
	TenantID   string
	TeamID     string
	UserID     string
	Mood       string
	RecordedAt time.Time
}

// ============================================
// Repository Interfaces
// ============================================

type TeamRepository interface {
	GetInstalledTeams(ctx context.Context) ([]*TeamInstallation, error)
	// GetTeamInstallStatus returns nil when the team has never been seen.
	GetTeamInstallStatus(ctx context.Context, teamID string) (*TeamInstallation, error)
	SaveTeamInstallStatus(ctx context.Context, team *TeamInstallation, installed bool) error
}

type OptInRepository interface {
	// GetOptInStatus returns nil when the user never opted in or out.
	GetOptInStatus(ctx context.Context, tenantID, userID string) (*UserOptInStatus, error)
	SetOptInStatus(ctx context.Context, tenantID, userID string, optedIn bool, serviceURL string) error
}

type MoodRepository interface {
	SaveMood(ctx context.Context, entry *MoodEntry) error
	// GetTodaysMoods returns every entry recorded during the current UTC day
	// for the given users, duplicates included.
	GetTodaysMoods(ctx context.Context, tenantID string, userIDs []string) ([]*MoodEntry, error)
}

// ============================================
// Repositories Container
// ============================================

type Repositories struct {
	TeamRepo  TeamRepository
	OptInRepo OptInRepository
	MoodRepo  MoodRepository
}

// NewRepositories creates in-memory repositories (for testing/fallback)
func NewRepositories() *Repositories {
	return &Repositories{
		TeamRepo:  NewInMemoryTeamRepository(),
		OptInRepo: NewInMemoryOptInRepository(),
		MoodRepo:  NewInMemoryMoodRepository(),
	}
}

// NewPgRepositories creates PostgreSQL-backed repositories
func NewPgRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		TeamRepo:  NewTeamRepository(pool),
		OptInRepo: NewOptInRepository(pool),
		MoodRepo:  NewMoodRepository(pool),
	}
}

// dayBounds returns the start and end of the UTC day containing t.
func dayBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}
