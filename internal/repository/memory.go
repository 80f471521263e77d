package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ============================================
// In-Memory Repository Implementations (Fallback)
// ============================================

// In-memory Team Repository
type InMemoryTeamRepository struct {
	mu    sync.RWMutex
	teams map[string]*TeamInstallation
}

func NewInMemoryTeamRepository() *InMemoryTeamRepository {
	return &InMemoryTeamRepository{teams: make(map[string]*TeamInstallation)}
}

func (r *InMemoryTeamRepository) GetInstalledTeams(ctx context.Context) ([]*TeamInstallation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	teams := make([]*TeamInstallation, 0, len(r.teams))
	for _, t := range r.teams {
		if t.Installed {
			copied := *t
			teams = append(teams, &copied)
		}
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].TeamID < teams[j].TeamID })
	return teams, nil
}

func (r *InMemoryTeamRepository) GetTeamInstallStatus(ctx context.Context, teamID string) (*TeamInstallation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t, ok := r.teams[teamID]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, nil
}

func (r *InMemoryTeamRepository) SaveTeamInstallStatus(ctx context.Context, team *TeamInstallation, installed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	team.Installed = installed
	team.UpdatedAt = time.Now()
	copied := *team
	r.teams[team.TeamID] = &copied
	return nil
}

// In-memory Opt-In Repository
type InMemoryOptInRepository struct {
	mu       sync.RWMutex
	statuses map[string]*UserOptInStatus
}

func NewInMemoryOptInRepository() *InMemoryOptInRepository {
	return &InMemoryOptInRepository{statuses: make(map[string]*UserOptInStatus)}
}

func optInKey(tenantID, userID string) string {
	return tenantID + "/" + userID
}

func (r *InMemoryOptInRepository) GetOptInStatus(ctx context.Context, tenantID, userID string) (*UserOptInStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.statuses[optInKey(tenantID, userID)]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, nil
}

func (r *InMemoryOptInRepository) SetOptInStatus(ctx context.Context, tenantID, userID string, optedIn bool, serviceURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.statuses[optInKey(tenantID, userID)] = &UserOptInStatus{
		TenantID:   tenantID,
		UserID:     userID,
		OptedIn:    optedIn,
		ServiceURL: serviceURL,
		UpdatedAt:  time.Now(),
	}
	return nil
}

// In-memory Mood Repository
type InMemoryMoodRepository struct {
	mu      sync.RWMutex
	entries []*MoodEntry
	now     func() time.Time
}

func NewInMemoryMoodRepository() *InMemoryMoodRepository {
	return &InMemoryMoodRepository{now: time.Now}
}

func (r *InMemoryMoodRepository) SaveMood(ctx context.Context, entry *MoodEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = r.now().UTC()
	}
	copied := *entry
	r.entries = append(r.entries, &copied)
	return nil
}

func (r *InMemoryMoodRepository) GetTodaysMoods(ctx context.Context, tenantID string, userIDs []string) ([]*MoodEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = true
	}

	start, end := dayBounds(r.now())
	var out []*MoodEntry
	for _, e := range r.entries {
		if e.TenantID != tenantID || !wanted[e.UserID] {
			continue
		}
		if e.RecordedAt.Before(start) || !e.RecordedAt.Before(end) {
			continue
		}
		copied := *e
		out = append(out, &copied)
	}
	return out, nil
}
