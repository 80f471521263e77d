package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ============================================
// PostgreSQL Mood Repository
// ============================================

type pgMoodRepository struct {
	pool *pgxpool.Pool
}

func NewMoodRepository(pool *pgxpool.Pool) MoodRepository {
	return &pgMoodRepository{pool: pool}
}

func (r *pgMoodRepository) SaveMood(ctx context.Context, entry *MoodEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO mood_entries (id, tenant_id, team_id, user_id, mood, recorded_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		entry.ID, entry.TenantID, entry.TeamID, entry.UserID, entry.Mood, entry.RecordedAt,
	)
	return err
}

func (r *pgMoodRepository) GetTodaysMoods(ctx context.Context, tenantID string, userIDs []string) ([]*MoodEntry, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	start, end := dayBounds(time.Now())
	query := `
		SELECT id, tenant_id, COALESCE(team_id, ''), user_id, mood, recorded_at
		FROM mood_entries
		WHERE tenant_id = $1
		  AND user_id = ANY($2)
		  AND recorded_at >= $3 AND recorded_at < $4
		ORDER BY recorded_at
	`
	rows, err := r.pool.Query(ctx, query, tenantID, userIDs, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*MoodEntry
	for rows.Next() {
		e := &MoodEntry{}
		if err := rows.Scan(&e.ID, &e.TenantID, &e.TeamID, &e.UserID, &e.Mood, &e.RecordedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
