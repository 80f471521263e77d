package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ============================================
// PostgreSQL Opt-In Repository
// ============================================

type pgOptInRepository struct {
	pool *pgxpool.Pool
}

func NewOptInRepository(pool *pgxpool.Pool) OptInRepository {
	return &pgOptInRepository{pool: pool}
}

func (r *pgOptInRepository) GetOptInStatus(ctx context.Context, tenantID, userID string) (*UserOptInStatus, error) {
	query := `
		SELECT tenant_id, user_id, opted_in, service_url, updated_at
		FROM user_opt_in_status WHERE tenant_id = $1 AND user_id = $2
	`
	s := &UserOptInStatus{}
	err := r.pool.QueryRow(ctx, query, tenantID, userID).Scan(
		&s.TenantID, &s.UserID, &s.OptedIn, &s.ServiceURL, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *pgOptInRepository) SetOptInStatus(ctx context.Context, tenantID, userID string, optedIn bool, serviceURL string) error {
	query := `
		INSERT INTO user_opt_in_status (tenant_id, user_id, opted_in, service_url, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (tenant_id, user_id) DO UPDATE
		SET opted_in = EXCLUDED.opted_in,
		    service_url = EXCLUDED.service_url,
		    updated_at = NOW()
	`
	_, err := r.pool.Exec(ctx, query, tenantID, userID, optedIn, serviceURL)
	return err
}
