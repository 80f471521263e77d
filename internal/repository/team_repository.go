package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ============================================
// PostgreSQL Team Installation Repository
// ============================================

type pgTeamRepository struct {
	pool *pgxpool.Pool
}

func NewTeamRepository(pool *pgxpool.Pool) TeamRepository {
	return &pgTeamRepository{pool: pool}
}

func (r *pgTeamRepository) GetInstalledTeams(ctx context.Context) ([]*TeamInstallation, error) {
	query := `
		SELECT team_id, service_url, tenant_id, installed, updated_at
		FROM team_installations
		WHERE installed = TRUE
		ORDER BY team_id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []*TeamInstallation
	for rows.Next() {
		t := &TeamInstallation{}
		if err := rows.Scan(&t.TeamID, &t.ServiceURL, &t.TenantID, &t.Installed, &t.UpdatedAt); err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

func (r *pgTeamRepository) GetTeamInstallStatus(ctx context.Context, teamID string) (*TeamInstallation, error) {
	query := `
		SELECT team_id, service_url, tenant_id, installed, updated_at
		FROM team_installations WHERE team_id = $1
	`
	t := &TeamInstallation{}
	err := r.pool.QueryRow(ctx, query, teamID).Scan(
		&t.TeamID, &t.ServiceURL, &t.TenantID, &t.Installed, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *pgTeamRepository) SaveTeamInstallStatus(ctx context.Context, team *TeamInstallation, installed bool) error {
	query := `
		INSERT INTO team_installations (team_id, service_url, tenant_id, installed, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (team_id) DO UPDATE
		SET service_url = EXCLUDED.service_url,
		    tenant_id = EXCLUDED.tenant_id,
		    installed = EXCLUDED.installed,
		    updated_at = NOW()
		RETURNING installed, updated_at
	`
	return r.pool.QueryRow(ctx, query, team.TeamID, team.ServiceURL, team.TenantID, installed).
		Scan(&team.Installed, &team.UpdatedAt)
}
