package repositories

import (
	"context"
	"errors"
	"time"

	"nazim/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type LimitOverrideRepository interface {
	GetActive(ctx context.Context, organizationID uuid.UUID, resourceKey models.ResourceKey, now time.Time) (*models.OrganizationLimitOverride, error)
	Upsert(ctx context.Context, override *models.OrganizationLimitOverride) error
}

type limitOverrideRepo struct {
	db Database
}

func NewLimitOverrideRepo(db Database) LimitOverrideRepository {
	return &limitOverrideRepo{db: db}
}

func (r *limitOverrideRepo) GetActive(ctx context.Context, organizationID uuid.UUID, resourceKey models.ResourceKey, now time.Time) (*models.OrganizationLimitOverride, error) {
	override := &models.OrganizationLimitOverride{}
	query := `
		SELECT id, organization_id, resource_key, limit_value, reason, granted_by, expires_at, created_at, updated_at, deleted_at
		FROM organization_limit_overrides
		WHERE organization_id = $1 AND resource_key = $2
			AND (expires_at IS NULL OR expires_at > $3)
			AND deleted_at IS NULL
	`
	err := r.db.QueryRow(ctx, query, organizationID, string(resourceKey), now).Scan(&override.ID,
		&override.OrganizationID, &override.ResourceKey, &override.LimitValue, &override.Reason,
		&override.GrantedBy, &override.ExpiresAt, &override.CreatedAt, &override.UpdatedAt, &override.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return override, nil
}

func (r *limitOverrideRepo) Upsert(ctx context.Context, override *models.OrganizationLimitOverride) error {
	query := `
		INSERT INTO organization_limit_overrides (id, organization_id, resource_key, limit_value, reason, granted_by, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (organization_id, resource_key)
		DO UPDATE SET limit_value = EXCLUDED.limit_value, reason = EXCLUDED.reason,
			granted_by = EXCLUDED.granted_by, expires_at = EXCLUDED.expires_at,
			deleted_at = NULL, updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query, override.ID, override.OrganizationID, string(override.ResourceKey),
		override.LimitValue, override.Reason, override.GrantedBy, override.ExpiresAt)
	return err
}
