package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nazim/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// countQueries maps each database-counted resource to its live count query.
// Counts always exclude soft-deleted rows; recounting from source tables is
// what keeps the cache free of increment/decrement drift.
var countQueries = map[models.ResourceKey]string{
	models.ResourceStudents:  `SELECT COUNT(*) FROM students WHERE organization_id = $1 AND deleted_at IS NULL`,
	models.ResourceStaff:     `SELECT COUNT(*) FROM staff WHERE organization_id = $1 AND deleted_at IS NULL`,
	models.ResourceUsers:     `SELECT COUNT(*) FROM profiles WHERE organization_id = $1 AND is_active = true`,
	models.ResourceSchools:   `SELECT COUNT(*) FROM schools WHERE organization_id = $1 AND deleted_at IS NULL`,
	models.ResourceClasses:   `SELECT COUNT(*) FROM classes WHERE organization_id = $1 AND deleted_at IS NULL`,
	models.ResourceExams:     `SELECT COUNT(*) FROM exams WHERE organization_id = $1 AND deleted_at IS NULL`,
	models.ResourceDocuments: `SELECT COUNT(*) FROM documents WHERE organization_id = $1 AND deleted_at IS NULL`,
}

type UsageRepository interface {
	Get(ctx context.Context, organizationID uuid.UUID, resourceKey models.ResourceKey) (*models.UsageCurrent, error)
	ListByOrganization(ctx context.Context, organizationID uuid.UUID) ([]*models.UsageCurrent, error)
	Upsert(ctx context.Context, organizationID uuid.UUID, resourceKey models.ResourceKey, count int, calculatedAt time.Time) error
	MarkWarningSent(ctx context.Context, organizationID uuid.UUID, resourceKey models.ResourceKey, at time.Time) error
	// CountResource runs the live count query for a database-counted resource.
	CountResource(ctx context.Context, organizationID uuid.UUID, resourceKey models.ResourceKey) (int, error)
}

type usageRepo struct {
	db Database
}

func NewUsageRepo(db Database) UsageRepository {
	return &usageRepo{db: db}
}

func (r *usageRepo) Get(ctx context.Context, organizationID uuid.UUID, resourceKey models.ResourceKey) (*models.UsageCurrent, error) {
	usage := &models.UsageCurrent{}
	query := `
		SELECT id, organization_id, resource_key, current_count, last_calculated_at, last_warning_sent_at, created_at, updated_at
		FROM usage_current
		WHERE organization_id = $1 AND resource_key = $2
	`
	err := r.db.QueryRow(ctx, query, organizationID, string(resourceKey)).Scan(&usage.ID, &usage.OrganizationID,
		&usage.ResourceKey, &usage.CurrentCount, &usage.LastCalculatedAt, &usage.LastWarningSentAt,
		&usage.CreatedAt, &usage.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return usage, nil
}

func (r *usageRepo) ListByOrganization(ctx context.Context, organizationID uuid.UUID) ([]*models.UsageCurrent, error) {
	query := `
		SELECT id, organization_id, resource_key, current_count, last_calculated_at, last_warning_sent_at, created_at, updated_at
		FROM usage_current
		WHERE organization_id = $1
		ORDER BY resource_key
	`
	rows, err := r.db.Query(ctx, query, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var usages []*models.UsageCurrent
	for rows.Next() {
		usage := &models.UsageCurrent{}
		if err := rows.Scan(&usage.ID, &usage.OrganizationID, &usage.ResourceKey, &usage.CurrentCount,
			&usage.LastCalculatedAt, &usage.LastWarningSentAt, &usage.CreatedAt, &usage.UpdatedAt); err != nil {
			return nil, err
		}
		usages = append(usages, usage)
	}
	return usages, rows.Err()
}

func (r *usageRepo) Upsert(ctx context.Context, organizationID uuid.UUID, resourceKey models.ResourceKey, count int, calculatedAt time.Time) error {
	query := `
		INSERT INTO usage_current (id, organization_id, resource_key, current_count, last_calculated_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (organization_id, resource_key)
		DO UPDATE SET current_count = EXCLUDED.current_count, last_calculated_at = EXCLUDED.last_calculated_at, updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query, uuid.New(), organizationID, string(resourceKey), count, calculatedAt)
	return err
}

func (r *usageRepo) MarkWarningSent(ctx context.Context, organizationID uuid.UUID, resourceKey models.ResourceKey, at time.Time) error {
	query := `
		UPDATE usage_current
		SET last_warning_sent_at = $1, updated_at = NOW()
		WHERE organization_id = $2 AND resource_key = $3
	`
	_, err := r.db.Exec(ctx, query, at, organizationID, string(resourceKey))
	return err
}

func (r *usageRepo) CountResource(ctx context.Context, organizationID uuid.UUID, resourceKey models.ResourceKey) (int, error) {
	query, ok := countQueries[resourceKey]
	if !ok {
		return 0, fmt.Errorf("no count query for resource %q", resourceKey)
	}
	var count int
	if err := r.db.QueryRow(ctx, query, organizationID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
