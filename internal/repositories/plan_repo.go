package repositories

import (
	"context"
	"errors"

	"nazim/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type PlanRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.SubscriptionPlan, error)
	GetBySlug(ctx context.Context, slug string) (*models.SubscriptionPlan, error)
	ListActive(ctx context.Context) ([]*models.SubscriptionPlan, error)
	GetLimit(ctx context.Context, planID uuid.UUID, resourceKey models.ResourceKey) (*models.PlanLimit, error)
}

type planRepo struct {
	db Database
}

func NewPlanRepo(db Database) PlanRepository {
	return &planRepo{db: db}
}

const planColumns = `id, name, slug, price_yearly_afn, price_yearly_usd, is_active, trial_days,
		grace_period_days, readonly_period_days, max_schools, sort_order, created_at, updated_at, deleted_at`

func scanPlan(row pgx.Row) (*models.SubscriptionPlan, error) {
	plan := &models.SubscriptionPlan{}
	err := row.Scan(&plan.ID, &plan.Name, &plan.Slug, &plan.PriceYearlyAFN, &plan.PriceYearlyUSD,
		&plan.IsActive, &plan.TrialDays, &plan.GracePeriodDays, &plan.ReadonlyPeriodDays,
		&plan.MaxSchools, &plan.SortOrder, &plan.CreatedAt, &plan.UpdatedAt, &plan.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return plan, nil
}

func (r *planRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.SubscriptionPlan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM subscription_plans
		WHERE id = $1 AND deleted_at IS NULL
	`
	return scanPlan(r.db.QueryRow(ctx, query, id))
}

func (r *planRepo) GetBySlug(ctx context.Context, slug string) (*models.SubscriptionPlan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM subscription_plans
		WHERE slug = $1 AND is_active = true AND deleted_at IS NULL
	`
	return scanPlan(r.db.QueryRow(ctx, query, slug))
}

func (r *planRepo) ListActive(ctx context.Context) ([]*models.SubscriptionPlan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM subscription_plans
		WHERE is_active = true AND deleted_at IS NULL
		ORDER BY sort_order
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []*models.SubscriptionPlan
	for rows.Next() {
		plan := &models.SubscriptionPlan{}
		if err := rows.Scan(&plan.ID, &plan.Name, &plan.Slug, &plan.PriceYearlyAFN, &plan.PriceYearlyUSD,
			&plan.IsActive, &plan.TrialDays, &plan.GracePeriodDays, &plan.ReadonlyPeriodDays,
			&plan.MaxSchools, &plan.SortOrder, &plan.CreatedAt, &plan.UpdatedAt, &plan.DeletedAt); err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

func (r *planRepo) GetLimit(ctx context.Context, planID uuid.UUID, resourceKey models.ResourceKey) (*models.PlanLimit, error) {
	limit := &models.PlanLimit{}
	query := `
		SELECT id, plan_id, resource_key, limit_value, warning_threshold, created_at, updated_at
		FROM plan_limits
		WHERE plan_id = $1 AND resource_key = $2
	`
	err := r.db.QueryRow(ctx, query, planID, string(resourceKey)).Scan(&limit.ID, &limit.PlanID,
		&limit.ResourceKey, &limit.LimitValue, &limit.WarningThreshold, &limit.CreatedAt, &limit.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return limit, nil
}
