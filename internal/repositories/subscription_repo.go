package repositories

import (
	"context"
	"errors"
	"time"

	"nazim/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type SubscriptionRepository interface {
	Create(ctx context.Context, sub *models.Subscription) error
	GetCurrent(ctx context.Context, organizationID uuid.UUID) (*models.Subscription, error)
	Update(ctx context.Context, sub *models.Subscription) error
	SoftDelete(ctx context.Context, id uuid.UUID) error

	// Transition scans. All boundary checks are strict: a subscription whose
	// boundary equals now is not yet due.
	ListDueForGracePeriod(ctx context.Context, now time.Time) ([]*models.Subscription, error)
	ListDueForReadonly(ctx context.Context, now time.Time) ([]*models.Subscription, error)
	ListDueForExpiry(ctx context.Context, now time.Time) ([]*models.Subscription, error)

	// Conditional transition writes. Each returns false when the row no longer
	// holds the expected status, which means another run already advanced it.
	BeginGracePeriod(ctx context.Context, id uuid.UUID, expect models.SubscriptionStatus, endsAt time.Time) (bool, error)
	BeginReadonly(ctx context.Context, id uuid.UUID, endsAt time.Time) (bool, error)
	MarkExpired(ctx context.Context, id uuid.UUID) (bool, error)

	// Reminder scans. Each window is (now, windowEnd].
	ListExpiringBetween(ctx context.Context, now, windowEnd time.Time) ([]*models.Subscription, error)
	ListTrialsEndingBetween(ctx context.Context, now, windowEnd time.Time) ([]*models.Subscription, error)
	ListGracePeriodsEndingBetween(ctx context.Context, now, windowEnd time.Time) ([]*models.Subscription, error)
}

type subscriptionRepo struct {
	db Database
}

func NewSubscriptionRepo(db Database) SubscriptionRepository {
	return &subscriptionRepo{db: db}
}

const subscriptionColumns = `id, organization_id, plan_id, status, started_at, expires_at, trial_ends_at,
		grace_period_ends_at, readonly_period_ends_at, cancelled_at, suspension_reason,
		created_at, updated_at, deleted_at`

func scanSubscription(row pgx.Row) (*models.Subscription, error) {
	sub := &models.Subscription{}
	err := row.Scan(&sub.ID, &sub.OrganizationID, &sub.PlanID, &sub.Status, &sub.StartedAt,
		&sub.ExpiresAt, &sub.TrialEndsAt, &sub.GracePeriodEndsAt, &sub.ReadonlyPeriodEndsAt,
		&sub.CancelledAt, &sub.SuspensionReason, &sub.CreatedAt, &sub.UpdatedAt, &sub.DeletedAt)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (r *subscriptionRepo) scanSubscriptions(rows pgx.Rows) ([]*models.Subscription, error) {
	defer rows.Close()
	var subs []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (r *subscriptionRepo) Create(ctx context.Context, sub *models.Subscription) error {
	if err := sub.ValidateTimestamps(); err != nil {
		return err
	}
	query := `
		INSERT INTO organization_subscriptions (id, organization_id, plan_id, status, started_at,
			expires_at, trial_ends_at, grace_period_ends_at, readonly_period_ends_at,
			cancelled_at, suspension_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, sub.ID, sub.OrganizationID, sub.PlanID, sub.Status, sub.StartedAt,
		sub.ExpiresAt, sub.TrialEndsAt, sub.GracePeriodEndsAt, sub.ReadonlyPeriodEndsAt,
		sub.CancelledAt, sub.SuspensionReason)
	return err
}

func (r *subscriptionRepo) GetCurrent(ctx context.Context, organizationID uuid.UUID) (*models.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM organization_subscriptions
		WHERE organization_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`
	sub, err := scanSubscription(r.db.QueryRow(ctx, query, organizationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}

func (r *subscriptionRepo) Update(ctx context.Context, sub *models.Subscription) error {
	if err := sub.ValidateTimestamps(); err != nil {
		return err
	}
	query := `
		UPDATE organization_subscriptions
		SET plan_id = $1, status = $2, started_at = $3, expires_at = $4, trial_ends_at = $5,
			grace_period_ends_at = $6, readonly_period_ends_at = $7, cancelled_at = $8,
			suspension_reason = $9, updated_at = NOW()
		WHERE id = $10 AND deleted_at IS NULL
	`
	_, err := r.db.Exec(ctx, query, sub.PlanID, sub.Status, sub.StartedAt, sub.ExpiresAt,
		sub.TrialEndsAt, sub.GracePeriodEndsAt, sub.ReadonlyPeriodEndsAt, sub.CancelledAt,
		sub.SuspensionReason, sub.ID)
	return err
}

func (r *subscriptionRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE organization_subscriptions
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	_, err := r.db.Exec(ctx, query, id)
	return err
}

func (r *subscriptionRepo) ListDueForGracePeriod(ctx context.Context, now time.Time) ([]*models.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM organization_subscriptions
		WHERE status IN ('trial', 'active') AND expires_at < $1 AND deleted_at IS NULL
	`
	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	return r.scanSubscriptions(rows)
}

func (r *subscriptionRepo) ListDueForReadonly(ctx context.Context, now time.Time) ([]*models.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM organization_subscriptions
		WHERE status = 'grace_period' AND grace_period_ends_at < $1 AND deleted_at IS NULL
	`
	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	return r.scanSubscriptions(rows)
}

func (r *subscriptionRepo) ListDueForExpiry(ctx context.Context, now time.Time) ([]*models.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM organization_subscriptions
		WHERE status = 'readonly' AND readonly_period_ends_at < $1 AND deleted_at IS NULL
	`
	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	return r.scanSubscriptions(rows)
}

func (r *subscriptionRepo) BeginGracePeriod(ctx context.Context, id uuid.UUID, expect models.SubscriptionStatus, endsAt time.Time) (bool, error) {
	query := `
		UPDATE organization_subscriptions
		SET status = 'grace_period', grace_period_ends_at = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3 AND deleted_at IS NULL
	`
	tag, err := r.db.Exec(ctx, query, endsAt, id, expect)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *subscriptionRepo) BeginReadonly(ctx context.Context, id uuid.UUID, endsAt time.Time) (bool, error) {
	query := `
		UPDATE organization_subscriptions
		SET status = 'readonly', readonly_period_ends_at = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'grace_period' AND deleted_at IS NULL
	`
	tag, err := r.db.Exec(ctx, query, endsAt, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *subscriptionRepo) MarkExpired(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE organization_subscriptions
		SET status = 'expired', updated_at = NOW()
		WHERE id = $1 AND status = 'readonly' AND deleted_at IS NULL
	`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *subscriptionRepo) ListExpiringBetween(ctx context.Context, now, windowEnd time.Time) ([]*models.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM organization_subscriptions
		WHERE status = 'active' AND expires_at > $1 AND expires_at <= $2 AND deleted_at IS NULL
	`
	rows, err := r.db.Query(ctx, query, now, windowEnd)
	if err != nil {
		return nil, err
	}
	return r.scanSubscriptions(rows)
}

func (r *subscriptionRepo) ListTrialsEndingBetween(ctx context.Context, now, windowEnd time.Time) ([]*models.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM organization_subscriptions
		WHERE status = 'trial' AND trial_ends_at > $1 AND trial_ends_at <= $2 AND deleted_at IS NULL
	`
	rows, err := r.db.Query(ctx, query, now, windowEnd)
	if err != nil {
		return nil, err
	}
	return r.scanSubscriptions(rows)
}

func (r *subscriptionRepo) ListGracePeriodsEndingBetween(ctx context.Context, now, windowEnd time.Time) ([]*models.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM organization_subscriptions
		WHERE status = 'grace_period' AND grace_period_ends_at > $1 AND grace_period_ends_at <= $2 AND deleted_at IS NULL
	`
	rows, err := r.db.Query(ctx, query, now, windowEnd)
	if err != nil {
		return nil, err
	}
	return r.scanSubscriptions(rows)
}
