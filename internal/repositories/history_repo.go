package repositories

import (
	"context"

	"nazim/internal/models"

	"github.com/google/uuid"
)

type HistoryRepository interface {
	Create(ctx context.Context, entry *models.SubscriptionHistory) error
	ListByOrganization(ctx context.Context, organizationID uuid.UUID, limit, offset int) ([]*models.SubscriptionHistory, error)
}

type historyRepo struct {
	db Database
}

func NewHistoryRepo(db Database) HistoryRepository {
	return &historyRepo{db: db}
}

func (r *historyRepo) Create(ctx context.Context, entry *models.SubscriptionHistory) error {
	query := `
		INSERT INTO subscription_history (id, organization_id, subscription_id, action, from_plan_id, to_plan_id, from_status, to_status, performed_by, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	`
	_, err := r.db.Exec(ctx, query, entry.ID, entry.OrganizationID, entry.SubscriptionID, entry.Action,
		entry.FromPlanID, entry.ToPlanID, entry.FromStatus, entry.ToStatus, entry.PerformedBy, entry.Notes)
	return err
}

func (r *historyRepo) ListByOrganization(ctx context.Context, organizationID uuid.UUID, limit, offset int) ([]*models.SubscriptionHistory, error) {
	query := `
		SELECT id, organization_id, subscription_id, action, from_plan_id, to_plan_id, from_status, to_status, performed_by, notes, created_at
		FROM subscription_history
		WHERE organization_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, organizationID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.SubscriptionHistory
	for rows.Next() {
		entry := &models.SubscriptionHistory{}
		if err := rows.Scan(&entry.ID, &entry.OrganizationID, &entry.SubscriptionID, &entry.Action,
			&entry.FromPlanID, &entry.ToPlanID, &entry.FromStatus, &entry.ToStatus,
			&entry.PerformedBy, &entry.Notes, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
