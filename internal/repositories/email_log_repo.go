package repositories

import (
	"context"

	"nazim/internal/models"

	"github.com/google/uuid"
)

type EmailLogRepository interface {
	Create(ctx context.Context, entry *models.SubscriptionEmailLog) error
	// WasSent reports whether an email of the given type was already delivered
	// for this subscription. Failed attempts do not count.
	WasSent(ctx context.Context, subscriptionID uuid.UUID, emailType string) (bool, error)
}

type emailLogRepo struct {
	db Database
}

func NewEmailLogRepo(db Database) EmailLogRepository {
	return &emailLogRepo{db: db}
}

func (r *emailLogRepo) Create(ctx context.Context, entry *models.SubscriptionEmailLog) error {
	query := `
		INSERT INTO subscription_email_logs (id, organization_id, subscription_id, email_type, recipient, subject, status, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`
	_, err := r.db.Exec(ctx, query, entry.ID, entry.OrganizationID, entry.SubscriptionID,
		entry.EmailType, entry.Recipient, entry.Subject, entry.Status, entry.Error)
	return err
}

func (r *emailLogRepo) WasSent(ctx context.Context, subscriptionID uuid.UUID, emailType string) (bool, error) {
	var count int
	query := `
		SELECT COUNT(*)
		FROM subscription_email_logs
		WHERE subscription_id = $1 AND email_type = $2 AND status = 'sent'
	`
	if err := r.db.QueryRow(ctx, query, subscriptionID, emailType).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
