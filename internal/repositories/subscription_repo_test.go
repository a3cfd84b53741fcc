package repositories

import (
	"context"
	"testing"
	"time"

	"nazim/internal/models"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type SubscriptionRepoTestSuite struct {
	suite.Suite
	mock    pgxmock.PgxPoolIface
	repo    SubscriptionRepository
	orgID   uuid.UUID
	subID   uuid.UUID
	planID  uuid.UUID
	now     time.Time
	context context.Context
}

func (suite *SubscriptionRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	assert.NoError(suite.T(), err)
	suite.mock = mock

	suite.repo = NewSubscriptionRepo(mock)
	suite.orgID = uuid.New()
	suite.subID = uuid.New()
	suite.planID = uuid.New()
	suite.now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	suite.context = context.Background()
}

func (suite *SubscriptionRepoTestSuite) TearDownTest() {
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
	suite.mock.Close()
}

func TestSubscriptionRepoTestSuite(t *testing.T) {
	suite.Run(t, new(SubscriptionRepoTestSuite))
}

func (suite *SubscriptionRepoTestSuite) subscriptionRows(status models.SubscriptionStatus, expiresAt *time.Time) *pgxmock.Rows {
	created := suite.now.Add(-30 * 24 * time.Hour)
	return pgxmock.NewRows([]string{
		"id", "organization_id", "plan_id", "status", "started_at", "expires_at", "trial_ends_at",
		"grace_period_ends_at", "readonly_period_ends_at", "cancelled_at", "suspension_reason",
		"created_at", "updated_at", "deleted_at",
	}).AddRow(suite.subID, suite.orgID, suite.planID, status, &created, expiresAt, nil,
		nil, nil, nil, nil, created, created, nil)
}

func (suite *SubscriptionRepoTestSuite) TestGetCurrent_ReturnsLatestRow() {
	expires := suite.now.Add(24 * time.Hour)
	suite.mock.ExpectQuery(`FROM organization_subscriptions\s+WHERE organization_id = \$1 AND deleted_at IS NULL\s+ORDER BY created_at DESC\s+LIMIT 1`).
		WithArgs(suite.orgID).
		WillReturnRows(suite.subscriptionRows(models.StatusActive, &expires))

	sub, err := suite.repo.GetCurrent(suite.context, suite.orgID)
	assert.NoError(suite.T(), err)
	assert.NotNil(suite.T(), sub)
	assert.Equal(suite.T(), suite.subID, sub.ID)
	assert.Equal(suite.T(), models.StatusActive, sub.Status)
}

func (suite *SubscriptionRepoTestSuite) TestGetCurrent_NoRowsReturnsNil() {
	suite.mock.ExpectQuery(`FROM organization_subscriptions`).
		WithArgs(suite.orgID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	sub, err := suite.repo.GetCurrent(suite.context, suite.orgID)
	assert.NoError(suite.T(), err)
	assert.Nil(suite.T(), sub)
}

func (suite *SubscriptionRepoTestSuite) TestListDueForGracePeriod_UsesStrictBoundary() {
	expires := suite.now.Add(-time.Hour)
	// The boundary comparison must be strict: rows where expires_at equals the
	// cutoff are not yet due.
	suite.mock.ExpectQuery(`WHERE status IN \('trial', 'active'\) AND expires_at < \$1 AND deleted_at IS NULL`).
		WithArgs(suite.now).
		WillReturnRows(suite.subscriptionRows(models.StatusTrial, &expires))

	subs, err := suite.repo.ListDueForGracePeriod(suite.context, suite.now)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), subs, 1)
	assert.Equal(suite.T(), models.StatusTrial, subs[0].Status)
}

func (suite *SubscriptionRepoTestSuite) TestListDueForReadonly_UsesStrictBoundary() {
	suite.mock.ExpectQuery(`WHERE status = 'grace_period' AND grace_period_ends_at < \$1 AND deleted_at IS NULL`).
		WithArgs(suite.now).
		WillReturnRows(suite.subscriptionRows(models.StatusGracePeriod, nil))

	subs, err := suite.repo.ListDueForReadonly(suite.context, suite.now)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), subs, 1)
}

func (suite *SubscriptionRepoTestSuite) TestListDueForExpiry_UsesStrictBoundary() {
	suite.mock.ExpectQuery(`WHERE status = 'readonly' AND readonly_period_ends_at < \$1 AND deleted_at IS NULL`).
		WithArgs(suite.now).
		WillReturnRows(suite.subscriptionRows(models.StatusReadonly, nil))

	subs, err := suite.repo.ListDueForExpiry(suite.context, suite.now)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), subs, 1)
}

func (suite *SubscriptionRepoTestSuite) TestBeginGracePeriod_GuardsOnExpectedStatus() {
	endsAt := suite.now.AddDate(0, 0, 14)
	suite.mock.ExpectExec(`UPDATE organization_subscriptions\s+SET status = 'grace_period', grace_period_ends_at = \$1, updated_at = NOW\(\)\s+WHERE id = \$2 AND status = \$3 AND deleted_at IS NULL`).
		WithArgs(endsAt, suite.subID, models.StatusTrial).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	moved, err := suite.repo.BeginGracePeriod(suite.context, suite.subID, models.StatusTrial, endsAt)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), moved)
}

func (suite *SubscriptionRepoTestSuite) TestBeginGracePeriod_LostGuardReturnsFalse() {
	endsAt := suite.now.AddDate(0, 0, 14)
	suite.mock.ExpectExec(`UPDATE organization_subscriptions`).
		WithArgs(endsAt, suite.subID, models.StatusActive).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	moved, err := suite.repo.BeginGracePeriod(suite.context, suite.subID, models.StatusActive, endsAt)
	assert.NoError(suite.T(), err)
	assert.False(suite.T(), moved)
}

func (suite *SubscriptionRepoTestSuite) TestMarkExpired_OnlyFromReadonly() {
	suite.mock.ExpectExec(`SET status = 'expired', updated_at = NOW\(\)\s+WHERE id = \$1 AND status = 'readonly' AND deleted_at IS NULL`).
		WithArgs(suite.subID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	moved, err := suite.repo.MarkExpired(suite.context, suite.subID)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), moved)
}

func (suite *SubscriptionRepoTestSuite) TestListExpiringBetween_HalfOpenWindow() {
	windowEnd := suite.now.AddDate(0, 0, 7)
	expires := suite.now.Add(6 * 24 * time.Hour)
	suite.mock.ExpectQuery(`WHERE status = 'active' AND expires_at > \$1 AND expires_at <= \$2 AND deleted_at IS NULL`).
		WithArgs(suite.now, windowEnd).
		WillReturnRows(suite.subscriptionRows(models.StatusActive, &expires))

	subs, err := suite.repo.ListExpiringBetween(suite.context, suite.now, windowEnd)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), subs, 1)
}

func (suite *SubscriptionRepoTestSuite) TestCreate_RejectsMisorderedTimestamps() {
	trialEnds := suite.now.Add(48 * time.Hour)
	expires := suite.now.Add(24 * time.Hour)
	sub := &models.Subscription{
		ID:             suite.subID,
		OrganizationID: suite.orgID,
		PlanID:         suite.planID,
		Status:         models.StatusTrial,
		TrialEndsAt:    &trialEnds,
		ExpiresAt:      &expires,
	}

	err := suite.repo.Create(suite.context, sub)
	assert.Error(suite.T(), err)
	assert.Contains(suite.T(), err.Error(), "expires_at")
}

func (suite *SubscriptionRepoTestSuite) TestSoftDelete() {
	suite.mock.ExpectExec(`SET deleted_at = NOW\(\), updated_at = NOW\(\)\s+WHERE id = \$1 AND deleted_at IS NULL`).
		WithArgs(suite.subID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := suite.repo.SoftDelete(suite.context, suite.subID)
	assert.NoError(suite.T(), err)
}
