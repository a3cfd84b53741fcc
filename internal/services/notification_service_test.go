package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"nazim/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type MockEmailLogRepo struct {
	mock.Mock
}

func (m *MockEmailLogRepo) Create(ctx context.Context, entry *models.SubscriptionEmailLog) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockEmailLogRepo) WasSent(ctx context.Context, subscriptionID uuid.UUID, emailType string) (bool, error) {
	args := m.Called(ctx, subscriptionID, emailType)
	return args.Bool(0), args.Error(1)
}

type NotificationServiceTestSuite struct {
	suite.Suite
	orgRepo      *MockOrganizationRepo
	emailLogRepo *MockEmailLogRepo
	notifier     SubscriptionNotifier
	ctx          context.Context
	orgID        uuid.UUID
	subID        uuid.UUID
}

func (suite *NotificationServiceTestSuite) SetupTest() {
	suite.orgRepo = &MockOrganizationRepo{}
	suite.emailLogRepo = &MockEmailLogRepo{}
	suite.notifier = NewNotificationService(suite.orgRepo, suite.emailLogRepo)
	suite.ctx = context.Background()
	suite.orgID = uuid.New()
	suite.subID = uuid.New()
}

func (suite *NotificationServiceTestSuite) TearDownTest() {
	suite.orgRepo.AssertExpectations(suite.T())
	suite.emailLogRepo.AssertExpectations(suite.T())
}

func TestNotificationServiceTestSuite(t *testing.T) {
	suite.Run(t, new(NotificationServiceTestSuite))
}

func (suite *NotificationServiceTestSuite) organization(email string) *models.Organization {
	org := &models.Organization{
		ID:       suite.orgID,
		Name:     "Al-Falah School",
		IsActive: true,
	}
	if email != "" {
		org.AdminEmail = &email
	}
	return org
}

func (suite *NotificationServiceTestSuite) TestSendTrialWelcome_RecordsSentLog() {
	suite.orgRepo.On("GetByID", suite.ctx, suite.orgID).Return(suite.organization("admin@alfalah.edu"), nil).Once()
	suite.emailLogRepo.On("Create", suite.ctx, mock.MatchedBy(func(entry *models.SubscriptionEmailLog) bool {
		return entry.OrganizationID == suite.orgID &&
			entry.SubscriptionID != nil && *entry.SubscriptionID == suite.subID &&
			entry.EmailType == models.EmailTrialWelcome &&
			entry.Recipient == "admin@alfalah.edu" &&
			entry.Status == models.EmailStatusSent
	})).Return(nil).Once()

	err := suite.notifier.SendTrialWelcome(suite.ctx, suite.orgID, &suite.subID, models.TrialWelcomeEvent{TrialDays: 7})
	assert.NoError(suite.T(), err)
}

func (suite *NotificationServiceTestSuite) TestSendRenewalReminder_TypeEncodesOffset() {
	suite.orgRepo.On("GetByID", suite.ctx, suite.orgID).Return(suite.organization("admin@alfalah.edu"), nil).Once()
	suite.emailLogRepo.On("Create", suite.ctx, mock.MatchedBy(func(entry *models.SubscriptionEmailLog) bool {
		return entry.EmailType == "renewal_reminder_14"
	})).Return(nil).Once()

	expires := time.Date(2025, 6, 29, 0, 0, 0, 0, time.UTC)
	err := suite.notifier.SendRenewalReminder(suite.ctx, suite.orgID, &suite.subID, models.RenewalReminderEvent{
		DaysBeforeExpiry: 14,
		ExpiresAt:        expires,
	})
	assert.NoError(suite.T(), err)
}

func (suite *NotificationServiceTestSuite) TestSend_MissingOrganizationIsSkipped() {
	suite.orgRepo.On("GetByID", suite.ctx, suite.orgID).Return(nil, nil).Once()

	err := suite.notifier.SendGracePeriodStart(suite.ctx, suite.orgID, &suite.subID, models.GracePeriodStartedEvent{GracePeriodDays: 14})
	assert.NoError(suite.T(), err)
	suite.emailLogRepo.AssertNotCalled(suite.T(), "Create", mock.Anything, mock.Anything)
}

func (suite *NotificationServiceTestSuite) TestSend_MissingAdminEmailIsSkipped() {
	suite.orgRepo.On("GetByID", suite.ctx, suite.orgID).Return(suite.organization(""), nil).Once()

	err := suite.notifier.SendAccountSuspended(suite.ctx, suite.orgID, nil, models.AccountSuspendedEvent{Reason: "payment overdue"})
	assert.NoError(suite.T(), err)
	suite.emailLogRepo.AssertNotCalled(suite.T(), "Create", mock.Anything, mock.Anything)
}

func (suite *NotificationServiceTestSuite) TestSend_OrganizationLookupFailure() {
	suite.orgRepo.On("GetByID", suite.ctx, suite.orgID).Return(nil, errors.New("connection refused")).Once()

	err := suite.notifier.SendLimitReached(suite.ctx, suite.orgID, nil, models.LimitReachedEvent{
		Resource: models.ResourceStudents,
		Limit:    100,
	})
	assert.Error(suite.T(), err)
	suite.emailLogRepo.AssertNotCalled(suite.T(), "Create", mock.Anything, mock.Anything)
}
