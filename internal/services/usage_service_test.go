package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"nazim/internal/config"
	"nazim/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type MockUsageRepo struct {
	mock.Mock
}

func (m *MockUsageRepo) Get(ctx context.Context, organizationID uuid.UUID, resourceKey models.ResourceKey) (*models.UsageCurrent, error) {
	args := m.Called(ctx, organizationID, resourceKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UsageCurrent), args.Error(1)
}

func (m *MockUsageRepo) ListByOrganization(ctx context.Context, organizationID uuid.UUID) ([]*models.UsageCurrent, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.UsageCurrent), args.Error(1)
}

func (m *MockUsageRepo) Upsert(ctx context.Context, organizationID uuid.UUID, resourceKey models.ResourceKey, count int, calculatedAt time.Time) error {
	args := m.Called(ctx, organizationID, resourceKey, count, calculatedAt)
	return args.Error(0)
}

func (m *MockUsageRepo) MarkWarningSent(ctx context.Context, organizationID uuid.UUID, resourceKey models.ResourceKey, at time.Time) error {
	args := m.Called(ctx, organizationID, resourceKey, at)
	return args.Error(0)
}

func (m *MockUsageRepo) CountResource(ctx context.Context, organizationID uuid.UUID, resourceKey models.ResourceKey) (int, error) {
	args := m.Called(ctx, organizationID, resourceKey)
	return args.Int(0), args.Error(1)
}

type MockLimitOverrideRepo struct {
	mock.Mock
}

func (m *MockLimitOverrideRepo) GetActive(ctx context.Context, organizationID uuid.UUID, resourceKey models.ResourceKey, now time.Time) (*models.OrganizationLimitOverride, error) {
	args := m.Called(ctx, organizationID, resourceKey, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OrganizationLimitOverride), args.Error(1)
}

func (m *MockLimitOverrideRepo) Upsert(ctx context.Context, override *models.OrganizationLimitOverride) error {
	args := m.Called(ctx, override)
	return args.Error(0)
}

type MockStorageService struct {
	mock.Mock
}

func (m *MockStorageService) EnsureBucketExists(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStorageService) OrganizationUsageMB(ctx context.Context, organizationID uuid.UUID) (int, error) {
	args := m.Called(ctx, organizationID)
	return args.Int(0), args.Error(1)
}

type UsageServiceTestSuite struct {
	suite.Suite
	usageRepo    *MockUsageRepo
	subRepo      *MockSubscriptionRepo
	planRepo     *MockPlanRepo
	overrideRepo *MockLimitOverrideRepo
	storage      *MockStorageService
	service      UsageService
	ctx          context.Context
	orgID        uuid.UUID
}

func (suite *UsageServiceTestSuite) SetupTest() {
	suite.usageRepo = &MockUsageRepo{}
	suite.subRepo = &MockSubscriptionRepo{}
	suite.planRepo = &MockPlanRepo{}
	suite.overrideRepo = &MockLimitOverrideRepo{}
	suite.storage = &MockStorageService{}
	suite.service = NewUsageService(suite.usageRepo, suite.subRepo, suite.planRepo,
		suite.overrideRepo, suite.storage, config.Default())
	suite.ctx = context.Background()
	suite.orgID = uuid.New()
}

func (suite *UsageServiceTestSuite) TearDownTest() {
	suite.usageRepo.AssertExpectations(suite.T())
	suite.subRepo.AssertExpectations(suite.T())
	suite.planRepo.AssertExpectations(suite.T())
	suite.overrideRepo.AssertExpectations(suite.T())
	suite.storage.AssertExpectations(suite.T())
}

func TestUsageServiceTestSuite(t *testing.T) {
	suite.Run(t, new(UsageServiceTestSuite))
}

func (suite *UsageServiceTestSuite) TestGetUsage_FreshCacheHit() {
	calculated := time.Now().UTC().Add(-time.Minute)
	cached := &models.UsageCurrent{
		OrganizationID:   suite.orgID,
		ResourceKey:      models.ResourceStudents,
		CurrentCount:     42,
		LastCalculatedAt: &calculated,
	}
	suite.usageRepo.On("Get", suite.ctx, suite.orgID, models.ResourceStudents).Return(cached, nil)

	count, err := suite.service.GetUsage(suite.ctx, suite.orgID, models.ResourceStudents)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 42, count)
	suite.usageRepo.AssertNotCalled(suite.T(), "CountResource", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *UsageServiceTestSuite) TestGetUsage_StaleRecomputes() {
	calculated := time.Now().UTC().Add(-10 * time.Minute)
	cached := &models.UsageCurrent{
		OrganizationID:   suite.orgID,
		ResourceKey:      models.ResourceStudents,
		CurrentCount:     42,
		LastCalculatedAt: &calculated,
	}
	suite.usageRepo.On("Get", suite.ctx, suite.orgID, models.ResourceStudents).Return(cached, nil)
	suite.usageRepo.On("CountResource", suite.ctx, suite.orgID, models.ResourceStudents).Return(45, nil)
	suite.usageRepo.On("Upsert", suite.ctx, suite.orgID, models.ResourceStudents, 45, mock.AnythingOfType("time.Time")).Return(nil)

	count, err := suite.service.GetUsage(suite.ctx, suite.orgID, models.ResourceStudents)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 45, count)
}

func (suite *UsageServiceTestSuite) TestGetUsage_MissingRowRecomputes() {
	suite.usageRepo.On("Get", suite.ctx, suite.orgID, models.ResourceSchools).Return(nil, nil)
	suite.usageRepo.On("CountResource", suite.ctx, suite.orgID, models.ResourceSchools).Return(0, nil)
	suite.usageRepo.On("Upsert", suite.ctx, suite.orgID, models.ResourceSchools, 0, mock.AnythingOfType("time.Time")).Return(nil)

	count, err := suite.service.GetUsage(suite.ctx, suite.orgID, models.ResourceSchools)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 0, count)
}

func (suite *UsageServiceTestSuite) TestGetUsage_StorageCountsThroughObjectStore() {
	suite.usageRepo.On("Get", suite.ctx, suite.orgID, models.ResourceStorageMB).Return(nil, nil)
	suite.storage.On("OrganizationUsageMB", suite.ctx, suite.orgID).Return(512, nil)
	suite.usageRepo.On("Upsert", suite.ctx, suite.orgID, models.ResourceStorageMB, 512, mock.AnythingOfType("time.Time")).Return(nil)

	count, err := suite.service.GetUsage(suite.ctx, suite.orgID, models.ResourceStorageMB)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 512, count)
	suite.usageRepo.AssertNotCalled(suite.T(), "CountResource", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *UsageServiceTestSuite) TestGetUsage_UnknownResource() {
	count, err := suite.service.GetUsage(suite.ctx, suite.orgID, models.ResourceKey("gadgets"))
	assert.Error(suite.T(), err)
	assert.Equal(suite.T(), 0, count)
}

func (suite *UsageServiceTestSuite) TestRecalculateUsage_CountsEveryResource() {
	for _, key := range models.AllResourceKeys {
		if key == models.ResourceStorageMB {
			continue
		}
		suite.usageRepo.On("CountResource", suite.ctx, suite.orgID, key).Return(3, nil)
		suite.usageRepo.On("Upsert", suite.ctx, suite.orgID, key, 3, mock.AnythingOfType("time.Time")).Return(nil)
	}
	suite.storage.On("OrganizationUsageMB", suite.ctx, suite.orgID).Return(10, nil)
	suite.usageRepo.On("Upsert", suite.ctx, suite.orgID, models.ResourceStorageMB, 10, mock.AnythingOfType("time.Time")).Return(nil)

	counts, err := suite.service.RecalculateUsage(suite.ctx, suite.orgID)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), counts, len(models.AllResourceKeys))
	assert.Equal(suite.T(), 3, counts[models.ResourceStudents])
	assert.Equal(suite.T(), 10, counts[models.ResourceStorageMB])
}

func (suite *UsageServiceTestSuite) TestGetLimit_OverrideWinsOverPlan() {
	override := &models.OrganizationLimitOverride{
		OrganizationID: suite.orgID,
		ResourceKey:    models.ResourceStudents,
		LimitValue:     500,
	}
	suite.overrideRepo.On("GetActive", suite.ctx, suite.orgID, models.ResourceStudents, mock.AnythingOfType("time.Time")).Return(override, nil)

	limit, err := suite.service.GetLimit(suite.ctx, suite.orgID, models.ResourceStudents)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 500, limit)
	suite.planRepo.AssertNotCalled(suite.T(), "GetLimit", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *UsageServiceTestSuite) TestGetLimit_FallsBackToPlan() {
	planID := uuid.New()
	sub := &models.Subscription{ID: uuid.New(), OrganizationID: suite.orgID, PlanID: planID, Status: models.StatusActive}
	planLimit := &models.PlanLimit{PlanID: planID, ResourceKey: models.ResourceStudents, LimitValue: 100}

	suite.overrideRepo.On("GetActive", suite.ctx, suite.orgID, models.ResourceStudents, mock.AnythingOfType("time.Time")).Return(nil, nil)
	suite.subRepo.On("GetCurrent", suite.ctx, suite.orgID).Return(sub, nil)
	suite.planRepo.On("GetLimit", suite.ctx, planID, models.ResourceStudents).Return(planLimit, nil)

	limit, err := suite.service.GetLimit(suite.ctx, suite.orgID, models.ResourceStudents)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 100, limit)
}

func (suite *UsageServiceTestSuite) TestGetLimit_NoSubscriptionMeansZero() {
	suite.overrideRepo.On("GetActive", suite.ctx, suite.orgID, models.ResourceStudents, mock.AnythingOfType("time.Time")).Return(nil, nil)
	suite.subRepo.On("GetCurrent", suite.ctx, suite.orgID).Return(nil, nil)

	limit, err := suite.service.GetLimit(suite.ctx, suite.orgID, models.ResourceStudents)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 0, limit)
}

func (suite *UsageServiceTestSuite) expectLimitAndUsage(planID uuid.UUID, limitValue, threshold, current int) {
	sub := &models.Subscription{ID: uuid.New(), OrganizationID: suite.orgID, PlanID: planID, Status: models.StatusActive}
	planLimit := &models.PlanLimit{PlanID: planID, ResourceKey: models.ResourceStudents, LimitValue: limitValue, WarningThreshold: threshold}
	calculated := time.Now().UTC()
	cached := &models.UsageCurrent{
		OrganizationID:   suite.orgID,
		ResourceKey:      models.ResourceStudents,
		CurrentCount:     current,
		LastCalculatedAt: &calculated,
	}

	suite.overrideRepo.On("GetActive", suite.ctx, suite.orgID, models.ResourceStudents, mock.AnythingOfType("time.Time")).Return(nil, nil)
	suite.subRepo.On("GetCurrent", suite.ctx, suite.orgID).Return(sub, nil)
	suite.planRepo.On("GetLimit", suite.ctx, planID, models.ResourceStudents).Return(planLimit, nil)
	suite.usageRepo.On("Get", suite.ctx, suite.orgID, models.ResourceStudents).Return(cached, nil)
}

func (suite *UsageServiceTestSuite) TestCanCreate_UnderLimit() {
	suite.expectLimitAndUsage(uuid.New(), 100, 80, 50)

	check, err := suite.service.CanCreate(suite.ctx, suite.orgID, models.ResourceStudents)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), check.Allowed)
	assert.False(suite.T(), check.Warning)
	assert.Equal(suite.T(), 50, check.Remaining)
	assert.InDelta(suite.T(), 50.0, check.Percentage, 0.01)
}

func (suite *UsageServiceTestSuite) TestCanCreate_WarningAboveThreshold() {
	suite.expectLimitAndUsage(uuid.New(), 100, 80, 85)

	check, err := suite.service.CanCreate(suite.ctx, suite.orgID, models.ResourceStudents)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), check.Allowed)
	assert.True(suite.T(), check.Warning)
}

func (suite *UsageServiceTestSuite) TestCanCreate_AtLimitBlocks() {
	suite.expectLimitAndUsage(uuid.New(), 100, 80, 100)

	check, err := suite.service.CanCreate(suite.ctx, suite.orgID, models.ResourceStudents)
	assert.NoError(suite.T(), err)
	assert.False(suite.T(), check.Allowed)
	assert.False(suite.T(), check.Warning)
	assert.Equal(suite.T(), 0, check.Remaining)
	assert.NotNil(suite.T(), check.Message)
}

func (suite *UsageServiceTestSuite) TestCanCreate_UnlimitedAlwaysAllows() {
	override := &models.OrganizationLimitOverride{
		OrganizationID: suite.orgID,
		ResourceKey:    models.ResourceStudents,
		LimitValue:     -1,
	}
	calculated := time.Now().UTC()
	cached := &models.UsageCurrent{
		OrganizationID:   suite.orgID,
		ResourceKey:      models.ResourceStudents,
		CurrentCount:     99999,
		LastCalculatedAt: &calculated,
	}
	suite.overrideRepo.On("GetActive", suite.ctx, suite.orgID, models.ResourceStudents, mock.AnythingOfType("time.Time")).Return(override, nil)
	suite.usageRepo.On("Get", suite.ctx, suite.orgID, models.ResourceStudents).Return(cached, nil)

	check, err := suite.service.CanCreate(suite.ctx, suite.orgID, models.ResourceStudents)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), check.Allowed)
	assert.True(suite.T(), check.Unlimited)
}

func (suite *UsageServiceTestSuite) TestCanCreate_DisabledResourceBlocks() {
	planID := uuid.New()
	sub := &models.Subscription{ID: uuid.New(), OrganizationID: suite.orgID, PlanID: planID, Status: models.StatusActive}
	planLimit := &models.PlanLimit{PlanID: planID, ResourceKey: models.ResourceDocuments, LimitValue: 0}

	suite.overrideRepo.On("GetActive", suite.ctx, suite.orgID, models.ResourceDocuments, mock.AnythingOfType("time.Time")).Return(nil, nil)
	suite.subRepo.On("GetCurrent", suite.ctx, suite.orgID).Return(sub, nil)
	suite.planRepo.On("GetLimit", suite.ctx, planID, models.ResourceDocuments).Return(planLimit, nil)

	check, err := suite.service.CanCreate(suite.ctx, suite.orgID, models.ResourceDocuments)
	assert.NoError(suite.T(), err)
	assert.False(suite.T(), check.Allowed)
	assert.NotNil(suite.T(), check.Message)
	suite.usageRepo.AssertNotCalled(suite.T(), "Get", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *UsageServiceTestSuite) TestAssertCanCreate_ReturnsTypedError() {
	suite.expectLimitAndUsage(uuid.New(), 10, 80, 10)

	err := suite.service.AssertCanCreate(suite.ctx, suite.orgID, models.ResourceStudents)
	var limitErr *ErrLimitReached
	assert.ErrorAs(suite.T(), err, &limitErr)
	assert.Equal(suite.T(), models.ResourceStudents, limitErr.Resource)
	assert.Equal(suite.T(), 10, limitErr.Limit)
}

func (suite *UsageServiceTestSuite) TestRecalculateUsage_CountFailureStops() {
	suite.usageRepo.On("CountResource", suite.ctx, suite.orgID, models.ResourceStudents).Return(0, errors.New("table missing"))

	counts, err := suite.service.RecalculateUsage(suite.ctx, suite.orgID)
	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), counts)
}
