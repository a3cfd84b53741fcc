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

type UsageRepoTestSuite struct {
	suite.Suite
	mock    pgxmock.PgxPoolIface
	repo    UsageRepository
	orgID   uuid.UUID
	context context.Context
}

func (suite *UsageRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	assert.NoError(suite.T(), err)
	suite.mock = mock

	suite.repo = NewUsageRepo(mock)
	suite.orgID = uuid.New()
	suite.context = context.Background()
}

func (suite *UsageRepoTestSuite) TearDownTest() {
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
	suite.mock.Close()
}

func TestUsageRepoTestSuite(t *testing.T) {
	suite.Run(t, new(UsageRepoTestSuite))
}

func (suite *UsageRepoTestSuite) TestGet_NoRowsReturnsNil() {
	suite.mock.ExpectQuery(`FROM usage_current\s+WHERE organization_id = \$1 AND resource_key = \$2`).
		WithArgs(suite.orgID, "students").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	usage, err := suite.repo.Get(suite.context, suite.orgID, models.ResourceStudents)
	assert.NoError(suite.T(), err)
	assert.Nil(suite.T(), usage)
}

func (suite *UsageRepoTestSuite) TestGet_ReturnsRow() {
	id := uuid.New()
	calculated := time.Now().UTC()
	rows := pgxmock.NewRows([]string{
		"id", "organization_id", "resource_key", "current_count",
		"last_calculated_at", "last_warning_sent_at", "created_at", "updated_at",
	}).AddRow(id, suite.orgID, models.ResourceKey("students"), 42, &calculated, nil, calculated, calculated)

	suite.mock.ExpectQuery(`FROM usage_current`).
		WithArgs(suite.orgID, "students").
		WillReturnRows(rows)

	usage, err := suite.repo.Get(suite.context, suite.orgID, models.ResourceStudents)
	assert.NoError(suite.T(), err)
	assert.NotNil(suite.T(), usage)
	assert.Equal(suite.T(), 42, usage.CurrentCount)
	assert.NotNil(suite.T(), usage.LastCalculatedAt)
}

func (suite *UsageRepoTestSuite) TestUpsert_UsesOnConflict() {
	calculatedAt := time.Now().UTC()
	suite.mock.ExpectExec(`INSERT INTO usage_current .*\s+ON CONFLICT \(organization_id, resource_key\)\s+DO UPDATE SET current_count = EXCLUDED.current_count, last_calculated_at = EXCLUDED.last_calculated_at, updated_at = NOW\(\)`).
		WithArgs(pgxmock.AnyArg(), suite.orgID, "students", 42, calculatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := suite.repo.Upsert(suite.context, suite.orgID, models.ResourceStudents, 42, calculatedAt)
	assert.NoError(suite.T(), err)
}

func (suite *UsageRepoTestSuite) TestCountResource_ExcludesSoftDeleted() {
	suite.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM students WHERE organization_id = \$1 AND deleted_at IS NULL`).
		WithArgs(suite.orgID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(17))

	count, err := suite.repo.CountResource(suite.context, suite.orgID, models.ResourceStudents)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 17, count)
}

func (suite *UsageRepoTestSuite) TestCountResource_UnknownKeyFails() {
	count, err := suite.repo.CountResource(suite.context, suite.orgID, models.ResourceKey("gadgets"))
	assert.Error(suite.T(), err)
	assert.Equal(suite.T(), 0, count)
}

func (suite *UsageRepoTestSuite) TestCountResource_StorageHasNoDatabaseQuery() {
	// storage_mb is measured against the object store, not a table.
	_, err := suite.repo.CountResource(suite.context, suite.orgID, models.ResourceStorageMB)
	assert.Error(suite.T(), err)
}

func (suite *UsageRepoTestSuite) TestMarkWarningSent() {
	at := time.Now().UTC()
	suite.mock.ExpectExec(`UPDATE usage_current\s+SET last_warning_sent_at = \$1, updated_at = NOW\(\)\s+WHERE organization_id = \$2 AND resource_key = \$3`).
		WithArgs(at, suite.orgID, "students").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := suite.repo.MarkWarningSent(suite.context, suite.orgID, models.ResourceStudents, at)
	assert.NoError(suite.T(), err)
}
