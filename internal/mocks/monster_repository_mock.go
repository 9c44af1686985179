package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"bestiary-server/internal/models"
	"bestiary-server/internal/service"
)

// MockMonsterRepository is a mock type for the MonsterRepository type
type MockMonsterRepository struct {
	mock.Mock
}

// Create provides a mock function with given fields: ctx, record, imageURL, userID
func (_m *MockMonsterRepository) Create(ctx context.Context, record *models.CreatureRecord, imageURL string, userID uint64) (*models.Monster, error) {
	ret := _m.Called(ctx, record, imageURL, userID)
	return monsterOrNil(ret, 0), ret.Error(1)
}

// ListByOwner provides a mock function with given fields: ctx, userID
func (_m *MockMonsterRepository) ListByOwner(ctx context.Context, userID uint64) ([]models.Monster, error) {
	ret := _m.Called(ctx, userID)
	return monstersOrNil(ret, 0), ret.Error(1)
}

// ListAll provides a mock function with given fields: ctx
func (_m *MockMonsterRepository) ListAll(ctx context.Context) ([]models.Monster, error) {
	ret := _m.Called(ctx)
	return monstersOrNil(ret, 0), ret.Error(1)
}

// GetByID provides a mock function with given fields: ctx, id
func (_m *MockMonsterRepository) GetByID(ctx context.Context, id int64) (*models.Monster, error) {
	ret := _m.Called(ctx, id)
	return monsterOrNil(ret, 0), ret.Error(1)
}

// GetImageURL provides a mock function with given fields: ctx, id
func (_m *MockMonsterRepository) GetImageURL(ctx context.Context, id int64) (string, error) {
	ret := _m.Called(ctx, id)
	return ret.String(0), ret.Error(1)
}

// Delete provides a mock function with given fields: ctx, id, principal
func (_m *MockMonsterRepository) Delete(ctx context.Context, id int64, principal models.Principal) error {
	ret := _m.Called(ctx, id, principal)
	return ret.Error(0)
}

// Rename provides a mock function with given fields: ctx, id, userID, name
func (_m *MockMonsterRepository) Rename(ctx context.Context, id int64, userID uint64, name string) (*models.Monster, error) {
	ret := _m.Called(ctx, id, userID, name)
	return monsterOrNil(ret, 0), ret.Error(1)
}

// ImageReferenced provides a mock function with given fields: ctx, imageURL
func (_m *MockMonsterRepository) ImageReferenced(ctx context.Context, imageURL string) (bool, error) {
	ret := _m.Called(ctx, imageURL)
	return ret.Bool(0), ret.Error(1)
}

func NewMockMonsterRepository(t testingT) *MockMonsterRepository {
	m := &MockMonsterRepository{}
	register(&m.Mock, t)
	return m
}

func monsterOrNil(ret mock.Arguments, i int) *models.Monster {
	if ret.Get(i) == nil {
		return nil
	}
	return ret.Get(i).(*models.Monster)
}

func monstersOrNil(ret mock.Arguments, i int) []models.Monster {
	if ret.Get(i) == nil {
		return nil
	}
	return ret.Get(i).([]models.Monster)
}

var _ service.MonsterRepository = (*MockMonsterRepository)(nil)
