package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"bestiary-server/internal/models"
	"bestiary-server/internal/service"
)

// MockMonsterService is a mock type for the MonsterService type
type MockMonsterService struct {
	mock.Mock
}

// Generate provides a mock function with given fields: ctx, principal, brief, requestID
func (_m *MockMonsterService) Generate(ctx context.Context, principal models.Principal, brief models.CreatureBrief, requestID string) (*models.Monster, error) {
	ret := _m.Called(ctx, principal, brief, requestID)
	return monsterOrNil(ret, 0), ret.Error(1)
}

// ListOwn provides a mock function with given fields: ctx, principal
func (_m *MockMonsterService) ListOwn(ctx context.Context, principal models.Principal) ([]models.Monster, error) {
	ret := _m.Called(ctx, principal)
	return monstersOrNil(ret, 0), ret.Error(1)
}

// ListAll provides a mock function with given fields: ctx, principal
func (_m *MockMonsterService) ListAll(ctx context.Context, principal models.Principal) ([]models.Monster, error) {
	ret := _m.Called(ctx, principal)
	return monstersOrNil(ret, 0), ret.Error(1)
}

// Get provides a mock function with given fields: ctx, id
func (_m *MockMonsterService) Get(ctx context.Context, id int64) (*models.Monster, error) {
	ret := _m.Called(ctx, id)
	return monsterOrNil(ret, 0), ret.Error(1)
}

// GetImage provides a mock function with given fields: ctx, id
func (_m *MockMonsterService) GetImage(ctx context.Context, id int64) (string, error) {
	ret := _m.Called(ctx, id)
	return ret.String(0), ret.Error(1)
}

// Delete provides a mock function with given fields: ctx, id, principal
func (_m *MockMonsterService) Delete(ctx context.Context, id int64, principal models.Principal) error {
	ret := _m.Called(ctx, id, principal)
	return ret.Error(0)
}

// Rename provides a mock function with given fields: ctx, id, principal, name
func (_m *MockMonsterService) Rename(ctx context.Context, id int64, principal models.Principal, name string) (*models.Monster, error) {
	ret := _m.Called(ctx, id, principal, name)
	return monsterOrNil(ret, 0), ret.Error(1)
}

func NewMockMonsterService(t testingT) *MockMonsterService {
	m := &MockMonsterService{}
	register(&m.Mock, t)
	return m
}

// MockGenerator is a mock type for the Generator type
type MockGenerator struct {
	mock.Mock
}

// Generate provides a mock function with given fields: ctx, principal, brief, requestID
func (_m *MockGenerator) Generate(ctx context.Context, principal models.Principal, brief models.CreatureBrief, requestID string) (*models.Monster, error) {
	ret := _m.Called(ctx, principal, brief, requestID)
	return monsterOrNil(ret, 0), ret.Error(1)
}

func NewMockGenerator(t testingT) *MockGenerator {
	m := &MockGenerator{}
	register(&m.Mock, t)
	return m
}

var (
	_ service.MonsterService = (*MockMonsterService)(nil)
	_ service.Generator      = (*MockGenerator)(nil)
)
