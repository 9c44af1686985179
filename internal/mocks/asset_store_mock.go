package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"bestiary-server/internal/models"
	"bestiary-server/internal/service"
)

// MockAssetStore is a mock type for the AssetStore type
type MockAssetStore struct {
	mock.Mock
}

// Upload provides a mock function with given fields: ctx, key, data, contentType
func (_m *MockAssetStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	ret := _m.Called(ctx, key, data, contentType)
	return ret.String(0), ret.Error(1)
}

// Delete provides a mock function with given fields: ctx, key
func (_m *MockAssetStore) Delete(ctx context.Context, key string) error {
	ret := _m.Called(ctx, key)
	return ret.Error(0)
}

func NewMockAssetStore(t testingT) *MockAssetStore {
	m := &MockAssetStore{}
	register(&m.Mock, t)
	return m
}

// MockOrphanReporter is a mock type for the OrphanReporter type
type MockOrphanReporter struct {
	mock.Mock
}

// ReportOrphan provides a mock function with given fields: ctx, event
func (_m *MockOrphanReporter) ReportOrphan(ctx context.Context, event models.OrphanedAssetEvent) error {
	ret := _m.Called(ctx, event)
	return ret.Error(0)
}

func NewMockOrphanReporter(t testingT) *MockOrphanReporter {
	m := &MockOrphanReporter{}
	register(&m.Mock, t)
	return m
}

// MockGenerationLimiter is a mock type for the GenerationLimiter type
type MockGenerationLimiter struct {
	mock.Mock
}

// Allow provides a mock function with given fields: ctx, userID
func (_m *MockGenerationLimiter) Allow(ctx context.Context, userID uint64) (bool, error) {
	ret := _m.Called(ctx, userID)
	return ret.Bool(0), ret.Error(1)
}

func NewMockGenerationLimiter(t testingT) *MockGenerationLimiter {
	m := &MockGenerationLimiter{}
	register(&m.Mock, t)
	return m
}

var (
	_ service.AssetStore        = (*MockAssetStore)(nil)
	_ service.OrphanReporter    = (*MockOrphanReporter)(nil)
	_ service.GenerationLimiter = (*MockGenerationLimiter)(nil)
)
