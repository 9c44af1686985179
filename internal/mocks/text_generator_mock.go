package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"bestiary-server/internal/service"
)

// MockTextGenerator is a mock type for the TextGenerator type
type MockTextGenerator struct {
	mock.Mock
}

// GenerateStructured provides a mock function with given fields: ctx, req
func (_m *MockTextGenerator) GenerateStructured(ctx context.Context, req service.StructuredRequest) (string, service.UsageInfo, error) {
	ret := _m.Called(ctx, req)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, service.StructuredRequest) string); ok {
		r0 = rf(ctx, req)
	} else {
		r0 = ret.String(0)
	}

	var r1 service.UsageInfo
	if ret.Get(1) != nil {
		r1 = ret.Get(1).(service.UsageInfo)
	}

	return r0, r1, ret.Error(2)
}

// NewMockTextGenerator creates a new instance of MockTextGenerator and asserts its expectations on cleanup.
func NewMockTextGenerator(t testingT) *MockTextGenerator {
	m := &MockTextGenerator{}
	register(&m.Mock, t)
	return m
}

var _ service.TextGenerator = (*MockTextGenerator)(nil)
