package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"bestiary-server/internal/models"
	"bestiary-server/internal/service"
)

// MockImageGenerator is a mock type for the ImageGenerator type
type MockImageGenerator struct {
	mock.Mock
}

// GenerateImage provides a mock function with given fields: ctx, prompt, size
func (_m *MockImageGenerator) GenerateImage(ctx context.Context, prompt string, size string) (string, error) {
	ret := _m.Called(ctx, prompt, size)
	return ret.String(0), ret.Error(1)
}

func NewMockImageGenerator(t testingT) *MockImageGenerator {
	m := &MockImageGenerator{}
	register(&m.Mock, t)
	return m
}

// MockImageFetcher is a mock type for the ImageFetcher type
type MockImageFetcher struct {
	mock.Mock
}

// Fetch provides a mock function with given fields: ctx, url
func (_m *MockImageFetcher) Fetch(ctx context.Context, url string) (*models.IllustrationPayload, error) {
	ret := _m.Called(ctx, url)

	var r0 *models.IllustrationPayload
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.IllustrationPayload)
	}
	return r0, ret.Error(1)
}

func NewMockImageFetcher(t testingT) *MockImageFetcher {
	m := &MockImageFetcher{}
	register(&m.Mock, t)
	return m
}

var (
	_ service.ImageGenerator = (*MockImageGenerator)(nil)
	_ service.ImageFetcher   = (*MockImageFetcher)(nil)
)
