package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bestiary-server/internal/mocks"
	"bestiary-server/internal/models"
	"bestiary-server/internal/service"
)

func TestMonsterService_Generate_PolicyAndLimiter(t *testing.T) {
	user := models.Principal{ID: 5}

	t.Run("default policy passes empty brief through", func(t *testing.T) {
		gen := mocks.NewMockGenerator(t)
		svc := service.NewMonsterService(gen, mocks.NewMockMonsterRepository(t), nil, service.BriefPolicy{}, zap.NewNop())
		gen.On("Generate", mock.Anything, user, models.CreatureBrief{}, "r").Return(&models.Monster{ID: 1}, nil).Once()

		monster, err := svc.Generate(context.Background(), user, models.CreatureBrief{}, "r")
		require.NoError(t, err)
		assert.Equal(t, int64(1), monster.ID)
	})

	t.Run("required name", func(t *testing.T) {
		gen := mocks.NewMockGenerator(t)
		svc := service.NewMonsterService(gen, mocks.NewMockMonsterRepository(t), nil, service.BriefPolicy{RequireName: true}, zap.NewNop())

		_, err := svc.Generate(context.Background(), user, models.CreatureBrief{Name: "  "}, "r")
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})

	t.Run("field too long", func(t *testing.T) {
		gen := mocks.NewMockGenerator(t)
		svc := service.NewMonsterService(gen, mocks.NewMockMonsterRepository(t), nil, service.BriefPolicy{MaxFieldLength: 8}, zap.NewNop())
		brief := models.CreatureBrief{Name: "Ashfang", Environment: models.BriefValue(strings.Repeat("x", 9))}

		_, err := svc.Generate(context.Background(), user, brief, "r")
		require.ErrorIs(t, err, models.ErrInvalidInput)
		assert.Contains(t, err.Error(), "environment")
	})

	t.Run("limit exceeded", func(t *testing.T) {
		gen := mocks.NewMockGenerator(t)
		limiter := mocks.NewMockGenerationLimiter(t)
		svc := service.NewMonsterService(gen, mocks.NewMockMonsterRepository(t), limiter, service.BriefPolicy{}, zap.NewNop())
		limiter.On("Allow", mock.Anything, uint64(5)).Return(false, nil).Once()

		_, err := svc.Generate(context.Background(), user, ashfangBrief, "r")
		assert.ErrorIs(t, err, models.ErrRateLimited)
	})

	t.Run("limiter failure denies", func(t *testing.T) {
		gen := mocks.NewMockGenerator(t)
		limiter := mocks.NewMockGenerationLimiter(t)
		svc := service.NewMonsterService(gen, mocks.NewMockMonsterRepository(t), limiter, service.BriefPolicy{}, zap.NewNop())
		limiter.On("Allow", mock.Anything, uint64(5)).Return(false, errors.New("redis down")).Once()

		_, err := svc.Generate(context.Background(), user, ashfangBrief, "r")
		assert.ErrorIs(t, err, models.ErrRateLimited)
	})

	t.Run("within limit", func(t *testing.T) {
		gen := mocks.NewMockGenerator(t)
		limiter := mocks.NewMockGenerationLimiter(t)
		svc := service.NewMonsterService(gen, mocks.NewMockMonsterRepository(t), limiter, service.BriefPolicy{}, zap.NewNop())
		limiter.On("Allow", mock.Anything, uint64(5)).Return(true, nil).Once()
		gen.On("Generate", mock.Anything, user, ashfangBrief, "r").Return(&models.Monster{ID: 2}, nil).Once()

		_, err := svc.Generate(context.Background(), user, ashfangBrief, "r")
		assert.NoError(t, err)
	})
}

func TestMonsterService_Queries(t *testing.T) {
	ctx := context.Background()

	t.Run("admin listing requires admin", func(t *testing.T) {
		repo := mocks.NewMockMonsterRepository(t)
		svc := service.NewMonsterService(mocks.NewMockGenerator(t), repo, nil, service.BriefPolicy{}, zap.NewNop())

		_, err := svc.ListAll(ctx, models.Principal{ID: 1})
		assert.ErrorIs(t, err, models.ErrForbidden)

		repo.On("ListAll", mock.Anything).Return([]models.Monster{{ID: 3}, {ID: 2}}, nil).Once()
		all, err := svc.ListAll(ctx, models.Principal{ID: 1, Admin: true})
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("own listing uses caller id", func(t *testing.T) {
		repo := mocks.NewMockMonsterRepository(t)
		svc := service.NewMonsterService(mocks.NewMockGenerator(t), repo, nil, service.BriefPolicy{}, zap.NewNop())
		repo.On("ListByOwner", mock.Anything, uint64(11)).Return([]models.Monster{}, nil).Once()

		list, err := svc.ListOwn(ctx, models.Principal{ID: 11})
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("empty image url is not found", func(t *testing.T) {
		repo := mocks.NewMockMonsterRepository(t)
		svc := service.NewMonsterService(mocks.NewMockGenerator(t), repo, nil, service.BriefPolicy{}, zap.NewNop())
		repo.On("GetImageURL", mock.Anything, int64(4)).Return("", nil).Once()

		_, err := svc.GetImage(ctx, 4)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("rename rejects blank name", func(t *testing.T) {
		repo := mocks.NewMockMonsterRepository(t)
		svc := service.NewMonsterService(mocks.NewMockGenerator(t), repo, nil, service.BriefPolicy{}, zap.NewNop())

		_, err := svc.Rename(ctx, 4, models.Principal{ID: 1}, "   ")
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})

	t.Run("rename trims name", func(t *testing.T) {
		repo := mocks.NewMockMonsterRepository(t)
		svc := service.NewMonsterService(mocks.NewMockGenerator(t), repo, nil, service.BriefPolicy{}, zap.NewNop())
		repo.On("Rename", mock.Anything, int64(4), uint64(1), "Cinderwing").
			Return(&models.Monster{ID: 4}, nil).Once()

		_, err := svc.Rename(ctx, 4, models.Principal{ID: 1}, " Cinderwing ")
		assert.NoError(t, err)
	})

	t.Run("delete passes principal", func(t *testing.T) {
		repo := mocks.NewMockMonsterRepository(t)
		svc := service.NewMonsterService(mocks.NewMockGenerator(t), repo, nil, service.BriefPolicy{}, zap.NewNop())
		stranger := models.Principal{ID: 2}
		repo.On("Delete", mock.Anything, int64(8), stranger).Return(models.ErrForbidden).Once()

		assert.ErrorIs(t, svc.Delete(ctx, 8, stranger), models.ErrForbidden)
	})
}
