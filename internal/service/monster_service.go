package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"bestiary-server/internal/models"
)

// MonsterService - операции над монстрами, доступные через HTTP API.
type MonsterService interface {
	Generate(ctx context.Context, principal models.Principal, brief models.CreatureBrief, requestID string) (*models.Monster, error)
	ListOwn(ctx context.Context, principal models.Principal) ([]models.Monster, error)
	ListAll(ctx context.Context, principal models.Principal) ([]models.Monster, error)
	Get(ctx context.Context, id int64) (*models.Monster, error)
	GetImage(ctx context.Context, id int64) (string, error)
	Delete(ctx context.Context, id int64, principal models.Principal) error
	Rename(ctx context.Context, id int64, principal models.Principal, name string) (*models.Monster, error)
}

// Generator - конвейер генерации, как его видит MonsterService.
type Generator interface {
	Generate(ctx context.Context, principal models.Principal, brief models.CreatureBrief, requestID string) (*models.Monster, error)
}

type monsterServiceImpl struct {
	generator Generator
	repo      MonsterRepository
	limiter   GenerationLimiter
	policy    BriefPolicy
	logger    *zap.Logger
}

// NewMonsterService создает сервис. limiter может быть nil, тогда лимит не проверяется.
func NewMonsterService(generator Generator, repo MonsterRepository, limiter GenerationLimiter, policy BriefPolicy, logger *zap.Logger) MonsterService {
	return &monsterServiceImpl{
		generator: generator,
		repo:      repo,
		limiter:   limiter,
		policy:    policy,
		logger:    logger.Named("MonsterService"),
	}
}

func (s *monsterServiceImpl) Generate(ctx context.Context, principal models.Principal, brief models.CreatureBrief, requestID string) (*models.Monster, error) {
	if err := s.policy.Validate(brief); err != nil {
		return nil, err
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, principal.ID)
		if err != nil {
			// Лимитер недоступен: запрещаем генерацию
			s.logger.Error("Generation limiter failed", zap.Uint64("user_id", principal.ID), zap.Error(err))
			return nil, fmt.Errorf("%w: limiter unavailable", models.ErrRateLimited)
		}
		if !allowed {
			s.logger.Info("Generation rate limit exceeded", zap.Uint64("user_id", principal.ID))
			return nil, models.ErrRateLimited
		}
	}

	return s.generator.Generate(ctx, principal, brief, requestID)
}

func (s *monsterServiceImpl) ListOwn(ctx context.Context, principal models.Principal) ([]models.Monster, error) {
	return s.repo.ListByOwner(ctx, principal.ID)
}

func (s *monsterServiceImpl) ListAll(ctx context.Context, principal models.Principal) ([]models.Monster, error) {
	if !principal.Admin {
		return nil, models.ErrForbidden
	}
	return s.repo.ListAll(ctx)
}

func (s *monsterServiceImpl) Get(ctx context.Context, id int64) (*models.Monster, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *monsterServiceImpl) GetImage(ctx context.Context, id int64) (string, error) {
	url, err := s.repo.GetImageURL(ctx, id)
	if err != nil {
		return "", err
	}
	if url == "" {
		return "", models.ErrNotFound
	}
	return url, nil
}

// Delete удаляет монстра. Администратор может удалить любую запись, остальные только свои.
// Если удалять нечего, возвращается models.ErrForbidden.
func (s *monsterServiceImpl) Delete(ctx context.Context, id int64, principal models.Principal) error {
	if err := s.repo.Delete(ctx, id, principal); err != nil {
		return err
	}
	s.logger.Info("Monster deleted", zap.Int64("monster_id", id), zap.Uint64("user_id", principal.ID), zap.Bool("admin", principal.Admin))
	return nil
}

func (s *monsterServiceImpl) Rename(ctx context.Context, id int64, principal models.Principal, name string) (*models.Monster, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name must not be empty", models.ErrInvalidInput)
	}
	return s.repo.Rename(ctx, id, principal.ID, name)
}
