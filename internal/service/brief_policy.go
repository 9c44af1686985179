package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"bestiary-server/internal/config"
	"bestiary-server/internal/models"
)

// BriefPolicy - необязательные проверки брифа перед запуском конвейера.
// Нулевое значение ничего не проверяет.
type BriefPolicy struct {
	MaxFieldLength int
	RequireName    bool
}

func NewBriefPolicy(cfg config.BriefPolicyConfig) BriefPolicy {
	return BriefPolicy{MaxFieldLength: cfg.MaxFieldLength, RequireName: cfg.RequireName}
}

// Validate возвращает ошибку, обернутую в models.ErrInvalidInput.
func (p BriefPolicy) Validate(brief models.CreatureBrief) error {
	if p.RequireName && strings.TrimSpace(brief.Name.String()) == "" {
		return fmt.Errorf("%w: name is required", models.ErrInvalidInput)
	}
	if p.MaxFieldLength <= 0 {
		return nil
	}
	fields := []struct {
		name  string
		value models.BriefValue
	}{
		{"name", brief.Name},
		{"challenge_rating", brief.ChallengeRating},
		{"armor_class", brief.ArmorClass},
		{"environment", brief.Environment},
		{"resistances", brief.Resistances},
		{"type", brief.Type},
	}
	for _, f := range fields {
		if utf8.RuneCountInString(f.value.String()) > p.MaxFieldLength {
			return fmt.Errorf("%w: %s exceeds %d characters", models.ErrInvalidInput, f.name, p.MaxFieldLength)
		}
	}
	return nil
}
