package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"bestiary-server/internal/config"
	"bestiary-server/internal/models"
	"bestiary-server/internal/schemas"
)

const creatureSystemPrompt = "You are a dungeon master. Reply strictly in JSON format with all required fields."

// CreatureSynthesizer превращает бриф пользователя в полную запись существа.
type CreatureSynthesizer struct {
	generator   TextGenerator
	temperature float64
	topP        float64
	maxTokens   int
	logger      *zap.Logger
}

// NewCreatureSynthesizer создает синтезатор с параметрами генерации из конфигурации.
func NewCreatureSynthesizer(generator TextGenerator, cfg config.AIConfig, logger *zap.Logger) *CreatureSynthesizer {
	return &CreatureSynthesizer{
		generator:   generator,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
		maxTokens:   cfg.MaxCompletionTokens,
		logger:      logger.Named("CreatureSynthesizer"),
	}
}

// Synthesize запрашивает у модели существо по брифу и разбирает ответ по закрытой схеме.
// Любая ошибка оборачивается в models.ErrUpstreamGeneration.
func (s *CreatureSynthesizer) Synthesize(ctx context.Context, brief models.CreatureBrief) (*models.CreatureRecord, error) {
	req := StructuredRequest{
		SystemPrompt: creatureSystemPrompt,
		UserPrompt:   BuildCreaturePrompt(brief),
		SchemaName:   schemas.CreatureSchemaName,
		Schema:       schemas.CreatureJSONSchemaRaw(),
		Temperature:  s.temperature,
		TopP:         s.topP,
		MaxTokens:    s.maxTokens,
	}

	content, usage, err := s.generator.GenerateStructured(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUpstreamGeneration, err)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: empty content", models.ErrUpstreamGeneration)
	}

	record, err := schemas.ParseCreatureRecord([]byte(content))
	if err != nil {
		s.logger.Warn("Model response rejected by creature schema", zap.Error(err), zap.Int("content_length", len(content)))
		return nil, fmt.Errorf("%w: %v", models.ErrUpstreamGeneration, err)
	}

	s.logger.Debug("Creature synthesized",
		zap.String("name", record.Name),
		zap.Int("total_tokens", usage.TotalTokens),
	)
	return record, nil
}

// BuildCreaturePrompt строит инструкцию для модели. Для одного брифа результат всегда одинаков.
func BuildCreaturePrompt(brief models.CreatureBrief) string {
	var b strings.Builder
	b.WriteString("Create a monster for Dungeons & Dragons 5e.\n\n")
	fmt.Fprintf(&b, "- Name: %s\n", brief.Name)
	fmt.Fprintf(&b, "- Type: %s\n", brief.Type)
	fmt.Fprintf(&b, "- Challenge Rating: %s\n", brief.ChallengeRating)
	fmt.Fprintf(&b, "- Armor Class: %s\n", brief.ArmorClass)
	fmt.Fprintf(&b, "- Environment: %s\n", brief.Environment)
	fmt.Fprintf(&b, "- Resistances: %s\n\n", brief.Resistances)
	b.WriteString("The creature should match the lore, style and design of classic D&D 5e monsters, similar to the Monster Manual. ")
	b.WriteString("Describe its appearance, habitat, strengths and weaknesses so that it is game-ready for a campaign. ")
	b.WriteString("All values must be filled out.\n\n")
	b.WriteString("Return a JSON object with exactly these fields: ")
	b.WriteString(strings.Join(schemas.FieldNames(), ", "))
	b.WriteString(".")
	return b.String()
}
