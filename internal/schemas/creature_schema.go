package schemas

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"bestiary-server/internal/models"
)

// CreatureSchemaName - имя схемы для response_format.json_schema.
const CreatureSchemaName = "creature_schema"

// FieldKind - JSON тип поля существа.
type FieldKind string

const (
	KindInteger FieldKind = "integer"
	KindString  FieldKind = "string"
)

// Field описывает одно поле закрытой схемы существа.
type Field struct {
	Name        string
	Kind        FieldKind
	Description string
	value       func(r *models.CreatureRecord) any
}

// creatureFields - единственный источник набора полей существа.
// Из него строятся схема для модели, список полей в промпте, разбор ответа и INSERT.
var creatureFields = []Field{
	{"hit_points", KindInteger, "Average hit points.", func(r *models.CreatureRecord) any { return r.HitPoints }},
	{"type", KindString, "Type requested by the user.", func(r *models.CreatureRecord) any { return r.Type }},
	{"name", KindString, "Name of the creature.", func(r *models.CreatureRecord) any { return r.Name }},
	{"description", KindString, "Appearance, lore and behaviour.", func(r *models.CreatureRecord) any { return r.Description }},
	{"strength", KindInteger, "Strength score.", func(r *models.CreatureRecord) any { return r.Strength }},
	{"dexterity", KindInteger, "Dexterity score.", func(r *models.CreatureRecord) any { return r.Dexterity }},
	{"constitution", KindInteger, "Constitution score.", func(r *models.CreatureRecord) any { return r.Constitution }},
	{"intelligence", KindInteger, "Intelligence score.", func(r *models.CreatureRecord) any { return r.Intelligence }},
	{"wisdom", KindInteger, "Wisdom score.", func(r *models.CreatureRecord) any { return r.Wisdom }},
	{"charisma", KindInteger, "Charisma score.", func(r *models.CreatureRecord) any { return r.Charisma }},
	{"speed", KindString, "Movement speeds.", func(r *models.CreatureRecord) any { return r.Speed }},
	{"actions", KindString, "Actions available each turn.", func(r *models.CreatureRecord) any { return r.Actions }},
	{"legendary_actions", KindString, "Legendary actions, or \"None\".", func(r *models.CreatureRecord) any { return r.LegendaryActions }},
	{"armor_class", KindInteger, "Armor class.", func(r *models.CreatureRecord) any { return r.ArmorClass }},
	{"resistances", KindString, "Damage resistances.", func(r *models.CreatureRecord) any { return r.Resistances }},
	{"immunities", KindString, "Damage and condition immunities.", func(r *models.CreatureRecord) any { return r.Immunities }},
	{"languages", KindString, "Languages spoken or understood.", func(r *models.CreatureRecord) any { return r.Languages }},
	{"senses", KindString, "Senses and passive perception.", func(r *models.CreatureRecord) any { return r.Senses }},
	{"skills", KindString, "Skill bonuses.", func(r *models.CreatureRecord) any { return r.Skills }},
	{"saving_throws", KindString, "Saving throw bonuses.", func(r *models.CreatureRecord) any { return r.SavingThrows }},
	{"challenge_rating", KindString, "Challenge rating.", func(r *models.CreatureRecord) any { return r.ChallengeRating }},
	{"size", KindString, "Size category.", func(r *models.CreatureRecord) any { return r.Size }},
	{"proficiency_bonus", KindString, "Proficiency bonus.", func(r *models.CreatureRecord) any { return r.ProficiencyBonus }},
	{"creature_type", KindString, "Creature type, e.g. dragon or fiend.", func(r *models.CreatureRecord) any { return r.CreatureType }},
	{"alignment", KindString, "Alignment.", func(r *models.CreatureRecord) any { return r.Alignment }},
	{"initiative", KindInteger, "Initiative modifier.", func(r *models.CreatureRecord) any { return r.Initiative }},
}

// Fields возвращает копию таблицы полей в каноническом порядке.
func Fields() []Field {
	out := make([]Field, len(creatureFields))
	copy(out, creatureFields)
	return out
}

// FieldNames возвращает имена полей в каноническом порядке.
func FieldNames() []string {
	names := make([]string, len(creatureFields))
	for i, f := range creatureFields {
		names[i] = f.Name
	}
	return names
}

// CreatureJSONSchema возвращает закрытую JSON схему существа в виде map,
// пригодном для OpenAI response_format.json_schema и для поля format у Ollama.
func CreatureJSONSchema() map[string]interface{} {
	properties := make(map[string]interface{}, len(creatureFields))
	for _, f := range creatureFields {
		properties[f.Name] = map[string]interface{}{
			"type":        string(f.Kind),
			"description": f.Description,
		}
	}
	return map[string]interface{}{
		"type":                 "object",
		"properties":           properties,
		"required":             FieldNames(),
		"additionalProperties": false,
	}
}

// CreatureJSONSchemaRaw возвращает схему, сериализованную в JSON.
func CreatureJSONSchemaRaw() json.RawMessage {
	raw, err := json.Marshal(CreatureJSONSchema())
	if err != nil {
		// Схема строится из статической таблицы, ошибка здесь означает баг в коде.
		panic(fmt.Sprintf("marshal creature schema: %v", err))
	}
	return raw
}

// ParseCreatureRecord разбирает ответ модели. Объект должен содержать ровно
// поля схемы, каждое соответствующего типа.
func ParseCreatureRecord(data []byte) (*models.CreatureRecord, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("creature payload is not a JSON object: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("creature payload is null")
	}

	var missing, mistyped []string
	known := make(map[string]struct{}, len(creatureFields))
	for _, f := range creatureFields {
		known[f.Name] = struct{}{}
		value, ok := raw[f.Name]
		if !ok {
			missing = append(missing, f.Name)
			continue
		}
		if !kindMatches(f.Kind, value) {
			mistyped = append(mistyped, f.Name)
		}
	}
	var extra []string
	for name := range raw {
		if _, ok := known[name]; !ok {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)

	if len(missing) > 0 || len(extra) > 0 || len(mistyped) > 0 {
		return nil, &SchemaMismatchError{Missing: missing, Extra: extra, Mistyped: mistyped}
	}

	var record models.CreatureRecord
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&record); err != nil {
		return nil, fmt.Errorf("decode creature payload: %w", err)
	}
	return &record, nil
}

// InsertColumns возвращает колонки существа в порядке таблицы полей.
func InsertColumns() []string {
	return FieldNames()
}

// InsertValues возвращает значения записи в том же порядке, что и InsertColumns.
func InsertValues(r *models.CreatureRecord) []any {
	values := make([]any, len(creatureFields))
	for i, f := range creatureFields {
		values[i] = f.value(r)
	}
	return values
}

// SchemaMismatchError - ответ модели не соответствует закрытой схеме.
type SchemaMismatchError struct {
	Missing  []string
	Extra    []string
	Mistyped []string
}

func (e *SchemaMismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(e.Missing, ","))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, "unexpected: "+strings.Join(e.Extra, ","))
	}
	if len(e.Mistyped) > 0 {
		parts = append(parts, "wrong type: "+strings.Join(e.Mistyped, ","))
	}
	return "creature payload does not match schema (" + strings.Join(parts, "; ") + ")"
}

func kindMatches(kind FieldKind, value json.RawMessage) bool {
	switch kind {
	case KindString:
		var s string
		return len(value) > 0 && value[0] == '"' && json.Unmarshal(value, &s) == nil
	case KindInteger:
		// Колонки INTEGER в PostgreSQL 32-битные
		var n int32
		if bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			return false
		}
		return json.Unmarshal(value, &n) == nil
	default:
		return false
	}
}
