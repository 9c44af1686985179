package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// BriefValue - текстовое значение поля брифа. Клиенты присылают challenge_rating
// и armor_class то строкой, то числом, поэтому принимаем оба варианта.
type BriefValue string

// UnmarshalJSON принимает строку, число или null.
func (v *BriefValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = BriefValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("brief value must be a string or a number: %w", err)
	}
	*v = BriefValue(n.String())
	return nil
}

func (v BriefValue) String() string { return string(v) }

// CreatureBrief - исходные данные пользователя для генерации существа.
type CreatureBrief struct {
	Name            BriefValue `json:"name"`
	ChallengeRating BriefValue `json:"challenge_rating"`
	ArmorClass      BriefValue `json:"armor_class"`
	Environment     BriefValue `json:"environment"`
	Resistances     BriefValue `json:"resistances"`
	Type            BriefValue `json:"type"`
}

// CreatureRecord - полное описание существа, возвращаемое текстовой моделью.
// Набор полей задается таблицей в пакете schemas; теги json/db должны с ней совпадать.
type CreatureRecord struct {
	HitPoints        int    `json:"hit_points" db:"hit_points"`
	Type             string `json:"type" db:"type"`
	Name             string `json:"name" db:"name"`
	Description      string `json:"description" db:"description"`
	Strength         int    `json:"strength" db:"strength"`
	Dexterity        int    `json:"dexterity" db:"dexterity"`
	Constitution     int    `json:"constitution" db:"constitution"`
	Intelligence     int    `json:"intelligence" db:"intelligence"`
	Wisdom           int    `json:"wisdom" db:"wisdom"`
	Charisma         int    `json:"charisma" db:"charisma"`
	Speed            string `json:"speed" db:"speed"`
	Actions          string `json:"actions" db:"actions"`
	LegendaryActions string `json:"legendary_actions" db:"legendary_actions"`
	ArmorClass       int    `json:"armor_class" db:"armor_class"`
	Resistances      string `json:"resistances" db:"resistances"`
	Immunities       string `json:"immunities" db:"immunities"`
	Languages        string `json:"languages" db:"languages"`
	Senses           string `json:"senses" db:"senses"`
	Skills           string `json:"skills" db:"skills"`
	SavingThrows     string `json:"saving_throws" db:"saving_throws"`
	ChallengeRating  string `json:"challenge_rating" db:"challenge_rating"`
	Size             string `json:"size" db:"size"`
	ProficiencyBonus string `json:"proficiency_bonus" db:"proficiency_bonus"`
	CreatureType     string `json:"creature_type" db:"creature_type"`
	Alignment        string `json:"alignment" db:"alignment"`
	Initiative       int    `json:"initiative" db:"initiative"`
}

// Monster - сохраненная запись: существо + владелец + ссылка на иллюстрацию.
type Monster struct {
	ID       int64  `json:"id" db:"id"`
	UserID   uint64 `json:"user_id" db:"user_id"`
	ImageURL string `json:"image_url" db:"image_url"`
	CreatureRecord
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// IllustrationPayload - сырые байты изображения, полученные по временной ссылке.
type IllustrationPayload struct {
	Data        []byte
	ContentType string
}

// StoredAsset - загруженный в хранилище объект.
type StoredAsset struct {
	Key string // ключ объекта внутри бакета, нужен для удаления
	URL string // стабильная публичная ссылка
}

// OrphanedAssetEvent - событие о файле в хранилище, на который не ссылается ни одна запись.
type OrphanedAssetEvent struct {
	Key        string    `json:"key"`
	URL        string    `json:"url"`
	UserID     uint64    `json:"user_id"`
	RequestID  string    `json:"request_id,omitempty"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}
