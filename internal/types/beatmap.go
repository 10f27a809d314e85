package types

import (
	"gorm.io/datatypes"
)

// Mode values follow the upstream ruleset identifiers.
const (
	ModeStandard = "osu"
	ModeTaiko    = "taiko"
	ModeCatch    = "fruits"
	ModeMania    = "mania"
)

// Beatmap is an individually playable difficulty within a Beatmapset.
type Beatmap struct {
	ID             int64   `gorm:"primaryKey" json:"id"`
	BeatmapsetID   int64   `gorm:"index" json:"beatmapset_id"`
	DifficultyName string  `gorm:"size:255" json:"difficulty_name"`
	Mode           string  `gorm:"size:16;index" json:"mode"`
	BPM            float64 `gorm:"index" json:"bpm"`
	CS             float64 `json:"cs"`
	AR             float64 `json:"ar"`
	OD             float64 `json:"od"`
	HP             float64 `json:"hp"`
	StarRating     float64 `gorm:"index" json:"star_rating"`
	TotalLength    int     `json:"total_length"`
	HitObjectCount int     `json:"hit_object_count"`
	ApprovedDate   int64   `json:"approved_date"`

	// ExtraMetadata carries fields that are not queried relationally,
	// currently max_combo and the per-beatmap user tag counts.
	ExtraMetadata datatypes.JSONMap `json:"extra_metadata"`
}

func (Beatmap) TableName() string {
	return "beatmaps"
}

// UserTags returns the normalized tag-count multiset stored in
// ExtraMetadata, coercing JSON numbers back to ints.
func (b *Beatmap) UserTags() map[string]int {
	out := map[string]int{}
	if b == nil || b.ExtraMetadata == nil {
		return out
	}
	raw, ok := b.ExtraMetadata["user_tags"]
	if !ok {
		return out
	}
	switch t := raw.(type) {
	case map[string]any:
		for id, count := range t {
			out[id] = int(toFloat(count))
		}
	case map[string]int:
		for id, count := range t {
			out[id] = count
		}
	}
	return out
}

// MaxCombo returns the stored max combo, or 0 when unknown.
func (b *Beatmap) MaxCombo() int {
	if b == nil || b.ExtraMetadata == nil {
		return 0
	}
	return int(toFloat(b.ExtraMetadata["max_combo"]))
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return 0
	}
}
