package types

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// RankStatus values mirror the upstream ranking states.
type RankStatus int

const (
	StatusGraveyard RankStatus = -2
	StatusWIP       RankStatus = -1
	StatusPending   RankStatus = 0
	StatusRanked    RankStatus = 1
	StatusApproved  RankStatus = 2
	StatusQualified RankStatus = 3
	StatusLoved     RankStatus = 4
)

// Beatmapset is a release bundling one or more beatmaps that share
// authorship and metadata. A set with zero beatmaps is never persisted
// as ranked content.
type Beatmapset struct {
	ID             int64          `gorm:"primaryKey" json:"id"`
	Artist         string         `gorm:"size:255" json:"artist"`
	Title          string         `gorm:"size:255" json:"title"`
	Creator        string         `gorm:"size:255" json:"creator"`
	Source         string         `gorm:"size:255" json:"source"`
	Genre          int            `json:"genre"`
	Language       int            `json:"language"`
	Tags           datatypes.JSON `json:"tags"`
	Status         int            `gorm:"index" json:"status"`
	PlayCount      int64          `gorm:"default:0" json:"play_count"`
	FavouriteCount int64          `gorm:"default:0" json:"favourite_count"`
	LastSyncedAt   int64          `json:"last_synced_at"`

	Beatmaps []Beatmap `gorm:"foreignKey:BeatmapsetID;constraint:OnDelete:CASCADE" json:"beatmaps"`
}

func (Beatmapset) TableName() string {
	return "beatmapsets"
}

// TagList decodes the free-text tag list column.
func (s *Beatmapset) TagList() []string {
	if s == nil || len(s.Tags) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(s.Tags, &out); err != nil {
		return nil
	}
	return out
}
