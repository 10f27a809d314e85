package types

import (
	"time"

	"gorm.io/datatypes"
)

const (
	ActivityScore     = "score"
	ActivityFavourite = "favourite"
	ActivityPinned    = "pinned"
	ActivityNominated = "nominated"
)

// PlayerActivity is one observed event linking a player to a beatmap and/or
// beatmapset. The unique index makes re-observation an in-place update
// rather than a duplicate row.
type PlayerActivity struct {
	ID        int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	PlayerID  int64             `gorm:"index;uniqueIndex:ux_player_activity_tuple" json:"player_id"`
	Type      string            `gorm:"size:32;uniqueIndex:ux_player_activity_tuple" json:"type"`
	MapID     *int64            `gorm:"uniqueIndex:ux_player_activity_tuple" json:"map_id"`
	MapsetID  *int64            `gorm:"uniqueIndex:ux_player_activity_tuple" json:"mapset_id"`
	Value     datatypes.JSONMap `json:"value"`
	CreatedAt time.Time         `json:"created_at"`
}

func (PlayerActivity) TableName() string {
	return "player_activity"
}
