package types

import (
	"gorm.io/datatypes"
)

type Player struct {
	ID           int64             `gorm:"primaryKey" json:"id"`
	Username     string            `gorm:"size:255;uniqueIndex" json:"username"`
	Country      string            `gorm:"size:2" json:"country"`
	MainMode     string            `gorm:"size:16" json:"main_mode"`
	PP           float64           `gorm:"default:0" json:"pp"`
	Rank         int               `gorm:"default:0" json:"rank"`
	CountryRank  int               `gorm:"default:0" json:"country_rank"`
	JoinedAt     int64             `json:"joined_at"`
	LastSyncedAt int64             `json:"last_synced_at"`
	Settings     datatypes.JSONMap `json:"settings"`
}

func (Player) TableName() string {
	return "players"
}
