package repos

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/logger"
	"github.com/pandemonium-osu/pandemonium-backend/internal/types"
)

type PlayerActivityRepo interface {
	UpsertMany(ctx context.Context, tx *gorm.DB, records []*types.PlayerActivity) error
	ListByPlayer(ctx context.Context, tx *gorm.DB, playerID int64) ([]types.PlayerActivity, error)
}

type playerActivityRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPlayerActivityRepo(db *gorm.DB, baseLog *logger.Logger) PlayerActivityRepo {
	return &playerActivityRepo{db: db, log: baseLog.With("repo", "PlayerActivityRepo")}
}

// UpsertMany writes activity records, updating value/created_at in place
// when the (player, type, map, mapset) tuple was already observed.
func (r *playerActivityRepo) UpsertMany(ctx context.Context, tx *gorm.DB, records []*types.PlayerActivity) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(records) == 0 {
		return nil
	}

	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "player_id"},
				{Name: "type"},
				{Name: "map_id"},
				{Name: "mapset_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"value", "created_at"}),
		}).
		Create(&records).Error
}

// ListByPlayer returns the player's activity most recent first; feed
// construction depends on that ordering.
func (r *playerActivityRepo) ListByPlayer(ctx context.Context, tx *gorm.DB, playerID int64) ([]types.PlayerActivity, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []types.PlayerActivity
	if err := transaction.WithContext(ctx).
		Where("player_id = ?", playerID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
