package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/logger"
	"github.com/pandemonium-osu/pandemonium-backend/internal/types"
)

type PlayerRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, player *types.Player) error
	GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.Player, error)
}

type playerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPlayerRepo(db *gorm.DB, baseLog *logger.Logger) PlayerRepo {
	return &playerRepo{db: db, log: baseLog.With("repo", "PlayerRepo")}
}

func (r *playerRepo) Upsert(ctx context.Context, tx *gorm.DB, player *types.Player) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if player == nil {
		return nil
	}

	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"username", "country", "main_mode", "pp", "rank",
				"country_rank", "joined_at", "last_synced_at",
			}),
		}).
		Create(player).Error
}

func (r *playerRepo) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.Player, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.Player
	err := transaction.WithContext(ctx).First(&result, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}
