package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/logger"
	"github.com/pandemonium-osu/pandemonium-backend/internal/types"
)

type BeatmapsetRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, set *types.Beatmapset) error
	GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.Beatmapset, error)
	GetWithBeatmaps(ctx context.Context, tx *gorm.DB, id int64) (*types.Beatmapset, error)
	GetManyWithBeatmaps(ctx context.Context, tx *gorm.DB, ids []int64) ([]*types.Beatmapset, error)
}

type beatmapsetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBeatmapsetRepo(db *gorm.DB, baseLog *logger.Logger) BeatmapsetRepo {
	return &beatmapsetRepo{db: db, log: baseLog.With("repo", "BeatmapsetRepo")}
}

func (r *beatmapsetRepo) Upsert(ctx context.Context, tx *gorm.DB, set *types.Beatmapset) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if set == nil {
		return nil
	}

	return transaction.WithContext(ctx).
		Omit("Beatmaps").
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"artist", "title", "creator", "source", "genre", "language",
				"tags", "status", "play_count", "favourite_count", "last_synced_at",
			}),
		}).
		Create(set).Error
}

func (r *beatmapsetRepo) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.Beatmapset, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.Beatmapset
	err := transaction.WithContext(ctx).First(&result, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *beatmapsetRepo) GetWithBeatmaps(ctx context.Context, tx *gorm.DB, id int64) (*types.Beatmapset, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.Beatmapset
	err := transaction.WithContext(ctx).
		Preload("Beatmaps").
		First(&result, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *beatmapsetRepo) GetManyWithBeatmaps(ctx context.Context, tx *gorm.DB, ids []int64) ([]*types.Beatmapset, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Beatmapset
	if len(ids) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Preload("Beatmaps").
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
