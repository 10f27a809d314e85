package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/logger"
	"github.com/pandemonium-osu/pandemonium-backend/internal/types"
)

type BeatmapRepo interface {
	UpsertMany(ctx context.Context, tx *gorm.DB, beatmaps []*types.Beatmap) error
	GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.Beatmap, error)
	ListByBeatmapsetID(ctx context.Context, tx *gorm.DB, beatmapsetID int64) ([]*types.Beatmap, error)
	GetBeatmapsetID(ctx context.Context, tx *gorm.DB, beatmapID int64) (int64, error)
	ListIDsByBeatmapsetID(ctx context.Context, tx *gorm.DB, beatmapsetID int64) ([]int64, error)
}

type beatmapRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBeatmapRepo(db *gorm.DB, baseLog *logger.Logger) BeatmapRepo {
	return &beatmapRepo{db: db, log: baseLog.With("repo", "BeatmapRepo")}
}

func (r *beatmapRepo) UpsertMany(ctx context.Context, tx *gorm.DB, beatmaps []*types.Beatmap) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(beatmaps) == 0 {
		return nil
	}

	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"beatmapset_id", "difficulty_name", "mode", "bpm", "cs", "ar",
				"od", "hp", "star_rating", "total_length", "hit_object_count",
				"approved_date", "extra_metadata",
			}),
		}).
		Create(&beatmaps).Error
}

func (r *beatmapRepo) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.Beatmap, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.Beatmap
	err := transaction.WithContext(ctx).First(&result, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *beatmapRepo) ListByBeatmapsetID(ctx context.Context, tx *gorm.DB, beatmapsetID int64) ([]*types.Beatmap, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Beatmap
	if err := transaction.WithContext(ctx).
		Where("beatmapset_id = ?", beatmapsetID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *beatmapRepo) GetBeatmapsetID(ctx context.Context, tx *gorm.DB, beatmapID int64) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.Beatmap
	err := transaction.WithContext(ctx).
		Select("beatmapset_id").
		First(&result, "id = ?", beatmapID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return result.BeatmapsetID, nil
}

func (r *beatmapRepo) ListIDsByBeatmapsetID(ctx context.Context, tx *gorm.DB, beatmapsetID int64) ([]int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var ids []int64
	if err := transaction.WithContext(ctx).
		Model(&types.Beatmap{}).
		Where("beatmapset_id = ?", beatmapsetID).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
