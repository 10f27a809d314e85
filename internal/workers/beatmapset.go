package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/logger"
	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/osuapi"
	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/qdrant"
	"github.com/pandemonium-osu/pandemonium-backend/internal/recommend"
	"github.com/pandemonium-osu/pandemonium-backend/internal/repos"
	"github.com/pandemonium-osu/pandemonium-backend/internal/types"
)

// BeatmapsetWorker ingests one beatmapset: fetch upstream, decide whether
// anything embedding-relevant changed, then rewrite the rows and vectors.
type BeatmapsetWorker struct {
	log            *logger.Logger
	db             *gorm.DB
	osu            osuapi.Client
	index          qdrant.Index
	beatmapsetRepo repos.BeatmapsetRepo
	beatmapRepo    repos.BeatmapRepo
}

func NewBeatmapsetWorker(
	log *logger.Logger,
	db *gorm.DB,
	osu osuapi.Client,
	index qdrant.Index,
	beatmapsetRepo repos.BeatmapsetRepo,
	beatmapRepo repos.BeatmapRepo,
) *BeatmapsetWorker {
	return &BeatmapsetWorker{
		log:            log.With("worker", "BeatmapsetWorker"),
		db:             db,
		osu:            osu,
		index:          index,
		beatmapsetRepo: beatmapsetRepo,
		beatmapRepo:    beatmapRepo,
	}
}

func (w *BeatmapsetWorker) Process(ctx context.Context, beatmapsetID int64) error {
	upstream, err := w.osu.GetBeatmapset(ctx, beatmapsetID)
	if err != nil {
		return fmt.Errorf("fetch beatmapset %d: %w", beatmapsetID, err)
	}

	// Tagging on unranked maps is too unstable to trust; only ranked sets
	// are committed to the corpus.
	if upstream.Ranked != int(types.StatusRanked) {
		w.log.Debug("skipping non-ranked beatmapset", "beatmapset_id", beatmapsetID, "status", upstream.Ranked)
		return nil
	}

	stored, err := w.beatmapsetRepo.GetByID(ctx, nil, beatmapsetID)
	if err != nil {
		return fmt.Errorf("load stored beatmapset %d: %w", beatmapsetID, err)
	}

	fresh := freshFromUpstream(upstream)
	storedPayloads, err := w.storedPayloads(ctx, fresh)
	if err != nil {
		return fmt.Errorf("load stored payloads for beatmapset %d: %w", beatmapsetID, err)
	}

	if !recommend.ShouldReembed(stored, storedPayloads, fresh) {
		w.log.Debug("beatmapset up to date", "beatmapset_id", beatmapsetID)
		return nil
	}

	set, beatmaps := rowsFromUpstream(upstream)

	points := make([]qdrant.Point, 0, len(beatmaps))
	for _, bm := range beatmaps {
		vector, payload := recommend.BuildEmbedding(set, bm)
		points = append(points, qdrant.Point{
			ID:      bm.ID,
			Vector:  vector,
			Payload: payload.ToMap(),
		})
	}

	if err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := w.beatmapsetRepo.Upsert(ctx, tx, set); err != nil {
			return fmt.Errorf("upsert beatmapset: %w", err)
		}
		if err := w.beatmapRepo.UpsertMany(ctx, tx, beatmaps); err != nil {
			return fmt.Errorf("upsert beatmaps: %w", err)
		}
		return nil
	}); err != nil {
		return err
	}

	if err := w.index.Upsert(ctx, points); err != nil {
		return fmt.Errorf("upsert embeddings for beatmapset %d: %w", beatmapsetID, err)
	}

	w.log.Info(
		"beatmapset ingested",
		"beatmapset_id", beatmapsetID,
		"artist", upstream.Artist,
		"title", upstream.Title,
		"beatmaps", len(beatmaps),
	)
	return nil
}

// storedPayloads retrieves the index payloads for the fresh set's beatmaps,
// keyed by beatmap id. Unreadable payloads are simply absent, which the
// staleness decision treats as a reason to re-embed.
func (w *BeatmapsetWorker) storedPayloads(ctx context.Context, fresh recommend.FreshSet) (map[int64]recommend.Payload, error) {
	ids := make([]int64, 0, len(fresh.Beatmaps))
	for _, bm := range fresh.Beatmaps {
		ids = append(ids, bm.ID)
	}

	points, err := w.index.Retrieve(ctx, ids, false)
	if err != nil {
		return nil, err
	}

	out := make(map[int64]recommend.Payload, len(points))
	for _, point := range points {
		payload, err := recommend.PayloadFromMap(point.Payload)
		if err != nil {
			continue
		}
		out[point.ID] = payload
	}
	return out, nil
}

func freshFromUpstream(upstream *osuapi.Beatmapset) recommend.FreshSet {
	fresh := recommend.FreshSet{
		ID:     upstream.ID,
		Status: upstream.Ranked,
	}
	if upstream.LastUpdated != nil {
		fresh.LastUpdated = upstream.LastUpdated.Unix()
	}
	for _, bm := range upstream.Beatmaps {
		fresh.Beatmaps = append(fresh.Beatmaps, recommend.FreshBeatmap{
			ID:       bm.ID,
			UserTags: tagCounts(bm.TopTagIDs),
		})
	}
	return fresh
}

func rowsFromUpstream(upstream *osuapi.Beatmapset) (*types.Beatmapset, []*types.Beatmap) {
	tags, _ := json.Marshal(strings.Fields(upstream.Tags))

	set := &types.Beatmapset{
		ID:             upstream.ID,
		Artist:         upstream.Artist,
		Title:          upstream.Title,
		Creator:        upstream.Creator,
		Source:         upstream.Source,
		Tags:           datatypes.JSON(tags),
		Status:         upstream.Ranked,
		PlayCount:      upstream.PlayCount,
		FavouriteCount: upstream.FavouriteCount,
		LastSyncedAt:   time.Now().Unix(),
	}
	if upstream.Genre != nil {
		set.Genre = upstream.Genre.ID
	}
	if upstream.Language != nil {
		set.Language = upstream.Language.ID
	}

	beatmaps := make([]*types.Beatmap, 0, len(upstream.Beatmaps))
	for _, bm := range upstream.Beatmaps {
		userTags := map[string]any{}
		for id, count := range tagCounts(bm.TopTagIDs) {
			userTags[id] = count
		}
		row := &types.Beatmap{
			ID:             bm.ID,
			BeatmapsetID:   upstream.ID,
			DifficultyName: bm.Version,
			Mode:           bm.Mode,
			BPM:            bm.BPM,
			CS:             bm.CS,
			AR:             bm.AR,
			OD:             bm.Accuracy,
			HP:             bm.Drain,
			StarRating:     bm.DifficultyRating,
			TotalLength:    bm.TotalLength,
			HitObjectCount: bm.HitLength,
			ExtraMetadata: datatypes.JSONMap{
				"max_combo": bm.MaxCombo,
				"user_tags": userTags,
			},
		}
		if bm.RankedDate != nil {
			row.ApprovedDate = bm.RankedDate.Unix()
		}
		beatmaps = append(beatmaps, row)
	}
	return set, beatmaps
}

func tagCounts(tags []osuapi.TagCount) map[string]int {
	out := make(map[string]int, len(tags))
	for _, tag := range tags {
		out[strconv.FormatInt(tag.TagID, 10)] = tag.Count
	}
	return out
}
