package workers

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/logger"
	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/osuapi"
	"github.com/pandemonium-osu/pandemonium-backend/internal/queue"
	"github.com/pandemonium-osu/pandemonium-backend/internal/repos"
	"github.com/pandemonium-osu/pandemonium-backend/internal/services"
	"github.com/pandemonium-osu/pandemonium-backend/internal/types"
)

// PlayerWorker syncs one player: profile row, activity history, and a
// beatmapset-queue entry for every set the activity references.
type PlayerWorker struct {
	log          *logger.Logger
	osu          osuapi.Client
	queue        queue.Queue
	playerRepo   repos.PlayerRepo
	activityRepo repos.PlayerActivityRepo
}

func NewPlayerWorker(
	log *logger.Logger,
	osu osuapi.Client,
	q queue.Queue,
	playerRepo repos.PlayerRepo,
	activityRepo repos.PlayerActivityRepo,
) *PlayerWorker {
	return &PlayerWorker{
		log:          log.With("worker", "PlayerWorker"),
		osu:          osu,
		queue:        q,
		playerRepo:   playerRepo,
		activityRepo: activityRepo,
	}
}

func (w *PlayerWorker) Process(ctx context.Context, playerID int64) error {
	upstream, err := w.osu.GetUser(ctx, playerID)
	if err != nil {
		return fmt.Errorf("fetch player %d: %w", playerID, err)
	}
	if upstream.IsBot {
		w.log.Debug("skipping bot player", "player_id", playerID, "username", upstream.Username)
		return nil
	}

	player := services.PlayerFromUpstream(upstream)
	if err := w.playerRepo.Upsert(ctx, nil, player); err != nil {
		return fmt.Errorf("upsert player %d: %w", playerID, err)
	}

	activities, err := w.collectActivities(ctx, player)
	if err != nil {
		return err
	}
	if err := w.activityRepo.UpsertMany(ctx, nil, activities); err != nil {
		return fmt.Errorf("upsert activities for player %d: %w", playerID, err)
	}

	enqueued := w.enqueueReferencedSets(ctx, activities)
	w.log.Info(
		"player synced",
		"player_id", playerID,
		"username", player.Username,
		"activities", len(activities),
		"enqueued_sets", enqueued,
	)
	return nil
}

func (w *PlayerWorker) collectActivities(ctx context.Context, player *types.Player) ([]*types.PlayerActivity, error) {
	now := time.Now()
	var activities []*types.PlayerActivity

	favourites, err := w.osu.GetUserFavourites(ctx, player.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch favourites for player %d: %w", player.ID, err)
	}
	for _, fav := range favourites {
		mapsetID := fav.ID
		activities = append(activities, &types.PlayerActivity{
			PlayerID:  player.ID,
			Type:      types.ActivityFavourite,
			MapsetID:  &mapsetID,
			Value:     datatypes.JSONMap{},
			CreatedAt: now,
		})
	}

	mode := player.MainMode
	if mode == "" {
		mode = types.ModeStandard
	}
	for _, scoreType := range []string{"best", "recent"} {
		scores, err := w.osu.GetUserScores(ctx, player.ID, scoreType, mode)
		if err != nil {
			return nil, fmt.Errorf("fetch %s scores for player %d: %w", scoreType, player.ID, err)
		}
		for _, score := range scores {
			activities = append(activities, scoreActivity(player.ID, score, now))
		}
	}

	return activities, nil
}

func scoreActivity(playerID int64, score osuapi.Score, at time.Time) *types.PlayerActivity {
	record := &types.PlayerActivity{
		PlayerID:  playerID,
		Type:      types.ActivityScore,
		CreatedAt: at,
		Value: datatypes.JSONMap{
			"mode":  score.RulesetID,
			"score": score.TotalScore,
			"rank":  score.Rank,
			"mods":  score.ModAcronyms(),
		},
	}
	if score.PP != nil {
		record.Value["pp"] = *score.PP
	}
	if score.BeatmapID != 0 {
		mapID := score.BeatmapID
		record.MapID = &mapID
	}
	if score.Beatmap != nil {
		if record.MapID == nil && score.Beatmap.ID != 0 {
			mapID := score.Beatmap.ID
			record.MapID = &mapID
		}
		if score.Beatmap.BeatmapsetID != 0 {
			mapsetID := score.Beatmap.BeatmapsetID
			record.MapsetID = &mapsetID
		}
	}
	return record
}

// enqueueReferencedSets schedules ingestion for every set touched by the
// activity, deduplicating locally before hitting the queue.
func (w *PlayerWorker) enqueueReferencedSets(ctx context.Context, activities []*types.PlayerActivity) int {
	seen := make(map[int64]struct{}, len(activities))
	enqueued := 0
	for _, record := range activities {
		if record.MapsetID == nil {
			continue
		}
		setID := *record.MapsetID
		if _, dup := seen[setID]; dup {
			continue
		}
		seen[setID] = struct{}{}

		if err := w.queue.Enqueue(ctx, queue.BeatmapQueue, setID); err != nil {
			w.log.Warn("failed to enqueue beatmapset", "beatmapset_id", setID, "error", err)
			continue
		}
		enqueued++
	}
	return enqueued
}
