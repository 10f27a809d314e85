package services

import (
	"context"

	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/logger"
	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/qdrant"
	"github.com/pandemonium-osu/pandemonium-backend/internal/recommend"
	"github.com/pandemonium-osu/pandemonium-backend/internal/repos"
	"github.com/pandemonium-osu/pandemonium-backend/internal/types"
)

const defaultFeedLimit = 50

// FeedEntry is one hydrated discovery-feed row.
type FeedEntry struct {
	Beatmapset *types.Beatmapset `json:"beatmapset"`
	Score      float64           `json:"score"`
}

type DiscoveryService interface {
	// DiscoveryFeed ranks beatmapsets for the player from their activity
	// history. mode falls back to the player's main mode when empty.
	DiscoveryFeed(ctx context.Context, player *types.Player, limit int, mode string) ([]FeedEntry, error)
}

type discoveryService struct {
	log            *logger.Logger
	index          qdrant.Index
	activityRepo   repos.PlayerActivityRepo
	beatmapRepo    repos.BeatmapRepo
	beatmapsetRepo repos.BeatmapsetRepo
}

func NewDiscoveryService(
	log *logger.Logger,
	index qdrant.Index,
	activityRepo repos.PlayerActivityRepo,
	beatmapRepo repos.BeatmapRepo,
	beatmapsetRepo repos.BeatmapsetRepo,
) DiscoveryService {
	return &discoveryService{
		log:            log.With("service", "DiscoveryService"),
		index:          index,
		activityRepo:   activityRepo,
		beatmapRepo:    beatmapRepo,
		beatmapsetRepo: beatmapsetRepo,
	}
}

func (s *discoveryService) DiscoveryFeed(ctx context.Context, player *types.Player, limit int, mode string) ([]FeedEntry, error) {
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	if mode == "" {
		mode = player.MainMode
	}
	if mode == "" {
		mode = types.ModeStandard
	}

	records, err := s.activityRepo.ListByPlayer(ctx, nil, player.ID)
	if err != nil {
		return nil, err
	}

	ranked, err := recommend.RankFeed(ctx, records, s.feedDeps(), limit, mode)
	if err != nil {
		return nil, err
	}

	return s.hydrate(ctx, ranked)
}

func (s *discoveryService) feedDeps() recommend.FeedDeps {
	return recommend.FeedDeps{
		ResolveMapsetID: func(ctx context.Context, beatmapID int64) (int64, error) {
			setID, err := s.beatmapRepo.GetBeatmapsetID(ctx, nil, beatmapID)
			if err != nil {
				return 0, err
			}
			if setID == 0 {
				return 0, recommend.Errorf(recommend.KindNotFound, "beatmap %d not found", beatmapID)
			}
			return setID, nil
		},
		ListBeatmapIDs: func(ctx context.Context, beatmapsetID int64) ([]int64, error) {
			return s.beatmapRepo.ListIDsByBeatmapsetID(ctx, nil, beatmapsetID)
		},
		RetrieveVectors: func(ctx context.Context, beatmapIDs []int64) ([][]float32, error) {
			points, err := s.index.Retrieve(ctx, beatmapIDs, true)
			if err != nil {
				return nil, err
			}
			vectors := make([][]float32, 0, len(points))
			for _, point := range points {
				if len(point.Vector) > 0 {
					vectors = append(vectors, point.Vector)
				}
			}
			return vectors, nil
		},
		SearchBatch: func(ctx context.Context, vectors [][]float32, topK int, mode string) ([][]recommend.ScoredCandidate, error) {
			reqs := make([]qdrant.SearchRequest, 0, len(vectors))
			for _, vector := range vectors {
				reqs = append(reqs, qdrant.SearchRequest{
					Vector: vector,
					TopK:   topK,
					Filter: map[string]any{"mode": mode},
				})
			}
			raw, err := s.index.SearchBatch(ctx, reqs)
			if err != nil {
				return nil, err
			}

			out := make([][]recommend.ScoredCandidate, 0, len(raw))
			for _, hits := range raw {
				scored := make([]recommend.ScoredCandidate, 0, len(hits))
				for _, hit := range hits {
					payload, err := recommend.PayloadFromMap(hit.Payload)
					if err != nil {
						s.log.Warn("skipping feed candidate with unreadable payload", "point_id", hit.ID, "error", err)
						continue
					}
					scored = append(scored, recommend.ScoredCandidate{Score: hit.Score, Payload: payload})
				}
				out = append(out, scored)
			}
			return out, nil
		},
	}
}

// hydrate loads the winning sets in rank order. Sets deleted since the
// index was written are dropped rather than failing the feed.
func (s *discoveryService) hydrate(ctx context.Context, ranked []recommend.GroupScore) ([]FeedEntry, error) {
	ids := make([]int64, 0, len(ranked))
	for _, entry := range ranked {
		ids = append(ids, entry.BeatmapsetID)
	}

	sets, err := s.beatmapsetRepo.GetManyWithBeatmaps(ctx, nil, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*types.Beatmapset, len(sets))
	for _, set := range sets {
		byID[set.ID] = set
	}

	entries := make([]FeedEntry, 0, len(ranked))
	for _, entry := range ranked {
		set, ok := byID[entry.BeatmapsetID]
		if !ok {
			continue
		}
		entries = append(entries, FeedEntry{Beatmapset: set, Score: entry.Score})
	}
	return entries, nil
}
