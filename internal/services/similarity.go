package services

import (
	"context"
	"sort"

	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/logger"
	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/qdrant"
	"github.com/pandemonium-osu/pandemonium-backend/internal/recommend"
	"github.com/pandemonium-osu/pandemonium-backend/internal/repos"
	"github.com/pandemonium-osu/pandemonium-backend/internal/types"
)

const (
	defaultSimilarLimit = 10
	maxSimilarLimit     = 50
)

type SimilarityService interface {
	// SimilarBeatmapsets returns sets closest to the given set's embeddings,
	// re-ranked by the tag/metadata scorer and deduplicated per set.
	SimilarBeatmapsets(ctx context.Context, beatmapsetID int64, limit int, mode string) ([]*types.Beatmapset, error)
}

type similarityService struct {
	log            *logger.Logger
	index          qdrant.Index
	beatmapRepo    repos.BeatmapRepo
	beatmapsetRepo repos.BeatmapsetRepo
}

func NewSimilarityService(
	log *logger.Logger,
	index qdrant.Index,
	beatmapRepo repos.BeatmapRepo,
	beatmapsetRepo repos.BeatmapsetRepo,
) SimilarityService {
	return &similarityService{
		log:            log.With("service", "SimilarityService"),
		index:          index,
		beatmapRepo:    beatmapRepo,
		beatmapsetRepo: beatmapsetRepo,
	}
}

func (s *similarityService) SimilarBeatmapsets(ctx context.Context, beatmapsetID int64, limit int, mode string) ([]*types.Beatmapset, error) {
	if limit <= 0 {
		limit = defaultSimilarLimit
	}
	if limit > maxSimilarLimit {
		limit = maxSimilarLimit
	}
	if mode == "" {
		mode = types.ModeStandard
	}

	beatmaps, err := s.beatmapRepo.ListByBeatmapsetID(ctx, nil, beatmapsetID)
	if err != nil {
		return nil, err
	}
	if len(beatmaps) == 0 {
		return nil, recommend.Errorf(recommend.KindNotFound, "beatmapset %d not found", beatmapsetID)
	}

	ids := make([]int64, 0, len(beatmaps))
	for _, bm := range beatmaps {
		ids = append(ids, bm.ID)
	}

	stored, err := s.index.Retrieve(ctx, ids, true)
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, 0, len(stored))
	for _, point := range stored {
		if len(point.Vector) > 0 {
			vectors = append(vectors, point.Vector)
		}
	}
	if len(vectors) == 0 {
		return nil, recommend.Errorf(recommend.KindNoEmbedding, "beatmapset %d has no stored embeddings", beatmapsetID)
	}

	origin, ok := s.originPayload(stored, mode)
	if !ok {
		return nil, recommend.Errorf(recommend.KindNoEmbedding, "beatmapset %d has no readable embedding payload", beatmapsetID)
	}

	hits, err := s.index.Search(ctx, qdrant.SearchRequest{
		Vector: meanPool(vectors),
		TopK:   recommend.CandidateLimit,
		Filter: map[string]any{
			"mode":          mode,
			"beatmapset_id": map[string]any{"$ne": beatmapsetID},
		},
	})
	if err != nil {
		return nil, err
	}

	candidates := make([]recommend.ScoredCandidate, 0, len(hits))
	for _, hit := range hits {
		payload, err := recommend.PayloadFromMap(hit.Payload)
		if err != nil {
			s.log.Warn("skipping candidate with unreadable payload", "point_id", hit.ID, "error", err)
			continue
		}
		candidates = append(candidates, recommend.ScoredCandidate{
			Score:   recommend.Score(origin, payload),
			Payload: payload,
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	return recommend.AggregateCandidates(ctx, candidates, limit, func(ctx context.Context, setID int64) (*types.Beatmapset, error) {
		return s.beatmapsetRepo.GetWithBeatmaps(ctx, nil, setID)
	})
}

// originPayload picks the origin set's representative payload: the highest
// star rating among beatmaps of the requested mode, falling back to any
// readable payload.
func (s *similarityService) originPayload(stored []qdrant.Point, mode string) (recommend.Payload, bool) {
	var (
		best      recommend.Payload
		found     bool
		modeMatch bool
	)
	for _, point := range stored {
		payload, err := recommend.PayloadFromMap(point.Payload)
		if err != nil {
			continue
		}
		matches := payload.Mode == mode
		switch {
		case !found,
			matches && !modeMatch,
			matches == modeMatch && payload.StarRating > best.StarRating:
			best = payload
			found = true
			modeMatch = matches
		}
	}
	return best, found
}

func meanPool(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	out := make([]float32, len(vectors[0]))
	for _, v := range vectors {
		for i := range out {
			if i < len(v) {
				out[i] += v[i]
			}
		}
	}
	n := float32(len(vectors))
	for i := range out {
		out[i] /= n
	}
	return out
}
