package recommend

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pandemonium-osu/pandemonium-backend/internal/types"
)

const (
	// CandidateLimit bounds the per-query candidate pool, independent of
	// the requested feed length.
	CandidateLimit = 50

	fanOutBatchSize   = 8
	fanOutConcurrency = 4
)

var activityWeights = map[string]float64{
	types.ActivityScore:     1.0,
	types.ActivityFavourite: 1.8,
	types.ActivityPinned:    2.8,
	types.ActivityNominated: 1.6,
}

// ActivityTypeWeight returns the ranking weight for an activity type;
// unknown types weigh 1.0.
func ActivityTypeWeight(activityType string) float64 {
	if w, ok := activityWeights[activityType]; ok {
		return w
	}
	return 1.0
}

// FeedDeps are the injected I/O capabilities the feed ranker fans out
// over. All calls are expected to carry caller-imposed timeouts; failures
// propagate as-is and are never masked as empty results.
type FeedDeps struct {
	// ResolveMapsetID maps a beatmap id to its parent set id, returning a
	// KindNotFound error when the beatmap is unknown.
	ResolveMapsetID func(ctx context.Context, beatmapID int64) (int64, error)
	// ListBeatmapIDs expands a beatmapset into its beatmap ids.
	ListBeatmapIDs func(ctx context.Context, beatmapsetID int64) ([]int64, error)
	// RetrieveVectors fetches stored embeddings; missing ids are simply
	// absent from the result.
	RetrieveVectors func(ctx context.Context, beatmapIDs []int64) ([][]float32, error)
	// SearchBatch runs one mode-filtered top-K query per vector and
	// returns the per-vector hits.
	SearchBatch func(ctx context.Context, vectors [][]float32, topK int, mode string) ([][]ScoredCandidate, error)
}

// GroupScore is one ranked feed entry.
type GroupScore struct {
	BeatmapsetID int64
	Score        float64
	Best         ScoredCandidate
}

// BuildActivityWeights folds a player's activity into per-set weights and
// collects the beatmap ids whose embeddings will seed retrieval. The first
// record touching a set seeds its weight at 1.0; every record then adds
// its type weight. Records resolving to no set are dropped.
func BuildActivityWeights(
	ctx context.Context,
	records []types.PlayerActivity,
	deps FeedDeps,
) (map[int64]float64, []int64, error) {
	weights := make(map[int64]float64, len(records))
	seenBeatmaps := make(map[int64]struct{}, len(records))
	beatmapIDs := make([]int64, 0, len(records))

	addBeatmap := func(id int64) {
		if _, ok := seenBeatmaps[id]; ok {
			return
		}
		seenBeatmaps[id] = struct{}{}
		beatmapIDs = append(beatmapIDs, id)
	}

	for _, record := range records {
		mapsetID := int64(0)
		if record.MapsetID != nil {
			mapsetID = *record.MapsetID
		} else if record.MapID != nil {
			resolved, err := deps.ResolveMapsetID(ctx, *record.MapID)
			if err != nil {
				if IsKind(err, KindNotFound) {
					continue
				}
				return nil, nil, err
			}
			mapsetID = resolved
		}
		if mapsetID == 0 {
			continue
		}

		if _, touched := weights[mapsetID]; !touched {
			weights[mapsetID] = 1.0
		}
		weights[mapsetID] += ActivityTypeWeight(record.Type)

		if record.MapID != nil {
			addBeatmap(*record.MapID)
			continue
		}
		expanded, err := deps.ListBeatmapIDs(ctx, mapsetID)
		if err != nil {
			return nil, nil, err
		}
		for _, id := range expanded {
			addBeatmap(id)
		}
	}

	return weights, beatmapIDs, nil
}

// RankFeed builds the personalized feed: activity weights, seed vectors,
// a bounded concurrent fan-out of filtered top-K queries, a per-set
// running-max reduction of weight-adjusted scores, then the top limit.
func RankFeed(
	ctx context.Context,
	records []types.PlayerActivity,
	deps FeedDeps,
	limit int,
	mode string,
) ([]GroupScore, error) {
	if len(records) == 0 {
		return nil, Errorf(KindEmptyActivity, "player has no activity history")
	}

	weights, beatmapIDs, err := BuildActivityWeights(ctx, records, deps)
	if err != nil {
		return nil, err
	}
	if len(beatmapIDs) == 0 {
		return nil, Errorf(KindEmptyActivity, "player activity resolves to no beatmaps")
	}

	vectors, err := deps.RetrieveVectors(ctx, beatmapIDs)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, Errorf(KindNoEmbedding, "no stored embeddings for player activity")
	}

	// Fan out batched queries concurrently; the reduction below runs
	// under a single mutex so the per-set max is never subject to
	// read-modify-write interleaving. A failed sub-query cancels the
	// group: no partial pool is ever ranked.
	var (
		mu   sync.Mutex
		best = make(map[int64]GroupScore)
	)
	merge := func(hits []ScoredCandidate) {
		mu.Lock()
		defer mu.Unlock()
		for _, hit := range hits {
			setID := hit.Payload.BeatmapsetID
			if setID == 0 {
				continue
			}
			weight := 1.0
			if w, ok := weights[setID]; ok {
				weight = w
			}
			final := hit.Score * weight
			if current, ok := best[setID]; !ok || final > current.Score {
				best[setID] = GroupScore{
					BeatmapsetID: setID,
					Score:        final,
					Best:         hit,
				}
			}
		}
	}

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutConcurrency)
	for start := 0; start < len(vectors); start += fanOutBatchSize {
		end := start + fanOutBatchSize
		if end > len(vectors) {
			end = len(vectors)
		}
		batch := vectors[start:end]
		g.Go(func() error {
			results, err := deps.SearchBatch(groupCtx, batch, CandidateLimit, mode)
			if err != nil {
				return err
			}
			for _, hits := range results {
				merge(hits)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(best) == 0 {
		return nil, Errorf(KindNoCandidates, "index returned no candidates for player activity")
	}

	ranked := make([]GroupScore, 0, len(best))
	for _, entry := range best {
		ranked = append(ranked, entry)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score == ranked[j].Score {
			return ranked[i].BeatmapsetID < ranked[j].BeatmapsetID
		}
		return ranked[i].Score > ranked[j].Score
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}
