package recommend

import (
	"context"

	"github.com/pandemonium-osu/pandemonium-backend/internal/types"
)

// GroupHydrator loads a beatmapset with its beatmaps. It must return an
// Error of KindNotFound when the set no longer exists.
type GroupHydrator func(ctx context.Context, beatmapsetID int64) (*types.Beatmapset, error)

// AggregateCandidates reduces a score-descending candidate list to unique
// beatmapsets, keeping the first (best) occurrence per set and hydrating
// each through the injected loader. Sets deleted concurrently are skipped;
// transient hydration failures propagate rather than being masked as a
// skip. Output length is min(limit, distinct sets in input).
func AggregateCandidates(
	ctx context.Context,
	candidates []ScoredCandidate,
	limit int,
	hydrate GroupHydrator,
) ([]*types.Beatmapset, error) {
	if limit <= 0 {
		return nil, nil
	}

	seen := make(map[int64]struct{}, len(candidates))
	results := make([]*types.Beatmapset, 0, limit)

	for _, candidate := range candidates {
		setID := candidate.Payload.BeatmapsetID
		if setID == 0 {
			continue
		}
		if _, dup := seen[setID]; dup {
			continue
		}
		seen[setID] = struct{}{}

		set, err := hydrate(ctx, setID)
		if err != nil {
			if IsKind(err, KindNotFound) {
				continue
			}
			return nil, err
		}
		if set == nil {
			continue
		}

		results = append(results, set)
		if len(results) >= limit {
			break
		}
	}

	return results, nil
}
