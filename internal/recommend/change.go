package recommend

import (
	"maps"

	"github.com/pandemonium-osu/pandemonium-backend/internal/types"
)

// FreshBeatmap is the per-difficulty slice of an upstream fetch that the
// staleness decision needs.
type FreshBeatmap struct {
	ID       int64
	UserTags map[string]int
}

// FreshSet is the freshly fetched beatmapset state.
type FreshSet struct {
	ID          int64
	Status      int
	LastUpdated int64
	Beatmaps    []FreshBeatmap
}

// ShouldReembed decides whether a fetched beatmapset requires re-embedding
// and re-upserting. storedPayloads holds the payloads currently in the
// vector index keyed by beatmap id (one point retrieval per gated set;
// treat the index as a read-through cache for this decision, not ground
// truth for skipping).
//
// The policy short-circuits in order: unknown set, status transition,
// then the tag-content check guarding the "already synced" skip. Tags are
// the only field that can change upstream without bumping last_updated,
// which is why the synced branch inspects nothing else.
func ShouldReembed(stored *types.Beatmapset, storedPayloads map[int64]Payload, fresh FreshSet) bool {
	if stored == nil {
		return true
	}
	if stored.Status != fresh.Status {
		return true
	}
	if stored.LastSyncedAt >= fresh.LastUpdated {
		for _, bm := range fresh.Beatmaps {
			payload, ok := storedPayloads[bm.ID]
			if !ok {
				return true
			}
			if !maps.Equal(normalizeTags(bm.UserTags), normalizeTags(payload.UserTags)) {
				return true
			}
		}
		return false
	}
	return true
}

func normalizeTags(in map[string]int) map[string]int {
	if in == nil {
		return map[string]int{}
	}
	return in
}
