package recommend

import (
	"hash/fnv"
	"math"
	"sort"

	"github.com/pandemonium-osu/pandemonium-backend/internal/types"
)

const (
	// VectorDim is the fixed embedding dimension. Dimensions past the
	// populated region are zero padded and reserved for future blocks.
	VectorDim = 512

	// CurrentEmbedVersion binds the vector layout and scale constants
	// below. Changing any of them requires bumping the version and
	// re-embedding every beatmap. Version 1 was the legacy top-N
	// tag-hash layout and is no longer readable.
	CurrentEmbedVersion = 2

	numericDims = 8
	tagDims     = 256

	// tagBlockWeight makes the tag histogram dominate the numeric block
	// in raw index similarity.
	tagBlockWeight = 10.0
)

// Per-feature scale constants; each maps the feature roughly into [0,1].
// Part of the CurrentEmbedVersion contract.
const (
	starScale      = 10.0
	bpmScale       = 300.0
	lengthScale    = 600.0
	csScale        = 10.0
	arScale        = 10.0
	odScale        = 10.0
	hpScale        = 10.0
	hitObjectScale = 2000.0
)

// BuildEmbedding maps a beatmap and its parent set to a fixed 512-dim
// vector plus the payload stored alongside it. Pure: identical input is
// bit-for-bit idempotent.
func BuildEmbedding(set *types.Beatmapset, bm *types.Beatmap) ([]float32, Payload) {
	vec := make([]float32, VectorDim)

	vec[0] = float32(bm.StarRating / starScale)
	vec[1] = float32(bm.BPM / bpmScale)
	vec[2] = float32(float64(bm.TotalLength) / lengthScale)
	vec[3] = float32(bm.CS / csScale)
	vec[4] = float32(bm.AR / arScale)
	vec[5] = float32(bm.OD / odScale)
	vec[6] = float32(bm.HP / hpScale)
	vec[7] = float32(float64(bm.HitObjectCount) / hitObjectScale)

	userTags := bm.UserTags()
	fillTagBlock(vec[numericDims:numericDims+tagDims], userTags)

	payload := Payload{
		BeatmapsetID:   set.ID,
		BeatmapID:      bm.ID,
		Title:          set.Title,
		Artist:         set.Artist,
		Creator:        set.Creator,
		Mode:           bm.Mode,
		Genre:          set.Genre,
		Language:       set.Language,
		Tags:           set.TagList(),
		UserTags:       userTags,
		PlayCount:      set.PlayCount,
		FavouriteCount: set.FavouriteCount,
		Status:         set.Status,
		StarRating:     bm.StarRating,
		BPM:            bm.BPM,
		CS:             bm.CS,
		TotalLength:    bm.TotalLength,
		MaxCombo:       bm.MaxCombo(),
		EmbedVersion:   CurrentEmbedVersion,
	}
	return vec, payload
}

// fillTagBlock accumulates a hashed presence histogram: one unit per
// distinct tag regardless of its count, collisions accepted as noise. The
// block is L2-normalized (no-op when all-zero) then scaled.
func fillTagBlock(block []float32, userTags map[string]int) {
	if len(userTags) == 0 {
		return
	}

	// Deterministic iteration keeps float accumulation bit-stable.
	ids := make([]string, 0, len(userTags))
	for id := range userTags {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		block[tagBucket(id)] += 1.0
	}

	var sumSquares float64
	for _, v := range block {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares == 0 {
		return
	}
	norm := math.Sqrt(sumSquares)
	for i, v := range block {
		block[i] = float32(float64(v) / norm * tagBlockWeight)
	}
}

func tagBucket(tagID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(tagID))
	return int(h.Sum32() % tagDims)
}
