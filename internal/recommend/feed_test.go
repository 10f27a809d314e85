package recommend

import (
	"context"
	"errors"
	"testing"

	"github.com/pandemonium-osu/pandemonium-backend/internal/types"
)

func int64Ptr(v int64) *int64 { return &v }

func activityRecord(activityType string, mapID, mapsetID *int64) types.PlayerActivity {
	return types.PlayerActivity{
		PlayerID: 77,
		Type:     activityType,
		MapID:    mapID,
		MapsetID: mapsetID,
	}
}

func feedDepsFixture() FeedDeps {
	return FeedDeps{
		ResolveMapsetID: func(_ context.Context, beatmapID int64) (int64, error) {
			return 0, Errorf(KindNotFound, "beatmap %d not found", beatmapID)
		},
		ListBeatmapIDs: func(_ context.Context, mapsetID int64) ([]int64, error) {
			return nil, nil
		},
		RetrieveVectors: func(_ context.Context, ids []int64) ([][]float32, error) {
			return nil, nil
		},
		SearchBatch: func(_ context.Context, vectors [][]float32, topK int, mode string) ([][]ScoredCandidate, error) {
			return nil, nil
		},
	}
}

func TestRankFeedEmptyActivity(t *testing.T) {
	_, err := RankFeed(context.Background(), nil, feedDepsFixture(), 10, types.ModeStandard)
	if !IsKind(err, KindEmptyActivity) {
		t.Fatalf("want empty_activity, got=%v", err)
	}
}

func TestRankFeedNoEmbeddings(t *testing.T) {
	deps := feedDepsFixture()
	deps.ListBeatmapIDs = func(_ context.Context, mapsetID int64) ([]int64, error) {
		return []int64{5001}, nil
	}
	// Vectors missing from the index: zero query vectors resolved.
	records := []types.PlayerActivity{
		activityRecord(types.ActivityFavourite, nil, int64Ptr(101)),
	}

	_, err := RankFeed(context.Background(), records, deps, 10, types.ModeStandard)
	if !IsKind(err, KindNoEmbedding) {
		t.Fatalf("want no_embedding, got=%v", err)
	}
}

func TestRankFeedNoCandidates(t *testing.T) {
	deps := feedDepsFixture()
	deps.ListBeatmapIDs = func(_ context.Context, mapsetID int64) ([]int64, error) {
		return []int64{5001}, nil
	}
	deps.RetrieveVectors = func(_ context.Context, ids []int64) ([][]float32, error) {
		return [][]float32{make([]float32, VectorDim)}, nil
	}
	deps.SearchBatch = func(_ context.Context, vectors [][]float32, topK int, mode string) ([][]ScoredCandidate, error) {
		return [][]ScoredCandidate{{}}, nil
	}
	records := []types.PlayerActivity{
		activityRecord(types.ActivityFavourite, nil, int64Ptr(101)),
	}

	_, err := RankFeed(context.Background(), records, deps, 10, types.ModeStandard)
	if !IsKind(err, KindNoCandidates) {
		t.Fatalf("want no_candidates, got=%v", err)
	}
}

func TestRankFeedPerGroupMaxNotSum(t *testing.T) {
	deps := feedDepsFixture()
	deps.ListBeatmapIDs = func(_ context.Context, mapsetID int64) ([]int64, error) {
		return []int64{5001, 5002}, nil
	}
	deps.RetrieveVectors = func(_ context.Context, ids []int64) ([][]float32, error) {
		return [][]float32{make([]float32, VectorDim), make([]float32, VectorDim)}, nil
	}
	// Set 300 appears in two fanned-out result sets with base scores
	// 0.4 and 0.9.
	deps.SearchBatch = func(_ context.Context, vectors [][]float32, topK int, mode string) ([][]ScoredCandidate, error) {
		return [][]ScoredCandidate{
			{candidate(300, 0.4)},
			{candidate(300, 0.9)},
		}, nil
	}

	// A single score record on set 300: base 1.0 + type weight 1.0.
	records := []types.PlayerActivity{
		activityRecord(types.ActivityScore, nil, int64Ptr(300)),
	}

	got, err := RankFeed(context.Background(), records, deps, 10, types.ModeStandard)
	if err != nil {
		t.Fatalf("RankFeed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("result length: want=1 got=%d", len(got))
	}
	// max(0.4, 0.9) * 2.0 = 1.8, not (0.4 + 0.9) * 2.0 = 2.6.
	if diff := got[0].Score - 1.8; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("per-group score: want=1.8 got=%v", got[0].Score)
	}
}

func TestRankFeedOrdersAndLimits(t *testing.T) {
	deps := feedDepsFixture()
	deps.ListBeatmapIDs = func(_ context.Context, mapsetID int64) ([]int64, error) {
		return []int64{5001}, nil
	}
	deps.RetrieveVectors = func(_ context.Context, ids []int64) ([][]float32, error) {
		return [][]float32{make([]float32, VectorDim)}, nil
	}
	deps.SearchBatch = func(_ context.Context, vectors [][]float32, topK int, mode string) ([][]ScoredCandidate, error) {
		return [][]ScoredCandidate{{
			candidate(1, 0.3),
			candidate(2, 0.9),
			candidate(3, 0.6),
		}}, nil
	}
	records := []types.PlayerActivity{
		activityRecord(types.ActivityScore, nil, int64Ptr(999)),
	}

	got, err := RankFeed(context.Background(), records, deps, 2, types.ModeStandard)
	if err != nil {
		t.Fatalf("RankFeed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("limit: want=2 got=%d", len(got))
	}
	if got[0].BeatmapsetID != 2 || got[1].BeatmapsetID != 3 {
		t.Fatalf("order: got=%d,%d", got[0].BeatmapsetID, got[1].BeatmapsetID)
	}
}

func TestRankFeedPropagatesSubQueryErrors(t *testing.T) {
	deps := feedDepsFixture()
	deps.ListBeatmapIDs = func(_ context.Context, mapsetID int64) ([]int64, error) {
		return []int64{5001}, nil
	}
	deps.RetrieveVectors = func(_ context.Context, ids []int64) ([][]float32, error) {
		return [][]float32{make([]float32, VectorDim)}, nil
	}
	transient := Wrap(KindTransient, "index query timed out", errors.New("deadline exceeded"))
	deps.SearchBatch = func(_ context.Context, vectors [][]float32, topK int, mode string) ([][]ScoredCandidate, error) {
		return nil, transient
	}
	records := []types.PlayerActivity{
		activityRecord(types.ActivityScore, nil, int64Ptr(999)),
	}

	_, err := RankFeed(context.Background(), records, deps, 10, types.ModeStandard)
	if !IsKind(err, KindTransient) {
		t.Fatalf("sub-query failure masked: got=%v", err)
	}
}

func TestBuildActivityWeightsAccumulation(t *testing.T) {
	deps := feedDepsFixture()
	records := []types.PlayerActivity{
		activityRecord(types.ActivityScore, nil, int64Ptr(101)),
		activityRecord(types.ActivityFavourite, nil, int64Ptr(101)),
		activityRecord("unknown-type", nil, int64Ptr(202)),
	}

	weights, _, err := BuildActivityWeights(context.Background(), records, deps)
	if err != nil {
		t.Fatalf("BuildActivityWeights: %v", err)
	}

	// 1.0 base + 1.0 (score) + 1.8 (favourite)
	if diff := weights[101] - 3.8; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("weight for 101: want=3.8 got=%v", weights[101])
	}
	// 1.0 base + 1.0 default for unknown types
	if diff := weights[202] - 2.0; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("weight for 202: want=2.0 got=%v", weights[202])
	}
}

func TestBuildActivityWeightsResolvesMapOnlyRecords(t *testing.T) {
	deps := feedDepsFixture()
	deps.ResolveMapsetID = func(_ context.Context, beatmapID int64) (int64, error) {
		if beatmapID == 5001 {
			return 101, nil
		}
		return 0, Errorf(KindNotFound, "beatmap %d not found", beatmapID)
	}

	records := []types.PlayerActivity{
		activityRecord(types.ActivityScore, int64Ptr(5001), nil),
		// Unresolvable record is dropped, not fatal.
		activityRecord(types.ActivityScore, int64Ptr(6001), nil),
	}

	weights, beatmapIDs, err := BuildActivityWeights(context.Background(), records, deps)
	if err != nil {
		t.Fatalf("BuildActivityWeights: %v", err)
	}
	if diff := weights[101] - 2.0; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("weight for 101: want=2.0 got=%v", weights[101])
	}
	if len(beatmapIDs) != 1 || beatmapIDs[0] != 5001 {
		t.Fatalf("beatmap ids: want=[5001] got=%v", beatmapIDs)
	}
}

func TestBuildActivityWeightsExpandsMapsetActivity(t *testing.T) {
	deps := feedDepsFixture()
	deps.ListBeatmapIDs = func(_ context.Context, mapsetID int64) ([]int64, error) {
		return []int64{5001, 5002, 5003}, nil
	}

	records := []types.PlayerActivity{
		activityRecord(types.ActivityFavourite, nil, int64Ptr(101)),
	}

	_, beatmapIDs, err := BuildActivityWeights(context.Background(), records, deps)
	if err != nil {
		t.Fatalf("BuildActivityWeights: %v", err)
	}
	if len(beatmapIDs) != 3 {
		t.Fatalf("expanded beatmap ids: want=3 got=%v", beatmapIDs)
	}
}
