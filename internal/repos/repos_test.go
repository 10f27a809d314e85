package repos

import (
	"context"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/logger"
	"github.com/pandemonium-osu/pandemonium-backend/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&types.Beatmapset{},
		&types.Beatmap{},
		&types.Player{},
		&types.PlayerActivity{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedSet(t *testing.T, db *gorm.DB, setID int64, beatmapIDs ...int64) {
	t.Helper()
	log := logger.NewNop()
	setRepo := NewBeatmapsetRepo(db, log)
	mapRepo := NewBeatmapRepo(db, log)

	set := &types.Beatmapset{
		ID:     setID,
		Artist: "artist",
		Title:  "title",
		Tags:   datatypes.JSON([]byte(`["tag"]`)),
		Status: int(types.StatusRanked),
	}
	if err := setRepo.Upsert(context.Background(), nil, set); err != nil {
		t.Fatalf("seed set: %v", err)
	}

	beatmaps := make([]*types.Beatmap, 0, len(beatmapIDs))
	for _, id := range beatmapIDs {
		beatmaps = append(beatmaps, &types.Beatmap{
			ID:           id,
			BeatmapsetID: setID,
			Mode:         types.ModeStandard,
			StarRating:   5,
		})
	}
	if err := mapRepo.UpsertMany(context.Background(), nil, beatmaps); err != nil {
		t.Fatalf("seed beatmaps: %v", err)
	}
}

func TestBeatmapsetUpsertIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewBeatmapsetRepo(db, logger.NewNop())

	set := &types.Beatmapset{ID: 101, Artist: "before", Status: int(types.StatusPending)}
	if err := repo.Upsert(context.Background(), nil, set); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	set.Artist = "after"
	set.Status = int(types.StatusRanked)
	if err := repo.Upsert(context.Background(), nil, set); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := repo.GetByID(context.Background(), nil, 101)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil || got.Artist != "after" || got.Status != int(types.StatusRanked) {
		t.Fatalf("upsert did not update in place: %+v", got)
	}

	var count int64
	if err := db.Model(&types.Beatmapset{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("row count: want=1 got=%d", count)
	}
}

func TestBeatmapsetGetWithBeatmaps(t *testing.T) {
	db := newTestDB(t)
	seedSet(t, db, 101, 5001, 5002)

	repo := NewBeatmapsetRepo(db, logger.NewNop())
	got, err := repo.GetWithBeatmaps(context.Background(), nil, 101)
	if err != nil {
		t.Fatalf("GetWithBeatmaps: %v", err)
	}
	if got == nil || len(got.Beatmaps) != 2 {
		t.Fatalf("preloaded beatmaps: got=%+v", got)
	}

	missing, err := repo.GetWithBeatmaps(context.Background(), nil, 999)
	if err != nil {
		t.Fatalf("missing set errored: %v", err)
	}
	if missing != nil {
		t.Fatalf("missing set: want=nil got=%+v", missing)
	}
}

func TestBeatmapRepoLookups(t *testing.T) {
	db := newTestDB(t)
	seedSet(t, db, 101, 5001, 5002, 5003)

	repo := NewBeatmapRepo(db, logger.NewNop())

	setID, err := repo.GetBeatmapsetID(context.Background(), nil, 5002)
	if err != nil {
		t.Fatalf("GetBeatmapsetID: %v", err)
	}
	if setID != 101 {
		t.Fatalf("parent set: want=101 got=%d", setID)
	}

	unknown, err := repo.GetBeatmapsetID(context.Background(), nil, 9999)
	if err != nil {
		t.Fatalf("unknown beatmap errored: %v", err)
	}
	if unknown != 0 {
		t.Fatalf("unknown beatmap: want=0 got=%d", unknown)
	}

	ids, err := repo.ListIDsByBeatmapsetID(context.Background(), nil, 101)
	if err != nil {
		t.Fatalf("ListIDsByBeatmapsetID: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("id count: want=3 got=%d", len(ids))
	}
}

func TestPlayerActivityUpsertInPlace(t *testing.T) {
	db := newTestDB(t)
	repo := NewPlayerActivityRepo(db, logger.NewNop())

	mapID := int64(5001)
	mapsetID := int64(101)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	first := &types.PlayerActivity{
		PlayerID:  77,
		Type:      types.ActivityScore,
		MapID:     &mapID,
		MapsetID:  &mapsetID,
		Value:     datatypes.JSONMap{"pp": 120.5},
		CreatedAt: base,
	}
	if err := repo.UpsertMany(context.Background(), nil, []*types.PlayerActivity{first}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second := &types.PlayerActivity{
		PlayerID:  77,
		Type:      types.ActivityScore,
		MapID:     &mapID,
		MapsetID:  &mapsetID,
		Value:     datatypes.JSONMap{"pp": 140.0},
		CreatedAt: base.Add(time.Hour),
	}
	if err := repo.UpsertMany(context.Background(), nil, []*types.PlayerActivity{second}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	records, err := repo.ListByPlayer(context.Background(), nil, 77)
	if err != nil {
		t.Fatalf("ListByPlayer: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("re-observation duplicated the record: got=%d rows", len(records))
	}
}

func TestPlayerActivityListOrdering(t *testing.T) {
	db := newTestDB(t)
	repo := NewPlayerActivityRepo(db, logger.NewNop())

	mapsetOld := int64(101)
	mapsetNew := int64(202)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	records := []*types.PlayerActivity{
		{PlayerID: 77, Type: types.ActivityFavourite, MapsetID: &mapsetOld, CreatedAt: base},
		{PlayerID: 77, Type: types.ActivityFavourite, MapsetID: &mapsetNew, CreatedAt: base.Add(time.Hour)},
	}
	if err := repo.UpsertMany(context.Background(), nil, records); err != nil {
		t.Fatalf("UpsertMany: %v", err)
	}

	got, err := repo.ListByPlayer(context.Background(), nil, 77)
	if err != nil {
		t.Fatalf("ListByPlayer: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("record count: want=2 got=%d", len(got))
	}
	if got[0].MapsetID == nil || *got[0].MapsetID != mapsetNew {
		t.Fatalf("most recent record must come first: got=%+v", got[0])
	}
}

func TestPlayerUpsert(t *testing.T) {
	db := newTestDB(t)
	repo := NewPlayerRepo(db, logger.NewNop())

	player := &types.Player{ID: 77, Username: "cookiezi", MainMode: types.ModeStandard}
	if err := repo.Upsert(context.Background(), nil, player); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	player.Username = "shigetora"
	if err := repo.Upsert(context.Background(), nil, player); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := repo.GetByID(context.Background(), nil, 77)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil || got.Username != "shigetora" {
		t.Fatalf("player not updated: %+v", got)
	}
}
