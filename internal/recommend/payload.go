package recommend

import (
	"fmt"
	"math"
)

// Payload is the denormalized copy of a beatmap's scoring-relevant fields
// stored alongside its embedding. It is the only shape scoring functions
// operate on; the untyped index payload is decoded exactly once at the
// vector-index boundary via PayloadFromMap.
type Payload struct {
	BeatmapsetID   int64
	BeatmapID      int64
	Title          string
	Artist         string
	Creator        string
	Mode           string
	Genre          int
	Language       int
	Tags           []string
	UserTags       map[string]int
	PlayCount      int64
	FavouriteCount int64
	Status         int
	StarRating     float64
	BPM            float64
	CS             float64
	TotalLength    int
	MaxCombo       int
	EmbedVersion   int
}

// ScoredCandidate is a vector-index hit carrying its retrieval score and
// decoded payload. Never persisted.
type ScoredCandidate struct {
	Score   float64
	Payload Payload
}

func (p Payload) ToMap() map[string]any {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	userTags := make(map[string]any, len(p.UserTags))
	for id, count := range p.UserTags {
		userTags[id] = count
	}
	return map[string]any{
		"beatmapset_id":   p.BeatmapsetID,
		"beatmap_id":      p.BeatmapID,
		"title":           p.Title,
		"artist":          p.Artist,
		"creator":         p.Creator,
		"mode":            p.Mode,
		"genre":           p.Genre,
		"language":        p.Language,
		"tags":            tags,
		"user_tags":       userTags,
		"play_count":      p.PlayCount,
		"favourite_count": p.FavouriteCount,
		"status":          p.Status,
		"star_rating":     p.StarRating,
		"bpm":             p.BPM,
		"cs":              p.CS,
		"length":          p.TotalLength,
		"max_combo":       p.MaxCombo,
		"embed_version":   p.EmbedVersion,
	}
}

// PayloadFromMap decodes and validates an index payload. Unknown embed
// versions are rejected here so scoring never branches on field presence.
func PayloadFromMap(m map[string]any) (Payload, error) {
	if m == nil {
		return Payload{}, fmt.Errorf("nil payload")
	}

	version := asInt(m["embed_version"])
	if version != CurrentEmbedVersion {
		return Payload{}, fmt.Errorf("unsupported embed_version=%d (want %d)", version, CurrentEmbedVersion)
	}

	p := Payload{
		BeatmapsetID:   asInt64(m["beatmapset_id"]),
		BeatmapID:      asInt64(m["beatmap_id"]),
		Title:          asString(m["title"]),
		Artist:         asString(m["artist"]),
		Creator:        asString(m["creator"]),
		Mode:           asString(m["mode"]),
		Genre:          asInt(m["genre"]),
		Language:       asInt(m["language"]),
		Tags:           asStringSlice(m["tags"]),
		UserTags:       asCountMap(m["user_tags"]),
		PlayCount:      asInt64(m["play_count"]),
		FavouriteCount: asInt64(m["favourite_count"]),
		Status:         asInt(m["status"]),
		StarRating:     asFloat(m["star_rating"]),
		BPM:            asFloat(m["bpm"]),
		CS:             asFloat(m["cs"]),
		TotalLength:    asInt(m["length"]),
		MaxCombo:       asInt(m["max_combo"]),
		EmbedVersion:   version,
	}
	if p.BeatmapsetID == 0 || p.BeatmapID == 0 {
		return Payload{}, fmt.Errorf("payload missing beatmapset_id/beatmap_id")
	}
	if p.Mode == "" {
		return Payload{}, fmt.Errorf("payload missing mode")
	}
	return p, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return 0
	}
}

func asInt64(v any) int64 {
	f := asFloat(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int64(f)
}

func asInt(v any) int {
	return int(asInt64(v))
}

func asStringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func asCountMap(v any) map[string]int {
	switch t := v.(type) {
	case map[string]int:
		out := make(map[string]int, len(t))
		for k, c := range t {
			out[k] = c
		}
		return out
	case map[string]any:
		out := make(map[string]int, len(t))
		for k, raw := range t {
			out[k] = asInt(raw)
		}
		return out
	default:
		return map[string]int{}
	}
}
