package osuapi

import "time"

// Types mirror the upstream v2 JSON shapes, trimmed to the fields the
// workers and handlers actually read.

type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`

	expiresAt time.Time
}

type IDName struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type TagCount struct {
	TagID int64 `json:"tag_id"`
	Count int   `json:"count"`
}

type Beatmap struct {
	ID               int64      `json:"id"`
	BeatmapsetID     int64      `json:"beatmapset_id"`
	Version          string     `json:"version"`
	Mode             string     `json:"mode"`
	BPM              float64    `json:"bpm"`
	CS               float64    `json:"cs"`
	AR               float64    `json:"ar"`
	Accuracy         float64    `json:"accuracy"`
	Drain            float64    `json:"drain"`
	DifficultyRating float64    `json:"difficulty_rating"`
	TotalLength      int        `json:"total_length"`
	HitLength        int        `json:"hit_length"`
	MaxCombo         int        `json:"max_combo"`
	RankedDate       *time.Time `json:"ranked_date"`
	TopTagIDs        []TagCount `json:"top_tag_ids"`
}

type Beatmapset struct {
	ID             int64      `json:"id"`
	Artist         string     `json:"artist"`
	Title          string     `json:"title"`
	Creator        string     `json:"creator"`
	Source         string     `json:"source"`
	Genre          *IDName    `json:"genre"`
	Language       *IDName    `json:"language"`
	Tags           string     `json:"tags"`
	Ranked         int        `json:"ranked"`
	PlayCount      int64      `json:"play_count"`
	FavouriteCount int64      `json:"favourite_count"`
	LastUpdated    *time.Time `json:"last_updated"`
	Beatmaps       []Beatmap  `json:"beatmaps"`
}

type UserStatistics struct {
	PP          float64 `json:"pp"`
	GlobalRank  int     `json:"global_rank"`
	CountryRank int     `json:"country_rank"`
}

type UserCountry struct {
	Code string `json:"code"`
}

type User struct {
	ID         int64           `json:"id"`
	Username   string          `json:"username"`
	IsBot      bool            `json:"is_bot"`
	Country    UserCountry     `json:"country"`
	Playmode   string          `json:"playmode"`
	JoinDate   *time.Time      `json:"join_date"`
	Statistics *UserStatistics `json:"statistics"`
}

type Mod struct {
	Acronym string `json:"acronym"`
}

type ScoreBeatmap struct {
	ID           int64 `json:"id"`
	BeatmapsetID int64 `json:"beatmapset_id"`
}

type Score struct {
	BeatmapID  int64         `json:"beatmap_id"`
	RulesetID  int           `json:"ruleset_id"`
	TotalScore int64         `json:"total_score"`
	PP         *float64      `json:"pp"`
	Rank       string        `json:"rank"`
	Mods       []Mod         `json:"mods"`
	Beatmap    *ScoreBeatmap `json:"beatmap"`
}

// FavouriteBeatmapset is the compact beatmapset shape returned by the
// user beatmaps listing. Only the id matters to us.
type FavouriteBeatmapset struct {
	ID int64 `json:"id"`
}

// ModAcronyms flattens the mod list into unique acronyms, keeping order.
func (s Score) ModAcronyms() []string {
	seen := make(map[string]bool, len(s.Mods))
	out := make([]string, 0, len(s.Mods))
	for _, m := range s.Mods {
		if m.Acronym == "" || seen[m.Acronym] {
			continue
		}
		seen[m.Acronym] = true
		out = append(out, m.Acronym)
	}
	return out
}
