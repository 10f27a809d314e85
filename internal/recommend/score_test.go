package recommend

import (
	"math"
	"testing"

	"github.com/pandemonium-osu/pandemonium-backend/internal/types"
)

func payloadFixture(mutate func(*Payload)) Payload {
	p := Payload{
		BeatmapsetID: 101,
		BeatmapID:    5001,
		Artist:       "Camellia",
		Mode:         types.ModeStandard,
		Genre:        2,
		Language:     5,
		UserTags:     map[string]int{"12": 9, "34": 4},
		StarRating:   6.2,
		BPM:          220,
		CS:           4,
		TotalLength:  300,
		MaxCombo:     1850,
		EmbedVersion: CurrentEmbedVersion,
	}
	if mutate != nil {
		mutate(&p)
	}
	return p
}

func TestTagScoreWorkedExample(t *testing.T) {
	origin := map[string]int{"1": 3, "2": 1}
	candidate := map[string]int{"1": 2, "3": 1}

	// overlap = min(3,2) = 2; total = 4 + 3 - 2 = 5; min(1, 4/5) = 0.8
	got := TagScore(origin, candidate)
	if math.Abs(got-0.8) > 1e-9 {
		t.Fatalf("tag score: want=0.8 got=%v", got)
	}
}

func TestTagScoreEmptyAndCapped(t *testing.T) {
	if got := TagScore(nil, nil); got != 0 {
		t.Fatalf("empty tag score: want=0 got=%v", got)
	}
	if got := TagScore(map[string]int{"1": 1}, nil); got != 0 {
		t.Fatalf("one-sided tag score: want=0 got=%v", got)
	}

	// Identical large multisets: overlap^2 overshoots the linear
	// denominator and must be capped at 1.
	tags := map[string]int{"1": 10}
	if got := TagScore(tags, tags); got != 1 {
		t.Fatalf("capped tag score: want=1 got=%v", got)
	}
}

func TestScoreSymmetric(t *testing.T) {
	a := payloadFixture(nil)
	b := payloadFixture(func(p *Payload) {
		p.BeatmapsetID = 202
		p.BeatmapID = 7001
		p.Artist = "t+pazolite"
		p.Genre = 3
		p.UserTags = map[string]int{"12": 2, "99": 5}
		p.StarRating = 4.1
		p.BPM = 184
		p.TotalLength = 95
		p.MaxCombo = 740
	})

	ab := Score(a, b)
	ba := Score(b, a)
	if ab != ba {
		t.Fatalf("score not symmetric: ab=%v ba=%v", ab, ba)
	}
}

func TestScoreBoundsAndSelfMaximal(t *testing.T) {
	self := payloadFixture(nil)
	disjoint := payloadFixture(func(p *Payload) {
		p.Artist = "other"
		p.Genre = 99
		p.Language = 99
		p.UserTags = map[string]int{"777": 3}
		p.StarRating = 1.0
		p.BPM = 60
		p.CS = 9
		p.TotalLength = 3000
		p.MaxCombo = 10
	})

	selfScore := Score(self, self)
	otherScore := Score(self, disjoint)

	for _, s := range []float64{selfScore, otherScore} {
		if s < 0 || s > 1 {
			t.Fatalf("score out of bounds: %v", s)
		}
	}
	if selfScore < otherScore {
		t.Fatalf("self score not maximal: self=%v other=%v", selfScore, otherScore)
	}

	empty := Payload{Mode: types.ModeStandard, EmbedVersion: CurrentEmbedVersion}
	if s := Score(empty, empty); s < 0 || s > 1 {
		t.Fatalf("empty-payload score out of bounds: %v", s)
	}
}

func TestMetaScoreStarDecay(t *testing.T) {
	a := payloadFixture(nil)
	b := payloadFixture(func(p *Payload) {
		p.StarRating = a.StarRating + 2.0
	})

	identical := MetaScore(a, a)
	drifted := MetaScore(a, b)

	// Only the star term changes: weight 0.03, exp(-2.0 * 1.5).
	wantDelta := starWeight * (1 - math.Exp(-2.0*1.5))
	gotDelta := identical - drifted
	if math.Abs(gotDelta-wantDelta) > 1e-9 {
		t.Fatalf("star decay delta: want=%v got=%v", wantDelta, gotDelta)
	}
}

func TestMetaScoreIdenticalStandardMode(t *testing.T) {
	a := payloadFixture(nil)

	// artist + genre + language + key count (non-mania weight) + the
	// four decay terms at their maxima.
	want := artistWeight + genreWeight + languageWeight + keyCountWeight +
		starWeight + lengthWeight + bpmWeight + comboWeight
	got := MetaScore(a, a)
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("identical meta score: want=%v got=%v", want, got)
	}
}

func TestMetaScoreManiaKeyCountWeight(t *testing.T) {
	a := payloadFixture(func(p *Payload) { p.Mode = types.ModeMania; p.CS = 7 })
	b := payloadFixture(func(p *Payload) { p.Mode = types.ModeMania; p.CS = 7 })
	c := payloadFixture(func(p *Payload) { p.Mode = types.ModeMania; p.CS = 4 })

	matched := MetaScore(a, b)
	mismatched := MetaScore(a, c)
	if math.Abs((matched-mismatched)-keyCountWeightMania) > 1e-9 {
		t.Fatalf("mania key weight delta: want=%v got=%v", keyCountWeightMania, matched-mismatched)
	}
}

func TestMetaScoreMissingMaxCombo(t *testing.T) {
	a := payloadFixture(func(p *Payload) { p.MaxCombo = 0 })
	b := payloadFixture(nil)

	with := MetaScore(b, b)
	without := MetaScore(a, b)
	if math.Abs((with-without)-comboWeight) > 1e-9 {
		t.Fatalf("missing max combo should drop the combo term: with=%v without=%v", with, without)
	}
}

func TestMetaScoreArtistPlainEquality(t *testing.T) {
	a := payloadFixture(func(p *Payload) { p.Artist = "" })
	b := payloadFixture(func(p *Payload) { p.Artist = "" })
	c := payloadFixture(nil)

	// Equality is the whole signal: two blank artists still match.
	if math.Abs((MetaScore(a, b)-MetaScore(a, c))-artistWeight) > 1e-9 {
		t.Fatalf("blank artists must still collect the artist term: eq=%v ne=%v", MetaScore(a, b), MetaScore(a, c))
	}
}

func TestScoreCombination(t *testing.T) {
	a := payloadFixture(nil)

	tag := TagScore(a.UserTags, a.UserTags)
	meta := MetaScore(a, a)
	want := AlphaTags*tag + BetaMeta*meta
	if want > 1 {
		want = 1
	}
	got := Score(a, a)
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("combined score: want=%v got=%v", want, got)
	}
}
