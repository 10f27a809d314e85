package recommend

import (
	"math"

	"github.com/pandemonium-osu/pandemonium-backend/internal/types"
)

// Combination weights. They deliberately do not sum to 1; the final clamp
// absorbs overshoot.
const (
	AlphaTags = 0.65
	BetaMeta  = 0.25
)

// Metadata sub-signal weights and decay scales.
const (
	artistWeight   = 0.05
	genreWeight    = 0.05
	languageWeight = 0.05

	keyCountWeightMania = 0.05
	keyCountWeight      = 0.01

	starWeight = 0.03
	starDecay  = 1.5

	lengthWeight = 0.03
	lengthScaleS = 5.0

	bpmWeight   = 0.02
	bpmScaleHz  = 10.0
	comboWeight = 0.01
	comboScale  = 50.0
)

// Score is the authoritative re-ranking score between two payloads,
// bounded to [0,1]. It is computed independently of raw index similarity,
// which only drives candidate recall.
func Score(origin, candidate Payload) float64 {
	total := AlphaTags*TagScore(origin.UserTags, candidate.UserTags) +
		BetaMeta*MetaScore(origin, candidate)
	return clamp01(total)
}

// TagScore measures weighted tag overlap. The squared overlap rewards
// large shared counts superlinearly against the linear denominator; the
// cap guards degenerate low-total inputs.
func TagScore(origin, candidate map[string]int) float64 {
	var overlap, originTotal, candidateTotal float64
	for id, count := range origin {
		originTotal += float64(count)
		if other, ok := candidate[id]; ok {
			overlap += math.Min(float64(count), float64(other))
		}
	}
	for _, count := range candidate {
		candidateTotal += float64(count)
	}

	total := originTotal + candidateTotal - overlap
	if total == 0 {
		return 0
	}
	return math.Min(1, overlap*overlap/total)
}

// MetaScore is a weighted sum of independent metadata sub-signals. All
// decay terms share the exp(-|diff|/scale) family: 1 at zero difference,
// smooth everywhere, no rank discontinuities near a threshold.
func MetaScore(a, b Payload) float64 {
	var score float64

	if a.Artist == b.Artist {
		score += artistWeight
	}
	if a.Genre == b.Genre {
		score += genreWeight
	}
	if a.Language == b.Language {
		score += languageWeight
	}

	keyWeight := keyCountWeight
	if a.Mode == types.ModeMania && b.Mode == types.ModeMania {
		keyWeight = keyCountWeightMania
	}
	if a.CS == b.CS {
		score += keyWeight
	}

	score += starWeight * decay(math.Abs(a.StarRating-b.StarRating)*starDecay)
	score += lengthWeight * decay(math.Abs(float64(a.TotalLength-b.TotalLength))/lengthScaleS)
	score += bpmWeight * decay(math.Abs(a.BPM-b.BPM)/bpmScaleHz)

	if a.MaxCombo > 0 && b.MaxCombo > 0 {
		score += comboWeight * decay(math.Abs(float64(a.MaxCombo-b.MaxCombo))/comboScale)
	}

	return score
}

func decay(x float64) float64 {
	return math.Exp(-x)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
