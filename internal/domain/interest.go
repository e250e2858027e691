package domain

import (
	"math"
	"sort"
	"strings"
	"time"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// InterestSource records how an interest entered the profile.
type InterestSource string

const (
	SourceAuto   InterestSource = "auto"
	SourceManual InterestSource = "manual"
)

// Interest score bounds.
const (
	MinInterestScore = 0.0
	MaxInterestScore = 100.0
	// ManualSeedScore is the starting score of a tag the user picked explicitly.
	ManualSeedScore = 50.0
)

// Valid reports whether s is a known source.
func (s InterestSource) Valid() bool {
	return s == SourceAuto || s == SourceManual
}

// Interest is one tag affinity on a user profile.
type Interest struct {
	Tag       string         `json:"tag" bson:"tag"`
	Score     float64        `json:"score" bson:"score"`
	Source    InterestSource `json:"source" bson:"source"`
	UpdatedAt time.Time      `json:"updated_at" bson:"updated_at"`
}

// Signal is a batch of tag affinities observed together, e.g. the tags of a
// viewed product.
type Signal struct {
	Tags   []string
	Weight float64
	Source InterestSource
}

// Validate rejects negative or non-finite weights and unknown sources.
func (s Signal) Validate() error {
	if math.IsNaN(s.Weight) || math.IsInf(s.Weight, 0) {
		return apperrors.InvalidInput("weight must be a finite number")
	}
	if s.Weight < 0 {
		return apperrors.InvalidInput("weight must not be negative")
	}
	if !s.Source.Valid() {
		return apperrors.InvalidInput("source must be one of auto, manual")
	}
	return nil
}

// NormalizeTag trims and lowercases a tag. Blank tags normalize to "".
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

func clampScore(score float64) float64 {
	return math.Max(MinInterestScore, math.Min(MaxInterestScore, score))
}

// ApplySignal folds sig into interests and returns the new set. The input
// slice is not modified. Existing tags accumulate weight up to
// MaxInterestScore; a manual signal pins the tag's source to manual and an
// auto signal never downgrades it.
func ApplySignal(interests []Interest, sig Signal, now time.Time) []Interest {
	out := make([]Interest, len(interests))
	copy(out, interests)

	index := make(map[string]int, len(out))
	for i := range out {
		index[NormalizeTag(out[i].Tag)] = i
	}

	for _, raw := range sig.Tags {
		tag := NormalizeTag(raw)
		if tag == "" {
			continue
		}

		if i, ok := index[tag]; ok {
			out[i].Tag = tag
			out[i].Score = clampScore(out[i].Score + sig.Weight)
			if sig.Source == SourceManual {
				out[i].Source = SourceManual
			}
			out[i].UpdatedAt = now
			continue
		}

		score := math.Min(sig.Weight, MaxInterestScore)
		if sig.Source == SourceManual {
			score = ManualSeedScore
		}
		index[tag] = len(out)
		out = append(out, Interest{
			Tag:       tag,
			Score:     clampScore(score),
			Source:    sig.Source,
			UpdatedAt: now,
		})
	}

	return DedupInterests(out)
}

// DedupInterests collapses entries sharing a normalized tag. The last entry
// wins but keeps the position of the first occurrence; scores are clamped.
func DedupInterests(interests []Interest) []Interest {
	out := make([]Interest, 0, len(interests))
	pos := make(map[string]int, len(interests))

	for _, in := range interests {
		in.Tag = NormalizeTag(in.Tag)
		if in.Tag == "" {
			continue
		}
		in.Score = clampScore(in.Score)
		if i, ok := pos[in.Tag]; ok {
			out[i] = in
			continue
		}
		pos[in.Tag] = len(out)
		out = append(out, in)
	}
	return out
}

// SortByScore orders interests by score descending, then tag ascending.
func SortByScore(interests []Interest) []Interest {
	out := make([]Interest, len(interests))
	copy(out, interests)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}

// TopTags returns up to n tags with the highest scores.
func TopTags(interests []Interest, n int) []string {
	sorted := SortByScore(interests)
	if n >= 0 && n < len(sorted) {
		sorted = sorted[:n]
	}
	tags := make([]string, 0, len(sorted))
	for _, in := range sorted {
		tags = append(tags, in.Tag)
	}
	return tags
}
