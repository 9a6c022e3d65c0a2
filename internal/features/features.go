package features

import (
	"errors"
	"fmt"
	"math"

	"github.com/spigell/scoreit/internal/candidate"
)

// Size is the number of features in a Vector.
const Size = 3

var ErrInvalidVector = errors.New("invalid feature vector")

// Vector describes how well a candidate fits a job.
type Vector struct {
	SkillOverlap       int `json:"skill_overlap"`
	ExperienceGap      int `json:"experience_gap"`
	QualificationMatch int `json:"qualification_match"`
}

// Values returns the features in model input order.
func (v Vector) Values() [Size]float64 {
	return [Size]float64{
		float64(v.SkillOverlap),
		float64(v.ExperienceGap),
		float64(v.QualificationMatch),
	}
}

// FromValues converts raw model input back into a Vector.
func FromValues(values []float64) (Vector, error) {
	if len(values) != Size {
		return Vector{}, fmt.Errorf("%w: expected %d values, got %d", ErrInvalidVector, Size, len(values))
	}

	ints := make([]int, Size)
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v != math.Trunc(v) {
			return Vector{}, fmt.Errorf("%w: value %v at position %d is not a non-negative integer", ErrInvalidVector, v, i)
		}
		ints[i] = int(v)
	}

	if ints[2] > 1 {
		return Vector{}, fmt.Errorf("%w: qualification match must be 0 or 1, got %d", ErrInvalidVector, ints[2])
	}

	return Vector{SkillOverlap: ints[0], ExperienceGap: ints[1], QualificationMatch: ints[2]}, nil
}

// Extractor turns a candidate and a job into a feature vector.
type Extractor interface {
	Name() string
	Extract(c candidate.Candidate, j candidate.Job) Vector
}

// Overlap is the default Extractor. Skills and qualifications match by exact string.
type Overlap struct{}

func (Overlap) Name() string {
	return "overlap"
}

func (Overlap) Extract(c candidate.Candidate, j candidate.Job) Vector {
	return Extract(c, j)
}

// Extract computes the feature vector for the pair.
func Extract(c candidate.Candidate, j candidate.Job) Vector {
	qualification := 0
	if intersect(c.Qualifications, j.Qualifications) > 0 {
		qualification = 1
	}

	gap := c.Experience - j.Experience
	if gap < 0 {
		gap = -gap
	}

	return Vector{
		SkillOverlap:       intersect(c.Skills, j.Skills),
		ExperienceGap:      gap,
		QualificationMatch: qualification,
	}
}

// ExtractAll extracts a vector per candidate, preserving order.
func ExtractAll(e Extractor, candidates []candidate.Candidate, j candidate.Job) []Vector {
	out := make([]Vector, len(candidates))
	for i, c := range candidates {
		out[i] = e.Extract(c, j)
	}
	return out
}

func intersect(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}

	count := 0
	for _, v := range b {
		if _, ok := set[v]; ok {
			count++
			delete(set, v)
		}
	}
	return count
}
