package candidate

import (
	"fmt"
	"strings"
)

const (
	defaultName           = "A candidate"
	defaultExperience     = "some experience"
	defaultSkills         = "various skills"
	defaultQualifications = "relevant qualifications"
)

// BuildSummary renders the text that is embedded for a stored candidate.
func BuildSummary(d Document) string {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		name = defaultName
	}

	experience := defaultExperience
	if d.Experience > 0 {
		experience = fmt.Sprintf("%d+ years of experience", d.Experience)
	}

	return fmt.Sprintf("%s with %s, skilled in %s, and holding %s.",
		name,
		experience,
		JoinOr(d.Skills, defaultSkills),
		JoinOr(d.Qualifications, defaultQualifications),
	)
}

// JoinOr joins non-blank values with ", " or returns fallback when nothing is left.
func JoinOr(values []string, fallback string) string {
	cleaned := Clean(values)
	if len(cleaned) == 0 {
		return fallback
	}
	return strings.Join(cleaned, ", ")
}

// Clean trims values and drops blank entries. The order is preserved.
func Clean(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
