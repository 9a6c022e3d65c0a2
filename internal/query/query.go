// Package query turns extracted job fields into the text used for vector search.
package query

import (
	"fmt"

	"github.com/spigell/scoreit/internal/candidate"
)

// Build renders the job as a description of the ideal candidate, in the same
// shape as the stored candidate summaries so both embed close to each other.
func Build(job candidate.Job) string {
	experience := "some experience"
	if job.Experience > 0 {
		experience = fmt.Sprintf("%d years of experience", job.Experience)
	}

	return fmt.Sprintf("A candidate with %s, skilled in %s, and holding %s.",
		experience,
		candidate.JoinOr(job.Skills, "various skills"),
		candidate.JoinOr(job.Qualifications, "relevant qualifications"),
	)
}
