package candidate

// Candidate is the part of a candidate profile used for scoring.
type Candidate struct {
	Skills         []string `json:"skills" yaml:"skills"`
	Experience     int      `json:"experience" yaml:"experience"`
	Qualifications []string `json:"qualifications" yaml:"qualifications"`
	Summary        string   `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// Job holds the structured requirements of a job description.
type Job struct {
	Skills         []string `json:"skills" yaml:"skills"`
	Experience     int      `json:"experience" yaml:"experience"`
	Qualifications []string `json:"qualifications" yaml:"qualifications"`
}

// Document is a candidate as stored in the vector store.
type Document struct {
	ID             string    `json:"id,omitempty" yaml:"id,omitempty"`
	Name           string    `json:"name,omitempty" yaml:"name,omitempty"`
	Title          string    `json:"title,omitempty" yaml:"title,omitempty"`
	Company        string    `json:"company,omitempty" yaml:"company,omitempty"`
	Summary        string    `json:"summary,omitempty" yaml:"summary,omitempty"`
	Skills         []string  `json:"skills,omitempty" yaml:"skills,omitempty"`
	Experience     int       `json:"experience,omitempty" yaml:"experience,omitempty"`
	Qualifications []string  `json:"qualifications,omitempty" yaml:"qualifications,omitempty"`
	AvatarURL      string    `json:"avatarUrl,omitempty" yaml:"avatarUrl,omitempty"`
	Location       string    `json:"location,omitempty" yaml:"location,omitempty"`
	Email          string    `json:"email,omitempty" yaml:"email,omitempty"`
	Embedding      []float32 `json:"embedding,omitempty" yaml:"-"`

	// Score is filled by similarity search only.
	Score float64 `json:"-" yaml:"-"`
}

// Candidate returns the scoring view of the document.
func (d Document) Candidate() Candidate {
	return Candidate{
		Skills:         d.Skills,
		Experience:     d.Experience,
		Qualifications: d.Qualifications,
		Summary:        d.Summary,
	}
}
