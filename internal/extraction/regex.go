package extraction

import (
	"context"
	"regexp"
	"strconv"
	"unicode/utf8"

	"github.com/spigell/scoreit/internal/candidate"
)

const maxYears = 60

// DefaultVocabulary lists the skills the regex extractor looks for.
var DefaultVocabulary = []string{
	"Python", "Go", "Golang", "Java", "Kotlin", "Scala", "Rust", "C", "C++", "C#", "Ruby", "PHP",
	"JavaScript", "TypeScript", "Node.js", "React", "Next.js", "Vue", "Angular", "GraphQL", "HTML", "CSS",
	"SQL", "PostgreSQL", "MySQL", "MongoDB", "Redis", "Elasticsearch", "Kafka", "RabbitMQ", "Spark", "Hadoop",
	"AWS", "GCP", "Azure", "Docker", "Kubernetes", "Terraform", "Ansible", "Linux", "CI/CD", "Git",
	"ML", "Machine Learning", "Deep Learning", "NLP", "Computer Vision", "TensorFlow", "PyTorch",
	"scikit-learn", "Pandas", "NumPy", "Data Analysis", "Statistics", "Spring", "Django", "Flask", "FastAPI",
	"Microservices", "REST", "gRPC", "Agile", "Scrum", "Leadership", "Communication",
}

var (
	experiencePattern = regexp.MustCompile(`(?i)(\d{1,2})\s*\+?\s*(?:-\s*\d{1,2}\s*)?(?:years?|yrs?)\b`)

	qualificationPatterns = []struct {
		name string
		re   *regexp.Regexp
	}{
		{"PhD", regexp.MustCompile(`\b(?i:ph\.?\s?d|doctorate|doctoral degree)\b`)},
		{"MBA", regexp.MustCompile(`\b(?i:mba)\b`)},
		{"MSc", regexp.MustCompile(`\b(?i:m\.?\s?sc|master'?s|master\s+of)\b|\bM\.S\.|\bMS\b`)},
		{"BSc", regexp.MustCompile(`\b(?i:b\.?\s?sc|bachelor'?s|bachelor\s+of)\b|\bB\.S\.|\bBS\b`)},
		{"AWS Certified", regexp.MustCompile(`\b(?i:aws\s+certified)\b`)},
		{"PMP", regexp.MustCompile(`\bPMP\b`)},
		{"CISSP", regexp.MustCompile(`\bCISSP\b`)},
		{"CKA", regexp.MustCompile(`\bCKAD?\b`)},
		{"Certified Scrum Master", regexp.MustCompile(`\b(?i:certified\s+scrum\s+master)\b|\bCSM\b`)},
	}
)

type skillPattern struct {
	name string
	re   *regexp.Regexp
}

// Regex extracts job fields with patterns and a skills vocabulary. It never fails.
type Regex struct {
	skills []skillPattern
}

// NewRegex builds the extractor. Nil vocabulary means DefaultVocabulary.
func NewRegex(vocabulary []string) *Regex {
	if vocabulary == nil {
		vocabulary = DefaultVocabulary
	}

	r := &Regex{}
	for _, skill := range candidate.Clean(vocabulary) {
		r.skills = append(r.skills, skillPattern{name: skill, re: skillRegexp(skill)})
	}
	return r
}

// skillRegexp matches the skill as a whole token. Short names like "Go" or "C"
// are case sensitive to avoid matching ordinary words.
func skillRegexp(skill string) *regexp.Regexp {
	quoted := regexp.QuoteMeta(skill)
	if utf8.RuneCountInString(skill) > 3 {
		quoted = "(?i:" + quoted + ")"
	}
	return regexp.MustCompile(`(?:^|[^\w+#.])` + quoted + `(?:$|[^\w+#])`)
}

func (r *Regex) Name() string {
	return "regex"
}

func (r *Regex) Extract(_ context.Context, text string) (candidate.Job, error) {
	job := candidate.Job{
		Skills:         []string{},
		Qualifications: []string{},
	}

	for _, s := range r.skills {
		if s.re.MatchString(text) {
			job.Skills = append(job.Skills, s.name)
		}
	}

	for _, m := range experiencePattern.FindAllStringSubmatch(text, -1) {
		years, err := strconv.Atoi(m[1])
		if err != nil || years > maxYears {
			continue
		}
		if years > job.Experience {
			job.Experience = years
		}
	}

	for _, q := range qualificationPatterns {
		if q.re.MatchString(text) {
			job.Qualifications = append(job.Qualifications, q.name)
		}
	}

	return normalize(job), nil
}
