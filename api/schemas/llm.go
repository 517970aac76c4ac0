package schemas

// AnswerConfidence is the model's self-reported certainty bucket.
type AnswerConfidence string

const (
	ConfidenceLow    AnswerConfidence = "low"
	ConfidenceMedium AnswerConfidence = "medium"
	ConfidenceHigh   AnswerConfidence = "high"
)

// FieldQuery is the request sent to the language model for one field the
// deterministic tiers could not answer.
type FieldQuery struct {
	Label    string       `json:"label"`
	Type     SemanticType `json:"semantic_type"`
	Options  []string     `json:"options,omitempty"`
	JobTitle string       `json:"job_title,omitempty"`
	Company  string       `json:"company,omitempty"`
	// ProfileSummary is a compact plain-text digest of the applicant
	// profile, never the raw profile document.
	ProfileSummary string `json:"profile_summary"`
}

// FieldAnswer is the model's proposed value for a FieldQuery.
type FieldAnswer struct {
	Value      string           `json:"value"`
	Confidence AnswerConfidence `json:"confidence"`
	Rationale  string           `json:"rationale,omitempty"`
}
