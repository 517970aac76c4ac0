package profile

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// CustomAnswer is one saved question/answer pair. Matching runs against the
// normalized question text, never the raw capture.
type CustomAnswer struct {
	Question string    `yaml:"question"`
	Answer   string    `yaml:"answer"`
	LastUsed time.Time `yaml:"last_used,omitempty"`
}

// AnswerStore holds the custom answer bank and answers fuzzy lookups
// against it.
type AnswerStore struct {
	path    string
	answers []CustomAnswer
}

// Matching weights. An exact normalized match bypasses scoring entirely.
const (
	scoreContainment      = 50
	scorePerKeyword       = 20
	scoreOptionMatch      = 10
	scoreOptionMiss       = -20
	DefaultMatchThreshold = 30
)

var (
	punctRe      = regexp.MustCompile(`[^\w\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// keywordPatterns are the question fragments that carry matching signal.
// Overlap on these counts far more than overlap on filler words.
var keywordPatterns = []string{
	"sponsorship", "visa", "authorized", "authorised", "citizen",
	"relocate", "relocation", "remote", "hybrid", "onsite", "on-site",
	"salary", "compensation", "pay", "rate",
	"start date", "notice period", "available",
	"experience", "years",
	"why", "interest", "motivat",
	"referral", "referred", "hear about",
	"clearance", "security",
	"education", "degree", "university",
	"linkedin", "github", "portfolio", "website",
	"gender", "race", "ethnicity", "veteran", "disability",
}

// NormalizeQuestion lowercases, strips punctuation, and collapses runs of
// whitespace so near-identical phrasings compare equal.
func NormalizeQuestion(q string) string {
	q = strings.ToLower(q)
	q = punctRe.ReplaceAllString(q, " ")
	q = whitespaceRe.ReplaceAllString(q, " ")
	return strings.TrimSpace(q)
}

// ExtractKeywords returns the signal-bearing fragments present in the
// normalized question, in pattern order.
func ExtractKeywords(q string) []string {
	norm := NormalizeQuestion(q)
	var found []string
	for _, kw := range keywordPatterns {
		if strings.Contains(norm, kw) {
			found = append(found, kw)
		}
	}
	return found
}

// LoadAnswers reads the custom answer bank. A missing file is an empty
// bank, not an error; the file appears once the user saves an answer.
func LoadAnswers(path string) (*AnswerStore, error) {
	store := &AnswerStore{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return store, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read custom answers: %w", err)
	}
	if err := yaml.Unmarshal(data, &store.answers); err != nil {
		return nil, fmt.Errorf("parse custom answers: %w", err)
	}
	return store, nil
}

// Len returns the number of saved answers.
func (s *AnswerStore) Len() int { return len(s.answers) }

// Add appends a new answer pair and persists the bank.
func (s *AnswerStore) Add(question, answer string) error {
	s.answers = append(s.answers, CustomAnswer{
		Question: question,
		Answer:   answer,
		LastUsed: time.Now().UTC(),
	})
	return s.save()
}

func (s *AnswerStore) save() error {
	data, err := yaml.Marshal(s.answers)
	if err != nil {
		return fmt.Errorf("marshal custom answers: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write custom answers: %w", err)
	}
	return nil
}

// Match finds the best saved answer for a question, optionally constrained
// by the field's option list. It returns the answer, the match score, and
// whether the score cleared the threshold.
//
// An exact normalized match wins immediately. Otherwise candidates score
// points for containment, shared keywords, and whether the stored answer
// is one of the field's options. Ties break by larger keyword overlap,
// then most recent use, then bank order.
func (s *AnswerStore) Match(question string, options []string, threshold int) (CustomAnswer, int, bool) {
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}
	normQ := NormalizeQuestion(question)
	if normQ == "" {
		return CustomAnswer{}, 0, false
	}
	qKeywords := ExtractKeywords(question)

	var (
		best        CustomAnswer
		bestScore   = -1
		bestOverlap = -1
		found       bool
	)

	for _, cand := range s.answers {
		normC := NormalizeQuestion(cand.Question)
		if normC == "" {
			continue
		}
		if normC == normQ {
			return cand, 100, true
		}

		score := 0
		if strings.Contains(normQ, normC) || strings.Contains(normC, normQ) {
			score += scoreContainment
		}

		overlap := keywordOverlap(qKeywords, ExtractKeywords(cand.Question))
		score += overlap * scorePerKeyword

		if len(options) > 0 {
			if optionContains(options, cand.Answer) {
				score += scoreOptionMatch
			} else {
				score += scoreOptionMiss
			}
		}

		if score > bestScore ||
			(score == bestScore && overlap > bestOverlap) ||
			(score == bestScore && overlap == bestOverlap && found && cand.LastUsed.After(best.LastUsed)) {
			best = cand
			bestScore = score
			bestOverlap = overlap
			found = true
		}
	}

	if !found || bestScore < threshold {
		return CustomAnswer{}, bestScore, false
	}
	return best, bestScore, true
}

// MarkUsed records that an answer was applied, for tie-breaking and hygiene.
func (s *AnswerStore) MarkUsed(question string) error {
	norm := NormalizeQuestion(question)
	for i := range s.answers {
		if NormalizeQuestion(s.answers[i].Question) == norm {
			s.answers[i].LastUsed = time.Now().UTC()
			return s.save()
		}
	}
	return nil
}

func keywordOverlap(a, b []string) int {
	set := make(map[string]bool, len(a))
	for _, kw := range a {
		set[kw] = true
	}
	n := 0
	for _, kw := range b {
		if set[kw] {
			n++
		}
	}
	return n
}

func optionContains(options []string, answer string) bool {
	normA := NormalizeQuestion(answer)
	for _, opt := range options {
		if NormalizeQuestion(opt) == normA {
			return true
		}
	}
	return false
}
