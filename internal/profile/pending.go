package profile

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xenwave/formpilot/api/schemas"
)

// PendingQuestion is a question no tier could answer, queued for the user.
type PendingQuestion struct {
	Question string    `yaml:"question"`
	JobURL   string    `yaml:"job_url,omitempty"`
	Options  []string  `yaml:"options,omitempty"`
	SeenAt   time.Time `yaml:"seen_at"`
}

// PendingStore accumulates unanswered questions across sessions, deduplicated
// by normalized question text.
type PendingStore struct {
	path    string
	pending []PendingQuestion
}

// LoadPending reads the pending question queue. Missing file means empty queue.
func LoadPending(path string) (*PendingStore, error) {
	store := &PendingStore{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return store, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read pending questions: %w", err)
	}
	if err := yaml.Unmarshal(data, &store.pending); err != nil {
		return nil, fmt.Errorf("parse pending questions: %w", err)
	}
	return store, nil
}

// All returns the queued questions in arrival order.
func (s *PendingStore) All() []PendingQuestion {
	out := make([]PendingQuestion, len(s.pending))
	copy(out, s.pending)
	return out
}

// Record queues a question unless an equivalent is already queued. High
// risk fields (work authorization, salary, EEOC) are never queued: their
// answers are policy decisions for the profile file, not free-text prompts.
func (s *PendingStore) Record(q PendingQuestion, fieldType schemas.SemanticType) (bool, error) {
	if fieldType.Risk() == schemas.RiskHigh {
		return false, nil
	}

	norm := NormalizeQuestion(q.Question)
	if norm == "" {
		return false, nil
	}
	for _, existing := range s.pending {
		if NormalizeQuestion(existing.Question) == norm {
			return false, nil
		}
	}

	if q.SeenAt.IsZero() {
		q.SeenAt = time.Now().UTC()
	}
	s.pending = append(s.pending, q)
	return true, s.save()
}

// Promote moves a pending question into the answer bank with the supplied
// answer and drops it from the queue.
func (s *PendingStore) Promote(question, answer string, answers *AnswerStore) error {
	norm := NormalizeQuestion(question)
	idx := -1
	for i, existing := range s.pending {
		if NormalizeQuestion(existing.Question) == norm {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("no pending question matches %q", question)
	}

	if err := answers.Add(s.pending[idx].Question, answer); err != nil {
		return err
	}
	s.pending = append(s.pending[:idx], s.pending[idx+1:]...)
	return s.save()
}

func (s *PendingStore) save() error {
	data, err := yaml.Marshal(s.pending)
	if err != nil {
		return fmt.Errorf("marshal pending questions: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write pending questions: %w", err)
	}
	return nil
}
