package profile_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenwave/formpilot/internal/profile"
)

func newStore(t *testing.T, pairs map[string]string) *profile.AnswerStore {
	t.Helper()
	store, err := profile.LoadAnswers(filepath.Join(t.TempDir(), "answers.yaml"))
	require.NoError(t, err)
	for q, a := range pairs {
		require.NoError(t, store.Add(q, a))
	}
	return store
}

func TestNormalizeQuestion(t *testing.T) {
	assert.Equal(t,
		"do you require sponsorship",
		profile.NormalizeQuestion("  Do you require   sponsorship?!  "))
	assert.Equal(t,
		"what s your salary expectation",
		profile.NormalizeQuestion("What's your SALARY expectation"))
	assert.Equal(t, "", profile.NormalizeQuestion("  ?!  "))
}

func TestExtractKeywords(t *testing.T) {
	kws := profile.ExtractKeywords("Do you now or in the future require visa sponsorship?")
	assert.Contains(t, kws, "sponsorship")
	assert.Contains(t, kws, "visa")

	assert.Empty(t, profile.ExtractKeywords("Tell us about yourself"))
}

func TestMatchExactNormalized(t *testing.T) {
	store := newStore(t, map[string]string{
		"Do you require sponsorship?": "No",
	})

	ans, score, ok := store.Match("do you require SPONSORSHIP", nil, 30)
	require.True(t, ok)
	assert.Equal(t, "No", ans.Answer)
	assert.Equal(t, 100, score)
}

func TestMatchContainmentAndKeywords(t *testing.T) {
	store := newStore(t, map[string]string{
		"require sponsorship": "No",
	})

	// Containment (+50) plus sponsorship keyword overlap (+20) clears 30.
	ans, score, ok := store.Match("Do you require sponsorship to work in the US?", nil, 30)
	require.True(t, ok)
	assert.Equal(t, "No", ans.Answer)
	assert.GreaterOrEqual(t, score, 70)
}

func TestMatchBelowThreshold(t *testing.T) {
	store := newStore(t, map[string]string{
		"Why do you want to work here?": "Because the mission resonates.",
	})

	_, _, ok := store.Match("How many years of Go experience do you have?", nil, 30)
	assert.False(t, ok)
}

func TestMatchOptionPenalty(t *testing.T) {
	store := newStore(t, map[string]string{
		"require sponsorship": "Maybe later",
	})

	// Keyword and containment signal is there, but the stored answer is
	// not one of the select's options, which drags the score down.
	_, withPenalty, _ := store.Match("Do you require sponsorship?", []string{"Yes", "No"}, 30)
	_, noPenalty, _ := store.Match("Do you require sponsorship?", nil, 30)
	assert.Equal(t, noPenalty-20, withPenalty)

	// An answer that is a listed option gains instead.
	store2 := newStore(t, map[string]string{
		"require sponsorship": "No",
	})
	_, bonus, ok := store2.Match("Do you require sponsorship?", []string{"Yes", "No"}, 30)
	require.True(t, ok)
	assert.Equal(t, noPenalty+10, bonus)
}

func TestMatchEmptyStore(t *testing.T) {
	store := newStore(t, nil)
	_, _, ok := store.Match("Anything at all?", nil, 30)
	assert.False(t, ok)
}

func TestAnswersPersistAcrossLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "answers.yaml")
	store, err := profile.LoadAnswers(path)
	require.NoError(t, err)
	require.NoError(t, store.Add("Notice period?", "Two weeks"))

	reloaded, err := profile.LoadAnswers(path)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Len())

	ans, _, ok := reloaded.Match("Notice period?", nil, 30)
	require.True(t, ok)
	assert.Equal(t, "Two weeks", ans.Answer)
}
