package schemas_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenwave/formpilot/api/schemas"
)

func TestSemanticTypeRisk(t *testing.T) {
	highRisk := []schemas.SemanticType{
		schemas.FieldAuthorizedInUS,
		schemas.FieldSponsorship,
		schemas.FieldVisaStatus,
		schemas.FieldSalary,
		schemas.FieldEEOCGender,
		schemas.FieldEEOCEthnicity,
		schemas.FieldEEOCVeteran,
		schemas.FieldEEOCDisability,
	}
	for _, ft := range highRisk {
		assert.Equal(t, schemas.RiskHigh, ft.Risk(), "type %s", ft)
	}

	assert.Equal(t, schemas.RiskNormal, schemas.FieldEmail.Risk())
	assert.Equal(t, schemas.RiskNormal, schemas.FieldCustomText.Risk())
	assert.Equal(t, schemas.RiskNormal, schemas.FieldYearsExp.Risk())
}

func TestEEOCExcludesWorkAuthAndSalary(t *testing.T) {
	assert.True(t, schemas.FieldEEOCGender.IsEEOC())
	assert.True(t, schemas.FieldEEOCDisability.IsEEOC())

	// High risk but never decline-eligible.
	assert.False(t, schemas.FieldAuthorizedInUS.IsEEOC())
	assert.False(t, schemas.FieldSponsorship.IsEEOC())
	assert.False(t, schemas.FieldVisaStatus.IsEEOC())
	assert.False(t, schemas.FieldSalary.IsEEOC())
}

func TestDeclineOptionsPriorityOrder(t *testing.T) {
	require.NotEmpty(t, schemas.DeclineOptions)
	assert.Equal(t, "i do not wish to disclose", schemas.DeclineOptions[0])
	assert.Equal(t, "decline to answer", schemas.DeclineOptions[1])
	assert.Equal(t, "prefer not to say", schemas.DeclineOptions[2])
}

func TestResolvedValueResolved(t *testing.T) {
	rv := schemas.ResolvedValue{Source: schemas.TierProfile, Value: "jane@example.com"}
	assert.True(t, rv.Resolved())

	rv = schemas.ResolvedValue{Source: schemas.TierUnresolved}
	assert.False(t, rv.Resolved())

	rv = schemas.ResolvedValue{Source: schemas.TierLLM, Value: ""}
	assert.False(t, rv.Resolved())
}

func TestAttemptStatusTerminal(t *testing.T) {
	cases := map[schemas.AttemptStatus]bool{
		schemas.StatusPending:   false,
		schemas.StatusRunning:   false,
		schemas.StatusSucceeded: true,
		schemas.StatusSkipped:   true,
		schemas.StatusFailed:    true,
		schemas.StatusAborted:   true,
	}
	for status, want := range cases {
		assert.Equal(t, want, status.Terminal(), "status %s", status)
	}
}

func TestErrorCategory(t *testing.T) {
	wrapped := fmt.Errorf("navigate: %w", schemas.ErrTransient)
	assert.Equal(t, schemas.ErrTransient, schemas.Category(wrapped))
	assert.True(t, schemas.Retryable(wrapped))

	assert.Equal(t, schemas.ErrBlockingChallenge,
		schemas.Category(fmt.Errorf("captcha: %w", schemas.ErrBlockingChallenge)))
	assert.False(t, schemas.Retryable(schemas.ErrStructural))

	assert.Nil(t, schemas.Category(errors.New("unclassified")))
}

func TestSessionTally(t *testing.T) {
	rec := schemas.SessionRecord{Attempts: []schemas.JobAttempt{
		{Status: schemas.StatusSucceeded},
		{Status: schemas.StatusSucceeded},
		{Status: schemas.StatusFailed},
	}}
	tally := rec.Tally()
	assert.Equal(t, 2, tally[schemas.StatusSucceeded])
	assert.Equal(t, 1, tally[schemas.StatusFailed])
	assert.Equal(t, 0, tally[schemas.StatusAborted])
}
