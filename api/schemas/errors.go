package schemas

import "errors"

// Attempt-level failure categories. Transient failures earn one retry of the
// failing step; everything else short-circuits to a terminal state.
var (
	// ErrTransient covers timeouts and flaky page loads worth one retry.
	ErrTransient = errors.New("transient failure")

	// ErrStructural means the page shape defeated us: no form found, an
	// unfillable control, a selector that stopped resolving.
	ErrStructural = errors.New("structural failure")

	// ErrPolicy means a safety rule blocked the attempt, such as an
	// unresolved high-risk field in auto-proceed mode.
	ErrPolicy = errors.New("policy violation")

	// ErrBlockingChallenge means a CAPTCHA or login wall interposed
	// itself. Never retried and never auto-confirmed.
	ErrBlockingChallenge = errors.New("blocking challenge")

	// ErrExternal covers upstream outages outside the page, such as the
	// model endpoint being unreachable.
	ErrExternal = errors.New("external failure")
)

// Category maps an error to its taxonomy sentinel, or nil for unclassified.
func Category(err error) error {
	for _, sentinel := range []error{
		ErrTransient, ErrStructural, ErrPolicy, ErrBlockingChallenge, ErrExternal,
	} {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return nil
}

// Retryable reports whether the error merits a single retry of the step.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient)
}
