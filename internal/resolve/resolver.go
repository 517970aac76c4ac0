package resolve

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/xenwave/formpilot/api/schemas"
	"github.com/xenwave/formpilot/internal/config"
	"github.com/xenwave/formpilot/internal/profile"
)

// Answerer is the model fallback tier. Implementations return
// schemas.ErrExternal-wrapped errors when the upstream is unreachable.
type Answerer interface {
	Ask(ctx context.Context, q schemas.FieldQuery) (schemas.FieldAnswer, error)
}

// Resolution confidence by tier.
const (
	confProfile = 1.0
	confDecline = 1.0
	confLLMHigh = 0.9
	confLLMMed  = 0.6
)

// Resolver runs each field candidate through the answer tiers in fixed
// order: profile, custom answer bank, model fallback, EEOC decline. A field
// that exhausts the chain comes back unresolved, never guessed.
type Resolver struct {
	cfg      config.ResolverConfig
	prof     *profile.Profile
	answers  *profile.AnswerStore
	pending  *profile.PendingStore
	answerer Answerer
	logger   *zap.Logger
}

// New creates a Resolver. answerer may be nil when the model tier is
// disabled or unconfigured; that tier is then skipped.
func New(cfg config.ResolverConfig, prof *profile.Profile, answers *profile.AnswerStore, pending *profile.PendingStore, answerer Answerer, logger *zap.Logger) *Resolver {
	return &Resolver{
		cfg:      cfg,
		prof:     prof,
		answers:  answers,
		pending:  pending,
		answerer: answerer,
		logger:   logger.Named("resolve"),
	}
}

// ResolveAll resolves a batch of candidates in order. The job target gives
// the model tier context for open-ended questions.
func (r *Resolver) ResolveAll(ctx context.Context, cands []schemas.FieldCandidate, job schemas.JobTarget) ([]schemas.ResolvedValue, error) {
	out := make([]schemas.ResolvedValue, 0, len(cands))
	for _, cand := range cands {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out = append(out, r.Resolve(ctx, cand, job))
	}
	return out, nil
}

// Resolve runs one candidate through the tier chain.
func (r *Resolver) Resolve(ctx context.Context, cand schemas.FieldCandidate, job schemas.JobTarget) schemas.ResolvedValue {
	risk := cand.Risk()

	if rv, ok := r.fromProfile(cand, risk); ok {
		return rv
	}
	if rv, ok := r.fromAnswerBank(cand, risk); ok {
		return rv
	}
	if rv, ok := r.fromModel(ctx, cand, job, risk); ok {
		return rv
	}
	if rv, ok := r.fromDecline(cand); ok {
		return rv
	}

	r.recordPending(cand, job)
	return schemas.ResolvedValue{
		Field:  cand,
		Source: schemas.TierUnresolved,
		Risk:   risk,
	}
}

// fromProfile answers standard fields straight from the profile document.
// For choice controls the profile value must correspond to a listed option.
func (r *Resolver) fromProfile(cand schemas.FieldCandidate, risk schemas.RiskLevel) (schemas.ResolvedValue, bool) {
	value, ok := r.prof.ValueFor(cand.Type)
	if !ok {
		return schemas.ResolvedValue{}, false
	}
	if len(cand.Options) > 0 {
		opt, found := matchOption(cand.Options, value)
		if !found {
			r.logger.Debug("Profile value not among field options",
				zap.String("type", string(cand.Type)),
				zap.String("label", cand.Label))
			return schemas.ResolvedValue{}, false
		}
		value = opt
	}
	return schemas.ResolvedValue{
		Field:      cand,
		Value:      value,
		Source:     schemas.TierProfile,
		Risk:       risk,
		Confidence: confProfile,
	}, true
}

// fromAnswerBank answers repeat questions from saved custom answers.
func (r *Resolver) fromAnswerBank(cand schemas.FieldCandidate, risk schemas.RiskLevel) (schemas.ResolvedValue, bool) {
	if r.answers == nil || cand.Label == "" {
		return schemas.ResolvedValue{}, false
	}
	ans, score, ok := r.answers.Match(cand.Label, cand.Options, r.cfg.MatchThreshold)
	if !ok {
		return schemas.ResolvedValue{}, false
	}
	value := ans.Answer
	if len(cand.Options) > 0 {
		opt, found := matchOption(cand.Options, value)
		if !found {
			return schemas.ResolvedValue{}, false
		}
		value = opt
	}
	if err := r.answers.MarkUsed(ans.Question); err != nil {
		r.logger.Warn("Failed to mark answer used", zap.Error(err))
	}
	conf := float64(score) / 100.0
	if conf > 1.0 {
		conf = 1.0
	}
	return schemas.ResolvedValue{
		Field:      cand,
		Value:      value,
		Source:     schemas.TierCustomAnswer,
		Risk:       risk,
		Confidence: conf,
	}, true
}

// fromModel asks the model tier. EEOC fields never reach the model; their
// answer policy is non-disclosure, not invention. File controls are also
// out of scope for it. Model errors degrade to the next tier.
func (r *Resolver) fromModel(ctx context.Context, cand schemas.FieldCandidate, job schemas.JobTarget, risk schemas.RiskLevel) (schemas.ResolvedValue, bool) {
	if r.answerer == nil || cand.Type.IsEEOC() || cand.Control == schemas.ControlFile {
		return schemas.ResolvedValue{}, false
	}

	ans, err := r.answerer.Ask(ctx, schemas.FieldQuery{
		Label:          cand.Label,
		Type:           cand.Type,
		Options:        cand.Options,
		JobTitle:       job.Title,
		Company:        job.Company,
		ProfileSummary: r.prof.Summary(),
	})
	if err != nil {
		r.logger.Warn("Model tier unavailable for field",
			zap.String("label", cand.Label), zap.Error(err))
		return schemas.ResolvedValue{}, false
	}

	value := strings.TrimSpace(ans.Value)
	if value == "" {
		return schemas.ResolvedValue{}, false
	}

	optMatched := false
	if len(cand.Options) > 0 {
		opt, found := matchOption(cand.Options, value)
		if !found {
			return schemas.ResolvedValue{}, false
		}
		value = opt
		optMatched = true
	}

	var conf float64
	switch ans.Confidence {
	case schemas.ConfidenceHigh:
		conf = confLLMHigh
	case schemas.ConfidenceMedium:
		// Medium certainty is acceptable for normal fields; on
		// high-risk fields only an exact option match survives.
		if risk == schemas.RiskHigh && !optMatched {
			return schemas.ResolvedValue{}, false
		}
		conf = confLLMMed
	default:
		return schemas.ResolvedValue{}, false
	}

	return schemas.ResolvedValue{
		Field:      cand,
		Value:      value,
		Source:     schemas.TierLLM,
		Risk:       risk,
		Confidence: conf,
	}, true
}

// fromDecline selects the voluntary non-disclosure option for EEOC fields.
// Only EEOC fields qualify: declining work authorization, sponsorship, or
// salary questions would misrepresent the applicant.
func (r *Resolver) fromDecline(cand schemas.FieldCandidate) (schemas.ResolvedValue, bool) {
	if !r.cfg.DeclineEEOC || !cand.Type.IsEEOC() || len(cand.Options) == 0 {
		return schemas.ResolvedValue{}, false
	}
	for _, decline := range schemas.DeclineOptions {
		for _, opt := range cand.Options {
			if profile.NormalizeQuestion(opt) == decline {
				return schemas.ResolvedValue{
					Field:      cand,
					Value:      opt,
					Source:     schemas.TierDecline,
					Risk:       schemas.RiskHigh,
					Confidence: confDecline,
				}, true
			}
		}
	}
	return schemas.ResolvedValue{}, false
}

func (r *Resolver) recordPending(cand schemas.FieldCandidate, job schemas.JobTarget) {
	if r.pending == nil {
		return
	}
	added, err := r.pending.Record(profile.PendingQuestion{
		Question: cand.Label,
		JobURL:   job.URL,
		Options:  cand.Options,
	}, cand.Type)
	if err != nil {
		r.logger.Warn("Failed to record pending question", zap.Error(err))
		return
	}
	if added {
		r.logger.Info("Queued unanswered question", zap.String("question", cand.Label))
	}
}

// matchOption finds the option equivalent to value under normalization and
// returns the option's exact display text.
func matchOption(options []string, value string) (string, bool) {
	normV := profile.NormalizeQuestion(value)
	if normV == "" {
		return "", false
	}
	for _, opt := range options {
		if profile.NormalizeQuestion(opt) == normV {
			return opt, true
		}
	}
	// Second pass: unambiguous containment, e.g. "Yes" matching
	// "Yes, I am authorized".
	var hit string
	hits := 0
	for _, opt := range options {
		if strings.Contains(profile.NormalizeQuestion(opt), normV) {
			hit = opt
			hits++
		}
	}
	if hits == 1 {
		return hit, true
	}
	return "", false
}
