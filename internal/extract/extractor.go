package extract

import (
	"strings"

	"go.uber.org/zap"

	"github.com/xenwave/formpilot/api/schemas"
)

// Extraction confidence by label provenance. An explicit <label> binding is
// trusted far more than text that merely sits near the control.
const (
	ConfidenceExplicit  = 0.95
	ConfidenceAttribute = 0.8
	ConfidenceProximity = 0.5
)

// Extractor turns harvested controls into classified field candidates.
type Extractor struct {
	logger *zap.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logger.Named("extract")}
}

// Classify classifies a single harvested control. It returns false for
// controls that should not become candidates: invisible ones and controls
// with no usable label at all.
func (e *Extractor) Classify(raw RawControl) (schemas.FieldCandidate, bool) {
	if !raw.Visible {
		return schemas.FieldCandidate{}, false
	}

	label, source := pickLabel(raw)
	if label == "" && raw.Name == "" {
		return schemas.FieldCandidate{}, false
	}

	// Attribute text participates in typing even when the visible label
	// is vague ("Your answer" next to input[name=phone]).
	matchText := collapse(strings.Join([]string{label, raw.Name, raw.ElementID, raw.Placeholder, raw.AriaLabel}, " "))

	fieldType, matched := classifyText(matchText)
	if !matched {
		fieldType = fallbackType(raw)
	}
	if raw.InputType == "file" {
		// File inputs are resume uploads unless the label says cover letter.
		if fieldType != schemas.FieldCoverLetter {
			fieldType = schemas.FieldResumeUpload
		}
	}

	return schemas.FieldCandidate{
		Selector:    raw.Selector,
		FrameID:     raw.FrameID,
		Label:       label,
		LabelSource: source,
		Type:        fieldType,
		Control:     controlKind(raw),
		Options:     raw.Options,
		Required:    raw.Required,
		Confidence:  confidenceFor(source),
	}, true
}

// ClassifyAll classifies a harvest batch, deduplicating by selector. The
// first occurrence of a selector wins; later duplicates are dropped so a
// repeat pass over the same DOM yields the same candidates.
func (e *Extractor) ClassifyAll(raws []RawControl) []schemas.FieldCandidate {
	seen := make(map[string]bool, len(raws))
	out := make([]schemas.FieldCandidate, 0, len(raws))
	for _, raw := range raws {
		key := raw.FrameID + "|" + raw.Selector
		if seen[key] {
			continue
		}
		cand, ok := e.Classify(raw)
		if !ok {
			continue
		}
		seen[key] = true
		out = append(out, cand)
	}
	e.logger.Debug("Classified controls",
		zap.Int("harvested", len(raws)),
		zap.Int("candidates", len(out)))
	return out
}

// MergeRescan folds a post-fill rescan into an existing candidate set.
// Selector identity decides: known selectors keep their original
// classification, new selectors are appended. It returns the merged set
// and the newly appeared candidates.
func (e *Extractor) MergeRescan(existing, fresh []schemas.FieldCandidate) (merged, added []schemas.FieldCandidate) {
	known := make(map[string]bool, len(existing))
	for _, c := range existing {
		known[c.FrameID+"|"+c.Selector] = true
	}

	merged = append(merged, existing...)
	for _, c := range fresh {
		key := c.FrameID + "|" + c.Selector
		if known[key] {
			continue
		}
		known[key] = true
		merged = append(merged, c)
		added = append(added, c)
	}
	if len(added) > 0 {
		e.logger.Info("Rescan surfaced new fields", zap.Int("count", len(added)))
	}
	return merged, added
}

// pickLabel chooses the best label text and records its provenance.
func pickLabel(raw RawControl) (string, schemas.LabelSource) {
	if text := collapse(raw.LabelText); text != "" {
		return text, schemas.LabelExplicit
	}
	if text := collapse(raw.AriaLabel); text != "" {
		return text, schemas.LabelAttribute
	}
	if text := collapse(raw.Placeholder); text != "" {
		return text, schemas.LabelAttribute
	}
	if text := collapse(raw.NearbyText); text != "" {
		return text, schemas.LabelProximity
	}
	return "", schemas.LabelNone
}

func confidenceFor(source schemas.LabelSource) float64 {
	switch source {
	case schemas.LabelExplicit:
		return ConfidenceExplicit
	case schemas.LabelAttribute:
		return ConfidenceAttribute
	default:
		return ConfidenceProximity
	}
}

// fallbackType assigns the open-ended type matching the control's shape.
func fallbackType(raw RawControl) schemas.SemanticType {
	switch {
	case raw.Tag == "select", raw.InputType == "radio", raw.InputType == "checkbox":
		return schemas.FieldCustomChoice
	default:
		return schemas.FieldCustomText
	}
}

func controlKind(raw RawControl) schemas.ControlKind {
	switch raw.Tag {
	case "textarea":
		return schemas.ControlTextarea
	case "select":
		return schemas.ControlSelect
	}
	switch raw.InputType {
	case "radio":
		return schemas.ControlRadio
	case "checkbox":
		return schemas.ControlCheckbox
	case "file":
		return schemas.ControlFile
	}
	return schemas.ControlText
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
