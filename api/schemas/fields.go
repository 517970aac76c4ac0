package schemas

// SemanticType is the closed set of meanings a raw form control can carry.
// Assigned exactly once by the extractor; the resolver never reclassifies.
type SemanticType string

const (
	FieldFirstName      SemanticType = "first_name"
	FieldLastName       SemanticType = "last_name"
	FieldFullName       SemanticType = "full_name"
	FieldEmail          SemanticType = "email"
	FieldPhone          SemanticType = "phone"
	FieldLinkedIn       SemanticType = "linkedin"
	FieldGitHub         SemanticType = "github"
	FieldWebsite        SemanticType = "website"
	FieldAddress        SemanticType = "address"
	FieldCity           SemanticType = "city"
	FieldState          SemanticType = "state"
	FieldZipCode        SemanticType = "zip_code"
	FieldCountry        SemanticType = "country"
	FieldResumeUpload   SemanticType = "resume_upload"
	FieldCoverLetter    SemanticType = "cover_letter"
	FieldAuthorizedInUS SemanticType = "authorized_in_us"
	FieldSponsorship    SemanticType = "require_sponsorship"
	FieldVisaStatus     SemanticType = "visa_status"
	FieldSalary         SemanticType = "salary_expectation"
	FieldYearsExp       SemanticType = "years_of_experience"
	FieldCurrentCompany SemanticType = "current_company"
	FieldCurrentTitle   SemanticType = "current_title"
	FieldDegree         SemanticType = "highest_degree"
	FieldUniversity     SemanticType = "university"
	FieldStartDate      SemanticType = "start_date"
	FieldHowDidYouHear  SemanticType = "how_did_you_hear"
	FieldEEOCGender     SemanticType = "eeoc_gender"
	FieldEEOCEthnicity  SemanticType = "eeoc_ethnicity"
	FieldEEOCVeteran    SemanticType = "eeoc_veteran"
	FieldEEOCDisability SemanticType = "eeoc_disability"
	FieldCustomText     SemanticType = "custom_text"
	FieldCustomChoice   SemanticType = "custom_choice"
)

// RiskLevel classifies how much legal or career weight a field's value carries.
type RiskLevel string

const (
	RiskNormal RiskLevel = "normal"
	RiskHigh   RiskLevel = "high"
)

// highRiskTypes is the static set of semantic types that must never be
// auto-resolved without surfacing in the confirmation summary.
var highRiskTypes = map[SemanticType]bool{
	FieldAuthorizedInUS: true,
	FieldSponsorship:    true,
	FieldVisaStatus:     true,
	FieldSalary:         true,
	FieldEEOCGender:     true,
	FieldEEOCEthnicity:  true,
	FieldEEOCVeteran:    true,
	FieldEEOCDisability: true,
}

// eeocTypes is the subset of high-risk fields that carry a legally voluntary
// non-disclosure option and are therefore eligible for the decline tier.
var eeocTypes = map[SemanticType]bool{
	FieldEEOCGender:     true,
	FieldEEOCEthnicity:  true,
	FieldEEOCVeteran:    true,
	FieldEEOCDisability: true,
}

// Risk returns the static risk level for a semantic type.
func (t SemanticType) Risk() RiskLevel {
	if highRiskTypes[t] {
		return RiskHigh
	}
	return RiskNormal
}

// IsEEOC reports whether the type belongs to the EEOC/diversity family.
func (t SemanticType) IsEEOC() bool {
	return eeocTypes[t]
}

// IsCustom reports whether the type is one of the open-ended fallbacks.
func (t SemanticType) IsCustom() bool {
	return t == FieldCustomText || t == FieldCustomChoice
}

// DeclineOptions lists voluntary non-disclosure phrasings in fixed priority
// order. The decline tier selects the first one present in a field's options.
var DeclineOptions = []string{
	"i do not wish to disclose",
	"decline to answer",
	"prefer not to say",
	"decline to self-identify",
	"i don't wish to answer",
	"choose not to disclose",
	"prefer not to answer",
}

// ControlKind is the mechanical shape of the underlying DOM control.
type ControlKind string

const (
	ControlText     ControlKind = "text"
	ControlTextarea ControlKind = "textarea"
	ControlSelect   ControlKind = "select"
	ControlRadio    ControlKind = "radio"
	ControlCheckbox ControlKind = "checkbox"
	ControlFile     ControlKind = "file"
)

// LabelSource records which strategy produced the label text, which in turn
// fixes the extraction confidence tier.
type LabelSource string

const (
	LabelExplicit  LabelSource = "explicit"  // <label for=...> or wrapping label
	LabelAttribute LabelSource = "attribute" // placeholder / aria-label
	LabelProximity LabelSource = "proximity" // nearest preceding visible text
	LabelNone      LabelSource = "none"
)

// FieldCandidate is one extracted, semantically typed form control.
// Produced fresh on every extraction pass and never persisted.
type FieldCandidate struct {
	Selector    string       `json:"selector"`
	FrameID     string       `json:"frame_id,omitempty"`
	Label       string       `json:"label"`
	LabelSource LabelSource  `json:"label_source"`
	Type        SemanticType `json:"semantic_type"`
	Control     ControlKind  `json:"control"`
	Options     []string     `json:"options,omitempty"`
	Required    bool         `json:"required"`
	Confidence  float64      `json:"confidence"`
}

// Risk is a convenience passthrough to the semantic type's static risk.
func (c FieldCandidate) Risk() RiskLevel { return c.Type.Risk() }

// SourceTier names the stage of the resolution chain that produced a value.
type SourceTier string

const (
	TierProfile      SourceTier = "profile"
	TierCustomAnswer SourceTier = "custom_answer"
	TierLLM          SourceTier = "llm"
	TierDecline      SourceTier = "decline"
	TierUnresolved   SourceTier = "unresolved"
)

// ResolvedValue pairs a candidate with the value the resolution chain chose
// for it. An unresolved field keeps an empty Value and is never applied.
type ResolvedValue struct {
	Field      FieldCandidate `json:"field"`
	Value      string         `json:"value"`
	Source     SourceTier     `json:"source_tier"`
	Risk       RiskLevel      `json:"risk_level"`
	Confidence float64        `json:"resolution_confidence"`
}

// Resolved reports whether the chain produced a usable value.
func (r ResolvedValue) Resolved() bool {
	return r.Source != TierUnresolved && r.Value != ""
}
