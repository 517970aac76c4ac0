package schemas

// Platform tags the applicant tracking system hosting a job posting.
type Platform string

const (
	PlatformLever         Platform = "lever"
	PlatformGreenhouse    Platform = "greenhouse"
	PlatformAshby         Platform = "ashby"
	PlatformWorkday       Platform = "workday"
	PlatformICIMS         Platform = "icims"
	PlatformTaleo         Platform = "taleo"
	PlatformBambooHR      Platform = "bamboohr"
	PlatformJobvite       Platform = "jobvite"
	PlatformSmartRecruits Platform = "smartrecruiters"
	PlatformUnknown       Platform = "unknown"
)

// Detection confidence by evidence source. URL matches are near-certain,
// DOM marker matches are weaker, no match carries zero confidence.
const (
	DetectConfidenceURL     = 0.95
	DetectConfidenceDOM     = 0.75
	DetectConfidenceUnknown = 0.0
)

// DetectionResult is the outcome of classifying a job page.
type DetectionResult struct {
	Platform   Platform `json:"platform"`
	Confidence float64  `json:"confidence"`
	Evidence   string   `json:"evidence,omitempty"`
	// FormInIframe hints that the application form lives inside an
	// embedded frame rather than the top document.
	FormInIframe bool `json:"form_in_iframe"`
}

// Known reports whether detection identified a concrete platform.
func (d DetectionResult) Known() bool { return d.Platform != PlatformUnknown }
