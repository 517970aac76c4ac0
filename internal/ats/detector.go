package ats

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/xenwave/formpilot/api/schemas"
)

// urlRule matches a hosted ATS by its URL shape. URL evidence is the
// strongest signal we have, so it is checked before anything else.
type urlRule struct {
	platform schemas.Platform
	pattern  *regexp.Regexp
}

var urlRules = []urlRule{
	{schemas.PlatformLever, regexp.MustCompile(`(?i)jobs\.(eu\.)?lever\.co/`)},
	{schemas.PlatformGreenhouse, regexp.MustCompile(`(?i)boards\.greenhouse\.io/|job-boards\.greenhouse\.io/`)},
	{schemas.PlatformAshby, regexp.MustCompile(`(?i)jobs\.ashbyhq\.com/`)},
	{schemas.PlatformWorkday, regexp.MustCompile(`(?i)\.myworkdayjobs\.com/`)},
	{schemas.PlatformICIMS, regexp.MustCompile(`(?i)\.icims\.com/`)},
	{schemas.PlatformTaleo, regexp.MustCompile(`(?i)\.taleo\.net/`)},
	{schemas.PlatformBambooHR, regexp.MustCompile(`(?i)\.bamboohr\.com/`)},
	{schemas.PlatformJobvite, regexp.MustCompile(`(?i)jobs\.jobvite\.com/`)},
	{schemas.PlatformSmartRecruits, regexp.MustCompile(`(?i)\.smartrecruiters\.com/`)},
}

// domRule matches ATS widgets embedded on a company's own career page,
// where the URL gives nothing away.
type domRule struct {
	platform schemas.Platform
	selector string
	iframe   bool
}

var domRules = []domRule{
	{schemas.PlatformGreenhouse, "#grnhse_app", true},
	{schemas.PlatformGreenhouse, "iframe[src*='greenhouse.io']", true},
	{schemas.PlatformLever, ".lever-job-title, iframe[src*='lever.co']", true},
	{schemas.PlatformAshby, "[data-ashby-job-posting], iframe[src*='ashbyhq.com']", true},
	{schemas.PlatformWorkday, "[data-automation-id='jobPostingPage']", false},
	{schemas.PlatformICIMS, "#icims_content_iframe, iframe[src*='icims.com']", true},
	{schemas.PlatformTaleo, "iframe[src*='taleo.net']", true},
	{schemas.PlatformBambooHR, "iframe[src*='bamboohr.com']", true},
	{schemas.PlatformJobvite, "iframe[src*='jobvite.com']", true},
	{schemas.PlatformSmartRecruits, "iframe[src*='smartrecruiters.com']", true},
}

// iframeHosted marks platforms whose application form sits in a frame even
// on their own hosted pages.
var iframeHosted = map[schemas.Platform]bool{
	schemas.PlatformICIMS: true,
	schemas.PlatformTaleo: true,
}

// Detector classifies job pages by hosting platform.
type Detector struct {
	logger *zap.Logger
}

// NewDetector creates a Detector.
func NewDetector(logger *zap.Logger) *Detector {
	return &Detector{logger: logger.Named("ats")}
}

// Detect classifies a job page from its URL and a static HTML snapshot.
// URL rules win at high confidence; DOM markers follow at lower confidence;
// anything else is unknown with zero confidence, never an error.
func (d *Detector) Detect(pageURL, html string) schemas.DetectionResult {
	if r, ok := d.detectByURL(pageURL); ok {
		d.logger.Debug("Platform detected by URL",
			zap.String("platform", string(r.Platform)),
			zap.String("url", pageURL))
		return r
	}
	if r, ok := d.detectByDOM(html); ok {
		d.logger.Debug("Platform detected by DOM marker",
			zap.String("platform", string(r.Platform)),
			zap.String("evidence", r.Evidence))
		return r
	}
	d.logger.Debug("No platform match", zap.String("url", pageURL))
	return schemas.DetectionResult{
		Platform:   schemas.PlatformUnknown,
		Confidence: schemas.DetectConfidenceUnknown,
	}
}

func (d *Detector) detectByURL(pageURL string) (schemas.DetectionResult, bool) {
	for _, rule := range urlRules {
		if rule.pattern.MatchString(pageURL) {
			return schemas.DetectionResult{
				Platform:     rule.platform,
				Confidence:   schemas.DetectConfidenceURL,
				Evidence:     "url:" + rule.pattern.String(),
				FormInIframe: iframeHosted[rule.platform],
			}, true
		}
	}
	return schemas.DetectionResult{}, false
}

func (d *Detector) detectByDOM(html string) (schemas.DetectionResult, bool) {
	if strings.TrimSpace(html) == "" {
		return schemas.DetectionResult{}, false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		// Unparseable HTML is treated as no evidence, not a failure.
		d.logger.Debug("Snapshot parse failed", zap.Error(err))
		return schemas.DetectionResult{}, false
	}

	for _, rule := range domRules {
		if doc.Find(rule.selector).Length() > 0 {
			return schemas.DetectionResult{
				Platform:     rule.platform,
				Confidence:   schemas.DetectConfidenceDOM,
				Evidence:     "dom:" + rule.selector,
				FormInIframe: rule.iframe,
			}, true
		}
	}
	return schemas.DetectionResult{}, false
}
