package extract

import (
	"regexp"

	"github.com/xenwave/formpilot/api/schemas"
)

// typeRule maps label text onto a semantic type. Rules are ordered most
// specific first; the first match wins so "first name" never lands on the
// bare "name" rule.
type typeRule struct {
	fieldType schemas.SemanticType
	pattern   *regexp.Regexp
}

var typeRules = []typeRule{
	{schemas.FieldFirstName, regexp.MustCompile(`(?i)first\s*name|given\s*name|\bfname\b`)},
	{schemas.FieldLastName, regexp.MustCompile(`(?i)last\s*name|family\s*name|surname|\blname\b`)},
	{schemas.FieldEmail, regexp.MustCompile(`(?i)e-?mail`)},
	{schemas.FieldPhone, regexp.MustCompile(`(?i)phone|mobile|\bcell\b`)},
	{schemas.FieldLinkedIn, regexp.MustCompile(`(?i)linked\s*in`)},
	{schemas.FieldGitHub, regexp.MustCompile(`(?i)git\s*hub`)},
	{schemas.FieldCoverLetter, regexp.MustCompile(`(?i)cover\s*letter`)},
	{schemas.FieldResumeUpload, regexp.MustCompile(`(?i)resume|\bcv\b|curriculum`)},
	{schemas.FieldSponsorship, regexp.MustCompile(`(?i)sponsor`)},
	{schemas.FieldAuthorizedInUS, regexp.MustCompile(`(?i)authori[sz]ed\s*to\s*work|work\s*authori[sz]ation|legally\s*authori[sz]ed|eligible\s*to\s*work`)},
	{schemas.FieldVisaStatus, regexp.MustCompile(`(?i)visa\s*status|immigration\s*status`)},
	{schemas.FieldSalary, regexp.MustCompile(`(?i)salary|compensation|pay\s*expectation|desired\s*pay`)},
	{schemas.FieldYearsExp, regexp.MustCompile(`(?i)years\s*of\s*experience|how\s*many\s*years`)},
	{schemas.FieldStartDate, regexp.MustCompile(`(?i)start\s*date|available\s*to\s*start|earliest\s*start`)},
	{schemas.FieldHowDidYouHear, regexp.MustCompile(`(?i)how\s*did\s*you\s*hear|referral\s*source|hear\s*about\s*us`)},
	{schemas.FieldCurrentCompany, regexp.MustCompile(`(?i)current\s*(company|employer)|\bemployer\b`)},
	{schemas.FieldCurrentTitle, regexp.MustCompile(`(?i)current\s*(title|role|position)|job\s*title`)},
	{schemas.FieldDegree, regexp.MustCompile(`(?i)degree|education\s*level|highest\s*level\s*of\s*education`)},
	{schemas.FieldUniversity, regexp.MustCompile(`(?i)university|college|school\s*name`)},
	{schemas.FieldEEOCVeteran, regexp.MustCompile(`(?i)veteran`)},
	{schemas.FieldEEOCDisability, regexp.MustCompile(`(?i)disab`)},
	{schemas.FieldEEOCEthnicity, regexp.MustCompile(`(?i)\brace\b|ethnic`)},
	{schemas.FieldEEOCGender, regexp.MustCompile(`(?i)gender|\bsex\b`)},
	{schemas.FieldAddress, regexp.MustCompile(`(?i)street|address\s*line|^address\b`)},
	{schemas.FieldCity, regexp.MustCompile(`(?i)\bcity\b|\btown\b`)},
	{schemas.FieldState, regexp.MustCompile(`(?i)\bstate\b|province|\bregion\b`)},
	{schemas.FieldZipCode, regexp.MustCompile(`(?i)\bzip\b|postal\s*code|postcode`)},
	{schemas.FieldCountry, regexp.MustCompile(`(?i)country`)},
	{schemas.FieldWebsite, regexp.MustCompile(`(?i)website|portfolio|personal\s*site|\burl\b`)},
	{schemas.FieldFullName, regexp.MustCompile(`(?i)full\s*name|your\s*name|^name$`)},
}

// classifyText returns the first matching semantic type for a blob of label
// and attribute text, or false when nothing matches.
func classifyText(text string) (schemas.SemanticType, bool) {
	if text == "" {
		return "", false
	}
	for _, rule := range typeRules {
		if rule.pattern.MatchString(text) {
			return rule.fieldType, true
		}
	}
	return "", false
}
