package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xenwave/formpilot/api/schemas"
)

// Profile is the applicant's standard data, loaded from a YAML file.
// Environment variables override the file so secrets and per-machine
// values stay out of it.
type Profile struct {
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
	Email     string `yaml:"email"`
	Phone     string `yaml:"phone"`
	LinkedIn  string `yaml:"linkedin"`
	GitHub    string `yaml:"github"`
	Website   string `yaml:"website"`

	Address string `yaml:"address"`
	City    string `yaml:"city"`
	State   string `yaml:"state"`
	ZipCode string `yaml:"zip_code"`
	Country string `yaml:"country"`

	// Work authorization facts. Pointers distinguish "not stated" from a
	// stated No; an unstated fact leaves the field to the later tiers.
	AuthorizedInUS     *bool  `yaml:"authorized_in_us"`
	RequireSponsorship *bool  `yaml:"require_sponsorship"`
	VisaStatus         string `yaml:"visa_status"`
	SalaryExpectation  string `yaml:"salary_expectation"`

	CurrentCompany string `yaml:"current_company"`
	CurrentTitle   string `yaml:"current_title"`
	YearsExp       string `yaml:"years_of_experience"`
	Degree         string `yaml:"highest_degree"`
	University     string `yaml:"university"`
	StartDate      string `yaml:"start_date"`
	HowDidYouHear  string `yaml:"how_did_you_hear"`

	ResumePath      string `yaml:"resume_path"`
	CoverLetterPath string `yaml:"cover_letter_path"`
}

// resumeCandidates are filenames probed when no resume path is configured.
var resumeCandidates = []string{"resume.pdf", "Resume.pdf", "cv.pdf", "CV.pdf"}

// Load reads a profile file, applies env overrides, and auto-detects a
// resume next to the profile file when none is configured.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}

	p.applyEnvOverrides()

	if p.ResumePath == "" {
		dir := filepath.Dir(path)
		for _, name := range resumeCandidates {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				p.ResumePath = candidate
				break
			}
		}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Profile) applyEnvOverrides() {
	overrides := map[string]*string{
		"FORMPILOT_EMAIL":    &p.Email,
		"FORMPILOT_PHONE":    &p.Phone,
		"FORMPILOT_LINKEDIN": &p.LinkedIn,
		"FORMPILOT_RESUME":   &p.ResumePath,
	}
	for env, field := range overrides {
		if v := os.Getenv(env); v != "" {
			*field = v
		}
	}
}

// Validate checks that the fields every application form needs are present.
func (p *Profile) Validate() error {
	var missing []string
	if p.FirstName == "" {
		missing = append(missing, "first_name")
	}
	if p.LastName == "" {
		missing = append(missing, "last_name")
	}
	if p.Email == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return fmt.Errorf("profile missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// FullName joins first and last name for single-field name inputs.
func (p *Profile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// ValueFor returns the profile value for a standard semantic type. The
// second return is false when the type is not a standard profile field or
// the profile has no value for it.
func (p *Profile) ValueFor(t schemas.SemanticType) (string, bool) {
	var v string
	switch t {
	case schemas.FieldAuthorizedInUS:
		return yesNo(p.AuthorizedInUS)
	case schemas.FieldSponsorship:
		return yesNo(p.RequireSponsorship)
	case schemas.FieldVisaStatus:
		v = p.VisaStatus
	case schemas.FieldSalary:
		v = p.SalaryExpectation
	case schemas.FieldFirstName:
		v = p.FirstName
	case schemas.FieldLastName:
		v = p.LastName
	case schemas.FieldFullName:
		v = p.FullName()
	case schemas.FieldEmail:
		v = p.Email
	case schemas.FieldPhone:
		v = p.Phone
	case schemas.FieldLinkedIn:
		v = p.LinkedIn
	case schemas.FieldGitHub:
		v = p.GitHub
	case schemas.FieldWebsite:
		v = p.Website
	case schemas.FieldAddress:
		v = p.Address
	case schemas.FieldCity:
		v = p.City
	case schemas.FieldState:
		v = p.State
	case schemas.FieldZipCode:
		v = p.ZipCode
	case schemas.FieldCountry:
		v = p.Country
	case schemas.FieldCurrentCompany:
		v = p.CurrentCompany
	case schemas.FieldCurrentTitle:
		v = p.CurrentTitle
	case schemas.FieldYearsExp:
		v = p.YearsExp
	case schemas.FieldDegree:
		v = p.Degree
	case schemas.FieldUniversity:
		v = p.University
	case schemas.FieldStartDate:
		v = p.StartDate
	case schemas.FieldHowDidYouHear:
		v = p.HowDidYouHear
	case schemas.FieldResumeUpload:
		v = p.ResumePath
	case schemas.FieldCoverLetter:
		v = p.CoverLetterPath
	default:
		return "", false
	}
	if v == "" {
		return "", false
	}
	return v, true
}

// yesNo renders a stated boolean fact the way choice controls expect it.
func yesNo(b *bool) (string, bool) {
	if b == nil {
		return "", false
	}
	if *b {
		return "Yes", true
	}
	return "No", true
}

// Summary renders a compact plain-text digest for model prompts. It never
// includes contact details beyond name.
func (p *Profile) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", p.FullName())
	if p.CurrentTitle != "" {
		fmt.Fprintf(&b, "Current role: %s", p.CurrentTitle)
		if p.CurrentCompany != "" {
			fmt.Fprintf(&b, " at %s", p.CurrentCompany)
		}
		b.WriteString("\n")
	}
	if p.YearsExp != "" {
		fmt.Fprintf(&b, "Years of experience: %s\n", p.YearsExp)
	}
	if p.Degree != "" {
		fmt.Fprintf(&b, "Education: %s", p.Degree)
		if p.University != "" {
			fmt.Fprintf(&b, ", %s", p.University)
		}
		b.WriteString("\n")
	}
	if p.City != "" {
		fmt.Fprintf(&b, "Location: %s", p.City)
		if p.State != "" {
			fmt.Fprintf(&b, ", %s", p.State)
		}
		b.WriteString("\n")
	}
	return b.String()
}
