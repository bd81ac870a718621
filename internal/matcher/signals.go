package matcher

import (
	"regexp"
	"strconv"

	"github.com/sells-group/fmv-cli/internal/model"
)

// Signals holds what could be read out of a listing's free text.
type Signals struct {
	Grade    *float64 `json:"grade_numeric,omitempty"`
	Company  string   `json:"grade_company,omitempty"`
	IsRaw    bool     `json:"is_raw"`
	IsSigned bool     `json:"is_signed"`
}

// Slabbed reports whether a grading house was named.
func (s Signals) Slabbed() bool {
	return s.Company != ""
}

// signalRule is one step of the parser: if pattern matches, apply updates s.
type signalRule struct {
	name    string
	pattern *regexp.Regexp
	apply   func(match []string, s *Signals)
}

// gradeScale is the enumerated grade vocabulary, highest first.
var gradeScale = `10\.0|9\.9|9\.8|9\.6|9\.4|9\.2|9\.0|8\.5|8\.0|7\.5|7\.0|6\.5|6\.0|5\.5|5\.0|4\.5|4\.0|3\.5|3\.0|2\.5|2\.0|1\.8|1\.5|1\.0|0\.5`

// signalRules is evaluated in order. Later rules may read what earlier ones set.
var signalRules = []signalRule{
	{
		name:    "grade",
		pattern: regexp.MustCompile(`\b(` + gradeScale + `)\b`),
		apply: func(m []string, s *Signals) {
			if g, err := strconv.ParseFloat(m[1], 64); err == nil {
				s.Grade = &g
			}
		},
	},
	{
		name:    "company_cgc",
		pattern: regexp.MustCompile(`(?i)\bCGC\b`),
		apply: func(_ []string, s *Signals) {
			s.Company = model.CompanyCGC
		},
	},
	{
		name:    "company_cbcs",
		pattern: regexp.MustCompile(`(?i)\bCBCS\b`),
		apply: func(_ []string, s *Signals) {
			if s.Company == "" {
				s.Company = model.CompanyCBCS
			}
		},
	},
	{
		name:    "raw_hint",
		pattern: regexp.MustCompile(`(?i)\braw\b|\bungraded\b`),
		apply: func(_ []string, s *Signals) {
			s.IsRaw = !s.Slabbed()
		},
	},
	{
		name:    "signed_hint",
		pattern: regexp.MustCompile(`(?i)\b(signed|signature series|ss)\b`),
		apply: func(_ []string, s *Signals) {
			s.IsSigned = true
		},
	},
}

// ParseSignals extracts grade, grading house, raw and signed hints from text.
func ParseSignals(text string) Signals {
	var s Signals
	for _, r := range signalRules {
		m := r.pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		r.apply(m, &s)
	}
	return s
}
