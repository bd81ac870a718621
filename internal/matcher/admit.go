package matcher

import (
	"regexp"
	"strconv"
	"strings"
)

// RejectReason names the admission filter that turned a candidate away.
type RejectReason string

const (
	ReasonExcludedTerm      RejectReason = "excluded_term"
	ReasonAnnualMismatch    RejectReason = "annual_mismatch"
	ReasonVolumeEra         RejectReason = "volume_era"
	ReasonSeriesMissing     RejectReason = "series_missing"
	ReasonSeriesExcluded    RejectReason = "series_excluded"
	ReasonIssueLetterSuffix RejectReason = "issue_letter_suffix"
	ReasonIssueMissing      RejectReason = "issue_missing"
	ReasonIssueNotColocated RejectReason = "issue_not_colocated"
	ReasonModernYear        RejectReason = "modern_year"
	ReasonMissingYearCue    RejectReason = "missing_year_cue"
)

// vintageCutoff is the publication year before which modern-reprint guards apply.
const vintageCutoff = 1985

// DefaultColocationWindow is how many words may separate the series phrase
// from the issue number.
const DefaultColocationWindow = 6

// Target is the inventory item a candidate listing is matched against.
type Target struct {
	Title   string   `json:"title"`
	Issue   string   `json:"issue"`
	Year    *int     `json:"year,omitempty"`
	Grade   *float64 `json:"grade_numeric,omitempty"`
	Slabbed bool     `json:"is_slabbed"`
}

func (t Target) vintage() bool {
	return t.Year != nil && *t.Year > 0 && *t.Year < vintageCutoff
}

// Admission is the outcome of Admit. When Admitted is false, Reason says why
// and Detail carries the offending text where there is one.
type Admission struct {
	Admitted bool         `json:"admitted"`
	Reason   RejectReason `json:"reason,omitempty"`
	Detail   string       `json:"detail,omitempty"`
}

func admitted() Admission { return Admission{Admitted: true} }

func rejected(reason RejectReason, detail string) Admission {
	return Admission{Reason: reason, Detail: detail}
}

var (
	annualRe = regexp.MustCompile(`(?i)\bannual\b`)
	volumeRe = regexp.MustCompile(`(?i)\bvol\.?\s*([0-9]+)\b`)
	yearRe   = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
)

// issueMarkers may sit directly before an issue number ("no 20", "issue 20").
var issueMarkers = map[string]bool{"no": true, "issue": true}

// Matcher applies the admission filters using a shared SeriesIndex.
type Matcher struct {
	index  *SeriesIndex
	window int
}

// New creates a Matcher. A window <= 0 uses DefaultColocationWindow.
func New(index *SeriesIndex, window int) *Matcher {
	if window <= 0 {
		window = DefaultColocationWindow
	}
	return &Matcher{index: index, window: window}
}

// Admit runs every admission filter in order and reports the first failure.
func (m *Matcher) Admit(target Target, candidateTitle string) Admission {
	if term, ok := m.index.excluded(candidateTitle); ok {
		return rejected(ReasonExcludedTerm, term)
	}

	if annualRe.MatchString(target.Title) != annualRe.MatchString(candidateTitle) {
		return rejected(ReasonAnnualMismatch, "")
	}

	if target.vintage() {
		if v := volumeRe.FindString(candidateTitle); v != "" {
			return rejected(ReasonVolumeEra, v)
		}
	}

	tnorm := Normalize(target.Title)
	cnorm := Normalize(candidateTitle)
	variants := m.index.Variants(target.Title)

	if len(variants) > 0 {
		found := false
		for _, v := range variants {
			if containsPhrase(cnorm, v) {
				found = true
				break
			}
		}
		if !found {
			return rejected(ReasonSeriesMissing, "")
		}
	}

	for _, bad := range m.index.seriesExcludes(tnorm) {
		if containsPhrase(cnorm, bad) {
			return rejected(ReasonSeriesExcluded, bad)
		}
	}

	issue := strings.TrimSpace(target.Issue)
	if isDigits(issue) {
		if a := m.checkIssue(cnorm, issue, variants); !a.Admitted {
			return a
		}
	}

	if target.vintage() {
		years := yearTokens(candidateTitle)
		for _, y := range years {
			if y >= 2000 {
				return rejected(ReasonModernYear, strconv.Itoa(y))
			}
		}
		if m.index.needsYearCue(tnorm) {
			if len(years) == 0 {
				return rejected(ReasonMissingYearCue, "")
			}
			allModern := true
			for _, y := range years {
				if y <= vintageCutoff {
					allModern = false
					break
				}
			}
			if allModern {
				return rejected(ReasonMissingYearCue, "")
			}
		}
	}

	return admitted()
}

// Admits is the boolean form of Admit.
func (m *Matcher) Admits(target Target, candidateTitle string) bool {
	return m.Admit(target, candidateTitle).Admitted
}

// checkIssue requires the exact issue number as a standalone token, rejects
// letter-suffixed variants, and requires the number near a series phrase.
func (m *Matcher) checkIssue(cnorm, issue string, variants []string) Admission {
	toks := tokens(cnorm)

	var positions []int
	for i, t := range toks {
		if t == issue {
			positions = append(positions, i)
			continue
		}
		if len(t) == len(issue)+1 && strings.HasPrefix(t, issue) {
			if c := t[len(t)-1]; c >= 'a' && c <= 'z' {
				return rejected(ReasonIssueLetterSuffix, t)
			}
		}
	}
	if len(positions) == 0 {
		return rejected(ReasonIssueMissing, issue)
	}

	if len(variants) == 0 {
		return admitted()
	}
	for _, v := range variants {
		phrase := tokens(v)
		for _, start := range phraseStarts(toks, phrase) {
			end := start + len(phrase) - 1
			for _, p := range positions {
				if m.colocated(toks, start, end, p) {
					return admitted()
				}
			}
		}
	}
	return rejected(ReasonIssueNotColocated, issue)
}

// colocated reports whether the issue token at p sits within the window of
// the phrase spanning [start, end], in either order.
func (m *Matcher) colocated(toks []string, start, end, p int) bool {
	if p > end {
		gap := p - end - 1
		if gap <= m.window {
			return true
		}
		// "<series> w1..w6 issue 20": the marker does not count against the window.
		return gap == m.window+1 && issueMarkers[toks[p-1]]
	}
	if p < start {
		return start-p-1 <= m.window
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func yearTokens(title string) []int {
	var out []int
	for _, m := range yearRe.FindAllString(title, -1) {
		if y, err := strconv.Atoi(m); err == nil {
			out = append(out, y)
		}
	}
	return out
}
