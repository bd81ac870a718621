package matcher

import (
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Vocabulary is the data that drives admission: excluded listing terms,
// series aliases and per-series exclusions.
type Vocabulary struct {
	ExcludeTerms   []string            `yaml:"exclude_terms"`
	Aliases        map[string][]string `yaml:"aliases"`
	SeriesExcludes map[string][]string `yaml:"series_excludes"`
	// YearCueSeries lists series whose vintage issues collide with many modern
	// volumes; their candidates must carry an explicit vintage year.
	YearCueSeries []string `yaml:"year_cue_series"`
}

// DefaultVocabulary returns the built-in vocabulary.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		ExcludeTerms: []string{
			"reprint", "variant", "facsimile", "toy biz", "promo", "marvel legends",
			"lot of", "set of", "blank cover", "homage", "incentive", "ratio variant",
			"marvel team up",
		},
		Aliases: map[string][]string{
			"mighty thor": {"mighty thor", "thor", "journey into mystery"},
			"x men":       {"x men", "the x men"},
		},
		SeriesExcludes: map[string][]string{
			"x men": {"astonishing x men", "uncanny x men", "all new x men", "x men legacy", "ultimate x men", "new x men"},
		},
		YearCueSeries: []string{"x men"},
	}
}

// LoadVocabulary reads a vocabulary from a YAML file with a top-level
// "vocabulary" key. Sections left empty fall back to the defaults.
func LoadVocabulary(path string) (Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, eris.Wrapf(err, "matcher: read vocabulary %s", path)
	}

	var wrapper struct {
		Vocabulary Vocabulary `yaml:"vocabulary"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return Vocabulary{}, eris.Wrap(err, "matcher: parse vocabulary")
	}

	v := wrapper.Vocabulary
	def := DefaultVocabulary()
	if len(v.ExcludeTerms) == 0 {
		v.ExcludeTerms = def.ExcludeTerms
	}
	if v.Aliases == nil {
		v.Aliases = def.Aliases
	}
	if v.SeriesExcludes == nil {
		v.SeriesExcludes = def.SeriesExcludes
	}
	if v.YearCueSeries == nil {
		v.YearCueSeries = def.YearCueSeries
	}
	return v, nil
}

// SeriesIndex is the compiled form of a Vocabulary. Build it once, share it
// by pointer, and call Reload when the vocabulary changes.
type SeriesIndex struct {
	mu       sync.RWMutex
	exclude  *regexp.Regexp
	aliases  map[string][]string
	excludes map[string][]string
	yearCue  map[string]bool
}

// NewSeriesIndex compiles v.
func NewSeriesIndex(v Vocabulary) (*SeriesIndex, error) {
	idx := &SeriesIndex{}
	if err := idx.Reload(v); err != nil {
		return nil, err
	}
	return idx, nil
}

// Reload replaces the compiled vocabulary.
func (x *SeriesIndex) Reload(v Vocabulary) error {
	exclude, err := compileTerms(v.ExcludeTerms)
	if err != nil {
		return err
	}

	aliases := make(map[string][]string, len(v.Aliases))
	for series, names := range v.Aliases {
		key := Normalize(series)
		for _, n := range names {
			if nn := Normalize(n); nn != "" {
				aliases[key] = append(aliases[key], nn)
			}
		}
	}

	excludes := make(map[string][]string, len(v.SeriesExcludes))
	for series, names := range v.SeriesExcludes {
		key := Normalize(series)
		for _, n := range names {
			if nn := Normalize(n); nn != "" {
				excludes[key] = append(excludes[key], nn)
			}
		}
	}

	yearCue := make(map[string]bool, len(v.YearCueSeries))
	for _, s := range v.YearCueSeries {
		yearCue[Normalize(s)] = true
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.exclude = exclude
	x.aliases = aliases
	x.excludes = excludes
	x.yearCue = yearCue
	return nil
}

// compileTerms builds one case-insensitive alternation where spaces inside a
// term match any (or no) whitespace, so "toy biz" also matches "ToyBiz".
func compileTerms(terms []string) (*regexp.Regexp, error) {
	var parts []string
	for _, t := range terms {
		words := strings.Fields(strings.ToLower(t))
		if len(words) == 0 {
			continue
		}
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		parts = append(parts, strings.Join(words, `\s*`))
	}
	if len(parts) == 0 {
		return nil, nil
	}
	re, err := regexp.Compile(`(?i)\b(` + strings.Join(parts, "|") + `)\b`)
	if err != nil {
		return nil, eris.Wrap(err, "matcher: compile exclude terms")
	}
	return re, nil
}

// excluded returns the first exclusion term found in title, if any.
func (x *SeriesIndex) excluded(title string) (string, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.exclude == nil {
		return "", false
	}
	m := x.exclude.FindString(title)
	return m, m != ""
}

// Variants returns the normalized series phrases accepted for a target title:
// the title itself, its aliases, and the title without "the" or "mighty".
func (x *SeriesIndex) Variants(title string) []string {
	tnorm := Normalize(title)
	if tnorm == "" {
		return nil
	}

	x.mu.RLock()
	aliases := x.aliases[tnorm]
	x.mu.RUnlock()

	candidates := []string{tnorm}
	candidates = append(candidates, aliases...)
	candidates = append(candidates, dropWord(tnorm, "the"), dropWord(tnorm, "mighty"))

	seen := make(map[string]bool, len(candidates))
	var out []string
	for _, c := range candidates {
		c = Normalize(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

func (x *SeriesIndex) seriesExcludes(tnorm string) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.excludes[tnorm]
}

func (x *SeriesIndex) needsYearCue(tnorm string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.yearCue[tnorm]
}

func dropWord(normalized, word string) string {
	var kept []string
	for _, t := range tokens(normalized) {
		if t != word {
			kept = append(kept, t)
		}
	}
	return strings.Join(kept, " ")
}
