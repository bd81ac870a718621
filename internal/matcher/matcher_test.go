package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrInt(v int) *int             { return &v }
func ptrFloat64(v float64) *float64 { return &v }

func newTestMatcher(t *testing.T) *Matcher {
	t.Helper()
	idx, err := NewSeriesIndex(DefaultVocabulary())
	require.NoError(t, err)
	return New(idx, 0)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Amazing Spider-Man #20!", "amazing spider man 20"},
		{"  The   X-Men  ", "the x men"},
		{"Pokémon Café", "pokemon cafe"},
		{"CGC 9.8", "cgc 9 8"},
		{"", ""},
		{"---", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestAdmit(t *testing.T) {
	m := newTestMatcher(t)

	asm := Target{Title: "Amazing Spider-Man", Issue: "20", Year: ptrInt(1965)}
	xmen := Target{Title: "X-Men", Issue: "20", Year: ptrInt(1966)}
	thor := Target{Title: "Mighty Thor", Issue: "126", Year: ptrInt(1966)}
	ff := Target{Title: "Fantastic Four", Issue: "48", Year: ptrInt(1966)}

	tests := []struct {
		name   string
		target Target
		title  string
		want   RejectReason // empty = admitted
	}{
		{"plain match with year", asm, "Amazing Spider-Man 20 (1965)", ""},
		{"letter suffix variant", asm, "Amazing Spider-Man #20A CGC 9.8", ReasonIssueLetterSuffix},
		{"reprint", asm, "Amazing Spider-Man 20 Reprint", ReasonExcludedTerm},
		{"toy line without space", asm, "Amazing Spider-Man 20 ToyBiz insert", ReasonExcludedTerm},
		{"lot", asm, "Lot of Amazing Spider-Man 20 21 22", ReasonExcludedTerm},
		{"annual mismatch", asm, "Amazing Spider-Man Annual 20", ReasonAnnualMismatch},
		{"volume era", asm, "Amazing Spider-Man Vol 2 #20", ReasonVolumeEra},
		{"other series", asm, "Spectacular Spider-Man 20 1978", ReasonSeriesMissing},
		{"different issue", asm, "Amazing Spider-Man 200 1980", ReasonIssueMissing},
		{"number far from series", asm, "Amazing Spider-Man 5 featuring Doctor Doom classic cover key book art 20", ReasonIssueNotColocated},
		{"modern year", asm, "Amazing Spider-Man 20 Marvel 2018 edition", ReasonModernYear},
		{"series exclusion", xmen, "Uncanny X-Men 20 1966", ReasonSeriesExcluded},
		{"x-men without year cue", xmen, "X-Men #20 CGC 6.0", ReasonMissingYearCue},
		{"x-men with late year only", xmen, "X-Men #20 1991 CGC 6.0", ReasonMissingYearCue},
		{"x-men with year", xmen, "X-Men #20 1966 CGC 6.0", ""},
		{"legacy alias", thor, "Thor #126 1966 Marvel", ""},
		{"issue marker beyond window", ff, "Fantastic Four classic silver age kirby cover art issue 48", ""},
		{"issue before series", ff, "48 Fantastic Four 1966", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Admit(tt.target, tt.title)
			if tt.want == "" {
				assert.True(t, got.Admitted, "rejected with %s (%s)", got.Reason, got.Detail)
				assert.Empty(t, got.Reason)
				return
			}
			assert.False(t, got.Admitted)
			assert.Equal(t, tt.want, got.Reason)
		})
	}
}

func TestAdmits_NonVintageSkipsYearGuards(t *testing.T) {
	m := newTestMatcher(t)
	target := Target{Title: "Amazing Spider-Man", Issue: "20"}

	assert.True(t, m.Admits(target, "Amazing Spider-Man 20 2018"))
	assert.True(t, m.Admits(target, "Amazing Spider-Man Vol 2 20"))
}

func TestAdmits_NonNumericIssueSkipsIssueChecks(t *testing.T) {
	m := newTestMatcher(t)
	target := Target{Title: "Amazing Spider-Man", Issue: "20A"}

	assert.True(t, m.Admits(target, "Amazing Spider-Man 20A"))
}

func TestParseSignals(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		grade   *float64
		company string
		raw     bool
		signed  bool
	}{
		{"cgc slab", "Amazing Spider-Man 20 CGC 9.8 White Pages", ptrFloat64(9.8), "CGC", false, false},
		{"cbcs signature series", "ASM 20 CBCS 9.0 Signature Series Stan Lee", ptrFloat64(9.0), "CBCS", false, true},
		{"raw hint", "ASM 20 raw 6.5 nice copy", ptrFloat64(6.5), "", true, false},
		{"ungraded", "ASM 20 ungraded", nil, "", true, false},
		{"company suppresses raw", "ASM 20 CGC raw comparison", nil, "CGC", false, false},
		{"cgc wins over cbcs", "ASM 20 CBCS crossover to CGC", nil, "CGC", false, false},
		{"grade outside vocabulary", "ASM 20 VG 4", nil, "", false, false},
		{"lowest grade", "ASM 20 CGC 0.5", ptrFloat64(0.5), "CGC", false, false},
		{"nothing", "Amazing Spider-Man 20", nil, "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ParseSignals(tt.text)
			if tt.grade == nil {
				assert.Nil(t, s.Grade)
			} else {
				require.NotNil(t, s.Grade)
				assert.InDelta(t, *tt.grade, *s.Grade, 1e-9)
			}
			assert.Equal(t, tt.company, s.Company)
			assert.Equal(t, tt.raw, s.IsRaw)
			assert.Equal(t, tt.signed, s.IsSigned)
		})
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name          string
		targetGrade   *float64
		targetSlabbed bool
		signals       Signals
		want          float64
	}{
		{"exact slab match", ptrFloat64(9.8), true, Signals{Grade: ptrFloat64(9.8), Company: "CGC"}, 0.90},
		{"one grade apart", ptrFloat64(9.0), true, Signals{Grade: ptrFloat64(8.0), Company: "CGC"}, 0.70},
		{"both ungraded raw", nil, false, Signals{}, 0.40},
		{"slabbed target raw comp", ptrFloat64(9.8), true, Signals{Grade: ptrFloat64(9.8), IsRaw: true}, 0.55},
		{"beyond window", ptrFloat64(9.0), false, Signals{Grade: ptrFloat64(5.0)}, 0.30},
		{"signed", ptrFloat64(8.0), false, Signals{Grade: ptrFloat64(8.0), IsSigned: true}, 0.80},
		{"clamped at zero", ptrFloat64(9.8), true, Signals{Grade: ptrFloat64(2.0), IsRaw: true, IsSigned: true}, 0},
		{"grade only on one side", ptrFloat64(8.0), false, Signals{}, 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.targetGrade, tt.targetSlabbed, tt.signals)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}
