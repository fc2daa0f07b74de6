package enhance

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// termEntry maps a spoken clinical phrase to its canonical abbreviation.
// Phrases cover English and Spanish since dictation is multilingual.
type termEntry struct {
	phrase    string
	canonical string
}

var termDictionary = []termEntry{
	{"left ventricular ejection fraction", "LVEF"},
	{"fracción de eyección del ventrículo izquierdo", "LVEF"},
	{"ejection fraction", "EF"},
	{"fracción de eyección", "EF"},
	{"biparietal diameter", "BPD"},
	{"diámetro biparietal", "BPD"},
	{"gestational age", "GA"},
	{"edad gestacional", "GA"},
	{"fetal heart rate", "FHR"},
	{"frecuencia cardíaca fetal", "FHR"},
	{"frecuencia cardiaca fetal", "FHR"},
	{"heart rate", "HR"},
	{"frecuencia cardíaca", "HR"},
	{"frecuencia cardiaca", "HR"},
	{"amniotic fluid index", "AFI"},
	{"índice de líquido amniótico", "AFI"},
	{"crown-rump length", "CRL"},
	{"crown rump length", "CRL"},
	{"longitud cefalocaudal", "CRL"},
	{"femur length", "FL"},
	{"longitud femoral", "FL"},
	{"head circumference", "HC"},
	{"circunferencia cefálica", "HC"},
	{"abdominal circumference", "AC"},
	{"circunferencia abdominal", "AC"},
	{"estimated fetal weight", "EFW"},
	{"peso fetal estimado", "EFW"},
	{"intrauterine pregnancy", "IUP"},
	{"embarazo intrauterino", "IUP"},
	{"beats per minute", "bpm"},
	{"latidos por minuto", "bpm"},
}

// compiledTerm pairs a case-insensitive phrase matcher with its replacement.
// The matcher carries no boundary assertions: regexp's \b is ASCII-only and
// never fires next to accented letters, so word boundaries are checked on
// the surrounding runes instead. The slice is ordered longest phrase first
// so a long phrase is never shadowed by a shorter phrase it contains.
type compiledTerm struct {
	re        *regexp.Regexp
	canonical string
}

var compiledTerms = compileTerms(termDictionary)

func compileTerms(entries []termEntry) []compiledTerm {
	sorted := make([]termEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].phrase) > len(sorted[j].phrase)
	})

	compiled := make([]compiledTerm, 0, len(sorted))
	for _, e := range sorted {
		compiled = append(compiled, compiledTerm{
			re:        regexp.MustCompile(`(?i)` + regexp.QuoteMeta(e.phrase)),
			canonical: e.canonical,
		})
	}
	return compiled
}

// StandardizeTerms rewrites known clinical phrases to their canonical
// abbreviation. Unmatched text passes through unchanged, so the transform is
// idempotent once the text only contains canonical forms.
func StandardizeTerms(text string) string {
	for _, t := range compiledTerms {
		text = replaceWholeWords(text, t)
	}
	return text
}

// replaceWholeWords substitutes every whole-word occurrence of the term,
// where "word" spans Unicode letters and digits.
func replaceWholeWords(text string, t compiledTerm) string {
	locs := t.re.FindAllStringIndex(text, -1)
	if locs == nil {
		return text
	}

	var b strings.Builder
	last := 0
	for _, loc := range locs {
		if !boundaryBefore(text, loc[0]) || !boundaryAfter(text, loc[1]) {
			continue
		}
		b.WriteString(text[last:loc[0]])
		b.WriteString(t.canonical)
		last = loc[1]
	}
	if last == 0 {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i == len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
