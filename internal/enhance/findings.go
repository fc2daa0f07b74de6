package enhance

import "regexp"

// Findings carries the three independent finding flags plus human-readable
// notes in a fixed order: normal, abnormal, no-evidence.
type Findings struct {
	Normal     bool     `json:"normal"`
	Abnormal   bool     `json:"abnormal"`
	NoEvidence bool     `json:"no_evidence"`
	Notes      []string `json:"notes"`
}

var (
	normalPattern = regexp.MustCompile(
		`(?i)\bnormal\b|within normal limits|unremarkable|sin alteraciones|dentro de (?:los )?límites normales`)
	abnormalPattern = regexp.MustCompile(
		`(?i)\babnormal|\banormal|\bdilated\b|\bdilatado|\bthickened\b|\beffusion\b|\bstenosis\b|\bregurgitation\b|\bhypertrophy\b|\bengrosado`)
	noEvidencePattern = regexp.MustCompile(
		`(?i)no evidence of|sin evidencia de|no se observa`)
)

const (
	normalNote     = "Normal findings documented."
	abnormalNote   = "Abnormal findings present."
	noEvidenceNote = "Explicitly ruled-out findings documented."
)

// DetectFindings runs the three checks independently; a sentence like
// "no evidence of effusion, otherwise normal" sets all three flags.
func DetectFindings(text string) Findings {
	f := Findings{
		Normal:     normalPattern.MatchString(text),
		Abnormal:   abnormalPattern.MatchString(text),
		NoEvidence: noEvidencePattern.MatchString(text),
		Notes:      []string{},
	}
	if f.Normal {
		f.Notes = append(f.Notes, normalNote)
	}
	if f.Abnormal {
		f.Notes = append(f.Notes, abnormalNote)
	}
	if f.NoEvidence {
		f.Notes = append(f.Notes, noEvidenceNote)
	}
	return f
}
