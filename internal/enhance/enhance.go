// Package enhance turns raw dictation transcripts into structured clinical
// data. Every stage is a pure function over package-level tables, so the
// pipeline is deterministic and safe for concurrent use.
package enhance

import (
	"fmt"
	"strconv"
	"strings"
)

// Defaults applied when a request omits the field.
const (
	DefaultProcedure = "obstetric"
	DefaultLanguage  = "en"
)

// Request is one transcript to enhance. Transcript must be non-empty; the
// caller validates before invoking the pipeline.
type Request struct {
	Transcript    string `json:"transcript"`
	ProcedureType string `json:"procedure_type"`
	Language      string `json:"language"`
}

// Result is the structured output of the pipeline.
type Result struct {
	Standardized    string             `json:"standardized"`
	Enhanced        string             `json:"enhanced_transcript"`
	Measurements    map[string]float64 `json:"measurements"`
	DetectedSection string             `json:"detected_section,omitempty"`
	Findings        Findings           `json:"findings"`
	Suggestions     []string           `json:"suggestions"`
}

// Enhance runs the full pipeline: standardize, extract, classify, detect,
// suggest, compose.
func Enhance(req Request) *Result {
	if req.ProcedureType == "" {
		req.ProcedureType = DefaultProcedure
	}
	if req.Language == "" {
		req.Language = DefaultLanguage
	}

	standardized := StandardizeTerms(req.Transcript)
	measurements := ExtractMeasurements(standardized)
	section, hasSection := ClassifySection(standardized, req.ProcedureType)
	findings := DetectFindings(standardized)

	res := &Result{
		Standardized: standardized,
		Measurements: measurements,
		Findings:     findings,
		Suggestions:  buildSuggestions(measurements, section, hasSection, findings),
	}
	if hasSection {
		res.DetectedSection = section
	}
	res.Enhanced = compose(standardized, measurements, section, hasSection, findings)
	return res
}

// buildSuggestions derives advisory strings from the structured outputs only,
// never from the raw text.
func buildSuggestions(measurements map[string]float64, section string, hasSection bool, findings Findings) []string {
	var out []string
	if len(measurements) > 0 {
		out = append(out, "Measurements were extracted automatically; verify values before signing.")
	}
	if hasSection {
		out = append(out, "Classified as: "+section)
	}
	if findings.Abnormal {
		out = append(out, "Abnormal findings detected; consider additional views or follow-up.")
	}
	return out
}

// compose assembles the enhanced transcript: optional section header, the
// standardized text, a measurements line, and a findings line.
func compose(standardized string, measurements map[string]float64, section string, hasSection bool, findings Findings) string {
	var b strings.Builder
	if hasSection {
		b.WriteString("[" + strings.ToUpper(section) + "] ")
	}
	b.WriteString(standardized)

	if len(measurements) > 0 {
		parts := make([]string, 0, len(measurements))
		for _, spec := range measurementSpecs {
			v, ok := measurements[spec.name]
			if !ok {
				continue
			}
			parts = append(parts, fmt.Sprintf("%s %s%s", spec.label, formatValue(v, spec), spacedUnit(spec)))
		}
		b.WriteString("\nMeasurements: " + strings.Join(parts, ", "))
	}

	if len(findings.Notes) > 0 {
		b.WriteString("\nFindings: " + strings.Join(findings.Notes, "; "))
	}
	return b.String()
}

func formatValue(v float64, spec measurementSpec) string {
	if spec.integer {
		return strconv.Itoa(int(v))
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// spacedUnit renders "%" flush against the value and word units after a space.
func spacedUnit(spec measurementSpec) string {
	if spec.unit == "%" {
		return "%"
	}
	return " " + spec.unit
}
