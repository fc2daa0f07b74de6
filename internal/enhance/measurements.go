package enhance

import (
	"regexp"
	"strconv"
)

// measurementSpec describes one extractable clinical value: a label pattern
// (canonical abbreviation or multilingual synonym) followed by a number and an
// optional unit token. The first match in the text wins; later mentions of the
// same measurement are ignored.
type measurementSpec struct {
	name    string
	label   string // display label for the composed summary line
	unit    string
	re      *regexp.Regexp
	integer bool
}

var measurementSpecs = []measurementSpec{
	{
		name:    "ejection_fraction",
		label:   "EF",
		unit:    "%",
		re:      regexp.MustCompile(`(?i)\b(?:EF|LVEF|ejection fraction|fracción de eyección)\s*:?\s*(\d{1,3})\s*%?`),
		integer: true,
	},
	{
		name:  "biparietal_diameter",
		label: "BPD",
		unit:  "cm",
		re:    regexp.MustCompile(`(?i)\b(?:BPD|DBP|biparietal diameter|diámetro biparietal)\s*:?\s*(\d+(?:\.\d+)?)\s*(?:cm|mm)?`),
	},
	{
		name:    "gestational_age",
		label:   "GA",
		unit:    "weeks",
		re:      regexp.MustCompile(`(?i)\b(?:GA|EG|gestational age|edad gestacional)\s*:?\s*(\d{1,2})\s*(?:weeks?|wks?|semanas?)?`),
		integer: true,
	},
	{
		name:    "heart_rate",
		label:   "HR",
		unit:    "bpm",
		re:      regexp.MustCompile(`(?i)\b(?:HR|FHR|FC|heart rate|fetal heart rate|frecuencia cardíaca|frecuencia cardiaca)\s*:?\s*(\d{1,3})\s*(?:bpm|lpm)?`),
		integer: true,
	},
}

// ExtractMeasurements pulls labeled numeric values out of standardized text.
// Measurements that do not appear are simply absent from the returned map.
func ExtractMeasurements(text string) map[string]float64 {
	out := make(map[string]float64)
	for _, spec := range measurementSpecs {
		m := spec.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if spec.integer {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			out[spec.name] = float64(n)
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		out[spec.name] = v
	}
	return out
}
