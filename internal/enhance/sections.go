package enhance

import "strings"

// procedureSections lists the candidate section labels per procedure type in
// priority order: the first label whose lowercase form (or its space-removed
// variant) appears in the text wins.
var procedureSections = map[string][]string{
	"cardiac": {
		"left ventricle",
		"right ventricle",
		"left atrium",
		"right atrium",
		"interventricular septum",
		"aortic valve",
		"mitral valve",
		"tricuspid valve",
		"pericardium",
	},
	"obstetric": {
		"fetal biometry",
		"fetal heart",
		"placenta",
		"amniotic fluid",
		"umbilical cord",
		"cervix",
	},
	"abdominal": {
		"liver",
		"gallbladder",
		"pancreas",
		"spleen",
		"right kidney",
		"left kidney",
		"aorta",
		"bladder",
	},
}

// sectionFallbacks are multilingual substring checks tried after the
// procedure-specific list fails. Labels always come from procedureSections so
// the classifier never invents a section.
var sectionFallbacks = []struct {
	needle string
	label  string
}{
	{"ventrículo izquierdo", "left ventricle"},
	{"ventrículo derecho", "right ventricle"},
	{"corazón fetal", "fetal heart"},
	{"líquido amniótico", "amniotic fluid"},
	{"cordón umbilical", "umbilical cord"},
	{"hígado", "liver"},
	{"vesícula biliar", "gallbladder"},
	{"páncreas", "pancreas"},
	{"riñón derecho", "right kidney"},
	{"riñón izquierdo", "left kidney"},
}

// ClassifySection returns the first configured section label for the procedure
// that the text mentions, or false when no section is detected. It is a
// best-effort single-label classifier.
func ClassifySection(text, procedureType string) (string, bool) {
	lower := strings.ToLower(text)

	for _, label := range procedureSections[procedureType] {
		l := strings.ToLower(label)
		if strings.Contains(lower, l) || strings.Contains(lower, strings.ReplaceAll(l, " ", "")) {
			return label, true
		}
	}

	for _, fb := range sectionFallbacks {
		if strings.Contains(lower, fb.needle) {
			return fb.label, true
		}
	}

	return "", false
}

// KnownProcedure reports whether a section table exists for the procedure.
func KnownProcedure(procedureType string) bool {
	_, ok := procedureSections[procedureType]
	return ok
}
