package constants

import "strings"

// Scenario selects how a run treats its input files.
type Scenario string

const (
	// ScenarioCompare is one application plus exactly one invoice.
	ScenarioCompare Scenario = "compare"
	// ScenarioBatch is one or more invoices without an application.
	ScenarioBatch Scenario = "batch"
)

// DocKind is the role of a document inside a multi-document prompt.
type DocKind string

const (
	DocApplication DocKind = "заявка"
	DocInvoice     DocKind = "счет"
	DocGeneric     DocKind = "документ"
)

var applicationMarkers = []string{"заявка", "заявление", "application"}

// LooksLikeApplication reports whether a file name marks an application document.
func LooksLikeApplication(filename string) bool {
	lower := strings.ToLower(filename)
	for _, m := range applicationMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// Genitive returns the genitive form used in prompt text ("номер счета").
func (k DocKind) Genitive() string {
	switch k {
	case DocApplication:
		return "заявки"
	case DocInvoice:
		return "счета"
	default:
		return "документа"
	}
}

// Title returns the kind with an upper-case first letter.
func (k DocKind) Title() string {
	r := []rune(string(k))
	if len(r) == 0 {
		return ""
	}
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
