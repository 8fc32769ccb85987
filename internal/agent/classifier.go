package agent

import "strings"

// Keyword lists for the two intent classifiers. Matching is plain substring
// search over the lowercased text; no ML involved.
var schedulingKeywords = []string{
	"agendar",
	"agendamento",
	"marcar",
	"remarcar",
	"consulta",
	"horário",
	"horario",
	"schedule",
	"appointment",
	"booking",
}

var transferKeywords = []string{
	"falar com atendente",
	"falar com humano",
	"falar com uma pessoa",
	"atendente",
	"atendimento humano",
	"transferir",
	"human agent",
	"speak to a human",
	"talk to a person",
}

// DetectScheduling reports whether the text expresses scheduling intent
func DetectScheduling(text string) bool {
	return containsAny(text, schedulingKeywords)
}

// DetectTransfer reports whether the text asks for a human
func DetectTransfer(text string) bool {
	return containsAny(text, transferKeywords)
}

func containsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
