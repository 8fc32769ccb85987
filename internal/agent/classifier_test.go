package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectScheduling(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"Quero agendar uma consulta", true},
		{"Gostaria de MARCAR um horário", true},
		{"preciso remarcar", true},
		{"I need to schedule an appointment", true},
		{"qual o valor do serviço?", false},
		{"bom dia", false},
		{"", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DetectScheduling(tc.text), "text: %q", tc.text)
	}
}

func TestDetectTransfer(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"quero falar com atendente", true},
		{"Posso falar com uma pessoa?", true},
		{"me transfere para o atendimento humano", true},
		{"ATENDENTE por favor", true},
		{"I want to speak to a human", true},
		{"quanto custa a consulta", false},
		{"", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DetectTransfer(tc.text), "text: %q", tc.text)
	}
}

func TestExtractContextName(t *testing.T) {
	patch := ExtractContext("Oi, meu nome é João Silva e quero informações")
	assert.Equal(t, "João Silva", patch["customer_name"])

	patch = ExtractContext("me chamo Fernanda")
	assert.Equal(t, "Fernanda", patch["customer_name"])

	patch = ExtractContext("My name is Alex")
	assert.Equal(t, "Alex", patch["customer_name"])
}

func TestExtractContextInterest(t *testing.T) {
	patch := ExtractContext("Estou interessado em clareamento dental, quanto custa?")
	assert.Equal(t, "clareamento dental", patch["service_interest"])

	patch = ExtractContext("quero saber sobre limpeza de pele.")
	assert.Equal(t, "limpeza de pele", patch["service_interest"])
}

func TestExtractContextNothing(t *testing.T) {
	patch := ExtractContext("bom dia, tudo bem?")
	assert.Empty(t, patch)
}
