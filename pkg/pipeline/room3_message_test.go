package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildRoom3RequestMessage(t *testing.T) {
	got := buildRoom3RequestMessage("case-1", "12345", room2Patient{Name: "Fulano", Age: 42})

	assert.Contains(t, got, "case-1")
	assert.Contains(t, got, "registro: 12345")
	assert.Contains(t, got, "paciente: Fulano")
	assert.Contains(t, got, "idade: 42")
	assert.Contains(t, got, "caso esperado")
	assert.Contains(t, got, "copie a proxima mensagem")
}

func TestBuildRoom3TemplateMessage(t *testing.T) {
	got := buildRoom3TemplateMessage("case-1")

	assert.Contains(t, got, "status: confirmado")
	assert.Contains(t, got, "data_hora: DD-MM-YYYY HH:MM BRT")
	assert.Contains(t, got, "caso: case-1")
}
