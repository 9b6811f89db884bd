package ai

import (
	"strings"
	"testing"

	"audioreport/internal/model"
)

func TestBuildReportPrompt(t *testing.T) {
	meta := model.Metadata{}.WithDefaults("03/04/2025")
	got := BuildReportPrompt("Tu sei un assistente.  ", meta, "Il pendolo oscilla.")

	want := "Tu sei un assistente.\n\n" +
		"Titolo: Relazione di Laboratorio\n" +
		"Autore: Studente\n" +
		"Istituzione: Università\n" +
		"Data: 03/04/2025\n\n" +
		"Trascrizione:\nIl pendolo oscilla.\n\n" +
		"Genera una relazione completa e ben strutturata in formato Markdown."
	if got != want {
		t.Errorf("prompt =\n%s\nwant\n%s", got, want)
	}
}

func TestBuildCorrectionPrompt(t *testing.T) {
	got := BuildCorrectionPrompt("testo da sistemare", "academic")
	for _, want := range []string{"Stile richiesto: academic", "Testo da correggere:\ntesto da sistemare", "Fornisci solo il testo corretto"} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
