package ai

import (
	"fmt"
	"strings"

	"audioreport/internal/model"
)

// GPUCheckPrompt asks the model where it is running.
const GPUCheckPrompt = "Respond with 'Using GPU' if you're running on GPU, otherwise respond with 'Using CPU'"

// BuildReportPrompt builds the complete prompt for report generation.
// meta must already carry its defaults.
func BuildReportPrompt(preamble string, meta model.Metadata, transcript string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(preamble))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Titolo: %s\n", meta.Title)
	fmt.Fprintf(&b, "Autore: %s\n", meta.Author)
	fmt.Fprintf(&b, "Istituzione: %s\n", meta.Institution)
	fmt.Fprintf(&b, "Data: %s\n\n", meta.Date)
	fmt.Fprintf(&b, "Trascrizione:\n%s\n\n", transcript)
	b.WriteString("Genera una relazione completa e ben strutturata in formato Markdown.")
	return b.String()
}

// BuildCorrectionPrompt builds the prompt for academic text correction.
func BuildCorrectionPrompt(text, style string) string {
	return fmt.Sprintf(`Sei un editor accademico esperto. Il tuo compito è correggere e migliorare il seguente testo,
mantenendo tutte le informazioni importanti ma migliorando:
1. La grammatica e l'ortografia
2. La punteggiatura
3. Lo stile formale accademico
4. La struttura delle frasi per renderle più chiare e leggibili
5. Evitare ripetizioni e migliorare la varietà lessicale

Stile richiesto: %s

Testo da correggere:
%s

Fornisci solo il testo corretto, senza commenti o spiegazioni aggiuntive.`, style, text)
}
