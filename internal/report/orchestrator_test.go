package report

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"audioreport/internal/ai"
	"audioreport/internal/metrics"
	"audioreport/internal/model"
)

type fakeGenerator struct {
	out     string
	err     error
	prompts []string
}

func (f *fakeGenerator) Name() string { return "fake" }

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.out, f.err
}

func (f *fakeGenerator) Status(context.Context) (*ai.ServiceStatus, error) {
	return &ai.ServiceStatus{Status: "online"}, nil
}

var fixedNow = func() time.Time { return time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC) }

func newOrchestrator(t *testing.T, gen ai.Generator) (*Orchestrator, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewMetrics(prometheus.NewRegistry())
	return NewOrchestrator(mustCatalog(t), gen, m).WithClock(fixedNow), m
}

func TestGenerateRemote(t *testing.T) {
	gen := &fakeGenerator{out: "## Introduzione\nTesto del modello."}
	o, m := newOrchestrator(t, gen)

	rep, err := o.Generate(context.Background(), model.ReportRequest{
		Transcript: "Il pendolo oscilla.",
		TemplateID: "lab_report",
		Metadata:   model.Metadata{Author: "Anna"},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if rep.GenerationMethod != model.MethodRemote || rep.TemplateID != "lab_report" {
		t.Errorf("report = %+v", rep)
	}
	if !strings.HasPrefix(rep.Body, "# Relazione di Laboratorio\n") || !strings.HasSuffix(rep.Body, "Testo del modello.") {
		t.Errorf("body = %q", rep.Body)
	}
	if !strings.Contains(gen.prompts[0], "Autore: Anna\n") || !strings.Contains(gen.prompts[0], "Data: 14/03/2025\n") {
		t.Errorf("prompt = %q", gen.prompts[0])
	}
	if got := testutil.ToFloat64(m.Generations.WithLabelValues("report", "remote")); got != 1 {
		t.Errorf("remote generations = %v", got)
	}
}

func TestGenerateFallsBackOnUnavailable(t *testing.T) {
	gen := &fakeGenerator{err: &ai.UnavailableError{Backend: "fake", StatusCode: 500, Err: errors.New("boom")}}
	o, m := newOrchestrator(t, gen)

	req := model.ReportRequest{Transcript: "Primo. Secondo. Terzo. Quarto.", TemplateID: "technical_report"}
	a, err := o.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, _ := o.Generate(context.Background(), req)

	if a.GenerationMethod != model.MethodLocal {
		t.Errorf("method = %q", a.GenerationMethod)
	}
	if a.Body != b.Body {
		t.Error("local output is not deterministic")
	}
	if !strings.Contains(a.Body, "miglioramento del 23%") {
		t.Errorf("body = %q", a.Body)
	}
	if strings.Count(a.Body, "## Sommario Esecutivo") != 1 {
		t.Error("Sommario Esecutivo heading should appear once")
	}
	if got := testutil.ToFloat64(m.GenerationFallbacks.WithLabelValues("report")); got != 2 {
		t.Errorf("fallbacks = %v, want 2", got)
	}
}

func TestGeneratePropagatesOtherErrors(t *testing.T) {
	o, _ := newOrchestrator(t, &fakeGenerator{err: errors.New("bug in client")})
	_, err := o.Generate(context.Background(), model.ReportRequest{Transcript: "Testo."})
	if err == nil {
		t.Fatal("expected error")
	}
	var ue *ai.UnavailableError
	if errors.As(err, &ue) {
		t.Error("non-availability error must not be reclassified")
	}
}

func TestGenerateCancelledContextDoesNotFallBack(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := &fakeGenerator{err: &ai.UnavailableError{Backend: "fake", Err: context.Canceled}}
	o, _ := newOrchestrator(t, gen)

	if _, err := o.Generate(ctx, model.ReportRequest{Transcript: "Testo."}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestGenerateEmptyTranscript(t *testing.T) {
	gen := &fakeGenerator{out: "x"}
	o, _ := newOrchestrator(t, gen)

	_, err := o.Generate(context.Background(), model.ReportRequest{Transcript: "  \n"})
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if len(gen.prompts) != 0 {
		t.Error("remote called for empty transcript")
	}
}

func TestGenerateUnknownTemplateUsesDefaultSkeleton(t *testing.T) {
	o, _ := newOrchestrator(t, nil)

	rep, err := o.Generate(context.Background(), model.ReportRequest{Transcript: "Una prova.", TemplateID: "sonnet"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if rep.TemplateID != "lab_report" || rep.GenerationMethod != model.MethodLocal {
		t.Errorf("report = %+v", rep)
	}
	for _, h := range []string{"## Introduzione", "## Materiali e Metodi", "## Risultati", "## Discussione", "## Conclusioni"} {
		if !strings.Contains(rep.Body, h) {
			t.Errorf("missing %q", h)
		}
	}
}

func TestGenerateMetadataDateOverride(t *testing.T) {
	o, _ := newOrchestrator(t, nil)
	rep, err := o.Generate(context.Background(), model.ReportRequest{
		Transcript: "Testo.",
		TemplateID: "scientific_abstract",
		Metadata:   model.Metadata{Date: "01/01/2024"},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(rep.Body, "01/01/2024") || strings.Contains(rep.Body, "14/03/2025") {
		t.Errorf("body = %q", rep.Body)
	}
	if !strings.Contains(rep.Body, "**Abstract:**") {
		t.Errorf("abstract header missing: %q", rep.Body)
	}
}

func TestRunLocalRecoversPanic(t *testing.T) {
	_, err := runLocal(func() string { panic("index out of range") })
	var le *LocalGenerationError
	if !errors.As(err, &le) {
		t.Fatalf("err = %v, want LocalGenerationError", err)
	}
}

func TestCorrect(t *testing.T) {
	t.Run("remote", func(t *testing.T) {
		gen := &fakeGenerator{out: "Testo corretto."}
		o, _ := newOrchestrator(t, gen)
		got, err := o.Correct(context.Background(), "testo", "")
		if err != nil {
			t.Fatal(err)
		}
		if got.Text != "Testo corretto." || got.Method != model.MethodRemote {
			t.Errorf("got %+v", got)
		}
		if !strings.Contains(gen.prompts[0], "Stile richiesto: academic") {
			t.Error("default style not applied")
		}
	})
	t.Run("local", func(t *testing.T) {
		o, _ := newOrchestrator(t, &fakeGenerator{err: &ai.UnavailableError{Backend: "fake", Err: errors.New("down")}})
		got, err := o.Correct(context.Background(), "però funziona", "academic")
		if err != nil {
			t.Fatal(err)
		}
		if got.Text != "Tuttavia funziona." || got.Method != model.MethodLocal {
			t.Errorf("got %+v", got)
		}
	})
	t.Run("empty", func(t *testing.T) {
		o, _ := newOrchestrator(t, nil)
		var ve *model.ValidationError
		if _, err := o.Correct(context.Background(), "", "academic"); !errors.As(err, &ve) {
			t.Errorf("err = %v", err)
		}
	})
}

// The full pipeline from a raw Italian transcript to a local lab report
// when the generation service answers 500.
func TestCleanedTranscriptToLocalReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model crashed"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	raw := "Allora ehm il risultato è chiaro. Quindi abbiamo concluso l'esperimento."
	cleaned := ai.CleanFillers(raw)
	for _, filler := range []string{"allora", "ehm", "quindi"} {
		if strings.Contains(strings.ToLower(cleaned), filler) {
			t.Errorf("cleaned text still contains %q: %q", filler, cleaned)
		}
	}
	if strings.Contains(cleaned, "  ") {
		t.Errorf("double space in %q", cleaned)
	}

	o, m := newOrchestrator(t, ai.NewOllamaClient(srv.URL, "mistral:latest", 1))
	rep, err := o.Generate(context.Background(), model.ReportRequest{Transcript: cleaned, TemplateID: "lab_report"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if rep.GenerationMethod != model.MethodLocal {
		t.Fatalf("method = %q, want local", rep.GenerationMethod)
	}

	headers := []string{"## Introduzione", "## Materiali e Metodi", "## Risultati", "## Discussione", "## Conclusioni"}
	last := -1
	for _, h := range headers {
		i := strings.Index(rep.Body, h)
		if i < 0 || i < last {
			t.Errorf("header %q missing or out of order", h)
		}
		last = i
	}

	firstSentence := SplitSentences(cleaned)[0]
	intro := rep.Body[strings.Index(rep.Body, "## Introduzione"):strings.Index(rep.Body, "## Materiali e Metodi")]
	if !strings.Contains(intro, firstSentence) {
		t.Errorf("introduction %q does not contain %q", intro, firstSentence)
	}
	if got := testutil.ToFloat64(m.GenerationFallbacks.WithLabelValues("report")); got != 1 {
		t.Errorf("fallbacks = %v", got)
	}
}
