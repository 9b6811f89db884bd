package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"audioreport/internal/ai"
	"audioreport/internal/logging"
	"audioreport/internal/metrics"
	"audioreport/internal/model"
)

// DateLayout is dd/mm/yyyy.
const DateLayout = "02/01/2006"

// DefaultStyle is used by Correct when no style is given.
const DefaultStyle = "academic"

// LocalGenerationError is a defect in the local generator. It is never
// expected for valid input.
type LocalGenerationError struct {
	Cause any
}

func (e *LocalGenerationError) Error() string {
	return fmt.Sprintf("local generation failed: %v", e.Cause)
}

// Correction is the result of text correction.
type Correction struct {
	Text   string `json:"corrected_text"`
	Method string `json:"method"`
}

// Orchestrator runs the remote-then-local pipeline for reports and text
// correction.
type Orchestrator struct {
	catalog *Catalog
	gen     ai.Generator
	metrics *metrics.Metrics
	now     func() time.Time
	log     zerolog.Logger
}

// NewOrchestrator creates an orchestrator. gen may be nil, in which case
// every request is served locally.
func NewOrchestrator(catalog *Catalog, gen ai.Generator, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		catalog: catalog,
		gen:     gen,
		metrics: m,
		now:     time.Now,
		log:     logging.Component("report"),
	}
}

// WithClock replaces the clock used for the default report date.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Catalog returns the template catalog.
func (o *Orchestrator) Catalog() *Catalog { return o.catalog }

// Generate produces a report for req. The remote generator is tried first;
// only an *ai.UnavailableError switches to the local generator.
func (o *Orchestrator) Generate(ctx context.Context, req model.ReportRequest) (*model.Report, error) {
	if strings.TrimSpace(req.Transcript) == "" {
		return nil, model.NewValidationError("transcript", "No transcript provided")
	}

	tpl := o.catalog.Resolve(req.TemplateID)
	if req.TemplateID != "" && tpl.ID != req.TemplateID {
		o.log.Warn().Str("requested", req.TemplateID).Str("using", tpl.ID).Msg("unknown template")
	}
	meta := req.Metadata.WithDefaults(o.now().Format(DateLayout))
	prompt := ai.BuildReportPrompt(tpl.Prompt, meta, req.Transcript)

	body, method, err := o.run(ctx, "report", prompt, func() string {
		return tpl.RenderFallback(req.Transcript)
	})
	if err != nil {
		return nil, err
	}

	header, err := tpl.RenderHeader(meta)
	if err != nil {
		return nil, err
	}

	o.log.Info().Str("template", tpl.ID).Str("method", method).Int("chars", len(body)).Msg("report generated")
	return &model.Report{
		Body:             header + body,
		TemplateID:       tpl.ID,
		GenerationMethod: method,
	}, nil
}

// Correct improves text with the remote model, or with the rule-based
// corrector when the model is unavailable.
func (o *Orchestrator) Correct(ctx context.Context, text, style string) (*Correction, error) {
	if strings.TrimSpace(text) == "" {
		return nil, model.NewValidationError("text", "No text provided")
	}
	if style == "" {
		style = DefaultStyle
	}

	out, method, err := o.run(ctx, "correction", ai.BuildCorrectionPrompt(text, style), func() string {
		return ai.CorrectAcademic(text, style)
	})
	if err != nil {
		return nil, err
	}
	return &Correction{Text: out, Method: method}, nil
}

// ServiceStatus reports on the remote generator.
func (o *Orchestrator) ServiceStatus(ctx context.Context) (*ai.ServiceStatus, error) {
	if o.gen == nil {
		return nil, errors.New("no generation service configured")
	}
	return o.gen.Status(ctx)
}

func (o *Orchestrator) run(ctx context.Context, kind, prompt string, local func() string) (string, string, error) {
	start := time.Now()

	if o.gen != nil {
		out, err := o.gen.Generate(ctx, prompt)
		if err == nil {
			o.metrics.RecordGeneration(kind, model.MethodRemote, time.Since(start).Seconds())
			return out, model.MethodRemote, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", "", ctxErr
		}
		var unavailable *ai.UnavailableError
		if !errors.As(err, &unavailable) {
			return "", "", fmt.Errorf("%s generation: %w", kind, err)
		}
		o.log.Warn().Err(err).Str("kind", kind).Str("backend", o.gen.Name()).Msg("remote generation unavailable, using local generator")
		o.metrics.RecordFallback(kind)
	}

	out, err := runLocal(local)
	if err != nil {
		o.log.Error().Err(err).Str("kind", kind).Msg("local generation failed")
		return "", "", err
	}
	o.metrics.RecordGeneration(kind, model.MethodLocal, time.Since(start).Seconds())
	return out, model.MethodLocal, nil
}

func runLocal(fn func() string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &LocalGenerationError{Cause: r}
		}
	}()
	return fn(), nil
}
