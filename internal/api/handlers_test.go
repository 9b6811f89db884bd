package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"audioreport/internal/ai"
	"audioreport/internal/memory"
	"audioreport/internal/metrics"
	"audioreport/internal/model"
	"audioreport/internal/report"
	"audioreport/internal/storage"
	"audioreport/internal/stt"
)

type fakeTranscriber struct {
	rec       *model.TranscriptRecord
	err       error
	gotName   string
	gotClean  bool
	gotAudio  string
	callCount int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audio io.Reader, filename string, clean bool) (*model.TranscriptRecord, error) {
	f.callCount++
	b, _ := io.ReadAll(audio)
	f.gotAudio, f.gotName, f.gotClean = string(b), filename, clean
	return f.rec, f.err
}

type fakeReporter struct {
	rep      *model.Report
	corr     *report.Correction
	status   *ai.ServiceStatus
	err      error
	gotReq   model.ReportRequest
	gotStyle string
}

func (f *fakeReporter) Generate(_ context.Context, req model.ReportRequest) (*model.Report, error) {
	f.gotReq = req
	return f.rep, f.err
}

func (f *fakeReporter) Correct(_ context.Context, _ string, style string) (*report.Correction, error) {
	f.gotStyle = style
	return f.corr, f.err
}

func (f *fakeReporter) ServiceStatus(context.Context) (*ai.ServiceStatus, error) {
	return f.status, f.err
}

type fakeProbe struct{}

func (fakeProbe) Snapshot(context.Context) memory.Snapshot {
	return memory.Snapshot{Host: &memory.HostMemory{Total: 8 << 30, Available: 4 << 30}}
}
func (fakeProbe) Reclaim() {}

type fakeModels struct{ st stt.Status }

func (f fakeModels) Status() stt.Status { return f.st }

func newTestRouter(t *testing.T, tr Transcriber, rp Reporter) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	catalog, err := report.NewCatalog()
	if err != nil {
		t.Fatal(err)
	}
	m := metrics.NewMetrics(prometheus.NewRegistry())
	h := NewHandler(tr, rp, catalog, fakeProbe{}, fakeModels{st: stt.Status{State: stt.StateUnloaded, Backend: "whisper-cli"}}, m, 1<<20)
	r := gin.New()
	RegisterRoutes(r, h)
	return r
}

func multipartBody(t *testing.T, field, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := w.CreateFormFile(field, filename)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte(content))
	}
	for k, v := range fields {
		_ = w.WriteField(k, v)
	}
	_ = w.Close()
	return &buf, w.FormDataContentType()
}

func do(r http.Handler, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestTranscribe(t *testing.T) {
	tr := &fakeTranscriber{rec: &model.TranscriptRecord{RawText: "ehm ciao", CleanedText: "ciao", CleaningApplied: true}}
	r := newTestRouter(t, tr, &fakeReporter{})

	for _, path := range []string{"/transcribe", "/api/transcribe"} {
		body, ct := multipartBody(t, "file", "lezione.mp3", "ID3", nil)
		w := do(r, http.MethodPost, path, body, ct)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: code = %d, body %s", path, w.Code, w.Body.String())
		}
		got := decode(t, w)
		if got["transcript"] != "ciao" || got["original_transcript"] != "ehm ciao" || got["cleaned"] != true {
			t.Errorf("%s: body = %v", path, got)
		}
	}
	if !tr.gotClean || tr.gotName != "lezione.mp3" || tr.gotAudio != "ID3" {
		t.Errorf("transcriber got clean=%v name=%q audio=%q", tr.gotClean, tr.gotName, tr.gotAudio)
	}
}

func TestTranscribeCleaningFlag(t *testing.T) {
	tr := &fakeTranscriber{rec: &model.TranscriptRecord{}}
	r := newTestRouter(t, tr, &fakeReporter{})

	body, ct := multipartBody(t, "file", "a.wav", "RIFF", map[string]string{"clean_filler_words": "False"})
	if w := do(r, http.MethodPost, "/transcribe", body, ct); w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	if tr.gotClean {
		t.Error("clean_filler_words=False should disable cleaning")
	}
}

func TestTranscribeValidation(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		filename string
		content  string
		wantMsg  string
	}{
		{"no file", "", "", "", "No file part"},
		{"wrong field", "audio", "a.mp3", "x", "No file part"},
		{"bad extension", "file", "notes.txt", "x", "unsupported audio format"},
		{"too large", "file", "a.mp3", strings.Repeat("x", 2<<20), "file size exceeds 1MB limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &fakeTranscriber{}
			r := newTestRouter(t, tr, &fakeReporter{})
			body, ct := multipartBody(t, tt.field, tt.filename, tt.content, nil)
			w := do(r, http.MethodPost, "/transcribe", body, ct)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("code = %d", w.Code)
			}
			if msg, _ := decode(t, w)["error"].(string); !strings.Contains(msg, tt.wantMsg) {
				t.Errorf("error = %q, want %q", msg, tt.wantMsg)
			}
			if tr.callCount != 0 {
				t.Error("transcriber called for invalid upload")
			}
		})
	}
}

func TestTranscribeRestrictedFormats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	catalog, err := report.NewCatalog()
	if err != nil {
		t.Fatal(err)
	}
	tr := &fakeTranscriber{rec: &model.TranscriptRecord{}}
	h := NewHandler(tr, &fakeReporter{}, catalog, fakeProbe{}, fakeModels{}, metrics.NewMetrics(prometheus.NewRegistry()), 1<<20).
		WithFormats(storage.ExtensionsFor("cli"))
	r := gin.New()
	RegisterRoutes(r, h)

	body, ct := multipartBody(t, "file", "memo.m4a", "x", nil)
	if w := do(r, http.MethodPost, "/transcribe", body, ct); w.Code != http.StatusBadRequest {
		t.Errorf("m4a on cli backend: code = %d, want 400", w.Code)
	}
	body, ct = multipartBody(t, "file", "memo.flac", "x", nil)
	if w := do(r, http.MethodPost, "/transcribe", body, ct); w.Code != http.StatusOK {
		t.Errorf("flac on cli backend: code = %d, want 200", w.Code)
	}
	if tr.callCount != 1 {
		t.Errorf("transcriber calls = %d, want 1", tr.callCount)
	}
}

func TestTranscribeErrorStatus(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    int
		wantMsg string
	}{
		{
			"load exhausted",
			&stt.ModelLoadError{Requested: stt.TierMedium, Tried: stt.Ladder(stt.TierMedium), Err: errors.New("stat ./models/ggml-tiny.bin: no such file")},
			http.StatusServiceUnavailable,
			"speech model unavailable, try again later",
		},
		{"inference", &stt.TranscriptionError{Err: errors.New("whisper-cli: /opt/bin crashed")}, http.StatusInternalServerError, "transcription failed"},
		{"unreadable audio", model.NewValidationError("file", "unreadable audio: invalid wav file"), http.StatusBadRequest, "file: unreadable audio: invalid wav file"},
		{"unknown", errors.New("open /tmp/audio_x.mp3: disk full"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t, &fakeTranscriber{err: tt.err}, &fakeReporter{})
			body, ct := multipartBody(t, "file", "a.mp3", "x", nil)
			w := do(r, http.MethodPost, "/transcribe", body, ct)
			if w.Code != tt.want {
				t.Errorf("code = %d, want %d", w.Code, tt.want)
			}
			if got := decode(t, w)["error"]; got != tt.wantMsg {
				t.Errorf("error = %v, want %q", got, tt.wantMsg)
			}
			if tt.want >= 500 && strings.Contains(w.Body.String(), "/") {
				t.Errorf("server error leaks a path: %s", w.Body.String())
			}
		})
	}
}

func TestGenerateReport(t *testing.T) {
	rp := &fakeReporter{rep: &model.Report{Body: "# T\n", TemplateID: "lab_report", GenerationMethod: "local"}}
	r := newTestRouter(t, &fakeTranscriber{}, rp)

	w := do(r, http.MethodPost, "/api/generate-report",
		strings.NewReader(`{"transcript":"Testo.","templateId":"poem","metadata":{"author":"Anna"}}`), "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, body %s", w.Code, w.Body.String())
	}
	got := decode(t, w)
	if got["report"] != "# T\n" || got["template"] != "lab_report" || got["method"] != "local" {
		t.Errorf("body = %v", got)
	}
	if rp.gotReq.TemplateID != "poem" || rp.gotReq.Metadata.Author != "Anna" {
		t.Errorf("request = %+v", rp.gotReq)
	}
}

func TestGenerateReportErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"missing transcript", `{"templateId":"lab_report"}`, nil, http.StatusBadRequest},
		{"malformed json", `{"transcript":`, nil, http.StatusBadRequest},
		{"empty transcript", `{"transcript":""}`, model.NewValidationError("transcript", "No transcript provided"), http.StatusBadRequest},
		{"local defect", `{"transcript":"x"}`, &report.LocalGenerationError{Cause: "boom"}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t, &fakeTranscriber{}, &fakeReporter{err: tt.err})
			w := do(r, http.MethodPost, "/generate-report", strings.NewReader(tt.body), "application/json")
			if w.Code != tt.want {
				t.Errorf("code = %d, want %d", w.Code, tt.want)
			}
			if _, ok := decode(t, w)["error"]; !ok {
				t.Errorf("body = %s", w.Body.String())
			}
		})
	}
}

func TestCorrectText(t *testing.T) {
	rp := &fakeReporter{corr: &report.Correction{Text: "Testo.", Method: "local"}}
	r := newTestRouter(t, &fakeTranscriber{}, rp)

	w := do(r, http.MethodPost, "/correct-text", strings.NewReader(`{"text":"testo","style":"academic"}`), "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	got := decode(t, w)
	if got["corrected_text"] != "Testo." || got["method"] != "local" || rp.gotStyle != "academic" {
		t.Errorf("body = %v style=%q", got, rp.gotStyle)
	}

	if w := do(r, http.MethodPost, "/correct-text", strings.NewReader(`{}`), "application/json"); w.Code != http.StatusBadRequest {
		t.Errorf("missing text code = %d", w.Code)
	}
}

func TestCleanTranscript(t *testing.T) {
	r := newTestRouter(t, &fakeTranscriber{}, &fakeReporter{})

	w := do(r, http.MethodPost, "/api/clean-transcript", strings.NewReader(`{"text":"Allora ehm il risultato è chiaro."}`), "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	if got := decode(t, w)["cleaned_text"]; got != "il risultato è chiaro." {
		t.Errorf("cleaned_text = %v", got)
	}

	if w := do(r, http.MethodPost, "/clean-transcript", strings.NewReader(`{"txt":"x"}`), "application/json"); w.Code != http.StatusBadRequest {
		t.Errorf("missing text code = %d", w.Code)
	}
}

func TestTemplates(t *testing.T) {
	r := newTestRouter(t, &fakeTranscriber{}, &fakeReporter{})
	w := do(r, http.MethodGet, "/templates", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	got := decode(t, w)
	if len(got) != 4 {
		t.Errorf("templates = %d, want 4", len(got))
	}
	abstract, _ := got["scientific_abstract"].(map[string]any)
	if abstract["name"] != "Abstract Scientifico" {
		t.Errorf("scientific_abstract = %v", abstract)
	}
}

func TestMemoryStats(t *testing.T) {
	r := newTestRouter(t, &fakeTranscriber{}, &fakeReporter{})
	w := do(r, http.MethodGet, "/memory-stats", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	got := decode(t, w)
	mem, _ := got["memory"].(map[string]any)
	if mem["gpu"] != "unavailable" || mem["accelerator_available"] != false {
		t.Errorf("memory = %v", mem)
	}
	models, _ := got["models"].(map[string]any)
	if models["whisper_loaded"] != false || models["state"] != "unloaded" || models["cuda_available"] != false {
		t.Errorf("models = %v", models)
	}
}

func TestGenerationStatus(t *testing.T) {
	rp := &fakeReporter{status: &ai.ServiceStatus{Status: "online", Models: []any{}, GPUCheck: "Using GPU"}}
	r := newTestRouter(t, &fakeTranscriber{}, rp)

	for _, path := range []string{"/generation-service-status", "/api/ollama-status"} {
		w := do(r, http.MethodGet, path, nil, "")
		if w.Code != http.StatusOK || decode(t, w)["gpu_check"] != "Using GPU" {
			t.Errorf("%s: code = %d body %s", path, w.Code, w.Body.String())
		}
	}

	rp.err = fmt.Errorf("connection refused")
	w := do(r, http.MethodGet, "/ollama-status", nil, "")
	got := decode(t, w)
	if w.Code != http.StatusInternalServerError || got["status"] != "error" || got["message"] != "connection refused" {
		t.Errorf("code = %d body %v", w.Code, got)
	}
}

func TestHealthAndMiddleware(t *testing.T) {
	r := newTestRouter(t, &fakeTranscriber{}, &fakeReporter{})

	w := do(r, http.MethodGet, "/health", nil, "")
	if w.Code != http.StatusOK || decode(t, w)["status"] != "ok" {
		t.Errorf("health = %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}

	req := httptest.NewRequest(http.MethodOptions, "/generate-report", nil)
	req.Header.Set("X-Request-ID", "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent || w.Header().Get("X-Request-ID") != "abc" {
		t.Errorf("preflight = %d, id %q", w.Code, w.Header().Get("X-Request-ID"))
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{model.NewValidationError("x", "y"), 400},
		{fmt.Errorf("wrap: %w", &stt.ModelLoadError{}), 503},
		{&stt.TranscriptionError{Err: errors.New("x")}, 500},
		{&report.LocalGenerationError{}, 500},
		{context.Canceled, 499},
		{context.DeadlineExceeded, 504},
		{errors.New("other"), 500},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
