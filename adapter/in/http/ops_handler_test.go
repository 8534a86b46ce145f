package http

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/google/go-cmp/cmp"

	"ops_server/core/domain"
	"ops_server/core/port/in"
	"ops_server/core/port/out"
	"ops_server/core/service/classification"
	"ops_server/infra/middleware"
	"ops_server/pkg/apperr"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeRunbooks struct {
	generated *in.GenerateRunbookRequest
	listed    []string
	genErr    error
	refreshed bool
}

func (f *fakeRunbooks) Generate(ctx context.Context, req *in.GenerateRunbookRequest) (*in.RunbookResult, error) {
	f.generated = req
	if f.genErr != nil {
		return nil, f.genErr
	}
	return &in.RunbookResult{StaffID: req.StaffID, From: req.Date, To: "2024-06-09", Generated: 3}, nil
}

func (f *fakeRunbooks) Preview(ctx context.Context, req *in.GenerateRunbookRequest) (*in.RunbookResult, error) {
	return &in.RunbookResult{StaffID: req.StaffID, From: req.Date, DryRun: true}, nil
}

func (f *fakeRunbooks) ListTasks(ctx context.Context, staffID, from, to string) ([]domain.TaskInstance, error) {
	f.listed = []string{staffID, from, to}
	return []domain.TaskInstance{{TaskType: "a"}, {TaskType: "b"}}, nil
}

func (f *fakeRunbooks) InvalidateTemplateCache(ctx context.Context) error {
	f.refreshed = true
	return nil
}

type fakeProducer struct {
	jobs []*out.RunbookGenerateJob
	err  error
}

func (f *fakeProducer) PublishRunbookGenerate(ctx context.Context, job *out.RunbookGenerateJob) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

type fakeDrafts struct{}

func (fakeDrafts) Compose(ctx context.Context, req *in.ComposeDraftRequest) (*in.Draft, error) {
	if req.Topic == "" {
		return nil, apperr.MissingField("topic")
	}
	return &in.Draft{Text: "hi " + req.Topic, Domain: domain.DomainGeneral, AssetType: domain.AssetOther}, nil
}

// =============================================================================
// Helpers
// =============================================================================

func newTestApp() *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(),
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
	Error   struct {
		Code string `json:"code"`
	} `json:"error"`
}

func do(t *testing.T, app *fiber.App, method, target, body string) (int, envelope) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	var env envelope
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp.StatusCode, env
}

// =============================================================================
// Classification
// =============================================================================

func TestClassifyHandler(t *testing.T) {
	app := newTestApp()
	NewClassificationHandler(classification.NewKeywordEngine()).Register(app.Group("/api/v1"))

	tests := []struct {
		name     string
		body     string
		status   int
		domains  []domain.DomainKey
		wantCode string
	}{
		{"terms", `{"terms":["湖人","勇士"]}`, 200, []domain.DomainKey{domain.DomainNBA}, ""},
		{"text", `{"text":"今晚 湖人"}`, 200, []domain.DomainKey{domain.DomainNBA}, ""},
		{"nothing matches", `{"terms":["天氣"]}`, 200, []domain.DomainKey{domain.DomainGeneral}, ""},
		{"negative threshold", `{"terms":["nba"],"threshold":-1}`, 400, nil, apperr.CodeInvalidInput},
		{"bad json", `{"terms":`, 400, nil, apperr.CodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := do(t, app, "POST", "/api/v1/classify", tt.body)
			if status != tt.status {
				t.Fatalf("status = %d, want %d", status, tt.status)
			}
			if tt.wantCode != "" {
				if env.Error.Code != tt.wantCode {
					t.Errorf("code = %s, want %s", env.Error.Code, tt.wantCode)
				}
				return
			}
			var got classifyResponse
			if err := json.Unmarshal(env.Data, &got); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.domains, got.Domains); diff != "" {
				t.Errorf("domains mismatch (-want +got):\n%s", diff)
			}
			if got.MatrixVersion == "" {
				t.Error("matrix_version is empty")
			}
		})
	}
}

func TestExpandHandler(t *testing.T) {
	app := newTestApp()
	NewClassificationHandler(classification.NewKeywordEngine()).Register(app)

	status, env := do(t, app, "GET", "/classify/expand?term=湖人", "")
	if status != 200 {
		t.Fatalf("status = %d", status)
	}
	var got struct {
		Related []string `json:"related"`
	}
	_ = json.Unmarshal(env.Data, &got)
	if len(got.Related) == 0 {
		t.Error("expected related terms")
	}

	status, env = do(t, app, "GET", "/classify/expand", "")
	if status != 400 || env.Error.Code != apperr.CodeMissingField {
		t.Errorf("missing term = (%d, %s), want (400, MISSING_FIELD)", status, env.Error.Code)
	}
}

func TestDetectAssetHandler(t *testing.T) {
	app := newTestApp()
	NewClassificationHandler(classification.NewKeywordEngine()).Register(app)

	status, env := do(t, app, "POST", "/assets/detect", `{"content":"百家樂 教學"}`)
	if status != 200 {
		t.Fatalf("status = %d", status)
	}
	var got struct {
		AssetType domain.AssetType `json:"asset_type"`
		Domain    domain.DomainKey `json:"domain"`
	}
	_ = json.Unmarshal(env.Data, &got)
	if got.AssetType != domain.AssetCasinoBaccarat || got.Domain != domain.DomainBaccarat {
		t.Errorf("got %+v", got)
	}

	status, env = do(t, app, "POST", "/assets/detect", `{"content":"  "}`)
	if status != 400 || env.Error.Code != apperr.CodeMissingField {
		t.Errorf("blank content = (%d, %s)", status, env.Error.Code)
	}
}

// =============================================================================
// Runbooks
// =============================================================================

const staffID = "7f1c2a9e-3b4d-4c5e-8f60-718293a4b5c6"

func TestGenerateHandler(t *testing.T) {
	svc := &fakeRunbooks{}
	app := newTestApp()
	NewRunbookHandler(svc, nil).Register(app)

	status, env := do(t, app, "POST", "/runbooks/generate", `{"staff_id":"`+staffID+`","date":"2024-06-03"}`)
	if status != fiber.StatusCreated || !env.Success {
		t.Fatalf("status = %d, success = %v", status, env.Success)
	}
	if svc.generated == nil || svc.generated.StaffID != staffID {
		t.Errorf("service got %+v", svc.generated)
	}
}

func TestGenerateHandlerPropagatesErrors(t *testing.T) {
	app := newTestApp()
	NewRunbookHandler(&fakeRunbooks{genErr: apperr.Conflict("generation already running")}, nil).Register(app)

	status, env := do(t, app, "POST", "/runbooks/generate", `{"staff_id":"`+staffID+`","date":"2024-06-03"}`)
	if status != fiber.StatusConflict || env.Error.Code != apperr.CodeConflict {
		t.Errorf("got (%d, %s), want (409, CONFLICT)", status, env.Error.Code)
	}
}

func TestGenerateHandlerAsync(t *testing.T) {
	tests := []struct {
		name     string
		producer *fakeProducer
		body     string
		status   int
		code     string
		queued   int
	}{
		{"queued", &fakeProducer{}, `{"staff_id":"` + staffID + `","date":"2024-06-03","async":true}`, fiber.StatusAccepted, "", 1},
		{"invalid date", &fakeProducer{}, `{"staff_id":"` + staffID + `","date":"06/03","async":true}`, 400, apperr.CodeInvalidInput, 0},
		{"missing staff", &fakeProducer{}, `{"date":"2024-06-03","async":true}`, 400, apperr.CodeMissingField, 0},
		{"producer down", &fakeProducer{err: errors.New("dial tcp")}, `{"staff_id":"` + staffID + `","date":"2024-06-03","async":true}`, fiber.StatusBadGateway, apperr.CodeExternalError, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeRunbooks{}
			app := newTestApp()
			NewRunbookHandler(svc, tt.producer).Register(app)

			status, env := do(t, app, "POST", "/runbooks/generate", tt.body)
			if status != tt.status {
				t.Fatalf("status = %d, want %d", status, tt.status)
			}
			if tt.code != "" && env.Error.Code != tt.code {
				t.Errorf("code = %s, want %s", env.Error.Code, tt.code)
			}
			if len(tt.producer.jobs) != tt.queued {
				t.Errorf("queued = %d, want %d", len(tt.producer.jobs), tt.queued)
			}
			if svc.generated != nil {
				t.Error("async request must not generate inline")
			}
		})
	}
}

func TestGenerateHandlerAsyncWithoutProducer(t *testing.T) {
	app := newTestApp()
	NewRunbookHandler(&fakeRunbooks{}, nil).Register(app)

	status, env := do(t, app, "POST", "/runbooks/generate", `{"staff_id":"`+staffID+`","date":"2024-06-03","async":true}`)
	if status != 400 || env.Error.Code != apperr.CodeBadRequest {
		t.Errorf("got (%d, %s), want (400, BAD_REQUEST)", status, env.Error.Code)
	}
}

func TestPreviewAndListHandlers(t *testing.T) {
	svc := &fakeRunbooks{}
	app := newTestApp()
	NewRunbookHandler(svc, nil).Register(app)

	status, env := do(t, app, "POST", "/runbooks/preview", `{"staff_id":"`+staffID+`","date":"2024-06-03"}`)
	if status != 200 {
		t.Fatalf("preview status = %d", status)
	}
	var preview in.RunbookResult
	_ = json.Unmarshal(env.Data, &preview)
	if !preview.DryRun {
		t.Error("preview should be a dry run")
	}

	status, env = do(t, app, "GET", "/runbooks/"+staffID+"?from=2024-06-03", "")
	if status != 200 {
		t.Fatalf("list status = %d", status)
	}
	if diff := cmp.Diff([]string{staffID, "2024-06-03", ""}, svc.listed); diff != "" {
		t.Errorf("ListTasks args (-want +got):\n%s", diff)
	}
	if env.Meta["total"] != float64(2) || env.Meta["to"] != "2024-06-09" {
		t.Errorf("meta = %v", env.Meta)
	}
}

func TestRefreshTemplatesHandler(t *testing.T) {
	svc := &fakeRunbooks{}
	app := newTestApp()
	NewRunbookHandler(svc, nil).Register(app)

	status, _ := do(t, app, "POST", "/runbooks/templates/refresh", "")
	if status != fiber.StatusNoContent || !svc.refreshed {
		t.Errorf("status = %d, refreshed = %v", status, svc.refreshed)
	}
}

// =============================================================================
// Drafts and health
// =============================================================================

func TestDraftHandlerRateLimited(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app := newTestApp()
	limiter := middleware.NewRateLimiter(ctx, 1, time.Minute)
	NewDraftHandler(fakeDrafts{}).Register(app, limiter.Handler())

	status, env := do(t, app, "POST", "/drafts", `{"persona_name":"p","topic":"nba"}`)
	if status != 200 {
		t.Fatalf("status = %d", status)
	}
	var draft in.Draft
	_ = json.Unmarshal(env.Data, &draft)
	if draft.Text != "hi nba" {
		t.Errorf("text = %q", draft.Text)
	}

	status, _ = do(t, app, "POST", "/drafts", `{"persona_name":"p","topic":"nba"}`)
	if status != fiber.StatusTooManyRequests {
		t.Errorf("second status = %d, want 429", status)
	}
}

func TestHealthHandler(t *testing.T) {
	app := newTestApp()
	NewHealthHandler(nil, nil, "v1").Register(app)

	req := httptest.NewRequest("GET", "/ready", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if resp.StatusCode != 200 || body.Status != "ready" || body.Checks["database"] != "not configured" {
		t.Errorf("ready = %d %+v", resp.StatusCode, body)
	}
}
