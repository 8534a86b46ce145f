package middleware

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

	"ops_server/pkg/apperr"
	"ops_server/pkg/metrics"
)

func newTestApp(handlers ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Use(RequestID(), Recover())
	for _, h := range handlers {
		app.Use(h)
	}
	return app
}

func decodeError(t *testing.T, body io.Reader) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"app error", apperr.MissingField("staff_id"), 400, apperr.CodeMissingField},
		{"wrapped app error", errors.Join(errors.New("ctx"), apperr.NoPersona("s1", nil)), 422, apperr.CodeNoPersona},
		{"fiber error", fiber.ErrNotFound, 404, apperr.CodeNotFound},
		{"plain error", errors.New("boom"), 500, apperr.CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp()
			app.Get("/x", func(c *fiber.Ctx) error { return tt.err })

			req := httptest.NewRequest("GET", "/x", nil)
			req.Header.Set("X-Request-ID", "req-1")
			resp, err := app.Test(req)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			body := decodeError(t, resp.Body)
			if body.Success || body.Error.Code != tt.wantCode || body.RequestID != "req-1" {
				t.Errorf("body = %+v", body)
			}
		})
	}
}

func TestRecover(t *testing.T) {
	app := newTestApp()
	app.Get("/panic", func(c *fiber.Ctx) error { panic("kaboom") })

	resp, err := app.Test(httptest.NewRequest("GET", "/panic", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 500 {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
	if body := decodeError(t, resp.Body); body.Error.Code != apperr.CodeInternalError {
		t.Errorf("code = %s", body.Error.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := NewRateLimiter(ctx, 2, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	app := newTestApp(rl.Handler())
	app.Get("/x", func(c *fiber.Ctx) error { return c.SendStatus(204) })

	for i, want := range []int{204, 204, 429} {
		resp, err := app.Test(httptest.NewRequest("GET", "/x", nil))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != want {
			t.Errorf("request %d status = %d, want %d", i, resp.StatusCode, want)
		}
	}

	now = now.Add(2 * time.Minute)
	resp, _ := app.Test(httptest.NewRequest("GET", "/x", nil))
	if resp.StatusCode != 204 {
		t.Errorf("after window status = %d, want 204", resp.StatusCode)
	}
}

func TestMaxBodySize(t *testing.T) {
	app := newTestApp(MaxBodySize(4))
	app.Post("/x", func(c *fiber.Ctx) error { return c.SendStatus(204) })

	req := httptest.NewRequest("POST", "/x", strings.NewReader("too long body"))
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 413 {
		t.Errorf("status = %d, want 413", resp.StatusCode)
	}
}

func TestLatencyRecordsRoute(t *testing.T) {
	reg := metrics.NewRegistry(10)
	app := newTestApp(Latency(reg))
	app.Get("/runbooks/:staff_id", func(c *fiber.Ctx) error { return c.SendStatus(204) })

	for i := 0; i < 3; i++ {
		if _, err := app.Test(httptest.NewRequest("GET", "/runbooks/abc", nil)); err != nil {
			t.Fatal(err)
		}
	}
	if got := reg.Snapshot()["GET /runbooks/:staff_id"].Count; got != 3 {
		t.Errorf("count = %d, want 3 (snapshot %v)", got, reg.Snapshot())
	}
}
