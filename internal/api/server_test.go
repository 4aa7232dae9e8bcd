package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docblocks/internal/blocks"
	"github.com/dgallion1/docblocks/internal/config"
	"github.com/dgallion1/docblocks/internal/drive"
	"github.com/dgallion1/docblocks/internal/ledger"
	"github.com/dgallion1/docblocks/internal/pipeline"
	"github.com/dgallion1/docblocks/internal/restructure"
)

const (
	testKey   = "secret"
	paperText = "Title\n\n**Abstract**\nWe study things.\n\n## Methods\n* first step\n"
)

type fakeDrive struct{ text string }

func (f fakeDrive) Download(context.Context, string) (*drive.File, error) {
	return &drive.File{ID: "abc", Name: "paper.txt", Data: []byte(f.text)}, nil
}

func (f fakeDrive) Fetch(context.Context, string) (*drive.File, error) {
	return &drive.File{Name: "paper.txt", Data: []byte(f.text)}, nil
}

type fakeAppender struct {
	mu     sync.Mutex
	pages  []string
	blocks int
	fail   bool
}

func (a *fakeAppender) AppendBlocks(_ context.Context, pageID string, bs []blocks.Block) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail {
		return errors.New("upstream 502")
	}
	a.pages = append(a.pages, pageID)
	a.blocks += len(bs)
	return nil
}

type fixture struct {
	srv    *Server
	app    *fakeAppender
	ledger *ledger.Ledger
}

func testConfig() config.Config {
	return config.Config{
		ServiceAPIKey:    testKey,
		StartMarker:      "Abstract",
		BoldHeadingLevel: 2,
		MaxDownloadBytes: 1 << 20,
		WorkerCount:      1,
		MaxQueueSize:     10,
		JobTTL:           time.Hour,
	}
}

func newFixture(t *testing.T, cfg config.Config, withLedger bool) *fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{app: &fakeAppender{}}
	deps := pipeline.Deps{Drive: fakeDrive{text: paperText}, Notion: f.app}
	if withLedger {
		l, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
		require.NoError(t, err)
		t.Cleanup(func() { l.Close() })
		deps.Ledger = l
		f.ledger = l
	}
	orch := pipeline.NewOrchestrator(cfg, deps, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)
	f.srv = NewServer(orch, nil, nil, log, cfg)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("access-token", testKey)
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func webhookBody(pageID, url string) map[string]any {
	return map[string]any{
		"data": map[string]any{
			"id": pageID,
			"properties": map[string]any{
				"File": map[string]any{
					"files": []any{
						map[string]any{"name": "paper.pdf", "external": map[string]any{"url": url}},
					},
				},
			},
		},
	}
}

func TestPublicEndpoints(t *testing.T) {
	f := newFixture(t, testConfig(), false)

	for _, path := range []string{"/", "/health"} {
		rec := httptest.NewRecorder()
		f.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	}
}

func TestAuth(t *testing.T) {
	f := newFixture(t, testConfig(), false)

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong access token", "access-token", "nope", http.StatusForbidden},
		{"wrong bearer", "Authorization", "Bearer nope", http.StatusForbidden},
		{"access token", "access-token", testKey, http.StatusNotFound},
		{"bearer", "Authorization", "Bearer " + testKey, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/jobs/unknown/status", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			f.srv.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestWebhook_DeliversAndReportsStatus(t *testing.T) {
	f := newFixture(t, testConfig(), true)

	rec := f.do(t, http.MethodPost, "/notion-webhook", webhookBody("page-1", "https://drive.google.com/file/d/abc123/view?usp=sharing;"))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	body := decode(t, rec)
	jobID, _ := body["job_id"].(string)
	require.NotEmpty(t, jobID)
	assert.Equal(t, "/api/jobs/"+jobID+"/status", body["poll_url"])

	var status map[string]any
	require.Eventually(t, func() bool {
		rec := f.do(t, http.MethodGet, "/api/jobs/"+jobID+"/status", nil)
		status = decode(t, rec)
		return status["status"] == string(pipeline.StatusCompleted)
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, "page-1", status["page_id"])
	assert.Equal(t, "https://drive.google.com/file/d/abc123/view?usp=sharing", status["source_url"])
	progress := status["progress"].(map[string]any)
	assert.EqualValues(t, 4, progress["blocks_delivered"])
	assert.Equal(t, []string{"page-1"}, f.app.pages)

	rec = f.do(t, http.MethodGet, "/api/deliveries?page_id=page-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	deliveries := decode(t, rec)["deliveries"].([]any)
	require.Len(t, deliveries, 1)
	assert.Equal(t, jobID, deliveries[0].(map[string]any)["job_id"])
}

func uploadedFileBody(pageID, url string) map[string]any {
	return map[string]any{
		"data": map[string]any{
			"id": pageID,
			"properties": map[string]any{
				"File": map[string]any{
					"files": []any{
						map[string]any{"name": "paper.pdf", "type": "file", "file": map[string]any{"url": url}},
					},
				},
			},
		},
	}
}

func TestWebhook_UploadedFile(t *testing.T) {
	f := newFixture(t, testConfig(), false)
	signed := "https://prod-files-secure.s3.us-west-2.amazonaws.com/ws/abc/paper.pdf?X-Amz-Signature=xyz"

	rec := f.do(t, http.MethodPost, "/notion-webhook", uploadedFileBody("page-1", signed))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	jobID := decode(t, rec)["job_id"].(string)

	var status map[string]any
	require.Eventually(t, func() bool {
		status = decode(t, f.do(t, http.MethodGet, "/api/jobs/"+jobID+"/status", nil))
		return status["status"] == string(pipeline.StatusCompleted)
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, signed, status["source_url"])
	assert.Equal(t, true, status["direct"])
}

func TestWebhook_UploadedDriveLink(t *testing.T) {
	f := newFixture(t, testConfig(), false)
	rec := f.do(t, http.MethodPost, "/notion-webhook", uploadedFileBody("page-1", "https://drive.google.com/uc?id=xyz"))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	jobID := decode(t, rec)["job_id"].(string)

	status := decode(t, f.do(t, http.MethodGet, "/api/jobs/"+jobID+"/status", nil))
	assert.Equal(t, false, status["direct"])
}

func TestWebhook_BadRequests(t *testing.T) {
	f := newFixture(t, testConfig(), false)

	tests := []struct {
		name string
		body any
		want string
	}{
		{"no page id", webhookBody("", "https://drive.google.com/uc?id=x"), "no page id"},
		{"no files", map[string]any{"data": map[string]any{"id": "p"}}, "no files"},
		{"empty url", webhookBody("p", ";"), "no valid url"},
		{"not a drive url", webhookBody("p", "https://example.com/paper.pdf"), "invalid file url"},
		{"http url without a file id", webhookBody("p", "http://example.com/file/x"), "invalid file url"},
		{"uploaded file over http", uploadedFileBody("p", "http://bucket.example.com/paper.pdf"), "invalid file url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/notion-webhook", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decode(t, rec)["error"], tt.want)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/notion-webhook", strings.NewReader("{not json"))
	req.Header.Set("access-token", testKey)
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_QueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.MaxQueueSize = 1
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	// Not started, so nothing drains the queue.
	orch := pipeline.NewOrchestrator(cfg, pipeline.Deps{}, log)
	srv := NewServer(orch, nil, nil, log, cfg)
	f := &fixture{srv: srv}

	body := webhookBody("p", "https://drive.google.com/uc?id=x")
	assert.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/notion-webhook", body).Code)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodPost, "/notion-webhook", body).Code)
}

func TestJobStatus_NotFound(t *testing.T) {
	f := newFixture(t, testConfig(), false)
	rec := f.do(t, http.MethodGet, "/api/jobs/missing/status", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConvert_DryRun(t *testing.T) {
	f := newFixture(t, testConfig(), false)

	rec := f.do(t, http.MethodPost, "/api/convert", map[string]any{"text": paperText, "dry_run": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.EqualValues(t, 4, body["total_blocks"])
	first := body["blocks"].([]any)[0].(map[string]any)
	assert.Equal(t, "heading_2", first["type"])
	assert.Zero(t, f.app.blocks, "dry run must not publish")
}

func TestConvert_Publishes(t *testing.T) {
	f := newFixture(t, testConfig(), false)

	rec := f.do(t, http.MethodPost, "/api/convert", map[string]any{"text": paperText, "page_id": "page-9"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode(t, rec)["result"].(map[string]any)
	assert.Equal(t, true, result["success"])
	assert.EqualValues(t, 4, result["blocks_delivered"])
	assert.Equal(t, []string{"page-9"}, f.app.pages)
}

func TestConvert_Errors(t *testing.T) {
	f := newFixture(t, testConfig(), false)

	rec := f.do(t, http.MethodPost, "/api/convert", map[string]any{"text": "no marker", "page_id": "p"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Zero(t, f.app.blocks)

	rec = f.do(t, http.MethodPost, "/api/convert", map[string]any{"text": paperText})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "page_id required")

	rec = f.do(t, http.MethodPost, "/api/convert", map[string]any{"text": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/convert", map[string]any{
		"text": "Intro\n**Summary**\nBody.", "start_marker": "Summary", "dry_run": true,
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestConvert_DeliveryFailure(t *testing.T) {
	f := newFixture(t, testConfig(), false)
	f.app.fail = true

	rec := f.do(t, http.MethodPost, "/api/convert", map[string]any{"text": paperText, "page_id": "p"})
	require.Equal(t, http.StatusBadGateway, rec.Code)
	body := decode(t, rec)
	assert.Contains(t, body["error"], "batch 0")
	result := body["result"].(map[string]any)
	assert.Equal(t, false, result["success"])
	assert.EqualValues(t, 4, result["total_blocks"])
	assert.EqualValues(t, 0, result["blocks_delivered"])
}

func TestDeliveries(t *testing.T) {
	f := newFixture(t, testConfig(), true)
	require.NoError(t, f.ledger.Record(ledger.Entry{PageID: "page-1", ContentHash: "h1", JobID: "j1", Blocks: 3}))
	require.NoError(t, f.ledger.Record(ledger.Entry{PageID: "page-2", ContentHash: "h2", JobID: "j2", Blocks: 5}))

	rec := f.do(t, http.MethodGet, "/api/deliveries", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["deliveries"], 2)

	rec = f.do(t, http.MethodDelete, "/api/deliveries/page-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["forgotten"])

	rec = f.do(t, http.MethodGet, "/api/deliveries?page_id=page-1", nil)
	assert.Empty(t, decode(t, rec)["deliveries"])
}

func TestDeliveries_LedgerDisabled(t *testing.T) {
	f := newFixture(t, testConfig(), false)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodGet, "/api/deliveries", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodDelete, "/api/deliveries/p", nil).Code)
}

type namedRestructurer struct{}

func (namedRestructurer) Restructure(_ context.Context, raw string) (string, error) { return raw, nil }
func (namedRestructurer) Model() string                                             { return "test-model" }

func TestLLMStats(t *testing.T) {
	f := newFixture(t, testConfig(), false)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodGet, "/api/stats/llm", nil).Code)

	stats := restructure.NewLLMStats(time.Hour)
	llm := restructure.Timed(namedRestructurer{}, stats)
	_, err := llm.Restructure(context.Background(), "x")
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.srv = NewServer(pipeline.NewOrchestrator(testConfig(), pipeline.Deps{}, log), llm, stats, log, testConfig())
	rec := f.do(t, http.MethodGet, "/api/stats/llm", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "test-model", body["model"])
	assert.EqualValues(t, 1, body["stats"].(map[string]any)["count"])
}
