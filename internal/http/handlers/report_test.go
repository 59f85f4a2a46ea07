package handlers

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/medreport-backend/internal/advice"
	"github.com/yungbote/medreport-backend/internal/intake"
	"github.com/yungbote/medreport-backend/internal/pipeline"
	"github.com/yungbote/medreport-backend/internal/session"
	"github.com/yungbote/medreport-backend/internal/summarizer"
)

const testSummary = "Findings consistent with diabetes. Patient reports stress."

func newTestRouter(t *testing.T, style session.Style, maxBytes int64) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rs, err := advice.DefaultRules()
	if err != nil {
		t.Fatalf("DefaultRules: %v", err)
	}
	eng, err := advice.NewEngine(rs, advice.Options{Mode: advice.ModeKeyword})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	in := intake.New(nil, intake.Options{MaxUploadBytes: maxBytes, MaxPreviewWidth: 64})
	svc, err := pipeline.New(nil, in, summarizer.NewMock(testSummary), eng, session.NewMemoryStore(time.Minute), style)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}

	rh := NewReportHandler(svc, maxBytes)
	ph := NewPageHandler(svc, maxBytes)
	r := gin.New()
	r.SetHTMLTemplate(Templates())
	r.GET("/healthcheck", NewHealthHandler().HealthCheck)
	r.GET("/", ph.Index)
	r.POST("/upload", ph.Upload)
	r.GET("/reports/:id", ph.Report)
	r.POST("/reports/:id/action", ph.Action)
	r.POST("/reports/:id/ask", ph.Ask)
	r.POST("/api/reports", rh.Upload)
	r.GET("/api/reports/:id", rh.Get)
	r.POST("/api/reports/:id/actions/:action", rh.Action)
	r.POST("/api/reports/:id/ask", rh.Ask)
	return r
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 128, 96))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func multipartBody(t *testing.T, filename string, data []byte, declared string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if declared != "" {
		if err := mw.WriteField("type", declared); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return &body, mw.FormDataContentType()
}

func uploadReport(t *testing.T, r *gin.Engine) reportJSON {
	t.Helper()
	body, ct := multipartBody(t, "xray.png", pngBytes(t), "")
	req := httptest.NewRequest(http.MethodPost, "/api/reports", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var out reportJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestHealthCheck(t *testing.T) {
	r := newTestRouter(t, session.StyleBoth, 1<<20)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestUploadReturnsReport(t *testing.T) {
	r := newTestRouter(t, session.StyleBoth, 1<<20)
	out := uploadReport(t, r)

	if out.SessionID == "" {
		t.Fatalf("missing session id")
	}
	if out.Title != pipeline.Title || out.MediaType != "image" {
		t.Fatalf("title=%q media=%q", out.Title, out.MediaType)
	}
	if out.Summary != testSummary {
		t.Fatalf("summary=%q", out.Summary)
	}
	if out.Preview.Kind != "image" || !strings.HasPrefix(out.Preview.ThumbnailURL, "data:image/png;base64,") {
		t.Fatalf("preview=%+v", out.Preview)
	}
	if out.Preview.Width != 128 || out.Preview.Height != 96 {
		t.Fatalf("dims=%dx%d", out.Preview.Width, out.Preview.Height)
	}
	if out.Advice.Diet == "" || out.Advice.General == "" {
		t.Fatalf("expected diet and general advice, got %+v", out.Advice)
	}
	if out.Advice.Exercise != "" {
		t.Fatalf("unexpected exercise advice: %q", out.Advice.Exercise)
	}
	if len(out.Actions) != 4 || out.Style != string(session.StyleBoth) {
		t.Fatalf("actions=%d style=%q", len(out.Actions), out.Style)
	}
	if len(out.Warnings) != 0 {
		t.Fatalf("warnings=%v", out.Warnings)
	}
}

func TestUploadRejections(t *testing.T) {
	cases := []struct {
		name     string
		filename string
		data     []byte
		declared string
		maxBytes int64
		want     int
		code     string
	}{
		{name: "unsupported type", filename: "notes.txt", data: []byte("hello"), want: http.StatusUnsupportedMediaType, code: "unsupported_media_type"},
		{name: "declared gif", filename: "scan.gif", data: []byte("GIF89a"), declared: "image/gif", want: http.StatusUnsupportedMediaType, code: "unsupported_media_type"},
		{name: "malformed png", filename: "scan.png", data: []byte("not a png"), want: http.StatusUnprocessableEntity, code: "malformed_document"},
		{name: "empty", filename: "scan.png", data: nil, want: http.StatusBadRequest, code: "empty_document"},
		{name: "too large", filename: "scan.png", data: bytes.Repeat([]byte{1}, 2048), maxBytes: 1024, want: http.StatusRequestEntityTooLarge, code: "document_too_large"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			maxBytes := tc.maxBytes
			if maxBytes == 0 {
				maxBytes = 1 << 20
			}
			r := newTestRouter(t, session.StyleBoth, maxBytes)
			body, ct := multipartBody(t, tc.filename, tc.data, tc.declared)
			req := httptest.NewRequest(http.MethodPost, "/api/reports", body)
			req.Header.Set("Content-Type", ct)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tc.code) {
				t.Fatalf("expected code %q in %s", tc.code, rec.Body.String())
			}
		})
	}
}

func TestUploadWithoutFile(t *testing.T) {
	r := newTestRouter(t, session.StyleBoth, 1<<20)
	req := httptest.NewRequest(http.MethodPost, "/api/reports", strings.NewReader("x"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestGetActionAndAsk(t *testing.T) {
	r := newTestRouter(t, session.StyleBoth, 1<<20)
	rep := uploadReport(t, r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports/"+rep.SessionID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status=%d body=%s", rec.Code, rec.Body.String())
	}
	var got reportJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Summary != rep.Summary || got.Advice != rep.Advice {
		t.Fatalf("reloaded report differs: %+v", got)
	}
	if got.Preview.ThumbnailURL != "" {
		t.Fatalf("thumbnail should not survive reload")
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reports/"+rep.SessionID+"/actions/diet", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("action status=%d body=%s", rec.Code, rec.Body.String())
	}
	var action struct {
		Category string `json:"category"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &action); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if action.Category != "diet" || !strings.HasPrefix(action.Response, advice.Diet.Heading()) {
		t.Fatalf("action=%+v", action)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/reports/"+rep.SessionID+"/ask", strings.NewReader(`{"question":"What about my EXERCISE routine?"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("ask status=%d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), advice.Placeholder) {
		t.Fatalf("expected placeholder for exercise, got %s", rec.Body.String())
	}
}

func TestInteractionErrors(t *testing.T) {
	r := newTestRouter(t, session.StyleButtons, 1<<20)
	rep := uploadReport(t, r)

	cases := []struct {
		name string
		path string
		body string
		want int
	}{
		{name: "unknown session", path: "/api/reports/nope/actions/diet", want: http.StatusNotFound},
		{name: "unknown action", path: "/api/reports/" + rep.SessionID + "/actions/surgery", want: http.StatusBadRequest},
		{name: "free text disabled", path: "/api/reports/" + rep.SessionID + "/ask", body: `{"question":"diet?"}`, want: http.StatusConflict},
		{name: "malformed json", path: "/api/reports/" + rep.SessionID + "/ask", body: `{`, want: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tc.path, strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestPagesRenderReport(t *testing.T) {
	r := newTestRouter(t, session.StyleBoth, 1<<20)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), pipeline.Title) {
		t.Fatalf("index status=%d body=%s", rec.Code, rec.Body.String())
	}

	body, ct := multipartBody(t, "xray.png", pngBytes(t), "")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ct)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status=%d body=%s", rec.Code, rec.Body.String())
	}
	page := rec.Body.String()
	for _, want := range []string{"Summary", "Health Recommendations", "Chat with your Health Report", "data:image/png;base64,", "diabetes"} {
		if !strings.Contains(page, want) {
			t.Fatalf("page missing %q", want)
		}
	}

	// The API shares the store, so fetch the id through it.
	rep := uploadReport(t, r)
	form := url.Values{"question": {"any prescription for me?"}}
	req = httptest.NewRequest(http.MethodPost, "/reports/"+rep.SessionID+"/ask", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("ask status=%d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "possible prescription suggestions") {
		t.Fatalf("ask page missing prescription heading")
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing report status=%d", rec.Code)
	}
}

func TestPageEscapesSummaryHTML(t *testing.T) {
	rep := &pipeline.Report{
		SessionID: "s1",
		Title:     pipeline.Title,
		MediaType: intake.MediaPDF,
		Preview:   intake.Preview{Kind: intake.PreviewText, Text: "<b>page</b>"},
		Summary:   "**bold** <script>alert(1)</script>",
		Style:     session.StyleBoth,
	}
	var buf bytes.Buffer
	if err := Templates().ExecuteTemplate(&buf, "report.html", newReportPage(rep)); err != nil {
		t.Fatalf("execute: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "<script>alert(1)</script>") || strings.Contains(out, "<b>page</b>") {
		t.Fatalf("unescaped html in page:\n%s", out)
	}
	if !strings.Contains(out, "<strong>bold</strong>") {
		t.Fatalf("markdown not rendered:\n%s", out)
	}
}
