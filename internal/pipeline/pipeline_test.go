package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/medreport-backend/internal/advice"
	"github.com/yungbote/medreport-backend/internal/intake"
	"github.com/yungbote/medreport-backend/internal/platform/apierr"
	"github.com/yungbote/medreport-backend/internal/session"
	"github.com/yungbote/medreport-backend/internal/summarizer"
)

type fakeSummarizer struct {
	res   summarizer.Result
	calls int
	last  summarizer.Payload
}

func (f *fakeSummarizer) Summarize(_ context.Context, p summarizer.Payload) summarizer.Result {
	f.calls++
	f.last = p
	return f.res
}

func newService(t *testing.T, sum summarizer.Summarizer, style session.Style) (*Service, *session.MemoryStore) {
	t.Helper()
	rs, err := advice.DefaultRules()
	if err != nil {
		t.Fatalf("DefaultRules: %v", err)
	}
	eng, err := advice.NewEngine(rs, advice.Options{Mode: advice.ModeKeyword})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	store := session.NewMemoryStore(time.Minute)
	svc, err := New(nil, intake.New(nil, intake.Options{MaxUploadBytes: 1 << 20}), sum, eng, store, style)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc, store
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestProcessPDFWithoutTextStillYieldsReport(t *testing.T) {
	sum := &fakeSummarizer{res: summarizer.Result{Summary: summarizer.FallbackError, Warning: "API call failed: request timed out", Attempts: 1}}
	svc, store := newService(t, sum, session.StyleBoth)

	raw := []byte("%PDF-1.4\n%%EOF\n")
	rep, err := svc.Process(context.Background(), Upload{Filename: "scan.pdf", DeclaredType: "application/pdf", Bytes: raw})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if rep.Summary != summarizer.FallbackError {
		t.Fatalf("summary=%q", rep.Summary)
	}
	if !rep.Advice.Empty() {
		t.Fatalf("advice=%+v", rep.Advice)
	}
	if len(rep.Warnings) != 2 || !strings.HasPrefix(rep.Warnings[1], "API call failed") {
		t.Fatalf("warnings=%v", rep.Warnings)
	}
	if rep.Preview.Kind != intake.PreviewText || rep.Preview.Text != "" {
		t.Fatalf("preview=%+v", rep.Preview)
	}
	if !bytes.Equal(sum.last.Bytes, raw) || sum.last.ContentType != "application/pdf" {
		t.Fatalf("summarizer got %q %q", sum.last.ContentType, sum.last.Bytes)
	}
	if store.Len() != 1 {
		t.Fatalf("sessions=%d", store.Len())
	}
}

func TestProcessImageDerivesAdvice(t *testing.T) {
	sum := &fakeSummarizer{res: summarizer.Result{Summary: "patient shows signs of inflammation and high blood sugar", Attempts: 1}}
	svc, _ := newService(t, sum, session.StyleBoth)

	rep, err := svc.Process(context.Background(), Upload{Filename: "xray.png", DeclaredType: "png", Bytes: tinyPNG(t)})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if rep.Title != Title || rep.MediaType != intake.MediaImage {
		t.Fatalf("report=%+v", rep)
	}
	if rep.Advice.Prescription == "" || rep.Advice.Diet == "" || rep.Advice.Exercise != "" || rep.Advice.General != "" {
		t.Fatalf("advice=%+v", rep.Advice)
	}
	if len(rep.Warnings) != 0 {
		t.Fatalf("warnings=%v", rep.Warnings)
	}
}

func TestProcessRejectsUnsupportedBeforeSummarizing(t *testing.T) {
	sum := &fakeSummarizer{}
	svc, store := newService(t, sum, session.StyleBoth)

	_, err := svc.Process(context.Background(), Upload{Filename: "notes.txt", DeclaredType: "text/plain", Bytes: []byte("hi")})
	var ae *apierr.Error
	if !errors.As(err, &ae) || ae.Status != http.StatusUnsupportedMediaType {
		t.Fatalf("err=%v", err)
	}
	if !errors.Is(err, intake.ErrUnsupportedMediaType) {
		t.Fatalf("sentinel lost: %v", err)
	}
	if sum.calls != 0 || store.Len() != 0 {
		t.Fatalf("partial state: calls=%d sessions=%d", sum.calls, store.Len())
	}
}

func TestPressAndAskAgainstStoredSession(t *testing.T) {
	sum := &fakeSummarizer{res: summarizer.Result{Summary: "insomnia and stress"}}
	svc, _ := newService(t, sum, session.StyleBoth)
	ctx := context.Background()

	rep, err := svc.Process(ctx, Upload{Filename: "r.pdf", DeclaredType: "pdf", Bytes: []byte("%PDF-1.4\n")})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	r, err := svc.Press(ctx, rep.SessionID, "general advice")
	if err != nil {
		t.Fatalf("Press: %v", err)
	}
	if r.Category != advice.General || !strings.Contains(r.Text, rep.Advice.General) {
		t.Fatalf("reply=%+v", r)
	}

	r, err = svc.Ask(ctx, rep.SessionID, "Hello")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !strings.Contains(r.Text, "insomnia and stress") {
		t.Fatalf("reply=%+v", r)
	}

	ia, err := svc.Load(ctx, rep.SessionID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if again := ReportFor(ia); again.Advice != rep.Advice || again.Summary != rep.Summary {
		t.Fatalf("reloaded report differs: %+v", again)
	}
}

func TestInteractionErrorsMapToStatus(t *testing.T) {
	svc, _ := newService(t, &fakeSummarizer{res: summarizer.Result{Summary: "x"}}, session.StyleButtons)
	ctx := context.Background()

	check := func(err error, status int) {
		t.Helper()
		var ae *apierr.Error
		if !errors.As(err, &ae) || ae.Status != status {
			t.Fatalf("err=%v want status %d", err, status)
		}
	}

	_, err := svc.Press(ctx, "missing", "diet")
	check(err, http.StatusNotFound)

	rep, _ := svc.Process(ctx, Upload{DeclaredType: "pdf", Bytes: []byte("%PDF-1.4\n")})
	_, err = svc.Ask(ctx, rep.SessionID, "diet?")
	check(err, http.StatusConflict)
	_, err = svc.Press(ctx, rep.SessionID, "surgery")
	check(err, http.StatusBadRequest)
}
