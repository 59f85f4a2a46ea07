package telegram

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/yungbote/medreport-backend/internal/advice"
	"github.com/yungbote/medreport-backend/internal/intake"
	"github.com/yungbote/medreport-backend/internal/pipeline"
	"github.com/yungbote/medreport-backend/internal/session"
	"github.com/yungbote/medreport-backend/internal/summarizer"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	fileURL  string
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdates(tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	return nil, errors.New("not used")
}

func (f *fakeAPI) GetFileDirectURL(string) (string, error) {
	return f.fileURL, nil
}

func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeAPI) reset() {
	f.mu.Lock()
	f.sent = nil
	f.mu.Unlock()
}

func newTestBot(t *testing.T, style session.Style, file []byte) (*Bot, *fakeAPI) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(file)
	}))
	t.Cleanup(srv.Close)

	rs, err := advice.DefaultRules()
	if err != nil {
		t.Fatalf("DefaultRules: %v", err)
	}
	eng, err := advice.NewEngine(rs, advice.Options{Mode: advice.ModeKeyword})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	svc, err := pipeline.New(nil, intake.New(nil, intake.Options{MaxUploadBytes: 1 << 20}),
		summarizer.NewMock("Mild inflammation noted; watch cholesterol."), eng, session.NewMemoryStore(time.Minute), style)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	api := &fakeAPI{fileURL: srv.URL + "/file"}
	return newBot(api, svc, 1<<20, nil), api
}

func pngFile(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func chatMessage(text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42}, Text: text}}
}

func command(name string) tgbotapi.Update {
	upd := chatMessage("/" + name)
	upd.Message.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name) + 1}}
	return upd
}

func joined(api *fakeAPI) string {
	return strings.Join(api.texts(), "\n---\n")
}

func TestDocumentUploadSendsReportAndKeyboard(t *testing.T) {
	b, api := newTestBot(t, session.StyleBoth, pngFile(t))
	upd := tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: 42},
		Document: &tgbotapi.Document{FileID: "f1", FileName: "xray.png", MimeType: "image/png", FileSize: 100},
	}}
	b.HandleUpdate(context.Background(), upd)

	if _, ok := b.sessionFor(42); !ok {
		t.Fatalf("expected session for chat")
	}
	out := joined(api)
	for _, want := range []string{"<b>Summary</b>", "<b>Health Recommendations</b>", "Chat with your Health Report", "inflammation"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}

	var photo, keyboard bool
	for _, c := range api.sent {
		switch m := c.(type) {
		case tgbotapi.PhotoConfig:
			photo = true
		case tgbotapi.MessageConfig:
			if kb, ok := m.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup); ok && len(kb.InlineKeyboard) == 2 {
				keyboard = true
			}
		}
	}
	if !photo || !keyboard {
		t.Fatalf("photo=%v keyboard=%v", photo, keyboard)
	}
}

func TestCallbackAndQuestion(t *testing.T) {
	b, api := newTestBot(t, session.StyleBoth, pngFile(t))
	b.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:  &tgbotapi.Chat{ID: 42},
		Photo: []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "big", FileSize: 200}},
	}})
	api.reset()

	b.HandleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		Data:    callbackPrefix + string(advice.Prescription),
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42}},
	}})
	if len(api.requests) != 1 {
		t.Fatalf("callback not acknowledged")
	}
	if out := joined(api); !strings.Contains(out, "possible prescription suggestions") {
		t.Fatalf("unexpected reply:\n%s", out)
	}

	api.reset()
	b.HandleUpdate(context.Background(), chatMessage("how should I change my diet?"))
	if out := joined(api); !strings.Contains(out, "dietary adjustments") {
		t.Fatalf("unexpected reply:\n%s", out)
	}

	api.reset()
	b.HandleUpdate(context.Background(), chatMessage("what now?"))
	if out := joined(api); !strings.Contains(out, "consult a healthcare professional") {
		t.Fatalf("unexpected default reply:\n%s", out)
	}
}

func TestQuestionWithoutReport(t *testing.T) {
	b, api := newTestBot(t, session.StyleBoth, nil)
	b.HandleUpdate(context.Background(), chatMessage("diet?"))
	if out := joined(api); out != noReportText {
		t.Fatalf("got %q", out)
	}
}

func TestButtonsOnlyRejectsQuestions(t *testing.T) {
	b, api := newTestBot(t, session.StyleButtons, pngFile(t))
	b.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: 42},
		Document: &tgbotapi.Document{FileID: "f1", FileName: "xray.png", MimeType: "image/png"},
	}})
	api.reset()
	b.HandleUpdate(context.Background(), chatMessage("diet?"))
	if out := joined(api); !strings.Contains(out, "use the buttons") {
		t.Fatalf("got %q", out)
	}
}

func TestUnsupportedDocument(t *testing.T) {
	b, api := newTestBot(t, session.StyleBoth, []byte("GIF89a"))
	b.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: 42},
		Document: &tgbotapi.Document{FileID: "f1", FileName: "scan.gif", MimeType: "image/gif"},
	}})
	if _, ok := b.sessionFor(42); ok {
		t.Fatalf("unsupported upload must not create a session")
	}
	if out := joined(api); !strings.Contains(strings.ToLower(out), "unsupported") {
		t.Fatalf("got %q", out)
	}
}

func TestCommands(t *testing.T) {
	b, api := newTestBot(t, session.StyleFreeText, nil)
	b.HandleUpdate(context.Background(), command("start"))
	if out := joined(api); !strings.Contains(out, pipeline.Title) || strings.Contains(out, "buttons") {
		t.Fatalf("welcome=%q", out)
	}
	api.reset()
	b.HandleUpdate(context.Background(), command("report"))
	if out := joined(api); out != noReportText {
		t.Fatalf("report=%q", out)
	}
}

func TestSplitMessage(t *testing.T) {
	text := strings.Repeat("a", 10) + "\n" + strings.Repeat("b", 10) + "\n" + strings.Repeat("c", 25)
	got := splitMessage(text, 12)
	want := []string{"aaaaaaaaaa", "bbbbbbbbbb", strings.Repeat("c", 12), strings.Repeat("c", 12), "c"}
	if len(got) != len(want) {
		t.Fatalf("got %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("chunk %d: got %q want %q", i, got[i], want[i])
		}
	}
	if got := splitMessage("short", 12); len(got) != 1 || got[0] != "short" {
		t.Fatalf("got %q", got)
	}
}

func TestTruncateKeepsRunes(t *testing.T) {
	if got := truncate("héllo", 2); got != "h…" {
		t.Fatalf("got %q", got)
	}
}

func TestParseCallbackData(t *testing.T) {
	if c, ok := parseCallbackData("act:diet"); !ok || c != advice.Diet {
		t.Fatalf("got %q %v", c, ok)
	}
	if _, ok := parseCallbackData("diet"); ok {
		t.Fatalf("expected prefix to be required")
	}
}

func TestRetryDelayFromError(t *testing.T) {
	if d := retryDelayFromError(&tgbotapi.Error{ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 7}}); d != 7*time.Second {
		t.Fatalf("got %s", d)
	}
	if d := retryDelayFromError(errors.New("Too Many Requests: retry after 4")); d != 4*time.Second {
		t.Fatalf("got %s", d)
	}
	if d := retryDelayFromError(errors.New("boom")); d != time.Second {
		t.Fatalf("got %s", d)
	}
}
