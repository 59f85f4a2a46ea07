package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/yungbote/medreport-backend/internal/pipeline"
	"github.com/yungbote/medreport-backend/internal/platform/apierr"
	"github.com/yungbote/medreport-backend/internal/session"
)

// HandleUpdate dispatches one update. Failures are reported to the chat and
// logged; they never stop the polling loop.
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		b.handleCallback(ctx, upd.CallbackQuery)
		return
	}
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	cid := msg.Chat.ID

	switch {
	case msg.IsCommand():
		b.handleCommand(ctx, msg)
	case msg.Document != nil:
		b.acceptDocument(ctx, cid, msg.Document)
	case len(msg.Photo) > 0:
		b.acceptPhoto(ctx, cid, msg.Photo)
	case strings.TrimSpace(msg.Text) != "":
		b.handleQuestion(ctx, cid, msg.Text)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start", "help":
		b.send(cid, welcomeText(b.svc.Style()))
	case "report":
		id, ok := b.sessionFor(cid)
		if !ok {
			b.send(cid, noReportText)
			return
		}
		ia, err := b.svc.Load(ctx, id)
		if err != nil {
			b.replyError(cid, err)
			return
		}
		b.sendReport(cid, pipeline.ReportFor(ia))
	case "reset":
		b.dropSession(cid)
		b.send(cid, "Cleared. Send a new report whenever you are ready.")
	default:
		b.send(cid, "Unknown command. Try /help.")
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	_, _ = b.api.Request(tgbotapi.NewCallback(cb.ID, ""))
	if cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	cid := cb.Message.Chat.ID

	cat, ok := parseCallbackData(cb.Data)
	if !ok {
		b.log.Warn("unknown callback data", "chat_id", cid, "data", cb.Data)
		return
	}
	id, ok := b.sessionFor(cid)
	if !ok {
		b.send(cid, noReportText)
		return
	}
	r, err := b.svc.Press(ctx, id, string(cat))
	if err != nil {
		b.replyError(cid, err)
		return
	}
	b.sendHTML(cid, replyHTML(r), nil)
}

func (b *Bot) handleQuestion(ctx context.Context, cid int64, text string) {
	id, ok := b.sessionFor(cid)
	if !ok {
		b.send(cid, noReportText)
		return
	}
	r, err := b.svc.Ask(ctx, id, text)
	if err != nil {
		b.replyError(cid, err)
		return
	}
	b.sendHTML(cid, replyHTML(r), nil)
}

func (b *Bot) acceptDocument(ctx context.Context, cid int64, doc *tgbotapi.Document) {
	if b.maxBytes > 0 && int64(doc.FileSize) > b.maxBytes {
		b.send(cid, fmt.Sprintf("That file is too large. The limit is %d MB.", b.maxBytes>>20))
		return
	}
	b.process(ctx, cid, doc.FileID, pipeline.Upload{Filename: doc.FileName, DeclaredType: doc.MimeType})
}

// Telegram re-encodes photos as JPEG; the last size is the largest.
func (b *Bot) acceptPhoto(ctx context.Context, cid int64, sizes []tgbotapi.PhotoSize) {
	ph := sizes[len(sizes)-1]
	if b.maxBytes > 0 && int64(ph.FileSize) > b.maxBytes {
		b.send(cid, fmt.Sprintf("That photo is too large. The limit is %d MB.", b.maxBytes>>20))
		return
	}
	b.process(ctx, cid, ph.FileID, pipeline.Upload{Filename: "photo.jpg", DeclaredType: "image/jpeg"})
}

func (b *Bot) process(ctx context.Context, cid int64, fileID string, up pipeline.Upload) {
	b.send(cid, "Analyzing your report...")

	raw, err := b.download(ctx, fileID)
	if err != nil {
		b.log.Warn("telegram download failed", "chat_id", cid, "error", err)
		b.send(cid, "Could not download the file from Telegram. Please try again.")
		return
	}
	up.Bytes = raw

	rep, err := b.svc.Process(ctx, up)
	if err != nil {
		b.replyError(cid, err)
		return
	}
	b.setSession(cid, rep.SessionID)
	b.sendReport(cid, rep)
}

func (b *Bot) download(ctx context.Context, fileID string) ([]byte, error) {
	fileURL, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, errors.New("build download request")
	}
	resp, err := b.client.Do(req)
	if err != nil {
		// The URL embeds the bot token; keep it out of the error.
		var ue *url.Error
		if errors.As(err, &ue) {
			return nil, ue.Err
		}
		return nil, errors.New("download failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download status %d", resp.StatusCode)
	}
	var r io.Reader = resp.Body
	if b.maxBytes > 0 {
		r = io.LimitReader(resp.Body, b.maxBytes+1)
	}
	return io.ReadAll(r)
}

func (b *Bot) replyError(cid int64, err error) {
	ae := apierr.From(err)
	switch {
	case errors.Is(err, session.ErrNotFound):
		b.dropSession(cid)
		b.send(cid, "Your report session has expired. Please send the report again.")
	case errors.Is(err, session.ErrStyleDisabled):
		if b.svc.Style().Buttons() {
			b.send(cid, "Please use the buttons below the report.")
		} else {
			b.send(cid, "Buttons are disabled. Ask a question about prescriptions, diet or exercise instead.")
		}
	case ae.Status >= http.StatusInternalServerError:
		b.log.Error("telegram request failed", "chat_id", cid, "error", err)
		b.send(cid, "Something went wrong. Please try again.")
	default:
		b.send(cid, userFacing(err))
	}
}

func userFacing(err error) string {
	msg := err.Error()
	if msg == "" {
		return "Request failed."
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

func (b *Bot) sendReport(cid int64, rep *pipeline.Report) {
	if png := rep.Preview.Thumbnail; len(png) > 0 {
		photo := tgbotapi.NewPhoto(cid, tgbotapi.FileBytes{Name: "preview.png", Bytes: png})
		photo.Caption = "Uploaded Image"
		if _, err := b.api.Send(photo); err != nil {
			b.log.Warn("telegram send preview failed", "chat_id", cid, "error", err)
		}
	} else if rep.MediaType == "pdf" {
		b.sendHTML(cid, previewHTML(rep.Preview.Text), nil)
	}
	for _, w := range rep.Warnings {
		b.send(cid, "Warning: "+w)
	}
	b.sendHTML(cid, summaryHTML(rep), nil)
	b.sendHTML(cid, adviceHTML(rep.Advice), nil)

	var kb *tgbotapi.InlineKeyboardMarkup
	if rep.Style.Buttons() {
		m := actionKeyboard()
		kb = &m
	}
	b.sendHTML(cid, chatHTML(rep), kb)
}
