package telegram

import (
	"html"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/yungbote/medreport-backend/internal/advice"
	"github.com/yungbote/medreport-backend/internal/pipeline"
	"github.com/yungbote/medreport-backend/internal/render"
	"github.com/yungbote/medreport-backend/internal/session"
)

const (
	maxMessageLen  = 4096
	maxPreviewLen  = 3000
	callbackPrefix = "act:"
	noReportText   = "No report yet. Send a PNG, JPEG or PDF of your medical report to get started."
)

func welcomeText(style session.Style) string {
	var b strings.Builder
	b.WriteString(pipeline.Title)
	b.WriteString("\n\nSend an X-ray, ECG or insurance document as a PNG, JPEG or PDF. ")
	b.WriteString("I will summarize it and suggest health recommendations.")
	switch {
	case style.Buttons() && style.FreeText():
		b.WriteString("\n\nAfterwards use the buttons or ask about prescriptions, diet or exercise.")
	case style.Buttons():
		b.WriteString("\n\nAfterwards use the buttons below the report.")
	case style.FreeText():
		b.WriteString("\n\nAfterwards ask about prescriptions, diet or exercise.")
	}
	b.WriteString("\n\nCommands: /report shows the current report, /reset clears it.")
	return b.String()
}

// actionKeyboard lays out the four actions two per row.
func actionKeyboard() tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, a := range session.Actions() {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(a.Category.Label(), callbackPrefix+string(a.Category)))
		if len(row) == 2 {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(row...))
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(row...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func parseCallbackData(data string) (advice.Category, bool) {
	raw, ok := strings.CutPrefix(data, callbackPrefix)
	if !ok {
		return "", false
	}
	return advice.ParseCategory(raw)
}

func previewHTML(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return "<i>No text could be extracted from the first page.</i>"
	}
	return "<b>First page</b>\n<pre>" + html.EscapeString(truncate(text, maxPreviewLen)) + "</pre>"
}

func summaryHTML(rep *pipeline.Report) string {
	return "<b>Summary</b>\n\n" + render.TelegramHTML(rep.Summary)
}

func adviceHTML(rec advice.Record) string {
	var b strings.Builder
	b.WriteString("<b>Health Recommendations</b>")
	if rec.Overview != "" {
		b.WriteString("\n\n" + html.EscapeString(rec.Overview))
	}
	for _, c := range advice.Categories() {
		b.WriteString("\n\n<b>" + html.EscapeString(c.Label()) + "</b>\n")
		b.WriteString(render.TelegramHTML(rec.Text(c)))
	}
	return b.String()
}

func chatHTML(rep *pipeline.Report) string {
	return "<b>Chat with your Health Report</b>\n\n" + render.TelegramHTML(session.Overview(rep.Summary))
}

func replyHTML(r session.Reply) string {
	return render.TelegramHTML(r.Text)
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}

// splitMessage breaks text into chunks Telegram accepts, preferring line
// boundaries so HTML tags, which never span lines here, stay balanced.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var out []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, line := range strings.Split(text, "\n") {
		for len(line) > limit {
			flush()
			cut := limit
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			out = append(out, line[:cut])
			line = line[cut:]
		}
		if cur.Len() > 0 && cur.Len()+1+len(line) > limit {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
	}
	flush()
	return out
}

func (b *Bot) send(cid int64, text string) {
	for _, chunk := range splitMessage(text, maxMessageLen) {
		if _, err := b.api.Send(tgbotapi.NewMessage(cid, chunk)); err != nil {
			b.log.Warn("telegram send failed", "chat_id", cid, "error", err)
			return
		}
	}
}

// sendHTML attaches kb to the last chunk only.
func (b *Bot) sendHTML(cid int64, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	chunks := splitMessage(text, maxMessageLen)
	for i, chunk := range chunks {
		msg := tgbotapi.NewMessage(cid, chunk)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		if kb != nil && i == len(chunks)-1 {
			msg.ReplyMarkup = *kb
		}
		if _, err := b.api.Send(msg); err != nil {
			b.log.Warn("telegram send failed", "chat_id", cid, "error", err)
			return
		}
	}
}
