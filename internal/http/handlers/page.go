package handlers

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/medreport-backend/internal/advice"
	"github.com/yungbote/medreport-backend/internal/intake"
	"github.com/yungbote/medreport-backend/internal/pipeline"
	"github.com/yungbote/medreport-backend/internal/platform/apierr"
	"github.com/yungbote/medreport-backend/internal/render"
	"github.com/yungbote/medreport-backend/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates parses the page templates. Summary and advice text go through
// the markdown func, which escapes raw HTML.
func Templates() *template.Template {
	return template.Must(template.New("").Funcs(template.FuncMap{
		"markdown": render.MustMarkdown,
	}).ParseFS(templateFS, "templates/*.html"))
}

// PageHandler serves the server-rendered upload and report pages.
type PageHandler struct {
	svc            *pipeline.Service
	maxUploadBytes int64
}

func NewPageHandler(svc *pipeline.Service, maxUploadBytes int64) *PageHandler {
	return &PageHandler{svc: svc, maxUploadBytes: maxUploadBytes}
}

type section struct {
	Label string
	Text  string
}

type actionView struct {
	Name  string
	Label string
}

type reportPage struct {
	Title        string
	Report       *pipeline.Report
	ThumbnailURL template.URL
	Overview     string
	Sections     []section
	Buttons      bool
	FreeText     bool
	Actions      []actionView
	Question     string
	Reply        string
	Error        string
}

func newReportPage(r *pipeline.Report) reportPage {
	p := reportPage{
		Title:    r.Title,
		Report:   r,
		Overview: session.Overview(r.Summary),
		Buttons:  r.Style.Buttons(),
		FreeText: r.Style.FreeText(),
	}
	// The thumbnail is a PNG we encoded ourselves.
	if u := r.Preview.DataURL(); u != "" {
		p.ThumbnailURL = template.URL(u)
	}
	for _, c := range advice.Categories() {
		p.Sections = append(p.Sections, section{Label: c.Label(), Text: r.Advice.Text(c)})
	}
	for _, a := range session.Actions() {
		p.Actions = append(p.Actions, actionView{Name: a.Name, Label: a.Category.Label()})
	}
	return p
}

func (h *PageHandler) renderIndex(c *gin.Context, status int, msg string) {
	c.HTML(status, "index.html", gin.H{
		"Title":  pipeline.Title,
		"Accept": strings.Join(intake.AcceptedExtensions(), ","),
		"Error":  msg,
	})
}

// GET /
func (h *PageHandler) Index(c *gin.Context) {
	h.renderIndex(c, http.StatusOK, "")
}

// POST /upload
func (h *PageHandler) Upload(c *gin.Context) {
	up, err := readUpload(c, h.maxUploadBytes)
	if err != nil {
		h.renderIndex(c, statusOf(err), err.Error())
		return
	}
	rep, err := h.svc.Process(c.Request.Context(), up)
	if err != nil {
		h.renderIndex(c, statusOf(err), userMessage(err))
		return
	}
	c.HTML(http.StatusOK, "report.html", newReportPage(rep))
}

// GET /reports/:id
func (h *PageHandler) Report(c *gin.Context) {
	ia, err := h.svc.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderIndex(c, statusOf(err), userMessage(err))
		return
	}
	c.HTML(http.StatusOK, "report.html", newReportPage(pipeline.ReportFor(ia)))
}

// POST /reports/:id/action
func (h *PageHandler) Action(c *gin.Context) {
	h.answer(c, "", func(ctx context.Context, id string) (session.Reply, error) {
		return h.svc.Press(ctx, id, c.PostForm("action"))
	})
}

// POST /reports/:id/ask
func (h *PageHandler) Ask(c *gin.Context) {
	q := strings.TrimSpace(c.PostForm("question"))
	h.answer(c, q, func(ctx context.Context, id string) (session.Reply, error) {
		return h.svc.Ask(ctx, id, q)
	})
}

func (h *PageHandler) answer(c *gin.Context, question string, fn func(context.Context, string) (session.Reply, error)) {
	ctx := c.Request.Context()
	ia, err := h.svc.Load(ctx, c.Param("id"))
	if err != nil {
		h.renderIndex(c, statusOf(err), userMessage(err))
		return
	}
	page := newReportPage(pipeline.ReportFor(ia))
	page.Question = question
	status := http.StatusOK
	if r, err := fn(ctx, c.Param("id")); err != nil {
		status = statusOf(err)
		page.Error = userMessage(err)
	} else {
		page.Reply = r.Text
	}
	c.HTML(status, "report.html", page)
}

func statusOf(err error) int {
	return apierr.From(err).Status
}

func userMessage(err error) string {
	if ae := apierr.From(err); ae.Status >= http.StatusInternalServerError {
		return "Something went wrong. Please try again."
	}
	return err.Error()
}
