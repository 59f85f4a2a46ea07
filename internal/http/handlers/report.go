package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/medreport-backend/internal/advice"
	"github.com/yungbote/medreport-backend/internal/http/response"
	"github.com/yungbote/medreport-backend/internal/pipeline"
	"github.com/yungbote/medreport-backend/internal/session"
)

type ReportHandler struct {
	svc            *pipeline.Service
	maxUploadBytes int64
}

func NewReportHandler(svc *pipeline.Service, maxUploadBytes int64) *ReportHandler {
	return &ReportHandler{svc: svc, maxUploadBytes: maxUploadBytes}
}

type previewJSON struct {
	Kind         string `json:"kind"`
	Text         string `json:"text,omitempty"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	ThumbnailURL string `json:"thumbnail_data_url,omitempty"`
}

type actionJSON struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Category string `json:"category"`
}

type reportJSON struct {
	SessionID string        `json:"session_id"`
	Title     string        `json:"title"`
	Filename  string        `json:"filename,omitempty"`
	MediaType string        `json:"media_type"`
	Preview   previewJSON   `json:"preview"`
	Summary   string        `json:"summary"`
	Overview  string        `json:"overview"`
	Advice    advice.Record `json:"advice"`
	Warnings  []string      `json:"warnings"`
	Style     string        `json:"interaction_style"`
	Actions   []actionJSON  `json:"actions,omitempty"`
}

func toReportJSON(r *pipeline.Report) reportJSON {
	out := reportJSON{
		SessionID: r.SessionID,
		Title:     r.Title,
		Filename:  r.Filename,
		MediaType: string(r.MediaType),
		Preview: previewJSON{
			Kind:         string(r.Preview.Kind),
			Text:         r.Preview.Text,
			Width:        r.Preview.Width,
			Height:       r.Preview.Height,
			ThumbnailURL: r.Preview.DataURL(),
		},
		Summary:  r.Summary,
		Overview: session.Overview(r.Summary),
		Advice:   r.Advice,
		Warnings: r.Warnings,
		Style:    string(r.Style),
	}
	if out.Warnings == nil {
		out.Warnings = []string{}
	}
	if r.Style.Buttons() {
		for _, a := range session.Actions() {
			out.Actions = append(out.Actions, actionJSON{Name: a.Name, Label: a.Category.Label(), Category: string(a.Category)})
		}
	}
	return out
}

// POST /api/reports
func (h *ReportHandler) Upload(c *gin.Context) {
	up, err := readUpload(c, h.maxUploadBytes)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	rep, err := h.svc.Process(c.Request.Context(), up)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, toReportJSON(rep))
}

// GET /api/reports/:id
func (h *ReportHandler) Get(c *gin.Context) {
	ia, err := h.svc.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, toReportJSON(pipeline.ReportFor(ia)))
}

// POST /api/reports/:id/actions/:action
func (h *ReportHandler) Action(c *gin.Context) {
	action := c.Param("action")
	r, err := h.svc.Press(c.Request.Context(), c.Param("id"), action)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"action": action, "category": r.Category, "response": r.Text})
}

type askRequest struct {
	Question string `json:"question"`
}

// POST /api/reports/:id/ask
func (h *ReportHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	r, err := h.svc.Ask(c.Request.Context(), c.Param("id"), strings.TrimSpace(req.Question))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"question": req.Question, "category": r.Category, "response": r.Text})
}
