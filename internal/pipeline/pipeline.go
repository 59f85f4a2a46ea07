package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/medreport-backend/internal/advice"
	"github.com/yungbote/medreport-backend/internal/intake"
	"github.com/yungbote/medreport-backend/internal/observability"
	"github.com/yungbote/medreport-backend/internal/platform/apierr"
	"github.com/yungbote/medreport-backend/internal/platform/logger"
	"github.com/yungbote/medreport-backend/internal/session"
	"github.com/yungbote/medreport-backend/internal/summarizer"
)

const Title = "Medical Report Assistant"

// Upload is one document as received from a frontend.
type Upload struct {
	Filename     string
	DeclaredType string
	Bytes        []byte
}

// Report is everything a frontend renders after an upload.
type Report struct {
	SessionID string
	Title     string
	Filename  string
	MediaType intake.MediaType
	Preview   intake.Preview
	Summary   string
	Advice    advice.Record
	Warnings  []string
	Style     session.Style
}

type Service struct {
	log        *logger.Logger
	intake     *intake.Intaker
	summarizer summarizer.Summarizer
	advice     *advice.Engine
	store      session.Store
	style      session.Style
	metrics    *observability.Metrics
}

func New(log *logger.Logger, in *intake.Intaker, sum summarizer.Summarizer, eng *advice.Engine, store session.Store, style session.Style) (*Service, error) {
	if log == nil {
		log = logger.Nop()
	}
	if in == nil || sum == nil || eng == nil || store == nil {
		return nil, errors.New("pipeline: intake, summarizer, advice engine and store are required")
	}
	if style == "" {
		style = session.StyleBoth
	}
	return &Service{
		log:        log.With("service", "ReportPipeline"),
		intake:     in,
		summarizer: sum,
		advice:     eng,
		store:      store,
		style:      style,
	}, nil
}

func (s *Service) Style() session.Style { return s.style }

// SetMetrics attaches an optional metrics registry; nil disables recording.
func (s *Service) SetMetrics(m *observability.Metrics) { s.metrics = m }

// Process runs intake, summarization and advice derivation for one upload
// and stores a new session. Only intake rejections are returned as errors;
// every later failure degrades to a fallback value plus a warning.
func (s *Service) Process(ctx context.Context, up Upload) (*Report, error) {
	ctx, span := otel.Tracer("medreport/pipeline").Start(ctx, "pipeline.Process")
	defer span.End()
	started := time.Now()

	in, err := s.intake.Intake(ctx, up.Bytes, up.DeclaredType, up.Filename)
	if err != nil {
		return nil, intakeError(err)
	}
	span.SetAttributes(attribute.String("document.format", string(in.Document.Format)))

	sumStarted := time.Now()
	res := s.summarizer.Summarize(ctx, summarizer.Payload{
		Filename:    up.Filename,
		ContentType: in.Document.Format.ContentType(),
		Bytes:       in.Payload,
		Text:        in.Preview.Text,
	})
	s.metrics.ObserveSummarizer(res.Backend, res.Failed(), res.Attempts, time.Since(sumStarted))

	warnings := append([]string(nil), in.Warnings...)
	if res.Warning != "" {
		warnings = append(warnings, res.Warning)
	}

	sess := session.New(Title, res.Summary)
	sess.Filename = up.Filename
	sess.MediaType = string(in.Document.MediaType())
	sess.PreviewText = in.Preview.Text
	sess.Warnings = warnings

	ia, err := session.NewInteraction(sess, s.advice, s.style)
	if err != nil {
		return nil, err
	}
	if err := s.store.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	outcome := summaryOutcome(res)
	s.metrics.ObserveReport(string(in.Document.Format), outcome, time.Since(started))
	s.log.Info("report processed",
		"session_id", sess.ID,
		"format", string(in.Document.Format),
		"summary", outcome,
		"attempts", res.Attempts,
		"warnings", len(warnings),
		"duration_ms", time.Since(started).Milliseconds(),
	)

	return &Report{
		SessionID: sess.ID,
		Title:     sess.Title,
		Filename:  sess.Filename,
		MediaType: in.Document.MediaType(),
		Preview:   in.Preview,
		Summary:   sess.Summary,
		Advice:    ia.Advice(),
		Warnings:  warnings,
		Style:     s.style,
	}, nil
}

// Load rebuilds the interaction for a stored session.
func (s *Service) Load(ctx context.Context, id string) (*session.Interaction, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, apierr.New(http.StatusNotFound, "session_not_found", err)
		}
		return nil, err
	}
	return session.NewInteraction(sess, s.advice, s.style)
}

// ReportFor renders a stored session the same way Process does, minus the
// image thumbnail which is not kept.
func ReportFor(ia *session.Interaction) *Report {
	sess := ia.Session()
	kind := intake.PreviewText
	if sess.MediaType == string(intake.MediaImage) {
		kind = intake.PreviewImage
	}
	return &Report{
		SessionID: sess.ID,
		Title:     sess.Title,
		Filename:  sess.Filename,
		MediaType: intake.MediaType(sess.MediaType),
		Preview:   intake.Preview{Kind: kind, Text: sess.PreviewText},
		Summary:   sess.Summary,
		Advice:    ia.Advice(),
		Warnings:  sess.Warnings,
		Style:     ia.Style(),
	}
}

// Press and Ask load the session and answer one query, mapping interaction
// errors to API errors.
func (s *Service) Press(ctx context.Context, id, action string) (session.Reply, error) {
	ia, err := s.Load(ctx, id)
	if err != nil {
		return session.Reply{}, err
	}
	r, err := ia.Press(action)
	if err == nil {
		s.metrics.IncInteraction("button", string(r.Category))
	}
	return r, interactionError(err)
}

func (s *Service) Ask(ctx context.Context, id, question string) (session.Reply, error) {
	ia, err := s.Load(ctx, id)
	if err != nil {
		return session.Reply{}, err
	}
	r, err := ia.Ask(question)
	if err == nil {
		s.metrics.IncInteraction("question", string(r.Category))
	}
	return r, interactionError(err)
}

func summaryOutcome(res summarizer.Result) string {
	switch {
	case res.Failed():
		return "fallback"
	case res.Summary == summarizer.FallbackMissing:
		return "missing"
	default:
		return "ok"
	}
}

func intakeError(err error) error {
	switch {
	case errors.Is(err, intake.ErrUnsupportedMediaType):
		return apierr.New(http.StatusUnsupportedMediaType, "unsupported_media_type", err)
	case errors.Is(err, intake.ErrDocumentTooLarge):
		return apierr.New(http.StatusRequestEntityTooLarge, "document_too_large", err)
	case errors.Is(err, intake.ErrEmptyDocument):
		return apierr.New(http.StatusBadRequest, "empty_document", err)
	case errors.Is(err, intake.ErrMalformedDocument):
		return apierr.New(http.StatusUnprocessableEntity, "malformed_document", err)
	default:
		return err
	}
}

func interactionError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrUnknownAction):
		return apierr.New(http.StatusBadRequest, "unknown_action", err)
	case errors.Is(err, session.ErrStyleDisabled):
		return apierr.New(http.StatusConflict, "style_disabled", err)
	default:
		return err
	}
}
