package intake

import (
	"bytes"
	"context"
	"fmt"

	"github.com/yungbote/medreport-backend/internal/platform/logger"
)

// Document is one uploaded file. Bytes are never modified after intake.
type Document struct {
	Format   Format
	Filename string
	Bytes    []byte
}

func (d Document) MediaType() MediaType { return d.Format.MediaType() }

type PreviewKind string

const (
	PreviewImage PreviewKind = "image"
	PreviewText  PreviewKind = "text"
)

// Preview is the human-viewable side of an upload: the decoded image (as a
// PNG thumbnail plus its original dimensions) or the first page's text.
type Preview struct {
	Kind      PreviewKind
	Text      string
	Thumbnail []byte
	Width     int
	Height    int
}

// Result is what intake hands downstream. Payload is a fresh copy equal to
// the uploaded bytes.
type Result struct {
	Document Document
	Preview  Preview
	Payload  []byte
	Warnings []string
}

type Options struct {
	MaxUploadBytes    int64
	MaxPreviewWidth   int
	PDFToTextFallback bool
}

type Intaker struct {
	log  *logger.Logger
	opts Options
}

func New(log *logger.Logger, opts Options) *Intaker {
	if log == nil {
		log = logger.Nop()
	}
	if opts.MaxPreviewWidth <= 0 {
		opts.MaxPreviewWidth = 1024
	}
	return &Intaker{log: log.With("service", "Intake"), opts: opts}
}

// Intake classifies blob by its declared type and produces a preview and a
// payload. Unsupported types are rejected before any processing.
func (in *Intaker) Intake(ctx context.Context, blob []byte, declared, filename string) (*Result, error) {
	format, ok := ParseFormat(declared, filename)
	if !ok {
		return nil, fmt.Errorf("%w (declared %q)", ErrUnsupportedMediaType, declared)
	}
	if len(blob) == 0 {
		return nil, ErrEmptyDocument
	}
	if in.opts.MaxUploadBytes > 0 && int64(len(blob)) > in.opts.MaxUploadBytes {
		return nil, fmt.Errorf("%w (%d bytes, limit %d)", ErrDocumentTooLarge, len(blob), in.opts.MaxUploadBytes)
	}

	doc := Document{Format: format, Filename: filename, Bytes: bytes.Clone(blob)}
	res := &Result{Document: doc, Payload: bytes.Clone(blob)}

	switch format.MediaType() {
	case MediaImage:
		p, err := imagePreview(doc.Bytes, in.opts.MaxPreviewWidth)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}
		res.Preview = p
	case MediaPDF:
		text, warnings := in.firstPageText(ctx, doc.Bytes)
		res.Preview = Preview{Kind: PreviewText, Text: text}
		res.Warnings = append(res.Warnings, warnings...)
	}

	in.log.Debug("document accepted",
		"format", string(format),
		"bytes", len(blob),
		"preview_kind", string(res.Preview.Kind),
		"warnings", len(res.Warnings),
	)
	return res, nil
}
