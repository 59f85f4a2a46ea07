package intake

import (
	"mime"
	"path/filepath"
	"strings"
)

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaPDF   MediaType = "pdf"
)

// Format is the concrete accepted upload format.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatPDF  Format = "pdf"
)

func (f Format) MediaType() MediaType {
	if f == FormatPDF {
		return MediaPDF
	}
	return MediaImage
}

func (f Format) ContentType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatJPEG:
		return "image/jpeg"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// ParseFormat resolves a declared type to one of the accepted formats. The
// declared value may be a short name (png, jpg, jpeg, pdf) or a MIME type.
// When it is empty or generic the filename extension decides. Content is never
// sniffed here: an upload is classified by what the client declared.
func ParseFormat(declared, filename string) (Format, bool) {
	d := strings.ToLower(strings.TrimSpace(declared))
	if d != "" {
		if mt, _, err := mime.ParseMediaType(d); err == nil {
			d = mt
		}
	}
	switch d {
	case "png", "image/png":
		return FormatPNG, true
	case "jpg", "jpeg", "image/jpeg", "image/jpg", "image/pjpeg":
		return FormatJPEG, true
	case "pdf", "application/pdf", "application/x-pdf":
		return FormatPDF, true
	case "", "application/octet-stream", "binary/octet-stream":
		return formatFromExt(filename)
	default:
		return "", false
	}
}

func formatFromExt(filename string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(filename))) {
	case ".png":
		return FormatPNG, true
	case ".jpg", ".jpeg":
		return FormatJPEG, true
	case ".pdf":
		return FormatPDF, true
	default:
		return "", false
	}
}

// AcceptedExtensions lists the extensions the upload widget offers.
func AcceptedExtensions() []string {
	return []string{".png", ".jpg", ".jpeg", ".pdf"}
}
