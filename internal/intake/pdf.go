package intake

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

const warnNoFirstPageText = "no extractable text on the first page"

// firstPageText extracts plain text from page one only. Later pages are never
// read. Extraction is best-effort: failures yield "" plus a warning.
func (in *Intaker) firstPageText(ctx context.Context, raw []byte) (string, []string) {
	text, err := parseFirstPage(raw)
	if err != nil {
		in.log.Warn("pdf parse failed", "error", err)
	}
	if strings.TrimSpace(text) != "" {
		return strings.TrimSpace(text), nil
	}

	if in.opts.PDFToTextFallback {
		txt, ferr := pdfToTextFirstPage(ctx, raw)
		if ferr == nil && strings.TrimSpace(txt) != "" {
			return txt, nil
		}
		if ferr != nil {
			in.log.Debug("pdftotext fallback unavailable", "error", ferr)
		}
	}
	return "", []string{warnNoFirstPageText}
}

func parseFirstPage(raw []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", err
	}
	if r.NumPage() < 1 {
		return "", errors.New("pdf has no pages")
	}
	page := r.Page(1)
	if page.V.IsNull() {
		return "", errors.New("pdf first page missing")
	}
	return page.GetPlainText(nil)
}

func pdfToTextFirstPage(ctx context.Context, raw []byte) (string, error) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return "", fmt.Errorf("pdftotext not found in PATH: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tmpDir, err := os.MkdirTemp("", "medreport_pdftotext_*")
	if err != nil {
		return "", fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	inPath := filepath.Join(tmpDir, "in.pdf")
	if err := os.WriteFile(inPath, raw, 0o600); err != nil {
		return "", fmt.Errorf("write temp pdf: %w", err)
	}

	cmd := exec.CommandContext(callCtx, "pdftotext", "-f", "1", "-l", "1", "-enc", "UTF-8", "-q", inPath, "-")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if s := strings.TrimSpace(stderr.String()); s != "" {
			return "", fmt.Errorf("pdftotext: %w; stderr=%s", err, s)
		}
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return strings.TrimSpace(stdout.String()), nil
}
