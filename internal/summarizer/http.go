package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/yungbote/medreport-backend/internal/config"
)

const maxResponseBytes = 4 << 20

// httpBackend posts the document as the multipart field "file" with a bearer
// credential and reads {"summary": "..."} from the response.
type httpBackend struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

func newHTTPBackend(cfg config.SummarizerConfig, httpClient *http.Client) (*httpBackend, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("summarizer: endpoint required")
	}
	if httpClient == nil {
		tr := &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          20,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
		httpClient = &http.Client{Transport: tr}
	}
	return &httpBackend{
		endpoint:   endpoint,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: httpClient,
	}, nil
}

// NewHTTPWithClient builds the http backend over a caller-supplied client.
// Tests use it with a fake RoundTripper.
func NewHTTPWithClient(cfg config.SummarizerConfig, httpClient *http.Client) (*Client, error) {
	b, err := newHTTPBackend(cfg, httpClient)
	if err != nil {
		return nil, err
	}
	return newClient(b, cfg, nil), nil
}

func (b *httpBackend) name() string { return config.BackendHTTP }

type summaryResponse struct {
	Summary *string `json:"summary"`
}

func (b *httpBackend) summarizeOnce(ctx context.Context, p Payload) (string, bool, error) {
	body, contentType, err := multipartBody(p)
	if err != nil {
		return "", false, fmt.Errorf("build request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, body)
	if err != nil {
		return "", false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return "", false, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", false, err
	}
	var out summaryResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", false, fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	if out.Summary == nil {
		return "", false, nil
	}
	return *out.Summary, true, nil
}

func multipartBody(p Payload) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	filename := strings.TrimSpace(p.Filename)
	if filename == "" {
		filename = "document"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	ct := p.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(p.Bytes); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }
