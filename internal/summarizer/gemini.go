package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/yungbote/medreport-backend/internal/config"
)

const summarizeInstruction = `You summarize medical documents (X-rays, ECG traces, lab reports, insurance forms) for the patient who uploaded them.
Write a short plain-text summary of the findings and conditions mentioned. Do not give treatment advice. Do not use markdown.
If the document is unreadable or not medical, answer with an empty string.`

type geminiBackend struct {
	apiKey string
	model  string
}

func newGeminiBackend(_ context.Context, cfg config.SummarizerConfig) (*geminiBackend, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errors.New("summarizer: gemini backend requires an api key")
	}
	model := strings.TrimSpace(cfg.GeminiModel)
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &geminiBackend{apiKey: key, model: model}, nil
}

func (g *geminiBackend) name() string { return config.BackendGemini }

func (g *geminiBackend) summarizeOnce(ctx context.Context, p Payload) (string, bool, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return "", false, fmt.Errorf("gemini client: %w", err)
	}
	defer cl.Close()

	m := cl.GenerativeModel(g.model)
	m.GenerationConfig = genai.GenerationConfig{Temperature: ptrFloat32(0)}
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(summarizeInstruction)}}

	parts := []genai.Part{
		genai.Text("Summarize this document."),
		&genai.Blob{MIMEType: p.ContentType, Data: p.Bytes},
	}
	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			return "", false, &HTTPError{StatusCode: gerr.Code}
		}
		return "", false, err
	}
	txt := strings.TrimSpace(firstText(resp))
	if txt == "" {
		return "", false, nil
	}
	return txt, true, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, part := range c.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		if sb.Len() > 0 {
			return sb.String()
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
