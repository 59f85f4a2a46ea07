package summarizer

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/yungbote/medreport-backend/internal/config"
)

// openaiBackend sends images inline and PDFs as their extracted first-page
// text, since chat completions cannot read a raw PDF upload.
type openaiBackend struct {
	model string
	opts  []option.RequestOption
}

func newOpenAIBackend(cfg config.SummarizerConfig) (*openaiBackend, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errors.New("summarizer: openai backend requires an api key")
	}
	model := strings.TrimSpace(cfg.OpenAIModel)
	if model == "" {
		return nil, errors.New("summarizer: openai model is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(key), option.WithMaxRetries(0)}
	if base := strings.TrimSpace(cfg.OpenAIBaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	return &openaiBackend{model: model, opts: opts}, nil
}

func (o *openaiBackend) name() string { return config.BackendOpenAI }

func (o *openaiBackend) summarizeOnce(ctx context.Context, p Payload) (string, bool, error) {
	client := openai.NewClient(o.opts...)

	var user openai.ChatCompletionMessageParamUnion
	if strings.HasPrefix(p.ContentType, "image/") {
		dataURL := "data:" + p.ContentType + ";base64," + base64.StdEncoding.EncodeToString(p.Bytes)
		user = openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
			openai.TextContentPart("Summarize this document."),
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
		})
	} else {
		text := strings.TrimSpace(p.Text)
		if text == "" {
			return "", false, nil
		}
		user = openai.UserMessage("Summarize this document:\n\n" + text)
	}

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(summarizeInstruction),
			user,
		},
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", false, &HTTPError{StatusCode: apiErr.StatusCode}
		}
		return "", false, err
	}
	if len(resp.Choices) == 0 {
		return "", false, nil
	}
	txt := strings.TrimSpace(resp.Choices[0].Message.Content)
	if txt == "" {
		return "", false, nil
	}
	return txt, true, nil
}
