package summarizer

import (
	"context"

	"github.com/yungbote/medreport-backend/internal/config"
)

// Mock returns a fixed summary. An empty Summary behaves like a response
// without a summary field.
type Mock struct {
	Summary string
}

func (m Mock) name() string { return config.BackendMock }

func (m Mock) summarizeOnce(ctx context.Context, _ Payload) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if m.Summary == "" {
		return "", false, nil
	}
	return m.Summary, true, nil
}

// NewMock wraps Mock in the standard client.
func NewMock(summary string) *Client {
	return newClient(Mock{Summary: summary}, config.SummarizerConfig{}, nil)
}
