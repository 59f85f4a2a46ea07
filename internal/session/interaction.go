package session

import (
	"errors"
	"strings"

	"github.com/yungbote/medreport-backend/internal/advice"
)

// Reply is the answer to one button press or question. Category is empty
// for the default response.
type Reply struct {
	Category advice.Category `json:"category,omitempty"`
	Text     string          `json:"response"`
}

// Interaction answers queries from one session's summary and advice. It keeps
// no history: every answer depends only on the summary.
type Interaction struct {
	sess   *Session
	record advice.Record
	style  Style
}

func NewInteraction(sess *Session, engine *advice.Engine, style Style) (*Interaction, error) {
	if sess == nil {
		return nil, ErrNoSummary
	}
	if engine == nil {
		return nil, errors.New("session: advice engine required")
	}
	if style == "" {
		style = StyleBoth
	}
	return &Interaction{sess: sess, record: engine.Derive(sess.Summary), style: style}, nil
}

func (i *Interaction) Session() *Session     { return i.sess }
func (i *Interaction) Advice() advice.Record { return i.record }
func (i *Interaction) Style() Style          { return i.style }

// Press answers one of the fixed actions.
func (i *Interaction) Press(action string) (Reply, error) {
	if !i.style.Buttons() {
		return Reply{}, ErrStyleDisabled
	}
	cat, ok := ParseAction(action)
	if !ok {
		return Reply{}, ErrUnknownAction
	}
	return i.categoryReply(cat), nil
}

// Ask classifies a free-text question by the first of "prescription", "diet"
// and "exercise" it contains. Anything else, a blank question included, gets
// the default response.
func (i *Interaction) Ask(question string) (Reply, error) {
	if !i.style.FreeText() {
		return Reply{}, ErrStyleDisabled
	}
	q := strings.ToLower(question)
	switch {
	case strings.Contains(q, "prescription"):
		return i.categoryReply(advice.Prescription), nil
	case strings.Contains(q, "diet"):
		return i.categoryReply(advice.Diet), nil
	case strings.Contains(q, "exercise"):
		return i.categoryReply(advice.Exercise), nil
	default:
		return Reply{Text: DefaultResponse(i.sess.Summary)}, nil
	}
}

func (i *Interaction) categoryReply(cat advice.Category) Reply {
	return Reply{Category: cat, Text: cat.Heading() + "\n\n" + i.record.Text(cat)}
}

// Overview is the condition summary shown above the buttons.
func Overview(summary string) string {
	return "The health report indicates the following summary of your condition:\n\n" + summary
}

func DefaultResponse(summary string) string {
	return Overview(summary) + "\n\nFor anything more specific, please consult a healthcare professional."
}
