package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/medreport-backend/internal/advice"
)

var (
	ErrNotFound      = errors.New("session not found")
	ErrNoSummary     = errors.New("no summary for this session yet")
	ErrUnknownAction = errors.New("unknown action")
	ErrStyleDisabled = errors.New("interaction style disabled")
)

// Session is the state of one upload. The uploaded bytes are not kept and the
// advice record is recomputed from Summary on demand.
type Session struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Filename    string    `json:"filename,omitempty"`
	MediaType   string    `json:"media_type"`
	PreviewText string    `json:"preview_text,omitempty"`
	Summary     string    `json:"summary"`
	Warnings    []string  `json:"warnings,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func New(title, summary string) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Title:     title,
		Summary:   summary,
		CreatedAt: time.Now().UTC(),
	}
}

type Style string

const (
	StyleButtons  Style = "buttons"
	StyleFreeText Style = "freeText"
	StyleBoth     Style = "both"
)

func ParseStyle(s string) (Style, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "both":
		return StyleBoth, nil
	case "buttons", "button":
		return StyleButtons, nil
	case "freetext", "free_text", "text":
		return StyleFreeText, nil
	default:
		return "", fmt.Errorf("unknown interaction style %q", s)
	}
}

func (s Style) Buttons() bool  { return s == StyleButtons || s == StyleBoth }
func (s Style) FreeText() bool { return s == StyleFreeText || s == StyleBoth }

// Action is one of the four fixed buttons.
type Action struct {
	Name     string
	Category advice.Category
}

// Actions returns the buttons in display order.
func Actions() []Action {
	return []Action{
		{Name: "prescription advice", Category: advice.Prescription},
		{Name: "diet", Category: advice.Diet},
		{Name: "exercise", Category: advice.Exercise},
		{Name: "general advice", Category: advice.General},
	}
}

// ParseAction accepts an action name, its category slug, or a button caption.
func ParseAction(s string) (advice.Category, bool) {
	n := strings.ToLower(strings.TrimSpace(s))
	n = strings.NewReplacer("_", " ", "-", " ").Replace(n)
	n = strings.TrimPrefix(n, "get ")
	switch n {
	case "prescription advice", "prescription":
		return advice.Prescription, true
	case "diet", "dietary suggestions":
		return advice.Diet, true
	case "exercise", "exercise recommendations":
		return advice.Exercise, true
	case "general advice", "general":
		return advice.General, true
	default:
		return "", false
	}
}
