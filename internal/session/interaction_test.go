package session

import (
	"errors"
	"strings"
	"testing"

	"github.com/yungbote/medreport-backend/internal/advice"
)

const testSummary = "patient shows signs of inflammation and high blood sugar"

func newInteraction(t *testing.T, summary string, style Style) *Interaction {
	t.Helper()
	rs, err := advice.DefaultRules()
	if err != nil {
		t.Fatalf("DefaultRules: %v", err)
	}
	eng, err := advice.NewEngine(rs, advice.Options{Mode: advice.ModeKeyword})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	in, err := NewInteraction(New("Medical Report Assistant", summary), eng, style)
	if err != nil {
		t.Fatalf("NewInteraction: %v", err)
	}
	return in
}

func TestAskDietQuestionHitsDietBranch(t *testing.T) {
	in := newInteraction(t, testSummary, StyleBoth)
	r, err := in.Ask("What about my diet?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if r.Category != advice.Diet {
		t.Fatalf("category=%q", r.Category)
	}
	if !strings.Contains(r.Text, in.Advice().Diet) || strings.Contains(r.Text, testSummary) {
		t.Fatalf("text=%q", r.Text)
	}
}

func TestAskHelloFallsThroughToDefault(t *testing.T) {
	in := newInteraction(t, testSummary, StyleBoth)
	r, err := in.Ask("Hello")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if r.Category != "" {
		t.Fatalf("category=%q", r.Category)
	}
	if !strings.Contains(r.Text, testSummary) || !strings.Contains(r.Text, "healthcare professional") {
		t.Fatalf("text=%q", r.Text)
	}
}

func TestAskBlankQuestionGetsDefault(t *testing.T) {
	in := newInteraction(t, testSummary, StyleBoth)
	for _, q := range []string{"", "   \n\t"} {
		r, err := in.Ask(q)
		if err != nil {
			t.Fatalf("Ask(%q): %v", q, err)
		}
		if r.Category != "" || r.Text != DefaultResponse(testSummary) {
			t.Fatalf("Ask(%q)=%+v", q, r)
		}
	}
}

func TestAskPriorityOrder(t *testing.T) {
	in := newInteraction(t, testSummary, StyleBoth)
	cases := map[string]advice.Category{
		"Any EXERCISE or diet tips?":                 advice.Diet,
		"prescription for my diet and exercise":      advice.Prescription,
		"which exercise helps?":                      advice.Exercise,
		"what general advice do you have for sleep?": "",
	}
	for q, want := range cases {
		r, err := in.Ask(q)
		if err != nil {
			t.Fatalf("%q: %v", q, err)
		}
		if r.Category != want {
			t.Fatalf("%q: category=%q want=%q", q, r.Category, want)
		}
	}
}

func TestPressActions(t *testing.T) {
	in := newInteraction(t, testSummary, StyleButtons)
	for _, a := range Actions() {
		r, err := in.Press(a.Name)
		if err != nil {
			t.Fatalf("%s: %v", a.Name, err)
		}
		if r.Category != a.Category || !strings.HasPrefix(r.Text, a.Category.Heading()) {
			t.Fatalf("%s: reply=%+v", a.Name, r)
		}
	}
	r, _ := in.Press("exercise")
	if !strings.HasSuffix(r.Text, advice.Placeholder) {
		t.Fatalf("empty category should show placeholder, got %q", r.Text)
	}
	if _, err := in.Press("surgery"); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("err=%v", err)
	}
}

func TestStyleGate(t *testing.T) {
	buttons := newInteraction(t, testSummary, StyleButtons)
	if _, err := buttons.Ask("diet?"); !errors.Is(err, ErrStyleDisabled) {
		t.Fatalf("ask on buttons-only: %v", err)
	}
	text := newInteraction(t, testSummary, StyleFreeText)
	if _, err := text.Press("diet"); !errors.Is(err, ErrStyleDisabled) {
		t.Fatalf("press on freeText-only: %v", err)
	}
}

func TestAnswersAreIndependent(t *testing.T) {
	in := newInteraction(t, testSummary, StyleBoth)
	first, _ := in.Ask("diet")
	_, _ = in.Ask("Hello")
	_, _ = in.Press("general advice")
	again, _ := in.Ask("diet")
	if first != again {
		t.Fatalf("answer changed between identical questions")
	}
}

func TestNewInteractionRequiresSession(t *testing.T) {
	rs, _ := advice.DefaultRules()
	eng, _ := advice.NewEngine(rs, advice.Options{})
	if _, err := NewInteraction(nil, eng, StyleBoth); !errors.Is(err, ErrNoSummary) {
		t.Fatalf("err=%v", err)
	}
}

func TestParseAction(t *testing.T) {
	cases := map[string]advice.Category{
		"Prescription Advice":          advice.Prescription,
		"get_dietary_suggestions":      advice.Diet,
		"Get Exercise Recommendations": advice.Exercise,
		"general":                      advice.General,
	}
	for in, want := range cases {
		if got, ok := ParseAction(in); !ok || got != want {
			t.Fatalf("%q: got=%q ok=%v", in, got, ok)
		}
	}
}
