package advice

import "strings"

type Category string

const (
	Prescription Category = "prescription"
	Diet         Category = "diet"
	Exercise     Category = "exercise"
	General      Category = "general"
)

// Categories returns the categories in display order.
func Categories() []Category {
	return []Category{Prescription, Diet, Exercise, General}
}

func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case Prescription, Diet, Exercise, General:
		return c, true
	default:
		return "", false
	}
}

// Heading introduces a category's advice when it is shown to the user.
func (c Category) Heading() string {
	switch c {
	case Prescription:
		return "As your healthcare assistant, here are possible prescription suggestions:"
	case Diet:
		return "Based on the health report, here are dietary adjustments:"
	case Exercise:
		return "Here are exercise recommendations suitable for your condition:"
	case General:
		return "General health advice for ongoing wellness:"
	default:
		return ""
	}
}

// Label is the short button caption.
func (c Category) Label() string {
	switch c {
	case Prescription:
		return "Prescription advice"
	case Diet:
		return "Diet"
	case Exercise:
		return "Exercise"
	case General:
		return "General advice"
	default:
		return string(c)
	}
}
