package advice

import (
	"errors"
	"fmt"
	"strings"
)

type Mode string

const (
	ModeKeyword Mode = "keyword"
	ModeStatic  Mode = "static"
)

// Placeholder is shown for a category that derived no advice.
const Placeholder = "No specific advice for this category based on your report."

// Record is the per-category advice derived from one summary. Overview is
// only set in static mode.
type Record struct {
	Mode         Mode   `json:"mode"`
	Overview     string `json:"overview,omitempty"`
	Prescription string `json:"prescription"`
	Diet         string `json:"diet"`
	Exercise     string `json:"exercise"`
	General      string `json:"general"`
}

// Get returns the raw, possibly empty, text for cat.
func (r Record) Get(cat Category) string {
	switch cat {
	case Prescription:
		return r.Prescription
	case Diet:
		return r.Diet
	case Exercise:
		return r.Exercise
	case General:
		return r.General
	default:
		return ""
	}
}

// Text returns the display text for cat, substituting Placeholder when empty.
func (r Record) Text(cat Category) string {
	if s := r.Get(cat); s != "" {
		return s
	}
	return Placeholder
}

func (r Record) Empty() bool {
	return r.Prescription == "" && r.Diet == "" && r.Exercise == "" && r.General == ""
}

func (r *Record) append(cat Category, frag string) {
	var dst *string
	switch cat {
	case Prescription:
		dst = &r.Prescription
	case Diet:
		dst = &r.Diet
	case Exercise:
		dst = &r.Exercise
	case General:
		dst = &r.General
	default:
		return
	}
	if *dst == "" {
		*dst = frag
		return
	}
	*dst += "\n" + frag
}

type Options struct {
	Mode Mode
	// Dedupe emits each rule's fragment at most once. Without it a rule
	// contributes once per matching trigger phrase.
	Dedupe bool
}

// Engine derives advice from summary text. It holds no mutable state and is
// safe for concurrent use.
type Engine struct {
	rules  *RuleSet
	mode   Mode
	dedupe bool
}

func NewEngine(rules *RuleSet, opts Options) (*Engine, error) {
	if rules == nil {
		return nil, errors.New("advice: rule set required")
	}
	mode := Mode(strings.ToLower(strings.TrimSpace(string(opts.Mode))))
	switch mode {
	case "":
		mode = ModeKeyword
	case ModeKeyword, ModeStatic:
	default:
		return nil, fmt.Errorf("advice: unknown mode %q", opts.Mode)
	}
	return &Engine{rules: rules, mode: mode, dedupe: opts.Dedupe}, nil
}

func (e *Engine) Mode() Mode { return e.mode }

func (e *Engine) Derive(summary string) Record {
	if e.mode == ModeStatic {
		return e.static()
	}
	rec := Record{Mode: ModeKeyword}
	text := strings.ToLower(summary)
	for _, r := range e.rules.rules {
		for _, trigger := range r.Triggers {
			if !strings.Contains(text, trigger) {
				continue
			}
			rec.append(r.Category, r.Fragment)
			if e.dedupe {
				break
			}
		}
	}
	return rec
}

func (e *Engine) static() Record {
	s := e.rules.static
	return Record{
		Mode:         ModeStatic,
		Overview:     s.Overview,
		Prescription: s.Sections[Prescription],
		Diet:         s.Sections[Diet],
		Exercise:     s.Sections[Exercise],
		General:      s.Sections[General],
	}
}
