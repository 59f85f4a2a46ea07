package advice

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Rule maps a set of trigger phrases to one advice fragment.
type Rule struct {
	Category Category
	Triggers []string
	Fragment string
}

// StaticAdvice is the fixed content used when matching is turned off.
type StaticAdvice struct {
	Overview string
	Sections map[Category]string
}

// RuleSet is an immutable ordered rule table.
type RuleSet struct {
	rules  []Rule
	static StaticAdvice
}

type rulesFile struct {
	Rules []struct {
		Category string   `yaml:"category"`
		Triggers []string `yaml:"triggers"`
		Fragment string   `yaml:"fragment"`
	} `yaml:"rules"`
	Static struct {
		Overview     string `yaml:"overview"`
		Prescription string `yaml:"prescription"`
		Diet         string `yaml:"diet"`
		Exercise     string `yaml:"exercise"`
		General      string `yaml:"general"`
	} `yaml:"static"`
}

var (
	defaultOnce  sync.Once
	defaultRules *RuleSet
	defaultErr   error
)

// DefaultRules returns the embedded rule table.
func DefaultRules() (*RuleSet, error) {
	defaultOnce.Do(func() {
		defaultRules, defaultErr = ParseRules(defaultRulesYAML)
	})
	return defaultRules, defaultErr
}

// LoadRules reads a rule table from path, or the embedded table when path is empty.
func LoadRules(path string) (*RuleSet, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultRules()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read advice rules: %w", err)
	}
	rs, err := ParseRules(b)
	if err != nil {
		return nil, fmt.Errorf("advice rules %s: %w", path, err)
	}
	return rs, nil
}

func ParseRules(b []byte) (*RuleSet, error) {
	var f rulesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, errors.New("rule table is empty")
	}

	rs := &RuleSet{rules: make([]Rule, 0, len(f.Rules))}
	for i, r := range f.Rules {
		cat, ok := ParseCategory(r.Category)
		if !ok {
			return nil, fmt.Errorf("rule %d: unknown category %q", i, r.Category)
		}
		frag := strings.TrimSpace(r.Fragment)
		if frag == "" {
			return nil, fmt.Errorf("rule %d: fragment is empty", i)
		}
		var triggers []string
		for _, t := range r.Triggers {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				triggers = append(triggers, t)
			}
		}
		if len(triggers) == 0 {
			return nil, fmt.Errorf("rule %d: at least one trigger is required", i)
		}
		rs.rules = append(rs.rules, Rule{Category: cat, Triggers: triggers, Fragment: frag})
	}

	rs.static = StaticAdvice{
		Overview: strings.TrimSpace(f.Static.Overview),
		Sections: map[Category]string{
			Prescription: strings.TrimSpace(f.Static.Prescription),
			Diet:         strings.TrimSpace(f.Static.Diet),
			Exercise:     strings.TrimSpace(f.Static.Exercise),
			General:      strings.TrimSpace(f.Static.General),
		},
	}
	return rs, nil
}

// Rules returns a copy of the table.
func (rs *RuleSet) Rules() []Rule {
	out := make([]Rule, len(rs.rules))
	for i, r := range rs.rules {
		r.Triggers = append([]string(nil), r.Triggers...)
		out[i] = r
	}
	return out
}

func (rs *RuleSet) Len() int { return len(rs.rules) }
