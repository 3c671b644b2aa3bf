package notice

import (
	"fmt"
	"regexp"
	"strings"
)

type compiledRule struct {
	Rule
	label *regexp.Regexp
}

// Extractor pulls labeled fields out of raw notice text using a RuleSet.
// It is safe for concurrent use.
type Extractor struct {
	rules   map[string]compiledRule
	labels  []*regexp.Regexp
	footers []*regexp.Regexp
}

// NewExtractor compiles a rule table. Invalid patterns are reported here so
// extraction itself can never fail.
func NewExtractor(rs RuleSet) (*Extractor, error) {
	e := &Extractor{rules: make(map[string]compiledRule, len(rs.Rules))}

	for _, r := range rs.Rules {
		// A label counts only at the start of a line or after a column gap
		// (a tab or two spaces), so "arrive on time:" inside a comment block
		// is not a label.
		pattern := `(?i:(?:^|\t|[ \t]{2,})[ \t]*(?:` + r.Label + `))`
		if r.Inline {
			pattern = `(?:` + pattern + `|[ ](?:` + r.Label + `))`
		}
		re, err := regexp.Compile(`(?m)` + pattern + `[ \t]*:`)
		if err != nil {
			return nil, fmt.Errorf("compile label for %s: %w", r.Field, err)
		}
		e.rules[r.Field] = compiledRule{Rule: r, label: re}
		e.labels = append(e.labels, re)
	}

	for _, f := range rs.Footers {
		re, err := regexp.Compile(`(?i)` + f)
		if err != nil {
			return nil, fmt.Errorf("compile footer %q: %w", f, err)
		}
		e.footers = append(e.footers, re)
	}

	return e, nil
}

// Extract returns the trimmed value for field, or false when the rule does not match
// or the captured value is empty.
func (e *Extractor) Extract(text, field string) (string, bool) {
	r, ok := e.rules[field]
	if !ok {
		return "", false
	}

	loc := r.label.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	rest := text[loc[1]:]

	var value string
	switch r.Kind {
	case KindBlock:
		value = rest[:e.blockEnd(rest)]
	default:
		line := rest
		if i := strings.IndexByte(line, '\n'); i >= 0 {
			line = line[:i]
		}
		value = line[:e.nextLabel(line)]
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// ExtractList splits a field's value on commas, dropping empty entries.
// Order is preserved as it appears in the text.
func (e *Extractor) ExtractList(text, field string) []string {
	raw, ok := e.Extract(text, field)
	if !ok {
		return nil
	}
	if r := e.rules[field]; !r.Split {
		return []string{raw}
	}

	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// nextLabel returns the offset of the first known label in s, or len(s).
func (e *Extractor) nextLabel(s string) int {
	end := len(s)
	for _, re := range e.labels {
		if loc := re.FindStringIndex(s); loc != nil && loc[0] < end {
			end = loc[0]
		}
	}
	return end
}

// blockEnd returns the offset where a block value stops: the next label or footer marker.
func (e *Extractor) blockEnd(s string) int {
	end := e.nextLabel(s)
	for _, re := range e.footers {
		if loc := re.FindStringIndex(s); loc != nil && loc[0] < end {
			end = loc[0]
		}
	}
	return end
}
