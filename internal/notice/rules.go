package notice

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Field names understood by the parser.
const (
	FieldApplicant   = "applicant"
	FieldDate        = "date"
	FieldTime        = "time"
	FieldJudge       = "judge"
	FieldCaseNumbers = "case_numbers"
	FieldEmployers   = "employers"
	FieldInsurer     = "insurer"
	FieldHearingType = "hearing_type"
	FieldLocation    = "location"
	FieldNotes       = "notes"
	FieldLength      = "length"
	FieldStatus      = "status"
)

var knownFields = map[string]bool{
	FieldApplicant: true, FieldDate: true, FieldTime: true, FieldJudge: true,
	FieldCaseNumbers: true, FieldEmployers: true, FieldInsurer: true,
	FieldHearingType: true, FieldLocation: true, FieldNotes: true,
	FieldLength: true, FieldStatus: true,
}

// RuleKind selects how far a captured value extends.
type RuleKind string

const (
	// KindLine captures to the end of the line (or the next label on that line).
	KindLine RuleKind = "line"
	// KindBlock captures until the next known label or a page-footer marker.
	KindBlock RuleKind = "block"
)

// Rule describes how one field is found in notice text.
// Label is a regular expression for the label text without the trailing colon.
// An Inline label is also recognized after a single space when written exactly
// as the pattern spells it, for fields that share a line with another field.
type Rule struct {
	Field  string   `yaml:"field"`
	Label  string   `yaml:"label"`
	Kind   RuleKind `yaml:"kind"`
	Split  bool     `yaml:"split,omitempty"`
	Inline bool     `yaml:"inline,omitempty"`
}

// RuleSet is the data-driven extraction table for one notice template.
// Footers are regular expressions marking page boilerplate that block rules must not consume.
type RuleSet struct {
	Rules   []Rule   `yaml:"rules"`
	Footers []string `yaml:"footers"`
}

// DefaultRules returns the rule table for the standard WCAB notice of hearing.
func DefaultRules() RuleSet {
	return RuleSet{
		Rules: []Rule{
			{Field: FieldApplicant, Label: `APPLICANT(?:\s+NAME)?|INJURED\s+WORKER|EMPLOYEE`, Kind: KindLine},
			{Field: FieldDate, Label: `(?:HEARING\s+)?DATE(?:\s+OF\s+HEARING)?`, Kind: KindLine},
			{Field: FieldTime, Label: `(?:HEARING\s+)?TIME(?:\s+OF\s+HEARING)?`, Kind: KindLine, Inline: true},
			{Field: FieldJudge, Label: `JUDGE|WCJ|HEARING\s+OFFICER`, Kind: KindLine},
			{Field: FieldCaseNumbers, Label: `CASE\s+(?:NUMBERS?|NOS?\.?)(?:\(S\))?`, Kind: KindLine, Split: true},
			{Field: FieldEmployers, Label: `EMPLOYERS?(?:\(S\))?`, Kind: KindLine, Split: true},
			{Field: FieldInsurer, Label: `INSURANCE\s+CARRIER|INSURER|CLAIMS\s+ADMINISTRATOR`, Kind: KindLine},
			{Field: FieldHearingType, Label: `TYPE\s+OF\s+HEARING|HEARING\s+TYPE`, Kind: KindLine},
			{Field: FieldLocation, Label: `(?:HEARING\s+)?LOCATION|PLACE\s+OF\s+HEARING`, Kind: KindBlock},
			{Field: FieldNotes, Label: `SPECIAL\s+(?:COMMENTS|INSTRUCTIONS)(?:\s*/\s*(?:COMMENTS|INSTRUCTIONS))?`, Kind: KindBlock},
			{Field: FieldLength, Label: `LENGTH\s+OF\s+HEARING`, Kind: KindLine},
			{Field: FieldStatus, Label: `(?:HEARING\s+)?STATUS`, Kind: KindLine},
		},
		Footers: []string{
			`(?m)^[ \t]*NOTICE\s+TO\s+INJURED\s+WORKERS?`,
			`\bDWC[ -]?WCAB\s+FORM\b`,
			`\(REV\.?\s*\d`,
			`(?m)^[ \t]*PAGE\s+\d+\s+OF\s+\d+`,
		},
	}
}

// LoadRules reads a YAML rule table and merges it over DefaultRules.
// A rule for a field already in the table replaces it; footers are appended.
func LoadRules(path string) (RuleSet, error) {
	rs := DefaultRules()
	if path == "" {
		return rs, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("read rules: %w", err)
	}

	var overlay RuleSet
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return RuleSet{}, fmt.Errorf("parse rules: %w", err)
	}

	for _, r := range overlay.Rules {
		if !knownFields[r.Field] {
			return RuleSet{}, fmt.Errorf("rule for unknown field %q", r.Field)
		}
		if r.Kind == "" {
			r.Kind = KindLine
		}
		if r.Kind != KindLine && r.Kind != KindBlock {
			return RuleSet{}, fmt.Errorf("rule %q: unknown kind %q", r.Field, r.Kind)
		}
		replaced := false
		for i := range rs.Rules {
			if rs.Rules[i].Field == r.Field {
				rs.Rules[i] = r
				replaced = true
				break
			}
		}
		if !replaced {
			rs.Rules = append(rs.Rules, r)
		}
	}
	rs.Footers = append(rs.Footers, overlay.Footers...)

	return rs, nil
}
