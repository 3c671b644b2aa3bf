package notice

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	videoMarker   = regexp.MustCompile(`(?i)[\s\-:]*\(?\bVIDEO\s*CONFERENCE\)?[\s.]*$`)
	lengthPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)`)
)

// Parser turns raw notice text into a HearingNotice.
type Parser struct {
	extractor *Extractor
	loc       *time.Location
	logger    *slog.Logger
}

// NewParser creates a parser over a compiled rule table. Hearing dates are
// interpreted in loc.
func NewParser(ext *Extractor, loc *time.Location, logger *slog.Logger) *Parser {
	if loc == nil {
		loc = time.Local
	}
	return &Parser{extractor: ext, loc: loc, logger: logger}
}

// NewDefaultParser builds a parser with DefaultRules.
func NewDefaultParser(loc *time.Location, logger *slog.Logger) *Parser {
	ext, err := NewExtractor(DefaultRules())
	if err != nil {
		// The default table is static; a compile error here is a programming bug.
		panic(err)
	}
	return NewParser(ext, loc, logger)
}

// Location returns the time zone hearing dates are normalized into.
func (p *Parser) Location() *time.Location {
	return p.loc
}

// Parse extracts a HearingNotice from raw text. It fails with a *MissingFieldError
// only when the applicant, date or time is absent; every other field degrades to empty.
// A date/time that cannot be combined yields a notice with a nil HearingDate.
func (p *Parser) Parse(raw string) (*HearingNotice, error) {
	ext := p.extractor

	applicant, ok := ext.Extract(raw, FieldApplicant)
	if !ok {
		return nil, p.missing(FieldApplicant, raw)
	}
	date, ok := ext.Extract(raw, FieldDate)
	if !ok {
		return nil, p.missing(FieldDate, raw)
	}
	clock, ok := ext.Extract(raw, FieldTime)
	if !ok {
		return nil, p.missing(FieldTime, raw)
	}

	n := &HearingNotice{
		RawText:              raw,
		ApplicantName:        applicant,
		HearingStatus:        StatusScheduled,
		CaseNumbers:          ext.ExtractList(raw, FieldCaseNumbers),
		Employers:            ext.ExtractList(raw, FieldEmployers),
		DateRaw:              date,
		TimeOfHearingRaw:     clock,
		LengthOfHearingHours: DefaultLengthHours,
	}
	n.Judge, _ = ext.Extract(raw, FieldJudge)
	n.Insurer, _ = ext.Extract(raw, FieldInsurer)
	n.TypeOfHearing, _ = ext.Extract(raw, FieldHearingType)
	n.Notes, _ = ext.Extract(raw, FieldNotes)

	if block, ok := ext.Extract(raw, FieldLocation); ok {
		n.LocationDetails = strings.TrimSpace(videoMarker.ReplaceAllString(block, ""))
		n.Location = firstLine(n.LocationDetails)
	}
	if v, ok := ext.Extract(raw, FieldLength); ok {
		if m := lengthPattern.FindString(v); m != "" {
			if h, err := strconv.ParseFloat(m, 64); err == nil && h > 0 {
				n.LengthOfHearingHours = h
			}
		}
	}
	if v, ok := ext.Extract(raw, FieldStatus); ok {
		n.HearingStatus = parseStatus(v)
	}

	t, err := NormalizeDateTime(date, clock, p.loc)
	if err != nil {
		n.DateIssue = err.Error()
		p.logger.Warn("hearing date needs manual entry",
			"applicant", applicant,
			"date", date,
			"time", clock,
			"error", err,
		)
	} else {
		n.HearingDate = &t
	}

	p.logger.Debug("notice parsed",
		"applicant", applicant,
		"case_numbers", len(n.CaseNumbers),
		"has_date", n.HearingDate != nil,
	)
	return n, nil
}

func (p *Parser) missing(field, raw string) error {
	p.logger.Warn("notice missing required field", "field", field, "text_len", len(raw))
	return &MissingFieldError{Field: field}
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if l := strings.TrimSpace(line); l != "" {
			return l
		}
	}
	return ""
}

func parseStatus(v string) HearingStatus {
	v = strings.ToLower(v)
	switch {
	case strings.Contains(v, "continu"):
		return StatusContinued
	case strings.Contains(v, "vacat"), strings.Contains(v, "off calendar"):
		return StatusVacated
	case strings.Contains(v, "complet"):
		return StatusCompleted
	default:
		return StatusScheduled
	}
}
