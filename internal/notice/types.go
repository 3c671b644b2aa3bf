package notice

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// HearingStatus is the lifecycle state of a hearing as reported by a notice.
type HearingStatus string

const (
	StatusScheduled HearingStatus = "scheduled"
	StatusContinued HearingStatus = "continued"
	StatusVacated   HearingStatus = "vacated"
	StatusCompleted HearingStatus = "completed"
)

// DefaultLengthHours is used when a notice does not state a hearing length.
const DefaultLengthHours = 1.0

var (
	// ErrMissingRequiredField aborts parsing: applicant, date and time are the minimum viable notice.
	ErrMissingRequiredField = errors.New("missing required field")
	// ErrDateNormalization is non-fatal: the notice is kept with a nil HearingDate.
	ErrDateNormalization = errors.New("date normalization failed")
)

// MissingFieldError names the required field that was not found.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingRequiredField, e.Field)
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingRequiredField }

// HearingNotice is the structured form of a single hearing notice.
// It is produced once per ingestion and treated as immutable afterwards.
type HearingNotice struct {
	RawText       string        `json:"raw_text"`
	ApplicantName string        `json:"applicant_name"`
	HearingDate   *time.Time    `json:"hearing_date,omitempty"`
	HearingStatus HearingStatus `json:"hearing_status"`

	Judge         string   `json:"judge,omitempty"`
	CaseNumbers   []string `json:"case_numbers"`
	Employers     []string `json:"employers"`
	Insurer       string   `json:"insurer,omitempty"`
	TypeOfHearing string   `json:"type_of_hearing,omitempty"`

	// DateRaw and TimeOfHearingRaw keep the source strings for display and manual review.
	DateRaw          string `json:"date_raw"`
	TimeOfHearingRaw string `json:"time_of_hearing_raw"`

	// Location is the first non-empty line of the location block;
	// LocationDetails is the whole block without the trailing VIDEOCONFERENCE marker.
	Location        string `json:"location,omitempty"`
	LocationDetails string `json:"location_details,omitempty"`

	Notes                string  `json:"notes,omitempty"`
	LengthOfHearingHours float64 `json:"length_of_hearing_hours"`

	// DateIssue is set when the date and time were present but could not be combined.
	DateIssue string `json:"date_issue,omitempty"`
}

// NeedsDateReview reports whether the notice parsed but its hearing date must be entered by hand.
func (n *HearingNotice) NeedsDateReview() bool {
	return n.HearingDate == nil
}

// Length returns the hearing duration, falling back to DefaultLengthHours.
func (n *HearingNotice) Length() time.Duration {
	h := n.LengthOfHearingHours
	if h <= 0 {
		h = DefaultLengthHours
	}
	return time.Duration(h * float64(time.Hour))
}

// CaseKey identifies the hearing a notice refers to: the applicant plus the
// case numbers, normalized so reordering or case changes map to the same key.
func (n *HearingNotice) CaseKey() string {
	cases := make([]string, 0, len(n.CaseNumbers))
	for _, c := range n.CaseNumbers {
		cases = append(cases, strings.ToUpper(strings.TrimSpace(c)))
	}
	sort.Strings(cases)
	name := strings.Join(strings.Fields(strings.ToLower(n.ApplicantName)), " ")
	return name + "|" + strings.Join(cases, ",")
}
