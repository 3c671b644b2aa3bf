package reconciler

import (
	"fmt"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/bailiff/internal/calendar"
	"github.com/MikeSquared-Agency/bailiff/internal/notice"
)

const (
	rawExcerptRunes  = 500
	notesHeader      = "NOTES:"
	originalHeader   = "ORIGINAL NOTICE:"
	previousHeader   = "PREVIOUS NOTES:"
	movedPrefix      = "MOVED FROM PREVIOUS DATE"
	rescheduledLabel = " (Rescheduled)"
	noNotes          = "None"
	displayLayout    = "01/02/2006 03:04 PM MST"
)

// Summary is the event title for a notice: applicant plus case numbers.
func Summary(n *notice.HearingNotice) string {
	if len(n.CaseNumbers) == 0 {
		return "Hearing: " + n.ApplicantName
	}
	return fmt.Sprintf("Hearing: %s (%s)", n.ApplicantName, strings.Join(n.CaseNumbers, ", "))
}

// BuildEvent renders a notice as a new calendar event. n.HearingDate must be set.
func BuildEvent(n *notice.HearingNotice, loc *time.Location) calendar.Event {
	start := n.HearingDate.In(loc)
	return calendar.Event{
		Summary:     Summary(n),
		Description: description(n, n.Notes),
		Location:    singleLine(n.LocationDetails),
		Start:       start,
		End:         start.Add(n.Length()),
	}
}

// rescheduledEvent renders the replacement for prior, carrying prior notes forward.
// It returns the notes the prior event carried.
func rescheduledEvent(n *notice.HearingNotice, prior calendar.Event, loc *time.Location) (calendar.Event, string) {
	e := BuildEvent(n, loc)
	history := noteHistory(prior.Description)

	current := strings.TrimSpace(n.Notes)
	notes := current
	if notes == "" {
		notes = noNotes
	}
	for _, block := range history {
		if block == current {
			continue
		}
		notes += "\n\n" + previousHeader + "\n" + block
	}

	e.Summary += rescheduledLabel
	e.Description = fmt.Sprintf("%s: %s\n\n%s", movedPrefix, prior.Start.In(loc).Format(displayLayout), description(n, notes))

	var previous string
	if len(history) > 0 {
		previous = history[0]
	}
	return e, previous
}

func description(n *notice.HearingNotice, notes string) string {
	var sb strings.Builder
	writeField(&sb, "Hearing Type", n.TypeOfHearing)
	writeField(&sb, "Judge", n.Judge)
	writeField(&sb, "Time", n.TimeOfHearingRaw)
	writeField(&sb, "Location", n.LocationDetails)
	writeField(&sb, "Case Numbers", strings.Join(n.CaseNumbers, ", "))
	writeField(&sb, "Employers", strings.Join(n.Employers, ", "))
	writeField(&sb, "Insurer", n.Insurer)

	if strings.TrimSpace(notes) == "" {
		notes = noNotes
	}
	fmt.Fprintf(&sb, "\n%s\n%s\n", notesHeader, strings.TrimSpace(notes))
	fmt.Fprintf(&sb, "\n%s\n%s", originalHeader, excerpt(n.RawText, rawExcerptRunes))
	return sb.String()
}

func writeField(sb *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(sb, "%s: %s\n", label, value)
}

// ExtractNotes returns the most recent notes a description carries. Descriptions
// not written by BuildEvent are returned whole, minus any moved-from line, since
// hand-entered events keep their instructions in free text.
func ExtractNotes(desc string) string {
	history := noteHistory(desc)
	if len(history) == 0 {
		return ""
	}
	return history[0]
}

// noteHistory splits a description into its distinct note blocks, newest first.
func noteHistory(desc string) []string {
	section, ok := notesSection(desc)
	if !ok {
		return appendDistinct(nil, dropMovedLine(desc))
	}
	var blocks []string
	for _, b := range strings.Split(section, previousHeader) {
		blocks = appendDistinct(blocks, b)
	}
	return blocks
}

func notesSection(desc string) (string, bool) {
	marker := "\n" + notesHeader + "\n"
	i := strings.Index(desc, marker)
	if i < 0 {
		return "", false
	}
	rest := desc[i+len(marker):]
	if j := strings.Index(rest, "\n"+originalHeader); j >= 0 {
		rest = rest[:j]
	}
	return rest, true
}

func dropMovedLine(desc string) string {
	desc = strings.TrimSpace(desc)
	if !strings.HasPrefix(desc, movedPrefix) {
		return desc
	}
	if i := strings.IndexByte(desc, '\n'); i >= 0 {
		return desc[i+1:]
	}
	return ""
}

func appendDistinct(blocks []string, b string) []string {
	b = strings.TrimSpace(b)
	if b == "" || b == noNotes {
		return blocks
	}
	for _, have := range blocks {
		if have == b {
			return blocks
		}
	}
	return append(blocks, b)
}

func excerpt(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func singleLine(s string) string {
	var parts []string
	for _, line := range strings.Split(s, "\n") {
		if l := strings.TrimSpace(line); l != "" {
			parts = append(parts, l)
		}
	}
	return strings.Join(parts, ", ")
}
