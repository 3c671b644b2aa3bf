package calendar

import (
	"time"

	ical "github.com/arran4/golang-ical"
)

const productID = "-//bailiff//hearing export//EN"

// ExportICS renders events as an iCalendar document. Events without an ID get
// a UID derived from their start time so the output is still valid.
func ExportICS(events []Event, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	for _, e := range events {
		uid := e.ID
		if uid == "" {
			uid = "hearing-" + e.Start.UTC().Format("20060102T150405Z")
		}
		ve := cal.AddEvent(uid + "@bailiff")
		ve.SetDtStampTime(stamp)
		ve.SetStartAt(e.Start)
		ve.SetEndAt(e.End)
		ve.SetSummary(e.Summary)
		if e.Description != "" {
			ve.SetDescription(e.Description)
		}
		if e.Location != "" {
			ve.SetLocation(e.Location)
		}
		if e.Status == StatusCancelled {
			ve.SetProperty(ical.ComponentPropertyStatus, "CANCELLED")
		} else {
			ve.SetProperty(ical.ComponentPropertyStatus, "CONFIRMED")
		}
	}

	return cal.Serialize()
}
