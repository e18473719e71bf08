package dispatch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/donnabot/donna/internal/graph"
	"github.com/donnabot/donna/internal/logging"
)

// todayWindow returns today's bounds in the operator's home zone: midnight
// through 23:59:59.999. Never UTC and never an event's own zone. The end is
// computed from the next calendar day, not by adding 24h, so DST-transition
// days keep their full 23- or 25-hour span.
func (e *Executor) todayWindow() (time.Time, time.Time) {
	now := e.now().In(e.home)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, e.home)
	end := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, e.home).Add(-time.Millisecond)
	return start, end
}

// fetchToday enumerates all calendars, fetches each one's events for today,
// and returns the merged list sorted by start instant. Events are always
// re-fetched; nothing is cached across actions.
func (e *Executor) fetchToday(ctx context.Context) ([]graph.Event, error) {
	calendars, err := e.calendar.ListCalendars(ctx)
	if err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}

	start, end := e.todayWindow()
	var merged []graph.Event
	for _, cal := range calendars {
		events, err := e.calendar.ListEvents(ctx, cal.ID, cal.Name, start, end)
		if err != nil {
			return nil, fmt.Errorf("list events for %s: %w", cal.Name, err)
		}
		merged = append(merged, events...)
	}

	// Sort on the normalized instant, not on rendered strings: events carry
	// different embedded zones and string order would mis-sort them.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Start.Before(merged[j].Start)
	})
	return merged, nil
}

// matchesTime reports whether a natural-language time fragment matches the
// event's start rendered on a 12-hour clock in the home zone. Rendering and
// fragment are compared with spaces and case stripped so "3pm", "3 PM" and
// "3:00 PM" all meet at an on-the-hour event.
func (e *Executor) matchesTime(ev graph.Event, fragment string) bool {
	if fragment == "" {
		return false
	}
	local := ev.Start.In(e.home)
	frag := squash(fragment)

	renderings := []string{local.Format("3:04 PM")}
	if local.Minute() == 0 {
		renderings = append(renderings, local.Format("3 PM"))
	}
	for _, r := range renderings {
		if strings.Contains(squash(r), frag) {
			return true
		}
	}
	return false
}

// matchesSubject is a case-insensitive substring test on the event subject.
func matchesSubject(ev graph.Event, keyword string) bool {
	if keyword == "" {
		return false
	}
	return strings.Contains(strings.ToLower(ev.Subject), strings.ToLower(keyword))
}

// matchEvents applies the permissive OR policy: an event matches if either
// supplied criterion matches. Criteria order does not affect the result.
func (e *Executor) matchEvents(events []graph.Event, timeFragment, subject string) []graph.Event {
	var matched []graph.Event
	for _, ev := range events {
		if e.matchesTime(ev, timeFragment) || matchesSubject(ev, subject) {
			matched = append(matched, ev)
		}
	}
	return matched
}

func squash(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, " ", ""))
}

// describeEvent renders one event line in the home zone.
func (e *Executor) describeEvent(ev graph.Event) string {
	var when string
	if ev.IsAllDay {
		when = "All day"
	} else {
		when = ev.Start.In(e.home).Format("3:04 PM")
	}
	line := fmt.Sprintf("%s - %s", when, ev.Subject)
	if ev.Calendar != "" {
		line += fmt.Sprintf(" [%s]", ev.Calendar)
	}
	if ev.Location != "" {
		line += " @ " + ev.Location
	}
	return line
}

// --- handlers ---

func (e *Executor) viewCalendar(ctx context.Context, d Decision) (string, error) {
	events, err := e.fetchToday(ctx)
	if err != nil {
		return "", err
	}
	if len(events) == 0 {
		return "Nothing on the calendar today.", nil
	}

	var b strings.Builder
	b.WriteString("Today's schedule:\n")
	for _, ev := range events {
		b.WriteString(e.describeEvent(ev) + "\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (e *Executor) createEvent(ctx context.Context, d Decision) (string, error) {
	subject := stringParam(d.Params, "subject")
	if subject == "" {
		return "", fmt.Errorf("no event subject given")
	}

	clock := stringParam(d.Params, "time")
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return "", fmt.Errorf("couldn't understand the time %q (need HH:MM)", clock)
	}

	day, substituted := e.resolveDate(stringParam(d.Params, "date"))
	start := time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, e.home)
	end := start.Add(time.Hour) // default duration

	created, err := e.calendar.CreateEvent(ctx, graph.CreateEventParams{
		Subject:   subject,
		Start:     start,
		End:       end,
		Attendees: stringSliceParam(d.Params, "attendees"),
		Location:  stringParam(d.Params, "location"),
	})
	if err != nil {
		return "", err
	}

	msg := fmt.Sprintf("Created %q on %s at %s",
		created.Subject, start.Format("Mon Jan 2"), start.Format("3:04 PM"))
	if substituted {
		msg += fmt.Sprintf("\n(I couldn't parse the date %q, so I used today.)", stringParam(d.Params, "date"))
	}
	return msg, nil
}

// resolveDate accepts "today"/"tomorrow" and common date layouts; anything
// unparseable falls back to today, with the substitution reported to the
// operator rather than failing the turn.
func (e *Executor) resolveDate(date string) (time.Time, bool) {
	today := e.now().In(e.home)
	switch strings.ToLower(date) {
	case "", "today":
		return today, false
	case "tomorrow":
		return today.AddDate(0, 0, 1), false
	}

	for _, layout := range []string{"2006-01-02", "Jan 2 2006", "January 2 2006", "2 Jan 2006"} {
		if d, err := time.ParseInLocation(layout, date, e.home); err == nil {
			return d, false
		}
	}
	logging.Debug("dispatch", "unparseable date %q, substituting today", date)
	return today, true
}

func (e *Executor) deleteEvent(ctx context.Context, d Decision) (string, error) {
	timeFragment := stringParam(d.Params, "time")
	subject := stringParam(d.Params, "subject")
	if timeFragment == "" && subject == "" {
		return "", fmt.Errorf("need a time or a subject to find the event")
	}

	events, err := e.fetchToday(ctx)
	if err != nil {
		return "", err
	}

	matched := e.matchEvents(events, timeFragment, subject)
	switch len(matched) {
	case 0:
		return "No matching event found on today's calendar.", nil
	case 1:
		ev := matched[0]
		if err := e.calendar.DeleteEvent(ctx, ev.ID); err != nil {
			return "", fmt.Errorf("delete %q: %w", ev.Subject, err)
		}
		return fmt.Sprintf("Deleted %q (%s).", ev.Subject, ev.Start.In(e.home).Format("3:04 PM")), nil
	}

	// Multiple matches: delete nothing, enumerate, and let the follow-up
	// turn resolve it (the classifier recovers a delete_multiple decision
	// from this reply in the conversation history).
	var b strings.Builder
	fmt.Fprintf(&b, "I found %d matching events:\n", len(matched))
	for _, ev := range matched {
		b.WriteString(e.describeEvent(ev) + "\n")
	}
	b.WriteString("Which should I delete? (say \"all\" to delete every one)")
	return b.String(), nil
}

func (e *Executor) deleteMultiple(ctx context.Context, d Decision) (string, error) {
	subject := stringParam(d.Params, "subject")
	if subject == "" {
		return "", fmt.Errorf("need a subject to find the events")
	}

	events, err := e.fetchToday(ctx)
	if err != nil {
		return "", err
	}

	// Subject matching only; a time fragment never scopes a batch delete.
	var candidates []graph.Event
	for _, ev := range events {
		if matchesSubject(ev, subject) {
			candidates = append(candidates, ev)
		}
	}
	if len(candidates) == 0 {
		return fmt.Sprintf("No events matching %q on today's calendar.", subject), nil
	}

	// Sequential deletes with independent failures: a partial batch is
	// reported as counts, never aborted on the first error.
	deleted := 0
	for _, ev := range candidates {
		if err := e.calendar.DeleteEvent(ctx, ev.ID); err != nil {
			logging.Warn("dispatch", "delete %s failed: %v", ev.ID, err)
			continue
		}
		deleted++
	}

	if deleted == len(candidates) {
		return fmt.Sprintf("Deleted all %d events matching %q.", deleted, subject), nil
	}
	return fmt.Sprintf("Deleted %d of %d events matching %q; the rest failed.", deleted, len(candidates), subject), nil
}
