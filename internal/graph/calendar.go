package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// Calendar is one calendar belonging to the account.
type Calendar struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Event is a calendar event as donna sees it. Start and End carry the
// event's own embedded time zone; Calendar names the source calendar the
// event was fetched from.
type Event struct {
	ID        string
	Subject   string
	Start     time.Time
	End       time.Time
	TimeZone  string // the event's embedded zone name
	IsAllDay  bool
	Location  string
	Attendees []string
	Calendar  string
}

// graphDateTime is Graph's {dateTime, timeZone} pair. The dateTime field has
// no offset; the zone name disambiguates it.
type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type graphEvent struct {
	ID        string         `json:"id"`
	Subject   string         `json:"subject"`
	IsAllDay  bool           `json:"isAllDay"`
	Start     *graphDateTime `json:"start,omitempty"`
	End       *graphDateTime `json:"end,omitempty"`
	Location  *struct {
		DisplayName string `json:"displayName"`
	} `json:"location,omitempty"`
	Attendees []struct {
		EmailAddress struct {
			Address string `json:"address"`
		} `json:"emailAddress"`
	} `json:"attendees,omitempty"`
}

// ListCalendars enumerates all calendars on the account.
func (c *Client) ListCalendars(ctx context.Context) ([]Calendar, error) {
	data, err := c.request(ctx, "GET", c.userPath("/calendars"), nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Value []Calendar `json:"value"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse calendars response: %w", err)
	}
	return resp.Value, nil
}

// ListEvents retrieves events in [start, end) from one calendar. The
// calendarName is attached to each returned event as its source label.
func (c *Client) ListEvents(ctx context.Context, calendarID, calendarName string, start, end time.Time) ([]Event, error) {
	q := url.Values{}
	q.Set("startDateTime", start.Format(time.RFC3339))
	q.Set("endDateTime", end.Format(time.RFC3339))
	q.Set("$orderby", "start/dateTime")
	q.Set("$top", "100")

	path := fmt.Sprintf("%s/calendars/%s/calendarView?%s",
		c.userPath(""), url.PathEscape(calendarID), q.Encode())
	data, err := c.request(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Value []graphEvent `json:"value"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse events response: %w", err)
	}

	events := make([]Event, 0, len(resp.Value))
	for _, item := range resp.Value {
		ev, err := convertEvent(&item, calendarName)
		if err != nil {
			continue // skip malformed events
		}
		events = append(events, ev)
	}
	return events, nil
}

// CreateEventParams for creating a new event. Start and End carry the home
// zone as their location; that zone is sent as the event's zone.
type CreateEventParams struct {
	Subject   string
	Start     time.Time
	End       time.Time
	Attendees []string
	Location  string
}

// CreateEvent creates an event on the default calendar.
func (c *Client) CreateEvent(ctx context.Context, params CreateEventParams) (*Event, error) {
	zone := params.Start.Location().String()
	body := map[string]any{
		"subject": params.Subject,
		"start": map[string]string{
			"dateTime": params.Start.Format("2006-01-02T15:04:05"),
			"timeZone": zone,
		},
		"end": map[string]string{
			"dateTime": params.End.Format("2006-01-02T15:04:05"),
			"timeZone": zone,
		},
	}
	if params.Location != "" {
		body["location"] = map[string]string{"displayName": params.Location}
	}
	if len(params.Attendees) > 0 {
		attendees := make([]map[string]any, len(params.Attendees))
		for i, email := range params.Attendees {
			attendees[i] = map[string]any{
				"emailAddress": map[string]string{"address": email},
				"type":         "required",
			}
		}
		body["attendees"] = attendees
	}

	data, err := c.request(ctx, "POST", c.userPath("/events"), body)
	if err != nil {
		return nil, err
	}

	var item graphEvent
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("parse created event: %w", err)
	}

	ev, err := convertEvent(&item, "")
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// DeleteEvent removes an event by id.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	_, err := c.request(ctx, "DELETE", c.userPath("/events/"+url.PathEscape(eventID)), nil)
	return err
}

// convertEvent converts a Graph event to our Event type.
func convertEvent(item *graphEvent, calendarName string) (Event, error) {
	ev := Event{
		ID:       item.ID,
		Subject:  item.Subject,
		IsAllDay: item.IsAllDay,
		Calendar: calendarName,
	}

	if item.Start == nil || item.End == nil {
		return Event{}, fmt.Errorf("event %s has no start/end", item.ID)
	}

	start, zone, err := parseGraphTime(item.Start)
	if err != nil {
		return Event{}, fmt.Errorf("parse start: %w", err)
	}
	end, _, err := parseGraphTime(item.End)
	if err != nil {
		return Event{}, fmt.Errorf("parse end: %w", err)
	}
	ev.Start = start
	ev.End = end
	ev.TimeZone = zone

	if item.Location != nil {
		ev.Location = item.Location.DisplayName
	}
	for _, a := range item.Attendees {
		if a.EmailAddress.Address != "" {
			ev.Attendees = append(ev.Attendees, a.EmailAddress.Address)
		}
	}
	return ev, nil
}

// parseGraphTime interprets a Graph {dateTime, timeZone} pair as an instant.
// Unknown zone names fall back to UTC rather than dropping the event.
func parseGraphTime(dt *graphDateTime) (time.Time, string, error) {
	loc, err := time.LoadLocation(normalizeZone(dt.TimeZone))
	if err != nil {
		loc = time.UTC
	}

	for _, layout := range []string{
		"2006-01-02T15:04:05.0000000",
		"2006-01-02T15:04:05",
		time.RFC3339,
	} {
		if t, err := time.ParseInLocation(layout, dt.DateTime, loc); err == nil {
			return t, loc.String(), nil
		}
	}
	return time.Time{}, "", fmt.Errorf("unparseable dateTime %q", dt.DateTime)
}

// normalizeZone maps the Windows zone names Graph sometimes returns onto
// IANA names time.LoadLocation understands.
func normalizeZone(name string) string {
	switch name {
	case "", "UTC":
		return "UTC"
	case "Pacific Standard Time":
		return "America/Los_Angeles"
	case "Mountain Standard Time":
		return "America/Denver"
	case "Central Standard Time":
		return "America/Chicago"
	case "Eastern Standard Time":
		return "America/New_York"
	case "GMT Standard Time":
		return "Europe/London"
	case "W. Europe Standard Time":
		return "Europe/Berlin"
	}
	return name
}
