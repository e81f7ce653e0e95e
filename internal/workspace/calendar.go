// internal/workspace/calendar.go
package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Event is the payload for creating a calendar event. Start and End are
// RFC3339 with timezone offset.
type Event struct {
	Summary     string
	Description string
	Location    string
	Start       string
	End         string
	Attendees   []string
}

// CreatedEvent is what InsertEvent returns.
type CreatedEvent struct {
	ID       string
	Summary  string
	HTMLLink string
}

// EventSummary is one agenda entry.
type EventSummary struct {
	Summary   string
	StartTime string
}

type calendarAttendee struct {
	Email string `json:"email"`
}

type calendarDateTime struct {
	DateTime string `json:"dateTime"`
}

type reminderOverride struct {
	Method  string `json:"method"`
	Minutes int    `json:"minutes"`
}

type calendarEventBody struct {
	Summary     string             `json:"summary"`
	Description string             `json:"description,omitempty"`
	Location    string             `json:"location,omitempty"`
	Start       calendarDateTime   `json:"start"`
	End         calendarDateTime   `json:"end"`
	Attendees   []calendarAttendee `json:"attendees,omitempty"`
	Reminders   struct {
		UseDefault bool               `json:"useDefault"`
		Overrides  []reminderOverride `json:"overrides"`
	} `json:"reminders"`
}

// InsertEvent creates ev on the primary calendar, notifying attendees.
func (c *Client) InsertEvent(ctx context.Context, ev Event) (*CreatedEvent, error) {
	body := calendarEventBody{
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       calendarDateTime{DateTime: ev.Start},
		End:         calendarDateTime{DateTime: ev.End},
	}
	for _, email := range ev.Attendees {
		body.Attendees = append(body.Attendees, calendarAttendee{Email: email})
	}
	body.Reminders.UseDefault = false
	body.Reminders.Overrides = []reminderOverride{
		{Method: "popup", Minutes: 10},
		{Method: "email", Minutes: 30},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	u := c.calendarBase + "/calendars/primary/events?sendUpdates=all"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	respBody, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var created struct {
		ID       string `json:"id"`
		Summary  string `json:"summary"`
		HTMLLink string `json:"htmlLink"`
	}
	if err := json.Unmarshal(respBody, &created); err != nil {
		return nil, fmt.Errorf("parse created event: %w", err)
	}
	return &CreatedEvent{ID: created.ID, Summary: created.Summary, HTMLLink: created.HTMLLink}, nil
}

// ListUpcoming returns up to max events between from and to, ordered by
// start time.
func (c *Client) ListUpcoming(ctx context.Context, from, to time.Time, max int) ([]EventSummary, error) {
	q := url.Values{}
	q.Set("timeMin", from.Format(time.RFC3339))
	q.Set("timeMax", to.Format(time.RFC3339))
	q.Set("maxResults", strconv.Itoa(max))
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")

	u := c.calendarBase + "/calendars/primary/events?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	respBody, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var list struct {
		Items []struct {
			Summary string `json:"summary"`
			Start   struct {
				DateTime string `json:"dateTime"`
				Date     string `json:"date"`
			} `json:"start"`
		} `json:"items"`
	}
	if err := json.Unmarshal(respBody, &list); err != nil {
		return nil, fmt.Errorf("parse event list: %w", err)
	}

	events := make([]EventSummary, 0, len(list.Items))
	for _, item := range list.Items {
		startTime := ""
		if item.Start.DateTime != "" {
			if t, err := time.Parse(time.RFC3339, item.Start.DateTime); err == nil {
				startTime = t.Format("15:04")
			}
		} else if item.Start.Date != "" {
			startTime = "dia todo"
		}
		events = append(events, EventSummary{Summary: item.Summary, StartTime: startTime})
	}
	return events, nil
}
