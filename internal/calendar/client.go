package calendar

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/teemow/workspace-mcp/internal/google"
	"github.com/teemow/workspace-mcp/internal/instrumentation"
)

// maxListResults is the Calendar API page size ceiling.
const maxListResults = 100

// Client wraps the Calendar Events service for one authenticated
// session.
type Client struct {
	svc *calendar.EventsService
}

// NewClient creates a Calendar client authenticated by the given token
// source. Extra options are appended last so tests can redirect the
// client at a fake API endpoint.
func NewClient(ctx context.Context, ts oauth2.TokenSource, opts ...option.ClientOption) (*Client, error) {
	clientOpts := make([]option.ClientOption, 0, len(opts)+1)
	if ts != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(google.HTTPClient(ctx, ts)))
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := calendar.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	return &Client{svc: svc.Events}, nil
}

// ListEvents lists events from a calendar ordered by start time.
// timeMin and timeMax are ISO 8601 timestamps; either may be empty to
// leave that side of the range open.
func (c *Client) ListEvents(ctx context.Context, calendarID string, maxResults int64, timeMin, timeMax string) ([]*EventSummary, error) {
	if calendarID == "" {
		calendarID = "primary"
	}
	if maxResults <= 0 {
		maxResults = 10
	}
	if maxResults > maxListResults {
		maxResults = maxListResults
	}

	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceCalendar, instrumentation.OperationList)
	defer span.End()

	// orderBy startTime requires expanded single events.
	call := c.svc.List(calendarID).
		MaxResults(maxResults).
		SingleEvents(true).
		OrderBy("startTime")
	if timeMin != "" {
		call = call.TimeMin(timeMin)
	}
	if timeMax != "" {
		call = call.TimeMax(timeMax)
	}

	res, err := call.Context(ctx).Do()
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, fmt.Errorf("failed to list events for calendar %s: %w", calendarID, err)
	}
	instrumentation.SetSpanSuccess(span)

	events := make([]*EventSummary, 0, len(res.Items))
	for _, item := range res.Items {
		events = append(events, &EventSummary{
			ID:          item.Id,
			Summary:     item.Summary,
			Description: item.Description,
			Start:       fromEventDateTime(item.Start),
			End:         fromEventDateTime(item.End),
			Status:      item.Status,
			HTMLLink:    item.HtmlLink,
		})
	}
	return events, nil
}

// CreateEvent inserts a new event. Empty time zones default to UTC.
func (c *Client) CreateEvent(ctx context.Context, calendarID string, input *EventInput) (*CreateResult, error) {
	if calendarID == "" {
		calendarID = "primary"
	}
	if input.Summary == "" {
		return nil, fmt.Errorf("event summary is required")
	}
	if input.Start.DateTime == "" || input.End.DateTime == "" {
		return nil, fmt.Errorf("event start and end times are required")
	}

	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceCalendar, instrumentation.OperationCreate)
	defer span.End()

	event := &calendar.Event{
		Summary:     input.Summary,
		Description: input.Description,
		Start: &calendar.EventDateTime{
			DateTime: input.Start.DateTime,
			TimeZone: defaultTimeZone(input.Start.TimeZone),
		},
		End: &calendar.EventDateTime{
			DateTime: input.End.DateTime,
			TimeZone: defaultTimeZone(input.End.TimeZone),
		},
	}

	created, err := c.svc.Insert(calendarID, event).Context(ctx).Do()
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, fmt.Errorf("failed to create event in calendar %s: %w", calendarID, err)
	}

	instrumentation.SetSpanSuccess(span)
	return &CreateResult{
		ID:       created.Id,
		Summary:  created.Summary,
		HTMLLink: created.HtmlLink,
		Status:   "created",
	}, nil
}

// GetEvent fetches one event in full, attendees and location included.
func (c *Client) GetEvent(ctx context.Context, calendarID, eventID string) (*EventDetail, error) {
	if calendarID == "" {
		calendarID = "primary"
	}

	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceCalendar, instrumentation.OperationGet)
	defer span.End()

	event, err := c.svc.Get(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, fmt.Errorf("failed to get event %s: %w", eventID, err)
	}
	instrumentation.SetSpanSuccess(span)

	detail := &EventDetail{
		ID:          event.Id,
		Summary:     event.Summary,
		Description: event.Description,
		Start:       fromEventDateTime(event.Start),
		End:         fromEventDateTime(event.End),
		Status:      event.Status,
		HTMLLink:    event.HtmlLink,
		Location:    event.Location,
	}
	for _, a := range event.Attendees {
		detail.Attendees = append(detail.Attendees, &Attendee{
			Email:          a.Email,
			DisplayName:    a.DisplayName,
			ResponseStatus: a.ResponseStatus,
			Organizer:      a.Organizer,
		})
	}
	return detail, nil
}

func defaultTimeZone(tz string) string {
	if tz == "" {
		return "UTC"
	}
	return tz
}

func fromEventDateTime(t *calendar.EventDateTime) *EventTime {
	if t == nil {
		return nil
	}
	return &EventTime{
		DateTime: t.DateTime,
		Date:     t.Date,
		TimeZone: t.TimeZone,
	}
}
