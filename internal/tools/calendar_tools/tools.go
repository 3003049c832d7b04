// Package calendar_tools contributes the Google Calendar tools to the
// registry.
package calendar_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/workspace-mcp/internal/calendar"
	"github.com/teemow/workspace-mcp/internal/tools"
)

// Register adds the Calendar tools to the registry.
func Register(reg *tools.Registry) {
	listTool := mcp.NewTool("calendar_list_events",
		mcp.WithDescription("List upcoming events from Google Calendar. Returns events with title, time, and status. By default shows future events from now. Use timeMin/timeMax to filter date ranges."),
		mcp.WithString("calendarId",
			mcp.Description("Calendar ID to query. Use \"primary\" for the main calendar (default: \"primary\")."),
		),
		mcp.WithNumber("maxResults",
			mcp.Description("Maximum number of events to return (1-100, default: 10)"),
		),
		mcp.WithString("timeMin",
			mcp.Description("Start time for events in ISO 8601 format (e.g., \"2024-01-01T00:00:00Z\"). If not provided, shows events from now."),
		),
		mcp.WithString("timeMax",
			mcp.Description("End time for events in ISO 8601 format (e.g., \"2024-12-31T23:59:59Z\"). If not provided, shows all future events."),
		),
	)
	reg.Register(listTool, handleListEvents)

	createTool := mcp.NewTool("calendar_create_event",
		mcp.WithDescription("Create a new event in Google Calendar. The event will be added to the specified calendar with title, description, and time details. Use ISO 8601 format for dates (e.g., \"2024-12-25T10:00:00Z\")."),
		mcp.WithString("calendarId",
			mcp.Description("Calendar ID where to create the event. Use \"primary\" for the main calendar (default: \"primary\")."),
		),
		mcp.WithString("summary",
			mcp.Required(),
			mcp.Description("Event title or summary that will appear in the calendar"),
		),
		mcp.WithString("description",
			mcp.Description("Detailed description of the event"),
		),
		mcp.WithObject("start",
			mcp.Required(),
			mcp.Description("Event start date and time"),
			mcp.Properties(map[string]any{
				"dateTime": map[string]any{
					"type":        "string",
					"description": "Start date and time in ISO 8601 format (e.g., \"2024-12-25T10:00:00Z\" or \"2024-12-25T10:00:00-05:00\")",
				},
				"timeZone": map[string]any{
					"type":        "string",
					"description": "Time zone for the event (e.g., \"America/New_York\", \"Europe/London\", \"UTC\")",
				},
			}),
		),
		mcp.WithObject("end",
			mcp.Required(),
			mcp.Description("Event end date and time"),
			mcp.Properties(map[string]any{
				"dateTime": map[string]any{
					"type":        "string",
					"description": "End date and time in ISO 8601 format (e.g., \"2024-12-25T11:00:00Z\")",
				},
				"timeZone": map[string]any{
					"type":        "string",
					"description": "Time zone for the event end (should match start timeZone)",
				},
			}),
		),
	)
	reg.Register(createTool, handleCreateEvent)

	getTool := mcp.NewTool("calendar_get_event",
		mcp.WithDescription("Get complete details of a specific calendar event by its ID. Returns full event information including attendees, location, description, and all metadata. Use calendar_list_events first to find event IDs."),
		mcp.WithString("calendarId",
			mcp.Description("Calendar ID where the event is located. Use \"primary\" for the main calendar (default: \"primary\")."),
		),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("The unique event ID obtained from calendar_list_events results"),
		),
	)
	reg.Register(getTool, handleGetEvent)
}

func handleListEvents(ctx context.Context, caps *tools.Capabilities, args map[string]any) (any, error) {
	calendarID := tools.StringArg(args, "calendarId", "primary")
	maxResults := tools.IntArg(args, "maxResults", 10)
	timeMin := tools.StringArg(args, "timeMin", "")
	timeMax := tools.StringArg(args, "timeMax", "")

	return caps.Calendar.ListEvents(ctx, calendarID, maxResults, timeMin, timeMax)
}

func handleCreateEvent(ctx context.Context, caps *tools.Capabilities, args map[string]any) (any, error) {
	calendarID := tools.StringArg(args, "calendarId", "primary")
	summary, err := tools.RequireString(args, "summary")
	if err != nil {
		return nil, err
	}

	start, err := eventTimeArg(args, "start")
	if err != nil {
		return nil, err
	}
	end, err := eventTimeArg(args, "end")
	if err != nil {
		return nil, err
	}

	return caps.Calendar.CreateEvent(ctx, calendarID, &calendar.EventInput{
		Summary:     summary,
		Description: tools.StringArg(args, "description", ""),
		Start:       start,
		End:         end,
	})
}

func handleGetEvent(ctx context.Context, caps *tools.Capabilities, args map[string]any) (any, error) {
	calendarID := tools.StringArg(args, "calendarId", "primary")
	eventID, err := tools.RequireString(args, "eventId")
	if err != nil {
		return nil, err
	}

	return caps.Calendar.GetEvent(ctx, calendarID, eventID)
}

// eventTimeArg reads a {dateTime, timeZone} object argument.
func eventTimeArg(args map[string]any, key string) (calendar.EventTime, error) {
	obj := tools.ObjectArg(args, key)
	if obj == nil {
		return calendar.EventTime{}, fmt.Errorf("missing required argument: %s", key)
	}

	dateTime, err := tools.RequireString(obj, "dateTime")
	if err != nil {
		return calendar.EventTime{}, fmt.Errorf("%s.dateTime is required", key)
	}

	return calendar.EventTime{
		DateTime: dateTime,
		TimeZone: tools.StringArg(obj, "timeZone", "UTC"),
	}, nil
}
