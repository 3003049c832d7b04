package calendar

// EventTime is one side of an event's time range. DateTime is ISO 8601
// and TimeZone an IANA name like "Europe/Berlin".
type EventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// EventSummary is the list view of an event.
type EventSummary struct {
	ID          string     `json:"id"`
	Summary     string     `json:"summary,omitempty"`
	Description string     `json:"description,omitempty"`
	Start       *EventTime `json:"start,omitempty"`
	End         *EventTime `json:"end,omitempty"`
	Status      string     `json:"status,omitempty"`
	HTMLLink    string     `json:"htmlLink,omitempty"`
}

// Attendee is a guest on an event.
type Attendee struct {
	Email          string `json:"email,omitempty"`
	DisplayName    string `json:"displayName,omitempty"`
	ResponseStatus string `json:"responseStatus,omitempty"`
	Organizer      bool   `json:"organizer,omitempty"`
}

// EventDetail is the full view of a single event.
type EventDetail struct {
	ID          string      `json:"id"`
	Summary     string      `json:"summary,omitempty"`
	Description string      `json:"description,omitempty"`
	Start       *EventTime  `json:"start,omitempty"`
	End         *EventTime  `json:"end,omitempty"`
	Status      string      `json:"status,omitempty"`
	HTMLLink    string      `json:"htmlLink,omitempty"`
	Attendees   []*Attendee `json:"attendees,omitempty"`
	Location    string      `json:"location,omitempty"`
}

// CreateResult reports a successful event insert. Status is always
// "created".
type CreateResult struct {
	ID       string `json:"id"`
	Summary  string `json:"summary,omitempty"`
	HTMLLink string `json:"htmlLink,omitempty"`
	Status   string `json:"status"`
}

// EventInput is the caller-supplied shape for creating an event.
// TimeZone defaults to UTC on both sides.
type EventInput struct {
	Summary     string
	Description string
	Start       EventTime
	End         EventTime
}
