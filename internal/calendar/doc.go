// Package calendar wraps the Calendar v3 Events API for the three
// scheduling tools: listing upcoming events, creating an event, and
// fetching one event in full.
//
// Recurring events are always expanded into single instances so the
// list can be ordered by start time.
package calendar
