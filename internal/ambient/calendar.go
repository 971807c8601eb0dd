package ambient

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
)

// CalendarFeed is one ICS feed to read. DaysAhead bounds the lookahead
// window; feeds that change rarely can look further out than feeds that
// only matter for the next day or two.
type CalendarFeed struct {
	Name      string `yaml:"name"`
	URL       string `yaml:"url"`
	DaysAhead int    `yaml:"days_ahead"`
}

// Event is one calendar entry inside the lookahead window. All-day
// events carry only a date; converting them through UTC produces
// off-by-one days, so they are kept as dates and never converted.
type Event struct {
	Date     time.Time // midnight in the display zone; the grouping key
	Start    time.Time // zero for all-day events
	Summary  string
	Location string
	AllDay   bool
	Owner    string
}

const maxLocationLen = 40

// FetchCalendars reads every feed, collects events inside each feed's
// lookahead window, and formats them grouped by day. A feed that fails
// to fetch or parse is skipped; the remaining feeds still render.
func FetchCalendars(ctx context.Context, client *http.Client, feeds []CalendarFeed, now time.Time, logf func(format string, args ...any)) string {
	if client == nil {
		client = http.DefaultClient
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}

	loc := now.Location()
	today := midnight(now)

	var events []Event
	for _, feed := range feeds {
		cal, err := fetchFeed(ctx, client, feed.URL)
		if err != nil {
			logf("calendar feed %s failed: %v", feed.Name, err)
			continue
		}

		days := feed.DaysAhead
		if days <= 0 {
			days = 1
		}
		end := today.AddDate(0, 0, days)

		for _, ev := range extractEvents(cal, loc, today, end) {
			ev.Owner = feed.Name
			events = append(events, ev)
		}
	}

	if len(events) == 0 {
		return "No events"
	}

	sortEvents(events)
	return formatEvents(events, today, feeds)
}

func fetchFeed(ctx context.Context, client *http.Client, url string) (*ics.Calendar, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ambient: build calendar request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ambient: fetch calendar: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ambient: calendar feed returned %d", resp.StatusCode)
	}

	cal, err := ics.ParseCalendar(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ambient: parse calendar: %w", err)
	}
	return cal, nil
}

// extractEvents pulls the events whose date falls in [start, end). Timed
// events are converted to loc first, then compared by date portion.
func extractEvents(cal *ics.Calendar, loc *time.Location, start, end time.Time) []Event {
	var out []Event
	for _, ve := range cal.Events() {
		dtstart := ve.GetProperty(ics.ComponentPropertyDtStart)
		if dtstart == nil {
			continue
		}

		var ev Event
		if isDateOnly(dtstart) {
			day, err := ve.GetAllDayStartAt()
			if err != nil {
				continue
			}
			ev = Event{
				Date:   time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc),
				AllDay: true,
			}
		} else {
			at, err := ve.GetStartAt()
			if err != nil {
				continue
			}
			at = at.In(loc)
			ev = Event{Date: midnight(at), Start: at}
		}

		if ev.Date.Before(start) || !ev.Date.Before(end) {
			continue
		}

		ev.Summary = propValue(ve, ics.ComponentPropertySummary, "Untitled")
		ev.Location = propValue(ve, ics.ComponentPropertyLocation, "")
		out = append(out, ev)
	}
	return out
}

// isDateOnly reports whether a DTSTART is a bare date (all-day event).
func isDateOnly(prop *ics.IANAProperty) bool {
	for _, v := range prop.ICalParameters["VALUE"] {
		if v == "DATE" {
			return true
		}
	}
	return len(prop.Value) == len("20060102")
}

func propValue(ve *ics.VEvent, name ics.ComponentProperty, fallback string) string {
	prop := ve.GetProperty(name)
	if prop == nil || prop.Value == "" {
		return fallback
	}
	return prop.Value
}

// sortEvents orders by date, all-day entries before timed ones, then by
// start time.
func sortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.AllDay != b.AllDay {
			return a.AllDay
		}
		return a.Start.Before(b.Start)
	})
}

// formatEvents renders the sorted events grouped under day headers.
// Events owned by the first feed are the default and carry no owner tag.
func formatEvents(events []Event, today time.Time, feeds []CalendarFeed) string {
	defaultOwner := ""
	if len(feeds) > 0 {
		defaultOwner = feeds[0].Name
	}

	var b strings.Builder
	var current time.Time
	for _, ev := range events {
		if !ev.Date.Equal(current) {
			current = ev.Date
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString("**" + dayLabel(ev.Date, today) + "**\n")
		}
		b.WriteString(formatEvent(ev, defaultOwner))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func dayLabel(day, today time.Time) string {
	switch {
	case day.Equal(today):
		return "Today"
	case day.Equal(today.AddDate(0, 0, 1)):
		return "Tomorrow"
	default:
		return day.Format("Mon Jan 2")
	}
}

func formatEvent(ev Event, defaultOwner string) string {
	timeStr := "(all day)"
	if !ev.AllDay {
		timeStr = ev.Start.Format("3:04 PM")
	}

	line := fmt.Sprintf("• %s: %s", timeStr, ev.Summary)
	if ev.Location != "" {
		loc := ev.Location
		if len(loc) > maxLocationLen {
			loc = loc[:maxLocationLen]
		}
		line += " @ " + loc
	}
	if ev.Owner != "" && ev.Owner != defaultOwner {
		line += " [" + ev.Owner + "]"
	}
	return line
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
