package calendar

import (
	"errors"
	"time"
)

// DefaultZone is the civil timezone used when none is configured.
const DefaultZone = "America/Chicago"

// SlotDuration is the canonical interval width.
const SlotDuration = 15 * time.Minute

// AmbiguousPolicy selects which instant to use when a local wall-clock
// time occurs twice during a fall-back transition.
type AmbiguousPolicy string

const (
	PolicyEarlier AmbiguousPolicy = "earlier"
	PolicyLater   AmbiguousPolicy = "later"
)

// ErrUnknownZone reports an unloadable timezone name.
var ErrUnknownZone = errors.New("calendar: unknown timezone")

// Resolver maps civil wall-clock time in a fixed zone to UTC instants
// and answers calendar questions (interval counts, day types, month keys).
type Resolver struct {
	loc *time.Location
}

// NewResolver loads the named zone. An empty name selects DefaultZone.
func NewResolver(zone string) (*Resolver, error) {
	if zone == "" {
		zone = DefaultZone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, ErrUnknownZone
	}
	return &Resolver{loc: loc}, nil
}

// Location returns the resolver's civil zone.
func (r *Resolver) Location() *time.Location { return r.loc }

// ExpectedIntervalsForDay returns the number of 15-minute slots in the
// civil day containing the given date: 92 on a spring-forward day, 100 on
// a fall-back day, 96 otherwise.
func (r *Resolver) ExpectedIntervalsForDay(date time.Time) int {
	local := date.In(r.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, r.loc)
	end := start.AddDate(0, 0, 1)
	return int(end.Sub(start) / SlotDuration)
}

var wallClockLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

// LocalToUTC converts a wall-clock string in the resolver's zone to a UTC
// instant. Non-existent times inside a spring-forward gap snap forward to
// 03:00:00 local. Ambiguous fall-back times resolve per policy. Returns
// ok=false for unparseable input; it never panics.
func (r *Resolver) LocalToUTC(wallClock string, policy AmbiguousPolicy) (time.Time, bool) {
	var parsed time.Time
	var err error
	for _, layout := range wallClockLayouts {
		parsed, err = time.Parse(layout, wallClock)
		if err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, false
	}
	if policy == "" {
		policy = PolicyEarlier
	}

	y, mo, d := parsed.Date()
	h, mi, s := parsed.Clock()
	t := time.Date(y, mo, d, h, mi, s, 0, r.loc)

	if !sameWallClock(t, y, mo, d, h, mi, s) {
		// Spring-forward gap: the requested time does not exist.
		return time.Date(y, mo, d, 3, 0, 0, 0, r.loc).UTC(), true
	}

	// A fall-back hour occurs twice; probe one hour either side to find
	// the sibling instant instead of trusting time.Date's choice.
	if sibling := t.Add(-time.Hour); sameWallClock(sibling, y, mo, d, h, mi, s) {
		if policy == PolicyLater {
			return t.UTC(), true
		}
		return sibling.UTC(), true
	}
	if sibling := t.Add(time.Hour); sameWallClock(sibling, y, mo, d, h, mi, s) {
		if policy == PolicyLater {
			return sibling.UTC(), true
		}
		return t.UTC(), true
	}
	return t.UTC(), true
}

func sameWallClock(t time.Time, y int, mo time.Month, d, h, mi, s int) bool {
	ty, tmo, td := t.Date()
	th, tmi, ts := t.Clock()
	return ty == y && tmo == mo && td == d && th == h && tmi == mi && ts == s
}

// MonthKey returns the civil YYYY-MM key for a UTC instant.
func (r *Resolver) MonthKey(ts time.Time) string {
	return ts.In(r.loc).Format("2006-01")
}

// DateKey returns the civil YYYY-MM-DD key for a UTC instant.
func (r *Resolver) DateKey(ts time.Time) string {
	return ts.In(r.loc).Format("2006-01-02")
}

// IsWeekend reports whether a UTC instant falls on a civil Saturday or Sunday.
func (r *Resolver) IsWeekend(ts time.Time) bool {
	switch ts.In(r.loc).Weekday() {
	case time.Saturday, time.Sunday:
		return true
	default:
		return false
	}
}

// MinuteOfDay returns the civil minute-of-day (0..1439) for a UTC instant.
func (r *Resolver) MinuteOfDay(ts time.Time) int {
	local := ts.In(r.loc)
	return local.Hour()*60 + local.Minute()
}

// CivilMonth returns the civil month number (1..12) for a UTC instant.
func (r *Resolver) CivilMonth(ts time.Time) int {
	return int(ts.In(r.loc).Month())
}

// MonthBounds returns the UTC instants bounding the civil month YYYY-MM as
// a half-open [start, end) range. ok=false for malformed keys.
func (r *Resolver) MonthBounds(monthKey string) (time.Time, time.Time, bool) {
	parsed, err := time.ParseInLocation("2006-01", monthKey, r.loc)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	start := time.Date(parsed.Year(), parsed.Month(), 1, 0, 0, 0, 0, r.loc)
	end := start.AddDate(0, 1, 0)
	return start.UTC(), end.UTC(), true
}

// MonthKeys returns n consecutive civil month keys starting at the month
// containing the given instant.
func (r *Resolver) MonthKeys(from time.Time, n int) []string {
	local := from.In(r.loc)
	first := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, r.loc)
	keys := make([]string, 0, n)
	for i := 0; i < n; i++ {
		keys = append(keys, first.AddDate(0, i, 0).Format("2006-01"))
	}
	return keys
}
