package analysis

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DayType partitions civil days for bucket aggregation.
type DayType string

const (
	DayTypeAll     DayType = "all"
	DayTypeWeekday DayType = "weekday"
	DayTypeWeekend DayType = "weekend"
)

// IsValid checks if the day type is one of the supported values.
func (d DayType) IsValid() bool {
	switch d {
	case DayTypeAll, DayTypeWeekday, DayTypeWeekend:
		return true
	default:
		return false
	}
}

// BucketKey is the canonical string identity of one (dayType x window)
// usage slot, grammar `kwh.m.<dayType>.<window>`. The rate interpreter and
// the aggregator must agree on these byte-for-byte, so keys are always
// built through NewBucketKey or parsed through ParseBucketKey.
type BucketKey string

// TotalKey is the monthly total bucket every rate shape can price against.
const TotalKey BucketKey = "kwh.m.all.total"

const keyPrefix = "kwh.m."

var (
	ErrBadBucketKey = errors.New("analysis: malformed bucket key")
	ErrBadWindow    = errors.New("analysis: malformed window")
)

// Window is a civil-time HH:MM span. Total spans the whole day. Start and
// End are minutes of day; Start >= End (non-total) wraps past midnight.
type Window struct {
	Total bool
	Start int
	End   int
}

// Contains reports whether a civil minute-of-day falls inside the window.
// End is exclusive. A wrapping window covers [Start,1440) plus [0,End).
func (w Window) Contains(minute int) bool {
	if w.Total {
		return true
	}
	if w.Start < w.End {
		return minute >= w.Start && minute < w.End
	}
	return minute >= w.Start || minute < w.End
}

func (w Window) String() string {
	if w.Total {
		return "total"
	}
	return fmt.Sprintf("%02d%02d-%02d%02d", w.Start/60, w.Start%60, w.End/60, w.End%60)
}

// ParseWindow parses "total" or "HHMM-HHMM".
func ParseWindow(s string) (Window, error) {
	if s == "total" {
		return Window{Total: true}, nil
	}
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return Window{}, ErrBadWindow
	}
	start, ok1 := parseHHMM(parts[0])
	end, ok2 := parseHHMM(parts[1])
	if !ok1 || !ok2 {
		return Window{}, ErrBadWindow
	}
	return Window{Start: start, End: end}, nil
}

func parseHHMM(s string) (int, bool) {
	if len(s) != 4 {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	h, m := n/100, n%100
	if h > 24 || m > 59 || (h == 24 && m != 0) {
		return 0, false
	}
	return h*60 + m, true
}

// NewBucketKey builds the canonical key string.
func NewBucketKey(dayType DayType, window Window) BucketKey {
	return BucketKey(keyPrefix + string(dayType) + "." + window.String())
}

// ParsedKey is a decoded bucket key ready for interval matching.
type ParsedKey struct {
	Key     BucketKey
	DayType DayType
	Window  Window
}

// Matches reports whether an interval with the given civil day type and
// minute-of-day accumulates into this bucket.
func (k ParsedKey) Matches(weekend bool, minute int) bool {
	switch k.DayType {
	case DayTypeWeekday:
		if weekend {
			return false
		}
	case DayTypeWeekend:
		if !weekend {
			return false
		}
	}
	return k.Window.Contains(minute)
}

// ParseBucketKey decodes a canonical bucket key. Parsing then formatting
// reproduces the input byte-for-byte.
func ParseBucketKey(key BucketKey) (ParsedKey, error) {
	s := string(key)
	if !strings.HasPrefix(s, keyPrefix) {
		return ParsedKey{}, ErrBadBucketKey
	}
	rest := s[len(keyPrefix):]
	dot := strings.IndexByte(rest, '.')
	if dot < 0 {
		return ParsedKey{}, ErrBadBucketKey
	}
	dayType := DayType(rest[:dot])
	if !dayType.IsValid() {
		return ParsedKey{}, ErrBadBucketKey
	}
	window, err := ParseWindow(rest[dot+1:])
	if err != nil {
		return ParsedKey{}, err
	}
	if NewBucketKey(dayType, window) != key {
		return ParsedKey{}, ErrBadBucketKey
	}
	return ParsedKey{Key: key, DayType: dayType, Window: window}, nil
}
