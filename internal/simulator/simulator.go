// Package simulator spreads manually entered monthly or annual usage
// totals onto the canonical 15-minute grid, producing synthetic interval
// series for households without smart-meter history. Output intervals are
// marked filled so downstream consumers can tell them from observed data.
package simulator

import (
	"errors"
	"time"

	analysis "intelliwatt/internal/analysis/domain"
	"intelliwatt/internal/calendar"
	meterdata "intelliwatt/internal/meterdata/domain"
)

// MonthlyEntry is one user-entered month total. Month is 1..12.
type MonthlyEntry struct {
	Month int
	KWh   float64
}

// Options identifies the output stream and configures the spread.
type Options struct {
	ESIID string
	Meter string
	// Year anchors the civil year the entries describe.
	Year int
	// BillEndDay, when 1..31, splits billing periods on that day of month
	// instead of calendar months: a month's period ends on BillEndDay and
	// starts the day after the previous month's BillEndDay, clamped to
	// month length.
	BillEndDay int
	// Travel ranges are excluded; the period total is re-spread over the
	// remaining slots so it is preserved.
	Travel []analysis.DateRange
}

var (
	ErrNoEntries     = errors.New("simulator: no monthly entries")
	ErrBadMonth      = errors.New("simulator: month out of range")
	ErrNegativeUsage = errors.New("simulator: negative usage total")
	ErrBadDates      = errors.New("simulator: malformed date range")
	ErrAllExcluded   = errors.New("simulator: every slot excluded by travel ranges")
)

// MonthlyToIntervals converts monthly totals into filled 15-minute
// intervals. Each month's kWh spreads flat across the eligible slots of
// its billing period; slot widths follow the UTC grid, so DST days get
// their natural 92 or 100 slots. Zero-total months produce no intervals.
func MonthlyToIntervals(cal *calendar.Resolver, entries []MonthlyEntry, opts Options) ([]meterdata.CanonicalInterval, error) {
	if cal == nil {
		return nil, analysis.ErrNilResolver
	}
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}
	if opts.ESIID == "" {
		return nil, meterdata.ErrEmptyESIID
	}
	if opts.Meter == "" {
		opts.Meter = "1"
	}
	year := opts.Year
	if year == 0 {
		year = time.Now().Year()
	}

	var out []meterdata.CanonicalInterval
	for _, entry := range entries {
		if entry.Month < 1 || entry.Month > 12 {
			return nil, ErrBadMonth
		}
		if entry.KWh < 0 {
			return nil, ErrNegativeUsage
		}
		if entry.KWh == 0 {
			continue
		}

		start, end := billingPeriod(cal, year, entry.Month, opts.BillEndDay)
		intervals, err := spreadFlat(cal, start, end, entry.KWh, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, intervals...)
	}
	return out, nil
}

// AnnualToIntervals converts one annual total over an inclusive civil date
// range into filled 15-minute intervals. The total spreads evenly across
// eligible (non-travel) days, then flat within each day.
func AnnualToIntervals(cal *calendar.Resolver, annualKwh float64, startDate, endDate string, opts Options) ([]meterdata.CanonicalInterval, error) {
	if cal == nil {
		return nil, analysis.ErrNilResolver
	}
	if opts.ESIID == "" {
		return nil, meterdata.ErrEmptyESIID
	}
	if opts.Meter == "" {
		opts.Meter = "1"
	}
	if annualKwh < 0 {
		return nil, ErrNegativeUsage
	}

	first, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return nil, ErrBadDates
	}
	last, err := time.Parse("2006-01-02", endDate)
	if err != nil {
		return nil, ErrBadDates
	}
	if last.Before(first) {
		return nil, ErrBadDates
	}
	if annualKwh == 0 {
		return nil, nil
	}

	type day struct {
		start time.Time
		end   time.Time
	}
	var days []day
	loc := cal.Location()
	for cursor := first; !cursor.After(last); cursor = cursor.AddDate(0, 0, 1) {
		if inTravel(cursor.Format("2006-01-02"), opts.Travel) {
			continue
		}
		dayStart := time.Date(cursor.Year(), cursor.Month(), cursor.Day(), 0, 0, 0, 0, loc)
		days = append(days, day{start: dayStart, end: dayStart.AddDate(0, 0, 1)})
	}
	if len(days) == 0 {
		return nil, ErrAllExcluded
	}

	dailyKwh := annualKwh / float64(len(days))
	var out []meterdata.CanonicalInterval
	for _, d := range days {
		intervals, err := spreadFlat(cal, d.start, d.end, dailyKwh, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, intervals...)
	}
	return out, nil
}

// billingPeriod returns the civil period [start, end) for a month's total.
func billingPeriod(cal *calendar.Resolver, year, month, billEndDay int) (time.Time, time.Time) {
	loc := cal.Location()
	if billEndDay < 1 || billEndDay > 31 {
		start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0)
	}

	endDay := clampDay(year, time.Month(month), billEndDay)
	end := time.Date(year, time.Month(month), endDay, 0, 0, 0, 0, loc).AddDate(0, 0, 1)

	prevYear, prevMonth := year, time.Month(month-1)
	if month == 1 {
		prevYear, prevMonth = year-1, time.December
	}
	startDay := clampDay(prevYear, prevMonth, billEndDay+1)
	start := time.Date(prevYear, prevMonth, startDay, 0, 0, 0, 0, loc)
	return start, end
}

func clampDay(year int, month time.Month, day int) int {
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > lastDay {
		return lastDay
	}
	return day
}

// spreadFlat distributes totalKwh evenly over the non-travel 15-minute
// slots between two civil instants, stepping on the UTC grid.
func spreadFlat(cal *calendar.Resolver, start, end time.Time, totalKwh float64, opts Options) ([]meterdata.CanonicalInterval, error) {
	startUTC := start.UTC().Truncate(meterdata.SlotWidth)
	endUTC := end.UTC()

	var eligible []time.Time
	for cursor := startUTC; cursor.Before(endUTC); cursor = cursor.Add(meterdata.SlotWidth) {
		if inTravel(cal.DateKey(cursor), opts.Travel) {
			continue
		}
		eligible = append(eligible, cursor)
	}
	if len(eligible) == 0 {
		return nil, ErrAllExcluded
	}

	perSlot := totalKwh / float64(len(eligible))
	intervals := make([]meterdata.CanonicalInterval, 0, len(eligible))
	for _, ts := range eligible {
		intervals = append(intervals, meterdata.CanonicalInterval{
			ESIID:  opts.ESIID,
			Meter:  opts.Meter,
			TS:     ts,
			KWh:    perSlot,
			Filled: true,
			Source: meterdata.SourceManual,
		})
	}
	return intervals, nil
}

func inTravel(dateKey string, ranges []analysis.DateRange) bool {
	for _, r := range ranges {
		if r.Start <= dateKey && dateKey <= r.End {
			return true
		}
	}
	return false
}
