package formats

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"intelliwatt/internal/calendar"
	meterdata "intelliwatt/internal/meterdata/domain"
)

// DefaultMeter is used when an export carries no meter column. SMT interval
// exports identify the service point by ESIID only.
const DefaultMeter = "1"

var ErrEmptyFile = errors.New("formats: empty file")

// SMTReadResult carries the parsed readings plus row-level accounting.
type SMTReadResult struct {
	Readings []meterdata.RawReading
	Skipped  int
}

// ReadSMTCSV parses a Smart Meter Texas interval export. Exports arrive
// either comma or pipe delimited; the delimiter is sniffed from the header
// row. Expected columns (case-insensitive, order free):
//
//	ESIID, USAGE_DATE (MM/DD/YYYY), USAGE_START_TIME, USAGE_END_TIME (HH:MM),
//	USAGE_KWH, CONSUMPTION_SURPLUS_GENERATION (optional)
//
// Times are civil Central time; the resolver converts them to UTC instants,
// with policy picking the earlier or later instant for wall clocks repeated
// by the fall-back transition. Rows with "Generation" in the surplus column
// become negative kWh. Malformed rows are skipped and counted, never fatal.
func ReadSMTCSV(r io.Reader, cal *calendar.Resolver, policy calendar.AmbiguousPolicy) (SMTReadResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return SMTReadResult{}, err
	}
	if len(data) == 0 {
		return SMTReadResult{}, ErrEmptyFile
	}

	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return SMTReadResult{}, err
	}
	cols := indexColumns(header)
	esiidIdx, ok1 := cols["esiid"]
	dateIdx, ok2 := cols["usage_date"]
	endIdx, ok3 := cols["usage_end_time"]
	kwhIdx, ok4 := cols["usage_kwh"]
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return SMTReadResult{}, errors.New("formats: smt header missing required columns")
	}
	surplusIdx, hasSurplus := cols["consumption_surplus_generation"]

	var result SMTReadResult
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Skipped++
			continue
		}
		if len(record) <= esiidIdx || len(record) <= dateIdx ||
			len(record) <= endIdx || len(record) <= kwhIdx {
			result.Skipped++
			continue
		}

		esiid := strings.TrimSpace(record[esiidIdx])
		kwh, err := strconv.ParseFloat(strings.TrimSpace(record[kwhIdx]), 64)
		if err != nil || esiid == "" {
			result.Skipped++
			continue
		}

		end, ok := smtEndInstant(cal, policy, strings.TrimSpace(record[dateIdx]), strings.TrimSpace(record[endIdx]))
		if !ok {
			result.Skipped++
			continue
		}

		if hasSurplus && len(record) > surplusIdx {
			if strings.EqualFold(strings.TrimSpace(record[surplusIdx]), "Generation") {
				kwh = -kwh
			}
		}

		result.Readings = append(result.Readings, meterdata.RawReading{
			ESIID:  esiid,
			Meter:  DefaultMeter,
			End:    &end,
			KWh:    kwh,
			Source: meterdata.SourceSMT,
		})
	}
	return result, nil
}

// smtEndInstant converts an SMT usage date + end time to a UTC instant.
// SMT writes the final slot of a day as 24:00, which is the next civil
// day's midnight.
func smtEndInstant(cal *calendar.Resolver, policy calendar.AmbiguousPolicy, date, endTime string) (time.Time, bool) {
	parts := strings.Split(date, "/")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	wall := parts[2] + "-" + pad2(parts[0]) + "-" + pad2(parts[1])

	if endTime == "24:00" {
		day, err := time.Parse("2006-01-02", wall)
		if err != nil {
			return time.Time{}, false
		}
		wall = day.AddDate(0, 0, 1).Format("2006-01-02")
		endTime = "00:00"
	}
	return cal.LocalToUTC(wall+" "+endTime+":00", policy)
}

func sniffDelimiter(data []byte) rune {
	firstLine := string(data)
	if idx := strings.IndexByte(firstLine, '\n'); idx >= 0 {
		firstLine = firstLine[:idx]
	}
	if strings.Count(firstLine, "|") > strings.Count(firstLine, ",") {
		return '|'
	}
	return ','
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return cols
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
