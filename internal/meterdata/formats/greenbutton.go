package formats

import (
	"encoding/xml"
	"errors"
	"io"
	"math"
	"time"

	meterdata "intelliwatt/internal/meterdata/domain"
)

// Green Button (ESPI) atom feed shapes. Only the elements the normalizer
// needs are mapped; namespaces are matched by local name.
type gbFeed struct {
	Entries []gbEntry `xml:"entry"`
}

type gbEntry struct {
	Content gbContent `xml:"content"`
}

type gbContent struct {
	Blocks      []gbIntervalBlock `xml:"IntervalBlock"`
	ReadingType *gbReadingType    `xml:"ReadingType"`
}

type gbIntervalBlock struct {
	Readings []gbIntervalReading `xml:"IntervalReading"`
}

type gbIntervalReading struct {
	TimePeriod gbTimePeriod `xml:"timePeriod"`
	Value      *float64     `xml:"value"`
}

type gbTimePeriod struct {
	Start    int64 `xml:"start"`
	Duration int64 `xml:"duration"`
}

type gbReadingType struct {
	PowerOfTenMultiplier int `xml:"powerOfTenMultiplier"`
}

// GreenButtonReadResult carries parsed readings plus row-level accounting.
type GreenButtonReadResult struct {
	Readings []meterdata.RawReading
	Skipped  int
}

// ReadGreenButtonXML parses an ESPI Green Button feed into raw readings for
// one meter stream. IntervalReading values are watt-hours scaled by the
// feed's powerOfTenMultiplier (default 0); output is kWh. Each reading
// carries an epoch start plus a duration, which the normalizer splits onto
// the 15-minute grid. Unusable readings are skipped and counted.
func ReadGreenButtonXML(r io.Reader, esiid, meter string) (GreenButtonReadResult, error) {
	if esiid == "" {
		return GreenButtonReadResult{}, meterdata.ErrEmptyESIID
	}
	if meter == "" {
		meter = DefaultMeter
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return GreenButtonReadResult{}, err
	}
	if len(data) == 0 {
		return GreenButtonReadResult{}, ErrEmptyFile
	}

	var feed gbFeed
	if err := xml.Unmarshal(data, &feed); err != nil {
		return GreenButtonReadResult{}, err
	}

	multiplier := 0
	for _, entry := range feed.Entries {
		if entry.Content.ReadingType != nil {
			multiplier = entry.Content.ReadingType.PowerOfTenMultiplier
			break
		}
	}
	scale := math.Pow10(multiplier) / 1000 // Wh -> kWh

	var result GreenButtonReadResult
	for _, entry := range feed.Entries {
		for _, block := range entry.Content.Blocks {
			for _, reading := range block.Readings {
				if reading.Value == nil || reading.TimePeriod.Start <= 0 || reading.TimePeriod.Duration <= 0 {
					result.Skipped++
					continue
				}
				start := time.Unix(reading.TimePeriod.Start, 0).UTC()
				result.Readings = append(result.Readings, meterdata.RawReading{
					ESIID:    esiid,
					Meter:    meter,
					Start:    &start,
					Duration: time.Duration(reading.TimePeriod.Duration) * time.Second,
					KWh:      *reading.Value * scale,
					Source:   meterdata.SourceGreenButton,
				})
			}
		}
	}
	if len(result.Readings) == 0 && result.Skipped == 0 {
		return result, errors.New("formats: no interval blocks in feed")
	}
	return result, nil
}
