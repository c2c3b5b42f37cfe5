package meterdata

import "time"

// Source tags where a raw reading came from. The tag is supplied explicitly
// by the caller at ingestion; the normalizer never guesses the source format.
type Source string

const (
	SourceSMT         Source = "smt"
	SourceGreenButton Source = "green_button"
	SourceManual      Source = "manual"
)

// IsValid checks if the source is one of the supported tags.
func (s Source) IsValid() bool {
	switch s {
	case SourceSMT, SourceGreenButton, SourceManual:
		return true
	default:
		return false
	}
}

// RawReading is one observation handed to the normalizer. Exactly one of
// the timestamp shapes is expected per row:
//
//  1. End only — a value ending at End, with an implicit 15-minute width.
//  2. Start and End — an explicit span.
//  3. Start and Duration — an explicit span given as start plus width.
//
// KWh may be negative (export under net metering).
type RawReading struct {
	ESIID string
	Meter string

	End      *time.Time
	Start    *time.Time
	Duration time.Duration

	KWh    float64
	Source Source
}
