package formats

import (
	"math"
	"strings"
	"testing"
	"time"

	"intelliwatt/internal/calendar"
	meterdata "intelliwatt/internal/meterdata/domain"
)

func mustCal(t *testing.T) *calendar.Resolver {
	t.Helper()
	cal, err := calendar.NewResolver("America/Chicago")
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	return cal
}

func TestReadSMTCSVComma(t *testing.T) {
	input := strings.Join([]string{
		"ESIID,USAGE_DATE,USAGE_START_TIME,USAGE_END_TIME,USAGE_KWH,CONSUMPTION_SURPLUS_GENERATION",
		"10443720000000001,07/15/2024,00:00,00:15,0.321,Consumption",
		"10443720000000001,07/15/2024,00:15,00:30,0.250,Consumption",
		"10443720000000001,07/15/2024,12:00,12:15,0.100,Generation",
	}, "\n")

	result, err := ReadSMTCSV(strings.NewReader(input), mustCal(t), calendar.PolicyEarlier)
	if err != nil {
		t.Fatalf("read smt csv: %v", err)
	}
	if len(result.Readings) != 3 {
		t.Fatalf("got %d readings, want 3", len(result.Readings))
	}
	if result.Skipped != 0 {
		t.Errorf("skipped = %d, want 0", result.Skipped)
	}

	first := result.Readings[0]
	if first.ESIID != "10443720000000001" || first.Meter != DefaultMeter {
		t.Errorf("unexpected identity %q/%q", first.ESIID, first.Meter)
	}
	// 00:15 CDT on 2024-07-15 is 05:15 UTC.
	if want := time.Date(2024, 7, 15, 5, 15, 0, 0, time.UTC); !first.End.Equal(want) {
		t.Errorf("end = %v, want %v", first.End, want)
	}
	if first.Source != meterdata.SourceSMT {
		t.Errorf("source = %q, want smt", first.Source)
	}

	if gen := result.Readings[2]; gen.KWh != -0.100 {
		t.Errorf("generation kwh = %v, want -0.100", gen.KWh)
	}
}

func TestReadSMTCSVPipeDelimited(t *testing.T) {
	input := strings.Join([]string{
		"ESIID|USAGE_DATE|USAGE_START_TIME|USAGE_END_TIME|USAGE_KWH",
		"1044372|07/15/2024|23:45|24:00|0.400",
	}, "\n")

	result, err := ReadSMTCSV(strings.NewReader(input), mustCal(t), calendar.PolicyEarlier)
	if err != nil {
		t.Fatalf("read smt csv: %v", err)
	}
	if len(result.Readings) != 1 {
		t.Fatalf("got %d readings, want 1", len(result.Readings))
	}
	// 24:00 on 07/15 is midnight 07/16 CDT, 05:00 UTC.
	if want := time.Date(2024, 7, 16, 5, 0, 0, 0, time.UTC); !result.Readings[0].End.Equal(want) {
		t.Errorf("end = %v, want %v", result.Readings[0].End, want)
	}
}

func TestReadSMTCSVSkipsMalformedRows(t *testing.T) {
	input := strings.Join([]string{
		"ESIID,USAGE_DATE,USAGE_START_TIME,USAGE_END_TIME,USAGE_KWH",
		"1044372,07/15/2024,00:00,00:15,0.321",
		",07/15/2024,00:15,00:30,0.250",
		"1044372,garbage,00:30,00:45,0.1",
		"1044372,07/15/2024,00:45,01:00,not-a-number",
	}, "\n")

	result, err := ReadSMTCSV(strings.NewReader(input), mustCal(t), calendar.PolicyEarlier)
	if err != nil {
		t.Fatalf("read smt csv: %v", err)
	}
	if len(result.Readings) != 1 {
		t.Errorf("got %d readings, want 1", len(result.Readings))
	}
	if result.Skipped != 3 {
		t.Errorf("skipped = %d, want 3", result.Skipped)
	}
}

func TestReadSMTCSVMissingHeader(t *testing.T) {
	if _, err := ReadSMTCSV(strings.NewReader("FOO,BAR\n1,2\n"), mustCal(t), calendar.PolicyEarlier); err == nil {
		t.Error("expected error for missing required columns")
	}
	if _, err := ReadSMTCSV(strings.NewReader(""), mustCal(t), calendar.PolicyEarlier); err == nil {
		t.Error("expected error for empty file")
	}
}

func TestReadGreenButtonXML(t *testing.T) {
	// Two 900-second readings starting 2024-07-15T05:00:00Z, values in Wh.
	feed := `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:espi="http://naesb.org/espi">
  <entry>
    <content>
      <espi:ReadingType>
        <espi:powerOfTenMultiplier>0</espi:powerOfTenMultiplier>
      </espi:ReadingType>
    </content>
  </entry>
  <entry>
    <content>
      <espi:IntervalBlock>
        <espi:IntervalReading>
          <espi:timePeriod>
            <espi:start>1721019600</espi:start>
            <espi:duration>900</espi:duration>
          </espi:timePeriod>
          <espi:value>250</espi:value>
        </espi:IntervalReading>
        <espi:IntervalReading>
          <espi:timePeriod>
            <espi:start>1721020500</espi:start>
            <espi:duration>900</espi:duration>
          </espi:timePeriod>
          <espi:value>320</espi:value>
        </espi:IntervalReading>
        <espi:IntervalReading>
          <espi:timePeriod>
            <espi:start>0</espi:start>
            <espi:duration>900</espi:duration>
          </espi:timePeriod>
          <espi:value>100</espi:value>
        </espi:IntervalReading>
      </espi:IntervalBlock>
    </content>
  </entry>
</feed>`

	result, err := ReadGreenButtonXML(strings.NewReader(feed), "1044372", "")
	if err != nil {
		t.Fatalf("read green button: %v", err)
	}
	if len(result.Readings) != 2 {
		t.Fatalf("got %d readings, want 2", len(result.Readings))
	}
	if result.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", result.Skipped)
	}

	first := result.Readings[0]
	if want := time.Unix(1721019600, 0).UTC(); !first.Start.Equal(want) {
		t.Errorf("start = %v, want %v", first.Start, want)
	}
	if first.Duration != 15*time.Minute {
		t.Errorf("duration = %v, want 15m", first.Duration)
	}
	if math.Abs(first.KWh-0.250) > 1e-9 {
		t.Errorf("kwh = %v, want 0.250", first.KWh)
	}
	if first.Meter != DefaultMeter {
		t.Errorf("meter = %q, want default", first.Meter)
	}
	if first.Source != meterdata.SourceGreenButton {
		t.Errorf("source = %q, want green_button", first.Source)
	}
}

func TestReadGreenButtonXMLErrors(t *testing.T) {
	if _, err := ReadGreenButtonXML(strings.NewReader("<feed/>"), "", "1"); err == nil {
		t.Error("expected error for empty esiid")
	}
	if _, err := ReadGreenButtonXML(strings.NewReader("not xml"), "e", "1"); err == nil {
		t.Error("expected error for malformed xml")
	}
	if _, err := ReadGreenButtonXML(strings.NewReader("<feed></feed>"), "e", "1"); err == nil {
		t.Error("expected error for feed without interval blocks")
	}
}
