package meterdata

import "time"

// CanonicalInterval is one normalized 15-minute slot. TS is the UTC slot
// start and is always exactly on a 15-minute boundary. The persistence
// unique key is (esiid, meter, ts); upserts on that triple keep at most one
// row per slot.
type CanonicalInterval struct {
	ESIID  string
	Meter  string
	TS     time.Time
	KWh    float64
	Filled bool
	Source Source
}

// Validate checks the slot-alignment invariant.
func (ci CanonicalInterval) Validate() error {
	if ci.ESIID == "" {
		return ErrEmptyESIID
	}
	if ci.Meter == "" {
		return ErrEmptyMeter
	}
	if !ci.TS.Equal(ci.TS.Truncate(SlotWidth)) {
		return ErrUnalignedTS
	}
	return nil
}

// GroupKey identifies one meter's interval stream.
type GroupKey struct {
	ESIID string
	Meter string
}
