package meterdata

import "errors"

var (
	ErrEmptyESIID   = errors.New("meterdata: empty esiid")
	ErrEmptyMeter   = errors.New("meterdata: empty meter")
	ErrUnalignedTS  = errors.New("meterdata: timestamp not on 15-minute boundary")
	ErrInvalidRange = errors.New("meterdata: invalid time range")
)
