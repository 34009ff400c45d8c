package tmd2771

import (
	"encoding/binary"
	"fmt"
)

// cpl is the counts-per-lux characterization constant for the ALS
// integration time and gain set by the init profile.
const cpl = 101.0 / 24.0

// Reading is one decoded sample.
type Reading struct {
	AmbientLux float64
	Proximity  uint16
	C0         uint16
	C1         uint16
}

// Decode splits a raw sample read from C0DATA into the two ALS channels and
// the proximity count. All values are little-endian.
func Decode(raw []byte) (c0, c1, prox uint16, err error) {
	if len(raw) != sampleLen {
		return 0, 0, 0, fmt.Errorf("invalid sample size; expected %d, got %d", sampleLen, len(raw))
	}
	c0 = binary.LittleEndian.Uint16(raw[0:2])
	c1 = binary.LittleEndian.Uint16(raw[2:4])
	prox = binary.LittleEndian.Uint16(raw[4:6])
	return c0, c1, prox, nil
}

// Luminance converts raw channel counts to lux. The result is the larger of
// the two candidates when both are positive and 0 otherwise.
func Luminance(c0, c1 uint16) float64 {
	lux1 := (1.00*float64(c0) - 2*float64(c1)) / cpl
	lux2 := (0.6*float64(c0) - 1.00*float64(c1)) / cpl
	if lux1 > 0 && lux2 > 0 {
		return max(lux1, lux2)
	}
	return 0
}

func decodeReading(raw []byte) (Reading, error) {
	c0, c1, prox, err := Decode(raw)
	if err != nil {
		return Reading{}, err
	}
	return Reading{
		AmbientLux: Luminance(c0, c1),
		Proximity:  prox,
		C0:         c0,
		C1:         c1,
	}, nil
}
