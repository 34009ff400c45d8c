package tmd2771

// Address is the fixed 7-bit bus address of the TMD2771.
const Address = 0x39

// cmdBit selects register-addressed transactions and must be OR'd into every
// register address sent to the device.
const cmdBit = 0xA0

const (
	regEnable  byte = 0x00
	regATime   byte = 0x01
	regPTime   byte = 0x02
	regWTime   byte = 0x03
	regPPulse  byte = 0x0E
	regControl byte = 0x0F
	regC0Data  byte = 0x14
	regC1Data  byte = 0x16
	regPData   byte = 0x18
)

// sampleLen covers C0DATA_L through PDATA_H.
const sampleLen = 6

// sampleCommand starts an auto-increment read at C0DATA_L.
const sampleCommand = regC0Data | cmdBit

// Setting is a single register write of the init profile.
type Setting struct {
	Name     string
	Register byte
	Value    byte
}

// Command returns the register address with the command bit set.
func (s Setting) Command() byte {
	return s.Register | cmdBit
}

var initProfile = [...]Setting{
	// power on, wait, proximity and ALS enabled
	{"ENABLE", regEnable, 0x0F},
	// ALS integration 101 ms, 37 cycles
	{"ATIME", regATime, 0xDB},
	// proximity integration 2.72 ms, 1 cycle
	{"PTIME", regPTime, 0xFF},
	// wait time 2.72 ms
	{"WTIME", regWTime, 0xFF},
	// 4 proximity pulses
	{"PPULSE", regPPulse, 0x04},
	// 120 mA LED drive, CH1 diode, 1x proximity and ALS gain
	{"CONTROL", regControl, 0x20},
}

// InitProfile returns the register writes issued once at startup, in the
// order they are sent.
func InitProfile() []Setting {
	res := make([]Setting, len(initProfile))
	copy(res, initProfile[:])
	return res
}
