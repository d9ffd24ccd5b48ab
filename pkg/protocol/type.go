// Wire layout of the UT61E+ measurement response as it arrives over the
// meter's USB-UART bridge.
package protocol

const (
	SyncByte0 byte = 0xAB
	SyncByte1 byte = 0xCD

	// Bytes following the length byte, checksum included.
	PayloadLength byte = 0x10

	FrameSize = 3 + int(PayloadLength)
)

// Byte offsets inside a RawFrame.
const (
	OffsetLength   = 2
	OffsetMode     = 3
	OffsetRange    = 4
	OffsetDisplay  = 5
	DisplayWidth   = 7
	OffsetBarGraph = 12
	OffsetFlagsA   = 14
	OffsetFlagsB   = 15
	OffsetFlagsC   = 16
	OffsetChecksum = 17
)

// Flag bytes carry an ASCII '0' base with the indicator bits in the low nibble.
const (
	FlagBase byte = 0x30

	// Flags A
	FlagRelative byte = 0x01
	FlagHold     byte = 0x02
	FlagMin      byte = 0x04
	FlagMax      byte = 0x08

	// Flags B
	FlagHighVoltage byte = 0x01
	FlagLowBattery  byte = 0x02
	FlagManualRange byte = 0x04

	// Flags C
	FlagBarPolarity byte = 0x01
	FlagPeakMin     byte = 0x02
	FlagPeakMax     byte = 0x04
	FlagDC          byte = 0x08
)

// RangeBase is the range code of the lowest range step.
const RangeBase byte = 0x30

// Bridges the meter ships with.
type DeviceID struct {
	VendorID  uint16
	ProductID uint16
	Name      string
}

var KnownDevices = []DeviceID{
	{VendorID: 0x1A86, ProductID: 0xE429, Name: "QinHeng CH9329"},
	{VendorID: 0x10C4, ProductID: 0xEA80, Name: "Silicon Labs CP2110"},
}

// GetMeasurement asks the meter for one display snapshot.
var GetMeasurement = []byte{SyncByte0, SyncByte1, 0x03, 0x5E, 0x01, 0xD9}

// RawFrame is one complete, fixed-size response from the meter.
type RawFrame [FrameSize]byte
