package ds3231

// Address is the 7-bit I2C address of the DS3231.
const Address = 0x68

// Register is an address in the DS3231 register map.
type Register uint8

const (
	RegisterSeconds        Register = 0x00
	RegisterMinutes        Register = 0x01
	RegisterHour           Register = 0x02
	RegisterDayOfWeek      Register = 0x03
	RegisterDate           Register = 0x04
	RegisterMonthCentury   Register = 0x05
	RegisterYear           Register = 0x06
	RegisterAlarm1Seconds  Register = 0x07
	RegisterAlarm1Minutes  Register = 0x08
	RegisterAlarm1Hours    Register = 0x09
	RegisterAlarm1DayDate  Register = 0x0a
	RegisterAlarm2Minutes  Register = 0x0b
	RegisterAlarm2Hours    Register = 0x0c
	RegisterAlarm2DayDate  Register = 0x0d
	RegisterControl        Register = 0x0e
	RegisterStatus         Register = 0x0f
	RegisterAgingOffset    Register = 0x10
	RegisterTemperatureMSB Register = 0x11
	RegisterTemperatureLSB Register = 0x12
)

// AlarmMaskBit in the day/date alarm register makes the alarm ignore the date, matching on time of
// day only.
const AlarmMaskBit = 7

// Control register bits.
const (
	ControlA1IE  = 0 // alarm 1 interrupt enable
	ControlA2IE  = 1 // alarm 2 interrupt enable
	ControlINTCN = 2 // route alarms to INT/SQW instead of the square wave
	ControlRS1   = 3 // rate select, 2 bits
	ControlConv  = 5 // start a temperature conversion
	ControlBBSQW = 6 // square wave on battery
	ControlEOSC  = 7 // oscillator disable (active low)

	controlRateMask = 0b11
)

// Status register bits.
const (
	StatusA1F     = 0 // alarm 1 matched
	StatusA2F     = 1 // alarm 2 matched
	StatusBusy    = 2
	StatusEN32kHz = 3
	StatusOSF     = 7 // oscillator stopped at some point
)

// SQWRate is the square wave frequency selected by RS2:RS1.
type SQWRate uint8

const (
	SQW1Hz    SQWRate = 0
	SQW1024Hz SQWRate = 1
	SQW4096Hz SQWRate = 2
	SQW8192Hz SQWRate = 3
)
