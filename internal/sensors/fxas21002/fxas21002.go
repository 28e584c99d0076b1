package fxas21002

import (
	"fmt"
	"time"

	"orientd/internal/i2c"
)

var sleep = time.Sleep

// Minimal FXAS21002 gyroscope driver.
//
// Configured for the +/-250 dps range, which is plenty for vessel motion
// and gives the best resolution per LSB.

const (
	addrDefault = 0x21

	regStatus   = 0x00
	regOutXMsb  = 0x01
	regWhoAmI   = 0x0C
	whoAmIVal   = 0xD7
	regCtrlReg0 = 0x0D
	regCtrlReg1 = 0x13

	// CTRL_REG0: FS=11 -> +/-250 dps.
	fsGyro250dps = 0x03

	// CTRL_REG1 bits.
	bitReset  = 0x40
	bitActive = 0x02

	// CTRL_REG1: ODR=100 Hz (DR=010), active.
	ctrlReg1Active = 0x0A | bitActive
)

type Sample struct {
	Time time.Time
	// Rates in deg/s.
	Gx, Gy, Gz float64
}

type Device struct {
	dev regIO

	scaleGyro float64
}

type regIO interface {
	ReadRegU8(reg byte) (byte, error)
	ReadReg(reg byte, dst []byte) error
	WriteReg(reg, value byte) error
}

func DefaultAddress() uint16 { return addrDefault }

func New(dev *i2c.Dev) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("fxas21002: dev is nil")
	}
	return newWithIO(dev)
}

func newWithIO(dev regIO) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("fxas21002: dev is nil")
	}
	d := &Device{dev: dev}

	who, err := d.dev.ReadRegU8(regWhoAmI)
	if err != nil {
		return nil, fmt.Errorf("fxas21002: whoami read failed: %w", err)
	}
	if who != whoAmIVal {
		return nil, fmt.Errorf("fxas21002: whoami=0x%02X want 0x%02X", who, whoAmIVal)
	}

	if err := d.init(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Device) init() error {
	// Reset, then standby while configuring. The reset write itself reports a
	// NAK on some bus controllers because the part drops off mid-transfer, so
	// the error is ignored.
	_ = d.dev.WriteReg(regCtrlReg1, bitReset)
	sleep(100 * time.Millisecond)

	if err := d.dev.WriteReg(regCtrlReg1, 0x00); err != nil {
		return fmt.Errorf("fxas21002: standby failed: %w", err)
	}
	if err := d.dev.WriteReg(regCtrlReg0, fsGyro250dps); err != nil {
		return fmt.Errorf("fxas21002: range config failed: %w", err)
	}
	if err := d.dev.WriteReg(regCtrlReg1, ctrlReg1Active); err != nil {
		return fmt.Errorf("fxas21002: activate failed: %w", err)
	}
	// ~60 ms transition time from standby to active per datasheet.
	sleep(100 * time.Millisecond)

	// 7.8125 mdps/LSB at +/-250 dps.
	d.scaleGyro = 250.0 / 32768.0
	return nil
}

func (d *Device) Read() (Sample, error) {
	if d == nil {
		return Sample{}, fmt.Errorf("fxas21002: device is nil")
	}

	buf := make([]byte, 6)
	if err := d.dev.ReadReg(regOutXMsb, buf); err != nil {
		return Sample{}, fmt.Errorf("fxas21002: read gyro failed: %w", err)
	}

	gx := int16(buf[0])<<8 | int16(buf[1])
	gy := int16(buf[2])<<8 | int16(buf[3])
	gz := int16(buf[4])<<8 | int16(buf[5])

	return Sample{
		Time: time.Now(),
		Gx:   float64(gx) * d.scaleGyro,
		Gy:   float64(gy) * d.scaleGyro,
		Gz:   float64(gz) * d.scaleGyro,
	}, nil
}
