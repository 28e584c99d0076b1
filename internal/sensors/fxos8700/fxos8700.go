package fxos8700

import (
	"fmt"
	"time"

	"orientd/internal/i2c"
)

var sleep = time.Sleep

// Minimal FXOS8700 driver (combined accelerometer + magnetometer).
//
// The part also exposes an uncalibrated die thermometer, which we report
// since the orientation pipeline publishes a temperature channel.
// Hybrid mode with auto-increment lets one burst read return accel + mag.

const (
	addrDefault = 0x1F

	regStatus     = 0x00
	regOutXMsb    = 0x01 // accel block; mag follows in hybrid auto-inc mode
	regWhoAmI     = 0x0D
	whoAmIVal     = 0xC7
	regXYZDataCfg = 0x0E
	regCtrlReg1   = 0x2A
	regTemp       = 0x51
	regMCtrlReg1  = 0x5B
	regMCtrlReg2  = 0x5C

	fsAccel4g = 0x01

	// CTRL_REG1: 100 Hz hybrid ODR (DR=011), low-noise, active.
	ctrlReg1Active = 0x1D

	// M_CTRL_REG1: max oversampling, hybrid mode (accel + mag).
	mCtrlHybrid = 0x1F
	// M_CTRL_REG2: auto-increment jumps from accel registers to mag registers.
	mCtrlAutoInc = 0x20
)

type Sample struct {
	Time time.Time
	// Accel in g.
	Ax, Ay, Az float64
	// Mag in uT.
	Mx, My, Mz float64
}

type Device struct {
	dev regIO

	scaleAccel float64
	scaleMag   float64
}

type regIO interface {
	ReadRegU8(reg byte) (byte, error)
	ReadReg(reg byte, dst []byte) error
	WriteReg(reg, value byte) error
}

func DefaultAddress() uint16 { return addrDefault }

func New(dev *i2c.Dev) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("fxos8700: dev is nil")
	}
	return newWithIO(dev)
}

func newWithIO(dev regIO) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("fxos8700: dev is nil")
	}
	d := &Device{dev: dev}

	who, err := d.dev.ReadRegU8(regWhoAmI)
	if err != nil {
		return nil, fmt.Errorf("fxos8700: whoami read failed: %w", err)
	}
	if who != whoAmIVal {
		return nil, fmt.Errorf("fxos8700: whoami=0x%02X want 0x%02X", who, whoAmIVal)
	}

	if err := d.init(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Device) init() error {
	// Standby before touching configuration registers.
	if err := d.dev.WriteReg(regCtrlReg1, 0x00); err != nil {
		return fmt.Errorf("fxos8700: standby failed: %w", err)
	}
	sleep(10 * time.Millisecond)

	if err := d.dev.WriteReg(regXYZDataCfg, fsAccel4g); err != nil {
		return fmt.Errorf("fxos8700: accel range config failed: %w", err)
	}
	if err := d.dev.WriteReg(regMCtrlReg1, mCtrlHybrid); err != nil {
		return fmt.Errorf("fxos8700: mag config failed: %w", err)
	}
	if err := d.dev.WriteReg(regMCtrlReg2, mCtrlAutoInc); err != nil {
		return fmt.Errorf("fxos8700: mag autoinc config failed: %w", err)
	}
	if err := d.dev.WriteReg(regCtrlReg1, ctrlReg1Active); err != nil {
		return fmt.Errorf("fxos8700: activate failed: %w", err)
	}
	sleep(10 * time.Millisecond)

	// Accel: 14-bit left-justified, 0.488 mg/LSB at +/-4g.
	d.scaleAccel = 0.488e-3
	// Mag: 0.1 uT/LSB, fixed range.
	d.scaleMag = 0.1
	return nil
}

// Read returns one accel + mag sample using a single hybrid burst.
func (d *Device) Read() (Sample, error) {
	if d == nil {
		return Sample{}, fmt.Errorf("fxos8700: device is nil")
	}

	buf := make([]byte, 12)
	if err := d.dev.ReadReg(regOutXMsb, buf); err != nil {
		return Sample{}, fmt.Errorf("fxos8700: read sensors failed: %w", err)
	}

	// Accel words are 14-bit left-justified in 16 bits.
	ax := int16(buf[0])<<8 | int16(buf[1])
	ay := int16(buf[2])<<8 | int16(buf[3])
	az := int16(buf[4])<<8 | int16(buf[5])
	mx := int16(buf[6])<<8 | int16(buf[7])
	my := int16(buf[8])<<8 | int16(buf[9])
	mz := int16(buf[10])<<8 | int16(buf[11])

	return Sample{
		Time: time.Now(),
		Ax:   float64(ax>>2) * d.scaleAccel,
		Ay:   float64(ay>>2) * d.scaleAccel,
		Az:   float64(az>>2) * d.scaleAccel,
		Mx:   float64(mx) * d.scaleMag,
		My:   float64(my) * d.scaleMag,
		Mz:   float64(mz) * d.scaleMag,
	}, nil
}

// ReadTemperatureC returns the die temperature in Celsius.
//
// The sensor thermometer is uncalibrated; the datasheet gives 0.96 C/LSB.
func (d *Device) ReadTemperatureC() (float64, error) {
	if d == nil {
		return 0, fmt.Errorf("fxos8700: device is nil")
	}
	raw, err := d.dev.ReadRegU8(regTemp)
	if err != nil {
		return 0, fmt.Errorf("fxos8700: read temp failed: %w", err)
	}
	return float64(int8(raw)) * 0.96, nil
}
