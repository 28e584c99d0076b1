package fxos8700

import (
	"errors"
	"math"
	"testing"
	"time"
)

type fakeI2C struct {
	regs   map[byte][]byte
	writes []writeOp

	readErrFor map[byte]error
}

type writeOp struct {
	reg byte
	val byte
}

func (f *fakeI2C) ReadRegU8(reg byte) (byte, error) {
	if err := f.readErrFor[reg]; err != nil {
		return 0, err
	}
	b := f.regs[reg]
	if len(b) < 1 {
		return 0, errors.New("no reg")
	}
	return b[0], nil
}

func (f *fakeI2C) ReadReg(reg byte, dst []byte) error {
	if err := f.readErrFor[reg]; err != nil {
		return err
	}
	b := f.regs[reg]
	if len(b) < len(dst) {
		return errors.New("short reg")
	}
	copy(dst, b[:len(dst)])
	return nil
}

func (f *fakeI2C) WriteReg(reg, value byte) error {
	f.writes = append(f.writes, writeOp{reg: reg, val: value})
	return nil
}

func silenceSleep(t *testing.T) {
	t.Helper()
	oldSleep := sleep
	sleep = func(time.Duration) {}
	t.Cleanup(func() { sleep = oldSleep })
}

func TestNew_WhoAmIMismatch(t *testing.T) {
	silenceSleep(t)

	f := &fakeI2C{regs: map[byte][]byte{regWhoAmI: {0x00}}}
	_, err := newWithIO(f)
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestNew_WritesExpectedInitRegisters(t *testing.T) {
	silenceSleep(t)

	f := &fakeI2C{regs: map[byte][]byte{regWhoAmI: {whoAmIVal}}}
	if _, err := newWithIO(f); err != nil {
		t.Fatalf("newWithIO: %v", err)
	}

	var sawStandby, sawHybrid, sawAutoInc, sawActive bool
	for _, w := range f.writes {
		if w.reg == regCtrlReg1 && w.val == 0x00 {
			sawStandby = true
		}
		if w.reg == regMCtrlReg1 && w.val == mCtrlHybrid {
			sawHybrid = true
		}
		if w.reg == regMCtrlReg2 && w.val == mCtrlAutoInc {
			sawAutoInc = true
		}
		if w.reg == regCtrlReg1 && w.val == ctrlReg1Active {
			sawActive = true
		}
	}
	if !sawStandby {
		t.Fatalf("expected standby write to CTRL_REG1")
	}
	if !sawHybrid {
		t.Fatalf("expected hybrid mode write to M_CTRL_REG1")
	}
	if !sawAutoInc {
		t.Fatalf("expected autoinc write to M_CTRL_REG2")
	}
	if !sawActive {
		t.Fatalf("expected active write to CTRL_REG1")
	}
}

func TestRead_ScalesAccelAndMag(t *testing.T) {
	silenceSleep(t)

	// accel x = 8192 raw (left-justified) -> 8192>>2 = 2048 counts -> 2048 * 0.488mg = ~1g
	// mag x = 500 counts -> 50.0 uT
	f := &fakeI2C{regs: map[byte][]byte{
		regWhoAmI: {whoAmIVal},
		regOutXMsb: {
			0x20, 0x00, // ax
			0x00, 0x00, // ay
			0x00, 0x00, // az
			0x01, 0xF4, // mx = 500
			0x00, 0x00, // my
			0x00, 0x00, // mz
		},
	}}
	d, err := newWithIO(f)
	if err != nil {
		t.Fatalf("newWithIO: %v", err)
	}

	s, err := d.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if math.Abs(s.Ax-2048*0.488e-3) > 1e-9 {
		t.Fatalf("Ax=%v want %v", s.Ax, 2048*0.488e-3)
	}
	if math.Abs(s.Mx-50.0) > 1e-9 {
		t.Fatalf("Mx=%v want 50.0", s.Mx)
	}
	if s.Ay != 0 || s.Az != 0 || s.My != 0 || s.Mz != 0 {
		t.Fatalf("expected zero remaining axes, got %+v", s)
	}
}

func TestRead_NegativeAccelIsSignExtended(t *testing.T) {
	silenceSleep(t)

	f := &fakeI2C{regs: map[byte][]byte{
		regWhoAmI:  {whoAmIVal},
		regOutXMsb: {0xE0, 0x00, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, // ax = -8192 raw
	}}
	d, err := newWithIO(f)
	if err != nil {
		t.Fatalf("newWithIO: %v", err)
	}

	s, err := d.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if math.Abs(s.Ax-(-2048*0.488e-3)) > 1e-9 {
		t.Fatalf("Ax=%v want %v", s.Ax, -2048*0.488e-3)
	}
}

func TestReadTemperatureC(t *testing.T) {
	silenceSleep(t)

	f := &fakeI2C{regs: map[byte][]byte{
		regWhoAmI: {whoAmIVal},
		regTemp:   {25},
	}}
	d, err := newWithIO(f)
	if err != nil {
		t.Fatalf("newWithIO: %v", err)
	}

	c, err := d.ReadTemperatureC()
	if err != nil {
		t.Fatalf("ReadTemperatureC: %v", err)
	}
	if math.Abs(c-25*0.96) > 1e-9 {
		t.Fatalf("temp=%v want %v", c, 25*0.96)
	}

	// Negative raw values are int8.
	f.regs[regTemp] = []byte{0xF6} // -10
	c, err = d.ReadTemperatureC()
	if err != nil {
		t.Fatalf("ReadTemperatureC: %v", err)
	}
	if math.Abs(c-(-10*0.96)) > 1e-9 {
		t.Fatalf("temp=%v want %v", c, -10*0.96)
	}
}

func TestRead_Error(t *testing.T) {
	silenceSleep(t)

	readErr := errors.New("bus fault")
	f := &fakeI2C{
		regs:       map[byte][]byte{regWhoAmI: {whoAmIVal}},
		readErrFor: map[byte]error{regOutXMsb: readErr},
	}
	d, err := newWithIO(f)
	if err != nil {
		t.Fatalf("newWithIO: %v", err)
	}
	if _, err := d.Read(); !errors.Is(err, readErr) {
		t.Fatalf("err=%v want wrapped %v", err, readErr)
	}
}
