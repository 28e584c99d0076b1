// Package fusion polls the orientation sensors and maintains the fused
// attitude and magnetic-calibration state the reporters snapshot.
//
// The estimator is deliberately modest: accel tilt + gyro complementary
// blend for pitch/roll, tilt-compensated compass heading, and running
// statistics for magnetic calibration quality. It is the data source for
// the Signal K adapters, not a flight-grade AHRS.
package fusion

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"orientd/internal/i2c"
	"orientd/internal/sensors/fxas21002"
	"orientd/internal/sensors/fxos8700"
)

const gravityMPerSS = 9.80665

type Config struct {
	Enable bool
	I2CBus int

	AccelMagAddr uint16
	GyroAddr     uint16

	// RateHz is how often sensors are read and the fusion state advanced.
	// Reporters should not poll faster than this.
	RateHz int

	CalibrationPath string
}

// Snapshot is the full getter surface of the fusion source, copied under one
// lock. All angles are radians, rates rad/s, accelerations m/s^2,
// temperature Kelvin, field magnitudes uT.
type Snapshot struct {
	Valid bool

	HeadingRad float64
	PitchRad   float64
	RollRad    float64

	TurnRateRadPerS  float64
	PitchRateRadPerS float64
	RollRateRadPerS  float64

	AccelX float64
	AccelY float64
	AccelZ float64

	TemperatureK float64

	// Magnetic calibration diagnostics.
	InclinationRad      float64
	FitErrorPct         float64
	FitErrorTrialPct    float64
	FieldMagnitudeUT    float64
	FieldMagnitudeTrial float64
	NoiseCovariance     float64
	Solver              int

	LastError string
	UpdatedAt time.Time
}

// accelMagReader and gyroReader are the slices of the sensor drivers the run
// loop needs; tests inject fakes.
type accelMagReader interface {
	Read() (fxos8700.Sample, error)
	ReadTemperatureC() (float64, error)
}

type gyroReader interface {
	Read() (fxas21002.Sample, error)
}

type Service struct {
	cfg Config

	mu      sync.RWMutex
	snap    Snapshot
	running bool

	cal *calibrator

	cmdCh chan calCmd

	bus  *i2c.Bus
	imu  accelMagReader
	gyro gyroReader

	stopOnce sync.Once
	stopCh   chan struct{}
}

type calAction int

const (
	calActionSave calAction = iota
	calActionErase
)

type calCmd struct {
	action calAction
	done   chan error
}

func New(cfg Config) *Service {
	if cfg.I2CBus == 0 {
		cfg.I2CBus = 1
	}
	if cfg.AccelMagAddr == 0 {
		cfg.AccelMagAddr = fxos8700.DefaultAddress()
	}
	if cfg.GyroAddr == 0 {
		cfg.GyroAddr = fxas21002.DefaultAddress()
	}
	if cfg.RateHz <= 0 {
		cfg.RateHz = 40
	}
	return &Service{
		cfg:    cfg,
		cal:    newCalibrator(),
		cmdCh:  make(chan calCmd, 1),
		stopCh: make(chan struct{}),
	}
}

// RateHz reports the effective fusion rate, after defaulting.
func (s *Service) RateHz() int {
	if s == nil {
		return 0
	}
	return s.cfg.RateHz
}

func (s *Service) Close() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if s.bus != nil {
			_ = s.bus.Close()
			s.bus = nil
		}
	})
}

func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("fusion: service is nil")
	}
	if !s.cfg.Enable {
		return nil
	}

	busPath := fmt.Sprintf("/dev/i2c-%d", s.cfg.I2CBus)
	bus, err := i2c.Open(busPath)
	if err != nil {
		s.setErr(fmt.Sprintf("open %s: %v", busPath, err))
		return err
	}
	s.bus = bus

	imu, err := fxos8700.New(bus.Dev(s.cfg.AccelMagAddr))
	if err != nil {
		s.setErr(fmt.Sprintf("accel/mag init: %v", err))
		_ = bus.Close()
		s.bus = nil
		return err
	}
	s.imu = imu

	gyro, err := fxas21002.New(bus.Dev(s.cfg.GyroAddr))
	if err != nil {
		s.setErr(fmt.Sprintf("gyro init: %v", err))
		_ = bus.Close()
		s.bus = nil
		return err
	}
	s.gyro = gyro

	// Stored calibration is best-effort: a missing or corrupt file means we
	// start from the identity calibration (solver 0).
	if cal, ok, err := loadCalibration(s.cfg.CalibrationPath); err != nil {
		s.setErr(fmt.Sprintf("calibration load: %v", err))
	} else if ok {
		s.cal.setInUse(cal)
	}

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	go s.run(ctx)
	return nil
}

// SaveCalibration promotes the trial calibration to in-use and persists it.
// Mirrors the fusion library's "SVMC" command.
func (s *Service) SaveCalibration(ctx context.Context) error {
	return s.command(ctx, calActionSave)
}

// EraseCalibration deletes the stored calibration and resets to identity.
// Mirrors the fusion library's "ERMC" command.
func (s *Service) EraseCalibration(ctx context.Context) error {
	return s.command(ctx, calActionErase)
}

func (s *Service) command(ctx context.Context, action calAction) error {
	if s == nil {
		return fmt.Errorf("fusion: service is nil")
	}
	if ctx == nil {
		return fmt.Errorf("fusion: ctx is nil")
	}
	// Without a run loop there is nothing to receive the command; fail fast
	// instead of parking the caller (the reporter issues these from its only
	// goroutine, with the daemon's long-lived context).
	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()
	if !running {
		return fmt.Errorf("fusion: not running")
	}
	done := make(chan error, 1)
	select {
	case s.cmdCh <- calCmd{action: action, done: done}:
	case <-s.stopCh:
		return fmt.Errorf("fusion: stopped")
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("fusion: calibration command already in progress")
	}
	select {
	case err := <-done:
		return err
	case <-s.stopCh:
		return fmt.Errorf("fusion: stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) run(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	period := time.Second / time.Duration(s.cfg.RateHz)
	tick := time.NewTicker(period)
	defer tick.Stop()

	// Complementary filter state (radians).
	var haveEst bool
	var estRollRad, estPitchRad float64
	var lastIMUAt time.Time

	// Die temperature is slow-moving; refresh it about once a second.
	tempEvery := s.cfg.RateHz
	if tempEvery < 1 {
		tempEvery = 1
	}
	tickCount := 0
	var lastTempK float64

	for {
		select {
		case <-ctx.Done():
			s.Close()
			return
		case <-s.stopCh:
			return
		case cmd := <-s.cmdCh:
			s.handleCalCmd(cmd)
		case <-tick.C:
			imuSample, err := s.imu.Read()
			if err != nil {
				s.setErr(err.Error())
				continue
			}
			gyroSample, err := s.gyro.Read()
			if err != nil {
				s.setErr(err.Error())
				continue
			}

			tickCount++
			if lastTempK == 0 || tickCount%tempEvery == 0 {
				if c, err := s.imu.ReadTemperatureC(); err == nil {
					lastTempK = c + 273.15
				}
			}

			now := time.Now().UTC()
			dt := 0.0
			if !lastIMUAt.IsZero() {
				dt = now.Sub(lastIMUAt).Seconds()
			}
			lastIMUAt = now
			if dt <= 0 || dt > 0.5 {
				dt = 0
			}

			ax, ay, az := imuSample.Ax, imuSample.Ay, imuSample.Az
			gxRad := gyroSample.Gx * math.Pi / 180.0
			gyRad := gyroSample.Gy * math.Pi / 180.0
			gzRad := gyroSample.Gz * math.Pi / 180.0

			// Roll/pitch from accel only (gravity vector).
			accRollRad := math.Atan2(ay, az)
			accPitchRad := math.Atan2(-ax, math.Sqrt(ay*ay+az*az))

			if !haveEst {
				estRollRad = accRollRad
				estPitchRad = accPitchRad
				haveEst = true
			} else if dt > 0 {
				estRollRad += gxRad * dt
				estPitchRad += gyRad * dt
			}

			// Complementary filter blend.
			tau := 0.5 // seconds
			alpha := 0.0
			if dt > 0 {
				alpha = tau / (tau + dt)
			}
			if alpha <= 0 || alpha >= 1 {
				estRollRad = accRollRad
				estPitchRad = accPitchRad
			} else {
				estRollRad = alpha*estRollRad + (1-alpha)*accRollRad
				estPitchRad = alpha*estPitchRad + (1-alpha)*accPitchRad
			}

			// Magnetic calibration statistics on the raw field.
			s.cal.addSample(imuSample.Mx, imuSample.My, imuSample.Mz)
			calSnap := s.cal.snapshot()

			// Heading from the calibrated, tilt-compensated field.
			cmx := imuSample.Mx - calSnap.inUse.Offset[0]
			cmy := imuSample.My - calSnap.inUse.Offset[1]
			cmz := imuSample.Mz - calSnap.inUse.Offset[2]
			heading := tiltCompensatedHeading(cmx, cmy, cmz, estRollRad, estPitchRad)

			incl := magneticInclination(cmx, cmy, cmz, ax, ay, az)

			s.mu.Lock()
			s.snap.Valid = true
			s.snap.HeadingRad = heading
			s.snap.PitchRad = estPitchRad
			s.snap.RollRad = estRollRad
			s.snap.TurnRateRadPerS = gzRad
			s.snap.PitchRateRadPerS = gyRad
			s.snap.RollRateRadPerS = gxRad
			s.snap.AccelX = ax * gravityMPerSS
			s.snap.AccelY = ay * gravityMPerSS
			s.snap.AccelZ = az * gravityMPerSS
			s.snap.TemperatureK = lastTempK
			s.snap.InclinationRad = incl
			s.snap.FitErrorPct = calSnap.fitErrorPct
			s.snap.FitErrorTrialPct = calSnap.fitErrorTrialPct
			s.snap.FieldMagnitudeUT = calSnap.inUse.FieldMagnitude
			s.snap.FieldMagnitudeTrial = calSnap.trial.FieldMagnitude
			s.snap.NoiseCovariance = calSnap.noiseCovariance
			s.snap.Solver = calSnap.inUse.Solver
			s.snap.LastError = ""
			s.snap.UpdatedAt = now
			s.mu.Unlock()
		}
	}
}

func (s *Service) handleCalCmd(cmd calCmd) {
	if cmd.done == nil {
		return
	}
	switch cmd.action {
	case calActionSave:
		cal, ok := s.cal.promoteTrial()
		if !ok {
			cmd.done <- fmt.Errorf("fusion: trial calibration not ready")
			return
		}
		if err := saveCalibration(s.cfg.CalibrationPath, cal); err != nil {
			cmd.done <- fmt.Errorf("fusion: calibration save: %w", err)
			return
		}
		cmd.done <- nil
	case calActionErase:
		s.cal.reset()
		if err := eraseCalibration(s.cfg.CalibrationPath); err != nil {
			cmd.done <- fmt.Errorf("fusion: calibration erase: %w", err)
			return
		}
		cmd.done <- nil
	default:
		cmd.done <- fmt.Errorf("fusion: unknown calibration action")
	}
}

func (s *Service) setErr(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Valid = false
	s.snap.LastError = msg
	s.snap.UpdatedAt = time.Now().UTC()
}

// tiltCompensatedHeading rotates the body-frame field into the horizontal
// plane and returns the compass heading in [0, 2*pi).
func tiltCompensatedHeading(mx, my, mz, rollRad, pitchRad float64) float64 {
	sr, cr := math.Sincos(rollRad)
	sp, cp := math.Sincos(pitchRad)

	xh := mx*cp + my*sr*sp + mz*cr*sp
	yh := my*cr - mz*sr

	h := math.Atan2(-yh, xh)
	if h < 0 {
		h += 2 * math.Pi
	}
	return h
}

// magneticInclination returns the dip angle of the field from horizontal.
// Positive is downward, as in the northern hemisphere.
func magneticInclination(mx, my, mz, ax, ay, az float64) float64 {
	mn := math.Sqrt(mx*mx + my*my + mz*mz)
	an := math.Sqrt(ax*ax + ay*ay + az*az)
	if mn <= 0 || an <= 0 {
		return 0
	}
	// At rest the accel vector points opposite gravity, so the downward
	// field component is the negated projection onto it.
	dot := -(mx*ax + my*ay + mz*az) / (mn * an)
	if dot > 1 {
		dot = 1
	}
	if dot < -1 {
		dot = -1
	}
	return math.Asin(dot)
}
