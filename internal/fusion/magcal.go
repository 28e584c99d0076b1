package fusion

import "math"

// Calibration is a hard-iron magnetometer calibration: the field offset in
// body coordinates plus the quality figures recorded when it was solved.
type Calibration struct {
	Offset         [3]float64 `json:"offset_ut"`
	FieldMagnitude float64    `json:"field_magnitude_ut"`
	FitErrorPct    float64    `json:"fit_error_pct"`
	Solver         int        `json:"solver"`
	SavedAtUTC     string     `json:"saved_at_utc,omitempty"`
}

const (
	calWindow     = 256
	calMinSamples = 32
)

// calibrator tracks the in-use calibration and continuously re-estimates a
// trial calibration from recent readings.
//
// It is owned by the fusion run loop and is not safe for concurrent use.
type calibrator struct {
	inUse Calibration

	window [][3]float64
	next   int

	min, max [3]float64
	n        int

	trial            Calibration
	fitErrorPct      float64
	fitErrorTrialPct float64
	noiseCovariance  float64
}

type calSnapshot struct {
	inUse Calibration
	trial Calibration

	fitErrorPct      float64
	fitErrorTrialPct float64
	noiseCovariance  float64
}

func newCalibrator() *calibrator {
	return &calibrator{window: make([][3]float64, 0, calWindow)}
}

func (c *calibrator) setInUse(cal Calibration) {
	c.inUse = cal
}

func (c *calibrator) reset() {
	c.inUse = Calibration{}
	c.trial = Calibration{}
	c.window = c.window[:0]
	c.next = 0
	c.n = 0
	c.min, c.max = [3]float64{}, [3]float64{}
	c.fitErrorPct = 0
	c.fitErrorTrialPct = 0
	c.noiseCovariance = 0
}

func (c *calibrator) addSample(mx, my, mz float64) {
	s := [3]float64{mx, my, mz}

	if c.n == 0 {
		c.min, c.max = s, s
	} else {
		for i := 0; i < 3; i++ {
			if s[i] < c.min[i] {
				c.min[i] = s[i]
			}
			if s[i] > c.max[i] {
				c.max[i] = s[i]
			}
		}
	}
	c.n++

	if len(c.window) < calWindow {
		c.window = append(c.window, s)
	} else {
		c.window[c.next] = s
		c.next = (c.next + 1) % calWindow
	}

	c.recompute()
}

func (c *calibrator) snapshot() calSnapshot {
	return calSnapshot{
		inUse:            c.inUse,
		trial:            c.trial,
		fitErrorPct:      c.fitErrorPct,
		fitErrorTrialPct: c.fitErrorTrialPct,
		noiseCovariance:  c.noiseCovariance,
	}
}

// promoteTrial makes the trial calibration the in-use one. It refuses while
// the trial has not seen enough of the field sphere to be trustworthy.
func (c *calibrator) promoteTrial() (Calibration, bool) {
	if len(c.window) < calMinSamples || c.trial.Solver < 4 {
		return Calibration{}, false
	}
	c.inUse = c.trial
	return c.inUse, true
}

func (c *calibrator) recompute() {
	if len(c.window) < 2 {
		return
	}

	// Trial offset: midpoint of the axis extremes seen so far.
	var off [3]float64
	for i := 0; i < 3; i++ {
		off[i] = (c.min[i] + c.max[i]) / 2
	}

	c.trial.Offset = off
	c.trial.FieldMagnitude, c.fitErrorTrialPct, _ = sphereFit(c.window, off)
	c.trial.FitErrorPct = c.fitErrorTrialPct
	c.trial.Solver = solverOrder(c.window, off)

	// In-use quality: how well recent readings sit on the stored sphere.
	mag, ferr, noise := sphereFit(c.window, c.inUse.Offset)
	if c.inUse.FieldMagnitude > 0 {
		// Measure deviation against the stored magnitude, not the refit.
		ferr = rmsDeviationPct(c.window, c.inUse.Offset, c.inUse.FieldMagnitude)
	} else {
		_ = mag
	}
	c.fitErrorPct = ferr
	c.noiseCovariance = noise
}

// sphereFit estimates the field magnitude as the mean radius about off, the
// fit error as the RMS radial deviation in percent of that magnitude, and
// the noise covariance as the radial variance.
func sphereFit(samples [][3]float64, off [3]float64) (magnitude, fitErrPct, variance float64) {
	n := float64(len(samples))
	if n == 0 {
		return 0, 0, 0
	}

	var sum float64
	for _, s := range samples {
		sum += radius(s, off)
	}
	magnitude = sum / n
	if magnitude <= 0 {
		return 0, 0, 0
	}

	var sq float64
	for _, s := range samples {
		d := radius(s, off) - magnitude
		sq += d * d
	}
	variance = sq / n
	fitErrPct = math.Sqrt(variance) / magnitude * 100
	return magnitude, fitErrPct, variance
}

func rmsDeviationPct(samples [][3]float64, off [3]float64, magnitude float64) float64 {
	if len(samples) == 0 || magnitude <= 0 {
		return 0
	}
	var sq float64
	for _, s := range samples {
		d := radius(s, off) - magnitude
		sq += d * d
	}
	return math.Sqrt(sq/float64(len(samples))) / magnitude * 100
}

func radius(s, off [3]float64) float64 {
	dx := s[0] - off[0]
	dy := s[1] - off[1]
	dz := s[2] - off[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// solverOrder grades sphere coverage the way the fusion library reports its
// solver: 0 (none), 4, 7 or 10 (full). The grade counts how many octants
// around the offset the window has visited.
func solverOrder(samples [][3]float64, off [3]float64) int {
	var seen [8]bool
	for _, s := range samples {
		idx := 0
		if s[0]-off[0] >= 0 {
			idx |= 1
		}
		if s[1]-off[1] >= 0 {
			idx |= 2
		}
		if s[2]-off[2] >= 0 {
			idx |= 4
		}
		seen[idx] = true
	}
	count := 0
	for _, ok := range seen {
		if ok {
			count++
		}
	}
	switch {
	case count >= 8:
		return 10
	case count >= 6:
		return 7
	case count >= 4:
		return 4
	default:
		return 0
	}
}
