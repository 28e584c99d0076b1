package signalk

import "encoding/json"

// Attitude is the yaw/pitch/roll triple sent on navigation.attitude.
// Angles are radians per the Signal K specification.
//
// Valid gates serialization: when false, all three members render as JSON
// null. The spec requires explicit nulls (the server displays "-.----"),
// not omitted keys and not zeros, so consumers can tell "no data" from
// "level".
type Attitude struct {
	Valid bool

	Yaw   float64
	Pitch float64
	Roll  float64
}

type attitudeJSON struct {
	Yaw   *float64 `json:"yaw"`
	Pitch *float64 `json:"pitch"`
	Roll  *float64 `json:"roll"`
}

func (a Attitude) MarshalJSON() ([]byte, error) {
	var out attitudeJSON
	if a.Valid {
		y, p, r := a.Yaw, a.Pitch, a.Roll
		out = attitudeJSON{Yaw: &y, Pitch: &p, Roll: &r}
	}
	return json.Marshal(out)
}

// MagCal carries the magnetometer calibration diagnostics sent on
// orientation.calibration.magvalues.
//
// FitError and FieldMagnitude describe the in-use (stored) calibration;
// the Trial variants describe the candidate calibration continuously
// re-estimated from recent readings. Solver is the calibration order in
// {0,4,7,10}, 10 being best.
//
// When Valid is false, only the members derived from recent readings
// (inclination, trial fit, trial magnitude, noise) become null; the
// stored-calibration members stay numeric since they do not depend on the
// current reading.
type MagCal struct {
	Valid bool

	InclinationRad      float64
	FitError            float64
	FitErrorTrial       float64
	FieldMagnitude      float64
	FieldMagnitudeTrial float64
	NoiseCovariance     float64
	Solver              int
}

type magCalJSON struct {
	Incl   *float64 `json:"incl"`
	Ferr   float64  `json:"ferr"`
	Ferrt  *float64 `json:"ferrt"`
	Bmag   float64  `json:"bmag"`
	Bmagt  *float64 `json:"bmagt"`
	Noise  *float64 `json:"noise"`
	Solver int      `json:"solver"`
}

func (m MagCal) MarshalJSON() ([]byte, error) {
	out := magCalJSON{
		Ferr:   m.FitError,
		Bmag:   m.FieldMagnitude,
		Solver: m.Solver,
	}
	if m.Valid {
		incl, ferrt, bmagt, noise := m.InclinationRad, m.FitErrorTrial, m.FieldMagnitudeTrial, m.NoiseCovariance
		out.Incl = &incl
		out.Ferrt = &ferrt
		out.Bmagt = &bmagt
		out.Noise = &noise
	}
	return json.Marshal(out)
}

// Number is a scalar channel value: a JSON number when valid, else null.
type Number struct {
	Valid bool
	Value float64
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}
