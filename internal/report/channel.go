// Package report maps fusion snapshots onto Signal K paths on a schedule.
//
// Each configured report owns one output path: a channel naming the physical
// quantity, the Signal K path it is sent on, and its reporting interval.
// The package is the adaptation layer between the fusion source and the
// network codec; it holds no sensor or protocol logic of its own.
package report

import (
	"fmt"
	"time"

	"orientd/internal/fusion"
	"orientd/internal/signalk"
)

// Channel names one reportable quantity from the fusion source.
type Channel string

const (
	// Heading/attitude. Compass heading and yaw are the same reading
	// published under different Signal K paths.
	ChannelCompassHeading Channel = "compass_heading"
	ChannelYaw            Channel = "yaw"
	ChannelPitch          Channel = "pitch"
	ChannelRoll           Channel = "roll"
	ChannelAttitude       Channel = "attitude"

	ChannelAccelerationX Channel = "acceleration_x"
	ChannelAccelerationY Channel = "acceleration_y"
	ChannelAccelerationZ Channel = "acceleration_z"

	ChannelRateOfTurn  Channel = "rate_of_turn"
	ChannelRateOfPitch Channel = "rate_of_pitch"
	ChannelRateOfRoll  Channel = "rate_of_roll"

	ChannelTemperature Channel = "temperature"

	ChannelMagFitInUse        Channel = "mag_fit_in_use"
	ChannelMagFitTrial        Channel = "mag_fit_trial"
	ChannelMagSolver          Channel = "mag_solver"
	ChannelMagInclination     Channel = "mag_inclination"
	ChannelMagMagnitude       Channel = "mag_magnitude"
	ChannelMagMagnitudeTrial  Channel = "mag_magnitude_trial"
	ChannelMagNoiseCovariance Channel = "mag_noise_covariance"

	// ChannelMagCal bundles the calibration diagnostics into one struct
	// value, the counterpart of ChannelAttitude for calibration data.
	ChannelMagCal Channel = "magcal"
)

var defaultPaths = map[Channel]string{
	ChannelCompassHeading:     signalk.PathHeadingCompass,
	ChannelYaw:                signalk.PathHeadingMagnetic,
	ChannelPitch:              signalk.PathAttitude + ".pitch",
	ChannelRoll:               signalk.PathAttitude + ".roll",
	ChannelAttitude:           signalk.PathAttitude,
	ChannelAccelerationX:      signalk.PathAccelerationX,
	ChannelAccelerationY:      signalk.PathAccelerationY,
	ChannelAccelerationZ:      signalk.PathAccelerationZ,
	ChannelRateOfTurn:         signalk.PathRateOfTurn,
	ChannelRateOfPitch:        signalk.PathRateOfPitch,
	ChannelRateOfRoll:         signalk.PathRateOfRoll,
	ChannelTemperature:        signalk.PathTemperature,
	ChannelMagFitInUse:        signalk.PathMagFit,
	ChannelMagFitTrial:        signalk.PathMagFitTrial,
	ChannelMagSolver:          signalk.PathMagSolver,
	ChannelMagInclination:     signalk.PathMagInclination,
	ChannelMagMagnitude:       signalk.PathMagMagnitude,
	ChannelMagMagnitudeTrial:  signalk.PathMagMagnitudeTrial,
	ChannelMagNoiseCovariance: signalk.PathMagNoise,
	ChannelMagCal:             signalk.PathMagCalValues,
}

// Known reports whether c names a supported channel.
func (c Channel) Known() bool {
	_, ok := defaultPaths[c]
	return ok
}

// DefaultPath returns the Signal K path used when the config does not
// override one.
func (c Channel) DefaultPath() string {
	return defaultPaths[c]
}

// Value builds the Signal K value for this channel from a snapshot.
//
// Scalar channels carry snap.Valid through signalk.Number so invalid
// readings serialize as null. The struct channels apply their own
// null rules (see signalk.Attitude and signalk.MagCal).
func (c Channel) Value(snap fusion.Snapshot) (any, error) {
	num := func(v float64) signalk.Number {
		return signalk.Number{Valid: snap.Valid, Value: v}
	}
	switch c {
	case ChannelCompassHeading, ChannelYaw:
		return num(snap.HeadingRad), nil
	case ChannelPitch:
		return num(snap.PitchRad), nil
	case ChannelRoll:
		return num(snap.RollRad), nil
	case ChannelAttitude:
		return signalk.Attitude{
			Valid: snap.Valid,
			Yaw:   snap.HeadingRad,
			Pitch: snap.PitchRad,
			Roll:  snap.RollRad,
		}, nil
	case ChannelAccelerationX:
		return num(snap.AccelX), nil
	case ChannelAccelerationY:
		return num(snap.AccelY), nil
	case ChannelAccelerationZ:
		return num(snap.AccelZ), nil
	case ChannelRateOfTurn:
		return num(snap.TurnRateRadPerS), nil
	case ChannelRateOfPitch:
		return num(snap.PitchRateRadPerS), nil
	case ChannelRateOfRoll:
		return num(snap.RollRateRadPerS), nil
	case ChannelTemperature:
		return num(snap.TemperatureK), nil
	case ChannelMagFitInUse:
		return num(snap.FitErrorPct), nil
	case ChannelMagFitTrial:
		return num(snap.FitErrorTrialPct), nil
	case ChannelMagSolver:
		return num(float64(snap.Solver)), nil
	case ChannelMagInclination:
		return num(snap.InclinationRad), nil
	case ChannelMagMagnitude:
		return num(snap.FieldMagnitudeUT), nil
	case ChannelMagMagnitudeTrial:
		return num(snap.FieldMagnitudeTrial), nil
	case ChannelMagNoiseCovariance:
		return num(snap.NoiseCovariance), nil
	case ChannelMagCal:
		return signalk.MagCal{
			Valid:               snap.Valid,
			InclinationRad:      snap.InclinationRad,
			FitError:            snap.FitErrorPct,
			FitErrorTrial:       snap.FitErrorTrialPct,
			FieldMagnitude:      snap.FieldMagnitudeUT,
			FieldMagnitudeTrial: snap.FieldMagnitudeTrial,
			NoiseCovariance:     snap.NoiseCovariance,
			Solver:              snap.Solver,
		}, nil
	default:
		return nil, fmt.Errorf("report: unknown channel %q", string(c))
	}
}

// Report is one configured output: what to send, where, and how often.
type Report struct {
	Channel  Channel
	Path     string
	Interval time.Duration
}
