package signalk

// Default Signal K paths for the orientation channels.
//
// The navigation.* paths are official specification paths; the
// orientation.calibration.* paths are daemon-defined diagnostics and carry
// no server-side metadata.
const (
	PathHeadingCompass  = "navigation.headingCompass"
	PathHeadingMagnetic = "navigation.headingMagnetic"
	PathAttitude        = "navigation.attitude"
	PathRateOfTurn      = "navigation.rateOfTurn"
	PathRateOfPitch     = "navigation.rateOfPitch"
	PathRateOfRoll      = "navigation.rateOfRoll"

	PathAccelerationX = "sensors.accelerometer.accelerationX"
	PathAccelerationY = "sensors.accelerometer.accelerationY"
	PathAccelerationZ = "sensors.accelerometer.accelerationZ"
	PathTemperature   = "sensors.accelerometer.temperature"

	PathMagFit            = "orientation.calibration.magfit"
	PathMagFitTrial       = "orientation.calibration.magfittrial"
	PathMagSolver         = "orientation.calibration.magsolver"
	PathMagInclination    = "orientation.calibration.maginclination"
	PathMagMagnitude      = "orientation.calibration.magmagnitude"
	PathMagMagnitudeTrial = "orientation.calibration.magmagnitudetrial"
	PathMagNoise          = "orientation.calibration.magnoise"
	PathMagCalValues      = "orientation.calibration.magvalues"
)
