package fusion

import (
	"math"
	"testing"
)

func TestSphereFit_PerfectSphere(t *testing.T) {
	var samples [][3]float64
	for i := 0; i < 16; i++ {
		theta := 2 * math.Pi * float64(i) / 16
		samples = append(samples, [3]float64{50 * math.Cos(theta), 50 * math.Sin(theta), 0})
	}
	mag, ferr, noise := sphereFit(samples, [3]float64{0, 0, 0})
	if math.Abs(mag-50) > 1e-9 {
		t.Fatalf("magnitude=%v want 50", mag)
	}
	if ferr > 1e-9 {
		t.Fatalf("fitErr=%v want 0", ferr)
	}
	if noise > 1e-9 {
		t.Fatalf("noise=%v want 0", noise)
	}
}

func TestSphereFit_OffsetSkewsFit(t *testing.T) {
	var samples [][3]float64
	for i := 0; i < 16; i++ {
		theta := 2 * math.Pi * float64(i) / 16
		samples = append(samples, [3]float64{20 + 50*math.Cos(theta), 50 * math.Sin(theta), 0})
	}
	_, ferrCentered, _ := sphereFit(samples, [3]float64{20, 0, 0})
	_, ferrWrong, _ := sphereFit(samples, [3]float64{0, 0, 0})
	if ferrCentered > 1e-9 {
		t.Fatalf("centered fitErr=%v want 0", ferrCentered)
	}
	if ferrWrong <= 1 {
		t.Fatalf("off-center fitErr=%v want clearly worse", ferrWrong)
	}
}

func TestSolverOrder_Grades(t *testing.T) {
	octant := func(x, y, z float64) [3]float64 { return [3]float64{x, y, z} }

	one := [][3]float64{octant(1, 1, 1)}
	if got := solverOrder(one, [3]float64{}); got != 0 {
		t.Fatalf("one octant: solver=%d want 0", got)
	}

	four := [][3]float64{
		octant(1, 1, 1), octant(-1, 1, 1), octant(1, -1, 1), octant(-1, -1, 1),
	}
	if got := solverOrder(four, [3]float64{}); got != 4 {
		t.Fatalf("four octants: solver=%d want 4", got)
	}

	six := append(four, octant(1, 1, -1), octant(-1, 1, -1))
	if got := solverOrder(six, [3]float64{}); got != 7 {
		t.Fatalf("six octants: solver=%d want 7", got)
	}

	eight := append(six, octant(1, -1, -1), octant(-1, -1, -1))
	if got := solverOrder(eight, [3]float64{}); got != 10 {
		t.Fatalf("eight octants: solver=%d want 10", got)
	}
}

func TestCalibrator_TrialTracksOffset(t *testing.T) {
	c := newCalibrator()
	feedSphere(c, [3]float64{5, -10, 20}, 45)

	snap := c.snapshot()
	if math.Abs(snap.trial.Offset[0]-5) > 2 ||
		math.Abs(snap.trial.Offset[1]+10) > 2 ||
		math.Abs(snap.trial.Offset[2]-20) > 2 {
		t.Fatalf("trial offset=%v want ~[5 -10 20]", snap.trial.Offset)
	}
	if math.Abs(snap.trial.FieldMagnitude-45) > 2 {
		t.Fatalf("trial magnitude=%v want ~45", snap.trial.FieldMagnitude)
	}
	if snap.trial.Solver != 10 {
		t.Fatalf("trial solver=%d want 10", snap.trial.Solver)
	}
	if snap.fitErrorTrialPct > 3.5 {
		t.Fatalf("trial fit=%v want well under 3.5", snap.fitErrorTrialPct)
	}
}

func TestCalibrator_InUseFitWorsensInNewEnvironment(t *testing.T) {
	c := newCalibrator()
	feedSphere(c, [3]float64{0, 0, 0}, 50)
	if _, ok := c.promoteTrial(); !ok {
		t.Fatalf("promoteTrial refused")
	}

	// Simulate a changed magnetic environment: same sphere, big new offset.
	// The in-use fit error should degrade while the trial re-converges.
	feedSphere(c, [3]float64{40, 0, 0}, 50)

	snap := c.snapshot()
	if snap.fitErrorPct <= snap.fitErrorTrialPct {
		t.Fatalf("inUse fit=%v trial fit=%v; want inUse clearly worse",
			snap.fitErrorPct, snap.fitErrorTrialPct)
	}
}

func TestCalibrator_ResetClearsState(t *testing.T) {
	c := newCalibrator()
	feedSphere(c, [3]float64{0, 0, 0}, 50)
	if _, ok := c.promoteTrial(); !ok {
		t.Fatalf("promoteTrial refused")
	}

	c.reset()
	snap := c.snapshot()
	if snap.inUse.FieldMagnitude != 0 || snap.inUse.Solver != 0 {
		t.Fatalf("inUse=%+v want identity", snap.inUse)
	}
	if len(c.window) != 0 || c.n != 0 {
		t.Fatalf("window=%d n=%d want empty", len(c.window), c.n)
	}
}
