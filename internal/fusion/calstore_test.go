package fusion

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCalibrationStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "mag.json")

	in := Calibration{
		Offset:         [3]float64{1.5, -2.25, 0.5},
		FieldMagnitude: 48.75,
		FitErrorPct:    2.5,
		Solver:         10,
	}
	if err := saveCalibration(path, in); err != nil {
		t.Fatalf("saveCalibration: %v", err)
	}

	out, ok, err := loadCalibration(path)
	if err != nil {
		t.Fatalf("loadCalibration: %v", err)
	}
	if !ok {
		t.Fatalf("expected calibration present")
	}
	if out.Offset != in.Offset || out.FieldMagnitude != in.FieldMagnitude ||
		out.FitErrorPct != in.FitErrorPct || out.Solver != in.Solver {
		t.Fatalf("got %+v want %+v", out, in)
	}
	if out.SavedAtUTC == "" {
		t.Fatalf("expected SavedAtUTC stamped on save")
	}
}

func TestLoadCalibration_Missing(t *testing.T) {
	_, ok, err := loadCalibration(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("err=%v want nil for missing file", err)
	}
	if ok {
		t.Fatalf("ok=true want false")
	}
}

func TestLoadCalibration_EmptyPathIsDisabled(t *testing.T) {
	_, ok, err := loadCalibration("")
	if err != nil || ok {
		t.Fatalf("ok=%v err=%v want disabled no-op", ok, err)
	}
}

func TestLoadCalibration_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mag.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, _, err := loadCalibration(path); err == nil {
		t.Fatalf("expected parse error")
	}

	// Parseable but nonsense magnitude is also rejected.
	if err := os.WriteFile(path, []byte(`{"field_magnitude_ut":0}`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, _, err := loadCalibration(path); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestSaveCalibration_NoPath(t *testing.T) {
	if err := saveCalibration("", Calibration{FieldMagnitude: 50}); err == nil {
		t.Fatalf("expected error when path not configured")
	}
}

func TestEraseCalibration_MissingIsFine(t *testing.T) {
	if err := eraseCalibration(filepath.Join(t.TempDir(), "absent.json")); err != nil {
		t.Fatalf("erase missing: %v", err)
	}
	if err := eraseCalibration(""); err != nil {
		t.Fatalf("erase with empty path: %v", err)
	}
}
