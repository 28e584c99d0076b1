package fusion

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Calibration persistence. The stored file is small JSON so it can be
// inspected and carried between installs.

func loadCalibration(path string) (Calibration, bool, error) {
	if path == "" {
		return Calibration{}, false, nil
	}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Calibration{}, false, nil
	}
	if err != nil {
		return Calibration{}, false, err
	}
	var cal Calibration
	if err := json.Unmarshal(b, &cal); err != nil {
		return Calibration{}, false, fmt.Errorf("parse %s: %w", path, err)
	}
	if cal.FieldMagnitude <= 0 {
		return Calibration{}, false, fmt.Errorf("parse %s: field magnitude must be > 0", path)
	}
	return cal, true, nil
}

// saveCalibration writes atomically (temp file + rename) so a crash cannot
// leave a torn calibration behind.
func saveCalibration(path string, cal Calibration) error {
	if path == "" {
		return fmt.Errorf("calibration path not configured")
	}
	cal.SavedAtUTC = time.Now().UTC().Format(time.RFC3339)

	b, err := json.MarshalIndent(cal, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".calibration-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

func eraseCalibration(path string) error {
	if path == "" {
		return nil
	}
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
