package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

func TestLoad_RequiresDest(t *testing.T) {
	path := writeTempConfig(t, "signalk: {}\n")
	_, err := Load(path)
	requireErrEq(t, err, "signalk.dest is required")
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeTempConfig(t, "signalk:\n  dest: '127.0.0.1:10110'\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.SignalK.Label != "orientd" {
		t.Fatalf("label=%q want orientd", cfg.SignalK.Label)
	}
	if !cfg.Fusion.Enable {
		t.Fatalf("fusion should be enabled by default")
	}
	if cfg.Fusion.AccelMagAddr != 0x1F || cfg.Fusion.GyroAddr != 0x21 {
		t.Fatalf("addrs=%#x,%#x want 0x1f,0x21", cfg.Fusion.AccelMagAddr, cfg.Fusion.GyroAddr)
	}
	if cfg.Fusion.RateHz != 40 {
		t.Fatalf("rate_hz=%d want 40", cfg.Fusion.RateHz)
	}
	if cfg.Fusion.CalibrationPath == "" {
		t.Fatalf("expected default calibration path")
	}
	if len(cfg.Reports) == 0 {
		t.Fatalf("expected default reports")
	}
	for i, r := range cfg.Reports {
		if r.Interval <= 0 {
			t.Fatalf("reports[%d].interval not defaulted", i)
		}
	}
	if cfg.Web.Listen != ":8080" {
		t.Fatalf("web.listen=%q want :8080", cfg.Web.Listen)
	}
	if cfg.Button.HoldErase.Std() != 3*time.Second {
		t.Fatalf("button.hold_erase=%v want 3s", cfg.Button.HoldErase.Std())
	}
}

func TestLoad_DurationStrings(t *testing.T) {
	path := writeTempConfig(t, strings.Join([]string{
		"signalk:",
		"  dest: '127.0.0.1:10110'",
		"reports:",
		"  - channel: attitude",
		"    interval: 250ms",
		"  - channel: magcal",
		"    interval: 2s",
		"",
	}, "\n"))
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Reports[0].Interval.Std() != 250*time.Millisecond {
		t.Fatalf("interval=%v want 250ms", cfg.Reports[0].Interval.Std())
	}
	if cfg.Reports[1].Interval.Std() != 2*time.Second {
		t.Fatalf("interval=%v want 2s", cfg.Reports[1].Interval.Std())
	}
}

func TestLoad_BadDurationRejected(t *testing.T) {
	path := writeTempConfig(t, "signalk:\n  dest: 'x:1'\nreports:\n  - channel: attitude\n    interval: soon\n")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "invalid duration") {
		t.Fatalf("err=%v want invalid duration", err)
	}
}

func TestLoad_UnknownChannelRejected(t *testing.T) {
	path := writeTempConfig(t, "signalk:\n  dest: 'x:1'\nreports:\n  - channel: frobnicate\n")
	_, err := Load(path)
	requireErrEq(t, err, `reports[0].channel "frobnicate" is unknown`)
}

func TestLoad_FusionAndSimMutuallyExclusive(t *testing.T) {
	path := writeTempConfig(t, "signalk:\n  dest: 'x:1'\nfusion:\n  enable: true\nsim:\n  enable: true\n")
	_, err := Load(path)
	requireErrEq(t, err, "fusion and sim cannot both be enabled")
}

func TestLoad_SimDisablesFusionDefault(t *testing.T) {
	path := writeTempConfig(t, "signalk:\n  dest: 'x:1'\nsim:\n  enable: true\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Fusion.Enable {
		t.Fatalf("fusion should stay disabled when sim is enabled")
	}
	if cfg.Sim.RollPeriod.Std() != 8*time.Second || cfg.Sim.TurnPeriod.Std() != 5*time.Minute {
		t.Fatalf("sim periods not defaulted: %v %v", cfg.Sim.RollPeriod.Std(), cfg.Sim.TurnPeriod.Std())
	}
}

func TestLoad_ButtonRequiresPin(t *testing.T) {
	path := writeTempConfig(t, "signalk:\n  dest: 'x:1'\nbutton:\n  enable: true\n")
	_, err := Load(path)
	requireErrEq(t, err, "button.pin is required when button.enable is true")
}

func TestLoad_RateHzRange(t *testing.T) {
	path := writeTempConfig(t, "signalk:\n  dest: 'x:1'\nfusion:\n  enable: true\n  rate_hz: 500\n")
	_, err := Load(path)
	requireErrEq(t, err, "fusion.rate_hz must be in [1,200]")
}

func TestLoad_RejectsUnknownField(t *testing.T) {
	path := writeTempConfig(t, "signalk:\n  dest: 'x:1'\n  frequency: 10\n")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "frequency") {
		t.Fatalf("err=%v want unknown field error", err)
	}
}
