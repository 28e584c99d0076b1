package web

import (
	"sync/atomic"
	"time"
)

type Status struct {
	startUnixNano int64
	deltasSent    uint64
	lastDeltaNano int64
	mode          atomic.Value // string
	dest          atomic.Value // string
	orientation   atomic.Value // OrientationSnapshot
	calibration   atomic.Value // CalibrationSnapshot
}

func NewStatus() *Status {
	s := &Status{}
	now := time.Now().UTC()
	atomic.StoreInt64(&s.startUnixNano, now.UnixNano())
	atomic.StoreInt64(&s.lastDeltaNano, 0)
	s.mode.Store("")
	s.dest.Store("")
	s.orientation.Store(OrientationSnapshot{})
	s.calibration.Store(CalibrationSnapshot{})
	return s
}

// OrientationSnapshot is a small, UI-friendly view of the fusion output.
//
// Values are in degrees and omitted when unknown. This is for verification
// at the bench, not a navigation display.
type OrientationSnapshot struct {
	Valid         bool     `json:"valid"`
	HeadingDeg    *float64 `json:"heading_deg,omitempty"`
	PitchDeg      *float64 `json:"pitch_deg,omitempty"`
	RollDeg       *float64 `json:"roll_deg,omitempty"`
	LastUpdateUTC string   `json:"last_update_utc,omitempty"`
}

// CalibrationSnapshot mirrors the magnetic calibration diagnostics.
type CalibrationSnapshot struct {
	Solver           int     `json:"solver"`
	FitErrorPct      float64 `json:"fit_error_pct"`
	FitErrorTrialPct float64 `json:"fit_error_trial_pct"`
	FieldMagnitudeUT float64 `json:"field_magnitude_ut"`
}

func (s *Status) SetStatic(mode string, dest string) {
	if mode != "" {
		s.mode.Store(mode)
	}
	if dest != "" {
		s.dest.Store(dest)
	}
}

func (s *Status) SetOrientation(nowUTC time.Time, o OrientationSnapshot) {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	o.LastUpdateUTC = nowUTC.UTC().Format(time.RFC3339Nano)
	s.orientation.Store(o)
}

func (s *Status) SetCalibration(c CalibrationSnapshot) {
	s.calibration.Store(c)
}

func (s *Status) MarkDeltas(nowUTC time.Time, sentTotal uint64) {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	atomic.StoreInt64(&s.lastDeltaNano, nowUTC.UnixNano())
	atomic.StoreUint64(&s.deltasSent, sentTotal)
}

type StatusSnapshot struct {
	Service         string              `json:"service"`
	NowUTC          string              `json:"now_utc"`
	UptimeSec       int64               `json:"uptime_sec"`
	Mode            string              `json:"mode"`
	Dest            string              `json:"dest"`
	DeltasSentTotal uint64              `json:"deltas_sent_total"`
	LastDeltaUTC    string              `json:"last_delta_utc,omitempty"`
	Orientation     OrientationSnapshot `json:"orientation"`
	Calibration     CalibrationSnapshot `json:"calibration"`
}

func (s *Status) Snapshot(nowUTC time.Time) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	start := time.Unix(0, atomic.LoadInt64(&s.startUnixNano)).UTC()
	uptime := nowUTC.Sub(start)
	lastDelta := atomic.LoadInt64(&s.lastDeltaNano)

	snap := StatusSnapshot{
		Service:         "orientd",
		NowUTC:          nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec:       int64(uptime.Seconds()),
		Mode:            s.mode.Load().(string),
		Dest:            s.dest.Load().(string),
		DeltasSentTotal: atomic.LoadUint64(&s.deltasSent),
		Orientation:     s.orientation.Load().(OrientationSnapshot),
		Calibration:     s.calibration.Load().(CalibrationSnapshot),
	}
	if lastDelta != 0 {
		snap.LastDeltaUTC = time.Unix(0, lastDelta).UTC().Format(time.RFC3339Nano)
	}
	return snap
}
