package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeCalCtl struct {
	saves  int
	erases int
}

func (f *fakeCalCtl) RequestSaveCalibration()  { f.saves++ }
func (f *fakeCalCtl) RequestEraseCalibration() { f.erases++ }

func TestAPIStatus(t *testing.T) {
	st := NewStatus()
	st.SetStatic("fusion", "127.0.0.1:10110")
	heading := 92.5
	st.SetOrientation(time.Now().UTC(), OrientationSnapshot{Valid: true, HeadingDeg: &heading})
	st.SetCalibration(CalibrationSnapshot{Solver: 10, FitErrorPct: 2.5, FieldMagnitudeUT: 49.1})
	st.MarkDeltas(time.Now().UTC(), 42)

	ts := httptest.NewServer(Handler(st, SettingsStore{}, nil, nil))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type=%q", ct)
	}

	var snap StatusSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if snap.Service != "orientd" {
		t.Fatalf("service=%q", snap.Service)
	}
	if snap.Dest != "127.0.0.1:10110" {
		t.Fatalf("dest=%q", snap.Dest)
	}
	if snap.Mode != "fusion" {
		t.Fatalf("mode=%q", snap.Mode)
	}
	if snap.DeltasSentTotal != 42 {
		t.Fatalf("deltas_sent_total=%d", snap.DeltasSentTotal)
	}
	if snap.Orientation.HeadingDeg == nil || *snap.Orientation.HeadingDeg != 92.5 {
		t.Fatalf("orientation=%+v", snap.Orientation)
	}
	if snap.Calibration.Solver != 10 {
		t.Fatalf("calibration=%+v", snap.Calibration)
	}
}

func TestRootPage(t *testing.T) {
	st := NewStatus()
	ts := httptest.NewServer(Handler(st, SettingsStore{}, nil, nil))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("get root: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
}

func TestCalibrationActions(t *testing.T) {
	st := NewStatus()
	ctl := &fakeCalCtl{}
	ts := httptest.NewServer(Handler(st, SettingsStore{}, nil, ctl))
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/calibration/save", "application/json", nil)
	if err != nil {
		t.Fatalf("post save: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save status code=%d", resp.StatusCode)
	}

	resp, err = http.Post(ts.URL+"/api/calibration/erase", "application/json", nil)
	if err != nil {
		t.Fatalf("post erase: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("erase status code=%d", resp.StatusCode)
	}

	if ctl.saves != 1 || ctl.erases != 1 {
		t.Fatalf("saves=%d erases=%d want 1,1", ctl.saves, ctl.erases)
	}
}

func TestCalibrationActions_MethodAndAvailability(t *testing.T) {
	st := NewStatus()
	ts := httptest.NewServer(Handler(st, SettingsStore{}, nil, nil))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/calibration/save")
	if err != nil {
		t.Fatalf("get save: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET status code=%d want 405", resp.StatusCode)
	}

	resp, err = http.Post(ts.URL+"/api/calibration/save", "application/json", nil)
	if err != nil {
		t.Fatalf("post save: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("nil controller status code=%d want 404", resp.StatusCode)
	}
}
