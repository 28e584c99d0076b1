package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// CalibrationController exposes the magnetic calibration actions to the Web
// UI. The reporter service implements it; calls arm a one-shot flag, so they
// return immediately.
type CalibrationController interface {
	RequestSaveCalibration()
	RequestEraseCalibration()
}

func Handler(status *Status, settings SettingsStore, logs *LogBuffer, cal CalibrationController) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		snap := status.Snapshot(time.Now().UTC())
		b, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			http.Error(w, "marshal failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(b)
		_, _ = w.Write([]byte("\n"))
	})

	calAction := func(name string, fire func()) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				w.Header().Set("Allow", http.MethodPost)
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			if cal == nil {
				http.Error(w, name+" unavailable", http.StatusNotFound)
				return
			}
			fire()
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte("{\"ok\":true}\n"))
		}
	}
	mux.HandleFunc("/api/calibration/save", calAction("calibration save", func() {
		cal.RequestSaveCalibration()
	}))
	mux.HandleFunc("/api/calibration/erase", calAction("calibration erase", func() {
		cal.RequestEraseCalibration()
	}))

	// Settings API (read/write YAML config). Changes are applied immediately
	// when supported. Kept intentionally small.
	mux.Handle("/api/settings", settings.Handler())

	if logs != nil {
		mux.Handle("/api/logs", logs.Handler())
	}

	mux.Handle("/api/about", AboutHandler())

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}

		snap := status.Snapshot(time.Now().UTC())
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = fmt.Fprintf(w, "<!doctype html><html><head><meta charset=\"utf-8\"><title>orientd</title></head><body>")
		_, _ = fmt.Fprintf(w, "<h1>orientd</h1>")
		_, _ = fmt.Fprintf(w, "<p>See <a href=\"/api/status\">/api/status</a>, <a href=\"/api/settings\">/api/settings</a>, <a href=\"/api/logs\">/api/logs</a>.</p>")
		_, _ = fmt.Fprintf(w, "<pre>mode=%s\ndest=%s\ndeltas_sent_total=%d\nlast_delta_utc=%s</pre>",
			snap.Mode, snap.Dest, snap.DeltasSentTotal, snap.LastDeltaUTC,
		)
		_, _ = fmt.Fprintf(w, "</body></html>")
	})

	return mux
}

func Serve(ctx context.Context, listenAddr string, status *Status, settings SettingsStore, logs *LogBuffer, cal CalibrationController) error {
	if status == nil {
		status = NewStatus()
	}

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           Handler(status, settings, logs, cal),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
