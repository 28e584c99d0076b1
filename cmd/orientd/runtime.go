package main

import (
	"context"
	"log"
	"math"
	"time"

	"orientd/internal/button"
	"orientd/internal/config"
	"orientd/internal/fusion"
	"orientd/internal/report"
	"orientd/internal/sim"
	"orientd/internal/udp"
	"orientd/internal/web"
)

// run wires the configured source, the reporters, and the control surfaces
// together and blocks until ctx is done or the reporter fails.
func run(ctx context.Context, cfg config.Config, configPath string, logs *web.LogBuffer) error {
	broadcaster, err := udp.NewBroadcaster(cfg.SignalK.Dest)
	if err != nil {
		return err
	}
	defer broadcaster.Close()

	src, mode := newSource(ctx, cfg)

	reporter, err := report.New(report.Config{
		SourceLabel: cfg.SignalK.Label,
		Reports:     reportsFromConfig(cfg.Reports),
	}, src, broadcaster)
	if err != nil {
		return err
	}

	status := web.NewStatus()
	status.SetStatic(mode, cfg.SignalK.Dest)

	errCh := make(chan error, 1)
	go func() {
		errCh <- reporter.Run(ctx)
	}()

	if cfg.Button.Enable {
		btn, err := button.New(button.Config{
			Enable:    true,
			Pin:       cfg.Button.Pin,
			HoldErase: cfg.Button.HoldErase.Std(),
		}, reporter)
		if err != nil {
			return err
		}
		go func() {
			if err := btn.Run(ctx); err != nil && ctx.Err() == nil {
				// The daemon stays useful without the button.
				log.Printf("button stopped: %v", err)
			}
		}()
	}

	go statusLoop(ctx, status, src, reporter)

	if cfg.Web.Enable {
		settings := web.SettingsStore{
			ConfigPath: configPath,
			// Make edited settings effective without a restart: redial the
			// sink and reschedule the reports.
			Apply: func(c config.Config) error {
				if err := broadcaster.SetDest(c.SignalK.Dest); err != nil {
					return err
				}
				return reporter.Reconfigure(c.SignalK.Label, reportsFromConfig(c.Reports))
			},
		}
		go func() {
			if err := web.Serve(ctx, cfg.Web.Listen, status, settings, logs, reporter); err != nil && ctx.Err() == nil {
				log.Printf("web server stopped: %v", err)
			}
		}()
		log.Printf("web listening on %s", cfg.Web.Listen)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// newSource builds the snapshot source: the hardware fusion service or the
// bench simulator.
func newSource(ctx context.Context, cfg config.Config) (report.Source, string) {
	if cfg.Sim.Enable {
		return sim.NewSource(sim.VesselSim{
			RollAmplitudeRad:  cfg.Sim.RollAmplitudeDeg * math.Pi / 180,
			PitchAmplitudeRad: cfg.Sim.PitchAmplitudeDeg * math.Pi / 180,
			RollPeriod:        cfg.Sim.RollPeriod.Std(),
			TurnPeriod:        cfg.Sim.TurnPeriod.Std(),
		}), "sim"
	}

	svc := fusion.New(fusion.Config{
		Enable:          true,
		I2CBus:          cfg.Fusion.I2CBus,
		AccelMagAddr:    cfg.Fusion.AccelMagAddr,
		GyroAddr:        cfg.Fusion.GyroAddr,
		RateHz:          cfg.Fusion.RateHz,
		CalibrationPath: cfg.Fusion.CalibrationPath,
	})
	if err := svc.Start(ctx); err != nil {
		// Keep running; the snapshots stay invalid and the reports carry
		// nulls until the sensors come back.
		log.Printf("fusion init failed: %v", err)
	}
	return svc, "fusion"
}

func reportsFromConfig(rcs []config.ReportConfig) []report.Report {
	out := make([]report.Report, 0, len(rcs))
	for _, rc := range rcs {
		out = append(out, report.Report{
			Channel:  report.Channel(rc.Channel),
			Path:     rc.Path,
			Interval: rc.Interval.Std(),
		})
	}
	return out
}

// statusLoop refreshes the web status page once a second from the source
// snapshot and the reporter counters.
func statusLoop(ctx context.Context, status *web.Status, src report.Source, reporter *report.Service) {
	t := time.NewTicker(1 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		snap := src.Snapshot()
		status.SetOrientation(snap.UpdatedAt, orientationView(snap))
		status.SetCalibration(web.CalibrationSnapshot{
			Solver:           snap.Solver,
			FitErrorPct:      snap.FitErrorPct,
			FitErrorTrialPct: snap.FitErrorTrialPct,
			FieldMagnitudeUT: snap.FieldMagnitudeUT,
		})

		if emitted, lastAt := reporter.Stats(); emitted > 0 {
			status.MarkDeltas(lastAt, emitted)
		}
	}
}

func orientationView(snap fusion.Snapshot) web.OrientationSnapshot {
	o := web.OrientationSnapshot{Valid: snap.Valid}
	if !snap.Valid {
		return o
	}
	deg := func(rad float64) *float64 {
		v := rad * 180 / math.Pi
		return &v
	}
	o.HeadingDeg = deg(snap.HeadingRad)
	o.PitchDeg = deg(snap.PitchRad)
	o.RollDeg = deg(snap.RollRad)
	return o
}
