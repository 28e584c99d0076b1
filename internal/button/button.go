// Package button watches a physical pushbutton wired to a GPIO line and
// turns presses into calibration commands: a short press saves the current
// magnetic calibration, a long hold erases it.
package button

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Requester accepts the calibration commands the button can issue. The
// reporter service implements it.
type Requester interface {
	RequestSaveCalibration()
	RequestEraseCalibration()
}

type Config struct {
	Enable bool
	// Pin is the BCM GPIO number the button is wired to (active low,
	// internal pull-up).
	Pin int
	// HoldErase is the minimum hold time for an erase. Zero selects the
	// default of 3 seconds.
	HoldErase time.Duration
}

const defaultHoldErase = 3 * time.Second

type action int

const (
	actionNone action = iota
	actionSave
	actionErase
)

// presser is the press/release state machine. Only the run goroutine
// touches it.
type presser struct {
	holdErase time.Duration
	down      bool
	pressedAt time.Time
}

// edge consumes one debounced edge and returns the action to take, if any.
// Commands fire on release so a hold can still become an erase.
func (p *presser) edge(pressed bool, at time.Time) action {
	if pressed {
		if !p.down {
			p.down = true
			p.pressedAt = at
		}
		return actionNone
	}
	if !p.down {
		// Release without a matching press, e.g. the button was held
		// during startup.
		return actionNone
	}
	p.down = false
	if at.Sub(p.pressedAt) >= p.holdErase {
		return actionErase
	}
	return actionSave
}

type event struct {
	pressed bool
	at      time.Time
}

type watcher interface {
	Events() <-chan event
	Close() error
}

type Service struct {
	cfg Config
	req Requester
	w   watcher
}

func New(cfg Config, req Requester) (*Service, error) {
	if req == nil {
		return nil, fmt.Errorf("button: requester is nil")
	}
	if cfg.HoldErase <= 0 {
		cfg.HoldErase = defaultHoldErase
	}
	return &Service{cfg: cfg, req: req}, nil
}

// Run opens the GPIO line and dispatches presses until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	if s == nil || !s.cfg.Enable {
		<-ctx.Done()
		return ctx.Err()
	}

	w, err := openWatcher(s.cfg.Pin)
	if err != nil {
		return fmt.Errorf("button: %w", err)
	}
	s.w = w
	defer w.Close()

	log.Printf("button: watching GPIO%d (hold %s to erase)", s.cfg.Pin, s.cfg.HoldErase)
	s.loop(ctx, w.Events())
	return ctx.Err()
}

func (s *Service) loop(ctx context.Context, events <-chan event) {
	p := presser{holdErase: s.cfg.HoldErase}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch p.edge(ev.pressed, ev.at) {
			case actionSave:
				log.Printf("button: short press, saving magnetic calibration")
				s.req.RequestSaveCalibration()
			case actionErase:
				log.Printf("button: long hold, erasing magnetic calibration")
				s.req.RequestEraseCalibration()
			}
		}
	}
}
