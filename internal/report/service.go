package report

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"orientd/internal/fusion"
	"orientd/internal/signalk"
)

// Source is the fusion surface the reporters poll. Both the hardware
// service (internal/fusion) and the bench simulator (internal/sim)
// implement it.
type Source interface {
	Snapshot() fusion.Snapshot
	SaveCalibration(ctx context.Context) error
	EraseCalibration(ctx context.Context) error
}

// Sink receives finished deltas. internal/udp provides the network sink.
type Sink interface {
	Emit(d signalk.Delta) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(d signalk.Delta) error

func (f SinkFunc) Emit(d signalk.Delta) error { return f(d) }

const defaultInterval = 100 * time.Millisecond

type Config struct {
	// SourceLabel is the delta source label, typically the daemon name.
	SourceLabel string
	Reports     []Report
}

type reportState struct {
	rep    Report
	nextAt time.Time
}

// Service drives all configured reports from one goroutine, emitting each
// on its own cadence. A one-shot calibration flag, set from the web API or
// the physical switch, is consumed before the next emission.
type Service struct {
	label string
	src   Source
	sink  Sink

	mu      sync.Mutex
	reports []reportState
	// calRequest is the one-shot flag: +1 save, -1 erase, 0 idle.
	calRequest int

	now func() time.Time

	emitted uint64
	lastAt  time.Time
}

func New(cfg Config, src Source, sink Sink) (*Service, error) {
	if src == nil {
		return nil, fmt.Errorf("report: source is nil")
	}
	if sink == nil {
		return nil, fmt.Errorf("report: sink is nil")
	}
	if len(cfg.Reports) == 0 {
		return nil, fmt.Errorf("report: no reports configured")
	}
	label := cfg.SourceLabel
	if label == "" {
		label = "orientd"
	}

	states, err := buildStates(cfg.Reports)
	if err != nil {
		return nil, err
	}

	return &Service{
		label:   label,
		src:     src,
		sink:    sink,
		reports: states,
		now:     time.Now,
	}, nil
}

func buildStates(reports []Report) ([]reportState, error) {
	if len(reports) == 0 {
		return nil, fmt.Errorf("report: no reports configured")
	}
	states := make([]reportState, 0, len(reports))
	for _, r := range reports {
		if !r.Channel.Known() {
			return nil, fmt.Errorf("report: unknown channel %q", string(r.Channel))
		}
		if r.Path == "" {
			r.Path = r.Channel.DefaultPath()
		}
		if r.Interval <= 0 {
			r.Interval = defaultInterval
		}
		states = append(states, reportState{rep: r})
	}
	return states, nil
}

// Reconfigure swaps the label and report set at runtime, for the settings
// API. The new schedule starts from now; a Run loop sleeping toward an old
// deadline picks it up on its next wake.
func (s *Service) Reconfigure(label string, reports []Report) error {
	states, err := buildStates(reports)
	if err != nil {
		return err
	}
	now := s.now()
	for i := range states {
		states[i].nextAt = now
	}

	s.mu.Lock()
	if label != "" {
		s.label = label
	}
	s.reports = states
	s.mu.Unlock()
	return nil
}

// RequestSaveCalibration arms the one-shot save flag. The command is issued
// once before the next report and the flag rearms to idle, so repeated
// ticks never repeat the save.
func (s *Service) RequestSaveCalibration() {
	s.mu.Lock()
	s.calRequest = 1
	s.mu.Unlock()
}

// RequestEraseCalibration arms the one-shot erase flag.
func (s *Service) RequestEraseCalibration() {
	s.mu.Lock()
	s.calRequest = -1
	s.mu.Unlock()
}

// Stats returns the number of deltas emitted and the time of the last one.
func (s *Service) Stats() (emitted uint64, lastAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emitted, s.lastAt
}

// Run drives the report schedule until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("report: service is nil")
	}

	// Align all first emissions to startup.
	start := s.now()
	s.mu.Lock()
	for i := range s.reports {
		s.reports[i].nextAt = start
	}
	s.mu.Unlock()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		now := s.now()
		s.emitDue(ctx, now)

		next := s.nextDue()
		d := next.Sub(s.now())
		if d < 0 {
			d = 0
		}
		timer.Reset(d)
	}
}

// emitDue sends every report whose deadline has passed and advances its
// schedule. The calibration flag is consumed first so a requested save or
// erase lands before the values that follow it.
func (s *Service) emitDue(ctx context.Context, now time.Time) {
	s.mu.Lock()
	label := s.label
	calReq := s.calRequest
	s.calRequest = 0

	var due []Report
	for i := range s.reports {
		if !s.reports[i].nextAt.After(now) {
			due = append(due, s.reports[i].rep)
			// Fixed cadence from the previous deadline; skip ahead if we
			// fell behind by more than one interval.
			next := s.reports[i].nextAt.Add(s.reports[i].rep.Interval)
			if !next.After(now) {
				next = now.Add(s.reports[i].rep.Interval)
			}
			s.reports[i].nextAt = next
		}
	}
	s.mu.Unlock()

	switch calReq {
	case 1:
		if err := s.src.SaveCalibration(ctx); err != nil {
			log.Printf("report: save calibration: %v", err)
		}
	case -1:
		if err := s.src.EraseCalibration(ctx); err != nil {
			log.Printf("report: erase calibration: %v", err)
		}
	}

	if len(due) == 0 {
		return
	}

	snap := s.src.Snapshot()
	for _, rep := range due {
		val, err := rep.Channel.Value(snap)
		if err != nil {
			log.Printf("report: %v", err)
			continue
		}
		delta := signalk.NewDelta(label, now, signalk.Value{Path: rep.Path, Value: val})
		if err := s.sink.Emit(delta); err != nil {
			log.Printf("report: emit %s: %v", rep.Path, err)
			continue
		}
		s.mu.Lock()
		s.emitted++
		s.lastAt = now
		s.mu.Unlock()
	}
}

// nextDue returns the earliest scheduled deadline.
func (s *Service) nextDue() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.reports[0].nextAt
	for _, st := range s.reports[1:] {
		if st.nextAt.Before(next) {
			next = st.nextAt
		}
	}
	return next
}
