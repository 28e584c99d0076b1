//go:build linux && (arm || arm64)

package button

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

const debouncePeriod = 20 * time.Millisecond

type gpiodWatcher struct {
	chip   *gpiocdev.Chip
	line   *gpiocdev.Line
	events chan event
}

// openWatcher requests the given BCM GPIO as a debounced, pulled-up input
// and streams its edges. The button shorts the line to ground, so a falling
// edge is a press.
func openWatcher(pin int) (watcher, error) {
	if pin <= 0 {
		return nil, fmt.Errorf("invalid gpio pin %d", pin)
	}

	lineName := fmt.Sprintf("GPIO%d", pin)

	chipCandidates := []string{"/dev/gpiochip0", "/dev/gpiochip4"}
	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "gpiochip") {
			chipCandidates = append(chipCandidates, filepath.Join("/dev", name))
		}
	}

	for _, chipPath := range chipCandidates {
		chip, err := gpiocdev.NewChip(chipPath)
		if err != nil {
			continue
		}
		offset, err := chip.FindLine(lineName)
		if err != nil {
			_ = chip.Close()
			continue
		}
		w := &gpiodWatcher{chip: chip, events: make(chan event, 8)}
		line, err := chip.RequestLine(offset,
			gpiocdev.AsInput,
			gpiocdev.WithPullUp,
			gpiocdev.WithBothEdges,
			gpiocdev.WithDebounce(debouncePeriod),
			gpiocdev.WithConsumer("orientd-calbtn"),
			gpiocdev.WithEventHandler(w.handle),
		)
		if err != nil {
			_ = chip.Close()
			continue
		}
		w.line = line
		return w, nil
	}

	return nil, fmt.Errorf("gpio line %q not found (or busy)", lineName)
}

func (w *gpiodWatcher) handle(evt gpiocdev.LineEvent) {
	ev := event{
		pressed: evt.Type == gpiocdev.LineEventFallingEdge,
		at:      time.Now(),
	}
	select {
	case w.events <- ev:
	default:
		// Consumer fell behind; drop rather than block the event handler.
	}
}

func (w *gpiodWatcher) Events() <-chan event { return w.events }

func (w *gpiodWatcher) Close() error {
	if w == nil || w.line == nil {
		return nil
	}
	err := w.line.Close()
	w.line = nil
	if w.chip != nil {
		_ = w.chip.Close()
		w.chip = nil
	}
	return err
}
