//go:build !linux || (!arm && !arm64)

package button

import "fmt"

// Stub for non-Linux and/or non-ARM platforms.
func openWatcher(pin int) (watcher, error) {
	return nil, fmt.Errorf("gpio unsupported on this platform")
}
