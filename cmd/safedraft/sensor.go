package main

import (
	"safedraft/internal/watcher"
)

// platformSensor returns the foreground-window sensor for this build.
// The headless build has no window system access, so it reports a
// neutral sample every poll; desktop shells embed the storage and
// watcher packages directly and supply an OS-backed sensor.
func platformSensor() watcher.Sensor {
	return watcher.NopSensor()
}
