package watcher

// Step runs one poll iteration synchronously so tests can script sensor
// sequences without the ticker. This file only compiles during `go test`.
func (w *Watcher) Step() {
	w.step()
}
