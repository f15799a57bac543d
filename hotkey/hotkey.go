// Package hotkey exposes the global Ctrl+Shift+Space binding used to
// start and stop dictation without focusing the window.
package hotkey

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}
