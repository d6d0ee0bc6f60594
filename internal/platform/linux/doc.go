// Package linux connects the engine to Linux input devices through evdev
// and uinput.
//
// A Hook grabs the selected keyboards so the rest of the system stops
// seeing them, feeds every key transition to the engine and writes the
// events the engine lets through to one virtual uinput device. The same
// device carries synthesized output, so pass-through and injected events
// reach applications through a single ordered stream. The virtual device
// is named output.Sentinel and is never selected as a source, which keeps
// injected output from looping back into the engine.
//
// The package is empty on other platforms.
package linux
